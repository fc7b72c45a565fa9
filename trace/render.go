package trace

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fogleman/gg"

	"pados/kernel"
)

// RenderOptions controls the timeline image.
type RenderOptions struct {
	Width      int
	LaneHeight int
	// Names labels threads; unnamed threads show their ID.
	Names map[kernel.ThreadID]string
}

const (
	marginLeft = 56
	marginTop  = 24
	laneGap    = 8
)

var palette = [][3]float64{
	{0.90, 0.30, 0.24},
	{0.20, 0.60, 0.86},
	{0.18, 0.80, 0.44},
	{0.95, 0.61, 0.07},
	{0.61, 0.35, 0.71},
	{0.10, 0.74, 0.61},
	{0.83, 0.33, 0.00},
	{0.50, 0.55, 0.55},
}

// Render draws one lane per core with a bar per run segment and writes the
// result as PNG.
func Render(w io.Writer, segs []Segment, end time.Duration, opts RenderOptions) error {
	if opts.Width <= marginLeft {
		opts.Width = 800
	}
	if opts.LaneHeight <= 0 {
		opts.LaneHeight = 28
	}
	if len(segs) == 0 {
		return errors.New("trace: nothing to render")
	}
	cores := 0
	start := segs[0].Start
	for _, s := range segs {
		if s.Core+1 > cores {
			cores = s.Core + 1
		}
		if s.Start < start {
			start = s.Start
		}
		if s.End > end {
			end = s.End
		}
	}
	span := end - start
	if span <= 0 {
		span = 1
	}

	height := marginTop + cores*(opts.LaneHeight+laneGap) + laneGap
	dc := gg.NewContext(opts.Width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	plot := float64(opts.Width - marginLeft - laneGap)
	xOf := func(t time.Duration) float64 {
		return marginLeft + plot*float64(t-start)/float64(span)
	}

	dc.SetRGB(0, 0, 0)
	dc.DrawString(fmt.Sprintf("%v .. %v", start, end), marginLeft, 16)
	for c := 0; c < cores; c++ {
		y := float64(marginTop + c*(opts.LaneHeight+laneGap))
		dc.SetRGB(0, 0, 0)
		dc.DrawStringAnchored(fmt.Sprintf("core %d", c), marginLeft-6, y+float64(opts.LaneHeight)/2, 1, 0.5)
		dc.SetRGB(0.93, 0.93, 0.93)
		dc.DrawRectangle(marginLeft, y, plot, float64(opts.LaneHeight))
		dc.Fill()
	}

	for _, s := range segs {
		y := float64(marginTop + s.Core*(opts.LaneHeight+laneGap))
		x0, x1 := xOf(s.Start), xOf(s.End)
		if x1-x0 < 1 {
			x1 = x0 + 1
		}
		rgb := palette[int(s.Thread)%len(palette)]
		dc.SetRGB(rgb[0], rgb[1], rgb[2])
		dc.DrawRectangle(x0, y, x1-x0, float64(opts.LaneHeight))
		dc.Fill()

		label := opts.Names[s.Thread]
		if label == "" {
			label = fmt.Sprint(s.Thread)
		}
		if tw, _ := dc.MeasureString(label); tw+4 < x1-x0 {
			dc.SetRGB(1, 1, 1)
			dc.DrawStringAnchored(label, (x0+x1)/2, y+float64(opts.LaneHeight)/2, 0.5, 0.5)
		}
	}
	return dc.EncodePNG(w)
}
