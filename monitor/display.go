package monitor

import (
	"image/color"

	"pados/hal"

	"tinygo.org/x/drivers"
)

// fbDisplay draws into an RGB565 framebuffer for tinyfont and tinyterm.
type fbDisplay struct {
	fb hal.Framebuffer
}

func (d fbDisplay) usable() bool {
	return d.fb != nil && d.fb.Format() == hal.PixelFormatRGB565 && d.fb.Buffer() != nil
}

func (d fbDisplay) Size() (x, y int16) {
	if d.fb == nil {
		return 0, 0
	}
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d fbDisplay) SetPixel(x, y int16, c color.RGBA) {
	if !d.usable() {
		return
	}
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= d.fb.Width() || iy < 0 || iy >= d.fb.Height() {
		return
	}
	buf := d.fb.Buffer()
	off := iy*d.fb.StrideBytes() + ix*2
	if off+1 >= len(buf) {
		return
	}
	pixel := rgb565(c)
	buf[off] = byte(pixel)
	buf[off+1] = byte(pixel >> 8)
}

func (d fbDisplay) Display() error {
	if d.fb == nil {
		return nil
	}
	return d.fb.Present()
}

func (d fbDisplay) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	if !d.usable() {
		return nil
	}
	w, h := d.fb.Width(), d.fb.Height()
	x0 := clampInt(int(x), 0, w)
	y0 := clampInt(int(y), 0, h)
	x1 := clampInt(int(x)+int(width), 0, w)
	y1 := clampInt(int(y)+int(height), 0, h)

	pixel := rgb565(c)
	lo, hi := byte(pixel), byte(pixel>>8)
	buf := d.fb.Buffer()
	stride := d.fb.StrideBytes()
	for py := y0; py < y1; py++ {
		row := py * stride
		for px := x0; px < x1; px++ {
			off := row + px*2
			if off+1 >= len(buf) {
				break
			}
			buf[off] = lo
			buf[off+1] = hi
		}
	}
	return nil
}

// The monitor redraws whole frames and never scrolls.
func (d fbDisplay) SetScroll(int16) {}

func (d fbDisplay) SetRotation(drivers.Rotation) error { return nil }

func rgb565(c color.RGBA) uint16 {
	return uint16(c.R>>3)<<11 | uint16(c.G>>2)<<5 | uint16(c.B>>3)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
