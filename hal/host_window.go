//go:build !tinygo && cgo

package hal

import (
	"image"

	"pados/internal/buildinfo"

	"github.com/hajimehoshi/ebiten/v2"
)

// RunWindow opens a desktop window showing the framebuffer. Typed keys feed
// the serial port. It blocks until the window closes, the app step fails, or
// cfg.Ticks board ticks have elapsed.
func RunWindow(newApp func(HAL) func() error, cfg Config) error {
	cfg = cfg.withDefaults()
	h := newHost(cfg)
	defer h.close()
	step := newApp(h)

	g := &hostGame{h: h, step: step, limit: cfg.Ticks}
	ebiten.SetWindowTitle("padsim (" + buildinfo.Short() + ")")
	ebiten.SetWindowSize(h.fb.width*2, h.fb.height*2)
	ebiten.SetTPS(cfg.Hz)
	err := ebiten.RunGame(g)
	if err == ebiten.Termination {
		return nil
	}
	return err
}

type hostGame struct {
	h       *hostHAL
	img     *image.RGBA
	fbImg   *ebiten.Image
	scratch []byte
	step    func() error
	limit   uint64
}

func (g *hostGame) Update() error {
	g.h.kbd.poll(g.h.serial.inject)
	g.h.t.elapsed()
	if g.step != nil {
		if err := g.step(); err != nil {
			return err
		}
	}
	if g.limit > 0 && g.h.t.seq >= g.limit {
		return ebiten.Termination
	}
	return nil
}

func (g *hostGame) Draw(screen *ebiten.Image) {
	fb := g.h.fb
	if g.img == nil || g.img.Bounds().Dx() != fb.width || g.img.Bounds().Dy() != fb.height {
		g.img = image.NewRGBA(image.Rect(0, 0, fb.width, fb.height))
		g.scratch = make([]byte, len(fb.buf))
		if g.fbImg != nil {
			g.fbImg.Deallocate()
		}
		g.fbImg = ebiten.NewImage(fb.width, fb.height)
	}

	fb.snapshotRGB565(g.scratch)
	expandRGB565(g.img.Pix, g.scratch)

	g.fbImg.WritePixels(g.img.Pix)
	screen.DrawImage(g.fbImg, nil)
}

func (g *hostGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.h.fb.width, g.h.fb.height
}
