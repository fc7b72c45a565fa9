package monitor

import (
	"bytes"
	"fmt"
	"strings"

	"pados/hal"
	"pados/kernel"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

// PanicScreen returns a kernel panic handler that logs the panic and paints
// it over the framebuffer. The monitor stops drawing once the kernel is in
// panic mode. log may be nil; it gets the raw stack dump.
func (s *Service) PanicScreen(log hal.Logger) func(kernel.PanicInfo) {
	return func(info kernel.PanicInfo) {
		lines := panicLines(info)
		if log != nil {
			logPanic(log, lines[:3], info.Stack)
		}
		if !s.d.usable() {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		drawPanic(s.d, lines)
		s.d.Display()
	}
}

func logPanic(log hal.Logger, header []string, stack []byte) {
	for _, l := range header {
		log.WriteLineString(l)
	}
	for _, l := range bytes.Split(stack, []byte{'\n'}) {
		if len(l) > 0 {
			log.WriteLineBytes(l)
		}
	}
}

func panicLines(info kernel.PanicInfo) []string {
	who := "interrupt"
	if info.ThreadID != 0 {
		who = fmt.Sprintf("tid %d (%s)", info.ThreadID, info.Thread)
	}
	lines := []string{
		"KERNEL PANIC",
		"in: " + who,
		fmt.Sprintf("panic: %v", info.Value),
	}
	if len(info.Stack) == 0 {
		return append(lines, "stack: unavailable")
	}
	lines = append(lines, "stack:")
	for _, l := range strings.Split(string(info.Stack), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// drawPanic draws lines black on white, wrapping long lines and stopping at
// the bottom edge.
func drawPanic(d fbDisplay, lines []string) {
	font := &proggy.TinySZ8pt7b
	_, outbox := tinyfont.LineWidth(font, "0")
	cw := int16(outbox)
	if cw <= 0 {
		cw = fontWidth
	}
	w, h := d.Size()
	cols := int(w / cw)
	if cols <= 0 {
		return
	}
	d.FillRectangle(0, 0, w, h, white)

	y := int16(0)
	for _, line := range lines {
		for {
			if y+fontHeight > h {
				return
			}
			chunk := truncate(line, cols)
			x := int16(0)
			for _, r := range chunk {
				tinyfont.DrawChar(d, font, x, y+fontOffset, r, black)
				x += cw
			}
			y += fontHeight
			line = strings.TrimLeft(line[len(chunk):], " ")
			if line == "" {
				break
			}
		}
	}
}
