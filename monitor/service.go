// Package monitor draws the live thread table and the kernel panic screen
// on the board framebuffer.
package monitor

import (
	"fmt"
	"image/color"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"pados/hal"
	"pados/kernel"

	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyterm"
)

const (
	fontHeight = 10
	fontOffset = 6
	fontWidth  = 6
)

var (
	background = color.RGBA{R: 0x10, G: 0x18, B: 0x20, A: 0xFF}
	white      = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	black      = color.RGBA{A: 0xFF}
)

type Config struct {
	Period   time.Duration
	Priority int
	// Title heads every frame.
	Title string
}

// Service is the monitor kernel thread.
type Service struct {
	k   *kernel.Kernel
	d   fbDisplay
	cfg Config

	mu     sync.Mutex
	frames atomic.Uint64
}

func New(k *kernel.Kernel, fb hal.Framebuffer, cfg Config) *Service {
	if cfg.Period <= 0 {
		cfg.Period = 250 * time.Millisecond
	}
	if cfg.Priority <= 0 {
		cfg.Priority = 1
	}
	return &Service{k: k, d: fbDisplay{fb: fb}, cfg: cfg}
}

// Start spawns the monitor thread on core 0.
func (s *Service) Start() (*kernel.Thread, kernel.Result) {
	return s.k.Spawn(kernel.ThreadSpec{
		Name:     "monitor",
		Priority: s.cfg.Priority,
		Detached: true,
		Entry:    s.run,
	})
}

// run never returns; Halt unwinds the thread from its sleep.
func (s *Service) run(ctx *kernel.Context) {
	for {
		s.Render()
		ctx.Sleep(s.cfg.Period)
	}
}

// Frames returns how many frames were presented.
func (s *Service) Frames() uint64 { return s.frames.Load() }

// Render draws one frame from a fresh snapshot.
func (s *Service) Render() {
	if !s.d.usable() {
		return
	}
	w, h := s.d.Size()
	cols, rows := int(w)/fontWidth, int(h)/fontHeight
	lines := Lines(s.k.Snapshot(), s.cfg.Title, cols, rows)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.k.InPanicMode() {
		return
	}
	s.d.FillRectangle(0, 0, w, h, background)
	term := tinyterm.NewTerminal(s.d)
	term.Configure(&tinyterm.Config{
		Font:       &proggy.TinySZ8pt7b,
		FontHeight: fontHeight,
		FontOffset: fontOffset,
	})
	for i, l := range lines {
		if i > 0 {
			term.Write([]byte("\r\n"))
		}
		term.Write([]byte(l))
	}
	s.d.Display()
	s.frames.Add(1)
}

var stateNames = map[kernel.ThreadState]string{
	kernel.ThreadReady:   "rdy",
	kernel.ThreadRunning: "run",
	kernel.ThreadBlocked: "blk",
	kernel.ThreadStopped: "stp",
	kernel.ThreadZombie:  "zmb",
}

// Lines formats snap as at most rows lines of at most cols runes.
func Lines(snap kernel.Snapshot, title string, cols, rows int) []string {
	if cols <= 0 || rows <= 0 {
		return nil
	}
	head := fmt.Sprintf("%s t=%v ticks=%d", title, snap.Now, snap.Ticks)
	switch {
	case snap.Panic:
		head += " PANIC"
	case snap.Halted:
		head += " HALTED"
	}
	lines := []string{strings.TrimSpace(head)}
	for _, c := range snap.Cores {
		lines = append(lines, fmt.Sprintf("core%d cur=%d rdy=%d sw=%d idle=%d",
			c.ID, c.Current, c.Ready, c.Switches, c.IdleTicks))
	}
	lines = append(lines, "TID PR ST  NAME         WAIT")
	for _, t := range snap.Threads {
		lines = append(lines, fmt.Sprintf("%3d %2d %-3s %-12s %s",
			t.ID, t.Priority, stateNames[t.State], t.Name, t.WaitingOn))
	}
	if len(lines) > rows {
		more := len(lines) - rows + 1
		lines = append(lines[:rows-1], fmt.Sprintf("... %d more", more))
	}
	for i, l := range lines {
		lines[i] = truncate(strings.TrimRight(l, " "), cols)
	}
	return lines
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for j := range s {
		if i == n {
			return s[:j]
		}
		i++
	}
	return s
}
