package monitor

import (
	"strings"
	"sync"
	"testing"
	"time"

	"pados/hal"
	"pados/kernel"
)

type testFB struct {
	w, h     int
	buf      []byte
	presents int
}

func newTestFB(w, h int) *testFB {
	return &testFB{w: w, h: h, buf: make([]byte, w*h*2)}
}

func (f *testFB) Width() int              { return f.w }
func (f *testFB) Height() int             { return f.h }
func (f *testFB) Format() hal.PixelFormat { return hal.PixelFormatRGB565 }
func (f *testFB) StrideBytes() int        { return f.w * 2 }
func (f *testFB) Buffer() []byte          { return f.buf }
func (f *testFB) ClearRGB(r, g, b uint8)  {}
func (f *testFB) Present() error          { f.presents++; return nil }

func (f *testFB) pixel(x, y int) uint16 {
	off := y*f.w*2 + x*2
	return uint16(f.buf[off]) | uint16(f.buf[off+1])<<8
}

type lines struct {
	mu  sync.Mutex
	l   []string
	raw int
}

func (l *lines) WriteLineString(s string) {
	l.mu.Lock()
	l.l = append(l.l, s)
	l.mu.Unlock()
}

func (l *lines) WriteLineBytes(b []byte) {
	l.mu.Lock()
	l.l = append(l.l, string(b))
	l.raw++
	l.mu.Unlock()
}

func (l *lines) joined() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.l, "\n")
}

func sampleSnapshot() kernel.Snapshot {
	return kernel.Snapshot{
		Now:   1500 * time.Millisecond,
		Ticks: 1500,
		Cores: []kernel.CoreInfo{{ID: 0, Current: 3, Ready: 1, Switches: 42, IdleTicks: 7}},
		Threads: []kernel.ThreadInfo{
			{ID: 2, Name: "echo", Priority: 3, State: kernel.ThreadBlocked, WaitingOn: "usart2"},
			{ID: 3, Name: "worker", Priority: 1, State: kernel.ThreadRunning},
		},
	}
}

func TestLines(t *testing.T) {
	got := Lines(sampleSnapshot(), "stm32f407", 80, 20)
	want := []string{
		"stm32f407 t=1.5s ticks=1500",
		"core0 cur=3 rdy=1 sw=42 idle=7",
		"TID PR ST  NAME         WAIT",
		"  2  3 blk echo         usart2",
		"  3  1 run worker",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("Lines() =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestLinesClipped(t *testing.T) {
	snap := sampleSnapshot()
	snap.Halted = true
	got := Lines(snap, "", 10, 3)
	if len(got) != 3 {
		t.Fatalf("Lines() = %q, want 3 lines", got)
	}
	if got[0] != "t=1.5s tic" {
		t.Fatalf("header = %q", got[0])
	}
	if got[2] != "... 3 more" {
		t.Fatalf("last line = %q, want %q", got[2], "... 3 more")
	}
	if Lines(snap, "", 0, 5) != nil {
		t.Fatal("Lines() with no columns returned text")
	}
}

func TestRenderPresentsFrame(t *testing.T) {
	k := kernel.New(kernel.DefaultConfig())
	defer k.Halt()
	fb := newTestFB(160, 120)
	s := New(k, fb, Config{Title: "test"})
	s.Render()
	if s.Frames() != 1 || fb.presents != 1 {
		t.Fatalf("Frames() = %d, presents = %d; want 1, 1", s.Frames(), fb.presents)
	}
	painted := 0
	for y := 0; y < fb.h; y++ {
		for x := 0; x < fb.w; x++ {
			if fb.pixel(x, y) != 0 {
				painted++
			}
		}
	}
	if painted == 0 {
		t.Fatal("Render() left the framebuffer blank")
	}
}

func TestMonitorThreadRedraws(t *testing.T) {
	k := kernel.New(kernel.DefaultConfig())
	defer k.Halt()
	fb := newTestFB(160, 120)
	s := New(k, fb, Config{Period: time.Millisecond})
	if _, res := s.Start(); res != kernel.Success {
		t.Fatalf("Start() = %v", res)
	}
	k.Start()
	deadline := time.Now().Add(5 * time.Second)
	for s.Frames() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("Frames() = %d after ticking, want 3", s.Frames())
		}
		k.Tick()
		time.Sleep(100 * time.Microsecond)
	}
}

func TestPanicScreen(t *testing.T) {
	k := kernel.New(kernel.DefaultConfig())
	defer k.Halt()
	fb := newTestFB(200, 100)
	s := New(k, fb, Config{})
	var log lines
	done := make(chan struct{})
	handler := s.PanicScreen(&log)
	k.SetPanicHandler(func(info kernel.PanicInfo) {
		handler(info)
		close(done)
	})
	k.Spawn(kernel.ThreadSpec{Name: "bad", Priority: 1, Entry: func(*kernel.Context) { panic("boom") }})
	k.Start()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("panic handler not called")
	}
	out := log.joined()
	if !strings.Contains(out, "KERNEL PANIC") || !strings.Contains(out, "panic: boom") || !strings.Contains(out, "(bad)") {
		t.Fatalf("log = %q", out)
	}
	if log.raw == 0 || !strings.Contains(out, "goroutine ") {
		t.Fatalf("stack not logged as raw lines: %d raw, log = %q", log.raw, out)
	}
	if got := fb.pixel(199, 0); got != 0xFFFF {
		t.Fatalf("corner pixel = %#04x, want white", got)
	}
	if fb.presents != 1 {
		t.Fatalf("presents = %d, want 1", fb.presents)
	}

	s.Render()
	if fb.presents != 1 {
		t.Fatal("monitor drew over the panic screen")
	}
}
