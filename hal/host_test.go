//go:build !tinygo

package hal

import (
	"context"
	"io"
	"testing"
	"time"
)

func TestHostTimeStepNKeepsCountingWhenFull(t *testing.T) {
	ht := newHostTime(time.Millisecond)
	ht.stepN(uint64(cap(ht.ch) + 10))
	if got := len(ht.ch); got != cap(ht.ch) {
		t.Fatalf("queued ticks = %d, want %d", got, cap(ht.ch))
	}
	if ht.seq != uint64(cap(ht.ch)+10) {
		t.Fatalf("seq = %d, want %d", ht.seq, cap(ht.ch)+10)
	}
	if first := <-ht.Ticks(); first != 1 {
		t.Fatalf("first tick = %d, want 1", first)
	}
}

func TestHostTimeElapsedFirstCallEmitsOneTick(t *testing.T) {
	ht := newHostTime(time.Hour)
	ht.elapsed()
	ht.elapsed()
	if ht.seq != 1 {
		t.Fatalf("seq = %d after two calls within one period, want 1", ht.seq)
	}
}

func TestHostFramebufferPresent(t *testing.T) {
	fb := newHostFramebuffer(4, 2)
	fb.ClearRGB(0xFF, 0, 0)
	snap := make([]byte, len(fb.Buffer()))
	fb.snapshotRGB565(snap)
	if snap[0] != 0 || snap[1] != 0 {
		t.Fatalf("snapshot before Present = %#x %#x, want blank", snap[0], snap[1])
	}
	if err := fb.Present(); err != nil {
		t.Fatalf("Present() = %v", err)
	}
	fb.snapshotRGB565(snap)
	if got := uint16(snap[0]) | uint16(snap[1])<<8; got != 0xF800 {
		t.Fatalf("presented pixel = %#04x, want 0xf800", got)
	}
	if fb.presents() != 1 {
		t.Fatalf("presents() = %d, want 1", fb.presents())
	}
}

func TestExpandRGB565(t *testing.T) {
	src := []byte{0x00, 0xF8, 0xE0, 0x07, 0x1F, 0x00}
	dst := make([]byte, 12)
	expandRGB565(dst, src)
	want := []byte{255, 0, 0, 255, 0, 255, 0, 255, 0, 0, 255, 255}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("dst = %v, want %v", dst, want)
		}
	}
}

func TestHostSerialReadDrainsQueued(t *testing.T) {
	s := newHostSerial(io.Discard)
	for _, r := range "hé" {
		s.inject(r)
	}
	buf := make([]byte, 8)
	n, err := s.Read(buf)
	if err != nil || string(buf[:n]) != "hé" {
		t.Fatalf("Read() = %q, %v; want %q", buf[:n], err, "hé")
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Read(buf)
		done <- err
	}()
	s.Close()
	select {
	case err := <-done:
		if err != io.EOF {
			t.Fatalf("Read() after Close = %v, want io.EOF", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Read() did not return after Close")
	}
}

func TestHostSerialDropsOnOverrun(t *testing.T) {
	s := newHostSerial(io.Discard)
	for i := 0; i < cap(s.rx)+5; i++ {
		s.inject('x')
	}
	if got := len(s.rx); got != cap(s.rx) {
		t.Fatalf("queued = %d, want %d", got, cap(s.rx))
	}
}

func TestRunHeadlessStopsAfterTicks(t *testing.T) {
	var (
		steps int
		last  uint64
	)
	cfg := Config{Hz: 1000, Ticks: 5, TickPeriod: time.Millisecond}
	err := RunHeadless(context.Background(), func(h HAL) func() error {
		ch := h.Time().Ticks()
		return func() error {
			steps++
			for len(ch) > 0 {
				last = <-ch
			}
			return nil
		}
	}, cfg)
	if err != nil {
		t.Fatalf("RunHeadless() = %v", err)
	}
	if steps != 5 || last != 5 {
		t.Fatalf("steps = %d, last tick = %d; want 5, 5", steps, last)
	}
}

func TestRunHeadlessCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RunHeadless(ctx, func(HAL) func() error { return nil }, Config{})
	if err != context.Canceled {
		t.Fatalf("RunHeadless() = %v, want %v", err, context.Canceled)
	}
}
