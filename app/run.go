package app

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"pados/kernel"
)

type runner struct {
	once   sync.Once
	cancel context.CancelFunc
	group  *errgroup.Group
}

// Start starts the kernel and the host feeders: board ticks drive
// Kernel.Tick and serial input drives the console UART.
func (s *System) Start(ctx context.Context) {
	s.run.once.Do(func() {
		s.k.Start()
		ctx, s.run.cancel = context.WithCancel(ctx)
		g, ctx := errgroup.WithContext(ctx)
		s.run.group = g
		g.Go(func() error { return s.feedTicks(ctx) })
		g.Go(func() error { return s.feedSerial(ctx) })
		s.k.Log().Logf(kernel.LogSched, kernel.LogInfo, "%s", s.banner())
	})
}

// Step reports the system state once per host frame: nil while running,
// a *PanicError after a kernel panic and ErrHalted after a clean halt.
func (s *System) Step() error {
	if info := s.panicked.Load(); info != nil {
		if s.cfg.KeepPanicScreen {
			return nil
		}
		return &PanicError{Info: *info}
	}
	if s.k.Halted() {
		return ErrHalted
	}
	return nil
}

// Close halts the kernel and waits for the feeders.
func (s *System) Close() error {
	s.k.Halt()
	if s.run.group == nil {
		return nil
	}
	s.run.cancel()
	return s.run.group.Wait()
}

// feedTicks turns board tick sequence numbers into kernel ticks, replaying
// any the channel dropped.
func (s *System) feedTicks(ctx context.Context) error {
	t := s.h.Time()
	if t == nil {
		return nil
	}
	ch := t.Ticks()
	var last uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.k.Done():
			return nil
		case seq, ok := <-ch:
			if !ok {
				return nil
			}
			if last == 0 || seq <= last {
				last = seq - 1
			}
			for ; last < seq; last++ {
				s.k.Tick()
			}
		}
	}
}

// feedSerial forwards host serial input to the console UART. The blocking
// read runs on its own goroutine and ends when the HAL closes the port.
func (s *System) feedSerial(ctx context.Context) error {
	rx := make(chan []byte)
	go func() {
		defer close(rx)
		buf := make([]byte, 64)
		for {
			n, err := s.h.Serial().Read(buf)
			if n > 0 {
				select {
				case rx <- append([]byte(nil), buf[:n]...):
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case b, ok := <-rx:
			if !ok {
				return nil
			}
			s.console.Receive(b)
		}
	}
}
