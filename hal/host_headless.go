//go:build !tinygo

package hal

import (
	"context"
	"fmt"
	"time"
)

// RunHeadless runs the board without opening a window. Each step emits the
// board ticks covering one 1/Hz interval, so a run with cfg.Ticks set is
// reproducible regardless of host load.
func RunHeadless(ctx context.Context, newApp func(HAL) func() error, cfg Config) error {
	cfg = cfg.withDefaults()
	d := time.Second / time.Duration(cfg.Hz)
	if d <= 0 {
		return fmt.Errorf("invalid headless hz: %d", cfg.Hz)
	}
	perStep := uint64(d / cfg.TickPeriod)
	if perStep == 0 {
		perStep = 1
	}

	h := newHost(cfg)
	defer h.close()
	if cfg.Console {
		if err := h.serial.attachConsole(); err != nil {
			return fmt.Errorf("attach console: %w", err)
		}
	}
	step := newApp(h)

	t := time.NewTicker(d)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			n := perStep
			if cfg.Ticks > 0 && h.t.seq+n > cfg.Ticks {
				n = cfg.Ticks - h.t.seq
			}
			h.t.stepN(n)
			if step != nil {
				if err := step(); err != nil {
					return err
				}
			}
			if cfg.Ticks > 0 && h.t.seq >= cfg.Ticks {
				return nil
			}
		}
	}
}
