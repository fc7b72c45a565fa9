// Package app boots a PadOS kernel on a HAL: it wires the board profile,
// console UART, monitor, panic screen and demo workload together.
package app

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"pados/drivers/uart"
	"pados/hal"
	"pados/internal/buildinfo"
	"pados/kernel"
	"pados/monitor"
	"pados/targets"
	"pados/trace"
)

type Config struct {
	Target targets.TargetInfo
	// Demo spawns the producer/consumer and supervisor workload.
	Demo bool
	// Shell runs the console shell on the board UART.
	Shell         bool
	MonitorPeriod time.Duration
	LogLevel      kernel.LogLevel
	// Trace, when set, receives every scheduling event.
	Trace *trace.Recorder
	// KeepPanicScreen keeps Step succeeding after a kernel panic so a window
	// can go on showing the panic screen.
	KeepPanicScreen bool
}

var ErrHalted = errors.New("kernel halted")

// PanicError is returned by Step after a kernel panic.
type PanicError struct {
	Info kernel.PanicInfo
}

func (e *PanicError) Error() string {
	if e.Info.ThreadID == 0 {
		return fmt.Sprintf("kernel panic in interrupt context: %v", e.Info.Value)
	}
	return fmt.Sprintf("kernel panic in tid %d (%s): %v", e.Info.ThreadID, e.Info.Thread, e.Info.Value)
}

// System is one booted board.
type System struct {
	h   hal.HAL
	k   *kernel.Kernel
	cfg Config

	console *uart.Port
	mon     *monitor.Service
	demo    *demo

	panicked atomic.Pointer[kernel.PanicInfo]
	run      runner
}

// New builds the kernel for cfg.Target and spawns the system threads. No
// thread runs until Start.
func New(h hal.HAL, cfg Config) (*System, error) {
	kcfg := cfg.Target.KernelConfig()
	if cfg.Trace != nil {
		kcfg.Tracer = cfg.Trace
	}
	k := kernel.New(kcfg)
	s := &System{h: h, k: k, cfg: cfg}

	if l := h.Logger(); l != nil {
		k.Log().SetWriter(l)
		k.Log().SetAll(cfg.LogLevel)
	}

	var fb hal.Framebuffer
	if d := h.Display(); d != nil {
		fb = d.Framebuffer()
	}
	s.mon = monitor.New(k, fb, monitor.Config{
		Period: cfg.MonitorPeriod,
		Title:  cfg.Target.Name,
	})
	screen := s.mon.PanicScreen(h.Logger())
	k.SetPanicHandler(func(info kernel.PanicInfo) {
		s.panicked.Store(&info)
		screen(info)
	})

	tx := h.Serial()
	if tx == nil {
		return nil, fmt.Errorf("boot %s: %w", cfg.Target.Name, errNoSerial)
	}
	port, err := uart.Open(k, uart.Config{
		Name: cfg.Target.UART.Name,
		IRQ:  cfg.Target.UART.IRQ,
		FIFO: cfg.Target.UART.FIFO,
	}, tx)
	if err != nil {
		k.Halt()
		return nil, fmt.Errorf("boot %s: %w", cfg.Target.Name, err)
	}
	s.console = port

	if _, res := s.mon.Start(); res != kernel.Success {
		k.Halt()
		return nil, fmt.Errorf("boot %s: monitor: %w", cfg.Target.Name, res)
	}
	if cfg.Shell {
		if _, res := k.Spawn(kernel.ThreadSpec{Name: "shell", Priority: shellPriority, Detached: true, Entry: s.shell}); res != kernel.Success {
			k.Halt()
			return nil, fmt.Errorf("boot %s: shell: %w", cfg.Target.Name, res)
		}
	}
	if cfg.Demo {
		d, err := startDemo(k)
		if err != nil {
			k.Halt()
			return nil, fmt.Errorf("boot %s: %w", cfg.Target.Name, err)
		}
		s.demo = d
	}
	return s, nil
}

var errNoSerial = errors.New("board has no serial port")

func (s *System) Kernel() *kernel.Kernel { return s.k }

func (s *System) Console() *uart.Port { return s.console }

func (s *System) banner() string {
	return fmt.Sprintf("PadOS %s on %s (%d core(s))", buildinfo.Short(), s.cfg.Target.Name, s.k.Config().Cores)
}
