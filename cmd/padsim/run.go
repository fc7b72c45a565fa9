package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"pados/app"
	"pados/hal"
	"pados/kernel"
	"pados/targets"
)

var (
	runOpts = struct {
		target        string
		headless      bool
		hz            int
		ticks         uint64
		console       bool
		demo          bool
		shell         bool
		logLevel      string
		monitorPeriod time.Duration
	}{}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Boot a board",
		Long:  "Boot a board in a window, or headless with the terminal attached to the console UART.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ti, err := targets.All().Find(runOpts.target)
			if err != nil {
				return err
			}
			level, ok := kernel.ParseLogLevel(runOpts.logLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", runOpts.logLevel)
			}
			cfg := app.Config{
				Target:          ti,
				Demo:            runOpts.demo,
				Shell:           runOpts.shell,
				MonitorPeriod:   runOpts.monitorPeriod,
				LogLevel:        level,
				KeepPanicScreen: !runOpts.headless,
			}
			hcfg := hal.Config{
				Hz:         runOpts.hz,
				Ticks:      runOpts.ticks,
				TickPeriod: ti.TickPeriod(),
				Console:    runOpts.console && runOpts.headless,
				Width:      ti.Display.Width,
				Height:     ti.Display.Height,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			_, err = boot(ctx, cfg, hcfg, runOpts.headless)
			return err
		},
	}
)

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runOpts.target, "target", "t", "stm32f407", "Board profile to boot.")
	f.BoolVar(&runOpts.headless, "headless", false, "Run without a window.")
	f.IntVar(&runOpts.hz, "hz", 60, "Host step rate.")
	f.Uint64Var(&runOpts.ticks, "ticks", 0, "Stop after N board ticks (0 = run forever).")
	f.BoolVar(&runOpts.console, "console", true, "Attach the terminal to the console UART in headless mode.")
	f.BoolVar(&runOpts.demo, "demo", true, "Run the demo workload.")
	f.BoolVar(&runOpts.shell, "shell", true, "Run the console shell.")
	f.StringVar(&runOpts.logLevel, "log-level", "info", "Kernel log level: off, error, info, debug.")
	f.DurationVar(&runOpts.monitorPeriod, "monitor-period", 250*time.Millisecond, "Monitor redraw period in board time.")
}

// boot runs one board until the runner stops, then shuts the system down.
// The halted system is returned for inspection.
func boot(ctx context.Context, cfg app.Config, hcfg hal.Config, headless bool) (*app.System, error) {
	var sys *app.System
	newApp := func(h hal.HAL) func() error {
		s, err := app.New(h, cfg)
		if err != nil {
			return func() error { return err }
		}
		sys = s
		s.Start(ctx)
		return s.Step
	}

	var err error
	if headless {
		err = hal.RunHeadless(ctx, newApp, hcfg)
	} else {
		err = hal.RunWindow(newApp, hcfg)
	}
	if sys != nil {
		if cerr := sys.Close(); err == nil {
			err = cerr
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, app.ErrHalted) {
		err = nil
	}
	return sys, err
}
