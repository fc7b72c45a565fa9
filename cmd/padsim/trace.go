package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"pados/app"
	"pados/hal"
	"pados/kernel"
	"pados/targets"
	"pados/trace"
)

var (
	traceOpts = struct {
		target string
		ticks  uint64
		hz     int
		out    string
		width  int
		limit  int
	}{}

	traceCmd = &cobra.Command{
		Use:   "trace",
		Short: "Record a scheduler trace of the demo workload",
		Long: "Boot a board headless for a fixed number of ticks with the demo workload, " +
			"print per-thread CPU share and wake latency, and optionally render a timeline PNG.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ti, err := targets.All().Find(traceOpts.target)
			if err != nil {
				return err
			}
			if traceOpts.ticks == 0 {
				return fmt.Errorf("trace needs a tick limit")
			}
			rec := trace.NewRecorder(traceOpts.limit)
			cfg := app.Config{
				Target:   ti,
				Demo:     true,
				LogLevel: kernel.LogError,
				Trace:    rec,
			}
			hcfg := hal.Config{
				Hz:         traceOpts.hz,
				Ticks:      traceOpts.ticks,
				TickPeriod: ti.TickPeriod(),
				Width:      ti.Display.Width,
				Height:     ti.Display.Height,
			}
			sys, err := boot(cmd.Context(), cfg, hcfg, true)
			if err != nil {
				return err
			}
			if sys == nil {
				return fmt.Errorf("board did not boot")
			}

			k := sys.Kernel()
			end := k.Now()
			events := rec.Events()
			names := threadNames(k.Snapshot())
			out := cmd.OutOrStdout()
			printSummary(out, trace.Summarize(events, end), names)
			if n := rec.Dropped(); n > 0 {
				fmt.Fprintf(out, "dropped %d events past the limit of %d\n", n, traceOpts.limit)
			}

			if traceOpts.out == "" {
				return nil
			}
			f, err := os.Create(traceOpts.out)
			if err != nil {
				return err
			}
			opts := trace.RenderOptions{Width: traceOpts.width, Names: names}
			if err := trace.Render(f, trace.Segments(events, end), end, opts); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
)

func init() {
	f := traceCmd.Flags()
	f.StringVarP(&traceOpts.target, "target", "t", "stm32f407", "Board profile to boot.")
	f.Uint64Var(&traceOpts.ticks, "ticks", 2000, "Board ticks to record.")
	f.IntVar(&traceOpts.hz, "hz", 100, "Host step rate.")
	f.StringVarP(&traceOpts.out, "output", "o", "", "Write a timeline PNG to this file.")
	f.IntVar(&traceOpts.width, "width", 1200, "Timeline width in pixels.")
	f.IntVar(&traceOpts.limit, "limit", 1<<20, "Maximum number of events kept.")
}

func threadNames(snap kernel.Snapshot) map[kernel.ThreadID]string {
	names := make(map[kernel.ThreadID]string, len(snap.Threads))
	for _, t := range snap.Threads {
		names[t.ID] = t.Name
	}
	return names
}

func printSummary(out io.Writer, s trace.Summary, names map[kernel.ThreadID]string) {
	fmt.Fprintf(out, "span %v on %d core(s), %.1f%% busy\n", s.Span, s.Cores, 100*s.Busy)
	fmt.Fprintf(out, "wake latency: n=%d mean=%v p50=%v p99=%v max=%v\n\n",
		s.Latency.Samples, s.Latency.Mean, s.Latency.P50, s.Latency.P99, s.Latency.Max)

	threads := append([]trace.ThreadStats(nil), s.Threads...)
	sort.Slice(threads, func(i, j int) bool { return threads[i].CPU > threads[j].CPU })

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TID\tNAME\tRUNS\tCPU\tSHARE\tWAKES\tP50\tP99")
	for _, t := range threads {
		name := names[t.ID]
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%v\t%.1f%%\t%d\t%v\t%v\n",
			t.ID, name, t.Runs, t.CPU.Round(time.Microsecond), 100*t.Share,
			t.Wakes, t.Latency.P50, t.Latency.P99)
	}
	w.Flush()
}
