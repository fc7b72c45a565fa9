package trace

import (
	"math"
	"time"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/stat"

	"pados/kernel"
)

// Latency summarizes wake-to-run delays.
type Latency struct {
	Samples int
	Mean    time.Duration
	StdDev  time.Duration
	P50     time.Duration
	P99     time.Duration
	Max     time.Duration
}

// ThreadStats is the per-thread part of a Summary.
type ThreadStats struct {
	ID      kernel.ThreadID
	Runs    int
	CPU     time.Duration
	Share   float64
	Wakes   int
	Latency Latency
}

// Summary is computed over the span [first event, end].
type Summary struct {
	Span    time.Duration
	Cores   int
	Busy    float64
	Latency Latency
	Threads []ThreadStats
}

// Summarize computes CPU shares and wake latencies. A wake is matched with
// the next switch to the same thread.
func Summarize(events []Event, end time.Duration) Summary {
	var s Summary
	if len(events) == 0 {
		return s
	}
	start := events[0].At
	if end < events[len(events)-1].At {
		end = events[len(events)-1].At
	}
	s.Span = end - start

	byID := map[kernel.ThreadID]*ThreadStats{}
	get := func(id kernel.ThreadID) *ThreadStats {
		ts, ok := byID[id]
		if !ok {
			ts = &ThreadStats{ID: id}
			byID[id] = ts
		}
		return ts
	}

	cores := map[int]bool{}
	var busy time.Duration
	for _, seg := range Segments(events, end) {
		cores[seg.Core] = true
		ts := get(seg.Thread)
		ts.Runs++
		ts.CPU += seg.Len()
		busy += seg.Len()
	}
	s.Cores = len(cores)

	woken := map[kernel.ThreadID]time.Duration{}
	perThread := map[kernel.ThreadID][]float64{}
	var all []float64
	for _, e := range events {
		switch e.Kind {
		case EventWake:
			get(e.To).Wakes++
			if _, ok := woken[e.To]; !ok {
				woken[e.To] = e.At
			}
		case EventSwitch:
			if at, ok := woken[e.To]; ok && e.To != 0 {
				d := float64(e.At - at)
				perThread[e.To] = append(perThread[e.To], d)
				all = append(all, d)
				delete(woken, e.To)
			}
		}
	}
	s.Latency = latencyOf(all)

	for id, ts := range byID {
		ts.Latency = latencyOf(perThread[id])
		if s.Span > 0 {
			ts.Share = float64(ts.CPU) / float64(s.Span)
		}
		s.Threads = append(s.Threads, *ts)
	}
	slices.SortFunc(s.Threads, func(a, b ThreadStats) bool { return a.ID < b.ID })
	if s.Span > 0 && s.Cores > 0 {
		s.Busy = float64(busy) / (float64(s.Span) * float64(s.Cores))
	}
	return s
}

func latencyOf(x []float64) Latency {
	if len(x) == 0 {
		return Latency{}
	}
	sorted := append([]float64(nil), x...)
	slices.Sort(sorted)
	l := Latency{
		Samples: len(x),
		P50:     time.Duration(stat.Quantile(0.5, stat.Empirical, sorted, nil)),
		P99:     time.Duration(stat.Quantile(0.99, stat.Empirical, sorted, nil)),
		Max:     time.Duration(sorted[len(sorted)-1]),
	}
	if len(x) == 1 {
		l.Mean = time.Duration(x[0])
		return l
	}
	mean, std := stat.MeanStdDev(x, nil)
	l.Mean = time.Duration(math.Round(mean))
	l.StdDev = time.Duration(math.Round(std))
	return l
}
