// Package trace records kernel scheduling events and turns them into
// statistics and timeline images.
package trace

import (
	"sync"
	"time"

	"pados/kernel"
)

type EventKind uint8

const (
	EventSwitch EventKind = iota + 1
	EventWake
	EventExit
)

func (k EventKind) String() string {
	switch k {
	case EventSwitch:
		return "switch"
	case EventWake:
		return "wake"
	case EventExit:
		return "exit"
	default:
		return "unknown"
	}
}

// Event is one scheduling event. From and Core are only set for switches;
// To is the thread that woke, exited or was switched in (0 = idle).
type Event struct {
	Kind EventKind
	Core int
	From kernel.ThreadID
	To   kernel.ThreadID
	At   time.Duration
}

// Recorder is a kernel.Tracer that keeps the first Limit events.
type Recorder struct {
	mu      sync.Mutex
	limit   int
	events  []Event
	dropped uint64
}

// NewRecorder returns a recorder holding at most limit events; limit <= 0
// keeps everything.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

var _ kernel.Tracer = (*Recorder)(nil)

func (r *Recorder) ThreadSwitch(core int, from, to kernel.ThreadID, at time.Duration) {
	r.add(Event{Kind: EventSwitch, Core: core, From: from, To: to, At: at})
}

func (r *Recorder) ThreadWake(id kernel.ThreadID, at time.Duration) {
	r.add(Event{Kind: EventWake, To: id, At: at})
}

func (r *Recorder) ThreadExit(id kernel.ThreadID, at time.Duration) {
	r.add(Event{Kind: EventExit, To: id, At: at})
}

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	if r.limit > 0 && len(r.events) >= r.limit {
		r.dropped++
	} else {
		r.events = append(r.events, e)
	}
	r.mu.Unlock()
}

// Events returns a copy of the recorded events in arrival order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Dropped returns how many events arrived after the recorder filled up.
func (r *Recorder) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = r.events[:0]
	r.dropped = 0
	r.mu.Unlock()
}

// Segment is an interval during which Thread ran on Core.
type Segment struct {
	Core   int
	Thread kernel.ThreadID
	Start  time.Duration
	End    time.Duration
}

func (s Segment) Len() time.Duration { return s.End - s.Start }

// Segments rebuilds per-core run intervals from events. Threads still
// running at the last event are closed at end.
func Segments(events []Event, end time.Duration) []Segment {
	var segs []Segment
	open := map[int]Segment{}
	for _, e := range events {
		if e.Kind != EventSwitch {
			continue
		}
		if s, ok := open[e.Core]; ok {
			s.End = e.At
			segs = append(segs, s)
			delete(open, e.Core)
		}
		if e.To != 0 {
			open[e.Core] = Segment{Core: e.Core, Thread: e.To, Start: e.At}
		}
	}
	for core := 0; len(open) > 0; core++ {
		if s, ok := open[core]; ok {
			if end > s.Start {
				s.End = end
			} else {
				s.End = s.Start
			}
			segs = append(segs, s)
			delete(open, core)
		}
	}
	return segs
}
