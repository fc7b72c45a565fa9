package kernel

import (
	"time"

	"golang.org/x/exp/slices"
)

// ThreadInfo is a point-in-time copy of one thread's control block.
type ThreadInfo struct {
	ID        ThreadID
	Name      string
	PID       ProcessID
	Priority  int
	Core      int
	State     ThreadState
	Detached  bool
	WaitingOn string
	Pending   SigSet
	Blocked   SigSet
	RunTicks  uint64
	Switches  uint64
}

// CoreInfo is a point-in-time copy of one core's scheduler state.
type CoreInfo struct {
	ID        int
	Current   ThreadID
	Ready     int
	Switches  uint64
	IdleTicks uint64
}

// Snapshot is a consistent view of the scheduler.
type Snapshot struct {
	Now     time.Duration
	Ticks   uint64
	Halted  bool
	Panic   bool
	Cores   []CoreInfo
	Threads []ThreadInfo
}

// Snapshot copies the scheduler state in one critical section. Threads are
// ordered by ID.
func (k *Kernel) Snapshot() Snapshot {
	k.cs.disable()
	s := Snapshot{
		Now:    k.now,
		Ticks:  k.ticks,
		Halted: k.halted,
		Panic:  k.panicMode.Load(),
	}
	for _, c := range k.cores {
		ci := CoreInfo{ID: c.id, Ready: c.ready.len(), Switches: c.switches, IdleTicks: c.idleTicks}
		if c.current != nil {
			ci.Current = c.current.id
		}
		s.Cores = append(s.Cores, ci)
	}
	for _, t := range k.threads {
		ti := ThreadInfo{
			ID:       t.id,
			Name:     t.name,
			PID:      t.proc.pid,
			Priority: t.prio,
			Core:     t.core,
			State:    t.state,
			Detached: t.detached,
			Pending:  t.sigPending,
			Blocked:  t.sigBlocked,
			RunTicks: t.runTicks,
			Switches: t.switches,
		}
		if n := t.waitNode; n != nil {
			switch {
			case n.obj != nil:
				ti.WaitingOn = n.obj.name
			case n.deadline != Forever:
				ti.WaitingOn = "sleep"
			}
		}
		s.Threads = append(s.Threads, ti)
	}
	k.cs.restore()
	slices.SortFunc(s.Threads, func(a, b ThreadInfo) bool { return a.ID < b.ID })
	return s
}

// Threads returns every live or zombie thread ordered by ID.
func (k *Kernel) Threads() []*Thread {
	k.cs.disable()
	out := make([]*Thread, 0, len(k.threads))
	for _, t := range k.threads {
		out = append(out, t)
	}
	k.cs.restore()
	slices.SortFunc(out, func(a, b *Thread) bool { return a.id < b.id })
	return out
}
