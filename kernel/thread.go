package kernel

import (
	"runtime"
	"time"
)

type ThreadID int32

// ThreadState is the scheduler state of a thread.
type ThreadState uint8

const (
	ThreadReady ThreadState = iota
	ThreadRunning
	ThreadBlocked
	ThreadStopped
	ThreadZombie
)

func (s ThreadState) String() string {
	switch s {
	case ThreadReady:
		return "ready"
	case ThreadRunning:
		return "running"
	case ThreadBlocked:
		return "blocked"
	case ThreadStopped:
		return "stopped"
	case ThreadZombie:
		return "zombie"
	default:
		return "unknown"
	}
}

// ThreadFunc is a thread entry point.
type ThreadFunc func(ctx *Context)

// ThreadSpec describes a thread to spawn.
type ThreadSpec struct {
	Name     string
	Priority int
	// Core pins the thread to one core. Threads never migrate.
	Core     int
	Detached bool
	// Process owns the thread; nil selects the kernel process.
	Process *Process
	Entry   ThreadFunc
}

// Thread is a kernel thread control block.
//
// A thread is itself waitable: it becomes readable when it exits, which is
// what Join and wait groups observe.
type Thread struct {
	WaitableObject

	id       ThreadID
	proc     *Process
	prio     int
	core     int
	detached bool
	entry    ThreadFunc
	ctx      Context

	state     ThreadState
	destroyed bool
	exitCode  int
	termSig   Signal

	resume   chan struct{}
	waitNode *WaitNode

	sigPending SigSet
	sigBlocked SigSet
	sigActions [NumSignals + 1]SigAction
	sigFrames  []SignalFrame

	readyAt  time.Duration
	runTicks uint64
	switches uint64
}

func (t *Thread) ID() ThreadID { return t.id }

func (t *Thread) Process() *Process { return t.proc }

func (t *Thread) Core() int { return t.core }

// Priority returns the current priority.
func (t *Thread) Priority() int {
	t.k.cs.disable()
	p := t.prio
	t.k.cs.restore()
	return p
}

// State returns the current scheduler state.
func (t *Thread) State() ThreadState {
	t.k.cs.disable()
	s := t.state
	t.k.cs.restore()
	return s
}

// ExitCode returns the exit code of a zombie thread. Threads terminated by a
// signal exit with 128+signal.
func (t *Thread) ExitCode() (int, bool) {
	t.k.cs.disable()
	defer t.k.cs.restore()
	if t.state != ThreadZombie {
		return 0, false
	}
	return t.exitCode, true
}

// TermSignal returns the signal that terminated the thread, or 0.
func (t *Thread) TermSignal() Signal {
	t.k.cs.disable()
	s := t.termSig
	t.k.cs.restore()
	return s
}

// Pending returns the pending signal set.
func (t *Thread) Pending() SigSet {
	t.k.cs.disable()
	s := t.sigPending
	t.k.cs.restore()
	return s
}

// SignalDepth returns the number of signal frames currently stacked.
func (t *Thread) SignalDepth() int {
	t.k.cs.disable()
	n := len(t.sigFrames)
	t.k.cs.restore()
	return n
}

// Spawn creates a thread in the kernel process, or in spec.Process.
func (k *Kernel) Spawn(spec ThreadSpec) (*Thread, Result) {
	return k.spawn(spec, nil)
}

func (k *Kernel) spawn(spec ThreadSpec, parent *Thread) (*Thread, Result) {
	if spec.Entry == nil || spec.Priority < 0 || spec.Priority >= k.cfg.NumPriorities {
		return nil, ErrInvalidArg
	}
	if spec.Core < 0 || spec.Core >= len(k.cores) {
		return nil, ErrInvalidArg
	}

	k.cs.disable()
	defer k.cs.restore()
	if k.halted {
		return nil, ErrHalted
	}
	proc := spec.Process
	if proc == nil {
		proc = k.kproc
		if parent != nil {
			proc = parent.proc
		}
	}
	if _, ok := k.procs[proc.pid]; !ok {
		return nil, ErrNoSuchProcess
	}

	t := &Thread{
		id:       k.nextTID,
		proc:     proc,
		prio:     spec.Priority,
		core:     spec.Core,
		detached: spec.Detached,
		entry:    spec.Entry,
		state:    ThreadBlocked,
		resume:   make(chan struct{}, 1),
	}
	k.nextTID++
	name := spec.Name
	if name == "" {
		name = "thread"
	}
	t.init(k, name, func(WaitMode) bool { return t.state == ThreadZombie })
	t.holder = func() *Thread { return t }
	t.ctx = Context{k: k, thread: t}
	if parent != nil {
		t.sigBlocked = parent.sigBlocked
	}
	k.threads[t.id] = t
	proc.threads = append(proc.threads, t)

	go t.main()
	k.makeReady(t, false)
	k.log.Logf(LogSched, LogDebug, "spawn %s tid=%d pid=%d prio=%d core=%d", name, t.id, proc.pid, t.prio, t.core)
	return t, Success
}

func (t *Thread) main() {
	defer t.k.threadExit(t)
	t.k.waitResume(t)
	t.ctx.leave()
	t.entry(&t.ctx)
}

func unwindThread() {
	runtime.Goexit()
}

// threadExit runs on the thread's own goroutine as it unwinds, whether the
// entry returned, Exit was called, a signal terminated it or it panicked.
func (k *Kernel) threadExit(t *Thread) {
	if r := recover(); r != nil {
		k.fatal(t, r)
	}

	k.cs.disable()
	if t.waitNode != nil {
		k.cancelNode(t.waitNode)
	}
	c := k.cores[t.core]
	switch {
	case c.current == t:
		t.state = ThreadZombie
		k.switchOut(c)
	case t.state == ThreadReady:
		c.ready.remove(t)
	}
	t.state = ThreadZombie
	t.sigPending = 0
	k.trace(func(tr Tracer) { tr.ThreadExit(t.id, k.now) })
	t.notifyAll(WaitReadWrite, Success)
	if t.detached {
		k.reap(t)
	}
	code, sig := t.exitCode, t.termSig
	k.cs.restore()

	if sig != 0 {
		k.log.Logf(LogSched, LogInfo, "%s tid=%d killed by %v", t.name, t.id, sig)
	} else {
		k.log.Logf(LogSched, LogDebug, "%s tid=%d exited code=%d", t.name, t.id, code)
	}
}

// reap frees a zombie. Called with the critical section held.
func (k *Kernel) reap(t *Thread) {
	if t.destroyed {
		return
	}
	t.destroyed = true
	delete(k.threads, t.id)
	p := t.proc
	for i, pt := range p.threads {
		if pt == t {
			p.threads = append(p.threads[:i], p.threads[i+1:]...)
			break
		}
	}
	if len(p.threads) == 0 && p != k.kproc {
		delete(k.procs, p.pid)
	}
	t.destroy()
}

// Thread looks up a live or zombie thread by ID.
func (k *Kernel) Thread(id ThreadID) *Thread {
	k.cs.disable()
	t := k.threads[id]
	k.cs.restore()
	return t
}
