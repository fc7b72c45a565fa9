package kernel

import (
	"runtime"
	"time"
)

// Context is the caller's identity for every kernel operation: the running
// thread, or interrupt context when Thread returns nil.
type Context struct {
	k      *Kernel
	thread *Thread
}

func (c *Context) Kernel() *Kernel { return c.k }

// Thread returns the calling thread, or nil in interrupt context.
func (c *Context) Thread() *Thread { return c.thread }

// InInterrupt reports whether the caller runs in interrupt context, where
// blocking is not allowed.
func (c *Context) InInterrupt() bool { return c.thread == nil }

// Now returns kernel time since boot.
func (c *Context) Now() time.Duration { return c.k.Now() }

// leave is the return-from-kernel checkpoint: pending preemption takes
// effect and deliverable signals run.
func (c *Context) leave() {
	t := c.thread
	if t == nil {
		return
	}
	if c.k.Halted() {
		unwindThread()
	}
	c.k.preempt(t)
	c.deliverSignals(false)
}

// Checkpoint lets pending preemption and signal delivery happen. Threads
// that compute for long stretches without other kernel calls should call it
// periodically.
func (c *Context) Checkpoint() { c.leave() }

// Yield moves the calling thread behind every other ready thread of the same
// priority.
func (c *Context) Yield() {
	t := c.thread
	if t == nil {
		return
	}
	k := c.k
	k.cs.disable()
	co := k.cores[t.core]
	if co.current == t && co.ready.highest() >= t.prio {
		t.state = ThreadReady
		t.readyAt = k.now
		co.ready.push(t, false)
		k.park(t)
	}
	k.cs.restore()
	c.leave()
}

// Sleep blocks for at least d of kernel time.
func (c *Context) Sleep(d time.Duration) Result {
	if c.thread == nil {
		return ErrWouldBlock
	}
	c.k.cs.disable()
	deadline := c.k.deadlineAfter(d)
	c.k.cs.restore()
	return c.SleepUntil(deadline)
}

// SleepUntil blocks until kernel time reaches deadline. A signal handler
// without SA_RESTART cuts the sleep short with ErrInterrupted.
func (c *Context) SleepUntil(deadline time.Duration) Result {
	if c.thread == nil {
		return ErrWouldBlock
	}
	k := c.k
	k.cs.disable()
	res := resRestart
	for res == resRestart {
		res = k.blockOn(c, nil, 0, deadline)
	}
	k.cs.restore()
	if res == ErrTimeout {
		res = Success
	}
	c.leave()
	return res
}

// Exit terminates the calling thread with code. Mutexes it owns stay
// locked.
func (c *Context) Exit(code int) {
	t := c.thread
	if t == nil {
		return
	}
	c.k.cs.disable()
	t.exitCode = code
	c.k.cs.restore()
	runtime.Goexit()
}

// Spawn creates a thread in the caller's process that inherits the caller's
// signal mask.
func (c *Context) Spawn(spec ThreadSpec) (*Thread, Result) {
	t, res := c.k.spawn(spec, c.thread)
	c.leave()
	return t, res
}

// Join waits for t to exit, frees it and returns its exit code.
func (c *Context) Join(t *Thread) (int, Result) {
	if c.thread == nil {
		return 0, ErrWouldBlock
	}
	if t == nil {
		return 0, ErrInvalidArg
	}
	if t == c.thread {
		return 0, ErrDeadlock
	}
	k := c.k
	k.cs.disable()
	var (
		code int
		res  Result
	)
	for {
		if t.destroyed {
			res = ErrNoSuchThread
			break
		}
		if t.detached {
			res = ErrInvalidArg
			break
		}
		if t.state == ThreadZombie {
			code = t.exitCode
			k.reap(t)
			res = Success
			break
		}
		res = k.blockOn(c, &t.WaitableObject, WaitRead, Forever)
		if res == ErrDeleted {
			res = ErrNoSuchThread
			break
		}
		if res != Success && res != resRestart {
			break
		}
	}
	k.cs.restore()
	c.leave()
	return code, res
}

// Detach marks t to be freed as soon as it exits. Detaching a zombie frees
// it immediately.
func (c *Context) Detach(t *Thread) Result {
	if t == nil {
		return ErrInvalidArg
	}
	k := c.k
	k.cs.disable()
	res := Success
	switch {
	case t.destroyed:
		res = ErrNoSuchThread
	case t.detached:
		res = ErrInvalidArg
	default:
		t.detached = true
		if t.state == ThreadZombie {
			k.reap(t)
		}
	}
	k.cs.restore()
	c.leave()
	return res
}

// SetPriority changes t's priority, requeueing it wherever it waits.
func (c *Context) SetPriority(t *Thread, prio int) Result {
	k := c.k
	if t == nil || prio < 0 || prio >= k.cfg.NumPriorities {
		return ErrInvalidArg
	}
	k.cs.disable()
	res := k.setPriority(t, prio)
	k.cs.restore()
	c.leave()
	return res
}

func (k *Kernel) setPriority(t *Thread, prio int) Result {
	if t.destroyed || t.state == ThreadZombie {
		return ErrNoSuchThread
	}
	if t.prio == prio {
		return Success
	}
	co := k.cores[t.core]
	switch t.state {
	case ThreadReady:
		co.ready.remove(t)
		t.prio = prio
		co.ready.push(t, false)
		if cur := co.current; cur != nil && prio > cur.prio {
			co.needResched = true
		}
	case ThreadRunning:
		t.prio = prio
		if co.ready.highest() > prio {
			co.needResched = true
		}
	case ThreadBlocked:
		t.prio = prio
		if n := t.waitNode; n != nil {
			k.requeue(n, prio)
		}
	default:
		t.prio = prio
	}
	return Success
}

// requeue moves a waiting node, and its group registrations, to the slot
// matching the waiter's new priority.
func (k *Kernel) requeue(n *WaitNode, prio int) {
	nodes := append([]*WaitNode{n}, n.members...)
	for _, m := range nodes {
		m.prio = prio
		if m.obj == nil || m.obj.order != OrderPriority || m.list == nil {
			continue
		}
		l := m.list
		l.Remove(m)
		l.InsertByPriority(m)
	}
}
