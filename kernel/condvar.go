package kernel

import "time"

// ConditionVariable is a monitor condition used together with a Mutex.
type ConditionVariable struct {
	WaitableObject
}

func (k *Kernel) NewConditionVariable(name string) *ConditionVariable {
	cv := &ConditionVariable{}
	cv.init(k, name, nil)
	return cv
}

func (cv *ConditionVariable) Wait(ctx *Context, m *Mutex) Result {
	return cv.WaitDeadline(ctx, m, Forever)
}

func (cv *ConditionVariable) WaitTimeout(ctx *Context, m *Mutex, d time.Duration) Result {
	cv.k.cs.disable()
	deadline := cv.k.deadlineAfter(d)
	cv.k.cs.restore()
	return cv.WaitDeadline(ctx, m, deadline)
}

// WaitDeadline queues the caller, releases m completely and blocks, all in
// one critical section, so a Signal sent by the next owner of m cannot be
// missed. m is re-acquired at its previous recursion depth before returning,
// whatever the wait result. A handler-interrupted wait that asked for
// SA_RESTART returns Success, as a spurious wakeup.
func (cv *ConditionVariable) WaitDeadline(ctx *Context, m *Mutex, deadline time.Duration) Result {
	t := ctx.thread
	if t == nil {
		return ErrWouldBlock
	}
	if m == nil {
		return ErrInvalidArg
	}
	k := cv.k
	k.cs.disable()
	if m.owner != t {
		k.cs.restore()
		return ErrNotOwner
	}
	if cv.deleted {
		k.cs.restore()
		return ErrDeleted
	}
	depth := m.count
	n := newWaitNode(t, WaitRead)
	cv.insert(n)
	m.release()

	res := k.blockNode(ctx, n, deadline)
	if res == resRestart {
		res = Success
	}
	for {
		r := m.lockLocked(ctx, Forever)
		if r == Success {
			m.count = depth
			break
		}
		if r != ErrInterrupted {
			res = r
			break
		}
	}
	k.cs.restore()
	ctx.leave()
	return res
}

// Signal wakes the longest-waiting thread.
func (cv *ConditionVariable) Signal(ctx *Context) {
	cv.k.cs.disable()
	if n := cv.nextDirect(); n != nil {
		cv.k.wakeNode(n, Success)
	}
	cv.k.cs.restore()
	ctx.leave()
}

// Broadcast wakes every waiting thread.
func (cv *ConditionVariable) Broadcast(ctx *Context) {
	cv.k.cs.disable()
	cv.notifyAll(WaitReadWrite, Success)
	cv.k.cs.restore()
	ctx.leave()
}

// Destroy wakes every waiter with ErrDeleted.
func (cv *ConditionVariable) Destroy(ctx *Context) {
	cv.k.cs.disable()
	cv.destroy()
	cv.k.cs.restore()
	ctx.leave()
}
