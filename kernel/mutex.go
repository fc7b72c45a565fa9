package kernel

import "time"

// MutexMode fixes how a Mutex treats re-entry by its owner.
type MutexMode uint8

const (
	// MutexRecursive counts re-entry by the owner; each Lock needs an Unlock.
	MutexRecursive MutexMode = iota
	// MutexRaiseError fails re-entry by the owner with ErrDeadlock.
	MutexRaiseError
)

func (m MutexMode) String() string {
	if m == MutexRaiseError {
		return "raise-error"
	}
	return "recursive"
}

// Mutex is an owned lock. Unlock hands ownership directly to the first
// waiter, so a released mutex is never up for grabs while threads queue on
// it.
//
// A thread that exits or is killed while owning a mutex does not release it.
// OrphanedLocks reports such mutexes.
type Mutex struct {
	WaitableObject

	mode  MutexMode
	owner *Thread
	count int
}

// NewMutex creates a mutex with FIFO ownership transfer.
func (k *Kernel) NewMutex(name string, mode MutexMode) *Mutex {
	m := &Mutex{mode: mode}
	m.init(k, name, func(WaitMode) bool { return m.owner == nil })
	m.holder = func() *Thread { return m.owner }
	k.cs.disable()
	k.mutexes[m] = struct{}{}
	k.cs.restore()
	return m
}

func (m *Mutex) Mode() MutexMode { return m.mode }

// Owner returns the owning thread, or nil.
func (m *Mutex) Owner() *Thread {
	m.k.cs.disable()
	o := m.owner
	m.k.cs.restore()
	return o
}

// Count returns the owner's recursion depth.
func (m *Mutex) Count() int {
	m.k.cs.disable()
	n := m.count
	m.k.cs.restore()
	return n
}

func (m *Mutex) Lock(ctx *Context) Result { return m.LockDeadline(ctx, Forever) }

func (m *Mutex) LockTimeout(ctx *Context, d time.Duration) Result {
	m.k.cs.disable()
	deadline := m.k.deadlineAfter(d)
	m.k.cs.restore()
	return m.LockDeadline(ctx, deadline)
}

// TryLock takes the mutex only if that needs no waiting. It fails with
// ErrTimeout when another thread owns it.
func (m *Mutex) TryLock(ctx *Context) Result { return m.LockDeadline(ctx, 0) }

// LockDeadline blocks until the mutex is owned by the caller or kernel time
// reaches deadline. Mutexes belong to threads: interrupt context gets
// ErrInvalidArg.
func (m *Mutex) LockDeadline(ctx *Context, deadline time.Duration) Result {
	if ctx.thread == nil {
		return ErrInvalidArg
	}
	m.k.cs.disable()
	res := m.lockLocked(ctx, deadline)
	m.k.cs.restore()
	ctx.leave()
	return res
}

func (m *Mutex) lockLocked(ctx *Context, deadline time.Duration) Result {
	t := ctx.thread
	for {
		if m.deleted {
			return ErrDeleted
		}
		switch m.owner {
		case nil:
			m.owner = t
			m.count = 1
			return Success
		case t:
			if m.mode == MutexRaiseError {
				return ErrDeadlock
			}
			m.count++
			return Success
		}
		res := m.k.blockOn(ctx, &m.WaitableObject, WaitRead, deadline)
		if res == Success && m.owner == t {
			return Success
		}
		if res != Success && res != resRestart {
			return res
		}
	}
}

// Unlock drops one level of ownership.
func (m *Mutex) Unlock(ctx *Context) Result {
	t := ctx.thread
	if t == nil {
		return ErrInvalidArg
	}
	m.k.cs.disable()
	res := ErrNotOwner
	if m.owner == t {
		res = Success
		if m.count > 1 {
			m.count--
		} else {
			m.release()
		}
	}
	m.k.cs.restore()
	ctx.leave()
	if res == ErrNotOwner {
		m.k.log.Logf(LogSync, LogDebug, "%s: unlock by non-owner tid=%d", m.name, t.id)
	}
	return res
}

// release gives up ownership entirely. Called with the critical section
// held.
func (m *Mutex) release() {
	m.owner = nil
	m.count = 0
	if n := m.nextDirect(); n != nil {
		m.owner = n.thread
		m.count = 1
		m.k.wakeNode(n, Success)
	}
}

// Destroy wakes every waiter with ErrDeleted. Further operations fail with
// ErrDeleted.
func (m *Mutex) Destroy(ctx *Context) {
	m.k.cs.disable()
	m.destroy()
	delete(m.k.mutexes, m)
	m.k.cs.restore()
	ctx.leave()
}
