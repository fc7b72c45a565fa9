package kernel

import "time"

// Semaphore is a counting semaphore. The count never drops below zero and
// has no upper bound.
type Semaphore struct {
	WaitableObject

	count int
}

func (k *Kernel) NewSemaphore(name string, count int) *Semaphore {
	if count < 0 {
		count = 0
	}
	s := &Semaphore{count: count}
	s.init(k, name, func(WaitMode) bool { return s.count > 0 })
	return s
}

// Count returns the number of available permits.
func (s *Semaphore) Count() int {
	s.k.cs.disable()
	n := s.count
	s.k.cs.restore()
	return n
}

func (s *Semaphore) Acquire(ctx *Context) Result { return s.AcquireDeadline(ctx, Forever) }

func (s *Semaphore) AcquireTimeout(ctx *Context, d time.Duration) Result {
	s.k.cs.disable()
	deadline := s.k.deadlineAfter(d)
	s.k.cs.restore()
	return s.AcquireDeadline(ctx, deadline)
}

// TryAcquire takes a permit if one is available, failing with ErrTimeout
// otherwise. It is safe in interrupt context.
func (s *Semaphore) TryAcquire(ctx *Context) Result { return s.AcquireDeadline(ctx, 0) }

// AcquireDeadline takes one permit, blocking until one is handed over or
// kernel time reaches deadline.
func (s *Semaphore) AcquireDeadline(ctx *Context, deadline time.Duration) Result {
	k := s.k
	k.cs.disable()
	res := resRestart
	for res == resRestart {
		switch {
		case s.deleted:
			res = ErrDeleted
		case s.count > 0:
			s.count--
			res = Success
		case deadline != Forever && deadline <= k.now:
			res = ErrTimeout
		case ctx.thread == nil:
			res = ErrWouldBlock
		default:
			// Success means Release handed this thread its permit.
			res = k.blockOn(ctx, &s.WaitableObject, WaitRead, deadline)
		}
	}
	k.cs.restore()
	ctx.leave()
	return res
}

// Release returns one permit. With a thread waiting, the permit goes
// straight to it and the count is unchanged.
func (s *Semaphore) Release(ctx *Context) Result {
	k := s.k
	k.cs.disable()
	if s.deleted {
		k.cs.restore()
		return ErrDeleted
	}
	if n := s.nextDirect(); n != nil {
		k.wakeNode(n, Success)
	} else {
		s.count++
	}
	k.cs.restore()
	ctx.leave()
	return Success
}

// Destroy wakes every waiter with ErrDeleted.
func (s *Semaphore) Destroy(ctx *Context) {
	s.k.cs.disable()
	s.destroy()
	s.k.cs.restore()
	ctx.leave()
}
