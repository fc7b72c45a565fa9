package kernel

import (
	"sync"
	"sync/atomic"
)

// irqLock is the kernel critical section.
//
// Holding it stands for "interrupts masked on every core": no interrupt
// handler, tick or other core can observe or mutate scheduler state until
// restore. It is never held while a thread is parked.
type irqLock struct {
	mu sync.Mutex
	// holder is the goroutine ID of the current holder, 0 when free.
	holder atomic.Uint64
}

func (l *irqLock) disable() {
	id := curGoroutineID()
	l.mu.Lock()
	l.holder.Store(id)
}

func (l *irqLock) restore() {
	if l.holder.Load() == 0 {
		panic(assertion("critical section restored while not held"))
	}
	l.holder.Store(0)
	l.mu.Unlock()
}

// heldByCaller reports whether the calling goroutine holds the lock.
func (l *irqLock) heldByCaller() bool {
	h := l.holder.Load()
	return h != 0 && h == curGoroutineID()
}
