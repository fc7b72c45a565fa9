package kernel

import (
	"sync"
	"testing"
	"time"
)

func TestSemaphoreFIFOWakeOrder(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	sem := k.NewSemaphore("sem", 0)
	var log eventLog
	for _, name := range []string{"T1", "T2", "T3", "T4"} {
		name := name
		spawn(t, k, name, 2, func(ctx *Context) {
			if res := sem.Acquire(ctx); res != Success {
				log.add("%s:%v", name, res)
				return
			}
			log.add(name)
		})
	}
	spawn(t, k, "releaser", 1, func(ctx *Context) {
		for i := 0; i < 4; i++ {
			sem.Release(ctx)
		}
	})
	k.Start()
	waitIdle(t, k)
	log.expect(t, "T1", "T2", "T3", "T4")
	if got := sem.Count(); got != 0 {
		t.Fatalf("Count() = %d, want 0", got)
	}
}

func TestSemaphoreCountAndTryAcquire(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	isr := k.InterruptContext()
	sem := k.NewSemaphore("sem", 2)
	for i := 0; i < 2; i++ {
		if res := sem.TryAcquire(isr); res != Success {
			t.Fatalf("TryAcquire() #%d = %v, want %v", i, res, Success)
		}
	}
	if res := sem.TryAcquire(isr); res != ErrTimeout {
		t.Fatalf("TryAcquire() on empty semaphore = %v, want %v", res, ErrTimeout)
	}
	sem.Release(isr)
	if got := sem.Count(); got != 1 {
		t.Fatalf("Count() = %d, want 1", got)
	}
	if neg := k.NewSemaphore("neg", -3); neg.Count() != 0 {
		t.Fatalf("NewSemaphore(-3).Count() = %d, want 0", neg.Count())
	}
}

func TestSemaphoreAcquireTimeout(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	sem := k.NewSemaphore("sem", 0)
	var (
		res    Result
		timeAt time.Duration
	)
	th := spawn(t, k, "waiter", 1, func(ctx *Context) {
		res = sem.AcquireTimeout(ctx, 2*time.Millisecond)
		timeAt = ctx.Now()
	})
	k.Start()
	tickUntil(t, k, 5, func() bool { return th.State() == ThreadZombie })
	if res != ErrTimeout {
		t.Fatalf("AcquireTimeout() = %v, want %v", res, ErrTimeout)
	}
	if timeAt != 2*time.Millisecond {
		t.Fatalf("timed out at %v, want 2ms", timeAt)
	}
	if n := sem.WaiterCount(); n != 0 {
		t.Fatalf("WaiterCount() = %d after timeout, want 0", n)
	}
}

func TestSemaphoreNoLostWakeups(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cores = 2
	k := newTestKernel(t, cfg)
	sem := k.NewSemaphore("sem", 0)
	const n = 200
	var got [2]int
	for c := 0; c < 2; c++ {
		c := c
		_, res := k.Spawn(ThreadSpec{Name: "consumer", Priority: 1, Core: c, Entry: func(ctx *Context) {
			for i := 0; i < n/2; i++ {
				if sem.Acquire(ctx) != Success {
					return
				}
				got[c]++
			}
		}})
		if res != Success {
			t.Fatalf("Spawn() = %v", res)
		}
	}
	k.Start()

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			isr := k.InterruptContext()
			for i := 0; i < n/4; i++ {
				sem.Release(isr)
			}
		}()
	}
	wg.Wait()
	waitIdle(t, k)
	if got[0]+got[1] != n {
		t.Fatalf("consumed %d permits, want %d", got[0]+got[1], n)
	}
	if c := sem.Count(); c != 0 {
		t.Fatalf("Count() = %d, want 0", c)
	}
}

func TestSemaphoreDestroyWakesWaiters(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	sem := k.NewSemaphore("sem", 0)
	var results [2]Result
	for i := range results {
		i := i
		spawn(t, k, "waiter", 1, func(ctx *Context) { results[i] = sem.Acquire(ctx) })
	}
	k.Start()
	waitIdle(t, k)
	isr := k.InterruptContext()
	sem.Destroy(isr)
	waitIdle(t, k)
	for i, res := range results {
		if res != ErrDeleted {
			t.Fatalf("waiter %d Acquire() = %v, want %v", i, res, ErrDeleted)
		}
	}
	if res := sem.Release(isr); res != ErrDeleted {
		t.Fatalf("Release() after Destroy = %v, want %v", res, ErrDeleted)
	}
	if res := sem.TryAcquire(isr); res != ErrDeleted {
		t.Fatalf("TryAcquire() after Destroy = %v, want %v", res, ErrDeleted)
	}
}
