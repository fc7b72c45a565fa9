package kernel

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestStartRunsHighestPriorityFirst(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	var log eventLog
	spawn(t, k, "low", 1, func(ctx *Context) { log.add("low") })
	spawn(t, k, "high", 5, func(ctx *Context) { log.add("high") })
	spawn(t, k, "mid", 3, func(ctx *Context) { log.add("mid") })
	k.Start()
	waitIdle(t, k)
	log.expect(t, "high", "mid", "low")
}

func TestWakeupPreemptsLowerPriority(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	sem := k.NewSemaphore("sem", 0)
	var log eventLog
	spawn(t, k, "t5", 5, func(ctx *Context) {
		log.add("5:wait")
		if res := sem.Acquire(ctx); res != Success {
			log.add("5:%v", res)
			return
		}
		log.add("5:woke")
	})
	spawn(t, k, "t3", 3, func(ctx *Context) {
		log.add("3:release")
		sem.Release(ctx)
		log.add("3:after")
	})
	k.Start()
	waitIdle(t, k)
	log.expect(t, "5:wait", "3:release", "5:woke", "3:after")
}

func TestYieldRoundRobin(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	var log eventLog
	for _, name := range []string{"A", "B"} {
		name := name
		spawn(t, k, name, 1, func(ctx *Context) {
			for i := 0; i < 3; i++ {
				log.add("%s%d", name, i)
				ctx.Yield()
			}
		})
	}
	k.Start()
	waitIdle(t, k)
	log.expect(t, "A0", "B0", "A1", "B1", "A2", "B2")
}

func TestTimeSliceSharesCPU(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QuantumTicks = 2
	k := newTestKernel(t, cfg)
	var stop atomic.Bool
	var counts [2]atomic.Int64
	for i := range counts {
		i := i
		spawn(t, k, "spin", 1, func(ctx *Context) {
			for !stop.Load() {
				counts[i].Add(1)
				ctx.Checkpoint()
			}
		})
	}
	k.Start()
	deadline := time.Now().Add(testTimeout)
	for counts[1].Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("second thread never got a time slice")
		}
		k.Tick()
		time.Sleep(200 * time.Microsecond)
	}
	stop.Store(true)
	waitIdle(t, k)
	if counts[0].Load() == 0 {
		t.Fatal("first thread never ran")
	}
}

func TestSleepWakesAtDeadline(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	var (
		res    Result
		wokeAt time.Duration
	)
	th := spawn(t, k, "sleeper", 1, func(ctx *Context) {
		res = ctx.Sleep(5 * time.Millisecond)
		wokeAt = ctx.Now()
	})
	k.Start()
	for i := 0; i < 4; i++ {
		waitIdle(t, k)
		k.Tick()
	}
	waitIdle(t, k)
	if got := th.State(); got != ThreadBlocked {
		t.Fatalf("State() after 4 ticks = %v, want %v", got, ThreadBlocked)
	}
	k.Tick()
	waitIdle(t, k)
	if got := th.State(); got != ThreadZombie {
		t.Fatalf("State() after 5 ticks = %v, want %v", got, ThreadZombie)
	}
	if res != Success {
		t.Fatalf("Sleep() = %v, want %v", res, Success)
	}
	if wokeAt < 5*time.Millisecond {
		t.Fatalf("woke at %v, before the 5ms deadline", wokeAt)
	}
}

func TestJoinReturnsExitCode(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	var (
		fastCode, slowCode int
		fastRes, slowRes   Result
		fastID             ThreadID
	)
	spawn(t, k, "parent", 2, func(ctx *Context) {
		fast, _ := ctx.Spawn(ThreadSpec{Name: "fast", Priority: 3, Entry: func(ctx *Context) { ctx.Exit(7) }})
		fastID = fast.ID()
		fastCode, fastRes = ctx.Join(fast)

		slow, _ := ctx.Spawn(ThreadSpec{Name: "slow", Priority: 1, Entry: func(ctx *Context) { ctx.Exit(9) }})
		slowCode, slowRes = ctx.Join(slow)
	})
	k.Start()
	waitIdle(t, k)
	if fastRes != Success || fastCode != 7 {
		t.Fatalf("Join(fast) = %d, %v, want 7, %v", fastCode, fastRes, Success)
	}
	if slowRes != Success || slowCode != 9 {
		t.Fatalf("Join(slow) = %d, %v, want 9, %v", slowCode, slowRes, Success)
	}
	if k.Thread(fastID) != nil {
		t.Fatal("joined thread still in the thread table")
	}
}

func TestJoinSelfAndDetached(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	var selfRes, detachedRes Result
	spawn(t, k, "main", 2, func(ctx *Context) {
		_, selfRes = ctx.Join(ctx.Thread())
		d, _ := ctx.Spawn(ThreadSpec{Name: "d", Priority: 1, Detached: true, Entry: func(ctx *Context) {}})
		_, detachedRes = ctx.Join(d)
	})
	k.Start()
	waitIdle(t, k)
	if selfRes != ErrDeadlock {
		t.Fatalf("Join(self) = %v, want %v", selfRes, ErrDeadlock)
	}
	if detachedRes != ErrInvalidArg {
		t.Fatalf("Join(detached) = %v, want %v", detachedRes, ErrInvalidArg)
	}
}

func TestDetachedThreadIsReaped(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	th, res := k.Spawn(ThreadSpec{Name: "d", Priority: 1, Detached: true, Entry: func(ctx *Context) {}})
	if res != Success {
		t.Fatalf("Spawn() = %v", res)
	}
	k.Start()
	waitIdle(t, k)
	if k.Thread(th.ID()) != nil {
		t.Fatal("detached thread not reaped on exit")
	}
}

func TestSetPriorityPreemptsCaller(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	var log eventLog
	var b *Thread
	spawn(t, k, "a", 1, func(ctx *Context) {
		log.add("a:before")
		ctx.SetPriority(b, 3)
		log.add("a:after")
	})
	b = spawn(t, k, "b", 1, func(ctx *Context) { log.add("b") })
	k.Start()
	waitIdle(t, k)
	log.expect(t, "a:before", "b", "a:after")
}

func TestInterruptContextNeverBlocks(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	isr := k.InterruptContext()
	sem := k.NewSemaphore("sem", 0)
	m := k.NewMutex("m", MutexRaiseError)

	if res := sem.Acquire(isr); res != ErrWouldBlock {
		t.Fatalf("Acquire(isr) = %v, want %v", res, ErrWouldBlock)
	}
	if res := sem.TryAcquire(isr); res != ErrTimeout {
		t.Fatalf("TryAcquire(isr) = %v, want %v", res, ErrTimeout)
	}
	if res := m.Lock(isr); res != ErrInvalidArg {
		t.Fatalf("Lock(isr) = %v, want %v", res, ErrInvalidArg)
	}
	if res := isr.Sleep(time.Millisecond); res != ErrWouldBlock {
		t.Fatalf("Sleep(isr) = %v, want %v", res, ErrWouldBlock)
	}
	if res := sem.Release(isr); res != Success {
		t.Fatalf("Release(isr) = %v, want %v", res, Success)
	}
	if got := sem.Count(); got != 1 {
		t.Fatalf("Count() = %d, want 1", got)
	}
}

func TestSpawnValidation(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	entry := func(ctx *Context) {}
	cases := []ThreadSpec{
		{Name: "nil entry", Priority: 1},
		{Name: "prio", Priority: MaxPriorities, Entry: entry},
		{Name: "core", Priority: 1, Core: 1, Entry: entry},
	}
	for _, spec := range cases {
		if _, res := k.Spawn(spec); res != ErrInvalidArg {
			t.Fatalf("Spawn(%s) = %v, want %v", spec.Name, res, ErrInvalidArg)
		}
	}
}

func TestThreadPanicHaltsKernel(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	got := make(chan PanicInfo, 1)
	k.SetPanicHandler(func(info PanicInfo) { got <- info })
	sem := k.NewSemaphore("never", 0)
	waiter := spawn(t, k, "waiter", 1, func(ctx *Context) { sem.Acquire(ctx) })
	bad := spawn(t, k, "bad", 2, func(ctx *Context) {
		ctx.Sleep(time.Millisecond)
		panic("boom")
	})
	k.Start()
	waitIdle(t, k)
	k.Tick()

	var info PanicInfo
	select {
	case info = <-got:
	case <-time.After(testTimeout):
		t.Fatal("panic handler not called")
	}
	if info.Value != "boom" || info.ThreadID != bad.ID() {
		t.Fatalf("PanicInfo = %+v, want value boom from tid %d", info, bad.ID())
	}
	if len(info.Stack) == 0 {
		t.Fatal("PanicInfo.Stack is empty")
	}
	select {
	case <-k.Done():
	case <-time.After(testTimeout):
		t.Fatal("kernel did not halt")
	}
	if !k.InPanicMode() {
		t.Fatal("InPanicMode() = false, want true")
	}
	waitState(t, waiter, ThreadZombie)
	if _, res := k.Spawn(ThreadSpec{Priority: 1, Entry: func(*Context) {}}); res != ErrHalted {
		t.Fatalf("Spawn() after halt = %v, want %v", res, ErrHalted)
	}
}

func TestSchedulingDestroyedThreadPanics(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	dead := &Thread{destroyed: true}
	k.cs.disable()
	defer func() {
		r := recover()
		k.cs.restore()
		if _, ok := r.(assertion); !ok {
			t.Fatalf("recover() = %v, want a kernel assertion", r)
		}
	}()
	k.makeReady(dead, false)
}

func TestPanicInsideCriticalSectionHalts(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	got := make(chan PanicInfo, 1)
	k.SetPanicHandler(func(info PanicInfo) { got <- info })
	spawn(t, k, "bad", 1, func(ctx *Context) {
		ctx.k.cs.disable()
		panic("inside critical section")
	})
	k.Start()

	select {
	case info := <-got:
		if info.Value != "inside critical section" {
			t.Fatalf("PanicInfo.Value = %v", info.Value)
		}
	case <-time.After(testTimeout):
		t.Fatal("panic handler not called")
	}
	done := make(chan struct{})
	go func() {
		k.Halt()
		k.Tick()
		k.Snapshot()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(testTimeout):
		t.Fatal("critical section still held after the panic")
	}
}

func TestFatalLeavesOtherHoldersLock(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	k.cs.disable()
	done := make(chan struct{})
	go func() {
		k.fatal(nil, assertion("raised outside the critical section"))
		close(done)
	}()
	deadline := time.Now().Add(testTimeout)
	for !k.InPanicMode() {
		if time.Now().After(deadline) {
			k.cs.restore()
			t.Fatal("fatal never entered panic mode")
		}
		time.Sleep(50 * time.Microsecond)
	}
	if !k.cs.heldByCaller() {
		t.Fatal("fatal released a critical section it did not hold")
	}
	k.cs.restore()
	select {
	case <-done:
	case <-time.After(testTimeout):
		t.Fatal("fatal did not finish after the lock was released")
	}
	if !k.Halted() {
		t.Fatal("kernel not halted")
	}
}
