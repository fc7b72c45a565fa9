package kernel

import (
	"strings"
	"sync"
	"testing"
	"time"
)

type lineCollector struct {
	mu    sync.Mutex
	lines []string
}

func (c *lineCollector) WriteLineString(s string) {
	c.mu.Lock()
	c.lines = append(c.lines, s)
	c.mu.Unlock()
}

func (c *lineCollector) contains(sub string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.lines {
		if strings.Contains(l, sub) {
			return true
		}
	}
	return false
}

// abba leaves a and b deadlocked on two mutexes taken in opposite order.
func abba(t *testing.T, k *Kernel) (a, b *Thread, m1, m2 *Mutex) {
	t.Helper()
	m1 = k.NewMutex("m1", MutexRaiseError)
	m2 = k.NewMutex("m2", MutexRaiseError)
	a = spawn(t, k, "a", 2, func(ctx *Context) {
		m1.Lock(ctx)
		ctx.Sleep(time.Millisecond)
		m2.Lock(ctx)
	})
	b = spawn(t, k, "b", 1, func(ctx *Context) {
		m2.Lock(ctx)
		m1.Lock(ctx)
	})
	k.Start()
	tickUntil(t, k, 3, func() bool {
		return a.State() == ThreadBlocked && m2.WaiterCount() == 1
	})
	return a, b, m1, m2
}

func TestDetectDeadlocksFindsCycle(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	a, b, _, _ := abba(t, k)

	cycles := k.DetectDeadlocks()
	if len(cycles) != 1 {
		t.Fatalf("DetectDeadlocks() = %v, want one cycle", cycles)
	}
	c := cycles[0]
	if len(c.Threads) != 2 {
		t.Fatalf("cycle = %v, want two threads", c)
	}
	want := map[ThreadID]string{a.ID(): "m2", b.ID(): "m1"}
	for i, id := range c.Threads {
		if want[id] != c.Objects[i] {
			t.Fatalf("cycle %v: tid %d waits on %q, want %q", c, id, c.Objects[i], want[id])
		}
	}
	if !strings.HasPrefix(c.String(), "tid ") {
		t.Fatalf("String() = %q", c.String())
	}
}

func TestDetectDeadlocksIgnoresPlainContention(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	m := k.NewMutex("m", MutexRaiseError)
	hold := k.NewSemaphore("hold", 0)
	spawn(t, k, "owner", 2, func(ctx *Context) {
		m.Lock(ctx)
		hold.Acquire(ctx)
	})
	spawn(t, k, "waiter", 1, func(ctx *Context) { m.Lock(ctx) })
	k.Start()
	waitIdle(t, k)
	if cycles := k.DetectDeadlocks(); len(cycles) != 0 {
		t.Fatalf("DetectDeadlocks() = %v, want none", cycles)
	}
}

func TestDetectDeadlocksThroughJoin(t *testing.T) {
	k := newTestKernel(t, DefaultConfig())
	m := k.NewMutex("m", MutexRaiseError)
	var child *Thread
	parent := spawn(t, k, "parent", 2, func(ctx *Context) {
		m.Lock(ctx)
		child, _ = ctx.Spawn(ThreadSpec{Name: "child", Priority: 1, Entry: func(ctx *Context) { m.Lock(ctx) }})
		ctx.Join(child)
	})
	k.Start()
	waitIdle(t, k)
	cycles := k.DetectDeadlocks()
	if len(cycles) != 1 {
		t.Fatalf("DetectDeadlocks() = %v, want one cycle", cycles)
	}
	ids := cycles[0].Threads
	if len(ids) != 2 || (ids[0] != parent.ID() && ids[1] != parent.ID()) {
		t.Fatalf("cycle threads = %v, want parent %d and child %d", ids, parent.ID(), child.ID())
	}
}

func TestPeriodicDeadlockCheckLogs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DeadlockCheckTicks = 1
	k := newTestKernel(t, cfg)
	var out lineCollector
	k.Log().SetWriter(&out)
	abba(t, k)
	k.Tick()
	if !out.contains("[sync] deadlock: tid ") {
		t.Fatalf("log lines = %q, want a deadlock report", out.lines)
	}
}
