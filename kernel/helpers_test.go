package kernel

import (
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"
)

const testTimeout = 5 * time.Second

func newTestKernel(t *testing.T, cfg Config) *Kernel {
	t.Helper()
	k := New(cfg)
	t.Cleanup(k.Halt)
	return k
}

func spawn(t *testing.T, k *Kernel, name string, prio int, entry ThreadFunc) *Thread {
	t.Helper()
	th, res := k.Spawn(ThreadSpec{Name: name, Priority: prio, Entry: entry})
	if res != Success {
		t.Fatalf("Spawn(%s) = %v, want %v", name, res, Success)
	}
	return th
}

// waitIdle blocks until every core has nothing to run.
func waitIdle(t *testing.T, k *Kernel) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for !k.Idle() {
		if time.Now().After(deadline) {
			t.Fatalf("kernel never went idle: %+v", k.Snapshot())
		}
		time.Sleep(50 * time.Microsecond)
	}
}

// tickUntil advances kernel time one tick at a time, letting the threads
// settle in between, until cond holds.
func tickUntil(t *testing.T, k *Kernel, maxTicks int, cond func() bool) {
	t.Helper()
	for i := 0; i < maxTicks; i++ {
		waitIdle(t, k)
		if cond() {
			return
		}
		k.Tick()
	}
	waitIdle(t, k)
	if !cond() {
		t.Fatalf("condition not met after %d ticks", maxTicks)
	}
}

func waitState(t *testing.T, th *Thread, want ThreadState) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for th.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("%s state = %v, want %v", th.Name(), th.State(), want)
		}
		time.Sleep(50 * time.Microsecond)
	}
}

// eventLog records what threads observed, in order.
type eventLog struct {
	mu sync.Mutex
	ev []string
}

func (l *eventLog) add(format string, args ...any) {
	l.mu.Lock()
	l.ev = append(l.ev, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

func (l *eventLog) events() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ev...)
}

func (l *eventLog) expect(t *testing.T, want ...string) {
	t.Helper()
	if got := l.events(); !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %q, want %q", got, want)
	}
}
