package app

import (
	"fmt"
	"sync/atomic"
	"time"

	"pados/kernel"
)

const (
	demoPriority  = 2
	demoQueueSize = 4
	demoWorkers   = 2
)

// demo is a bounded producer/consumer queue plus a supervisor that keeps a
// pool of short-lived workers alive.
type demo struct {
	k        *kernel.Kernel
	mu       *kernel.Mutex
	notEmpty *kernel.ConditionVariable
	notFull  *kernel.ConditionVariable
	tokens   *kernel.Semaphore
	queue    []int

	produced atomic.Uint64
	consumed atomic.Uint64
	finished atomic.Uint64
	restarts atomic.Uint64
}

func startDemo(k *kernel.Kernel) (*demo, error) {
	d := &demo{
		k:        k,
		mu:       k.NewMutex("demo.queue", kernel.MutexRaiseError),
		notEmpty: k.NewConditionVariable("demo.not-empty"),
		notFull:  k.NewConditionVariable("demo.not-full"),
		tokens:   k.NewSemaphore("demo.tokens", 0),
	}
	for _, spec := range []kernel.ThreadSpec{
		{Name: "producer", Entry: d.producer},
		{Name: "consumer", Entry: d.consumer},
		{Name: "supervisor", Entry: d.supervisor},
	} {
		spec.Priority = demoPriority
		spec.Detached = true
		if _, res := k.Spawn(spec); res != kernel.Success {
			return nil, fmt.Errorf("demo %s: %w", spec.Name, res)
		}
	}
	return d, nil
}

func (d *demo) producer(ctx *kernel.Context) {
	for item := 1; ; item++ {
		d.mu.Lock(ctx)
		for len(d.queue) == demoQueueSize {
			d.notFull.Wait(ctx, d.mu)
		}
		d.queue = append(d.queue, item)
		d.produced.Add(1)
		d.notEmpty.Signal(ctx)
		d.mu.Unlock(ctx)
		ctx.Sleep(10 * time.Millisecond)
	}
}

// consumer hands a worker token out for every item it takes.
func (d *demo) consumer(ctx *kernel.Context) {
	for {
		d.mu.Lock(ctx)
		for len(d.queue) == 0 {
			d.notEmpty.Wait(ctx, d.mu)
		}
		d.queue = d.queue[1:]
		d.consumed.Add(1)
		d.notFull.Signal(ctx)
		d.mu.Unlock(ctx)
		d.tokens.Release(ctx)
	}
}

func (d *demo) worker(ctx *kernel.Context) {
	if d.tokens.AcquireTimeout(ctx, 50*time.Millisecond) != kernel.Success {
		ctx.Exit(1)
	}
	ctx.Sleep(5 * time.Millisecond)
	d.finished.Add(1)
}

func (d *demo) spawnWorker(ctx *kernel.Context, g *kernel.ObjectWaitGroup) (*kernel.Thread, bool) {
	w, res := ctx.Spawn(kernel.ThreadSpec{Name: "worker", Priority: demoPriority, Entry: d.worker})
	if res != kernel.Success {
		return nil, false
	}
	return w, g.AddObject(ctx, w, kernel.WaitRead) == kernel.Success
}

// supervisor waits for any worker to exit, joins it and starts a
// replacement.
func (d *demo) supervisor(ctx *kernel.Context) {
	g := d.k.NewObjectWaitGroup("demo.workers")
	workers := make([]*kernel.Thread, 0, demoWorkers)
	for i := 0; i < demoWorkers; i++ {
		w, ok := d.spawnWorker(ctx, g)
		if !ok {
			return
		}
		workers = append(workers, w)
	}
	for {
		if _, res := g.Wait(ctx); res != kernel.Success {
			return
		}
		for i, w := range workers {
			if w.State() != kernel.ThreadZombie {
				continue
			}
			g.RemoveObject(ctx, w, kernel.WaitRead)
			ctx.Join(w)
			nw, ok := d.spawnWorker(ctx, g)
			if !ok {
				return
			}
			workers[i] = nw
			d.restarts.Add(1)
		}
	}
}

func (d *demo) String() string {
	return fmt.Sprintf("produced=%d consumed=%d workers finished=%d restarts=%d",
		d.produced.Load(), d.consumed.Load(), d.finished.Load(), d.restarts.Load())
}
