package kernel

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	// MaxPriorities bounds Config.NumPriorities (one bitmap word per core).
	MaxPriorities = 32
	// MaxCores bounds Config.Cores.
	MaxCores = 8
)

// Config holds the static kernel configuration chosen at boot.
type Config struct {
	Cores         int
	NumPriorities int
	// QuantumTicks is the time slice shared by equal-priority ready threads.
	QuantumTicks int
	TickPeriod   time.Duration
	IRQLines     int

	UserMemBase UserAddr
	UserMemSize int

	// DeadlockCheckTicks runs the wait-for graph check every N ticks and
	// logs any cycle. Zero disables the periodic check.
	DeadlockCheckTicks int

	Tracer Tracer
}

// DefaultConfig returns a single-core configuration with a 1ms tick.
func DefaultConfig() Config {
	return Config{
		Cores:         1,
		NumPriorities: MaxPriorities,
		QuantumTicks:  10,
		TickPeriod:    time.Millisecond,
		IRQLines:      64,
		UserMemBase:   0x2000_0000,
		UserMemSize:   16 * 1024,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.Cores <= 0 {
		c.Cores = d.Cores
	}
	if c.Cores > MaxCores {
		c.Cores = MaxCores
	}
	if c.NumPriorities <= 0 || c.NumPriorities > MaxPriorities {
		c.NumPriorities = d.NumPriorities
	}
	if c.QuantumTicks <= 0 {
		c.QuantumTicks = d.QuantumTicks
	}
	if c.TickPeriod <= 0 {
		c.TickPeriod = d.TickPeriod
	}
	if c.IRQLines <= 0 {
		c.IRQLines = d.IRQLines
	}
	if c.UserMemSize <= 0 {
		c.UserMemSize = d.UserMemSize
	}
	if c.UserMemBase == 0 {
		c.UserMemBase = d.UserMemBase
	}
	return c
}

type core struct {
	id          int
	current     *Thread
	ready       runQueue
	needResched bool
	sliceLeft   int
	switches    uint64
	idleTicks   uint64
}

// Kernel owns every piece of process-wide kernel state: cores, thread and
// process tables, the IRQ table, log categories and the panic handler. It is
// constructed at boot and torn down by Halt.
type Kernel struct {
	cfg Config
	cs  irqLock

	cores   []*core
	started bool
	halted  bool
	haltCh  chan struct{}

	now      time.Duration
	ticks    uint64
	timers   timerQueue
	timerSeq uint64

	threads map[ThreadID]*Thread
	nextTID ThreadID
	procs   map[ProcessID]*Process
	nextPID ProcessID
	kproc   *Process

	mutexes map[*Mutex]struct{}

	irq    *IRQDispatcher
	log    *LogRegistry
	isr    Context
	tracer Tracer

	panicMode    atomic.Bool
	panicOnce    sync.Once
	panicHandler atomic.Value // func(PanicInfo)
}

// New creates a kernel. Threads may be spawned immediately; none runs until
// Start.
func New(cfg Config) *Kernel {
	cfg = cfg.normalized()
	k := &Kernel{
		cfg:     cfg,
		haltCh:  make(chan struct{}),
		threads: make(map[ThreadID]*Thread),
		procs:   make(map[ProcessID]*Process),
		mutexes: make(map[*Mutex]struct{}),
		log:     NewLogRegistry(nil),
		tracer:  cfg.Tracer,
		nextTID: 1,
	}
	k.isr = Context{k: k}
	for i := 0; i < cfg.Cores; i++ {
		k.cores = append(k.cores, &core{id: i, ready: newRunQueue(cfg.NumPriorities)})
	}
	k.irq = newIRQDispatcher(k, cfg.IRQLines)
	k.kproc = k.newProcessLocked("kernel")
	return k
}

// Config returns the normalized configuration.
func (k *Kernel) Config() Config { return k.cfg }

// IRQ returns the interrupt dispatcher.
func (k *Kernel) IRQ() *IRQDispatcher { return k.irq }

// Log returns the kernel log category registry.
func (k *Kernel) Log() *LogRegistry { return k.log }

// InterruptContext returns the context used by interrupt handlers. Code
// running outside any kernel thread (boot code, host glue, tests) uses it to
// call wakeup primitives; blocking calls made with it fail with ErrWouldBlock.
func (k *Kernel) InterruptContext() *Context { return &k.isr }

// Start begins dispatching threads on every core.
func (k *Kernel) Start() {
	k.cs.disable()
	if k.started || k.halted {
		k.cs.restore()
		return
	}
	k.started = true
	for _, c := range k.cores {
		if c.current == nil {
			k.switchOut(c)
		}
	}
	k.cs.restore()
	k.log.Logf(LogSched, LogInfo, "started: %d core(s), %d priorities, quantum %d ticks",
		len(k.cores), k.cfg.NumPriorities, k.cfg.QuantumTicks)
}

// Now returns kernel time since boot.
func (k *Kernel) Now() time.Duration {
	k.cs.disable()
	now := k.now
	k.cs.restore()
	return now
}

// Ticks returns the number of processed timer ticks.
func (k *Kernel) Ticks() uint64 {
	k.cs.disable()
	n := k.ticks
	k.cs.restore()
	return n
}

// Tick is the SysTick interrupt: it advances kernel time, expires deadlines
// and charges the running threads' time slices.
func (k *Kernel) Tick() {
	k.cs.disable()
	if k.halted {
		k.cs.restore()
		return
	}
	k.ticks++
	k.now += k.cfg.TickPeriod
	k.expireTimers()
	for _, c := range k.cores {
		t := c.current
		if t == nil {
			c.idleTicks++
			continue
		}
		t.runTicks++
		c.sliceLeft--
		if c.sliceLeft <= 0 && c.ready.highest() >= t.prio {
			c.needResched = true
		}
	}
	check := k.cfg.DeadlockCheckTicks > 0 && k.ticks%uint64(k.cfg.DeadlockCheckTicks) == 0
	k.cs.restore()

	if check {
		for _, cycle := range k.DetectDeadlocks() {
			k.log.Logf(LogSync, LogError, "deadlock: %v", cycle)
		}
		for _, o := range k.OrphanedLocks() {
			k.log.Logf(LogSync, LogError, "orphaned lock %q: owner tid %d gone, %d waiting", o.Name, o.Owner, o.Waiters)
		}
	}
}

// Idle reports whether the kernel is started and every core has nothing to
// run.
func (k *Kernel) Idle() bool {
	k.cs.disable()
	defer k.cs.restore()
	if !k.started || k.halted {
		return false
	}
	for _, c := range k.cores {
		if c.current != nil || c.ready.len() > 0 {
			return false
		}
	}
	return true
}

// Halt stops all scheduling. Parked threads unwind and exit; running threads
// exit at their next kernel call. Halt is idempotent.
func (k *Kernel) Halt() {
	k.cs.disable()
	if k.halted {
		k.cs.restore()
		return
	}
	k.halted = true
	close(k.haltCh)
	k.cs.restore()
	k.log.Logf(LogSched, LogInfo, "halted")
}

// Halted reports whether Halt was called.
func (k *Kernel) Halted() bool {
	select {
	case <-k.haltCh:
		return true
	default:
		return false
	}
}

// Done is closed when the kernel halts.
func (k *Kernel) Done() <-chan struct{} { return k.haltCh }

// makeReady moves t to its core's ready queue, or straight onto the core
// when it is idle. Called with the critical section held.
func (k *Kernel) makeReady(t *Thread, front bool) {
	if t.destroyed || t.state == ThreadZombie {
		panic(assertion("scheduling a destroyed thread"))
	}
	if t.state == ThreadReady || t.state == ThreadRunning {
		return
	}
	t.state = ThreadReady
	k.trace(func(tr Tracer) { tr.ThreadWake(t.id, k.now) })
	t.readyAt = k.now
	c := k.cores[t.core]
	if k.started && !k.halted && c.current == nil {
		k.run(c, t)
		return
	}
	c.ready.push(t, front)
	if cur := c.current; cur != nil && t.prio > cur.prio {
		c.needResched = true
	}
}

// run dispatches t onto c: the context switch hands t its run token.
func (k *Kernel) run(c *core, t *Thread) {
	from := ThreadID(0)
	if c.current != nil {
		from = c.current.id
	}
	c.current = t
	c.sliceLeft = k.cfg.QuantumTicks
	c.needResched = false
	c.switches++
	t.state = ThreadRunning
	t.switches++
	k.trace(func(tr Tracer) { tr.ThreadSwitch(c.id, from, t.id, k.now) })
	select {
	case t.resume <- struct{}{}:
	default:
		panic(assertion("thread dispatched twice"))
	}
}

// switchOut gives c to its best ready thread, or leaves it idle. The
// previous current thread must already have left the Running state.
func (k *Kernel) switchOut(c *core) {
	if k.halted {
		c.current = nil
		return
	}
	next := c.ready.pop()
	if next == nil {
		if cur := c.current; cur != nil {
			k.trace(func(tr Tracer) { tr.ThreadSwitch(c.id, cur.id, 0, k.now) })
		}
		c.current = nil
		return
	}
	k.run(c, next)
}

// park gives up the core and waits for the next dispatch. Called with the
// critical section held; returns with it held. t.state must already be set.
func (k *Kernel) park(t *Thread) {
	c := k.cores[t.core]
	if c.current == t {
		k.switchOut(c)
	}
	k.cs.restore()
	k.waitResume(t)
	k.cs.disable()
}

// waitResume blocks until t is dispatched. A halted kernel unwinds the
// thread instead.
func (k *Kernel) waitResume(t *Thread) {
	select {
	case <-t.resume:
		if !k.Halted() {
			return
		}
	case <-k.haltCh:
	}
	unwindThread()
}

// preempt is the scheduling checkpoint run on return from every kernel call.
func (k *Kernel) preempt(t *Thread) {
	k.cs.disable()
	c := k.cores[t.core]
	if !c.needResched || c.current != t {
		k.cs.restore()
		return
	}
	c.needResched = false
	best := c.ready.highest()
	if best > t.prio || (best == t.prio && c.sliceLeft <= 0) {
		// Preempted by a higher priority keeps its place in line.
		t.state = ThreadReady
		t.readyAt = k.now
		c.ready.push(t, best > t.prio)
		k.park(t)
	}
	k.cs.restore()
}

// wakeNode completes the wait n belongs to with res. Waking a group
// registration completes the owning group wait. Idempotent.
func (k *Kernel) wakeNode(n *WaitNode, res Result) {
	if n.main != nil {
		n.unlink()
		n = n.main
	}
	if n.woken {
		return
	}
	n.woken = true
	n.result = res
	n.unlink()
	k.disarm(n)
	for _, m := range n.members {
		m.unlink()
	}
	t := n.thread
	if t != nil && t.waitNode == n {
		t.waitNode = nil
		if t.state == ThreadBlocked {
			k.makeReady(t, false)
		}
	}
}

// blockOn parks the calling thread on obj (nil for a plain sleep) until it
// is woken, the deadline passes or a signal interrupts the wait. Called and
// returns with the critical section held.
//
// Signal handlers for an interrupted wait run before blockOn returns. When
// all of them asked for SA_RESTART it returns resRestart and the caller
// re-evaluates its condition.
func (k *Kernel) blockOn(ctx *Context, obj *WaitableObject, mode WaitMode, deadline time.Duration) Result {
	n := newWaitNode(ctx.thread, mode)
	if obj != nil {
		obj.insert(n)
	}
	return k.blockNode(ctx, n, deadline)
}

func (k *Kernel) blockNode(ctx *Context, n *WaitNode, deadline time.Duration) Result {
	t := ctx.thread
	if k.halted {
		k.cancelNode(n)
		return ErrHalted
	}
	if deadline != Forever && deadline <= k.now {
		k.cancelNode(n)
		return ErrTimeout
	}
	if t.interruptPending() {
		k.cancelNode(n)
		return k.interrupted(ctx)
	}
	k.arm(n, deadline)
	t.waitNode = n
	t.state = ThreadBlocked
	k.park(t)

	k.cancelNode(n)
	res := n.result
	if res == ErrInterrupted {
		return k.interrupted(ctx)
	}
	return res
}

func (k *Kernel) cancelNode(n *WaitNode) {
	n.woken = true
	n.unlink()
	k.disarm(n)
	for _, m := range n.members {
		m.unlink()
	}
	if t := n.thread; t != nil && t.waitNode == n {
		t.waitNode = nil
	}
}

func (k *Kernel) interrupted(ctx *Context) Result {
	k.cs.restore()
	restart := ctx.deliverSignals(true)
	k.cs.disable()
	if restart {
		return resRestart
	}
	return ErrInterrupted
}
