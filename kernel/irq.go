package kernel

import "sync"

// IRQResult is returned by every handler in a line's chain.
type IRQResult uint8

const (
	IRQNotHandled IRQResult = iota
	IRQHandled
)

// IRQHandler services one interrupt. It runs in interrupt context: it may
// wake threads but never block.
type IRQHandler func(ctx *Context, line int, data any) IRQResult

// IRQHandle identifies one registered handler.
type IRQHandle struct {
	line int
	id   uint32
}

// unhandledLimit consecutive unclaimed interrupts disable a line.
const unhandledLimit = 100

type irqAction struct {
	id      uint32
	name    string
	handler IRQHandler
	data    any
}

type irqLine struct {
	actions   []*irqAction
	enabled   bool
	pending   bool
	count     uint64
	unhandled uint64
	streak    int
}

// IRQStats describes one interrupt line.
type IRQStats struct {
	Line      int
	Enabled   bool
	Pending   bool
	Count     uint64
	Unhandled uint64
	Handlers  []string
}

// IRQDispatcher routes raised interrupt lines to chained handlers. It is the
// only path by which code outside kernel threads wakes them.
//
// Handlers run one at a time. A line raised while another is being serviced
// is latched and serviced right after, lowest line number first.
type IRQDispatcher struct {
	k *Kernel

	mu     sync.Mutex
	lines  []irqLine
	nextID uint32
	active bool
}

func newIRQDispatcher(k *Kernel, n int) *IRQDispatcher {
	return &IRQDispatcher{k: k, lines: make([]irqLine, n)}
}

// Lines returns the number of interrupt lines.
func (d *IRQDispatcher) Lines() int { return len(d.lines) }

// Register appends h to line's chain and enables the line.
func (d *IRQDispatcher) Register(line int, name string, h IRQHandler, data any) (IRQHandle, Result) {
	if h == nil || line < 0 || line >= len(d.lines) {
		return IRQHandle{}, ErrInvalidArg
	}
	d.mu.Lock()
	d.nextID++
	a := &irqAction{id: d.nextID, name: name, handler: h, data: data}
	l := &d.lines[line]
	l.actions = append(l.actions, a)
	l.enabled = true
	l.streak = 0
	d.mu.Unlock()
	d.k.log.Logf(LogIRQ, LogDebug, "irq %d: registered %s", line, name)
	return IRQHandle{line: line, id: a.id}, Success
}

// Unregister removes a handler. The line is disabled when its chain empties.
func (d *IRQDispatcher) Unregister(h IRQHandle) Result {
	if h.line < 0 || h.line >= len(d.lines) {
		return ErrInvalidArg
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	l := &d.lines[h.line]
	for i, a := range l.actions {
		if a.id == h.id {
			l.actions = append(l.actions[:i], l.actions[i+1:]...)
			if len(l.actions) == 0 {
				l.enabled = false
			}
			return Success
		}
	}
	return ErrInvalidArg
}

// Enable unmasks line. An interrupt latched while masked fires now.
func (d *IRQDispatcher) Enable(line int) Result {
	if line < 0 || line >= len(d.lines) {
		return ErrInvalidArg
	}
	d.mu.Lock()
	l := &d.lines[line]
	l.enabled = true
	l.streak = 0
	fire := l.pending
	d.mu.Unlock()
	if fire {
		return d.Raise(line)
	}
	return Success
}

// Disable masks line. Raising a masked line latches it.
func (d *IRQDispatcher) Disable(line int) Result {
	if line < 0 || line >= len(d.lines) {
		return ErrInvalidArg
	}
	d.mu.Lock()
	d.lines[line].enabled = false
	d.mu.Unlock()
	return Success
}

// Raise signals an interrupt on line and services every enabled pending
// line before returning, unless another Raise is already servicing them.
func (d *IRQDispatcher) Raise(line int) Result {
	if line < 0 || line >= len(d.lines) {
		return ErrInvalidArg
	}
	if d.k.Halted() {
		return ErrHalted
	}
	d.mu.Lock()
	d.lines[line].pending = true
	if d.active {
		d.mu.Unlock()
		return Success
	}
	d.active = true
	for {
		n := d.nextPending()
		if n < 0 {
			break
		}
		l := &d.lines[n]
		l.pending = false
		l.count++
		chain := append([]*irqAction(nil), l.actions...)
		d.mu.Unlock()

		handled := d.service(n, chain)

		d.mu.Lock()
		if handled {
			l.streak = 0
			continue
		}
		l.unhandled++
		l.streak++
		if l.streak >= unhandledLimit {
			l.enabled = false
			d.k.log.Logf(LogIRQ, LogError, "irq %d: nobody cared, disabling", n)
		}
	}
	d.active = false
	d.mu.Unlock()
	return Success
}

func (d *IRQDispatcher) nextPending() int {
	for i := range d.lines {
		if d.lines[i].pending && d.lines[i].enabled {
			return i
		}
	}
	return -1
}

func (d *IRQDispatcher) service(line int, chain []*irqAction) (handled bool) {
	defer func() {
		if r := recover(); r != nil {
			d.k.fatal(nil, r)
			handled = true
		}
	}()
	ctx := d.k.InterruptContext()
	for _, a := range chain {
		if a.handler(ctx, line, a.data) == IRQHandled {
			handled = true
		}
	}
	if !handled {
		d.k.log.Logf(LogIRQ, LogDebug, "irq %d: unhandled", line)
	}
	return handled
}

// Stats reports the state of line.
func (d *IRQDispatcher) Stats(line int) (IRQStats, bool) {
	if line < 0 || line >= len(d.lines) {
		return IRQStats{}, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	l := &d.lines[line]
	s := IRQStats{
		Line:      line,
		Enabled:   l.enabled,
		Pending:   l.pending,
		Count:     l.count,
		Unhandled: l.unhandled,
	}
	for _, a := range l.actions {
		s.Handlers = append(s.Handlers, a.name)
	}
	return s, true
}
