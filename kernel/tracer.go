package kernel

import "time"

// Tracer observes scheduling events. Its methods run inside the kernel
// critical section and must not call back into the kernel. A tracer that
// panics is detached and the panic is logged.
type Tracer interface {
	// ThreadSwitch reports that core now runs to; 0 means the core went idle.
	ThreadSwitch(core int, from, to ThreadID, at time.Duration)
	ThreadWake(id ThreadID, at time.Duration)
	ThreadExit(id ThreadID, at time.Duration)
}

// SetTracer replaces the tracer. A nil t disables tracing.
func (k *Kernel) SetTracer(t Tracer) {
	k.cs.disable()
	k.tracer = t
	k.cs.restore()
}

// trace runs fn against the tracer, if any. Called with the critical
// section held.
func (k *Kernel) trace(fn func(Tracer)) {
	t := k.tracer
	if t == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			k.tracer = nil
			k.log.Logf(LogSched, LogError, "tracer panic, tracing disabled: %v", r)
		}
	}()
	fn(t)
}
