package kernel

// PanicInfo contains details about a fatal kernel panic.
type PanicInfo struct {
	// ThreadID is 0 when the panic happened in interrupt context.
	ThreadID ThreadID
	Thread   string
	Value    any
	Stack    []byte
}

// assertion is the panic value of a violated kernel invariant.
type assertion string

func (a assertion) Error() string { return "kernel: " + string(a) }

// InPanicMode reports whether the kernel took a fatal panic.
func (k *Kernel) InPanicMode() bool {
	return k.panicMode.Load()
}

// SetPanicHandler installs the handler run on the first fatal panic, after
// every core has halted. It must not panic.
func (k *Kernel) SetPanicHandler(fn func(PanicInfo)) {
	k.panicHandler.Store(fn)
}

// fatal handles a panic recovered on t's goroutine (nil t for interrupt
// context). A panicking thread cannot be resumed, so the whole kernel halts.
// The critical section is released first if this goroutine still holds it.
func (k *Kernel) fatal(t *Thread, v any) {
	if k.cs.heldByCaller() {
		k.cs.restore()
	}
	k.panicOnce.Do(func() {
		k.panicMode.Store(true)
		info := PanicInfo{Value: v, Stack: captureStack()}
		if t != nil {
			info.ThreadID = t.id
			info.Thread = t.name
		}
		k.log.Logf(LogSched, LogError, "kernel panic: tid=%d (%s): %v", info.ThreadID, info.Thread, v)
		k.Halt()
		if fn, ok := k.panicHandler.Load().(func(PanicInfo)); ok && fn != nil {
			fn(info)
		}
	})
}
