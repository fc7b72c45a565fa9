package kernel

import (
	"strconv"
	"strings"
)

// Signal is a POSIX signal number, 1 to NumSignals, numbered as on Linux.
type Signal uint8

// NumSignals is the number of supported signals.
const NumSignals = 31

const (
	SIGHUP Signal = iota + 1
	SIGINT
	SIGQUIT
	SIGILL
	SIGTRAP
	SIGABRT
	SIGBUS
	SIGFPE
	SIGKILL
	SIGUSR1
	SIGSEGV
	SIGUSR2
	SIGPIPE
	SIGALRM
	SIGTERM
	SIGSTKFLT
	SIGCHLD
	SIGCONT
	SIGSTOP
	SIGTSTP
	SIGTTIN
	SIGTTOU
	SIGURG
	SIGXCPU
	SIGXFSZ
	SIGVTALRM
	SIGPROF
	SIGWINCH
	SIGIO
	SIGPWR
	SIGSYS
)

var signalNames = [NumSignals + 1]string{
	"", "SIGHUP", "SIGINT", "SIGQUIT", "SIGILL", "SIGTRAP", "SIGABRT", "SIGBUS", "SIGFPE",
	"SIGKILL", "SIGUSR1", "SIGSEGV", "SIGUSR2", "SIGPIPE", "SIGALRM", "SIGTERM", "SIGSTKFLT",
	"SIGCHLD", "SIGCONT", "SIGSTOP", "SIGTSTP", "SIGTTIN", "SIGTTOU", "SIGURG", "SIGXCPU",
	"SIGXFSZ", "SIGVTALRM", "SIGPROF", "SIGWINCH", "SIGIO", "SIGPWR", "SIGSYS",
}

func (s Signal) String() string {
	if s.Valid() {
		return signalNames[s]
	}
	return "signal " + strconv.Itoa(int(s))
}

// ParseSignal accepts a signal number or name, with or without the SIG
// prefix, ignoring case.
func ParseSignal(s string) (Signal, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > NumSignals {
			return 0, false
		}
		return Signal(n), true
	}
	name := strings.ToUpper(s)
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	for sig := Signal(1); sig <= NumSignals; sig++ {
		if signalNames[sig] == name {
			return sig, true
		}
	}
	return 0, false
}

// Valid reports whether s names a signal.
func (s Signal) Valid() bool { return s >= 1 && s <= NumSignals }

// catchable reports whether s may be caught, ignored or blocked.
func (s Signal) catchable() bool { return s != SIGKILL && s != SIGSTOP }

// DefaultAction is what an uncaught signal does.
type DefaultAction uint8

const (
	ActTerminate DefaultAction = iota
	ActTerminateCoreDump
	ActIgnore
	ActStop
	ActContinue
)

func (a DefaultAction) String() string {
	switch a {
	case ActTerminate:
		return "terminate"
	case ActTerminateCoreDump:
		return "core"
	case ActIgnore:
		return "ignore"
	case ActStop:
		return "stop"
	case ActContinue:
		return "continue"
	default:
		return "unknown"
	}
}

// Default returns the POSIX default action of s.
func (s Signal) Default() DefaultAction {
	switch s {
	case SIGQUIT, SIGILL, SIGTRAP, SIGABRT, SIGBUS, SIGFPE, SIGSEGV, SIGXCPU, SIGXFSZ, SIGSYS:
		return ActTerminateCoreDump
	case SIGCHLD, SIGURG, SIGWINCH:
		return ActIgnore
	case SIGSTOP, SIGTSTP, SIGTTIN, SIGTTOU:
		return ActStop
	case SIGCONT:
		return ActContinue
	default:
		return ActTerminate
	}
}

// SigSet is a set of signals; bit n-1 stands for signal n.
type SigSet uint32

// SigSetOf returns the set holding sigs. Invalid numbers are skipped.
func SigSetOf(sigs ...Signal) SigSet {
	var s SigSet
	for _, sig := range sigs {
		s = s.Add(sig)
	}
	return s
}

func (s SigSet) Has(sig Signal) bool { return sig.Valid() && s&(1<<(sig-1)) != 0 }

func (s SigSet) Add(sig Signal) SigSet {
	if !sig.Valid() {
		return s
	}
	return s | 1<<(sig-1)
}

func (s SigSet) Del(sig Signal) SigSet {
	if !sig.Valid() {
		return s
	}
	return s &^ (1 << (sig - 1))
}

// lowest returns the lowest-numbered member, or 0.
func (s SigSet) lowest() Signal {
	for sig := Signal(1); sig <= NumSignals; sig++ {
		if s.Has(sig) {
			return sig
		}
	}
	return 0
}

var unblockable = SigSetOf(SIGKILL, SIGSTOP)

var stopSignals = SigSetOf(SIGSTOP, SIGTSTP, SIGTTIN, SIGTTOU)

// SignalHandler runs on the signalled thread at a checkpoint.
type SignalHandler func(ctx *Context, sig Signal)

// Disposition selects how a thread handles a signal.
type Disposition uint8

const (
	SigDefault Disposition = iota
	SigIgnore
	SigCatch
)

type SigFlags uint32

const (
	// SA_RESTART resumes a wait the handler interrupted instead of failing
	// it with ErrInterrupted.
	SA_RESTART SigFlags = 0x1000_0000
	// SA_NODEFER leaves the signal unmasked while its handler runs.
	SA_NODEFER SigFlags = 0x4000_0000
	// SA_RESETHAND restores the default action on entry to the handler.
	SA_RESETHAND SigFlags = 0x8000_0000

	validSigFlags = SA_RESTART | SA_NODEFER | SA_RESETHAND
)

// SigAction is one entry of a thread's signal action table.
type SigAction struct {
	Disposition Disposition
	Handler     SignalHandler
	// Mask is added to the blocked set while the handler runs.
	Mask  SigSet
	Flags SigFlags

	// addr is the handler's user address when installed by SysSigAction.
	addr UserAddr
}

// SigHow selects how SigProcMask combines the given set.
type SigHow uint8

const (
	SIG_BLOCK SigHow = iota
	SIG_UNBLOCK
	SIG_SETMASK
)

// SignalFrame records one handler invocation: what to restore when the
// handler returns.
type SignalFrame struct {
	Signal      Signal
	SavedMask   SigSet
	Interrupted bool
	Restart     bool
}

// ignored reports whether sig would be discarded on delivery.
func (t *Thread) ignored(sig Signal) bool {
	if !sig.catchable() {
		return false
	}
	switch t.sigActions[sig].Disposition {
	case SigIgnore:
		return true
	case SigCatch:
		return false
	}
	a := sig.Default()
	return a == ActIgnore || a == ActContinue
}

// interrupts reports whether delivering sig ends a wait early.
func (t *Thread) interrupts(sig Signal) bool {
	return !t.ignored(sig)
}

func (t *Thread) deliverable() SigSet {
	return t.sigPending &^ (t.sigBlocked &^ unblockable)
}

// interruptPending reports whether a pending signal would interrupt a wait.
// Called with the critical section held.
func (t *Thread) interruptPending() bool {
	for set := t.deliverable(); set != 0; {
		sig := set.lowest()
		if t.interrupts(sig) {
			return true
		}
		set = set.Del(sig)
	}
	return false
}

// nextSignal picks the signal to deliver next: SIGKILL first, then the
// lowest number.
func (t *Thread) nextSignal() Signal {
	set := t.deliverable()
	if set.Has(SIGKILL) {
		return SIGKILL
	}
	return set.lowest()
}

// signalThread makes sig pending on t and interrupts its wait when that
// delivery would act. Called with the critical section held.
func (k *Kernel) signalThread(t *Thread, sig Signal) Result {
	if t.destroyed || t.state == ThreadZombie {
		return ErrNoSuchThread
	}
	if sig == 0 {
		return Success
	}
	switch {
	case sig == SIGCONT:
		t.sigPending &^= stopSignals
		if t.state == ThreadStopped {
			k.makeReady(t, false)
		}
	case stopSignals.Has(sig):
		t.sigPending = t.sigPending.Del(SIGCONT)
	}
	if t.ignored(sig) && !t.sigBlocked.Has(sig) {
		k.log.Logf(LogSignal, LogDebug, "%v to tid=%d discarded", sig, t.id)
		return Success
	}
	t.sigPending = t.sigPending.Add(sig)
	k.log.Logf(LogSignal, LogDebug, "%v pending on tid=%d", sig, t.id)

	if t.deliverable().Has(sig) {
		switch t.state {
		case ThreadBlocked:
			if n := t.waitNode; n != nil && t.interrupts(sig) {
				k.wakeNode(n, ErrInterrupted)
			}
		case ThreadStopped:
			if sig == SIGKILL {
				k.makeReady(t, false)
			}
		}
	}
	return Success
}

// signalProcess delivers sig to p. SIGKILL, SIGCONT and stop signals with
// default action reach every thread; anything else goes to the first thread
// not blocking it. Called with the critical section held.
func (k *Kernel) signalProcess(p *Process, sig Signal) Result {
	var live []*Thread
	for _, t := range p.threads {
		if t.state != ThreadZombie {
			live = append(live, t)
		}
	}
	if len(live) == 0 {
		return ErrNoSuchProcess
	}
	if sig == 0 {
		return Success
	}
	if sig == SIGKILL || sig == SIGCONT || (stopSignals.Has(sig) && live[0].sigActions[sig].Disposition == SigDefault) {
		for _, t := range live {
			k.signalThread(t, sig)
		}
		return Success
	}
	target := live[0]
	for _, t := range live {
		if !t.sigBlocked.Has(sig) {
			target = t
			break
		}
	}
	return k.signalThread(target, sig)
}

// Kill sends sig to process pid. Signal 0 only checks that pid exists.
func (c *Context) Kill(pid ProcessID, sig Signal) Result {
	if sig != 0 && !sig.Valid() {
		return ErrInvalidArg
	}
	k := c.k
	k.cs.disable()
	res := ErrNoSuchProcess
	if p := k.procs[pid]; p != nil {
		res = k.signalProcess(p, sig)
	}
	k.cs.restore()
	c.leave()
	return res
}

// ThreadKill sends sig to thread tid.
func (c *Context) ThreadKill(tid ThreadID, sig Signal) Result {
	if sig != 0 && !sig.Valid() {
		return ErrInvalidArg
	}
	k := c.k
	k.cs.disable()
	res := ErrNoSuchThread
	if t := k.threads[tid]; t != nil {
		res = k.signalThread(t, sig)
	}
	k.cs.restore()
	c.leave()
	return res
}

// Raise sends sig to the calling thread; it is delivered before Raise
// returns unless blocked.
func (c *Context) Raise(sig Signal) Result {
	if c.thread == nil {
		return ErrInvalidArg
	}
	return c.ThreadKill(c.thread.id, sig)
}

// SigAction installs act for sig, when non-nil, and stores the previous
// action in old, when non-nil.
func (c *Context) SigAction(sig Signal, act, old *SigAction) Result {
	t := c.thread
	if t == nil || !sig.Valid() {
		return ErrInvalidArg
	}
	if act != nil {
		if !sig.catchable() && act.Disposition != SigDefault {
			return ErrInvalidArg
		}
		if act.Disposition > SigCatch || (act.Disposition == SigCatch && act.Handler == nil) {
			return ErrInvalidArg
		}
		if act.Flags&^validSigFlags != 0 {
			return ErrInvalidArg
		}
	}
	k := c.k
	k.cs.disable()
	if old != nil {
		*old = t.sigActions[sig]
	}
	if act != nil {
		t.sigActions[sig] = *act
		if t.ignored(sig) {
			t.sigPending = t.sigPending.Del(sig)
		}
	}
	k.cs.restore()
	c.leave()
	return Success
}

// SigProcMask changes the calling thread's blocked set. SIGKILL and SIGSTOP
// are never blocked. Unblocked pending signals are delivered before it
// returns.
func (c *Context) SigProcMask(how SigHow, set, old *SigSet) Result {
	t := c.thread
	if t == nil {
		return ErrInvalidArg
	}
	k := c.k
	k.cs.disable()
	if old != nil {
		*old = t.sigBlocked
	}
	res := Success
	if set != nil {
		switch how {
		case SIG_BLOCK:
			t.sigBlocked |= *set
		case SIG_UNBLOCK:
			t.sigBlocked &^= *set
		case SIG_SETMASK:
			t.sigBlocked = *set
		default:
			res = ErrInvalidArg
		}
		t.sigBlocked &^= unblockable
	}
	k.cs.restore()
	c.leave()
	return res
}

// SigPending returns the calling thread's pending set.
func (c *Context) SigPending() SigSet {
	if c.thread == nil {
		return 0
	}
	return c.thread.Pending()
}

// deliverSignals runs every deliverable signal on the calling thread;
// interrupted is set when a wait was cut short for them. It reports whether
// an interrupted wait may resume: true unless a handler without SA_RESTART
// ran. Called without the critical section held.
func (c *Context) deliverSignals(interrupted bool) (restart bool) {
	t := c.thread
	k := c.k
	restart = true
	for {
		k.cs.disable()
		sig := t.nextSignal()
		if sig == 0 {
			k.cs.restore()
			return restart
		}
		t.sigPending = t.sigPending.Del(sig)
		act := t.sigActions[sig]
		if !sig.catchable() {
			act = SigAction{}
		}

		switch {
		case act.Disposition == SigIgnore:
			k.cs.restore()

		case act.Disposition == SigCatch:
			frame := SignalFrame{
				Signal:      sig,
				SavedMask:   t.sigBlocked,
				Interrupted: interrupted,
				Restart:     act.Flags&SA_RESTART != 0,
			}
			t.sigFrames = append(t.sigFrames, frame)
			t.sigBlocked |= act.Mask
			if act.Flags&SA_NODEFER == 0 {
				t.sigBlocked = t.sigBlocked.Add(sig)
			}
			t.sigBlocked &^= unblockable
			if act.Flags&SA_RESETHAND != 0 {
				t.sigActions[sig] = SigAction{}
			}
			k.cs.restore()

			k.log.Logf(LogSignal, LogDebug, "%v handler on tid=%d depth=%d", sig, t.id, len(t.sigFrames))
			act.Handler(c, sig)

			k.cs.disable()
			t.sigFrames = t.sigFrames[:len(t.sigFrames)-1]
			t.sigBlocked = frame.SavedMask
			k.cs.restore()
			if !frame.Restart {
				restart = false
			}

		default:
			switch sig.Default() {
			case ActIgnore, ActContinue:
				k.cs.restore()
			case ActStop:
				k.log.Logf(LogSignal, LogInfo, "tid=%d stopped by %v", t.id, sig)
				t.state = ThreadStopped
				k.park(t)
				k.cs.restore()
			default:
				t.termSig = sig
				t.exitCode = 128 + int(sig)
				core := sig.Default() == ActTerminateCoreDump
				k.cs.restore()
				if core {
					k.log.Logf(LogSignal, LogError, "tid=%d %v (core dumped)\n%s", t.id, sig, captureStack())
				}
				unwindThread()
			}
		}
	}
}
