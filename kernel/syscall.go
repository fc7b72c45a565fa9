package kernel

import (
	"encoding/binary"
	"time"
)

// Handler addresses with special meaning in a user sigaction record.
const (
	SIG_DFL UserAddr = 0
	SIG_IGN UserAddr = 1

	// sigKernelHandler stands for a handler installed from Go code, which
	// has no user address.
	sigKernelHandler UserAddr = 0xFFFF_FFFF
)

// SigActionSize is the size of a user sigaction record: handler address,
// flags and mask, each a little-endian uint32.
const SigActionSize = 12

// Syscall numbers.
type Sysno uint32

const (
	SysNoGetPID Sysno = iota + 1
	SysNoGetTID
	SysNoKill
	SysNoThreadKill
	SysNoSigAction
	SysNoSigProcMask
	SysNoSleep
	SysNoYield
)

func (n Sysno) String() string {
	switch n {
	case SysNoGetPID:
		return "getpid"
	case SysNoGetTID:
		return "gettid"
	case SysNoKill:
		return "kill"
	case SysNoThreadKill:
		return "thread_kill"
	case SysNoSigAction:
		return "sigaction"
	case SysNoSigProcMask:
		return "sigprocmask"
	case SysNoSleep:
		return "sleep"
	case SysNoYield:
		return "yield"
	default:
		return "unknown"
	}
}

// Syscall is the trap entry: it dispatches no with raw register arguments
// and returns a non-negative result or a negated errno.
func (c *Context) Syscall(no Sysno, a0, a1, a2 uint32) int32 {
	if c.thread == nil {
		return -int32(EPERM)
	}
	var e Errno
	switch no {
	case SysNoGetPID:
		return int32(c.SysGetPID())
	case SysNoGetTID:
		return int32(c.SysGetTID())
	case SysNoKill:
		e = c.SysKill(ProcessID(a0), int32(a1))
	case SysNoThreadKill:
		e = c.SysThreadKill(ThreadID(a0), int32(a1))
	case SysNoSigAction:
		e = c.SysSigAction(int32(a0), UserAddr(a1), UserAddr(a2))
	case SysNoSigProcMask:
		e = c.SysSigProcMask(int32(a0), UserAddr(a1), UserAddr(a2))
	case SysNoSleep:
		e = c.SysSleep(time.Duration(a0) * time.Millisecond)
	case SysNoYield:
		c.Yield()
	default:
		e = EINVAL
	}
	if e != EOK {
		c.k.log.Logf(LogSyscall, LogDebug, "tid=%d %v: %v", c.thread.id, no, e)
		return -int32(e)
	}
	return 0
}

func (c *Context) SysGetPID() ProcessID {
	if c.thread == nil {
		return 0
	}
	return c.thread.proc.pid
}

func (c *Context) SysGetTID() ThreadID {
	if c.thread == nil {
		return 0
	}
	return c.thread.id
}

func sysSignal(sig int32) (Signal, bool) {
	if sig < 0 || sig > NumSignals {
		return 0, false
	}
	return Signal(sig), true
}

// SysKill sends sig to process pid.
func (c *Context) SysKill(pid ProcessID, sig int32) Errno {
	s, ok := sysSignal(sig)
	if !ok {
		return EINVAL
	}
	return c.Kill(pid, s).Errno()
}

// SysThreadKill sends sig to thread tid.
func (c *Context) SysThreadKill(tid ThreadID, sig int32) Errno {
	s, ok := sysSignal(sig)
	if !ok {
		return EINVAL
	}
	return c.ThreadKill(tid, s).Errno()
}

// SysSigAction reads the new action from actAddr, when non-zero, and writes
// the previous one to oldAddr, when non-zero.
func (c *Context) SysSigAction(sig int32, actAddr, oldAddr UserAddr) Errno {
	t := c.thread
	s, ok := sysSignal(sig)
	if t == nil || !ok || s == 0 {
		return EINVAL
	}
	mem := t.proc.mem

	var act *SigAction
	if actAddr != 0 {
		var raw [SigActionSize]byte
		if res := mem.CopyIn(actAddr, raw[:]); res != Success {
			return res.Errno()
		}
		a, res := t.proc.decodeSigAction(raw[:])
		if res != Success {
			return res.Errno()
		}
		act = &a
	}
	if oldAddr != 0 {
		if _, ok := mem.span(oldAddr, SigActionSize); !ok {
			return EFAULT
		}
	}

	var old SigAction
	if res := c.SigAction(s, act, &old); res != Success {
		return res.Errno()
	}
	if oldAddr != 0 {
		raw := encodeSigAction(old)
		if res := mem.CopyOut(oldAddr, raw[:]); res != Success {
			return res.Errno()
		}
	}
	return EOK
}

func (p *Process) decodeSigAction(raw []byte) (SigAction, Result) {
	addr := UserAddr(binary.LittleEndian.Uint32(raw[0:]))
	a := SigAction{
		Flags: SigFlags(binary.LittleEndian.Uint32(raw[4:])),
		Mask:  SigSet(binary.LittleEndian.Uint32(raw[8:])),
		addr:  addr,
	}
	switch addr {
	case SIG_DFL:
		a.Disposition = SigDefault
	case SIG_IGN:
		a.Disposition = SigIgnore
	default:
		p.k.cs.disable()
		h, ok := p.handlerAt(addr)
		p.k.cs.restore()
		if !ok {
			return SigAction{}, ErrFault
		}
		a.Disposition = SigCatch
		a.Handler = h
	}
	return a, Success
}

func encodeSigAction(a SigAction) [SigActionSize]byte {
	var raw [SigActionSize]byte
	addr := SIG_DFL
	switch a.Disposition {
	case SigIgnore:
		addr = SIG_IGN
	case SigCatch:
		addr = a.addr
		if addr == 0 {
			addr = sigKernelHandler
		}
	}
	binary.LittleEndian.PutUint32(raw[0:], uint32(addr))
	binary.LittleEndian.PutUint32(raw[4:], uint32(a.Flags))
	binary.LittleEndian.PutUint32(raw[8:], uint32(a.Mask))
	return raw
}

// SysSigProcMask reads the set from setAddr, when non-zero, and writes the
// previous blocked set to oldAddr, when non-zero.
func (c *Context) SysSigProcMask(how int32, setAddr, oldAddr UserAddr) Errno {
	t := c.thread
	if t == nil || how < int32(SIG_BLOCK) || how > int32(SIG_SETMASK) {
		return EINVAL
	}
	mem := t.proc.mem
	var set *SigSet
	if setAddr != 0 {
		v, res := mem.ReadU32(setAddr)
		if res != Success {
			return res.Errno()
		}
		s := SigSet(v)
		set = &s
	}
	if oldAddr != 0 {
		if _, ok := mem.span(oldAddr, 4); !ok {
			return EFAULT
		}
	}
	var old SigSet
	if res := c.SigProcMask(SigHow(how), set, &old); res != Success {
		return res.Errno()
	}
	if oldAddr != 0 {
		return mem.WriteU32(oldAddr, uint32(old)).Errno()
	}
	return EOK
}

// SysSleep sleeps for d; a handler without SA_RESTART ends it with EINTR.
func (c *Context) SysSleep(d time.Duration) Errno {
	return c.Sleep(d).Errno()
}
