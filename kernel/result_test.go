package kernel

import (
	"errors"
	"testing"
)

func TestResultErrno(t *testing.T) {
	cases := []struct {
		r Result
		e Errno
	}{
		{Success, EOK},
		{ErrTimeout, ETIMEDOUT},
		{ErrInvalidArg, EINVAL},
		{ErrNoSuchProcess, ESRCH},
		{ErrNoSuchThread, ESRCH},
		{ErrFault, EFAULT},
		{ErrDeadlock, EDEADLK},
		{ErrInterrupted, EINTR},
		{ErrDeleted, EIDRM},
		{ErrWouldBlock, EAGAIN},
		{ErrNotOwner, EPERM},
		{ErrHalted, ESHUTDOWN},
	}
	for _, c := range cases {
		if got := c.r.Errno(); got != c.e {
			t.Errorf("%v.Errno() = %v, want %v", c.r, got, c.e)
		}
	}
}

func TestResultErr(t *testing.T) {
	if err := Success.Err(); err != nil {
		t.Fatalf("Success.Err() = %v, want nil", err)
	}
	err := ErrTimeout.Err()
	var r Result
	if !errors.As(err, &r) || r != ErrTimeout {
		t.Fatalf("errors.As(%v) = %v", err, r)
	}
	if err.Error() != "timed out" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestSignalSets(t *testing.T) {
	s := SigSetOf(SIGHUP, SIGTERM, Signal(0), Signal(40))
	if !s.Has(SIGHUP) || !s.Has(SIGTERM) || s.Has(SIGINT) {
		t.Fatalf("SigSetOf() = %#x", s)
	}
	if s != 1|1<<14 {
		t.Fatalf("SigSetOf(HUP, TERM) = %#x, want %#x", s, 1|1<<14)
	}
	if s.Del(SIGHUP).lowest() != SIGTERM {
		t.Fatal("lowest() after Del(SIGHUP) is not SIGTERM")
	}
	if SIGSEGV.Default() != ActTerminateCoreDump || SIGCHLD.Default() != ActIgnore || SIGTSTP.Default() != ActStop {
		t.Fatal("Default() table disagrees with POSIX")
	}
	if SIGKILL.String() != "SIGKILL" || Signal(40).String() != "signal 40" {
		t.Fatalf("String() = %q, %q", SIGKILL.String(), Signal(40).String())
	}
}

func TestParseSignal(t *testing.T) {
	for in, want := range map[string]Signal{"15": SIGTERM, "term": SIGTERM, "SIGKILL": SIGKILL, "usr1": SIGUSR1} {
		if got, ok := ParseSignal(in); !ok || got != want {
			t.Errorf("ParseSignal(%q) = %v, %v; want %v", in, got, ok, want)
		}
	}
	for _, in := range []string{"0", "32", "265", "SIGFOO", ""} {
		if got, ok := ParseSignal(in); ok {
			t.Errorf("ParseSignal(%q) = %v, want failure", in, got)
		}
	}
}
