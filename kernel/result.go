package kernel

// Result describes the outcome of a kernel operation.
//
// Results never panic across the kernel boundary: every blocking or
// ownership-checking call reports failure through a Result. Result implements
// error so it can be wrapped by callers; use Err to get a nil error on success.
type Result uint8

const (
	Success Result = iota
	ErrTimeout
	ErrInvalidArg
	ErrNoSuchProcess
	ErrNoSuchThread
	ErrFault
	ErrDeadlock
	ErrInterrupted
	ErrDeleted
	ErrWouldBlock
	ErrNotOwner
	ErrHalted
)

// resRestart is returned internally by a wait that was interrupted by signal
// handlers installed with SA_RESTART. It never leaves the package.
const resRestart Result = 0xFF

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case ErrTimeout:
		return "timed out"
	case ErrInvalidArg:
		return "invalid argument"
	case ErrNoSuchProcess:
		return "no such process"
	case ErrNoSuchThread:
		return "no such thread"
	case ErrFault:
		return "bad address"
	case ErrDeadlock:
		return "resource deadlock avoided"
	case ErrInterrupted:
		return "interrupted"
	case ErrDeleted:
		return "object deleted"
	case ErrWouldBlock:
		return "operation would block"
	case ErrNotOwner:
		return "not owner"
	case ErrHalted:
		return "kernel halted"
	default:
		return "unknown"
	}
}

func (r Result) Error() string { return r.String() }

// Err returns nil for Success and r otherwise.
func (r Result) Err() error {
	if r == Success {
		return nil
	}
	return r
}

// Errno is a POSIX error number as reported at the syscall boundary.
type Errno int32

const (
	EOK       Errno = 0
	EPERM     Errno = 1
	ESRCH     Errno = 3
	EINTR     Errno = 4
	EAGAIN    Errno = 11
	EFAULT    Errno = 14
	EINVAL    Errno = 22
	EDEADLK   Errno = 35
	EIDRM     Errno = 43
	ESHUTDOWN Errno = 108
	ETIMEDOUT Errno = 110
)

func (e Errno) String() string {
	switch e {
	case EOK:
		return "EOK"
	case EPERM:
		return "EPERM"
	case ESRCH:
		return "ESRCH"
	case EINTR:
		return "EINTR"
	case EAGAIN:
		return "EAGAIN"
	case EFAULT:
		return "EFAULT"
	case EINVAL:
		return "EINVAL"
	case EDEADLK:
		return "EDEADLK"
	case EIDRM:
		return "EIDRM"
	case ESHUTDOWN:
		return "ESHUTDOWN"
	case ETIMEDOUT:
		return "ETIMEDOUT"
	default:
		return "E?"
	}
}

// Errno maps r to the error number returned to user mode.
func (r Result) Errno() Errno {
	switch r {
	case Success:
		return EOK
	case ErrTimeout:
		return ETIMEDOUT
	case ErrInvalidArg:
		return EINVAL
	case ErrNoSuchProcess, ErrNoSuchThread:
		return ESRCH
	case ErrFault:
		return EFAULT
	case ErrDeadlock:
		return EDEADLK
	case ErrInterrupted:
		return EINTR
	case ErrDeleted:
		return EIDRM
	case ErrWouldBlock:
		return EAGAIN
	case ErrNotOwner:
		return EPERM
	case ErrHalted:
		return ESHUTDOWN
	default:
		return EINVAL
	}
}
