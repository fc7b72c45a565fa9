package kernel

type ProcessID int32

// handlerTextBase is where registered user signal handlers appear in the
// syscall ABI. Entry i has address handlerTextBase + 4*i.
const handlerTextBase UserAddr = 0x0800_0000

// Process groups threads with a user memory window and the signal handlers
// user code can name by address.
type Process struct {
	k        *Kernel
	pid      ProcessID
	name     string
	threads  []*Thread
	mem      *UserMemory
	handlers []SignalHandler
}

// NewProcess creates an empty process. It lives until its last thread is
// reaped.
func (k *Kernel) NewProcess(name string) *Process {
	k.cs.disable()
	p := k.newProcessLocked(name)
	k.cs.restore()
	return p
}

func (k *Kernel) newProcessLocked(name string) *Process {
	k.nextPID++
	p := &Process{
		k:    k,
		pid:  k.nextPID,
		name: name,
		mem:  newUserMemory(k.cfg.UserMemBase, k.cfg.UserMemSize),
	}
	k.procs[p.pid] = p
	return p
}

func (p *Process) PID() ProcessID { return p.pid }

func (p *Process) Name() string { return p.name }

func (p *Process) Memory() *UserMemory { return p.mem }

// Threads returns the process's threads, zombies included.
func (p *Process) Threads() []*Thread {
	p.k.cs.disable()
	defer p.k.cs.restore()
	return append([]*Thread(nil), p.threads...)
}

// RegisterHandler makes h callable from SysSigAction and returns its
// address.
func (p *Process) RegisterHandler(h SignalHandler) UserAddr {
	p.k.cs.disable()
	defer p.k.cs.restore()
	p.handlers = append(p.handlers, h)
	return handlerTextBase + UserAddr(len(p.handlers)-1)*4
}

func (p *Process) handlerAt(addr UserAddr) (SignalHandler, bool) {
	if addr < handlerTextBase || (addr-handlerTextBase)%4 != 0 {
		return nil, false
	}
	i := int((addr - handlerTextBase) / 4)
	if i >= len(p.handlers) {
		return nil, false
	}
	return p.handlers[i], true
}

// Process looks up a process by ID.
func (k *Kernel) Process(pid ProcessID) *Process {
	k.cs.disable()
	p := k.procs[pid]
	k.cs.restore()
	return p
}

// KernelProcess returns the process owning kernel threads.
func (k *Kernel) KernelProcess() *Process { return k.kproc }
