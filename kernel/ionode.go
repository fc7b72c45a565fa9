package kernel

import "time"

// IONode is a readiness-flag waitable for drivers and file nodes. The
// driver raises and clears the flags, usually from its interrupt handler;
// readers and writers block until the flag for their mode is set.
type IONode struct {
	WaitableObject

	readable bool
	writable bool
}

func (k *Kernel) NewIONode(name string) *IONode {
	n := &IONode{}
	n.Init(k, name)
	return n
}

// Init prepares an embedded IONode.
func (n *IONode) Init(k *Kernel, name string) {
	n.init(k, name, n.readyFor)
}

func (n *IONode) readyFor(mode WaitMode) bool {
	return (mode&WaitRead != 0 && n.readable) || (mode&WaitWrite != 0 && n.writable)
}

// SetReadable sets or clears the read-ready flag, waking readers when set.
func (n *IONode) SetReadable(ctx *Context, v bool) {
	n.set(ctx, &n.readable, v, WaitRead)
}

// SetWritable sets or clears the write-ready flag, waking writers when set.
func (n *IONode) SetWritable(ctx *Context, v bool) {
	n.set(ctx, &n.writable, v, WaitWrite)
}

func (n *IONode) set(ctx *Context, flag *bool, v bool, mode WaitMode) {
	n.k.cs.disable()
	*flag = v
	if v {
		n.notifyAll(mode, Success)
	}
	n.k.cs.restore()
	ctx.leave()
}

// Ready reports whether the node is ready for mode.
func (n *IONode) Ready(mode WaitMode) bool {
	n.k.cs.disable()
	r := n.readyFor(mode)
	n.k.cs.restore()
	return r
}

func (n *IONode) Wait(ctx *Context, mode WaitMode) Result {
	return n.WaitDeadline(ctx, mode, Forever)
}

func (n *IONode) WaitTimeout(ctx *Context, mode WaitMode, d time.Duration) Result {
	n.k.cs.disable()
	deadline := n.k.deadlineAfter(d)
	n.k.cs.restore()
	return n.WaitDeadline(ctx, mode, deadline)
}

// WaitDeadline blocks until the node is ready for mode.
func (n *IONode) WaitDeadline(ctx *Context, mode WaitMode, deadline time.Duration) Result {
	if mode&WaitReadWrite == 0 {
		return ErrInvalidArg
	}
	k := n.k
	k.cs.disable()
	var res Result
	for {
		if n.deleted {
			res = ErrDeleted
			break
		}
		if n.readyFor(mode) {
			res = Success
			break
		}
		if deadline != Forever && deadline <= k.now {
			res = ErrTimeout
			break
		}
		if ctx.thread == nil {
			res = ErrWouldBlock
			break
		}
		node := newWaitNode(ctx.thread, mode)
		if !n.AddListener(node, mode) {
			continue
		}
		res = k.blockNode(ctx, node, deadline)
		if res != Success && res != resRestart {
			break
		}
	}
	k.cs.restore()
	ctx.leave()
	return res
}

// Destroy wakes every waiter with ErrDeleted.
func (n *IONode) Destroy(ctx *Context) {
	n.k.cs.disable()
	n.destroy()
	n.k.cs.restore()
	ctx.leave()
}
