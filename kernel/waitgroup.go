package kernel

import (
	"math/bits"
	"time"
)

// MaxGroupMembers bounds the registrations of one ObjectWaitGroup.
const MaxGroupMembers = 64

// ReadySet has bit i set when registration i of a group is ready.
type ReadySet uint64

// Has reports whether registration i is ready.
func (s ReadySet) Has(i int) bool { return i >= 0 && i < 64 && s&(1<<uint(i)) != 0 }

// Count returns the number of ready registrations.
func (s ReadySet) Count() int { return bits.OnesCount64(uint64(s)) }

type groupMember struct {
	obj  Waitable
	wo   *WaitableObject
	mode WaitMode
}

// ObjectWaitGroup waits on several waitable objects at once. Waits are level
// triggered: members are polled, and the waiter blocks only while none of
// them is ready.
//
// The group holds its members by non-owning reference. A member that is
// destroyed first removes itself and wakes the group's waiters with
// ErrDeleted.
type ObjectWaitGroup struct {
	WaitableObject

	members []groupMember
}

func (k *Kernel) NewObjectWaitGroup(name string) *ObjectWaitGroup {
	g := &ObjectWaitGroup{}
	g.init(k, name, nil)
	return g
}

// Len returns the number of registrations.
func (g *ObjectWaitGroup) Len() int {
	g.k.cs.disable()
	n := len(g.members)
	g.k.cs.restore()
	return n
}

// AddObject registers interest in obj for mode. Its ready bit is the
// registration's index. Threads already waiting re-poll.
func (g *ObjectWaitGroup) AddObject(ctx *Context, obj Waitable, mode WaitMode) Result {
	if obj == nil || mode&WaitReadWrite == 0 {
		return ErrInvalidArg
	}
	wo := obj.object()
	if _, nested := obj.(*ObjectWaitGroup); nested || wo == &g.WaitableObject || wo.k != g.k {
		return ErrInvalidArg
	}
	k := g.k
	k.cs.disable()
	res := Success
	switch {
	case g.deleted || wo.deleted:
		res = ErrDeleted
	case len(g.members) >= MaxGroupMembers:
		res = ErrInvalidArg
	case g.index(wo, mode) >= 0:
		res = ErrInvalidArg
	default:
		g.members = append(g.members, groupMember{obj: obj, wo: wo, mode: mode})
		wo.addGroup(g, mode)
		g.notifyAll(WaitReadWrite, Success)
	}
	k.cs.restore()
	ctx.leave()
	return res
}

// RemoveObject drops the registration of obj for mode. Removing the last
// registration wakes waiters with ErrInvalidArg.
func (g *ObjectWaitGroup) RemoveObject(ctx *Context, obj Waitable, mode WaitMode) Result {
	if obj == nil {
		return ErrInvalidArg
	}
	k := g.k
	k.cs.disable()
	res := ErrInvalidArg
	if i := g.index(obj.object(), mode); i >= 0 {
		g.members[i].wo.removeGroup(g, mode)
		g.members = append(g.members[:i], g.members[i+1:]...)
		if len(g.members) == 0 {
			g.notifyAll(WaitReadWrite, ErrInvalidArg)
		} else {
			g.notifyAll(WaitReadWrite, Success)
		}
		res = Success
	}
	k.cs.restore()
	ctx.leave()
	return res
}

// Clear drops every registration and wakes waiters with ErrInvalidArg.
func (g *ObjectWaitGroup) Clear(ctx *Context) {
	g.k.cs.disable()
	g.detachAll()
	g.notifyAll(WaitReadWrite, ErrInvalidArg)
	g.k.cs.restore()
	ctx.leave()
}

// Destroy drops every registration and wakes waiters with ErrDeleted.
func (g *ObjectWaitGroup) Destroy(ctx *Context) {
	g.k.cs.disable()
	g.detachAll()
	g.destroy()
	g.k.cs.restore()
	ctx.leave()
}

func (g *ObjectWaitGroup) Wait(ctx *Context) (ReadySet, Result) {
	return g.WaitDeadline(ctx, Forever)
}

func (g *ObjectWaitGroup) WaitTimeout(ctx *Context, d time.Duration) (ReadySet, Result) {
	g.k.cs.disable()
	deadline := g.k.deadlineAfter(d)
	g.k.cs.restore()
	return g.WaitDeadline(ctx, deadline)
}

// WaitDeadline returns the members that are ready, blocking until at least
// one is or kernel time reaches deadline. Interrupt context may poll with a
// deadline of zero.
func (g *ObjectWaitGroup) WaitDeadline(ctx *Context, deadline time.Duration) (ReadySet, Result) {
	k := g.k
	k.cs.disable()
	var (
		ready ReadySet
		res   Result
	)
	for {
		if g.deleted {
			res = ErrDeleted
			break
		}
		if len(g.members) == 0 {
			res = ErrInvalidArg
			break
		}
		if ready = g.poll(); ready != 0 {
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
		res = k.blockNode(ctx, g.register(ctx.thread), deadline)
		if res != Success && res != resRestart {
			break
		}
	}
	k.cs.restore()
	ctx.leave()
	return ready, res
}

// register queues one main node on the group and one registration node on
// every member. Any of them firing completes the wait.
func (g *ObjectWaitGroup) register(t *Thread) *WaitNode {
	main := newWaitNode(t, WaitRead)
	g.insert(main)
	for _, m := range g.members {
		mn := newWaitNode(t, m.mode)
		mn.main = main
		if m.obj.AddListener(mn, m.mode) {
			main.members = append(main.members, mn)
		}
	}
	return main
}

func (g *ObjectWaitGroup) poll() ReadySet {
	var s ReadySet
	for i, m := range g.members {
		if m.wo.ready(m.mode) {
			s |= 1 << uint(i)
		}
	}
	return s
}

func (g *ObjectWaitGroup) index(wo *WaitableObject, mode WaitMode) int {
	for i, m := range g.members {
		if m.wo == wo && m.mode == mode {
			return i
		}
	}
	return -1
}

func (g *ObjectWaitGroup) detachAll() {
	for _, m := range g.members {
		m.wo.removeGroup(g, m.mode)
	}
	g.members = nil
}

// memberDeleted is called by a member being destroyed. Called with the
// critical section held.
func (g *ObjectWaitGroup) memberDeleted(o *WaitableObject) {
	kept := g.members[:0]
	for _, m := range g.members {
		if m.wo == o {
			o.removeGroup(g, m.mode)
			continue
		}
		kept = append(kept, m)
	}
	for i := len(kept); i < len(g.members); i++ {
		g.members[i] = groupMember{}
	}
	g.members = kept
	g.notifyAll(WaitReadWrite, ErrDeleted)
}
