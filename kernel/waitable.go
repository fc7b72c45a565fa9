package kernel

// Waitable is a kernel object a thread can block on.
//
// Drivers and VFS nodes get one by embedding IONode (or any other kernel
// object); the unexported accessor keeps WaitList internals inside the kernel.
type Waitable interface {
	// AddListener queues node and returns true when the caller would have to
	// block for mode. It returns false, leaving node unlisted, when the
	// object is immediately available. Must be called with the kernel
	// critical section held; the kernel's wait paths do so.
	AddListener(node *WaitNode, mode WaitMode) bool

	object() *WaitableObject
}

type groupRef struct {
	group *ObjectWaitGroup
	mode  WaitMode
}

// WaitableObject is the shared part of every kernel object threads block on.
type WaitableObject struct {
	k       *Kernel
	name    string
	order   WakeOrder
	waiters WaitList

	// groups are non-owning back-references to every wait group that
	// currently has this object registered.
	groups  []groupRef
	deleted bool

	poll   func(WaitMode) bool
	holder func() *Thread
}

func (o *WaitableObject) init(k *Kernel, name string, poll func(WaitMode) bool) {
	o.k = k
	o.name = name
	o.poll = poll
}

func (o *WaitableObject) object() *WaitableObject { return o }

// Name returns the debug name given at construction.
func (o *WaitableObject) Name() string { return o.name }

// WaiterCount returns the number of queued waiters, group registrations
// included.
func (o *WaitableObject) WaiterCount() int {
	o.k.cs.disable()
	n := o.waiters.Len()
	o.k.cs.restore()
	return n
}

// SetWakeOrder selects FIFO or priority-ordered wakeups for waiters queued
// after the call.
func (o *WaitableObject) SetWakeOrder(order WakeOrder) {
	o.k.cs.disable()
	o.order = order
	o.k.cs.restore()
}

func (o *WaitableObject) AddListener(node *WaitNode, mode WaitMode) bool {
	if node.list != nil {
		panic(assertion("wait node inserted twice"))
	}
	if o.deleted || o.ready(mode) {
		return false
	}
	node.mode = mode
	o.insert(node)
	return true
}

func (o *WaitableObject) ready(mode WaitMode) bool {
	if o.poll == nil {
		return false
	}
	return o.poll(mode)
}

func (o *WaitableObject) insert(n *WaitNode) {
	n.obj = o
	if o.order == OrderPriority {
		o.waiters.InsertByPriority(n)
		return
	}
	o.waiters.Append(n)
}

// nextDirect notifies every group registration queued ahead of the first
// direct waiter and returns that waiter, still listed. Group notifications
// never consume the resource.
func (o *WaitableObject) nextDirect() *WaitNode {
	for {
		n := o.waiters.Front()
		if n == nil || n.main == nil {
			return n
		}
		o.k.wakeNode(n, Success)
	}
}

// notifyAll wakes every queued node matching mode.
func (o *WaitableObject) notifyAll(mode WaitMode, res Result) {
	for n := o.waiters.Front(); n != nil; {
		next := n.next
		if n.mode&mode != 0 {
			o.k.wakeNode(n, res)
			// Waking a group registration can unlink siblings on this list.
			if next != nil && next.list != &o.waiters {
				next = o.waiters.Front()
			}
		}
		n = next
	}
}

// destroy detaches o from every group still tracking it and wakes all
// waiters with ErrDeleted. Called with the critical section held.
func (o *WaitableObject) destroy() {
	if o.deleted {
		return
	}
	o.deleted = true
	for len(o.groups) > 0 {
		o.groups[0].group.memberDeleted(o)
	}
	for n := o.waiters.Front(); n != nil; n = o.waiters.Front() {
		o.k.wakeNode(n, ErrDeleted)
	}
}

func (o *WaitableObject) addGroup(g *ObjectWaitGroup, mode WaitMode) {
	o.groups = append(o.groups, groupRef{group: g, mode: mode})
}

func (o *WaitableObject) removeGroup(g *ObjectWaitGroup, mode WaitMode) {
	for i, ref := range o.groups {
		if ref.group == g && ref.mode == mode {
			o.groups = append(o.groups[:i], o.groups[i+1:]...)
			return
		}
	}
}
