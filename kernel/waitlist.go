package kernel

import "time"

// WaitMode selects the readiness a waiter is interested in.
type WaitMode uint8

const (
	WaitRead WaitMode = 1 << iota
	WaitWrite

	WaitReadWrite = WaitRead | WaitWrite
)

func (m WaitMode) String() string {
	switch m {
	case WaitRead:
		return "read"
	case WaitWrite:
		return "write"
	case WaitReadWrite:
		return "readwrite"
	default:
		return "none"
	}
}

// WakeOrder selects how a WaitList orders its waiters.
type WakeOrder uint8

const (
	// OrderFIFO wakes waiters in arrival order.
	OrderFIFO WakeOrder = iota
	// OrderPriority wakes the highest-priority waiter first, FIFO among equals.
	OrderPriority
)

// WaitNode links one blocked thread into one WaitList.
//
// A node lives for a single blocking call. It is in at most one list at a
// time; removal is idempotent.
type WaitNode struct {
	thread *Thread
	obj    *WaitableObject
	mode   WaitMode
	prio   int

	list *WaitList
	prev *WaitNode
	next *WaitNode

	// main is set on the per-member registrations of an ObjectWaitGroup
	// wait and points at the node the waiting thread is parked on.
	main    *WaitNode
	members []*WaitNode

	deadline time.Duration
	timerIdx int
	seq      uint64

	woken  bool
	result Result
}

func newWaitNode(t *Thread, mode WaitMode) *WaitNode {
	n := &WaitNode{thread: t, mode: mode, timerIdx: -1, deadline: Forever}
	if t != nil {
		n.prio = t.prio
	}
	return n
}

// Thread returns the thread blocked on this node.
func (n *WaitNode) Thread() *Thread { return n.thread }

// Mode returns the readiness the node waits for.
func (n *WaitNode) Mode() WaitMode { return n.mode }

// Listed reports whether the node is currently in a WaitList.
func (n *WaitNode) Listed() bool { return n.list != nil }

// Next returns the following node in the same list, or nil.
func (n *WaitNode) Next() *WaitNode { return n.next }

func (n *WaitNode) unlink() {
	if n.list != nil {
		n.list.Remove(n)
	}
}

// WaitList is an intrusive doubly linked list of WaitNodes.
//
// It is not safe for concurrent use; the kernel mutates it only inside the
// critical section.
type WaitList struct {
	head *WaitNode
	tail *WaitNode
	n    int
}

// Len returns the number of queued nodes.
func (l *WaitList) Len() int { return l.n }

// Empty reports whether the list has no nodes.
func (l *WaitList) Empty() bool {
	if l.head == nil {
		if l.tail != nil || l.n != 0 {
			panic(assertion("wait list invariant violated (empty)"))
		}
		return true
	}
	return false
}

// Front returns the first node, or nil.
func (l *WaitList) Front() *WaitNode { return l.head }

// Append queues n at the tail.
func (l *WaitList) Append(n *WaitNode) {
	l.claim(n)
	n.prev = l.tail
	if l.tail != nil {
		l.tail.next = n
	} else {
		l.head = n
	}
	l.tail = n
}

// InsertByPriority queues n behind every node of equal or higher priority.
func (l *WaitList) InsertByPriority(n *WaitNode) {
	at := l.head
	for at != nil && at.prio >= n.prio {
		at = at.next
	}
	if at == nil {
		l.Append(n)
		return
	}
	l.claim(n)
	n.next = at
	n.prev = at.prev
	if at.prev != nil {
		at.prev.next = n
	} else {
		l.head = n
	}
	at.prev = n
}

// Remove unlinks n. It reports false, and does nothing, when n is not in l.
func (l *WaitList) Remove(n *WaitNode) bool {
	if n.list != l {
		return false
	}
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev = nil
	n.next = nil
	n.list = nil
	l.n--
	return true
}

func (l *WaitList) claim(n *WaitNode) {
	if n.list != nil {
		panic(assertion("wait node inserted twice"))
	}
	n.list = l
	l.n++
}
