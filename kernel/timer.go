package kernel

import (
	"container/heap"
	"math"
	"time"
)

// Forever is the deadline of a wait that never times out.
const Forever = time.Duration(math.MaxInt64)

// timerQueue orders armed wait nodes by deadline, FIFO among equal deadlines.
type timerQueue []*WaitNode

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].deadline != q[j].deadline {
		return q[i].deadline < q[j].deadline
	}
	return q[i].seq < q[j].seq
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].timerIdx = i
	q[j].timerIdx = j
}

func (q *timerQueue) Push(x any) {
	n := x.(*WaitNode)
	n.timerIdx = len(*q)
	*q = append(*q, n)
}

func (q *timerQueue) Pop() any {
	old := *q
	last := len(old) - 1
	n := old[last]
	old[last] = nil
	*q = old[:last]
	n.timerIdx = -1
	return n
}

func (k *Kernel) arm(n *WaitNode, deadline time.Duration) {
	if deadline == Forever {
		return
	}
	k.timerSeq++
	n.deadline = deadline
	n.seq = k.timerSeq
	heap.Push(&k.timers, n)
}

func (k *Kernel) disarm(n *WaitNode) {
	if n.timerIdx < 0 {
		return
	}
	heap.Remove(&k.timers, n.timerIdx)
}

// expireTimers wakes every node whose deadline has passed.
func (k *Kernel) expireTimers() {
	for len(k.timers) > 0 && k.timers[0].deadline <= k.now {
		n := heap.Pop(&k.timers).(*WaitNode)
		k.wakeNode(n, ErrTimeout)
	}
}

func (k *Kernel) deadlineAfter(d time.Duration) time.Duration {
	if d >= Forever-k.now {
		return Forever
	}
	return k.now + d
}
