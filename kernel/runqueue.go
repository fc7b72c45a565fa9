package kernel

import (
	"math/bits"

	"github.com/gammazero/deque"
)

// runQueue holds one core's ready threads: a FIFO per priority level plus a
// bitmap of non-empty levels.
type runQueue struct {
	levels []deque.Deque[*Thread]
	bitmap uint32
	n      int
}

func newRunQueue(priorities int) runQueue {
	return runQueue{levels: make([]deque.Deque[*Thread], priorities)}
}

func (q *runQueue) len() int { return q.n }

func (q *runQueue) push(t *Thread, front bool) {
	lvl := &q.levels[t.prio]
	if front {
		lvl.PushFront(t)
	} else {
		lvl.PushBack(t)
	}
	q.bitmap |= 1 << uint(t.prio)
	q.n++
}

// highest returns the priority of the best ready thread, or -1.
func (q *runQueue) highest() int {
	return bits.Len32(q.bitmap) - 1
}

func (q *runQueue) pop() *Thread {
	p := q.highest()
	if p < 0 {
		return nil
	}
	lvl := &q.levels[p]
	t := lvl.PopFront()
	if lvl.Len() == 0 {
		q.bitmap &^= 1 << uint(p)
	}
	q.n--
	return t
}

func (q *runQueue) remove(t *Thread) bool {
	lvl := &q.levels[t.prio]
	for i := 0; i < lvl.Len(); i++ {
		if lvl.At(i) != t {
			continue
		}
		lvl.Remove(i)
		if lvl.Len() == 0 {
			q.bitmap &^= 1 << uint(t.prio)
		}
		q.n--
		return true
	}
	return false
}
