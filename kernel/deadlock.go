package kernel

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph/multi"
	"gonum.org/v1/gonum/graph/topo"
)

// Deadlock is one cycle in the wait-for graph: Threads[i] waits on
// Objects[i], which is held by Threads[i+1] (wrapping around).
type Deadlock struct {
	Threads []ThreadID
	Objects []string
}

func (d Deadlock) String() string {
	var b strings.Builder
	for i, id := range d.Threads {
		fmt.Fprintf(&b, "tid %d -> %s -> ", id, d.Objects[i])
	}
	if len(d.Threads) > 0 {
		fmt.Fprintf(&b, "tid %d", d.Threads[0])
	}
	return b.String()
}

type threadNode struct {
	t *Thread
}

func (n threadNode) ID() int64 { return int64(n.t.id) }

// DetectDeadlocks returns every cycle of threads blocked on objects held by
// each other: mutex owners and threads being joined. Group waits are left
// out, since any one member can end them.
func (k *Kernel) DetectDeadlocks() []Deadlock {
	k.cs.disable()
	g := multi.NewDirectedGraph()
	nodes := make(map[ThreadID]threadNode)
	node := func(t *Thread) threadNode {
		n, ok := nodes[t.id]
		if !ok {
			n = threadNode{t: t}
			nodes[t.id] = n
		}
		return n
	}
	waitsOn := make(map[ThreadID]string)
	for _, t := range k.threads {
		n := t.waitNode
		if t.state != ThreadBlocked || n == nil || n.obj == nil || len(n.members) > 0 {
			continue
		}
		if n.obj.holder == nil {
			continue
		}
		h := n.obj.holder()
		if h == nil || h == t {
			continue
		}
		waitsOn[t.id] = n.obj.name
		g.SetLine(g.NewLine(node(t), node(h)))
	}
	k.cs.restore()

	var out []Deadlock
	for _, cycle := range topo.DirectedCyclesIn(g) {
		// The first node is repeated at the end.
		cycle = cycle[:len(cycle)-1]
		d := Deadlock{}
		for _, n := range cycle {
			id := ThreadID(n.ID())
			d.Threads = append(d.Threads, id)
			d.Objects = append(d.Objects, waitsOn[id])
		}
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b Deadlock) bool {
		return a.Threads[0] < b.Threads[0]
	})
	return out
}

// OrphanedLock is a mutex still owned by a thread that has exited.
type OrphanedLock struct {
	Mutex   *Mutex
	Name    string
	Owner   ThreadID
	Waiters int
}

// OrphanedLocks reports mutexes whose owner exited or was killed without
// unlocking them. Such mutexes are never released automatically; their
// waiters block until a timeout or until the mutex is destroyed.
func (k *Kernel) OrphanedLocks() []OrphanedLock {
	k.cs.disable()
	var out []OrphanedLock
	for m := range k.mutexes {
		o := m.owner
		if o == nil || (o.state != ThreadZombie && !o.destroyed) {
			continue
		}
		out = append(out, OrphanedLock{Mutex: m, Name: m.name, Owner: o.id, Waiters: m.waiters.Len()})
	}
	k.cs.restore()
	slices.SortFunc(out, func(a, b OrphanedLock) bool {
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Owner < b.Owner
	})
	return out
}
