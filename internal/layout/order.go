package layout

import (
	"container/heap"

	"github.com/cj3636/kahva/internal/graph"
)

// readyQueue is a min-heap of reader-order indexes.
type readyQueue []int

func (q readyQueue) Len() int           { return len(q) }
func (q readyQueue) Less(i, j int) bool { return q[i] < q[j] }
func (q readyQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *readyQueue) Push(x any)        { *q = append(*q, x.(int)) }
func (q *readyQueue) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}

// topoOrder returns the commits of s with every child before all of its
// parents. Among commits that are ready at the same time the one reported
// first by the history reader wins.
func topoOrder(s *graph.Snapshot) []graph.CommitID {
	n := s.Len()
	pending := make([]int, n)
	q := &readyQueue{}
	for i := 0; i < n; i++ {
		pending[i] = len(s.Children(s.At(i).ID))
		if pending[i] == 0 {
			*q = append(*q, i)
		}
	}
	heap.Init(q)

	order := make([]graph.CommitID, 0, n)
	emitted := make([]bool, n)
	for q.Len() > 0 {
		i := heap.Pop(q).(int)
		id := s.At(i).ID
		emitted[i] = true
		order = append(order, id)
		for _, p := range s.Parents(id) {
			j := s.IndexOf(p)
			pending[j]--
			if pending[j] == 0 {
				heap.Push(q, j)
			}
		}
	}

	// Only reachable when the snapshot still contains a cycle.
	for i := 0; i < n; i++ {
		if !emitted[i] {
			order = append(order, s.At(i).ID)
		}
	}
	return order
}
