package lifecycle

import (
	"container/heap"
	"time"
)

// deletion is a path waiting for its due time.
type deletion struct {
	path string
	due  time.Time
}

// deletionHeap orders pending deletions by due time, earliest first.
type deletionHeap []deletion

func (h deletionHeap) Len() int           { return len(h) }
func (h deletionHeap) Less(i, j int) bool { return h[i].due.Before(h[j].due) }
func (h deletionHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *deletionHeap) Push(x interface{}) {
	*h = append(*h, x.(deletion))
}

func (h *deletionHeap) Pop() interface{} {
	old := *h
	n := len(old)
	d := old[n-1]
	*h = old[:n-1]
	return d
}

// popDue removes and returns every deletion due at or before now.
func (h *deletionHeap) popDue(now time.Time) []deletion {
	var due []deletion
	for h.Len() > 0 && !(*h)[0].due.After(now) {
		due = append(due, heap.Pop(h).(deletion))
	}
	return due
}
