package sched

import (
	"container/heap"
	"time"
)

// TimeSchedulable is a deadline-stamped work item.
type TimeSchedulable struct {
	When time.Time
	What Schedulable
}

// Queue totally orders pending time-stamped work: by deadline ascending,
// ties broken by insertion order (FIFO). The ordinal is monotonically
// increasing and never reused, so two items with equal deadlines pop in
// the order they were pushed.
//
// The queue holds no locking policy; a backend wraps it with whatever
// synchronization its threading model requires. The zero value is ready
// to use.
type Queue struct {
	h       queueHeap
	ordinal uint64
}

// Push inserts an item.
func (q *Queue) Push(item TimeSchedulable) {
	q.ordinal++
	heap.Push(&q.h, queueEntry{item: item, ordinal: q.ordinal})
}

// Top returns the earliest pending item without removing it.
// Top on an empty queue panics.
func (q *Queue) Top() TimeSchedulable {
	return q.h[0].item
}

// Pop removes and returns the earliest pending item.
// Pop on an empty queue panics.
func (q *Queue) Pop() TimeSchedulable {
	return heap.Pop(&q.h).(queueEntry).item
}

// Empty reports whether no items are pending.
func (q *Queue) Empty() bool { return len(q.h) == 0 }

// Len reports the number of pending items.
func (q *Queue) Len() int { return len(q.h) }

type queueEntry struct {
	item    TimeSchedulable
	ordinal uint64
}

type queueHeap []queueEntry

func (h queueHeap) Len() int { return len(h) }

func (h queueHeap) Less(i, j int) bool {
	if h[i].item.When.Before(h[j].item.When) {
		return true
	}
	if h[j].item.When.Before(h[i].item.When) {
		return false
	}
	return h[i].ordinal < h[j].ordinal
}

func (h queueHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *queueHeap) Push(x any) {
	*h = append(*h, x.(queueEntry))
}

func (h *queueHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = queueEntry{} // allow GC of the schedulable
	*h = old[:n-1]
	return e
}
