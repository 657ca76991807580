// Package queue provides the shared dispatch queue used by the scheduling
// policies: a multi-producer multi-consumer FIFO with lock-free push and pop,
// so queue operations never block a scheduling hook.
package queue

import (
	"sync/atomic"

	"github.com/me/schedpol/pkg/model"
)

// Entry is one queued task reference together with the time slice granted at
// enqueue time. The granted slice is authoritative for that run episode and
// is not recomputed at dispatch.
type Entry struct {
	Task    model.TaskID
	SliceNS uint64
}

type node struct {
	entry Entry
	next  atomic.Pointer[node]
}

// FIFO is an unbounded Michael-Scott queue. The zero value is not usable;
// construct with New.
type FIFO struct {
	head atomic.Pointer[node] // points at a sentinel; head.next is the front
	tail atomic.Pointer[node]
	size atomic.Int64
}

// New returns an empty queue.
func New() *FIFO {
	q := &FIFO{}
	sentinel := &node{}
	q.head.Store(sentinel)
	q.tail.Store(sentinel)
	return q
}

// Push appends e at the tail. Arrival order is preserved: entries pushed by
// one goroutine are popped in the order they were pushed.
func (q *FIFO) Push(e Entry) {
	n := &node{entry: e}
	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if tail != q.tail.Load() {
			continue
		}
		if next != nil {
			// Tail is lagging; help it along.
			q.tail.CompareAndSwap(tail, next)
			continue
		}
		if tail.next.CompareAndSwap(nil, n) {
			q.tail.CompareAndSwap(tail, n)
			q.size.Add(1)
			return
		}
	}
}

// Pop removes and returns the head entry. The second return value is false
// when the queue is empty, which is the normal idle-processor case, not an
// error.
func (q *FIFO) Pop() (Entry, bool) {
	for {
		head := q.head.Load()
		tail := q.tail.Load()
		next := head.next.Load()
		if head != q.head.Load() {
			continue
		}
		if next == nil {
			return Entry{}, false
		}
		if head == tail {
			q.tail.CompareAndSwap(tail, next)
			continue
		}
		e := next.entry
		if q.head.CompareAndSwap(head, next) {
			q.size.Add(-1)
			return e, true
		}
	}
}

// Len reports the current number of entries. It is a point-in-time value and
// may be stale by the time the caller acts on it.
func (q *FIFO) Len() int {
	n := q.size.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}
