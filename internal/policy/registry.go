package policy

import (
	"sync"
	"sync/atomic"

	"github.com/me/schedpol/pkg/model"
)

// taskCtx is the transient per-task state. The host guarantees that a task's
// lifecycle transitions are driven by one processor context at a time, so
// the fields need no synchronization; only the registry map itself is
// contended.
type taskCtx struct {
	tgid   model.TGID
	level  int
	ranTop bool   // task has started running at level 0 since the last Enable
	enqNS  uint64 // when the current wait began; 0 = not waiting
	runNS  uint64 // when the current run began; 0 = not running
}

// reset restores the state a task has when it first enters the policy's
// domain: top level, no history, no pending timestamps.
func (tc *taskCtx) reset() {
	tc.level = 0
	tc.ranTop = false
	tc.enqNS = 0
	tc.runNS = 0
}

// registry owns all task contexts, keyed by task id, with a hard capacity.
type registry struct {
	tasks sync.Map // model.TaskID -> *taskCtx
	count atomic.Int64
	cap   int64
}

func newRegistry(capacity int) *registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &registry{cap: int64(capacity)}
}

// init allocates state for a task. A second call for the same id is a no-op
// and never resets the existing record. Returns ErrCapacity when the
// registry is full.
func (r *registry) init(id model.TaskID, tgid model.TGID) error {
	if _, ok := r.tasks.Load(id); ok {
		return nil
	}
	if r.count.Add(1) > r.cap {
		r.count.Add(-1)
		return ErrCapacity
	}
	if _, loaded := r.tasks.LoadOrStore(id, &taskCtx{tgid: tgid}); loaded {
		// Lost the race to a concurrent init for the same id.
		r.count.Add(-1)
	}
	return nil
}

// get returns the context for id, or false if the task was never
// successfully initialized. Callers fall back to default top-level behavior
// in that case.
func (r *registry) get(id model.TaskID) (*taskCtx, bool) {
	v, ok := r.tasks.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*taskCtx), true
}

// forget drops the task's state when the host signals task exit.
func (r *registry) forget(id model.TaskID) {
	if _, ok := r.tasks.LoadAndDelete(id); ok {
		r.count.Add(-1)
	}
}

// size reports the number of tracked tasks.
func (r *registry) size() int {
	return int(r.count.Load())
}
