package policy

import (
	"github.com/me/schedpol/internal/queue"
	"github.com/me/schedpol/pkg/model"
)

// Priority levels of the two-level MLFQ. Level 0 is round-robin with a
// short slice; level 1 is FIFO with a long slice.
const (
	LevelTop    = 0
	LevelBottom = 1

	mlfqLevels = 2
)

// MLFQ is the two-level multi-level-feedback-queue policy. All tasks start
// at the top level. Once a task has executed at the top level at all, the
// next Stopping demotes it to the bottom level, where it stays until a
// future Enable. Dispatch always drains the top queue before consulting the
// bottom one.
type MLFQ struct {
	base
	queues [mlfqLevels]*queue.FIFO
	slices [mlfqLevels]uint64
}

// NewMLFQ constructs the MLFQ policy.
func NewMLFQ(opts Options) *MLFQ {
	o := opts.withDefaults()
	m := &MLFQ{
		base:   newBase(o),
		slices: [mlfqLevels]uint64{o.TopSliceNS, o.BottomSliceNS},
	}
	for i := range m.queues {
		m.queues[i] = queue.New()
	}
	return m
}

func (m *MLFQ) Name() string { return "mlfq" }

// InitTask allocates per-task state. Idempotent; ErrCapacity when full.
func (m *MLFQ) InitTask(id model.TaskID, tgid model.TGID) error {
	return m.reg.init(id, tgid)
}

// Enable puts the task back at the top level with a clean history.
func (m *MLFQ) Enable(id model.TaskID) {
	if tc, ok := m.reg.get(id); ok {
		tc.reset()
	}
}

// level returns the task's current level, falling back to the top level
// when no state is registered.
func (m *MLFQ) level(id model.TaskID) (int, *taskCtx) {
	tc, ok := m.reg.get(id)
	if !ok {
		return LevelTop, nil
	}
	return tc.level, tc
}

// SelectCPU delegates to the host's idle search and, when the chosen
// processor is idle, fast-paths the task with the slice of its current
// level.
func (m *MLFQ) SelectCPU(id model.TaskID, prev model.CPUID, wakeFlags uint64) model.CPUID {
	cpu, idle := m.topo.SelectIdleCPU(id, prev, wakeFlags)
	if !idle {
		return cpu
	}
	lvl, tc := m.level(id)
	if tc != nil {
		m.markWaiting(tc)
	}
	m.obs.LocalDispatched(lvl)
	m.topo.DispatchLocal(model.SchedulingDecision{
		Task:    id,
		CPU:     cpu,
		Level:   lvl,
		SliceNS: m.slices[lvl],
	})
	return cpu
}

// Enqueue appends the task to its current level's queue with that level's
// slice. FIFO order within each queue; round-robin behavior at the top
// level comes from the short slice, not from reordering.
func (m *MLFQ) Enqueue(id model.TaskID, flags uint64) {
	lvl, tc := m.level(id)
	if tc != nil {
		m.markWaiting(tc)
	}
	m.obs.Enqueued(lvl)
	m.queues[lvl].Push(queue.Entry{Task: id, SliceNS: m.slices[lvl]})
}

// Dispatch consults the queues from the top level down and hands the
// processor the head of the first non-empty one. The top queue is always
// drained before the bottom queue is touched.
func (m *MLFQ) Dispatch(cpu model.CPUID) (model.SchedulingDecision, bool) {
	for lvl, q := range m.queues {
		e, ok := q.Pop()
		if !ok {
			continue
		}
		m.obs.Dispatched(lvl)
		return model.SchedulingDecision{
			Task:    e.Task,
			CPU:     cpu,
			Level:   lvl,
			SliceNS: e.SliceNS,
		}, true
	}
	return model.SchedulingDecision{}, false
}

// Running accounts the context switch and the finished wait episode, and
// marks the task's first execution at the top level.
func (m *MLFQ) Running(id model.TaskID) {
	tc, ok := m.reg.get(id)
	if !ok {
		return
	}
	m.accountRunning(tc)
	if tc.level == LevelTop {
		tc.ranTop = true
	}
}

// Stopping accounts CPU time and applies the demotion rule: once a task has
// executed at the top level, it moves to the bottom level permanently, even
// if this stop is a block rather than a slice expiry. Only a future Enable
// brings it back to the top.
func (m *MLFQ) Stopping(id model.TaskID, runnable bool) {
	tc, ok := m.reg.get(id)
	if !ok {
		return
	}
	m.accountStopping(tc)
	if tc.level == LevelTop && tc.ranTop {
		tc.level = LevelBottom
		m.obs.Demoted()
	}
}

// ExitTask forgets the task's state.
func (m *MLFQ) ExitTask(id model.TaskID) {
	m.reg.forget(id)
}

// QueueDepth reports the current length of the given level's queue.
func (m *MLFQ) QueueDepth(level int) int {
	if level < 0 || level >= mlfqLevels {
		return 0
	}
	return m.queues[level].Len()
}
