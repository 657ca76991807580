package policy

import (
	"github.com/me/schedpol/internal/queue"
	"github.com/me/schedpol/pkg/model"
)

// FIFO is the plain single-level policy: one shared queue, arrival order,
// every task granted the same slice. Any processor that runs dry consumes
// from the head.
type FIFO struct {
	base
	q       *queue.FIFO
	sliceNS uint64
}

// NewFIFO constructs the FIFO policy.
func NewFIFO(opts Options) *FIFO {
	o := opts.withDefaults()
	return &FIFO{
		base:    newBase(o),
		q:       queue.New(),
		sliceNS: o.TopSliceNS,
	}
}

func (f *FIFO) Name() string { return "fifo" }

// InitTask allocates per-task state. Idempotent; ErrCapacity when full.
func (f *FIFO) InitTask(id model.TaskID, tgid model.TGID) error {
	return f.reg.init(id, tgid)
}

// Enable resets the task's transient state as it (re-)enters the policy.
func (f *FIFO) Enable(id model.TaskID) {
	if tc, ok := f.reg.get(id); ok {
		tc.reset()
	}
}

// SelectCPU delegates to the host's idle search. If the chosen processor is
// idle the task is fast-pathed into its local run slot, modeling a
// near-zero wait before running.
func (f *FIFO) SelectCPU(id model.TaskID, prev model.CPUID, wakeFlags uint64) model.CPUID {
	cpu, idle := f.topo.SelectIdleCPU(id, prev, wakeFlags)
	if !idle {
		return cpu
	}
	if tc, ok := f.reg.get(id); ok {
		f.markWaiting(tc)
	}
	f.obs.LocalDispatched(0)
	f.topo.DispatchLocal(model.SchedulingDecision{
		Task:    id,
		CPU:     cpu,
		Level:   0,
		SliceNS: f.sliceNS,
	})
	return cpu
}

// Enqueue appends the task to the tail of the shared queue.
func (f *FIFO) Enqueue(id model.TaskID, flags uint64) {
	if tc, ok := f.reg.get(id); ok {
		f.markWaiting(tc)
	}
	f.obs.Enqueued(0)
	f.q.Push(queue.Entry{Task: id, SliceNS: f.sliceNS})
}

// Dispatch hands the processor the head of the queue, if any.
func (f *FIFO) Dispatch(cpu model.CPUID) (model.SchedulingDecision, bool) {
	e, ok := f.q.Pop()
	if !ok {
		return model.SchedulingDecision{}, false
	}
	f.obs.Dispatched(0)
	return model.SchedulingDecision{
		Task:    e.Task,
		CPU:     cpu,
		Level:   0,
		SliceNS: e.SliceNS,
	}, true
}

// Running accounts the context switch and the wait episode that just ended.
func (f *FIFO) Running(id model.TaskID) {
	if tc, ok := f.reg.get(id); ok {
		f.accountRunning(tc)
	}
}

// Stopping accounts the CPU time of the run episode that just ended. The
// FIFO policy has a single level and never demotes.
func (f *FIFO) Stopping(id model.TaskID, runnable bool) {
	if tc, ok := f.reg.get(id); ok {
		f.accountStopping(tc)
	}
}

// ExitTask forgets the task's state.
func (f *FIFO) ExitTask(id model.TaskID) {
	f.reg.forget(id)
}

// QueueDepth reports the current shared-queue length, for observability.
func (f *FIFO) QueueDepth() int {
	return f.q.Len()
}
