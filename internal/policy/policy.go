// Package policy implements pluggable CPU-scheduling policies. A policy
// decides, for each idle processor, which waiting task runs next, for how
// long, and how tasks move between priority levels. Two policies are
// provided: a single-level FIFO and a two-level multi-level feedback queue.
//
// The scheduling host invokes the hooks concurrently, one invocation stream
// per processor. A given task's transitions are owned by exactly one
// processor context at a time, so per-task state is unsynchronized; the
// shared dispatch queues and the statistics aggregator use lock-free
// primitives. No hook blocks, sleeps, or performs I/O.
package policy

import (
	"errors"
	"time"

	"github.com/me/schedpol/pkg/model"
)

// Default time slices. The top-level slice bounds round-robin turns at the
// highest priority; the bottom-level slice applies to demoted tasks.
const (
	DefaultTopSliceNS    uint64 = 50 * 1000 * 1000
	DefaultBottomSliceNS uint64 = 200 * 1000 * 1000
)

// DefaultCapacity bounds how many tasks the registry tracks at once.
const DefaultCapacity = 16384

// ErrCapacity is returned by InitTask when the registry cannot allocate
// state for another task. The host keeps scheduling the task; it just runs
// with default top-level behavior and no statistics.
var ErrCapacity = errors.New("policy: task state capacity exhausted")

// Policy is the scheduling-policy capability invoked by the host at fixed
// lifecycle points. Hook semantics follow the sched_ext ops they model:
//
//	InitTask  - allocate per-task state; idempotent.
//	Enable    - task (re-)enters the policy's domain; transient state resets.
//	SelectCPU - choose a processor for a waking task; may fast-path the task
//	            straight into an idle processor's local slot.
//	Enqueue   - task is runnable but was not fast-pathed; queue it.
//	Dispatch  - a processor is out of work; hand it the next task, if any.
//	Running   - the task starts executing.
//	Stopping  - the task stops executing (preempted, blocked, or exited).
//	ExitTask  - the task leaves the policy's domain for good.
type Policy interface {
	Name() string
	InitTask(id model.TaskID, tgid model.TGID) error
	Enable(id model.TaskID)
	SelectCPU(id model.TaskID, prev model.CPUID, wakeFlags uint64) model.CPUID
	Enqueue(id model.TaskID, flags uint64)
	Dispatch(cpu model.CPUID) (model.SchedulingDecision, bool)
	Running(id model.TaskID)
	Stopping(id model.TaskID, runnable bool)
	ExitTask(id model.TaskID)
}

// Clock supplies the monotonic nanosecond timestamps used for wait and CPU
// accounting. Now returns 0 when no timestamp is available; the policy then
// skips the affected statistics update rather than failing the hook.
type Clock interface {
	Now() uint64
}

// NewMonotonicClock returns a Clock reporting nanoseconds since its
// creation, backed by the runtime's monotonic reading.
func NewMonotonicClock() Clock {
	return &monotonicClock{base: time.Now()}
}

type monotonicClock struct {
	base time.Time
}

func (c *monotonicClock) Now() uint64 {
	return uint64(time.Since(c.base))
}

// Topology is the host-side processor surface the policy delegates to.
type Topology interface {
	// SelectIdleCPU runs the host's default idle-processor search for a
	// waking task. The bool reports whether the returned CPU is idle.
	SelectIdleCPU(id model.TaskID, prev model.CPUID, wakeFlags uint64) (model.CPUID, bool)

	// DispatchLocal places a task directly into the decided processor's
	// local run slot, bypassing the shared queues.
	DispatchLocal(d model.SchedulingDecision)
}

// noTopology is the fallback when no host topology is wired: nothing is ever
// idle, so every task goes through the shared queues.
type noTopology struct{}

func (noTopology) SelectIdleCPU(model.TaskID, model.CPUID, uint64) (model.CPUID, bool) {
	return model.CPUNone, false
}

func (noTopology) DispatchLocal(model.SchedulingDecision) {}

// Observer receives policy events for metrics. All methods must be cheap and
// non-blocking; prometheus counters qualify.
type Observer interface {
	LocalDispatched(level int)
	Enqueued(level int)
	Dispatched(level int)
	Demoted()
}

type nopObserver struct{}

func (nopObserver) LocalDispatched(int) {}
func (nopObserver) Enqueued(int)        {}
func (nopObserver) Dispatched(int)      {}
func (nopObserver) Demoted()            {}
