package policy

import (
	"github.com/me/schedpol/pkg/model"
)

// fakeClock is a manually advanced Clock. A zero value means "timestamp
// unavailable", matching the Clock contract.
type fakeClock struct {
	now uint64
}

func (c *fakeClock) Now() uint64 { return c.now }

// fakeTopology scripts the host's idle search and captures local dispatches.
type fakeTopology struct {
	cpu   model.CPUID
	idle  bool
	local []model.SchedulingDecision
}

func (t *fakeTopology) SelectIdleCPU(model.TaskID, model.CPUID, uint64) (model.CPUID, bool) {
	if t.idle {
		return t.cpu, true
	}
	return model.CPUNone, false
}

func (t *fakeTopology) DispatchLocal(d model.SchedulingDecision) {
	t.local = append(t.local, d)
}

// countingObserver tallies observer callbacks.
type countingObserver struct {
	localDispatched map[int]int
	enqueued        map[int]int
	dispatched      map[int]int
	demoted         int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{
		localDispatched: map[int]int{},
		enqueued:        map[int]int{},
		dispatched:      map[int]int{},
	}
}

func (o *countingObserver) LocalDispatched(level int) { o.localDispatched[level]++ }
func (o *countingObserver) Enqueued(level int)        { o.enqueued[level]++ }
func (o *countingObserver) Dispatched(level int)      { o.dispatched[level]++ }
func (o *countingObserver) Demoted()                  { o.demoted++ }
