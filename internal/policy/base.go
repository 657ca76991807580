package policy

import (
	"github.com/me/schedpol/internal/stats"
)

// Options configures a policy. Zero fields take defaults.
type Options struct {
	// Capacity bounds the task registry (default DefaultCapacity).
	Capacity int

	// TopSliceNS is the time slice granted at level 0 (default 50ms).
	TopSliceNS uint64

	// BottomSliceNS is the time slice granted at level 1 (default 200ms).
	// Ignored by the FIFO policy.
	BottomSliceNS uint64

	// Clock supplies timestamps (default: monotonic since construction).
	Clock Clock

	// Topology is the host processor surface (default: nothing is idle).
	Topology Topology

	// Stats receives accounting events (default: a fresh aggregator).
	Stats *stats.Aggregator

	// Observer receives policy events for metrics (default: discard).
	Observer Observer
}

func (o Options) withDefaults() Options {
	if o.Capacity <= 0 {
		o.Capacity = DefaultCapacity
	}
	if o.TopSliceNS == 0 {
		o.TopSliceNS = DefaultTopSliceNS
	}
	if o.BottomSliceNS == 0 {
		o.BottomSliceNS = DefaultBottomSliceNS
	}
	if o.Clock == nil {
		o.Clock = NewMonotonicClock()
	}
	if o.Topology == nil {
		o.Topology = noTopology{}
	}
	if o.Stats == nil {
		o.Stats = stats.NewAggregator()
	}
	if o.Observer == nil {
		o.Observer = nopObserver{}
	}
	return o
}

// base carries the collaborators and the accounting shared by both policies.
type base struct {
	reg   *registry
	agg   *stats.Aggregator
	clock Clock
	topo  Topology
	obs   Observer
}

func newBase(o Options) base {
	return base{
		reg:   newRegistry(o.Capacity),
		agg:   o.Stats,
		clock: o.Clock,
		topo:  o.Topology,
		obs:   o.Observer,
	}
}

// Stats exposes the aggregator backing this policy's accounting.
func (b *base) Stats() *stats.Aggregator {
	return b.agg
}

// TrackedTasks reports how many tasks currently have registered state.
func (b *base) TrackedTasks() int {
	return b.reg.size()
}

// markWaiting records the start of a wait episode, unless one is already
// pending: an earlier wait-start must never be overwritten.
func (b *base) markWaiting(tc *taskCtx) {
	if tc.enqNS != 0 {
		return
	}
	if now := b.clock.Now(); now != 0 {
		tc.enqNS = now
	}
}

// accountRunning charges the finished wait episode (if any) to the task's
// process, counts the context switch in, and stamps the run start.
func (b *base) accountRunning(tc *taskCtx) {
	p := b.agg.Get(tc.tgid)
	p.ContextSwitchIn()

	now := b.clock.Now()
	if now == 0 {
		// No usable timestamp: leave the wait pending and skip the
		// run-start stamp so no interval is misattributed.
		return
	}
	if tc.enqNS != 0 {
		if now > tc.enqNS {
			p.AddWait(now - tc.enqNS)
		} else {
			p.AddWait(0)
		}
		tc.enqNS = 0
	}
	tc.runNS = now
}

// accountStopping charges the finished run episode (if any) to the task's
// process and clears the run-start stamp.
func (b *base) accountStopping(tc *taskCtx) {
	if tc.runNS == 0 {
		return
	}
	if now := b.clock.Now(); now > tc.runNS {
		b.agg.Get(tc.tgid).AddCPUTime(now - tc.runNS)
	}
	tc.runNS = 0
}
