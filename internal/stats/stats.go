// Package stats aggregates per-process scheduling statistics: wait time,
// wait episodes, context switches in, and cumulative CPU time, keyed by
// process id (tgid). All updates are atomic so the scheduling hooks can
// record events from every processor without taking a lock.
package stats

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/me/schedpol/pkg/model"
)

// Proc holds the live counters for one process. Counters only ever grow;
// nothing in the engine decrements or clears them.
type Proc struct {
	totalWaitNS     atomic.Uint64
	waitEvents      atomic.Uint64
	contextSwitches atomic.Uint64
	cpuTimeNS       atomic.Uint64
}

// AddWait records one completed wait episode of the given duration.
func (p *Proc) AddWait(ns uint64) {
	p.totalWaitNS.Add(ns)
	p.waitEvents.Add(1)
}

// ContextSwitchIn records one context switch into a task of this process.
func (p *Proc) ContextSwitchIn() {
	p.contextSwitches.Add(1)
}

// AddCPUTime records ns of CPU time consumed by a task of this process.
func (p *Proc) AddCPUTime(ns uint64) {
	p.cpuTimeNS.Add(ns)
}

// Load returns a point-in-time copy of the counters.
func (p *Proc) Load() model.ProcessStats {
	return model.ProcessStats{
		TotalWaitNS:     p.totalWaitNS.Load(),
		WaitEvents:      p.waitEvents.Load(),
		ContextSwitches: p.contextSwitches.Load(),
		CPUTimeNS:       p.cpuTimeNS.Load(),
	}
}

// Aggregator is a concurrent map of tgid to live counters. Records are
// created lazily on first observation of a tgid and live until Reset.
type Aggregator struct {
	procs sync.Map // model.TGID -> *Proc
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Get returns the counter record for tgid, creating a zeroed one if this is
// the first observation. Concurrent first observers all receive the same
// record; exactly one allocation wins.
func (a *Aggregator) Get(tgid model.TGID) *Proc {
	if p, ok := a.procs.Load(tgid); ok {
		return p.(*Proc)
	}
	p, _ := a.procs.LoadOrStore(tgid, &Proc{})
	return p.(*Proc)
}

// Snapshot copies all records, ordered by tgid for stable output. Each
// counter is read atomically; a snapshot taken while the engine runs is a
// valid lower bound for every counter.
func (a *Aggregator) Snapshot() []model.ProcessRow {
	var rows []model.ProcessRow
	a.procs.Range(func(k, v any) bool {
		rows = append(rows, model.ProcessRow{
			TGID:  k.(model.TGID),
			Stats: v.(*Proc).Load(),
		})
		return true
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].TGID < rows[j].TGID })
	return rows
}

// Reset drops all records. The engine never calls this; it exists for
// tooling that wants to start a fresh measurement window.
func (a *Aggregator) Reset() {
	a.procs.Range(func(k, _ any) bool {
		a.procs.Delete(k)
		return true
	})
}
