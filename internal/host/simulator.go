// Package host simulates the scheduling host: a set of processors driving a
// policy's lifecycle hooks against a synthetic workload. The simulation is
// discrete-event on a virtual clock, so runs are deterministic for a fixed
// seed and finish as fast as the machine allows.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/emirpasic/gods/trees/binaryheap"
	"github.com/me/schedpol/internal/policy"
	"github.com/me/schedpol/pkg/model"
)

type eventKind int

const (
	evArrive eventKind = iota
	evStop
)

// event is one point on the simulated timeline. seq breaks time ties so
// event order is fully deterministic.
type event struct {
	at   uint64
	seq  uint64
	kind eventKind
	task model.TaskID
	cpu  model.CPUID
}

// simTask is the host-side view of one task.
type simTask struct {
	spec        TaskSpec
	remainingNS uint64
	started     bool
	firstRunNS  uint64
	lastCPU     model.CPUID
}

// cpuState models one simulated processor: either running a task to its
// slice (or completion) boundary, or idle with an optional local run slot
// filled by the policy's fast path.
type cpuState struct {
	busy     bool
	task     model.TaskID
	runStart uint64
	local    []model.SchedulingDecision
}

// Summary reports the outcome of a finished simulation.
type Summary struct {
	Completed  int
	ElapsedNS  uint64
	TotalWork  uint64
	InitErrors int
}

// Simulator drives one policy over one workload. It implements
// policy.Topology so the policy's idle search and fast path operate on the
// simulated processors.
type Simulator struct {
	pol     policy.Policy
	clock   *VirtualClock
	logger  *slog.Logger
	log     *RunLog // optional
	pace    float64 // simulated-ns per real-ns slowdown factor; 0 = flat out
	cpus    []cpuState
	events  *binaryheap.Heap
	seq     uint64
	tasks   map[model.TaskID]*simTask
	summary Summary

	fastPathed bool // set by DispatchLocal during a SelectCPU call
}

// SimOptions configures a Simulator.
type SimOptions struct {
	Processors int
	Clock      *VirtualClock
	Logger     *slog.Logger
	RunLog     *RunLog
	// Pace slows the event loop to roughly real time when set to 1.0;
	// 0 runs the simulation as fast as possible.
	Pace float64
}

// NewSimulator builds a simulator for the given policy. The policy must
// have been constructed with opts.Clock as its Clock and, for the fast path
// to work, with the returned simulator as its Topology.
func NewSimulator(pol policy.Policy, opts SimOptions) *Simulator {
	if opts.Processors <= 0 {
		opts.Processors = 1
	}
	if opts.Clock == nil {
		opts.Clock = NewVirtualClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Simulator{
		pol:    pol,
		clock:  opts.Clock,
		logger: opts.Logger.With("component", "host"),
		log:    opts.RunLog,
		pace:   opts.Pace,
		cpus:   make([]cpuState, opts.Processors),
		tasks:  make(map[model.TaskID]*simTask),
		events: binaryheap.NewWith(func(a, b interface{}) int {
			ea, eb := a.(event), b.(event)
			switch {
			case ea.at != eb.at:
				if ea.at < eb.at {
					return -1
				}
				return 1
			case ea.seq < eb.seq:
				return -1
			case ea.seq > eb.seq:
				return 1
			default:
				return 0
			}
		}),
	}
	return s
}

// --- policy.Topology ---

// SelectIdleCPU prefers the task's previous processor when it is idle, then
// any other idle processor. Tasks that never ran pass CPUNone as prev and
// skip the preference; CPUNone comes back when nothing is idle.
func (s *Simulator) SelectIdleCPU(_ model.TaskID, prev model.CPUID, _ uint64) (model.CPUID, bool) {
	if s.isIdle(prev) {
		return prev, true
	}
	for i := range s.cpus {
		if cpu := model.CPUID(i); s.isIdle(cpu) {
			return cpu, true
		}
	}
	return model.CPUNone, false
}

// DispatchLocal fills the chosen processor's local run slot.
func (s *Simulator) DispatchLocal(d model.SchedulingDecision) {
	if int(d.CPU) < 0 || int(d.CPU) >= len(s.cpus) {
		return
	}
	s.cpus[d.CPU].local = append(s.cpus[d.CPU].local, d)
	s.fastPathed = true
}

func (s *Simulator) isIdle(cpu model.CPUID) bool {
	if int(cpu) < 0 || int(cpu) >= len(s.cpus) {
		return false
	}
	c := &s.cpus[cpu]
	return !c.busy && len(c.local) == 0
}

// --- event loop ---

func (s *Simulator) push(ev event) {
	ev.seq = s.seq
	s.seq++
	s.events.Push(ev)
}

// Run executes the workload to completion and returns the summary.
func (s *Simulator) Run(ctx context.Context, w Workload) (Summary, error) {
	s.summary = Summary{TotalWork: w.TotalWorkNS()}
	for i := range w.Specs {
		spec := w.Specs[i]
		s.tasks[spec.ID] = &simTask{spec: spec, remainingNS: spec.WorkNS, lastCPU: model.CPUNone}
		s.push(event{at: spec.ArrivalNS + 1, kind: evArrive, task: spec.ID})
	}

	last := s.clock.Now()
	for {
		v, ok := s.events.Pop()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return s.summary, err
		}
		ev := v.(event)
		if s.pace > 0 && ev.at > last {
			time.Sleep(time.Duration(float64(ev.at-last) / s.pace))
		}
		last = ev.at
		s.clock.Set(ev.at)

		switch ev.kind {
		case evArrive:
			s.handleArrive(ev.task)
		case evStop:
			s.handleStop(ev.cpu)
		}
	}

	s.summary.ElapsedNS = s.clock.Now()
	if s.summary.Completed != len(w.Specs) {
		return s.summary, fmt.Errorf("simulation ended with %d of %d tasks incomplete",
			len(w.Specs)-s.summary.Completed, len(w.Specs))
	}
	return s.summary, nil
}

// handleArrive runs the wakeup path: init, enable, select_cpu, and either
// the fast path into a local slot or a shared-queue enqueue.
func (s *Simulator) handleArrive(id model.TaskID) {
	t := s.tasks[id]

	if err := s.pol.InitTask(id, t.spec.TGID); err != nil {
		// Degraded mode: the task still runs, just without state.
		s.summary.InitErrors++
		s.logger.Warn("init_task failed, scheduling with defaults", "task", uint64(id), "error", err)
	}
	s.pol.Enable(id)

	s.fastPathed = false
	cpu := s.pol.SelectCPU(id, t.lastCPU, model.EnqWakeup)
	if s.fastPathed {
		s.tryStart(cpu)
		return
	}

	s.pol.Enqueue(id, model.EnqWakeup)
	for i := range s.cpus {
		if c := model.CPUID(i); s.isIdle(c) {
			s.tryStart(c)
			break
		}
	}
}

// handleStop ends the current run episode on cpu: accounts it, re-enqueues
// or retires the task, and pulls the next piece of work.
func (s *Simulator) handleStop(cpu model.CPUID) {
	c := &s.cpus[cpu]
	t := s.tasks[c.task]
	now := s.clock.Now()

	ran := now - c.runStart
	if ran > t.remainingNS {
		ran = t.remainingNS
	}
	t.remainingNS -= ran
	c.busy = false

	s.pol.Stopping(c.task, t.remainingNS > 0)

	if t.remainingNS > 0 {
		// Slice expired with work left: straight back to the tail of
		// its level's queue, no wakeup path.
		s.pol.Enqueue(c.task, 0)
	} else {
		s.pol.ExitTask(c.task)
		s.summary.Completed++
		if s.log != nil {
			if err := s.log.Record(t.spec, t.firstRunNS, now); err != nil {
				s.logger.Error("run log write failed", "error", err)
			}
		}
	}

	s.tryStart(cpu)
}

// tryStart gives an idle processor work: its local slot first, then the
// shared queues. Does nothing if both are empty.
func (s *Simulator) tryStart(cpu model.CPUID) {
	c := &s.cpus[cpu]
	if c.busy {
		return
	}

	var d model.SchedulingDecision
	if len(c.local) > 0 {
		d = c.local[0]
		c.local = c.local[1:]
	} else {
		var ok bool
		if d, ok = s.pol.Dispatch(cpu); !ok {
			return
		}
	}

	t := s.tasks[d.Task]
	now := s.clock.Now()

	c.busy = true
	c.task = d.Task
	c.runStart = now
	t.lastCPU = cpu
	if !t.started {
		t.started = true
		t.firstRunNS = now
	}

	s.pol.Running(d.Task)

	run := d.SliceNS
	if t.remainingNS < run {
		run = t.remainingNS
	}
	s.push(event{at: now + run, kind: evStop, cpu: cpu})
}
