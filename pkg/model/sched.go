package model

// TaskID uniquely identifies a schedulable task within the engine.
type TaskID uint64

// TGID groups tasks into one logical process for statistics aggregation.
type TGID uint32

// CPUID identifies a logical processor. Negative values mean "no processor".
type CPUID int32

// CPUNone is returned when no processor choice applies.
const CPUNone CPUID = -1

// Wake and enqueue flags are passed through opaquely from the scheduling
// host. Only the bits below are interpreted by the policies.
const (
	// EnqWakeup marks an enqueue caused by a task wakeup rather than a
	// time-slice expiry.
	EnqWakeup uint64 = 1
)

// SchedulingDecision is the transient output of a dispatch or fast-path
// placement: which task runs on which processor, from which priority level,
// and for how long. It is never persisted.
type SchedulingDecision struct {
	Task    TaskID
	CPU     CPUID
	Level   int
	SliceNS uint64
}

// ProcessStats holds the per-process counters accumulated by the engine.
// All four counters are monotonically non-decreasing for the life of the
// process id and default to zero on first observation.
type ProcessStats struct {
	TotalWaitNS     uint64 `json:"total_wait_ns"`
	WaitEvents      uint64 `json:"wait_events"`
	ContextSwitches uint64 `json:"context_switches"`
	CPUTimeNS       uint64 `json:"cpu_time_ns"`
}

// ProcessRow pairs a process id with its counters, as persisted in and read
// back from the statistics table.
type ProcessRow struct {
	TGID  TGID         `json:"tgid"`
	Stats ProcessStats `json:"stats"`
}
