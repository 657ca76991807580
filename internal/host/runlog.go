package host

import (
	"encoding/csv"
	"os"
	"strconv"
)

// runLogHeader declares the exact column order of the per-task run log.
var runLogHeader = []string{
	"pid", "child_index", "arrive_ns", "start_ns", "end_ns", "duration_ns", "work_ns",
}

// RunLog appends one line per completed task to a CSV file: arrival,
// first-run, and completion timestamps plus the task's work amount.
type RunLog struct {
	file   *os.File
	writer *csv.Writer
}

// NewRunLog creates (truncates) the log file and writes the header line.
func NewRunLog(path string) (*RunLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	if err := w.Write(runLogHeader); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()
	return &RunLog{file: f, writer: w}, nil
}

// Record logs one completed task.
func (l *RunLog) Record(spec TaskSpec, startNS, endNS uint64) error {
	rec := []string{
		strconv.FormatUint(uint64(spec.TGID), 10),
		strconv.Itoa(spec.Index),
		strconv.FormatUint(spec.ArrivalNS, 10),
		strconv.FormatUint(startNS, 10),
		strconv.FormatUint(endNS, 10),
		strconv.FormatUint(endNS-spec.ArrivalNS, 10),
		strconv.FormatUint(spec.WorkNS, 10),
	}
	if err := l.writer.Write(rec); err != nil {
		return err
	}
	l.writer.Flush()
	return l.writer.Error()
}

// Close flushes and closes the underlying file.
func (l *RunLog) Close() error {
	l.writer.Flush()
	if err := l.writer.Error(); err != nil {
		l.file.Close()
		return err
	}
	return l.file.Close()
}
