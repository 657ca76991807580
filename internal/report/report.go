// Package report computes the derived, human-facing view of the persisted
// statistics table: per-process rows with CPU share and average wait,
// overall totals, and a rendered table.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/me/schedpol/pkg/model"
)

// Row is one process in the report, with the derived metrics the engine
// itself never stores.
type Row struct {
	TGID            model.TGID
	CPUTimeNS       uint64
	CPUShare        float64 // percent of total CPU time across all processes
	ContextSwitches uint64
	TotalWaitNS     uint64
	WaitEvents      uint64
	AvgWaitNS       uint64 // 0 when the process never waited
}

// Report is the full result of a query: rows sorted descending by CPU time
// (ties broken by ascending tgid), optionally truncated to the top N, plus
// totals over all processes (not just the shown ones).
type Report struct {
	Policy string
	RunID  string

	Rows      []Row
	Processes int // total recorded processes, before truncation

	TotalWaitNS          uint64
	TotalWaitEvents      uint64
	TotalCPUTimeNS       uint64
	TotalContextSwitches uint64
}

// Empty reports whether no process was ever recorded.
func (r *Report) Empty() bool {
	return r.Processes == 0
}

// OverallAvgWaitNS is the average wait across every wait episode of every
// process.
func (r *Report) OverallAvgWaitNS() uint64 {
	if r.TotalWaitEvents == 0 {
		return 0
	}
	return r.TotalWaitNS / r.TotalWaitEvents
}

// Build computes a Report from raw counter rows. topN <= 0 means all rows.
func Build(rows []model.ProcessRow, topN int) *Report {
	r := &Report{Processes: len(rows)}

	for _, pr := range rows {
		r.TotalWaitNS += pr.Stats.TotalWaitNS
		r.TotalWaitEvents += pr.Stats.WaitEvents
		r.TotalCPUTimeNS += pr.Stats.CPUTimeNS
		r.TotalContextSwitches += pr.Stats.ContextSwitches
	}

	out := make([]Row, 0, len(rows))
	for _, pr := range rows {
		row := Row{
			TGID:            pr.TGID,
			CPUTimeNS:       pr.Stats.CPUTimeNS,
			ContextSwitches: pr.Stats.ContextSwitches,
			TotalWaitNS:     pr.Stats.TotalWaitNS,
			WaitEvents:      pr.Stats.WaitEvents,
		}
		if pr.Stats.WaitEvents > 0 {
			row.AvgWaitNS = pr.Stats.TotalWaitNS / pr.Stats.WaitEvents
		}
		if r.TotalCPUTimeNS > 0 {
			row.CPUShare = 100 * float64(pr.Stats.CPUTimeNS) / float64(r.TotalCPUTimeNS)
		}
		out = append(out, row)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CPUTimeNS != out[j].CPUTimeNS {
			return out[i].CPUTimeNS > out[j].CPUTimeNS
		}
		return out[i].TGID < out[j].TGID
	})

	if topN > 0 && topN < len(out) {
		out = out[:topN]
	}
	r.Rows = out
	return r
}

func nsToMS(ns uint64) float64 {
	return float64(ns) / 1e6
}

// Render writes the report as a plain-text table.
func (r *Report) Render(w io.Writer) {
	if r.Empty() {
		fmt.Fprintln(w, "No statistics recorded.")
		return
	}

	fmt.Fprintln(w, "Scheduling statistics (per process)")
	if r.RunID != "" {
		fmt.Fprintf(w, "Run: %s (policy %s)\n", r.RunID, r.Policy)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Overall average waiting time: %.3f ms (events=%s)\n",
		nsToMS(r.OverallAvgWaitNS()), humanize.Comma(int64(r.TotalWaitEvents)))
	fmt.Fprintf(w, "Total CPU time: %.3f ms | Total context switches (in): %s\n",
		nsToMS(r.TotalCPUTimeNS), humanize.Comma(int64(r.TotalContextSwitches)))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%-8s %12s %8s %12s %14s %12s\n",
		"TGID", "CPU(ms)", "CPU%", "CS(in)", "AvgWait(ms)", "WaitEv")
	fmt.Fprintln(w, "-----------------------------------------------------------------")

	for _, row := range r.Rows {
		fmt.Fprintf(w, "%-8d %12.3f %7.2f%% %12s %14.3f %12s\n",
			row.TGID,
			nsToMS(row.CPUTimeNS),
			row.CPUShare,
			humanize.Comma(int64(row.ContextSwitches)),
			nsToMS(row.AvgWaitNS),
			humanize.Comma(int64(row.WaitEvents)))
	}

	if shown := len(r.Rows); shown < r.Processes {
		fmt.Fprintf(w, "\n(top %d of %d processes)\n", shown, r.Processes)
	}
}
