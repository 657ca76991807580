package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/me/schedpol/internal/logging"
	"github.com/me/schedpol/internal/metrics"
	"github.com/me/schedpol/internal/server"
	"github.com/me/schedpol/internal/stats"
	"github.com/me/schedpol/internal/store"
	"github.com/me/schedpol/pkg/model"
)

// seedTestDB creates a statistics database with one run and two processes.
func seedTestDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stats.db")

	st, err := store.NewSQLiteStore(path, logging.Discard())
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("migrate test store: %v", err)
	}

	now := time.Now().UTC()
	run := &model.Run{ID: "run-abc", Policy: "mlfq", StartedAt: now, UpdatedAt: now}
	if err := st.CreateRun(ctx, run); err != nil {
		t.Fatalf("create run: %v", err)
	}

	rows := []model.ProcessRow{
		{TGID: 1000, Stats: model.ProcessStats{
			TotalWaitNS: 40_000_000, WaitEvents: 4, ContextSwitches: 6, CPUTimeNS: 120_000_000,
		}},
		{TGID: 1001, Stats: model.ProcessStats{
			TotalWaitNS: 10_000_000, WaitEvents: 2, ContextSwitches: 2, CPUTimeNS: 30_000_000,
		}},
	}
	if err := st.UpsertProcessStats(ctx, run.ID, rows); err != nil {
		t.Fatalf("upsert stats: %v", err)
	}
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestReportFromDatabase(t *testing.T) {
	path := seedTestDB(t)

	out, err := runCommand(t, "report", "--db", path)
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}

	if !strings.Contains(out, "run-abc") {
		t.Errorf("output missing run id:\n%s", out)
	}
	if !strings.Contains(out, "1000") || !strings.Contains(out, "1001") {
		t.Errorf("output missing process rows:\n%s", out)
	}
	// 1000 has the larger CPU time and must come first.
	if strings.Index(out, "1000") > strings.Index(out, "1001") {
		t.Errorf("rows not ordered by CPU time:\n%s", out)
	}
}

func TestReportTopN(t *testing.T) {
	path := seedTestDB(t)

	out, err := runCommand(t, "report", "--db", path, "--top", "1")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if !strings.Contains(out, "(top 1 of 2 processes)") {
		t.Errorf("output missing truncation note:\n%s", out)
	}
}

func TestReportMissingDatabase(t *testing.T) {
	_, err := runCommand(t, "report", "--db", filepath.Join(t.TempDir(), "absent.db"))
	if err == nil {
		t.Fatal("expected error for missing database")
	}
}

func TestReportEmptyDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.NewSQLiteStore(path, logging.Discard())
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate test store: %v", err)
	}
	st.Close()

	out, err := runCommand(t, "report", "--db", path)
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if !strings.Contains(out, "No statistics recorded.") {
		t.Errorf("output = %q, want empty-table message", out)
	}
}

func TestReportUnknownRun(t *testing.T) {
	path := seedTestDB(t)

	_, err := runCommand(t, "report", "--db", path, "--run", "nope")
	if err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestWatchFetchesLiveStats(t *testing.T) {
	agg := stats.NewAggregator()
	agg.Get(2000).AddCPUTime(75_000_000)
	agg.Get(2000).ContextSwitchIn()

	srv := server.New("fifo", "run-live", agg, metrics.NewCollector("fifo"), logging.Discard())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	out, err := runCommand(t, "watch", "--server", ts.URL, "--count", "1")
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}
	if !strings.Contains(out, "run-live") {
		t.Errorf("output missing run id:\n%s", out)
	}
	if !strings.Contains(out, "2000") {
		t.Errorf("output missing process row:\n%s", out)
	}
}

func TestWatchUnreachableServer(t *testing.T) {
	_, err := runCommand(t, "watch", "--server", "http://127.0.0.1:1", "--count", "1")
	if err == nil {
		t.Fatal("expected error for unreachable engine")
	}
}
