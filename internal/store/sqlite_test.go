package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/me/schedpol/pkg/model"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := NewSQLiteStore(":memory:", logger)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestMigrateIdempotent(t *testing.T) {
	st := testStore(t)
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestRunRoundTrip(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	run := &model.Run{ID: "run-1", Policy: "mlfq", StartedAt: now, UpdatedAt: now}
	if err := st.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	got, err := st.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got == nil || got.ID != "run-1" || got.Policy != "mlfq" {
		t.Fatalf("GetRun = %+v", got)
	}
	if !got.StartedAt.Equal(now) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, now)
	}

	if got, err := st.GetRun(ctx, "nope"); err != nil || got != nil {
		t.Fatalf("GetRun(unknown) = (%+v, %v), want (nil, nil)", got, err)
	}
}

func TestLatestRun(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	if got, err := st.LatestRun(ctx); err != nil || got != nil {
		t.Fatalf("LatestRun on empty table = (%+v, %v), want (nil, nil)", got, err)
	}

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		run := &model.Run{
			ID: id, Policy: "fifo",
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base,
		}
		if err := st.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun(%s): %v", id, err)
		}
	}

	got, err := st.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun: %v", err)
	}
	if got.ID != "run-c" {
		t.Fatalf("LatestRun = %s, want run-c", got.ID)
	}
}

func TestUpsertAndListProcessStats(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	run := &model.Run{ID: "run-1", Policy: "fifo", StartedAt: now, UpdatedAt: now}
	if err := st.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	first := []model.ProcessRow{
		{TGID: 200, Stats: model.ProcessStats{TotalWaitNS: 10, WaitEvents: 1, ContextSwitches: 2, CPUTimeNS: 100}},
		{TGID: 100, Stats: model.ProcessStats{CPUTimeNS: 50}},
	}
	if err := st.UpsertProcessStats(ctx, "run-1", first); err != nil {
		t.Fatalf("UpsertProcessStats: %v", err)
	}

	// A later flush carries grown counters for one tgid and a new tgid.
	second := []model.ProcessRow{
		{TGID: 200, Stats: model.ProcessStats{TotalWaitNS: 30, WaitEvents: 3, ContextSwitches: 5, CPUTimeNS: 400}},
		{TGID: 300, Stats: model.ProcessStats{WaitEvents: 1}},
	}
	if err := st.UpsertProcessStats(ctx, "run-1", second); err != nil {
		t.Fatalf("second UpsertProcessStats: %v", err)
	}

	rows, err := st.ListProcessStats(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListProcessStats: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	// Ordered by tgid.
	if rows[0].TGID != 100 || rows[1].TGID != 200 || rows[2].TGID != 300 {
		t.Fatalf("row order = %d,%d,%d", rows[0].TGID, rows[1].TGID, rows[2].TGID)
	}
	if rows[1].Stats.CPUTimeNS != 400 || rows[1].Stats.WaitEvents != 3 {
		t.Fatalf("tgid 200 not updated: %+v", rows[1].Stats)
	}
	if rows[0].Stats.CPUTimeNS != 50 {
		t.Fatalf("tgid 100 overwritten: %+v", rows[0].Stats)
	}
}

func TestListProcessStatsUnknownRun(t *testing.T) {
	st := testStore(t)
	rows, err := st.ListProcessStats(context.Background(), "missing")
	if err != nil {
		t.Fatalf("ListProcessStats: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("got %d rows, want 0", len(rows))
	}
}

// A second store handle on the same file sees flushed rows, which is how
// the reporting tool reads while the engine runs.
func TestSecondReaderSeesFlushedRows(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "stats.db")
	ctx := context.Background()

	writer, err := NewSQLiteStore(path, logger)
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	defer writer.Close()
	if err := writer.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	now := time.Now().UTC()
	if err := writer.CreateRun(ctx, &model.Run{ID: "r", Policy: "mlfq", StartedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := writer.UpsertProcessStats(ctx, "r", []model.ProcessRow{
		{TGID: 1, Stats: model.ProcessStats{CPUTimeNS: 9}},
	}); err != nil {
		t.Fatalf("UpsertProcessStats: %v", err)
	}

	reader, err := NewSQLiteStore(path, logger)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer reader.Close()

	run, err := reader.LatestRun(ctx)
	if err != nil || run == nil {
		t.Fatalf("reader LatestRun = (%+v, %v)", run, err)
	}
	rows, err := reader.ListProcessStats(ctx, run.ID)
	if err != nil {
		t.Fatalf("reader ListProcessStats: %v", err)
	}
	if len(rows) != 1 || rows[0].Stats.CPUTimeNS != 9 {
		t.Fatalf("reader rows = %+v", rows)
	}
}
