package store

import (
	"context"
	"database/sql"
)

// schema contains the DDL for the statistics tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id         TEXT PRIMARY KEY,
		policy     TEXT NOT NULL,
		started_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS proc_stats (
		run_id           TEXT NOT NULL,
		tgid             INTEGER NOT NULL,
		total_wait_ns    INTEGER NOT NULL DEFAULT 0,
		wait_events      INTEGER NOT NULL DEFAULT 0,
		context_switches INTEGER NOT NULL DEFAULT 0,
		cpu_time_ns      INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, tgid)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	`CREATE INDEX IF NOT EXISTS idx_proc_stats_run_id ON proc_stats(run_id)`,
}

// migrate applies the schema inside a single transaction.
func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
