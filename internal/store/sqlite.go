package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/schedpol/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns
// a Store. Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// WAL mode lets the reporting tool read while the engine flushes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Runs ---

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.Run) error {
	s.logger.Debug("sql", "op", "insert", "table", "runs", "id", run.ID)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, policy, started_at, updated_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Policy,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	return s.scanRun(s.db.QueryRowContext(ctx,
		`SELECT id, policy, started_at, updated_at FROM runs WHERE id = ?`, id))
}

func (s *SQLiteStore) LatestRun(ctx context.Context) (*model.Run, error) {
	return s.scanRun(s.db.QueryRowContext(ctx,
		`SELECT id, policy, started_at, updated_at FROM runs
		 ORDER BY started_at DESC, id DESC LIMIT 1`))
}

func (s *SQLiteStore) scanRun(row *sql.Row) (*model.Run, error) {
	var run model.Run
	var startedAt, updatedAt string

	err := row.Scan(&run.ID, &run.Policy, &startedAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if run.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &run, nil
}

// --- Process statistics ---

func (s *SQLiteStore) UpsertProcessStats(ctx context.Context, runID string, rows []model.ProcessRow) error {
	s.logger.Debug("sql", "op", "upsert", "table", "proc_stats", "run_id", runID, "rows", len(rows))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO proc_stats (run_id, tgid, total_wait_ns, wait_events, context_switches, cpu_time_ns)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, tgid) DO UPDATE SET
			total_wait_ns    = excluded.total_wait_ns,
			wait_events      = excluded.wait_events,
			context_switches = excluded.context_switches,
			cpu_time_ns      = excluded.cpu_time_ns`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, runID, int64(r.TGID),
			int64(r.Stats.TotalWaitNS), int64(r.Stats.WaitEvents),
			int64(r.Stats.ContextSwitches), int64(r.Stats.CPUTimeNS)); err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert tgid %d: %w", r.TGID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE runs SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), runID); err != nil {
		tx.Rollback()
		return fmt.Errorf("touch run %s: %w", runID, err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) ListProcessStats(ctx context.Context, runID string) ([]model.ProcessRow, error) {
	s.logger.Debug("sql", "op", "select", "table", "proc_stats", "run_id", runID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT tgid, total_wait_ns, wait_events, context_switches, cpu_time_ns
		 FROM proc_stats WHERE run_id = ? ORDER BY tgid`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ProcessRow
	for rows.Next() {
		var tgid, wait, events, cs, cpu int64
		if err := rows.Scan(&tgid, &wait, &events, &cs, &cpu); err != nil {
			return nil, err
		}
		out = append(out, model.ProcessRow{
			TGID: model.TGID(tgid),
			Stats: model.ProcessStats{
				TotalWaitNS:     uint64(wait),
				WaitEvents:      uint64(events),
				ContextSwitches: uint64(cs),
				CPUTimeNS:       uint64(cpu),
			},
		})
	}
	return out, rows.Err()
}
