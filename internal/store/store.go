// Package store persists the per-process statistics table so a separate
// process can read it without coordinating with the running engine.
package store

import (
	"context"

	"github.com/me/schedpol/pkg/model"
)

// Store defines the persistence layer for scheduling statistics.
type Store interface {
	// CreateRun records a new measurement window.
	CreateRun(ctx context.Context, run *model.Run) error

	// GetRun returns the run with the given id, or nil if absent.
	GetRun(ctx context.Context, id string) (*model.Run, error)

	// LatestRun returns the most recently started run, or nil if the
	// table is empty.
	LatestRun(ctx context.Context) (*model.Run, error)

	// UpsertProcessStats writes the given counter rows for a run,
	// replacing any previous values for the same (run, tgid). Counters
	// are monotonic, so a later flush always carries values >= the
	// stored ones.
	UpsertProcessStats(ctx context.Context, runID string, rows []model.ProcessRow) error

	// ListProcessStats returns all counter rows of a run, ordered by
	// tgid. An unknown run yields an empty slice, not an error.
	ListProcessStats(ctx context.Context, runID string) ([]model.ProcessRow, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
