package storage

import (
	"context"

	"perp-crowd-scanner/internal/domain"
)

// RunStore provides access to scan_runs storage.
type RunStore interface {
	// Reset removes every run and every signal, leaving an empty store.
	Reset(ctx context.Context) error

	// CreateRun stores a new run and returns its id. Ids are monotonic per store.
	// The assigned id is also written back into r.RunID.
	CreateRun(ctx context.Context, r *domain.RunRecord) (int64, error)

	// LatestRun returns the run with the highest id. Returns ErrNotFound if the store is empty.
	LatestRun(ctx context.Context) (*domain.RunRecord, error)
}

// SignalStore provides access to scan_hits storage.
type SignalStore interface {
	// Upsert inserts or replaces a signal keyed by (run_id, symbol, setup).
	// Returns ErrUnknownRun if the run does not exist.
	Upsert(ctx context.Context, s *domain.SignalRecord) error

	// GetByRun retrieves all signals of a run, ordered by open interest DESC.
	GetByRun(ctx context.Context, runID int64) ([]*domain.SignalRecord, error)
}

// ScanStore combines run and signal storage of one backend.
type ScanStore interface {
	RunStore
	SignalStore
}
