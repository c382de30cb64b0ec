// Package orchestrator provides end-to-end scan orchestration.
// It coordinates: reset → run creation → universe → scan → readback
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"perp-crowd-scanner/internal/domain"
	"perp-crowd-scanner/internal/observability"
	"perp-crowd-scanner/internal/scanner"
	"perp-crowd-scanner/internal/storage"
)

// Universe lists the instruments of a run.
type Universe interface {
	ListTradableSymbols(ctx context.Context) ([]domain.Instrument, error)
}

// ScanRunner scans a universe under a run id.
type ScanRunner interface {
	Run(ctx context.Context, runID int64, instruments []domain.Instrument) (*scanner.Summary, error)
}

// Orchestrator coordinates one scan execution.
type Orchestrator struct {
	store    storage.ScanStore
	universe Universe
	runner   ScanRunner

	period string
	minOI  float64
	now    func() time.Time

	logger  *log.Logger
	verbose bool
}

// Options for creating Orchestrator.
type Options struct {
	// Required collaborators
	Store    storage.ScanStore
	Universe Universe
	Runner   ScanRunner

	// Run parameters recorded with the run
	Period              string
	MinOpenInterestUSDT float64

	// Options
	Now     func() time.Time // defaults to time.Now
	Logger  *log.Logger
	Verbose bool
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		store:    opts.Store,
		universe: opts.Universe,
		runner:   opts.Runner,
		period:   opts.Period,
		minOI:    opts.MinOpenInterestUSDT,
		now:      now,
		logger:   logger,
		verbose:  opts.Verbose,
	}
}

// RunResult contains results from orchestrator execution.
type RunResult struct {
	Run     *domain.RunRecord
	Summary *scanner.Summary
	Signals []*domain.SignalRecord // ordered by open interest DESC
}

// Run executes one scan.
// Phases:
//  1. Reset the store so it only holds the new run
//  2. Create the run record
//  3. Load the universe
//  4. Scan
//  5. Read the run's signals back
//
// Universe and storage faults abort the run. Zero signals is a success.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{}

	o.log("Phase 1: Resetting store...")
	if err := o.store.Reset(ctx); err != nil {
		return nil, fmt.Errorf("phase 1 (reset) failed: %w", err)
	}

	o.log("Phase 2: Creating run...")
	run := &domain.RunRecord{
		StartedAt:           o.now(),
		Period:              o.period,
		MinOpenInterestUSDT: o.minOI,
	}
	if _, err := o.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("phase 2 (create run) failed: %w", err)
	}
	result.Run = run
	o.log("  Run %d (period=%s, min_oi=%.0f)", run.RunID, run.Period, run.MinOpenInterestUSDT)

	o.log("Phase 3: Loading universe...")
	instruments, err := o.universe.ListTradableSymbols(ctx)
	if err != nil {
		observability.RecordRun("scan", "error", 0)
		return result, fmt.Errorf("phase 3 (universe) failed: %w", err)
	}
	o.log("  Found %d symbols", len(instruments))

	o.log("Phase 4: Scanning...")
	summary, err := o.runner.Run(ctx, run.RunID, instruments)
	result.Summary = summary
	if err != nil {
		return result, fmt.Errorf("phase 4 (scan) failed: %w", err)
	}

	o.log("Phase 5: Reading signals...")
	signals, err := o.store.GetByRun(ctx, run.RunID)
	if err != nil {
		return result, fmt.Errorf("phase 5 (read signals) failed: %w", err)
	}
	result.Signals = signals

	observability.MarkRunSucceeded(o.now().Unix())
	o.log("Scan completed: %d/%d scanned, %d passed traders filter, %d signals",
		summary.Scanned, summary.Total, summary.PassedCheapFilter, len(signals))

	return result, nil
}

func (o *Orchestrator) log(format string, args ...interface{}) {
	if o.verbose {
		o.logger.Printf("[orchestrator] "+format, args...)
	}
}
