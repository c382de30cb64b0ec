package scanner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"perp-crowd-scanner/internal/domain"
	"perp-crowd-scanner/internal/observability"
)

// RunnerOptions configures Runner.
type RunnerOptions struct {
	Scheduler  *Scheduler
	Sink       SinkOptions   // a fresh sink is built per run
	RunTimeout time.Duration // 0 disables the overall deadline
	Logger     *log.Logger
}

// Summary holds the counters of a completed run.
type Summary struct {
	RunID             int64
	Total             int64
	Scanned           int64
	PassedCheapFilter int64
	RecordsEmitted    int64
	RecordsWritten    int64
	Failed            int64
	Dropped           int64
	TimedOut          bool // the run deadline stopped admissions
	Duration          time.Duration
}

// Runner drives one scan: scheduler and sink together, returning once every
// admitted evaluation has returned and the sink has drained.
type Runner struct {
	scheduler  *Scheduler
	sinkOpts   SinkOptions
	runTimeout time.Duration
	logger     *log.Logger
}

// NewRunner creates a new runner.
func NewRunner(opts RunnerOptions) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	sinkOpts := opts.Sink
	if sinkOpts.Logger == nil {
		sinkOpts.Logger = logger
	}
	return &Runner{
		scheduler:  opts.Scheduler,
		sinkOpts:   sinkOpts,
		runTimeout: opts.RunTimeout,
		logger:     logger,
	}
}

// Run scans the instruments under runID. A run deadline is not an error: the
// summary reports TimedOut and the records queued before it are persisted.
// Storage failure after retries and parent cancellation are returned as errors.
func (r *Runner) Run(ctx context.Context, runID int64, instruments []domain.Instrument) (*Summary, error) {
	start := time.Now()

	runCtx := ctx
	if r.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.runTimeout)
		defer cancel()
	}

	sink := NewSink(r.sinkOpts)
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return sink.Run(gctx)
	})

	var stats Stats
	g.Go(func() error {
		defer sink.Close()
		stats = r.scheduler.Run(gctx, runID, instruments, sink.Enqueue)
		return nil
	})

	err := g.Wait()

	summary := &Summary{
		RunID:             runID,
		Total:             stats.Total,
		Scanned:           stats.Scanned,
		PassedCheapFilter: stats.PassedCheapFilter,
		RecordsEmitted:    stats.RecordsEmitted,
		RecordsWritten:    sink.Written(),
		Failed:            stats.Failed,
		Dropped:           stats.Dropped,
		Duration:          time.Since(start),
	}

	if err != nil {
		observability.RecordRun("scan", "error", summary.Duration.Seconds())
		return summary, fmt.Errorf("scan run %d: %w", runID, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		observability.RecordRun("scan", "cancelled", summary.Duration.Seconds())
		return summary, fmt.Errorf("scan run %d: %w", runID, ctxErr)
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && summary.Scanned < summary.Total {
		summary.TimedOut = true
		r.logger.Printf("Run deadline %v reached: %d/%d scanned", r.runTimeout, summary.Scanned, summary.Total)
		observability.RecordRun("scan", "timeout", summary.Duration.Seconds())
		return summary, nil
	}

	observability.RecordRun("scan", "success", summary.Duration.Seconds())
	return summary, nil
}
