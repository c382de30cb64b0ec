package scanner

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"perp-crowd-scanner/internal/domain"
	"perp-crowd-scanner/internal/observability"
)

// Scheduler defaults.
const (
	DefaultConcurrency   = 10
	DefaultPaceDelay     = 20 * time.Millisecond
	DefaultProgressEvery = 25
)

// InstrumentEvaluator evaluates one instrument.
type InstrumentEvaluator interface {
	Evaluate(ctx context.Context, runID int64, inst domain.Instrument) (Evaluation, error)
}

// Emitter hands a record to the sink.
type Emitter func(ctx context.Context, rec domain.SignalRecord) error

// SchedulerOptions configures Scheduler.
type SchedulerOptions struct {
	Evaluator     InstrumentEvaluator
	Concurrency   int           // K; default 10
	PaceDelay     time.Duration // observed before a slot is released; negative disables
	ProgressEvery int           // progress log cadence in scanned instruments
	Logger        *log.Logger
	Verbose       bool // log every aborted evaluation
}

// Scheduler runs evaluations across the universe under a fixed concurrency ceiling.
type Scheduler struct {
	evaluator     InstrumentEvaluator
	concurrency   int
	paceDelay     time.Duration
	progressEvery int
	logger        *log.Logger
	verbose       bool
}

// NewScheduler creates a new scheduler.
func NewScheduler(opts SchedulerOptions) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	k := opts.Concurrency
	if k <= 0 {
		k = DefaultConcurrency
	}
	pace := opts.PaceDelay
	if pace == 0 {
		pace = DefaultPaceDelay
	}
	every := opts.ProgressEvery
	if every <= 0 {
		every = DefaultProgressEvery
	}
	return &Scheduler{
		evaluator:     opts.Evaluator,
		concurrency:   k,
		paceDelay:     pace,
		progressEvery: every,
		logger:        logger,
		verbose:       opts.Verbose,
	}
}

// Run evaluates every instrument and returns when all admitted evaluations
// have returned. Cancelling ctx stops new admissions; the returned Stats then
// has Scanned < Total.
func (s *Scheduler) Run(ctx context.Context, runID int64, instruments []domain.Instrument, emit Emitter) Stats {
	var (
		counters Counters
		wg       sync.WaitGroup
		total    = int64(len(instruments))
	)

	s.logger.Printf("Starting scan of %d symbols (concurrency=%d)", total, s.concurrency)

	gate := semaphore.NewWeighted(int64(s.concurrency))
	for _, inst := range instruments {
		if err := gate.Acquire(ctx, 1); err != nil {
			s.logger.Printf("Scan stopped admitting instruments: %v", err)
			break
		}

		wg.Add(1)
		go func(inst domain.Instrument) {
			defer wg.Done()
			defer gate.Release(1)

			s.scanOne(ctx, runID, inst, emit, &counters, total)
			s.pace(ctx)
		}(inst)
	}
	wg.Wait()

	stats := counters.Snapshot()
	stats.Total = total
	return stats
}

// scanOne never panics and always counts the instrument as scanned.
func (s *Scheduler) scanOne(ctx context.Context, runID int64, inst domain.Instrument, emit Emitter, counters *Counters, total int64) {
	observability.AddInFlight(1)
	defer observability.AddInFlight(-1)

	defer func() {
		n := counters.scanned.Add(1)
		observability.RecordScanned()
		if n%int64(s.progressEvery) == 0 {
			s.logger.Printf("Progress: %d/%d scanned | traders_pass=%d | rows=%d",
				n, total, counters.passed.Load(), counters.emitted.Load())
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			counters.failed.Add(1)
			observability.RecordEvaluationError("panic")
			s.logger.Printf("Evaluation of %s panicked: %v", inst.Symbol, r)
		}
	}()

	ev, err := s.evaluator.Evaluate(ctx, runID, inst)
	if ev.PassedCheapFilter {
		counters.passed.Add(1)
		observability.RecordCheapFilterPassed()
	}
	if err != nil {
		counters.failed.Add(1)
		stage := ev.Stage
		var se *StageError
		if errors.As(err, &se) {
			stage = se.Stage
		}
		observability.RecordEvaluationError(stage)
		if s.verbose && ctx.Err() == nil {
			s.logger.Printf("Skipping %s: %v", inst.Symbol, err)
		}
	}

	for _, rec := range ev.Records {
		if err := emit(ctx, rec); err != nil {
			counters.dropped.Add(1)
			s.logger.Printf("Dropped %s %s: %v", rec.Symbol, rec.Setup, err)
			continue
		}
		counters.emitted.Add(1)
		observability.RecordSignalEmitted(string(rec.Setup))
	}
}

// pace holds the slot for the pacing delay unless ctx is done.
func (s *Scheduler) pace(ctx context.Context) {
	if s.paceDelay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(s.paceDelay):
	}
}

// Concurrency returns the configured ceiling.
func (s *Scheduler) Concurrency() int {
	return s.concurrency
}
