package scanner

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perp-crowd-scanner/internal/domain"
)

// collector is an Emitter recording every record.
type collector struct {
	mu      sync.Mutex
	records []domain.SignalRecord
}

func (c *collector) emit(_ context.Context, rec domain.SignalRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	return nil
}

type evaluatorFunc func(ctx context.Context, runID int64, inst domain.Instrument) (Evaluation, error)

func (f evaluatorFunc) Evaluate(ctx context.Context, runID int64, inst domain.Instrument) (Evaluation, error) {
	return f(ctx, runID, inst)
}

func TestScheduler_ConcurrencyBound(t *testing.T) {
	market := newFakeMarket()
	market.delay = 5 * time.Millisecond

	symbols := make([]string, 40)
	for i := range symbols {
		symbols[i] = fmt.Sprintf("S%02dUSDT", i)
		market.set(symbols[i], crowdShort(5_000_000))
	}

	const k = 4
	sched := NewScheduler(SchedulerOptions{
		Evaluator:   newTestEvaluator(market),
		Concurrency: k,
		PaceDelay:   time.Millisecond,
		Logger:      quietLogger(),
	})

	var out collector
	stats := sched.Run(context.Background(), 1, instruments(symbols...), out.emit)

	assert.Equal(t, int64(40), stats.Scanned)
	assert.Equal(t, int64(40), stats.Total)
	assert.Equal(t, int64(40), stats.RecordsEmitted)
	assert.LessOrEqual(t, market.maxInFlight.Load(), int32(k))
	assert.Greater(t, market.maxInFlight.Load(), int32(1), "evaluations should overlap")
}

func TestScheduler_PanicIsContained(t *testing.T) {
	eval := evaluatorFunc(func(ctx context.Context, runID int64, inst domain.Instrument) (Evaluation, error) {
		if inst.Symbol == "BADUSDT" {
			panic("boom")
		}
		return Evaluation{
			PassedCheapFilter: true,
			Records:           []domain.SignalRecord{{RunID: runID, Symbol: inst.Symbol, Setup: domain.SetupCrowdShortTopLong}},
		}, nil
	})

	sched := NewScheduler(SchedulerOptions{Evaluator: eval, Concurrency: 2, PaceDelay: -1, Logger: quietLogger()})

	var out collector
	stats := sched.Run(context.Background(), 1, instruments("AAAUSDT", "BADUSDT", "CCCUSDT"), out.emit)

	assert.Equal(t, int64(3), stats.Scanned)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(2), stats.RecordsEmitted)
	assert.Len(t, out.records, 2)
}

func TestScheduler_TimedOutLensStillCounts(t *testing.T) {
	market := newFakeMarket()
	market.set("AAAUSDT", crowdShort(5_000_000))
	slow := crowdShort(5_000_000)
	slow.lensErr = map[domain.Lens]error{domain.LensTopAccount: context.DeadlineExceeded}
	market.set("SLOWUSDT", slow)

	sched := NewScheduler(SchedulerOptions{Evaluator: newTestEvaluator(market), PaceDelay: -1, Logger: quietLogger(), Verbose: true})

	var out collector
	stats := sched.Run(context.Background(), 1, instruments("AAAUSDT", "SLOWUSDT"), out.emit)

	assert.Equal(t, int64(2), stats.Scanned)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, int64(1), stats.RecordsEmitted)
}

func TestScheduler_CancelledContextStopsAdmission(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int
	var mu sync.Mutex
	eval := evaluatorFunc(func(ctx context.Context, runID int64, inst domain.Instrument) (Evaluation, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return Evaluation{}, nil
	})

	sched := NewScheduler(SchedulerOptions{Evaluator: eval, Concurrency: 1, PaceDelay: -1, Logger: quietLogger()})
	stats := sched.Run(ctx, 1, instruments("AAAUSDT", "BBBUSDT", "CCCUSDT"), (&collector{}).emit)

	assert.Equal(t, int64(3), stats.Total)
	assert.Less(t, stats.Scanned, stats.Total)
	mu.Lock()
	assert.Equal(t, int(stats.Scanned), calls)
	mu.Unlock()
}

func TestScheduler_EmitFailureCountsDropped(t *testing.T) {
	eval := evaluatorFunc(func(ctx context.Context, runID int64, inst domain.Instrument) (Evaluation, error) {
		return Evaluation{
			PassedCheapFilter: true,
			Records:           []domain.SignalRecord{{Symbol: inst.Symbol, Setup: domain.SetupCrowdLongTopShort}},
		}, nil
	})
	refuse := func(context.Context, domain.SignalRecord) error { return ErrSinkClosed }

	sched := NewScheduler(SchedulerOptions{Evaluator: eval, PaceDelay: -1, Logger: quietLogger()})
	stats := sched.Run(context.Background(), 1, instruments("AAAUSDT", "BBBUSDT"), refuse)

	require.Equal(t, int64(2), stats.Scanned)
	assert.Equal(t, int64(2), stats.Dropped)
	assert.Equal(t, int64(0), stats.RecordsEmitted)
	assert.Equal(t, int64(2), stats.PassedCheapFilter)
}
