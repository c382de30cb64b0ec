package scanner

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"perp-crowd-scanner/internal/domain"
)

var errUnavailable = errors.New("upstream unavailable")

// lensFractions is the long/short pair a fake lens answers with.
type lensFractions struct {
	long, short float64
}

// fakeSymbol describes the upstream state of one instrument.
type fakeSymbol struct {
	lenses    map[domain.Lens]lensFractions
	lensErr   map[domain.Lens]error
	oi        float64
	oiErr     error
	funding   *float64
	mark      *float64
	volume24h *float64
	volume2h  float64
	enrichErr error
}

// fakeMarket is an in-memory MarketData that tracks concurrency.
type fakeMarket struct {
	mu      sync.Mutex
	symbols map[string]*fakeSymbol
	calls   map[string]int // "symbol/endpoint" -> count
	delay   time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		symbols: make(map[string]*fakeSymbol),
		calls:   make(map[string]int),
	}
}

func (m *fakeMarket) set(symbol string, s *fakeSymbol) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.symbols[symbol] = s
}

func (m *fakeMarket) callCount(symbol, endpoint string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[symbol+"/"+endpoint]
}

func (m *fakeMarket) enter(ctx context.Context, symbol, endpoint string) (*fakeSymbol, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		cur := m.maxInFlight.Load()
		if n <= cur || m.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	m.mu.Lock()
	m.calls[symbol+"/"+endpoint]++
	s, ok := m.symbols[symbol]
	m.mu.Unlock()

	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.delay):
		}
	}
	if !ok {
		return nil, errUnavailable
	}
	return s, nil
}

func (m *fakeMarket) LatestRatio(ctx context.Context, lens domain.Lens, symbol, period string) (*domain.RatioSnapshot, error) {
	s, err := m.enter(ctx, symbol, "ratio")
	if err != nil {
		return nil, err
	}
	if err := s.lensErr[lens]; err != nil {
		return nil, err
	}
	f, ok := s.lenses[lens]
	if !ok {
		return nil, errUnavailable
	}
	return &domain.RatioSnapshot{Lens: lens, Symbol: symbol, TimestampMs: 1700000000000, Long: f.long, Short: f.short}, nil
}

func (m *fakeMarket) LatestOpenInterest(ctx context.Context, symbol, period string) (*domain.OpenInterest, error) {
	s, err := m.enter(ctx, symbol, "oi")
	if err != nil {
		return nil, err
	}
	if s.oiErr != nil {
		return nil, s.oiErr
	}
	return &domain.OpenInterest{Symbol: symbol, SumValue: s.oi}, nil
}

func (m *fakeMarket) PremiumIndex(ctx context.Context, symbol string) (*domain.PremiumIndex, error) {
	s, err := m.enter(ctx, symbol, "premium")
	if err != nil {
		return nil, err
	}
	if s.enrichErr != nil {
		return nil, s.enrichErr
	}
	return &domain.PremiumIndex{Symbol: symbol, FundingRate: s.funding, MarkPrice: s.mark}, nil
}

func (m *fakeMarket) Ticker24h(ctx context.Context, symbol string) (*domain.Ticker24h, error) {
	s, err := m.enter(ctx, symbol, "ticker")
	if err != nil {
		return nil, err
	}
	if s.enrichErr != nil {
		return nil, s.enrichErr
	}
	return &domain.Ticker24h{Symbol: symbol, Volume: s.volume24h}, nil
}

func (m *fakeMarket) Klines(ctx context.Context, symbol, interval string, limit int) ([]domain.Kline, error) {
	s, err := m.enter(ctx, symbol, "klines")
	if err != nil {
		return nil, err
	}
	if s.enrichErr != nil {
		return nil, s.enrichErr
	}
	return []domain.Kline{{QuoteVolume: s.volume2h}}, nil
}

// crowdShort builds a symbol passing setup A only.
func crowdShort(oi float64) *fakeSymbol {
	return &fakeSymbol{
		lenses: map[domain.Lens]lensFractions{
			domain.LensTopAccount:    {long: 0.30, short: 0.70},
			domain.LensGlobalAccount: {long: 0.30, short: 0.70},
			domain.LensTopPosition:   {long: 0.50, short: 0.50},
		},
		oi: oi,
	}
}

// neutral builds a symbol failing both setups.
func neutral() *fakeSymbol {
	return &fakeSymbol{
		lenses: map[domain.Lens]lensFractions{
			domain.LensTopAccount:    {long: 0.50, short: 0.50},
			domain.LensGlobalAccount: {long: 0.50, short: 0.50},
			domain.LensTopPosition:   {long: 0.40, short: 0.40},
		},
		oi: 50_000_000,
	}
}

func ptr(v float64) *float64 {
	return &v
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func instruments(symbols ...string) []domain.Instrument {
	out := make([]domain.Instrument, len(symbols))
	for i, s := range symbols {
		out[i] = domain.Instrument{Symbol: s}
	}
	return out
}

func newTestEvaluator(market MarketData) *Evaluator {
	return NewEvaluator(EvaluatorOptions{
		Market:              market,
		Period:              "5m",
		MinOpenInterestUSDT: 2_500_000,
		Thresholds:          DefaultThresholds(),
		Logger:              quietLogger(),
	})
}

// flakyStore fails its first n upserts with err, then stores.
type flakyStore struct {
	mu       sync.Mutex
	failures int
	calls    int
	err      error
	stored   map[domain.SignalKey]domain.SignalRecord
}

func newFlakyStore(failures int, err error) *flakyStore {
	return &flakyStore{failures: failures, err: err, stored: make(map[domain.SignalKey]domain.SignalRecord)}
}

func (s *flakyStore) Upsert(_ context.Context, rec *domain.SignalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return s.err
	}
	s.stored[rec.Key()] = *rec
	return nil
}

func (s *flakyStore) GetByRun(_ context.Context, runID int64) ([]*domain.SignalRecord, error) {
	return nil, nil
}

func (s *flakyStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
