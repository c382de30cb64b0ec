// Package scanner fans out per-instrument evaluations under a concurrency
// ceiling and funnels the resulting signals through a single storage writer.
package scanner

import (
	"context"
	"fmt"
	"log"

	"perp-crowd-scanner/internal/domain"
)

// Evaluation stages, also used as error metric labels.
const (
	StageRatios       = "ratios"
	StageCheapFilter  = "cheap_filter"
	StageOpenInterest = "open_interest"
	StageEnrichment   = "enrichment"
	StageEmit         = "emit"
)

// DefaultVolumeInterval is the candle interval of the short-window volume field.
const DefaultVolumeInterval = "2h"

// MarketData is the upstream read API consumed by the evaluator.
type MarketData interface {
	LatestRatio(ctx context.Context, lens domain.Lens, symbol, period string) (*domain.RatioSnapshot, error)
	LatestOpenInterest(ctx context.Context, symbol, period string) (*domain.OpenInterest, error)
	PremiumIndex(ctx context.Context, symbol string) (*domain.PremiumIndex, error)
	Ticker24h(ctx context.Context, symbol string) (*domain.Ticker24h, error)
	Klines(ctx context.Context, symbol, interval string, limit int) ([]domain.Kline, error)
}

// EvaluatorOptions configures Evaluator.
type EvaluatorOptions struct {
	Market              MarketData
	Period              string // ratio and OI period, e.g. 5m
	MinOpenInterestUSDT float64
	Thresholds          Thresholds
	VolumeInterval      string // default 2h
	Logger              *log.Logger
}

// Evaluation is the outcome of one instrument.
type Evaluation struct {
	Records           []domain.SignalRecord // 0, 1 or 2 records, setup A first
	PassedCheapFilter bool
	Stage             string // last stage reached
}

// StageError marks an evaluation aborted because data of a gating stage was unavailable.
type StageError struct {
	Symbol string
	Stage  string
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Symbol, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Evaluator runs the cascading filter for one instrument.
type Evaluator struct {
	market         MarketData
	period         string
	minOI          float64
	thresholds     Thresholds
	volumeInterval string
	logger         *log.Logger
}

// NewEvaluator creates a new evaluator.
func NewEvaluator(opts EvaluatorOptions) *Evaluator {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	interval := opts.VolumeInterval
	if interval == "" {
		interval = DefaultVolumeInterval
	}
	return &Evaluator{
		market:         opts.Market,
		period:         opts.Period,
		minOI:          opts.MinOpenInterestUSDT,
		thresholds:     opts.Thresholds,
		volumeInterval: interval,
		logger:         logger,
	}
}

// Evaluate runs the stages for one instrument. Stages are sequential and each
// short-circuits. Data unavailable at a gating stage returns a *StageError with
// zero records; failing a threshold returns no error and zero records.
func (e *Evaluator) Evaluate(ctx context.Context, runID int64, inst domain.Instrument) (Evaluation, error) {
	var ev Evaluation

	// Stage 1: three lenses.
	ev.Stage = StageRatios
	snaps := make(map[domain.Lens]*domain.RatioSnapshot, len(domain.Lenses))
	for _, lens := range domain.Lenses {
		snap, err := e.market.LatestRatio(ctx, lens, inst.Symbol, e.period)
		if err != nil {
			return ev, &StageError{Symbol: inst.Symbol, Stage: StageRatios, Err: err}
		}
		snaps[lens] = snap
	}
	ratios := domain.NewRatios(snaps[domain.LensTopAccount], snaps[domain.LensGlobalAccount], snaps[domain.LensTopPosition])

	// Stage 2: cheap filter.
	ev.Stage = StageCheapFilter
	setups := e.thresholds.Satisfied(ratios)
	if len(setups) == 0 {
		return ev, nil
	}
	ev.PassedCheapFilter = true

	// Stage 3: open interest gate, inclusive.
	ev.Stage = StageOpenInterest
	oi, err := e.market.LatestOpenInterest(ctx, inst.Symbol, e.period)
	if err != nil {
		return ev, &StageError{Symbol: inst.Symbol, Stage: StageOpenInterest, Err: err}
	}
	if oi.SumValue < e.minOI {
		return ev, nil
	}

	// Stage 4: optional enrichment.
	ev.Stage = StageEnrichment
	enrich := e.enrich(ctx, inst.Symbol)

	// Stage 5: one record per setup.
	ev.Stage = StageEmit
	ev.Records = make([]domain.SignalRecord, 0, len(setups))
	for _, setup := range setups {
		ev.Records = append(ev.Records, domain.SignalRecord{
			RunID:            runID,
			Symbol:           inst.Symbol,
			Setup:            setup,
			TimestampMs:      snaps[domain.LensTopAccount].TimestampMs,
			OpenInterestUSDT: oi.SumValue,
			Ratios:           ratios,
			FundingRate:      enrich.fundingRate,
			MarkPrice:        enrich.markPrice,
			Volume24h:        enrich.volume24h,
			Volume2h:         enrich.volume2h,
		})
	}
	return ev, nil
}

type enrichment struct {
	fundingRate *float64
	markPrice   *float64
	volume24h   *float64
	volume2h    *float64
}

// enrich fetches the non-gating fields. Each failure leaves its field nil.
func (e *Evaluator) enrich(ctx context.Context, symbol string) enrichment {
	var out enrichment

	if pi, err := e.market.PremiumIndex(ctx, symbol); err == nil {
		out.fundingRate = pi.FundingRate
		out.markPrice = pi.MarkPrice
	}

	if t, err := e.market.Ticker24h(ctx, symbol); err == nil {
		out.volume24h = t.Volume
	}

	if klines, err := e.market.Klines(ctx, symbol, e.volumeInterval, 1); err == nil && len(klines) > 0 {
		v := klines[len(klines)-1].QuoteVolume
		out.volume2h = &v
	}

	return out
}
