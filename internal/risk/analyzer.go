// Package risk grades the hits of the latest scan run for entry risk.
// Each hit is analysed for volatility, order-book quality and downside
// pressure, then combined with its open interest into a final grade.
package risk

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"perp-crowd-scanner/internal/domain"
	"perp-crowd-scanner/internal/observability"
	"perp-crowd-scanner/internal/storage"
)

// Defaults for Options.
const (
	DefaultMinOpenInterestUSDT = 4_000_000
	DefaultPace                = 500 * time.Millisecond
	DefaultVolatilityPeriods   = 14
	DefaultDrawdownLookback    = 120
	DefaultDepthLimit          = 20

	klineInterval = "1m"
)

// ErrNoRun is returned when the store holds no scan run to grade.
var ErrNoRun = errors.New("no scan run to assess")

// MarketData is the upstream surface the analyses read.
type MarketData interface {
	Klines(ctx context.Context, symbol, interval string, limit int) ([]domain.Kline, error)
	Depth(ctx context.Context, symbol string, limit int) (*domain.OrderBook, error)
}

// SignalSource reads the hits of a stored run.
type SignalSource interface {
	LatestRun(ctx context.Context) (*domain.RunRecord, error)
	GetByRun(ctx context.Context, runID int64) ([]*domain.SignalRecord, error)
}

var _ SignalSource = (storage.ScanStore)(nil)

// Options for creating an Analyzer.
type Options struct {
	Market  MarketData
	Signals SignalSource

	MinOpenInterestUSDT float64       // hits below are skipped; defaults to 4M
	Pace                time.Duration // delay between instruments; negative disables
	VolatilityPeriods   int
	DrawdownLookback    int
	DepthLimit          int

	Logger  *log.Logger
	Verbose bool
}

// Analyzer runs the risk pass.
type Analyzer struct {
	market  MarketData
	signals SignalSource

	minOI    float64
	pace     time.Duration
	periods  int
	lookback int
	depth    int

	logger  *log.Logger
	verbose bool
}

// NewAnalyzer creates an Analyzer, filling unset options with defaults.
func NewAnalyzer(opts Options) *Analyzer {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	a := &Analyzer{
		market:   opts.Market,
		signals:  opts.Signals,
		minOI:    opts.MinOpenInterestUSDT,
		pace:     opts.Pace,
		periods:  opts.VolatilityPeriods,
		lookback: opts.DrawdownLookback,
		depth:    opts.DepthLimit,
		logger:   logger,
		verbose:  opts.Verbose,
	}
	if a.minOI <= 0 {
		a.minOI = DefaultMinOpenInterestUSDT
	}
	if a.pace == 0 {
		a.pace = DefaultPace
	}
	if a.periods <= 0 {
		a.periods = DefaultVolatilityPeriods
	}
	if a.lookback <= 0 {
		a.lookback = DefaultDrawdownLookback
	}
	if a.depth <= 0 {
		a.depth = DefaultDepthLimit
	}
	return a
}

// Result is the outcome of a risk pass.
type Result struct {
	Run         *domain.RunRecord
	Total       int // hits in the run
	Skipped     int // hits below the open interest floor
	Assessments []domain.RiskAssessment
	Duration    time.Duration
}

// Run grades the latest run's hits one instrument at a time.
// On cancellation the assessments made so far are returned with the error.
func (a *Analyzer) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result, err := a.run(ctx)
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.RecordRun("risk", status, time.Since(start).Seconds())
	if result != nil {
		result.Duration = time.Since(start)
	}
	return result, err
}

func (a *Analyzer) run(ctx context.Context) (*Result, error) {
	run, err := a.signals.LatestRun(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNoRun
		}
		return nil, fmt.Errorf("load latest run: %w", err)
	}

	signals, err := a.signals.GetByRun(ctx, run.RunID)
	if err != nil {
		return nil, fmt.Errorf("load signals of run %d: %w", run.RunID, err)
	}

	result := &Result{Run: run, Total: len(signals)}
	eligible := make([]*domain.SignalRecord, 0, len(signals))
	for _, sig := range signals {
		if sig.OpenInterestUSDT < a.minOI {
			result.Skipped++
			continue
		}
		eligible = append(eligible, sig)
	}
	a.log("Run %d: %d hits, %d above OI floor %.0f", run.RunID, len(signals), len(eligible), a.minOI)

	for i, sig := range eligible {
		if i > 0 {
			if err := a.wait(ctx); err != nil {
				SortAssessments(result.Assessments)
				return result, err
			}
		}
		assessment := a.Assess(ctx, sig)
		result.Assessments = append(result.Assessments, assessment)
		observability.RecordRiskAssessed(string(assessment.FinalGrade))
		a.log("[%d/%d] %s %s: grade %s (%s)", i+1, len(eligible), sig.Symbol, sig.Setup,
			assessment.FinalGrade, assessment.RiskLevel)
	}

	SortAssessments(result.Assessments)
	return result, ctx.Err()
}

// Assess grades one hit. The three market analyses run concurrently and
// an analysis that cannot be completed grades D.
func (a *Analyzer) Assess(ctx context.Context, sig *domain.SignalRecord) domain.RiskAssessment {
	var (
		wg     sync.WaitGroup
		vol    Volatility
		volOK  bool
		book   BookQuality
		bookOK bool
		down   Drawdown
		downOK bool
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		klines, err := a.market.Klines(ctx, sig.Symbol, klineInterval, a.periods+5)
		if err != nil {
			a.log("%s: volatility unavailable: %v", sig.Symbol, err)
			return
		}
		vol, volOK = ComputeVolatility(klines, a.periods)
	}()
	go func() {
		defer wg.Done()
		ob, err := a.market.Depth(ctx, sig.Symbol, a.depth)
		if err != nil {
			a.log("%s: order book unavailable: %v", sig.Symbol, err)
			return
		}
		book, bookOK = ComputeBookQuality(ob)
	}()
	go func() {
		defer wg.Done()
		klines, err := a.market.Klines(ctx, sig.Symbol, klineInterval, a.lookback)
		if err != nil {
			a.log("%s: drawdown unavailable: %v", sig.Symbol, err)
			return
		}
		down, downOK = ComputeDrawdown(klines, a.lookback)
	}()
	wg.Wait()

	out := domain.RiskAssessment{
		Signal:       *sig,
		StopHuntRisk: domain.StopHuntUnknown,
		Grades: map[string]domain.Grade{
			domain.ComponentVolatility: domain.GradeD,
			domain.ComponentOrderBook:  domain.GradeD,
			domain.ComponentOI:         GradeOpenInterest(sig.OpenInterestUSDT),
			domain.ComponentDrawdown:   domain.GradeD,
		},
	}
	if volOK {
		out.VolatilityATRPct = &vol.ATRPct
		out.Grades[domain.ComponentVolatility] = vol.Grade
	}
	if bookOK {
		out.SpreadPct = &book.SpreadPct
		out.BidAskImbalance = &book.Imbalance
		out.Grades[domain.ComponentOrderBook] = book.Grade
	}
	if downOK {
		out.HeavyDownRatio = &down.HeavyDownRatio
		out.MaxConsecutiveDown = &down.MaxConsecutiveDown
		out.StopHuntRisk = down.StopHunt
		out.Grades[domain.ComponentDrawdown] = down.Grade
	}
	out.FinalGrade = FinalGrade(out.Grades)
	out.RiskLevel = RiskLevelFor(out.FinalGrade)
	return out
}

// SortAssessments orders by final grade, best first, then open interest DESC.
func SortAssessments(list []domain.RiskAssessment) {
	sort.SliceStable(list, func(i, j int) bool {
		gi, gj := list[i].FinalGrade.Score(), list[j].FinalGrade.Score()
		if gi != gj {
			return gi > gj
		}
		return list[i].Signal.OpenInterestUSDT > list[j].Signal.OpenInterestUSDT
	})
}

func (a *Analyzer) wait(ctx context.Context) error {
	if a.pace < 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(a.pace)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (a *Analyzer) log(format string, args ...interface{}) {
	if a.verbose {
		a.logger.Printf("[risk] "+format, args...)
	}
}
