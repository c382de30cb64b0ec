package reporting

import (
	"context"
	"fmt"
	"time"

	"perp-crowd-scanner/internal/domain"
	"perp-crowd-scanner/internal/risk"
	"perp-crowd-scanner/internal/scanner"
)

// DefaultFundingConfirmThreshold is the funding fraction beyond which a hit is highlighted.
const DefaultFundingConfirmThreshold = 0.01

// SignalSource reads the hits of a stored run.
type SignalSource interface {
	LatestRun(ctx context.Context) (*domain.RunRecord, error)
	GetByRun(ctx context.Context, runID int64) ([]*domain.SignalRecord, error)
}

// Generator produces reports from scan and risk results.
type Generator struct {
	signals          SignalSource
	fundingThreshold float64
	now              func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. A non-positive threshold uses the default.
func NewGenerator(signals SignalSource, fundingThreshold float64) *Generator {
	if fundingThreshold <= 0 {
		fundingThreshold = DefaultFundingConfirmThreshold
	}
	return &Generator{
		signals:          signals,
		fundingThreshold: fundingThreshold,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// LatestScanReport builds the scan report of the latest stored run.
func (g *Generator) LatestScanReport(ctx context.Context) (*ScanReport, error) {
	run, err := g.signals.LatestRun(ctx)
	if err != nil {
		return nil, fmt.Errorf("load latest run: %w", err)
	}
	signals, err := g.signals.GetByRun(ctx, run.RunID)
	if err != nil {
		return nil, fmt.Errorf("load signals of run %d: %w", run.RunID, err)
	}
	return g.ScanReport(run, nil, signals), nil
}

// ScanReport splits hits into setup sections. Input order is kept within a
// section, so callers pass hits ordered by open interest DESC.
func (g *Generator) ScanReport(run *domain.RunRecord, summary *scanner.Summary, signals []*domain.SignalRecord) *ScanReport {
	report := &ScanReport{
		GeneratedAt: g.now(),
		Run:         run,
		Scan:        summary,
		Sections:    make([]Section, 0, len(domain.SetupKinds)),
	}
	for _, setup := range domain.SetupKinds {
		section := Section{Setup: setup}
		for _, sig := range signals {
			if sig.Setup != setup {
				continue
			}
			if FundingConfirms(sig.Setup, sig.FundingRate, g.fundingThreshold) {
				section.Highlighted = append(section.Highlighted, sig)
			} else {
				section.Other = append(section.Other, sig)
			}
		}
		report.Sections = append(report.Sections, section)
	}
	return report
}

// RiskReport wraps a risk pass result.
func (g *Generator) RiskReport(result *risk.Result, minOI float64) *RiskReport {
	return &RiskReport{
		GeneratedAt: g.now(),
		Run:         result.Run,
		Total:       result.Total,
		Skipped:     result.Skipped,
		MinOIUSDT:   minOI,
		Assessments: result.Assessments,
	}
}

// FundingConfirms reports whether funding is paid by the crowd side:
// negative beyond the threshold for crowd short, positive for crowd long.
func FundingConfirms(setup domain.SetupKind, funding *float64, threshold float64) bool {
	if funding == nil {
		return false
	}
	switch setup {
	case domain.SetupCrowdShortTopLong:
		return *funding < -threshold
	case domain.SetupCrowdLongTopShort:
		return *funding > threshold
	default:
		return false
	}
}
