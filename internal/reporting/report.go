package reporting

import (
	"time"

	"perp-crowd-scanner/internal/domain"
	"perp-crowd-scanner/internal/scanner"
)

// ScanReport is the rendered view of one scan run.
type ScanReport struct {
	GeneratedAt time.Time
	Run         *domain.RunRecord
	Scan        *scanner.Summary // nil when the report is built from storage alone

	// Sections in output order: crowd short first, then crowd long
	Sections []Section
}

// Section groups the hits of one setup.
type Section struct {
	Setup domain.SetupKind

	// Both ordered by open interest DESC
	Highlighted []*domain.SignalRecord // funding confirms the crowd position
	Other       []*domain.SignalRecord
}

// Len returns the number of hits in the section.
func (s Section) Len() int {
	return len(s.Highlighted) + len(s.Other)
}

// TotalSignals counts hits across sections.
func (r *ScanReport) TotalSignals() int {
	n := 0
	for _, s := range r.Sections {
		n += s.Len()
	}
	return n
}

// TotalHighlighted counts funding-confirmed hits across sections.
func (r *ScanReport) TotalHighlighted() int {
	n := 0
	for _, s := range r.Sections {
		n += len(s.Highlighted)
	}
	return n
}

// Section returns the section of a setup, or an empty one.
func (r *ScanReport) Section(setup domain.SetupKind) Section {
	for _, s := range r.Sections {
		if s.Setup == setup {
			return s
		}
	}
	return Section{Setup: setup}
}

// RiskReport is the rendered view of one risk pass.
type RiskReport struct {
	GeneratedAt time.Time
	Run         *domain.RunRecord
	Total       int // hits in the run
	Skipped     int // hits below the open interest floor
	MinOIUSDT   float64

	// Ordered by final grade, then open interest DESC
	Assessments []domain.RiskAssessment
}

// gradesDocument is the JSON layout of the grades export.
type gradesDocument struct {
	Generated  string                `json:"generated"`
	TotalCoins int                   `json:"total_coins"`
	Coins      map[string]gradedCoin `json:"coins"`
}

type gradedCoin struct {
	Setup      domain.SetupKind        `json:"setup"`
	OIUSDT     float64                 `json:"oi_usdt"`
	Grades     map[string]domain.Grade `json:"grades"`
	FinalGrade domain.Grade            `json:"final_grade"`
	RiskLevel  domain.RiskLevel        `json:"risk_level"`
	Metrics    coinMetrics             `json:"metrics"`
}

type coinMetrics struct {
	VolatilityATRPct *float64            `json:"volatility_atr_pct"`
	SpreadPct        *float64            `json:"spread_pct"`
	HeavyDownRatio   *float64            `json:"heavy_down_ratio"`
	StopHuntRisk     domain.StopHuntRisk `json:"stop_hunt_risk"`
}
