package scanner

import (
	"fmt"

	"perp-crowd-scanner/internal/domain"
)

// Thresholds are the minimum fractions of the two setups.
// Setup A: crowd short while top positions lean long.
// Setup B mirrors it.
type Thresholds struct {
	TopAccountShortMin    float64 // TOP_ACC_SHORT_MIN
	GlobalAccountShortMin float64 // GLOBAL_ACC_SHORT_MIN
	TopPositionLongMin    float64 // TOP_POS_LONG_MIN

	TopAccountLongMin    float64 // TOP_ACC_LONG_MIN
	GlobalAccountLongMin float64 // GLOBAL_ACC_LONG_MIN
	TopPositionShortMin  float64 // TOP_POS_SHORT_MIN
}

// DefaultThresholds returns the default mirrored thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TopAccountShortMin:    0.65,
		GlobalAccountShortMin: 0.65,
		TopPositionLongMin:    0.45,
		TopAccountLongMin:     0.65,
		GlobalAccountLongMin:  0.65,
		TopPositionShortMin:   0.45,
	}
}

// Validate checks all thresholds are fractions.
func (t Thresholds) Validate() error {
	for name, v := range map[string]float64{
		"top account short":    t.TopAccountShortMin,
		"global account short": t.GlobalAccountShortMin,
		"top position long":    t.TopPositionLongMin,
		"top account long":     t.TopAccountLongMin,
		"global account long":  t.GlobalAccountLongMin,
		"top position short":   t.TopPositionShortMin,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s threshold %v outside [0,1]", name, v)
		}
	}
	return nil
}

// CrowdShortTopLong reports whether setup A holds.
func (t Thresholds) CrowdShortTopLong(r domain.Ratios) bool {
	return r.TopAccount.Short >= t.TopAccountShortMin &&
		r.GlobalAccount.Short >= t.GlobalAccountShortMin &&
		r.TopPosition.Long >= t.TopPositionLongMin
}

// CrowdLongTopShort reports whether setup B holds.
func (t Thresholds) CrowdLongTopShort(r domain.Ratios) bool {
	return r.TopAccount.Long >= t.TopAccountLongMin &&
		r.GlobalAccount.Long >= t.GlobalAccountLongMin &&
		r.TopPosition.Short >= t.TopPositionShortMin
}

// Satisfied returns the setups that hold, A before B.
func (t Thresholds) Satisfied(r domain.Ratios) []domain.SetupKind {
	var out []domain.SetupKind
	if t.CrowdShortTopLong(r) {
		out = append(out, domain.SetupCrowdShortTopLong)
	}
	if t.CrowdLongTopShort(r) {
		out = append(out, domain.SetupCrowdLongTopShort)
	}
	return out
}
