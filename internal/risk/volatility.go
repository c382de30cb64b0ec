package risk

import (
	"math"

	"perp-crowd-scanner/internal/domain"
)

// Volatility holds the ATR of a candle series.
type Volatility struct {
	ATR       float64
	ATRPct    float64 // ATR relative to the last close, percent
	LastClose float64
	Grade     domain.Grade
}

// ComputeVolatility averages the last `periods` true ranges.
// Returns false with fewer than `periods` candles or a non-positive last close.
func ComputeVolatility(klines []domain.Kline, periods int) (Volatility, bool) {
	if periods <= 0 || len(klines) < periods || len(klines) < 2 {
		return Volatility{}, false
	}

	ranges := make([]float64, 0, len(klines)-1)
	for i := 1; i < len(klines); i++ {
		k, prevClose := klines[i], klines[i-1].Close
		tr := math.Max(k.High-k.Low, math.Max(math.Abs(k.High-prevClose), math.Abs(k.Low-prevClose)))
		ranges = append(ranges, tr)
	}
	if len(ranges) > periods {
		ranges = ranges[len(ranges)-periods:]
	}

	var sum float64
	for _, tr := range ranges {
		sum += tr
	}
	atr := sum / float64(len(ranges))

	last := klines[len(klines)-1].Close
	if last <= 0 {
		return Volatility{}, false
	}
	pct := atr / last * 100

	return Volatility{ATR: atr, ATRPct: pct, LastClose: last, Grade: GradeVolatility(pct)}, true
}

// GradeVolatility grades ATR percent: A <2, B <5, C <10, else D.
func GradeVolatility(atrPct float64) domain.Grade {
	switch {
	case atrPct < 2.0:
		return domain.GradeA
	case atrPct < 5.0:
		return domain.GradeB
	case atrPct < 10.0:
		return domain.GradeC
	default:
		return domain.GradeD
	}
}
