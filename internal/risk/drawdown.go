package risk

import "perp-crowd-scanner/internal/domain"

// heavyDownPct is the candle move, in percent, at or beyond which a candle is a heavy down.
const heavyDownPct = -0.5

// minDrawdownCandles is the smallest series the drawdown analysis accepts.
const minDrawdownCandles = 20

// Drawdown summarizes heavy downside candles over a lookback window.
type Drawdown struct {
	HeavyDownCount     int
	HeavyDownRatio     float64 // percent of the lookback window
	MaxConsecutiveDown int
	AvgDownPct         float64
	StopHunt           domain.StopHuntRisk
	Grade              domain.Grade
}

// ComputeDrawdown scans candles for moves below -0.5% from open to close.
// The ratio is taken over lookback even when fewer candles were returned.
func ComputeDrawdown(klines []domain.Kline, lookback int) (Drawdown, bool) {
	if len(klines) < minDrawdownCandles || lookback <= 0 {
		return Drawdown{}, false
	}

	var (
		heavy, run, maxRun int
		downSum            float64
	)
	for _, k := range klines {
		if k.Open <= 0 {
			return Drawdown{}, false
		}
		pct := (k.Close - k.Open) / k.Open * 100
		if pct < heavyDownPct {
			heavy++
			run++
			downSum += pct
			continue
		}
		if run > maxRun {
			maxRun = run
		}
		run = 0
	}
	if run > maxRun {
		maxRun = run
	}

	d := Drawdown{
		HeavyDownCount:     heavy,
		HeavyDownRatio:     float64(heavy) / float64(lookback) * 100,
		MaxConsecutiveDown: maxRun,
		StopHunt:           StopHuntFor(maxRun),
		Grade:              GradeDrawdown(heavy, maxRun, lookback),
	}
	if heavy > 0 {
		d.AvgDownPct = downSum / float64(heavy)
	}
	return d, true
}

// GradeDrawdown grades heavy-down frequency and streaks.
//
//	A: ratio < 5% and streak <= 1
//	B: ratio < 10% and streak <= 2
//	C: ratio < 20% or streak <= 3
//	D: otherwise
func GradeDrawdown(heavy, maxConsecutive, total int) domain.Grade {
	ratio := float64(heavy) / float64(total) * 100
	switch {
	case ratio < 5 && maxConsecutive <= 1:
		return domain.GradeA
	case ratio < 10 && maxConsecutive <= 2:
		return domain.GradeB
	case ratio < 20 || maxConsecutive <= 3:
		return domain.GradeC
	default:
		return domain.GradeD
	}
}

// StopHuntFor flags heavy-down streaks: YES from 3, CAUTION at 2.
func StopHuntFor(maxConsecutive int) domain.StopHuntRisk {
	switch {
	case maxConsecutive >= 3:
		return domain.StopHuntYes
	case maxConsecutive == 2:
		return domain.StopHuntCaution
	default:
		return domain.StopHuntNo
	}
}
