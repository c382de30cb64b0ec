package risk

import (
	"math"

	"perp-crowd-scanner/internal/domain"
)

// balanceLevels is the number of levels per side used for bid/ask balance.
const balanceLevels = 5

// BookQuality holds spread and balance of an order book snapshot.
type BookQuality struct {
	SpreadPct float64 // (ask - bid) / mid, percent
	Imbalance float64 // |bid share - 0.5| * 100, 0 is balanced
	BidRatio  float64
	MidPrice  float64
	Grade     domain.Grade
}

// ComputeBookQuality returns false for an empty side or a non-positive mid.
func ComputeBookQuality(book *domain.OrderBook) (BookQuality, bool) {
	if book == nil || len(book.Bids) == 0 || len(book.Asks) == 0 {
		return BookQuality{}, false
	}

	bestBid, bestAsk := book.Bids[0].Price, book.Asks[0].Price
	mid := (bestBid + bestAsk) / 2
	if mid <= 0 {
		return BookQuality{}, false
	}
	spread := (bestAsk - bestBid) / mid * 100

	bidVol := sumQuantity(book.Bids, balanceLevels)
	askVol := sumQuantity(book.Asks, balanceLevels)
	bidRatio := 0.5
	if total := bidVol + askVol; total > 0 {
		bidRatio = bidVol / total
	}

	return BookQuality{
		SpreadPct: spread,
		Imbalance: math.Abs(bidRatio-0.5) * 100,
		BidRatio:  bidRatio,
		MidPrice:  mid,
		Grade:     GradeSpread(spread),
	}, true
}

// GradeSpread grades spread percent: A <0.05, B <0.15, C <0.5, else D.
func GradeSpread(spreadPct float64) domain.Grade {
	switch {
	case spreadPct < 0.05:
		return domain.GradeA
	case spreadPct < 0.15:
		return domain.GradeB
	case spreadPct < 0.50:
		return domain.GradeC
	default:
		return domain.GradeD
	}
}

func sumQuantity(levels []domain.BookLevel, n int) float64 {
	if len(levels) < n {
		n = len(levels)
	}
	var sum float64
	for _, l := range levels[:n] {
		sum += l.Quantity
	}
	return sum
}
