package reporting

import (
	"encoding/json"
	"io"
	"time"
)

// WriteGradesJSON writes the per-coin grades document.
// Coins are keyed by symbol; a symbol hit by both setups keeps the later entry.
func WriteGradesJSON(w io.Writer, r *RiskReport) error {
	doc := gradesDocument{
		Generated:  r.GeneratedAt.Format(time.RFC3339),
		TotalCoins: len(r.Assessments),
		Coins:      make(map[string]gradedCoin, len(r.Assessments)),
	}
	for _, a := range r.Assessments {
		doc.Coins[a.Signal.Symbol] = gradedCoin{
			Setup:      a.Signal.Setup,
			OIUSDT:     a.Signal.OpenInterestUSDT,
			Grades:     a.Grades,
			FinalGrade: a.FinalGrade,
			RiskLevel:  a.RiskLevel,
			Metrics: coinMetrics{
				VolatilityATRPct: a.VolatilityATRPct,
				SpreadPct:        a.SpreadPct,
				HeavyDownRatio:   a.HeavyDownRatio,
				StopHuntRisk:     a.StopHuntRisk,
			},
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
