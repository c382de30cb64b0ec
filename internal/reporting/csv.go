package reporting

import (
	"encoding/csv"
	"io"
	"strconv"

	"perp-crowd-scanner/internal/domain"
)

const (
	highlightMarker = "⭐ "
	sectionRule     = "═══════════════════════════════════════════════════"
)

var scanHeader = []string{
	"Symbol", "Setup", "OI (USDT)",
	"Top Acc Long %", "Top Acc Short %",
	"Global Acc Long %", "Global Acc Short %",
	"Top Pos Long %", "Top Pos Short %",
	"Funding Rate", "Current Price", "Volume 24h", "Volume 2h",
}

var riskHeader = []string{
	"Symbol", "Setup", "OI (USDT)",
	"Volatility %", "Vol Grade",
	"Spread %", "Imbalance %", "OB Grade",
	"OI Grade", "Heavy Downs %", "Max Cons Down", "Drawdown Grade",
	"Stop Hunt Risk",
	"Final Grade", "Risk Level",
	"Funding Rate", "Price", "24h Vol", "2h Vol",
}

// sectionTitles holds the banner and highlight caption of each setup.
var sectionTitles = map[domain.SetupKind][2]string{
	domain.SetupCrowdShortTopLong: {"===  CROWD SHORT / TOP TRADERS LONG  ===", "⭐ FUNDING CONFIRMS CROWD SHORT (Highlighted) ⭐"},
	domain.SetupCrowdLongTopShort: {"===  CROWD LONG / TOP TRADERS SHORT  ===", "⭐ FUNDING CONFIRMS CROWD LONG (Highlighted) ⭐"},
}

// WriteScanCSV writes the scan export: a header, then one block per
// non-empty section with funding-confirmed rows first.
func WriteScanCSV(w io.Writer, r *ScanReport) error {
	cw := csv.NewWriter(w)
	blank := []string{}

	rows := [][]string{scanHeader}
	for i, s := range r.Sections {
		if s.Len() == 0 {
			continue
		}
		titles := sectionTitles[s.Setup]
		if i > 0 {
			rows = append(rows, blank)
		}
		rows = append(rows, blank, []string{sectionRule}, []string{titles[0]}, []string{sectionRule}, blank)

		if len(s.Highlighted) > 0 {
			rows = append(rows, []string{titles[1]}, blank)
			for _, rec := range s.Highlighted {
				rows = append(rows, scanRow(rec, true))
			}
			rows = append(rows, blank)
		}
		if len(s.Other) > 0 {
			if len(s.Highlighted) > 0 {
				rows = append(rows, []string{"--- Other Signals ---"}, blank)
			}
			for _, rec := range s.Other {
				rows = append(rows, scanRow(rec, false))
			}
		}
	}

	return cw.WriteAll(rows)
}

func scanRow(rec *domain.SignalRecord, highlight bool) []string {
	symbol := rec.Symbol
	if highlight {
		symbol = highlightMarker + symbol
	}
	return []string{
		symbol,
		rec.Setup.String(),
		formatAmount(rec.OpenInterestUSDT),
		formatFraction(rec.Ratios.TopAccount.Long),
		formatFraction(rec.Ratios.TopAccount.Short),
		formatFraction(rec.Ratios.GlobalAccount.Long),
		formatFraction(rec.Ratios.GlobalAccount.Short),
		formatFraction(rec.Ratios.TopPosition.Long),
		formatFraction(rec.Ratios.TopPosition.Short),
		formatFunding(rec.FundingRate),
		formatPrice(rec.MarkPrice),
		formatOptionalAmount(rec.Volume24h),
		formatOptionalAmount(rec.Volume2h),
	}
}

// WriteRiskCSV writes one row per assessment in report order.
func WriteRiskCSV(w io.Writer, r *RiskReport) error {
	rows := make([][]string, 0, len(r.Assessments)+1)
	rows = append(rows, riskHeader)
	for i := range r.Assessments {
		rows = append(rows, riskRow(&r.Assessments[i]))
	}
	return csv.NewWriter(w).WriteAll(rows)
}

func riskRow(a *domain.RiskAssessment) []string {
	sig := &a.Signal

	maxCons := missing
	if a.MaxConsecutiveDown != nil {
		maxCons = strconv.Itoa(*a.MaxConsecutiveDown)
	}

	return []string{
		sig.Symbol,
		sig.Setup.String(),
		formatAmount(sig.OpenInterestUSDT),
		formatPercent(a.VolatilityATRPct, 2),
		gradeOf(a, domain.ComponentVolatility),
		formatPercent(a.SpreadPct, 4),
		formatPercent(a.BidAskImbalance, 1),
		gradeOf(a, domain.ComponentOrderBook),
		gradeOf(a, domain.ComponentOI),
		formatPercent(a.HeavyDownRatio, 1),
		maxCons,
		gradeOf(a, domain.ComponentDrawdown),
		string(a.StopHuntRisk),
		string(a.FinalGrade),
		string(a.RiskLevel),
		formatFunding(sig.FundingRate),
		formatPrice(sig.MarkPrice),
		formatOptionalAmount(sig.Volume24h),
		formatOptionalAmount(sig.Volume2h),
	}
}

func gradeOf(a *domain.RiskAssessment, component string) string {
	if g, ok := a.Grades[component]; ok {
		return string(g)
	}
	return "?"
}
