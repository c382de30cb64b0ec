package reporting

import (
	"fmt"
	"strings"
	"time"

	"perp-crowd-scanner/internal/domain"
)

var gradeLabels = map[domain.Grade]string{
	domain.GradeA: "PRIME_ENTRY",
	domain.GradeB: "GOOD_ENTRY",
	domain.GradeC: "CAUTION_ENTRY",
	domain.GradeD: "FLAG_REVIEW",
}

var setupLabels = map[domain.SetupKind]string{
	domain.SetupCrowdShortTopLong: "Crowd SHORT",
	domain.SetupCrowdLongTopShort: "Crowd LONG",
}

// topGradeA is how many grade A coins the risk summary lists.
const topGradeA = 5

// RenderScanSummary renders the end-of-scan text summary.
func RenderScanSummary(r *ScanReport) string {
	var sb strings.Builder

	if r.Run != nil {
		sb.WriteString(fmt.Sprintf("Run %d (%s, period %s)\n", r.Run.RunID, r.Run.StartedAt.UTC().Format(time.RFC3339), r.Run.Period))
	}
	if s := r.Scan; s != nil {
		sb.WriteString(fmt.Sprintf("Done. scanned=%d/%d | traders_pass=%d | rows=%d", s.Scanned, s.Total, s.PassedCheapFilter, s.RecordsWritten))
		if s.Failed > 0 || s.Dropped > 0 {
			sb.WriteString(fmt.Sprintf(" | failed=%d | dropped=%d", s.Failed, s.Dropped))
		}
		if s.TimedOut {
			sb.WriteString(" | TIMED OUT")
		}
		sb.WriteString("\n")
	}

	for _, setup := range domain.SetupKinds {
		s := r.Section(setup)
		sb.WriteString(fmt.Sprintf("  - %s signals: %d (%d highlighted)\n", setupLabels[setup], s.Len(), len(s.Highlighted)))
	}
	sb.WriteString(fmt.Sprintf("  - ⭐ Funding confirmed: %d\n", r.TotalHighlighted()))
	sb.WriteString(fmt.Sprintf("  - Total signals: %d\n", r.TotalSignals()))

	return sb.String()
}

// RenderRiskSummary renders the grade and risk distribution of a risk pass.
func RenderRiskSummary(r *RiskReport) string {
	var sb strings.Builder
	rule := strings.Repeat("=", 60)

	grades := make(map[domain.Grade]int, len(domain.Grades))
	levels := make(map[domain.RiskLevel]int, len(domain.RiskLevels))
	var best []domain.RiskAssessment
	for _, a := range r.Assessments {
		grades[a.FinalGrade]++
		levels[a.RiskLevel]++
		if a.FinalGrade == domain.GradeA {
			best = append(best, a)
		}
	}

	sb.WriteString(rule + "\n")
	sb.WriteString("Advanced Analysis Summary\n")
	sb.WriteString(rule + "\n")
	sb.WriteString(fmt.Sprintf("Found %d signals total\n", r.Total))
	if r.Skipped > 0 {
		sb.WriteString(fmt.Sprintf("Skipped %d coins with OI < %s\n", r.Skipped, formatMillions(r.MinOIUSDT)))
	}
	sb.WriteString(fmt.Sprintf("Total coins analyzed: %d\n", len(r.Assessments)))

	sb.WriteString("\nGrades distribution:\n")
	for _, g := range domain.Grades {
		sb.WriteString(fmt.Sprintf("  %s (%s): %d\n", g, gradeLabels[g], grades[g]))
	}
	sb.WriteString("\nRisk distribution:\n")
	for _, l := range domain.RiskLevels {
		sb.WriteString(fmt.Sprintf("  %s: %d\n", l, levels[l]))
	}

	if len(best) > 0 {
		// assessments are already ordered by grade then OI
		if len(best) > topGradeA {
			best = best[:topGradeA]
		}
		sb.WriteString("\n⭐ Best Entry Opportunities (Grade A):\n")
		for _, a := range best {
			sb.WriteString(fmt.Sprintf("  %-10s %-25s OI: $%s\n", a.Signal.Symbol, a.Signal.Setup, formatMillions(a.Signal.OpenInterestUSDT)))
		}
	}

	return sb.String()
}
