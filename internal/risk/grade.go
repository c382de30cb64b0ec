package risk

import "perp-crowd-scanner/internal/domain"

// GradeOpenInterest grades open interest: A >=10M, B >=6M, C >=4M, else D.
func GradeOpenInterest(oiUSDT float64) domain.Grade {
	switch {
	case oiUSDT >= 10_000_000:
		return domain.GradeA
	case oiUSDT >= 6_000_000:
		return domain.GradeB
	case oiUSDT >= 4_000_000:
		return domain.GradeC
	default:
		return domain.GradeD
	}
}

// FinalGrade maps the mean component score back onto a grade.
// No components grades D.
func FinalGrade(grades map[string]domain.Grade) domain.Grade {
	if len(grades) == 0 {
		return domain.GradeD
	}

	var sum int
	for _, g := range grades {
		sum += g.Score()
	}
	avg := float64(sum) / float64(len(grades))

	switch {
	case avg >= 3.5:
		return domain.GradeA
	case avg >= 2.5:
		return domain.GradeB
	case avg >= 1.5:
		return domain.GradeC
	default:
		return domain.GradeD
	}
}

// RiskLevelFor converts a final grade to an entry risk level.
func RiskLevelFor(g domain.Grade) domain.RiskLevel {
	switch g {
	case domain.GradeA:
		return domain.RiskLow
	case domain.GradeB:
		return domain.RiskMedium
	case domain.GradeC:
		return domain.RiskHigh
	default:
		return domain.RiskVeryHigh
	}
}
