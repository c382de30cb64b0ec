package domain

// Grade is an A-D quality classification; A is best.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
)

// Grades lists grades best first.
var Grades = []Grade{GradeA, GradeB, GradeC, GradeD}

// Score maps a grade onto 4..1. Unknown grades score as D.
func (g Grade) Score() int {
	switch g {
	case GradeA:
		return 4
	case GradeB:
		return 3
	case GradeC:
		return 2
	default:
		return 1
	}
}

// RiskLevel is the entry risk derived from the final grade.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskVeryHigh RiskLevel = "VERY_HIGH"
)

// RiskLevels lists risk levels lowest first.
var RiskLevels = []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskVeryHigh}

// StopHuntRisk flags repeated heavy downside candles.
type StopHuntRisk string

const (
	StopHuntYes     StopHuntRisk = "YES"
	StopHuntCaution StopHuntRisk = "CAUTION"
	StopHuntNo      StopHuntRisk = "NO"
	StopHuntUnknown StopHuntRisk = "UNKNOWN"
)

// Risk component names.
const (
	ComponentVolatility = "volatility"
	ComponentOrderBook  = "orderbook"
	ComponentOI         = "oi"
	ComponentDrawdown   = "drawdown"
)

// RiskAssessment is the graded analysis of one scan hit.
type RiskAssessment struct {
	Signal SignalRecord

	// Metrics (nullable when the analysis was unavailable)
	VolatilityATRPct   *float64
	SpreadPct          *float64
	BidAskImbalance    *float64
	HeavyDownRatio     *float64
	MaxConsecutiveDown *int
	StopHuntRisk       StopHuntRisk

	Grades     map[string]Grade // keyed by component name
	FinalGrade Grade
	RiskLevel  RiskLevel
}
