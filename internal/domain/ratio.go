package domain

// Lens is one long/short ratio measurement perspective.
type Lens string

const (
	LensTopAccount    Lens = "TOP_ACCOUNT"
	LensGlobalAccount Lens = "GLOBAL_ACCOUNT"
	LensTopPosition   Lens = "TOP_POSITION"
)

// Lenses lists every lens in evaluation order.
var Lenses = []Lens{LensTopAccount, LensGlobalAccount, LensTopPosition}

// String returns the string representation of Lens.
func (l Lens) String() string {
	return string(l)
}

// IsValid checks if the lens is a known value.
func (l Lens) IsValid() bool {
	return l == LensTopAccount || l == LensGlobalAccount || l == LensTopPosition
}

// RatioSnapshot is the latest long/short measurement of one lens for one symbol.
// Transient: fetched per evaluation and never persisted on its own.
type RatioSnapshot struct {
	Lens        Lens
	Symbol      string
	TimestampMs int64   // measurement time (ms)
	Long        float64 // long fraction in [0,1]
	Short       float64 // short fraction in [0,1]
}

// Fractions holds the long and short proportions of one lens.
type Fractions struct {
	Long  float64
	Short float64
}

// Ratios holds the six fractions of the three lenses for one evaluation.
type Ratios struct {
	TopAccount    Fractions
	GlobalAccount Fractions
	TopPosition   Fractions
}

// NewRatios builds Ratios from the three lens snapshots.
func NewRatios(topAccount, globalAccount, topPosition *RatioSnapshot) Ratios {
	return Ratios{
		TopAccount:    Fractions{Long: topAccount.Long, Short: topAccount.Short},
		GlobalAccount: Fractions{Long: globalAccount.Long, Short: globalAccount.Short},
		TopPosition:   Fractions{Long: topPosition.Long, Short: topPosition.Short},
	}
}
