package domain

// SetupKind tags which directional asymmetry triggered a signal.
type SetupKind string

const (
	// SetupCrowdShortTopLong: crowd short, top traders not short (setup A).
	SetupCrowdShortTopLong SetupKind = "CROWD_SHORT_TOP_LONG"
	// SetupCrowdLongTopShort: crowd long, top traders not long (setup B).
	SetupCrowdLongTopShort SetupKind = "CROWD_LONG_TOP_SHORT"
)

// SetupKinds lists both setups in emission order.
var SetupKinds = []SetupKind{SetupCrowdShortTopLong, SetupCrowdLongTopShort}

// String returns the string representation of SetupKind.
func (s SetupKind) String() string {
	return string(s)
}

// IsValid checks if the setup kind is a known value.
func (s SetupKind) IsValid() bool {
	return s == SetupCrowdShortTopLong || s == SetupCrowdLongTopShort
}

// SignalRecord is one scan hit.
// Corresponds to scan_hits table; unique per (RunID, Symbol, Setup).
type SignalRecord struct {
	RunID            int64
	Symbol           string
	Setup            SetupKind
	TimestampMs      int64   // top-account snapshot timestamp (ms)
	OpenInterestUSDT float64 // sum open interest value in quote currency

	Ratios Ratios

	// Enrichment (nullable)
	FundingRate *float64 // last funding rate as a fraction
	MarkPrice   *float64
	Volume24h   *float64 // 24h base asset volume
	Volume2h    *float64 // quote volume of the latest 2h candle
}

// SignalKey is the upsert key of a SignalRecord.
type SignalKey struct {
	RunID  int64
	Symbol string
	Setup  SetupKind
}

// Key returns the upsert key of the record.
func (r *SignalRecord) Key() SignalKey {
	return SignalKey{RunID: r.RunID, Symbol: r.Symbol, Setup: r.Setup}
}
