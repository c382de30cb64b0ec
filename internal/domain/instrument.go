package domain

// Instrument identifies one tradable contract for the duration of a run.
type Instrument struct {
	Symbol string // exchange symbol, e.g. BTCUSDT
}

// ContractInfo is one entry of the exchange instrument catalogue.
type ContractInfo struct {
	Symbol       string
	ContractType string // PERPETUAL | CURRENT_QUARTER | ...
	QuoteAsset   string // USDT | USDC | ...
	Status       string // TRADING | SETTLING | ...
}

// Catalogue values used by the universe filter.
const (
	ContractTypePerpetual = "PERPETUAL"
	StatusTrading         = "TRADING"
	QuoteAssetUSDT        = "USDT"
)
