package domain

// OpenInterest is the latest open interest statistic of a symbol.
type OpenInterest struct {
	Symbol      string
	TimestampMs int64
	SumValue    float64 // sumOpenInterestValue, quote currency
}

// PremiumIndex carries the funding rate and mark price of a symbol.
// Each field is independently optional.
type PremiumIndex struct {
	Symbol      string
	FundingRate *float64
	MarkPrice   *float64
}

// Ticker24h carries rolling 24h statistics of a symbol.
type Ticker24h struct {
	Symbol      string
	Volume      *float64 // base asset volume
	QuoteVolume *float64
}

// Kline is one candle.
type Kline struct {
	OpenTime    int64
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64
	CloseTime   int64
	QuoteVolume float64
}

// BookLevel is one price level of an order book side.
type BookLevel struct {
	Price    float64
	Quantity float64
}

// OrderBook is a depth snapshot, best levels first.
type OrderBook struct {
	Symbol string
	Bids   []BookLevel
	Asks   []BookLevel
}
