package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"perp-crowd-scanner/internal/domain"
)

// REST paths.
const (
	PathExchangeInfo       = "/fapi/v1/exchangeInfo"
	PathTopAccountRatio    = "/futures/data/topLongShortAccountRatio"
	PathGlobalAccountRatio = "/futures/data/globalLongShortAccountRatio"
	PathTopPositionRatio   = "/futures/data/topLongShortPositionRatio"
	PathOpenInterestHist   = "/futures/data/openInterestHist"
	PathPremiumIndex       = "/fapi/v1/premiumIndex"
	PathTicker24h          = "/fapi/v1/ticker/24hr"
	PathKlines             = "/fapi/v1/klines"
	PathDepth              = "/fapi/v1/depth"
)

// LensPath returns the ratio endpoint of a lens.
func LensPath(lens domain.Lens) (string, error) {
	switch lens {
	case domain.LensTopAccount:
		return PathTopAccountRatio, nil
	case domain.LensGlobalAccount:
		return PathGlobalAccountRatio, nil
	case domain.LensTopPosition:
		return PathTopPositionRatio, nil
	default:
		return "", fmt.Errorf("unknown lens %q", lens)
	}
}

// ExchangeInfo returns the full instrument catalogue.
func (c *Client) ExchangeInfo(ctx context.Context) ([]domain.ContractInfo, error) {
	var resp exchangeInfoResponse
	if err := c.Get(ctx, PathExchangeInfo, nil, 0, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.ContractInfo, 0, len(resp.Symbols))
	for _, s := range resp.Symbols {
		out = append(out, domain.ContractInfo{
			Symbol:       s.Symbol,
			ContractType: s.ContractType,
			QuoteAsset:   s.QuoteAsset,
			Status:       s.Status,
		})
	}
	return out, nil
}

// LatestRatio returns the most recent long/short snapshot of a lens.
// A missing timestamp decodes as zero; missing fractions are malformed.
func (c *Client) LatestRatio(ctx context.Context, lens domain.Lens, symbol, period string) (*domain.RatioSnapshot, error) {
	path, err := LensPath(lens)
	if err != nil {
		return nil, err
	}

	var entries []ratioEntry
	if err := c.Get(ctx, path, latestParams(symbol, period), 0, &entries); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%s %s: %w", lens, symbol, ErrNoData)
	}

	e := entries[0]
	long, err := parseFloat(e.LongAccount)
	if err != nil {
		return nil, fmt.Errorf("%s %s longAccount: %w", lens, symbol, err)
	}
	short, err := parseFloat(e.ShortAccount)
	if err != nil {
		return nil, fmt.Errorf("%s %s shortAccount: %w", lens, symbol, err)
	}
	ts, _ := parseInt(e.Timestamp)

	return &domain.RatioSnapshot{
		Lens:        lens,
		Symbol:      symbol,
		TimestampMs: ts,
		Long:        long,
		Short:       short,
	}, nil
}

// LatestOpenInterest returns the most recent open interest statistic.
func (c *Client) LatestOpenInterest(ctx context.Context, symbol, period string) (*domain.OpenInterest, error) {
	var entries []openInterestEntry
	if err := c.Get(ctx, PathOpenInterestHist, latestParams(symbol, period), 0, &entries); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("open interest %s: %w", symbol, ErrNoData)
	}

	value, err := parseFloat(entries[0].SumOpenInterestValue)
	if err != nil {
		return nil, fmt.Errorf("open interest %s: %w", symbol, err)
	}
	ts, _ := parseInt(entries[0].Timestamp)

	return &domain.OpenInterest{Symbol: symbol, TimestampMs: ts, SumValue: value}, nil
}

// PremiumIndex returns funding rate and mark price. Both fields are optional.
func (c *Client) PremiumIndex(ctx context.Context, symbol string) (*domain.PremiumIndex, error) {
	var resp premiumIndexResponse
	if err := c.Get(ctx, PathPremiumIndex, url.Values{"symbol": {symbol}}, 0, &resp); err != nil {
		return nil, err
	}
	return &domain.PremiumIndex{
		Symbol:      symbol,
		FundingRate: optionalFloat(resp.LastFundingRate),
		MarkPrice:   optionalFloat(resp.MarkPrice),
	}, nil
}

// Ticker24h returns rolling 24h volume statistics.
func (c *Client) Ticker24h(ctx context.Context, symbol string) (*domain.Ticker24h, error) {
	var resp ticker24hResponse
	if err := c.Get(ctx, PathTicker24h, url.Values{"symbol": {symbol}}, 0, &resp); err != nil {
		return nil, err
	}
	return &domain.Ticker24h{
		Symbol:      symbol,
		Volume:      optionalFloat(resp.Volume),
		QuoteVolume: optionalFloat(resp.QuoteVolume),
	}, nil
}

// Klines returns candles oldest first.
func (c *Client) Klines(ctx context.Context, symbol, interval string, limit int) ([]domain.Kline, error) {
	params := url.Values{
		"symbol":   {symbol},
		"interval": {interval},
		"limit":    {strconv.Itoa(limit)},
	}

	var rows [][]json.RawMessage
	if err := c.Get(ctx, PathKlines, params, 0, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("klines %s %s: %w", symbol, interval, ErrNoData)
	}

	out := make([]domain.Kline, 0, len(rows))
	for i, row := range rows {
		k, err := parseKline(row)
		if err != nil {
			return nil, fmt.Errorf("klines %s row %d: %w", symbol, i, err)
		}
		out = append(out, k)
	}
	return out, nil
}

// Depth returns an order book snapshot with up to limit levels per side.
func (c *Client) Depth(ctx context.Context, symbol string, limit int) (*domain.OrderBook, error) {
	params := url.Values{
		"symbol": {symbol},
		"limit":  {strconv.Itoa(limit)},
	}

	var resp depthResponse
	if err := c.Get(ctx, PathDepth, params, 0, &resp); err != nil {
		return nil, err
	}
	if len(resp.Bids) == 0 || len(resp.Asks) == 0 {
		return nil, fmt.Errorf("depth %s: %w", symbol, ErrNoData)
	}

	bids, err := parseLevels(resp.Bids)
	if err != nil {
		return nil, fmt.Errorf("depth %s bids: %w", symbol, err)
	}
	asks, err := parseLevels(resp.Asks)
	if err != nil {
		return nil, fmt.Errorf("depth %s asks: %w", symbol, err)
	}

	book := &domain.OrderBook{
		Symbol: symbol,
		Bids:   make([]domain.BookLevel, len(bids)),
		Asks:   make([]domain.BookLevel, len(asks)),
	}
	for i, l := range bids {
		book.Bids[i] = domain.BookLevel{Price: l.price, Quantity: l.qty}
	}
	for i, l := range asks {
		book.Asks[i] = domain.BookLevel{Price: l.price, Quantity: l.qty}
	}
	return book, nil
}

func latestParams(symbol, period string) url.Values {
	return url.Values{
		"symbol": {symbol},
		"period": {period},
		"limit":  {"1"},
	}
}

// parseKline decodes [openTime, open, high, low, close, volume, closeTime, quoteVolume, ...].
func parseKline(row []json.RawMessage) (domain.Kline, error) {
	if len(row) < klineFields {
		return domain.Kline{}, fmt.Errorf("%w: kline has %d fields", ErrMalformed, len(row))
	}

	var (
		k   domain.Kline
		err error
	)
	if k.OpenTime, err = parseInt(row[0]); err != nil {
		return k, err
	}
	floats := []*float64{&k.Open, &k.High, &k.Low, &k.Close, &k.Volume}
	for i, dst := range floats {
		if *dst, err = parseFloat(row[i+1]); err != nil {
			return k, err
		}
	}
	if k.CloseTime, err = parseInt(row[6]); err != nil {
		return k, err
	}
	if k.QuoteVolume, err = parseFloat(row[7]); err != nil {
		return k, err
	}
	return k, nil
}
