// Package universe loads the set of instruments eligible for a scan run.
package universe

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"perp-crowd-scanner/internal/domain"
)

// ErrEmptyCatalogue is returned when the catalogue source lists no contracts at all.
var ErrEmptyCatalogue = errors.New("empty instrument catalogue")

// CatalogSource lists every contract of the exchange.
type CatalogSource interface {
	ExchangeInfo(ctx context.Context) ([]domain.ContractInfo, error)
}

// Options configures Loader.
type Options struct {
	Source     CatalogSource
	QuoteAsset string // reference currency; default USDT
	Logger     *log.Logger
}

// Loader filters the catalogue down to tradable perpetuals.
type Loader struct {
	source     CatalogSource
	quoteAsset string
	logger     *log.Logger
}

// NewLoader creates a new universe loader.
func NewLoader(opts Options) *Loader {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	quote := opts.QuoteAsset
	if quote == "" {
		quote = domain.QuoteAssetUSDT
	}
	return &Loader{
		source:     opts.Source,
		quoteAsset: quote,
		logger:     logger,
	}
}

// ListTradableSymbols returns perpetual contracts quoted in the reference
// currency that are currently trading, sorted by symbol. Any failure is fatal.
func (l *Loader) ListTradableSymbols(ctx context.Context) ([]domain.Instrument, error) {
	infos, err := l.source.ExchangeInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("load universe: %w", ErrEmptyCatalogue)
	}

	seen := make(map[string]struct{}, len(infos))
	out := make([]domain.Instrument, 0, len(infos))
	for _, info := range infos {
		if !l.eligible(info) {
			continue
		}
		if _, dup := seen[info.Symbol]; dup {
			continue
		}
		seen[info.Symbol] = struct{}{}
		out = append(out, domain.Instrument{Symbol: info.Symbol})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Symbol < out[j].Symbol
	})

	l.logger.Printf("Universe: %d tradable %s perpetuals out of %d contracts", len(out), l.quoteAsset, len(infos))
	return out, nil
}

func (l *Loader) eligible(info domain.ContractInfo) bool {
	return info.Symbol != "" &&
		info.ContractType == domain.ContractTypePerpetual &&
		info.QuoteAsset == l.quoteAsset &&
		info.Status == domain.StatusTrading
}
