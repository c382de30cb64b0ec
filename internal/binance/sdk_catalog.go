package binance

import (
	"context"
	"fmt"
	"net/http"

	"github.com/adshao/go-binance/v2/futures"

	"perp-crowd-scanner/internal/domain"
)

// SDKCatalog lists the instrument catalogue through the go-binance futures client.
// Only exchangeInfo is served here; ratio endpoints stay on Client.
type SDKCatalog struct {
	client *futures.Client
}

// NewSDKCatalog creates a catalogue source. Empty baseURL keeps the SDK default.
func NewSDKCatalog(baseURL string, httpClient *http.Client) *SDKCatalog {
	client := futures.NewClient("", "")
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	if httpClient != nil {
		client.HTTPClient = httpClient
	}
	return &SDKCatalog{client: client}
}

// ExchangeInfo returns the full instrument catalogue.
func (s *SDKCatalog) ExchangeInfo(ctx context.Context) ([]domain.ContractInfo, error) {
	info, err := s.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("sdk exchange info: %w", err)
	}

	out := make([]domain.ContractInfo, 0, len(info.Symbols))
	for _, sym := range info.Symbols {
		out = append(out, domain.ContractInfo{
			Symbol:       sym.Symbol,
			ContractType: string(sym.ContractType),
			QuoteAsset:   sym.QuoteAsset,
			Status:       sym.Status,
		})
	}
	return out, nil
}
