package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perp-crowd-scanner/internal/domain"
)

func fastPolicy(attempts int) RetryPolicy {
	p := DefaultRetryPolicy()
	p.MaxAttempts = attempts
	p.BaseDelay = time.Millisecond
	p.MaxDelay = 5 * time.Millisecond
	return p
}

func TestClient_RetriesTransientStatus(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `[{"symbol":"BTCUSDT","longAccount":"0.7000","shortAccount":"0.3000","timestamp":1700000000000}]`)
	}))
	defer server.Close()

	client := NewClient(server.URL, fastPolicy(5))
	snap, err := client.LatestRatio(context.Background(), domain.LensTopAccount, "BTCUSDT", "5m")
	require.NoError(t, err)

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, domain.LensTopAccount, snap.Lens)
	assert.InDelta(t, 0.7, snap.Long, 1e-9)
	assert.InDelta(t, 0.3, snap.Short, 1e-9)
	assert.Equal(t, int64(1700000000000), snap.TimestampMs)
}

func TestClient_DoesNotRetryClientError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":-1121,"msg":"Invalid symbol."}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, fastPolicy(5))
	_, err := client.LatestOpenInterest(context.Background(), "NOPEUSDT", "5m")
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusBadRequest, fe.StatusCode)
	assert.Equal(t, 1, fe.Attempts)
	assert.Equal(t, PathOpenInterestHist, fe.Path)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, int64(-1121), apiErr.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_ExhaustsRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, fastPolicy(3))
	_, err := client.PremiumIndex(context.Background(), "BTCUSDT")

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 3, fe.Attempts)
	assert.Equal(t, http.StatusTooManyRequests, fe.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_ReadTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, fastPolicy(2), WithReadTimeout(20*time.Millisecond))
	_, err := client.LatestRatio(context.Background(), domain.LensGlobalAccount, "BTCUSDT", "5m")

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 2, fe.Attempts)
	assert.Equal(t, 0, fe.StatusCode)
}

func TestClient_ContextCancelStopsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	policy := fastPolicy(10)
	policy.BaseDelay = time.Second
	client := NewClient(server.URL, policy)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Ticker24h(ctx, "BTCUSDT")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestClient_EmptyListIsNoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	client := NewClient(server.URL, fastPolicy(1))
	_, err := client.LatestRatio(context.Background(), domain.LensTopPosition, "BTCUSDT", "5m")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestClient_MissingFractionIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"symbol":"BTCUSDT","longAccount":"abc","shortAccount":"0.4"}]`)
	}))
	defer server.Close()

	client := NewClient(server.URL, fastPolicy(1))
	_, err := client.LatestRatio(context.Background(), domain.LensTopAccount, "BTCUSDT", "5m")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestClient_RequestShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathTopPositionRatio, r.URL.Path)
		assert.Equal(t, "ETHUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "15m", r.URL.Query().Get("period"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		fmt.Fprint(w, `[{"longAccount":0.55,"shortAccount":0.45,"timestamp":"1700000000000"}]`)
	}))
	defer server.Close()

	client := NewClient(server.URL, fastPolicy(1))
	snap, err := client.LatestRatio(context.Background(), domain.LensTopPosition, "ETHUSDT", "15m")
	require.NoError(t, err)
	assert.InDelta(t, 0.55, snap.Long, 1e-9)
	assert.Equal(t, int64(1700000000000), snap.TimestampMs)
}

func TestClient_PremiumIndexOptionalFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"symbol":"BTCUSDT","markPrice":"43250.10","lastFundingRate":""}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, fastPolicy(1))
	pi, err := client.PremiumIndex(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, pi.MarkPrice)
	assert.InDelta(t, 43250.10, *pi.MarkPrice, 1e-6)
	assert.Nil(t, pi.FundingRate)
}

func TestClient_Klines(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2h", r.URL.Query().Get("interval"))
		fmt.Fprint(w, `[[1700000000000,"100.0","110.0","95.0","105.0","1234.5",1700007199999,"129622.5",42,"600","63000","0"]]`)
	}))
	defer server.Close()

	client := NewClient(server.URL, fastPolicy(1))
	klines, err := client.Klines(context.Background(), "BTCUSDT", "2h", 1)
	require.NoError(t, err)
	require.Len(t, klines, 1)

	k := klines[0]
	assert.Equal(t, int64(1700000000000), k.OpenTime)
	assert.InDelta(t, 110.0, k.High, 1e-9)
	assert.InDelta(t, 95.0, k.Low, 1e-9)
	assert.InDelta(t, 105.0, k.Close, 1e-9)
	assert.InDelta(t, 129622.5, k.QuoteVolume, 1e-9)
}

func TestClient_KlinesShortRowIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[[1700000000000,"100.0","110.0"]]`)
	}))
	defer server.Close()

	client := NewClient(server.URL, fastPolicy(1))
	_, err := client.Klines(context.Background(), "BTCUSDT", "1m", 1)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestClient_Depth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `{"lastUpdateId":1,"bids":[["99.9","3"],["99.8","1"]],"asks":[["100.1","2"]]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, fastPolicy(1))
	book, err := client.Depth(context.Background(), "BTCUSDT", 20)
	require.NoError(t, err)
	require.Len(t, book.Bids, 2)
	require.Len(t, book.Asks, 1)
	assert.InDelta(t, 99.9, book.Bids[0].Price, 1e-9)
	assert.InDelta(t, 2.0, book.Asks[0].Quantity, 1e-9)
}

func TestClient_ExchangeInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathExchangeInfo, r.URL.Path)
		fmt.Fprint(w, `{"symbols":[
			{"symbol":"BTCUSDT","contractType":"PERPETUAL","quoteAsset":"USDT","status":"TRADING"},
			{"symbol":"BTCUSDT_240628","contractType":"CURRENT_QUARTER","quoteAsset":"USDT","status":"TRADING"}
		]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, fastPolicy(1))
	infos, err := client.ExchangeInfo(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "CURRENT_QUARTER", infos[1].ContractType)
}

func TestSDKCatalog_ExchangeInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathExchangeInfo, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"timezone":"UTC","serverTime":1700000000000,"symbols":[
			{"symbol":"ETHUSDT","pair":"ETHUSDT","contractType":"PERPETUAL","status":"TRADING","baseAsset":"ETH","quoteAsset":"USDT"}
		]}`)
	}))
	defer server.Close()

	catalog := NewSDKCatalog(server.URL, server.Client())
	infos, err := catalog.ExchangeInfo(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, domain.ContractInfo{
		Symbol:       "ETHUSDT",
		ContractType: domain.ContractTypePerpetual,
		QuoteAsset:   domain.QuoteAssetUSDT,
		Status:       domain.StatusTrading,
	}, infos[0])
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := DefaultRetryPolicy()
	d := p.BaseDelay
	seen := []time.Duration{d}
	for i := 0; i < 6; i++ {
		d = p.next(d)
		seen = append(seen, d)
	}

	assert.Equal(t, 600*time.Millisecond, seen[0])
	assert.Equal(t, 1200*time.Millisecond, seen[1])
	assert.Equal(t, 2400*time.Millisecond, seen[2])
	assert.Equal(t, p.MaxDelay, seen[len(seen)-1])
	assert.True(t, p.IsRetryable(http.StatusGatewayTimeout))
	assert.False(t, p.IsRetryable(http.StatusNotFound))
}
