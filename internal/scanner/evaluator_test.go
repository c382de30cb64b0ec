package scanner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perp-crowd-scanner/internal/domain"
)

func TestEvaluator_SetupA(t *testing.T) {
	market := newFakeMarket()
	aaa := crowdShort(5_000_000)
	aaa.funding = ptr(-0.0004)
	aaa.mark = ptr(1.2345)
	aaa.volume24h = ptr(1_000_000)
	aaa.volume2h = 250_000
	market.set("AAAUSDT", aaa)

	ev, err := newTestEvaluator(market).Evaluate(context.Background(), 7, domain.Instrument{Symbol: "AAAUSDT"})
	require.NoError(t, err)
	assert.True(t, ev.PassedCheapFilter)
	require.Len(t, ev.Records, 1)

	rec := ev.Records[0]
	assert.Equal(t, int64(7), rec.RunID)
	assert.Equal(t, domain.SetupCrowdShortTopLong, rec.Setup)
	assert.Equal(t, int64(1700000000000), rec.TimestampMs)
	assert.Equal(t, 5_000_000.0, rec.OpenInterestUSDT)
	assert.InDelta(t, 0.70, rec.Ratios.TopAccount.Short, 1e-9)
	assert.InDelta(t, 0.50, rec.Ratios.TopPosition.Long, 1e-9)
	require.NotNil(t, rec.FundingRate)
	assert.InDelta(t, -0.0004, *rec.FundingRate, 1e-12)
	require.NotNil(t, rec.Volume2h)
	assert.Equal(t, 250_000.0, *rec.Volume2h)
}

func TestEvaluator_CheapFilterShortCircuits(t *testing.T) {
	market := newFakeMarket()
	market.set("BBBUSDT", neutral())

	ev, err := newTestEvaluator(market).Evaluate(context.Background(), 1, domain.Instrument{Symbol: "BBBUSDT"})
	require.NoError(t, err)
	assert.False(t, ev.PassedCheapFilter)
	assert.Empty(t, ev.Records)
	assert.Equal(t, StageCheapFilter, ev.Stage)
	assert.Equal(t, 0, market.callCount("BBBUSDT", "oi"), "open interest must not be fetched")
	assert.Equal(t, 0, market.callCount("BBBUSDT", "premium"))
}

func TestEvaluator_BothSetups(t *testing.T) {
	market := newFakeMarket()
	market.set("BOTHUSDT", &fakeSymbol{
		lenses: map[domain.Lens]lensFractions{
			domain.LensTopAccount:    {long: 0.70, short: 0.70},
			domain.LensGlobalAccount: {long: 0.66, short: 0.66},
			domain.LensTopPosition:   {long: 0.50, short: 0.50},
		},
		oi:   8_000_000,
		mark: ptr(10),
	})

	ev, err := newTestEvaluator(market).Evaluate(context.Background(), 1, domain.Instrument{Symbol: "BOTHUSDT"})
	require.NoError(t, err)
	require.Len(t, ev.Records, 2)

	assert.Equal(t, domain.SetupCrowdShortTopLong, ev.Records[0].Setup)
	assert.Equal(t, domain.SetupCrowdLongTopShort, ev.Records[1].Setup)
	assert.Equal(t, ev.Records[0].OpenInterestUSDT, ev.Records[1].OpenInterestUSDT)
	assert.Equal(t, ev.Records[0].Ratios, ev.Records[1].Ratios)
	assert.Equal(t, *ev.Records[0].MarkPrice, *ev.Records[1].MarkPrice)
	assert.Equal(t, 1, market.callCount("BOTHUSDT", "oi"), "open interest fetched once for both setups")
}

func TestEvaluator_OpenInterestGate(t *testing.T) {
	tests := []struct {
		name    string
		oi      float64
		records int
	}{
		{"equal to minimum passes", 2_500_000, 1},
		{"above minimum passes", 2_500_001, 1},
		{"below minimum rejected", 2_499_999.99, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			market := newFakeMarket()
			market.set("AAAUSDT", crowdShort(tt.oi))

			ev, err := newTestEvaluator(market).Evaluate(context.Background(), 1, domain.Instrument{Symbol: "AAAUSDT"})
			require.NoError(t, err)
			assert.True(t, ev.PassedCheapFilter)
			assert.Len(t, ev.Records, tt.records)
			for _, rec := range ev.Records {
				assert.GreaterOrEqual(t, rec.OpenInterestUSDT, 2_500_000.0)
			}
		})
	}
}

func TestEvaluator_LensUnavailable(t *testing.T) {
	market := newFakeMarket()
	sym := crowdShort(5_000_000)
	sym.lensErr = map[domain.Lens]error{domain.LensGlobalAccount: context.DeadlineExceeded}
	market.set("AAAUSDT", sym)

	ev, err := newTestEvaluator(market).Evaluate(context.Background(), 1, domain.Instrument{Symbol: "AAAUSDT"})
	require.Error(t, err)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageRatios, se.Stage)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, ev.Records)
	assert.False(t, ev.PassedCheapFilter)
	assert.Equal(t, 0, market.callCount("AAAUSDT", "oi"))
}

func TestEvaluator_OpenInterestUnavailable(t *testing.T) {
	market := newFakeMarket()
	sym := crowdShort(5_000_000)
	sym.oiErr = errUnavailable
	market.set("AAAUSDT", sym)

	ev, err := newTestEvaluator(market).Evaluate(context.Background(), 1, domain.Instrument{Symbol: "AAAUSDT"})
	assert.ErrorIs(t, err, errUnavailable)
	assert.True(t, ev.PassedCheapFilter)
	assert.Empty(t, ev.Records)
}

func TestEvaluator_EnrichmentIsOptional(t *testing.T) {
	market := newFakeMarket()
	sym := crowdShort(5_000_000)
	sym.enrichErr = errUnavailable
	market.set("AAAUSDT", sym)

	ev, err := newTestEvaluator(market).Evaluate(context.Background(), 1, domain.Instrument{Symbol: "AAAUSDT"})
	require.NoError(t, err)
	require.Len(t, ev.Records, 1)

	rec := ev.Records[0]
	assert.Nil(t, rec.FundingRate)
	assert.Nil(t, rec.MarkPrice)
	assert.Nil(t, rec.Volume24h)
	assert.Nil(t, rec.Volume2h)
}

func TestThresholds_Predicates(t *testing.T) {
	th := DefaultThresholds()
	require.NoError(t, th.Validate())

	r := domain.Ratios{
		TopAccount:    domain.Fractions{Long: 0.35, Short: 0.65},
		GlobalAccount: domain.Fractions{Long: 0.35, Short: 0.65},
		TopPosition:   domain.Fractions{Long: 0.45, Short: 0.55},
	}
	assert.True(t, th.CrowdShortTopLong(r), "thresholds are inclusive")
	assert.False(t, th.CrowdLongTopShort(r))
	assert.Equal(t, []domain.SetupKind{domain.SetupCrowdShortTopLong}, th.Satisfied(r))

	r.TopPosition.Long = 0.4499
	assert.Empty(t, th.Satisfied(r))

	th.TopAccountLongMin = 1.2
	assert.Error(t, th.Validate())
}
