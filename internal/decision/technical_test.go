package decision

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/hedgesim/internal/backtest/engine/engine_v1/pricesource"
	"github.com/quantfold/hedgesim/internal/types"
)

// seedCloses writes one close per weekday ending at end, oldest first.
func seedCloses(prices *pricesource.MemoryPriceSource, ticker string, end time.Time, closes []float64) {
	day := end
	for i := len(closes) - 1; i >= 0; day = day.AddDate(0, 0, -1) {
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}

		prices.SetClose(ticker, day, closes[i])
		i--
	}
}

func flatThenTrend(length int, base, step float64) []float64 {
	closes := make([]float64, length)
	for i := range closes {
		closes[i] = base
		if i >= length-10 {
			closes[i] = base + step*float64(i-(length-10)+1)
		}
	}

	return closes
}

// flatThenZigzagUp is flat at base, then climbs two steps forward one step
// back, so the trend is up without pinning RSI at 100.
func flatThenZigzagUp(length int, base float64) []float64 {
	closes := make([]float64, length)

	level := base
	for i := range closes {
		if i >= length-10 {
			if (i-(length-10))%2 == 0 {
				level += 2
			} else {
				level--
			}
		}

		closes[i] = level
	}

	return closes
}

func TestTechnicalProviderBuysOnBullishCrossover(t *testing.T) {
	prices := pricesource.NewMemoryPriceSource()
	end := time.Date(2024, 3, 29, 0, 0, 0, 0, time.UTC)

	// Flat at 100, then a choppy climb: short MA ends above long MA with a
	// moderate RSI.
	seedCloses(prices, "AAPL", end, flatThenZigzagUp(40, 100))

	provider := NewTechnicalProvider(prices, nil)

	d, err := provider.GetDecision(context.Background(), end, "AAPL",
		types.PortfolioSnapshot{Cash: 100000})
	require.NoError(t, err)

	assert.Equal(t, types.ActionBuy, d.Action)
	assert.Greater(t, d.Quantity, 0.0)
	require.NoError(t, d.Validate())

	signals := provider.LastSignals()
	require.Contains(t, signals, "AAPL")
	assert.Equal(t, types.SignalBullish, signals["AAPL"]["ma_crossover"].Signal)
}

func TestTechnicalProviderSellsOnBearishCrossover(t *testing.T) {
	prices := pricesource.NewMemoryPriceSource()
	end := time.Date(2024, 3, 29, 0, 0, 0, 0, time.UTC)

	seedCloses(prices, "AAPL", end, flatThenTrend(40, 100, -1))

	provider := NewTechnicalProvider(prices, nil)

	d, err := provider.GetDecision(context.Background(), end, "AAPL",
		types.PortfolioSnapshot{Cash: 100000})
	require.NoError(t, err)

	assert.Equal(t, types.ActionSell, d.Action)

	signals := provider.LastSignals()
	assert.Equal(t, types.SignalBearish, signals["AAPL"]["ma_crossover"].Signal)
}

func TestTechnicalProviderHoldsWithoutHistory(t *testing.T) {
	prices := pricesource.NewMemoryPriceSource()
	end := time.Date(2024, 3, 29, 0, 0, 0, 0, time.UTC)

	prices.SetClose("AAPL", end, 100)

	provider := NewTechnicalProvider(prices, nil)

	d, err := provider.GetDecision(context.Background(), end, "AAPL",
		types.PortfolioSnapshot{Cash: 100000})
	require.NoError(t, err)

	assert.Equal(t, types.ActionHold, d.Action)
	assert.Equal(t, "insufficient price history", d.Reasoning)
}

func TestTechnicalProviderHoldsWithoutSpendableCash(t *testing.T) {
	prices := pricesource.NewMemoryPriceSource()
	end := time.Date(2024, 3, 29, 0, 0, 0, 0, time.UTC)

	seedCloses(prices, "AAPL", end, flatThenZigzagUp(40, 100))

	provider := NewTechnicalProvider(prices, nil)

	d, err := provider.GetDecision(context.Background(), end, "AAPL",
		types.PortfolioSnapshot{Cash: 100, MarginUsed: 100})
	require.NoError(t, err)

	assert.Equal(t, types.ActionHold, d.Action)
}

func TestRelativeStrength(t *testing.T) {
	// Monotonic rise has no losses.
	rising := []float64{100, 101, 102, 103, 104, 105, 106, 107, 108, 109, 110, 111, 112, 113, 114}
	assert.Equal(t, 100.0, relativeStrength(rising, 14))

	// Monotonic fall has no gains.
	falling := []float64{114, 113, 112, 111, 110, 109, 108, 107, 106, 105, 104, 103, 102, 101, 100}
	assert.Equal(t, 0.0, relativeStrength(falling, 14))

	// Flat series is neutral, as is one too short to score.
	flat := []float64{100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100}
	assert.Equal(t, 50.0, relativeStrength(flat, 14))
	assert.Equal(t, 50.0, relativeStrength([]float64{100, 101}, 14))
}
