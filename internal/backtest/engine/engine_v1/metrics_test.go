package engine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantfold/hedgesim/internal/types"
)

func snapshotsFromValues(values ...float64) []types.PortfolioSnapshot {
	snapshots := make([]types.PortfolioSnapshot, 0, len(values))
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	for _, v := range values {
		snapshots = append(snapshots, types.PortfolioSnapshot{Date: day, TotalValue: v})
		day = day.AddDate(0, 0, 1)
	}

	return snapshots
}

func TestDailyReturns(t *testing.T) {
	returns := DailyReturns(snapshotsFromValues(100, 110, 99))
	assert.Len(t, returns, 2)
	assert.InDelta(t, 0.10, returns[0], 1e-9)
	assert.InDelta(t, -0.10, returns[1], 1e-9)

	assert.Nil(t, DailyReturns(snapshotsFromValues(100)))
	assert.Nil(t, DailyReturns(nil))
}

func TestTotalReturn(t *testing.T) {
	assert.InDelta(t, 0.20, TotalReturn(snapshotsFromValues(100, 90, 120)), 1e-9)
	assert.InDelta(t, -0.50, TotalReturn(snapshotsFromValues(100, 50)), 1e-9)
	assert.Equal(t, 0.0, TotalReturn(snapshotsFromValues(100)))
	assert.Equal(t, 0.0, TotalReturn(snapshotsFromValues(0, 50)))
}

func TestMaxDrawdown(t *testing.T) {
	assert.InDelta(t, -0.50, MaxDrawdown(snapshotsFromValues(100, 50)), 1e-9)

	// Peak moves to 120; the worst decline is 90/120 - 1.
	assert.InDelta(t, -0.25, MaxDrawdown(snapshotsFromValues(100, 120, 90, 110)), 1e-9)

	// Monotonically rising history never draws down.
	assert.Equal(t, 0.0, MaxDrawdown(snapshotsFromValues(100, 110, 120)))
	assert.Equal(t, 0.0, MaxDrawdown(snapshotsFromValues(100)))
}

func TestWinRate(t *testing.T) {
	// Returns: +10%, -10%, +21.2%: two wins out of three.
	assert.InDelta(t, 2.0/3.0, WinRate(snapshotsFromValues(100, 110, 99, 120)), 1e-9)
	assert.Equal(t, 0.0, WinRate(snapshotsFromValues(100, 90)))
	assert.Equal(t, 0.0, WinRate(snapshotsFromValues(100)))
}

func TestSharpeRatio(t *testing.T) {
	returns := []float64{0.10, -0.10, 0.05}
	snapshots := snapshotsFromValues(100, 110, 99, 103.95)

	m := (returns[0] + returns[1] + returns[2]) / 3
	sd := math.Sqrt(((returns[0]-m)*(returns[0]-m) +
		(returns[1]-m)*(returns[1]-m) +
		(returns[2]-m)*(returns[2]-m)) / 2)
	want := m / sd * math.Sqrt(252)

	assert.InDelta(t, want, SharpeRatio(snapshots), 1e-9)

	// Flat history has zero variance and a zero ratio, never NaN.
	assert.Equal(t, 0.0, SharpeRatio(snapshotsFromValues(100, 100, 100)))
	assert.Equal(t, 0.0, SharpeRatio(snapshotsFromValues(100, 110)))
	assert.Equal(t, 0.0, SharpeRatio(snapshotsFromValues(100)))
}

func TestVolatility(t *testing.T) {
	v := Volatility(snapshotsFromValues(100, 110, 99, 103.95))
	assert.Greater(t, v, 0.0)
	assert.False(t, math.IsNaN(v))

	assert.Equal(t, 0.0, Volatility(snapshotsFromValues(100, 100, 100)))
	assert.Equal(t, 0.0, Volatility(snapshotsFromValues(100, 110)))
}

func TestValueAtRisk(t *testing.T) {
	// The 5th percentile of the return series sits near its worst loss.
	v := ValueAtRisk(snapshotsFromValues(100, 110, 99, 120, 108), 0.95)
	assert.Greater(t, v, 0.0)
	assert.LessOrEqual(t, v, 0.11)

	// All-positive returns clamp to zero risk.
	assert.Equal(t, 0.0, ValueAtRisk(snapshotsFromValues(100, 110, 120, 130), 0.95))

	assert.Equal(t, 0.0, ValueAtRisk(snapshotsFromValues(100, 90), 0.95))
	assert.Equal(t, 0.0, ValueAtRisk(snapshotsFromValues(100, 90, 80), 0))
	assert.Equal(t, 0.0, ValueAtRisk(snapshotsFromValues(100, 90, 80), 1))
}

func TestAssembleResult(t *testing.T) {
	ledger := NewLedger(100000, 0.5, []string{"AAPL"})
	history := snapshotsFromValues(100000, 101000, 99500)

	signals := map[string]map[string]types.AnalystSignal{
		"AAPL": {"sentiment": {Signal: types.SignalBullish, Confidence: 80}},
	}

	result := AssembleResult("run-1", history, ledger, signals)

	assert.Equal(t, "run-1", result.RunID)
	assert.Len(t, result.PortfolioValues, 3)
	assert.InDelta(t, -0.005, result.TotalReturn, 1e-9)
	assert.Equal(t, 100000.0, result.FinalCash)
	assert.Equal(t, 0.0, result.FinalMarginUsed)
	assert.Contains(t, result.FinalPositions, "AAPL")
	assert.Contains(t, result.RealizedGains, "AAPL")
	assert.Equal(t, signals, result.AnalystSignals)
}
