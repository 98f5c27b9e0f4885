package engine

import (
	"math"
	"sort"

	"github.com/quantfold/hedgesim/internal/types"
)

// tradingDaysPerYear annualizes daily-return statistics.
const tradingDaysPerYear = 252

// Metrics are reductions over the ordered snapshot history. Each metric is
// an independent pure function of the sequence; degenerate inputs (fewer
// than two snapshots, zero variance) yield 0, never NaN and never an error.

// DailyReturns computes the day-over-day fractional returns of the snapshot
// history. A history of n snapshots yields n-1 returns.
func DailyReturns(snapshots []types.PortfolioSnapshot) []float64 {
	if len(snapshots) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(snapshots)-1)
	for i := 1; i < len(snapshots); i++ {
		prev := snapshots[i-1].TotalValue
		if prev == 0 {
			returns = append(returns, 0)

			continue
		}

		returns = append(returns, snapshots[i].TotalValue/prev-1)
	}

	return returns
}

// TotalReturn is the fractional return from the first snapshot to the last.
func TotalReturn(snapshots []types.PortfolioSnapshot) float64 {
	if len(snapshots) < 2 || snapshots[0].TotalValue == 0 {
		return 0
	}

	return snapshots[len(snapshots)-1].TotalValue/snapshots[0].TotalValue - 1
}

// SharpeRatio is mean(daily returns) / stddev(daily returns), annualized by
// sqrt(252). Zero when the return series is shorter than two or has no
// variance.
func SharpeRatio(snapshots []types.PortfolioSnapshot) float64 {
	returns := DailyReturns(snapshots)
	if len(returns) < 2 {
		return 0
	}

	sd := stddev(returns)
	if sd == 0 {
		return 0
	}

	return mean(returns) / sd * math.Sqrt(tradingDaysPerYear)
}

// Volatility is the annualized standard deviation of daily returns.
func Volatility(snapshots []types.PortfolioSnapshot) float64 {
	returns := DailyReturns(snapshots)
	if len(returns) < 2 {
		return 0
	}

	return stddev(returns) * math.Sqrt(tradingDaysPerYear)
}

// MaxDrawdown is the worst decline from a running peak, as a non-positive
// fraction. Zero for histories with fewer than two snapshots.
func MaxDrawdown(snapshots []types.PortfolioSnapshot) float64 {
	if len(snapshots) < 2 {
		return 0
	}

	worst := 0.0
	peak := snapshots[0].TotalValue

	for _, s := range snapshots {
		if s.TotalValue > peak {
			peak = s.TotalValue
		}

		if peak == 0 {
			continue
		}

		drawdown := s.TotalValue/peak - 1
		if drawdown < worst {
			worst = drawdown
		}
	}

	return worst
}

// WinRate is the fraction of strictly positive daily returns. Zero for
// histories with fewer than two snapshots.
func WinRate(snapshots []types.PortfolioSnapshot) float64 {
	returns := DailyReturns(snapshots)
	if len(returns) == 0 {
		return 0
	}

	wins := 0
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}

	return float64(wins) / float64(len(returns))
}

// ValueAtRisk is the one-day value at risk of the daily return series at the
// given confidence level (e.g. 0.95), expressed as a positive fraction. Zero
// when the series is shorter than two.
func ValueAtRisk(snapshots []types.PortfolioSnapshot, confidence float64) float64 {
	returns := DailyReturns(snapshots)
	if len(returns) < 2 || confidence <= 0 || confidence >= 1 {
		return 0
	}

	v := -percentile(returns, (1-confidence)*100)
	if v < 0 {
		return 0
	}

	return v
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

// stddev is the sample standard deviation (n-1 denominator).
func stddev(values []float64) float64 {
	m := mean(values)

	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}

	return math.Sqrt(sum / float64(len(values)-1))
}

// percentile computes the p-th percentile (0-100) with linear interpolation
// between closest ranks.
func percentile(values []float64, p float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))

	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)

	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
