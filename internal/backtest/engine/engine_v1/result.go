package engine

import (
	"github.com/quantfold/hedgesim/internal/types"
)

// varConfidence is the confidence level for the value-at-risk figure.
const varConfidence = 0.95

// AssembleResult packages the completed snapshot history, the final ledger
// and the last-seen analyst signals into the run's single immutable result.
// Called once at finalize; every metric is derived from the snapshot
// sequence alone.
func AssembleResult(runID string, history []types.PortfolioSnapshot, ledger *Ledger, signals map[string]map[string]types.AnalystSignal) types.BacktestResult {
	return types.BacktestResult{
		RunID:           runID,
		PortfolioValues: history,
		TotalReturn:     TotalReturn(history),
		SharpeRatio:     SharpeRatio(history),
		MaxDrawdown:     MaxDrawdown(history),
		WinRate:         WinRate(history),
		Volatility:      Volatility(history),
		ValueAtRisk:     ValueAtRisk(history, varConfidence),
		FinalCash:       ledger.Cash(),
		FinalMarginUsed: ledger.MarginUsed(),
		FinalPositions:  ledger.Positions(),
		RealizedGains:   ledger.AllRealizedGains(),
		AnalystSignals:  signals,
	}
}
