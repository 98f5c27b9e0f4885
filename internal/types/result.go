package types

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BacktestResult is the single immutable value produced at the end of a run.
type BacktestResult struct {
	// RunID is the unique identifier for this backtest run.
	RunID string `yaml:"run_id" json:"run_id"`
	// PortfolioValues is the ordered daily snapshot history.
	PortfolioValues []PortfolioSnapshot `yaml:"portfolio_values" json:"portfolio_values"`
	// TotalReturn is the fractional return over the whole run.
	TotalReturn float64 `yaml:"total_return" json:"total_return"`
	// SharpeRatio is the annualized mean/stddev of daily returns.
	SharpeRatio float64 `yaml:"sharpe_ratio" json:"sharpe_ratio"`
	// MaxDrawdown is the worst decline from a running peak, non-positive.
	MaxDrawdown float64 `yaml:"max_drawdown" json:"max_drawdown"`
	// WinRate is the fraction of positive daily returns.
	WinRate float64 `yaml:"win_rate" json:"win_rate"`
	// Volatility is the annualized standard deviation of daily returns.
	Volatility float64 `yaml:"volatility" json:"volatility"`
	// ValueAtRisk is the 95% one-day value at risk over daily returns,
	// expressed as a positive fraction.
	ValueAtRisk float64 `yaml:"value_at_risk" json:"value_at_risk"`
	// FinalCash and FinalMarginUsed summarize the ledger at run end.
	FinalCash       float64 `yaml:"final_cash" json:"final_cash"`
	FinalMarginUsed float64 `yaml:"final_margin_used" json:"final_margin_used"`
	// FinalPositions is the open exposure per ticker at run end.
	FinalPositions map[string]Position `yaml:"final_positions" json:"final_positions"`
	// RealizedGains is the cumulative realized profit/loss per ticker.
	RealizedGains map[string]RealizedGains `yaml:"realized_gains" json:"realized_gains"`
	// AnalystSignals maps ticker -> analyst -> last-seen signal.
	AnalystSignals map[string]map[string]AnalystSignal `yaml:"analyst_signals" json:"analyst_signals"`
}

// WriteBacktestResult writes the result to the given path as YAML.
func WriteBacktestResult(path string, result BacktestResult) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal backtest result to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write backtest result to file: %w", err)
	}

	return nil
}
