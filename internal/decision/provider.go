// Package decision defines the decision provider boundary: the external
// collaborator that produces one trading decision per ticker per simulated
// day. Providers must be callable independently per (date, ticker) and must
// not mutate shared state.
package decision

import (
	"context"
	"time"

	"github.com/quantfold/hedgesim/internal/types"
)

// Provider produces one trading decision for a ticker on a given day. The
// snapshot is the portfolio state the decision may depend on; it is priced at
// the last known closes before the day's decisions are applied.
type Provider interface {
	GetDecision(ctx context.Context, date time.Time, ticker string, snapshot types.PortfolioSnapshot) (types.TradingDecision, error)
}

// SignalProvider is an optional extension for providers backed by analyst
// agents: the last-seen signals are carried into the backtest result.
type SignalProvider interface {
	Provider
	// LastSignals returns ticker -> analyst -> last-seen signal.
	LastSignals() map[string]map[string]types.AnalystSignal
}

// HoldProvider always holds. Useful as a baseline and in tests.
type HoldProvider struct{}

// NewHoldProvider creates a provider that holds every ticker every day.
func NewHoldProvider() *HoldProvider {
	return &HoldProvider{}
}

// GetDecision implements Provider.
func (p *HoldProvider) GetDecision(ctx context.Context, date time.Time, ticker string, snapshot types.PortfolioSnapshot) (types.TradingDecision, error) {
	return types.Hold(""), nil
}
