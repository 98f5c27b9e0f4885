package decision

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/hedgesim/internal/logger"
	"github.com/quantfold/hedgesim/internal/types"
)

// Fallback wraps a provider with its failure contract: a provider error
// becomes a hold decision with the failure reason attached. The simulation
// driver never retries on a provider's behalf; any retry policy belongs to
// the wrapped provider itself.
type Fallback struct {
	inner Provider
	log   *logger.Logger
}

// NewFallback wraps the given provider. The logger may be nil.
func NewFallback(inner Provider, log *logger.Logger) *Fallback {
	return &Fallback{
		inner: inner,
		log:   log,
	}
}

// GetDecision implements Provider. It never returns an error.
func (f *Fallback) GetDecision(ctx context.Context, date time.Time, ticker string, snapshot types.PortfolioSnapshot) (types.TradingDecision, error) {
	d, err := f.inner.GetDecision(ctx, date, ticker, snapshot)
	if err != nil {
		if f.log != nil {
			f.log.Warn("Decision provider failed, holding",
				zap.String("ticker", ticker),
				zap.Time("date", date),
				zap.Error(err),
			)
		}

		return types.Hold(fmt.Sprintf("decision provider failed: %v", err)), nil
	}

	return d, nil
}

// LastSignals implements SignalProvider when the wrapped provider does.
func (f *Fallback) LastSignals() map[string]map[string]types.AnalystSignal {
	if sp, ok := f.inner.(SignalProvider); ok {
		return sp.LastSignals()
	}

	return nil
}
