package types

import (
	"github.com/go-playground/validator/v10"
	"github.com/quantfold/hedgesim/pkg/errors"
)

// Action is the closed set of per-ticker trading actions a decision provider
// can request for a single simulated day.
type Action string

const (
	ActionBuy   Action = "buy"
	ActionSell  Action = "sell"
	ActionShort Action = "short"
	ActionCover Action = "cover"
	ActionHold  Action = "hold"
)

// TradingDecision is one ticker's decision for one simulated day.
// Quantity is a request, not a guarantee: the executor clamps it to the
// maximal feasible fill.
type TradingDecision struct {
	Action   Action  `yaml:"action" json:"action" validate:"required,oneof=buy sell short cover hold"`
	Quantity float64 `yaml:"quantity" json:"quantity" validate:"gte=0"`
	// Reasoning is free-form text attached by the decision provider.
	Reasoning string `yaml:"reasoning" json:"reasoning"`
}

// Validate validates the TradingDecision struct.
func (d *TradingDecision) Validate() error {
	validate := validator.New()
	if err := validate.Struct(d); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidDecision, "invalid trading decision", err)
	}

	return nil
}

// Hold returns a hold decision with the given reasoning attached. Used by
// providers to honor their failure contract: either a valid decision or a
// well-defined hold with a reason.
func Hold(reasoning string) TradingDecision {
	return TradingDecision{
		Action:    ActionHold,
		Quantity:  0,
		Reasoning: reasoning,
	}
}

// SignalType is the stance an analyst takes on a ticker.
type SignalType string

const (
	SignalBullish SignalType = "bullish"
	SignalBearish SignalType = "bearish"
	SignalNeutral SignalType = "neutral"
)

// AnalystSignal is the last-seen opinion of a single analyst on a ticker,
// carried through to the backtest result for presentation.
type AnalystSignal struct {
	Signal     SignalType `yaml:"signal" json:"signal"`
	Confidence float64    `yaml:"confidence" json:"confidence"`
	Reasoning  string     `yaml:"reasoning" json:"reasoning"`
}
