package types

import "time"

// ExecutionRecord describes how a single trading decision was applied to the
// ledger. A zero fill with a positive requested quantity is a valid, silent
// outcome (starvation), not an error.
type ExecutionRecord struct {
	ID     string    `yaml:"id" json:"id"`
	Date   time.Time `yaml:"date" json:"date"`
	Ticker string    `yaml:"ticker" json:"ticker"`
	Action Action    `yaml:"action" json:"action"`
	// RequestedQuantity is the quantity the decision asked for.
	RequestedQuantity float64 `yaml:"requested_quantity" json:"requested_quantity"`
	// FilledQuantity is the quantity actually applied after clamping.
	FilledQuantity float64 `yaml:"filled_quantity" json:"filled_quantity"`
	Price          float64 `yaml:"price" json:"price"`
	// CashDelta is the signed cash change produced by the fill.
	CashDelta float64 `yaml:"cash_delta" json:"cash_delta"`
	// MarginDelta is the signed change in margin pledged against shorts.
	MarginDelta float64 `yaml:"margin_delta" json:"margin_delta"`
	// RealizedGain is the profit/loss locked in by this fill, zero for
	// opening trades and holds.
	RealizedGain float64 `yaml:"realized_gain" json:"realized_gain"`
	Reasoning    string  `yaml:"reasoning" json:"reasoning"`
}

// Starved reports whether the fill was cut short by insufficient cash,
// margin headroom, or position size.
func (r ExecutionRecord) Starved() bool {
	return r.RequestedQuantity > 0 && r.FilledQuantity < r.RequestedQuantity
}
