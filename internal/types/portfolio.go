package types

import "time"

// Position is one ticker's open exposure. Long and short sides are tracked
// independently; cost bases are volume-weighted average entry prices, not
// per-lot lists (lots are merged, no FIFO/LIFO tracking).
type Position struct {
	// LongQty is the open long quantity, never negative.
	LongQty float64 `yaml:"long_qty" json:"long_qty"`
	// ShortQty is the open short quantity, never negative.
	ShortQty float64 `yaml:"short_qty" json:"short_qty"`
	// LongCostBasis is the weighted-average entry price of the long side.
	// Meaningful only while LongQty > 0; reset to 0 when the side closes.
	LongCostBasis float64 `yaml:"long_cost_basis" json:"long_cost_basis"`
	// ShortCostBasis is the weighted-average entry price of the short side.
	ShortCostBasis float64 `yaml:"short_cost_basis" json:"short_cost_basis"`
	// ShortMarginUsed is the margin pledged against the short side.
	ShortMarginUsed float64 `yaml:"short_margin_used" json:"short_margin_used"`
}

// MarketValue prices the position at the given close. Longs are marked to
// market; shorts contribute their unrealized gain over the cost basis.
func (p Position) MarketValue(price float64) float64 {
	return p.LongQty*price + p.ShortQty*(p.ShortCostBasis-price)
}

// RealizedGains tracks cumulative realized profit/loss per side for one
// ticker. Values can decrease on losing trades; they reset only when the
// ledger is created.
type RealizedGains struct {
	Long  float64 `yaml:"long" json:"long"`
	Short float64 `yaml:"short" json:"short"`
}

// PortfolioSnapshot is one day's valuation of the ledger. Snapshots are
// immutable once appended; the ordered sequence is the sole input to the
// metrics engine.
type PortfolioSnapshot struct {
	Date       time.Time `yaml:"date" json:"date"`
	TotalValue float64   `yaml:"total_value" json:"total_value"`
	Cash       float64   `yaml:"cash" json:"cash"`
	MarginUsed float64   `yaml:"margin_used" json:"margin_used"`
	// PerTickerValue is each ticker's market value at the day's close, or at
	// the last known close for tickers with no price that day.
	PerTickerValue map[string]float64 `yaml:"per_ticker_value" json:"per_ticker_value"`
}
