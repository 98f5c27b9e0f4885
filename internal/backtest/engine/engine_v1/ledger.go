package engine

import (
	"sort"
	"time"

	"github.com/moznion/go-optional"

	"github.com/quantfold/hedgesim/internal/types"
	"github.com/quantfold/hedgesim/pkg/errors"
)

// quantityEpsilon absorbs float64 noise when checking invariants and
// comparing fills against position boundaries.
const quantityEpsilon = 1e-9

// marginEpsilon is looser: the margin bound multiplies three floats, so its
// rounding noise scales with portfolio size.
const marginEpsilon = 1e-6

// LedgerDelta is the single mutation unit consumed by Ledger.Apply. The
// decision executor computes deltas; the ledger only enforces invariants.
type LedgerDelta struct {
	// CashDelta is the signed cash change.
	CashDelta float64
	// LongQtyDelta and ShortQtyDelta are signed quantity changes.
	LongQtyDelta  float64
	ShortQtyDelta float64
	// LongCostBasis and ShortCostBasis replace the respective weighted-average
	// cost basis when set.
	LongCostBasis  optional.Option[float64]
	ShortCostBasis optional.Option[float64]
	// ShortMarginDelta is the signed change in margin pledged against the
	// ticker's short side.
	ShortMarginDelta float64
	// RealizedLongGain and RealizedShortGain accumulate into the ticker's
	// realized gains. Negative on losing trades.
	RealizedLongGain  float64
	RealizedShortGain float64
}

// Ledger is the mutable portfolio state of one simulation run: cash, margin,
// per-ticker positions and realized gains. It is owned by the simulation
// driver and mutated only through Apply. The ledger carries no business
// logic beyond its invariants.
type Ledger struct {
	cash              float64
	marginUsed        float64
	marginRequirement float64
	positions         map[string]types.Position
	realizedGains     map[string]types.RealizedGains
}

// NewLedger creates the initial portfolio for a run: all cash, zeroed
// positions and realized gains for every requested ticker.
func NewLedger(initialCash float64, marginRequirement float64, tickers []string) *Ledger {
	positions := make(map[string]types.Position, len(tickers))
	gains := make(map[string]types.RealizedGains, len(tickers))

	for _, ticker := range tickers {
		positions[ticker] = types.Position{}
		gains[ticker] = types.RealizedGains{}
	}

	return &Ledger{
		cash:              initialCash,
		marginUsed:        0,
		marginRequirement: marginRequirement,
		positions:         positions,
		realizedGains:     gains,
	}
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 {
	return l.cash
}

// MarginUsed returns the total margin pledged against open shorts.
func (l *Ledger) MarginUsed() float64 {
	return l.marginUsed
}

// MarginRequirement returns the margin ratio required per unit of short
// exposure.
func (l *Ledger) MarginRequirement() float64 {
	return l.marginRequirement
}

// Position returns the ticker's position and whether the ticker is part of
// this run.
func (l *Ledger) Position(ticker string) (types.Position, bool) {
	pos, ok := l.positions[ticker]

	return pos, ok
}

// Positions returns a copy of all positions.
func (l *Ledger) Positions() map[string]types.Position {
	out := make(map[string]types.Position, len(l.positions))
	for ticker, pos := range l.positions {
		out[ticker] = pos
	}

	return out
}

// RealizedGains returns the ticker's cumulative realized gains.
func (l *Ledger) RealizedGains(ticker string) types.RealizedGains {
	return l.realizedGains[ticker]
}

// AllRealizedGains returns a copy of all realized gains.
func (l *Ledger) AllRealizedGains() map[string]types.RealizedGains {
	out := make(map[string]types.RealizedGains, len(l.realizedGains))
	for ticker, g := range l.realizedGains {
		out[ticker] = g
	}

	return out
}

// Tickers returns the run's tickers in deterministic order.
func (l *Ledger) Tickers() []string {
	tickers := make([]string, 0, len(l.positions))
	for ticker := range l.positions {
		tickers = append(tickers, ticker)
	}

	sort.Strings(tickers)

	return tickers
}

// Apply mutates the ledger by the given delta, or rejects it without any
// change when the result would violate an invariant. A rejection is always
// an executor bug, never a recoverable condition.
func (l *Ledger) Apply(ticker string, delta LedgerDelta) error {
	pos, ok := l.positions[ticker]
	if !ok {
		return errors.Newf(errors.ErrCodeLedgerUnknownTicker, "ticker %s is not part of this run", ticker)
	}

	newCash := l.cash + delta.CashDelta
	newLong := pos.LongQty + delta.LongQtyDelta
	newShort := pos.ShortQty + delta.ShortQtyDelta
	newShortMargin := pos.ShortMarginUsed + delta.ShortMarginDelta

	if newCash < -quantityEpsilon {
		return errors.Newf(errors.ErrCodeLedgerNegativeCash, "cash would go negative: %f", newCash)
	}

	if newLong < -quantityEpsilon || newShort < -quantityEpsilon {
		return errors.Newf(errors.ErrCodeLedgerNegativeQuantity,
			"position quantity would go negative for %s: long=%f short=%f", ticker, newLong, newShort)
	}

	if newShortMargin < -quantityEpsilon {
		return errors.Newf(errors.ErrCodeLedgerNegativeMargin,
			"short margin would go negative for %s: %f", ticker, newShortMargin)
	}

	newShortBasis := pos.ShortCostBasis
	if delta.ShortCostBasis.IsSome() {
		newShortBasis = delta.ShortCostBasis.Unwrap()
	}

	// Margin pledged against a short side never exceeds the side's exposure
	// at the required ratio.
	if newShortMargin > newShort*newShortBasis*l.marginRequirement+marginEpsilon {
		return errors.Newf(errors.ErrCodeLedgerMarginMismatch,
			"short margin %f exceeds %f * %f * %f for %s",
			newShortMargin, newShort, newShortBasis, l.marginRequirement, ticker)
	}

	pos.LongQty = clampTiny(newLong)
	pos.ShortQty = clampTiny(newShort)
	pos.ShortMarginUsed = clampTiny(newShortMargin)
	pos.ShortCostBasis = newShortBasis

	if delta.LongCostBasis.IsSome() {
		pos.LongCostBasis = delta.LongCostBasis.Unwrap()
	}

	l.positions[ticker] = pos
	l.cash = clampTiny(newCash)

	gains := l.realizedGains[ticker]
	gains.Long += delta.RealizedLongGain
	gains.Short += delta.RealizedShortGain
	l.realizedGains[ticker] = gains

	// marginUsed is always the sum of per-ticker short margin.
	total := 0.0
	for _, p := range l.positions {
		total += p.ShortMarginUsed
	}

	l.marginUsed = total

	return nil
}

// TotalValue prices the ledger at the given closes: cash plus every
// position's market value. Margin is earmarked cash, never removed from the
// balance, so it does not enter the sum separately.
func (l *Ledger) TotalValue(prices map[string]float64) float64 {
	total := l.cash
	for ticker, pos := range l.positions {
		total += pos.MarketValue(prices[ticker])
	}

	return total
}

// Snapshot values the ledger at the given closes and produces the day's
// immutable snapshot. Tickers missing from prices are valued at zero; the
// driver guarantees a last known close for every ticker with open exposure.
func (l *Ledger) Snapshot(date time.Time, prices map[string]float64) types.PortfolioSnapshot {
	perTicker := make(map[string]float64, len(l.positions))
	total := l.cash

	for ticker, pos := range l.positions {
		mv := pos.MarketValue(prices[ticker])
		perTicker[ticker] = mv
		total += mv
	}

	return types.PortfolioSnapshot{
		Date:           date,
		TotalValue:     total,
		Cash:           l.cash,
		MarginUsed:     l.marginUsed,
		PerTickerValue: perTicker,
	}
}

func clampTiny(v float64) float64 {
	if v < 0 && v > -quantityEpsilon {
		return 0
	}

	return v
}
