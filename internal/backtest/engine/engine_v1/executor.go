package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfold/hedgesim/internal/logger"
	"github.com/quantfold/hedgesim/internal/types"
	"github.com/quantfold/hedgesim/pkg/errors"
)

// DecisionExecutor applies one trading decision to the ledger. All five
// actions are total functions: under-funded or over-sized requests degrade
// to the maximal feasible fill, down to zero, and a zero fill is a silent
// success recorded on the execution record. Only non-positive prices,
// unknown tickers and malformed decisions are errors, rejected before any
// state mutation.
//
// Cash and cost-basis arithmetic runs on decimals to keep the accounting
// exact across long chains of fills.
type DecisionExecutor struct {
	log *logger.Logger
}

// NewDecisionExecutor creates an executor. The logger may be nil.
func NewDecisionExecutor(log *logger.Logger) *DecisionExecutor {
	return &DecisionExecutor{log: log}
}

// Execute applies the decision for the ticker at the given close price and
// returns the resulting execution record. The decision either applies in
// full (as one ledger delta) or not at all.
func (e *DecisionExecutor) Execute(ledger *Ledger, ticker string, decision types.TradingDecision, price float64, date time.Time) (types.ExecutionRecord, error) {
	if err := decision.Validate(); err != nil {
		return types.ExecutionRecord{}, err
	}

	if price <= 0 {
		return types.ExecutionRecord{}, errors.Newf(errors.ErrCodeInvalidPrice,
			"non-positive price %f for %s", price, ticker)
	}

	pos, ok := ledger.Position(ticker)
	if !ok {
		return types.ExecutionRecord{}, errors.Newf(errors.ErrCodeUnknownTicker,
			"ticker %s is not part of this run", ticker)
	}

	var (
		delta LedgerDelta
		fill  decimal.Decimal
	)

	priceDec := decimal.NewFromFloat(price)
	requested := decimal.NewFromFloat(decision.Quantity)
	requestedQty := decision.Quantity

	switch decision.Action {
	case types.ActionBuy:
		fill, delta = e.buy(ledger, pos, requested, priceDec)
	case types.ActionSell:
		fill, delta = e.sell(pos, requested, priceDec)
	case types.ActionShort:
		fill, delta = e.short(ledger, pos, requested, priceDec)
	case types.ActionCover:
		fill, delta = e.cover(ledger, pos, requested, priceDec)
	case types.ActionHold:
		// A hold requests no trade regardless of its quantity field.
		fill = decimal.Zero
		requestedQty = 0
	}

	if !fill.IsZero() {
		if err := ledger.Apply(ticker, delta); err != nil {
			return types.ExecutionRecord{}, err
		}
	}

	filled, _ := fill.Float64()

	record := types.ExecutionRecord{
		ID:                uuid.New().String(),
		Date:              date,
		Ticker:            ticker,
		Action:            decision.Action,
		RequestedQuantity: requestedQty,
		FilledQuantity:    filled,
		Price:             price,
		CashDelta:         delta.CashDelta,
		MarginDelta:       delta.ShortMarginDelta,
		RealizedGain:      delta.RealizedLongGain + delta.RealizedShortGain,
		Reasoning:         decision.Reasoning,
	}

	if e.log != nil && record.Starved() {
		e.log.Debug("Decision fill clamped",
			zap.String("ticker", ticker),
			zap.String("action", string(decision.Action)),
			zap.Float64("requested", record.RequestedQuantity),
			zap.Float64("filled", record.FilledQuantity),
		)
	}

	return record, nil
}

// buy fills up to the whole-share quantity the spendable cash affords.
// Margin pledged to shorts is earmarked and not spendable.
func (e *DecisionExecutor) buy(ledger *Ledger, pos types.Position, requested, price decimal.Decimal) (decimal.Decimal, LedgerDelta) {
	spendable := decimal.NewFromFloat(ledger.Cash()).Sub(decimal.NewFromFloat(ledger.MarginUsed()))
	if spendable.IsNegative() {
		spendable = decimal.Zero
	}

	affordable := spendable.Div(price).Floor()

	fill := decimal.Min(requested, affordable)
	if fill.IsNegative() || fill.IsZero() {
		return decimal.Zero, LedgerDelta{}
	}

	oldQty := decimal.NewFromFloat(pos.LongQty)
	oldBasis := decimal.NewFromFloat(pos.LongCostBasis)
	newQty := oldQty.Add(fill)

	// Volume-weighted average entry price; lots are merged.
	newBasis := oldQty.Mul(oldBasis).Add(fill.Mul(price)).Div(newQty)

	cost := fill.Mul(price)

	fillF, _ := fill.Float64()
	costF, _ := cost.Float64()
	basisF, _ := newBasis.Float64()

	return fill, LedgerDelta{
		CashDelta:     -costF,
		LongQtyDelta:  fillF,
		LongCostBasis: optional.Some(basisF),
	}
}

// sell clamps to the open long quantity and realizes the gain against the
// weighted-average cost basis. Selling out the whole side resets the basis.
func (e *DecisionExecutor) sell(pos types.Position, requested, price decimal.Decimal) (decimal.Decimal, LedgerDelta) {
	longQty := decimal.NewFromFloat(pos.LongQty)

	fill := decimal.Min(requested, longQty)
	if fill.IsNegative() || fill.IsZero() {
		return decimal.Zero, LedgerDelta{}
	}

	basis := decimal.NewFromFloat(pos.LongCostBasis)
	proceeds := fill.Mul(price)
	gain := fill.Mul(price.Sub(basis))

	fillF, _ := fill.Float64()
	proceedsF, _ := proceeds.Float64()
	gainF, _ := gain.Float64()

	delta := LedgerDelta{
		CashDelta:        proceedsF,
		LongQtyDelta:     -fillF,
		RealizedLongGain: gainF,
	}

	if fill.Equal(longQty) {
		delta.LongCostBasis = optional.Some(0.0)
	}

	return fill, delta
}

// short fills up to the margin headroom of the spendable cash and pledges
// margin at the required ratio. The pledge is earmarked, not withdrawn.
func (e *DecisionExecutor) short(ledger *Ledger, pos types.Position, requested, price decimal.Decimal) (decimal.Decimal, LedgerDelta) {
	mr := decimal.NewFromFloat(ledger.MarginRequirement())

	fill := requested

	if mr.IsPositive() {
		spendable := decimal.NewFromFloat(ledger.Cash()).Sub(decimal.NewFromFloat(ledger.MarginUsed()))
		if spendable.IsNegative() {
			spendable = decimal.Zero
		}

		headroom := spendable.Div(price.Mul(mr))
		fill = decimal.Min(requested, headroom)
	}

	if fill.IsNegative() || fill.IsZero() {
		return decimal.Zero, LedgerDelta{}
	}

	oldQty := decimal.NewFromFloat(pos.ShortQty)
	oldBasis := decimal.NewFromFloat(pos.ShortCostBasis)
	newQty := oldQty.Add(fill)
	newBasis := oldQty.Mul(oldBasis).Add(fill.Mul(price)).Div(newQty)

	margin := fill.Mul(price).Mul(mr)

	fillF, _ := fill.Float64()
	marginF, _ := margin.Float64()
	basisF, _ := newBasis.Float64()

	return fill, LedgerDelta{
		ShortQtyDelta:    fillF,
		ShortMarginDelta: marginF,
		ShortCostBasis:   optional.Some(basisF),
	}
}

// cover clamps to the open short quantity, realizes the gain against the
// short cost basis into cash, and releases the pledged margin at the prior
// rate, proportionally to the covered fraction. A losing cover draws the
// loss from cash, so the fill is also clamped to the loss cash can absorb.
func (e *DecisionExecutor) cover(ledger *Ledger, pos types.Position, requested, price decimal.Decimal) (decimal.Decimal, LedgerDelta) {
	shortQty := decimal.NewFromFloat(pos.ShortQty)
	basis := decimal.NewFromFloat(pos.ShortCostBasis)

	fill := decimal.Min(requested, shortQty)

	lossPerUnit := price.Sub(basis)
	if lossPerUnit.IsPositive() {
		capacity := decimal.NewFromFloat(ledger.Cash()).Div(lossPerUnit)
		fill = decimal.Min(fill, capacity)
	}

	if fill.IsNegative() || fill.IsZero() {
		return decimal.Zero, LedgerDelta{}
	}

	margin := decimal.NewFromFloat(pos.ShortMarginUsed)

	gain := fill.Mul(basis.Sub(price))
	release := margin.Mul(fill).Div(shortQty)

	fillF, _ := fill.Float64()
	gainF, _ := gain.Float64()
	releaseF, _ := release.Float64()

	delta := LedgerDelta{
		CashDelta:         gainF,
		ShortQtyDelta:     -fillF,
		ShortMarginDelta:  -releaseF,
		RealizedShortGain: gainF,
	}

	if fill.Equal(shortQty) {
		delta.ShortCostBasis = optional.Some(0.0)
		marginF, _ := margin.Float64()
		delta.ShortMarginDelta = -marginF
	}

	return fill, delta
}
