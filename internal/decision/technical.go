package decision

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/hedgesim/internal/backtest/engine/engine_v1/pricesource"
	"github.com/quantfold/hedgesim/internal/logger"
	"github.com/quantfold/hedgesim/internal/types"
)

const (
	defaultShortWindow = 10
	defaultLongWindow  = 30
	defaultRSIPeriod   = 14
	rsiLowerThreshold  = 30
	rsiUpperThreshold  = 70
	// positionFraction is the share of spendable cash committed per buy.
	positionFraction = 0.25
	// exitQuantity is an intentionally oversized sell request; the executor
	// clamps it to the open position.
	exitQuantity = 1e12
)

// TechnicalProvider derives decisions from the price history itself: a
// moving-average crossover sized by spendable cash, gated by RSI extremes.
// It reads trailing closes from the same price source that drives the
// simulation, never ahead of the decision date.
type TechnicalProvider struct {
	prices      pricesource.PriceSource
	log         *logger.Logger
	shortWindow int
	longWindow  int
	rsiPeriod   int

	mu      sync.Mutex
	signals map[string]map[string]types.AnalystSignal
}

// NewTechnicalProvider creates a provider with default windows. The logger
// may be nil.
func NewTechnicalProvider(prices pricesource.PriceSource, log *logger.Logger) *TechnicalProvider {
	return &TechnicalProvider{
		prices:      prices,
		log:         log,
		shortWindow: defaultShortWindow,
		longWindow:  defaultLongWindow,
		rsiPeriod:   defaultRSIPeriod,
		signals:     make(map[string]map[string]types.AnalystSignal),
	}
}

// GetDecision implements Provider. Safe for concurrent use across tickers.
func (p *TechnicalProvider) GetDecision(ctx context.Context, date time.Time, ticker string, snapshot types.PortfolioSnapshot) (types.TradingDecision, error) {
	closes, err := p.trailingCloses(ticker, date, p.longWindow)
	if err != nil {
		return types.TradingDecision{}, err
	}

	// Not enough history to form an opinion yet.
	if len(closes) < p.longWindow {
		return types.Hold("insufficient price history"), nil
	}

	shortMA := movingAverage(closes[len(closes)-p.shortWindow:])
	longMA := movingAverage(closes)
	rsi := relativeStrength(closes, p.rsiPeriod)

	p.record(ticker, shortMA, longMA, rsi)

	price := closes[len(closes)-1]

	switch {
	case shortMA > longMA && rsi < rsiUpperThreshold:
		spendable := snapshot.Cash - snapshot.MarginUsed
		quantity := math.Floor(spendable * positionFraction / price)

		if quantity <= 0 {
			return types.Hold("bullish crossover but no spendable cash"), nil
		}

		return types.TradingDecision{
			Action:    types.ActionBuy,
			Quantity:  quantity,
			Reasoning: fmt.Sprintf("short MA %.2f above long MA %.2f, RSI %.1f", shortMA, longMA, rsi),
		}, nil
	case shortMA < longMA || rsi > rsiUpperThreshold:
		return types.TradingDecision{
			Action:    types.ActionSell,
			Quantity:  exitQuantity,
			Reasoning: fmt.Sprintf("short MA %.2f below long MA %.2f, RSI %.1f", shortMA, longMA, rsi),
		}, nil
	}

	return types.Hold("no crossover"), nil
}

// LastSignals implements SignalProvider.
func (p *TechnicalProvider) LastSignals() map[string]map[string]types.AnalystSignal {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]map[string]types.AnalystSignal, len(p.signals))
	for ticker, byAnalyst := range p.signals {
		copied := make(map[string]types.AnalystSignal, len(byAnalyst))
		for analyst, signal := range byAnalyst {
			copied[analyst] = signal
		}

		out[ticker] = copied
	}

	return out
}

// trailingCloses collects up to window closes ending at date, walking back
// over weekdays. It gives up after twice the window in calendar weekdays so
// long price gaps do not scan unbounded history.
func (p *TechnicalProvider) trailingCloses(ticker string, date time.Time, window int) ([]float64, error) {
	closes := make([]float64, 0, window)
	day := date

	for scanned := 0; len(closes) < window && scanned < window*2; day = day.AddDate(0, 0, -1) {
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}

		scanned++

		price, err := p.prices.GetClose(ticker, day)
		if err != nil {
			return nil, err
		}

		if price.IsSome() {
			closes = append(closes, price.Unwrap())
		}
	}

	// Reverse into chronological order.
	for i, j := 0, len(closes)-1; i < j; i, j = i+1, j-1 {
		closes[i], closes[j] = closes[j], closes[i]
	}

	return closes, nil
}

func (p *TechnicalProvider) record(ticker string, shortMA, longMA, rsi float64) {
	stance := types.SignalNeutral
	if shortMA > longMA {
		stance = types.SignalBullish
	} else if shortMA < longMA {
		stance = types.SignalBearish
	}

	rsiStance := types.SignalNeutral
	if rsi < rsiLowerThreshold {
		rsiStance = types.SignalBullish
	} else if rsi > rsiUpperThreshold {
		rsiStance = types.SignalBearish
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.signals[ticker] = map[string]types.AnalystSignal{
		"ma_crossover": {
			Signal:     stance,
			Confidence: crossoverConfidence(shortMA, longMA),
			Reasoning:  fmt.Sprintf("short MA %.2f vs long MA %.2f", shortMA, longMA),
		},
		"rsi": {
			Signal:     rsiStance,
			Confidence: math.Abs(rsi - 50),
			Reasoning:  fmt.Sprintf("RSI %.1f", rsi),
		},
	}

	if p.log != nil {
		p.log.Debug("Technical signals updated",
			zap.String("ticker", ticker),
			zap.Float64("short_ma", shortMA),
			zap.Float64("long_ma", longMA),
			zap.Float64("rsi", rsi),
		)
	}
}

// crossoverConfidence maps the spread between the averages to a 0-100 score.
func crossoverConfidence(shortMA, longMA float64) float64 {
	if longMA == 0 {
		return 0
	}

	spread := math.Abs(shortMA-longMA) / longMA * 1000
	if spread > 100 {
		return 100
	}

	return spread
}

func movingAverage(closes []float64) float64 {
	if len(closes) == 0 {
		return 0
	}

	sum := 0.0
	for _, c := range closes {
		sum += c
	}

	return sum / float64(len(closes))
}

// relativeStrength computes RSI over the last period moves, Wilder-style
// with a simple average. A series with no losses reads 100, no gains 0.
func relativeStrength(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 50
	}

	recent := closes[len(closes)-period-1:]

	gains, losses := 0.0, 0.0

	for i := 1; i < len(recent); i++ {
		move := recent[i] - recent[i-1]
		if move > 0 {
			gains += move
		} else {
			losses -= move
		}
	}

	if losses == 0 {
		if gains == 0 {
			return 50
		}

		return 100
	}

	rs := gains / losses

	return 100 - 100/(1+rs)
}
