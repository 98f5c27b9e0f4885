package engine

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v2"

	"github.com/quantfold/hedgesim/internal/backtest/engine"
	"github.com/quantfold/hedgesim/internal/backtest/engine/engine_v1/pricesource"
	"github.com/quantfold/hedgesim/internal/decision"
	"github.com/quantfold/hedgesim/internal/logger"
	"github.com/quantfold/hedgesim/internal/types"
	"github.com/quantfold/hedgesim/pkg/errors"
)

// BacktestEngineV1 is the day-by-day simulation driver: it replays trading
// decisions over the configured date range against a portfolio ledger,
// prices the ledger at each day's closes, and derives the run's performance
// statistics from the snapshot history.
//
// Days are processed strictly in order; within a day, price and decision
// fetches run concurrently per ticker but every ledger mutation is applied
// by the driver alone, in deterministic ticker order, before the day's
// snapshot is taken.
type BacktestEngineV1 struct {
	config        BacktestEngineV1Config
	log           *logger.Logger
	provider      decision.Provider
	prices        pricesource.PriceSource
	resultsFolder string
	executor      *DecisionExecutor
}

// NewBacktestEngineV1 creates an uninitialized driver.
func NewBacktestEngineV1() engine.Engine {
	return &BacktestEngineV1{
		config:        EmptyConfig(),
		log:           nil,
		provider:      nil,
		prices:        nil,
		resultsFolder: "",
		executor:      nil,
	}
}

// Initialize implements engine.Engine.
func (b *BacktestEngineV1) Initialize(config string) error {
	err := yaml.Unmarshal([]byte(config), &b.config)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse engine config", err)
	}

	var loggerError error

	b.log, loggerError = logger.NewLogger()
	if loggerError != nil {
		return loggerError
	}

	if err := b.config.Validate(); err != nil {
		return err
	}

	b.executor = NewDecisionExecutor(b.log)

	b.log.Debug("Backtest engine initialized",
		zap.Float64("initial_capital", b.config.InitialCapital),
		zap.Float64("margin_requirement", b.config.MarginRequirement),
		zap.Strings("tickers", b.config.Tickers),
	)

	return nil
}

// SetDecisionProvider implements engine.Engine.
func (b *BacktestEngineV1) SetDecisionProvider(provider decision.Provider) error {
	b.provider = provider

	return nil
}

// SetPriceSource implements engine.Engine.
func (b *BacktestEngineV1) SetPriceSource(source pricesource.PriceSource) error {
	b.prices = source

	return nil
}

// SetResultsFolder implements engine.Engine.
func (b *BacktestEngineV1) SetResultsFolder(folder string) error {
	b.resultsFolder = folder

	return nil
}

// GetConfigSchema implements engine.Engine.
func (b *BacktestEngineV1) GetConfigSchema() (string, error) {
	return b.config.GenerateSchemaJSON()
}

// tickerOutcome holds one ticker's fetched close and decision for a day.
type tickerOutcome struct {
	price    optional.Option[float64]
	decision types.TradingDecision
}

// Run implements engine.Engine.
func (b *BacktestEngineV1) Run(ctx context.Context, callbacks engine.LifecycleCallbacks) (types.BacktestResult, error) {
	result, err := b.run(ctx, callbacks)

	if callbacks.OnRunEnd != nil {
		(*callbacks.OnRunEnd)(err)
	}

	return result, err
}

func (b *BacktestEngineV1) run(ctx context.Context, callbacks engine.LifecycleCallbacks) (types.BacktestResult, error) {
	if err := b.preRunCheck(); err != nil {
		return types.BacktestResult{}, err
	}

	runID := uuid.New().String()
	ledger := NewLedger(b.config.InitialCapital, b.config.MarginRequirement, b.config.Tickers)
	tickers := ledger.Tickers()
	days := tradingDays(b.config.StartTime.Unwrap(), b.config.EndTime.Unwrap())

	journal, err := NewExecutionJournal(b.log)
	if err != nil {
		return types.BacktestResult{}, err
	}
	defer journal.Close()

	if err := journal.Initialize(); err != nil {
		return types.BacktestResult{}, err
	}

	if callbacks.OnRunStart != nil {
		if err := (*callbacks.OnRunStart)(runID, len(days)); err != nil {
			return types.BacktestResult{}, errors.Wrap(errors.ErrCodeBacktestRunFailed, "run start callback failed", err)
		}
	}

	b.log.Info("Starting backtest run",
		zap.String("run_id", runID),
		zap.Int("days", len(days)),
		zap.Strings("tickers", tickers),
	)

	history := make([]types.PortfolioSnapshot, 0, len(days))
	lastClose := make(map[string]float64, len(tickers))

	for dayIndex, day := range days {
		// No cancellation mid-day: a day's decisions either all apply or the
		// run aborts before the day starts.
		if err := ctx.Err(); err != nil {
			return types.BacktestResult{}, errors.Wrap(errors.ErrCodeBacktestRunFailed, "run cancelled", err)
		}

		// Decisions observe the portfolio priced at the last known closes.
		preSnapshot := ledger.Snapshot(day, lastClose)

		outcomes := make([]tickerOutcome, len(tickers))

		g, gctx := errgroup.WithContext(ctx)

		for i, ticker := range tickers {
			g.Go(func() error {
				price, err := b.prices.GetClose(ticker, day)
				if err != nil {
					return err
				}

				outcomes[i].price = price
				if price.IsNone() {
					return nil
				}

				d, err := b.provider.GetDecision(gctx, day, ticker, preSnapshot)
				if err != nil {
					return errors.Wrapf(errors.ErrCodeDecisionProviderFailed, err,
						"decision provider failed for %s on %s", ticker, day.Format("2006-01-02"))
				}

				outcomes[i].decision = d

				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return types.BacktestResult{}, err
		}

		// Single-writer phase: apply all of the day's decisions in
		// deterministic ticker order.
		for i, ticker := range tickers {
			outcome := outcomes[i]
			if outcome.price.IsNone() {
				b.log.Debug("No close price, carrying position forward",
					zap.String("ticker", ticker),
					zap.Time("date", day),
				)

				continue
			}

			price := outcome.price.Unwrap()

			record, err := b.executor.Execute(ledger, ticker, outcome.decision, price, day)
			if err != nil {
				return types.BacktestResult{}, err
			}

			if err := journal.RecordExecution(record); err != nil {
				return types.BacktestResult{}, err
			}

			lastClose[ticker] = price
		}

		snapshot := ledger.Snapshot(day, lastClose)
		history = append(history, snapshot)

		if err := journal.RecordSnapshot(snapshot); err != nil {
			return types.BacktestResult{}, err
		}

		if callbacks.OnProcessDay != nil {
			if err := (*callbacks.OnProcessDay)(dayIndex+1, len(days), snapshot); err != nil {
				return types.BacktestResult{}, errors.Wrap(errors.ErrCodeBacktestRunFailed, "process day callback failed", err)
			}
		}
	}

	var signals map[string]map[string]types.AnalystSignal
	if sp, ok := b.provider.(decision.SignalProvider); ok {
		signals = sp.LastSignals()
	}

	result := AssembleResult(runID, history, ledger, signals)

	if b.resultsFolder != "" {
		if err := b.writeResults(result, journal); err != nil {
			return types.BacktestResult{}, err
		}
	}

	b.log.Info("Backtest run complete",
		zap.String("run_id", runID),
		zap.Float64("total_return", result.TotalReturn),
		zap.Float64("sharpe_ratio", result.SharpeRatio),
		zap.Float64("max_drawdown", result.MaxDrawdown),
		zap.Float64("win_rate", result.WinRate),
	)

	return result, nil
}

func (b *BacktestEngineV1) writeResults(result types.BacktestResult, journal *ExecutionJournal) error {
	// A rerun replaces the previous results folder wholesale.
	if _, err := os.Stat(b.resultsFolder); err == nil {
		os.RemoveAll(b.resultsFolder)
	}

	if err := os.MkdirAll(b.resultsFolder, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeBacktestRunFailed, "failed to create results folder", err)
	}

	if err := types.WriteBacktestResult(filepath.Join(b.resultsFolder, "result.yaml"), result); err != nil {
		return errors.Wrap(errors.ErrCodeBacktestRunFailed, "failed to write result", err)
	}

	stats, err := journal.AllStats()
	if err != nil {
		return err
	}

	if err := WriteTickerStats(filepath.Join(b.resultsFolder, "stats.yaml"), stats); err != nil {
		return errors.Wrap(errors.ErrCodeBacktestRunFailed, "failed to write stats", err)
	}

	return journal.Write(b.resultsFolder)
}

func (b *BacktestEngineV1) preRunCheck() error {
	if err := b.config.Validate(); err != nil {
		return err
	}

	if b.provider == nil {
		b.log.Error("No decision provider set")

		return errors.New(errors.ErrCodeBacktestNoDecisionProvider, "no decision provider set")
	}

	if b.prices == nil {
		b.log.Error("No price source set")

		return errors.New(errors.ErrCodeBacktestNoPriceSource, "no price source set")
	}

	return nil
}

// tradingDays returns the weekdays in [start, end], one per calendar day.
// Exchange holidays surface as days with no prices and are carried forward.
func tradingDays(start, end time.Time) []time.Time {
	var days []time.Time

	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	for !day.After(last) {
		if day.Weekday() != time.Saturday && day.Weekday() != time.Sunday {
			days = append(days, day)
		}

		day = day.AddDate(0, 0, 1)
	}

	return days
}
