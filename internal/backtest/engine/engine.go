package engine

import (
	"context"

	"github.com/quantfold/hedgesim/internal/backtest/engine/engine_v1/pricesource"
	"github.com/quantfold/hedgesim/internal/decision"
	"github.com/quantfold/hedgesim/internal/types"
)

// Lifecycle callback types for backtest phases.
// Callbacks with an error return can abort the run by returning an error.

// OnRunStartCallback is called once before the first simulated day.
// runID is a unique identifier generated for this run.
type OnRunStartCallback func(runID string, totalDays int) error

// OnProcessDayCallback is called after each simulated day's snapshot is
// appended to the history.
type OnProcessDayCallback func(current int, total int, snapshot types.PortfolioSnapshot) error

// OnRunEndCallback is called when the run completes (always called via defer).
type OnRunEndCallback func(err error)

// LifecycleCallbacks holds all lifecycle callback functions for the backtest
// engine. All fields are pointers - nil means no callback will be invoked.
type LifecycleCallbacks struct {
	OnRunStart   *OnRunStartCallback
	OnProcessDay *OnProcessDayCallback
	OnRunEnd     *OnRunEndCallback
}

// Engine replays trading decisions over a historical date range against a
// simulated portfolio ledger and produces the run's performance statistics.
type Engine interface {
	// Initialize the engine with the given YAML configuration.
	Initialize(config string) error
	// SetDecisionProvider sets the external decision provider consulted once
	// per ticker per simulated day.
	SetDecisionProvider(provider decision.Provider) error
	// SetPriceSource sets the market data source for daily closes.
	SetPriceSource(source pricesource.PriceSource) error
	// SetResultsFolder sets the output directory for the run's result file
	// and execution journal export. Optional; empty means no files written.
	SetResultsFolder(folder string) error
	// Run executes the simulation and returns the completed result. The
	// context can cancel the run between days; a day's decisions either all
	// apply or the run aborts entirely.
	Run(ctx context.Context, callbacks LifecycleCallbacks) (types.BacktestResult, error)
	// GetConfigSchema returns the JSON schema of the engine configuration.
	GetConfigSchema() (string, error)
}
