package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/quantfold/hedgesim/internal/backtest/engine"
	enginev1 "github.com/quantfold/hedgesim/internal/backtest/engine/engine_v1"
	"github.com/quantfold/hedgesim/internal/backtest/engine/engine_v1/pricesource"
	"github.com/quantfold/hedgesim/internal/decision"
	"github.com/quantfold/hedgesim/internal/logger"
	"github.com/quantfold/hedgesim/internal/types"
)

// backtestAction wires a decision provider and a DuckDB price source into the
// engine and runs the simulation.
func backtestAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	pricesPath := cmd.String("prices")
	decisionsPath := cmd.String("decisions")
	resultsFolder := cmd.String("results")
	providerFlag := cmd.String("provider")

	config, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	backtester := enginev1.NewBacktestEngineV1()
	if err := backtester.Initialize(string(config)); err != nil {
		return fmt.Errorf("failed to initialize backtest engine: %w", err)
	}

	runLogger, err := logger.NewLogger()
	if err != nil {
		return err
	}

	prices, err := pricesource.NewDuckDBPriceSource(runLogger)
	if err != nil {
		return fmt.Errorf("failed to open price source: %w", err)
	}

	if err := prices.Initialize(pricesPath); err != nil {
		return fmt.Errorf("failed to open price source %s: %w", pricesPath, err)
	}
	defer prices.Close()

	if err := backtester.SetPriceSource(prices); err != nil {
		return err
	}

	var provider decision.Provider

	switch providerFlag {
	case "scripted":
		if decisionsPath == "" {
			return fmt.Errorf("the scripted provider requires --decisions")
		}

		provider, err = decision.NewScriptedProviderFromFile(decisionsPath)
		if err != nil {
			return fmt.Errorf("failed to load decision script %s: %w", decisionsPath, err)
		}
	case "technical":
		provider = decision.NewTechnicalProvider(prices, runLogger)
	default:
		return fmt.Errorf("unknown provider %q (expected scripted or technical)", providerFlag)
	}

	if err := backtester.SetDecisionProvider(decision.NewFallback(provider, runLogger)); err != nil {
		return err
	}

	if err := backtester.SetResultsFolder(resultsFolder); err != nil {
		return err
	}

	var bar *progressbar.ProgressBar

	onStart := engine.OnRunStartCallback(func(runID string, totalDays int) error {
		fmt.Printf("Run %s: %d trading days\n", runID, totalDays)
		bar = progressbar.Default(int64(totalDays))

		return nil
	})
	onDay := engine.OnProcessDayCallback(func(current int, total int, snapshot types.PortfolioSnapshot) error {
		return bar.Add(1)
	})

	result, err := backtester.Run(ctx, engine.LifecycleCallbacks{
		OnRunStart:   &onStart,
		OnProcessDay: &onDay,
	})
	if err != nil {
		return fmt.Errorf("backtest run failed: %w", err)
	}

	fmt.Printf("\nTotal return:  %.2f%%\n", result.TotalReturn*100)
	fmt.Printf("Sharpe ratio:  %.2f\n", result.SharpeRatio)
	fmt.Printf("Max drawdown:  %.2f%%\n", result.MaxDrawdown*100)
	fmt.Printf("Win rate:      %.2f%%\n", result.WinRate*100)
	fmt.Printf("Volatility:    %.2f%%\n", result.Volatility*100)
	fmt.Printf("95%% VaR:       %.2f%%\n", result.ValueAtRisk*100)
	fmt.Printf("Final cash:    %.2f\n", result.FinalCash)
	fmt.Printf("Results folder: %s\n", resultsFolder)

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "backtest",
		Usage: "Replay a trading decision script against historical daily closes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the engine YAML configuration",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "prices",
				Aliases:  []string{"p"},
				Usage:    "Path to the daily bars file (Parquet or CSV)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "decisions",
				Aliases:  []string{"d"},
				Usage:    "Path to the YAML decision script (scripted provider only)",
				Required: false,
			},
			&cli.StringFlag{
				Name:     "provider",
				Usage:    "Decision provider to use (scripted or technical)",
				Value:    "scripted",
				Required: false,
			},
			&cli.StringFlag{
				Name:     "results",
				Aliases:  []string{"r"},
				Usage:    "Output directory for the run's result and journal export",
				Value:    "results",
				Required: false,
			},
		},
		Action: backtestAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
