package engine

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/quantfold/hedgesim/internal/logger"
	"github.com/quantfold/hedgesim/internal/types"
	"github.com/quantfold/hedgesim/pkg/errors"
)

// ExecutionJournal records every execution and daily snapshot of a run in an
// in-memory DuckDB database. The journal is observational: ledger truth
// never derives from it. It backs per-ticker trade statistics and the
// Parquet export of the run.
type ExecutionJournal struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// TickerStats summarizes a single ticker's executions over a run.
type TickerStats struct {
	Ticker string `yaml:"ticker"`
	// Fills counts executions with a positive filled quantity.
	Fills int `yaml:"fills"`
	// StarvedFills counts executions clamped below their requested quantity.
	StarvedFills int `yaml:"starved_fills"`
	// RealizedPnL is the sum of realized gains over all fills.
	RealizedPnL float64 `yaml:"realized_pnl"`
	// MaxGain and MaxLoss are the best and worst single-fill realized gains.
	MaxGain float64 `yaml:"max_gain"`
	MaxLoss float64 `yaml:"max_loss"`
	// WinRate is the fraction of closing fills with positive realized gain.
	WinRate float64 `yaml:"win_rate"`
}

// NewExecutionJournal opens an in-memory DuckDB journal.
func NewExecutionJournal(log *logger.Logger) (*ExecutionJournal, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeJournalFailed, "failed to open journal database", err)
	}

	return &ExecutionJournal{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// Initialize creates the journal tables.
func (j *ExecutionJournal) Initialize() error {
	_, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS executions (
			id TEXT PRIMARY KEY,
			date TIMESTAMP,
			ticker TEXT,
			action TEXT,
			requested_quantity DOUBLE,
			filled_quantity DOUBLE,
			price DOUBLE,
			cash_delta DOUBLE,
			margin_delta DOUBLE,
			realized_gain DOUBLE,
			reasoning TEXT
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalFailed, "failed to create executions table", err)
	}

	_, err = j.db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			date TIMESTAMP,
			total_value DOUBLE,
			cash DOUBLE,
			margin_used DOUBLE
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalFailed, "failed to create snapshots table", err)
	}

	return nil
}

// RecordExecution appends one execution record.
func (j *ExecutionJournal) RecordExecution(record types.ExecutionRecord) error {
	query := j.sq.
		Insert("executions").
		Columns(
			"id", "date", "ticker", "action", "requested_quantity",
			"filled_quantity", "price", "cash_delta", "margin_delta",
			"realized_gain", "reasoning",
		).
		Values(
			record.ID, record.Date, record.Ticker, string(record.Action),
			record.RequestedQuantity, record.FilledQuantity, record.Price,
			record.CashDelta, record.MarginDelta, record.RealizedGain,
			record.Reasoning,
		).
		RunWith(j.db)

	if _, err := query.Exec(); err != nil {
		return errors.Wrap(errors.ErrCodeJournalFailed, "failed to record execution", err)
	}

	return nil
}

// RecordSnapshot appends one daily snapshot row.
func (j *ExecutionJournal) RecordSnapshot(snapshot types.PortfolioSnapshot) error {
	query := j.sq.
		Insert("snapshots").
		Columns("date", "total_value", "cash", "margin_used").
		Values(snapshot.Date, snapshot.TotalValue, snapshot.Cash, snapshot.MarginUsed).
		RunWith(j.db)

	if _, err := query.Exec(); err != nil {
		return errors.Wrap(errors.ErrCodeJournalFailed, "failed to record snapshot", err)
	}

	return nil
}

// TickerStats computes the execution statistics for one ticker.
func (j *ExecutionJournal) TickerStats(ticker string) (TickerStats, error) {
	query := `
		WITH fills AS (
			SELECT filled_quantity, requested_quantity, realized_gain, action
			FROM executions
			WHERE ticker = ? AND filled_quantity > 0
		),
		closing AS (
			SELECT realized_gain FROM fills WHERE action IN ('sell', 'cover')
		)
		SELECT
			COUNT(*) AS fills,
			SUM(CASE WHEN filled_quantity < requested_quantity THEN 1 ELSE 0 END) AS starved,
			COALESCE(SUM(realized_gain), 0) AS realized_pnl,
			COALESCE((SELECT MAX(realized_gain) FROM closing), 0) AS max_gain,
			COALESCE((SELECT MIN(realized_gain) FROM closing), 0) AS max_loss,
			COALESCE((SELECT CAST(SUM(CASE WHEN realized_gain > 0 THEN 1 ELSE 0 END) AS DOUBLE) / NULLIF(COUNT(*), 0) FROM closing), 0) AS win_rate
		FROM fills
	`

	stats := TickerStats{Ticker: ticker}

	err := j.db.QueryRow(query, ticker).Scan(
		&stats.Fills,
		&stats.StarvedFills,
		&stats.RealizedPnL,
		&stats.MaxGain,
		&stats.MaxLoss,
		&stats.WinRate,
	)
	if err != nil {
		return TickerStats{}, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to compute stats for %s", ticker)
	}

	return stats, nil
}

// AllStats computes stats for every ticker that has at least one execution.
func (j *ExecutionJournal) AllStats() ([]TickerStats, error) {
	query := j.sq.
		Select("DISTINCT ticker").
		From("executions").
		OrderBy("ticker").
		RunWith(j.db)

	rows, err := query.Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to list journal tickers", err)
	}
	defer rows.Close()

	var tickers []string

	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan ticker", err)
		}

		tickers = append(tickers, ticker)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating tickers", err)
	}

	stats := make([]TickerStats, 0, len(tickers))

	for _, ticker := range tickers {
		s, err := j.TickerStats(ticker)
		if err != nil {
			return nil, err
		}

		stats = append(stats, s)
	}

	return stats, nil
}

// Write exports the journal to Parquet files in the given directory.
func (j *ExecutionJournal) Write(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeJournalFailed, "failed to create journal directory", err)
	}

	// Raw SQL: squirrel has no COPY support
	executionsPath := filepath.Join(path, "executions.parquet")
	if _, err := j.db.Exec(fmt.Sprintf(`COPY executions TO '%s' (FORMAT PARQUET)`, executionsPath)); err != nil {
		return errors.Wrap(errors.ErrCodeJournalFailed, "failed to export executions to Parquet", err)
	}

	snapshotsPath := filepath.Join(path, "snapshots.parquet")
	if _, err := j.db.Exec(fmt.Sprintf(`COPY snapshots TO '%s' (FORMAT PARQUET)`, snapshotsPath)); err != nil {
		return errors.Wrap(errors.ErrCodeJournalFailed, "failed to export snapshots to Parquet", err)
	}

	j.logger.Info("Exported execution journal",
		zap.String("executions", executionsPath),
		zap.String("snapshots", snapshotsPath),
	)

	return nil
}

// WriteTickerStats writes per-ticker stats to the given path as YAML.
func WriteTickerStats(path string, stats []TickerStats) error {
	data, err := yaml.Marshal(stats)
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalFailed, "failed to marshal ticker stats", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeJournalFailed, "failed to write ticker stats", err)
	}

	return nil
}

// Cleanup drops and recreates the journal tables.
func (j *ExecutionJournal) Cleanup() error {
	_, err := j.db.Exec(`
		DROP TABLE IF EXISTS executions;
		DROP TABLE IF EXISTS snapshots;
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeJournalFailed, "failed to drop journal tables", err)
	}

	return j.Initialize()
}

// Close releases the journal database.
func (j *ExecutionJournal) Close() error {
	return j.db.Close()
}
