package pricesource

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/quantfold/hedgesim/internal/logger"
	"github.com/quantfold/hedgesim/pkg/errors"
)

// DuckDBPriceSource serves daily closes from CSV or Parquet bar files loaded
// into an in-memory DuckDB view. The file must carry at least the columns
// ticker, date and close.
type DuckDBPriceSource struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewDuckDBPriceSource creates a price source backed by an in-memory DuckDB
// instance. Call Initialize with the bar file path before use.
func NewDuckDBPriceSource(log *logger.Logger) (*DuckDBPriceSource, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodePriceSourceUnavailable, "failed to open DuckDB", err)
	}

	return &DuckDBPriceSource{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// Initialize implements PriceSource. It creates a view over the given CSV or
// Parquet file.
func (s *DuckDBPriceSource) Initialize(path string) error {
	s.logger.Debug("Initializing DuckDB price source", zap.String("path", path))

	// Drop the view if a previous Initialize created one
	if _, err := s.db.Exec(`DROP VIEW IF EXISTS daily_bars;`); err != nil {
		return errors.Wrap(errors.ErrCodePriceSourceUnavailable, "failed to drop existing view", err)
	}

	var reader string

	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		reader = "read_parquet"
	case ".csv":
		reader = "read_csv_auto"
	default:
		return errors.Newf(errors.ErrCodeInvalidParameter, "unsupported price data format: %s", filepath.Ext(path))
	}

	// Raw SQL: squirrel has no CREATE VIEW support
	query := fmt.Sprintf(`CREATE VIEW daily_bars AS SELECT * FROM %s('%s');`, reader, path)
	if _, err := s.db.Exec(query); err != nil {
		return errors.Wrapf(errors.ErrCodePriceSourceUnavailable, err, "failed to load price data from %s", path)
	}

	return nil
}

// GetClose implements PriceSource.
func (s *DuckDBPriceSource) GetClose(ticker string, date time.Time) (optional.Option[float64], error) {
	query := s.sq.
		Select("close").
		From("daily_bars").
		Where(squirrel.Eq{"ticker": ticker}).
		Where("CAST(date AS DATE) = CAST(? AS DATE)", date.Format("2006-01-02")).
		Limit(1).
		RunWith(s.db)

	var close float64

	err := query.QueryRow().Scan(&close)
	if err == sql.ErrNoRows {
		return optional.None[float64](), nil
	}

	if err != nil {
		return optional.None[float64](), errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to query close for %s", ticker)
	}

	return optional.Some(close), nil
}

// Close implements PriceSource.
func (s *DuckDBPriceSource) Close() error {
	return s.db.Close()
}
