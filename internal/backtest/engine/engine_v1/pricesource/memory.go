package pricesource

import (
	"time"

	"github.com/moznion/go-optional"
)

const dateLayout = "2006-01-02"

// MemoryPriceSource holds closes in memory. Used by tests and small
// programmatic runs.
type MemoryPriceSource struct {
	// closes maps ticker -> date (YYYY-MM-DD) -> close price.
	closes map[string]map[string]float64
}

// NewMemoryPriceSource creates an empty in-memory price source.
func NewMemoryPriceSource() *MemoryPriceSource {
	return &MemoryPriceSource{
		closes: make(map[string]map[string]float64),
	}
}

// SetClose records a close price for the ticker on the given date.
func (s *MemoryPriceSource) SetClose(ticker string, date time.Time, price float64) {
	if s.closes[ticker] == nil {
		s.closes[ticker] = make(map[string]float64)
	}

	s.closes[ticker][date.Format(dateLayout)] = price
}

// Initialize implements PriceSource. The in-memory source has nothing to load.
func (s *MemoryPriceSource) Initialize(path string) error {
	return nil
}

// GetClose implements PriceSource.
func (s *MemoryPriceSource) GetClose(ticker string, date time.Time) (optional.Option[float64], error) {
	if byDate, ok := s.closes[ticker]; ok {
		if price, ok := byDate[date.Format(dateLayout)]; ok {
			return optional.Some(price), nil
		}
	}

	return optional.None[float64](), nil
}

// Close implements PriceSource.
func (s *MemoryPriceSource) Close() error {
	return nil
}
