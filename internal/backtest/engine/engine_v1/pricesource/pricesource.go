// Package pricesource defines the market data boundary of the simulation:
// a source of daily close prices per ticker. A missing close is not an
// error; it triggers the driver's carry-forward policy.
package pricesource

import (
	"time"

	"github.com/moznion/go-optional"
)

type PriceSource interface {
	// Initialize loads price data from the given path. Sources that are
	// populated programmatically may ignore the path.
	Initialize(path string) error
	// GetClose returns the close price for the ticker on the given date, or
	// None when no bar exists for that day.
	GetClose(ticker string, date time.Time) (optional.Option[float64], error)
	// Close releases any resources held by the source.
	Close() error
}
