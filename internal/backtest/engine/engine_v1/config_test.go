package engine

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/quantfold/hedgesim/pkg/errors"
)

func TestConfigUnmarshalYAML(t *testing.T) {
	raw := `
initial_capital: 100000
margin_requirement: 0.5
tickers:
  - AAPL
  - MSFT
start_time: 2024-01-02T00:00:00Z
end_time: 2024-03-29T00:00:00Z
`

	var config BacktestEngineV1Config
	require.NoError(t, yaml.Unmarshal([]byte(raw), &config))

	assert.Equal(t, 100000.0, config.InitialCapital)
	assert.Equal(t, 0.5, config.MarginRequirement)
	assert.Equal(t, []string{"AAPL", "MSFT"}, config.Tickers)
	require.True(t, config.StartTime.IsSome())
	require.True(t, config.EndTime.IsSome())
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), config.StartTime.Unwrap().UTC())
	assert.Equal(t, time.Date(2024, 3, 29, 0, 0, 0, 0, time.UTC), config.EndTime.Unwrap().UTC())
}

func TestConfigUnmarshalYAMLMissingTimes(t *testing.T) {
	raw := `
initial_capital: 100000
tickers: [AAPL]
`

	var config BacktestEngineV1Config
	require.NoError(t, yaml.Unmarshal([]byte(raw), &config))

	assert.True(t, config.StartTime.IsNone())
	assert.True(t, config.EndTime.IsNone())
}

func TestConfigValidate(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 29, 0, 0, 0, 0, time.UTC)

	valid := TestConfig(start, end, []string{"AAPL"})
	require.NoError(t, valid.Validate())

	tests := []struct {
		name     string
		mutate   func(*BacktestEngineV1Config)
		wantCode errors.ErrorCode
	}{
		{
			name:     "zero capital",
			mutate:   func(c *BacktestEngineV1Config) { c.InitialCapital = 0 },
			wantCode: errors.ErrCodeInvalidConfiguration,
		},
		{
			name:     "negative margin requirement",
			mutate:   func(c *BacktestEngineV1Config) { c.MarginRequirement = -0.5 },
			wantCode: errors.ErrCodeInvalidConfiguration,
		},
		{
			name:     "no tickers",
			mutate:   func(c *BacktestEngineV1Config) { c.Tickers = nil },
			wantCode: errors.ErrCodeBacktestNoTickers,
		},
		{
			name:     "missing start time",
			mutate:   func(c *BacktestEngineV1Config) { c.StartTime = optional.None[time.Time]() },
			wantCode: errors.ErrCodeInvalidDateRange,
		},
		{
			name:     "end before start",
			mutate:   func(c *BacktestEngineV1Config) { c.StartTime, c.EndTime = c.EndTime, c.StartTime },
			wantCode: errors.ErrCodeInvalidDateRange,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			config := TestConfig(start, end, []string{"AAPL"})
			tc.mutate(&config)

			err := config.Validate()
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tc.wantCode))
		})
	}
}

func TestConfigGenerateSchema(t *testing.T) {
	config := EmptyConfig()

	schemaJSON, err := config.GenerateSchemaJSON()
	require.NoError(t, err)

	assert.Contains(t, schemaJSON, "initial_capital")
	assert.Contains(t, schemaJSON, "margin_requirement")
	assert.Contains(t, schemaJSON, "tickers")
	assert.Contains(t, schemaJSON, "date-time")
}
