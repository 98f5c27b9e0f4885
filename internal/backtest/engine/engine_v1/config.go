package engine

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"

	"github.com/quantfold/hedgesim/pkg/errors"
)

type BacktestEngineV1Config struct {
	InitialCapital    float64                    `yaml:"initial_capital" json:"initial_capital" jsonschema:"title=Initial Capital,description=Starting cash for the simulated portfolio in USD,minimum=0"`
	MarginRequirement float64                    `yaml:"margin_requirement" json:"margin_requirement" jsonschema:"title=Margin Requirement,description=Margin ratio pledged per unit of short exposure,minimum=0"`
	Tickers           []string                   `yaml:"tickers" json:"tickers" jsonschema:"title=Tickers,description=Tickers traded in this run"`
	StartTime         optional.Option[time.Time] `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time,description=First simulated day"`
	EndTime           optional.Option[time.Time] `yaml:"end_time" json:"end_time" jsonschema:"title=End Time,description=Last simulated day"`
}

// UnmarshalYAML implements custom unmarshaling for BacktestEngineV1Config.
func (c *BacktestEngineV1Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type Config struct {
		InitialCapital    float64    `yaml:"initial_capital"`
		MarginRequirement float64    `yaml:"margin_requirement"`
		Tickers           []string   `yaml:"tickers"`
		StartTime         *time.Time `yaml:"start_time"`
		EndTime           *time.Time `yaml:"end_time"`
	}

	var config Config
	if err := unmarshal(&config); err != nil {
		return err
	}

	c.InitialCapital = config.InitialCapital
	c.MarginRequirement = config.MarginRequirement
	c.Tickers = config.Tickers

	if config.StartTime != nil {
		c.StartTime = optional.Some(*config.StartTime)
	}

	if config.EndTime != nil {
		c.EndTime = optional.Some(*config.EndTime)
	}

	return nil
}

// Validate checks the config before a run starts.
func (c *BacktestEngineV1Config) Validate() error {
	if c.InitialCapital <= 0 {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "initial capital must be positive, got %f", c.InitialCapital)
	}

	if c.MarginRequirement < 0 {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "margin requirement must not be negative, got %f", c.MarginRequirement)
	}

	if len(c.Tickers) == 0 {
		return errors.New(errors.ErrCodeBacktestNoTickers, "no tickers configured")
	}

	if c.StartTime.IsNone() || c.EndTime.IsNone() {
		return errors.New(errors.ErrCodeInvalidDateRange, "start_time and end_time are required")
	}

	if c.EndTime.Unwrap().Before(c.StartTime.Unwrap()) {
		return errors.New(errors.ErrCodeInvalidDateRange, "end_time is before start_time")
	}

	return nil
}

// GenerateSchema generates a JSON schema for the BacktestEngineV1Config.
func (c *BacktestEngineV1Config) GenerateSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t.String() == "optional.Option[time.Time]" {
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)

	schema.Title = "backtest-engine-v1-config"
	schema.Description = "Configuration schema for BacktestEngineV1"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema
}

// GenerateSchemaJSON generates a JSON schema string for the BacktestEngineV1Config.
func (c *BacktestEngineV1Config) GenerateSchemaJSON() (string, error) {
	schema := c.GenerateSchema()

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}

// TestConfig returns a config for tests.
func TestConfig(startTime time.Time, endTime time.Time, tickers []string) BacktestEngineV1Config {
	return BacktestEngineV1Config{
		InitialCapital:    100000,
		MarginRequirement: 0.5,
		Tickers:           tickers,
		StartTime:         optional.Some(startTime),
		EndTime:           optional.Some(endTime),
	}
}

// EmptyConfig returns a BacktestEngineV1Config with default values.
func EmptyConfig() BacktestEngineV1Config {
	return BacktestEngineV1Config{
		InitialCapital:    0,
		MarginRequirement: 0,
		Tickers:           nil,
		StartTime:         optional.None[time.Time](),
		EndTime:           optional.None[time.Time](),
	}
}
