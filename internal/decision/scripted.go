package decision

import (
	"context"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quantfold/hedgesim/internal/types"
	"github.com/quantfold/hedgesim/pkg/errors"
)

const dateLayout = "2006-01-02"

// ScriptedProvider replays a fixed table of decisions keyed by date and
// ticker. Days or tickers with no entry hold. The CLI uses it to drive runs
// from a YAML script; tests use it to build deterministic scenarios.
type ScriptedProvider struct {
	// decisions maps date (YYYY-MM-DD) -> ticker -> decision.
	decisions map[string]map[string]types.TradingDecision
}

// NewScriptedProvider creates an empty scripted provider.
func NewScriptedProvider() *ScriptedProvider {
	return &ScriptedProvider{
		decisions: make(map[string]map[string]types.TradingDecision),
	}
}

// NewScriptedProviderFromYAML parses a decision script of the form:
//
//	2024-01-02:
//	  AAPL: {action: buy, quantity: 100, reasoning: momentum}
//	  MSFT: {action: hold, quantity: 0}
func NewScriptedProviderFromYAML(data []byte) (*ScriptedProvider, error) {
	var script map[string]map[string]types.TradingDecision
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidParameter, "failed to parse decision script", err)
	}

	for date, byTicker := range script {
		if _, err := time.Parse(dateLayout, date); err != nil {
			return nil, errors.Newf(errors.ErrCodeInvalidParameter, "invalid date key in decision script: %s", date)
		}

		for ticker, d := range byTicker {
			if err := d.Validate(); err != nil {
				return nil, errors.Wrapf(errors.ErrCodeInvalidDecision, err, "invalid scripted decision for %s on %s", ticker, date)
			}
		}
	}

	return &ScriptedProvider{decisions: script}, nil
}

// NewScriptedProviderFromFile reads and parses a decision script file.
func NewScriptedProviderFromFile(path string) (*ScriptedProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidParameter, err, "failed to read decision script %s", path)
	}

	return NewScriptedProviderFromYAML(data)
}

// Set schedules a decision for the given date and ticker.
func (p *ScriptedProvider) Set(date time.Time, ticker string, d types.TradingDecision) {
	key := date.Format(dateLayout)
	if p.decisions[key] == nil {
		p.decisions[key] = make(map[string]types.TradingDecision)
	}

	p.decisions[key][ticker] = d
}

// GetDecision implements Provider.
func (p *ScriptedProvider) GetDecision(ctx context.Context, date time.Time, ticker string, snapshot types.PortfolioSnapshot) (types.TradingDecision, error) {
	if byTicker, ok := p.decisions[date.Format(dateLayout)]; ok {
		if d, ok := byTicker[ticker]; ok {
			return d, nil
		}
	}

	return types.Hold(""), nil
}
