// Package config loads and validates the engine configuration from
// YAML, applying struct-tag defaults before validation.
package config

import (
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"signal-engine/internal/aggregator"
	"signal-engine/internal/confluence"
	"signal-engine/internal/market"
	"signal-engine/internal/montecarlo"
	"signal-engine/internal/structure"
	"signal-engine/internal/tracker"
)

// LoggingConfig controls zerolog output.
type LoggingConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
	Pretty bool   `yaml:"pretty" default:"false"`
}

// ConfluenceConfig groups the scorer settings.
type ConfluenceConfig struct {
	Weights  confluence.Weights `yaml:"weights"`
	DeadZone float64            `yaml:"dead_zone" default:"0.05" validate:"gte=0,lt=1"`
}

// Config is the full engine configuration.
type Config struct {
	Logging    LoggingConfig                `yaml:"logging"`
	Metrics    bool                         `yaml:"metrics" default:"true"`
	Indicators aggregator.IndicatorSettings `yaml:"indicators"`
	Structure  structure.Config             `yaml:"structure"`
	Confluence ConfluenceConfig             `yaml:"confluence"`
	Aggregator aggregator.Config            `yaml:"aggregator"`
	MonteCarlo montecarlo.Config            `yaml:"monte_carlo"`
	Tracker    tracker.Config               `yaml:"tracker"`
}

var validate = validator.New()

// defaultTimeframes is the multi-timeframe set analyzed when the
// config does not name its own.
var defaultTimeframes = []market.Timeframe{market.TF15m, market.TF1h, market.TF4h, market.TF1d}

// Default returns a fully populated configuration.
func Default() (*Config, error) {
	c := &Config{}
	if err := finish(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads and parses a YAML configuration file, fills defaults and
// validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := &Config{}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := finish(c); err != nil {
		return nil, err
	}
	return c, nil
}

// finish applies defaults to unset fields and validates the whole
// configuration.
func finish(c *Config) error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("apply defaults: %w", err)
	}
	if len(c.Aggregator.Timeframes) == 0 {
		c.Aggregator.Timeframes = append([]market.Timeframe(nil), defaultTimeframes...)
	}
	return c.Validate()
}

// Validate checks the configuration, mapping failures onto the
// invalid-parameter taxonomy.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return &market.InvalidParameterError{Name: "config", Reason: err.Error()}
	}
	for _, tf := range c.Aggregator.Timeframes {
		if !tf.Valid() {
			return &market.InvalidParameterError{Name: "timeframes", Reason: "unknown timeframe key " + string(tf)}
		}
	}
	if err := c.Confluence.Weights.Validate(); err != nil {
		return err
	}
	return nil
}
