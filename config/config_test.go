package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"signal-engine/internal/market"
)

// TestDefaultConfig checks that the zero-config path yields a fully
// populated, valid configuration.
func TestDefaultConfig(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}

	if c.Logging.Level != "info" {
		t.Errorf("Expected default log level info, got %s", c.Logging.Level)
	}
	if len(c.Aggregator.Timeframes) != 4 {
		t.Errorf("Expected 4 default timeframes, got %v", c.Aggregator.Timeframes)
	}
	if c.Indicators.RSIPeriod != 14 {
		t.Errorf("Expected default RSI period 14, got %d", c.Indicators.RSIPeriod)
	}
	if c.Confluence.DeadZone != 0.05 {
		t.Errorf("Expected default dead zone 0.05, got %f", c.Confluence.DeadZone)
	}
	if err := c.Confluence.Weights.Validate(); err != nil {
		t.Errorf("Default weights must validate: %v", err)
	}
	if c.MonteCarlo.Paths != 10000 {
		t.Errorf("Expected default 10000 paths, got %d", c.MonteCarlo.Paths)
	}
	if c.Tracker.DefaultTimeout != 72*time.Hour {
		t.Errorf("Expected default timeout 72h, got %s", c.Tracker.DefaultTimeout)
	}
	if c.Aggregator.MaxDegradedFraction != 0.5 {
		t.Errorf("Expected default degraded fraction 0.5, got %f", c.Aggregator.MaxDegradedFraction)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// TestLoadOverridesDefaults checks that file values win and untouched
// fields fall back.
func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
aggregator:
  timeframes: ["1h", "4h"]
  candle_limit: 300
monte_carlo:
  paths: 500
`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Logging.Level != "debug" {
		t.Errorf("Expected debug level, got %s", c.Logging.Level)
	}
	if len(c.Aggregator.Timeframes) != 2 || c.Aggregator.Timeframes[0] != market.TF1h {
		t.Errorf("Expected [1h 4h], got %v", c.Aggregator.Timeframes)
	}
	if c.Aggregator.CandleLimit != 300 {
		t.Errorf("Expected candle limit 300, got %d", c.Aggregator.CandleLimit)
	}
	if c.MonteCarlo.Paths != 500 {
		t.Errorf("Expected 500 paths, got %d", c.MonteCarlo.Paths)
	}
	// Untouched sections still get defaults.
	if c.Indicators.MACDSlow != 26 {
		t.Errorf("Expected default MACD slow 26, got %d", c.Indicators.MACDSlow)
	}
}

// TestLoadRejectsUnknownTimeframe checks timeframe validation.
func TestLoadRejectsUnknownTimeframe(t *testing.T) {
	path := writeConfig(t, `
aggregator:
  timeframes: ["1h", "7m"]
`)
	_, err := Load(path)
	var paramErr *market.InvalidParameterError
	if !errors.As(err, &paramErr) {
		t.Fatalf("Expected InvalidParameterError, got %v", err)
	}
}

// TestLoadRejectsBadLogLevel checks the validator tags fire.
func TestLoadRejectsBadLogLevel(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: verbose
`)
	if _, err := Load(path); err == nil {
		t.Error("Expected error for unsupported log level")
	}
}

// TestLoadRejectsBadWeights checks the sum-to-one constraint applies to
// loaded files.
func TestLoadRejectsBadWeights(t *testing.T) {
	path := writeConfig(t, `
confluence:
  weights:
    momentum: 0.9
    trend: 0.9
    volatility: 0.9
    volume: 0.9
    structure: 0.9
`)
	if _, err := Load(path); err == nil {
		t.Error("Expected error for weights summing to 4.5")
	}
}

// TestLoadMissingFile checks the read error path.
func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

// TestLoadMalformedYAML checks the parse error path.
func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "aggregator: [not a mapping")
	if _, err := Load(path); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}
