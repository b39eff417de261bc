// Command analyze-signal runs the signal pipeline once over candle
// files and prints the consolidated signal and its risk assessment as
// JSON. Candle files are named <symbol>_<timeframe>.json and contain
// an ordered array of OHLCV bars.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"signal-engine/config"
	"signal-engine/internal/engine"
	"signal-engine/internal/market"
)

// fileProvider serves candles from JSON files on disk.
type fileProvider struct {
	dir string
}

func (p *fileProvider) Candles(symbol string, tf market.Timeframe, limit int) ([]market.Candle, error) {
	name := fmt.Sprintf("%s_%s.json", strings.ReplaceAll(symbol, "/", "-"), tf)
	b, err := os.ReadFile(filepath.Join(p.dir, name))
	if err != nil {
		return nil, fmt.Errorf("read candles: %w", err)
	}
	var candles []market.Candle
	if err := json.Unmarshal(b, &candles); err != nil {
		return nil, fmt.Errorf("parse candles: %w", err)
	}
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

func main() {
	configPath := flag.String("config", "", "path to YAML config (optional)")
	symbol := flag.String("symbol", "BTC-USDT", "symbol to analyze")
	candleDir := flag.String("candles", ".", "directory holding <symbol>_<timeframe>.json files")
	seed := flag.Int64("seed", 42, "Monte Carlo seed")
	flag.Parse()

	logger := buildLogger()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("configuration rejected")
	}
	logger = logger.Level(parseLevel(cfg.Logging.Level))

	eng, err := engine.FromConfig(cfg, &fileProvider{dir: *candleDir}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("engine assembly failed")
	}

	sig, err := eng.GenerateSignal(*symbol)
	if err != nil {
		logger.Fatal().Err(err).Str("symbol", *symbol).Msg("signal generation failed")
	}

	out := map[string]interface{}{"signal": sig}
	if sig.Direction != market.DirectionNeutral {
		assessment, err := eng.AssessRisk(sig, *seed)
		if err != nil {
			logger.Fatal().Err(err).Msg("risk assessment failed")
		}
		out["risk"] = assessment
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Fatal().Err(err).Msg("encode output")
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default()
	}
	return config.Load(path)
}

func buildLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return l
}
