package confluence

import (
	"testing"

	"github.com/rs/zerolog"

	"signal-engine/internal/indicators"
	"signal-engine/internal/market"
	"signal-engine/internal/structure"
)

func defaultWeights() Weights {
	return Weights{Momentum: 0.25, Trend: 0.25, Volatility: 0.15, Volume: 0.15, Structure: 0.20}
}

func testScorer(t *testing.T, deadZone float64) *Scorer {
	t.Helper()
	s, err := NewScorer(defaultWeights(), deadZone, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewScorer: %v", err)
	}
	return s
}

// fullBullishResults covers every category with maximum bullish
// contributions.
func fullBullishResults() []indicators.Result {
	return []indicators.Result{
		&indicators.RSIResult{Period: 14, Value: 100},                                        // momentum +1
		&indicators.MACDResult{MACD: 2, Signal: 1, Histogram: 1, LastClose: 100},             // momentum +1
		&indicators.EMAResult{Period: 50, Value: 100, LastClose: 110},                        // trend +1
		&indicators.ADXResult{Period: 14, ADX: 60, PlusDI: 40, MinusDI: 10},                  // trend +1
		&indicators.BollingerResult{Period: 20, Upper: 110, Middle: 100, Lower: 90, LastClose: 110}, // volatility +1
		&indicators.VWAPResult{VWAP: 100, Upper1: 101, Lower1: 99, LastClose: 102},           // volume +1
	}
}

// TestScoreFullBullish checks the weighted sum with every category at
// full strength.
func TestScoreFullBullish(t *testing.T) {
	s := testScorer(t, 0.05)
	analysis := &structure.Analysis{Contribution: 1}

	score := s.Score(market.TF4h, fullBullishResults(), analysis, false)

	if diff := score.RawScore - 1; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Expected raw score 1.0 with all categories at +1, got %f", score.RawScore)
	}
	if score.Direction != market.DirectionLong {
		t.Errorf("Expected LONG, got %s", score.Direction)
	}
	if score.Strength != StrengthStrong {
		t.Errorf("Expected strong, got %s", score.Strength)
	}
	if score.Degraded {
		t.Error("Complete inputs should not be degraded")
	}
	if len(score.Missing) != 0 {
		t.Errorf("Expected no missing categories, got %v", score.Missing)
	}
}

// TestScoreDeadZone checks that small readings collapse to NEUTRAL
// while readings just past the band take a side.
func TestScoreDeadZone(t *testing.T) {
	s := testScorer(t, 0.05)

	// Only momentum populated: raw = 0.25 * contribution.
	weak := []indicators.Result{&indicators.RSIResult{Period: 14, Value: 55}} // contribution 0.1, raw 0.025
	score := s.Score(market.TF1h, weak, nil, false)
	if score.Direction != market.DirectionNeutral {
		t.Errorf("Expected NEUTRAL inside dead zone, got %s (raw=%f)", score.Direction, score.RawScore)
	}

	bearish := []indicators.Result{&indicators.RSIResult{Period: 14, Value: 20}} // contribution -0.6, raw -0.15
	score = s.Score(market.TF1h, bearish, nil, false)
	if score.Direction != market.DirectionShort {
		t.Errorf("Expected SHORT past dead zone, got %s (raw=%f)", score.Direction, score.RawScore)
	}
}

// TestScoreMissingCategoriesDegrade checks that absent inputs zero out
// their weight and flag the score instead of aborting.
func TestScoreMissingCategoriesDegrade(t *testing.T) {
	s := testScorer(t, 0.05)

	// Momentum only; trend, volatility, volume and structure all absent.
	results := []indicators.Result{&indicators.RSIResult{Period: 14, Value: 100}}
	score := s.Score(market.TF1h, results, nil, false)

	if !score.Degraded {
		t.Error("Expected degraded flag with missing categories")
	}
	if len(score.Missing) != 4 {
		t.Errorf("Expected 4 missing categories, got %v", score.Missing)
	}
	if diff := score.RawScore - 0.25; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Expected raw score 0.25 from momentum weight alone, got %f", score.RawScore)
	}
}

// TestScoreSeriesGapsDegrade checks that candle gaps flag the score
// even with complete indicator coverage.
func TestScoreSeriesGapsDegrade(t *testing.T) {
	s := testScorer(t, 0.05)
	analysis := &structure.Analysis{Contribution: 1}

	score := s.Score(market.TF4h, fullBullishResults(), analysis, true)
	if !score.Degraded {
		t.Error("Expected degraded flag for gapped series")
	}
	if len(score.Missing) != 0 {
		t.Errorf("Expected no missing categories, got %v", score.Missing)
	}
}

// TestScoreATRDoesNotVote checks that ATR results are excluded from the
// directional categories.
func TestScoreATRDoesNotVote(t *testing.T) {
	s := testScorer(t, 0.0)

	results := []indicators.Result{
		&indicators.ATRResult{Period: 14, Value: 5},
	}
	score := s.Score(market.TF1h, results, nil, false)
	if score.RawScore != 0 {
		t.Errorf("Expected zero raw score from ATR alone, got %f", score.RawScore)
	}
	// ATR must not register the volatility category as populated.
	found := false
	for _, cat := range score.Missing {
		if cat == CategoryVolatility {
			found = true
		}
	}
	if !found {
		t.Error("Expected volatility category reported missing when only ATR is present")
	}
}

// TestStrengthLabels checks the magnitude buckets.
func TestStrengthLabels(t *testing.T) {
	cases := []struct {
		raw  float64
		want Strength
	}{
		{0.0, StrengthWeak},
		{0.24, StrengthWeak},
		{0.25, StrengthModerate},
		{-0.4, StrengthModerate},
		{0.5, StrengthStrong},
		{-0.9, StrengthStrong},
	}
	for _, c := range cases {
		if got := strengthLabel(c.raw); got != c.want {
			t.Errorf("strengthLabel(%f): expected %s, got %s", c.raw, c.want, got)
		}
	}
}

// TestWeightsValidate checks the sum-to-one constraint.
func TestWeightsValidate(t *testing.T) {
	if err := defaultWeights().Validate(); err != nil {
		t.Errorf("Default weights should validate: %v", err)
	}

	bad := Weights{Momentum: 0.5, Trend: 0.5, Volatility: 0.5}
	if err := bad.Validate(); err == nil {
		t.Error("Expected error for weights summing to 1.5")
	}
}

// TestNewScorerRejectsDeadZone checks the dead-zone bounds.
func TestNewScorerRejectsDeadZone(t *testing.T) {
	if _, err := NewScorer(defaultWeights(), -0.1, zerolog.Nop()); err == nil {
		t.Error("Expected error for negative dead zone")
	}
	if _, err := NewScorer(defaultWeights(), 1.0, zerolog.Nop()); err == nil {
		t.Error("Expected error for dead zone of 1")
	}
}
