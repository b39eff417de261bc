package montecarlo

import (
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"signal-engine/internal/aggregator"
	"signal-engine/internal/market"
)

func testEngine(t *testing.T, paths int) *Engine {
	t.Helper()
	e, err := NewEngine(Config{Paths: paths, HorizonSteps: 50, DriftScale: 0.1}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func longSignal() *aggregator.Signal {
	return &aggregator.Signal{
		PredictionID: "test-prediction",
		Symbol:       "BTC-USDT",
		Direction:    market.DirectionLong,
		Confidence:   75,
		EntryPrice:   100,
		StopLoss:     95,
		TakeProfit:   110,
		Volatility:   0.02,
	}
}

func shortSignal() *aggregator.Signal {
	return &aggregator.Signal{
		PredictionID: "test-prediction",
		Symbol:       "BTC-USDT",
		Direction:    market.DirectionShort,
		Confidence:   75,
		EntryPrice:   100,
		StopLoss:     105,
		TakeProfit:   90,
		Volatility:   0.02,
	}
}

// TestAssessDeterministic checks that identical inputs reproduce the
// exact same assessment.
func TestAssessDeterministic(t *testing.T) {
	e := testEngine(t, 2000)

	first, err := e.Assess(longSignal(), 42)
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	second, err := e.Assess(longSignal(), 42)
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}

	if first.ExpectedReturn != second.ExpectedReturn {
		t.Errorf("Expected identical expected return, got %f vs %f",
			first.ExpectedReturn, second.ExpectedReturn)
	}
	if first.VaR95 != second.VaR95 {
		t.Errorf("Expected identical VaR, got %f vs %f", first.VaR95, second.VaR95)
	}
	if first.WinProbability != second.WinProbability {
		t.Errorf("Expected identical win probability, got %f vs %f",
			first.WinProbability, second.WinProbability)
	}
	if first.RiskScore != second.RiskScore {
		t.Errorf("Expected identical risk score, got %f vs %f", first.RiskScore, second.RiskScore)
	}
}

// TestAssessSeedSensitivity checks that a different seed changes the
// draws.
func TestAssessSeedSensitivity(t *testing.T) {
	e := testEngine(t, 2000)

	a, err := e.Assess(longSignal(), 42)
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	b, err := e.Assess(longSignal(), 43)
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if a.ExpectedReturn == b.ExpectedReturn && a.WinProbability == b.WinProbability {
		t.Error("Expected different seeds to produce different outcomes")
	}
}

// TestAssessMetricBounds checks the structural properties of the
// metrics for both directions.
func TestAssessMetricBounds(t *testing.T) {
	e := testEngine(t, 2000)

	for _, sig := range []*aggregator.Signal{longSignal(), shortSignal()} {
		a, err := e.Assess(sig, 42)
		if err != nil {
			t.Fatalf("Assess %s: %v", sig.Direction, err)
		}
		if a.WinProbability < 0 || a.WinProbability > 1 {
			t.Errorf("%s: win probability out of [0,1]: %f", sig.Direction, a.WinProbability)
		}
		if a.MaxDrawdown < 0 || a.MaxDrawdown > 1 {
			t.Errorf("%s: max drawdown out of [0,1]: %f", sig.Direction, a.MaxDrawdown)
		}
		if a.RiskScore < 0 || a.RiskScore > 100 {
			t.Errorf("%s: risk score out of [0,100]: %f", sig.Direction, a.RiskScore)
		}
		if a.ConfidenceInterval[0] > a.ExpectedReturn || a.ConfidenceInterval[1] < a.ExpectedReturn {
			t.Errorf("%s: confidence interval does not bracket the mean", sig.Direction)
		}
		if a.VaR95 > a.ExpectedReturn {
			t.Errorf("%s: 5th percentile above the mean: var=%f mean=%f",
				sig.Direction, a.VaR95, a.ExpectedReturn)
		}
		if math.IsNaN(a.SharpeRatio) || math.IsInf(a.SharpeRatio, 0) {
			t.Errorf("%s: non-finite Sharpe ratio", sig.Direction)
		}
		if a.Paths != 2000 || a.Seed != 42 {
			t.Errorf("%s: assessment must echo paths and seed", sig.Direction)
		}
		if a.PredictionID != sig.PredictionID {
			t.Errorf("%s: assessment must carry the prediction id", sig.Direction)
		}
	}
}

// TestRiskScoreMonotonic checks that worse inputs never lower the score.
func TestRiskScoreMonotonic(t *testing.T) {
	base := riskScore(-0.02, 0.05, 0.6)
	worseTail := riskScore(-0.08, 0.05, 0.6)
	worseDD := riskScore(-0.02, 0.15, 0.6)
	worseWin := riskScore(-0.02, 0.05, 0.3)

	if worseTail <= base {
		t.Errorf("Deeper tail loss must raise the score: %f vs %f", worseTail, base)
	}
	if worseDD <= base {
		t.Errorf("Deeper drawdown must raise the score: %f vs %f", worseDD, base)
	}
	if worseWin <= base {
		t.Errorf("Lower win probability must raise the score: %f vs %f", worseWin, base)
	}
}

// TestRiskLevelBuckets checks the score-to-level mapping edges.
func TestRiskLevelBuckets(t *testing.T) {
	cases := []struct {
		score float64
		want  RiskLevel
	}{
		{0, RiskLow},
		{24.9, RiskLow},
		{25, RiskMedium},
		{49.9, RiskMedium},
		{50, RiskHigh},
		{74.9, RiskHigh},
		{75, RiskExtreme},
		{100, RiskExtreme},
	}
	for _, c := range cases {
		if got := riskLevel(c.score); got != c.want {
			t.Errorf("riskLevel(%f): expected %s, got %s", c.score, c.want, got)
		}
	}
}

// TestValidateSignalRejections covers the malformed-signal cases.
func TestValidateSignalRejections(t *testing.T) {
	e := testEngine(t, 100)

	cases := []struct {
		name string
		sig  *aggregator.Signal
	}{
		{"nil signal", nil},
		{"neutral direction", &aggregator.Signal{
			Direction: market.DirectionNeutral, EntryPrice: 100, Volatility: 0.02,
			StopLoss: 95, TakeProfit: 110,
		}},
		{"zero volatility", &aggregator.Signal{
			Direction: market.DirectionLong, EntryPrice: 100, Volatility: 0,
			StopLoss: 95, TakeProfit: 110,
		}},
		{"long stop above entry", &aggregator.Signal{
			Direction: market.DirectionLong, EntryPrice: 100, Volatility: 0.02,
			StopLoss: 105, TakeProfit: 110,
		}},
		{"long target below entry", &aggregator.Signal{
			Direction: market.DirectionLong, EntryPrice: 100, Volatility: 0.02,
			StopLoss: 95, TakeProfit: 98,
		}},
		{"short stop below entry", &aggregator.Signal{
			Direction: market.DirectionShort, EntryPrice: 100, Volatility: 0.02,
			StopLoss: 95, TakeProfit: 90,
		}},
		{"short target above entry", &aggregator.Signal{
			Direction: market.DirectionShort, EntryPrice: 100, Volatility: 0.02,
			StopLoss: 105, TakeProfit: 102,
		}},
	}

	for _, c := range cases {
		_, err := e.Assess(c.sig, 42)
		var invalidErr *InvalidSignalError
		if !errors.As(err, &invalidErr) {
			t.Errorf("%s: expected InvalidSignalError, got %v", c.name, err)
		}
	}
}

// TestHighConfidenceLiftsWinProbability checks that the confidence-fed
// drift moves outcomes in the trade direction.
func TestHighConfidenceLiftsWinProbability(t *testing.T) {
	e, err := NewEngine(Config{Paths: 3000, HorizonSteps: 100, DriftScale: 2.0}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	confident := longSignal()
	confident.Confidence = 95
	doubtful := longSignal()
	doubtful.Confidence = 5

	high, err := e.Assess(confident, 42)
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	low, err := e.Assess(doubtful, 42)
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if high.WinProbability <= low.WinProbability {
		t.Errorf("Expected confidence 95 to beat confidence 5: %f vs %f",
			high.WinProbability, low.WinProbability)
	}
}

// TestNewEngineValidation checks constructor rejection.
func TestNewEngineValidation(t *testing.T) {
	if _, err := NewEngine(Config{Paths: 0, HorizonSteps: 100}, zerolog.Nop()); err == nil {
		t.Error("Expected error for zero paths")
	}
	if _, err := NewEngine(Config{Paths: 100, HorizonSteps: 0}, zerolog.Nop()); err == nil {
		t.Error("Expected error for zero horizon")
	}
}
