// Package montecarlo simulates forward price paths for a signal and
// derives risk metrics. The engine is deterministic: identical
// (signal, seed, path count) inputs always produce identical metrics,
// and every path draws from its own seeded random stream so parallel
// callers cannot perturb each other.
package montecarlo

import (
	"math"
	"math/rand"
	"sort"

	"github.com/rs/zerolog"

	"signal-engine/internal/aggregator"
	"signal-engine/internal/market"
)

// RiskLevel buckets the composite risk score.
type RiskLevel string

const (
	RiskLow     RiskLevel = "Low"
	RiskMedium  RiskLevel = "Medium"
	RiskHigh    RiskLevel = "High"
	RiskExtreme RiskLevel = "Extreme"
)

// Config holds the simulation parameters.
type Config struct {
	Paths        int     `yaml:"paths" default:"10000" validate:"gt=0"`
	HorizonSteps int     `yaml:"horizon_steps" default:"100" validate:"gt=0"`
	DriftScale   float64 `yaml:"drift_scale" default:"0.1" validate:"gte=0"`
}

// Assessment is the aggregated risk view for one signal.
type Assessment struct {
	PredictionID       string     `json:"prediction_id"`
	ExpectedReturn     float64    `json:"expected_return"`
	VaR95              float64    `json:"var_95"`
	MaxDrawdown        float64    `json:"max_drawdown"` // worst case across paths
	WinProbability     float64    `json:"win_probability"`
	SharpeRatio        float64    `json:"sharpe_ratio"`
	RiskScore          float64    `json:"risk_score"`
	RiskLevel          RiskLevel  `json:"risk_level"`
	ConfidenceInterval [2]float64 `json:"confidence_interval"`
	Paths              int        `json:"paths"`
	Seed               int64      `json:"seed"`
}

// Engine runs Monte Carlo risk simulation.
type Engine struct {
	cfg    Config
	logger zerolog.Logger
}

// NewEngine validates the config and builds an engine.
func NewEngine(cfg Config, logger zerolog.Logger) (*Engine, error) {
	if cfg.Paths <= 0 {
		return nil, &market.InvalidParameterError{Name: "paths", Reason: "must be positive"}
	}
	if cfg.HorizonSteps <= 0 {
		return nil, &market.InvalidParameterError{Name: "horizon_steps", Reason: "must be positive"}
	}
	return &Engine{
		cfg:    cfg,
		logger: logger.With().Str("component", "MonteCarlo").Logger(),
	}, nil
}

// Assess simulates cfg.Paths independent price paths for sig and
// aggregates them into an Assessment. The volatility estimate is the
// signal's ATR-derived relative volatility; the drift is informed by
// the signal's confidence. One simulation step represents one candle.
func (e *Engine) Assess(sig *aggregator.Signal, seed int64) (*Assessment, error) {
	if err := validateSignal(sig); err != nil {
		return nil, err
	}

	dirSign := 1.0
	if sig.Direction == market.DirectionShort {
		dirSign = -1
	}
	vol := sig.Volatility
	// Confidence above 50 pushes drift in the trade direction, below 50
	// against it.
	drift := dirSign * (float64(sig.Confidence)/100 - 0.5) * vol * e.cfg.DriftScale

	returns := make([]float64, e.cfg.Paths)
	wins := 0
	worstDrawdown := 0.0

	for p := 0; p < e.cfg.Paths; p++ {
		// Isolated per-path stream: path p always sees the same draws
		// regardless of execution order.
		rng := rand.New(rand.NewSource(seed + int64(p+1)*1_000_003))

		ret, won, drawdown := e.simulatePath(rng, sig, dirSign, drift, vol)
		returns[p] = ret
		if won {
			wins++
		}
		if drawdown > worstDrawdown {
			worstDrawdown = drawdown
		}
	}

	assessment := e.aggregate(sig, returns, wins, worstDrawdown, seed)

	e.logger.Debug().
		Str("prediction_id", sig.PredictionID).
		Float64("win_probability", assessment.WinProbability).
		Float64("risk_score", assessment.RiskScore).
		Str("risk_level", string(assessment.RiskLevel)).
		Msg("risk assessed")

	return assessment, nil
}

// simulatePath walks one price path until it touches stop or target,
// or the horizon ends. Returned values: the realized position return,
// whether the target was reached before the stop, and the worst
// adverse excursion along the path (peak-to-trough in the direction
// that hurts the position).
func (e *Engine) simulatePath(rng *rand.Rand, sig *aggregator.Signal, dirSign, drift, vol float64) (float64, bool, float64) {
	entry := sig.EntryPrice
	price := entry
	peak := entry   // best price seen, in the position's favor
	drawdown := 0.0

	positionReturn := func(p float64) float64 {
		return dirSign * (p - entry) / entry
	}

	for step := 0; step < e.cfg.HorizonSteps; step++ {
		price *= 1 + drift + vol*rng.NormFloat64()
		if price <= 0 {
			// A path that annihilates price is a full loss.
			return -1, false, 1
		}

		if dirSign > 0 {
			if price > peak {
				peak = price
			}
			if dd := (peak - price) / peak; dd > drawdown {
				drawdown = dd
			}
			if price >= sig.TakeProfit {
				return positionReturn(sig.TakeProfit), true, drawdown
			}
			if price <= sig.StopLoss {
				return positionReturn(sig.StopLoss), false, drawdown
			}
		} else {
			if price < peak {
				peak = price
			}
			if dd := (price - peak) / peak; dd > drawdown {
				drawdown = dd
			}
			if price <= sig.TakeProfit {
				return positionReturn(sig.TakeProfit), true, drawdown
			}
			if price >= sig.StopLoss {
				return positionReturn(sig.StopLoss), false, drawdown
			}
		}
	}

	return positionReturn(price), false, drawdown
}

// aggregate folds per-path outcomes into the assessment.
func (e *Engine) aggregate(sig *aggregator.Signal, returns []float64, wins int, worstDrawdown float64, seed int64) *Assessment {
	n := len(returns)

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(n)

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	stdev := math.Sqrt(variance / float64(n))

	sorted := make([]float64, n)
	copy(sorted, returns)
	sort.Float64s(sorted)
	var95 := sorted[int(0.05*float64(n))]

	winProb := float64(wins) / float64(n)

	// Zero-stdev guard: a degenerate distribution reports 0, never NaN
	// or infinity.
	sharpe := 0.0
	if stdev > 0 {
		sharpe = mean / stdev
	}

	ciHalf := 1.96 * stdev / math.Sqrt(float64(n))

	score := riskScore(var95, worstDrawdown, winProb)

	return &Assessment{
		PredictionID:       sig.PredictionID,
		ExpectedReturn:     mean,
		VaR95:              var95,
		MaxDrawdown:        worstDrawdown,
		WinProbability:     winProb,
		SharpeRatio:        sharpe,
		RiskScore:          score,
		RiskLevel:          riskLevel(score),
		ConfidenceInterval: [2]float64{mean - ciHalf, mean + ciHalf},
		Paths:              n,
		Seed:               seed,
	}
}

// Composite weighting of the risk score inputs. Full marks against the
// score require a 10% tail loss and a 20% worst-case drawdown.
const (
	var95FullLoss    = 0.10
	drawdownFullLoss = 0.20
)

// riskScore maps (var95, maxDrawdown, winProbability) monotonically
// into [0, 100].
func riskScore(var95, maxDrawdown, winProb float64) float64 {
	tail := math.Min(1, math.Max(0, -var95)/var95FullLoss)
	dd := math.Min(1, maxDrawdown/drawdownFullLoss)
	lose := 1 - winProb
	return 100 * (0.40*tail + 0.35*dd + 0.25*lose)
}

func riskLevel(score float64) RiskLevel {
	switch {
	case score < 25:
		return RiskLow
	case score < 50:
		return RiskMedium
	case score < 75:
		return RiskHigh
	default:
		return RiskExtreme
	}
}

func validateSignal(sig *aggregator.Signal) error {
	if sig == nil {
		return &InvalidSignalError{Reason: "nil signal"}
	}
	if sig.Volatility <= 0 {
		return &InvalidSignalError{Reason: "volatility estimate must be positive"}
	}
	if sig.EntryPrice <= 0 {
		return &InvalidSignalError{Reason: "entry price must be positive"}
	}
	switch sig.Direction {
	case market.DirectionLong:
		if sig.StopLoss >= sig.EntryPrice {
			return &InvalidSignalError{Reason: "LONG stop must sit below entry"}
		}
		if sig.TakeProfit <= sig.EntryPrice {
			return &InvalidSignalError{Reason: "LONG target must sit above entry"}
		}
	case market.DirectionShort:
		if sig.StopLoss <= sig.EntryPrice {
			return &InvalidSignalError{Reason: "SHORT stop must sit above entry"}
		}
		if sig.TakeProfit >= sig.EntryPrice {
			return &InvalidSignalError{Reason: "SHORT target must sit below entry"}
		}
	default:
		return &InvalidSignalError{Reason: "direction must be LONG or SHORT"}
	}
	return nil
}
