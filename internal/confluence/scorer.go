// Package confluence combines indicator and structure readings for one
// timeframe into a single normalized score and direction.
package confluence

import (
	"fmt"

	"github.com/rs/zerolog"

	"signal-engine/internal/indicators"
	"signal-engine/internal/market"
	"signal-engine/internal/structure"
)

// Category groups indicator contributions. Each category carries a
// configurable weight; the weights must sum to 1.
type Category string

const (
	CategoryMomentum   Category = "momentum"
	CategoryTrend      Category = "trend"
	CategoryVolatility Category = "volatility"
	CategoryVolume     Category = "volume"
	CategoryStructure  Category = "structure"
)

// Strength labels the magnitude of a confluence score.
type Strength string

const (
	StrengthWeak     Strength = "weak"
	StrengthModerate Strength = "moderate"
	StrengthStrong   Strength = "strong"
)

// Strength thresholds on |rawScore|.
const (
	strongThreshold   = 0.5
	moderateThreshold = 0.25
)

// Weights holds the per-category weights.
type Weights struct {
	Momentum   float64 `yaml:"momentum" default:"0.25" validate:"gte=0,lte=1"`
	Trend      float64 `yaml:"trend" default:"0.25" validate:"gte=0,lte=1"`
	Volatility float64 `yaml:"volatility" default:"0.15" validate:"gte=0,lte=1"`
	Volume     float64 `yaml:"volume" default:"0.15" validate:"gte=0,lte=1"`
	Structure  float64 `yaml:"structure" default:"0.20" validate:"gte=0,lte=1"`
}

// Validate checks the weights sum to 1.0 within rounding slack.
func (w Weights) Validate() error {
	total := w.Momentum + w.Trend + w.Volatility + w.Volume + w.Structure
	if total < 0.99 || total > 1.01 {
		return &market.InvalidParameterError{
			Name:   "confluence weights",
			Reason: fmt.Sprintf("must sum to 1.0, got %.2f", total),
		}
	}
	return nil
}

// Score is the confluence read for one timeframe. RawScore is the
// weighted sum of category averages; Degraded marks that one or more
// categories had no usable inputs (or the series itself had gaps)
// rather than aborting the computation.
type Score struct {
	Timeframe  market.Timeframe     `json:"timeframe"`
	RawScore   float64              `json:"raw_score"`
	Direction  market.Direction     `json:"direction"`
	Strength   Strength             `json:"strength"`
	Degraded   bool                 `json:"degraded"`
	Categories map[Category]float64 `json:"categories"`
	Missing    []Category           `json:"missing,omitempty"`
}

// Scorer combines indicator results and structure analysis into Scores.
type Scorer struct {
	weights  Weights
	deadZone float64
	logger   zerolog.Logger
}

// NewScorer validates the weights and builds a scorer. deadZone is the
// |rawScore| band around zero treated as NEUTRAL so the direction does
// not flip-flop on noise.
func NewScorer(weights Weights, deadZone float64, logger zerolog.Logger) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if deadZone < 0 || deadZone >= 1 {
		return nil, &market.InvalidParameterError{Name: "dead_zone", Reason: "must be in [0, 1)"}
	}
	return &Scorer{
		weights:  weights,
		deadZone: deadZone,
		logger:   logger.With().Str("component", "ConfluenceScorer").Logger(),
	}, nil
}

// Score folds the available indicator results and the structure
// analysis into one confluence score for tf. results may omit
// indicators that failed with insufficient data; analysis may be nil
// when structure analysis failed. Missing inputs zero out their
// category and set the degraded flag. seriesDegraded marks gaps in the
// underlying candle data.
func (s *Scorer) Score(tf market.Timeframe, results []indicators.Result, analysis *structure.Analysis, seriesDegraded bool) *Score {
	sums := map[Category]float64{}
	counts := map[Category]int{}

	for _, r := range results {
		if r == nil {
			continue
		}
		// Closed set of result variants: the switch covers every kind
		// the indicator library emits.
		var cat Category
		switch r.(type) {
		case *indicators.RSIResult, *indicators.MACDResult:
			cat = CategoryMomentum
		case *indicators.EMAResult, *indicators.ADXResult:
			cat = CategoryTrend
		case *indicators.BollingerResult:
			cat = CategoryVolatility
		case *indicators.VWAPResult:
			cat = CategoryVolume
		case *indicators.ATRResult:
			// Direction-neutral by definition; ATR sizes stops, it does
			// not vote.
			continue
		default:
			s.logger.Warn().Str("kind", string(r.Kind())).Msg("unknown indicator kind ignored")
			continue
		}
		sums[cat] += r.Contribution()
		counts[cat]++
	}
	if analysis != nil {
		sums[CategoryStructure] += analysis.Contribution
		counts[CategoryStructure]++
	}

	score := &Score{
		Timeframe:  tf,
		Categories: make(map[Category]float64, 5),
		Degraded:   seriesDegraded,
	}

	weighted := []struct {
		cat    Category
		weight float64
	}{
		{CategoryMomentum, s.weights.Momentum},
		{CategoryTrend, s.weights.Trend},
		{CategoryVolatility, s.weights.Volatility},
		{CategoryVolume, s.weights.Volume},
		{CategoryStructure, s.weights.Structure},
	}

	raw := 0.0
	for _, cw := range weighted {
		cat, weight := cw.cat, cw.weight
		if counts[cat] == 0 {
			// Failed or missing inputs contribute zero weight instead of
			// aborting the computation.
			score.Categories[cat] = 0
			score.Missing = append(score.Missing, cat)
			score.Degraded = true
			continue
		}
		avg := sums[cat] / float64(counts[cat])
		score.Categories[cat] = avg
		raw += weight * avg
	}

	score.RawScore = raw
	score.Direction = s.direction(raw)
	score.Strength = strengthLabel(raw)

	s.logger.Debug().
		Str("timeframe", string(tf)).
		Float64("raw_score", raw).
		Str("direction", string(score.Direction)).
		Bool("degraded", score.Degraded).
		Msg("confluence scored")

	return score
}

func (s *Scorer) direction(raw float64) market.Direction {
	switch {
	case raw > s.deadZone:
		return market.DirectionLong
	case raw < -s.deadZone:
		return market.DirectionShort
	default:
		return market.DirectionNeutral
	}
}

func strengthLabel(raw float64) Strength {
	abs := raw
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= strongThreshold:
		return StrengthStrong
	case abs >= moderateThreshold:
		return StrengthModerate
	default:
		return StrengthWeak
	}
}
