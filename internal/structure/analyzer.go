// Package structure classifies market regime and extracts structural
// price levels: swing-based supply/demand zones and psychological
// levels.
package structure

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"signal-engine/internal/indicators"
	"signal-engine/internal/market"
)

// Regime buckets market conditions by volatility and directionality.
type Regime string

const (
	RegimeTrending      Regime = "trending"
	RegimeConsolidating Regime = "consolidating"
	RegimeBreakout      Regime = "breakout"
)

// ZoneKind distinguishes supply (resistance) from demand (support).
type ZoneKind string

const (
	ZoneSupply ZoneKind = "supply"
	ZoneDemand ZoneKind = "demand"
)

// SwingPoint is a fractal local extreme.
type SwingPoint struct {
	Value float64 `json:"price"`
	Index int     `json:"index"`
	High  bool    `json:"high"`
}

// Zone is a clustered band of swing points, never a single price.
type Zone struct {
	Kind    ZoneKind `json:"kind"`
	Upper   float64  `json:"upper"`
	Lower   float64  `json:"lower"`
	Touches int      `json:"touches"`
}

// Level is a psychological price level with the sources that produced
// it. Levels from multiple sources within tolerance are merged.
type Level struct {
	Price   float64  `json:"price"`
	Sources []string `json:"sources"`
}

// Analysis is the structural read of one candle series.
type Analysis struct {
	Regime       Regime       `json:"regime"`
	SupplyZones  []Zone       `json:"supply_zones"`
	DemandZones  []Zone       `json:"demand_zones"`
	Levels       []Level      `json:"levels"`
	SwingHighs   []SwingPoint `json:"swing_highs"`
	SwingLows    []SwingPoint `json:"swing_lows"`
	Contribution float64      `json:"contribution"` // directional, [-1, +1]
}

// Config holds the analyzer thresholds. Thresholds are configuration,
// never hard-coded per call.
type Config struct {
	SwingK           int     `yaml:"swing_k" default:"2" validate:"gt=0"`
	ADXPeriod        int     `yaml:"adx_period" default:"14" validate:"gt=0"`
	ATRPeriod        int     `yaml:"atr_period" default:"14" validate:"gt=0"`
	ATRBaseline      int     `yaml:"atr_baseline" default:"50" validate:"gt=0"`
	TrendADX         float64 `yaml:"trend_adx" default:"25" validate:"gt=0"`
	BreakoutVolRatio float64 `yaml:"breakout_vol_ratio" default:"1.5" validate:"gt=1"`
	RoundGranularity float64 `yaml:"round_granularity" default:"0" validate:"gte=0"` // 0 = derive from price magnitude
	LevelTolerance   float64 `yaml:"level_tolerance" default:"0.002" validate:"gt=0"`
}

// Analyzer performs market structure analysis.
type Analyzer struct {
	cfg    Config
	logger zerolog.Logger
}

// NewAnalyzer validates the config and builds an analyzer.
func NewAnalyzer(cfg Config, logger zerolog.Logger) (*Analyzer, error) {
	if cfg.SwingK <= 0 {
		return nil, &market.InvalidParameterError{Name: "swing_k", Reason: "must be positive"}
	}
	if cfg.ATRBaseline <= cfg.ATRPeriod {
		return nil, &market.InvalidParameterError{Name: "atr_baseline", Reason: "must exceed atr_period"}
	}
	if cfg.LevelTolerance <= 0 {
		return nil, &market.InvalidParameterError{Name: "level_tolerance", Reason: "must be positive"}
	}
	return &Analyzer{
		cfg:    cfg,
		logger: logger.With().Str("component", "StructureAnalyzer").Logger(),
	}, nil
}

// Analyze classifies the regime and extracts zones and levels from the
// candle window. An InsufficientDataError from the underlying
// indicators propagates so the caller can degrade the structure
// category.
func (a *Analyzer) Analyze(candles []market.Candle) (*Analysis, error) {
	adx, err := indicators.ADX(candles, a.cfg.ADXPeriod)
	if err != nil {
		return nil, fmt.Errorf("structure regime: %w", err)
	}
	atrShort, err := indicators.ATR(candles, a.cfg.ATRPeriod)
	if err != nil {
		return nil, fmt.Errorf("structure regime: %w", err)
	}
	atrLong, err := indicators.ATR(candles, a.cfg.ATRBaseline)
	if err != nil {
		return nil, fmt.Errorf("structure regime: %w", err)
	}

	analysis := &Analysis{
		Regime: a.classifyRegime(adx, atrShort, atrLong),
	}

	analysis.SwingHighs = a.findSwings(candles, true)
	analysis.SwingLows = a.findSwings(candles, false)
	analysis.SupplyZones = a.clusterZones(analysis.SwingHighs, ZoneSupply)
	analysis.DemandZones = a.clusterZones(analysis.SwingLows, ZoneDemand)
	analysis.Levels = a.psychologicalLevels(candles, analysis)
	analysis.Contribution = swingContribution(analysis.SwingHighs, analysis.SwingLows)

	a.logger.Debug().
		Str("regime", string(analysis.Regime)).
		Int("supply_zones", len(analysis.SupplyZones)).
		Int("demand_zones", len(analysis.DemandZones)).
		Int("levels", len(analysis.Levels)).
		Msg("structure analyzed")

	return analysis, nil
}

// classifyRegime combines ATR-normalized volatility expansion with the
// directional-movement read into three buckets. Volatility expansion
// wins over directionality: a breakout is a breakout even when ADX has
// caught up.
func (a *Analyzer) classifyRegime(adx *indicators.ADXResult, atrShort, atrLong *indicators.ATRResult) Regime {
	if atrLong.Value > 0 && atrShort.Value/atrLong.Value >= a.cfg.BreakoutVolRatio {
		return RegimeBreakout
	}
	if adx.ADX >= a.cfg.TrendADX {
		return RegimeTrending
	}
	return RegimeConsolidating
}

// findSwings applies the fractal rule: a candle is a local high (low)
// if its high (low) strictly exceeds (is below) the k candles on each
// side.
func (a *Analyzer) findSwings(candles []market.Candle, highs bool) []SwingPoint {
	k := a.cfg.SwingK
	var points []SwingPoint
	for i := k; i < len(candles)-k; i++ {
		isSwing := true
		for j := i - k; j <= i+k; j++ {
			if j == i {
				continue
			}
			if highs && candles[j].High >= candles[i].High {
				isSwing = false
				break
			}
			if !highs && candles[j].Low <= candles[i].Low {
				isSwing = false
				break
			}
		}
		if !isSwing {
			continue
		}
		price := candles[i].Low
		if highs {
			price = candles[i].High
		}
		points = append(points, SwingPoint{Value: price, Index: i, High: highs})
	}
	return points
}

// clusterZones merges swing points whose prices sit within tolerance of
// each other into zones with a price band. A lone swing still gets a
// band of one tolerance width around it.
func (a *Analyzer) clusterZones(points []SwingPoint, kind ZoneKind) []Zone {
	if len(points) == 0 {
		return nil
	}

	sorted := make([]SwingPoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Value < sorted[j].Value })

	var zones []Zone
	cur := Zone{Kind: kind, Lower: sorted[0].Value, Upper: sorted[0].Value, Touches: 1}
	for _, p := range sorted[1:] {
		if p.Value-cur.Upper <= cur.Upper*a.cfg.LevelTolerance {
			cur.Upper = p.Value
			cur.Touches++
			continue
		}
		zones = append(zones, padZone(cur, a.cfg.LevelTolerance))
		cur = Zone{Kind: kind, Lower: p.Value, Upper: p.Value, Touches: 1}
	}
	zones = append(zones, padZone(cur, a.cfg.LevelTolerance))
	return zones
}

// padZone widens degenerate single-price zones into a band.
func padZone(z Zone, tol float64) Zone {
	if z.Upper == z.Lower {
		pad := z.Upper * tol / 2
		z.Upper += pad
		z.Lower -= pad
	}
	return z
}

// fibRatios are the retracement and extension ratios measured from the
// most recent significant swing.
var fibRatios = []float64{0.236, 0.382, 0.5, 0.618, 0.786, 1.272, 1.618}

// psychologicalLevels returns round-number and Fibonacci levels within
// the window's price range, merged when they confluence within
// tolerance.
func (a *Analyzer) psychologicalLevels(candles []market.Candle, analysis *Analysis) []Level {
	low, high := windowRange(candles)
	if high <= low {
		return nil
	}

	var raw []Level

	granularity := a.cfg.RoundGranularity
	if granularity <= 0 {
		granularity = roundStep(high)
	}
	for p := math.Ceil(low/granularity) * granularity; p <= high; p += granularity {
		raw = append(raw, Level{Price: p, Sources: []string{"round"}})
	}

	// Fibonacci levels from the most recent significant swing high/low.
	swingHigh, swingLow := recentSwing(analysis, high, low)
	diff := swingHigh - swingLow
	for _, r := range fibRatios {
		price := swingHigh - diff*r
		if price <= 0 {
			continue
		}
		raw = append(raw, Level{Price: price, Sources: []string{fmt.Sprintf("fib_%.3f", r)}})
	}

	return mergeLevels(raw, a.cfg.LevelTolerance)
}

// roundStep picks a granularity one order of magnitude below the price.
func roundStep(price float64) float64 {
	if price <= 0 {
		return 1
	}
	return math.Pow(10, math.Floor(math.Log10(price))-1)
}

func windowRange(candles []market.Candle) (low, high float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	low, high = candles[0].Low, candles[0].High
	for _, c := range candles[1:] {
		low = math.Min(low, c.Low)
		high = math.Max(high, c.High)
	}
	return low, high
}

// recentSwing returns the latest confirmed swing high and low, falling
// back to the window extremes when no swing exists.
func recentSwing(analysis *Analysis, fallbackHigh, fallbackLow float64) (float64, float64) {
	high, low := fallbackHigh, fallbackLow
	if n := len(analysis.SwingHighs); n > 0 {
		high = analysis.SwingHighs[n-1].Value
	}
	if n := len(analysis.SwingLows); n > 0 {
		low = analysis.SwingLows[n-1].Value
	}
	if high <= low {
		return fallbackHigh, fallbackLow
	}
	return high, low
}

// mergeLevels collapses levels within tolerance of each other into one
// confluence level holding all sources.
func mergeLevels(levels []Level, tol float64) []Level {
	if len(levels) == 0 {
		return nil
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Price < levels[j].Price })

	merged := []Level{levels[0]}
	for _, l := range levels[1:] {
		last := &merged[len(merged)-1]
		if l.Price-last.Price <= last.Price*tol {
			// Keep the first price, accumulate sources.
			last.Sources = append(last.Sources, l.Sources...)
			continue
		}
		merged = append(merged, l)
	}
	return merged
}

// swingContribution derives a directional reading from the higher-high/
// lower-low counts of the swing sequence.
func swingContribution(highsSeq, lowsSeq []SwingPoint) float64 {
	bull, bear := 0, 0
	count := func(points []SwingPoint) {
		for i := 1; i < len(points); i++ {
			if points[i].Value > points[i-1].Value {
				bull++
			} else if points[i].Value < points[i-1].Value {
				bear++
			}
		}
	}
	count(highsSeq)
	count(lowsSeq)

	total := bull + bear
	if total == 0 {
		return 0
	}
	return float64(bull-bear) / float64(total)
}

// IsInsufficientData reports whether err stems from a too-short candle
// window rather than malformed configuration.
func IsInsufficientData(err error) bool {
	var ide *indicators.InsufficientDataError
	return errors.As(err, &ide)
}
