package market

import "time"

// Timeframe represents a chart timeframe.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
	TF3d  Timeframe = "3d"
	TF1w  Timeframe = "1w"
	TF1M  Timeframe = "1M"
)

// AllTimeframes lists every supported timeframe ordered from lowest to
// highest. The order defines higher-timeframe precedence on vote ties.
var AllTimeframes = []Timeframe{TF1m, TF5m, TF15m, TF30m, TF1h, TF4h, TF1d, TF3d, TF1w, TF1M}

// reliabilityWeights are the fixed per-timeframe trust multipliers.
// 4h is the anchor at 1.00; very low and very high timeframes are
// discounted.
var reliabilityWeights = map[Timeframe]float64{
	TF1m:  0.70,
	TF5m:  0.88,
	TF15m: 0.92,
	TF30m: 0.95,
	TF1h:  0.98,
	TF4h:  1.00,
	TF1d:  0.95,
	TF3d:  0.92,
	TF1w:  0.90,
	TF1M:  0.85,
}

var durations = map[Timeframe]time.Duration{
	TF1m:  time.Minute,
	TF5m:  5 * time.Minute,
	TF15m: 15 * time.Minute,
	TF30m: 30 * time.Minute,
	TF1h:  time.Hour,
	TF4h:  4 * time.Hour,
	TF1d:  24 * time.Hour,
	TF3d:  72 * time.Hour,
	TF1w:  7 * 24 * time.Hour,
	TF1M:  30 * 24 * time.Hour, // nominal month
}

// Valid reports whether tf is one of the supported timeframes.
func (tf Timeframe) Valid() bool {
	_, ok := reliabilityWeights[tf]
	return ok
}

// ReliabilityWeight returns the fixed trust multiplier for tf, or 0 for
// an unknown timeframe.
func (tf Timeframe) ReliabilityWeight() float64 {
	return reliabilityWeights[tf]
}

// Duration returns the nominal candle interval for tf.
func (tf Timeframe) Duration() time.Duration {
	return durations[tf]
}

// Rank returns the position of tf in AllTimeframes, lowest first.
// Unknown timeframes rank below every valid one.
func (tf Timeframe) Rank() int {
	for i, t := range AllTimeframes {
		if t == tf {
			return i
		}
	}
	return -1
}

// ParseTimeframe converts a string into a Timeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if !tf.Valid() {
		return "", &InvalidParameterError{Name: "timeframe", Reason: "unknown timeframe key " + s}
	}
	return tf, nil
}
