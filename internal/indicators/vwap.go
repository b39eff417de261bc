package indicators

import (
	"math"
	"time"

	"signal-engine/internal/market"
)

// SessionVWAP calculates the volume-weighted average price over the
// current session, defined as the UTC calendar day of the most recent
// candle. The cumulative sums reset at every session boundary by
// construction: only candles of the current session participate. Bands
// are VWAP +/- 1 and 2 volume-weighted standard deviations.
func SessionVWAP(candles []market.Candle) (*VWAPResult, error) {
	if len(candles) == 0 {
		return nil, &InsufficientDataError{Indicator: KindVWAP, Required: 1, Got: 0}
	}

	last := candles[len(candles)-1]
	sessionStart := sessionStartUTC(last.Timestamp)

	var cumPV, cumVol float64
	start := len(candles)
	for i := len(candles) - 1; i >= 0; i-- {
		if candles[i].Timestamp.Before(sessionStart) {
			break
		}
		start = i
	}
	session := candles[start:]
	for _, c := range session {
		cumPV += c.TypicalPrice() * c.Volume
		cumVol += c.Volume
	}
	if cumVol <= 0 {
		return nil, &InsufficientDataError{Indicator: KindVWAP, Required: 1, Got: 0}
	}
	vwap := cumPV / cumVol

	// Volume-weighted variance of typical price around the session VWAP.
	variance := 0.0
	for _, c := range session {
		diff := c.TypicalPrice() - vwap
		variance += c.Volume * diff * diff
	}
	sigma := math.Sqrt(variance / cumVol)

	return &VWAPResult{
		VWAP:      vwap,
		Upper1:    vwap + sigma,
		Lower1:    vwap - sigma,
		Upper2:    vwap + 2*sigma,
		Lower2:    vwap - 2*sigma,
		LastClose: last.Close,
	}, nil
}

func sessionStartUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
