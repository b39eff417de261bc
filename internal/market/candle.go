package market

import (
	"fmt"
	"time"
)

// Candle is a single OHLCV bar.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// TypicalPrice returns (high + low + close) / 3, the price used for VWAP.
func (c Candle) TypicalPrice() float64 {
	return (c.High + c.Low + c.Close) / 3
}

// Series is a validated candle sequence for one (symbol, timeframe).
// Candles are ordered by strictly increasing timestamp. Gaps in the
// sequence are tolerated but recorded as a data-quality degradation.
type Series struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	Candles   []Candle  `json:"candles"`
	HasGaps   bool      `json:"has_gaps"`
}

// NewSeries validates raw candles and builds a Series.
// Out-of-order or duplicate timestamps and malformed bars are rejected;
// missing intervals only flag the series, they do not fail it.
func NewSeries(symbol string, tf Timeframe, candles []Candle) (*Series, error) {
	if !tf.Valid() {
		return nil, &InvalidParameterError{Name: "timeframe", Reason: fmt.Sprintf("unknown timeframe %q", string(tf))}
	}

	s := &Series{
		Symbol:    symbol,
		Timeframe: tf,
		Candles:   candles,
	}

	interval := tf.Duration()
	for i, c := range candles {
		if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
			return nil, &InvalidParameterError{
				Name:   "candles",
				Reason: fmt.Sprintf("candle %d has non-positive OHLC", i),
			}
		}
		if c.Volume < 0 {
			return nil, &InvalidParameterError{
				Name:   "candles",
				Reason: fmt.Sprintf("candle %d has negative volume", i),
			}
		}
		if i == 0 {
			continue
		}
		prev := candles[i-1]
		if !c.Timestamp.After(prev.Timestamp) {
			if c.Timestamp.Equal(prev.Timestamp) {
				return nil, &InvalidParameterError{
					Name:   "candles",
					Reason: fmt.Sprintf("duplicate timestamp at candle %d (%s)", i, c.Timestamp.Format(time.RFC3339)),
				}
			}
			return nil, &InvalidParameterError{
				Name:   "candles",
				Reason: fmt.Sprintf("candle %d out of order (%s)", i, c.Timestamp.Format(time.RFC3339)),
			}
		}
		// More than one interval between consecutive candles means the
		// provider skipped bars.
		if c.Timestamp.Sub(prev.Timestamp) > interval {
			s.HasGaps = true
		}
	}

	return s, nil
}

// Len returns the number of candles in the series.
func (s *Series) Len() int {
	return len(s.Candles)
}

// LastClose returns the close of the most recent candle, or 0 for an
// empty series.
func (s *Series) LastClose() float64 {
	if len(s.Candles) == 0 {
		return 0
	}
	return s.Candles[len(s.Candles)-1].Close
}

// CandleProvider is the contract with the external data-ingestion
// collaborator. Implementations return up to limit candles ordered by
// strictly increasing timestamp, most recent last.
type CandleProvider interface {
	Candles(symbol string, tf Timeframe, limit int) ([]Candle, error)
}
