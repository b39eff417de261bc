package market

import (
	"errors"
	"testing"
	"time"
)

func hourlyCandle(start time.Time, offset int, close float64) Candle {
	return Candle{
		Timestamp: start.Add(time.Duration(offset) * time.Hour),
		Open:      close,
		High:      close + 1,
		Low:       close - 1,
		Close:     close,
		Volume:    50,
	}
}

// TestNewSeriesValid checks a clean hourly sequence.
func TestNewSeriesValid(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	candles := []Candle{
		hourlyCandle(start, 0, 100),
		hourlyCandle(start, 1, 101),
		hourlyCandle(start, 2, 102),
	}

	s, err := NewSeries("BTC-USDT", TF1h, candles)
	if err != nil {
		t.Fatalf("NewSeries: %v", err)
	}
	if s.Len() != 3 {
		t.Errorf("Expected 3 candles, got %d", s.Len())
	}
	if s.HasGaps {
		t.Error("Contiguous series should not be flagged as gapped")
	}
	if s.LastClose() != 102 {
		t.Errorf("Expected last close 102, got %f", s.LastClose())
	}
}

// TestNewSeriesFlagsGaps checks that a skipped bar degrades but does not
// reject the series.
func TestNewSeriesFlagsGaps(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	candles := []Candle{
		hourlyCandle(start, 0, 100),
		hourlyCandle(start, 1, 101),
		hourlyCandle(start, 3, 103), // hour 2 missing
	}

	s, err := NewSeries("BTC-USDT", TF1h, candles)
	if err != nil {
		t.Fatalf("NewSeries: %v", err)
	}
	if !s.HasGaps {
		t.Error("Expected gap flag for skipped interval")
	}
}

// TestNewSeriesRejectsDisorder checks duplicate and out-of-order
// timestamps.
func TestNewSeriesRejectsDisorder(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	dup := []Candle{
		hourlyCandle(start, 0, 100),
		hourlyCandle(start, 0, 101),
	}
	if _, err := NewSeries("BTC-USDT", TF1h, dup); err == nil {
		t.Error("Expected error for duplicate timestamp")
	}

	backwards := []Candle{
		hourlyCandle(start, 2, 100),
		hourlyCandle(start, 1, 101),
	}
	_, err := NewSeries("BTC-USDT", TF1h, backwards)
	var paramErr *InvalidParameterError
	if !errors.As(err, &paramErr) {
		t.Fatalf("Expected InvalidParameterError for out-of-order candles, got %v", err)
	}
}

// TestNewSeriesRejectsMalformedBars checks OHLC and volume validation.
func TestNewSeriesRejectsMalformedBars(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	zeroPrice := []Candle{{Timestamp: start, Open: 0, High: 1, Low: 1, Close: 1, Volume: 1}}
	if _, err := NewSeries("BTC-USDT", TF1h, zeroPrice); err == nil {
		t.Error("Expected error for non-positive open")
	}

	negVolume := []Candle{{Timestamp: start, Open: 1, High: 2, Low: 1, Close: 1, Volume: -5}}
	if _, err := NewSeries("BTC-USDT", TF1h, negVolume); err == nil {
		t.Error("Expected error for negative volume")
	}
}

// TestNewSeriesRejectsUnknownTimeframe checks timeframe validation.
func TestNewSeriesRejectsUnknownTimeframe(t *testing.T) {
	_, err := NewSeries("BTC-USDT", Timeframe("7m"), nil)
	var paramErr *InvalidParameterError
	if !errors.As(err, &paramErr) {
		t.Fatalf("Expected InvalidParameterError, got %v", err)
	}
}

// TestReliabilityWeights checks the fixed per-timeframe weights.
func TestReliabilityWeights(t *testing.T) {
	cases := map[Timeframe]float64{
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
	for tf, want := range cases {
		if got := tf.ReliabilityWeight(); got != want {
			t.Errorf("Timeframe %s: expected weight %f, got %f", tf, want, got)
		}
	}
}

// TestTimeframeRankOrder checks that rank follows the coarseness order.
func TestTimeframeRankOrder(t *testing.T) {
	for i := 1; i < len(AllTimeframes); i++ {
		lower := AllTimeframes[i-1]
		higher := AllTimeframes[i]
		if lower.Rank() >= higher.Rank() {
			t.Errorf("Expected %s to rank below %s", lower, higher)
		}
	}
}

// TestParseTimeframe checks round-tripping and rejection.
func TestParseTimeframe(t *testing.T) {
	tf, err := ParseTimeframe("4h")
	if err != nil {
		t.Fatalf("ParseTimeframe: %v", err)
	}
	if tf != TF4h {
		t.Errorf("Expected TF4h, got %s", tf)
	}

	if _, err := ParseTimeframe("2h"); err == nil {
		t.Error("Expected error for unsupported timeframe")
	}
}

// TestTypicalPrice checks the HLC mean.
func TestTypicalPrice(t *testing.T) {
	c := Candle{High: 12, Low: 6, Close: 9}
	if got := c.TypicalPrice(); got != 9 {
		t.Errorf("Expected typical price 9, got %f", got)
	}
}
