// Package indicators implements technical-analysis indicators as pure
// functions over an ordered candle window. No function mutates shared
// state; a series shorter than the required lookback fails fast with
// InsufficientDataError.
package indicators

import (
	"math"

	"signal-engine/internal/market"
)

// SMA calculates the simple moving average of the last period closes.
func SMA(candles []market.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, &market.InvalidParameterError{Name: "period", Reason: "must be positive"}
	}
	if len(candles) < period {
		return 0, &InsufficientDataError{Indicator: KindEMA, Required: period, Got: len(candles)}
	}

	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		sum += candles[i].Close
	}
	return sum / float64(period), nil
}

// EMA calculates the exponential moving average over the full window,
// seeded with the arithmetic mean of the first period closes.
func EMA(candles []market.Candle, period int) (*EMAResult, error) {
	if period <= 0 {
		return nil, &market.InvalidParameterError{Name: "period", Reason: "must be positive"}
	}
	if len(candles) < period {
		return nil, &InsufficientDataError{Indicator: KindEMA, Required: period, Got: len(candles)}
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	series := emaSeries(closes, period)

	return &EMAResult{
		Period:    period,
		Value:     series[len(series)-1],
		LastClose: closes[len(closes)-1],
	}, nil
}

// emaSeries returns the recursive EMA over values. The returned slice is
// aligned with values; entries before index period-1 hold the warm-up
// seed progression and are not meaningful on their own.
func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))

	seed := 0.0
	for i := 0; i < period; i++ {
		seed += values[i]
		out[i] = seed / float64(i+1)
	}
	out[period-1] = seed / float64(period)

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		out[i] = values[i]*multiplier + out[i-1]*(1-multiplier)
	}
	return out
}

// RSI calculates Wilder's Relative Strength Index. The first period
// changes only seed the smoothed averages; they are not emitted
// individually. Output is bounded to [0, 100].
func RSI(candles []market.Candle, period int) (*RSIResult, error) {
	if period <= 0 {
		return nil, &market.InvalidParameterError{Name: "period", Reason: "must be positive"}
	}
	need := RequiredLookback(KindRSI, period)
	if len(candles) < need {
		return nil, &InsufficientDataError{Indicator: KindRSI, Required: need, Got: len(candles)}
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	value := 100.0
	if avgLoss > 0 {
		rs := avgGain / avgLoss
		value = 100 - 100/(1+rs)
	}

	return &RSIResult{Period: period, Value: clamp(value, 0, 100)}, nil
}

// MACD calculates the MACD line (fast EMA - slow EMA), the signal line
// (EMA of the MACD line) and the histogram. Both EMAs use the standard
// recursive smoothing with an arithmetic-mean seed.
func MACD(candles []market.Candle, fastPeriod, slowPeriod, signalPeriod int) (*MACDResult, error) {
	if fastPeriod <= 0 || slowPeriod <= 0 || signalPeriod <= 0 {
		return nil, &market.InvalidParameterError{Name: "period", Reason: "MACD periods must be positive"}
	}
	if fastPeriod >= slowPeriod {
		return nil, &market.InvalidParameterError{Name: "period", Reason: "MACD fast period must be below slow period"}
	}
	need := slowPeriod + signalPeriod
	if len(candles) < need {
		return nil, &InsufficientDataError{Indicator: KindMACD, Required: need, Got: len(candles)}
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	fast := emaSeries(closes, fastPeriod)
	slow := emaSeries(closes, slowPeriod)

	// MACD history is valid from the first index where the slow EMA is
	// seeded.
	macdLine := make([]float64, 0, len(closes)-slowPeriod+1)
	for i := slowPeriod - 1; i < len(closes); i++ {
		macdLine = append(macdLine, fast[i]-slow[i])
	}

	signal := emaSeries(macdLine, signalPeriod)

	macd := macdLine[len(macdLine)-1]
	sig := signal[len(signal)-1]
	return &MACDResult{
		MACD:      macd,
		Signal:    sig,
		Histogram: macd - sig,
		LastClose: closes[len(closes)-1],
	}, nil
}

// trueRange returns max(high-low, |high-prevClose|, |low-prevClose|).
func trueRange(cur, prev market.Candle) float64 {
	return math.Max(cur.High-cur.Low,
		math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)))
}

// ATR calculates the Wilder-smoothed average true range.
func ATR(candles []market.Candle, period int) (*ATRResult, error) {
	if period <= 0 {
		return nil, &market.InvalidParameterError{Name: "period", Reason: "must be positive"}
	}
	need := RequiredLookback(KindATR, period)
	if len(candles) < need {
		return nil, &InsufficientDataError{Indicator: KindATR, Required: need, Got: len(candles)}
	}

	// Seed with the arithmetic mean of the first period true ranges.
	atr := 0.0
	for i := 1; i <= period; i++ {
		atr += trueRange(candles[i], candles[i-1])
	}
	atr /= float64(period)

	for i := period + 1; i < len(candles); i++ {
		tr := trueRange(candles[i], candles[i-1])
		atr = (atr*float64(period-1) + tr) / float64(period)
	}

	return &ATRResult{Period: period, Value: atr}, nil
}

// ADX calculates Wilder's Average Directional Index together with the
// +DI and -DI components. Requires at least 2*period candles.
func ADX(candles []market.Candle, period int) (*ADXResult, error) {
	if period <= 0 {
		return nil, &market.InvalidParameterError{Name: "period", Reason: "must be positive"}
	}
	need := RequiredLookback(KindADX, period)
	if len(candles) < need {
		return nil, &InsufficientDataError{Indicator: KindADX, Required: need, Got: len(candles)}
	}

	n := len(candles)
	trs := make([]float64, n-1)
	plusDM := make([]float64, n-1)
	minusDM := make([]float64, n-1)
	for i := 1; i < n; i++ {
		trs[i-1] = trueRange(candles[i], candles[i-1])
		up := candles[i].High - candles[i-1].High
		down := candles[i-1].Low - candles[i].Low
		if up > down && up > 0 {
			plusDM[i-1] = up
		}
		if down > up && down > 0 {
			minusDM[i-1] = down
		}
	}

	// Wilder-smoothed running sums, seeded over the first period moves.
	var trSum, plusSum, minusSum float64
	for i := 0; i < period; i++ {
		trSum += trs[i]
		plusSum += plusDM[i]
		minusSum += minusDM[i]
	}

	var plusDI, minusDI, adx float64
	dxCount := 0
	for i := period - 1; i < len(trs); i++ {
		if i >= period {
			trSum = trSum - trSum/float64(period) + trs[i]
			plusSum = plusSum - plusSum/float64(period) + plusDM[i]
			minusSum = minusSum - minusSum/float64(period) + minusDM[i]
		}
		if trSum <= 0 {
			continue
		}
		plusDI = 100 * plusSum / trSum
		minusDI = 100 * minusSum / trSum

		diSum := plusDI + minusDI
		if diSum <= 0 {
			continue
		}
		dx := 100 * math.Abs(plusDI-minusDI) / diSum
		dxCount++
		if dxCount <= period {
			// First ADX is the arithmetic mean of the first period DX
			// readings.
			adx += (dx - adx) / float64(dxCount)
		} else {
			adx = (adx*float64(period-1) + dx) / float64(period)
		}
	}

	return &ADXResult{Period: period, ADX: adx, PlusDI: plusDI, MinusDI: minusDI}, nil
}

// Bollinger calculates Bollinger Bands: SMA(period) +/- mult rolling
// standard deviations over the lookback window.
func Bollinger(candles []market.Candle, period int, mult float64) (*BollingerResult, error) {
	if period <= 0 {
		return nil, &market.InvalidParameterError{Name: "period", Reason: "must be positive"}
	}
	if mult <= 0 {
		return nil, &market.InvalidParameterError{Name: "multiplier", Reason: "must be positive"}
	}
	if len(candles) < period {
		return nil, &InsufficientDataError{Indicator: KindBollinger, Required: period, Got: len(candles)}
	}

	middle, err := SMA(candles, period)
	if err != nil {
		return nil, err
	}

	variance := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		diff := candles[i].Close - middle
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(period))

	return &BollingerResult{
		Period:    period,
		Upper:     middle + mult*stdDev,
		Middle:    middle,
		Lower:     middle - mult*stdDev,
		LastClose: candles[len(candles)-1].Close,
	}, nil
}
