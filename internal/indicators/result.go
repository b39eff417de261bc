package indicators

import "math"

// Kind identifies an indicator.
type Kind string

const (
	KindRSI       Kind = "rsi"
	KindMACD      Kind = "macd"
	KindEMA       Kind = "ema"
	KindADX       Kind = "adx"
	KindATR       Kind = "atr"
	KindBollinger Kind = "bollinger"
	KindVWAP      Kind = "vwap"
)

// Result is the closed set of indicator outputs. Every variant carries
// its raw value(s) plus a normalized directional contribution in
// [-1, +1] consumed by the confluence scorer.
type Result interface {
	Kind() Kind
	Contribution() float64
}

// Scale constants used to map raw indicator readings onto [-1, +1].
const (
	// macdHistogramScale is the histogram magnitude, as a fraction of
	// price, treated as a full-strength momentum reading.
	macdHistogramScale = 0.005
	// emaDistanceScale is the price-to-EMA distance treated as a
	// full-strength trend reading.
	emaDistanceScale = 0.02
	// adxFullStrength is the ADX reading treated as maximum trend
	// strength.
	adxFullStrength = 50.0
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RSIResult holds a Wilder-smoothed RSI reading.
type RSIResult struct {
	Period int     `json:"period"`
	Value  float64 `json:"value"` // bounded [0, 100]
}

func (r *RSIResult) Kind() Kind { return KindRSI }

// Contribution maps RSI around its 50 midpoint: 100 -> +1, 0 -> -1.
func (r *RSIResult) Contribution() float64 {
	return clamp((r.Value-50)/50, -1, 1)
}

// MACDResult holds the MACD line, signal line and histogram.
type MACDResult struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
	LastClose float64 `json:"last_close"`
}

func (r *MACDResult) Kind() Kind { return KindMACD }

// Contribution scales the histogram by price so the reading is
// comparable across symbols.
func (r *MACDResult) Contribution() float64 {
	if r.LastClose <= 0 {
		return 0
	}
	return clamp(r.Histogram/(r.LastClose*macdHistogramScale), -1, 1)
}

// EMAResult holds an exponential moving average and the close it is
// measured against.
type EMAResult struct {
	Period    int     `json:"period"`
	Value     float64 `json:"value"`
	LastClose float64 `json:"last_close"`
}

func (r *EMAResult) Kind() Kind { return KindEMA }

// Contribution is the relative distance of price from the EMA.
func (r *EMAResult) Contribution() float64 {
	if r.Value <= 0 {
		return 0
	}
	return clamp((r.LastClose-r.Value)/r.Value/emaDistanceScale, -1, 1)
}

// ADXResult holds Wilder's directional movement readings.
type ADXResult struct {
	Period  int     `json:"period"`
	ADX     float64 `json:"adx"`
	PlusDI  float64 `json:"plus_di"`
	MinusDI float64 `json:"minus_di"`
}

func (r *ADXResult) Kind() Kind { return KindADX }

// Contribution combines trend strength (ADX) with trend direction
// (DI dominance).
func (r *ADXResult) Contribution() float64 {
	strength := math.Min(r.ADX/adxFullStrength, 1)
	if r.PlusDI > r.MinusDI {
		return strength
	}
	if r.MinusDI > r.PlusDI {
		return -strength
	}
	return 0
}

// ATRResult holds a Wilder-smoothed average true range.
type ATRResult struct {
	Period int     `json:"period"`
	Value  float64 `json:"value"`
}

func (r *ATRResult) Kind() Kind { return KindATR }

// Contribution is zero: ATR measures volatility magnitude, it has no
// direction. It feeds stop/target sizing instead.
func (r *ATRResult) Contribution() float64 { return 0 }

// BollingerResult holds Bollinger Band levels.
type BollingerResult struct {
	Period    int     `json:"period"`
	Upper     float64 `json:"upper"`
	Middle    float64 `json:"middle"`
	Lower     float64 `json:"lower"`
	LastClose float64 `json:"last_close"`
}

func (r *BollingerResult) Kind() Kind { return KindBollinger }

// Contribution is the %B position of price within the bands recentered
// on the middle band: upper band -> +1, lower band -> -1.
func (r *BollingerResult) Contribution() float64 {
	width := r.Upper - r.Lower
	if width <= 0 {
		return 0
	}
	percentB := (r.LastClose - r.Lower) / width
	return clamp(2*percentB-1, -1, 1)
}

// VWAPResult holds the session VWAP and its volume-weighted bands.
type VWAPResult struct {
	VWAP      float64 `json:"vwap"`
	Upper1    float64 `json:"upper_1"`
	Lower1    float64 `json:"lower_1"`
	Upper2    float64 `json:"upper_2"`
	Lower2    float64 `json:"lower_2"`
	LastClose float64 `json:"last_close"`
}

func (r *VWAPResult) Kind() Kind { return KindVWAP }

// Contribution is the distance of price from VWAP in units of one
// volume-weighted standard deviation.
func (r *VWAPResult) Contribution() float64 {
	sigma := r.Upper1 - r.VWAP
	if sigma <= 0 {
		return 0
	}
	return clamp((r.LastClose-r.VWAP)/sigma, -1, 1)
}
