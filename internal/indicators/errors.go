package indicators

import "fmt"

// InsufficientDataError reports that a candle series is shorter than an
// indicator's required lookback. It is local to that indicator: the
// confluence scorer absorbs it as a degraded category, it never fails
// the whole pipeline.
type InsufficientDataError struct {
	Indicator Kind
	Required  int
	Got       int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: need %d candles, got %d", e.Indicator, e.Required, e.Got)
}

// RequiredLookback returns the minimum candle count for an indicator at
// the given period. For MACD the period argument is the slow period and
// the signal period is assumed to be the standard fraction covered by
// the dedicated check inside MACD itself.
func RequiredLookback(kind Kind, period int) int {
	switch kind {
	case KindRSI, KindATR:
		return period + 1
	case KindADX:
		return 2 * period
	case KindEMA, KindBollinger:
		return period
	case KindVWAP:
		return 1
	default:
		return period
	}
}
