// Package aggregator merges per-timeframe confluence scores into one
// actionable trading signal. It is the join point of the pipeline:
// per-timeframe computation fans out in parallel and the aggregator
// waits for every timeframe (or a tolerated degraded subset) before
// emitting.
package aggregator

import (
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"signal-engine/internal/confluence"
	"signal-engine/internal/indicators"
	"signal-engine/internal/market"
	"signal-engine/internal/structure"
)

// IndicatorSettings holds the periods used for every timeframe.
type IndicatorSettings struct {
	RSIPeriod       int     `yaml:"rsi_period" default:"14" validate:"gt=0"`
	MACDFast        int     `yaml:"macd_fast" default:"12" validate:"gt=0"`
	MACDSlow        int     `yaml:"macd_slow" default:"26" validate:"gt=0"`
	MACDSignal      int     `yaml:"macd_signal" default:"9" validate:"gt=0"`
	EMAPeriod       int     `yaml:"ema_period" default:"50" validate:"gt=0"`
	ADXPeriod       int     `yaml:"adx_period" default:"14" validate:"gt=0"`
	ATRPeriod       int     `yaml:"atr_period" default:"14" validate:"gt=0"`
	BollingerPeriod int     `yaml:"bollinger_period" default:"20" validate:"gt=0"`
	BollingerMult   float64 `yaml:"bollinger_mult" default:"2.0" validate:"gt=0"`
}

// Config holds the aggregation policy.
type Config struct {
	Timeframes          []market.Timeframe `yaml:"timeframes"`
	CandleLimit         int                `yaml:"candle_limit" default:"200" validate:"gt=0"`
	MaxDegradedFraction float64            `yaml:"max_degraded_fraction" default:"0.5" validate:"gte=0,lte=1"`
	StopATRMultiplier   float64            `yaml:"stop_atr_multiplier" default:"2.0" validate:"gt=0"`
	TargetATRMultiplier float64            `yaml:"target_atr_multiplier" default:"4.0" validate:"gt=0"`
}

// FeedbackSource supplies the latest committed confidence-adjustment
// multiplier for a (symbol, timeframe) bucket. Reads must be cheap
// snapshot reads; the accuracy tracker implements this.
type FeedbackSource interface {
	Multiplier(symbol string, tf market.Timeframe) float64
}

// Aggregator runs the per-timeframe pipeline and consolidates.
type Aggregator struct {
	provider market.CandleProvider
	scorer   *confluence.Scorer
	analyzer *structure.Analyzer
	feedback FeedbackSource
	cfg      Config
	ind      IndicatorSettings
	logger   zerolog.Logger
}

// New builds an aggregator. feedback may be nil, in which case every
// multiplier is 1.
func New(
	provider market.CandleProvider,
	scorer *confluence.Scorer,
	analyzer *structure.Analyzer,
	feedback FeedbackSource,
	cfg Config,
	ind IndicatorSettings,
	logger zerolog.Logger,
) (*Aggregator, error) {
	if provider == nil {
		return nil, &market.InvalidParameterError{Name: "provider", Reason: "must not be nil"}
	}
	if len(cfg.Timeframes) == 0 {
		return nil, &market.InvalidParameterError{Name: "timeframes", Reason: "at least one timeframe required"}
	}
	for _, tf := range cfg.Timeframes {
		if !tf.Valid() {
			return nil, &market.InvalidParameterError{Name: "timeframes", Reason: "unknown timeframe key " + string(tf)}
		}
	}
	if cfg.CandleLimit <= 0 {
		return nil, &market.InvalidParameterError{Name: "candle_limit", Reason: "must be positive"}
	}
	return &Aggregator{
		provider: provider,
		scorer:   scorer,
		analyzer: analyzer,
		feedback: feedback,
		cfg:      cfg,
		ind:      ind,
		logger:   logger.With().Str("component", "Aggregator").Logger(),
	}, nil
}

// timeframeResult is the outcome of one timeframe's pipeline run.
type timeframeResult struct {
	timeframe market.Timeframe
	score     *confluence.Score
	series    *market.Series
	atr       *indicators.ATRResult
	err       error
}

// GenerateSignal runs indicators, structure and confluence for every
// configured timeframe in parallel and consolidates the scores into a
// single Signal. It fails with InsufficientConfluenceError when more
// than the configured fraction of timeframes is degraded or unusable.
func (a *Aggregator) GenerateSignal(symbol string) (*Signal, error) {
	results := make([]timeframeResult, len(a.cfg.Timeframes))

	var wg sync.WaitGroup
	for i, tf := range a.cfg.Timeframes {
		wg.Add(1)
		go func(i int, tf market.Timeframe) {
			defer wg.Done()
			results[i] = a.computeTimeframe(symbol, tf)
		}(i, tf)
	}
	wg.Wait()

	degraded := 0
	usable := make([]timeframeResult, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			// A fatally misconfigured run aborts; a data failure only
			// degrades this timeframe.
			var ipe *market.InvalidParameterError
			if errors.As(r.err, &ipe) {
				return nil, r.err
			}
			a.logger.Warn().Err(r.err).Str("symbol", symbol).Str("timeframe", string(r.timeframe)).
				Msg("timeframe degraded")
			degraded++
			continue
		}
		if r.score.Degraded {
			degraded++
		}
		usable = append(usable, r)
	}

	total := len(results)
	if float64(degraded)/float64(total) > a.cfg.MaxDegradedFraction || len(usable) == 0 {
		return nil, &InsufficientConfluenceError{Degraded: degraded, Total: total, Threshold: a.cfg.MaxDegradedFraction}
	}

	return a.consolidate(symbol, usable, degraded > 0)
}

// computeTimeframe runs the full single-timeframe pipeline.
func (a *Aggregator) computeTimeframe(symbol string, tf market.Timeframe) timeframeResult {
	res := timeframeResult{timeframe: tf}

	candles, err := a.provider.Candles(symbol, tf, a.cfg.CandleLimit)
	if err != nil {
		res.err = err
		return res
	}
	series, err := market.NewSeries(symbol, tf, candles)
	if err != nil {
		res.err = err
		return res
	}
	res.series = series

	// Per-indicator failures are absorbed: an indicator short on data
	// contributes nothing and the scorer flags the degradation. Only
	// invalid parameters are fatal.
	var results []indicators.Result
	collect := func(r indicators.Result, err error) error {
		if err == nil {
			results = append(results, r)
			return nil
		}
		var ide *indicators.InsufficientDataError
		if errors.As(err, &ide) {
			a.logger.Debug().Err(err).Str("timeframe", string(tf)).Msg("indicator skipped")
			return nil
		}
		return err
	}

	rsi, err := indicators.RSI(series.Candles, a.ind.RSIPeriod)
	if res.err = collect(resultOrNil(rsi, err), err); res.err != nil {
		return res
	}
	macd, err := indicators.MACD(series.Candles, a.ind.MACDFast, a.ind.MACDSlow, a.ind.MACDSignal)
	if res.err = collect(resultOrNil(macd, err), err); res.err != nil {
		return res
	}
	ema, err := indicators.EMA(series.Candles, a.ind.EMAPeriod)
	if res.err = collect(resultOrNil(ema, err), err); res.err != nil {
		return res
	}
	adx, err := indicators.ADX(series.Candles, a.ind.ADXPeriod)
	if res.err = collect(resultOrNil(adx, err), err); res.err != nil {
		return res
	}
	boll, err := indicators.Bollinger(series.Candles, a.ind.BollingerPeriod, a.ind.BollingerMult)
	if res.err = collect(resultOrNil(boll, err), err); res.err != nil {
		return res
	}
	vwap, err := indicators.SessionVWAP(series.Candles)
	if res.err = collect(resultOrNil(vwap, err), err); res.err != nil {
		return res
	}
	atr, err := indicators.ATR(series.Candles, a.ind.ATRPeriod)
	if res.err = collect(resultOrNil(atr, err), err); res.err != nil {
		return res
	}
	res.atr = atr

	var analysis *structure.Analysis
	if a.analyzer != nil {
		analysis, err = a.analyzer.Analyze(series.Candles)
		if err != nil {
			if !structure.IsInsufficientData(err) {
				res.err = err
				return res
			}
			analysis = nil
		}
	}

	res.score = a.scorer.Score(tf, results, analysis, series.HasGaps)
	return res
}

// resultOrNil avoids storing a typed nil in the result slice.
func resultOrNil(r indicators.Result, err error) indicators.Result {
	if err != nil {
		return nil
	}
	return r
}

// consolidate folds usable timeframe results into one Signal.
func (a *Aggregator) consolidate(symbol string, usable []timeframeResult, anyDegraded bool) (*Signal, error) {
	sig := &Signal{
		PredictionID: uuid.NewString(),
		Symbol:       symbol,
		GeneratedAt:  time.Now().UTC(),
		Degraded:     anyDegraded,
	}

	// Per-timeframe confidence: scale |rawScore| into [0,100], apply the
	// reliability weight and the committed feedback multiplier, cap at 95.
	var longWeight, shortWeight float64
	for _, r := range usable {
		base := math.Min(100, math.Abs(r.score.RawScore)*100)
		mult := 1.0
		if a.feedback != nil {
			mult = a.feedback.Multiplier(symbol, r.timeframe)
		}
		adjusted := int(math.Round(math.Min(MaxConfidence, base*r.timeframe.ReliabilityWeight()*mult)))

		sig.Timeframes = append(sig.Timeframes, r.timeframe)
		sig.Confluence = append(sig.Confluence, r.score)
		sig.PerTimeframe = append(sig.PerTimeframe, TimeframeSignal{
			Timeframe:  r.timeframe,
			Direction:  r.score.Direction,
			Confidence: adjusted,
			RawScore:   r.score.RawScore,
			Degraded:   r.score.Degraded,
		})
		if r.score.Degraded {
			sig.Degraded = true
		}

		switch r.score.Direction {
		case market.DirectionLong:
			longWeight += r.timeframe.ReliabilityWeight()
		case market.DirectionShort:
			shortWeight += r.timeframe.ReliabilityWeight()
		}
	}

	sig.Direction = resolveDirection(longWeight, shortWeight, sig.PerTimeframe)
	sig.Confidence = consolidatedConfidence(sig.Direction, sig.PerTimeframe)

	// Entry is the latest close of the finest usable timeframe.
	finest := usable[0]
	for _, r := range usable[1:] {
		if r.timeframe.Rank() < finest.timeframe.Rank() {
			finest = r
		}
	}
	sig.EntryPrice = finest.series.LastClose()

	a.applyRiskLevels(sig, usable)

	a.logger.Info().
		Str("symbol", symbol).
		Str("prediction_id", sig.PredictionID).
		Str("direction", string(sig.Direction)).
		Int("confidence", sig.Confidence).
		Bool("degraded", sig.Degraded).
		Bool("bound_limited", sig.BoundLimited).
		Msg("signal generated")

	return sig, nil
}

// resolveDirection is the weighted vote across timeframes. On a tie the
// highest-timeframe non-neutral vote wins over the lower-timeframe
// minority.
func resolveDirection(longWeight, shortWeight float64, perTF []TimeframeSignal) market.Direction {
	const voteEpsilon = 1e-9
	if longWeight < voteEpsilon && shortWeight < voteEpsilon {
		return market.DirectionNeutral
	}
	if math.Abs(longWeight-shortWeight) > voteEpsilon {
		if longWeight > shortWeight {
			return market.DirectionLong
		}
		return market.DirectionShort
	}

	// Tie: defer to the highest-ranked timeframe that voted.
	sorted := make([]TimeframeSignal, len(perTF))
	copy(sorted, perTF)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timeframe.Rank() > sorted[j].Timeframe.Rank()
	})
	for _, ts := range sorted {
		if ts.Direction != market.DirectionNeutral {
			return ts.Direction
		}
	}
	return market.DirectionNeutral
}

// consolidatedConfidence is the reliability-weighted mean of the
// per-timeframe confidences that agree with the final direction.
func consolidatedConfidence(dir market.Direction, perTF []TimeframeSignal) int {
	if dir == market.DirectionNeutral {
		return 0
	}
	var sum, weightSum float64
	for _, ts := range perTF {
		if ts.Direction != dir {
			continue
		}
		w := ts.Timeframe.ReliabilityWeight()
		sum += float64(ts.Confidence) * w
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return int(math.Round(math.Min(MaxConfidence, sum/weightSum)))
}

// applyRiskLevels sets ATR-scaled stop and target, clamped to the
// 15%/30% bounds. A clamped signal is still emitted, flagged as
// bound-limited.
func (a *Aggregator) applyRiskLevels(sig *Signal, usable []timeframeResult) {
	// Reference ATR: the most reliable timeframe that produced one.
	var ref timeframeResult
	for _, r := range usable {
		if r.atr == nil {
			continue
		}
		if ref.atr == nil || r.timeframe.ReliabilityWeight() > ref.timeframe.ReliabilityWeight() {
			ref = r
		}
	}

	entry := sig.EntryPrice
	if entry <= 0 {
		return
	}

	stopDist := entry * MaxStopFraction
	targetDist := entry * MaxTargetFraction
	if ref.atr != nil {
		sig.Volatility = ref.atr.Value / entry
		stopDist = ref.atr.Value * a.cfg.StopATRMultiplier
		targetDist = ref.atr.Value * a.cfg.TargetATRMultiplier
	}

	if stopDist > entry*MaxStopFraction {
		stopDist = entry * MaxStopFraction
		sig.BoundLimited = true
	}
	if targetDist > entry*MaxTargetFraction {
		targetDist = entry * MaxTargetFraction
		sig.BoundLimited = true
	}

	// NEUTRAL keeps the long-side convention so the invariants hold on
	// every emitted signal.
	if sig.Direction == market.DirectionShort {
		sig.StopLoss = entry + stopDist
		sig.TakeProfit = entry - targetDist
	} else {
		sig.StopLoss = entry - stopDist
		sig.TakeProfit = entry + targetDist
	}
}
