// Package engine wires the signal pipeline together and exposes the
// operations consumed by the external API layer: signal generation,
// risk assessment, outcome recording and performance reads.
package engine

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"signal-engine/config"
	"signal-engine/internal/aggregator"
	"signal-engine/internal/confluence"
	"signal-engine/internal/events"
	"signal-engine/internal/market"
	"signal-engine/internal/metrics"
	"signal-engine/internal/montecarlo"
	"signal-engine/internal/structure"
	"signal-engine/internal/tracker"
)

// Engine is the facade over the signal-generation pipeline.
type Engine struct {
	aggregator *aggregator.Aggregator
	risk       *montecarlo.Engine
	tracker    *tracker.Tracker
	bus        *events.Bus
	metrics    *metrics.Recorder
	logger     zerolog.Logger
}

// New assembles an engine from its components. bus and recorder may be
// nil when eventing or instrumentation is not wanted.
func New(
	agg *aggregator.Aggregator,
	risk *montecarlo.Engine,
	trk *tracker.Tracker,
	bus *events.Bus,
	recorder *metrics.Recorder,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		aggregator: agg,
		risk:       risk,
		tracker:    trk,
		bus:        bus,
		metrics:    recorder,
		logger:     logger.With().Str("component", "Engine").Logger(),
	}
}

// FromConfig builds the full pipeline from a validated configuration
// and a candle provider.
func FromConfig(cfg *config.Config, provider market.CandleProvider, logger zerolog.Logger) (*Engine, error) {
	analyzer, err := structure.NewAnalyzer(cfg.Structure, logger)
	if err != nil {
		return nil, err
	}
	scorer, err := confluence.NewScorer(cfg.Confluence.Weights, cfg.Confluence.DeadZone, logger)
	if err != nil {
		return nil, err
	}
	trk, err := tracker.New(cfg.Tracker, logger)
	if err != nil {
		return nil, err
	}
	agg, err := aggregator.New(provider, scorer, analyzer, trk, cfg.Aggregator, cfg.Indicators, logger)
	if err != nil {
		return nil, err
	}
	risk, err := montecarlo.NewEngine(cfg.MonteCarlo, logger)
	if err != nil {
		return nil, err
	}

	var recorder *metrics.Recorder
	if cfg.Metrics {
		recorder = metrics.New()
	}

	return New(agg, risk, trk, events.NewBus(), recorder, logger), nil
}

// Bus exposes the event bus for external subscribers.
func (e *Engine) Bus() *events.Bus {
	return e.bus
}

// GenerateSignal runs the full pipeline for a symbol and returns the
// consolidated signal. Non-neutral signals are accepted for accuracy
// tracking automatically, attributed to the most reliable analyzed
// timeframe.
func (e *Engine) GenerateSignal(symbol string) (*aggregator.Signal, error) {
	start := time.Now()

	sig, err := e.aggregator.GenerateSignal(symbol)
	if err != nil {
		var ice *aggregator.InsufficientConfluenceError
		if errors.As(err, &ice) {
			if e.metrics != nil {
				e.metrics.RecordRejection()
			}
			if e.bus != nil {
				e.bus.Publish(events.Event{
					Type: events.EventSignalRejected,
					Data: map[string]interface{}{"symbol": symbol, "reason": err.Error()},
				})
			}
		}
		return nil, err
	}

	if sig.Direction != market.DirectionNeutral {
		if _, err := e.tracker.Track(sig, anchorTimeframe(sig), 0); err != nil {
			e.logger.Warn().Err(err).Str("prediction_id", sig.PredictionID).Msg("tracking skipped")
		}
	}

	if e.metrics != nil {
		e.metrics.RecordSignal(string(sig.Direction), sig.Degraded)
		e.metrics.RecordGenerationLatency(time.Since(start).Seconds())
	}
	if e.bus != nil {
		e.bus.PublishSignalGenerated(sig.PredictionID, sig.Symbol, string(sig.Direction), sig.Confidence, sig.Degraded)
	}

	return sig, nil
}

// AssessRisk runs the Monte Carlo simulation for a signal under an
// explicit seed.
func (e *Engine) AssessRisk(sig *aggregator.Signal, seed int64) (*montecarlo.Assessment, error) {
	start := time.Now()

	assessment, err := e.risk.Assess(sig, seed)
	if err != nil {
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.RecordSimulationLatency(time.Since(start).Seconds())
	}
	if e.bus != nil {
		e.bus.PublishRiskAssessed(assessment.PredictionID, assessment.RiskScore, string(assessment.RiskLevel))
	}

	return assessment, nil
}

// RecordOutcome closes a tracked prediction against the observed exit.
func (e *Engine) RecordOutcome(predictionID string, exitPrice float64, exitTime time.Time) error {
	rec, err := e.tracker.RecordOutcome(predictionID, exitPrice, exitTime)
	if err != nil {
		return err
	}

	if e.metrics != nil {
		e.metrics.RecordOutcome(string(rec.Outcome))
	}
	if e.bus != nil {
		e.bus.PublishOutcomeRecorded(rec.PredictionID, rec.Symbol, string(rec.Outcome), rec.RealizedReturn)
		if stats, ok := e.tracker.Performance(rec.Symbol, rec.Timeframe); ok {
			e.bus.PublishStatsUpdated(stats.Symbol, string(stats.Timeframe), stats.WinRate, stats.SampleSize)
		}
	}

	return nil
}

// CloseExpired sweeps open accuracy records past their timeout.
func (e *Engine) CloseExpired(now time.Time) int {
	return e.tracker.CloseExpired(now)
}

// GetPerformance returns the committed stats for one bucket. The
// second return reports whether the bucket has any history.
func (e *Engine) GetPerformance(symbol string, tf market.Timeframe) (tracker.Stats, bool) {
	return e.tracker.Performance(symbol, tf)
}

// anchorTimeframe picks the most reliable timeframe that participated
// in the signal; outcomes are attributed to that bucket.
func anchorTimeframe(sig *aggregator.Signal) market.Timeframe {
	best := sig.Timeframes[0]
	for _, tf := range sig.Timeframes[1:] {
		if tf.ReliabilityWeight() > best.ReliabilityWeight() {
			best = tf
		}
	}
	return best
}
