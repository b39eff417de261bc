// Package metrics exposes Prometheus instrumentation for the signal
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the pipeline's Prometheus collectors.
type Recorder struct {
	signalsGenerated   *prometheus.CounterVec
	signalsRejected    prometheus.Counter
	degradedTimeframes prometheus.Counter
	outcomesRecorded   *prometheus.CounterVec
	generationLatency  prometheus.Histogram
	simulationLatency  prometheus.Histogram
}

// New creates and registers the pipeline collectors on the default
// registry.
func New() *Recorder {
	return &Recorder{
		signalsGenerated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signal_engine_signals_generated_total",
				Help: "Consolidated signals emitted, by direction",
			},
			[]string{"direction"},
		),
		signalsRejected: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "signal_engine_signals_rejected_total",
				Help: "Signal generations rejected for insufficient confluence",
			},
		),
		degradedTimeframes: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "signal_engine_degraded_signals_total",
				Help: "Signals emitted with a degraded-quality flag",
			},
		),
		outcomesRecorded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signal_engine_outcomes_recorded_total",
				Help: "Accuracy records closed, by terminal outcome",
			},
			[]string{"outcome"},
		),
		generationLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "signal_engine_generation_duration_seconds",
				Help:    "Duration of consolidated signal generation",
				Buckets: prometheus.DefBuckets,
			},
		),
		simulationLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "signal_engine_simulation_duration_seconds",
				Help:    "Duration of Monte Carlo risk simulation",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// RecordSignal records an emitted signal.
func (r *Recorder) RecordSignal(direction string, degraded bool) {
	r.signalsGenerated.WithLabelValues(direction).Inc()
	if degraded {
		r.degradedTimeframes.Inc()
	}
}

// RecordRejection records a generation rejected for insufficient
// confluence.
func (r *Recorder) RecordRejection() {
	r.signalsRejected.Inc()
}

// RecordOutcome records a closed accuracy record.
func (r *Recorder) RecordOutcome(outcome string) {
	r.outcomesRecorded.WithLabelValues(outcome).Inc()
}

// RecordGenerationLatency records signal-generation duration in
// seconds.
func (r *Recorder) RecordGenerationLatency(seconds float64) {
	r.generationLatency.Observe(seconds)
}

// RecordSimulationLatency records Monte Carlo duration in seconds.
func (r *Recorder) RecordSimulationLatency(seconds float64) {
	r.simulationLatency.Observe(seconds)
}
