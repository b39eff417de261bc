package aggregator

import (
	"time"

	"signal-engine/internal/confluence"
	"signal-engine/internal/market"
)

// Risk bounds on emitted signals. A stop can never imply more than a
// 15% adverse move from entry, a target never more than a 30%
// favorable move.
const (
	MaxStopFraction   = 0.15
	MaxTargetFraction = 0.30
)

// Confidence is capped below certainty on purpose.
const MaxConfidence = 95

// TimeframeSignal is the unconsolidated per-timeframe view retained
// for inspection.
type TimeframeSignal struct {
	Timeframe  market.Timeframe `json:"timeframe"`
	Direction  market.Direction `json:"direction"`
	Confidence int              `json:"confidence"`
	RawScore   float64          `json:"raw_score"`
	Degraded   bool             `json:"degraded"`
}

// Signal is the consolidated multi-timeframe trading signal. It is
// immutable once emitted.
type Signal struct {
	PredictionID string              `json:"prediction_id"`
	Symbol       string              `json:"symbol"`
	Timeframes   []market.Timeframe  `json:"timeframes"`
	Direction    market.Direction    `json:"direction"`
	Confidence   int                 `json:"confidence"` // [0, 95]
	EntryPrice   float64             `json:"entry_price"`
	StopLoss     float64             `json:"stop_loss"`
	TakeProfit   float64             `json:"take_profit"`
	Volatility   float64             `json:"volatility"` // ATR relative to entry
	GeneratedAt  time.Time           `json:"generated_at"`
	BoundLimited bool                `json:"bound_limited"`
	Degraded     bool                `json:"degraded"`
	Confluence   []*confluence.Score `json:"confluence"`
	PerTimeframe []TimeframeSignal   `json:"per_timeframe"`
}
