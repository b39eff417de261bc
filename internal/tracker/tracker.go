// Package tracker closes out emitted signals against real outcomes,
// maintains per (symbol, timeframe) performance statistics, and feeds a
// bounded confidence-adjustment multiplier back into aggregation.
//
// Buckets form a fixed arena indexed by (symbol, timeframe); each
// bucket locks independently so unrelated symbols never contend. The
// multiplier the aggregator reads is a committed snapshot published
// atomically after a terminal transition: readers never observe a
// value mid-update.
package tracker

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"signal-engine/internal/aggregator"
	"signal-engine/internal/market"
)

// Outcome is the lifecycle state of an accuracy record.
type Outcome string

const (
	OutcomeOpen      Outcome = "Open"
	OutcomeWin       Outcome = "Win"
	OutcomeLoss      Outcome = "Loss"
	OutcomeBreakeven Outcome = "Breakeven"
)

// ProfitFactorCap is the sentinel reported when gross loss is zero but
// gross profit is not; profit factor is never infinity or NaN.
const ProfitFactorCap = 999.0

var (
	// ErrRecordNotFound reports an unknown prediction ID.
	ErrRecordNotFound = errors.New("accuracy record not found")
	// ErrRecordClosed reports a close attempt on a record already in a
	// terminal state. Records are never re-opened.
	ErrRecordClosed = errors.New("accuracy record already closed")
	// ErrDuplicateRecord reports a second Track call for one prediction.
	ErrDuplicateRecord = errors.New("accuracy record already tracked")
	// ErrUntrackableSignal reports a NEUTRAL signal, which has no
	// outcome to track.
	ErrUntrackableSignal = errors.New("neutral signal cannot be tracked")
)

// Record is the accuracy lifecycle of one tracked signal.
type Record struct {
	PredictionID   string           `json:"prediction_id"`
	Symbol         string           `json:"symbol"`
	Timeframe      market.Timeframe `json:"timeframe"`
	Direction      market.Direction `json:"direction"`
	EntryPrice     float64          `json:"entry_price"`
	StopLoss       float64          `json:"stop_loss"`
	TakeProfit     float64          `json:"take_profit"`
	Outcome        Outcome          `json:"outcome"`
	OpenedAt       time.Time        `json:"opened_at"`
	ClosedAt       *time.Time       `json:"closed_at,omitempty"`
	ExpiresAt      time.Time        `json:"expires_at"`
	RealizedReturn float64          `json:"realized_return"`
}

// Stats is the aggregate performance for one (symbol, timeframe).
type Stats struct {
	Symbol       string           `json:"symbol"`
	Timeframe    market.Timeframe `json:"timeframe"`
	WinRate      float64          `json:"win_rate"`
	ProfitFactor float64          `json:"profit_factor"`
	AvgReturn    float64          `json:"avg_return"`
	SampleSize   int              `json:"sample_size"`
	Wins         int              `json:"wins"`
	Losses       int              `json:"losses"`
	Breakevens   int              `json:"breakevens"`
	GrossProfit  float64          `json:"gross_profit"`
	GrossLoss    float64          `json:"gross_loss"`
}

// Config holds the feedback policy.
type Config struct {
	NeutralBaseline float64       `yaml:"neutral_baseline" default:"0.5" validate:"gte=0,lte=1"`
	Sensitivity     float64       `yaml:"sensitivity" default:"0.4" validate:"gte=0"`
	MultiplierMin   float64       `yaml:"multiplier_min" default:"0.9" validate:"gt=0"`
	MultiplierMax   float64       `yaml:"multiplier_max" default:"1.1" validate:"gt=0"`
	RecentWindow    int           `yaml:"recent_window" default:"20" validate:"gt=0"`
	DefaultTimeout  time.Duration `yaml:"default_timeout" default:"72h"`
}

type bucketKey struct {
	symbol    string
	timeframe market.Timeframe
}

// bucket is one independently lockable (symbol, timeframe) cell.
type bucket struct {
	mu         sync.Mutex
	stats      Stats
	recent     []Outcome // ring of the last RecentWindow terminal outcomes
	multiplier atomic.Uint64 // committed float64 bits
}

func (b *bucket) storeMultiplier(m float64) {
	b.multiplier.Store(math.Float64bits(m))
}

func (b *bucket) loadMultiplier() float64 {
	return math.Float64frombits(b.multiplier.Load())
}

// Tracker is the accuracy feedback component.
type Tracker struct {
	mu       sync.RWMutex // guards the maps only, never held during stat updates
	buckets  map[bucketKey]*bucket
	records  map[string]*Record
	byBucket map[string]bucketKey
	cfg      Config
	logger   zerolog.Logger
}

// New builds a tracker.
func New(cfg Config, logger zerolog.Logger) (*Tracker, error) {
	if cfg.MultiplierMin > cfg.MultiplierMax {
		return nil, &market.InvalidParameterError{Name: "multiplier bounds", Reason: "min exceeds max"}
	}
	if cfg.RecentWindow <= 0 {
		return nil, &market.InvalidParameterError{Name: "recent_window", Reason: "must be positive"}
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 72 * time.Hour
	}
	return &Tracker{
		buckets:  make(map[bucketKey]*bucket),
		records:  make(map[string]*Record),
		byBucket: make(map[string]bucketKey),
		cfg:      cfg,
		logger:   logger.With().Str("component", "AccuracyTracker").Logger(),
	}, nil
}

// Track accepts a signal for accuracy tracking and opens its record.
// tf is the bucket the outcome will be attributed to; a zero timeout
// falls back to the configured default.
func (t *Tracker) Track(sig *aggregator.Signal, tf market.Timeframe, timeout time.Duration) (*Record, error) {
	if sig == nil || sig.Direction == market.DirectionNeutral {
		return nil, ErrUntrackableSignal
	}
	if !tf.Valid() {
		return nil, &market.InvalidParameterError{Name: "timeframe", Reason: "unknown timeframe key " + string(tf)}
	}
	if timeout <= 0 {
		timeout = t.cfg.DefaultTimeout
	}

	rec := &Record{
		PredictionID: sig.PredictionID,
		Symbol:       sig.Symbol,
		Timeframe:    tf,
		Direction:    sig.Direction,
		EntryPrice:   sig.EntryPrice,
		StopLoss:     sig.StopLoss,
		TakeProfit:   sig.TakeProfit,
		Outcome:      OutcomeOpen,
		OpenedAt:     sig.GeneratedAt,
		ExpiresAt:    sig.GeneratedAt.Add(timeout),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.records[rec.PredictionID]; exists {
		return nil, ErrDuplicateRecord
	}
	key := bucketKey{symbol: sig.Symbol, timeframe: tf}
	if _, ok := t.buckets[key]; !ok {
		b := &bucket{stats: Stats{Symbol: sig.Symbol, Timeframe: tf}}
		b.storeMultiplier(1.0)
		t.buckets[key] = b
	}
	t.records[rec.PredictionID] = rec
	t.byBucket[rec.PredictionID] = key

	t.logger.Debug().
		Str("prediction_id", rec.PredictionID).
		Str("symbol", rec.Symbol).
		Str("timeframe", string(tf)).
		Msg("signal tracked")

	return rec, nil
}

// RecordOutcome transitions a record to its terminal state from the
// observed exit. A price at or beyond the target is a Win, at or
// beyond the stop a Loss, anything in between (a timeout close) a
// Breakeven. Concurrent closes of the same record serialize on the
// bucket lock; the second close fails with ErrRecordClosed so no
// outcome is ever counted twice.
func (t *Tracker) RecordOutcome(predictionID string, exitPrice float64, exitTime time.Time) (*Record, error) {
	t.mu.RLock()
	rec, ok := t.records[predictionID]
	key := t.byBucket[predictionID]
	b := t.buckets[key]
	t.mu.RUnlock()
	if !ok || b == nil {
		return nil, ErrRecordNotFound
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if rec.Outcome != OutcomeOpen {
		return nil, ErrRecordClosed
	}

	outcome, ret := classify(rec, exitPrice)
	closed := exitTime
	rec.Outcome = outcome
	rec.ClosedAt = &closed
	rec.RealizedReturn = ret

	t.applyLocked(b, outcome, ret)

	t.logger.Info().
		Str("prediction_id", predictionID).
		Str("outcome", string(outcome)).
		Float64("realized_return", ret).
		Msg("outcome recorded")

	return rec, nil
}

// CloseExpired sweeps records past their timeout and closes them as
// Breakeven at entry price. Returns the number of records closed. The
// scan touches only fields immutable after Track; the lifecycle check
// happens under the bucket lock inside RecordOutcome, which rejects
// records a concurrent close already terminated.
func (t *Tracker) CloseExpired(now time.Time) int {
	type candidate struct {
		id    string
		entry float64
	}

	t.mu.RLock()
	var expired []candidate
	for id, rec := range t.records {
		if now.After(rec.ExpiresAt) {
			expired = append(expired, candidate{id: id, entry: rec.EntryPrice})
		}
	}
	t.mu.RUnlock()

	closed := 0
	for _, c := range expired {
		if _, err := t.RecordOutcome(c.id, c.entry, now); err == nil {
			closed++
		}
	}
	return closed
}

// Performance returns the committed stats for one bucket.
func (t *Tracker) Performance(symbol string, tf market.Timeframe) (Stats, bool) {
	t.mu.RLock()
	b := t.buckets[bucketKey{symbol: symbol, timeframe: tf}]
	t.mu.RUnlock()
	if b == nil {
		return Stats{Symbol: symbol, Timeframe: tf}, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats, true
}

// Record returns a copy of the accuracy record for a prediction.
func (t *Tracker) Record(predictionID string) (Record, bool) {
	t.mu.RLock()
	rec, ok := t.records[predictionID]
	key := t.byBucket[predictionID]
	b := t.buckets[key]
	t.mu.RUnlock()
	if !ok {
		return Record{}, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return *rec, true
}

// Multiplier is the aggregator-facing snapshot read. It returns the
// last committed confidence-adjustment multiplier for the bucket, or
// 1 when the bucket has no history. The read is lock-free.
func (t *Tracker) Multiplier(symbol string, tf market.Timeframe) float64 {
	t.mu.RLock()
	b := t.buckets[bucketKey{symbol: symbol, timeframe: tf}]
	t.mu.RUnlock()
	if b == nil {
		return 1.0
	}
	return b.loadMultiplier()
}

// applyLocked updates bucket stats after a terminal transition and
// commits the new multiplier. Caller holds b.mu.
func (t *Tracker) applyLocked(b *bucket, outcome Outcome, ret float64) {
	s := &b.stats
	s.SampleSize++
	switch outcome {
	case OutcomeWin:
		s.Wins++
	case OutcomeLoss:
		s.Losses++
	default:
		s.Breakevens++
	}
	if ret > 0 {
		s.GrossProfit += ret
	} else if ret < 0 {
		s.GrossLoss += -ret
	}

	s.WinRate = float64(s.Wins) / float64(s.SampleSize)
	s.AvgReturn += (ret - s.AvgReturn) / float64(s.SampleSize)
	switch {
	case s.GrossLoss > 0:
		s.ProfitFactor = math.Min(s.GrossProfit/s.GrossLoss, ProfitFactorCap)
	case s.GrossProfit > 0:
		s.ProfitFactor = ProfitFactorCap
	default:
		s.ProfitFactor = 0
	}

	b.recent = append(b.recent, outcome)
	if len(b.recent) > t.cfg.RecentWindow {
		b.recent = b.recent[len(b.recent)-t.cfg.RecentWindow:]
	}

	// Commit the new multiplier only after the stats are fully updated.
	b.storeMultiplier(t.multiplierFrom(b.recent))
}

// multiplierFrom derives the bounded confidence adjustment from the
// recent win rate against the neutral baseline. Breakevens do not vote.
func (t *Tracker) multiplierFrom(recent []Outcome) float64 {
	wins, losses := 0, 0
	for _, o := range recent {
		switch o {
		case OutcomeWin:
			wins++
		case OutcomeLoss:
			losses++
		}
	}
	if wins+losses == 0 {
		return 1.0
	}
	rate := float64(wins) / float64(wins+losses)
	m := 1 + (rate-t.cfg.NeutralBaseline)*t.cfg.Sensitivity
	return math.Max(t.cfg.MultiplierMin, math.Min(t.cfg.MultiplierMax, m))
}

// classify maps the exit price onto a terminal outcome and the
// direction-signed realized return.
func classify(rec *Record, exitPrice float64) (Outcome, float64) {
	ret := (exitPrice - rec.EntryPrice) / rec.EntryPrice
	if rec.Direction == market.DirectionShort {
		ret = -ret
	}

	switch rec.Direction {
	case market.DirectionLong:
		if exitPrice >= rec.TakeProfit {
			return OutcomeWin, ret
		}
		if exitPrice <= rec.StopLoss {
			return OutcomeLoss, ret
		}
	case market.DirectionShort:
		if exitPrice <= rec.TakeProfit {
			return OutcomeWin, ret
		}
		if exitPrice >= rec.StopLoss {
			return OutcomeLoss, ret
		}
	}
	return OutcomeBreakeven, ret
}
