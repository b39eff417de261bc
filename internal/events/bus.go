// Package events provides the in-process notification bus the excluded
// API/UI collaborator subscribes to. The core publishes an event for
// every pipeline operation; delivery is asynchronous and never blocks
// the pipeline.
package events

import (
	"sync"
	"time"
)

// EventType identifies the pipeline event kinds.
type EventType string

const (
	EventSignalGenerated EventType = "SIGNAL_GENERATED"
	EventSignalDegraded  EventType = "SIGNAL_DEGRADED"
	EventSignalRejected  EventType = "SIGNAL_REJECTED"
	EventRiskAssessed    EventType = "RISK_ASSESSED"
	EventOutcomeRecorded EventType = "OUTCOME_RECORDED"
	EventStatsUpdated    EventType = "STATS_UPDATED"
)

// Event is one pipeline notification.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber handles events.
type Subscriber func(Event)

// Bus manages event publishing and subscriptions.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[EventType][]Subscriber),
	}
}

// Subscribe registers a subscriber for one event type.
func (b *Bus) Subscribe(eventType EventType, subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for every event.
func (b *Bus) SubscribeAll(subscriber Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allSubs = append(b.allSubs, subscriber)
}

// Publish sends an event to all matching subscribers. Each subscriber
// runs in its own goroutine so a slow consumer cannot stall the
// pipeline.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	for _, sub := range b.subscribers[event.Type] {
		go sub(event)
	}
	for _, sub := range b.allSubs {
		go sub(event)
	}
}

// PublishSignalGenerated publishes a consolidated-signal event.
func (b *Bus) PublishSignalGenerated(predictionID, symbol, direction string, confidence int, degraded bool) {
	eventType := EventSignalGenerated
	if degraded {
		eventType = EventSignalDegraded
	}
	b.Publish(Event{
		Type: eventType,
		Data: map[string]interface{}{
			"prediction_id": predictionID,
			"symbol":        symbol,
			"direction":     direction,
			"confidence":    confidence,
			"degraded":      degraded,
		},
	})
}

// PublishRiskAssessed publishes a risk-assessment event.
func (b *Bus) PublishRiskAssessed(predictionID string, riskScore float64, riskLevel string) {
	b.Publish(Event{
		Type: EventRiskAssessed,
		Data: map[string]interface{}{
			"prediction_id": predictionID,
			"risk_score":    riskScore,
			"risk_level":    riskLevel,
		},
	})
}

// PublishStatsUpdated publishes a committed refresh of one performance
// bucket after a terminal transition.
func (b *Bus) PublishStatsUpdated(symbol, timeframe string, winRate float64, sampleSize int) {
	b.Publish(Event{
		Type: EventStatsUpdated,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"timeframe":   timeframe,
			"win_rate":    winRate,
			"sample_size": sampleSize,
		},
	})
}

// PublishOutcomeRecorded publishes a terminal accuracy transition.
func (b *Bus) PublishOutcomeRecorded(predictionID, symbol, outcome string, realizedReturn float64) {
	b.Publish(Event{
		Type: EventOutcomeRecorded,
		Data: map[string]interface{}{
			"prediction_id":   predictionID,
			"symbol":          symbol,
			"outcome":         outcome,
			"realized_return": realizedReturn,
		},
	})
}
