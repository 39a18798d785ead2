package engine

import "time"

// EventKind identifies a domain event emitted by the engine. Analytics
// consumers subscribe to these instead of the engine logging side-channel
// analytics inline.
type EventKind string

const (
	EventScoreComputed           EventKind = "score_computed"
	EventRecommendationDismissed EventKind = "recommendation_dismissed"
	EventRecommendationCompleted EventKind = "recommendation_completed"
	EventDataMerged              EventKind = "data_merged"
)

// Event is one domain event. Only identifiers are carried; consumers can
// load full records from the store.
type Event struct {
	Kind             EventKind
	UserID           string
	RecommendationID string // set for recommendation lifecycle events
	At               time.Time
}

// EventSink consumes domain events.
type EventSink interface {
	Emit(Event)
}

// Bus is a lightweight in-process pub-sub sink backed by a buffered
// channel. Publishing never blocks: when the buffer is full the event is
// dropped, which is acceptable for analytics.
type Bus struct {
	ch chan Event
}

// NewBus creates a bus with the given buffer size.
func NewBus(buffer int) *Bus {
	return &Bus{ch: make(chan Event, buffer)}
}

// Emit enqueues the event without blocking.
func (b *Bus) Emit(evt Event) {
	select {
	case b.ch <- evt:
	default:
	}
}

// Subscribe returns the read-only consumer channel.
func (b *Bus) Subscribe() <-chan Event {
	return b.ch
}

// discardSink drops all events; used when no sink is configured.
type discardSink struct{}

func (discardSink) Emit(Event) {}
