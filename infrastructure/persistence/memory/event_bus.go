package memory

import (
	"context"
	"sync"

	"github.com/LoadingLlama/relation/application/ports"
	"github.com/LoadingLlama/relation/domain/events"

	"go.uber.org/zap"
)

// EventBus records published events in process. Used when no event bus is
// configured and in tests.
type EventBus struct {
	mu     sync.Mutex
	events []events.DomainEvent
	logger *zap.Logger
}

var _ ports.EventPublisher = (*EventBus)(nil)

// NewEventBus creates an in-process event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{logger: logger}
}

// Publish records a single event
func (b *EventBus) Publish(ctx context.Context, event events.DomainEvent) error {
	return b.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch records events in order
func (b *EventBus) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range evts {
		b.logger.Debug("Event published",
			zap.String("type", e.GetEventType()),
			zap.String("aggregate_id", e.GetAggregateID()))
	}
	b.events = append(b.events, evts...)
	return nil
}

// Published returns a copy of every recorded event
func (b *EventBus) Published() []events.DomainEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]events.DomainEvent, len(b.events))
	copy(out, b.events)
	return out
}

// Types returns the recorded event types in order
func (b *EventBus) Types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	types := make([]string, 0, len(b.events))
	for _, e := range b.events {
		types = append(types, e.GetEventType())
	}
	return types
}
