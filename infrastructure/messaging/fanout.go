// Package messaging composes the event publishers.
package messaging

import (
	"context"
	"errors"

	"github.com/LoadingLlama/relation/application/ports"
	"github.com/LoadingLlama/relation/domain/events"
)

// Fanout publishes every batch to each publisher in order. All publishers
// are attempted; their errors are joined.
type Fanout []ports.EventPublisher

var _ ports.EventPublisher = Fanout(nil)

// Publish sends a single event
func (f Fanout) Publish(ctx context.Context, event events.DomainEvent) error {
	return f.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch sends the batch to every publisher
func (f Fanout) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishBatch(ctx, domainEvents); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
