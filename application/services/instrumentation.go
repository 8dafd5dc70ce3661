package services

import (
	"context"
	"time"

	"github.com/LoadingLlama/relation/application/ports"
	"github.com/LoadingLlama/relation/application/session"
	"github.com/LoadingLlama/relation/domain/events"
	pkgerrors "github.com/LoadingLlama/relation/pkg/errors"
	"github.com/LoadingLlama/relation/pkg/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// eventSource is any entity that buffers uncommitted domain events
type eventSource interface {
	GetUncommittedEvents() []events.DomainEvent
	MarkEventsAsCommitted()
}

// instrument wraps an operation in a span and records its outcome
func instrument(ctx context.Context, recorder observability.Recorder, operation string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := observability.StartSpan(ctx, operation, attrs...)
	start := time.Now()

	err := fn(ctx)

	recorder.RecordOperation(ctx, operation, time.Since(start), err)
	observability.EndSpan(span, err)
	return err
}

// publishEvents sends and clears the buffered events of every source.
// Publish failures are logged and never surfaced.
func publishEvents(ctx context.Context, publisher ports.EventPublisher, logger *zap.Logger, sources ...eventSource) {
	var batch []events.DomainEvent
	for _, src := range sources {
		if src == nil {
			continue
		}
		batch = append(batch, src.GetUncommittedEvents()...)
		src.MarkEventsAsCommitted()
	}
	if len(batch) == 0 || publisher == nil {
		return
	}
	if err := publisher.PublishBatch(ctx, batch); err != nil {
		logger.Warn("Failed to publish domain events",
			zap.Int("count", len(batch)),
			zap.Error(err))
	}
}

// discardEvents clears buffered events for a write that never reached the remote store
func discardEvents(sources ...eventSource) {
	for _, src := range sources {
		if src != nil {
			src.MarkEventsAsCommitted()
		}
	}
}

// asPersistence maps a remote store failure to a PERSISTENCE error
func asPersistence(operation string, err error) error {
	if err == nil || pkgerrors.IsPersistence(err) {
		return err
	}
	return pkgerrors.NewPersistenceError(operation, err)
}

// changeNotifier fans out local state changes to listeners
type changeNotifier struct {
	listeners []func()
}

// OnChange registers fn to run after every local mutation
func (n *changeNotifier) OnChange(fn func()) {
	n.listeners = append(n.listeners, fn)
}

func (n *changeNotifier) notifyChange() {
	for _, fn := range n.listeners {
		fn()
	}
}

// persistOffline refreshes the offline snapshot. The write is best effort:
// Persist logs its own failure and the remote outcome decides the result.
func persistOffline(ctx context.Context, sess *session.Session) {
	_ = sess.Persist(ctx)
}
