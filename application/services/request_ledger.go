package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/LoadingLlama/relation/application/ports"
	"github.com/LoadingLlama/relation/application/session"
	"github.com/LoadingLlama/relation/domain/config"
	"github.com/LoadingLlama/relation/domain/core/entities"
	"github.com/LoadingLlama/relation/domain/core/valueobjects"
	pkgerrors "github.com/LoadingLlama/relation/pkg/errors"
	"github.com/LoadingLlama/relation/pkg/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CreateRequestInput is what a sender supplies for a new request.
// The sender is always the session viewer.
type CreateRequestInput struct {
	ToIdentifier string
	ToName       string
	RelationType string
	Hidden       bool
}

// RequestView pairs a request with its direction for the viewer
type RequestView struct {
	Request   *entities.ConnectionRequest
	Direction entities.Direction
}

// RequestLedger runs the connection request state machine for one session.
// Accept is the only path that creates a relationship.
type RequestLedger struct {
	changeNotifier

	mu         sync.Mutex
	session    *session.Session
	requests   ports.RequestRepository
	identities ports.IdentityRepository
	store      *RelationshipStore
	publisher  ports.EventPublisher
	config     *config.DomainConfig
	recorder   observability.Recorder
	logger     *zap.Logger
}

// NewRequestLedger creates a ledger bound to a session and its relationship store
func NewRequestLedger(
	sess *session.Session,
	store *RelationshipStore,
	publisher ports.EventPublisher,
	cfg *config.DomainConfig,
	recorder observability.Recorder,
	logger *zap.Logger,
) *RequestLedger {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if recorder == nil {
		recorder = observability.NopRecorder{}
	}
	repos := sess.Repositories()
	return &RequestLedger{
		session:    sess,
		requests:   repos.Requests,
		identities: repos.Identities,
		store:      store,
		publisher:  publisher,
		config:     cfg,
		recorder:   recorder,
		logger:     logger,
	}
}

// Create sends a new pending request from the viewer.
//
// A remote failure keeps the request locally and returns it together with a
// PERSISTENCE error.
func (l *RequestLedger) Create(ctx context.Context, input CreateRequestInput) (*entities.ConnectionRequest, error) {
	var result *entities.ConnectionRequest

	err := instrument(ctx, l.recorder, "request.create", func(ctx context.Context) error {
		viewer, err := l.session.Viewer()
		if err != nil {
			return err
		}

		digits := valueobjects.NormalizeIdentifier(input.ToIdentifier)
		if len(digits) < l.config.MinIdentifierDigits {
			return pkgerrors.NewValidationError(
				fmt.Sprintf("identifier must contain at least %d digits", l.config.MinIdentifierDigits))
		}
		kind, err := valueobjects.NewRequestKind(input.RelationType, l.config)
		if err != nil {
			return err
		}
		toName := strings.TrimSpace(input.ToName)
		if toName == "" {
			return pkgerrors.NewValidationError("recipient name is required")
		}

		hash := valueobjects.HashIdentifier(digits)
		if hash.Equals(viewer.IdentifierHash()) {
			return pkgerrors.NewValidationError("cannot send a request to yourself")
		}

		l.mu.Lock()
		defer l.mu.Unlock()

		for _, existing := range l.session.Requests() {
			if existing.Status() == entities.StatusPending &&
				existing.FromID().Equals(viewer.ID()) &&
				existing.ToIdentifierHash().Equals(hash) {
				return pkgerrors.NewInvalidStateError("a pending request to this identifier already exists")
			}
		}

		req, err := entities.NewConnectionRequest(viewer.ID(), hash, toName, kind, input.Hidden)
		if err != nil {
			return err
		}

		if recipient := l.resolveRecipient(ctx, hash); recipient != nil {
			if _, connected := l.session.RelationshipForPair(viewer.ID(), recipient.ID()); connected {
				return pkgerrors.NewInvalidStateError("already connected to this identity")
			}
			req.ResolveRecipient(recipient.ID())
			l.session.PutIdentity(recipient)
		}

		l.session.PutRequest(req)
		result = req

		if err := l.requests.Save(ctx, req); err != nil {
			l.logger.Warn("Remote request save failed, keeping local copy",
				zap.String("request_id", req.ID()),
				zap.Error(err))
			l.recorder.RecordFallback(ctx, "request.create", observability.PolicyRetained)
			discardEvents(req)
			return asPersistence("create request", err)
		}

		publishEvents(ctx, l.publisher, l.logger, req)

		l.logger.Info("Request created",
			zap.String("request_id", req.ID()),
			zap.Bool("resolved", !req.ToID().IsZero()))
		return nil
	}, attribute.Bool("hidden", input.Hidden))

	if result != nil {
		persistOffline(ctx, l.session)
		l.notifyChange()
	}
	return result, err
}

// resolveRecipient looks the hash up remotely. Lookup failures leave the
// request unresolved; the recipient still matches it by hash later.
func (l *RequestLedger) resolveRecipient(ctx context.Context, hash valueobjects.IdentifierHash) *entities.Identity {
	identity, err := l.identities.GetByIdentifierHash(ctx, hash)
	if err != nil {
		if !pkgerrors.IsNotFound(err) {
			l.logger.Warn("Recipient lookup failed", zap.Error(err))
		}
		return nil
	}
	return identity
}

// Accept moves an incoming pending request to Accepted, creates the
// relationship and credits both parties. When chosenType is empty the
// request's own type is used.
//
// A remote failure keeps the local transition and relationship; the
// relationship is returned together with a PERSISTENCE error.
func (l *RequestLedger) Accept(ctx context.Context, requestID, chosenType string) (*entities.Relationship, error) {
	var result *entities.Relationship
	changed := false

	err := instrument(ctx, l.recorder, "request.accept", func(ctx context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()

		viewer, original, err := l.incoming(requestID)
		if err != nil {
			return err
		}

		relationType := original.RelationType()
		if strings.TrimSpace(chosenType) != "" {
			kind, err := valueobjects.NewRequestKind(chosenType, l.config)
			if err != nil {
				return err
			}
			relationType = kind.RelationType()
		}

		now := time.Now().UTC()
		accepted := original.Clone()
		if err := accepted.Accept(viewer.ID(), relationType, now); err != nil {
			return err
		}

		rel, created, relErr := l.store.CreateFromAcceptance(ctx, accepted.FromID(), viewer.ID(), relationType, accepted.Hidden())
		if rel == nil {
			return relErr
		}

		l.session.PutRequest(accepted)
		changed = true
		result = rel

		var remoteErr error
		if err := l.requests.Save(ctx, accepted); err != nil {
			l.logger.Warn("Remote request save failed, keeping accepted state locally",
				zap.String("request_id", requestID),
				zap.Error(err))
			l.recorder.RecordFallback(ctx, "request.accept", observability.PolicyRetained)
			discardEvents(accepted)
			remoteErr = asPersistence("accept request", err)
		} else {
			publishEvents(ctx, l.publisher, l.logger, accepted)
		}
		if remoteErr == nil {
			remoteErr = relErr
		}

		// Only the acceptance that verifies the pair credits the endpoints
		if created {
			for _, id := range []valueobjects.IdentityID{accepted.FromID(), viewer.ID()} {
				if err := l.incrementScore(ctx, id, now); err != nil && remoteErr == nil {
					remoteErr = err
				}
			}
		}

		l.logger.Info("Request accepted",
			zap.String("request_id", requestID),
			zap.String("relationship_id", rel.ID()),
			zap.String("relation_type", relationType.String()))
		return remoteErr
	}, attribute.String("request_id", requestID))

	if changed {
		persistOffline(ctx, l.session)
		l.notifyChange()
	}
	return result, err
}

// incrementScore credits one verification. The local score is a
// profile-style field and is rolled back when the remote increment fails.
func (l *RequestLedger) incrementScore(ctx context.Context, id valueobjects.IdentityID, at time.Time) error {
	original, known := l.session.Lookup(id)
	var updated *entities.Identity
	if known {
		updated = original.Clone()
		updated.IncrementScore(at)
		l.session.PutIdentity(updated)
	}

	score, err := l.identities.IncrementScore(ctx, id)
	if err != nil {
		l.logger.Warn("Remote score increment failed",
			zap.String("identity_id", id.String()),
			zap.Error(err))
		l.recorder.RecordFallback(ctx, "identity.increment_score", observability.PolicyRolledBack)
		if known {
			l.session.PutIdentity(original)
		}
		return asPersistence("increment score", err)
	}

	if known {
		if score != updated.Score() {
			l.logger.Debug("Local score differs from remote",
				zap.String("identity_id", id.String()),
				zap.Int("local", updated.Score()),
				zap.Int("remote", score))
		}
		publishEvents(ctx, l.publisher, l.logger, updated)
	}
	return nil
}

// Decline moves an incoming pending request to Declined. The request stays
// visible as a terminal record. A remote failure keeps the local transition.
func (l *RequestLedger) Decline(ctx context.Context, requestID string) error {
	changed := false

	err := instrument(ctx, l.recorder, "request.decline", func(ctx context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()

		viewer, original, err := l.incoming(requestID)
		if err != nil {
			return err
		}

		declined := original.Clone()
		if err := declined.Decline(viewer.ID(), time.Now().UTC()); err != nil {
			return err
		}
		l.session.PutRequest(declined)
		changed = true

		if err := l.requests.Save(ctx, declined); err != nil {
			l.logger.Warn("Remote request save failed, keeping declined state locally",
				zap.String("request_id", requestID),
				zap.Error(err))
			l.recorder.RecordFallback(ctx, "request.decline", observability.PolicyRetained)
			discardEvents(declined)
			return asPersistence("decline request", err)
		}

		publishEvents(ctx, l.publisher, l.logger, declined)
		l.logger.Info("Request declined", zap.String("request_id", requestID))
		return nil
	}, attribute.String("request_id", requestID))

	if changed {
		persistOffline(ctx, l.session)
		l.notifyChange()
	}
	return err
}

// Withdraw removes one of the viewer's pending outgoing requests entirely.
// A remote failure restores the request locally.
func (l *RequestLedger) Withdraw(ctx context.Context, requestID string) error {
	changed := false

	err := instrument(ctx, l.recorder, "request.withdraw", func(ctx context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()

		viewer, err := l.session.Viewer()
		if err != nil {
			return err
		}
		original, ok := l.session.Request(requestID)
		if !ok {
			return pkgerrors.NewNotFoundError("request")
		}

		withdrawn := original.Clone()
		if err := withdrawn.Withdraw(viewer.ID(), time.Now().UTC()); err != nil {
			return err
		}

		_, index, _ := l.session.RemoveRequest(requestID)

		if err := l.requests.Delete(ctx, requestID); err != nil && !pkgerrors.IsNotFound(err) {
			l.logger.Error("Remote request delete failed, restoring",
				zap.String("request_id", requestID),
				zap.Error(err))
			l.recorder.RecordFallback(ctx, "request.withdraw", observability.PolicyRolledBack)
			l.session.InsertRequest(index, original)
			discardEvents(withdrawn)
			return asPersistence("withdraw request", err)
		}

		changed = true
		publishEvents(ctx, l.publisher, l.logger, withdrawn)
		l.logger.Info("Request withdrawn", zap.String("request_id", requestID))
		return nil
	}, attribute.String("request_id", requestID))

	if changed {
		persistOffline(ctx, l.session)
		l.notifyChange()
	}
	return err
}

// Get returns a request visible to the viewer
func (l *RequestLedger) Get(requestID string) (RequestView, error) {
	viewer, err := l.session.Viewer()
	if err != nil {
		return RequestView{}, err
	}
	req, ok := l.session.Request(requestID)
	if !ok || !visibleTo(req, viewer) {
		return RequestView{}, pkgerrors.NewNotFoundError("request")
	}
	return RequestView{Request: req, Direction: req.Direction(viewer.ID())}, nil
}

// List returns the viewer's requests in query order. An empty direction
// returns both directions.
func (l *RequestLedger) List(direction entities.Direction) ([]RequestView, error) {
	viewer, err := l.session.Viewer()
	if err != nil {
		return nil, err
	}

	views := []RequestView{}
	for _, req := range l.session.Requests() {
		if !visibleTo(req, viewer) {
			continue
		}
		d := req.Direction(viewer.ID())
		if direction != "" && d != direction {
			continue
		}
		views = append(views, RequestView{Request: req, Direction: d})
	}
	return views, nil
}

// incoming loads a request the viewer is allowed to answer. Requests that
// are neither sent by nor addressed to the viewer are reported as missing.
func (l *RequestLedger) incoming(requestID string) (*entities.Identity, *entities.ConnectionRequest, error) {
	viewer, err := l.session.Viewer()
	if err != nil {
		return nil, nil, err
	}
	req, ok := l.session.Request(requestID)
	if !ok || !visibleTo(req, viewer) {
		return nil, nil, pkgerrors.NewNotFoundError("request")
	}
	return viewer, req, nil
}

func visibleTo(req *entities.ConnectionRequest, viewer *entities.Identity) bool {
	return req.FromID().Equals(viewer.ID()) || req.IsAddressedTo(viewer)
}
