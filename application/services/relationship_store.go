package services

import (
	"context"
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

// RelationshipStore maintains the viewer's verified relationships and keeps
// them unique per unordered pair.
type RelationshipStore struct {
	changeNotifier

	mu        sync.Mutex
	session   *session.Session
	repo      ports.RelationshipRepository
	publisher ports.EventPublisher
	config    *config.DomainConfig
	recorder  observability.Recorder
	logger    *zap.Logger
}

// NewRelationshipStore creates a relationship store bound to a session
func NewRelationshipStore(
	sess *session.Session,
	publisher ports.EventPublisher,
	cfg *config.DomainConfig,
	recorder observability.Recorder,
	logger *zap.Logger,
) *RelationshipStore {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if recorder == nil {
		recorder = observability.NopRecorder{}
	}
	return &RelationshipStore{
		session:   sess,
		repo:      sess.Repositories().Relationships,
		publisher: publisher,
		config:    cfg,
		recorder:  recorder,
		logger:    logger,
	}
}

// CreateFromAcceptance records the verified tie between idA and idB and
// reports whether this call created it. If the pair already has a
// relationship, locally or remotely, that relationship is returned with
// created false.
//
// A remote failure keeps the new local relationship and returns it together
// with a PERSISTENCE error.
func (s *RelationshipStore) CreateFromAcceptance(
	ctx context.Context,
	idA, idB valueobjects.IdentityID,
	relationType valueobjects.RelationType,
	hidden bool,
) (*entities.Relationship, bool, error) {
	var result *entities.Relationship
	isNew := false

	err := instrument(ctx, s.recorder, "relationship.create", func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		if existing, ok := s.session.RelationshipForPair(idA, idB); ok {
			s.logger.Debug("Relationship already exists for pair",
				zap.String("relationship_id", existing.ID()))
			result = existing
			return nil
		}

		rel, err := entities.NewRelationship(idA, idB, relationType, hidden, s.config)
		if err != nil {
			return err
		}

		stored, created, err := s.repo.CreateIfAbsent(ctx, rel)
		if err != nil {
			s.logger.Warn("Remote relationship create failed, keeping local copy",
				zap.String("relationship_id", rel.ID()),
				zap.Error(err))
			s.recorder.RecordFallback(ctx, "relationship.create", observability.PolicyRetained)
			discardEvents(rel)
			s.session.PutRelationship(rel)
			result = rel
			isNew = true
			return asPersistence("create relationship", err)
		}

		if !created {
			// The other party's acceptance won the race
			s.session.PutRelationship(stored)
			result = stored
			return nil
		}

		s.session.PutRelationship(rel)
		publishEvents(ctx, s.publisher, s.logger, rel)
		result = rel
		isNew = true

		s.logger.Info("Relationship created",
			zap.String("relationship_id", rel.ID()),
			zap.String("user_a", rel.UserA().String()),
			zap.String("user_b", rel.UserB().String()))
		return nil
	}, attribute.String("relation_type", relationType.String()))

	if result != nil {
		persistOffline(ctx, s.session)
		s.notifyChange()
	}
	return result, isNew, err
}

// Remove deletes a relationship. Requests that produced it keep their
// Accepted status. A remote failure restores the relationship locally.
func (s *RelationshipStore) Remove(ctx context.Context, relationshipID string) error {
	changed := false

	err := instrument(ctx, s.recorder, "relationship.remove", func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		rel, index, ok := s.session.RemoveRelationship(relationshipID)
		if !ok {
			return pkgerrors.NewNotFoundError("relationship")
		}

		if err := s.repo.Delete(ctx, relationshipID); err != nil && !pkgerrors.IsNotFound(err) {
			s.logger.Error("Remote relationship delete failed, restoring",
				zap.String("relationship_id", relationshipID),
				zap.Error(err))
			s.recorder.RecordFallback(ctx, "relationship.remove", observability.PolicyRolledBack)
			s.session.InsertRelationship(index, rel)
			return asPersistence("delete relationship", err)
		}

		removed := rel.Clone()
		removed.MarkRemoved(time.Now().UTC())
		publishEvents(ctx, s.publisher, s.logger, removed)
		changed = true

		s.logger.Info("Relationship removed", zap.String("relationship_id", relationshipID))
		return nil
	}, attribute.String("relationship_id", relationshipID))

	if changed {
		persistOffline(ctx, s.session)
		s.notifyChange()
	}
	return err
}

// Query returns every relationship where viewer is an endpoint, in query order
func (s *RelationshipStore) Query(viewer valueobjects.IdentityID) []*entities.Relationship {
	all := s.session.Relationships()
	result := make([]*entities.Relationship, 0, len(all))
	for _, rel := range all {
		if rel.Involves(viewer) {
			result = append(result, rel)
		}
	}
	return result
}

// Get returns one of the viewer's relationships
func (s *RelationshipStore) Get(relationshipID string) (*entities.Relationship, error) {
	rel, ok := s.session.Relationship(relationshipID)
	if !ok {
		return nil, pkgerrors.NewNotFoundError("relationship")
	}
	return rel, nil
}

// SetStrength updates the closeness rating. A remote failure rolls the local change back.
func (s *RelationshipStore) SetStrength(ctx context.Context, relationshipID string, strength int) (*entities.Relationship, error) {
	return s.update(ctx, "relationship.set_strength", relationshipID, func(rel *entities.Relationship) error {
		return rel.SetStrength(strength, s.config)
	})
}

// RecordInteraction stamps the last interaction. A remote failure rolls the local change back.
func (s *RelationshipStore) RecordInteraction(ctx context.Context, relationshipID string, at time.Time) (*entities.Relationship, error) {
	return s.update(ctx, "relationship.record_interaction", relationshipID, func(rel *entities.Relationship) error {
		return rel.RecordInteraction(at)
	})
}

func (s *RelationshipStore) update(
	ctx context.Context,
	operation, relationshipID string,
	mutate func(rel *entities.Relationship) error,
) (*entities.Relationship, error) {
	var result *entities.Relationship

	err := instrument(ctx, s.recorder, operation, func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		original, ok := s.session.Relationship(relationshipID)
		if !ok {
			return pkgerrors.NewNotFoundError("relationship")
		}

		updated := original.Clone()
		if err := mutate(updated); err != nil {
			return err
		}
		s.session.PutRelationship(updated)

		if err := s.repo.Update(ctx, updated); err != nil {
			s.logger.Warn("Remote relationship update failed, rolling back",
				zap.String("relationship_id", relationshipID),
				zap.String("operation", operation),
				zap.Error(err))
			s.recorder.RecordFallback(ctx, operation, observability.PolicyRolledBack)
			s.session.PutRelationship(original)
			result = original
			return asPersistence("update relationship", err)
		}

		result = updated
		return nil
	}, attribute.String("relationship_id", relationshipID))

	if err == nil {
		persistOffline(ctx, s.session)
		s.notifyChange()
	}
	return result, err
}
