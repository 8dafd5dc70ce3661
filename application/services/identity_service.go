package services

import (
	"context"

	"github.com/LoadingLlama/relation/application/ports"
	"github.com/LoadingLlama/relation/domain/core/entities"
	"github.com/LoadingLlama/relation/domain/core/valueobjects"
	pkgerrors "github.com/LoadingLlama/relation/pkg/errors"
	"github.com/LoadingLlama/relation/pkg/observability"

	"go.uber.org/zap"
)

// IdentityService registers identities. It runs before any session exists.
type IdentityService struct {
	repo      ports.IdentityRepository
	publisher ports.EventPublisher
	recorder  observability.Recorder
	logger    *zap.Logger
}

// NewIdentityService creates an identity service
func NewIdentityService(repo ports.IdentityRepository, publisher ports.EventPublisher, recorder observability.Recorder, logger *zap.Logger) *IdentityService {
	if recorder == nil {
		recorder = observability.NopRecorder{}
	}
	return &IdentityService{repo: repo, publisher: publisher, recorder: recorder, logger: logger}
}

// Register creates the identity for an authenticated subject. Registering
// the same subject again returns the stored identity unchanged.
func (s *IdentityService) Register(ctx context.Context, id valueobjects.IdentityID, displayName, identifier string) (*entities.Identity, error) {
	var result *entities.Identity

	err := instrument(ctx, s.recorder, "identity.register", func(ctx context.Context) error {
		existing, err := s.repo.GetByID(ctx, id)
		if err == nil {
			result = existing
			return nil
		}
		if !pkgerrors.IsNotFound(err) {
			return asPersistence("load identity", err)
		}

		identity, err := entities.NewIdentityWithID(id, displayName, identifier)
		if err != nil {
			return err
		}
		if owner, err := s.repo.GetByIdentifierHash(ctx, identity.IdentifierHash()); err == nil && !owner.ID().Equals(id) {
			return pkgerrors.NewInvalidStateError("identifier already registered")
		}
		if err := s.repo.Save(ctx, identity); err != nil {
			if pkgerrors.IsAppError(err) && !pkgerrors.IsPersistence(err) {
				return err
			}
			return asPersistence("save identity", err)
		}

		publishEvents(ctx, s.publisher, s.logger, identity)
		result = identity

		s.logger.Info("Identity registered", zap.String("identity_id", id.String()))
		return nil
	})

	return result, err
}

// Get loads an identity
func (s *IdentityService) Get(ctx context.Context, id valueobjects.IdentityID) (*entities.Identity, error) {
	return s.repo.GetByID(ctx, id)
}
