package memory

import (
	"context"
	"sync"

	"github.com/LoadingLlama/relation/application/ports"
	"github.com/LoadingLlama/relation/domain/core/entities"
	"github.com/LoadingLlama/relation/domain/core/valueobjects"
	pkgerrors "github.com/LoadingLlama/relation/pkg/errors"
)

// IdentityRepository is an in-process IdentityRepository
type IdentityRepository struct {
	mu     sync.RWMutex
	byID   map[string]*entities.Identity
	byHash map[string]string
}

var _ ports.IdentityRepository = (*IdentityRepository)(nil)

// NewIdentityRepository creates an empty repository
func NewIdentityRepository() *IdentityRepository {
	return &IdentityRepository{
		byID:   make(map[string]*entities.Identity),
		byHash: make(map[string]string),
	}
}

// GetByID retrieves an identity
func (r *IdentityRepository) GetByID(ctx context.Context, id valueobjects.IdentityID) (*entities.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.byID[id.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("identity")
	}
	return identity.Clone(), nil
}

// GetByIdentifierHash resolves a hashed identifier
func (r *IdentityRepository) GetByIdentifierHash(ctx context.Context, hash valueobjects.IdentifierHash) (*entities.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byHash[hash.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("identity")
	}
	return r.byID[id].Clone(), nil
}

// Save creates or replaces an identity. An identifier hash can belong to one identity only.
func (r *IdentityRepository) Save(ctx context.Context, identity *entities.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	hash := identity.IdentifierHash().String()
	if owner, ok := r.byHash[hash]; ok && owner != identity.ID().String() {
		return pkgerrors.NewInvalidStateError("identifier is already registered")
	}

	if existing, ok := r.byID[identity.ID().String()]; ok {
		delete(r.byHash, existing.IdentifierHash().String())
	}
	r.byID[identity.ID().String()] = identity.Clone()
	r.byHash[hash] = identity.ID().String()
	return nil
}

// IncrementScore adds one to the stored score
func (r *IdentityRepository) IncrementScore(ctx context.Context, id valueobjects.IdentityID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.byID[id.String()]
	if !ok {
		return 0, pkgerrors.NewNotFoundError("identity")
	}
	identity.IncrementScore(identity.CreatedAt())
	identity.MarkEventsAsCommitted()
	return identity.Score(), nil
}
