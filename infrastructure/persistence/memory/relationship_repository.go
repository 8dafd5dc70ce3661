package memory

import (
	"context"
	"sync"

	"github.com/LoadingLlama/relation/application/ports"
	"github.com/LoadingLlama/relation/domain/core/entities"
	"github.com/LoadingLlama/relation/domain/core/valueobjects"
	pkgerrors "github.com/LoadingLlama/relation/pkg/errors"

	"github.com/tidwall/btree"
)

type pairEntry struct {
	key string
	id  string
}

// RelationshipRepository is an in-process RelationshipRepository. Pair
// uniqueness is enforced through an ordered index on the canonical pair key.
type RelationshipRepository struct {
	mu    sync.RWMutex
	byID  map[string]*entities.Relationship
	pairs *btree.BTreeG[pairEntry]
	order *orderedIndex
}

var _ ports.RelationshipRepository = (*RelationshipRepository)(nil)

// NewRelationshipRepository creates an empty repository
func NewRelationshipRepository() *RelationshipRepository {
	return &RelationshipRepository{
		byID: make(map[string]*entities.Relationship),
		pairs: btree.NewBTreeG[pairEntry](func(a, b pairEntry) bool {
			return a.key < b.key
		}),
		order: newOrderedIndex(),
	}
}

// CreateIfAbsent inserts unless the pair already has a relationship
func (r *RelationshipRepository) CreateIfAbsent(ctx context.Context, relationship *entities.Relationship) (*entities.Relationship, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.pairs.Get(pairEntry{key: relationship.PairKey()}); ok {
		return r.byID[existing.id].Clone(), false, nil
	}

	r.pairs.Set(pairEntry{key: relationship.PairKey(), id: relationship.ID()})
	r.order.add(relationship.ID(), relationship.CreatedAt())
	r.byID[relationship.ID()] = relationship.Clone()
	return relationship.Clone(), true, nil
}

// GetByID retrieves a relationship
func (r *RelationshipRepository) GetByID(ctx context.Context, id string) (*entities.Relationship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	relationship, ok := r.byID[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("relationship")
	}
	return relationship.Clone(), nil
}

// ListForIdentity returns relationships touching id in creation order
func (r *RelationshipRepository) ListForIdentity(ctx context.Context, id valueobjects.IdentityID) ([]*entities.Relationship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*entities.Relationship, 0)
	r.order.each(func(relID string) bool {
		if rel := r.byID[relID]; rel.Involves(id) {
			result = append(result, rel.Clone())
		}
		return true
	})
	return result, nil
}

// Update replaces the stored mutable fields
func (r *RelationshipRepository) Update(ctx context.Context, relationship *entities.Relationship) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[relationship.ID()]; !ok {
		return pkgerrors.NewNotFoundError("relationship")
	}
	r.byID[relationship.ID()] = relationship.Clone()
	return nil
}

// Delete removes a relationship
func (r *RelationshipRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	relationship, ok := r.byID[id]
	if !ok {
		return pkgerrors.NewNotFoundError("relationship")
	}
	r.pairs.Delete(pairEntry{key: relationship.PairKey()})
	r.order.remove(id, relationship.CreatedAt())
	delete(r.byID, id)
	return nil
}
