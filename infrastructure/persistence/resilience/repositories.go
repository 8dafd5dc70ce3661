package resilience

import (
	"context"

	"github.com/LoadingLlama/relation/application/ports"
	"github.com/LoadingLlama/relation/domain/core/entities"
	"github.com/LoadingLlama/relation/domain/core/valueobjects"
)

// Wrap guards every repository with one shared breaker, since all three
// talk to the same backend
func Wrap(repos ports.Repositories, breaker *Breaker) ports.Repositories {
	return ports.Repositories{
		Identities:    &IdentityRepository{next: repos.Identities, breaker: breaker},
		Requests:      &RequestRepository{next: repos.Requests, breaker: breaker},
		Relationships: &RelationshipRepository{next: repos.Relationships, breaker: breaker},
	}
}

// IdentityRepository decorates a ports.IdentityRepository
type IdentityRepository struct {
	next    ports.IdentityRepository
	breaker *Breaker
}

var _ ports.IdentityRepository = (*IdentityRepository)(nil)

func (r *IdentityRepository) GetByID(ctx context.Context, id valueobjects.IdentityID) (*entities.Identity, error) {
	result, err := r.breaker.Execute("identity.get", func() (interface{}, error) {
		return r.next.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return result.(*entities.Identity), nil
}

func (r *IdentityRepository) GetByIdentifierHash(ctx context.Context, hash valueobjects.IdentifierHash) (*entities.Identity, error) {
	result, err := r.breaker.Execute("identity.get_by_hash", func() (interface{}, error) {
		return r.next.GetByIdentifierHash(ctx, hash)
	})
	if err != nil {
		return nil, err
	}
	return result.(*entities.Identity), nil
}

func (r *IdentityRepository) Save(ctx context.Context, identity *entities.Identity) error {
	return r.breaker.run("identity.save", func() error {
		return r.next.Save(ctx, identity)
	})
}

func (r *IdentityRepository) IncrementScore(ctx context.Context, id valueobjects.IdentityID) (int, error) {
	result, err := r.breaker.Execute("identity.increment_score", func() (interface{}, error) {
		return r.next.IncrementScore(ctx, id)
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

// RequestRepository decorates a ports.RequestRepository
type RequestRepository struct {
	next    ports.RequestRepository
	breaker *Breaker
}

var _ ports.RequestRepository = (*RequestRepository)(nil)

func (r *RequestRepository) Save(ctx context.Context, request *entities.ConnectionRequest) error {
	return r.breaker.run("request.save", func() error {
		return r.next.Save(ctx, request)
	})
}

func (r *RequestRepository) GetByID(ctx context.Context, id string) (*entities.ConnectionRequest, error) {
	result, err := r.breaker.Execute("request.get", func() (interface{}, error) {
		return r.next.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return result.(*entities.ConnectionRequest), nil
}

func (r *RequestRepository) ListForIdentity(ctx context.Context, identity *entities.Identity) ([]*entities.ConnectionRequest, error) {
	result, err := r.breaker.Execute("request.list", func() (interface{}, error) {
		return r.next.ListForIdentity(ctx, identity)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*entities.ConnectionRequest), nil
}

func (r *RequestRepository) Delete(ctx context.Context, id string) error {
	return r.breaker.run("request.delete", func() error {
		return r.next.Delete(ctx, id)
	})
}

// RelationshipRepository decorates a ports.RelationshipRepository
type RelationshipRepository struct {
	next    ports.RelationshipRepository
	breaker *Breaker
}

var _ ports.RelationshipRepository = (*RelationshipRepository)(nil)

type createResult struct {
	relationship *entities.Relationship
	created      bool
}

func (r *RelationshipRepository) CreateIfAbsent(ctx context.Context, relationship *entities.Relationship) (*entities.Relationship, bool, error) {
	result, err := r.breaker.Execute("relationship.create", func() (interface{}, error) {
		rel, created, err := r.next.CreateIfAbsent(ctx, relationship)
		return createResult{relationship: rel, created: created}, err
	})
	if err != nil {
		return nil, false, err
	}
	res := result.(createResult)
	return res.relationship, res.created, nil
}

func (r *RelationshipRepository) GetByID(ctx context.Context, id string) (*entities.Relationship, error) {
	result, err := r.breaker.Execute("relationship.get", func() (interface{}, error) {
		return r.next.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return result.(*entities.Relationship), nil
}

func (r *RelationshipRepository) ListForIdentity(ctx context.Context, id valueobjects.IdentityID) ([]*entities.Relationship, error) {
	result, err := r.breaker.Execute("relationship.list", func() (interface{}, error) {
		return r.next.ListForIdentity(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*entities.Relationship), nil
}

func (r *RelationshipRepository) Update(ctx context.Context, relationship *entities.Relationship) error {
	return r.breaker.run("relationship.update", func() error {
		return r.next.Update(ctx, relationship)
	})
}

func (r *RelationshipRepository) Delete(ctx context.Context, id string) error {
	return r.breaker.run("relationship.delete", func() error {
		return r.next.Delete(ctx, id)
	})
}
