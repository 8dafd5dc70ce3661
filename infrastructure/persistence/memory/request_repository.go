package memory

import (
	"context"
	"sync"

	"github.com/LoadingLlama/relation/application/ports"
	"github.com/LoadingLlama/relation/domain/core/entities"
	pkgerrors "github.com/LoadingLlama/relation/pkg/errors"
)

// RequestRepository is an in-process RequestRepository
type RequestRepository struct {
	mu    sync.RWMutex
	byID  map[string]*entities.ConnectionRequest
	order *orderedIndex
}

var _ ports.RequestRepository = (*RequestRepository)(nil)

// NewRequestRepository creates an empty repository
func NewRequestRepository() *RequestRepository {
	return &RequestRepository{
		byID:  make(map[string]*entities.ConnectionRequest),
		order: newOrderedIndex(),
	}
}

// Save creates or replaces a request
func (r *RequestRepository) Save(ctx context.Context, request *entities.ConnectionRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[request.ID()]; !ok {
		r.order.add(request.ID(), request.CreatedAt())
	}
	r.byID[request.ID()] = request.Clone()
	return nil
}

// GetByID retrieves a request
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*entities.ConnectionRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	request, ok := r.byID[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("request")
	}
	return request.Clone(), nil
}

// ListForIdentity returns requests the identity sent or received
func (r *RequestRepository) ListForIdentity(ctx context.Context, identity *entities.Identity) ([]*entities.ConnectionRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*entities.ConnectionRequest, 0)
	r.order.each(func(id string) bool {
		request := r.byID[id]
		if request.FromID().Equals(identity.ID()) || request.IsAddressedTo(identity) {
			result = append(result, request.Clone())
		}
		return true
	})
	return result, nil
}

// Delete removes a request
func (r *RequestRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	request, ok := r.byID[id]
	if !ok {
		return pkgerrors.NewNotFoundError("request")
	}
	r.order.remove(id, request.CreatedAt())
	delete(r.byID, id)
	return nil
}
