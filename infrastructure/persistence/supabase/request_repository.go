package supabase

import (
	"context"
	"fmt"

	"github.com/LoadingLlama/relation/application/ports"
	"github.com/LoadingLlama/relation/domain/core/entities"
	"github.com/LoadingLlama/relation/infrastructure/persistence/records"
	pkgerrors "github.com/LoadingLlama/relation/pkg/errors"

	"go.uber.org/zap"
)

// RequestRepository implements ports.RequestRepository
type RequestRepository struct {
	client Client
	logger *zap.Logger
}

var _ ports.RequestRepository = (*RequestRepository)(nil)

// NewRequestRepository creates a new request repository
func NewRequestRepository(client Client, logger *zap.Logger) *RequestRepository {
	return &RequestRepository{client: client, logger: logger}
}

// Save upserts on id
func (r *RequestRepository) Save(ctx context.Context, request *entities.ConnectionRequest) error {
	rec := records.FromRequest(request)
	_, _, err := r.client.From(tableRequests).
		Upsert(rec, "id", returnRepresentation, "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to save request: %w", err)
	}
	return nil
}

// GetByID retrieves a request
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*entities.ConnectionRequest, error) {
	var rows []records.RequestRecord
	_, err := r.client.From(tableRequests).
		Select("*", "", false).
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	if len(rows) == 0 {
		return nil, pkgerrors.NewNotFoundError("request")
	}
	return rows[0].ToRequest()
}

// ListForIdentity selects requests sent by the identity or addressed to it
func (r *RequestRepository) ListForIdentity(ctx context.Context, identity *entities.Identity) ([]*entities.ConnectionRequest, error) {
	id := identity.ID().String()
	filter := fmt.Sprintf("from_id.eq.%s,to_id.eq.%s,to_identifier_hash.eq.%s",
		id, id, identity.IdentifierHash().String())

	var rows []records.RequestRecord
	_, err := r.client.From(tableRequests).
		Select("*", "", false).
		Or(filter, "").
		Order("created_at", ascending()).
		Order("id", ascending()).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return records.Requests(rows)
}

// Delete removes a request
func (r *RequestRepository) Delete(ctx context.Context, id string) error {
	var rows []records.RequestRecord
	_, err := r.client.From(tableRequests).
		Delete(returnRepresentation, "").
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		return fmt.Errorf("failed to delete request: %w", err)
	}
	if len(rows) == 0 {
		return pkgerrors.NewNotFoundError("request")
	}
	return nil
}
