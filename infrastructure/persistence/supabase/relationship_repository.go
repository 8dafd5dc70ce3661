package supabase

import (
	"context"
	"fmt"

	"github.com/LoadingLlama/relation/application/ports"
	"github.com/LoadingLlama/relation/domain/core/entities"
	"github.com/LoadingLlama/relation/domain/core/valueobjects"
	"github.com/LoadingLlama/relation/infrastructure/persistence/records"
	pkgerrors "github.com/LoadingLlama/relation/pkg/errors"

	"go.uber.org/zap"
)

// RelationshipRepository implements ports.RelationshipRepository. Pairs are
// stored canonically ordered, so unique(user_a, user_b) covers both directions.
type RelationshipRepository struct {
	client Client
	logger *zap.Logger
}

var _ ports.RelationshipRepository = (*RelationshipRepository)(nil)

// NewRelationshipRepository creates a new relationship repository
func NewRelationshipRepository(client Client, logger *zap.Logger) *RelationshipRepository {
	return &RelationshipRepository{client: client, logger: logger}
}

// CreateIfAbsent inserts and falls back to the stored row on a unique violation
func (r *RelationshipRepository) CreateIfAbsent(ctx context.Context, relationship *entities.Relationship) (*entities.Relationship, bool, error) {
	rec := records.FromRelationship(relationship)

	var rows []records.RelationshipRecord
	_, err := r.client.From(tableRelationships).
		Insert(rec, false, "", returnRepresentation, "").
		ExecuteTo(&rows)
	if err == nil {
		return relationship.Clone(), true, nil
	}
	if !isUniqueViolation(err) {
		return nil, false, fmt.Errorf("failed to create relationship: %w", err)
	}

	_, err = r.client.From(tableRelationships).
		Select("*", "", false).
		Eq("user_a", rec.UserA).
		Eq("user_b", rec.UserB).
		ExecuteTo(&rows)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read existing relationship: %w", err)
	}
	if len(rows) == 0 {
		return nil, false, pkgerrors.NewNotFoundError("relationship")
	}

	r.logger.Debug("Relationship already exists for pair",
		zap.String("relationship_id", rows[0].ID),
		zap.String("pair", relationship.PairKey()))
	existing, err := rows[0].ToRelationship()
	return existing, false, err
}

// GetByID retrieves a relationship
func (r *RelationshipRepository) GetByID(ctx context.Context, id string) (*entities.Relationship, error) {
	var rows []records.RelationshipRecord
	_, err := r.client.From(tableRelationships).
		Select("*", "", false).
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get relationship: %w", err)
	}
	if len(rows) == 0 {
		return nil, pkgerrors.NewNotFoundError("relationship")
	}
	return rows[0].ToRelationship()
}

// ListForIdentity returns relationships touching id, oldest first
func (r *RelationshipRepository) ListForIdentity(ctx context.Context, id valueobjects.IdentityID) ([]*entities.Relationship, error) {
	var rows []records.RelationshipRecord
	_, err := r.client.From(tableRelationships).
		Select("*", "", false).
		Or(fmt.Sprintf("user_a.eq.%s,user_b.eq.%s", id, id), "").
		Order("created_at", ascending()).
		Order("id", ascending()).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}
	return records.Relationships(rows)
}

// Update writes strength and last interaction
func (r *RelationshipRepository) Update(ctx context.Context, relationship *entities.Relationship) error {
	rec := records.FromRelationship(relationship)

	var rows []records.RelationshipRecord
	_, err := r.client.From(tableRelationships).
		Update(map[string]interface{}{
			"strength":         rec.Strength,
			"last_interaction": rec.LastInteraction,
		}, returnRepresentation, "").
		Eq("id", rec.ID).
		ExecuteTo(&rows)
	if err != nil {
		return fmt.Errorf("failed to update relationship: %w", err)
	}
	if len(rows) == 0 {
		return pkgerrors.NewNotFoundError("relationship")
	}
	return nil
}

// Delete removes a relationship
func (r *RelationshipRepository) Delete(ctx context.Context, id string) error {
	var rows []records.RelationshipRecord
	_, err := r.client.From(tableRelationships).
		Delete(returnRepresentation, "").
		Eq("id", id).
		ExecuteTo(&rows)
	if err != nil {
		return fmt.Errorf("failed to delete relationship: %w", err)
	}
	if len(rows) == 0 {
		return pkgerrors.NewNotFoundError("relationship")
	}

	r.logger.Debug("Relationship deleted", zap.String("relationship_id", id))
	return nil
}
