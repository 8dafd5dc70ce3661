package supabase

import (
	"context"
	"fmt"
	"strconv"

	"github.com/LoadingLlama/relation/application/ports"
	"github.com/LoadingLlama/relation/domain/core/entities"
	"github.com/LoadingLlama/relation/domain/core/valueobjects"
	"github.com/LoadingLlama/relation/infrastructure/persistence/records"
	pkgerrors "github.com/LoadingLlama/relation/pkg/errors"

	"go.uber.org/zap"
)

// maxScoreAttempts bounds the compare-and-set loop in IncrementScore
const maxScoreAttempts = 5

// IdentityRepository implements ports.IdentityRepository
type IdentityRepository struct {
	client Client
	logger *zap.Logger
}

var _ ports.IdentityRepository = (*IdentityRepository)(nil)

// NewIdentityRepository creates a new identity repository
func NewIdentityRepository(client Client, logger *zap.Logger) *IdentityRepository {
	return &IdentityRepository{client: client, logger: logger}
}

func (r *IdentityRepository) selectOne(column, value string) (*records.IdentityRecord, error) {
	var rows []records.IdentityRecord
	_, err := r.client.From(tableIdentities).
		Select("*", "", false).
		Eq(column, value).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to select identity: %w", err)
	}
	if len(rows) == 0 {
		return nil, pkgerrors.NewNotFoundError("identity")
	}
	return &rows[0], nil
}

// GetByID retrieves an identity
func (r *IdentityRepository) GetByID(ctx context.Context, id valueobjects.IdentityID) (*entities.Identity, error) {
	rec, err := r.selectOne("id", id.String())
	if err != nil {
		return nil, err
	}
	return rec.ToIdentity()
}

// GetByIdentifierHash resolves a hashed identifier
func (r *IdentityRepository) GetByIdentifierHash(ctx context.Context, hash valueobjects.IdentifierHash) (*entities.Identity, error) {
	rec, err := r.selectOne("identifier_hash", hash.String())
	if err != nil {
		return nil, err
	}
	return rec.ToIdentity()
}

// Save upserts on id. The unique index on identifier_hash rejects a second owner.
func (r *IdentityRepository) Save(ctx context.Context, identity *entities.Identity) error {
	rec := records.FromIdentity(identity)
	_, _, err := r.client.From(tableIdentities).
		Upsert(rec, "id", returnRepresentation, "").
		Execute()
	if err != nil {
		if isUniqueViolation(err) {
			return pkgerrors.NewInvalidStateError("identifier is already registered")
		}
		return fmt.Errorf("failed to save identity: %w", err)
	}

	r.logger.Debug("Identity saved", zap.String("identity_id", rec.ID))
	return nil
}

// IncrementScore reads the score and writes score+1 only if it is unchanged,
// retrying when another writer got there first.
func (r *IdentityRepository) IncrementScore(ctx context.Context, id valueobjects.IdentityID) (int, error) {
	for attempt := 1; attempt <= maxScoreAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		current, err := r.selectOne("id", id.String())
		if err != nil {
			return 0, err
		}

		var rows []records.IdentityRecord
		_, err = r.client.From(tableIdentities).
			Update(map[string]interface{}{"score": current.Score + 1}, returnRepresentation, "").
			Eq("id", id.String()).
			Eq("score", strconv.Itoa(current.Score)).
			ExecuteTo(&rows)
		if err != nil {
			return 0, fmt.Errorf("failed to increment score: %w", err)
		}
		if len(rows) == 1 {
			return rows[0].Score, nil
		}

		r.logger.Debug("Score changed concurrently, retrying",
			zap.String("identity_id", id.String()),
			zap.Int("attempt", attempt))
	}
	return 0, fmt.Errorf("failed to increment score for %s: too much contention", id)
}
