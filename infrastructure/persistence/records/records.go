// Package records holds the storage shapes shared by the persistence
// adapters and their conversions to and from domain entities.
package records

import (
	"fmt"
	"time"

	"github.com/LoadingLlama/relation/domain/core/entities"
	"github.com/LoadingLlama/relation/domain/core/valueobjects"
)

// IdentityRecord is the stored form of an identity
type IdentityRecord struct {
	ID             string    `json:"id" dynamodbav:"id"`
	DisplayName    string    `json:"display_name" dynamodbav:"display_name"`
	IdentifierHash string    `json:"identifier_hash" dynamodbav:"identifier_hash"`
	Score          int       `json:"score" dynamodbav:"score"`
	CreatedAt      time.Time `json:"created_at" dynamodbav:"created_at"`
}

// RequestRecord is the stored form of a connection request. Direction is
// derived per viewer and never stored.
type RequestRecord struct {
	ID               string    `json:"id" dynamodbav:"id"`
	FromID           string    `json:"from_id" dynamodbav:"from_id"`
	ToIdentifierHash string    `json:"to_identifier_hash" dynamodbav:"to_identifier_hash"`
	ToID             *string   `json:"to_id" dynamodbav:"to_id,omitempty"`
	ToName           string    `json:"to_name" dynamodbav:"to_name"`
	RelationType     string    `json:"relation_type" dynamodbav:"relation_type"`
	Hidden           bool      `json:"hidden" dynamodbav:"hidden"`
	Status           string    `json:"status" dynamodbav:"status"`
	CreatedAt        time.Time `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// RelationshipRecord is the stored form of a relationship
type RelationshipRecord struct {
	ID              string     `json:"id" dynamodbav:"id"`
	UserA           string     `json:"user_a" dynamodbav:"user_a"`
	UserB           string     `json:"user_b" dynamodbav:"user_b"`
	RelationType    string     `json:"relation_type" dynamodbav:"relation_type"`
	Hidden          bool       `json:"hidden" dynamodbav:"hidden"`
	Strength        int        `json:"strength" dynamodbav:"strength"`
	LastInteraction *time.Time `json:"last_interaction" dynamodbav:"last_interaction,omitempty"`
	VerifiedAt      time.Time  `json:"verified_at" dynamodbav:"verified_at"`
	CreatedAt       time.Time  `json:"created_at" dynamodbav:"created_at"`
}

// FromIdentity converts an identity to its record
func FromIdentity(identity *entities.Identity) IdentityRecord {
	return IdentityRecord{
		ID:             identity.ID().String(),
		DisplayName:    identity.DisplayName(),
		IdentifierHash: identity.IdentifierHash().String(),
		Score:          identity.Score(),
		CreatedAt:      identity.CreatedAt(),
	}
}

// ToIdentity rebuilds the entity
func (r IdentityRecord) ToIdentity() (*entities.Identity, error) {
	id, err := valueobjects.NewIdentityIDFromString(r.ID)
	if err != nil {
		return nil, fmt.Errorf("identity %q: %w", r.ID, err)
	}
	hash, err := valueobjects.NewIdentifierHashFromString(r.IdentifierHash)
	if err != nil {
		return nil, fmt.Errorf("identity %q: %w", r.ID, err)
	}
	return entities.ReconstructIdentity(id, r.DisplayName, hash, r.Score, r.CreatedAt)
}

// FromRequest converts a request to its record
func FromRequest(req *entities.ConnectionRequest) RequestRecord {
	rec := RequestRecord{
		ID:               req.ID(),
		FromID:           req.FromID().String(),
		ToIdentifierHash: req.ToIdentifierHash().String(),
		ToName:           req.ToName(),
		RelationType:     req.RelationType().String(),
		Hidden:           req.Hidden(),
		Status:           string(req.Status()),
		CreatedAt:        req.CreatedAt(),
		UpdatedAt:        req.UpdatedAt(),
	}
	if !req.ToID().IsZero() {
		toID := req.ToID().String()
		rec.ToID = &toID
	}
	return rec
}

// ToRequest rebuilds the entity
func (r RequestRecord) ToRequest() (*entities.ConnectionRequest, error) {
	fromID, err := valueobjects.NewIdentityIDFromString(r.FromID)
	if err != nil {
		return nil, fmt.Errorf("request %q: %w", r.ID, err)
	}
	hash, err := valueobjects.NewIdentifierHashFromString(r.ToIdentifierHash)
	if err != nil {
		return nil, fmt.Errorf("request %q: %w", r.ID, err)
	}
	var toID valueobjects.IdentityID
	if r.ToID != nil && *r.ToID != "" {
		if toID, err = valueobjects.NewIdentityIDFromString(*r.ToID); err != nil {
			return nil, fmt.Errorf("request %q: %w", r.ID, err)
		}
	}
	status, err := entities.ParseRequestStatus(r.Status)
	if err != nil {
		return nil, err
	}

	return entities.ReconstructConnectionRequest(
		r.ID,
		fromID,
		hash,
		toID,
		r.ToName,
		valueobjects.RestoreRequestKind(r.RelationType),
		r.Hidden,
		status,
		r.CreatedAt,
		r.UpdatedAt,
	)
}

// FromRelationship converts a relationship to its record
func FromRelationship(rel *entities.Relationship) RelationshipRecord {
	return RelationshipRecord{
		ID:              rel.ID(),
		UserA:           rel.UserA().String(),
		UserB:           rel.UserB().String(),
		RelationType:    rel.RelationType().String(),
		Hidden:          rel.Hidden(),
		Strength:        rel.Strength(),
		LastInteraction: rel.LastInteraction(),
		VerifiedAt:      rel.VerifiedAt(),
		CreatedAt:       rel.CreatedAt(),
	}
}

// ToRelationship rebuilds the entity
func (r RelationshipRecord) ToRelationship() (*entities.Relationship, error) {
	userA, err := valueobjects.NewIdentityIDFromString(r.UserA)
	if err != nil {
		return nil, fmt.Errorf("relationship %q: %w", r.ID, err)
	}
	userB, err := valueobjects.NewIdentityIDFromString(r.UserB)
	if err != nil {
		return nil, fmt.Errorf("relationship %q: %w", r.ID, err)
	}
	return entities.ReconstructRelationship(
		r.ID,
		userA,
		userB,
		valueobjects.RelationType(r.RelationType),
		r.Hidden,
		r.Strength,
		r.LastInteraction,
		r.VerifiedAt,
		r.CreatedAt,
	)
}

// Identities converts a slice of records
func Identities(recs []IdentityRecord) ([]*entities.Identity, error) {
	out := make([]*entities.Identity, 0, len(recs))
	for _, rec := range recs {
		identity, err := rec.ToIdentity()
		if err != nil {
			return nil, err
		}
		out = append(out, identity)
	}
	return out, nil
}

// Requests converts a slice of records
func Requests(recs []RequestRecord) ([]*entities.ConnectionRequest, error) {
	out := make([]*entities.ConnectionRequest, 0, len(recs))
	for _, rec := range recs {
		req, err := rec.ToRequest()
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

// Relationships converts a slice of records
func Relationships(recs []RelationshipRecord) ([]*entities.Relationship, error) {
	out := make([]*entities.Relationship, 0, len(recs))
	for _, rec := range recs {
		rel, err := rec.ToRelationship()
		if err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, nil
}
