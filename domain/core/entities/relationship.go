package entities

import (
	"fmt"
	"time"

	"github.com/LoadingLlama/relation/domain/config"
	"github.com/LoadingLlama/relation/domain/core/valueobjects"
	"github.com/LoadingLlama/relation/domain/events"
	pkgerrors "github.com/LoadingLlama/relation/pkg/errors"

	"github.com/google/uuid"
)

// Relationship is a verified, symmetric tie between two identities.
//
// The pair is stored in canonical order (userA < userB) so that the same two
// identities always produce the same key whichever side accepted.
type Relationship struct {
	id              string
	userA           valueobjects.IdentityID
	userB           valueobjects.IdentityID
	relationType    valueobjects.RelationType
	hidden          bool
	strength        int
	lastInteraction *time.Time
	verifiedAt      time.Time
	createdAt       time.Time

	events []events.DomainEvent
}

// NewRelationship creates a verified relationship between idA and idB
func NewRelationship(
	idA, idB valueobjects.IdentityID,
	relationType valueobjects.RelationType,
	hidden bool,
	cfg *config.DomainConfig,
) (*Relationship, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if idA.IsZero() || idB.IsZero() {
		return nil, pkgerrors.NewValidationError("relationship endpoints cannot be empty")
	}
	if idA.Equals(idB) {
		return nil, pkgerrors.NewValidationError("an identity cannot have a relationship with itself")
	}

	userA, userB := valueobjects.CanonicalPair(idA, idB)
	now := time.Now().UTC()

	rel := &Relationship{
		id:           uuid.New().String(),
		userA:        userA,
		userB:        userB,
		relationType: relationType,
		hidden:       hidden,
		strength:     cfg.DefaultStrength,
		verifiedAt:   now,
		createdAt:    now,
		events:       []events.DomainEvent{},
	}

	rel.addEvent(events.NewRelationshipCreated(rel.id, userA, userB, relationType.String(), now))

	return rel, nil
}

// ReconstructRelationship rebuilds a relationship from repository data,
// restoring canonical order if the source stored it reversed.
func ReconstructRelationship(
	id string,
	userA, userB valueobjects.IdentityID,
	relationType valueobjects.RelationType,
	hidden bool,
	strength int,
	lastInteraction *time.Time,
	verifiedAt, createdAt time.Time,
) (*Relationship, error) {
	if id == "" || userA.IsZero() || userB.IsZero() {
		return nil, pkgerrors.NewValidationError("required fields missing for relationship reconstruction")
	}
	if userA.Equals(userB) {
		return nil, pkgerrors.NewValidationError("relationship endpoints must differ")
	}

	a, b := valueobjects.CanonicalPair(userA, userB)
	return &Relationship{
		id:              id,
		userA:           a,
		userB:           b,
		relationType:    relationType,
		hidden:          hidden,
		strength:        strength,
		lastInteraction: lastInteraction,
		verifiedAt:      verifiedAt,
		createdAt:       createdAt,
		events:          []events.DomainEvent{},
	}, nil
}

// PairKey returns the canonical key for the unordered pair {a, b}
func PairKey(a, b valueobjects.IdentityID) string {
	lo, hi := valueobjects.CanonicalPair(a, b)
	return lo.String() + "|" + hi.String()
}

// ID returns the relationship id
func (r *Relationship) ID() string { return r.id }

// UserA returns the smaller endpoint
func (r *Relationship) UserA() valueobjects.IdentityID { return r.userA }

// UserB returns the larger endpoint
func (r *Relationship) UserB() valueobjects.IdentityID { return r.userB }

// RelationType returns the agreed relation type
func (r *Relationship) RelationType() valueobjects.RelationType { return r.relationType }

// Hidden reports whether the tie is hidden from the default view
func (r *Relationship) Hidden() bool { return r.hidden }

// Strength returns the 1..10 closeness rating
func (r *Relationship) Strength() int { return r.strength }

// LastInteraction returns the last recorded interaction, nil if never
func (r *Relationship) LastInteraction() *time.Time {
	if r.lastInteraction == nil {
		return nil
	}
	t := *r.lastInteraction
	return &t
}

// VerifiedAt returns when both parties confirmed the tie
func (r *Relationship) VerifiedAt() time.Time { return r.verifiedAt }

// CreatedAt returns when the relationship was created
func (r *Relationship) CreatedAt() time.Time { return r.createdAt }

// PairKey returns the canonical key of this relationship's endpoints
func (r *Relationship) PairKey() string {
	return r.userA.String() + "|" + r.userB.String()
}

// Involves reports whether id is one of the endpoints
func (r *Relationship) Involves(id valueobjects.IdentityID) bool {
	return r.userA.Equals(id) || r.userB.Equals(id)
}

// Counterpart returns the endpoint that is not viewer
func (r *Relationship) Counterpart(viewer valueobjects.IdentityID) valueobjects.IdentityID {
	if r.userA.Equals(viewer) {
		return r.userB
	}
	return r.userA
}

// SetStrength updates the closeness rating within the configured bounds
func (r *Relationship) SetStrength(strength int, cfg *config.DomainConfig) error {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if strength < cfg.MinStrength || strength > cfg.MaxStrength {
		return pkgerrors.NewValidationError(
			fmt.Sprintf("strength must be between %d and %d", cfg.MinStrength, cfg.MaxStrength))
	}
	r.strength = strength
	return nil
}

// RecordInteraction stamps the last time the two parties interacted
func (r *Relationship) RecordInteraction(at time.Time) error {
	if at.IsZero() {
		return pkgerrors.NewValidationError("interaction time cannot be empty")
	}
	t := at.UTC()
	r.lastInteraction = &t
	return nil
}

// IsFading reports whether the tie has had no interaction within threshold.
// A relationship that never recorded an interaction is always fading.
func (r *Relationship) IsFading(now time.Time, threshold time.Duration) bool {
	if r.lastInteraction == nil {
		return true
	}
	return now.Sub(*r.lastInteraction) > threshold
}

// MarkRemoved records the removal event
func (r *Relationship) MarkRemoved(at time.Time) {
	r.addEvent(events.NewRelationshipRemoved(r.id, r.userA, r.userB, at))
}

// Clone returns a copy without uncommitted events
func (r *Relationship) Clone() *Relationship {
	clone := *r
	clone.lastInteraction = r.LastInteraction()
	clone.events = []events.DomainEvent{}
	return &clone
}

// GetUncommittedEvents returns all uncommitted domain events
func (r *Relationship) GetUncommittedEvents() []events.DomainEvent {
	return r.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (r *Relationship) MarkEventsAsCommitted() {
	r.events = []events.DomainEvent{}
}

func (r *Relationship) addEvent(event events.DomainEvent) {
	r.events = append(r.events, event)
}
