package entities

import (
	"strings"
	"time"

	"github.com/LoadingLlama/relation/domain/core/valueobjects"
	"github.com/LoadingLlama/relation/domain/events"
	pkgerrors "github.com/LoadingLlama/relation/pkg/errors"
)

// Identity is a person who can send and accept connection requests.
// The raw identifier is never kept, only its hash.
type Identity struct {
	id             valueobjects.IdentityID
	displayName    string
	identifierHash valueobjects.IdentifierHash
	score          int
	createdAt      time.Time

	events []events.DomainEvent
}

// NewIdentity creates an identity from a display name and a raw contact identifier
func NewIdentity(displayName, rawIdentifier string) (*Identity, error) {
	return NewIdentityWithID(valueobjects.NewIdentityID(), displayName, rawIdentifier)
}

// NewIdentityWithID creates an identity whose id is issued elsewhere, such as
// the subject of an authentication token
func NewIdentityWithID(id valueobjects.IdentityID, displayName, rawIdentifier string) (*Identity, error) {
	if id.IsZero() {
		return nil, pkgerrors.NewValidationError("identity id cannot be empty")
	}
	name := strings.TrimSpace(displayName)
	if name == "" {
		return nil, pkgerrors.NewValidationError("display name cannot be empty")
	}
	if valueobjects.NormalizeIdentifier(rawIdentifier) == "" {
		return nil, pkgerrors.NewValidationError("identifier must contain digits")
	}

	return &Identity{
		id:             id,
		displayName:    name,
		identifierHash: valueobjects.HashIdentifier(rawIdentifier),
		createdAt:      time.Now().UTC(),
		events:         []events.DomainEvent{},
	}, nil
}

// ReconstructIdentity rebuilds an identity from repository data
func ReconstructIdentity(
	id valueobjects.IdentityID,
	displayName string,
	identifierHash valueobjects.IdentifierHash,
	score int,
	createdAt time.Time,
) (*Identity, error) {
	if id.IsZero() {
		return nil, pkgerrors.NewValidationError("identity id cannot be empty")
	}
	if score < 0 {
		return nil, pkgerrors.NewValidationError("score cannot be negative")
	}

	return &Identity{
		id:             id,
		displayName:    displayName,
		identifierHash: identifierHash,
		score:          score,
		createdAt:      createdAt,
		events:         []events.DomainEvent{},
	}, nil
}

// ID returns the identity's unique identifier
func (i *Identity) ID() valueobjects.IdentityID {
	return i.id
}

// DisplayName returns the name shown on graph nodes
func (i *Identity) DisplayName() string {
	return i.displayName
}

// IdentifierHash returns the hashed contact identifier
func (i *Identity) IdentifierHash() valueobjects.IdentifierHash {
	return i.identifierHash
}

// Score returns the contribution score
func (i *Identity) Score() int {
	return i.score
}

// CreatedAt returns when the identity was created
func (i *Identity) CreatedAt() time.Time {
	return i.createdAt
}

// IncrementScore records one more successful mutual verification
func (i *Identity) IncrementScore(at time.Time) {
	i.score++
	i.addEvent(events.NewIdentityScoreIncremented(i.id, i.score, at))
}

// Clone returns a copy without uncommitted events
func (i *Identity) Clone() *Identity {
	clone := *i
	clone.events = []events.DomainEvent{}
	return &clone
}

// GetUncommittedEvents returns all uncommitted domain events
func (i *Identity) GetUncommittedEvents() []events.DomainEvent {
	return i.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (i *Identity) MarkEventsAsCommitted() {
	i.events = []events.DomainEvent{}
}

func (i *Identity) addEvent(event events.DomainEvent) {
	i.events = append(i.events, event)
}
