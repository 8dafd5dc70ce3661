package ports

import (
	"context"

	"github.com/LoadingLlama/relation/domain/core/entities"
	"github.com/LoadingLlama/relation/domain/core/valueobjects"
	"github.com/LoadingLlama/relation/domain/events"
)

// IdentityRepository defines the interface for identity persistence
// This is a port in hexagonal architecture - the domain doesn't know about the implementation
type IdentityRepository interface {
	// GetByID retrieves an identity, NOT_FOUND if absent
	GetByID(ctx context.Context, id valueobjects.IdentityID) (*entities.Identity, error)

	// GetByIdentifierHash resolves a hashed identifier to the identity that registered it
	GetByIdentifierHash(ctx context.Context, hash valueobjects.IdentifierHash) (*entities.Identity, error)

	// Save persists an identity (create or update)
	Save(ctx context.Context, identity *entities.Identity) error

	// IncrementScore atomically adds one to the stored score and returns the new value
	IncrementScore(ctx context.Context, id valueobjects.IdentityID) (int, error)
}

// RequestRepository defines the interface for connection request persistence
type RequestRepository interface {
	// Save persists a request (create or update)
	Save(ctx context.Context, request *entities.ConnectionRequest) error

	// GetByID retrieves a request by its ID
	GetByID(ctx context.Context, id string) (*entities.ConnectionRequest, error)

	// ListForIdentity returns every request sent by the identity or addressed
	// to it, by resolved id or by identifier hash, oldest first
	ListForIdentity(ctx context.Context, identity *entities.Identity) ([]*entities.ConnectionRequest, error)

	// Delete removes a request
	Delete(ctx context.Context, id string) error
}

// RelationshipRepository defines the interface for relationship persistence
type RelationshipRepository interface {
	// CreateIfAbsent inserts the relationship unless one already exists for the
	// same unordered pair. It returns the stored relationship and whether it
	// was created by this call.
	CreateIfAbsent(ctx context.Context, relationship *entities.Relationship) (*entities.Relationship, bool, error)

	// GetByID retrieves a relationship by its ID
	GetByID(ctx context.Context, id string) (*entities.Relationship, error)

	// ListForIdentity returns relationships where the identity is either endpoint, oldest first
	ListForIdentity(ctx context.Context, id valueobjects.IdentityID) ([]*entities.Relationship, error)

	// Update persists the mutable fields (strength, last interaction)
	Update(ctx context.Context, relationship *entities.Relationship) error

	// Delete removes a relationship
	Delete(ctx context.Context, id string) error
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Snapshot is the offline copy of one viewer's session
type Snapshot struct {
	Identity      *entities.Identity
	Identities    []*entities.Identity
	Relationships []*entities.Relationship
	Requests      []*entities.ConnectionRequest
}

// LocalStore keeps the offline snapshot under three logical keys per viewer:
// current identity, relationship set and request set.
type LocalStore interface {
	// Save writes all three keys atomically
	Save(ctx context.Context, viewerID valueobjects.IdentityID, snapshot *Snapshot) error

	// Load reads a snapshot, NOT_FOUND if none was saved
	Load(ctx context.Context, viewerID valueobjects.IdentityID) (*Snapshot, error)

	// Delete removes the snapshot
	Delete(ctx context.Context, viewerID valueobjects.IdentityID) error
}

// Repositories groups the remote store ports
type Repositories struct {
	Identities    IdentityRepository
	Requests      RequestRepository
	Relationships RelationshipRepository
}
