package events

import (
	"time"

	"github.com/LoadingLlama/relation/domain/core/valueobjects"
)

// SourceBackend is the event source name used when publishing
const SourceBackend = "relation.backend"

// Event type names
const (
	TypeRequestCreated           = "request.created"
	TypeRequestAccepted          = "request.accepted"
	TypeRequestDeclined          = "request.declined"
	TypeRequestWithdrawn         = "request.withdrawn"
	TypeRelationshipCreated      = "relationship.created"
	TypeRelationshipRemoved      = "relationship.removed"
	TypeIdentityScoreIncremented = "identity.score_incremented"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

func newBase(aggregateID, eventType string, at time.Time) BaseEvent {
	return BaseEvent{
		AggregateID: aggregateID,
		EventType:   eventType,
		Timestamp:   at,
		Version:     1,
	}
}

// Request Events

// RequestCreated is raised when a sender issues a connection request
type RequestCreated struct {
	BaseEvent
	RequestID        string                      `json:"request_id"`
	FromID           valueobjects.IdentityID     `json:"from_id"`
	ToIdentifierHash valueobjects.IdentifierHash `json:"to_identifier_hash"`
	RelationType     string                      `json:"relation_type,omitempty"`
}

// NewRequestCreated creates a RequestCreated event
func NewRequestCreated(requestID string, fromID valueobjects.IdentityID, toHash valueobjects.IdentifierHash, relationType string, at time.Time) RequestCreated {
	return RequestCreated{
		BaseEvent:        newBase(requestID, TypeRequestCreated, at),
		RequestID:        requestID,
		FromID:           fromID,
		ToIdentifierHash: toHash,
		RelationType:     relationType,
	}
}

// RequestAccepted is raised when the recipient accepts a pending request
type RequestAccepted struct {
	BaseEvent
	RequestID    string                  `json:"request_id"`
	FromID       valueobjects.IdentityID `json:"from_id"`
	AcceptedBy   valueobjects.IdentityID `json:"accepted_by"`
	RelationType string                  `json:"relation_type,omitempty"`
}

// NewRequestAccepted creates a RequestAccepted event
func NewRequestAccepted(requestID string, fromID, acceptedBy valueobjects.IdentityID, relationType string, at time.Time) RequestAccepted {
	return RequestAccepted{
		BaseEvent:    newBase(requestID, TypeRequestAccepted, at),
		RequestID:    requestID,
		FromID:       fromID,
		AcceptedBy:   acceptedBy,
		RelationType: relationType,
	}
}

// RequestDeclined is raised when the recipient declines a pending request
type RequestDeclined struct {
	BaseEvent
	RequestID  string                  `json:"request_id"`
	FromID     valueobjects.IdentityID `json:"from_id"`
	DeclinedBy valueobjects.IdentityID `json:"declined_by"`
}

// NewRequestDeclined creates a RequestDeclined event
func NewRequestDeclined(requestID string, fromID, declinedBy valueobjects.IdentityID, at time.Time) RequestDeclined {
	return RequestDeclined{
		BaseEvent:  newBase(requestID, TypeRequestDeclined, at),
		RequestID:  requestID,
		FromID:     fromID,
		DeclinedBy: declinedBy,
	}
}

// RequestWithdrawn is raised when the sender removes a pending request
type RequestWithdrawn struct {
	BaseEvent
	RequestID string                  `json:"request_id"`
	FromID    valueobjects.IdentityID `json:"from_id"`
}

// NewRequestWithdrawn creates a RequestWithdrawn event
func NewRequestWithdrawn(requestID string, fromID valueobjects.IdentityID, at time.Time) RequestWithdrawn {
	return RequestWithdrawn{
		BaseEvent: newBase(requestID, TypeRequestWithdrawn, at),
		RequestID: requestID,
		FromID:    fromID,
	}
}

// Relationship Events

// RelationshipCreated is raised when an accepted request yields a verified edge
type RelationshipCreated struct {
	BaseEvent
	RelationshipID string                  `json:"relationship_id"`
	UserA          valueobjects.IdentityID `json:"user_a"`
	UserB          valueobjects.IdentityID `json:"user_b"`
	RelationType   string                  `json:"relation_type,omitempty"`
}

// NewRelationshipCreated creates a RelationshipCreated event
func NewRelationshipCreated(relationshipID string, userA, userB valueobjects.IdentityID, relationType string, at time.Time) RelationshipCreated {
	return RelationshipCreated{
		BaseEvent:      newBase(relationshipID, TypeRelationshipCreated, at),
		RelationshipID: relationshipID,
		UserA:          userA,
		UserB:          userB,
		RelationType:   relationType,
	}
}

// RelationshipRemoved is raised when a verified edge is deleted
type RelationshipRemoved struct {
	BaseEvent
	RelationshipID string                  `json:"relationship_id"`
	UserA          valueobjects.IdentityID `json:"user_a"`
	UserB          valueobjects.IdentityID `json:"user_b"`
}

// NewRelationshipRemoved creates a RelationshipRemoved event
func NewRelationshipRemoved(relationshipID string, userA, userB valueobjects.IdentityID, at time.Time) RelationshipRemoved {
	return RelationshipRemoved{
		BaseEvent:      newBase(relationshipID, TypeRelationshipRemoved, at),
		RelationshipID: relationshipID,
		UserA:          userA,
		UserB:          userB,
	}
}

// Identity Events

// IdentityScoreIncremented is raised when a mutual verification bumps a score
type IdentityScoreIncremented struct {
	BaseEvent
	IdentityID valueobjects.IdentityID `json:"identity_id"`
	Score      int                     `json:"score"`
}

// NewIdentityScoreIncremented creates an IdentityScoreIncremented event
func NewIdentityScoreIncremented(id valueobjects.IdentityID, score int, at time.Time) IdentityScoreIncremented {
	return IdentityScoreIncremented{
		BaseEvent:  newBase(id.String(), TypeIdentityScoreIncremented, at),
		IdentityID: id,
		Score:      score,
	}
}
