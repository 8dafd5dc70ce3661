package entities

import (
	"strings"
	"time"

	"github.com/LoadingLlama/relation/domain/core/valueobjects"
	"github.com/LoadingLlama/relation/domain/events"
	pkgerrors "github.com/LoadingLlama/relation/pkg/errors"

	"github.com/google/uuid"
)

// RequestStatus represents the lifecycle state of a connection request
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusAccepted RequestStatus = "accepted"
	StatusDeclined RequestStatus = "declined"
)

// IsTerminal reports whether no further transition is allowed
func (s RequestStatus) IsTerminal() bool {
	return s == StatusAccepted || s == StatusDeclined
}

// ParseRequestStatus converts a stored status string
func ParseRequestStatus(s string) (RequestStatus, error) {
	switch RequestStatus(strings.ToLower(s)) {
	case StatusPending:
		return StatusPending, nil
	case StatusAccepted:
		return StatusAccepted, nil
	case StatusDeclined:
		return StatusDeclined, nil
	default:
		return "", pkgerrors.NewValidationError("unknown request status: " + s)
	}
}

// Direction is a request's orientation relative to a viewer. It is derived,
// never stored.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
)

// ConnectionRequest asks the owner of an identifier to verify a tie with the sender.
//
// Pending moves to Accepted or Declined exactly once; a pending request may
// also be withdrawn by its sender, which removes it. Accepted and Declined
// requests are immutable.
type ConnectionRequest struct {
	id               string
	fromID           valueobjects.IdentityID
	toIdentifierHash valueobjects.IdentifierHash
	toID             valueobjects.IdentityID
	toName           string
	kind             valueobjects.RequestKind
	hidden           bool
	status           RequestStatus
	createdAt        time.Time
	updatedAt        time.Time

	events []events.DomainEvent
}

// NewConnectionRequest creates a pending request. Input policy (identifier
// length, relation type) is applied by the caller when building toHash and kind.
func NewConnectionRequest(
	fromID valueobjects.IdentityID,
	toHash valueobjects.IdentifierHash,
	toName string,
	kind valueobjects.RequestKind,
	hidden bool,
) (*ConnectionRequest, error) {
	if fromID.IsZero() {
		return nil, pkgerrors.NewValidationError("sender id cannot be empty")
	}
	if toHash.IsZero() {
		return nil, pkgerrors.NewValidationError("recipient identifier cannot be empty")
	}

	now := time.Now().UTC()
	req := &ConnectionRequest{
		id:               uuid.New().String(),
		fromID:           fromID,
		toIdentifierHash: toHash,
		toName:           strings.TrimSpace(toName),
		kind:             kind,
		hidden:           hidden,
		status:           StatusPending,
		createdAt:        now,
		updatedAt:        now,
		events:           []events.DomainEvent{},
	}

	req.addEvent(events.NewRequestCreated(req.id, fromID, toHash, kind.RelationType().String(), now))

	return req, nil
}

// ReconstructConnectionRequest rebuilds a request from repository data
func ReconstructConnectionRequest(
	id string,
	fromID valueobjects.IdentityID,
	toHash valueobjects.IdentifierHash,
	toID valueobjects.IdentityID,
	toName string,
	kind valueobjects.RequestKind,
	hidden bool,
	status RequestStatus,
	createdAt, updatedAt time.Time,
) (*ConnectionRequest, error) {
	if id == "" || fromID.IsZero() || toHash.IsZero() {
		return nil, pkgerrors.NewValidationError("required fields missing for request reconstruction")
	}

	return &ConnectionRequest{
		id:               id,
		fromID:           fromID,
		toIdentifierHash: toHash,
		toID:             toID,
		toName:           toName,
		kind:             kind,
		hidden:           hidden,
		status:           status,
		createdAt:        createdAt,
		updatedAt:        updatedAt,
		events:           []events.DomainEvent{},
	}, nil
}

// ID returns the request id
func (r *ConnectionRequest) ID() string { return r.id }

// FromID returns the sender
func (r *ConnectionRequest) FromID() valueobjects.IdentityID { return r.fromID }

// ToIdentifierHash returns the hashed identifier of the intended recipient
func (r *ConnectionRequest) ToIdentifierHash() valueobjects.IdentifierHash {
	return r.toIdentifierHash
}

// ToID returns the resolved recipient. The zero value means unresolved.
func (r *ConnectionRequest) ToID() valueobjects.IdentityID { return r.toID }

// ToName returns the name the sender gave the recipient
func (r *ConnectionRequest) ToName() string { return r.toName }

// Kind returns the typed/untyped variant
func (r *ConnectionRequest) Kind() valueobjects.RequestKind { return r.kind }

// RelationType returns the requested relation type, empty when untyped
func (r *ConnectionRequest) RelationType() valueobjects.RelationType {
	return r.kind.RelationType()
}

// Hidden reports whether the sender hid this tie from the default view
func (r *ConnectionRequest) Hidden() bool { return r.hidden }

// Status returns the lifecycle state
func (r *ConnectionRequest) Status() RequestStatus { return r.status }

// CreatedAt returns when the request was created
func (r *ConnectionRequest) CreatedAt() time.Time { return r.createdAt }

// UpdatedAt returns when the request last changed
func (r *ConnectionRequest) UpdatedAt() time.Time { return r.updatedAt }

// Direction returns Outgoing iff the viewer sent the request
func (r *ConnectionRequest) Direction(viewer valueobjects.IdentityID) Direction {
	if r.fromID.Equals(viewer) {
		return DirectionOutgoing
	}
	return DirectionIncoming
}

// IsAddressedTo reports whether the request targets the identity, either by
// resolved id or, while unresolved, by identifier hash.
func (r *ConnectionRequest) IsAddressedTo(identity *Identity) bool {
	if identity == nil {
		return false
	}
	if !r.toID.IsZero() {
		return r.toID.Equals(identity.ID())
	}
	return r.toIdentifierHash.Equals(identity.IdentifierHash())
}

// ResolveRecipient binds the request to a known identity once its hash matches
func (r *ConnectionRequest) ResolveRecipient(id valueobjects.IdentityID) {
	if !r.toID.IsZero() || id.IsZero() {
		return
	}
	r.toID = id
}

// Accept moves a pending incoming request to Accepted
func (r *ConnectionRequest) Accept(viewer valueobjects.IdentityID, relationType valueobjects.RelationType, at time.Time) error {
	if err := r.checkRecipientTransition(viewer, "accept"); err != nil {
		return err
	}

	r.ResolveRecipient(viewer)
	r.status = StatusAccepted
	r.updatedAt = at

	r.addEvent(events.NewRequestAccepted(r.id, r.fromID, viewer, relationType.String(), at))
	return nil
}

// Decline moves a pending incoming request to Declined
func (r *ConnectionRequest) Decline(viewer valueobjects.IdentityID, at time.Time) error {
	if err := r.checkRecipientTransition(viewer, "decline"); err != nil {
		return err
	}

	r.ResolveRecipient(viewer)
	r.status = StatusDeclined
	r.updatedAt = at

	r.addEvent(events.NewRequestDeclined(r.id, r.fromID, viewer, at))
	return nil
}

// Withdraw validates that the viewer may remove this request and records the event.
// Removal itself is performed by the ledger.
func (r *ConnectionRequest) Withdraw(viewer valueobjects.IdentityID, at time.Time) error {
	if r.status != StatusPending {
		return pkgerrors.NewInvalidStateError("only pending requests can be withdrawn")
	}
	if r.Direction(viewer) != DirectionOutgoing {
		return pkgerrors.NewInvalidStateError("only the sender can withdraw a request")
	}

	r.addEvent(events.NewRequestWithdrawn(r.id, r.fromID, at))
	return nil
}

func (r *ConnectionRequest) checkRecipientTransition(viewer valueobjects.IdentityID, action string) error {
	if r.status != StatusPending {
		return pkgerrors.NewInvalidStateError("cannot " + action + " a request that is " + string(r.status))
	}
	if r.Direction(viewer) != DirectionIncoming {
		return pkgerrors.NewInvalidStateError("cannot " + action + " an outgoing request")
	}
	return nil
}

// Clone returns a copy without uncommitted events
func (r *ConnectionRequest) Clone() *ConnectionRequest {
	clone := *r
	clone.events = []events.DomainEvent{}
	return &clone
}

// GetUncommittedEvents returns all uncommitted domain events
func (r *ConnectionRequest) GetUncommittedEvents() []events.DomainEvent {
	return r.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (r *ConnectionRequest) MarkEventsAsCommitted() {
	r.events = []events.DomainEvent{}
}

func (r *ConnectionRequest) addEvent(event events.DomainEvent) {
	r.events = append(r.events, event)
}
