package entities

import (
	"testing"
	"time"

	"github.com/LoadingLlama/relation/domain/core/valueobjects"
	"github.com/LoadingLlama/relation/domain/events"
	pkgerrors "github.com/LoadingLlama/relation/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIdentity(t *testing.T, name, phone string) *Identity {
	t.Helper()
	identity, err := NewIdentity(name, phone)
	require.NoError(t, err)
	return identity
}

func newPendingRequest(t *testing.T, from, to *Identity) *ConnectionRequest {
	t.Helper()
	req, err := NewConnectionRequest(
		from.ID(),
		to.IdentifierHash(),
		to.DisplayName(),
		valueobjects.Typed("Friend"),
		false,
	)
	require.NoError(t, err)
	return req
}

func TestNewConnectionRequest(t *testing.T) {
	alice := newTestIdentity(t, "Alice", "555-000-0001")
	bob := newTestIdentity(t, "Bob", "555-000-0002")

	req := newPendingRequest(t, alice, bob)

	assert.NotEmpty(t, req.ID())
	assert.Equal(t, StatusPending, req.Status())
	assert.True(t, req.ToID().IsZero())
	assert.Equal(t, "Bob", req.ToName())

	evts := req.GetUncommittedEvents()
	require.Len(t, evts, 1)
	assert.Equal(t, events.TypeRequestCreated, evts[0].GetEventType())
}

func TestNewConnectionRequest_Validation(t *testing.T) {
	hash := valueobjects.HashIdentifier("5550000001")

	_, err := NewConnectionRequest(valueobjects.IdentityID{}, hash, "x", valueobjects.Untyped(), false)
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = NewConnectionRequest(valueobjects.NewIdentityID(), valueobjects.IdentifierHash{}, "x", valueobjects.Untyped(), false)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestConnectionRequest_Direction(t *testing.T) {
	alice := newTestIdentity(t, "Alice", "555-000-0001")
	bob := newTestIdentity(t, "Bob", "555-000-0002")
	carol := newTestIdentity(t, "Carol", "555-000-0003")
	req := newPendingRequest(t, alice, bob)

	tests := []struct {
		name     string
		viewer   *Identity
		expected Direction
	}{
		{name: "sender sees outgoing", viewer: alice, expected: DirectionOutgoing},
		{name: "recipient sees incoming", viewer: bob, expected: DirectionIncoming},
		{name: "third party sees incoming", viewer: carol, expected: DirectionIncoming},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, req.Direction(tt.viewer.ID()))
			assert.Equal(t, req.FromID().Equals(tt.viewer.ID()), req.Direction(tt.viewer.ID()) == DirectionOutgoing)
		})
	}
}

func TestConnectionRequest_IsAddressedTo(t *testing.T) {
	alice := newTestIdentity(t, "Alice", "555-000-0001")
	bob := newTestIdentity(t, "Bob", "555-000-0002")
	req := newPendingRequest(t, alice, bob)

	assert.True(t, req.IsAddressedTo(bob))
	assert.False(t, req.IsAddressedTo(alice))
	assert.False(t, req.IsAddressedTo(nil))

	// once resolved, the id wins over the hash
	other := valueobjects.NewIdentityID()
	req.ResolveRecipient(other)
	assert.False(t, req.IsAddressedTo(bob))
}

func TestConnectionRequest_Accept(t *testing.T) {
	alice := newTestIdentity(t, "Alice", "555-000-0001")
	bob := newTestIdentity(t, "Bob", "555-000-0002")

	t.Run("recipient accepts", func(t *testing.T) {
		req := newPendingRequest(t, alice, bob)
		req.MarkEventsAsCommitted()
		at := time.Now().UTC()

		err := req.Accept(bob.ID(), "Coworker", at)

		require.NoError(t, err)
		assert.Equal(t, StatusAccepted, req.Status())
		assert.True(t, req.ToID().Equals(bob.ID()))
		assert.Equal(t, at, req.UpdatedAt())
		require.Len(t, req.GetUncommittedEvents(), 1)
		assert.Equal(t, events.TypeRequestAccepted, req.GetUncommittedEvents()[0].GetEventType())
	})

	t.Run("sender cannot accept", func(t *testing.T) {
		req := newPendingRequest(t, alice, bob)

		err := req.Accept(alice.ID(), "", time.Now())

		assert.True(t, pkgerrors.IsInvalidState(err))
		assert.Equal(t, StatusPending, req.Status())
	})

	t.Run("terminal requests are immutable", func(t *testing.T) {
		req := newPendingRequest(t, alice, bob)
		require.NoError(t, req.Decline(bob.ID(), time.Now()))

		assert.True(t, pkgerrors.IsInvalidState(req.Accept(bob.ID(), "", time.Now())))
		assert.True(t, pkgerrors.IsInvalidState(req.Decline(bob.ID(), time.Now())))
		assert.Equal(t, StatusDeclined, req.Status())
	})
}

func TestConnectionRequest_Withdraw(t *testing.T) {
	alice := newTestIdentity(t, "Alice", "555-000-0001")
	bob := newTestIdentity(t, "Bob", "555-000-0002")

	tests := []struct {
		name    string
		prepare func(req *ConnectionRequest)
		viewer  *Identity
		wantErr bool
	}{
		{name: "sender withdraws pending", viewer: alice},
		{name: "recipient cannot withdraw", viewer: bob, wantErr: true},
		{
			name:    "accepted cannot be withdrawn",
			viewer:  alice,
			prepare: func(req *ConnectionRequest) { _ = req.Accept(bob.ID(), "", time.Now()) },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newPendingRequest(t, alice, bob)
			if tt.prepare != nil {
				tt.prepare(req)
			}

			err := req.Withdraw(tt.viewer.ID(), time.Now())

			if tt.wantErr {
				assert.True(t, pkgerrors.IsInvalidState(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseRequestStatus(t *testing.T) {
	s, err := ParseRequestStatus("Accepted")
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, s)
	assert.True(t, s.IsTerminal())

	_, err = ParseRequestStatus("archived")
	assert.Error(t, err)
}
