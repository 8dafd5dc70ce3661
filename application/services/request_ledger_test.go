package services

import (
	"context"
	"testing"

	"github.com/LoadingLlama/relation/domain/config"
	"github.com/LoadingLlama/relation/domain/core/entities"
	"github.com/LoadingLlama/relation/domain/events"
	pkgerrors "github.com/LoadingLlama/relation/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLedger_AcceptWithChosenType(t *testing.T) {
	// Arrange
	h := newHarness(t)
	ctx := context.Background()
	alice := h.register(t, "Alice", "555-000-0001")
	bob := h.register(t, "Bob", "(555) 000-0002")

	aliceWS := h.open(t, alice)
	req, err := aliceWS.Ledger.Create(ctx, CreateRequestInput{
		ToIdentifier: "555.000.0002",
		ToName:       "Bob",
		RelationType: "Friend",
	})
	require.NoError(t, err)
	assert.True(t, req.ToID().Equals(bob.ID()))

	bobWS := h.open(t, bob)
	incoming, err := bobWS.Ledger.List(entities.DirectionIncoming)
	require.NoError(t, err)
	require.Len(t, incoming, 1)

	// Act
	rel, err := bobWS.Ledger.Accept(ctx, req.ID(), "Coworker")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "Coworker", rel.RelationType().String())
	assert.Negative(t, rel.UserA().Compare(rel.UserB()))
	assert.True(t, rel.Involves(alice.ID()))
	assert.True(t, rel.Involves(bob.ID()))

	view, err := bobWS.Ledger.Get(req.ID())
	require.NoError(t, err)
	assert.Equal(t, entities.StatusAccepted, view.Request.Status())
	assert.Equal(t, entities.DirectionIncoming, view.Direction)

	stored, err := h.requests.GetByID(ctx, req.ID())
	require.NoError(t, err)
	assert.Equal(t, entities.StatusAccepted, stored.Status())

	assert.Equal(t, 1, h.score(t, alice))
	assert.Equal(t, 1, h.score(t, bob))
	viewer, err := bobWS.Session.Viewer()
	require.NoError(t, err)
	assert.Equal(t, 1, viewer.Score())

	assert.Contains(t, h.bus.Types(), events.TypeRequestAccepted)
	assert.Contains(t, h.bus.Types(), events.TypeRelationshipCreated)
	assert.Contains(t, h.bus.Types(), events.TypeIdentityScoreIncremented)
}

func TestRequestLedger_AcceptFallsBackToRequestType(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.register(t, "Alice", "5550000001")
	bob := h.register(t, "Bob", "5550000002")

	req, err := h.open(t, alice).Ledger.Create(ctx, CreateRequestInput{
		ToIdentifier: "5550000002", ToName: "Bob", RelationType: "Friend",
	})
	require.NoError(t, err)

	rel, err := h.open(t, bob).Ledger.Accept(ctx, req.ID(), "  ")
	require.NoError(t, err)
	assert.Equal(t, "Friend", rel.RelationType().String())
}

func TestRequestLedger_DoubleAcceptNeverDuplicates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.register(t, "Alice", "5550000001")
	bob := h.register(t, "Bob", "5550000002")

	aliceWS := h.open(t, alice)
	bobWS := h.open(t, bob)

	// Both parties send a request before either accepts
	toBob, err := aliceWS.Ledger.Create(ctx, CreateRequestInput{ToIdentifier: "5550000002", ToName: "Bob", RelationType: "Friend"})
	require.NoError(t, err)
	toAlice, err := bobWS.Ledger.Create(ctx, CreateRequestInput{ToIdentifier: "5550000001", ToName: "Alice", RelationType: "Friend"})
	require.NoError(t, err)

	// Sessions opened before the requests existed; reopen to see incoming ones
	aliceWS = h.open(t, alice)
	bobWS = h.open(t, bob)

	first, err := bobWS.Ledger.Accept(ctx, toBob.ID(), "")
	require.NoError(t, err)
	second, err := aliceWS.Ledger.Accept(ctx, toAlice.ID(), "")
	require.NoError(t, err)

	assert.Equal(t, first.ID(), second.ID())

	all, err := h.relationships.ListForIdentity(ctx, alice.ID())
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// One verified pair credits each endpoint once
	assert.Equal(t, 1, h.score(t, alice))
	assert.Equal(t, 1, h.score(t, bob))

	_, err = bobWS.Ledger.Accept(ctx, toBob.ID(), "")
	assert.True(t, pkgerrors.IsInvalidState(err))

	all, err = h.relationships.ListForIdentity(ctx, bob.ID())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRequestLedger_DeclineNeverCreatesRelationship(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.register(t, "Alice", "5550000001")
	bob := h.register(t, "Bob", "5550000002")

	req, err := h.open(t, alice).Ledger.Create(ctx, CreateRequestInput{ToIdentifier: "5550000002", ToName: "Bob", RelationType: "Friend"})
	require.NoError(t, err)

	bobWS := h.open(t, bob)
	require.NoError(t, bobWS.Ledger.Decline(ctx, req.ID()))

	views, err := bobWS.Ledger.List("")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, entities.StatusDeclined, views[0].Request.Status())

	assert.Empty(t, bobWS.Relationships.Query(bob.ID()))
	rels, err := h.relationships.ListForIdentity(ctx, bob.ID())
	require.NoError(t, err)
	assert.Empty(t, rels)
	assert.Equal(t, 0, h.score(t, bob))

	_, err = bobWS.Ledger.Accept(ctx, req.ID(), "")
	assert.True(t, pkgerrors.IsInvalidState(err))
}

func TestRequestLedger_Withdraw(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.register(t, "Alice", "5550000001")
	bob := h.register(t, "Bob", "5550000002")

	aliceWS := h.open(t, alice)
	req, err := aliceWS.Ledger.Create(ctx, CreateRequestInput{ToIdentifier: "5550000002", ToName: "Bob", RelationType: "Friend"})
	require.NoError(t, err)

	require.NoError(t, aliceWS.Ledger.Withdraw(ctx, req.ID()))

	views, err := aliceWS.Ledger.List("")
	require.NoError(t, err)
	assert.Empty(t, views)

	_, err = h.requests.GetByID(ctx, req.ID())
	assert.True(t, pkgerrors.IsNotFound(err))

	bobViews, err := h.open(t, bob).Ledger.List("")
	require.NoError(t, err)
	assert.Empty(t, bobViews)

	assert.Contains(t, h.bus.Types(), events.TypeRequestWithdrawn)
}

func TestRequestLedger_WithdrawRollsBackOnRemoteFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.register(t, "Alice", "5550000001")

	aliceWS := h.open(t, alice)
	first, err := aliceWS.Ledger.Create(ctx, CreateRequestInput{ToIdentifier: "5550000002", ToName: "Bob", RelationType: "Friend"})
	require.NoError(t, err)
	second, err := aliceWS.Ledger.Create(ctx, CreateRequestInput{ToIdentifier: "5550000003", ToName: "Carol", RelationType: "Friend"})
	require.NoError(t, err)

	h.requests.fail.Store(true)
	err = aliceWS.Ledger.Withdraw(ctx, first.ID())

	assert.True(t, pkgerrors.IsPersistence(err))
	views, err := aliceWS.Ledger.List(entities.DirectionOutgoing)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, first.ID(), views[0].Request.ID())
	assert.Equal(t, second.ID(), views[1].Request.ID())
	assert.NotContains(t, h.bus.Types(), events.TypeRequestWithdrawn)
}

func TestRequestLedger_WithdrawRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.register(t, "Alice", "5550000001")
	bob := h.register(t, "Bob", "5550000002")

	req, err := h.open(t, alice).Ledger.Create(ctx, CreateRequestInput{ToIdentifier: "5550000002", ToName: "Bob", RelationType: "Friend"})
	require.NoError(t, err)

	bobWS := h.open(t, bob)
	err = bobWS.Ledger.Withdraw(ctx, req.ID())
	assert.True(t, pkgerrors.IsInvalidState(err), "recipient cannot withdraw")

	err = bobWS.Ledger.Withdraw(ctx, "missing")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestRequestLedger_CreateValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.register(t, "Alice", "5550000001")
	ledger := h.open(t, alice).Ledger

	_, err := ledger.Create(ctx, CreateRequestInput{ToIdentifier: "5550000009", ToName: "Dup", RelationType: "Friend"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		input   CreateRequestInput
		checkFn func(error) bool
	}{
		{
			name:    "too few digits",
			input:   CreateRequestInput{ToIdentifier: "555-0001", ToName: "Bob", RelationType: "Friend"},
			checkFn: pkgerrors.IsValidation,
		},
		{
			name:    "missing relation type",
			input:   CreateRequestInput{ToIdentifier: "5550000002", ToName: "Bob"},
			checkFn: pkgerrors.IsValidation,
		},
		{
			name:    "relation type over two words",
			input:   CreateRequestInput{ToIdentifier: "5550000002", ToName: "Bob", RelationType: "Old College Friend"},
			checkFn: pkgerrors.IsValidation,
		},
		{
			name:    "relation type over thirty characters",
			input:   CreateRequestInput{ToIdentifier: "5550000002", ToName: "Bob", RelationType: "Extraordinarilysupercalifragilistic"},
			checkFn: pkgerrors.IsValidation,
		},
		{
			name:    "missing name",
			input:   CreateRequestInput{ToIdentifier: "5550000002", ToName: " ", RelationType: "Friend"},
			checkFn: pkgerrors.IsValidation,
		},
		{
			name:    "own identifier",
			input:   CreateRequestInput{ToIdentifier: "+555 000 0001", ToName: "Me", RelationType: "Friend"},
			checkFn: pkgerrors.IsValidation,
		},
		{
			name:    "duplicate pending request",
			input:   CreateRequestInput{ToIdentifier: "(555) 000-0009", ToName: "Dup", RelationType: "Friend"},
			checkFn: pkgerrors.IsInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ledger.Create(ctx, tt.input)

			assert.Nil(t, req)
			assert.True(t, tt.checkFn(err), "unexpected error: %v", err)
		})
	}

	views, err := ledger.List("")
	require.NoError(t, err)
	assert.Len(t, views, 1)
}

func TestRequestLedger_CreateRejectsExistingConnection(t *testing.T) {
	h := newHarness(t)
	alice := h.register(t, "Alice", "5550000001")
	bob := h.register(t, "Bob", "5550000002")
	h.connect(t, alice, bob)

	_, err := h.open(t, alice).Ledger.Create(context.Background(), CreateRequestInput{
		ToIdentifier: "5550000002", ToName: "Bob", RelationType: "Friend",
	})
	assert.True(t, pkgerrors.IsInvalidState(err))
}

func TestRequestLedger_CreateRetainedOnRemoteFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.register(t, "Alice", "5550000001")
	aliceWS := h.open(t, alice)

	h.requests.fail.Store(true)
	req, err := aliceWS.Ledger.Create(ctx, CreateRequestInput{ToIdentifier: "5550000002", ToName: "Bob", RelationType: "Friend"})

	assert.True(t, pkgerrors.IsPersistence(err))
	require.NotNil(t, req)
	assert.Equal(t, entities.StatusPending, req.Status())

	views, err := aliceWS.Ledger.List(entities.DirectionOutgoing)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, req.ID(), views[0].Request.ID())
	assert.NotContains(t, h.bus.Types(), events.TypeRequestCreated)
}

func TestRequestLedger_AcceptRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.register(t, "Alice", "5550000001")
	bob := h.register(t, "Bob", "5550000002")
	carol := h.register(t, "Carol", "5550000003")

	aliceWS := h.open(t, alice)
	req, err := aliceWS.Ledger.Create(ctx, CreateRequestInput{ToIdentifier: "5550000002", ToName: "Bob", RelationType: "Friend"})
	require.NoError(t, err)

	tests := []struct {
		name      string
		workspace func() *Workspace
		requestID string
		checkFn   func(error) bool
	}{
		{"sender cannot accept", func() *Workspace { return aliceWS }, req.ID(), pkgerrors.IsInvalidState},
		{"unknown request", func() *Workspace { return h.open(t, bob) }, "missing", pkgerrors.IsNotFound},
		{"unrelated viewer", func() *Workspace { return h.open(t, carol) }, req.ID(), pkgerrors.IsNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rel, err := tt.workspace().Ledger.Accept(ctx, tt.requestID, "")

			assert.Nil(t, rel)
			assert.True(t, tt.checkFn(err), "unexpected error: %v", err)
		})
	}
}

func TestRequestLedger_AcceptScoreRollback(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.register(t, "Alice", "5550000001")
	bob := h.register(t, "Bob", "5550000002")

	req, err := h.open(t, alice).Ledger.Create(ctx, CreateRequestInput{ToIdentifier: "5550000002", ToName: "Bob", RelationType: "Friend"})
	require.NoError(t, err)

	bobWS := h.open(t, bob)
	h.identities.fail.Store(true)
	rel, err := bobWS.Ledger.Accept(ctx, req.ID(), "")

	assert.True(t, pkgerrors.IsPersistence(err))
	require.NotNil(t, rel)
	assert.Len(t, bobWS.Relationships.Query(bob.ID()), 1)

	viewer, err := bobWS.Session.Viewer()
	require.NoError(t, err)
	assert.Equal(t, 0, viewer.Score())
	assert.NotContains(t, h.bus.Types(), events.TypeIdentityScoreIncremented)
}

func TestRequestLedger_AcceptRetainedWhenRelationshipWriteFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.register(t, "Alice", "5550000001")
	bob := h.register(t, "Bob", "5550000002")

	req, err := h.open(t, alice).Ledger.Create(ctx, CreateRequestInput{ToIdentifier: "5550000002", ToName: "Bob", RelationType: "Friend"})
	require.NoError(t, err)

	bobWS := h.open(t, bob)
	h.relationships.fail.Store(true)
	rel, err := bobWS.Ledger.Accept(ctx, req.ID(), "")

	assert.True(t, pkgerrors.IsPersistence(err))
	require.NotNil(t, rel)
	assert.Len(t, bobWS.Relationships.Query(bob.ID()), 1)

	view, err := bobWS.Ledger.Get(req.ID())
	require.NoError(t, err)
	assert.Equal(t, entities.StatusAccepted, view.Request.Status())
	assert.NotContains(t, h.bus.Types(), events.TypeRelationshipCreated)
}

func TestRequestLedger_UntypedDeployment(t *testing.T) {
	cfg := testDomainConfig()
	cfg.RequestKind = config.RequestKindUntyped
	h := newHarnessWithConfig(t, cfg)
	ctx := context.Background()
	alice := h.register(t, "Alice", "5550000001")
	bob := h.register(t, "Bob", "5550000002")
	aliceWS := h.open(t, alice)

	_, err := aliceWS.Ledger.Create(ctx, CreateRequestInput{ToIdentifier: "5550000002", ToName: "Bob", RelationType: "Friend"})
	assert.True(t, pkgerrors.IsValidation(err))

	req, err := aliceWS.Ledger.Create(ctx, CreateRequestInput{ToIdentifier: "5550000002", ToName: "Bob"})
	require.NoError(t, err)
	assert.False(t, req.Kind().IsTyped())

	rel, err := h.open(t, bob).Ledger.Accept(ctx, req.ID(), "")
	require.NoError(t, err)
	assert.True(t, rel.RelationType().IsEmpty())
}

func TestRequestLedger_ListDirections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.register(t, "Alice", "5550000001")
	h.register(t, "Bob", "5550000002")
	carol := h.register(t, "Carol", "5550000003")

	_, err := h.open(t, carol).Ledger.Create(ctx, CreateRequestInput{ToIdentifier: "5550000001", ToName: "Alice", RelationType: "Friend"})
	require.NoError(t, err)

	aliceWS := h.open(t, alice)
	_, err = aliceWS.Ledger.Create(ctx, CreateRequestInput{ToIdentifier: "5550000002", ToName: "Bob", RelationType: "Friend"})
	require.NoError(t, err)

	tests := []struct {
		direction entities.Direction
		expected  int
	}{
		{"", 2},
		{entities.DirectionIncoming, 1},
		{entities.DirectionOutgoing, 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.direction), func(t *testing.T) {
			views, err := aliceWS.Ledger.List(tt.direction)
			require.NoError(t, err)
			assert.Len(t, views, tt.expected)
			for _, v := range views {
				if tt.direction != "" {
					assert.Equal(t, tt.direction, v.Direction)
				}
			}
		})
	}
}

func TestRequestLedger_OfflineSnapshotFailureIsBestEffort(t *testing.T) {
	local := &brokenLocalStore{}
	h := buildHarness(t, testDomainConfig(), local)
	ctx := context.Background()
	alice := h.register(t, "Alice", "5550000001")
	bob := h.register(t, "Bob", "5550000002")

	req, err := h.open(t, alice).Ledger.Create(ctx, CreateRequestInput{
		ToIdentifier: "5550000002", ToName: "Bob", RelationType: "Friend",
	})
	require.NoError(t, err)

	bobWS := h.open(t, bob)
	before := local.saves.Load()
	rel, err := bobWS.Ledger.Accept(ctx, req.ID(), "")
	require.NoError(t, err, "snapshot write failures never fail the operation")
	assert.Greater(t, local.saves.Load(), before)

	assert.Len(t, bobWS.Relationships.Query(bob.ID()), 1)
	assert.Equal(t, rel.ID(), bobWS.Relationships.Query(bob.ID())[0].ID())
	assert.Equal(t, 1, h.score(t, bob))
}
