package services

import (
	"context"
	"testing"
	"time"

	"github.com/LoadingLlama/relation/domain/events"
	pkgerrors "github.com/LoadingLlama/relation/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelationshipStore_CreateFromAcceptanceIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.register(t, "Alice", "5550000001")
	bob := h.register(t, "Bob", "5550000002")
	store := h.open(t, alice).Relationships

	first, created, err := store.CreateFromAcceptance(ctx, alice.ID(), bob.ID(), "Friend", false)
	require.NoError(t, err)
	assert.True(t, created)
	second, created, err := store.CreateFromAcceptance(ctx, bob.ID(), alice.ID(), "Coworker", true)
	require.NoError(t, err)
	assert.False(t, created, "existing pair is returned, not created")

	assert.Equal(t, first.ID(), second.ID())
	assert.Equal(t, "Friend", second.RelationType().String())
	assert.Len(t, store.Query(alice.ID()), 1)

	createdEvents := 0
	for _, typ := range h.bus.Types() {
		if typ == events.TypeRelationshipCreated {
			createdEvents++
		}
	}
	assert.Equal(t, 1, createdEvents)
}

func TestRelationshipStore_CreateFromAcceptanceRemoteRace(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.register(t, "Alice", "5550000001")
	bob := h.register(t, "Bob", "5550000002")
	store := h.open(t, alice).Relationships

	// Bob's side stored the pair after Alice's session was loaded
	existing := h.connect(t, bob, alice)

	rel, created, err := store.CreateFromAcceptance(ctx, alice.ID(), bob.ID(), "Friend", false)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing.ID(), rel.ID())
	assert.Len(t, store.Query(alice.ID()), 1)
}

func TestRelationshipStore_CreateRejectsSelf(t *testing.T) {
	h := newHarness(t)
	alice := h.register(t, "Alice", "5550000001")
	store := h.open(t, alice).Relationships

	rel, created, err := store.CreateFromAcceptance(context.Background(), alice.ID(), alice.ID(), "Friend", false)

	assert.Nil(t, rel)
	assert.False(t, created)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.Empty(t, store.Query(alice.ID()))
}

func TestRelationshipStore_Remove(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.register(t, "Alice", "5550000001")
	bob := h.register(t, "Bob", "5550000002")
	rel := h.connect(t, alice, bob)
	store := h.open(t, alice).Relationships

	require.NoError(t, store.Remove(ctx, rel.ID()))

	assert.Empty(t, store.Query(alice.ID()))
	_, err := h.relationships.GetByID(ctx, rel.ID())
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.Contains(t, h.bus.Types(), events.TypeRelationshipRemoved)

	err = store.Remove(ctx, rel.ID())
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestRelationshipStore_RemoveRollsBackInPlace(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.register(t, "Alice", "5550000001")
	bob := h.register(t, "Bob", "5550000002")
	carol := h.register(t, "Carol", "5550000003")
	dave := h.register(t, "Dave", "5550000004")
	h.connect(t, alice, bob)
	middle := h.connect(t, alice, carol)
	h.connect(t, alice, dave)
	store := h.open(t, alice).Relationships
	before := store.Query(alice.ID())

	h.relationships.fail.Store(true)
	err := store.Remove(ctx, middle.ID())

	assert.True(t, pkgerrors.IsPersistence(err))
	after := store.Query(alice.ID())
	require.Len(t, after, 3)
	for i := range before {
		assert.Equal(t, before[i].ID(), after[i].ID())
	}
	assert.NotContains(t, h.bus.Types(), events.TypeRelationshipRemoved)
}

func TestRelationshipStore_SetStrength(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.register(t, "Alice", "5550000001")
	bob := h.register(t, "Bob", "5550000002")
	rel := h.connect(t, alice, bob)
	store := h.open(t, alice).Relationships

	tests := []struct {
		name     string
		strength int
		fail     bool
		checkFn  func(error) bool
		expected int
	}{
		{name: "valid", strength: 8, expected: 8},
		{name: "below range", strength: 0, checkFn: pkgerrors.IsValidation, expected: 8},
		{name: "above range", strength: 11, checkFn: pkgerrors.IsValidation, expected: 8},
		{name: "remote failure rolls back", strength: 2, fail: true, checkFn: pkgerrors.IsPersistence, expected: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.relationships.fail.Store(tt.fail)
			defer h.relationships.fail.Store(false)

			_, err := store.SetStrength(ctx, rel.ID(), tt.strength)

			if tt.checkFn == nil {
				require.NoError(t, err)
			} else {
				assert.True(t, tt.checkFn(err), "unexpected error: %v", err)
			}
			current, err := store.Get(rel.ID())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, current.Strength())
		})
	}
}

func TestRelationshipStore_RecordInteraction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice := h.register(t, "Alice", "5550000001")
	bob := h.register(t, "Bob", "5550000002")
	rel := h.connect(t, alice, bob)
	store := h.open(t, alice).Relationships
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	updated, err := store.RecordInteraction(ctx, rel.ID(), at)
	require.NoError(t, err)
	require.NotNil(t, updated.LastInteraction())
	assert.True(t, updated.LastInteraction().Equal(at))

	stored, err := h.relationships.GetByID(ctx, rel.ID())
	require.NoError(t, err)
	require.NotNil(t, stored.LastInteraction())

	_, err = store.RecordInteraction(ctx, rel.ID(), time.Time{})
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = store.RecordInteraction(ctx, "missing", at)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestRelationshipStore_QueryOnlyViewerEdges(t *testing.T) {
	h := newHarness(t)
	alice := h.register(t, "Alice", "5550000001")
	bob := h.register(t, "Bob", "5550000002")
	carol := h.register(t, "Carol", "5550000003")
	h.connect(t, alice, bob)
	h.connect(t, bob, carol)

	store := h.open(t, alice).Relationships

	rels := store.Query(alice.ID())
	require.Len(t, rels, 1)
	assert.True(t, rels[0].Involves(bob.ID()))
	assert.Empty(t, store.Query(carol.ID()))
}
