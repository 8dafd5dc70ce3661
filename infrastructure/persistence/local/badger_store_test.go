package local

import (
	"context"
	"testing"
	"time"

	"github.com/LoadingLlama/relation/application/ports"
	"github.com/LoadingLlama/relation/domain/core/entities"
	"github.com/LoadingLlama/relation/domain/core/valueobjects"
	pkgerrors "github.com/LoadingLlama/relation/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T, dir string) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore(Options{Dir: dir}, zap.NewNop())
	require.NoError(t, err)
	return store
}

func testSnapshot(t *testing.T) *ports.Snapshot {
	t.Helper()
	alice, err := entities.NewIdentity("Alice", "5550000001")
	require.NoError(t, err)
	bob, err := entities.NewIdentity("Bob", "5550000002")
	require.NoError(t, err)

	rel, err := entities.NewRelationship(alice.ID(), bob.ID(), "Friend", true, nil)
	require.NoError(t, err)
	require.NoError(t, rel.RecordInteraction(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))

	req, err := entities.NewConnectionRequest(alice.ID(), valueobjects.HashIdentifier("5550000003"), "Carol", valueobjects.Untyped(), false)
	require.NoError(t, err)

	return &ports.Snapshot{
		Identity:      alice,
		Identities:    []*entities.Identity{bob},
		Relationships: []*entities.Relationship{rel},
		Requests:      []*entities.ConnectionRequest{req},
	}
}

func TestBadgerStore_RoundTrip(t *testing.T) {
	store := newTestStore(t, "")
	defer store.Close()
	ctx := context.Background()
	snapshot := testSnapshot(t)
	viewer := snapshot.Identity.ID()

	require.NoError(t, store.Save(ctx, viewer, snapshot))
	loaded, err := store.Load(ctx, viewer)
	require.NoError(t, err)

	assert.True(t, loaded.Identity.ID().Equals(viewer))
	assert.Equal(t, "Alice", loaded.Identity.DisplayName())
	assert.True(t, loaded.Identity.IdentifierHash().Equals(snapshot.Identity.IdentifierHash()))

	require.Len(t, loaded.Identities, 1)
	assert.Equal(t, "Bob", loaded.Identities[0].DisplayName())

	require.Len(t, loaded.Relationships, 1)
	rel := loaded.Relationships[0]
	assert.Equal(t, snapshot.Relationships[0].ID(), rel.ID())
	assert.True(t, rel.Hidden())
	require.NotNil(t, rel.LastInteraction())

	require.Len(t, loaded.Requests, 1)
	req := loaded.Requests[0]
	assert.Equal(t, "Carol", req.ToName())
	assert.False(t, req.Kind().IsTyped())
	assert.Equal(t, entities.StatusPending, req.Status())
	assert.True(t, req.ToID().IsZero())
}

func TestBadgerStore_MissingAndDelete(t *testing.T) {
	store := newTestStore(t, "")
	defer store.Close()
	ctx := context.Background()
	snapshot := testSnapshot(t)
	viewer := snapshot.Identity.ID()

	_, err := store.Load(ctx, viewer)
	assert.True(t, pkgerrors.IsNotFound(err))

	require.NoError(t, store.Save(ctx, viewer, snapshot))
	require.NoError(t, store.Delete(ctx, viewer))

	_, err = store.Load(ctx, viewer)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestBadgerStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	snapshot := testSnapshot(t)
	viewer := snapshot.Identity.ID()

	store := newTestStore(t, dir)
	require.NoError(t, store.Save(ctx, viewer, snapshot))
	require.NoError(t, store.Close())

	reopened := newTestStore(t, dir)
	defer reopened.Close()
	loaded, err := reopened.Load(ctx, viewer)
	require.NoError(t, err)
	assert.Len(t, loaded.Relationships, 1)
}

func TestBadgerStore_RejectsEmptySnapshot(t *testing.T) {
	store := newTestStore(t, "")
	defer store.Close()

	err := store.Save(context.Background(), valueobjects.NewIdentityID(), &ports.Snapshot{})
	assert.True(t, pkgerrors.IsValidation(err))
}
