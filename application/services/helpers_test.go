package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LoadingLlama/relation/application/ports"
	"github.com/LoadingLlama/relation/application/session"
	"github.com/LoadingLlama/relation/domain/config"
	"github.com/LoadingLlama/relation/domain/core/entities"
	"github.com/LoadingLlama/relation/domain/core/valueobjects"
	"github.com/LoadingLlama/relation/infrastructure/persistence/memory"
	"github.com/LoadingLlama/relation/pkg/observability"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errRemoteDown = errors.New("remote store unavailable")

// flakyRelationships fails writes while fail is set
type flakyRelationships struct {
	*memory.RelationshipRepository
	fail atomic.Bool
}

func (r *flakyRelationships) CreateIfAbsent(ctx context.Context, rel *entities.Relationship) (*entities.Relationship, bool, error) {
	if r.fail.Load() {
		return nil, false, errRemoteDown
	}
	return r.RelationshipRepository.CreateIfAbsent(ctx, rel)
}

func (r *flakyRelationships) Update(ctx context.Context, rel *entities.Relationship) error {
	if r.fail.Load() {
		return errRemoteDown
	}
	return r.RelationshipRepository.Update(ctx, rel)
}

func (r *flakyRelationships) Delete(ctx context.Context, id string) error {
	if r.fail.Load() {
		return errRemoteDown
	}
	return r.RelationshipRepository.Delete(ctx, id)
}

// flakyRequests fails writes while fail is set
type flakyRequests struct {
	*memory.RequestRepository
	fail atomic.Bool
}

func (r *flakyRequests) Save(ctx context.Context, req *entities.ConnectionRequest) error {
	if r.fail.Load() {
		return errRemoteDown
	}
	return r.RequestRepository.Save(ctx, req)
}

func (r *flakyRequests) Delete(ctx context.Context, id string) error {
	if r.fail.Load() {
		return errRemoteDown
	}
	return r.RequestRepository.Delete(ctx, id)
}

// flakyIdentities fails score increments while fail is set
type flakyIdentities struct {
	*memory.IdentityRepository
	fail atomic.Bool
}

func (r *flakyIdentities) IncrementScore(ctx context.Context, id valueobjects.IdentityID) (int, error) {
	if r.fail.Load() {
		return 0, errRemoteDown
	}
	return r.IdentityRepository.IncrementScore(ctx, id)
}

type harness struct {
	identities    *flakyIdentities
	requests      *flakyRequests
	relationships *flakyRelationships
	bus           *memory.EventBus
	config        *config.DomainConfig
	factory       *WorkspaceFactory
}

func testDomainConfig() *config.DomainConfig {
	cfg := config.DefaultDomainConfig()
	cfg.RevealInitialDelay = 5 * time.Millisecond
	cfg.RevealPeriod = 5 * time.Millisecond
	return cfg
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithConfig(t, testDomainConfig())
}

func newHarnessWithConfig(t *testing.T, cfg *config.DomainConfig) *harness {
	t.Helper()
	return buildHarness(t, cfg, nil)
}

// brokenLocalStore fails every snapshot write and counts the attempts
type brokenLocalStore struct {
	saves atomic.Int32
}

func (b *brokenLocalStore) Save(ctx context.Context, viewerID valueobjects.IdentityID, snapshot *ports.Snapshot) error {
	b.saves.Add(1)
	return errors.New("disk full")
}

func (b *brokenLocalStore) Load(ctx context.Context, viewerID valueobjects.IdentityID) (*ports.Snapshot, error) {
	return nil, errors.New("disk full")
}

func (b *brokenLocalStore) Delete(ctx context.Context, viewerID valueobjects.IdentityID) error {
	return nil
}

func buildHarness(t *testing.T, cfg *config.DomainConfig, local ports.LocalStore) *harness {
	t.Helper()

	h := &harness{
		identities:    &flakyIdentities{IdentityRepository: memory.NewIdentityRepository()},
		requests:      &flakyRequests{RequestRepository: memory.NewRequestRepository()},
		relationships: &flakyRelationships{RelationshipRepository: memory.NewRelationshipRepository()},
		bus:           memory.NewEventBus(zap.NewNop()),
		config:        cfg,
	}
	repos := ports.Repositories{
		Identities:    h.identities,
		Requests:      h.requests,
		Relationships: h.relationships,
	}
	h.factory = NewWorkspaceFactory(
		session.NewFactory(repos, local, zap.NewNop()),
		h.bus,
		config.NewHolder(cfg),
		observability.NopRecorder{},
		zap.NewNop(),
	)
	return h
}

func (h *harness) register(t *testing.T, name, phone string) *entities.Identity {
	t.Helper()
	identity, err := entities.NewIdentity(name, phone)
	require.NoError(t, err)
	require.NoError(t, h.identities.Save(context.Background(), identity))
	return identity
}

func (h *harness) open(t *testing.T, viewer *entities.Identity) *Workspace {
	t.Helper()
	ws, err := h.factory.Open(context.Background(), viewer.ID())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close(context.Background()) })
	return ws
}

func (h *harness) connect(t *testing.T, a, b *entities.Identity) *entities.Relationship {
	t.Helper()
	rel, err := entities.NewRelationship(a.ID(), b.ID(), "Friend", false, h.config)
	require.NoError(t, err)
	stored, _, err := h.relationships.RelationshipRepository.CreateIfAbsent(context.Background(), rel)
	require.NoError(t, err)
	return stored
}

func (h *harness) score(t *testing.T, identity *entities.Identity) int {
	t.Helper()
	stored, err := h.identities.GetByID(context.Background(), identity.ID())
	require.NoError(t, err)
	return stored.Score()
}
