package session

import (
	"context"
	"sync"

	"github.com/LoadingLlama/relation/application/ports"
	"github.com/LoadingLlama/relation/domain/core/entities"
	"github.com/LoadingLlama/relation/domain/core/valueobjects"
	pkgerrors "github.com/LoadingLlama/relation/pkg/errors"

	"go.uber.org/zap"
)

type state int

const (
	stateNew state = iota
	stateActive
	stateClosed
)

// Session is the viewer's working set: the current identity, an id-indexed
// table of known identities, and the relationship and request sets. It is
// created explicitly, initialized with Init and released with Teardown.
//
// Entities held by the session are treated as immutable. Services clone an
// entity, mutate the clone and put it back, so readers never observe a
// half-applied change.
type Session struct {
	mu sync.RWMutex

	viewerID      valueobjects.IdentityID
	viewer        *entities.Identity
	identities    map[string]*entities.Identity
	relationships []*entities.Relationship
	requests      []*entities.ConnectionRequest

	repos   ports.Repositories
	local   ports.LocalStore
	logger  *zap.Logger
	state   state
	offline bool
	hooks   []func()
}

// New creates an uninitialized session for viewerID. local may be nil.
func New(viewerID valueobjects.IdentityID, repos ports.Repositories, local ports.LocalStore, logger *zap.Logger) *Session {
	return &Session{
		viewerID:   viewerID,
		identities: make(map[string]*entities.Identity),
		repos:      repos,
		local:      local,
		logger:     logger.With(zap.String("viewer_id", viewerID.String())),
	}
}

// Init loads the working set from the remote store. When the remote store
// fails it falls back to the offline snapshot; when there is no snapshot
// either, the remote error is returned.
func (s *Session) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.state != stateNew {
		s.mu.Unlock()
		return pkgerrors.NewInvalidStateError("session already initialized")
	}
	s.mu.Unlock()

	snapshot, err := s.loadRemote(ctx)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return err
		}
		s.logger.Warn("Remote load failed, trying offline snapshot", zap.Error(err))

		offline, localErr := s.loadLocal(ctx)
		if localErr != nil {
			s.logger.Error("No offline snapshot available", zap.Error(localErr))
			return err
		}
		snapshot = offline
		s.mu.Lock()
		s.offline = true
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.restore(snapshot)
	s.state = stateActive
	s.mu.Unlock()

	s.logger.Info("Session initialized",
		zap.Int("relationships", len(snapshot.Relationships)),
		zap.Int("requests", len(snapshot.Requests)),
		zap.Bool("offline", s.Offline()))

	// Best effort: refresh the offline copy
	_ = s.Persist(ctx)
	return nil
}

func (s *Session) loadRemote(ctx context.Context) (*ports.Snapshot, error) {
	viewer, err := s.repos.Identities.GetByID(ctx, s.viewerID)
	if err != nil {
		return nil, err
	}
	relationships, err := s.repos.Relationships.ListForIdentity(ctx, s.viewerID)
	if err != nil {
		return nil, err
	}
	requests, err := s.repos.Requests.ListForIdentity(ctx, viewer)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{s.viewerID.String(): true}
	var known []*entities.Identity
	resolve := func(id valueobjects.IdentityID) {
		if id.IsZero() || seen[id.String()] {
			return
		}
		seen[id.String()] = true
		identity, err := s.repos.Identities.GetByID(ctx, id)
		if err != nil {
			s.logger.Warn("Counterpart identity unavailable",
				zap.String("identity_id", id.String()), zap.Error(err))
			return
		}
		known = append(known, identity)
	}
	for _, rel := range relationships {
		resolve(rel.Counterpart(s.viewerID))
	}
	for _, req := range requests {
		resolve(req.FromID())
		resolve(req.ToID())
	}

	return &ports.Snapshot{
		Identity:      viewer,
		Identities:    known,
		Relationships: relationships,
		Requests:      requests,
	}, nil
}

func (s *Session) loadLocal(ctx context.Context) (*ports.Snapshot, error) {
	if s.local == nil {
		return nil, pkgerrors.NewNotFoundError("offline snapshot")
	}
	return s.local.Load(ctx, s.viewerID)
}

// restore replaces the working set; caller holds the lock
func (s *Session) restore(snapshot *ports.Snapshot) {
	s.viewer = snapshot.Identity
	s.identities = make(map[string]*entities.Identity, len(snapshot.Identities))
	for _, identity := range snapshot.Identities {
		s.identities[identity.ID().String()] = identity
	}
	s.relationships = append([]*entities.Relationship(nil), snapshot.Relationships...)
	s.requests = append([]*entities.ConnectionRequest(nil), snapshot.Requests...)
}

// Snapshot copies the working set
func (s *Session) Snapshot() *ports.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identities := make([]*entities.Identity, 0, len(s.identities))
	for _, identity := range s.identities {
		identities = append(identities, identity)
	}
	return &ports.Snapshot{
		Identity:      s.viewer,
		Identities:    identities,
		Relationships: append([]*entities.Relationship(nil), s.relationships...),
		Requests:      append([]*entities.ConnectionRequest(nil), s.requests...),
	}
}

// Persist writes the working set to the offline store. Failures are logged
// and returned as PERSISTENCE errors; the in-memory state is unaffected.
func (s *Session) Persist(ctx context.Context) error {
	if s.local == nil {
		return nil
	}
	s.mu.RLock()
	active := s.state == stateActive
	s.mu.RUnlock()
	if !active {
		return nil
	}

	if err := s.local.Save(ctx, s.viewerID, s.Snapshot()); err != nil {
		s.logger.Error("Failed to persist offline snapshot", zap.Error(err))
		return pkgerrors.NewPersistenceError("persist session", err)
	}
	return nil
}

// OnTeardown registers fn to run when the session is torn down
func (s *Session) OnTeardown(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Teardown runs the registered hooks, saves a final offline snapshot and
// releases the working set. Calling it more than once is a no-op.
func (s *Session) Teardown(ctx context.Context) error {
	s.mu.Lock()
	if s.state == stateClosed {
		s.mu.Unlock()
		return nil
	}
	hooks := s.hooks
	s.hooks = nil
	s.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}

	err := s.Persist(ctx)

	s.mu.Lock()
	s.state = stateClosed
	s.viewer = nil
	s.identities = make(map[string]*entities.Identity)
	s.relationships = nil
	s.requests = nil
	s.mu.Unlock()

	s.logger.Debug("Session torn down")
	return err
}

// Repositories returns the remote store ports
func (s *Session) Repositories() ports.Repositories {
	return s.repos
}

// Offline reports whether Init fell back to the offline snapshot
func (s *Session) Offline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offline
}

// ViewerID returns the id the session was opened for
func (s *Session) ViewerID() valueobjects.IdentityID {
	return s.viewerID
}

// Viewer returns the current identity; INVALID_STATE unless the session is active
func (s *Session) Viewer() (*entities.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != stateActive {
		return nil, pkgerrors.NewInvalidStateError("session is not active")
	}
	return s.viewer, nil
}

// Lookup resolves an identity id through the arena, including the viewer
func (s *Session) Lookup(id valueobjects.IdentityID) (*entities.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.viewer != nil && s.viewer.ID().Equals(id) {
		return s.viewer, true
	}
	identity, ok := s.identities[id.String()]
	return identity, ok
}

// PutIdentity adds or replaces an identity in the arena
func (s *Session) PutIdentity(identity *entities.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if identity.ID().Equals(s.viewerID) {
		s.viewer = identity
		return
	}
	s.identities[identity.ID().String()] = identity
}

// Relationships returns the relationship set in query order
func (s *Session) Relationships() []*entities.Relationship {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*entities.Relationship(nil), s.relationships...)
}

// Relationship finds a relationship by id
func (s *Session) Relationship(id string) (*entities.Relationship, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rel := range s.relationships {
		if rel.ID() == id {
			return rel, true
		}
	}
	return nil, false
}

// RelationshipForPair finds the relationship between a and b
func (s *Session) RelationshipForPair(a, b valueobjects.IdentityID) (*entities.Relationship, bool) {
	key := entities.PairKey(a, b)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rel := range s.relationships {
		if rel.PairKey() == key {
			return rel, true
		}
	}
	return nil, false
}

// PutRelationship replaces the relationship with the same id, or appends it
func (s *Session) PutRelationship(rel *entities.Relationship) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.relationships {
		if existing.ID() == rel.ID() {
			s.relationships[i] = rel
			return
		}
	}
	s.relationships = append(s.relationships, rel)
}

// RemoveRelationship drops a relationship and reports where it was
func (s *Session) RemoveRelationship(id string) (*entities.Relationship, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, rel := range s.relationships {
		if rel.ID() == id {
			s.relationships = append(s.relationships[:i:i], s.relationships[i+1:]...)
			return rel, i, true
		}
	}
	return nil, -1, false
}

// InsertRelationship puts rel back at index, used to undo a removal
func (s *Session) InsertRelationship(index int, rel *entities.Relationship) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relationships = insertAt(s.relationships, index, rel)
}

// Requests returns the request set in query order
func (s *Session) Requests() []*entities.ConnectionRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*entities.ConnectionRequest(nil), s.requests...)
}

// Request finds a request by id
func (s *Session) Request(id string) (*entities.ConnectionRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, req := range s.requests {
		if req.ID() == id {
			return req, true
		}
	}
	return nil, false
}

// PutRequest replaces the request with the same id, or appends it
func (s *Session) PutRequest(req *entities.ConnectionRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.requests {
		if existing.ID() == req.ID() {
			s.requests[i] = req
			return
		}
	}
	s.requests = append(s.requests, req)
}

// RemoveRequest drops a request and reports where it was
func (s *Session) RemoveRequest(id string) (*entities.ConnectionRequest, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, req := range s.requests {
		if req.ID() == id {
			s.requests = append(s.requests[:i:i], s.requests[i+1:]...)
			return req, i, true
		}
	}
	return nil, -1, false
}

// InsertRequest puts req back at index, used to undo a removal
func (s *Session) InsertRequest(index int, req *entities.ConnectionRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = insertAt(s.requests, index, req)
}

func insertAt[T any](items []T, index int, item T) []T {
	if index < 0 || index > len(items) {
		index = len(items)
	}
	out := make([]T, 0, len(items)+1)
	out = append(out, items[:index]...)
	out = append(out, item)
	return append(out, items[index:]...)
}
