package services

import (
	"strings"
	"sync"
	"time"

	"github.com/LoadingLlama/relation/application/session"
	"github.com/LoadingLlama/relation/domain/core/valueobjects"
	domainservices "github.com/LoadingLlama/relation/domain/services"
	pkgerrors "github.com/LoadingLlama/relation/pkg/errors"

	"go.uber.org/zap"
)

// GraphQuery is an explicit projection request
type GraphQuery struct {
	Viewpoint    valueobjects.IdentityID
	Filter       domainservices.Filter
	RevealBudget int
}

// NetworkService is the host-facing facade over one session's graph. It
// tracks the current viewpoint and filter, drives the reveal scheduler on
// collapse and pushes a fresh snapshot to subscribers after every change.
type NetworkService struct {
	session   *session.Session
	store     *RelationshipStore
	projector *domainservices.GraphProjector
	insights  *domainservices.InsightsEngine
	scheduler *RevealScheduler
	logger    *zap.Logger

	mu          sync.Mutex
	viewpoint   valueobjects.IdentityID
	filter      domainservices.Filter
	subscribers map[int]func(*domainservices.GraphSnapshot)
	nextSubID   int
	closed      bool
}

// NewNetworkService wires the facade to the session's ledger, store and
// scheduler. The scheduler is cancelled when the session is torn down.
func NewNetworkService(
	sess *session.Session,
	ledger *RequestLedger,
	store *RelationshipStore,
	projector *domainservices.GraphProjector,
	insights *domainservices.InsightsEngine,
	scheduler *RevealScheduler,
	logger *zap.Logger,
) *NetworkService {
	s := &NetworkService{
		session:     sess,
		store:       store,
		projector:   projector,
		insights:    insights,
		scheduler:   scheduler,
		logger:      logger,
		subscribers: make(map[int]func(*domainservices.GraphSnapshot)),
	}

	ledger.OnChange(s.refresh)
	store.OnChange(s.refresh)
	scheduler.OnAdvance(func(int) { s.refresh() })
	sess.OnTeardown(s.teardown)

	return s
}

// Query projects an explicit viewpoint, filter and budget
func (s *NetworkService) Query(q GraphQuery) (*domainservices.GraphSnapshot, error) {
	viewer, err := s.session.Viewer()
	if err != nil {
		return nil, err
	}
	return s.projector.Project(domainservices.ProjectionInput{
		Viewer:        viewer,
		Viewpoint:     q.Viewpoint,
		Identities:    s.session,
		Relationships: s.session.Relationships(),
		Requests:      s.session.Requests(),
		Filter:        q.Filter,
		RevealBudget:  q.RevealBudget,
	})
}

// GetGraphSnapshot projects viewpoint with the current filter. The default
// view is limited by the reveal scheduler's budget.
func (s *NetworkService) GetGraphSnapshot(viewpoint valueobjects.IdentityID) (*domainservices.GraphSnapshot, error) {
	s.mu.Lock()
	filter := s.filter
	s.mu.Unlock()

	budget := domainservices.RevealAll
	if s.isDefaultView(viewpoint) {
		budget = s.scheduler.Budget()
	}
	return s.Query(GraphQuery{Viewpoint: viewpoint, Filter: filter, RevealBudget: budget})
}

// CurrentSnapshot projects the current viewpoint
func (s *NetworkService) CurrentSnapshot() (*domainservices.GraphSnapshot, error) {
	return s.GetGraphSnapshot(s.Viewpoint())
}

// Viewpoint returns the expanded peer, or the zero id for the default view
func (s *NetworkService) Viewpoint() valueobjects.IdentityID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewpoint
}

// OnNodeSelected handles a click from the renderer. Selecting a verified
// peer expands it, selecting the origin of an expanded view collapses back,
// and pending or friend-of-friend nodes are ignored.
func (s *NetworkService) OnNodeSelected(nodeID string) error {
	if strings.HasPrefix(nodeID, domainservices.PendingNodePrefix) ||
		strings.HasPrefix(nodeID, domainservices.FoFNodePrefix) {
		s.logger.Debug("Ignoring selection of synthetic node", zap.String("node_id", nodeID))
		return nil
	}

	id, err := valueobjects.NewIdentityIDFromString(nodeID)
	if err != nil {
		return pkgerrors.NewValidationError("invalid node id")
	}

	current := s.Viewpoint()
	if id.Equals(s.session.ViewerID()) || (!current.IsZero() && id.Equals(current)) {
		s.Collapse()
		return nil
	}
	return s.Expand(id)
}

// Expand switches to the peer's view. Only verified peers can be expanded.
func (s *NetworkService) Expand(peer valueobjects.IdentityID) error {
	if _, ok := s.session.RelationshipForPair(s.session.ViewerID(), peer); !ok {
		return pkgerrors.NewNotFoundError("verified peer")
	}

	s.scheduler.Cancel()

	s.mu.Lock()
	s.viewpoint = peer
	s.mu.Unlock()

	s.logger.Debug("Expanded peer", zap.String("peer_id", peer.String()))
	s.refresh()
	return nil
}

// Collapse returns to the default view and starts a staggered reveal over
// every candidate node. It is a no-op when already in the default view.
func (s *NetworkService) Collapse() {
	s.mu.Lock()
	if s.viewpoint.IsZero() {
		s.mu.Unlock()
		return
	}
	s.viewpoint = valueobjects.IdentityID{}
	filter := s.filter
	s.mu.Unlock()

	full, err := s.Query(GraphQuery{Filter: filter, RevealBudget: domainservices.RevealAll})
	if err != nil {
		s.logger.Warn("Failed to project default view", zap.Error(err))
		s.refresh()
		return
	}

	s.logger.Debug("Collapsed to default view", zap.Int("total", full.TotalCandidates))
	s.scheduler.Start(full.TotalCandidates)
}

// SetFilter replaces the search and hidden filter
func (s *NetworkService) SetFilter(filter domainservices.Filter) {
	s.mu.Lock()
	s.filter = filter
	s.mu.Unlock()
	s.refresh()
}

// Filter returns the current filter
func (s *NetworkService) Filter() domainservices.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// GetInsights computes analytics over the viewer's relationships
func (s *NetworkService) GetInsights(now time.Time) (*domainservices.Insights, error) {
	if _, err := s.session.Viewer(); err != nil {
		return nil, err
	}
	return s.insights.Compute(s.store.Query(s.session.ViewerID()), now), nil
}

// Subscribe registers fn to receive every new snapshot and returns a
// function that removes it.
func (s *NetworkService) Subscribe(fn func(*domainservices.GraphSnapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *NetworkService) isDefaultView(viewpoint valueobjects.IdentityID) bool {
	return viewpoint.IsZero() || viewpoint.Equals(s.session.ViewerID())
}

func (s *NetworkService) refresh() {
	s.mu.Lock()
	if s.closed || len(s.subscribers) == 0 {
		s.mu.Unlock()
		return
	}
	subscribers := make([]func(*domainservices.GraphSnapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subscribers = append(subscribers, fn)
	}
	s.mu.Unlock()

	snapshot, err := s.CurrentSnapshot()
	if err != nil {
		s.logger.Warn("Failed to project snapshot", zap.Error(err))
		return
	}
	for _, fn := range subscribers {
		fn(snapshot)
	}
}

func (s *NetworkService) teardown() {
	s.mu.Lock()
	s.closed = true
	s.subscribers = make(map[int]func(*domainservices.GraphSnapshot))
	s.mu.Unlock()

	s.scheduler.Stop()
}
