package services

import (
	"context"

	"github.com/LoadingLlama/relation/application/ports"
	"github.com/LoadingLlama/relation/application/session"
	"github.com/LoadingLlama/relation/domain/config"
	"github.com/LoadingLlama/relation/domain/core/valueobjects"
	domainservices "github.com/LoadingLlama/relation/domain/services"
	"github.com/LoadingLlama/relation/pkg/observability"

	"go.uber.org/zap"
)

// Workspace is the set of services bound to one initialized session
type Workspace struct {
	Session       *session.Session
	Ledger        *RequestLedger
	Relationships *RelationshipStore
	Scheduler     *RevealScheduler
	Network       *NetworkService
}

// Close tears the session down, cancelling any running reveal
func (w *Workspace) Close(ctx context.Context) error {
	return w.Session.Teardown(ctx)
}

// WorkspaceFactory opens workspaces with the domain policy active at open time
type WorkspaceFactory struct {
	sessions  *session.Factory
	publisher ports.EventPublisher
	policy    *config.Holder
	recorder  observability.Recorder
	logger    *zap.Logger
}

// NewWorkspaceFactory creates a workspace factory
func NewWorkspaceFactory(
	sessions *session.Factory,
	publisher ports.EventPublisher,
	policy *config.Holder,
	recorder observability.Recorder,
	logger *zap.Logger,
) *WorkspaceFactory {
	return &WorkspaceFactory{
		sessions:  sessions,
		publisher: publisher,
		policy:    policy,
		recorder:  recorder,
		logger:    logger,
	}
}

// Open initializes a session for viewerID and wires its services
func (f *WorkspaceFactory) Open(ctx context.Context, viewerID valueobjects.IdentityID) (*Workspace, error) {
	sess, err := f.sessions.Open(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	cfg := f.policy.Get()
	logger := f.logger.With(zap.String("viewer_id", viewerID.String()))

	store := NewRelationshipStore(sess, f.publisher, cfg, f.recorder, logger)
	ledger := NewRequestLedger(sess, store, f.publisher, cfg, f.recorder, logger)
	scheduler := NewRevealScheduler(cfg, logger)
	network := NewNetworkService(
		sess,
		ledger,
		store,
		domainservices.NewGraphProjector(cfg),
		domainservices.NewInsightsEngine(cfg),
		scheduler,
		logger,
	)

	return &Workspace{
		Session:       sess,
		Ledger:        ledger,
		Relationships: store,
		Scheduler:     scheduler,
		Network:       network,
	}, nil
}
