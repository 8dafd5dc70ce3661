package session

import (
	"context"

	"github.com/LoadingLlama/relation/application/ports"
	"github.com/LoadingLlama/relation/domain/core/valueobjects"

	"go.uber.org/zap"
)

// Factory opens initialized sessions against a shared set of stores
type Factory struct {
	repos  ports.Repositories
	local  ports.LocalStore
	logger *zap.Logger
}

// NewFactory creates a session factory. local may be nil to disable the offline snapshot.
func NewFactory(repos ports.Repositories, local ports.LocalStore, logger *zap.Logger) *Factory {
	return &Factory{repos: repos, local: local, logger: logger}
}

// Open creates and initializes a session for viewerID
func (f *Factory) Open(ctx context.Context, viewerID valueobjects.IdentityID) (*Session, error) {
	s := New(viewerID, f.repos, f.local, f.logger)
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Repositories returns the remote store ports
func (f *Factory) Repositories() ports.Repositories {
	return f.repos
}
