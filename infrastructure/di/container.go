// Package di wires the application together
package di

import (
	"context"

	"github.com/LoadingLlama/relation/application/ports"
	"github.com/LoadingLlama/relation/application/services"
	"github.com/LoadingLlama/relation/infrastructure/config"
	"github.com/LoadingLlama/relation/infrastructure/messaging/websocket"
	"github.com/LoadingLlama/relation/infrastructure/persistence/resilience"
	"github.com/LoadingLlama/relation/interfaces/http/rest"
	"github.com/LoadingLlama/relation/pkg/auth"
	"github.com/LoadingLlama/relation/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Breaker      *resilience.Breaker
	Repositories ports.Repositories
	Publisher    ports.EventPublisher
	Collector    *observability.Collector
	CloudWatch   *observability.CloudWatchMetrics
	Workspaces   *services.WorkspaceFactory
	Identities   *services.IdentityService
	Verifier     auth.Verifier
	Connections  *websocket.ConnectionRegistry
	Router       *rest.Router
}

// FlushMetrics sends buffered CloudWatch datums, if any
func (c *Container) FlushMetrics(ctx context.Context) {
	if c.CloudWatch == nil {
		return
	}
	if err := c.CloudWatch.Flush(ctx); err != nil {
		c.Logger.Warn("Failed to flush CloudWatch metrics", zap.Error(err))
	}
}
