//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/LoadingLlama/relation/application/services"
	"github.com/LoadingLlama/relation/infrastructure/config"

	"github.com/google/wire"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideSupabaseClient,
	ProvideBreaker,
	ProvideRepositories,
	ProvideLocalStore,
	ProvideConnectionRegistry,
	ProvideEventPublisher,
	ProvideCollector,
	ProvideCloudWatchMetrics,
	ProvideRecorder,
	ProvidePolicyHolder,
	ProvideSessionFactory,
	services.NewWorkspaceFactory,
	ProvideIdentityService,
	ProvideVerifier,
	ProvideReadinessCheck,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container. The cleanup
// function closes the offline store and stops the config watcher.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
