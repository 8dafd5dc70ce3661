package di

import (
	"context"
	"fmt"

	"github.com/LoadingLlama/relation/application/ports"
	"github.com/LoadingLlama/relation/application/services"
	"github.com/LoadingLlama/relation/application/session"
	domainconfig "github.com/LoadingLlama/relation/domain/config"
	"github.com/LoadingLlama/relation/infrastructure/config"
	"github.com/LoadingLlama/relation/infrastructure/messaging"
	"github.com/LoadingLlama/relation/infrastructure/messaging/eventbridge"
	"github.com/LoadingLlama/relation/infrastructure/messaging/websocket"
	"github.com/LoadingLlama/relation/infrastructure/persistence/dynamodb"
	"github.com/LoadingLlama/relation/infrastructure/persistence/local"
	"github.com/LoadingLlama/relation/infrastructure/persistence/memory"
	"github.com/LoadingLlama/relation/infrastructure/persistence/resilience"
	"github.com/LoadingLlama/relation/infrastructure/persistence/supabase"
	"github.com/LoadingLlama/relation/interfaces/http/rest"
	"github.com/LoadingLlama/relation/interfaces/http/rest/middleware"
	"github.com/LoadingLlama/relation/pkg/auth"
	"github.com/LoadingLlama/relation/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/sony/gobreaker"
	supa "github.com/supabase-community/supabase-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	if level, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("environment", cfg.Environment)), nil
}

// ProvideAWSConfig creates AWS configuration. With X-Ray enabled every
// client built from it records subsegments.
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return aws.Config{}, err
	}
	if cfg.EnableXRay {
		observability.InstrumentAWS(&awsCfg)
	}
	return awsCfg, nil
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideSupabaseClient connects to Supabase when either the store or auth
// uses it, and returns nil otherwise
func ProvideSupabaseClient(cfg *config.Config) (*supa.Client, error) {
	if cfg.StoreBackend != config.StoreSupabase && cfg.AuthMode != config.AuthSupabase {
		return nil, nil
	}
	return supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey)
}

// ProvideBreaker creates the circuit breaker shared by all remote repositories
func ProvideBreaker(cfg *config.Config, logger *zap.Logger) *resilience.Breaker {
	bcfg := resilience.DefaultBreakerConfig("remote-store")
	bcfg.MaxFailures = uint32(cfg.BreakerMaxFailures)
	bcfg.Timeout = cfg.BreakerTimeout
	return resilience.NewBreaker(bcfg, logger)
}

// ProvideRepositories selects the remote store and guards it with the breaker
func ProvideRepositories(
	cfg *config.Config,
	dynamoClient *awsdynamodb.Client,
	supabaseClient *supa.Client,
	breaker *resilience.Breaker,
	logger *zap.Logger,
) (ports.Repositories, error) {
	var repos ports.Repositories

	switch cfg.StoreBackend {
	case config.StoreMemory:
		repos = ports.Repositories{
			Identities:    memory.NewIdentityRepository(),
			Requests:      memory.NewRequestRepository(),
			Relationships: memory.NewRelationshipRepository(),
		}
	case config.StoreDynamoDB:
		table := dynamodb.Table{Name: cfg.DynamoDBTable, GSI1Index: cfg.IndexName}
		repos = ports.Repositories{
			Identities:    dynamodb.NewIdentityRepository(dynamoClient, table, logger),
			Requests:      dynamodb.NewRequestRepository(dynamoClient, table, logger),
			Relationships: dynamodb.NewRelationshipRepository(dynamoClient, table, logger),
		}
	case config.StoreSupabase:
		repos = ports.Repositories{
			Identities:    supabase.NewIdentityRepository(supabaseClient, logger),
			Requests:      supabase.NewRequestRepository(supabaseClient, logger),
			Relationships: supabase.NewRelationshipRepository(supabaseClient, logger),
		}
	default:
		return ports.Repositories{}, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	logger.Info("Remote store selected", zap.String("backend", cfg.StoreBackend))
	return resilience.Wrap(repos, breaker), nil
}

// ProvideLocalStore opens the offline snapshot store
func ProvideLocalStore(cfg *config.Config, logger *zap.Logger) (*local.BadgerStore, func(), error) {
	store, err := local.NewBadgerStore(local.Options{Dir: cfg.OfflineDir}, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close offline store", zap.Error(err))
		}
	}
	return store, cleanup, nil
}

// ProvideConnectionRegistry creates the WebSocket connection registry
func ProvideConnectionRegistry(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) *websocket.ConnectionRegistry {
	return websocket.NewConnectionRegistry(client, cfg.ConnectionsTable, cfg.IndexName, logger)
}

// ProvideEventPublisher fans domain events out to EventBridge and to
// connected WebSocket clients. With neither configured events stay in
// process.
func ProvideEventPublisher(
	cfg *config.Config,
	awsCfg aws.Config,
	ebClient *awseventbridge.Client,
	connections *websocket.ConnectionRegistry,
	repos ports.Repositories,
	logger *zap.Logger,
) ports.EventPublisher {
	var fanout messaging.Fanout

	if cfg.EventBusName != "" {
		fanout = append(fanout, eventbridge.NewPublisher(ebClient, cfg.EventBusName, logger))
	}
	if cfg.WebSocketEndpoint != "" {
		gateway := websocket.NewGatewayClient(awsCfg, cfg.WebSocketEndpoint)
		fanout = append(fanout, websocket.NewNotifier(gateway, connections, repos.Identities, logger))
	}
	if len(fanout) == 0 {
		logger.Info("No event sinks configured, keeping events in process")
		return memory.NewEventBus(logger)
	}
	return fanout
}

// ProvideCollector creates the Prometheus collector
func ProvideCollector() *observability.Collector {
	return observability.NewCollector("relation")
}

// ProvideCloudWatchMetrics creates the CloudWatch recorder on Lambda and
// returns nil elsewhere
func ProvideCloudWatchMetrics(cfg *config.Config, client *awscloudwatch.Client, logger *zap.Logger) *observability.CloudWatchMetrics {
	if !cfg.IsLambda && cfg.LambdaFunctionName == "" {
		return nil
	}
	namespace := fmt.Sprintf("Relation/%s", cfg.Environment)
	return observability.NewCloudWatchMetrics(namespace, client, logger)
}

// ProvideRecorder combines the enabled metric sinks
func ProvideRecorder(cfg *config.Config, collector *observability.Collector, cloudwatch *observability.CloudWatchMetrics) observability.Recorder {
	var recorders observability.MultiRecorder
	if cfg.EnableMetrics {
		recorders = append(recorders, collector)
	}
	if cloudwatch != nil {
		recorders = append(recorders, cloudwatch)
	}
	if len(recorders) == 0 {
		return observability.NopRecorder{}
	}
	return recorders
}

// ProvidePolicyHolder loads the domain policy. In development a watcher
// hot-reloads the policy file into the holder.
func ProvidePolicyHolder(cfg *config.Config, logger *zap.Logger) (*domainconfig.Holder, func(), error) {
	policy, err := config.LoadDomainConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	holder := domainconfig.NewHolder(policy)

	if !cfg.IsDevelopment() || cfg.DomainConfigFile == "" {
		return holder, func() {}, nil
	}

	watcher, err := config.NewConfigWatcher(cfg, holder, logger)
	if err != nil {
		logger.Warn("Domain config hot reload disabled", zap.Error(err))
		return holder, func() {}, nil
	}
	watcher.Start()
	return holder, watcher.Stop, nil
}

// ProvideSessionFactory creates the session factory
func ProvideSessionFactory(repos ports.Repositories, store *local.BadgerStore, logger *zap.Logger) *session.Factory {
	return session.NewFactory(repos, store, logger)
}

// ProvideIdentityService creates the identity service
func ProvideIdentityService(
	repos ports.Repositories,
	publisher ports.EventPublisher,
	recorder observability.Recorder,
	logger *zap.Logger,
) *services.IdentityService {
	return services.NewIdentityService(repos.Identities, publisher, recorder, logger)
}

// ProvideVerifier selects the token verifier for AUTH_MODE
func ProvideVerifier(cfg *config.Config, supabaseClient *supa.Client) (auth.Verifier, error) {
	switch cfg.AuthMode {
	case config.AuthSupabase:
		return auth.NewSupabaseVerifier(supabaseClient), nil
	default:
		secret := cfg.JWTSecret
		if secret == "" {
			secret = "development-secret-change-in-production"
		}
		return auth.NewJWTVerifier(secret, cfg.JWTIssuer)
	}
}

// ProvideReadinessCheck reports not ready while the breaker is open
func ProvideReadinessCheck(breaker *resilience.Breaker) rest.ReadinessCheck {
	return func() error {
		if breaker.State() == gobreaker.StateOpen {
			return fmt.Errorf("remote store circuit is open")
		}
		return nil
	}
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	cfg *config.Config,
	workspaces *services.WorkspaceFactory,
	identities *services.IdentityService,
	verifier auth.Verifier,
	collector *observability.Collector,
	ready rest.ReadinessCheck,
	logger *zap.Logger,
) *rest.Router {
	if !cfg.EnableMetrics {
		collector = nil
	}
	return rest.NewRouter(workspaces, identities, verifier, collector, ready, rest.Options{
		EnableCORS: cfg.EnableCORS,
		Debug:      cfg.IsDevelopment(),
		RateLimits: middleware.RateLimits{
			IPPerMinute:   cfg.IPRateLimit,
			IPBurst:       cfg.IPRateBurst,
			UserPerMinute: cfg.UserRateLimit,
			UserBurst:     cfg.UserRateBurst,
		},
	}, logger)
}
