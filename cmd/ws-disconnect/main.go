// Package main removes WebSocket connections when API Gateway reports a
// disconnect
package main

import (
	"context"
	"log"
	"net/http"

	"github.com/LoadingLlama/relation/infrastructure/config"
	"github.com/LoadingLlama/relation/infrastructure/di"
	"github.com/LoadingLlama/relation/infrastructure/messaging/websocket"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
)

var (
	registry *websocket.ConnectionRegistry
	logger   *zap.Logger
)

func init() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if logger, err = di.ProvideLogger(cfg); err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	awsCfg, err := di.ProvideAWSConfig(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}
	registry = di.ProvideConnectionRegistry(di.ProvideDynamoDBClient(awsCfg), cfg, logger)
}

func handler(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connectionID := request.RequestContext.ConnectionID

	// Expired connections are also removed by the table TTL, so a failure
	// here is logged and the disconnect still succeeds.
	if err := registry.Unregister(ctx, connectionID); err != nil {
		logger.Warn("Failed to remove connection",
			zap.String("connection_id", connectionID),
			zap.Error(err))
	} else {
		logger.Info("WebSocket connection closed", zap.String("connection_id", connectionID))
	}

	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
}

func main() {
	lambda.Start(handler)
}
