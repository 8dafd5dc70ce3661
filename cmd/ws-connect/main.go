// Package main registers authenticated WebSocket connections so graph
// changes can be pushed to the identity that opened them.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/LoadingLlama/relation/infrastructure/config"
	"github.com/LoadingLlama/relation/infrastructure/di"
	"github.com/LoadingLlama/relation/infrastructure/messaging/websocket"
	"github.com/LoadingLlama/relation/pkg/auth"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"
)

var (
	registry *websocket.ConnectionRegistry
	verifier auth.Verifier
	logger   *zap.Logger
)

func init() {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if logger, err = di.ProvideLogger(cfg); err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	awsCfg, err := di.ProvideAWSConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}
	registry = di.ProvideConnectionRegistry(di.ProvideDynamoDBClient(awsCfg), cfg, logger)

	supabaseClient, err := di.ProvideSupabaseClient(cfg)
	if err != nil {
		log.Fatalf("Failed to create Supabase client: %v", err)
	}
	if verifier, err = di.ProvideVerifier(cfg, supabaseClient); err != nil {
		log.Fatalf("Failed to create token verifier: %v", err)
	}
}

// handler authenticates the token passed in the query string, since
// browsers cannot set headers on a WebSocket upgrade
func handler(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connectionID := request.RequestContext.ConnectionID

	token := request.QueryStringParameters["token"]
	if token == "" {
		token = request.Headers["Authorization"]
	}

	principal, err := verifier.Verify(ctx, token)
	if err != nil {
		logger.Warn("WebSocket authentication failed",
			zap.String("connection_id", connectionID),
			zap.Error(err))
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusUnauthorized,
			Body:       `{"error":"unauthorized"}`,
		}, nil
	}

	if err := registry.Register(ctx, principal.Subject, connectionID); err != nil {
		logger.Error("Failed to store connection",
			zap.String("connection_id", connectionID),
			zap.Error(err))
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Body:       `{"error":"internal server error"}`,
		}, nil
	}

	welcome, _ := json.Marshal(map[string]interface{}{
		"type":          "connection_established",
		"connection_id": connectionID,
		"identity_id":   principal.Subject,
		"timestamp":     time.Now().Unix(),
	})

	logger.Info("WebSocket connection established",
		zap.String("connection_id", connectionID),
		zap.String("identity_id", principal.Subject))

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Body:       string(welcome),
	}, nil
}

func main() {
	lambda.Start(handler)
}
