package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/LoadingLlama/relation/application/ports"
	"github.com/LoadingLlama/relation/domain/core/entities"
	"github.com/LoadingLlama/relation/domain/core/valueobjects"
	"github.com/LoadingLlama/relation/domain/events"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwTypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"go.uber.org/zap"
)

// GatewayAPI is the part of the API Gateway Management client the notifier uses
type GatewayAPI interface {
	PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error)
}

// Registry resolves and prunes connections
type Registry interface {
	ConnectionsFor(ctx context.Context, identityID string) ([]string, error)
	Forget(ctx context.Context, identityID, connectionID string) error
}

// IdentityResolver turns the hashed recipient of a new request into an identity
type IdentityResolver interface {
	GetByIdentifierHash(ctx context.Context, hash valueobjects.IdentifierHash) (*entities.Identity, error)
}

// Message is what clients receive. It names the change, clients refetch
// their graph through the REST API.
type Message struct {
	Type        string `json:"type"`
	AggregateID string `json:"aggregate_id"`
	Timestamp   int64  `json:"timestamp"`
}

// Notifier implements ports.EventPublisher by telling every affected
// identity's open connections that their graph changed
type Notifier struct {
	gateway    GatewayAPI
	registry   Registry
	identities IdentityResolver
	logger     *zap.Logger
}

var _ ports.EventPublisher = (*Notifier)(nil)

// NewNotifier creates a notifier. identities may be nil, in which case new
// requests only notify their sender.
func NewNotifier(gateway GatewayAPI, registry Registry, identities IdentityResolver, logger *zap.Logger) *Notifier {
	return &Notifier{gateway: gateway, registry: registry, identities: identities, logger: logger}
}

// NewGatewayClient points the management API at a WebSocket stage endpoint
func NewGatewayClient(cfg aws.Config, endpoint string) *apigatewaymanagementapi.Client {
	return apigatewaymanagementapi.NewFromConfig(cfg, func(o *apigatewaymanagementapi.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s", endpoint))
	})
}

// Publish notifies for a single event
func (n *Notifier) Publish(ctx context.Context, event events.DomainEvent) error {
	return n.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch notifies each affected identity once per event
func (n *Notifier) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	var failed int
	for _, event := range domainEvents {
		payload, err := json.Marshal(Message{
			Type:        event.GetEventType(),
			AggregateID: event.GetAggregateID(),
			Timestamp:   event.GetTimestamp().Unix(),
		})
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}

		for _, id := range n.recipients(ctx, event) {
			if err := n.send(ctx, id.String(), payload); err != nil {
				n.logger.Warn("Failed to notify identity",
					zap.String("identity_id", id.String()),
					zap.String("event_type", event.GetEventType()),
					zap.Error(err))
				failed++
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d notifications failed", failed)
	}
	return nil
}

func (n *Notifier) send(ctx context.Context, identityID string, payload []byte) error {
	connections, err := n.registry.ConnectionsFor(ctx, identityID)
	if err != nil {
		return err
	}

	for _, connectionID := range connections {
		_, err := n.gateway.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
			ConnectionId: aws.String(connectionID),
			Data:         payload,
		})
		if err == nil {
			continue
		}

		var gone *apigwTypes.GoneException
		if errors.As(err, &gone) {
			n.logger.Debug("Connection is gone, removing",
				zap.String("connection_id", connectionID))
			if err := n.registry.Forget(ctx, identityID, connectionID); err != nil {
				n.logger.Warn("Failed to remove stale connection",
					zap.String("connection_id", connectionID),
					zap.Error(err))
			}
			continue
		}
		return fmt.Errorf("failed to post to connection %s: %w", connectionID, err)
	}
	return nil
}

// recipients lists the identities whose view an event changes
func (n *Notifier) recipients(ctx context.Context, event events.DomainEvent) []valueobjects.IdentityID {
	switch e := event.(type) {
	case events.RequestCreated:
		ids := []valueobjects.IdentityID{e.FromID}
		if n.identities != nil {
			if recipient, err := n.identities.GetByIdentifierHash(ctx, e.ToIdentifierHash); err == nil {
				ids = append(ids, recipient.ID())
			}
		}
		return ids
	case events.RequestAccepted:
		return []valueobjects.IdentityID{e.FromID, e.AcceptedBy}
	case events.RequestDeclined:
		return []valueobjects.IdentityID{e.FromID, e.DeclinedBy}
	case events.RequestWithdrawn:
		return []valueobjects.IdentityID{e.FromID}
	case events.RelationshipCreated:
		return []valueobjects.IdentityID{e.UserA, e.UserB}
	case events.RelationshipRemoved:
		return []valueobjects.IdentityID{e.UserA, e.UserB}
	case events.IdentityScoreIncremented:
		return []valueobjects.IdentityID{e.IdentityID}
	}
	return nil
}
