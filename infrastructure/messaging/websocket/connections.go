// Package websocket pushes change notifications to clients connected
// through the API Gateway WebSocket API.
package websocket

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// DefaultConnectionTTL bounds how long a stale connection row survives
const DefaultConnectionTTL = 2 * time.Hour

// DynamoDBAPI is the part of the DynamoDB client the registry uses
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// ConnectionRegistry tracks open connections per identity in the
// connections table: PK=USER#<id>, SK=CONN#<connection>, with GSI1 keyed
// by connection for disconnect lookups.
type ConnectionRegistry struct {
	client    DynamoDBAPI
	tableName string
	indexName string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewConnectionRegistry creates a registry on the given table
func NewConnectionRegistry(client DynamoDBAPI, tableName, indexName string, logger *zap.Logger) *ConnectionRegistry {
	return &ConnectionRegistry{
		client:    client,
		tableName: tableName,
		indexName: indexName,
		ttl:       DefaultConnectionTTL,
		logger:    logger,
	}
}

func userPK(identityID string) string     { return "USER#" + identityID }
func connSK(connectionID string) string   { return "CONN#" + connectionID }
func stripPrefix(s, prefix string) string { return s[len(prefix):] }

// Register records a connection for an identity
func (r *ConnectionRegistry) Register(ctx context.Context, identityID, connectionID string) error {
	expireAt := time.Now().Add(r.ttl).Unix()
	_, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item: map[string]types.AttributeValue{
			"PK":       &types.AttributeValueMemberS{Value: userPK(identityID)},
			"SK":       &types.AttributeValueMemberS{Value: connSK(connectionID)},
			"GSI1PK":   &types.AttributeValueMemberS{Value: connSK(connectionID)},
			"GSI1SK":   &types.AttributeValueMemberS{Value: userPK(identityID)},
			"expireAt": &types.AttributeValueMemberN{Value: strconv.FormatInt(expireAt, 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to save connection: %w", err)
	}

	r.logger.Info("Connection registered",
		zap.String("identity_id", identityID),
		zap.String("connection_id", connectionID))
	return nil
}

// Unregister removes a connection, whichever identity owns it
func (r *ConnectionRegistry) Unregister(ctx context.Context, connectionID string) error {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("GSI1PK").Equal(expression.Value(connSK(connectionID)))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(r.indexName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return fmt.Errorf("failed to find connection: %w", err)
	}

	for _, item := range result.Items {
		pk, _ := item["PK"].(*types.AttributeValueMemberS)
		sk, _ := item["SK"].(*types.AttributeValueMemberS)
		if pk == nil || sk == nil {
			continue
		}
		if err := r.remove(ctx, pk.Value, sk.Value); err != nil {
			return err
		}
	}
	return nil
}

func (r *ConnectionRegistry) remove(ctx context.Context, pk, sk string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}
	return nil
}

// ConnectionsFor lists the open connection ids of an identity
func (r *ConnectionRegistry) ConnectionsFor(ctx context.Context, identityID string) ([]string, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(userPK(identityID))).
		And(expression.Key("SK").BeginsWith("CONN#"))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query connections: %w", err)
	}

	ids := make([]string, 0, len(result.Items))
	for _, item := range result.Items {
		if sk, ok := item["SK"].(*types.AttributeValueMemberS); ok {
			ids = append(ids, stripPrefix(sk.Value, "CONN#"))
		}
	}
	return ids, nil
}

// Forget drops one identity's connection after the gateway reports it gone
func (r *ConnectionRegistry) Forget(ctx context.Context, identityID, connectionID string) error {
	return r.remove(ctx, userPK(identityID), connSK(connectionID))
}
