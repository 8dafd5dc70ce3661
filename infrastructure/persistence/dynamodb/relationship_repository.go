package dynamodb

import (
	"context"
	"fmt"

	"github.com/LoadingLlama/relation/application/ports"
	"github.com/LoadingLlama/relation/domain/core/entities"
	"github.com/LoadingLlama/relation/domain/core/valueobjects"
	"github.com/LoadingLlama/relation/infrastructure/persistence/records"
	pkgerrors "github.com/LoadingLlama/relation/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

type relationshipItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	GSI1PK     string `dynamodbav:"GSI1PK,omitempty"`
	GSI1SK     string `dynamodbav:"GSI1SK,omitempty"`
	EntityType string `dynamodbav:"EntityType"`
	records.RelationshipRecord
}

// RelationshipRepository implements ports.RelationshipRepository.
// The pair item is written with attribute_not_exists so two concurrent
// accepts for the same pair produce one relationship.
type RelationshipRepository struct {
	client API
	table  Table
	logger *zap.Logger
}

var _ ports.RelationshipRepository = (*RelationshipRepository)(nil)

// NewRelationshipRepository creates a new relationship repository
func NewRelationshipRepository(client API, table Table, logger *zap.Logger) *RelationshipRepository {
	return &RelationshipRepository{client: client, table: table, logger: logger}
}

func relationshipItems(rec records.RelationshipRecord) []relationshipItem {
	sk := sortKey(relPrefix, rec.CreatedAt, rec.ID)
	pairKey := entities.PairKey(valueobjects.MustIdentityID(rec.UserA), valueobjects.MustIdentityID(rec.UserB))
	return []relationshipItem{
		{
			PK:                 pairPK(pairKey),
			SK:                 skRelationship,
			GSI1PK:             relationshipGSI(rec.ID),
			GSI1SK:             skRelationship,
			EntityType:         entityRelationship,
			RelationshipRecord: rec,
		},
		{PK: identityPK(rec.UserA), SK: sk, EntityType: entityRelationRef, RelationshipRecord: rec},
		{PK: identityPK(rec.UserB), SK: sk, EntityType: entityRelationRef, RelationshipRecord: rec},
	}
}

// CreateIfAbsent claims the pair item and writes both endpoint copies. When
// the pair is already claimed the stored relationship is returned instead.
func (r *RelationshipRepository) CreateIfAbsent(ctx context.Context, relationship *entities.Relationship) (*entities.Relationship, bool, error) {
	items := relationshipItems(records.FromRelationship(relationship))

	expr, err := expression.NewBuilder().
		WithCondition(expression.Name("PK").AttributeNotExists()).
		Build()
	if err != nil {
		return nil, false, fmt.Errorf("failed to build expression: %w", err)
	}

	writes := make([]types.TransactWriteItem, 0, len(items))
	for i, item := range items {
		av, err := attributevalue.MarshalMap(item)
		if err != nil {
			return nil, false, fmt.Errorf("failed to marshal relationship: %w", err)
		}
		put := &types.Put{TableName: aws.String(r.table.Name), Item: av}
		if i == 0 {
			put.ConditionExpression = expr.Condition()
			put.ExpressionAttributeNames = expr.Names()
		}
		writes = append(writes, types.TransactWriteItem{Put: put})
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes})
	if err == nil {
		r.logger.Debug("Relationship created",
			zap.String("relationship_id", relationship.ID()),
			zap.String("pair", relationship.PairKey()))
		return relationship.Clone(), true, nil
	}
	if !isConditionFailure(err) {
		return nil, false, fmt.Errorf("failed to create relationship: %w", err)
	}

	existing, err := r.getByPair(ctx, relationship.PairKey())
	if err != nil {
		return nil, false, err
	}
	r.logger.Debug("Relationship already exists for pair",
		zap.String("relationship_id", existing.ID()),
		zap.String("pair", relationship.PairKey()))
	return existing, false, nil
}

func (r *RelationshipRepository) getByPair(ctx context.Context, pairKey string) (*entities.Relationship, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table.Name),
		Key:            key(pairPK(pairKey), skRelationship),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get relationship: %w", err)
	}
	if result.Item == nil {
		return nil, pkgerrors.NewNotFoundError("relationship")
	}
	return unmarshalRelationship(result.Item)
}

// GetByID looks the relationship up through GSI1
func (r *RelationshipRepository) GetByID(ctx context.Context, id string) (*entities.Relationship, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(relationshipGSI(id)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.table.Name),
		IndexName:                 aws.String(r.table.GSI1Index),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query relationship: %w", err)
	}
	if len(result.Items) == 0 {
		return nil, pkgerrors.NewNotFoundError("relationship")
	}
	return unmarshalRelationship(result.Items[0])
}

// ListForIdentity reads the identity's copies, oldest first
func (r *RelationshipRepository) ListForIdentity(ctx context.Context, id valueobjects.IdentityID) ([]*entities.Relationship, error) {
	items, err := queryPrefix(ctx, r.client, r.table, identityPK(id.String()), relPrefix)
	if err != nil {
		return nil, err
	}

	result := make([]*entities.Relationship, 0, len(items))
	for _, raw := range items {
		rel, err := unmarshalRelationship(raw)
		if err != nil {
			return nil, err
		}
		result = append(result, rel)
	}
	return result, nil
}

// Update sets strength and last interaction on all three items
func (r *RelationshipRepository) Update(ctx context.Context, relationship *entities.Relationship) error {
	rec := records.FromRelationship(relationship)

	update := expression.Set(expression.Name("strength"), expression.Value(rec.Strength))
	if rec.LastInteraction != nil {
		update = update.Set(expression.Name("last_interaction"), expression.Value(*rec.LastInteraction))
	} else {
		update = update.Remove(expression.Name("last_interaction"))
	}
	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.Name("PK").AttributeExists()).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	items := relationshipItems(rec)
	writes := make([]types.TransactWriteItem, 0, len(items))
	for _, item := range items {
		writes = append(writes, types.TransactWriteItem{
			Update: &types.Update{
				TableName:                 aws.String(r.table.Name),
				Key:                       key(item.PK, item.SK),
				UpdateExpression:          expr.Update(),
				ConditionExpression:       expr.Condition(),
				ExpressionAttributeNames:  expr.Names(),
				ExpressionAttributeValues: expr.Values(),
			},
		})
	}

	if _, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes}); err != nil {
		if isConditionFailure(err) {
			return pkgerrors.NewNotFoundError("relationship")
		}
		return fmt.Errorf("failed to update relationship: %w", err)
	}
	return nil
}

// Delete removes the pair item and both copies
func (r *RelationshipRepository) Delete(ctx context.Context, id string) error {
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	items := relationshipItems(records.FromRelationship(existing))
	writes := make([]types.TransactWriteItem, 0, len(items))
	for _, item := range items {
		writes = append(writes, types.TransactWriteItem{
			Delete: &types.Delete{TableName: aws.String(r.table.Name), Key: key(item.PK, item.SK)},
		})
	}

	if _, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes}); err != nil {
		return fmt.Errorf("failed to delete relationship: %w", err)
	}

	r.logger.Debug("Relationship deleted", zap.String("relationship_id", id))
	return nil
}

func unmarshalRelationship(raw map[string]types.AttributeValue) (*entities.Relationship, error) {
	var item relationshipItem
	if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal relationship: %w", err)
	}
	return item.ToRelationship()
}
