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

type identityItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	records.IdentityRecord
}

type hashClaimItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	IdentityID string `dynamodbav:"identity_id"`
}

// IdentityRepository implements ports.IdentityRepository
type IdentityRepository struct {
	client API
	table  Table
	logger *zap.Logger
}

var _ ports.IdentityRepository = (*IdentityRepository)(nil)

// NewIdentityRepository creates a new identity repository
func NewIdentityRepository(client API, table Table, logger *zap.Logger) *IdentityRepository {
	return &IdentityRepository{client: client, table: table, logger: logger}
}

// GetByID retrieves an identity profile
func (r *IdentityRepository) GetByID(ctx context.Context, id valueobjects.IdentityID) (*entities.Identity, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table.Name),
		Key:            key(identityPK(id.String()), skProfile),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}
	if result.Item == nil {
		return nil, pkgerrors.NewNotFoundError("identity")
	}

	var item identityItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal identity: %w", err)
	}
	return item.ToIdentity()
}

// GetByIdentifierHash follows the hash claim to the profile
func (r *IdentityRepository) GetByIdentifierHash(ctx context.Context, hash valueobjects.IdentifierHash) (*entities.Identity, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table.Name),
		Key:       key(hashPK(hash.String()), skIdentity),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get hash claim: %w", err)
	}
	if result.Item == nil {
		return nil, pkgerrors.NewNotFoundError("identity")
	}

	var claim hashClaimItem
	if err := attributevalue.UnmarshalMap(result.Item, &claim); err != nil {
		return nil, fmt.Errorf("failed to unmarshal hash claim: %w", err)
	}
	id, err := valueobjects.NewIdentityIDFromString(claim.IdentityID)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// Save writes the profile and claims the identifier hash in one transaction.
// The claim fails if another identity already holds the hash.
func (r *IdentityRepository) Save(ctx context.Context, identity *entities.Identity) error {
	rec := records.FromIdentity(identity)

	profile, err := attributevalue.MarshalMap(identityItem{
		PK:             identityPK(rec.ID),
		SK:             skProfile,
		EntityType:     entityIdentity,
		IdentityRecord: rec,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal identity: %w", err)
	}

	claim, err := attributevalue.MarshalMap(hashClaimItem{
		PK:         hashPK(rec.IdentifierHash),
		SK:         skIdentity,
		EntityType: entityHashClaim,
		IdentityID: rec.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal hash claim: %w", err)
	}

	cond := expression.Name("PK").AttributeNotExists().
		Or(expression.Name("identity_id").Equal(expression.Value(rec.ID)))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: aws.String(r.table.Name), Item: profile}},
			{Put: &types.Put{
				TableName:                 aws.String(r.table.Name),
				Item:                      claim,
				ConditionExpression:       expr.Condition(),
				ExpressionAttributeNames:  expr.Names(),
				ExpressionAttributeValues: expr.Values(),
			}},
		},
	})
	if err != nil {
		if isConditionFailure(err) {
			return pkgerrors.NewInvalidStateError("identifier is already registered")
		}
		return fmt.Errorf("failed to save identity: %w", err)
	}

	r.logger.Debug("Identity saved", zap.String("identity_id", rec.ID))
	return nil
}

// IncrementScore adds one to the stored score with an atomic ADD
func (r *IdentityRepository) IncrementScore(ctx context.Context, id valueobjects.IdentityID) (int, error) {
	update := expression.Add(expression.Name("score"), expression.Value(1))
	cond := expression.Name("PK").AttributeExists()
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return 0, fmt.Errorf("failed to build expression: %w", err)
	}

	result, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.table.Name),
		Key:                       key(identityPK(id.String()), skProfile),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		if isConditionFailure(err) {
			return 0, pkgerrors.NewNotFoundError("identity")
		}
		return 0, fmt.Errorf("failed to increment score: %w", err)
	}

	var updated struct {
		Score int `dynamodbav:"score"`
	}
	if err := attributevalue.UnmarshalMap(result.Attributes, &updated); err != nil {
		return 0, fmt.Errorf("failed to unmarshal score: %w", err)
	}
	return updated.Score, nil
}
