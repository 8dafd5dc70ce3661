package dynamodb

import (
	"context"
	"fmt"
	"sort"

	"github.com/LoadingLlama/relation/application/ports"
	"github.com/LoadingLlama/relation/domain/core/entities"
	"github.com/LoadingLlama/relation/infrastructure/persistence/records"
	pkgerrors "github.com/LoadingLlama/relation/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

type requestItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	records.RequestRecord
}

// RequestRepository implements ports.RequestRepository. Each request is
// stored once under its own key and copied into the sender's partition and
// the recipient hash partition for listing.
type RequestRepository struct {
	client API
	table  Table
	logger *zap.Logger
}

var _ ports.RequestRepository = (*RequestRepository)(nil)

// NewRequestRepository creates a new request repository
func NewRequestRepository(client API, table Table, logger *zap.Logger) *RequestRepository {
	return &RequestRepository{client: client, table: table, logger: logger}
}

func requestItems(rec records.RequestRecord) []requestItem {
	sk := sortKey(reqPrefix, rec.CreatedAt, rec.ID)
	return []requestItem{
		{PK: requestPK(rec.ID), SK: skRequest, EntityType: entityRequest, RequestRecord: rec},
		{PK: identityPK(rec.FromID), SK: sk, EntityType: entityRequestRef, RequestRecord: rec},
		{PK: hashPK(rec.ToIdentifierHash), SK: sk, EntityType: entityRequestRef, RequestRecord: rec},
	}
}

// Save writes the request and its two listing copies
func (r *RequestRepository) Save(ctx context.Context, request *entities.ConnectionRequest) error {
	rec := records.FromRequest(request)

	writes := make([]types.TransactWriteItem, 0, 3)
	for _, item := range requestItems(rec) {
		av, err := attributevalue.MarshalMap(item)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		writes = append(writes, types.TransactWriteItem{
			Put: &types.Put{TableName: aws.String(r.table.Name), Item: av},
		})
	}

	if _, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes}); err != nil {
		return fmt.Errorf("failed to save request: %w", err)
	}

	r.logger.Debug("Request saved",
		zap.String("request_id", rec.ID),
		zap.String("status", rec.Status))
	return nil
}

// GetByID retrieves a request
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*entities.ConnectionRequest, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table.Name),
		Key:            key(requestPK(id), skRequest),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	if result.Item == nil {
		return nil, pkgerrors.NewNotFoundError("request")
	}

	var item requestItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request: %w", err)
	}
	return item.ToRequest()
}

// ListForIdentity merges the sender and recipient partitions, oldest first
func (r *RequestRepository) ListForIdentity(ctx context.Context, identity *entities.Identity) ([]*entities.ConnectionRequest, error) {
	sent, err := queryPrefix(ctx, r.client, r.table, identityPK(identity.ID().String()), reqPrefix)
	if err != nil {
		return nil, err
	}
	received, err := queryPrefix(ctx, r.client, r.table, hashPK(identity.IdentifierHash().String()), reqPrefix)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(sent)+len(received))
	var items []requestItem
	for _, raw := range append(sent, received...) {
		var item requestItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal request: %w", err)
		}
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		items = append(items, item)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].SK < items[j].SK })

	result := make([]*entities.ConnectionRequest, 0, len(items))
	for _, item := range items {
		req, err := item.ToRequest()
		if err != nil {
			return nil, err
		}
		result = append(result, req)
	}
	return result, nil
}

// Delete removes the request and both copies
func (r *RequestRepository) Delete(ctx context.Context, id string) error {
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	writes := make([]types.TransactWriteItem, 0, 3)
	for _, item := range requestItems(records.FromRequest(existing)) {
		writes = append(writes, types.TransactWriteItem{
			Delete: &types.Delete{TableName: aws.String(r.table.Name), Key: key(item.PK, item.SK)},
		})
	}

	if _, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: writes}); err != nil {
		return fmt.Errorf("failed to delete request: %w", err)
	}
	return nil
}
