// Package dynamodb implements the remote store ports on a single DynamoDB table.
//
// Item layout:
//
//	IDENTITY#<id>      PROFILE                 identity record
//	HASH#<hash>        IDENTITY                claim on an identifier hash
//	PAIR#<a>|<b>       RELATIONSHIP            relationship, unique per pair (GSI1: RELATIONSHIP#<id>)
//	IDENTITY#<id>      REL#<created>#<relid>   relationship copy for each endpoint
//	REQUEST#<id>       REQUEST                 connection request
//	IDENTITY#<from>    REQ#<created>#<id>      outgoing request copy
//	HASH#<hash>        REQ#<created>#<id>      incoming request copy, matched by hash
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LoadingLlama/relation/pkg/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// API is the subset of the DynamoDB client used by the repositories
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

// Table names the table and its index
type Table struct {
	Name      string
	GSI1Index string
}

// Entity types
const (
	entityIdentity     = "IDENTITY"
	entityHashClaim    = "HASH_CLAIM"
	entityRelationship = "RELATIONSHIP"
	entityRelationRef  = "RELATIONSHIP_REF"
	entityRequest      = "REQUEST"
	entityRequestRef   = "REQUEST_REF"
)

const (
	skProfile      = "PROFILE"
	skIdentity     = "IDENTITY"
	skRelationship = "RELATIONSHIP"
	skRequest      = "REQUEST"
	relPrefix      = "REL#"
	reqPrefix      = "REQ#"
)

func identityPK(id string) string      { return "IDENTITY#" + id }
func hashPK(hash string) string        { return "HASH#" + hash }
func pairPK(pairKey string) string     { return "PAIR#" + pairKey }
func requestPK(id string) string       { return "REQUEST#" + id }
func relationshipGSI(id string) string { return "RELATIONSHIP#" + id }

// sortKey orders copies by creation time, then id
func sortKey(prefix string, createdAt time.Time, id string) string {
	return fmt.Sprintf("%s%s#%s", prefix, utils.FormatSortable(createdAt), id)
}

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// isConditionFailure reports whether a write lost its condition check,
// either directly or inside a cancelled transaction.
func isConditionFailure(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, reason := range tce.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				return true
			}
		}
	}
	return false
}

// queryPrefix reads every item in a partition whose sort key starts with
// prefix, in sort key order.
func queryPrefix(ctx context.Context, client API, table Table, pk, prefix string) ([]map[string]types.AttributeValue, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(pk)).
		And(expression.Key("SK").BeginsWith(prefix))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	paginator := dynamodb.NewQueryPaginator(client, &dynamodb.QueryInput{
		TableName:                 aws.String(table.Name),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(true),
	})

	var items []map[string]types.AttributeValue
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", pk, err)
		}
		items = append(items, page.Items...)
	}
	return items, nil
}
