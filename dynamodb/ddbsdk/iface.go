package ddbsdk

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// AWSDynamoClientV2 is the subset of *dynamodb.Client used by this package.
// ddbstore.Store implements it as well.
type AWSDynamoClientV2 interface {
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

type Txer interface {
	// AddAction stages a request. Errors are also returned by Commit.
	AddAction(WriteRequest) error
	Commit(context.Context) error
}

// Pager yields the pages of a read. Querier implements it.
type Pager interface {
	Next(context.Context) (*QueryResult, error)
}

// Item represents a raw DynamoDB item as returned from reads.
// Use Entity.Decode to convert it to plain values.
type Item = map[string]types.AttributeValue

type QueryResult struct {
	Items  []Item
	IsDone bool
}
