package ddbsdk

import (
	"context"
	"fmt"

	"github.com/antipr000/NobaServer-sub003/dynamodb/table"

	expression2 "github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	dynamodbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Querier pages through a query on a table or one of its indexes.
type Querier struct {
	awsddb AWSDynamoClientV2

	table   table.TableDefinition
	keyCond KeyCondition

	lastCursor map[string]types.AttributeValue
	done       bool

	opts queryOptions
}

var _ Pager = &Querier{}

type queryOptions struct {
	// default to consistent reads
	// because if you don't know what you're doing you may introduce race conditions.
	eventuallyConsistent bool
	pageSize             int32
	descending           bool
	indexName            *string
	filter               expression2.ConditionBuilder
}

const defaultPageSize = 10

type KeyCondition struct {
	partition any
	strategy  SortKeyStrategy
}

func NewKeyCondition(partition any, strategy SortKeyStrategy) KeyCondition {
	return KeyCondition{
		partition: partition,
		strategy:  strategy,
	}
}

func NewQuerier(ddb AWSDynamoClientV2, table table.TableDefinition, kc KeyCondition) *Querier {
	return &Querier{
		awsddb:  ddb,
		table:   table,
		keyCond: kc,
		opts: queryOptions{
			pageSize: defaultPageSize,
		},
	}
}

func (q *Querier) keys() (table.PrimaryKeyDefinition, error) {
	if q.opts.indexName == nil {
		return q.table.KeyDefinitions, nil
	}
	g, ok := q.table.GSI(*q.opts.indexName)
	if !ok {
		return table.PrimaryKeyDefinition{}, fmt.Errorf("table %q has no index %q", q.table.Name, *q.opts.indexName)
	}
	return g.KeyDefinitions, nil
}

// Next fetches the next page. After the last page it returns an empty,
// done result.
func (q *Querier) Next(ctx context.Context) (*QueryResult, error) {
	if q.done {
		return &QueryResult{IsDone: true}, nil
	}
	keys, err := q.keys()
	if err != nil {
		return nil, err
	}
	key := expression2.KeyEqual(expression2.Key(keys.PartitionKey.Name), expression2.Value(q.keyCond.partition))
	if q.keyCond.strategy != nil {
		if keys.SortKey.Name == "" {
			return nil, fmt.Errorf("sort key condition on %q which has no sort key", q.table.Name)
		}
		key = key.And(q.keyCond.strategy(keys.SortKey.Name))
	}
	b := expression2.NewBuilder().WithKeyCondition(key)
	if q.opts.filter.IsSet() {
		b = b.WithFilter(q.opts.filter)
	}
	expr, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	// Indexes only support eventually consistent reads.
	consistent := !q.opts.eventuallyConsistent && q.opts.indexName == nil
	res, err := q.awsddb.Query(ctx, &dynamodbv2.QueryInput{
		TableName:                 &q.table.Name,
		IndexName:                 q.opts.indexName,
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeValues: expr.Values(),
		ExpressionAttributeNames:  expr.Names(),
		ConsistentRead:            ptr(consistent),
		Limit:                     ptr(q.opts.pageSize),
		ScanIndexForward:          ptr(!q.opts.descending),
		ExclusiveStartKey:         q.lastCursor,
	})
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	q.lastCursor = res.LastEvaluatedKey
	q.done = len(res.LastEvaluatedKey) == 0
	return &QueryResult{
		Items:  res.Items,
		IsDone: q.done,
	}, nil
}

func (q *Querier) WithEventuallyConsistentReads() *Querier {
	q.opts.eventuallyConsistent = true
	return q
}

func (q *Querier) WithDescending() *Querier {
	q.opts.descending = true
	return q
}

func (q *Querier) WithPageSize(limit int) *Querier {
	q.opts.pageSize = int32(limit)
	return q
}

func (q *Querier) WithGSI(indexName string) *Querier {
	q.opts.indexName = &indexName
	return q
}

func (q *Querier) WithFilter(f expression2.ConditionBuilder) *Querier {
	q.opts.filter = f
	return q
}
