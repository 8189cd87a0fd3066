package ddbsdk

import (
	"fmt"
	"maps"

	"github.com/antipr000/NobaServer-sub003/dynamodb/condition"
	"github.com/antipr000/NobaServer-sub003/dynamodb/gsi"
	"github.com/antipr000/NobaServer-sub003/dynamodb/item"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	dynamodbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Put writes a whole item.
type Put struct {
	table string
	item  map[string]types.AttributeValue
	key   map[string]types.AttributeValue
	exprParts
}

// BuildPut prepares a put of src.
//
// Without an in-memory version the put is a create: it requires the
// version attribute to be absent and writes version 0. With version v it
// requires the stored version to be v and writes v+1. Skipping the version
// check drops the condition but still writes the next version.
func BuildPut(e Entity, src item.Source, opts Options) (*Put, error) {
	it, err := src.Item()
	if err != nil {
		return nil, fmt.Errorf("put %q: %w", e.Name, err)
	}
	now := opts.now()
	it[UpdatedAtAttribute] = now
	if it[CreatedAtAttribute] == nil {
		it[CreatedAtAttribute] = now
	}
	gsi.AddAttributes(e.Name, it, e.Consumers)

	var versionCond condition.Condition
	name, cur, present, err := e.version(it)
	if err != nil {
		return nil, err
	}
	if name != "" {
		if present {
			it[name] = cur + 1
			versionCond = condition.Equals{Name: name, Value: cur}
		} else {
			it[name] = int64(0)
			versionCond = condition.AttributeNotExists{Name: name}
		}
		if opts.skipVersionCheck() {
			versionCond = nil
		}
	}

	native, err := e.encode(it)
	if err != nil {
		return nil, err
	}
	key, err := e.key(native)
	if err != nil {
		return nil, err
	}
	if opts.Expiry != nil && e.Table.TimeToLiveKey != "" {
		native[e.Table.TimeToLiveKey] = ttlDDB(*opts.Expiry)
	}

	p := &Put{table: e.Table.Name, item: native, key: key}
	if c := condition.Merge(versionCond, opts.Condition); c != nil {
		cb, err := condition.Build(c, e.schema)
		if err != nil {
			return nil, fmt.Errorf("put %q: %w", e.Name, err)
		}
		expr, err := expression.NewBuilder().WithCondition(cb).Build()
		if err != nil {
			return nil, fmt.Errorf("put %q: build: %w", e.Name, err)
		}
		p.exprParts = newExprParts(expr)
	}
	return p, nil
}

func (p *Put) writeRequest() {}

func (p *Put) TableName() string {
	return p.table
}

func (p *Put) Key() map[string]types.AttributeValue {
	return maps.Clone(p.key)
}

// Item returns the item as it will be written.
func (p *Put) Item() map[string]types.AttributeValue {
	return maps.Clone(p.item)
}

func (p *Put) ToPutItem() *dynamodbv2.PutItemInput {
	return &dynamodbv2.PutItemInput{
		TableName:                 ptr(p.table),
		Item:                      p.Item(),
		ConditionExpression:       p.conditionPtr(),
		ExpressionAttributeNames:  p.Names(),
		ExpressionAttributeValues: p.Values(),
	}
}

func (p *Put) ToTransactWriteItem() types.TransactWriteItem {
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName:                 ptr(p.table),
			Item:                      p.Item(),
			ConditionExpression:       p.conditionPtr(),
			ExpressionAttributeNames:  p.Names(),
			ExpressionAttributeValues: p.Values(),
		},
	}
}
