package ddbsdk

import (
	"fmt"
	"maps"

	"github.com/antipr000/NobaServer-sub003/dynamodb/condition"
	"github.com/antipr000/NobaServer-sub003/dynamodb/item"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	dynamodbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type Delete struct {
	table string
	key   map[string]types.AttributeValue
	exprParts
}

// BuildDelete prepares a delete of the item identified by src. A delete
// without an in-memory version is unconditional apart from opts.Condition.
func BuildDelete(e Entity, src item.Source, opts Options) (*Delete, error) {
	it, err := src.Item()
	if err != nil {
		return nil, fmt.Errorf("delete %q: %w", e.Name, err)
	}
	native, err := e.encode(it)
	if err != nil {
		return nil, err
	}
	key, err := e.key(native)
	if err != nil {
		return nil, err
	}

	var versionCond condition.Condition
	name, cur, present, err := e.version(it)
	if err != nil {
		return nil, err
	}
	if present && !opts.skipVersionCheck() {
		versionCond = condition.Equals{Name: name, Value: cur}
	}

	d := &Delete{table: e.Table.Name, key: key}
	if c := condition.Merge(versionCond, opts.Condition); c != nil {
		cb, err := condition.Build(c, e.schema)
		if err != nil {
			return nil, fmt.Errorf("delete %q: %w", e.Name, err)
		}
		expr, err := expression.NewBuilder().WithCondition(cb).Build()
		if err != nil {
			return nil, fmt.Errorf("delete %q: build: %w", e.Name, err)
		}
		d.exprParts = newExprParts(expr)
	}
	return d, nil
}

func (d *Delete) writeRequest() {}

func (d *Delete) TableName() string {
	return d.table
}

func (d *Delete) Key() map[string]types.AttributeValue {
	return maps.Clone(d.key)
}

func (d *Delete) ToDeleteItem() *dynamodbv2.DeleteItemInput {
	return &dynamodbv2.DeleteItemInput{
		TableName:                 ptr(d.table),
		Key:                       d.Key(),
		ConditionExpression:       d.conditionPtr(),
		ExpressionAttributeNames:  d.Names(),
		ExpressionAttributeValues: d.Values(),
	}
}

func (d *Delete) ToTransactWriteItem() types.TransactWriteItem {
	return types.TransactWriteItem{
		Delete: &types.Delete{
			TableName:                 ptr(d.table),
			Key:                       d.Key(),
			ConditionExpression:       d.conditionPtr(),
			ExpressionAttributeNames:  d.Names(),
			ExpressionAttributeValues: d.Values(),
		},
	}
}
