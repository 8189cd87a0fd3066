package ddbsdk

import (
	"fmt"
	"maps"
	"sort"

	"github.com/antipr000/NobaServer-sub003/dynamodb/condition"
	"github.com/antipr000/NobaServer-sub003/dynamodb/gsi"
	"github.com/antipr000/NobaServer-sub003/dynamodb/item"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	dynamodbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Update changes individual attributes of an item.
type Update struct {
	table string
	key   map[string]types.AttributeValue
	exprParts
}

// BuildUpdate prepares an update from the attributes present in src.
//
// Key attributes go into the request key. Every other declared attribute
// with a value is SET; attributes explicitly set to nil follow OnMissing.
// An index whose source attribute is set to nil has its key attributes
// handled the same way, so the item leaves the index with the source.
// The version is incremented with the same conditions as BuildPut.
func BuildUpdate(e Entity, src item.Source, opts Options) (*Update, error) {
	it, err := src.Item()
	if err != nil {
		return nil, fmt.Errorf("update %q: %w", e.Name, err)
	}
	gsi.AddAttributes(e.Name, it, e.Consumers)
	var cleared []string
	for _, name := range gsi.Cleared(e.Name, it, e.Consumers) {
		if e.Table.KeyDefinitions.IsKey(name) {
			continue
		}
		delete(it, name)
		cleared = append(cleared, name)
	}

	native, err := e.encode(it)
	if err != nil {
		return nil, err
	}
	key, err := e.key(native)
	if err != nil {
		return nil, err
	}

	versionName, cur, present, err := e.version(it)
	if err != nil {
		return nil, err
	}

	now, err := item.MarshalValue(auditSchema[UpdatedAtAttribute], opts.now())
	if err != nil {
		return nil, fmt.Errorf("update %q: %w", e.Name, err)
	}
	var ub expression.UpdateBuilder
	set := func(name string, op expression.OperandBuilder) {
		ub = ub.Set(expression.Name(name), op)
	}

	names := make([]string, 0, len(it))
	for name := range it {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, declared := e.schema[name]; !declared {
			continue
		}
		if e.Table.KeyDefinitions.IsKey(name) || name == versionName ||
			name == CreatedAtAttribute || name == UpdatedAtAttribute {
			continue
		}
		if av, ok := native[name]; ok {
			set(name, expression.Value(item.Raw(av)))
			continue
		}
		// nil values and empty sets have no stored form.
		if opts.onMissing() == OnMissingRemove {
			ub = ub.Remove(expression.Name(name))
		}
	}
	if opts.onMissing() == OnMissingRemove {
		for _, name := range cleared {
			ub = ub.Remove(expression.Name(name))
		}
	}
	set(UpdatedAtAttribute, expression.Value(item.Raw(now)))
	set(CreatedAtAttribute, expression.IfNotExists(expression.Name(CreatedAtAttribute), expression.Value(item.Raw(now))))

	var versionCond condition.Condition
	if versionName != "" {
		v := expression.Name(versionName)
		switch {
		case present:
			set(versionName, expression.Plus(v, expression.Value(1)))
			versionCond = condition.Equals{Name: versionName, Value: cur}
		case opts.skipVersionCheck():
			set(versionName, expression.Plus(expression.IfNotExists(v, expression.Value(-1)), expression.Value(1)))
		default:
			set(versionName, expression.Value(0))
			versionCond = condition.AttributeNotExists{Name: versionName}
		}
		if opts.skipVersionCheck() {
			versionCond = nil
		}
	}
	b := expression.NewBuilder().WithUpdate(ub)
	if c := condition.Merge(versionCond, opts.Condition); c != nil {
		cb, err := condition.Build(c, e.schema)
		if err != nil {
			return nil, fmt.Errorf("update %q: %w", e.Name, err)
		}
		b = b.WithCondition(cb)
	}
	expr, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("update %q: build: %w", e.Name, err)
	}
	return &Update{table: e.Table.Name, key: key, exprParts: newExprParts(expr)}, nil
}

func (u *Update) writeRequest() {}

func (u *Update) TableName() string {
	return u.table
}

func (u *Update) Key() map[string]types.AttributeValue {
	return maps.Clone(u.key)
}

func (u *Update) UpdateExpression() string {
	return *u.update
}

func (u *Update) ToUpdateItem() *dynamodbv2.UpdateItemInput {
	return &dynamodbv2.UpdateItemInput{
		TableName:                 ptr(u.table),
		Key:                       u.Key(),
		UpdateExpression:          u.updatePtr(),
		ConditionExpression:       u.conditionPtr(),
		ExpressionAttributeNames:  u.Names(),
		ExpressionAttributeValues: u.Values(),
	}
}

func (u *Update) ToTransactWriteItem() types.TransactWriteItem {
	return types.TransactWriteItem{
		Update: &types.Update{
			TableName:                 ptr(u.table),
			Key:                       u.Key(),
			UpdateExpression:          u.updatePtr(),
			ConditionExpression:       u.conditionPtr(),
			ExpressionAttributeNames:  u.Names(),
			ExpressionAttributeValues: u.Values(),
		},
	}
}
