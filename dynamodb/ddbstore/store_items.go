package ddbstore

import (
	"context"
	"fmt"

	"github.com/antipr000/NobaServer-sub003/dynamodb/ddbstore/exprs"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// checkCondition evaluates an optional condition expression against the
// current item, which is nil when absent.
func checkCondition(expr *string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) (bool, error) {
	if expr == nil || *expr == "" {
		return true, nil
	}
	cond, err := exprs.ParseCondition(*expr, exprs.Env{Names: names, Values: values})
	if err != nil {
		return false, validationError(err.Error())
	}
	ok, err := cond.Eval(item)
	if err != nil {
		return false, validationError(err.Error())
	}
	return ok, nil
}

func failedItem(rv types.ReturnValuesOnConditionCheckFailure, item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if rv == types.ReturnValuesOnConditionCheckFailureAllOld {
		return item
	}
	return nil
}

// PutItem creates or replaces an item.
func (s *Store) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if params == nil || params.Item == nil {
		return nil, validationError("item is required")
	}
	t, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	key, err := t.keyOf(params.Item)
	if err != nil {
		return nil, err
	}
	item := exprs.CloneItem(params.Item)

	var old map[string]types.AttributeValue
	err = s.update(func(txn *badger.Txn) error {
		if old, err = getItem(txn, key); err != nil {
			return err
		}
		ok, err := checkCondition(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, old)
		if err != nil {
			return err
		}
		if !ok {
			return conditionFailed(failedItem(params.ReturnValuesOnConditionCheckFailure, old))
		}
		return t.writeItem(txn, key, old, item)
	})
	if err != nil {
		return nil, err
	}

	out := &dynamodb.PutItemOutput{}
	if params.ReturnValues == types.ReturnValueAllOld {
		out.Attributes = old
	}
	return out, nil
}

// GetItem reads one item by key. Reads are always strongly consistent.
func (s *Store) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if params == nil {
		return nil, validationError("params is required")
	}
	t, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	key, err := t.itemKey(params.Key)
	if err != nil {
		return nil, err
	}
	var item map[string]types.AttributeValue
	err = s.db.View(func(txn *badger.Txn) error {
		item, err = getItem(txn, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

// DeleteItem removes an item. Deleting a missing item succeeds unless a
// condition says otherwise.
func (s *Store) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if params == nil {
		return nil, validationError("params is required")
	}
	t, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	key, err := t.itemKey(params.Key)
	if err != nil {
		return nil, err
	}

	var old map[string]types.AttributeValue
	err = s.update(func(txn *badger.Txn) error {
		if old, err = getItem(txn, key); err != nil {
			return err
		}
		ok, err := checkCondition(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, old)
		if err != nil {
			return err
		}
		if !ok {
			return conditionFailed(failedItem(params.ReturnValuesOnConditionCheckFailure, old))
		}
		if old == nil {
			return nil
		}
		return t.writeItem(txn, key, old, nil)
	})
	if err != nil {
		return nil, err
	}

	out := &dynamodb.DeleteItemOutput{}
	if params.ReturnValues == types.ReturnValueAllOld {
		out.Attributes = old
	}
	return out, nil
}

// UpdateItem edits an item in place, creating it from the key when absent.
func (s *Store) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if params == nil || params.UpdateExpression == nil {
		return nil, validationError("update expression is required")
	}
	t, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	key, err := t.itemKey(params.Key)
	if err != nil {
		return nil, err
	}
	upd, err := exprs.ParseUpdate(*params.UpdateExpression, exprs.Env{
		Names:  params.ExpressionAttributeNames,
		Values: params.ExpressionAttributeValues,
	})
	if err != nil {
		return nil, validationError(err.Error())
	}
	for _, attr := range upd.Roots() {
		if t.definition.KeyDefinitions.IsKey(attr) {
			return nil, validationError(fmt.Sprintf("Cannot update attribute %s. This attribute is part of the key", attr))
		}
	}

	var old, item map[string]types.AttributeValue
	err = s.update(func(txn *badger.Txn) error {
		if old, err = getItem(txn, key); err != nil {
			return err
		}
		ok, err := checkCondition(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, old)
		if err != nil {
			return err
		}
		if !ok {
			return conditionFailed(failedItem(params.ReturnValuesOnConditionCheckFailure, old))
		}
		base := old
		if base == nil {
			base = exprs.CloneItem(params.Key)
		}
		if item, err = upd.Apply(base); err != nil {
			return validationError(err.Error())
		}
		return t.writeItem(txn, key, old, item)
	})
	if err != nil {
		return nil, err
	}

	out := &dynamodb.UpdateItemOutput{}
	switch params.ReturnValues {
	case types.ReturnValueAllOld:
		out.Attributes = old
	case types.ReturnValueAllNew:
		out.Attributes = item
	case types.ReturnValueUpdatedNew, types.ReturnValueUpdatedOld:
		src := item
		if params.ReturnValues == types.ReturnValueUpdatedOld {
			src = old
		}
		out.Attributes = map[string]types.AttributeValue{}
		for _, attr := range upd.Roots() {
			if v, ok := src[attr]; ok {
				out.Attributes[attr] = v
			}
		}
	}
	return out, nil
}
