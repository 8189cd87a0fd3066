package ddbstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/antipr000/NobaServer-sub003/dynamodb/ddbstore/exprs"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

const (
	maxTransactItems = 100
	tokenTTL         = 10 * time.Minute
)

// txOp is one resolved action of a TransactWriteItems call.
type txOp struct {
	t         *tableSchema
	key       []byte
	condition *string
	names     map[string]string
	values    map[string]types.AttributeValue
	onFailure types.ReturnValuesOnConditionCheckFailure
	put       map[string]types.AttributeValue
	update    *exprs.Update
	updateKey map[string]types.AttributeValue
	delete    bool
	checkOnly bool
}

// TransactWriteItems applies up to 100 actions atomically. Every condition
// is checked before anything is written; one failure cancels all of them.
// A ClientRequestToken seen in the last ten minutes makes the call a no-op.
func (s *Store) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	if params == nil || len(params.TransactItems) == 0 {
		return nil, validationError("1 validation error detected: transactItems must have length greater than or equal to 1")
	}
	if len(params.TransactItems) > maxTransactItems {
		return nil, validationError(fmt.Sprintf("1 validation error detected: transactItems must have length less than or equal to %d", maxTransactItems))
	}
	ops := make([]txOp, len(params.TransactItems))
	seen := make(map[string]bool, len(ops))
	for i, ti := range params.TransactItems {
		op, err := s.resolveTxOp(ti)
		if err != nil {
			return nil, err
		}
		id := string(op.key)
		if seen[id] {
			return nil, validationError("Transaction request cannot include multiple operations on one item")
		}
		seen[id] = true
		ops[i] = op
	}

	var token []byte
	if params.ClientRequestToken != nil && *params.ClientRequestToken != "" {
		token = []byte(tokenMarker + *params.ClientRequestToken)
	}

	err := s.update(func(txn *badger.Txn) error {
		if token != nil {
			_, err := txn.Get(token)
			if err == nil {
				return nil
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}

		olds := make([]map[string]types.AttributeValue, len(ops))
		reasons := make([]types.CancellationReason, len(ops))
		failed := false
		for i, op := range ops {
			old, err := getItem(txn, op.key)
			if err != nil {
				return err
			}
			olds[i] = old
			ok, err := checkCondition(op.condition, op.names, op.values, old)
			if err != nil {
				return err
			}
			reasons[i] = types.CancellationReason{Code: ptrStr("None")}
			if !ok {
				failed = true
				reasons[i] = types.CancellationReason{
					Code:    ptrStr("ConditionalCheckFailed"),
					Message: ptrStr("The conditional request failed"),
					Item:    failedItem(op.onFailure, old),
				}
			}
		}
		if failed {
			return transactionCanceled(reasons)
		}

		for i, op := range ops {
			if err := op.apply(txn, olds[i]); err != nil {
				return err
			}
		}
		if token != nil {
			return txn.SetEntry(badger.NewEntry(token, nil).WithTTL(tokenTTL))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (s *Store) resolveTxOp(ti types.TransactWriteItem) (txOp, error) {
	var (
		op        txOp
		tableName *string
		key       map[string]types.AttributeValue
		err       error
		n         int
	)
	if p := ti.Put; p != nil {
		n++
		tableName, op.condition, op.names, op.values, op.onFailure = p.TableName, p.ConditionExpression, p.ExpressionAttributeNames, p.ExpressionAttributeValues, p.ReturnValuesOnConditionCheckFailure
		op.put = exprs.CloneItem(p.Item)
	}
	if u := ti.Update; u != nil {
		n++
		tableName, op.condition, op.names, op.values, op.onFailure = u.TableName, u.ConditionExpression, u.ExpressionAttributeNames, u.ExpressionAttributeValues, u.ReturnValuesOnConditionCheckFailure
		key = u.Key
		if u.UpdateExpression == nil {
			return txOp{}, validationError("update expression is required")
		}
		if op.update, err = exprs.ParseUpdate(*u.UpdateExpression, exprs.Env{Names: u.ExpressionAttributeNames, Values: u.ExpressionAttributeValues}); err != nil {
			return txOp{}, validationError(err.Error())
		}
		op.updateKey = u.Key
	}
	if d := ti.Delete; d != nil {
		n++
		tableName, op.condition, op.names, op.values, op.onFailure = d.TableName, d.ConditionExpression, d.ExpressionAttributeNames, d.ExpressionAttributeValues, d.ReturnValuesOnConditionCheckFailure
		key = d.Key
		op.delete = true
	}
	if c := ti.ConditionCheck; c != nil {
		n++
		tableName, op.condition, op.names, op.values, op.onFailure = c.TableName, c.ConditionExpression, c.ExpressionAttributeNames, c.ExpressionAttributeValues, c.ReturnValuesOnConditionCheckFailure
		key = c.Key
		op.checkOnly = true
		if op.condition == nil {
			return txOp{}, validationError("condition check needs a condition expression")
		}
	}
	if n != 1 {
		return txOp{}, validationError("each transact item must hold exactly one of Put, Update, Delete or ConditionCheck")
	}

	if op.t, err = s.getTable(tableName); err != nil {
		return txOp{}, err
	}
	if op.put != nil {
		op.key, err = op.t.keyOf(op.put)
	} else {
		op.key, err = op.t.itemKey(key)
	}
	if err != nil {
		return txOp{}, err
	}
	if op.update != nil {
		for _, attr := range op.update.Roots() {
			if op.t.definition.KeyDefinitions.IsKey(attr) {
				return txOp{}, validationError(fmt.Sprintf("Cannot update attribute %s. This attribute is part of the key", attr))
			}
		}
	}
	return op, nil
}

func (op txOp) apply(txn *badger.Txn, old map[string]types.AttributeValue) error {
	switch {
	case op.checkOnly:
		return nil
	case op.put != nil:
		return op.t.writeItem(txn, op.key, old, op.put)
	case op.delete:
		if old == nil {
			return nil
		}
		return op.t.writeItem(txn, op.key, old, nil)
	default:
		base := old
		if base == nil {
			base = exprs.CloneItem(op.updateKey)
		}
		item, err := op.update.Apply(base)
		if err != nil {
			return validationError(err.Error())
		}
		return op.t.writeItem(txn, op.key, old, item)
	}
}
