package ddbstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/antipr000/NobaServer-sub003/dynamodb/ddbstore/exprs"
	"github.com/antipr000/NobaServer-sub003/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// Query reads one partition of a table or index in sort key order.
// Limit counts items examined before the filter, as DynamoDB does.
func (s *Store) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if params == nil || params.KeyConditionExpression == nil {
		return nil, validationError("key condition expression is required")
	}
	t, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	enc := t.enc
	isIndex := params.IndexName != nil && *params.IndexName != ""
	if isIndex {
		var ok bool
		if enc, ok = t.index(*params.IndexName); !ok {
			return nil, validationError(fmt.Sprintf("The table does not have the specified index: %s", *params.IndexName))
		}
		if params.ConsistentRead != nil && *params.ConsistentRead {
			return nil, validationError("Consistent reads are not supported on global secondary indexes")
		}
	}

	env := exprs.Env{Names: params.ExpressionAttributeNames, Values: params.ExpressionAttributeValues}
	keyCond, err := exprs.ParseCondition(*params.KeyConditionExpression, env)
	if err != nil {
		return nil, validationError(err.Error())
	}
	var filter exprs.Condition
	if params.FilterExpression != nil && *params.FilterExpression != "" {
		if filter, err = exprs.ParseCondition(*params.FilterExpression, env); err != nil {
			return nil, validationError(err.Error())
		}
	}
	partition, ok := exprs.KeyEquality(keyCond, enc.keyDef.PartitionKey.Name)
	if !ok {
		return nil, validationError("Query condition missed key schema element: " + enc.keyDef.PartitionKey.Name)
	}
	pkDoc := map[string]types.AttributeValue{enc.keyDef.PartitionKey.Name: partition}
	pk, err := table.PrimaryKeyDefinition{PartitionKey: enc.keyDef.PartitionKey}.ExtractPrimaryKey(pkDoc)
	if err != nil {
		return nil, validationError(err.Error())
	}
	prefix, err := enc.partitionPrefix(pk.Values.PartitionKey)
	if err != nil {
		return nil, validationError(err.Error())
	}
	var start []byte
	if params.ExclusiveStartKey != nil {
		if start, err = startKey(t, enc, isIndex, params.ExclusiveStartKey); err != nil {
			return nil, err
		}
	}
	forward := params.ScanIndexForward == nil || *params.ScanIndexForward
	limit := 0
	if params.Limit != nil {
		limit = int(*params.Limit)
	}

	out := &dynamodb.QueryOutput{}
	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = !forward
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := prefix
		if !forward {
			seek = reverseSeekKey(prefix)
		}
		var last map[string]types.AttributeValue
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			k := it.Item().KeyCopy(nil)
			if start != nil {
				c := bytes.Compare(k, start)
				if (forward && c <= 0) || (!forward && c >= 0) {
					continue
				}
			}
			if limit > 0 && int(out.ScannedCount) == limit {
				out.LastEvaluatedKey = lastKey(t, enc, isIndex, last)
				return nil
			}
			item, err := s.resolve(txn, it.Item(), isIndex)
			if err != nil {
				return err
			}
			if item == nil {
				continue
			}
			match, err := keyCond.Eval(item)
			if err != nil {
				return validationError(err.Error())
			}
			if !match {
				continue
			}
			out.ScannedCount++
			last = item
			if filter != nil {
				if match, err = filter.Eval(item); err != nil {
					return validationError(err.Error())
				}
				if !match {
					continue
				}
			}
			out.Items = append(out.Items, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

// resolve returns the item an iterator entry points at. Index entries hold
// the table key.
func (s *Store) resolve(txn *badger.Txn, entry *badger.Item, isIndex bool) (map[string]types.AttributeValue, error) {
	val, err := entry.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	if !isIndex {
		return deserializeItem(val)
	}
	return getItem(txn, val)
}

func lastKey(t *tableSchema, enc keyEncoder, isIndex bool, item map[string]types.AttributeValue) map[string]types.AttributeValue {
	names := t.definition.KeyDefinitions.Names()
	if isIndex {
		names = append(names, enc.keyDef.Names()...)
	}
	out := make(map[string]types.AttributeValue, len(names))
	for _, n := range names {
		out[n] = item[n]
	}
	return out
}

func startKey(t *tableSchema, enc keyEncoder, isIndex bool, esk map[string]types.AttributeValue) ([]byte, error) {
	tableKey, err := t.keyOf(esk)
	if err != nil {
		return nil, validationError("The provided starting key is invalid: " + err.Error())
	}
	if !isIndex {
		return tableKey, nil
	}
	k, err := enc.encodeIndexEntry(tableKey, esk)
	if err != nil || k == nil {
		return nil, validationError("The provided starting key is invalid")
	}
	return k, nil
}
