package ddbstore

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestStore_PutItem(t *testing.T) {
	ctx := context.Background()

	t.Run("simple put and retrieve", func(t *testing.T) {
		store := newTestStore(t, singleTableDesign)
		item := map[string]types.AttributeValue{
			"pk":   str("test"),
			"sk":   str("test"),
			"data": str("hello world"),
		}
		mustPut(t, store, singleTableDesign.Name, item)
		assert.Equal(t, item, mustGet(t, store, singleTableDesign.Name, key("test", "test")))
	})

	t.Run("create only", func(t *testing.T) {
		store := newTestStore(t, singleTableDesign)
		put := func() error {
			_, err := store.PutItem(ctx, &dynamodb.PutItemInput{
				TableName:                &singleTableDesign.Name,
				Item:                     map[string]types.AttributeValue{"pk": str("a"), "sk": str("b"), "version": num("0")},
				ConditionExpression:      ptrStr("attribute_not_exists (#0)"),
				ExpressionAttributeNames: map[string]string{"#0": "version"},
			})
			return err
		}
		require.NoError(t, put())

		err := put()
		var ccf *types.ConditionalCheckFailedException
		assert.True(t, errors.As(err, &ccf))
	})

	t.Run("return old values", func(t *testing.T) {
		store := newTestStore(t, singleTableDesign)
		old := map[string]types.AttributeValue{"pk": str("a"), "sk": str("b"), "data": str("old")}
		mustPut(t, store, singleTableDesign.Name, old)

		out, err := store.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:    &singleTableDesign.Name,
			Item:         map[string]types.AttributeValue{"pk": str("a"), "sk": str("b"), "data": str("new")},
			ReturnValues: types.ReturnValueAllOld,
		})
		require.NoError(t, err)
		assert.Equal(t, old, out.Attributes)
	})

	t.Run("missing key attribute", func(t *testing.T) {
		store := newTestStore(t, singleTableDesign)
		_, err := store.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: &singleTableDesign.Name,
			Item:      map[string]types.AttributeValue{"pk": str("a")},
		})
		assertErrorCode(t, err, "ValidationException")
	})

	t.Run("concurrent versioned writes have one winner", func(t *testing.T) {
		store := newTestStore(t, singleTableDesign)
		mustPut(t, store, singleTableDesign.Name, map[string]types.AttributeValue{"pk": str("a"), "sk": str("b"), "version": num("3")})

		var wins, losses atomic.Int32
		var g errgroup.Group
		for i := 0; i < 8; i++ {
			g.Go(func() error {
				_, err := store.PutItem(ctx, &dynamodb.PutItemInput{
					TableName:                 &singleTableDesign.Name,
					Item:                      map[string]types.AttributeValue{"pk": str("a"), "sk": str("b"), "version": num("4")},
					ConditionExpression:       ptrStr("#0 = :0"),
					ExpressionAttributeNames:  map[string]string{"#0": "version"},
					ExpressionAttributeValues: map[string]types.AttributeValue{":0": num("3")},
				})
				var ccf *types.ConditionalCheckFailedException
				switch {
				case err == nil:
					wins.Add(1)
				case errors.As(err, &ccf):
					losses.Add(1)
				default:
					return err
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())
		assert.Equal(t, int32(1), wins.Load())
		assert.Equal(t, int32(7), losses.Load())
	})
}

func TestStore_GetItem(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, singleTableDesign)

	t.Run("missing item", func(t *testing.T) {
		assert.Nil(t, mustGet(t, store, singleTableDesign.Name, key("none", "none")))
	})

	t.Run("key does not match schema", func(t *testing.T) {
		_, err := store.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: &singleTableDesign.Name,
			Key:       map[string]types.AttributeValue{"pk": str("a")},
		})
		assertErrorCode(t, err, "ValidationException")

		_, err = store.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: &singleTableDesign.Name,
			Key:       map[string]types.AttributeValue{"pk": str("a"), "sk": num("1")},
		})
		assertErrorCode(t, err, "ValidationException")
	})
}

func TestStore_UpdateItem(t *testing.T) {
	ctx := context.Background()
	bump := func(store *Store) (*dynamodb.UpdateItemOutput, error) {
		return store.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 &singleTableDesign.Name,
			Key:                       key("a", "b"),
			UpdateExpression:          ptrStr("SET #0 = if_not_exists(#0, :0) + :1, #2 = :2"),
			ExpressionAttributeNames:  map[string]string{"#0": "version", "#2": "name"},
			ExpressionAttributeValues: map[string]types.AttributeValue{":0": num("-1"), ":1": num("1"), ":2": str("ada")},
			ReturnValues:              types.ReturnValueAllNew,
		})
	}

	t.Run("creates then increments", func(t *testing.T) {
		store := newTestStore(t, singleTableDesign)
		out, err := bump(store)
		require.NoError(t, err)
		assert.Equal(t, map[string]types.AttributeValue{
			"pk": str("a"), "sk": str("b"), "version": num("0"), "name": str("ada"),
		}, out.Attributes)

		_, err = bump(store)
		require.NoError(t, err)
		assert.Equal(t, num("1"), mustGet(t, store, singleTableDesign.Name, key("a", "b"))["version"])
	})

	t.Run("cannot update key", func(t *testing.T) {
		store := newTestStore(t, singleTableDesign)
		_, err := store.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 &singleTableDesign.Name,
			Key:                       key("a", "b"),
			UpdateExpression:          ptrStr("SET pk = :0"),
			ExpressionAttributeValues: map[string]types.AttributeValue{":0": str("c")},
		})
		assertErrorCode(t, err, "ValidationException")
	})

	t.Run("failed condition returns old item on request", func(t *testing.T) {
		store := newTestStore(t, singleTableDesign)
		old := map[string]types.AttributeValue{"pk": str("a"), "sk": str("b"), "version": num("2")}
		mustPut(t, store, singleTableDesign.Name, old)

		_, err := store.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                           &singleTableDesign.Name,
			Key:                                 key("a", "b"),
			UpdateExpression:                    ptrStr("SET #0 = #0 + :1"),
			ConditionExpression:                 ptrStr("#0 = :0"),
			ExpressionAttributeNames:            map[string]string{"#0": "version"},
			ExpressionAttributeValues:           map[string]types.AttributeValue{":0": num("1"), ":1": num("1")},
			ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
		})
		var ccf *types.ConditionalCheckFailedException
		require.True(t, errors.As(err, &ccf))
		assert.Equal(t, old, ccf.Item)
		assert.Equal(t, old, mustGet(t, store, singleTableDesign.Name, key("a", "b")))
	})

	t.Run("remove and updated new", func(t *testing.T) {
		store := newTestStore(t, singleTableDesign)
		mustPut(t, store, singleTableDesign.Name, map[string]types.AttributeValue{"pk": str("a"), "sk": str("b"), "x": str("1"), "y": str("2")})
		out, err := store.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 &singleTableDesign.Name,
			Key:                       key("a", "b"),
			UpdateExpression:          ptrStr("REMOVE x SET y = :y"),
			ExpressionAttributeValues: map[string]types.AttributeValue{":y": str("3")},
			ReturnValues:              types.ReturnValueUpdatedNew,
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]types.AttributeValue{"y": str("3")}, out.Attributes)
		assert.NotContains(t, mustGet(t, store, singleTableDesign.Name, key("a", "b")), "x")
	})
}

func TestStore_DeleteItem(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, singleTableDesign)
	mustPut(t, store, singleTableDesign.Name, map[string]types.AttributeValue{"pk": str("a"), "sk": str("b"), "version": num("1")})

	del := func(version string) error {
		_, err := store.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:                 &singleTableDesign.Name,
			Key:                       key("a", "b"),
			ConditionExpression:       ptrStr("#0 = :0"),
			ExpressionAttributeNames:  map[string]string{"#0": "version"},
			ExpressionAttributeValues: map[string]types.AttributeValue{":0": num(version)},
		})
		return err
	}

	var ccf *types.ConditionalCheckFailedException
	assert.True(t, errors.As(del("0"), &ccf))
	require.NoError(t, del("1"))
	assert.Nil(t, mustGet(t, store, singleTableDesign.Name, key("a", "b")))

	_, err := store.DeleteItem(ctx, &dynamodb.DeleteItemInput{TableName: &singleTableDesign.Name, Key: key("a", "b")})
	assert.NoError(t, err, "deleting a missing item succeeds")
}
