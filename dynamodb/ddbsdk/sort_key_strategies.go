package ddbsdk

import (
	"time"

	"github.com/antipr000/NobaServer-sub003/dynamodb/item"
	expression2 "github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
)

// SortKeyStrategy narrows a query on the sort key.
type SortKeyStrategy func(skName string) expression2.KeyConditionBuilder

type comparison func(expression2.KeyBuilder, expression2.ValueBuilder) expression2.KeyConditionBuilder

func compareWith[T any](cmp comparison, v T) SortKeyStrategy {
	return func(skName string) expression2.KeyConditionBuilder {
		return cmp(expression2.Key(skName), sortValue(v))
	}
}

// sortValue encodes a bound the way items store it: time.Time as a Date,
// everything else through attributevalue.
func sortValue(v any) expression2.ValueBuilder {
	if t, ok := v.(time.Time); ok {
		return expression2.Value(item.Raw(item.DateValue(t)))
	}
	return expression2.Value(v)
}

func Equals[T any](v T) SortKeyStrategy {
	return compareWith(expression2.KeyEqual, v)
}

func GreaterThan[T any](v T) SortKeyStrategy {
	return compareWith(expression2.KeyGreaterThan, v)
}

func GreaterThanOrEqual[T any](v T) SortKeyStrategy {
	return compareWith(expression2.KeyGreaterThanEqual, v)
}

func LessThan[T any](v T) SortKeyStrategy {
	return compareWith(expression2.KeyLessThan, v)
}

func LessThanOrEqual[T any](v T) SortKeyStrategy {
	return compareWith(expression2.KeyLessThanEqual, v)
}

// BeginsWith matches string sort keys starting with prefix.
func BeginsWith(prefix string) SortKeyStrategy {
	return func(skName string) expression2.KeyConditionBuilder {
		return expression2.KeyBeginsWith(expression2.Key(skName), prefix)
	}
}

// Between matches sort keys in [start, end].
func Between[T any](start, end T) SortKeyStrategy {
	return func(skName string) expression2.KeyConditionBuilder {
		return expression2.KeyBetween(expression2.Key(skName), sortValue(start), sortValue(end))
	}
}
