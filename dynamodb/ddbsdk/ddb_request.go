package ddbsdk

import (
	"maps"

	"github.com/antipr000/NobaServer-sub003/dynamodb/condition"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// WriteRequest is a prepared *Put, *Update or *Delete. Requests are
// immutable; accessors return copies.
type WriteRequest interface {
	TableName() string
	Key() map[string]types.AttributeValue
	ToTransactWriteItem() types.TransactWriteItem
	writeRequest()
}

var (
	_ WriteRequest = (*Put)(nil)
	_ WriteRequest = (*Update)(nil)
	_ WriteRequest = (*Delete)(nil)
)

// exprParts holds the rendered expressions of a request.
type exprParts struct {
	condition *string
	update    *string
	names     map[string]string
	values    map[string]types.AttributeValue
}

// newExprParts keeps one placeholder per distinct value across the
// condition and update expressions.
func newExprParts(expr expression.Expression) exprParts {
	p := exprParts{
		condition: expr.Condition(),
		update:    expr.Update(),
		names:     expr.Names(),
		values:    expr.Values(),
	}
	condition.ShareValues(p.values, p.condition, p.update)
	return p
}

// ConditionExpression returns the rendered condition, or "" when unconditional.
func (p exprParts) ConditionExpression() string {
	if p.condition == nil {
		return ""
	}
	return *p.condition
}

func (p exprParts) Names() map[string]string {
	return maps.Clone(p.names)
}

func (p exprParts) Values() map[string]types.AttributeValue {
	return maps.Clone(p.values)
}

func (p exprParts) conditionPtr() *string {
	if p.condition == nil {
		return nil
	}
	return ptr(*p.condition)
}

func (p exprParts) updatePtr() *string {
	if p.update == nil {
		return nil
	}
	return ptr(*p.update)
}

func ptr[T any](v T) *T {
	return &v
}
