// Package condition builds write conditions and compiles them to the
// expression strings and placeholders sent with a request.
package condition

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"

	"github.com/antipr000/NobaServer-sub003/dynamodb/item"
	"github.com/antipr000/NobaServer-sub003/dynamodb/schema"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Condition is one of AttributeNotExists, Equals, And or Expression.
type Condition interface {
	condition()
}

type AttributeNotExists struct {
	Name string
}

// Equals holds when the stored attribute equals Value. Value is encoded
// through the schema when the attribute is declared there.
type Equals struct {
	Name  string
	Value any
}

type And struct {
	Conditions []Condition
}

// Expression carries a condition built directly with the expression package.
type Expression struct {
	Builder expression.ConditionBuilder
}

func (AttributeNotExists) condition() {}
func (Equals) condition()             {}
func (And) condition()                {}
func (Expression) condition()         {}

// Merge combines conditions with And, dropping nils and flattening nested
// Ands. It returns nil when nothing is left.
func Merge(conds ...Condition) Condition {
	var flat []Condition
	for _, c := range conds {
		switch c := c.(type) {
		case nil:
		case And:
			if m := Merge(c.Conditions...); m != nil {
				if and, ok := m.(And); ok {
					flat = append(flat, and.Conditions...)
				} else {
					flat = append(flat, m)
				}
			}
		default:
			flat = append(flat, c)
		}
	}
	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	}
	return And{Conditions: flat}
}

// Build converts c into a ConditionBuilder so it can share one placeholder
// set with an update expression.
func Build(c Condition, s schema.Schema) (expression.ConditionBuilder, error) {
	switch c := c.(type) {
	case AttributeNotExists:
		if c.Name == "" {
			return expression.ConditionBuilder{}, errors.New("attribute_not_exists: empty attribute name")
		}
		return expression.AttributeNotExists(expression.Name(c.Name)), nil
	case Equals:
		if c.Name == "" {
			return expression.ConditionBuilder{}, errors.New("equals: empty attribute name")
		}
		v, err := value(c.Name, c.Value, s)
		if err != nil {
			return expression.ConditionBuilder{}, err
		}
		return expression.Equal(expression.Name(c.Name), v), nil
	case And:
		parts := make([]expression.ConditionBuilder, 0, len(c.Conditions))
		for _, inner := range c.Conditions {
			if inner == nil {
				continue
			}
			b, err := Build(inner, s)
			if err != nil {
				return expression.ConditionBuilder{}, err
			}
			parts = append(parts, b)
		}
		switch len(parts) {
		case 0:
			return expression.ConditionBuilder{}, errors.New("and: no conditions")
		case 1:
			return parts[0], nil
		}
		return expression.And(parts[0], parts[1], parts[2:]...), nil
	case Expression:
		if !c.Builder.IsSet() {
			return expression.ConditionBuilder{}, errors.New("expression: condition not set")
		}
		return c.Builder, nil
	case nil:
		return expression.ConditionBuilder{}, errors.New("nil condition")
	}
	return expression.ConditionBuilder{}, fmt.Errorf("unsupported condition %T", c)
}

func value(name string, v any, s schema.Schema) (expression.ValueBuilder, error) {
	if av, ok := v.(types.AttributeValue); ok {
		return expression.Value(item.Raw(av)), nil
	}
	attr, ok := s[name]
	if !ok {
		return expression.Value(v), nil
	}
	av, err := item.MarshalValue(attr, v)
	if err != nil {
		return expression.ValueBuilder{}, fmt.Errorf("equals %q: %w", name, err)
	}
	if av == nil {
		return expression.ValueBuilder{}, fmt.Errorf("equals %q: value has no stored form", name)
	}
	return expression.Value(item.Raw(av)), nil
}

// Compiled is a condition rendered for the wire.
type Compiled struct {
	Expression string
	Names      map[string]string
	Values     map[string]types.AttributeValue
}

// Compile renders c on its own. Repeated attribute names share a placeholder.
func Compile(c Condition, s schema.Schema) (Compiled, error) {
	b, err := Build(c, s)
	if err != nil {
		return Compiled{}, err
	}
	expr, err := expression.NewBuilder().WithCondition(b).Build()
	if err != nil {
		return Compiled{}, fmt.Errorf("compile condition: %w", err)
	}
	out := Compiled{
		Expression: *expr.Condition(),
		Names:      expr.Names(),
		Values:     expr.Values(),
	}
	ShareValues(out.Values, &out.Expression)
	return out, nil
}

var valueToken = regexp.MustCompile(`:[0-9]+`)

// ShareValues gives equal values a single placeholder. Every later token
// bound to a value already seen is dropped from values and rewritten to the
// first token in exprs. Tokens are compared in numeric order; nil exprs are
// skipped.
func ShareValues(values map[string]types.AttributeValue, exprs ...*string) {
	tokens := make([]string, 0, len(values))
	for t := range values {
		tokens = append(tokens, t)
	}
	sort.Slice(tokens, func(i, j int) bool {
		return tokenIndex(tokens[i]) < tokenIndex(tokens[j])
	})

	alias := map[string]string{}
	var kept []string
	for _, t := range tokens {
		shared := false
		for _, k := range kept {
			if reflect.DeepEqual(values[t], values[k]) {
				alias[t] = k
				delete(values, t)
				shared = true
				break
			}
		}
		if !shared {
			kept = append(kept, t)
		}
	}
	if len(alias) == 0 {
		return
	}
	for _, e := range exprs {
		if e == nil {
			continue
		}
		*e = valueToken.ReplaceAllStringFunc(*e, func(t string) string {
			if k, ok := alias[t]; ok {
				return k
			}
			return t
		})
	}
}

func tokenIndex(t string) int {
	n, err := strconv.Atoi(t[1:])
	if err != nil {
		return -1
	}
	return n
}
