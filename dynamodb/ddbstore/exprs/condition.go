package exprs

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Condition is a parsed condition, key condition or filter expression.
type Condition interface {
	Eval(doc map[string]types.AttributeValue) (bool, error)
}

type andCond struct{ l, r Condition }
type orCond struct{ l, r Condition }
type notCond struct{ c Condition }

func (c andCond) Eval(doc map[string]types.AttributeValue) (bool, error) {
	ok, err := c.l.Eval(doc)
	if err != nil || !ok {
		return false, err
	}
	return c.r.Eval(doc)
}

func (c orCond) Eval(doc map[string]types.AttributeValue) (bool, error) {
	ok, err := c.l.Eval(doc)
	if err != nil || ok {
		return ok, err
	}
	return c.r.Eval(doc)
}

func (c notCond) Eval(doc map[string]types.AttributeValue) (bool, error) {
	ok, err := c.c.Eval(doc)
	return !ok, err
}

type compare struct {
	op   string
	l, r operand
}

func (c compare) Eval(doc map[string]types.AttributeValue) (bool, error) {
	l, err := c.l.eval(doc)
	if err != nil {
		return false, err
	}
	r, err := c.r.eval(doc)
	if err != nil {
		return false, err
	}
	if l == nil || r == nil {
		return c.op == "<>" && (l != nil || r != nil), nil
	}
	switch c.op {
	case "=":
		return Equal(l, r), nil
	case "<>":
		return !Equal(l, r), nil
	}
	n, ok := Compare(l, r)
	if !ok {
		return false, nil
	}
	switch c.op {
	case "<":
		return n < 0, nil
	case "<=":
		return n <= 0, nil
	case ">":
		return n > 0, nil
	case ">=":
		return n >= 0, nil
	}
	return false, fmt.Errorf("unknown comparator %q", c.op)
}

type between struct{ v, lo, hi operand }

func (c between) Eval(doc map[string]types.AttributeValue) (bool, error) {
	lower, err := compare{op: ">=", l: c.v, r: c.lo}.Eval(doc)
	if err != nil || !lower {
		return false, err
	}
	return compare{op: "<=", l: c.v, r: c.hi}.Eval(doc)
}

type in struct {
	v    operand
	list []operand
}

func (c in) Eval(doc map[string]types.AttributeValue) (bool, error) {
	for _, o := range c.list {
		ok, err := compare{op: "=", l: c.v, r: o}.Eval(doc)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

type exists struct {
	path Path
	want bool
}

func (c exists) Eval(doc map[string]types.AttributeValue) (bool, error) {
	return (c.path.Get(doc) != nil) == c.want, nil
}

type beginsWith struct{ v, prefix operand }

func (c beginsWith) Eval(doc map[string]types.AttributeValue) (bool, error) {
	v, err := c.v.eval(doc)
	if err != nil {
		return false, err
	}
	p, err := c.prefix.eval(doc)
	if err != nil {
		return false, err
	}
	switch v := v.(type) {
	case *types.AttributeValueMemberS:
		ps, ok := p.(*types.AttributeValueMemberS)
		return ok && strings.HasPrefix(v.Value, ps.Value), nil
	case *types.AttributeValueMemberB:
		pb, ok := p.(*types.AttributeValueMemberB)
		return ok && strings.HasPrefix(string(v.Value), string(pb.Value)), nil
	}
	return false, nil
}

type contains struct{ v, member operand }

func (c contains) Eval(doc map[string]types.AttributeValue) (bool, error) {
	v, err := c.v.eval(doc)
	if err != nil {
		return false, err
	}
	m, err := c.member.eval(doc)
	if err != nil || m == nil {
		return false, err
	}
	switch v := v.(type) {
	case *types.AttributeValueMemberS:
		ms, ok := m.(*types.AttributeValueMemberS)
		return ok && strings.Contains(v.Value, ms.Value), nil
	case *types.AttributeValueMemberSS:
		ms, ok := m.(*types.AttributeValueMemberS)
		return ok && containsFunc(v.Value, ms.Value, func(a, b string) bool { return a == b }), nil
	case *types.AttributeValueMemberNS:
		mn, ok := m.(*types.AttributeValueMemberN)
		if !ok {
			return false, nil
		}
		for _, n := range v.Value {
			if Equal(&types.AttributeValueMemberN{Value: n}, mn) {
				return true, nil
			}
		}
	case *types.AttributeValueMemberL:
		for _, e := range v.Value {
			if Equal(e, m) {
				return true, nil
			}
		}
	}
	return false, nil
}

type attributeType struct {
	path Path
	t    operand
}

func (c attributeType) Eval(doc map[string]types.AttributeValue) (bool, error) {
	t, err := c.t.eval(doc)
	if err != nil {
		return false, err
	}
	ts, ok := t.(*types.AttributeValueMemberS)
	if !ok {
		return false, fmt.Errorf("attribute_type wants a string type name")
	}
	v := c.path.Get(doc)
	return v != nil && typeName(v) == ts.Value, nil
}

// KeyEquality returns the value compared for equality with attr in a key
// condition of the form "attr = :v [AND ...]".
func KeyEquality(c Condition, attr string) (types.AttributeValue, bool) {
	switch c := c.(type) {
	case andCond:
		if v, ok := KeyEquality(c.l, attr); ok {
			return v, true
		}
		return KeyEquality(c.r, attr)
	case compare:
		if c.op != "=" {
			return nil, false
		}
		if p, ok := c.l.(pathOperand); ok && len(p.path) == 1 && p.path.Root() == attr {
			if v, ok := c.r.(valueOperand); ok {
				return v.v, true
			}
		}
	}
	return nil, false
}
