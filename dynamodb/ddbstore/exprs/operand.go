package exprs

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// operand evaluates to a value, or nil when it refers to a missing attribute.
type operand interface {
	eval(doc map[string]types.AttributeValue) (types.AttributeValue, error)
}

type pathOperand struct{ path Path }

func (o pathOperand) eval(doc map[string]types.AttributeValue) (types.AttributeValue, error) {
	return o.path.Get(doc), nil
}

type valueOperand struct{ v types.AttributeValue }

func (o valueOperand) eval(map[string]types.AttributeValue) (types.AttributeValue, error) {
	return o.v, nil
}

type sizeOperand struct{ path Path }

func (o sizeOperand) eval(doc map[string]types.AttributeValue) (types.AttributeValue, error) {
	var n int
	switch v := o.path.Get(doc).(type) {
	case nil:
		return nil, nil
	case *types.AttributeValueMemberS:
		n = len(v.Value)
	case *types.AttributeValueMemberB:
		n = len(v.Value)
	case *types.AttributeValueMemberSS:
		n = len(v.Value)
	case *types.AttributeValueMemberNS:
		n = len(v.Value)
	case *types.AttributeValueMemberBS:
		n = len(v.Value)
	case *types.AttributeValueMemberL:
		n = len(v.Value)
	case *types.AttributeValueMemberM:
		n = len(v.Value)
	default:
		return nil, fmt.Errorf("size: unsupported type %s", typeName(v))
	}
	return &types.AttributeValueMemberN{Value: fmt.Sprint(n)}, nil
}

type ifNotExists struct {
	path     Path
	fallback operand
}

func (o ifNotExists) eval(doc map[string]types.AttributeValue) (types.AttributeValue, error) {
	if v := o.path.Get(doc); v != nil {
		return v, nil
	}
	return o.fallback.eval(doc)
}

type listAppend struct{ a, b operand }

func (o listAppend) eval(doc map[string]types.AttributeValue) (types.AttributeValue, error) {
	var out []types.AttributeValue
	for _, op := range []operand{o.a, o.b} {
		v, err := op.eval(doc)
		if err != nil {
			return nil, err
		}
		l, ok := v.(*types.AttributeValueMemberL)
		if !ok {
			return nil, fmt.Errorf("list_append: operand is not a list")
		}
		out = append(out, l.Value...)
	}
	return &types.AttributeValueMemberL{Value: out}, nil
}

type arith struct {
	op   string
	l, r operand
}

func (o arith) eval(doc map[string]types.AttributeValue) (types.AttributeValue, error) {
	l, err := o.l.eval(doc)
	if err != nil {
		return nil, err
	}
	r, err := o.r.eval(doc)
	if err != nil {
		return nil, err
	}
	if l == nil || r == nil {
		return nil, nil
	}
	ln, lok := l.(*types.AttributeValueMemberN)
	rn, rok := r.(*types.AttributeValueMemberN)
	if !lok || !rok {
		return nil, fmt.Errorf("an operand in the update expression has an incorrect data type")
	}
	x, err := parseNumber(ln.Value)
	if err != nil {
		return nil, err
	}
	y, err := parseNumber(rn.Value)
	if err != nil {
		return nil, err
	}
	if o.op == "+" {
		x.Add(x, y)
	} else {
		x.Sub(x, y)
	}
	return &types.AttributeValueMemberN{Value: formatNumber(x)}, nil
}
