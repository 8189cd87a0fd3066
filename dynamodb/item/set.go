package item

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/exp/constraints"
)

// set encodes a slice as SS, NS or BS. Empty sets cannot be stored and
// encode to nil.
func set(v any) (types.AttributeValue, error) {
	switch s := v.(type) {
	case []string:
		if len(s) == 0 {
			return nil, nil
		}
		return &types.AttributeValueMemberSS{Value: append([]string(nil), s...)}, nil
	case [][]byte:
		if len(s) == 0 {
			return nil, nil
		}
		return &types.AttributeValueMemberBS{Value: append([][]byte(nil), s...)}, nil
	case []int:
		return numberSet(s)
	case []int64:
		return numberSet(s)
	case []float64:
		return numberSet(s)
	case []any:
		return mixedSet(s)
	}
	return nil, fmt.Errorf("want set slice, got %T", v)
}

func numberSet[T constraints.Integer | constraints.Float](vs []T) (types.AttributeValue, error) {
	if len(vs) == 0 {
		return nil, nil
	}
	out := make([]string, len(vs))
	for i, v := range vs {
		n, err := number(v)
		if err != nil {
			return nil, fmt.Errorf("set member %d: %w", i, err)
		}
		out[i] = n
	}
	return &types.AttributeValueMemberNS{Value: out}, nil
}

// mixedSet handles sets decoded generically, whose members share one kind.
func mixedSet(vs []any) (types.AttributeValue, error) {
	if len(vs) == 0 {
		return nil, nil
	}
	switch vs[0].(type) {
	case string:
		out := make([]string, len(vs))
		for i, v := range vs {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("set member %d: want string, got %T", i, v)
			}
			out[i] = s
		}
		return &types.AttributeValueMemberSS{Value: out}, nil
	case []byte:
		out := make([][]byte, len(vs))
		for i, v := range vs {
			b, ok := v.([]byte)
			if !ok {
				return nil, fmt.Errorf("set member %d: want []byte, got %T", i, v)
			}
			out[i] = b
		}
		return &types.AttributeValueMemberBS{Value: out}, nil
	}
	out := make([]string, len(vs))
	for i, v := range vs {
		n, err := number(v)
		if err != nil {
			return nil, fmt.Errorf("set member %d: %w", i, err)
		}
		out[i] = n
	}
	return &types.AttributeValueMemberNS{Value: out}, nil
}
