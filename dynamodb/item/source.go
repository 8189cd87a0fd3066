package item

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type sourceKind int

const (
	sourceMap sourceKind = iota + 1
	sourceStruct
)

// Source is the input of a write: either a property bag or a domain struct.
// Callers pick the shape explicitly with FromMap or FromStruct.
type Source struct {
	kind sourceKind
	m    map[string]any
	v    any
}

func FromMap(m map[string]any) Source {
	return Source{kind: sourceMap, m: m}
}

// FromStruct reads the exported fields of v through its dynamodbav tags.
// Nil pointer fields are explicit nils unless tagged omitempty.
func FromStruct(v any) Source {
	return Source{kind: sourceStruct, v: v}
}

// Item returns a copy of the source attributes, safe to modify.
func (s Source) Item() (Item, error) {
	switch s.kind {
	case sourceMap:
		return Item(s.m).Clone(), nil
	case sourceStruct:
		av, err := attributevalue.MarshalMap(s.v)
		if err != nil {
			return nil, fmt.Errorf("read %T: %w", s.v, err)
		}
		var out map[string]any
		if err := attributevalue.UnmarshalMapWithOptions(av, &out, func(o *attributevalue.DecoderOptions) {
			o.UseNumber = true
		}); err != nil {
			return nil, fmt.Errorf("read %T: %w", s.v, err)
		}
		for k, v := range out {
			if out[k], err = fromNumbers(v); err != nil {
				return nil, fmt.Errorf("read %T: attribute %q: %w", s.v, k, err)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("empty item source")
}

// fromNumbers replaces decoded numbers with int64 when integral and float64
// otherwise, so large integers such as versions keep every digit.
func fromNumbers(v any) (any, error) {
	switch t := v.(type) {
	case attributevalue.Number:
		return parseNumber(string(t))
	case []attributevalue.Number:
		out := make([]any, len(t))
		for i, e := range t {
			n, err := parseNumber(string(e))
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		for k, e := range t {
			n, err := fromNumbers(e)
			if err != nil {
				return nil, err
			}
			t[k] = n
		}
	case []any:
		for i, e := range t {
			n, err := fromNumbers(e)
			if err != nil {
				return nil, err
			}
			t[i] = n
		}
	}
	return v, nil
}

type raw struct {
	av types.AttributeValue
}

func (r raw) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return r.av, nil
}

// Raw wraps an encoded value so the expression builder passes it through
// unchanged instead of encoding it a second time.
func Raw(av types.AttributeValue) attributevalue.Marshaler {
	return raw{av}
}
