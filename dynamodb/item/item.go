// Package item converts plain attribute maps to dynamo attribute values and
// back, guided by a schema.Schema.
//
// Numbers nested inside Map, Set and Any attributes are normalized through the
// generic attributevalue decoder and come back as float64. Only top-level
// Number attributes keep their integral type.
//
// Dates are stored as epoch milliseconds; finer precision is truncated.
package item

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/antipr000/NobaServer-sub003/dynamodb/schema"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/exp/constraints"
)

// Item is a flat attribute map as seen by domain code.
type Item map[string]any

// Clone returns a shallow copy.
func (it Item) Clone() Item {
	out := make(Item, len(it))
	for k, v := range it {
		out[k] = v
	}
	return out
}

// Marshal encodes the attributes of it that are declared in s and hold a
// non-nil value. Undeclared attributes are ignored.
func Marshal(s schema.Schema, it Item) (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, len(it))
	for name, attr := range s {
		v, ok := it[name]
		if !ok || v == nil {
			continue
		}
		av, err := MarshalValue(attr, v)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		if av == nil {
			continue
		}
		out[name] = av
	}
	return out, nil
}

// MarshalValue encodes a single value for attr. A nil result with a nil
// error means the value has no stored form, e.g. an empty set.
func MarshalValue(attr schema.Attribute, v any) (types.AttributeValue, error) {
	switch attr.Type {
	case schema.TypeNumber:
		n, err := number(v)
		if err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberN{Value: n}, nil
	case schema.TypeString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("want string, got %T", v)
		}
		return &types.AttributeValueMemberS{Value: s}, nil
	case schema.TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("want bool, got %T", v)
		}
		return &types.AttributeValueMemberBOOL{Value: b}, nil
	case schema.TypeDate:
		t, err := date(v)
		if err != nil {
			return nil, err
		}
		return DateValue(t), nil
	case schema.TypeSet:
		return set(v)
	case schema.TypeMap:
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return nil, err
		}
		if _, ok := av.(*types.AttributeValueMemberM); !ok {
			return nil, fmt.Errorf("want map value, got %T", v)
		}
		return av, nil
	case schema.TypeAny:
		return attributevalue.Marshal(v)
	}
	return nil, fmt.Errorf("unknown type %q", attr.Type)
}

// Unmarshal decodes native into an Item. Attributes missing from s are
// decoded as TypeAny.
func Unmarshal(s schema.Schema, native map[string]types.AttributeValue) (Item, error) {
	out := make(Item, len(native))
	for name, av := range native {
		attr, ok := s[name]
		if !ok {
			attr = schema.Attribute{Type: schema.TypeAny}
		}
		v, err := UnmarshalValue(attr, av)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

// UnmarshalValue decodes a single value. Number attributes decode to int64
// when integral and float64 otherwise; Date attributes to a UTC time.Time.
func UnmarshalValue(attr schema.Attribute, av types.AttributeValue) (any, error) {
	if _, ok := av.(*types.AttributeValueMemberNULL); ok {
		return nil, nil
	}
	switch attr.Type {
	case schema.TypeNumber:
		n, ok := av.(*types.AttributeValueMemberN)
		if !ok {
			return nil, fmt.Errorf("want N, got %T", av)
		}
		return parseNumber(n.Value)
	case schema.TypeString:
		s, ok := av.(*types.AttributeValueMemberS)
		if !ok {
			return nil, fmt.Errorf("want S, got %T", av)
		}
		return s.Value, nil
	case schema.TypeBoolean:
		b, ok := av.(*types.AttributeValueMemberBOOL)
		if !ok {
			return nil, fmt.Errorf("want BOOL, got %T", av)
		}
		return b.Value, nil
	case schema.TypeDate:
		n, ok := av.(*types.AttributeValueMemberN)
		if !ok {
			return nil, fmt.Errorf("want N, got %T", av)
		}
		ms, err := strconv.ParseInt(n.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("date %q: %w", n.Value, err)
		}
		return time.UnixMilli(ms).UTC(), nil
	case schema.TypeMap, schema.TypeSet, schema.TypeAny:
		var v any
		if err := attributevalue.Unmarshal(av, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, fmt.Errorf("unknown type %q", attr.Type)
}

func number(v any) (string, error) {
	switch n := v.(type) {
	case int:
		return signed(n), nil
	case int8:
		return signed(n), nil
	case int16:
		return signed(n), nil
	case int32:
		return signed(n), nil
	case int64:
		return signed(n), nil
	case uint:
		return unsigned(n), nil
	case uint8:
		return unsigned(n), nil
	case uint16:
		return unsigned(n), nil
	case uint32:
		return unsigned(n), nil
	case uint64:
		return unsigned(n), nil
	case float32:
		return float(n)
	case float64:
		return float(n)
	case json.Number:
		return checkedNumber(string(n))
	case attributevalue.Number:
		return checkedNumber(string(n))
	}
	return "", fmt.Errorf("want number, got %T", v)
}

func checkedNumber(s string) (string, error) {
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return "", fmt.Errorf("invalid number %q", s)
	}
	return s, nil
}

func signed[T constraints.Signed](v T) string {
	return strconv.FormatInt(int64(v), 10)
}

func unsigned[T constraints.Unsigned](v T) string {
	return strconv.FormatUint(uint64(v), 10)
}

func float[T constraints.Float](v T) (string, error) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("number %v cannot be stored", f)
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

func parseNumber(s string) (any, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", s)
	}
	return f, nil
}

func date(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case *time.Time:
		if t == nil {
			return time.Time{}, fmt.Errorf("nil *time.Time")
		}
		return *t, nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("date %q: %w", t, err)
		}
		return parsed, nil
	case int64:
		return time.UnixMilli(t), nil
	case float64:
		return time.UnixMilli(int64(t)), nil
	}
	return time.Time{}, fmt.Errorf("want time.Time, got %T", v)
}

// DateValue is the stored form of a Date: epoch milliseconds.
func DateValue(t time.Time) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(t.UnixMilli(), 10)}
}
