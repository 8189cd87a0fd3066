package table

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type Keyer interface {
	Key(doc map[string]types.AttributeValue) (types.AttributeValue, error)
}

// FmtKeyer tries to find the `keys` in the document being inserted, and passes them to the format string.
// The keys can only be of type string, number, or bytes.
// Keys support nesting by using dot notation, e.g. "meta.version".
//
// The format string should only use %s, not %d. This is because numbers are encoded as strings in dynamo.
// If any key is not found in the document, an empty string is passed instead.
func FmtKeyer(fmt string, keys ...string) *keyFormat {
	return &keyFormat{fmt, keys}
}

type keyFormat struct {
	fmt  string
	keys []string
}

func (k keyFormat) Key(doc map[string]types.AttributeValue) (types.AttributeValue, error) {
	vals := make([]any, len(k.keys))
	for i, key := range k.keys {
		vals[i] = ""
		v, found := lookup(doc, key)
		if !found {
			continue
		}
		switch attr := v.(type) {
		case *types.AttributeValueMemberS:
			vals[i] = attr.Value
		case *types.AttributeValueMemberN:
			vals[i] = attr.Value
		case *types.AttributeValueMemberB:
			vals[i] = string(attr.Value)
		default:
			return nil, fmt.Errorf("type for key %q is not string, number, or bytes, got %T", key, v)
		}
	}
	return &types.AttributeValueMemberS{Value: fmt.Sprintf(k.fmt, vals...)}, nil
}

// CopyKeyer uses the value of another attribute as-is.
func CopyKeyer(key string) *copyKey {
	return &copyKey{key}
}

type copyKey struct {
	key string
}

func (k copyKey) Key(doc map[string]types.AttributeValue) (types.AttributeValue, error) {
	v, found := lookup(doc, k.key)
	if !found {
		return nil, fmt.Errorf("key %q not found", k.key)
	}
	return v, nil
}

func ConstKeyer(val types.AttributeValue) *constKey {
	return &constKey{val}
}

type constKey struct {
	val types.AttributeValue
}

func (k constKey) Key(map[string]types.AttributeValue) (types.AttributeValue, error) {
	return k.val, nil
}

// lookup resolves a dot separated path through nested maps.
func lookup(doc map[string]types.AttributeValue, path string) (types.AttributeValue, bool) {
	head, rest, nested := strings.Cut(path, ".")
	v, ok := doc[head]
	if !ok || !nested {
		return v, ok
	}
	m, ok := v.(*types.AttributeValueMemberM)
	if !ok {
		return nil, false
	}
	return lookup(m.Value, rest)
}
