package table

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type PrimaryKeyDefinition struct {
	PartitionKey KeyDef
	SortKey      KeyDef
}

// Names returns the key attribute names, partition first.
func (k PrimaryKeyDefinition) Names() []string {
	if k.SortKey.Name == "" {
		return []string{k.PartitionKey.Name}
	}
	return []string{k.PartitionKey.Name, k.SortKey.Name}
}

// IsKey reports whether attr is one of the key attributes.
func (k PrimaryKeyDefinition) IsKey(attr string) bool {
	return attr != "" && (attr == k.PartitionKey.Name || attr == k.SortKey.Name)
}

type KeyDef struct {
	Name string
	Kind KeyKind
}

type KeyKind string

const (
	KeyKindS KeyKind = "S"
	KeyKindN KeyKind = "N"
	KeyKindB KeyKind = "B"
)

// PrimaryKeyValues holds the raw key values: string for S and N keys, []byte for B keys.
type PrimaryKeyValues struct {
	PartitionKey any
	SortKey      any
}

type PrimaryKey struct {
	Definition PrimaryKeyDefinition
	Values     PrimaryKeyValues
}

// DDB renders the key as a dynamo attribute map.
func (k PrimaryKey) DDB() (map[string]types.AttributeValue, error) {
	pk, err := keyToAV(k.Definition.PartitionKey.Kind, k.Values.PartitionKey)
	if err != nil {
		return nil, fmt.Errorf("partition key %q: %w", k.Definition.PartitionKey.Name, err)
	}
	if k.Definition.SortKey.Name == "" {
		return map[string]types.AttributeValue{
			k.Definition.PartitionKey.Name: pk,
		}, nil
	}
	if k.Values.SortKey == nil {
		return nil, fmt.Errorf("sort key %q is required but got nil", k.Definition.SortKey.Name)
	}
	sk, err := keyToAV(k.Definition.SortKey.Kind, k.Values.SortKey)
	if err != nil {
		return nil, fmt.Errorf("sort key %q: %w", k.Definition.SortKey.Name, err)
	}
	return map[string]types.AttributeValue{
		k.Definition.PartitionKey.Name: pk,
		k.Definition.SortKey.Name:      sk,
	}, nil
}

func keyToAV(kind KeyKind, v any) (types.AttributeValue, error) {
	switch kind {
	case KeyKindS, KeyKindN:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("kind %s wants a string value, got %T", kind, v)
		}
		if kind == KeyKindS {
			return &types.AttributeValueMemberS{Value: s}, nil
		}
		return &types.AttributeValueMemberN{Value: s}, nil
	case KeyKindB:
		b, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("kind B wants []byte, got %T", v)
		}
		return &types.AttributeValueMemberB{Value: b}, nil
	default:
		return nil, fmt.Errorf("unknown key kind %q", kind)
	}
}

// KindOf returns the key kind of a dynamo value, or an error for values that cannot be keys.
func KindOf(v types.AttributeValue) (KeyKind, error) {
	switch v.(type) {
	case *types.AttributeValueMemberS:
		return KeyKindS, nil
	case *types.AttributeValueMemberN:
		return KeyKindN, nil
	case *types.AttributeValueMemberB:
		return KeyKindB, nil
	default:
		return "", fmt.Errorf("unexpected key attribute type %T", v)
	}
}

func attributeMatchesDefinition(want KeyKind, v types.AttributeValue) error {
	got, err := KindOf(v)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("got KeyKind %q want %q", got, want)
	}
	return nil
}
