package table

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Primary indexes operates on the underlying table's keys.
// The index definition contains "Keyers" which construct the primary key.
type PrimaryIndexDefinition struct {
	Table          TableDefinition
	PartitionKeyer Keyer
	SortKeyer      Keyer
}

func (i *PrimaryIndexDefinition) PrimaryKey(doc map[string]types.AttributeValue) (PrimaryKey, error) {
	keys := i.Table.KeyDefinitions
	if i.PartitionKeyer == nil {
		return PrimaryKey{}, fmt.Errorf("table %q: no partition keyer", i.Table.Name)
	}
	part, err := i.PartitionKeyer.Key(doc)
	if err != nil {
		return PrimaryKey{}, fmt.Errorf("failed to get partition key: %w", err)
	}
	if err := attributeMatchesDefinition(keys.PartitionKey.Kind, part); err != nil {
		return PrimaryKey{}, fmt.Errorf("partition key kind does not match table definition: %w", err)
	}
	pk := PrimaryKey{
		Definition: keys,
		Values: PrimaryKeyValues{
			PartitionKey: keyValueFromAV(part),
		},
	}
	if keys.SortKey.Name == "" {
		return pk, nil
	}
	if i.SortKeyer == nil {
		return PrimaryKey{}, fmt.Errorf("table %q: no sort keyer", i.Table.Name)
	}
	sort, err := i.SortKeyer.Key(doc)
	if err != nil {
		return PrimaryKey{}, fmt.Errorf("failed to get sort key: %w", err)
	}
	if err := attributeMatchesDefinition(keys.SortKey.Kind, sort); err != nil {
		return PrimaryKey{}, fmt.Errorf("sort key kind does not match table definition: %w", err)
	}
	pk.Values.SortKey = keyValueFromAV(sort)
	return pk, nil
}

// FillKeys sets the table key attributes on doc when they are missing,
// deriving them through the keyers. Attributes already present are kept.
func (i *PrimaryIndexDefinition) FillKeys(doc map[string]types.AttributeValue) error {
	if _, err := i.Table.ExtractPrimaryKey(doc); err == nil {
		return nil
	}
	pk, err := i.PrimaryKey(doc)
	if err != nil {
		return err
	}
	keys, err := pk.DDB()
	if err != nil {
		return err
	}
	for name, v := range keys {
		if _, ok := doc[name]; !ok {
			doc[name] = v
		}
	}
	return nil
}
