package ddbsdk

import (
	"fmt"
	"strconv"

	"github.com/antipr000/NobaServer-sub003/dynamodb/gsi"
	"github.com/antipr000/NobaServer-sub003/dynamodb/item"
	"github.com/antipr000/NobaServer-sub003/dynamodb/schema"
	"github.com/antipr000/NobaServer-sub003/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	CreatedAtAttribute = "createdAt"
	UpdatedAtAttribute = "updatedAt"
)

var auditSchema = schema.Schema{
	CreatedAtAttribute: {Type: schema.TypeDate},
	UpdatedAtAttribute: {Type: schema.TypeDate},
}

// Entity is everything the builders need to know about a record type.
type Entity struct {
	Name      string
	Table     table.TableDefinition
	Index     *table.PrimaryIndexDefinition
	Consumers []gsi.Consumer

	// schema is the composed entity schema extended with index keys and
	// audit timestamps. Declarations of the entity win.
	schema schema.Schema
}

// NewEntity resolves a registered entity against the index policy.
func NewEntity(e schema.Entity, policy *gsi.Policy) Entity {
	effective := schema.Compose(e.Schema, policy.KeySchema(e.Name))
	effective = schema.Compose(effective, auditSchema)
	return Entity{
		Name:      e.Name,
		Table:     e.Table,
		Index:     e.Index(),
		Consumers: policy.For(e.Name),
		schema:    effective,
	}
}

// Schema returns the attribute declarations used to encode items.
func (e Entity) Schema() schema.Schema {
	return e.schema
}

func (e Entity) versionAttribute() (string, bool) {
	return e.schema.VersionAttribute()
}

// Decode converts a stored item to plain values.
func (e Entity) Decode(native Item) (item.Item, error) {
	return item.Unmarshal(e.schema, native)
}

// encode marshals it and fills in key attributes derivable from it.
func (e Entity) encode(it item.Item) (map[string]types.AttributeValue, error) {
	native, err := item.Marshal(e.schema, it)
	if err != nil {
		return nil, fmt.Errorf("entity %q: %w", e.Name, err)
	}
	if e.Index != nil {
		if err := e.Index.FillKeys(native); err != nil {
			return nil, fmt.Errorf("entity %q: derive keys: %w", e.Name, err)
		}
	}
	return native, nil
}

// key extracts the table key of a marshalled item.
func (e Entity) key(native map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	pk, err := e.Table.ExtractPrimaryKey(native)
	if err != nil {
		return nil, fmt.Errorf("entity %q: %w", e.Name, err)
	}
	return pk.DDB()
}

// version reads the in-memory version of it.
func (e Entity) version(it item.Item) (name string, cur int64, present bool, err error) {
	name, ok := e.versionAttribute()
	if !ok {
		return "", 0, false, nil
	}
	v, ok := it[name]
	if !ok || v == nil {
		return name, 0, false, nil
	}
	av, err := item.MarshalValue(schema.Attribute{Type: schema.TypeNumber}, v)
	if err != nil {
		return "", 0, false, fmt.Errorf("entity %q: version %q: %w", e.Name, name, err)
	}
	cur, err = strconv.ParseInt(av.(*types.AttributeValueMemberN).Value, 10, 64)
	if err != nil {
		return "", 0, false, fmt.Errorf("entity %q: version %q must be an integer: %w", e.Name, name, err)
	}
	return name, cur, true, nil
}
