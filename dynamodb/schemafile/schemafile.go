// Package schemafile loads table, entity and index declarations from YAML
// and builds the registry and index policy they describe.
package schemafile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/antipr000/NobaServer-sub003/dynamodb/gsi"
	"github.com/antipr000/NobaServer-sub003/dynamodb/schema"
	"github.com/antipr000/NobaServer-sub003/dynamodb/table"
	"gopkg.in/yaml.v3"
)

// Document is the root of a schema file.
type Document struct {
	Tables   []Table  `yaml:"tables" json:"tables"`
	Entities []Entity `yaml:"entities" json:"entities"`
}

type Table struct {
	Name         string        `yaml:"name" json:"name"`
	Description  string        `yaml:"description,omitempty" json:"description,omitempty"`
	PartitionKey KeyDef        `yaml:"partitionKey" json:"partitionKey"`
	SortKey      *KeyDef       `yaml:"sortKey,omitempty" json:"sortKey,omitempty"`
	TTL          string        `yaml:"ttl,omitempty" json:"ttl,omitempty"`
	GSIs         []GSI         `yaml:"gsis,omitempty" json:"gsis,omitempty"`
	Attributes   schema.Schema `yaml:"attributes,omitempty" json:"attributes,omitempty"`
}

// KeyDef describes a key attribute. Kind is "S", "N" or "B" and defaults to "S".
type KeyDef struct {
	Name string `yaml:"name" json:"name"`
	Kind string `yaml:"kind,omitempty" json:"kind,omitempty"`
}

type GSI struct {
	Name         string   `yaml:"name" json:"name"`
	PartitionKey KeyDef   `yaml:"partitionKey" json:"partitionKey"`
	SortKey      *KeyDef  `yaml:"sortKey,omitempty" json:"sortKey,omitempty"`
	Projected    []string `yaml:"projected,omitempty" json:"projected,omitempty"`
}

// Entity describes a record type stored in a table. Attributes and Rules
// are merged; Attributes wins when both name the same attribute.
type Entity struct {
	Name                string                 `yaml:"name" json:"name"`
	Table               string                 `yaml:"table" json:"table"`
	PartitionKeyPattern string                 `yaml:"partitionKeyPattern,omitempty" json:"partitionKeyPattern,omitempty"`
	SortKeyPattern      string                 `yaml:"sortKeyPattern,omitempty" json:"sortKeyPattern,omitempty"`
	Attributes          schema.Schema          `yaml:"attributes,omitempty" json:"attributes,omitempty"`
	Rules               map[string]schema.Rule `yaml:"rules,omitempty" json:"rules,omitempty"`
	GSIMappings         []GSIMapping           `yaml:"gsiMappings,omitempty" json:"gsiMappings,omitempty"`
}

// GSIMapping declares that the entity writes the keys of a table index.
type GSIMapping struct {
	GSI         string    `yaml:"gsi" json:"gsi"`
	Partition   KeySource `yaml:"partition" json:"partition"`
	Sort        KeySource `yaml:"sort,omitempty" json:"sort,omitempty"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
}

// KeySource names the attribute an index key is copied from, or a constant.
type KeySource struct {
	From  string `yaml:"from,omitempty" json:"from,omitempty"`
	Const any    `yaml:"const,omitempty" json:"const,omitempty"`
}

// Parse decodes a schema document. Unknown fields are rejected.
func Parse(data []byte) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return &doc, nil
}

func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// TableDefinitions converts the declared tables.
func (d *Document) TableDefinitions() ([]table.TableDefinition, error) {
	out := make([]table.TableDefinition, 0, len(d.Tables))
	var errs []error
	for _, t := range d.Tables {
		def, err := t.definition()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, def)
	}
	return out, errors.Join(errs...)
}

// Build registers every table and entity and validates the index mappings.
// All problems are reported together; each matches schema.ErrSchemaViolation.
func (d *Document) Build() (*schema.Registry, *gsi.Policy, error) {
	reg := schema.NewRegistry()
	var errs []error
	byName := make(map[string]table.TableDefinition, len(d.Tables))
	for _, t := range d.Tables {
		def, err := t.definition()
		if err == nil {
			err = reg.AddTable(def, baseSchema(t, def))
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		byName[def.Name] = def
	}

	var consumers []gsi.Consumer
	for _, e := range d.Entities {
		def, ok := byName[e.Table]
		if !ok {
			errs = append(errs, &schema.ViolationError{Entity: e.Name, Reason: fmt.Sprintf("unknown table %q", e.Table)})
			continue
		}
		ent, err := e.entity(def)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := reg.Register(ent); err != nil {
			errs = append(errs, err)
			continue
		}
		cs, err := e.consumers(def)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		consumers = append(consumers, cs...)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, nil, err
	}
	policy, err := gsi.NewPolicy(consumers)
	if err != nil {
		return nil, nil, err
	}
	return reg, policy, nil
}

func (t Table) definition() (table.TableDefinition, error) {
	if t.Name == "" {
		return table.TableDefinition{}, &schema.ViolationError{Reason: "table name is required"}
	}
	keys, err := keyDefinitions(t.PartitionKey, t.SortKey)
	if err != nil {
		return table.TableDefinition{}, &schema.ViolationError{Reason: fmt.Sprintf("table %q: %v", t.Name, err)}
	}
	def := table.TableDefinition{
		Name:           t.Name,
		Description:    t.Description,
		KeyDefinitions: keys,
		TimeToLiveKey:  t.TTL,
	}
	for _, g := range t.GSIs {
		gkeys, err := keyDefinitions(g.PartitionKey, g.SortKey)
		if err != nil {
			return table.TableDefinition{}, &schema.ViolationError{Reason: fmt.Sprintf("table %q gsi %q: %v", t.Name, g.Name, err)}
		}
		def.GSIs = append(def.GSIs, table.GSIDefinition{
			Name:                g.Name,
			KeyDefinitions:      gkeys,
			ProjectedAttributes: g.Projected,
		})
	}
	return def, nil
}

// baseSchema declares the table key attributes with their roles. An
// attribute the document declares keeps its type.
func baseSchema(t Table, def table.TableDefinition) schema.Schema {
	out := schema.Schema{}
	for name, attr := range t.Attributes {
		out[name] = attr
	}
	declare := func(k table.KeyDef, role schema.KeyRole) {
		if k.Name == "" {
			return
		}
		attr, ok := out[k.Name]
		if !ok {
			attr.Type = typeForKind(k.Kind)
		}
		attr.KeyRole = role
		out[k.Name] = attr
	}
	declare(def.KeyDefinitions.PartitionKey, schema.KeyRolePartition)
	declare(def.KeyDefinitions.SortKey, schema.KeyRoleSort)
	return out
}

func (e Entity) entity(def table.TableDefinition) (schema.Entity, error) {
	attrs := schema.FromRules(e.Rules)
	for name, attr := range e.Attributes {
		attrs[name] = attr
	}
	out := schema.Entity{Name: e.Name, Table: def, Schema: attrs}
	if e.PartitionKeyPattern == "" {
		if e.SortKeyPattern != "" {
			return schema.Entity{}, &schema.ViolationError{Entity: e.Name, Reason: "sortKeyPattern requires partitionKeyPattern"}
		}
		return out, nil
	}
	for _, k := range def.KeyDefinitions.Names() {
		if kind := keyKind(def, k); kind != table.KeyKindS {
			return schema.Entity{}, &schema.ViolationError{Entity: e.Name, Attribute: k, Reason: fmt.Sprintf("key patterns produce strings, key kind is %s", kind)}
		}
	}
	pk, err := ParsePattern(e.PartitionKeyPattern)
	if err != nil {
		return schema.Entity{}, &schema.ViolationError{Entity: e.Name, Reason: fmt.Sprintf("partitionKeyPattern: %v", err)}
	}
	out.PartitionKeyer = pk.Keyer()
	if def.KeyDefinitions.SortKey.Name == "" {
		if e.SortKeyPattern != "" {
			return schema.Entity{}, &schema.ViolationError{Entity: e.Name, Reason: fmt.Sprintf("table %q has no sort key", def.Name)}
		}
		return out, nil
	}
	if e.SortKeyPattern == "" {
		return schema.Entity{}, &schema.ViolationError{Entity: e.Name, Reason: "sortKeyPattern is required"}
	}
	sk, err := ParsePattern(e.SortKeyPattern)
	if err != nil {
		return schema.Entity{}, &schema.ViolationError{Entity: e.Name, Reason: fmt.Sprintf("sortKeyPattern: %v", err)}
	}
	out.SortKeyer = sk.Keyer()
	return out, nil
}

func (e Entity) consumers(def table.TableDefinition) ([]gsi.Consumer, error) {
	out := make([]gsi.Consumer, 0, len(e.GSIMappings))
	for _, m := range e.GSIMappings {
		g, ok := def.GSI(m.GSI)
		if !ok {
			return nil, &schema.ViolationError{Entity: e.Name, Reason: fmt.Sprintf("table %q has no index %q", def.Name, m.GSI)}
		}
		out = append(out, gsi.Consumer{
			Entity:          e.Name,
			Index:           g,
			SourcePartition: m.Partition.From,
			ConstPartition:  m.Partition.Const,
			SourceSort:      m.Sort.From,
			ConstSort:       m.Sort.Const,
			Description:     m.Description,
		})
	}
	return out, nil
}

func keyKind(def table.TableDefinition, name string) table.KeyKind {
	if def.KeyDefinitions.PartitionKey.Name == name {
		return def.KeyDefinitions.PartitionKey.Kind
	}
	return def.KeyDefinitions.SortKey.Kind
}

func keyDefinitions(pk KeyDef, sk *KeyDef) (table.PrimaryKeyDefinition, error) {
	if pk.Name == "" {
		return table.PrimaryKeyDefinition{}, fmt.Errorf("partition key name is required")
	}
	pkKind, err := toKeyKind(pk.Kind)
	if err != nil {
		return table.PrimaryKeyDefinition{}, err
	}
	keys := table.PrimaryKeyDefinition{PartitionKey: table.KeyDef{Name: pk.Name, Kind: pkKind}}
	if sk == nil {
		return keys, nil
	}
	if sk.Name == "" {
		return table.PrimaryKeyDefinition{}, fmt.Errorf("sort key name is required")
	}
	skKind, err := toKeyKind(sk.Kind)
	if err != nil {
		return table.PrimaryKeyDefinition{}, err
	}
	keys.SortKey = table.KeyDef{Name: sk.Name, Kind: skKind}
	return keys, nil
}

func toKeyKind(kind string) (table.KeyKind, error) {
	switch kind {
	case "", "S":
		return table.KeyKindS, nil
	case "N":
		return table.KeyKindN, nil
	case "B":
		return table.KeyKindB, nil
	}
	return "", fmt.Errorf("unknown key kind %q", kind)
}

func typeForKind(k table.KeyKind) schema.Type {
	switch k {
	case table.KeyKindS:
		return schema.TypeString
	case table.KeyKindN:
		return schema.TypeNumber
	}
	return schema.TypeAny
}
