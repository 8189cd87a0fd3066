// Package gsi declares which entities project into which global secondary
// indexes, and derives the index key attributes written with each item.
package gsi

import (
	"errors"
	"fmt"
	"sort"

	"github.com/antipr000/NobaServer-sub003/dynamodb/schema"
	"github.com/antipr000/NobaServer-sub003/dynamodb/table"
)

// Consumer declares that Entity writes the key attributes of Index.
// For each key part exactly one of the source attribute and the constant
// must be set. A nil constant is unset.
type Consumer struct {
	Entity          string
	Index           table.GSIDefinition
	SourcePartition string
	ConstPartition  any
	SourceSort      string
	ConstSort       any
	Description     string
}

// Conflict is one invalid consumer declaration.
type Conflict struct {
	Entity string
	Index  string
	Reason string
}

func (c Conflict) Error() string {
	return fmt.Sprintf("gsi %q for entity %q: %s", c.Index, c.Entity, c.Reason)
}

func (c Conflict) Unwrap() error {
	return schema.ErrSchemaViolation
}

// Validate checks every consumer and returns all conflicts found.
// An empty result means the declarations are consistent.
func Validate(consumers []Consumer) []Conflict {
	var conflicts []Conflict
	add := func(c Consumer, format string, args ...any) {
		conflicts = append(conflicts, Conflict{
			Entity: c.Entity,
			Index:  c.Index.Name,
			Reason: fmt.Sprintf(format, args...),
		})
	}
	shared := map[string]Consumer{}
	seen := map[[2]string]bool{}
	for _, c := range consumers {
		if c.Entity == "" {
			add(c, "entity name is required")
		}
		if c.Index.Name == "" {
			add(c, "index name is required")
		}
		if c.Index.KeyDefinitions.PartitionKey.Name == "" {
			add(c, "index has no partition key")
		}
		switch {
		case c.SourcePartition != "" && c.ConstPartition != nil:
			add(c, "partition key has both source attribute %q and a constant", c.SourcePartition)
		case c.SourcePartition == "" && c.ConstPartition == nil:
			add(c, "partition key has neither source attribute nor constant")
		}
		if c.Index.HasSortKey() {
			switch {
			case c.SourceSort != "" && c.ConstSort != nil:
				add(c, "sort key has both source attribute %q and a constant", c.SourceSort)
			case c.SourceSort == "" && c.ConstSort == nil:
				add(c, "sort key has neither source attribute nor constant")
			}
		} else if c.SourceSort != "" || c.ConstSort != nil {
			add(c, "sort key declared but index has no sort key")
		}

		key := [2]string{c.Entity, c.Index.Name}
		if seen[key] {
			add(c, "index declared more than once for entity")
		}
		seen[key] = true
		if first, ok := shared[c.Index.Name]; ok {
			if first.Index.KeyDefinitions != c.Index.KeyDefinitions {
				add(c, "key definitions differ from those declared by entity %q", first.Entity)
			}
		} else if c.Index.Name != "" {
			shared[c.Index.Name] = c
		}
	}
	return conflicts
}

// AddAttributes sets the index key attributes of every consumer declared
// for entity on it. A key part whose source attribute is missing or nil is
// left unset, keeping the item out of that index. it is modified in place
// and returned.
func AddAttributes(entity string, it map[string]any, consumers []Consumer) map[string]any {
	for _, c := range consumers {
		if c.Entity != entity {
			continue
		}
		keys := c.Index.KeyDefinitions
		derive(it, keys.PartitionKey.Name, c.SourcePartition, c.ConstPartition)
		if c.Index.HasSortKey() {
			derive(it, keys.SortKey.Name, c.SourceSort, c.ConstSort)
		}
	}
	return it
}

func derive(it map[string]any, attr, source string, constant any) {
	if constant != nil {
		it[attr] = constant
		return
	}
	if v, ok := it[source]; ok && v != nil {
		it[attr] = v
	}
}

// Cleared returns the index key attributes, sorted, of every consumer
// declared for entity whose source attribute is present in it with a nil
// value. Both key attributes of such an index are included.
func Cleared(entity string, it map[string]any, consumers []Consumer) []string {
	names := map[string]bool{}
	for _, c := range consumers {
		if c.Entity != entity {
			continue
		}
		if !explicitNil(it, c.SourcePartition) && !explicitNil(it, c.SourceSort) {
			continue
		}
		keys := c.Index.KeyDefinitions
		names[keys.PartitionKey.Name] = true
		if c.Index.HasSortKey() {
			names[keys.SortKey.Name] = true
		}
	}
	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func explicitNil(it map[string]any, source string) bool {
	if source == "" {
		return false
	}
	v, ok := it[source]
	return ok && v == nil
}

// Policy is a validated set of consumers.
type Policy struct {
	consumers []Consumer
	byEntity  map[string][]Consumer
}

// NewPolicy validates consumers once. Any conflict fails with an error
// matching schema.ErrSchemaViolation that lists all of them.
func NewPolicy(consumers []Consumer) (*Policy, error) {
	if conflicts := Validate(consumers); len(conflicts) > 0 {
		errs := make([]error, len(conflicts))
		for i, c := range conflicts {
			errs[i] = c
		}
		return nil, errors.Join(errs...)
	}
	p := &Policy{
		consumers: append([]Consumer(nil), consumers...),
		byEntity:  make(map[string][]Consumer),
	}
	for _, c := range consumers {
		p.byEntity[c.Entity] = append(p.byEntity[c.Entity], c)
	}
	return p, nil
}

// For returns the consumers declared for entity. A nil Policy has none.
func (p *Policy) For(entity string) []Consumer {
	if p == nil {
		return nil
	}
	return p.byEntity[entity]
}

func (p *Policy) Consumers() []Consumer {
	if p == nil {
		return nil
	}
	return append([]Consumer(nil), p.consumers...)
}

func (p *Policy) AddAttributes(entity string, it map[string]any) map[string]any {
	return AddAttributes(entity, it, p.For(entity))
}

// KeySchema returns storage declarations for the index key attributes
// written by entity.
func (p *Policy) KeySchema(entity string) schema.Schema {
	out := schema.Schema{}
	for _, c := range p.For(entity) {
		for _, k := range []table.KeyDef{c.Index.KeyDefinitions.PartitionKey, c.Index.KeyDefinitions.SortKey} {
			if k.Name == "" {
				continue
			}
			out[k.Name] = schema.Attribute{Type: typeForKind(k.Kind)}
		}
	}
	return out
}

// Indexes returns the distinct indexes of the policy sorted by name.
func (p *Policy) Indexes() []table.GSIDefinition {
	byName := map[string]table.GSIDefinition{}
	for _, c := range p.Consumers() {
		byName[c.Index.Name] = c.Index
	}
	out := make([]table.GSIDefinition, 0, len(byName))
	for _, g := range byName {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
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
