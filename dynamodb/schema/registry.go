package schema

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/antipr000/NobaServer-sub003/dynamodb/table"
)

// Entity binds a named record type to its table and attribute schema.
// PartitionKeyer and SortKeyer are optional and derive key attributes
// for items that do not carry them.
type Entity struct {
	Name           string
	Table          table.TableDefinition
	Schema         Schema
	PartitionKeyer table.Keyer
	SortKeyer      table.Keyer
}

// Index returns the primary index used to derive missing keys, or nil.
func (e Entity) Index() *table.PrimaryIndexDefinition {
	if e.PartitionKeyer == nil {
		return nil
	}
	return &table.PrimaryIndexDefinition{
		Table:          e.Table,
		PartitionKeyer: e.PartitionKeyer,
		SortKeyer:      e.SortKeyer,
	}
}

type tableEntry struct {
	def  table.TableDefinition
	base Schema
}

// Registry holds the composed schema of every entity. Entities are resolved
// once on Register; lookups never recompose.
type Registry struct {
	mu       sync.RWMutex
	tables   map[string]tableEntry
	entities map[string]Entity
}

func NewRegistry() *Registry {
	return &Registry{
		tables:   make(map[string]tableEntry),
		entities: make(map[string]Entity),
	}
}

// AddTable registers a table with the base schema shared by all its entities.
func (r *Registry) AddTable(def table.TableDefinition, base Schema) error {
	if def.Name == "" {
		return violation("", "table name is required")
	}
	if def.KeyDefinitions.PartitionKey.Name == "" {
		return violation("", "table %q has no partition key", def.Name)
	}
	if err := base.Validate(); err != nil {
		return fmt.Errorf("table %q base schema: %w", def.Name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tables[def.Name]; ok {
		return violation("", "table %q already registered", def.Name)
	}
	r.tables[def.Name] = tableEntry{def: def, base: base}
	return nil
}

// Register composes the entity schema with its table's base schema,
// validates the result and stores it. The composed entity is returned.
func (r *Registry) Register(e Entity) (Entity, error) {
	if e.Name == "" {
		return Entity{}, violation("", "entity name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entities[e.Name]; ok {
		return Entity{}, &ViolationError{Entity: e.Name, Reason: "already registered"}
	}
	entry, ok := r.tables[e.Table.Name]
	if !ok {
		return Entity{}, &ViolationError{Entity: e.Name, Reason: fmt.Sprintf("unknown table %q", e.Table.Name)}
	}
	e.Table = entry.def
	e.Schema = Compose(entry.base, e.Schema)
	if err := errors.Join(e.Schema.Validate(), e.Schema.ValidateTable(e.Table)); err != nil {
		return Entity{}, withEntity(err, e.Name)
	}
	r.entities[e.Name] = e
	return e, nil
}

func (r *Registry) Lookup(name string) (Entity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[name]
	return e, ok
}

// Table returns a registered table definition by name.
func (r *Registry) Table(name string) (table.TableDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.tables[name]
	return entry.def, ok
}

// Tables returns the registered tables sorted by name.
func (r *Registry) Tables() []table.TableDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]table.TableDefinition, 0, len(r.tables))
	for _, entry := range r.tables {
		out = append(out, entry.def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Entities returns the registered entities sorted by name.
func (r *Registry) Entities() []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entity, 0, len(r.entities))
	for _, e := range r.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
