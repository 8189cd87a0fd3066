package ddbsdk

import (
	"errors"
	"fmt"
	"sort"

	"github.com/antipr000/NobaServer-sub003/dynamodb/gsi"
	"github.com/antipr000/NobaServer-sub003/dynamodb/item"
	"github.com/antipr000/NobaServer-sub003/dynamodb/schema"
)

// Mapper builds requests for registered entities. It carries instance
// defaults; a value set in the per-call Options always wins over them.
type Mapper struct {
	entities map[string]Entity
	defaults Options
}

type MapperOption func(*Options)

// WithDefaultSkipVersionCheck sets the version check default for every
// entity served by the mapper.
func WithDefaultSkipVersionCheck(skip bool) MapperOption {
	return func(o *Options) {
		o.SkipVersionCheck = &skip
	}
}

func WithDefaultOnMissing(m OnMissing) MapperOption {
	return func(o *Options) {
		o.OnMissing = m
	}
}

func WithClock(c Clock) MapperOption {
	return func(o *Options) {
		o.Clock = c
	}
}

// NewMapper resolves every registered entity against the index policy.
// Consumers of unknown entities, or of indexes their table does not
// declare, are schema violations.
func NewMapper(reg *schema.Registry, policy *gsi.Policy, opts ...MapperOption) (*Mapper, error) {
	m := &Mapper{entities: make(map[string]Entity)}
	for _, opt := range opts {
		opt(&m.defaults)
	}
	for _, e := range reg.Entities() {
		m.entities[e.Name] = NewEntity(e, policy)
	}
	var errs []error
	for _, c := range policy.Consumers() {
		e, ok := m.entities[c.Entity]
		if !ok {
			errs = append(errs, &schema.ViolationError{Entity: c.Entity, Reason: fmt.Sprintf("index %q declared for unregistered entity", c.Index.Name)})
			continue
		}
		if len(e.Table.GSIs) == 0 {
			continue
		}
		g, ok := e.Table.GSI(c.Index.Name)
		if !ok || g.KeyDefinitions != c.Index.KeyDefinitions {
			errs = append(errs, &schema.ViolationError{Entity: c.Entity, Reason: fmt.Sprintf("index %q does not match table %q", c.Index.Name, e.Table.Name)})
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Mapper) Entity(name string) (Entity, error) {
	e, ok := m.entities[name]
	if !ok {
		return Entity{}, fmt.Errorf("unknown entity %q", name)
	}
	return e, nil
}

// Entities returns the resolved entities sorted by name.
func (m *Mapper) Entities() []Entity {
	out := make([]Entity, 0, len(m.entities))
	for _, e := range m.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *Mapper) resolve(opts Options) Options {
	if opts.SkipVersionCheck == nil {
		opts.SkipVersionCheck = m.defaults.SkipVersionCheck
	}
	if opts.OnMissing == "" {
		opts.OnMissing = m.defaults.OnMissing
	}
	if opts.Clock == nil {
		opts.Clock = m.defaults.Clock
	}
	return opts
}

func (m *Mapper) Put(entity string, src item.Source, opts Options) (*Put, error) {
	e, err := m.Entity(entity)
	if err != nil {
		return nil, err
	}
	return BuildPut(e, src, m.resolve(opts))
}

func (m *Mapper) Update(entity string, src item.Source, opts Options) (*Update, error) {
	e, err := m.Entity(entity)
	if err != nil {
		return nil, err
	}
	return BuildUpdate(e, src, m.resolve(opts))
}

func (m *Mapper) Delete(entity string, src item.Source, opts Options) (*Delete, error) {
	e, err := m.Entity(entity)
	if err != nil {
		return nil, err
	}
	return BuildDelete(e, src, m.resolve(opts))
}

// Decode converts a stored item of entity to plain values.
func (m *Mapper) Decode(entity string, native Item) (item.Item, error) {
	e, err := m.Entity(entity)
	if err != nil {
		return nil, err
	}
	return e.Decode(native)
}
