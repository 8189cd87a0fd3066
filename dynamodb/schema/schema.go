// Package schema declares how entity attributes are stored: their storage
// type, whether they are part of the table key, and which attribute carries
// the optimistic-concurrency version.
package schema

import (
	"errors"
	"fmt"
	"sort"

	"github.com/antipr000/NobaServer-sub003/dynamodb/table"
)

// Type is the storage type tag of an attribute.
type Type string

const (
	TypeNumber  Type = "number"
	TypeString  Type = "string"
	TypeBoolean Type = "boolean"
	TypeDate    Type = "date"
	TypeAny     Type = "any"
	TypeMap     Type = "map"
	TypeSet     Type = "set"
)

func (t Type) Valid() bool {
	switch t {
	case TypeNumber, TypeString, TypeBoolean, TypeDate, TypeAny, TypeMap, TypeSet:
		return true
	}
	return false
}

// KeyRole marks an attribute as part of the table's primary key.
type KeyRole string

const (
	KeyRoleNone      KeyRole = ""
	KeyRolePartition KeyRole = "partition"
	KeyRoleSort      KeyRole = "sort"
)

type Attribute struct {
	Type    Type    `yaml:"type" json:"type"`
	KeyRole KeyRole `yaml:"key,omitempty" json:"key,omitempty"`
	Version bool    `yaml:"version,omitempty" json:"version,omitempty"`
}

// Schema maps attribute names to their declarations.
type Schema map[string]Attribute

// Names returns the attribute names in sorted order.
func (s Schema) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// VersionAttribute returns the name of the version attribute, if any.
// Call Validate first; with several version attributes the first by name is returned.
func (s Schema) VersionAttribute() (string, bool) {
	for _, name := range s.Names() {
		if s[name].Version {
			return name, true
		}
	}
	return "", false
}

// KeyAttribute returns the attribute holding the given key role.
func (s Schema) KeyAttribute(role KeyRole) (string, bool) {
	for _, name := range s.Names() {
		if s[name].KeyRole == role {
			return name, true
		}
	}
	return "", false
}

// IsKey reports whether name has a key role.
func (s Schema) IsKey(name string) bool {
	return s[name].KeyRole != KeyRoleNone
}

// Validate checks the schema on its own. Every violation is reported.
func (s Schema) Validate() error {
	var errs []error
	var versions []string
	roles := map[KeyRole][]string{}
	for _, name := range s.Names() {
		attr := s[name]
		if !attr.Type.Valid() {
			errs = append(errs, violation(name, "unknown type %q", attr.Type))
		}
		switch attr.KeyRole {
		case KeyRoleNone:
		case KeyRolePartition, KeyRoleSort:
			roles[attr.KeyRole] = append(roles[attr.KeyRole], name)
		default:
			errs = append(errs, violation(name, "unknown key role %q", attr.KeyRole))
		}
		if attr.Version {
			versions = append(versions, name)
			if attr.Type != TypeNumber {
				errs = append(errs, violation(name, "version attribute must be a number, got %s", attr.Type))
			}
			if attr.KeyRole != KeyRoleNone {
				errs = append(errs, violation(name, "version attribute cannot be a key"))
			}
		}
	}
	if len(versions) > 1 {
		errs = append(errs, violation("", "multiple version attributes %v", versions))
	}
	for _, role := range []KeyRole{KeyRolePartition, KeyRoleSort} {
		if len(roles[role]) > 1 {
			errs = append(errs, violation("", "multiple %s key attributes %v", role, roles[role]))
		}
	}
	return errors.Join(errs...)
}

// ValidateTable checks that the key roles of s line up with the table's key attributes.
func (s Schema) ValidateTable(def table.TableDefinition) error {
	var errs []error
	check := func(role KeyRole, key table.KeyDef) {
		name, ok := s.KeyAttribute(role)
		switch {
		case key.Name == "" && ok:
			errs = append(errs, violation(name, "table %q has no %s key", def.Name, role))
		case key.Name == "":
		case !ok:
			errs = append(errs, violation(key.Name, "missing %s key attribute for table %q", role, def.Name))
		case name != key.Name:
			errs = append(errs, violation(name, "%s key attribute must be %q on table %q", role, key.Name, def.Name))
		case !kindMatches(s[name].Type, key.Kind):
			errs = append(errs, violation(name, "type %s cannot hold key kind %s", s[name].Type, key.Kind))
		}
	}
	check(KeyRolePartition, def.KeyDefinitions.PartitionKey)
	check(KeyRoleSort, def.KeyDefinitions.SortKey)
	return errors.Join(errs...)
}

func kindMatches(t Type, kind table.KeyKind) bool {
	switch kind {
	case table.KeyKindS:
		return t == TypeString || t == TypeAny
	case table.KeyKindN:
		return t == TypeNumber || t == TypeDate || t == TypeAny
	case table.KeyKindB:
		return t == TypeAny
	}
	return false
}

func violation(attr, format string, args ...any) error {
	return &ViolationError{Attribute: attr, Reason: fmt.Sprintf(format, args...)}
}
