package schema

// Compose returns the union of base and entity. When both declare an
// attribute the base declaration wins, so an entity cannot retype table
// keys or the version attribute.
func Compose(base, entity Schema) Schema {
	out := make(Schema, len(base)+len(entity))
	for name, attr := range entity {
		out[name] = attr
	}
	for name, attr := range base {
		out[name] = attr
	}
	return out
}

// Rule is a business validation primitive, e.g. "string" or "date".
type Rule string

// FromRules derives storage types from validation rules.
// Unrecognized rules map to TypeAny.
func FromRules(rules map[string]Rule) Schema {
	out := make(Schema, len(rules))
	for name, rule := range rules {
		out[name] = Attribute{Type: typeForRule(rule)}
	}
	return out
}

func typeForRule(r Rule) Type {
	switch r {
	case "number":
		return TypeNumber
	case "string":
		return TypeString
	case "boolean":
		return TypeBoolean
	case "object":
		return TypeMap
	case "date":
		return TypeDate
	}
	return TypeAny
}
