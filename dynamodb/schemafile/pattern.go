package schemafile

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/antipr000/NobaServer-sub003/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Pattern is a string key template. Field references use braces:
//
//	"PROFILE"         constant
//	"USER#{id}"       composite
//	"ORDER#{a}#{b}"   several fields
//	"{user.id}"       nested field
type Pattern struct {
	raw   string
	parts []patternPart
}

type patternPart struct {
	field bool
	value string
}

var fieldRef = regexp.MustCompile(`\{([^}]*)\}`)

func ParsePattern(raw string) (Pattern, error) {
	if raw == "" {
		return Pattern{}, fmt.Errorf("pattern cannot be empty")
	}
	p := Pattern{raw: raw}
	last := 0
	for _, m := range fieldRef.FindAllStringSubmatchIndex(raw, -1) {
		if m[0] > last {
			p.parts = append(p.parts, patternPart{value: raw[last:m[0]]})
		}
		ref := raw[m[2]:m[3]]
		if ref == "" {
			return Pattern{}, fmt.Errorf("empty field reference at position %d", m[0])
		}
		for _, seg := range strings.Split(ref, ".") {
			if seg == "" {
				return Pattern{}, fmt.Errorf("invalid field path %q", ref)
			}
		}
		p.parts = append(p.parts, patternPart{field: true, value: ref})
		last = m[1]
	}
	if last < len(raw) {
		p.parts = append(p.parts, patternPart{value: raw[last:]})
	}
	for _, part := range p.parts {
		if !part.field && strings.ContainsAny(part.value, "{}") {
			return Pattern{}, fmt.Errorf("unbalanced brace in %q", raw)
		}
	}
	return p, nil
}

func (p Pattern) String() string {
	return p.raw
}

// Fields returns the field references in order.
func (p Pattern) Fields() []string {
	var out []string
	for _, part := range p.parts {
		if part.field {
			out = append(out, part.value)
		}
	}
	return out
}

func (p Pattern) IsConstant() bool {
	return len(p.Fields()) == 0
}

// Keyer returns the key derivation the pattern describes.
func (p Pattern) Keyer() table.Keyer {
	if p.IsConstant() {
		return table.ConstKeyer(&types.AttributeValueMemberS{Value: p.raw})
	}
	var format strings.Builder
	for _, part := range p.parts {
		if part.field {
			format.WriteString("%s")
			continue
		}
		format.WriteString(strings.ReplaceAll(part.value, "%", "%%"))
	}
	return table.FmtKeyer(format.String(), p.Fields()...)
}
