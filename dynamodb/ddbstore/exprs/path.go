package exprs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type pathElem struct {
	name  string
	index int
	isIdx bool
}

// Path addresses an attribute, possibly nested in maps and lists.
type Path []pathElem

func (p Path) String() string {
	var b strings.Builder
	for i, e := range p {
		switch {
		case e.isIdx:
			b.WriteString("[" + strconv.Itoa(e.index) + "]")
		case i > 0:
			b.WriteString("." + e.name)
		default:
			b.WriteString(e.name)
		}
	}
	return b.String()
}

// Root returns the top-level attribute name.
func (p Path) Root() string {
	return p[0].name
}

// Get resolves p in doc. A nil result means the attribute does not exist.
func (p Path) Get(doc map[string]types.AttributeValue) types.AttributeValue {
	cur, ok := doc[p[0].name]
	if !ok {
		return nil
	}
	for _, e := range p[1:] {
		switch v := cur.(type) {
		case *types.AttributeValueMemberM:
			if e.isIdx {
				return nil
			}
			if cur, ok = v.Value[e.name]; !ok {
				return nil
			}
		case *types.AttributeValueMemberL:
			if !e.isIdx || e.index >= len(v.Value) {
				return nil
			}
			cur = v.Value[e.index]
		default:
			return nil
		}
	}
	return cur
}

// set writes v at p. Intermediate containers must exist.
func (p Path) set(doc map[string]types.AttributeValue, v types.AttributeValue) error {
	if len(p) == 1 {
		doc[p[0].name] = v
		return nil
	}
	parent := p[:len(p)-1].Get(doc)
	last := p[len(p)-1]
	switch c := parent.(type) {
	case *types.AttributeValueMemberM:
		if last.isIdx {
			return fmt.Errorf("path %s: index into a map", p)
		}
		c.Value[last.name] = v
	case *types.AttributeValueMemberL:
		if !last.isIdx {
			return fmt.Errorf("path %s: name into a list", p)
		}
		if last.index >= len(c.Value) {
			c.Value = append(c.Value, v)
		} else {
			c.Value[last.index] = v
		}
	default:
		return fmt.Errorf("path %s: document path does not exist", p)
	}
	return nil
}

func (p Path) remove(doc map[string]types.AttributeValue) {
	if len(p) == 1 {
		delete(doc, p[0].name)
		return
	}
	last := p[len(p)-1]
	switch c := p[:len(p)-1].Get(doc).(type) {
	case *types.AttributeValueMemberM:
		delete(c.Value, last.name)
	case *types.AttributeValueMemberL:
		if last.isIdx && last.index < len(c.Value) {
			c.Value = append(c.Value[:last.index], c.Value[last.index+1:]...)
		}
	}
}

// clone deep copies containers so nested updates do not alias the input.
func clone(av types.AttributeValue) types.AttributeValue {
	switch v := av.(type) {
	case *types.AttributeValueMemberM:
		m := make(map[string]types.AttributeValue, len(v.Value))
		for k, inner := range v.Value {
			m[k] = clone(inner)
		}
		return &types.AttributeValueMemberM{Value: m}
	case *types.AttributeValueMemberL:
		l := make([]types.AttributeValue, len(v.Value))
		for i, inner := range v.Value {
			l[i] = clone(inner)
		}
		return &types.AttributeValueMemberL{Value: l}
	}
	return av
}

// CloneItem deep copies an item.
func CloneItem(doc map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(doc))
	for k, v := range doc {
		out[k] = clone(v)
	}
	return out
}
