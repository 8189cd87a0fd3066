package exprs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type actionKind int

const (
	actSet actionKind = iota
	actRemove
	actAdd
	actDelete
)

type action struct {
	kind  actionKind
	path  Path
	value operand
}

// Update is a parsed update expression.
type Update struct {
	actions []action
}

// ParseUpdate parses SET, REMOVE, ADD and DELETE clauses in any order.
func ParseUpdate(src string, env Env) (*Update, error) {
	p, err := newParser(src, env)
	if err != nil {
		return nil, err
	}
	u := &Update{}
	seen := map[actionKind]bool{}
	for p.peek().kind != tokEOF {
		t := p.next()
		var kind actionKind
		switch {
		case t.keyword("SET"):
			kind = actSet
		case t.keyword("REMOVE"):
			kind = actRemove
		case t.keyword("ADD"):
			kind = actAdd
		case t.keyword("DELETE"):
			kind = actDelete
		default:
			return nil, p.errorf(t, "expected SET, REMOVE, ADD or DELETE")
		}
		if seen[kind] {
			return nil, p.errorf(t, "clause appears more than once")
		}
		seen[kind] = true
		for {
			a, err := p.action(kind)
			if err != nil {
				return nil, err
			}
			u.actions = append(u.actions, a)
			if !p.peek().is(tokComma, "") {
				break
			}
			p.next()
		}
	}
	if len(u.actions) == 0 {
		return nil, fmt.Errorf("invalid expression: empty update expression")
	}
	if err := u.checkOverlap(); err != nil {
		return nil, err
	}
	return u, nil
}

func (p *parser) action(kind actionKind) (action, error) {
	path, err := p.path()
	if err != nil {
		return action{}, err
	}
	a := action{kind: kind, path: path}
	switch kind {
	case actRemove:
		return a, nil
	case actSet:
		if err := p.expect(tokOp, "="); err != nil {
			return action{}, err
		}
		a.value, err = p.setValue()
	default:
		a.value, err = p.operand()
	}
	return a, err
}

func (p *parser) setValue() (operand, error) {
	l, err := p.setTerm()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.is(tokOp, "+") || t.is(tokOp, "-") {
		p.next()
		r, err := p.setTerm()
		if err != nil {
			return nil, err
		}
		return arith{op: t.text, l: l, r: r}, nil
	}
	return l, nil
}

func (p *parser) setTerm() (operand, error) {
	t := p.peek()
	if t.kind != tokIdent || p.toks[p.pos+1].kind != tokLParen {
		return p.operand()
	}
	switch t.text {
	case "if_not_exists":
		p.next()
		p.next()
		path, err := p.path()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokComma, ","); err != nil {
			return nil, err
		}
		fallback, err := p.setTerm()
		if err != nil {
			return nil, err
		}
		return ifNotExists{path: path, fallback: fallback}, p.expect(tokRParen, ")")
	case "list_append":
		p.next()
		p.next()
		a, err := p.setTerm()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokComma, ","); err != nil {
			return nil, err
		}
		b, err := p.setTerm()
		if err != nil {
			return nil, err
		}
		return listAppend{a: a, b: b}, p.expect(tokRParen, ")")
	}
	return nil, p.errorf(t, "unknown function %s", t.text)
}

func (u *Update) checkOverlap() error {
	paths := make([]string, len(u.actions))
	for i, a := range u.actions {
		paths[i] = a.path.String()
	}
	for i := range paths {
		for j := i + 1; j < len(paths); j++ {
			if overlaps(paths[i], paths[j]) {
				return fmt.Errorf("invalid expression: two document paths overlap: [%s] and [%s]", paths[i], paths[j])
			}
		}
	}
	return nil
}

func overlaps(a, b string) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	if !strings.HasPrefix(b, a) {
		return false
	}
	return len(a) == len(b) || b[len(a)] == '.' || b[len(a)] == '['
}

// Roots returns the top-level attributes the update touches.
func (u *Update) Roots() []string {
	var out []string
	seen := map[string]bool{}
	for _, a := range u.actions {
		if r := a.path.Root(); !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

// Apply returns the updated copy of doc. Operands are evaluated against
// the item as it was before the update.
func (u *Update) Apply(doc map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	values := make([]types.AttributeValue, len(u.actions))
	for i, a := range u.actions {
		if a.value == nil {
			continue
		}
		v, err := a.value.eval(doc)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, fmt.Errorf("the provided expression refers to an attribute that does not exist in the item: %s", a.path)
		}
		values[i] = v
	}

	out := CloneItem(doc)
	var removes []Path
	for i, a := range u.actions {
		var err error
		switch a.kind {
		case actSet:
			err = a.path.set(out, clone(values[i]))
		case actRemove:
			removes = append(removes, a.path)
		case actAdd:
			err = add(out, a.path, values[i])
		case actDelete:
			err = deleteFromSet(out, a.path, values[i])
		}
		if err != nil {
			return nil, err
		}
	}
	// Higher list indexes go first so earlier removals do not shift them.
	sort.SliceStable(removes, func(i, j int) bool {
		a, b := removes[i], removes[j]
		la, lb := a[len(a)-1], b[len(b)-1]
		return la.isIdx && lb.isIdx && la.index > lb.index
	})
	for _, path := range removes {
		path.remove(out)
	}
	return out, nil
}

func add(doc map[string]types.AttributeValue, path Path, v types.AttributeValue) error {
	cur := path.Get(doc)
	switch v := v.(type) {
	case *types.AttributeValueMemberN:
		if cur == nil {
			return path.set(doc, v)
		}
		sum, err := arith{op: "+", l: valueOperand{cur}, r: valueOperand{v}}.eval(nil)
		if err != nil {
			return err
		}
		return path.set(doc, sum)
	case *types.AttributeValueMemberSS:
		c, ok := cur.(*types.AttributeValueMemberSS)
		if cur != nil && !ok {
			return fmt.Errorf("ADD: type mismatch for %s", path)
		}
		var base []string
		if c != nil {
			base = c.Value
		}
		return path.set(doc, &types.AttributeValueMemberSS{Value: union(base, v.Value, func(a, b string) bool { return a == b })})
	case *types.AttributeValueMemberNS:
		c, ok := cur.(*types.AttributeValueMemberNS)
		if cur != nil && !ok {
			return fmt.Errorf("ADD: type mismatch for %s", path)
		}
		var base []string
		if c != nil {
			base = c.Value
		}
		return path.set(doc, &types.AttributeValueMemberNS{Value: union(base, v.Value, numEq)})
	case *types.AttributeValueMemberBS:
		c, ok := cur.(*types.AttributeValueMemberBS)
		if cur != nil && !ok {
			return fmt.Errorf("ADD: type mismatch for %s", path)
		}
		var base [][]byte
		if c != nil {
			base = c.Value
		}
		return path.set(doc, &types.AttributeValueMemberBS{Value: union(base, v.Value, bytesEq)})
	}
	return fmt.Errorf("ADD: %s is not a number or set", typeName(v))
}

func deleteFromSet(doc map[string]types.AttributeValue, path Path, v types.AttributeValue) error {
	cur := path.Get(doc)
	if cur == nil {
		return nil
	}
	var empty bool
	switch v := v.(type) {
	case *types.AttributeValueMemberSS:
		c, ok := cur.(*types.AttributeValueMemberSS)
		if !ok {
			return fmt.Errorf("DELETE: type mismatch for %s", path)
		}
		rest := minus(c.Value, v.Value, func(a, b string) bool { return a == b })
		empty = len(rest) == 0
		cur = &types.AttributeValueMemberSS{Value: rest}
	case *types.AttributeValueMemberNS:
		c, ok := cur.(*types.AttributeValueMemberNS)
		if !ok {
			return fmt.Errorf("DELETE: type mismatch for %s", path)
		}
		rest := minus(c.Value, v.Value, numEq)
		empty = len(rest) == 0
		cur = &types.AttributeValueMemberNS{Value: rest}
	case *types.AttributeValueMemberBS:
		c, ok := cur.(*types.AttributeValueMemberBS)
		if !ok {
			return fmt.Errorf("DELETE: type mismatch for %s", path)
		}
		rest := minus(c.Value, v.Value, bytesEq)
		empty = len(rest) == 0
		cur = &types.AttributeValueMemberBS{Value: rest}
	default:
		return fmt.Errorf("DELETE: %s is not a set", typeName(v))
	}
	if empty {
		path.remove(doc)
		return nil
	}
	return path.set(doc, cur)
}

func union[T any](a, b []T, eq func(x, y T) bool) []T {
	out := append([]T(nil), a...)
	for _, x := range b {
		if !containsFunc(out, x, eq) {
			out = append(out, x)
		}
	}
	return out
}

func minus[T any](a, b []T, eq func(x, y T) bool) []T {
	var out []T
	for _, x := range a {
		if !containsFunc(b, x, eq) {
			out = append(out, x)
		}
	}
	return out
}

func numEq(a, b string) bool {
	c, err := compareNumbers(a, b)
	return err == nil && c == 0
}

func bytesEq(a, b []byte) bool { return string(a) == string(b) }
