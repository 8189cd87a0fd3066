package exprs

import (
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Env carries the placeholder maps sent alongside an expression.
type Env struct {
	Names  map[string]string
	Values map[string]types.AttributeValue
}

type parser struct {
	toks []token
	pos  int
	env  Env
}

func newParser(src string, env Env) (*parser, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	return &parser{toks: toks, env: env}, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind tokenKind, text string) error {
	t := p.next()
	if !t.is(kind, text) {
		return p.errorf(t, "expected %q", text)
	}
	return nil
}

func (p *parser) errorf(t token, format string, args ...any) error {
	found := t.text
	if t.kind == tokEOF {
		found = "end of input"
	}
	return fmt.Errorf("invalid expression at position %d near %q: %s", t.pos, found, fmt.Sprintf(format, args...))
}

// ParseCondition parses a condition, key condition or filter expression.
func ParseCondition(src string, env Env) (Condition, error) {
	p, err := newParser(src, env)
	if err != nil {
		return nil, err
	}
	c, err := p.or()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected trailing input")
	}
	return c, nil
}

func (p *parser) or() (Condition, error) {
	l, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.peek().keyword("OR") {
		p.next()
		r, err := p.and()
		if err != nil {
			return nil, err
		}
		l = orCond{l: l, r: r}
	}
	return l, nil
}

func (p *parser) and() (Condition, error) {
	l, err := p.not()
	if err != nil {
		return nil, err
	}
	for p.peek().keyword("AND") {
		p.next()
		r, err := p.not()
		if err != nil {
			return nil, err
		}
		l = andCond{l: l, r: r}
	}
	return l, nil
}

func (p *parser) not() (Condition, error) {
	if p.peek().keyword("NOT") {
		p.next()
		c, err := p.not()
		if err != nil {
			return nil, err
		}
		return notCond{c: c}, nil
	}
	return p.primary()
}

func (p *parser) primary() (Condition, error) {
	t := p.peek()
	if t.kind == tokLParen {
		p.next()
		c, err := p.or()
		if err != nil {
			return nil, err
		}
		return c, p.expect(tokRParen, ")")
	}
	if t.kind == tokIdent && p.toks[p.pos+1].kind == tokLParen {
		if c, ok, err := p.function(); ok || err != nil {
			return c, err
		}
	}
	l, err := p.operand()
	if err != nil {
		return nil, err
	}
	switch t := p.next(); {
	case t.kind == tokOp && t.text != "+" && t.text != "-":
		r, err := p.operand()
		if err != nil {
			return nil, err
		}
		return compare{op: t.text, l: l, r: r}, nil
	case t.keyword("BETWEEN"):
		lo, err := p.operand()
		if err != nil {
			return nil, err
		}
		if t := p.next(); !t.keyword("AND") {
			return nil, p.errorf(t, "expected AND in BETWEEN")
		}
		hi, err := p.operand()
		if err != nil {
			return nil, err
		}
		return between{v: l, lo: lo, hi: hi}, nil
	case t.keyword("IN"):
		if err := p.expect(tokLParen, "("); err != nil {
			return nil, err
		}
		var list []operand
		for {
			o, err := p.operand()
			if err != nil {
				return nil, err
			}
			list = append(list, o)
			if !p.peek().is(tokComma, "") {
				break
			}
			p.next()
		}
		return in{v: l, list: list}, p.expect(tokRParen, ")")
	default:
		return nil, p.errorf(t, "expected a comparator")
	}
}

// function parses the boolean functions. ok is false when the identifier
// names an operand function such as size, which the caller handles.
func (p *parser) function() (Condition, bool, error) {
	name := p.peek()
	var kind string
	for _, fn := range []string{"attribute_exists", "attribute_not_exists", "attribute_type", "begins_with", "contains"} {
		if name.text == fn {
			kind = fn
		}
	}
	if kind == "" {
		return nil, false, nil
	}
	p.next()
	p.next()
	args, err := p.args()
	if err != nil {
		return nil, true, err
	}
	arity := 2
	if kind == "attribute_exists" || kind == "attribute_not_exists" {
		arity = 1
	}
	if len(args) != arity {
		return nil, true, p.errorf(name, "%s takes %d arguments", kind, arity)
	}
	path, isPath := args[0].(pathOperand)
	switch kind {
	case "attribute_exists", "attribute_not_exists", "attribute_type":
		if !isPath {
			return nil, true, p.errorf(name, "%s wants an attribute path", kind)
		}
	}
	switch kind {
	case "attribute_exists":
		return exists{path: path.path, want: true}, true, nil
	case "attribute_not_exists":
		return exists{path: path.path, want: false}, true, nil
	case "attribute_type":
		return attributeType{path: path.path, t: args[1]}, true, nil
	case "begins_with":
		return beginsWith{v: args[0], prefix: args[1]}, true, nil
	default:
		return contains{v: args[0], member: args[1]}, true, nil
	}
}

// args parses a comma separated operand list and the closing paren.
func (p *parser) args() ([]operand, error) {
	var out []operand
	for {
		o, err := p.operand()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
		if !p.peek().is(tokComma, "") {
			break
		}
		p.next()
	}
	return out, p.expect(tokRParen, ")")
}

func (p *parser) operand() (operand, error) {
	t := p.peek()
	switch {
	case t.kind == tokValue:
		p.next()
		v, ok := p.env.Values[t.text]
		if !ok {
			return nil, p.errorf(t, "undefined value placeholder")
		}
		return valueOperand{v: v}, nil
	case t.kind == tokIdent && t.text == "size" && p.toks[p.pos+1].kind == tokLParen:
		p.next()
		p.next()
		path, err := p.path()
		if err != nil {
			return nil, err
		}
		return sizeOperand{path: path}, p.expect(tokRParen, ")")
	}
	path, err := p.path()
	if err != nil {
		return nil, err
	}
	return pathOperand{path: path}, nil
}

func (p *parser) path() (Path, error) {
	var out Path
	name, err := p.pathName()
	if err != nil {
		return nil, err
	}
	out = append(out, pathElem{name: name})
	for {
		switch p.peek().kind {
		case tokDot:
			p.next()
			name, err := p.pathName()
			if err != nil {
				return nil, err
			}
			out = append(out, pathElem{name: name})
		case tokLBracket:
			p.next()
			t := p.next()
			if t.kind != tokNumber {
				return nil, p.errorf(t, "expected a list index")
			}
			idx, err := strconv.Atoi(t.text)
			if err != nil {
				return nil, p.errorf(t, "bad list index")
			}
			out = append(out, pathElem{index: idx, isIdx: true})
			if err := p.expect(tokRBracket, "]"); err != nil {
				return nil, err
			}
		default:
			return out, nil
		}
	}
}

func (p *parser) pathName() (string, error) {
	t := p.next()
	switch t.kind {
	case tokName:
		name, ok := p.env.Names[t.text]
		if !ok {
			return "", p.errorf(t, "undefined name placeholder")
		}
		return name, nil
	case tokIdent:
		return t.text, nil
	}
	return "", p.errorf(t, "expected an attribute name")
}
