package exprs

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokName  // #name placeholder
	tokValue // :value placeholder
	tokNumber
	tokOp
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
	tokDot
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && (text == "" || t.text == text)
}

// keyword reports whether t is the given keyword, ignoring case.
func (t token) keyword(kw string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

func lex(src string) ([]token, error) {
	var toks []token
	rs := []rune(src)
	for i := 0; i < len(rs); {
		r := rs[i]
		start := i
		switch {
		case unicode.IsSpace(r):
			i++
			continue
		case r == '#' || r == ':':
			i++
			for i < len(rs) && isIdentRune(rs[i]) {
				i++
			}
			if i == start+1 {
				return nil, fmt.Errorf("empty placeholder at position %d", start)
			}
			kind := tokName
			if r == ':' {
				kind = tokValue
			}
			toks = append(toks, token{kind: kind, text: string(rs[start:i]), pos: start})
			continue
		case unicode.IsDigit(r):
			for i < len(rs) && unicode.IsDigit(rs[i]) {
				i++
			}
			toks = append(toks, token{kind: tokNumber, text: string(rs[start:i]), pos: start})
			continue
		case isIdentRune(r):
			for i < len(rs) && isIdentRune(rs[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: string(rs[start:i]), pos: start})
			continue
		}
		var kind tokenKind
		text := string(r)
		switch r {
		case '(':
			kind = tokLParen
		case ')':
			kind = tokRParen
		case '[':
			kind = tokLBracket
		case ']':
			kind = tokRBracket
		case ',':
			kind = tokComma
		case '.':
			kind = tokDot
		case '=', '+', '-':
			kind = tokOp
		case '<':
			kind = tokOp
			if i+1 < len(rs) && (rs[i+1] == '=' || rs[i+1] == '>') {
				text += string(rs[i+1])
				i++
			}
		case '>':
			kind = tokOp
			if i+1 < len(rs) && rs[i+1] == '=' {
				text += "="
				i++
			}
		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", r, start)
		}
		i++
		toks = append(toks, token{kind: kind, text: text, pos: start})
	}
	return append(toks, token{kind: tokEOF, pos: len(rs)}), nil
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
