package classfile

import (
	"fmt"
	"strings"
)

// sigType is a parsed JVM field type signature. Descriptors are the
// non-generic subset.
type sigType struct {
	// kind is a base type letter, 'V', 'L' for classes, 'T' for type
	// variables, '[' for arrays, '*' for an unbounded wildcard or '+' and
	// '-' for bounded wildcards.
	kind byte
	name string // class binary name or type variable name
	args []*sigType
	elem *sigType // array component or wildcard bound
}

func (t *sigType) String() string {
	switch t.kind {
	case 'L':
		s := t.name
		if len(t.args) > 0 {
			parts := make([]string, len(t.args))
			for i, a := range t.args {
				parts[i] = a.String()
			}
			s += "<" + strings.Join(parts, ",") + ">"
		}
		return s
	case 'T':
		return t.name
	case '[':
		return t.elem.String() + "[]"
	case '*':
		return "?"
	case '+':
		return "? extends " + t.elem.String()
	case '-':
		return "? super " + t.elem.String()
	}
	return string(t.kind)
}

type sigParam struct {
	name string
	// class is the class bound, nil when only interface bounds are given.
	class  *sigType
	ifaces []*sigType
}

type classSig struct {
	params []sigParam
	supers []*sigType // superclass first
}

type methodSig struct {
	params []sigParam
	args   []*sigType
	result *sigType
}

type sigParser struct {
	s   string
	pos int
}

func (p *sigParser) errorf(format string, args ...any) error {
	return fmt.Errorf("signature %q at %d: %s", p.s, p.pos, fmt.Sprintf(format, args...))
}

func (p *sigParser) peek() byte {
	if p.pos < len(p.s) {
		return p.s[p.pos]
	}
	return 0
}

func (p *sigParser) expect(c byte) error {
	if p.peek() != c {
		return p.errorf("expected %q", c)
	}
	p.pos++
	return nil
}

func (p *sigParser) ident() (string, error) {
	start := p.pos
	for p.pos < len(p.s) && !strings.ContainsRune(".;[/<>:", rune(p.s[p.pos])) {
		p.pos++
	}
	if p.pos == start {
		return "", p.errorf("expected an identifier")
	}
	return p.s[start:p.pos], nil
}

// fieldType parses a reference or base type; void is accepted when allowVoid.
func (p *sigParser) fieldType(allowVoid bool) (*sigType, error) {
	c := p.peek()
	switch c {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		p.pos++
		return &sigType{kind: c}, nil
	case 'V':
		if !allowVoid {
			return nil, p.errorf("void is not a field type")
		}
		p.pos++
		return &sigType{kind: c}, nil
	case '[':
		p.pos++
		elem, err := p.fieldType(false)
		if err != nil {
			return nil, err
		}
		return &sigType{kind: '[', elem: elem}, nil
	case 'T':
		p.pos++
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		return &sigType{kind: 'T', name: name}, p.expect(';')
	case 'L':
		p.pos++
		return p.classType()
	}
	return nil, p.errorf("unexpected %q", c)
}

// classType parses the rest of an 'L' signature. Inner class suffixes keep
// the innermost name and its arguments.
func (p *sigParser) classType() (*sigType, error) {
	start := p.pos
	for p.pos < len(p.s) && !strings.ContainsRune(";<.", rune(p.s[p.pos])) {
		p.pos++
	}
	if p.pos == start {
		return nil, p.errorf("expected a class name")
	}
	t := &sigType{kind: 'L', name: p.s[start:p.pos]}
	for {
		if p.peek() == '<' {
			args, err := p.typeArgs()
			if err != nil {
				return nil, err
			}
			t.args = args
		}
		if p.peek() != '.' {
			break
		}
		p.pos++
		inner, err := p.ident()
		if err != nil {
			return nil, err
		}
		t = &sigType{kind: 'L', name: t.name + "$" + inner}
	}
	return t, p.expect(';')
}

func (p *sigParser) typeArgs() ([]*sigType, error) {
	p.pos++ // '<'
	var out []*sigType
	for p.peek() != '>' {
		if p.pos >= len(p.s) {
			return nil, p.errorf("unterminated type arguments")
		}
		switch c := p.peek(); c {
		case '*':
			p.pos++
			out = append(out, &sigType{kind: '*'})
		case '+', '-':
			p.pos++
			bound, err := p.fieldType(false)
			if err != nil {
				return nil, err
			}
			out = append(out, &sigType{kind: c, elem: bound})
		default:
			t, err := p.fieldType(false)
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
	}
	p.pos++
	return out, nil
}

func (p *sigParser) typeParams() ([]sigParam, error) {
	if p.peek() != '<' {
		return nil, nil
	}
	p.pos++
	var out []sigParam
	for p.peek() != '>' {
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		tp := sigParam{name: name}
		if err := p.expect(':'); err != nil {
			return nil, err
		}
		if c := p.peek(); c != ':' && c != '>' {
			if tp.class, err = p.fieldType(false); err != nil {
				return nil, err
			}
		}
		for p.peek() == ':' {
			p.pos++
			b, err := p.fieldType(false)
			if err != nil {
				return nil, err
			}
			tp.ifaces = append(tp.ifaces, b)
		}
		out = append(out, tp)
	}
	p.pos++
	return out, nil
}

func (p *sigParser) done() error {
	if p.pos != len(p.s) {
		return p.errorf("trailing characters")
	}
	return nil
}

func parseFieldSig(s string) (*sigType, error) {
	p := &sigParser{s: s}
	t, err := p.fieldType(false)
	if err != nil {
		return nil, err
	}
	return t, p.done()
}

func parseClassSig(s string) (*classSig, error) {
	p := &sigParser{s: s}
	params, err := p.typeParams()
	if err != nil {
		return nil, err
	}
	cs := &classSig{params: params}
	for p.pos < len(p.s) {
		t, err := p.fieldType(false)
		if err != nil {
			return nil, err
		}
		cs.supers = append(cs.supers, t)
	}
	return cs, nil
}

// parseMethodSig parses a generic method signature or a plain descriptor.
// Throws clauses are skipped.
func parseMethodSig(s string) (*methodSig, error) {
	p := &sigParser{s: s}
	params, err := p.typeParams()
	if err != nil {
		return nil, err
	}
	ms := &methodSig{params: params}
	if err := p.expect('('); err != nil {
		return nil, err
	}
	for p.peek() != ')' {
		if p.pos >= len(p.s) {
			return nil, p.errorf("unterminated parameter list")
		}
		t, err := p.fieldType(false)
		if err != nil {
			return nil, err
		}
		ms.args = append(ms.args, t)
	}
	p.pos++
	if ms.result, err = p.fieldType(true); err != nil {
		return nil, err
	}
	for p.peek() == '^' {
		p.pos++
		if _, err := p.fieldType(false); err != nil {
			return nil, err
		}
	}
	return ms, p.done()
}
