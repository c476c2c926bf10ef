package classfile

import (
	"fmt"
	"strings"

	"qualflow/internal/ast"
	"qualflow/internal/source"
)

// TypeAnnotation is one type_annotation structure of a
// Runtime{Visible,Invisible}TypeAnnotations attribute.
type TypeAnnotation struct {
	Target ast.TargetType
	// Index is the type parameter index for type parameter targets, the
	// formal parameter index, the supertype index (65535 for the
	// superclass) or the throws index; -1 for targets without one.
	Index      int
	BoundIndex int
	Path       []ast.PathEntry
	// Type is the field descriptor of the annotation interface.
	Type    string
	Args    []string
	Visible bool
}

// Name returns the dotted binary name of the annotation interface.
func (a TypeAnnotation) Name() string {
	name := strings.TrimSuffix(strings.TrimPrefix(a.Type, "L"), ";")
	return strings.NewReplacer("/", ".", "$", ".").Replace(name)
}

// Position returns where the annotation sits within its element.
func (a TypeAnnotation) Position() ast.Position {
	return ast.Position{Target: a.Target, Index: a.Index, BoundIndex: a.BoundIndex, Path: a.Path}
}

// Raw converts the annotation for the applier.
func (a TypeAnnotation) Raw(span source.Span) ast.RawAnnotation {
	return ast.RawAnnotation{Name: a.Name(), Args: a.Args, Pos: a.Position(), Span: span}
}

func (a TypeAnnotation) String() string {
	return a.Raw(source.Span{}).String()
}

func readTypeAnnotations(r *reader, p pool, visible bool) []TypeAnnotation {
	n := int(r.u2())
	out := make([]TypeAnnotation, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		a := readTypeAnnotation(r, p)
		a.Visible = visible
		out = append(out, a)
	}
	return out
}

func readTypeAnnotation(r *reader, p pool) TypeAnnotation {
	a := TypeAnnotation{Target: ast.TargetType(r.u1()), Index: -1}
	switch a.Target {
	case ast.TargetClassTypeParameter, ast.TargetMethodTypeParameter, ast.TargetMethodFormalParameter:
		a.Index = int(r.u1())
	case ast.TargetClassExtends, ast.TargetThrows:
		a.Index = int(r.u2())
	case ast.TargetClassTypeParameterBound, ast.TargetMethodTypeParameterBound:
		a.Index = int(r.u1())
		a.BoundIndex = int(r.u1())
	case ast.TargetField, ast.TargetMethodReturn, ast.TargetMethodReceiver:
	default:
		r.fail("target type 0x%02x is not valid outside method code", uint8(a.Target))
		return a
	}
	pathLen := int(r.u1())
	for range pathLen {
		kind, arg := ast.PathKind(r.u1()), r.u1()
		if r.err != nil {
			return a
		}
		if kind > ast.PathTypeArgument {
			r.fail("unknown type path kind %d", kind)
			return a
		}
		if kind != ast.PathTypeArgument {
			arg = 0
		}
		a.Path = append(a.Path, ast.PathEntry{Kind: kind, Arg: arg})
	}
	typ, err := p.utf8(r.u2())
	if r.err != nil {
		return a
	}
	if err != nil {
		r.fail("annotation type: %v", err)
		return a
	}
	a.Type = typ
	pairs := int(r.u2())
	for range pairs {
		r.u2() // element name
		a.Args = appendElementValue(r, p, a.Args)
	}
	return a
}

// appendElementValue renders an element_value. Array elements are
// flattened into separate arguments.
func appendElementValue(r *reader, p pool, args []string) []string {
	tag := r.u1()
	if r.err != nil {
		return args
	}
	switch tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's':
		v, err := p.literal(r.u2(), tag)
		if err != nil {
			r.fail("element value: %v", err)
			return args
		}
		return append(args, v)
	case 'e':
		r.u2() // enum type
		v, err := p.utf8(r.u2())
		if err != nil {
			r.fail("enum constant: %v", err)
			return args
		}
		return append(args, v)
	case 'c':
		v, err := p.utf8(r.u2())
		if err != nil {
			r.fail("class value: %v", err)
			return args
		}
		return append(args, v)
	case '@':
		typ, err := p.utf8(r.u2())
		if err != nil {
			r.fail("nested annotation: %v", err)
			return args
		}
		var nested []string
		for range int(r.u2()) {
			r.u2()
			nested = appendElementValue(r, p, nested)
		}
		inner := TypeAnnotation{Type: typ, Args: nested}
		label := "@" + inner.Name()
		if len(nested) > 0 {
			label += "(" + strings.Join(nested, ", ") + ")"
		}
		return append(args, label)
	case '[':
		for range int(r.u2()) {
			args = appendElementValue(r, p, args)
		}
		return args
	}
	r.fail("unknown element value tag %q", tag)
	return args
}

// DecodeTypeAnnotations decodes a type annotations attribute body against
// the constant pool of c.
func (c *Class) DecodeTypeAnnotations(body []byte, visible bool) ([]TypeAnnotation, error) {
	r := &reader{data: body}
	out := readTypeAnnotations(r, c.pool, visible)
	if r.err == nil && r.off != len(body) {
		r.fail("%d trailing bytes", len(body)-r.off)
	}
	if r.err != nil {
		return nil, fmt.Errorf("type annotations: %w", r.err)
	}
	return out, nil
}
