package atype

import (
	"strings"

	"qualflow/internal/types"
)

// String renders t in Java type-annotation syntax, e.g.
// "@NonNull List<@Nullable String>" or "@NonNull String @Nullable []".
func (t *AnnotatedType) String() string {
	if t == nil {
		return "<nil>"
	}
	var b strings.Builder
	t.write(&b)
	return b.String()
}

func (t *AnnotatedType) prefix(b *strings.Builder) {
	for _, q := range t.quals {
		b.WriteString(t.fac.H.String(q))
		b.WriteByte(' ')
	}
}

func (t *AnnotatedType) write(b *strings.Builder) {
	in := t.fac.Types
	switch t.kind {
	case types.KindArray:
		// Java writes the outermost dimension's qualifiers first:
		// "String @A [] @B []" is an @A array of @B arrays.
		var dims []*AnnotatedType
		elem := t
		for elem.kind == types.KindArray && elem.component != nil {
			dims = append(dims, elem)
			elem = elem.component
		}
		elem.write(b)
		for _, d := range dims {
			if len(d.quals) > 0 {
				b.WriteByte(' ')
				d.prefix(b)
			}
			b.WriteString("[]")
		}
	case types.KindDeclared:
		t.prefix(b)
		cls, _ := in.ClassOf(t.id)
		info, _ := in.Class(cls)
		b.WriteString(info.Name)
		if len(t.typeArgs) > 0 {
			b.WriteByte('<')
			for i, a := range t.typeArgs {
				if i > 0 {
					b.WriteString(", ")
				}
				a.write(b)
			}
			b.WriteByte('>')
		}
	case types.KindTypeVar:
		t.prefix(b)
		info, _ := in.TypeVar(t.id)
		b.WriteString(info.Name)
	case types.KindWildcard:
		t.prefix(b)
		b.WriteByte('?')
		tt, _ := in.Lookup(t.id)
		switch {
		case tt.Super && t.lower != nil:
			b.WriteString(" super ")
			t.lower.write(b)
		case tt.Elem != types.NoTypeID && t.upper != nil:
			b.WriteString(" extends ")
			t.upper.write(b)
		case t.upper != nil && len(t.upper.quals) > 0:
			b.WriteString(" extends ")
			t.upper.write(b)
		}
	case types.KindIntersection, types.KindUnion:
		sep := " & "
		if t.kind == types.KindUnion {
			sep = " | "
		}
		t.prefix(b)
		for i, m := range t.members {
			if i > 0 {
				b.WriteString(sep)
			}
			m.write(b)
		}
	default:
		t.prefix(b)
		b.WriteString(types.Label(in, t.id))
	}
}
