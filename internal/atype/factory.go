package atype

import (
	"qualflow/internal/qual"
	"qualflow/internal/types"
)

// Factory builds unannotated trees for one hierarchy and type universe. It
// holds no mutable state and may be shared between method analyses.
type Factory struct {
	H     *qual.Hierarchy
	Types *types.Interner
}

// NewFactory returns a factory for h and in.
func NewFactory(h *qual.Hierarchy, in *types.Interner) *Factory {
	return &Factory{H: h, Types: in}
}

// FromType builds a tree without qualifiers mirroring id. Type variable
// bounds are expanded once; a variable met again inside its own bound is
// left as a cut leaf.
func (f *Factory) FromType(id types.TypeID) *AnnotatedType {
	return f.build(id, make(map[types.TypeID]bool))
}

func (f *Factory) build(id types.TypeID, expanding map[types.TypeID]bool) *AnnotatedType {
	tt, ok := f.Types.Lookup(id)
	if !ok {
		return &AnnotatedType{fac: f, kind: types.KindInvalid, id: id}
	}
	t := &AnnotatedType{fac: f, kind: tt.Kind, id: id}
	b := f.Types.Builtins()
	switch tt.Kind {
	case types.KindArray:
		t.component = f.build(tt.Elem, expanding)
	case types.KindDeclared:
		if len(tt.Args) > 0 {
			t.typeArgs = make([]*AnnotatedType, len(tt.Args))
			for i, a := range tt.Args {
				t.typeArgs[i] = f.build(a, expanding)
			}
		}
	case types.KindIntersection, types.KindUnion:
		t.members = make([]*AnnotatedType, len(tt.Args))
		for i, a := range tt.Args {
			t.members[i] = f.build(a, expanding)
		}
	case types.KindWildcard:
		switch {
		case tt.Elem == types.NoTypeID:
			t.upper = f.build(b.Object, expanding)
			t.lower = f.build(b.Null, expanding)
		case tt.Super:
			t.upper = f.build(b.Object, expanding)
			t.lower = f.build(tt.Elem, expanding)
		default:
			t.upper = f.build(tt.Elem, expanding)
			t.lower = f.build(b.Null, expanding)
		}
	case types.KindTypeVar:
		if expanding[id] {
			t.cut = true
			return t
		}
		info, _ := f.Types.TypeVar(id)
		upper, lower := info.Upper, info.Lower
		if upper == types.NoTypeID {
			upper = b.Object
		}
		if lower == types.NoTypeID {
			lower = b.Null
		}
		expanding[id] = true
		t.upper = f.build(upper, expanding)
		t.lower = f.build(lower, expanding)
		delete(expanding, id)
	}
	return t
}

// FromTypeWith builds a tree for id and adds qs as primary qualifiers.
func (f *Factory) FromTypeWith(id types.TypeID, qs ...qual.ID) *AnnotatedType {
	t := f.FromType(id)
	t.AddAnnotations(qs)
	return t
}
