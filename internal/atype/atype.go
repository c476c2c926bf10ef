// Package atype implements annotated types: trees mirroring an underlying
// structural type with qualifiers attached at every structural position.
//
// Every node exclusively owns its children. Type variable bounds are value
// copies, never shared with another use of the same variable, so mutating one
// tree cannot leak into another. Qualifiers are set during annotation
// application and defaulting; flow-sensitive refinement always works on a
// DeepCopy.
package atype

import (
	"slices"

	"qualflow/internal/bug"
	"qualflow/internal/qual"
	"qualflow/internal/types"
)

// AnnotatedType is one structural position of an annotated type tree.
type AnnotatedType struct {
	fac   *Factory
	kind  types.Kind
	id    types.TypeID
	quals []qual.ID

	component *AnnotatedType   // array
	typeArgs  []*AnnotatedType // declared
	upper     *AnnotatedType   // type variable / wildcard upper bound
	lower     *AnnotatedType   // type variable / wildcard lower bound
	members   []*AnnotatedType // intersection / union

	// cut marks a type variable reached again while expanding its own
	// bounds (T extends Comparable<T>); its bounds are left empty.
	cut bool
}

// Kind returns the structural kind.
func (t *AnnotatedType) Kind() types.Kind { return t.kind }

// Underlying returns the interned structural type.
func (t *AnnotatedType) Underlying() types.TypeID { return t.id }

// Key identifies the structure of t, ignoring qualifiers. Two trees with the
// same key have the same shape.
func (t *AnnotatedType) Key() types.TypeID { return t.id }

// Hierarchy returns the qualifier hierarchy the tree was built for.
func (t *AnnotatedType) Hierarchy() *qual.Hierarchy { return t.fac.H }

// Component returns the component of an array type.
func (t *AnnotatedType) Component() *AnnotatedType { return t.component }

// TypeArgs returns the type arguments of a declared type. The returned slice
// is a copy; its elements are the live children.
func (t *AnnotatedType) TypeArgs() []*AnnotatedType { return slices.Clone(t.typeArgs) }

// UpperBound returns the upper bound of a type variable or wildcard.
func (t *AnnotatedType) UpperBound() *AnnotatedType { return t.upper }

// LowerBound returns the lower bound of a type variable or wildcard.
func (t *AnnotatedType) LowerBound() *AnnotatedType { return t.lower }

// Members returns the members of an intersection or union type.
func (t *AnnotatedType) Members() []*AnnotatedType { return slices.Clone(t.members) }

// IsCut reports whether this type variable's bounds were not expanded
// because it appears inside its own bound.
func (t *AnnotatedType) IsCut() bool { return t.cut }

// Annotations returns the qualifiers at this position.
func (t *AnnotatedType) Annotations() []qual.ID { return slices.Clone(t.quals) }

// HasAnnotation reports whether q is present at this position.
func (t *AnnotatedType) HasAnnotation(q qual.ID) bool { return slices.Contains(t.quals, q) }

// AddAnnotation inserts q, replacing any qualifier of the same hierarchy.
func (t *AnnotatedType) AddAnnotation(q qual.ID) {
	h := t.fac.H
	if !h.Valid(q) {
		bug.Throw("adding invalid qualifier", "id", int(q), "type", t.String())
	}
	top := h.Top(q)
	kept := t.quals[:0]
	for _, existing := range t.quals {
		if h.Top(existing) != top {
			kept = append(kept, existing)
		}
	}
	t.quals = append(kept, q)
}

// AddAnnotations calls AddAnnotation for each qualifier.
func (t *AnnotatedType) AddAnnotations(qs []qual.ID) {
	for _, q := range qs {
		t.AddAnnotation(q)
	}
}

// AppendAnnotation adds q without removing qualifiers of the same hierarchy.
// Two qualifiers of one hierarchy at one position is an invalid state that
// Validate reports; it is kept on purpose so the validity pass sees every
// conflicting annotation the user wrote.
func (t *AnnotatedType) AppendAnnotation(q qual.ID) {
	if !t.fac.H.Valid(q) {
		bug.Throw("appending invalid qualifier", "id", int(q), "type", t.String())
	}
	t.quals = append(t.quals, q)
}

// RemoveAnnotation removes q and reports whether it was present.
func (t *AnnotatedType) RemoveAnnotation(q qual.ID) bool {
	idx := slices.Index(t.quals, q)
	if idx < 0 {
		return false
	}
	t.quals = slices.Delete(t.quals, idx, idx+1)
	return true
}

// RemoveAnnotationIn drops every qualifier of the hierarchy rooted at top.
func (t *AnnotatedType) RemoveAnnotationIn(top qual.ID) {
	h := t.fac.H
	t.quals = slices.DeleteFunc(t.quals, func(q qual.ID) bool { return h.Top(q) == h.Top(top) })
}

// ClearAnnotations removes every qualifier at this position.
func (t *AnnotatedType) ClearAnnotations() { t.quals = t.quals[:0] }

// AnnotationIn returns the qualifier at this position belonging to the
// hierarchy of top. With conflicting qualifiers the first one wins.
func (t *AnnotatedType) AnnotationIn(top qual.ID) (qual.ID, bool) {
	h := t.fac.H
	want := h.Top(top)
	for _, q := range t.quals {
		if h.Top(q) == want {
			return q, true
		}
	}
	return qual.NoID, false
}

// EffectiveAnnotationIn is AnnotationIn, falling back to the upper bound for
// type variables and wildcards without a primary qualifier.
func (t *AnnotatedType) EffectiveAnnotationIn(top qual.ID) (qual.ID, bool) {
	if q, ok := t.AnnotationIn(top); ok {
		return q, true
	}
	switch t.kind {
	case types.KindTypeVar, types.KindWildcard:
		if t.upper != nil {
			return t.upper.EffectiveAnnotationIn(top)
		}
	case types.KindIntersection, types.KindUnion:
		// glb of intersection members, lub of union members
		h := t.fac.H
		var out qual.ID
		for _, m := range t.members {
			q, ok := m.EffectiveAnnotationIn(top)
			if !ok {
				continue
			}
			switch {
			case out == qual.NoID:
				out = q
			case t.kind == types.KindUnion:
				out = h.LUB(out, q)
			default:
				out = h.GLB(out, q)
			}
		}
		return out, out != qual.NoID
	}
	return qual.NoID, false
}

// EffectiveAnnotations returns the effective qualifier of every hierarchy
// that has one, in hierarchy order.
func (t *AnnotatedType) EffectiveAnnotations() []qual.ID {
	var out []qual.ID
	for _, top := range t.fac.H.Tops() {
		if q, ok := t.EffectiveAnnotationIn(top); ok {
			out = append(out, q)
		}
	}
	return out
}

// DirectSuperTypes returns the direct supertypes of t.
//
// For intersections the members themselves are returned, so annotating an
// element of the result annotates t. For declared types fresh trees are
// built from the class's declared supertypes with t's type arguments
// substituted and t's primary qualifiers copied. Type variables and
// wildcards return their (live) upper bound.
func (t *AnnotatedType) DirectSuperTypes() []*AnnotatedType {
	switch t.kind {
	case types.KindIntersection, types.KindUnion:
		return slices.Clone(t.members)
	case types.KindTypeVar, types.KindWildcard:
		if t.upper == nil {
			return nil
		}
		return []*AnnotatedType{t.upper}
	case types.KindDeclared, types.KindArray:
		ids := t.fac.Types.DirectSupers(t.id)
		out := make([]*AnnotatedType, 0, len(ids))
		for _, id := range ids {
			st := t.fac.FromType(id)
			st.AddAnnotations(t.quals)
			out = append(out, st)
		}
		return out
	}
	return nil
}

// DeepCopy returns a fully independent copy of the tree.
func (t *AnnotatedType) DeepCopy() *AnnotatedType {
	if t == nil {
		return nil
	}
	cp := &AnnotatedType{
		fac:   t.fac,
		kind:  t.kind,
		id:    t.id,
		quals: slices.Clone(t.quals),
		cut:   t.cut,
	}
	cp.component = t.component.DeepCopy()
	cp.upper = t.upper.DeepCopy()
	cp.lower = t.lower.DeepCopy()
	cp.typeArgs = copyAll(t.typeArgs)
	cp.members = copyAll(t.members)
	return cp
}

func copyAll(ts []*AnnotatedType) []*AnnotatedType {
	if ts == nil {
		return nil
	}
	out := make([]*AnnotatedType, len(ts))
	for i, c := range ts {
		out[i] = c.DeepCopy()
	}
	return out
}
