package atype

import (
	"slices"

	"qualflow/internal/bug"
	"qualflow/internal/qual"
	"qualflow/internal/types"
)

// SameStructure reports whether a and b mirror the same underlying type,
// ignoring qualifiers.
func SameStructure(a, b *AnnotatedType) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.id == b.id
}

// Equal reports whether a and b have the same structure and the same
// qualifiers at every position.
func Equal(a, b *AnnotatedType) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !SameStructure(a, b) || !sameQuals(a.quals, b.quals) {
		return false
	}
	if !Equal(a.component, b.component) || !Equal(a.upper, b.upper) || !Equal(a.lower, b.lower) {
		return false
	}
	return equalAll(a.typeArgs, b.typeArgs) && equalAll(a.members, b.members)
}

func equalAll(as, bs []*AnnotatedType) bool {
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if !Equal(as[i], bs[i]) {
			return false
		}
	}
	return true
}

func sameQuals(a, b []qual.ID) bool {
	if len(a) != len(b) {
		return false
	}
	as, bs := slices.Clone(a), slices.Clone(b)
	slices.Sort(as)
	slices.Sort(bs)
	return slices.Equal(as, bs)
}

// LUB returns a new tree whose qualifiers are the pointwise least upper
// bounds of a and b. Both trees must have the same structure and be fully
// annotated; violating this is an internal consistency failure. Type
// arguments are joined pointwise as well.
func LUB(a, b *AnnotatedType) *AnnotatedType {
	if !SameStructure(a, b) {
		bug.Throw("lub of structurally different types", "left", a.String(), "right", b.String())
	}
	out := a.DeepCopy()
	lubInto(out, b)
	return out
}

func lubInto(dst, src *AnnotatedType) {
	if dst == nil || src == nil {
		return
	}
	h := dst.fac.H
	boundKind := dst.kind == types.KindTypeVar || dst.kind == types.KindWildcard
	for _, top := range h.Tops() {
		qa, oka := dst.AnnotationIn(top)
		qb, okb := src.AnnotationIn(top)
		switch {
		case oka && okb:
			dst.AddAnnotation(h.LUB(qa, qb))
		case !oka && !okb && (boundKind || !needsPrimary(dst)):
		case boundKind:
			// one side has a primary, the other relies on its bound
			qa, oka = dst.EffectiveAnnotationIn(top)
			qb, okb = src.EffectiveAnnotationIn(top)
			if !oka || !okb {
				bug.Throw("lub of partially annotated types", "type", dst.String(), "hierarchy", h.Name(top))
			}
			dst.AddAnnotation(h.LUB(qa, qb))
		default:
			bug.Throw("lub of partially annotated types", "type", dst.String(), "hierarchy", h.Name(top))
		}
	}
	lubInto(dst.component, src.component)
	lubInto(dst.upper, src.upper)
	lubInto(dst.lower, src.lower)
	for i := range dst.typeArgs {
		if i < len(src.typeArgs) {
			lubInto(dst.typeArgs[i], src.typeArgs[i])
		}
	}
	for i := range dst.members {
		if i < len(src.members) {
			lubInto(dst.members[i], src.members[i])
		}
	}
}

// IsSubtype reports whether sub <: sup. Both trees must have the same
// structure. Primary qualifiers and array components are covariant, type
// arguments are invariant unless they are wildcards, whose upper bounds are
// covariant and lower bounds contravariant.
func IsSubtype(sub, sup *AnnotatedType) bool {
	if !SameStructure(sub, sup) {
		bug.Throw("subtype check of structurally different types", "sub", sub.String(), "super", sup.String())
	}
	return isSubtype(sub, sup)
}

func isSubtype(a, b *AnnotatedType) bool {
	if a == nil || b == nil {
		return true
	}
	if !primariesSubtype(a, b) {
		return false
	}
	switch a.kind {
	case types.KindArray:
		return isSubtype(a.component, b.component)
	case types.KindDeclared:
		for i := range a.typeArgs {
			if i >= len(b.typeArgs) {
				break
			}
			if !argContained(a.typeArgs[i], b.typeArgs[i]) {
				return false
			}
		}
	case types.KindIntersection, types.KindUnion:
		for i := range a.members {
			if i < len(b.members) && !isSubtype(a.members[i], b.members[i]) {
				return false
			}
		}
	}
	return true
}

func primariesSubtype(a, b *AnnotatedType) bool {
	h := a.fac.H
	for _, top := range h.Tops() {
		qa, oka := a.EffectiveAnnotationIn(top)
		qb, okb := b.EffectiveAnnotationIn(top)
		if !oka && !okb {
			continue
		}
		if !oka || !okb {
			bug.Throw("subtype check of partially annotated types", "type", a.String(), "hierarchy", h.Name(top))
		}
		if !h.IsSubtype(qa, qb) {
			return false
		}
	}
	return true
}

func argContained(a, b *AnnotatedType) bool {
	if b.kind == types.KindWildcard {
		return isSubtype(a.upper, b.upper) && isSubtype(b.lower, a.lower)
	}
	return invariantEqual(a, b)
}

// invariantEqual compares effective qualifiers at every position, treating
// unresolved polymorphic qualifiers as matching anything.
func invariantEqual(a, b *AnnotatedType) bool {
	if a == nil || b == nil {
		return true
	}
	h := a.fac.H
	for _, top := range h.Tops() {
		qa, oka := a.EffectiveAnnotationIn(top)
		qb, okb := b.EffectiveAnnotationIn(top)
		if oka != okb {
			return false
		}
		if oka && qa != qb && !h.IsPoly(qa) && !h.IsPoly(qb) {
			return false
		}
	}
	if !invariantEqual(a.component, b.component) {
		return false
	}
	for i := range a.typeArgs {
		if i < len(b.typeArgs) && !invariantEqual(a.typeArgs[i], b.typeArgs[i]) {
			return false
		}
	}
	return true
}

// CopyQualifiers overwrites, position by position, the qualifiers of dst
// with those of src in every hierarchy src has a qualifier for. Positions
// where the trees differ in structure are skipped along with their
// children. Conflicting qualifiers in src are copied as they are.
func CopyQualifiers(dst, src *AnnotatedType) {
	if dst == nil || src == nil || dst.id != src.id || dst.kind != src.kind {
		return
	}
	h := dst.fac.H
	for _, top := range h.Tops() {
		var from []qual.ID
		for _, q := range src.quals {
			if h.Top(q) == top {
				from = append(from, q)
			}
		}
		if len(from) == 0 {
			continue
		}
		dst.RemoveAnnotationIn(top)
		dst.quals = append(dst.quals, from...)
	}
	CopyQualifiers(dst.component, src.component)
	CopyQualifiers(dst.upper, src.upper)
	CopyQualifiers(dst.lower, src.lower)
	for i := range dst.typeArgs {
		if i < len(src.typeArgs) {
			CopyQualifiers(dst.typeArgs[i], src.typeArgs[i])
		}
	}
	for i := range dst.members {
		if i < len(src.members) {
			CopyQualifiers(dst.members[i], src.members[i])
		}
	}
}
