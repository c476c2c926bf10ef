package annotapply

import (
	"qualflow/internal/ast"
	"qualflow/internal/atype"
	"qualflow/internal/bug"
	"qualflow/internal/qual"
	"qualflow/internal/types"
)

type placed struct {
	raw ast.RawAnnotation
	q   qual.ID
}

// TypeParameter applies annos to tv, the type variable declared by param.
// kind is ast.TargetClassTypeParameter or ast.TargetMethodTypeParameter;
// annotations targeting the matching bound target address the upper bound,
// the others the lower bound. tv itself never receives a primary qualifier.
func (a *Applier) TypeParameter(tv *atype.AnnotatedType, param *ast.TypeParam, kind ast.TargetType, annos []ast.RawAnnotation) (err error) {
	defer bug.Guard(&err)
	if tv.Kind() != types.KindTypeVar || tv.UpperBound() == nil || tv.LowerBound() == nil {
		return bug.New("type parameter applier needs a type variable with bounds",
			"element", param.Name, "type", tv.String())
	}
	if kind != ast.TargetClassTypeParameter && kind != ast.TargetMethodTypeParameter {
		return bug.New("type parameter applier needs a type parameter target",
			"element", param.Name, "target", kind.String())
	}
	boundTarget := kind.BoundTarget()

	var upper, lower []placed
	for _, raw := range annos {
		if raw.Pos.Target != kind && raw.Pos.Target != boundTarget {
			continue
		}
		if raw.Pos.Index != param.Index {
			continue
		}
		q, ok := a.resolve(raw)
		if !ok {
			continue
		}
		switch {
		case len(raw.Pos.Path) > 0:
			a.applyComponent(tv, param, raw, q, boundTarget)
		case raw.Pos.Target == boundTarget:
			upper = append(upper, placed{raw, q})
		default:
			lower = append(lower, placed{raw, q})
		}
	}
	a.applyLower(tv, lower)
	a.applyUpper(tv, param, upper)
	return nil
}

// applyLower replaces the lower bound's qualifier with the first annotation
// and appends the rest, keeping an invalid state when several annotations of
// one hierarchy were written.
func (a *Applier) applyLower(tv *atype.AnnotatedType, annos []placed) {
	if len(annos) == 0 {
		return
	}
	lb := tv.LowerBound()
	lb.AddAnnotation(annos[0].q)
	for _, p := range annos[1:] {
		lb.AppendAnnotation(p.q)
	}
}

func (a *Applier) applyUpper(tv *atype.AnnotatedType, param *ast.TypeParam, annos []placed) {
	if len(annos) == 0 {
		return
	}
	ub := tv.UpperBound()
	if ub.Kind() != types.KindIntersection {
		p := newPlacer(a.f.H)
		for _, an := range annos {
			p.place(ub, an.q)
		}
		return
	}
	for _, an := range annos {
		a.boundMember(tv, param, an.raw).AddAnnotation(an.q)
	}
}

func (a *Applier) applyComponent(tv *atype.AnnotatedType, param *ast.TypeParam, raw ast.RawAnnotation, q qual.ID, boundTarget ast.TargetType) {
	target := tv.LowerBound()
	if raw.Pos.Target == boundTarget {
		target = tv.UpperBound()
		if target.Kind() == types.KindIntersection {
			target = a.boundMember(tv, param, raw)
		}
	}
	a.followPath(target, param.Name, raw).AddAnnotation(q)
}

// boundMember returns the intersection member of tv's upper bound that raw's
// bound index designates. Bound index 0 is the class bound; when the first
// member is an interface the class bound was omitted and indices shift down
// by one.
func (a *Applier) boundMember(tv *atype.AnnotatedType, param *ast.TypeParam, raw ast.RawAnnotation) *atype.AnnotatedType {
	ub := tv.UpperBound()
	members := ub.DirectSuperTypes()
	idx := raw.Pos.BoundIndex + a.boundIndexOffset(members)
	if idx < 0 || idx >= len(members) {
		bug.Throw("invalid bound index on element annotation",
			"annotation", raw.String(), "element", param.Name, "type", tv.String(),
			"upper bound", ub.String(), "bound index", idx)
	}
	return members[idx]
}

func (a *Applier) boundIndexOffset(members []*atype.AnnotatedType) int {
	if len(members) > 0 && a.f.Types.IsInterface(members[0].Underlying()) {
		return -1
	}
	return 0
}
