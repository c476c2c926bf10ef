package annotapply

import (
	"strings"
	"sync"

	"qualflow/internal/ast"
	"qualflow/internal/atype"
	"qualflow/internal/bug"
	"qualflow/internal/qual"
	"qualflow/internal/types"
)

// Applier applies raw annotations for one hierarchy.
//
// Type parameter declarations are recorded with Declare while a program is
// prepared; afterwards the applier is only read and may be shared between
// goroutines.
type Applier struct {
	f *atype.Factory

	// Supported narrows the qualifiers the applier places. Nil accepts every
	// qualifier of the hierarchy.
	Supported func(qual.ID) bool
	// OnUnknown is called for annotations whose name is not a qualifier of
	// the hierarchy.
	OnUnknown func(ast.RawAnnotation)

	mu    sync.RWMutex
	decls map[types.TypeID]*atype.AnnotatedType
}

// New returns an applier building types with f.
func New(f *atype.Factory) *Applier {
	return &Applier{f: f, decls: make(map[types.TypeID]*atype.AnnotatedType)}
}

// Factory returns the factory the applier builds types with.
func (a *Applier) Factory() *atype.Factory { return a.f }

// resolve maps raw to a supported qualifier. Package prefixes are ignored and
// aliases resolve to their target.
func (a *Applier) resolve(raw ast.RawAnnotation) (qual.ID, bool) {
	name := raw.Name
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	q, ok := a.f.H.Lookup(name, raw.Args...)
	if !ok {
		if a.OnUnknown != nil {
			a.OnUnknown(raw)
		}
		return qual.NoID, false
	}
	if a.Supported != nil && !a.Supported(q) {
		return qual.NoID, false
	}
	return q, true
}

// placer adds qualifiers so that the first qualifier of a hierarchy written
// at a position replaces what was there and later ones of the same
// hierarchy are appended. A position written twice in one hierarchy thus
// ends up invalid, which the validity pass reports.
type placer struct {
	h       *qual.Hierarchy
	written map[*atype.AnnotatedType][]qual.ID
}

func newPlacer(h *qual.Hierarchy) *placer {
	return &placer{h: h, written: make(map[*atype.AnnotatedType][]qual.ID)}
}

func (p *placer) place(t *atype.AnnotatedType, q qual.ID) {
	top := p.h.Top(q)
	for _, prev := range p.written[t] {
		if prev == top {
			t.AppendAnnotation(q)
			return
		}
	}
	t.AddAnnotation(q)
	p.written[t] = append(p.written[t], top)
}

// apply places every annotation of annos that targets target (and, when
// index >= 0, the element at index) onto t, following type paths.
func (a *Applier) apply(t *atype.AnnotatedType, element string, target ast.TargetType, index int, annos []ast.RawAnnotation) (err error) {
	defer bug.Guard(&err)
	p := newPlacer(a.f.H)
	for _, raw := range annos {
		if raw.Pos.Target != target || (index >= 0 && raw.Pos.Index != index) {
			continue
		}
		q, ok := a.resolve(raw)
		if !ok {
			continue
		}
		p.place(a.followPath(t, element, raw), q)
	}
	return nil
}

// followPath walks raw's type path from t and returns the addressed
// component. A step that does not fit the type is a consistency failure.
func (a *Applier) followPath(t *atype.AnnotatedType, element string, raw ast.RawAnnotation) *atype.AnnotatedType {
	cur := t
	for i, step := range raw.Pos.Path {
		fail := func(why string) {
			bug.Throw("invalid type path on element annotation: "+why,
				"annotation", raw.String(), "element", element, "type", t.String(),
				"step", i, "component", cur.String())
		}
		switch step.Kind {
		case ast.PathArray:
			if cur.Kind() != types.KindArray {
				fail("array step on a non-array type")
			}
			cur = cur.Component()
		case ast.PathNested:
			// enclosing types are not modelled; the step stays on the same type
		case ast.PathWildcard:
			if cur.Kind() != types.KindWildcard {
				fail("wildcard step on a non-wildcard type")
			}
			tt, _ := a.f.Types.Lookup(cur.Underlying())
			switch {
			case tt.Elem == types.NoTypeID:
				fail("wildcard step on an unbounded wildcard")
			case tt.Super:
				cur = cur.LowerBound()
			default:
				cur = cur.UpperBound()
			}
		case ast.PathTypeArgument:
			args := cur.TypeArgs()
			if int(step.Arg) >= len(args) {
				fail("type argument index out of range")
			}
			cur = args[step.Arg]
		default:
			fail("unknown step kind")
		}
	}
	return cur
}
