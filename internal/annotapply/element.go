package annotapply

import (
	"qualflow/internal/ast"
	"qualflow/internal/atype"
	"qualflow/internal/bug"
	"qualflow/internal/types"
)

// Declare records the annotated declaration of a type variable. Uses of the
// variable built afterwards through this applier carry its bound
// qualifiers.
func (a *Applier) Declare(tv *atype.AnnotatedType) {
	a.mu.Lock()
	a.decls[tv.Underlying()] = tv.DeepCopy()
	a.mu.Unlock()
}

// Declaration returns a copy of the recorded declaration of the type
// variable id.
func (a *Applier) Declaration(id types.TypeID) (*atype.AnnotatedType, bool) {
	a.mu.RLock()
	d, ok := a.decls[id]
	a.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return d.DeepCopy(), true
}

// Seed copies declared bound qualifiers onto every type variable use in t.
func (a *Applier) Seed(t *atype.AnnotatedType) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.decls) == 0 {
		return
	}
	atype.Walk(t, func(_ atype.Path, n *atype.AnnotatedType) bool {
		if n.Kind() != types.KindTypeVar || n.IsCut() {
			return true
		}
		if d, ok := a.decls[n.Underlying()]; ok && d != n {
			atype.CopyQualifiers(n.UpperBound(), d.UpperBound())
			atype.CopyQualifiers(n.LowerBound(), d.LowerBound())
		}
		return true
	})
}

// Type builds the tree of id with declared type variable bounds seeded.
func (a *Applier) Type(id types.TypeID) *atype.AnnotatedType {
	t := a.f.FromType(id)
	a.Seed(t)
	return t
}

// ClassTypeParams applies c's annotations to each of its type parameters
// and declares them.
func (a *Applier) ClassTypeParams(c *ast.Class) error {
	return a.typeParams(c.TypeParams, ast.TargetClassTypeParameter, c.Annotations)
}

// MethodTypeParams applies m's annotations to each of its type parameters
// and declares them.
func (a *Applier) MethodTypeParams(m *ast.Method) error {
	return a.typeParams(m.TypeParams, ast.TargetMethodTypeParameter, m.Annotations)
}

func (a *Applier) typeParams(params []*ast.TypeParam, kind ast.TargetType, annos []ast.RawAnnotation) error {
	for _, tp := range params {
		tv := a.f.FromType(tp.Var)
		a.Seed(tv.UpperBound())
		a.Seed(tv.LowerBound())
		if err := a.TypeParameter(tv, tp, kind, annos); err != nil {
			return err
		}
		a.Declare(tv)
	}
	return nil
}

// FieldType returns the annotated declared type of f.
func (a *Applier) FieldType(f *ast.Field) (*atype.AnnotatedType, error) {
	t := a.Type(f.Type)
	return t, a.apply(t, f.Name, ast.TargetField, -1, f.Annotations)
}

// ReturnType returns the annotated result type of m.
func (a *Applier) ReturnType(m *ast.Method) (*atype.AnnotatedType, error) {
	t := a.Type(m.Result)
	return t, a.apply(t, m.QualifiedName(), ast.TargetMethodReturn, -1, m.Annotations)
}

// ReceiverType returns the annotated type of this inside m. Static methods
// have no receiver.
func (a *Applier) ReceiverType(m *ast.Method) (*atype.AnnotatedType, error) {
	if m.Static || m.Owner == nil {
		return nil, nil
	}
	t := a.Type(m.Owner.Type)
	return t, a.apply(t, m.QualifiedName(), ast.TargetMethodReceiver, -1, m.Annotations)
}

// ParamType returns the annotated type of p, a formal parameter of m.
func (a *Applier) ParamType(m *ast.Method, p *ast.Param) (*atype.AnnotatedType, error) {
	if p.Index < 0 || p.Index >= len(m.Params) || m.Params[p.Index] != p {
		return nil, bug.New("parameter does not belong to method",
			"element", p.Name, "method", m.QualifiedName(), "index", p.Index)
	}
	t := a.Type(p.Type)
	return t, a.apply(t, m.QualifiedName()+"#"+p.Name, ast.TargetMethodFormalParameter, p.Index, m.Annotations)
}

// LocalType returns the annotated declared type of a local variable.
func (a *Applier) LocalType(v *ast.StmtVarData) (*atype.AnnotatedType, error) {
	t := a.Type(v.Type)
	return t, a.apply(t, v.Name, ast.TargetLocalVariable, -1, v.Annotations)
}
