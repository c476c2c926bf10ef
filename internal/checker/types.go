package checker

import (
	"qualflow/internal/annotapply"
	"qualflow/internal/ast"
	"qualflow/internal/atype"
	"qualflow/internal/flow"
	"qualflow/internal/qual"
	"qualflow/internal/source"
	"qualflow/internal/types"
)

// ElementError is an annotation application failure on one declaration.
type ElementError struct {
	Element string
	Span    source.Span
	Err     error
}

type signature struct {
	recv   *atype.AnnotatedType
	params []*atype.AnnotatedType
	result *atype.AnnotatedType
}

// Types computes the declared annotated types of one program for one
// checker. Prepare applies every declaration's annotations; afterwards the
// value is only read and MethodTypes built from it may run concurrently.
type Types struct {
	Checker  Checker
	H        *qual.Hierarchy
	Factory  *atype.Factory
	Defaults *atype.Defaults
	Applier  *annotapply.Applier
	Program  *ast.Program
	Interner *types.Interner

	trees   TreeAnnotator
	classes map[types.ClassID]*ast.Class
	fields  map[*ast.Field]*atype.AnnotatedType
	sigs    map[*ast.Method]*signature
}

// NewTypes prepares nothing yet; call Prepare before use.
func NewTypes(c Checker, prog *ast.Program, in *types.Interner) *Types {
	f := atype.NewFactory(c.Hierarchy(), in)
	a := annotapply.New(f)
	a.Supported = c.Supported
	t := &Types{
		Checker:  c,
		H:        c.Hierarchy(),
		Factory:  f,
		Defaults: c.Defaults(),
		Applier:  a,
		Program:  prog,
		Interner: in,
		classes:  make(map[types.ClassID]*ast.Class),
		fields:   make(map[*ast.Field]*atype.AnnotatedType),
		sigs:     make(map[*ast.Method]*signature),
	}
	if ta, ok := c.(TreeAnnotator); ok {
		t.trees = ta
	}
	return t
}

// Prepare applies type parameter, field and method signature annotations
// of every class, then defaults. Failures are collected per element and the
// affected types are kept as far as they were built.
func (t *Types) Prepare() []ElementError {
	var errs []ElementError
	record := func(element string, span source.Span, err error) {
		if err != nil {
			errs = append(errs, ElementError{Element: element, Span: span, Err: err})
		}
	}
	for _, c := range t.Program.Classes {
		t.classes[c.ID] = c
		record(c.Name, c.Span, t.Applier.ClassTypeParams(c))
	}
	for _, c := range t.Program.Classes {
		for _, m := range c.Methods {
			record(m.QualifiedName(), m.Span, t.Applier.MethodTypeParams(m))
		}
	}
	for _, c := range t.Program.Classes {
		for _, f := range c.Fields {
			ft, err := t.Applier.FieldType(f)
			record(c.Name+"."+f.Name, f.Span, err)
			t.Defaults.Apply(ft, atype.LocOther)
			t.fields[f] = ft
		}
		for _, m := range c.Methods {
			sig := &signature{}
			recv, err := t.Applier.ReceiverType(m)
			record(m.QualifiedName(), m.Span, err)
			if recv != nil {
				t.Defaults.Apply(recv, atype.LocReceiver)
				sig.recv = recv
			}
			for _, p := range m.Params {
				pt, err := t.Applier.ParamType(m, p)
				record(m.QualifiedName()+"#"+p.Name, p.Span, err)
				if pt == nil {
					pt = t.Applier.Type(p.Type)
				}
				t.Defaults.Apply(pt, atype.LocOther)
				sig.params = append(sig.params, pt)
			}
			res, err := t.Applier.ReturnType(m)
			record(m.QualifiedName(), m.Span, err)
			t.Defaults.Apply(res, atype.LocOther)
			sig.result = res
			t.sigs[m] = sig
		}
	}
	return errs
}

// Class returns the declaration of id, when the program declares it.
func (t *Types) Class(id types.ClassID) (*ast.Class, bool) {
	c, ok := t.classes[id]
	return c, ok
}

// FieldType returns a copy of the prepared type of f.
func (t *Types) FieldType(f *ast.Field) (*atype.AnnotatedType, bool) {
	ft, ok := t.fields[f]
	if !ok {
		return nil, false
	}
	return ft.DeepCopy(), true
}

// Field looks up a declared field of owner and a copy of its prepared type.
func (t *Types) Field(owner types.ClassID, name string) (*ast.Field, *atype.AnnotatedType, bool) {
	c, ok := t.classes[owner]
	if !ok {
		return nil, nil, false
	}
	f, ok := c.Field(name)
	if !ok {
		return nil, nil, false
	}
	return f, copyType(t.fields[f]), true
}

// Signature returns copies of the prepared receiver, parameter and result
// types of m.
func (t *Types) Signature(m *ast.Method) (flow.Signature, bool) {
	sig, ok := t.sigs[m]
	if !ok {
		return flow.Signature{}, false
	}
	out := flow.Signature{Result: copyType(sig.result), Receiver: copyType(sig.recv)}
	for _, p := range sig.params {
		out.Params = append(out.Params, p.DeepCopy())
	}
	return out, true
}

// Declarations visits every prepared declared type: type variables, fields,
// receivers, parameters and results.
func (t *Types) Declarations(fn func(element string, span source.Span, at *atype.AnnotatedType)) {
	typeVars := func(owner string, params []*ast.TypeParam) {
		for _, tp := range params {
			if d, ok := t.Applier.Declaration(tp.Var); ok {
				fn(owner+"<"+tp.Name+">", tp.Span, d)
			}
		}
	}
	for _, c := range t.Program.Classes {
		typeVars(c.Name, c.TypeParams)
		for _, f := range c.Fields {
			if ft, ok := t.fields[f]; ok {
				fn(c.Name+"."+f.Name, f.Span, ft)
			}
		}
		for _, m := range c.Methods {
			typeVars(m.QualifiedName(), m.TypeParams)
			sig, ok := t.sigs[m]
			if !ok {
				continue
			}
			if sig.recv != nil {
				fn(m.QualifiedName()+" receiver", m.Span, sig.recv)
			}
			for i, p := range sig.params {
				fn(m.QualifiedName()+"#"+m.Params[i].Name, m.Params[i].Span, p)
			}
			if sig.result != nil {
				fn(m.QualifiedName()+" result", m.Span, sig.result)
			}
		}
	}
}

// defaulted builds id with declared type variable bounds and defaults.
func (t *Types) defaulted(id types.TypeID, loc atype.Location) *atype.AnnotatedType {
	at := t.Applier.Type(id)
	t.Defaults.Apply(at, loc)
	return at
}

// method finds the declaration of the method name of owner.
func (t *Types) method(owner types.ClassID, name string) (*ast.Method, bool) {
	c, ok := t.classes[owner]
	if !ok {
		return nil, false
	}
	return c.Method(name)
}

// typeArgs maps owner's type variables to the type arguments recv supplies
// for them, searching recv's supertypes.
func (t *Types) typeArgs(recv *atype.AnnotatedType, owner types.ClassID) map[types.TypeID]*atype.AnnotatedType {
	if recv == nil {
		return nil
	}
	queue := []*atype.AnnotatedType{recv}
	seen := make(map[types.TypeID]bool)
	for len(queue) > 0 && len(seen) < 64 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur.Underlying()] {
			continue
		}
		seen[cur.Underlying()] = true
		if cur.Kind() == types.KindDeclared {
			if cid, ok := t.Interner.ClassOf(cur.Underlying()); ok && cid == owner {
				info, _ := t.Interner.Class(cid)
				args := cur.TypeArgs()
				out := make(map[types.TypeID]*atype.AnnotatedType, len(args))
				for i, tv := range info.TypeParams {
					if i < len(args) {
						out[tv] = args[i]
					}
				}
				return out
			}
		}
		queue = append(queue, cur.DirectSuperTypes()...)
	}
	return nil
}

// substitute replaces a type variable use by its argument in m. Qualifiers
// written on the use win over the argument's.
func substitute(at *atype.AnnotatedType, m map[types.TypeID]*atype.AnnotatedType) *atype.AnnotatedType {
	if at == nil || at.Kind() != types.KindTypeVar {
		return at
	}
	arg, ok := m[at.Underlying()]
	if !ok || arg.Kind() == types.KindWildcard {
		return at
	}
	out := arg.DeepCopy()
	for _, q := range at.Annotations() {
		out.AddAnnotation(q)
	}
	return out
}

func copyType(t *atype.AnnotatedType) *atype.AnnotatedType {
	if t == nil {
		return nil
	}
	return t.DeepCopy()
}
