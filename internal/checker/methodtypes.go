package checker

import (
	"qualflow/internal/ast"
	"qualflow/internal/atype"
	"qualflow/internal/flow"
	"qualflow/internal/node"
	"qualflow/internal/types"
)

// MethodTypes answers declared type queries for the nodes of one method's
// graph. It is used by a single analysis at a time.
type MethodTypes struct {
	*Types
	Method *ast.Method

	sig    signature
	locals map[string]*atype.AnnotatedType
	nodes  *node.Table
	cache  map[node.ID]*atype.AnnotatedType
	errs   []ElementError
}

var _ flow.Oracle = (*MethodTypes)(nil)

// ForMethod builds the oracle for m, whose graph holds nodes. Local variable
// annotations are applied here; their failures are returned by Errors.
func (t *Types) ForMethod(m *ast.Method, nodes *node.Table) *MethodTypes {
	mt := &MethodTypes{
		Types:  t,
		Method: m,
		locals: make(map[string]*atype.AnnotatedType),
		nodes:  nodes,
		cache:  make(map[node.ID]*atype.AnnotatedType),
	}
	if sig, ok := t.sigs[m]; ok {
		mt.sig = *sig
	}
	for i, p := range m.Params {
		if i < len(mt.sig.params) {
			mt.locals[p.Name] = mt.sig.params[i]
		}
	}
	mt.collectLocals(m.Body)
	return mt
}

func (mt *MethodTypes) collectLocals(id ast.StmtID) {
	if !id.IsValid() {
		return
	}
	stmts := mt.Program.Stmts
	switch stmts.Get(id).Kind {
	case ast.StmtBlock:
		blk, _ := stmts.Block(id)
		for _, s := range blk.Stmts {
			mt.collectLocals(s)
		}
	case ast.StmtVar:
		v, _ := stmts.Var(id)
		lt, err := mt.Applier.LocalType(v)
		if err != nil {
			mt.errs = append(mt.errs, ElementError{
				Element: mt.Method.QualifiedName() + "#" + v.Name,
				Span:    stmts.Get(id).Span,
				Err:     err,
			})
		}
		mt.Defaults.Apply(lt, atype.LocLocal)
		mt.locals[v.Name] = lt
	case ast.StmtIf:
		d, _ := stmts.If(id)
		mt.collectLocals(d.Then)
		mt.collectLocals(d.Else)
	case ast.StmtWhile:
		d, _ := stmts.While(id)
		mt.collectLocals(d.Body)
	}
}

// Errors returns local variable annotation failures.
func (mt *MethodTypes) Errors() []ElementError { return mt.errs }

// Local returns the declared type of a parameter or local variable.
func (mt *MethodTypes) Local(name string) (*atype.AnnotatedType, bool) {
	lt, ok := mt.locals[name]
	if !ok {
		return nil, false
	}
	return lt.DeepCopy(), true
}

// ResultType returns the declared result type of the method.
func (mt *MethodTypes) ResultType() *atype.AnnotatedType { return copyType(mt.sig.result) }

// ReceiverType returns the declared type of this, nil in static methods.
func (mt *MethodTypes) ReceiverType() *atype.AnnotatedType { return copyType(mt.sig.recv) }

// EntryStore holds the declared parameter and receiver qualifiers the
// analysis starts from.
func (mt *MethodTypes) EntryStore() *flow.Store {
	s := flow.NewStore(mt.H)
	for i, p := range mt.Method.Params {
		if i < len(mt.sig.params) {
			s.Insert(flow.Local(p.Name), flow.PrimaryValue(mt.H, mt.sig.params[i]))
		}
	}
	if mt.sig.recv != nil {
		s.Insert(flow.This(), flow.PrimaryValue(mt.H, mt.sig.recv))
	}
	return s
}

// KeepOnCall adapts the checker's HeapKeeper, nil when it has none.
func (mt *MethodTypes) KeepOnCall() func(*flow.Expr, flow.Value) bool {
	hk, ok := mt.Checker.(HeapKeeper)
	if !ok {
		return nil
	}
	return func(e *flow.Expr, v flow.Value) bool { return hk.KeepOnCall(mt, e, v) }
}

// DeclaredType implements flow.Oracle. Every call returns a fresh copy, so
// analyses running in parallel never share a tree.
func (mt *MethodTypes) DeclaredType(n *node.Node) *atype.AnnotatedType {
	if n == nil {
		return nil
	}
	at, ok := mt.cache[n.ID]
	if !ok {
		if at = mt.declared(n); at != nil {
			at = at.DeepCopy()
			if mt.trees != nil {
				mt.trees.AnnotateTree(n, at)
			}
		}
		mt.cache[n.ID] = at
	}
	return copyType(at)
}

func (mt *MethodTypes) declared(n *node.Node) *atype.AnnotatedType {
	switch n.Kind {
	case node.KindMarker:
		return nil
	case node.KindLocal:
		if lt, ok := mt.locals[n.Local.Name]; ok {
			return lt
		}
	case node.KindVariableDeclaration:
		if lt, ok := mt.locals[n.Decl.Name]; ok {
			return lt
		}
	case node.KindExplicitThis, node.KindImplicitThis:
		if mt.sig.recv != nil {
			return mt.sig.recv
		}
		return mt.defaulted(n.Type, atype.LocReceiver)
	case node.KindFieldAccess:
		if ft, ok := mt.FieldByOwner(n); ok {
			return ft
		}
	case node.KindMethodInvocation:
		if sig, ok := mt.Signature(n); ok && sig.Result != nil {
			return sig.Result
		}
	case node.KindAssignment:
		if len(n.Operands) == 2 {
			return mt.DeclaredType(mt.nodes.Get(n.Operands[0]))
		}
	case node.KindArrayAccess:
		if len(n.Operands) > 0 {
			arr := mt.DeclaredType(mt.nodes.Get(n.Operands[0]))
			if arr != nil && arr.Component() != nil {
				return arr.Component()
			}
		}
	case node.KindReturn:
		return mt.sig.result
	}
	if n.Type == types.NoTypeID {
		return nil
	}
	return mt.defaulted(n.Type, atype.LocOther)
}

// FieldByOwner returns the declared type of a field access, with the
// receiver's type arguments substituted.
func (mt *MethodTypes) FieldByOwner(n *node.Node) (*atype.AnnotatedType, bool) {
	if n.Kind != node.KindFieldAccess {
		return nil, false
	}
	_, ft, ok := mt.Field(n.Field.Owner, n.Field.Name)
	if !ok || ft == nil {
		return nil, false
	}
	return substitute(ft, mt.bindings(n, n.Field.Owner)), true
}

// bindings maps owner's type variables to the arguments of n's receiver.
func (mt *MethodTypes) bindings(n *node.Node, owner types.ClassID) map[types.TypeID]*atype.AnnotatedType {
	recv, ok := n.Receiver()
	if !ok {
		return nil
	}
	return mt.typeArgs(mt.DeclaredType(mt.nodes.Get(recv)), owner)
}

// Signature implements flow.Oracle for method invocations. Declared methods
// use their annotated signatures; library methods get defaults.
func (mt *MethodTypes) Signature(n *node.Node) (flow.Signature, bool) {
	if n.Kind != node.KindMethodInvocation {
		return flow.Signature{}, false
	}
	if m, ok := mt.method(n.Call.Owner, n.Call.Name); ok {
		sig, ok := mt.Types.Signature(m)
		if !ok {
			return flow.Signature{}, false
		}
		b := mt.bindings(n, n.Call.Owner)
		for i, p := range sig.Params {
			sig.Params[i] = substitute(p, b)
		}
		sig.Result = substitute(sig.Result, b)
		return sig, true
	}
	lib, ok := mt.libraryMethod(n)
	if !ok {
		return flow.Signature{}, false
	}
	sig := flow.Signature{Result: mt.defaulted(lib.Result, atype.LocOther)}
	for _, p := range lib.Params {
		sig.Params = append(sig.Params, mt.defaulted(p, atype.LocOther))
	}
	if recv, ok := n.Receiver(); ok {
		sig.Receiver = mt.defaulted(mt.nodes.Get(recv).Type, atype.LocReceiver)
	}
	return sig, true
}

func (mt *MethodTypes) libraryMethod(n *node.Node) (types.Method, bool) {
	arity := len(n.Args())
	if recv, ok := n.Receiver(); ok {
		return mt.Interner.LookupMethod(mt.nodes.Get(recv).Type, n.Call.Name, arity)
	}
	info, ok := mt.Interner.Class(n.Call.Owner)
	if !ok {
		return types.Method{}, false
	}
	for _, m := range info.Methods {
		if m.Name == n.Call.Name && len(m.Params) == arity {
			return m, true
		}
	}
	return types.Method{}, false
}
