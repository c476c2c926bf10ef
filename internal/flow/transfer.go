package flow

import (
	"fmt"
	"slices"

	"qualflow/internal/atype"
	"qualflow/internal/cfg"
	"qualflow/internal/node"
	"qualflow/internal/qual"
	"qualflow/internal/trace"
)

// Input is the flow state reaching a node: either one regular store, or a
// then/else pair when the previous node was a condition.
type Input struct {
	regular   *Store
	then, els *Store
}

func RegularInput(s *Store) Input { return Input{regular: s} }

func SplitInput(then, els *Store) Input { return Input{then: then, els: els} }

func (in Input) Split() bool { return in.then != nil }

// Regular returns a private copy of the regular store; a split input is
// merged first.
func (in Input) Regular() *Store {
	if in.Split() {
		return in.then.LUB(in.els)
	}
	return in.regular.Copy()
}

// Then returns a private copy of the store for the true outcome.
func (in Input) Then() *Store {
	if in.Split() {
		return in.then.Copy()
	}
	return in.regular.Copy()
}

// Else returns a private copy of the store for the false outcome.
func (in Input) Else() *Store {
	if in.Split() {
		return in.els.Copy()
	}
	return in.regular.Copy()
}

// Peek returns a store for lookups only. Callers must not mutate it.
func (in Input) Peek() *Store {
	if in.Split() {
		return in.then.LUB(in.els)
	}
	return in.regular
}

// TransferResult is a transfer function's output. Value is the node's refined
// value. Store replaces the regular store; Then and Else, when both set,
// split the flow. A result with no stores passes the input through.
type TransferResult struct {
	Value Value
	Store *Store
	Then  *Store
	Else  *Store
}

func (r TransferResult) split() bool { return r.Then != nil && r.Else != nil }

// TransferFunc computes a node's effect.
type TransferFunc func(c *Context, n *node.Node, in Input) TransferResult

// Transfer selects transfer functions by node kind.
type Transfer struct {
	fns [node.NumKinds]TransferFunc
}

// NewTransfer returns the table with the framework's transfer functions
// for every kind.
func NewTransfer() *Transfer {
	t := &Transfer{}
	for _, k := range []node.Kind{node.KindLocal, node.KindExplicitThis, node.KindImplicitThis, node.KindFieldAccess} {
		t.fns[k] = transferTracked
	}
	for _, k := range []node.Kind{
		node.KindNullLiteral, node.KindLiteral, node.KindBinary, node.KindUnary,
		node.KindArrayAccess, node.KindInstanceOf, node.KindEqualTo, node.KindNotEqual,
		node.KindConditionalAnd, node.KindConditionalOr,
	} {
		t.fns[k] = transferDeclared
	}
	t.fns[node.KindMethodInvocation] = transferCall
	t.fns[node.KindObjectCreation] = transferNew
	t.fns[node.KindAssignment] = transferAssign
	t.fns[node.KindVariableDeclaration] = transferDecl
	t.fns[node.KindConditionalNot] = transferNot
	t.fns[node.KindTypeCast] = transferCast
	t.fns[node.KindTernary] = transferTernary
	t.fns[node.KindReturn] = transferNothing
	t.fns[node.KindMarker] = transferNothing
	return t
}

// Set installs fn for kind k; a nil fn removes the entry.
func (t *Transfer) Set(k node.Kind, fn TransferFunc) {
	t.fns[k] = fn
}

// Override wraps the entry for k. wrap receives the previous function, or
// Identity when k had none.
func (t *Transfer) Override(k node.Kind, wrap func(next TransferFunc) TransferFunc) {
	next := t.fns[k]
	if next == nil {
		next = Identity
	}
	t.fns[k] = wrap(next)
}

func (t *Transfer) Lookup(k node.Kind) (TransferFunc, bool) {
	if int(k) >= len(t.fns) || t.fns[k] == nil {
		return nil, false
	}
	return t.fns[k], true
}

// Clone returns an independent table with the same entries.
func (t *Transfer) Clone() *Transfer {
	out := *t
	return &out
}

// Identity passes the input through and gives the node its declared value.
func Identity(c *Context, n *node.Node, _ Input) TransferResult {
	return TransferResult{Value: c.Declared(n)}
}

// Oracle supplies declared types. Implementations apply element
// annotations and defaults; the engine only refines what they return.
type Oracle interface {
	// DeclaredType is the declared type of the value n produces, or nil when
	// n produces none. The caller owns the returned tree.
	DeclaredType(n *node.Node) *atype.AnnotatedType
	// Signature returns the declared receiver, parameter and result types
	// of the method a call or object creation invokes. The caller owns
	// the returned trees.
	Signature(n *node.Node) (Signature, bool)
}

type Signature struct {
	Receiver *atype.AnnotatedType
	Params   []*atype.AnnotatedType
	Result   *atype.AnnotatedType
}

// Context gives transfer functions access to the analysis in progress.
type Context struct {
	H      *qual.Hierarchy
	Graph  *cfg.Graph
	Oracle Oracle

	values map[node.ID]Value
	exprs  map[node.ID]*Expr
	keep   func(*Expr, Value) bool
	tracer trace.Tracer
	span   uint64
}

func (c *Context) Node(id node.ID) *node.Node { return c.Graph.Nodes.Get(id) }

// ValueOf returns the value computed for id, falling back to its declared
// value when id has not been evaluated yet.
func (c *Context) ValueOf(id node.ID) Value {
	if v, ok := c.values[id]; ok {
		return slices.Clone(v)
	}
	return c.Declared(c.Node(id))
}

// DeclaredType returns n's declared type, nil when unknown.
func (c *Context) DeclaredType(n *node.Node) *atype.AnnotatedType {
	if n == nil || c.Oracle == nil {
		return nil
	}
	return c.Oracle.DeclaredType(n)
}

// Declared returns the primary qualifiers of n's declared type.
func (c *Context) Declared(n *node.Node) Value {
	if n == nil || c.Oracle == nil {
		return NewValue(c.H)
	}
	return PrimaryValue(c.H, c.Oracle.DeclaredType(n))
}

// Expr returns the flow expression of node id.
func (c *Context) Expr(id node.ID) (*Expr, bool) {
	if e, ok := c.exprs[id]; ok {
		return e, e != nil
	}
	e, ok := ExprOf(c.Graph.Nodes, id)
	if !ok {
		e = nil
	}
	c.exprs[id] = e
	return e, ok
}

// InvalidateHeap applies call invalidation to s, honouring the analysis'
// KeepOnCall option.
func (c *Context) InvalidateHeap(s *Store) {
	s.InvalidateHeap(c.keep)
}

// Note records a precision note for n in the trace.
func (c *Context) Note(n *node.Node, msg string) {
	trace.Point(c.tracer, trace.ScopeNode, c.span, "precision", msg,
		"node", fmt.Sprintf("n%d", n.ID), "kind", n.Kind.String())
}

func transferNothing(*Context, *node.Node, Input) TransferResult { return TransferResult{} }

func transferDeclared(c *Context, n *node.Node, _ Input) TransferResult {
	return TransferResult{Value: c.Declared(n)}
}

// transferTracked reads locals, this and field accesses from the store.
func transferTracked(c *Context, n *node.Node, in Input) TransferResult {
	v := c.Declared(n)
	if e, ok := c.Expr(n.ID); ok {
		if refined, ok := in.Peek().Get(e); ok {
			v = v.Overlay(refined)
		}
	}
	return TransferResult{Value: v}
}

func transferCall(c *Context, n *node.Node, in Input) TransferResult {
	v := c.Declared(n)
	if c.Oracle != nil {
		if sig, ok := c.Oracle.Signature(n); ok {
			v = c.resolvePoly(n, sig, v)
		}
	}
	if n.Call.Pure {
		if e, ok := c.Expr(n.ID); ok {
			if refined, ok := in.Peek().Get(e); ok {
				v = v.Overlay(refined)
			}
		}
		return TransferResult{Value: v}
	}
	st := in.Regular()
	c.InvalidateHeap(st)
	return TransferResult{Value: v, Store: st}
}

// resolvePoly binds polymorphic qualifiers of the signature's receiver and
// parameters to the argument values and substitutes them in v.
func (c *Context) resolvePoly(n *node.Node, sig Signature, v Value) Value {
	if sig.Result != nil {
		v = PrimaryValue(c.H, sig.Result)
	}
	b := qual.Binding{}
	bind := func(decl *atype.AnnotatedType, arg node.ID) {
		if decl == nil {
			return
		}
		actual := c.ValueOf(arg)
		for _, q := range decl.Annotations() {
			if !c.H.IsPoly(q) {
				continue
			}
			if a, ok := actual.In(c.H, q); ok {
				c.H.Bind(b, q, a)
			}
		}
	}
	if recv, ok := n.Receiver(); ok {
		bind(sig.Receiver, recv)
	}
	for i, a := range n.Args() {
		if i < len(sig.Params) {
			bind(sig.Params[i], a)
		}
	}
	for i, q := range v {
		if q == qual.NoID {
			continue
		}
		r := c.H.Resolve(q, b)
		if c.H.IsPoly(r) {
			// unbound polymorphic qualifiers widen to top
			r = c.H.Top(r)
		}
		v[i] = r
	}
	return v
}

func transferNew(c *Context, n *node.Node, in Input) TransferResult {
	st := in.Regular()
	c.InvalidateHeap(st)
	return TransferResult{Value: c.Declared(n), Store: st}
}

func transferAssign(c *Context, n *node.Node, in Input) TransferResult {
	if len(n.Operands) != 2 {
		return TransferResult{}
	}
	target := c.Node(n.Operands[0])
	v := c.ValueOf(n.Operands[1])
	st := in.Regular()
	switch target.Kind {
	case node.KindLocal:
		st.AssignLocal(target.Local.Name, v)
	case node.KindFieldAccess:
		if e, ok := c.Expr(target.ID); ok {
			st.AssignField(e, v)
		} else {
			st.ForgetField(target.Field.Name)
		}
	}
	return TransferResult{Value: v, Store: st}
}

func transferDecl(c *Context, n *node.Node, in Input) TransferResult {
	st := in.Regular()
	st.AssignLocal(n.Decl.Name, nil)
	return TransferResult{Store: st}
}

func transferNot(c *Context, n *node.Node, in Input) TransferResult {
	if in.Split() {
		return TransferResult{Value: c.Declared(n), Then: in.Else(), Else: in.Then()}
	}
	return TransferResult{Value: c.Declared(n)}
}

func transferCast(c *Context, n *node.Node, _ Input) TransferResult {
	if len(n.Operands) == 0 {
		return TransferResult{Value: c.Declared(n)}
	}
	return TransferResult{Value: c.Declared(n).Overlay(c.ValueOf(n.Operands[0]))}
}

func transferTernary(c *Context, n *node.Node, _ Input) TransferResult {
	if len(n.Operands) != 2 {
		return TransferResult{Value: c.Declared(n)}
	}
	return TransferResult{Value: LUBValue(c.H, c.ValueOf(n.Operands[0]), c.ValueOf(n.Operands[1]))}
}
