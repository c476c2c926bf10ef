package cfg

import (
	"fmt"

	"fortio.org/safecast"

	"qualflow/internal/ast"
	"qualflow/internal/node"
	"qualflow/internal/source"
	"qualflow/internal/types"
)

// Error is a lowering failure tied to a source span.
type Error struct {
	Span source.Span
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

type loopTargets struct {
	brk  BlockID
	cont BlockID
}

type builder struct {
	g     *Graph
	prog  *ast.Program
	in    *types.Interner
	cur   BlockID
	loops []loopTargets
	err   *Error
}

// Build lowers the body of m. The graph is simplified before it is
// returned.
func Build(prog *ast.Program, m *ast.Method, in *types.Interner) (*Graph, error) {
	if m == nil || !m.Body.IsValid() {
		return nil, fmt.Errorf("method has no body")
	}
	b := &builder{
		g:    &Graph{Name: m.QualifiedName(), Method: m, Nodes: node.NewTable()},
		prog: prog,
		in:   in,
	}
	b.g.Entry = b.newBlock()
	b.cur = b.g.Entry
	b.emit(node.Node{Kind: node.KindMarker, Span: m.Span, Marker: "start of " + m.QualifiedName()})
	b.stmt(m.Body)
	if b.err != nil {
		return nil, b.err
	}
	if !b.block().Terminated() {
		b.block().Term = Terminator{Kind: TermReturn}
	}
	Simplify(b.g)
	return b.g, nil
}

func (b *builder) newBlock() BlockID {
	n, err := safecast.Conv[int32](len(b.g.Blocks))
	if err != nil {
		panic(fmt.Errorf("block count overflow: %w", err))
	}
	id := BlockID(n)
	b.g.Blocks = append(b.g.Blocks, Block{ID: id})
	return id
}

func (b *builder) block() *Block { return &b.g.Blocks[b.cur] }

// emit appends n to the current block. Code after a terminator goes to a
// fresh block that Simplify later drops as unreachable.
func (b *builder) emit(n node.Node) node.ID {
	if b.block().Terminated() {
		b.cur = b.newBlock()
	}
	id := b.g.Nodes.Add(n).ID
	b.block().Nodes = append(b.block().Nodes, id)
	return id
}

func (b *builder) jump(target BlockID) {
	if b.block().Terminated() {
		return
	}
	b.block().Term = Terminator{Kind: TermGoto, Goto: GotoTerm{Target: target}}
}

func (b *builder) branch(cond node.ID, then, els BlockID) {
	if b.block().Terminated() {
		b.cur = b.newBlock()
	}
	b.block().Term = Terminator{Kind: TermIf, If: IfTerm{Cond: cond, Then: then, Else: els}}
}

func (b *builder) fail(span source.Span, format string, args ...any) {
	if b.err == nil {
		b.err = &Error{Span: span, Msg: fmt.Sprintf(format, args...)}
	}
}

func (b *builder) stmt(id ast.StmtID) {
	st := b.prog.Stmts.Get(id)
	if st == nil {
		return
	}
	stmts := b.prog.Stmts
	switch st.Kind {
	case ast.StmtBlock:
		d, _ := stmts.Block(id)
		for _, s := range d.Stmts {
			b.stmt(s)
		}
	case ast.StmtVar:
		d, _ := stmts.Var(id)
		tree := node.Tree{Stmt: id}
		b.emit(node.Node{Kind: node.KindVariableDeclaration, Tree: tree, Span: st.Span, Type: d.Type,
			Decl: node.DeclData{Name: d.Name, Declared: d.Type}})
		if d.Init.IsValid() {
			target := b.emit(node.Node{Kind: node.KindLocal, Tree: tree, Span: st.Span, Type: d.Type,
				Local: node.LocalData{Name: d.Name}})
			value := b.expr(d.Init)
			b.emit(node.Node{Kind: node.KindAssignment, Tree: tree, Span: st.Span, Type: d.Type,
				Operands: []node.ID{target, value}})
		}
	case ast.StmtExpr:
		d, _ := stmts.Expr(id)
		b.expr(d.Expr)
	case ast.StmtIf:
		d, _ := stmts.If(id)
		thenB, join := b.newBlock(), b.newBlock()
		elseB := join
		if d.Else.IsValid() {
			elseB = b.newBlock()
		}
		b.cond(d.Cond, thenB, elseB)
		b.cur = thenB
		b.stmt(d.Then)
		b.jump(join)
		if d.Else.IsValid() {
			b.cur = elseB
			b.stmt(d.Else)
			b.jump(join)
		}
		b.cur = join
	case ast.StmtWhile:
		d, _ := stmts.While(id)
		header, body, exit := b.newBlock(), b.newBlock(), b.newBlock()
		b.jump(header)
		b.cur = header
		b.cond(d.Cond, body, exit)
		b.loops = append(b.loops, loopTargets{brk: exit, cont: header})
		b.cur = body
		b.stmt(d.Body)
		b.jump(header)
		b.loops = b.loops[:len(b.loops)-1]
		b.cur = exit
	case ast.StmtReturn:
		d, _ := stmts.Return(id)
		n := node.Node{Kind: node.KindReturn, Tree: node.Tree{Stmt: id}, Span: st.Span}
		if d.Value.IsValid() {
			n.Operands = []node.ID{b.expr(d.Value)}
			n.Type = b.prog.Exprs.Get(d.Value).Type
		}
		b.emit(n)
		b.block().Term = Terminator{Kind: TermReturn}
	case ast.StmtBreak, ast.StmtContinue:
		if len(b.loops) == 0 {
			b.fail(st.Span, "%s outside of a loop", st.Kind)
			return
		}
		top := b.loops[len(b.loops)-1]
		target := top.brk
		if st.Kind == ast.StmtContinue {
			target = top.cont
		}
		if b.block().Terminated() {
			b.cur = b.newBlock()
		}
		b.jump(target)
	}
}

// cond lowers e in branch position: control reaches then when e is true and
// els otherwise. && || ! are turned into branches.
func (b *builder) cond(e ast.ExprID, then, els BlockID) {
	exprs := b.prog.Exprs
	if bin, ok := exprs.Binary(e); ok {
		switch bin.Op {
		case ast.ExprBinaryLogicalAnd:
			mid := b.newBlock()
			b.cond(bin.Left, mid, els)
			b.cur = mid
			b.cond(bin.Right, then, els)
			return
		case ast.ExprBinaryLogicalOr:
			mid := b.newBlock()
			b.cond(bin.Left, then, mid)
			b.cur = mid
			b.cond(bin.Right, then, els)
			return
		}
	}
	if un, ok := exprs.Unary(e); ok && un.Op == ast.ExprUnaryNot {
		b.cond(un.Operand, els, then)
		return
	}
	c := b.expr(e)
	b.branch(c, then, els)
}

func (b *builder) expr(id ast.ExprID) node.ID {
	exprs := b.prog.Exprs
	e := exprs.Get(id)
	if e == nil {
		b.fail(source.Span{}, "missing expression")
		return node.NoID
	}
	n := node.Node{Tree: node.Tree{Expr: id}, Span: e.Span, Type: e.Type}
	switch e.Kind {
	case ast.ExprIdent:
		d, _ := exprs.Ident(id)
		n.Kind = node.KindLocal
		n.Local = node.LocalData{Name: d.Name}
	case ast.ExprThis:
		n.Kind = node.KindExplicitThis
	case ast.ExprImplicitThis:
		n.Kind = node.KindImplicitThis
	case ast.ExprNull:
		n.Kind = node.KindNullLiteral
	case ast.ExprLit:
		d, _ := exprs.Literal(id)
		n.Kind = node.KindLiteral
		n.Literal = node.LiteralData{Kind: d.Kind, Value: d.Value}
	case ast.ExprField:
		d, _ := exprs.Field(id)
		n.Kind = node.KindFieldAccess
		n.Field = node.FieldData{Name: d.Name, Owner: d.Owner, Static: d.Static}
		if !d.Static && d.Recv.IsValid() {
			n.Operands = []node.ID{b.expr(d.Recv)}
		}
	case ast.ExprCall:
		d, _ := exprs.Call(id)
		n.Kind = node.KindMethodInvocation
		n.Call = node.CallData{Name: d.Name, Owner: d.Owner, Static: d.Static, Pure: d.Pure}
		if !d.Static && d.Recv.IsValid() {
			n.Call.HasRecv = true
			n.Operands = append(n.Operands, b.expr(d.Recv))
		}
		for _, a := range d.Args {
			n.Operands = append(n.Operands, b.expr(a))
		}
	case ast.ExprBinary:
		d, _ := exprs.Binary(id)
		switch d.Op {
		case ast.ExprBinaryLogicalAnd, ast.ExprBinaryLogicalOr:
			return b.shortCircuit(n, d)
		case ast.ExprBinaryEq:
			n.Kind = node.KindEqualTo
		case ast.ExprBinaryNotEq:
			n.Kind = node.KindNotEqual
		default:
			n.Kind = node.KindBinary
		}
		n.Binary = node.BinaryData{Op: d.Op}
		l := b.expr(d.Left)
		r := b.expr(d.Right)
		n.Operands = []node.ID{l, r}
	case ast.ExprUnary:
		d, _ := exprs.Unary(id)
		n.Kind = node.KindUnary
		if d.Op == ast.ExprUnaryNot {
			n.Kind = node.KindConditionalNot
		}
		n.Unary = node.UnaryData{Op: d.Op}
		n.Operands = []node.ID{b.expr(d.Operand)}
	case ast.ExprAssign:
		d, _ := exprs.Assign(id)
		target := b.expr(d.Target)
		value := b.expr(d.Value)
		n.Kind = node.KindAssignment
		n.Operands = []node.ID{target, value}
	case ast.ExprNew:
		d, _ := exprs.New(id)
		n.Kind = node.KindObjectCreation
		for _, a := range d.Args {
			n.Operands = append(n.Operands, b.expr(a))
		}
	case ast.ExprCast:
		d, _ := exprs.Cast(id)
		n.Kind = node.KindTypeCast
		n.Test = node.TestData{Target: d.Target}
		n.Operands = []node.ID{b.expr(d.Value)}
	case ast.ExprInstanceOf:
		d, _ := exprs.InstanceOf(id)
		n.Kind = node.KindInstanceOf
		n.Test = node.TestData{Target: d.Target}
		n.Operands = []node.ID{b.expr(d.Value)}
	case ast.ExprTernary:
		return b.ternary(n, id)
	case ast.ExprIndex:
		d, _ := exprs.Index(id)
		n.Kind = node.KindArrayAccess
		arr := b.expr(d.Array)
		idx := b.expr(d.Index)
		n.Operands = []node.ID{arr, idx}
	default:
		b.fail(e.Span, "unsupported expression kind %s", e.Kind)
		return node.NoID
	}
	return b.emit(n)
}

// shortCircuit lowers && and || in value position. The right operand is
// evaluated in its own block reached only when the left one does not decide
// the result; the conditional node sits in the join block.
func (b *builder) shortCircuit(n node.Node, d *ast.ExprBinaryData) node.ID {
	l := b.expr(d.Left)
	rhs, join := b.newBlock(), b.newBlock()
	if d.Op == ast.ExprBinaryLogicalAnd {
		n.Kind = node.KindConditionalAnd
		b.branch(l, rhs, join)
	} else {
		n.Kind = node.KindConditionalOr
		b.branch(l, join, rhs)
	}
	b.cur = rhs
	r := b.expr(d.Right)
	b.jump(join)
	b.cur = join
	n.Binary = node.BinaryData{Op: d.Op}
	n.Operands = []node.ID{l, r}
	return b.emit(n)
}

// ternary lowers c ? x : y. The condition becomes branches; the ternary
// node in the join block has the two arm values as operands.
func (b *builder) ternary(n node.Node, id ast.ExprID) node.ID {
	d, _ := b.prog.Exprs.Ternary(id)
	thenB, elseB, join := b.newBlock(), b.newBlock(), b.newBlock()
	b.cond(d.Cond, thenB, elseB)
	b.cur = thenB
	x := b.expr(d.Then)
	b.jump(join)
	b.cur = elseB
	y := b.expr(d.Else)
	b.jump(join)
	b.cur = join
	n.Kind = node.KindTernary
	n.Operands = []node.ID{x, y}
	return b.emit(n)
}
