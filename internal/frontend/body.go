package frontend

import (
	"qualflow/internal/ast"
	"qualflow/internal/diag"
	"qualflow/internal/source"
	"qualflow/internal/types"
)

// body lowers the statements of one method, or one field initialiser, into
// the program arenas.
type body struct {
	l      *loader
	cls    *classState
	method *ast.Method // nil for field initialisers
	static bool
	types  *typeScope
	src    text // scalar being lowered; expression offsets are relative to it
	locals []map[string]types.TypeID
	loops  int
}

func (l *loader) lowerBodies() {
	for _, cs := range l.classes {
		for i, f := range cs.decl.Fields {
			fm := cs.fields[i]
			if !fm.Init.Set {
				continue
			}
			b := &body{l: l, cls: cs, static: f.Static, types: cs.params.scope}
			f.Init = b.exprText(fm.Init)
		}
		for _, ms := range cs.methods {
			if ms.model.Body == nil {
				continue
			}
			m := ms.decl
			b := &body{l: l, cls: cs, method: m, static: m.Static, types: ms.params.scope}
			b.push()
			for _, p := range m.Params {
				b.declare(p.Name, p.Type)
			}
			m.Body = b.block(*ms.model.Body, m.Span)
			b.pop()
		}
	}
}

func (b *body) push() { b.locals = append(b.locals, make(map[string]types.TypeID)) }
func (b *body) pop()  { b.locals = b.locals[:len(b.locals)-1] }

func (b *body) declare(name string, t types.TypeID) {
	b.locals[len(b.locals)-1][name] = t
}

func (b *body) local(name string) (types.TypeID, bool) {
	for i := len(b.locals) - 1; i >= 0; i-- {
		if t, ok := b.locals[i][name]; ok {
			return t, true
		}
	}
	return types.NoTypeID, false
}

func (b *body) span(off, end uint32) source.Span { return b.l.spanOf(b.src, off, end) }

func (b *body) errorf(code diag.Code, off, end uint32, format string, args ...any) {
	b.l.errorf(code, b.span(off, end), format, args...)
}

func (b *body) typeOf(id ast.ExprID) types.TypeID {
	if e := b.l.prog.Exprs.Get(id); e != nil {
		return e.Type
	}
	return types.NoTypeID
}

func (b *body) label(id types.TypeID) string { return types.Label(b.l.in, id) }

// Statements -----------------------------------------------------------------

func (b *body) block(models []stmtModel, span source.Span) ast.StmtID {
	b.push()
	defer b.pop()
	ids := make([]ast.StmtID, 0, len(models))
	for i := range models {
		if id := b.stmt(&models[i]); id.IsValid() {
			ids = append(ids, id)
		}
	}
	return b.l.prog.Stmts.NewBlock(span, ids)
}

func (b *body) stmt(sm *stmtModel) ast.StmtID {
	stmts := b.l.prog.Stmts
	line := b.l.lineSpan(sm.line)
	forms := 0
	for _, set := range []bool{sm.Line.Set, sm.If.Set, sm.While.Set, sm.Block != nil} {
		if set {
			forms++
		}
	}
	if forms != 1 {
		b.l.errorf(diag.FrontBadStatement, line, "a statement is a line, an if, a while or a block")
		return ast.NoStmtID
	}
	switch {
	case sm.Line.Set:
		return b.simple(sm.Line)
	case sm.If.Set:
		cond := b.cond(sm.If)
		then := b.block(sm.Then, line)
		els := ast.NoStmtID
		if sm.Else != nil {
			els = b.block(*sm.Else, line)
		}
		return stmts.NewIf(line, cond, then, els)
	case sm.While.Set:
		cond := b.cond(sm.While)
		b.loops++
		body := b.block(sm.Do, line)
		b.loops--
		return stmts.NewWhile(line, cond, body)
	default:
		return b.block(*sm.Block, line)
	}
}

// cond lowers a branch or loop condition, which must be boolean.
func (b *body) cond(t text) ast.ExprID {
	id := b.exprText(t)
	if id.IsValid() && b.typeOf(id) != b.l.in.Builtins().Boolean {
		b.l.errorf(diag.FrontTypeMismatch, b.l.textSpan(t), "condition must be boolean, found %s", b.label(b.typeOf(id)))
	}
	return id
}

func (b *body) exprText(t text) ast.ExprID {
	x, err := parseExprString(t.Value)
	if err != nil {
		b.l.syntaxError(t, err)
		return ast.NoExprID
	}
	b.src = t
	return b.expr(x)
}

func (b *body) simple(t text) ast.StmtID {
	s, err := parseStmtString(t.Value)
	if err != nil {
		b.l.syntaxError(t, err)
		return ast.NoStmtID
	}
	b.src = t
	stmts := b.l.prog.Stmts
	span := b.span(s.Off, s.End)
	switch s.Kind {
	case stVar:
		return b.varDecl(s, span)
	case stReturn:
		return b.ret(s, span)
	case stBreak, stContinue:
		if b.loops == 0 {
			b.l.errorf(diag.FrontBreakOutside, span, "%s outside of a loop", t.Value)
			return ast.NoStmtID
		}
		kind := ast.StmtBreak
		if s.Kind == stContinue {
			kind = ast.StmtContinue
		}
		return stmts.NewJump(span, kind)
	default:
		x := b.expr(s.X)
		if !x.IsValid() {
			return ast.NoStmtID
		}
		return stmts.NewExpr(span, x)
	}
}

func (b *body) varDecl(s *stmtSyntax, span source.Span) ast.StmtID {
	if _, dup := b.local(s.Name); dup {
		b.l.errorf(diag.FrontDuplicateDecl, span, "variable %s is already declared", s.Name)
		return ast.NoStmtID
	}
	data := ast.StmtVarData{Name: s.Name}
	data.Type = b.l.typeIn(b.src, s.Type, b.types, placement{target: ast.TargetLocalVariable, index: -1}, &data.Annotations)
	if data.Type == b.l.in.Builtins().Void {
		b.l.errorf(diag.FrontTypeMismatch, span, "variable %s cannot be void", s.Name)
	}
	if s.X != nil {
		data.Init = b.expr(s.X)
	}
	b.declare(s.Name, data.Type)
	return b.l.prog.Stmts.NewVar(span, data)
}

func (b *body) ret(s *stmtSyntax, span source.Span) ast.StmtID {
	void := b.method.Result == b.l.in.Builtins().Void
	value := ast.NoExprID
	switch {
	case s.X != nil && void:
		b.l.errorf(diag.FrontTypeMismatch, span, "%s returns no value", b.method.QualifiedName())
	case s.X == nil && !void:
		b.l.errorf(diag.FrontTypeMismatch, span, "%s must return a %s", b.method.QualifiedName(), b.label(b.method.Result))
	case s.X != nil:
		value = b.expr(s.X)
	}
	return b.l.prog.Stmts.NewReturn(span, value)
}

// Expressions ----------------------------------------------------------------

func (b *body) expr(x *exprSyntax) ast.ExprID {
	exprs := b.l.prog.Exprs
	bt := b.l.in.Builtins()
	span := b.span(x.Off, x.End)
	switch x.Kind {
	case sxIdent:
		if t, ok := b.local(x.Name); ok {
			return exprs.NewIdent(span, t, x.Name)
		}
		if id, ok := b.implicitField(x); ok {
			return id
		}
		if _, ok := b.l.in.ClassByName(x.Name); ok {
			b.errorf(diag.FrontBadExpression, x.Off, x.End, "class %s is not a value", x.Name)
		} else {
			b.errorf(diag.FrontUnknownName, x.Off, x.End, "unknown name %s", x.Name)
		}
		return ast.NoExprID
	case sxThis:
		if b.static {
			b.errorf(diag.FrontBadExpression, x.Off, x.End, "this is not available in a static context")
			return ast.NoExprID
		}
		return exprs.NewThis(span, b.cls.decl.Type, false)
	case sxNull:
		return exprs.NewNull(span, bt.Null)
	case sxLit:
		return exprs.NewLiteral(span, b.litType(x.Lit), x.Lit, x.Name)
	case sxSelect:
		return b.selectField(x, span)
	case sxCall:
		return b.call(x, span)
	case sxBinary:
		return b.binary(x, span)
	case sxUnary:
		return b.unary(x, span)
	case sxAssign:
		return b.assign(x, span)
	case sxNew:
		return b.newObject(x, span)
	case sxCast:
		value := b.expr(x.X)
		target := b.l.typeIn(b.src, x.Type, b.types, placement{}, nil)
		if !value.IsValid() {
			return ast.NoExprID
		}
		return exprs.NewCast(span, value, target)
	case sxInstanceOf:
		value := b.expr(x.X)
		target := b.l.typeIn(b.src, x.Type, b.types, placement{}, nil)
		if !value.IsValid() {
			return ast.NoExprID
		}
		if !b.l.in.IsReference(b.typeOf(value)) {
			b.errorf(diag.FrontTypeMismatch, x.X.Off, x.X.End, "instanceof needs a reference, found %s", b.label(b.typeOf(value)))
		}
		return exprs.NewInstanceOf(span, bt.Boolean, value, target)
	case sxTernary:
		cond := b.expr(x.X)
		then := b.expr(x.Y)
		els := b.expr(x.Z)
		if !cond.IsValid() || !then.IsValid() || !els.IsValid() {
			return ast.NoExprID
		}
		if b.typeOf(cond) != bt.Boolean {
			b.errorf(diag.FrontTypeMismatch, x.X.Off, x.X.End, "condition must be boolean, found %s", b.label(b.typeOf(cond)))
		}
		return exprs.NewTernary(span, b.join(b.typeOf(then), b.typeOf(els)), cond, then, els)
	case sxIndex:
		arr := b.expr(x.X)
		idx := b.expr(x.Y)
		if !arr.IsValid() || !idx.IsValid() {
			return ast.NoExprID
		}
		at, ok := b.l.in.Lookup(b.typeOf(arr))
		if !ok || at.Kind != types.KindArray {
			b.errorf(diag.FrontTypeMismatch, x.X.Off, x.X.End, "cannot index %s", b.label(b.typeOf(arr)))
			return ast.NoExprID
		}
		return exprs.NewIndex(span, at.Elem, arr, idx)
	}
	b.errorf(diag.FrontBadExpression, x.Off, x.End, "unsupported expression")
	return ast.NoExprID
}

func (b *body) litType(k ast.ExprLitKind) types.TypeID {
	bt := b.l.in.Builtins()
	switch k {
	case ast.ExprLitString:
		return bt.String
	case ast.ExprLitBool:
		return bt.Boolean
	case ast.ExprLitChar:
		return bt.Char
	case ast.ExprLitFloat:
		return bt.Double
	}
	return bt.Int
}

// join picks the type of a conditional expression.
func (b *body) join(a, c types.TypeID) types.TypeID {
	bt := b.l.in.Builtins()
	switch {
	case a == c:
		return a
	case a == bt.Null:
		return c
	case c == bt.Null:
		return a
	case b.l.in.IsReference(a) && b.l.in.IsReference(c):
		return bt.Object
	}
	return a
}

// staticClass reports whether x names a class rather than a value.
func (b *body) staticClass(x *exprSyntax) (types.ClassID, bool) {
	if x == nil || x.Kind != sxIdent {
		return types.NoClassID, false
	}
	if _, ok := b.local(x.Name); ok {
		return types.NoClassID, false
	}
	if _, _, ok := b.findField(b.cls.decl.Type, x.Name); ok {
		return types.NoClassID, false
	}
	return b.l.in.ClassByName(x.Name)
}

// receiver lowers the receiver of a member access. It returns the receiver
// expression, NoExprID for a class name, and the type members are looked up
// on.
func (b *body) receiver(x *exprSyntax) (ast.ExprID, types.TypeID, bool, bool) {
	if cls, ok := b.staticClass(x); ok {
		return ast.NoExprID, b.l.in.Intern(types.MakeDeclared(cls)), true, true
	}
	recv := b.expr(x)
	if !recv.IsValid() {
		return ast.NoExprID, types.NoTypeID, false, false
	}
	return recv, b.typeOf(recv), false, true
}

func (b *body) implicitThis(x *exprSyntax, member string) (ast.ExprID, bool) {
	if b.static {
		b.errorf(diag.FrontBadExpression, x.Off, x.End, "instance member %s used in a static context", member)
		return ast.NoExprID, false
	}
	return b.l.prog.Exprs.NewThis(b.span(x.Off, x.Off), b.cls.decl.Type, true), true
}

func (b *body) implicitField(x *exprSyntax) (ast.ExprID, bool) {
	f, owner, ok := b.findField(b.cls.decl.Type, x.Name)
	if !ok {
		return ast.NoExprID, false
	}
	span := b.span(x.Off, x.End)
	data := ast.ExprFieldData{Name: x.Name, Owner: owner, Static: f.Static}
	if !f.Static {
		recv, ok := b.implicitThis(x, x.Name)
		if !ok {
			return ast.NoExprID, true
		}
		data.Recv = recv
	}
	return b.l.prog.Exprs.NewField(span, f.Type, data), true
}

func (b *body) selectField(x *exprSyntax, span source.Span) ast.ExprID {
	recv, rt, static, ok := b.receiver(x.X)
	if !ok {
		return ast.NoExprID
	}
	if b.l.in.Kind(rt) == types.KindArray && x.Name == "length" && !static {
		return b.l.prog.Exprs.NewField(span, b.l.in.Builtins().Int, ast.ExprFieldData{Recv: recv, Name: x.Name})
	}
	f, owner, ok := b.findField(rt, x.Name)
	if !ok {
		b.errorf(diag.FrontUnknownMember, x.Off, x.End, "%s has no field %s", b.label(rt), x.Name)
		return ast.NoExprID
	}
	if static && !f.Static {
		b.errorf(diag.FrontBadExpression, x.Off, x.End, "field %s is not static", x.Name)
		return ast.NoExprID
	}
	data := ast.ExprFieldData{Name: x.Name, Owner: owner, Static: f.Static}
	if !f.Static {
		data.Recv = recv
	}
	return b.l.prog.Exprs.NewField(span, f.Type, data)
}

func (b *body) call(x *exprSyntax, span source.Span) ast.ExprID {
	var (
		recv   ast.ExprID
		rt     types.TypeID
		static bool
		ok     bool
	)
	if x.X == nil {
		rt = b.cls.decl.Type
	} else if recv, rt, static, ok = b.receiver(x.X); !ok {
		return ast.NoExprID
	}
	args, ok := b.args(x.Args)
	if !ok {
		return ast.NoExprID
	}
	m, owner, ok := b.findMethod(rt, x.Name, len(args))
	if !ok {
		b.errorf(diag.FrontUnknownMember, x.Off, x.End, "%s has no method %s with %d arguments", b.label(rt), x.Name, len(args))
		return ast.NoExprID
	}
	if static && !m.Static {
		b.errorf(diag.FrontBadExpression, x.Off, x.End, "method %s is not static", x.Name)
		return ast.NoExprID
	}
	data := ast.ExprCallData{Name: x.Name, Args: args, Owner: owner, Static: m.Static, Pure: m.Pure}
	if !m.Static {
		if x.X == nil {
			if recv, ok = b.implicitThis(x, x.Name); !ok {
				return ast.NoExprID
			}
		}
		data.Recv = recv
	}
	return b.l.prog.Exprs.NewCall(span, m.Result, data)
}

func (b *body) args(xs []*exprSyntax) ([]ast.ExprID, bool) {
	out := make([]ast.ExprID, 0, len(xs))
	ok := true
	for _, a := range xs {
		id := b.expr(a)
		if !id.IsValid() {
			ok = false
		}
		out = append(out, id)
	}
	return out, ok
}

func (b *body) newObject(x *exprSyntax, span source.Span) ast.ExprID {
	t := b.l.typeIn(b.src, x.Type, b.types, placement{}, nil)
	args, ok := b.args(x.Args)
	if !ok {
		return ast.NoExprID
	}
	if b.l.in.Kind(t) != types.KindDeclared {
		b.errorf(diag.FrontTypeMismatch, x.Type.Off, x.Type.End, "cannot instantiate %s", b.label(t))
		return ast.NoExprID
	}
	if b.l.in.IsInterface(t) {
		b.errorf(diag.FrontTypeMismatch, x.Type.Off, x.Type.End, "cannot instantiate interface %s", b.label(t))
		return ast.NoExprID
	}
	cls, _ := b.l.in.ClassOf(t)
	info, _ := b.l.in.Class(cls)
	ctors, match := 0, false
	for _, m := range info.Methods {
		if m.Name == ConstructorName {
			ctors++
			match = match || len(m.Params) == len(args)
		}
	}
	if (ctors == 0 && len(args) != 0) || (ctors > 0 && !match) {
		b.errorf(diag.FrontArityMismatch, x.Off, x.End, "%s has no constructor with %d arguments", b.label(t), len(args))
		return ast.NoExprID
	}
	return b.l.prog.Exprs.NewNew(span, t, args)
}

var binaryOps = map[tokKind]ast.ExprBinaryOp{
	tokPlus:    ast.ExprBinaryAdd,
	tokMinus:   ast.ExprBinarySub,
	tokStar:    ast.ExprBinaryMul,
	tokSlash:   ast.ExprBinaryDiv,
	tokPercent: ast.ExprBinaryRem,
	tokLt:      ast.ExprBinaryLess,
	tokLtEq:    ast.ExprBinaryLessEq,
	tokGt:      ast.ExprBinaryGreater,
	tokGtEq:    ast.ExprBinaryGreaterEq,
	tokEqEq:    ast.ExprBinaryEq,
	tokBangEq:  ast.ExprBinaryNotEq,
	tokAndAnd:  ast.ExprBinaryLogicalAnd,
	tokOrOr:    ast.ExprBinaryLogicalOr,
}

func (b *body) binary(x *exprSyntax, span source.Span) ast.ExprID {
	op, ok := binaryOps[x.Op]
	if !ok {
		b.errorf(diag.FrontBadExpression, x.Off, x.End, "unsupported operator %s", x.Op)
		return ast.NoExprID
	}
	left := b.expr(x.X)
	right := b.expr(x.Y)
	if !left.IsValid() || !right.IsValid() {
		return ast.NoExprID
	}
	bt := b.l.in.Builtins()
	lt, rt := b.typeOf(left), b.typeOf(right)
	var typ types.TypeID
	switch {
	case op == ast.ExprBinaryLogicalAnd || op == ast.ExprBinaryLogicalOr:
		if lt != bt.Boolean || rt != bt.Boolean {
			b.errorf(diag.FrontTypeMismatch, x.Off, x.End, "%s needs boolean operands, found %s and %s", op, b.label(lt), b.label(rt))
		}
		typ = bt.Boolean
	case op == ast.ExprBinaryEq || op == ast.ExprBinaryNotEq:
		typ = bt.Boolean
	case op == ast.ExprBinaryAdd && (lt == bt.String || rt == bt.String):
		typ = bt.String
	default:
		num, ok := b.numeric(lt, rt)
		if !ok {
			b.errorf(diag.FrontTypeMismatch, x.Off, x.End, "%s needs numeric operands, found %s and %s", op, b.label(lt), b.label(rt))
		}
		typ = num
		if op.IsComparison() {
			typ = bt.Boolean
		}
	}
	return b.l.prog.Exprs.NewBinary(span, typ, op, left, right)
}

// numeric applies binary numeric promotion.
func (b *body) numeric(a, c types.TypeID) (types.TypeID, bool) {
	bt := b.l.in.Builtins()
	isNum := func(t types.TypeID) bool {
		tt, ok := b.l.in.Lookup(t)
		return ok && tt.Kind == types.KindPrimitive && t != bt.Boolean
	}
	if !isNum(a) || !isNum(c) {
		return bt.Int, false
	}
	switch {
	case a == bt.Double || c == bt.Double:
		return bt.Double, true
	case a == bt.Float || c == bt.Float:
		return bt.Float, true
	case a == bt.Long || c == bt.Long:
		return bt.Long, true
	}
	return bt.Int, true
}

func (b *body) unary(x *exprSyntax, span source.Span) ast.ExprID {
	operand := b.expr(x.X)
	if !operand.IsValid() {
		return ast.NoExprID
	}
	bt := b.l.in.Builtins()
	t := b.typeOf(operand)
	switch x.Op {
	case tokBang:
		if t != bt.Boolean {
			b.errorf(diag.FrontTypeMismatch, x.Off, x.End, "! needs a boolean, found %s", b.label(t))
		}
		return b.l.prog.Exprs.NewUnary(span, bt.Boolean, ast.ExprUnaryNot, operand)
	case tokMinus, tokPlus:
		num, ok := b.numeric(t, t)
		if !ok {
			b.errorf(diag.FrontTypeMismatch, x.Off, x.End, "%s needs a number, found %s", x.Op, b.label(t))
		}
		op := ast.ExprUnaryMinus
		if x.Op == tokPlus {
			op = ast.ExprUnaryPlus
		}
		return b.l.prog.Exprs.NewUnary(span, num, op, operand)
	}
	b.errorf(diag.FrontBadExpression, x.Off, x.End, "unsupported operator %s", x.Op)
	return ast.NoExprID
}

func (b *body) assign(x *exprSyntax, span source.Span) ast.ExprID {
	switch x.X.Kind {
	case sxIdent, sxSelect, sxIndex:
	default:
		b.errorf(diag.FrontBadExpression, x.X.Off, x.X.End, "cannot assign to this expression")
		return ast.NoExprID
	}
	target := b.expr(x.X)
	value := b.expr(x.Y)
	if !target.IsValid() || !value.IsValid() {
		return ast.NoExprID
	}
	return b.l.prog.Exprs.NewAssign(span, b.typeOf(target), target, value)
}

// Members --------------------------------------------------------------------

// findField looks name up on t and its supertypes. The field type has the
// type arguments of the matched supertype substituted.
func (b *body) findField(t types.TypeID, name string) (types.Field, types.ClassID, bool) {
	var (
		found types.Field
		owner types.ClassID
	)
	ok := b.walkMembers(t, func(st types.TypeID, cls types.ClassID, info types.ClassInfo) bool {
		for _, f := range info.Fields {
			if f.Name == name {
				found, owner = f, cls
				found.Type = b.l.in.Subst(f.Type, b.l.in.Bindings(st))
				return true
			}
		}
		return false
	})
	return found, owner, ok
}

// findMethod resolves a call by name and arity, the first match in
// supertype order winning.
func (b *body) findMethod(t types.TypeID, name string, arity int) (types.Method, types.ClassID, bool) {
	var (
		found types.Method
		owner types.ClassID
	)
	ok := b.walkMembers(t, func(st types.TypeID, cls types.ClassID, info types.ClassInfo) bool {
		for _, m := range info.Methods {
			if m.Name == name && len(m.Params) == arity && name != ConstructorName {
				found, owner = m, cls
				found.Result = b.l.in.Subst(m.Result, b.l.in.Bindings(st))
				return true
			}
		}
		return false
	})
	return found, owner, ok
}

func (b *body) walkMembers(start types.TypeID, visit func(types.TypeID, types.ClassID, types.ClassInfo) bool) bool {
	in := b.l.in
	seen := make(map[types.TypeID]bool)
	queue := []types.TypeID{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		switch in.Kind(cur) {
		case types.KindDeclared:
			cls, _ := in.ClassOf(cur)
			info, _ := in.Class(cls)
			if visit(cur, cls, info) {
				return true
			}
		case types.KindTypeVar, types.KindWildcard, types.KindIntersection:
		default:
			continue
		}
		queue = append(queue, in.DirectSupers(cur)...)
	}
	return false
}
