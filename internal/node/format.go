package node

import (
	"strconv"
	"strings"

	"qualflow/internal/ast"
	"qualflow/internal/types"
)

// String renders the node as source-like text, e.g. "this.next",
// "(x == null)" or "list.get(i)". in may be nil.
func (t *Table) String(id ID, in *types.Interner) string {
	var b strings.Builder
	t.write(&b, id, in, 0)
	return b.String()
}

func (t *Table) write(b *strings.Builder, id ID, in *types.Interner, depth int) {
	n := t.Get(id)
	if n == nil {
		b.WriteString("<?>")
		return
	}
	if depth > 32 {
		b.WriteString("...")
		return
	}
	op := func(i int) {
		if i < len(n.Operands) {
			t.write(b, n.Operands[i], in, depth+1)
		} else {
			b.WriteString("<?>")
		}
	}
	typeName := func(id types.TypeID) string {
		if in == nil {
			return "type#" + strconv.FormatUint(uint64(id), 10)
		}
		return types.Label(in, id)
	}
	list := func(ids []ID) {
		b.WriteByte('(')
		for i, a := range ids {
			if i > 0 {
				b.WriteString(", ")
			}
			t.write(b, a, in, depth+1)
		}
		b.WriteByte(')')
	}
	switch n.Kind {
	case KindLocal:
		b.WriteString(n.Local.Name)
	case KindExplicitThis, KindImplicitThis:
		b.WriteString("this")
	case KindNullLiteral:
		b.WriteString("null")
	case KindLiteral:
		if n.Literal.Kind == ast.ExprLitString {
			b.WriteString(strconv.Quote(n.Literal.Value))
		} else {
			b.WriteString(n.Literal.Value)
		}
	case KindFieldAccess:
		if recv, ok := n.Receiver(); ok {
			t.write(b, recv, in, depth+1)
			b.WriteByte('.')
		}
		b.WriteString(n.Field.Name)
	case KindMethodInvocation:
		if recv, ok := n.Receiver(); ok {
			t.write(b, recv, in, depth+1)
			b.WriteByte('.')
		}
		b.WriteString(n.Call.Name)
		list(n.Args())
	case KindObjectCreation:
		b.WriteString("new " + typeName(n.Type))
		list(n.Operands)
	case KindAssignment:
		op(0)
		b.WriteString(" = ")
		op(1)
	case KindEqualTo, KindNotEqual, KindConditionalAnd, KindConditionalOr, KindBinary:
		sym := n.Binary.Op.String()
		switch n.Kind {
		case KindEqualTo:
			sym = "=="
		case KindNotEqual:
			sym = "!="
		case KindConditionalAnd:
			sym = "&&"
		case KindConditionalOr:
			sym = "||"
		}
		b.WriteByte('(')
		op(0)
		b.WriteString(" " + sym + " ")
		op(1)
		b.WriteByte(')')
	case KindConditionalNot:
		b.WriteByte('!')
		op(0)
	case KindUnary:
		b.WriteString(n.Unary.Op.String())
		op(0)
	case KindReturn:
		b.WriteString("return")
		if len(n.Operands) > 0 {
			b.WriteByte(' ')
			op(0)
		}
	case KindVariableDeclaration:
		b.WriteString(typeName(n.Decl.Declared) + " " + n.Decl.Name)
	case KindTypeCast:
		b.WriteString("(" + typeName(n.Test.Target) + ") ")
		op(0)
	case KindInstanceOf:
		op(0)
		b.WriteString(" instanceof " + typeName(n.Test.Target))
	case KindArrayAccess:
		op(0)
		b.WriteByte('[')
		op(1)
		b.WriteByte(']')
	case KindTernary:
		b.WriteString("ternary")
		list(n.Operands)
	case KindMarker:
		b.WriteString("marker (" + n.Marker + ")")
	default:
		b.WriteString("<invalid>")
	}
}
