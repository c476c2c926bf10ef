package ast

import (
	"strconv"
	"strings"

	"qualflow/internal/types"
)

// Render prints id as Java-like source. in may be nil, in which case casts
// and instanceof tests print the raw type id.
func (e *Exprs) Render(id ExprID, in *types.Interner) string {
	var b strings.Builder
	e.render(&b, id, in)
	return b.String()
}

func (e *Exprs) render(b *strings.Builder, id ExprID, in *types.Interner) {
	expr := e.Get(id)
	if expr == nil {
		b.WriteString("<?>")
		return
	}
	typeName := func(t types.TypeID) string {
		if in == nil {
			return "type#" + strconv.FormatUint(uint64(t), 10)
		}
		return types.Label(in, t)
	}
	args := func(ids []ExprID) {
		b.WriteByte('(')
		for i, a := range ids {
			if i > 0 {
				b.WriteString(", ")
			}
			e.render(b, a, in)
		}
		b.WriteByte(')')
	}
	switch expr.Kind {
	case ExprIdent:
		d, _ := e.Ident(id)
		b.WriteString(d.Name)
	case ExprThis, ExprImplicitThis:
		b.WriteString("this")
	case ExprNull:
		b.WriteString("null")
	case ExprLit:
		d, _ := e.Literal(id)
		switch d.Kind {
		case ExprLitString:
			b.WriteString(strconv.Quote(d.Value))
		case ExprLitChar:
			b.WriteString("'" + d.Value + "'")
		default:
			b.WriteString(d.Value)
		}
	case ExprField:
		d, _ := e.Field(id)
		e.renderRecv(b, d.Recv, in)
		b.WriteString(d.Name)
	case ExprCall:
		d, _ := e.Call(id)
		e.renderRecv(b, d.Recv, in)
		b.WriteString(d.Name)
		args(d.Args)
	case ExprBinary:
		d, _ := e.Binary(id)
		b.WriteByte('(')
		e.render(b, d.Left, in)
		b.WriteString(" " + d.Op.String() + " ")
		e.render(b, d.Right, in)
		b.WriteByte(')')
	case ExprUnary:
		d, _ := e.Unary(id)
		b.WriteString(d.Op.String())
		e.render(b, d.Operand, in)
	case ExprAssign:
		d, _ := e.Assign(id)
		e.render(b, d.Target, in)
		b.WriteString(" = ")
		e.render(b, d.Value, in)
	case ExprNew:
		d, _ := e.New(id)
		b.WriteString("new " + typeName(expr.Type))
		args(d.Args)
	case ExprCast:
		d, _ := e.Cast(id)
		b.WriteString("(" + typeName(d.Target) + ") ")
		e.render(b, d.Value, in)
	case ExprInstanceOf:
		d, _ := e.InstanceOf(id)
		e.render(b, d.Value, in)
		b.WriteString(" instanceof " + typeName(d.Target))
	case ExprTernary:
		d, _ := e.Ternary(id)
		e.render(b, d.Cond, in)
		b.WriteString(" ? ")
		e.render(b, d.Then, in)
		b.WriteString(" : ")
		e.render(b, d.Else, in)
	case ExprIndex:
		d, _ := e.Index(id)
		e.render(b, d.Array, in)
		b.WriteByte('[')
		e.render(b, d.Index, in)
		b.WriteByte(']')
	default:
		b.WriteString("<invalid>")
	}
}

// renderRecv prints "recv." unless the receiver is absent or implicit.
func (e *Exprs) renderRecv(b *strings.Builder, recv ExprID, in *types.Interner) {
	r := e.Get(recv)
	if r == nil || r.Kind == ExprImplicitThis {
		return
	}
	e.render(b, recv, in)
	b.WriteByte('.')
}
