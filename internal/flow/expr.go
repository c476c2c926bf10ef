package flow

import (
	"fmt"
	"strings"

	"qualflow/internal/ast"
	"qualflow/internal/node"
	"qualflow/internal/types"
)

// ExprKind classifies flow expressions.
type ExprKind uint8

const (
	ExprLocal ExprKind = iota + 1
	ExprThis
	ExprField
	ExprCall
	// ExprLiteral only appears as a call argument.
	ExprLiteral
)

// Expr is an expression whose value the store can track: a local, this, a
// field access whose receiver is itself a flow expression (or none for a
// static field), or a call of a side-effect free method whose receiver and
// arguments are flow expressions or literals.
type Expr struct {
	Kind  ExprKind
	Name  string        // local, field or method name, literal text
	Owner types.ClassID // declaring class of a static member
	Recv  *Expr         // nil for static members
	Args  []*Expr
	key   string
}

// Local returns the flow expression of the local variable or parameter name.
func Local(name string) *Expr {
	return finish(&Expr{Kind: ExprLocal, Name: name})
}

// This returns the flow expression of the receiver.
func This() *Expr {
	return finish(&Expr{Kind: ExprThis, Name: "this"})
}

// FieldOf returns the flow expression recv.name; recv is nil for a static
// field of owner.
func FieldOf(recv *Expr, owner types.ClassID, name string) *Expr {
	return finish(&Expr{Kind: ExprField, Name: name, Owner: owner, Recv: recv})
}

// CallOf returns the flow expression of a pure call.
func CallOf(recv *Expr, owner types.ClassID, name string, args ...*Expr) *Expr {
	return finish(&Expr{Kind: ExprCall, Name: name, Owner: owner, Recv: recv, Args: args})
}

func finish(e *Expr) *Expr {
	var b strings.Builder
	e.write(&b)
	e.key = b.String()
	return e
}

func (e *Expr) write(b *strings.Builder) {
	switch e.Kind {
	case ExprLocal, ExprThis, ExprLiteral:
		b.WriteString(e.Name)
		return
	}
	if e.Recv != nil {
		b.WriteString(e.Recv.key)
	} else {
		fmt.Fprintf(b, "class#%d", e.Owner)
	}
	b.WriteByte('.')
	b.WriteString(e.Name)
	if e.Kind == ExprCall {
		b.WriteByte('(')
		for i, a := range e.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.key)
		}
		b.WriteByte(')')
	}
}

// Key is the canonical rendering, unique per expression.
func (e *Expr) Key() string { return e.key }

func (e *Expr) String() string { return e.key }

// Mentions reports whether the local name occurs in e's receiver chain or
// call arguments. A bare local does not mention itself.
func (e *Expr) Mentions(name string) bool {
	switch e.Kind {
	case ExprField, ExprCall:
		if e.Recv != nil && e.Recv.uses(name) {
			return true
		}
		for _, a := range e.Args {
			if a.uses(name) {
				return true
			}
		}
	}
	return false
}

func (e *Expr) uses(name string) bool {
	if e.Kind == ExprLocal {
		return e.Name == name
	}
	return e.Mentions(name)
}

// DependsOnField reports whether e reads a field called name anywhere,
// including e itself.
func (e *Expr) DependsOnField(name string) bool {
	if e.Kind == ExprField && e.Name == name {
		return true
	}
	if e.Recv != nil && e.Recv.DependsOnField(name) {
		return true
	}
	for _, a := range e.Args {
		if a.DependsOnField(name) {
			return true
		}
	}
	return false
}

// ExprOf maps a node to its flow expression. Nodes that are not trackable
// (literals, arithmetic, impure calls, calls with untrackable arguments)
// report false.
func ExprOf(t *node.Table, id node.ID) (*Expr, bool) {
	n := t.Get(id)
	if n == nil {
		return nil, false
	}
	switch n.Kind {
	case node.KindLocal:
		return Local(n.Local.Name), true
	case node.KindExplicitThis, node.KindImplicitThis:
		return This(), true
	case node.KindFieldAccess:
		if n.Field.Static {
			return FieldOf(nil, n.Field.Owner, n.Field.Name), true
		}
		recvID, ok := n.Receiver()
		if !ok {
			return nil, false
		}
		recv, ok := ExprOf(t, recvID)
		if !ok {
			return nil, false
		}
		return FieldOf(recv, n.Field.Owner, n.Field.Name), true
	case node.KindMethodInvocation:
		if !n.Call.Pure {
			return nil, false
		}
		var recv *Expr
		if id, ok := n.Receiver(); ok {
			r, ok := ExprOf(t, id)
			if !ok {
				return nil, false
			}
			recv = r
		}
		args := make([]*Expr, 0, len(n.Args()))
		for _, a := range n.Args() {
			ae, ok := argExpr(t, a)
			if !ok {
				return nil, false
			}
			args = append(args, ae)
		}
		return CallOf(recv, n.Call.Owner, n.Call.Name, args...), true
	}
	return nil, false
}

func argExpr(t *node.Table, id node.ID) (*Expr, bool) {
	n := t.Get(id)
	if n == nil {
		return nil, false
	}
	switch n.Kind {
	case node.KindNullLiteral:
		return finish(&Expr{Kind: ExprLiteral, Name: "null"}), true
	case node.KindLiteral:
		text := n.Literal.Value
		if n.Literal.Kind == ast.ExprLitString {
			text = fmt.Sprintf("%q", text)
		}
		return finish(&Expr{Kind: ExprLiteral, Name: text}), true
	}
	return ExprOf(t, id)
}
