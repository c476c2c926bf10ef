package ast

import (
	"qualflow/internal/source"
	"qualflow/internal/types"
)

// Exprs manages allocation of expressions.
type Exprs struct {
	Arena       *Arena[Expr]
	Idents      *Arena[ExprIdentData]
	Literals    *Arena[ExprLiteralData]
	Fields      *Arena[ExprFieldData]
	Calls       *Arena[ExprCallData]
	Binaries    *Arena[ExprBinaryData]
	Unaries     *Arena[ExprUnaryData]
	Assigns     *Arena[ExprAssignData]
	News        *Arena[ExprNewData]
	Casts       *Arena[ExprCastData]
	InstanceOfs *Arena[ExprInstanceOfData]
	Ternaries   *Arena[ExprTernaryData]
	Indices     *Arena[ExprIndexData]
}

// NewExprs creates a new Exprs with per-kind arenas preallocated using
// capHint. If capHint is 0, a default capacity of 1<<8 is used.
func NewExprs(capHint uint) *Exprs {
	if capHint == 0 {
		capHint = 1 << 8
	}
	return &Exprs{
		Arena:       NewArena[Expr](capHint),
		Idents:      NewArena[ExprIdentData](capHint),
		Literals:    NewArena[ExprLiteralData](capHint),
		Fields:      NewArena[ExprFieldData](capHint),
		Calls:       NewArena[ExprCallData](capHint),
		Binaries:    NewArena[ExprBinaryData](capHint),
		Unaries:     NewArena[ExprUnaryData](capHint),
		Assigns:     NewArena[ExprAssignData](capHint),
		News:        NewArena[ExprNewData](capHint),
		Casts:       NewArena[ExprCastData](capHint),
		InstanceOfs: NewArena[ExprInstanceOfData](capHint),
		Ternaries:   NewArena[ExprTernaryData](capHint),
		Indices:     NewArena[ExprIndexData](capHint),
	}
}

func (e *Exprs) new(kind ExprKind, span source.Span, typ types.TypeID, payload PayloadID) ExprID {
	return ExprID(e.Arena.Allocate(Expr{
		Kind:    kind,
		Span:    span,
		Type:    typ,
		Payload: payload,
	}))
}

// Get returns the expression with the given ID.
func (e *Exprs) Get(id ExprID) *Expr {
	return e.Arena.Get(uint32(id))
}

// SetType records the static type of id.
func (e *Exprs) SetType(id ExprID, typ types.TypeID) {
	if expr := e.Get(id); expr != nil {
		expr.Type = typ
	}
}

// NewIdent creates a new local variable reference.
func (e *Exprs) NewIdent(span source.Span, typ types.TypeID, name string) ExprID {
	payload := e.Idents.Allocate(ExprIdentData{Name: name})
	return e.new(ExprIdent, span, typ, PayloadID(payload))
}

// Ident returns the identifier data for the given expression ID.
func (e *Exprs) Ident(id ExprID) (*ExprIdentData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprIdent {
		return nil, false
	}
	return e.Idents.Get(uint32(expr.Payload)), true
}

// NewThis creates an explicit or implicit receiver reference.
func (e *Exprs) NewThis(span source.Span, typ types.TypeID, implicit bool) ExprID {
	kind := ExprThis
	if implicit {
		kind = ExprImplicitThis
	}
	return e.new(kind, span, typ, NoPayloadID)
}

// NewNull creates a null literal.
func (e *Exprs) NewNull(span source.Span, typ types.TypeID) ExprID {
	return e.new(ExprNull, span, typ, NoPayloadID)
}

// NewLiteral creates a new literal expression.
func (e *Exprs) NewLiteral(span source.Span, typ types.TypeID, kind ExprLitKind, value string) ExprID {
	payload := e.Literals.Allocate(ExprLiteralData{Kind: kind, Value: value})
	return e.new(ExprLit, span, typ, PayloadID(payload))
}

// Literal returns the literal data for the given expression ID.
func (e *Exprs) Literal(id ExprID) (*ExprLiteralData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprLit {
		return nil, false
	}
	return e.Literals.Get(uint32(expr.Payload)), true
}

// NewField creates a field read.
func (e *Exprs) NewField(span source.Span, typ types.TypeID, data ExprFieldData) ExprID {
	payload := e.Fields.Allocate(data)
	return e.new(ExprField, span, typ, PayloadID(payload))
}

// Field returns the field access data for the given expression ID.
func (e *Exprs) Field(id ExprID) (*ExprFieldData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprField {
		return nil, false
	}
	return e.Fields.Get(uint32(expr.Payload)), true
}

// NewCall creates a method invocation.
func (e *Exprs) NewCall(span source.Span, typ types.TypeID, data ExprCallData) ExprID {
	data.Args = append([]ExprID(nil), data.Args...)
	payload := e.Calls.Allocate(data)
	return e.new(ExprCall, span, typ, PayloadID(payload))
}

// Call returns the call data for the given expression ID.
func (e *Exprs) Call(id ExprID) (*ExprCallData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprCall {
		return nil, false
	}
	return e.Calls.Get(uint32(expr.Payload)), true
}

// NewBinary creates a new binary expression.
func (e *Exprs) NewBinary(span source.Span, typ types.TypeID, op ExprBinaryOp, left, right ExprID) ExprID {
	payload := e.Binaries.Allocate(ExprBinaryData{Op: op, Left: left, Right: right})
	return e.new(ExprBinary, span, typ, PayloadID(payload))
}

// Binary returns the binary data for the given expression ID.
func (e *Exprs) Binary(id ExprID) (*ExprBinaryData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprBinary {
		return nil, false
	}
	return e.Binaries.Get(uint32(expr.Payload)), true
}

// NewUnary creates a new unary expression.
func (e *Exprs) NewUnary(span source.Span, typ types.TypeID, op ExprUnaryOp, operand ExprID) ExprID {
	payload := e.Unaries.Allocate(ExprUnaryData{Op: op, Operand: operand})
	return e.new(ExprUnary, span, typ, PayloadID(payload))
}

// Unary returns the unary data for the given expression ID.
func (e *Exprs) Unary(id ExprID) (*ExprUnaryData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprUnary {
		return nil, false
	}
	return e.Unaries.Get(uint32(expr.Payload)), true
}

// NewAssign creates an assignment to a local, field or array element.
func (e *Exprs) NewAssign(span source.Span, typ types.TypeID, target, value ExprID) ExprID {
	payload := e.Assigns.Allocate(ExprAssignData{Target: target, Value: value})
	return e.new(ExprAssign, span, typ, PayloadID(payload))
}

// Assign returns the assignment data for the given expression ID.
func (e *Exprs) Assign(id ExprID) (*ExprAssignData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprAssign {
		return nil, false
	}
	return e.Assigns.Get(uint32(expr.Payload)), true
}

// NewNew creates an object creation of type typ.
func (e *Exprs) NewNew(span source.Span, typ types.TypeID, args []ExprID) ExprID {
	payload := e.News.Allocate(ExprNewData{Args: append([]ExprID(nil), args...)})
	return e.new(ExprNew, span, typ, PayloadID(payload))
}

// New returns the object creation data for the given expression ID.
func (e *Exprs) New(id ExprID) (*ExprNewData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprNew {
		return nil, false
	}
	return e.News.Get(uint32(expr.Payload)), true
}

// NewCast creates a cast of value to target; the expression type is target.
func (e *Exprs) NewCast(span source.Span, value ExprID, target types.TypeID) ExprID {
	payload := e.Casts.Allocate(ExprCastData{Value: value, Target: target})
	return e.new(ExprCast, span, target, PayloadID(payload))
}

// Cast returns the cast data for the given expression ID.
func (e *Exprs) Cast(id ExprID) (*ExprCastData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprCast {
		return nil, false
	}
	return e.Casts.Get(uint32(expr.Payload)), true
}

// NewInstanceOf creates a type test.
func (e *Exprs) NewInstanceOf(span source.Span, typ types.TypeID, value ExprID, target types.TypeID) ExprID {
	payload := e.InstanceOfs.Allocate(ExprInstanceOfData{Value: value, Target: target})
	return e.new(ExprInstanceOf, span, typ, PayloadID(payload))
}

// InstanceOf returns the type test data for the given expression ID.
func (e *Exprs) InstanceOf(id ExprID) (*ExprInstanceOfData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprInstanceOf {
		return nil, false
	}
	return e.InstanceOfs.Get(uint32(expr.Payload)), true
}

// NewTernary creates a conditional expression.
func (e *Exprs) NewTernary(span source.Span, typ types.TypeID, cond, then, els ExprID) ExprID {
	payload := e.Ternaries.Allocate(ExprTernaryData{Cond: cond, Then: then, Else: els})
	return e.new(ExprTernary, span, typ, PayloadID(payload))
}

// Ternary returns the conditional data for the given expression ID.
func (e *Exprs) Ternary(id ExprID) (*ExprTernaryData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprTernary {
		return nil, false
	}
	return e.Ternaries.Get(uint32(expr.Payload)), true
}

// NewIndex creates an array element read.
func (e *Exprs) NewIndex(span source.Span, typ types.TypeID, array, index ExprID) ExprID {
	payload := e.Indices.Allocate(ExprIndexData{Array: array, Index: index})
	return e.new(ExprIndex, span, typ, PayloadID(payload))
}

// Index returns the index data for the given expression ID.
func (e *Exprs) Index(id ExprID) (*ExprIndexData, bool) {
	expr := e.Get(id)
	if expr == nil || expr.Kind != ExprIndex {
		return nil, false
	}
	return e.Indices.Get(uint32(expr.Payload)), true
}

// Children returns the direct subexpressions of id in evaluation order.
func (e *Exprs) Children(id ExprID) []ExprID {
	expr := e.Get(id)
	if expr == nil {
		return nil
	}
	var out []ExprID
	push := func(ids ...ExprID) {
		for _, c := range ids {
			if c.IsValid() {
				out = append(out, c)
			}
		}
	}
	switch expr.Kind {
	case ExprField:
		d, _ := e.Field(id)
		push(d.Recv)
	case ExprCall:
		d, _ := e.Call(id)
		push(d.Recv)
		push(d.Args...)
	case ExprBinary:
		d, _ := e.Binary(id)
		push(d.Left, d.Right)
	case ExprUnary:
		d, _ := e.Unary(id)
		push(d.Operand)
	case ExprAssign:
		d, _ := e.Assign(id)
		push(d.Target, d.Value)
	case ExprNew:
		d, _ := e.New(id)
		push(d.Args...)
	case ExprCast:
		d, _ := e.Cast(id)
		push(d.Value)
	case ExprInstanceOf:
		d, _ := e.InstanceOf(id)
		push(d.Value)
	case ExprTernary:
		d, _ := e.Ternary(id)
		push(d.Cond, d.Then, d.Else)
	case ExprIndex:
		d, _ := e.Index(id)
		push(d.Array, d.Index)
	}
	return out
}
