package ast

import (
	"qualflow/internal/source"
	"qualflow/internal/types"
)

type ExprKind uint8

const (
	ExprInvalid ExprKind = iota
	ExprIdent
	ExprThis
	ExprImplicitThis
	ExprNull
	ExprLit
	ExprField
	ExprCall
	ExprBinary
	ExprUnary
	ExprAssign
	ExprNew
	ExprCast
	ExprInstanceOf
	ExprTernary
	ExprIndex
)

var exprKindNames = [...]string{
	ExprInvalid:      "invalid",
	ExprIdent:        "ident",
	ExprThis:         "this",
	ExprImplicitThis: "implicit-this",
	ExprNull:         "null",
	ExprLit:          "literal",
	ExprField:        "field",
	ExprCall:         "call",
	ExprBinary:       "binary",
	ExprUnary:        "unary",
	ExprAssign:       "assign",
	ExprNew:          "new",
	ExprCast:         "cast",
	ExprInstanceOf:   "instanceof",
	ExprTernary:      "ternary",
	ExprIndex:        "index",
}

func (k ExprKind) String() string {
	if int(k) < len(exprKindNames) {
		return exprKindNames[k]
	}
	return "invalid"
}

// Expr is the common header of every expression. Type is the static type
// assigned by the front end.
type Expr struct {
	Kind    ExprKind
	Span    source.Span
	Type    types.TypeID
	Payload PayloadID
}

type ExprLitKind uint8

const (
	ExprLitString ExprLitKind = iota
	ExprLitInt
	ExprLitBool
	ExprLitChar
	ExprLitFloat
)

func (k ExprLitKind) String() string {
	switch k {
	case ExprLitString:
		return "string"
	case ExprLitInt:
		return "int"
	case ExprLitBool:
		return "bool"
	case ExprLitChar:
		return "char"
	case ExprLitFloat:
		return "float"
	}
	return "literal"
}

type ExprBinaryOp uint8

const (
	ExprBinaryAdd ExprBinaryOp = iota
	ExprBinarySub
	ExprBinaryMul
	ExprBinaryDiv
	ExprBinaryRem
	ExprBinaryLess
	ExprBinaryLessEq
	ExprBinaryGreater
	ExprBinaryGreaterEq
	ExprBinaryEq
	ExprBinaryNotEq
	ExprBinaryLogicalAnd
	ExprBinaryLogicalOr
)

var binaryOpText = [...]string{
	ExprBinaryAdd:        "+",
	ExprBinarySub:        "-",
	ExprBinaryMul:        "*",
	ExprBinaryDiv:        "/",
	ExprBinaryRem:        "%",
	ExprBinaryLess:       "<",
	ExprBinaryLessEq:     "<=",
	ExprBinaryGreater:    ">",
	ExprBinaryGreaterEq:  ">=",
	ExprBinaryEq:         "==",
	ExprBinaryNotEq:      "!=",
	ExprBinaryLogicalAnd: "&&",
	ExprBinaryLogicalOr:  "||",
}

func (op ExprBinaryOp) String() string {
	if int(op) < len(binaryOpText) {
		return binaryOpText[op]
	}
	return "?"
}

// IsComparison reports whether op yields a boolean from two operands.
func (op ExprBinaryOp) IsComparison() bool {
	return op >= ExprBinaryLess && op <= ExprBinaryNotEq
}

type ExprUnaryOp uint8

const (
	ExprUnaryNot ExprUnaryOp = iota
	ExprUnaryMinus
	ExprUnaryPlus
)

func (op ExprUnaryOp) String() string {
	switch op {
	case ExprUnaryNot:
		return "!"
	case ExprUnaryMinus:
		return "-"
	case ExprUnaryPlus:
		return "+"
	}
	return "?"
}

// ExprIdentData names a local variable or parameter.
type ExprIdentData struct {
	Name string
}

type ExprLiteralData struct {
	Kind  ExprLitKind
	Value string
}

// ExprFieldData is a field read. Recv is NoExprID for static fields.
type ExprFieldData struct {
	Recv   ExprID
	Name   string
	Owner  types.ClassID
	Static bool
}

// ExprCallData is a method invocation. Pure marks methods declared free of
// side effects; their results may be tracked by dataflow.
type ExprCallData struct {
	Recv   ExprID
	Name   string
	Args   []ExprID
	Owner  types.ClassID
	Static bool
	Pure   bool
}

type ExprBinaryData struct {
	Op    ExprBinaryOp
	Left  ExprID
	Right ExprID
}

type ExprUnaryData struct {
	Op      ExprUnaryOp
	Operand ExprID
}

type ExprAssignData struct {
	Target ExprID
	Value  ExprID
}

// ExprNewData creates an object of the expression's own type.
type ExprNewData struct {
	Args []ExprID
}

type ExprCastData struct {
	Value  ExprID
	Target types.TypeID
}

type ExprInstanceOfData struct {
	Value  ExprID
	Target types.TypeID
}

type ExprTernaryData struct {
	Cond ExprID
	Then ExprID
	Else ExprID
}

type ExprIndexData struct {
	Array ExprID
	Index ExprID
}
