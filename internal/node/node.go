// Package node is the node model the control flow graph is built from: one
// node per evaluated sub-expression or statement effect, in evaluation
// order. A node records the tree it came from, its static type and its
// operands; operands are node IDs owned by the same Table.
package node

import (
	"qualflow/internal/ast"
	"qualflow/internal/source"
	"qualflow/internal/types"
)

// ID indexes a node within its Table.
type ID int32

const NoID ID = -1

type Kind uint8

const (
	KindInvalid Kind = iota
	KindLocal
	KindFieldAccess
	KindMethodInvocation
	KindAssignment
	KindEqualTo
	KindNotEqual
	KindConditionalAnd
	KindConditionalOr
	KindConditionalNot
	KindNullLiteral
	KindLiteral
	KindObjectCreation
	KindExplicitThis
	KindImplicitThis
	KindReturn
	KindVariableDeclaration
	KindTypeCast
	KindInstanceOf
	KindArrayAccess
	KindBinary
	KindUnary
	KindTernary
	KindMarker

	numKinds
)

var kindNames = [...]string{
	KindInvalid:             "invalid",
	KindLocal:               "local",
	KindFieldAccess:         "field_access",
	KindMethodInvocation:    "method_invocation",
	KindAssignment:          "assignment",
	KindEqualTo:             "equal_to",
	KindNotEqual:            "not_equal",
	KindConditionalAnd:      "conditional_and",
	KindConditionalOr:       "conditional_or",
	KindConditionalNot:      "conditional_not",
	KindNullLiteral:         "null_literal",
	KindLiteral:             "literal",
	KindObjectCreation:      "object_creation",
	KindExplicitThis:        "explicit_this",
	KindImplicitThis:        "implicit_this",
	KindReturn:              "return",
	KindVariableDeclaration: "variable_declaration",
	KindTypeCast:            "type_cast",
	KindInstanceOf:          "instanceof",
	KindArrayAccess:         "array_access",
	KindBinary:              "binary",
	KindUnary:               "unary",
	KindTernary:             "ternary",
	KindMarker:              "marker",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// NumKinds is the number of node kinds, for tables indexed by Kind.
const NumKinds = int(numKinds)

// Kinds returns every valid kind.
func Kinds() []Kind {
	out := make([]Kind, 0, NumKinds-1)
	for k := KindLocal; k < numKinds; k++ {
		out = append(out, k)
	}
	return out
}

// ParseKind resolves the names printed by Kind.String.
func ParseKind(s string) (Kind, bool) {
	for k := KindLocal; k < numKinds; k++ {
		if kindNames[k] == s {
			return k, true
		}
	}
	return KindInvalid, false
}

// Tree links a node to the syntax it was lowered from. Statement nodes
// (return, variable declaration) set Stmt, everything else sets Expr.
type Tree struct {
	Expr ast.ExprID
	Stmt ast.StmtID
}

type LocalData struct {
	Name string
}

type FieldData struct {
	Name   string
	Owner  types.ClassID
	Static bool
}

// CallData describes a method invocation. With HasRecv the first operand is
// the receiver and the rest are arguments.
type CallData struct {
	Name    string
	Owner   types.ClassID
	Static  bool
	Pure    bool
	HasRecv bool
}

type LiteralData struct {
	Kind  ast.ExprLitKind
	Value string
}

type BinaryData struct {
	Op ast.ExprBinaryOp
}

type UnaryData struct {
	Op ast.ExprUnaryOp
}

// DeclData names a declared local and its declared type.
type DeclData struct {
	Name     string
	Declared types.TypeID
}

// TestData is the target type of a cast or instanceof.
type TestData struct {
	Target types.TypeID
}

// Node is one program point. Only the payload matching Kind is meaningful.
//
// Operand layout by kind: field access [receiver] unless static; method
// invocation [receiver, args...] or [args...]; assignment [target, value];
// binary, comparison and conditional and/or [left, right]; not, unary, cast
// and instanceof [operand]; array access [array, index]; object creation
// [args...]; return [value] or none; ternary [then value, else value].
type Node struct {
	ID       ID
	Kind     Kind
	Tree     Tree
	Span     source.Span
	Type     types.TypeID
	Operands []ID

	Local   LocalData
	Field   FieldData
	Call    CallData
	Literal LiteralData
	Binary  BinaryData
	Unary   UnaryData
	Decl    DeclData
	Test    TestData
	Marker  string
}

// Receiver returns the receiver operand of a field access or method
// invocation.
func (n *Node) Receiver() (ID, bool) {
	switch n.Kind {
	case KindFieldAccess:
		if !n.Field.Static && len(n.Operands) > 0 {
			return n.Operands[0], true
		}
	case KindMethodInvocation:
		if n.Call.HasRecv && len(n.Operands) > 0 {
			return n.Operands[0], true
		}
	}
	return NoID, false
}

// Args returns the argument operands of a method invocation or object
// creation.
func (n *Node) Args() []ID {
	switch n.Kind {
	case KindMethodInvocation:
		if n.Call.HasRecv && len(n.Operands) > 0 {
			return n.Operands[1:]
		}
		return n.Operands
	case KindObjectCreation:
		return n.Operands
	}
	return nil
}

// IsConditional reports whether the node yields a boolean that may split
// the flow into then and else stores.
func (n *Node) IsConditional() bool {
	switch n.Kind {
	case KindEqualTo, KindNotEqual, KindConditionalAnd, KindConditionalOr, KindConditionalNot, KindInstanceOf:
		return true
	case KindBinary:
		return n.Binary.Op.IsComparison()
	}
	return false
}
