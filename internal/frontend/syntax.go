package frontend

import "qualflow/internal/ast"

// The parser produces these untyped trees; load.go resolves them against
// the declared classes and lowers them into ast and types.

type annoSyntax struct {
	Name     string
	Args     []string
	Off, End uint32
}

// typeSyntax is a written type with its inline annotations. Dims lists the
// annotations of each array dimension, outermost first.
type typeSyntax struct {
	Annos    []annoSyntax
	Name     string
	Args     []*typeSyntax
	Wildcard bool
	Super    bool
	Bound    *typeSyntax
	Dims     [][]annoSyntax
	Off, End uint32
}

type typeParamSyntax struct {
	Annos    []annoSyntax
	Name     string
	Bounds   []*typeSyntax
	Off, End uint32
}

type exprSyntaxKind uint8

const (
	sxIdent exprSyntaxKind = iota + 1
	sxThis
	sxNull
	sxLit
	sxSelect
	sxCall
	sxBinary
	sxUnary
	sxAssign
	sxNew
	sxCast
	sxInstanceOf
	sxTernary
	sxIndex
)

// exprSyntax is one parsed expression. X, Y and Z are operands in source
// order: receiver, left/right, condition/then/else, array/index.
type exprSyntax struct {
	Kind     exprSyntaxKind
	Name     string
	Lit      ast.ExprLitKind
	Op       tokKind
	X, Y, Z  *exprSyntax
	Args     []*exprSyntax
	Type     *typeSyntax
	Off, End uint32
}

type stmtSyntaxKind uint8

const (
	stExpr stmtSyntaxKind = iota + 1
	stVar
	stReturn
	stBreak
	stContinue
)

// stmtSyntax is a one-line statement. Control flow blocks come from the
// YAML structure.
type stmtSyntax struct {
	Kind     stmtSyntaxKind
	Type     *typeSyntax
	Name     string
	X        *exprSyntax
	Off, End uint32
}
