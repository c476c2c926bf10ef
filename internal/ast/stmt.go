package ast

import (
	"qualflow/internal/source"
	"qualflow/internal/types"
)

type StmtKind uint8

const (
	StmtBlock StmtKind = iota + 1
	StmtVar
	StmtExpr
	StmtIf
	StmtWhile
	StmtReturn
	StmtBreak
	StmtContinue
)

func (k StmtKind) String() string {
	switch k {
	case StmtBlock:
		return "block"
	case StmtVar:
		return "var"
	case StmtExpr:
		return "expr"
	case StmtIf:
		return "if"
	case StmtWhile:
		return "while"
	case StmtReturn:
		return "return"
	case StmtBreak:
		return "break"
	case StmtContinue:
		return "continue"
	}
	return "invalid"
}

type Stmt struct {
	Kind    StmtKind
	Span    source.Span
	Payload PayloadID
}

type StmtBlockData struct {
	Stmts []StmtID
}

// StmtVarData declares a local variable. Annotations carry the
// local_variable type annotations written on the declaration.
type StmtVarData struct {
	Name        string
	Type        types.TypeID
	Init        ExprID
	Annotations []RawAnnotation
}

type StmtExprData struct {
	Expr ExprID
}

// StmtIfData is a conditional. Else is NoStmtID when absent.
type StmtIfData struct {
	Cond ExprID
	Then StmtID
	Else StmtID
}

type StmtWhileData struct {
	Cond ExprID
	Body StmtID
}

// StmtReturnData returns Value, NoExprID for a bare return.
type StmtReturnData struct {
	Value ExprID
}

// Stmts manages allocation of statements.
type Stmts struct {
	Arena   *Arena[Stmt]
	Blocks  *Arena[StmtBlockData]
	Vars    *Arena[StmtVarData]
	Exprs   *Arena[StmtExprData]
	Ifs     *Arena[StmtIfData]
	Whiles  *Arena[StmtWhileData]
	Returns *Arena[StmtReturnData]
}

func NewStmts(capHint uint) *Stmts {
	if capHint == 0 {
		capHint = 1 << 8
	}
	return &Stmts{
		Arena:   NewArena[Stmt](capHint),
		Blocks:  NewArena[StmtBlockData](capHint),
		Vars:    NewArena[StmtVarData](capHint),
		Exprs:   NewArena[StmtExprData](capHint),
		Ifs:     NewArena[StmtIfData](capHint),
		Whiles:  NewArena[StmtWhileData](capHint),
		Returns: NewArena[StmtReturnData](capHint),
	}
}

func (s *Stmts) new(kind StmtKind, span source.Span, payload PayloadID) StmtID {
	return StmtID(s.Arena.Allocate(Stmt{
		Kind:    kind,
		Span:    span,
		Payload: payload,
	}))
}

func (s *Stmts) Get(id StmtID) *Stmt {
	return s.Arena.Get(uint32(id))
}

func (s *Stmts) NewBlock(span source.Span, stmts []StmtID) StmtID {
	payload := s.Blocks.Allocate(StmtBlockData{Stmts: append([]StmtID(nil), stmts...)})
	return s.new(StmtBlock, span, PayloadID(payload))
}

func (s *Stmts) Block(id StmtID) (*StmtBlockData, bool) {
	st := s.Get(id)
	if st == nil || st.Kind != StmtBlock {
		return nil, false
	}
	return s.Blocks.Get(uint32(st.Payload)), true
}

func (s *Stmts) NewVar(span source.Span, data StmtVarData) StmtID {
	data.Annotations = append([]RawAnnotation(nil), data.Annotations...)
	payload := s.Vars.Allocate(data)
	return s.new(StmtVar, span, PayloadID(payload))
}

func (s *Stmts) Var(id StmtID) (*StmtVarData, bool) {
	st := s.Get(id)
	if st == nil || st.Kind != StmtVar {
		return nil, false
	}
	return s.Vars.Get(uint32(st.Payload)), true
}

func (s *Stmts) NewExpr(span source.Span, expr ExprID) StmtID {
	payload := s.Exprs.Allocate(StmtExprData{Expr: expr})
	return s.new(StmtExpr, span, PayloadID(payload))
}

func (s *Stmts) Expr(id StmtID) (*StmtExprData, bool) {
	st := s.Get(id)
	if st == nil || st.Kind != StmtExpr {
		return nil, false
	}
	return s.Exprs.Get(uint32(st.Payload)), true
}

func (s *Stmts) NewIf(span source.Span, cond ExprID, then, els StmtID) StmtID {
	payload := s.Ifs.Allocate(StmtIfData{Cond: cond, Then: then, Else: els})
	return s.new(StmtIf, span, PayloadID(payload))
}

func (s *Stmts) If(id StmtID) (*StmtIfData, bool) {
	st := s.Get(id)
	if st == nil || st.Kind != StmtIf {
		return nil, false
	}
	return s.Ifs.Get(uint32(st.Payload)), true
}

func (s *Stmts) NewWhile(span source.Span, cond ExprID, body StmtID) StmtID {
	payload := s.Whiles.Allocate(StmtWhileData{Cond: cond, Body: body})
	return s.new(StmtWhile, span, PayloadID(payload))
}

func (s *Stmts) While(id StmtID) (*StmtWhileData, bool) {
	st := s.Get(id)
	if st == nil || st.Kind != StmtWhile {
		return nil, false
	}
	return s.Whiles.Get(uint32(st.Payload)), true
}

func (s *Stmts) NewReturn(span source.Span, value ExprID) StmtID {
	payload := s.Returns.Allocate(StmtReturnData{Value: value})
	return s.new(StmtReturn, span, PayloadID(payload))
}

func (s *Stmts) Return(id StmtID) (*StmtReturnData, bool) {
	st := s.Get(id)
	if st == nil || st.Kind != StmtReturn {
		return nil, false
	}
	return s.Returns.Get(uint32(st.Payload)), true
}

// NewJump creates a break or continue.
func (s *Stmts) NewJump(span source.Span, kind StmtKind) StmtID {
	if kind != StmtBreak && kind != StmtContinue {
		panic("ast: NewJump needs StmtBreak or StmtContinue")
	}
	return s.new(kind, span, NoPayloadID)
}
