package ast

import "qualflow/internal/source"

type Hints struct{ Stmts, Exprs uint }

// NewProgram returns an empty program with arenas sized by hints.
func NewProgram(file source.FileID, hints Hints) *Program {
	if hints.Stmts == 0 {
		hints.Stmts = 1 << 8
	}
	if hints.Exprs == 0 {
		hints.Exprs = 1 << 8
	}
	return &Program{
		File:  file,
		Stmts: NewStmts(hints.Stmts),
		Exprs: NewExprs(hints.Exprs),
	}
}

// AddClass appends c and links its methods back to it.
func (p *Program) AddClass(c *Class) {
	for _, m := range c.Methods {
		m.Owner = c
	}
	p.Classes = append(p.Classes, c)
}
