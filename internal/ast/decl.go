package ast

import (
	"qualflow/internal/source"
	"qualflow/internal/types"
)

// TypeParam is a declared type parameter. Var is the type variable it
// introduces; its bounds live in the interner.
type TypeParam struct {
	Name  string
	Index int
	Var   types.TypeID
	Span  source.Span
}

type Field struct {
	Name        string
	Type        types.TypeID
	Static      bool
	Init        ExprID
	Annotations []RawAnnotation
	Span        source.Span
}

type Param struct {
	Name  string
	Index int
	Type  types.TypeID
	Span  source.Span
}

// Method is a method or constructor. Annotations carries every type
// annotation targeting the method's type parameters, bounds, return type,
// receiver and formal parameters; local variable annotations sit on their
// declarations.
type Method struct {
	Name        string
	Owner       *Class
	TypeParams  []*TypeParam
	Params      []*Param
	Result      types.TypeID
	Static      bool
	Pure        bool
	Body        StmtID
	Annotations []RawAnnotation
	Span        source.Span
}

// QualifiedName returns "Class.method".
func (m *Method) QualifiedName() string {
	if m.Owner == nil {
		return m.Name
	}
	return m.Owner.Name + "." + m.Name
}

// Class is a class or interface. Annotations carries the type annotations
// targeting the class's type parameters and their bounds.
type Class struct {
	Name        string
	ID          types.ClassID
	Type        types.TypeID // the class type applied to its own type variables
	Interface   bool
	TypeParams  []*TypeParam
	Fields      []*Field
	Methods     []*Method
	Annotations []RawAnnotation
	Span        source.Span
}

// Method finds a method by name.
func (c *Class) Method(name string) (*Method, bool) {
	for _, m := range c.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// Field finds a field by name.
func (c *Class) Field(name string) (*Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// Program is a loaded compilation unit set: declarations plus the arenas
// holding every statement and expression.
type Program struct {
	File    source.FileID
	Classes []*Class
	Stmts   *Stmts
	Exprs   *Exprs
}

// Class finds a class by name.
func (p *Program) Class(name string) (*Class, bool) {
	for _, c := range p.Classes {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Methods returns every method with a body, in declaration order.
func (p *Program) Methods() []*Method {
	var out []*Method
	for _, c := range p.Classes {
		for _, m := range c.Methods {
			if m.Body.IsValid() {
				out = append(out, m)
			}
		}
	}
	return out
}
