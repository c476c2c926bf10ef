package testkit

import (
	"fmt"

	"fortio.org/safecast"

	"qualflow/internal/ast"
	"qualflow/internal/source"
)

// CheckSpanInvariants runs a minimal set of span invariants on a loaded
// program:
// 1) every declaration span is non-empty and points into sf
// 2) every expression span is ordered and within sf's content
// 3) a composite expression's span covers its children
func CheckSpanInvariants(prog *ast.Program, sf *source.File) error {
	if prog == nil || sf == nil {
		return fmt.Errorf("nil program or file")
	}
	size, err := safecast.Conv[uint32](len(sf.Content))
	if err != nil {
		return fmt.Errorf("len content overflow: %w", err)
	}
	within := func(what string, sp source.Span, nonEmpty bool) error {
		if sp.File != sf.ID {
			return fmt.Errorf("%s span points to different file id: got=%d want=%d", what, sp.File, sf.ID)
		}
		if sp.End < sp.Start || (nonEmpty && sp.Empty()) {
			return fmt.Errorf("%s span is empty or reversed: %v", what, sp)
		}
		if sp.End > size {
			return fmt.Errorf("%s span end beyond content: %d > %d", what, sp.End, size)
		}
		return nil
	}

	// 1) declarations
	for _, c := range prog.Classes {
		if err := within("class "+c.Name, c.Span, true); err != nil {
			return err
		}
		for _, f := range c.Fields {
			if err := within("field "+f.Name, f.Span, true); err != nil {
				return err
			}
		}
		for _, m := range c.Methods {
			if err := within("method "+m.QualifiedName(), m.Span, true); err != nil {
				return err
			}
			for _, a := range m.Annotations {
				if err := within("annotation "+a.String(), a.Span, true); err != nil {
					return err
				}
			}
		}
	}

	// 2) and 3) expressions
	exprs := prog.Exprs
	for i := uint32(1); i <= exprs.Arena.Len(); i++ {
		id := ast.ExprID(i)
		e := exprs.Get(id)
		implicit := e.Kind == ast.ExprImplicitThis
		if err := within("expr "+e.Kind.String(), e.Span, !implicit); err != nil {
			return err
		}
		for _, ch := range exprs.Children(id) {
			c := exprs.Get(ch)
			if c == nil || c.Kind == ast.ExprImplicitThis {
				continue
			}
			if c.Span.Start < e.Span.Start || c.Span.End > e.Span.End {
				return fmt.Errorf("%s span %v does not cover child %s %v", e.Kind, e.Span, c.Kind, c.Span)
			}
		}
	}
	return nil
}
