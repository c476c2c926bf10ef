package nullness

import (
	"fmt"
	"strings"

	"qualflow/internal/checker"
	"qualflow/internal/diag"
	"qualflow/internal/flow"
	"qualflow/internal/node"
	"qualflow/internal/types"
)

// Check reports unsafe dereferences, incompatible assignments, arguments
// and returns, and optionally redundant null comparisons.
func (c *Checker) Check(m *checker.Method, r diag.Reporter) {
	for _, n := range m.Nodes() {
		switch n.Kind {
		case node.KindFieldAccess, node.KindMethodInvocation, node.KindArrayAccess:
			c.checkDereference(m, n, r)
			if n.Kind == node.KindMethodInvocation {
				c.checkArguments(m, n, r)
			}
		case node.KindAssignment:
			c.checkAssignment(m, n, r)
		case node.KindReturn:
			c.checkReturn(m, n, r)
		case node.KindEqualTo, node.KindNotEqual:
			if m.Lint(LintRedundant) {
				c.checkRedundant(m, n, r)
			}
		}
	}
}

func (c *Checker) checkDereference(m *checker.Method, n *node.Node, r diag.Reporter) {
	recv, ok := n.Receiver()
	if n.Kind == node.KindArrayAccess && len(n.Operands) > 0 {
		recv, ok = n.Operands[0], true
	}
	if !ok {
		return
	}
	rn := m.Node(recv)
	if rn.Kind == node.KindExplicitThis || rn.Kind == node.KindImplicitThis {
		return
	}
	v := m.Value(recv)
	q, ok := v.In(m.H(), c.Nullable)
	if !ok || c.isNonNull(v) {
		return
	}
	diag.ReportError(r, diag.CheckDereferenceNullable, rn.Span,
		fmt.Sprintf("dereference of possibly-null reference %s", m.Text(recv))).
		WithNote(rn.Span, "found "+m.H().String(q)).
		Emit()
}

func (c *Checker) checkAssignment(m *checker.Method, n *node.Node, r diag.Reporter) {
	if len(n.Operands) != 2 {
		return
	}
	target := m.Node(n.Operands[0])
	if target.Kind == node.KindLocal {
		// locals take the qualifier of whatever they hold
		return
	}
	want := m.Types.DeclaredType(target)
	if mis, bad := checker.Incompatible(m.H(), m.Value(n.Operands[1]), want); bad {
		diag.ReportError(r, diag.CheckAssignmentIncompatible, m.Node(n.Operands[1]).Span,
			fmt.Sprintf("incompatible types in assignment to %s: found %s, required %s",
				m.Text(target.ID), m.H().String(mis.Got), m.H().String(mis.Want))).
			Emit()
	}
}

func (c *Checker) checkArguments(m *checker.Method, n *node.Node, r diag.Reporter) {
	sig, ok := m.Types.Signature(n)
	if !ok {
		return
	}
	for i, a := range n.Args() {
		if i >= len(sig.Params) {
			break
		}
		if mis, bad := checker.Incompatible(m.H(), m.Value(a), sig.Params[i]); bad {
			diag.ReportError(r, diag.CheckArgumentIncompatible, m.Node(a).Span,
				fmt.Sprintf("incompatible argument %d of %s: found %s, required %s",
					i+1, n.Call.Name, m.H().String(mis.Got), m.H().String(mis.Want))).
				Emit()
		}
	}
}

func (c *Checker) checkReturn(m *checker.Method, n *node.Node, r diag.Reporter) {
	if len(n.Operands) == 0 {
		return
	}
	want := m.Types.ResultType()
	if want == nil || want.Kind() == types.KindVoid {
		return
	}
	if mis, bad := checker.Incompatible(m.H(), m.Value(n.Operands[0]), want); bad {
		diag.ReportError(r, diag.CheckReturnIncompatible, m.Node(n.Operands[0]).Span,
			fmt.Sprintf("incompatible return value %s: found %s, required %s",
				m.Text(n.Operands[0]), m.H().String(mis.Got), m.H().String(mis.Want))).
			Emit()
	}
}

func (c *Checker) checkRedundant(m *checker.Method, n *node.Node, r diag.Reporter) {
	if len(n.Operands) != 2 {
		return
	}
	subject := n.Operands[0]
	switch {
	case m.Node(n.Operands[1]).Kind == node.KindNullLiteral:
	case m.Node(subject).Kind == node.KindNullLiteral:
		subject = n.Operands[1]
	default:
		return
	}
	sn := m.Node(subject)
	if sn.Kind == node.KindNullLiteral || !m.Types.Interner.IsReference(sn.Type) {
		return
	}
	if !c.isNonNull(m.Value(subject)) {
		return
	}
	diag.ReportWarning(r, diag.CheckRedundantNullComparison, n.Span,
		fmt.Sprintf("redundant null comparison: %s is %s", m.Text(subject), m.H().String(c.NonNull))).
		Emit()
}

// CheckClass reports constructors that leave non-null fields unset. A class
// without constructors must initialize such fields at their declaration.
func (c *Checker) CheckClass(cl *checker.Class, r diag.Reporter) {
	var required []string
	for _, f := range cl.Decl.Fields {
		if f.Static || f.Init.IsValid() || !cl.Types.Interner.IsReference(f.Type) {
			continue
		}
		ft, ok := cl.Types.FieldType(f)
		if !ok {
			continue
		}
		if q, ok := ft.AnnotationIn(c.Nullable); ok && q == c.NonNull {
			required = append(required, f.Name)
		}
	}
	if len(required) == 0 {
		return
	}
	var ctors []*checker.Method
	for _, m := range cl.Methods {
		if m.Decl.Name == "<init>" {
			ctors = append(ctors, m)
		}
	}
	if len(ctors) == 0 {
		diag.ReportError(r, diag.CheckUninitializedField, cl.Decl.Span,
			fmt.Sprintf("%s has no constructor initializing non-null fields: %s",
				cl.Decl.Name, strings.Join(required, ", "))).
			Emit()
		return
	}
	for _, ctor := range ctors {
		exit := ctor.Flow.ExitStore()
		if exit == nil {
			continue
		}
		var missing []string
		for _, name := range required {
			v, ok := exit.Get(fieldOfThis(cl, name))
			if !ok || !c.isNonNull(v) {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			diag.ReportError(r, diag.CheckUninitializedField, ctor.Decl.Span,
				fmt.Sprintf("the constructor does not initialize fields: %s", strings.Join(missing, ", "))).
				Emit()
		}
	}
}

func fieldOfThis(cl *checker.Class, name string) *flow.Expr {
	return flow.FieldOf(flow.This(), cl.Decl.ID, name)
}
