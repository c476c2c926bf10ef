// Package checker is the plugin surface of the framework. A Checker
// contributes a qualifier hierarchy, defaulting rules, transfer function
// overrides and per-method checks; the driver wires it to the annotation
// applier and the dataflow engine.
package checker

import (
	"qualflow/internal/atype"
	"qualflow/internal/diag"
	"qualflow/internal/flow"
	"qualflow/internal/node"
	"qualflow/internal/qual"
)

// Checker is one pluggable qualifier system. Implementations are read-only
// once constructed and are shared by concurrent method analyses.
type Checker interface {
	// Name is the identifier used on the command line and in qualflow.toml.
	Name() string
	Hierarchy() *qual.Hierarchy
	Defaults() *atype.Defaults
	// Supported reports whether annotations resolving to q are applied.
	Supported(q qual.ID) bool
	// Transfer customises a copy of the framework transfer table.
	Transfer(t *flow.Transfer)
	// Check reports findings for one analysed method.
	Check(m *Method, r diag.Reporter)
}

// TreeAnnotator fixes qualifiers of expression types that declarations
// cannot provide, such as literals and object creations.
type TreeAnnotator interface {
	AnnotateTree(n *node.Node, t *atype.AnnotatedType)
}

// HeapKeeper decides which field and call entries survive calls with side
// effects.
type HeapKeeper interface {
	KeepOnCall(mt *MethodTypes, e *flow.Expr, v flow.Value) bool
}

// ClassChecker reports findings that need every method of a class.
type ClassChecker interface {
	CheckClass(c *Class, r diag.Reporter)
}

// Linter lists optional checks enabled with --lint.
type Linter interface {
	Lints() []string
}

// Base implements Checker for a hierarchy with defaults and no custom
// behaviour. Checkers embed it and override what they need.
type Base struct {
	name string
	h    *qual.Hierarchy
	defs *atype.Defaults
}

// NewBase returns a checker without transfer overrides or checks.
func NewBase(name string, h *qual.Hierarchy, defs *atype.Defaults) *Base {
	if defs == nil {
		defs = atype.NewDefaults(h)
	}
	return &Base{name: name, h: h, defs: defs}
}

func (b *Base) Name() string { return b.name }

func (b *Base) Hierarchy() *qual.Hierarchy { return b.h }

func (b *Base) Defaults() *atype.Defaults { return b.defs }

func (b *Base) Supported(q qual.ID) bool { return b.h.Valid(q) }

func (b *Base) Transfer(*flow.Transfer) {}

func (b *Base) Check(*Method, diag.Reporter) {}
