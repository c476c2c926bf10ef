// Package nullness is the bundled nullness and initialization checker.
//
// The nullness hierarchy is Nullable > MonotonicNonNull > NonNull with
// PolyNull; the initialization hierarchy is UnknownInitialization above
// UnderInitialization and Initialized, with FBCBottom below both.
package nullness

import (
	"fmt"

	"qualflow/internal/atype"
	"qualflow/internal/checker"
	"qualflow/internal/flow"
	"qualflow/internal/node"
	"qualflow/internal/qual"
)

const (
	Name = "nullness"

	// LintRedundant enables QF5005 warnings on null comparisons whose
	// outcome is known.
	LintRedundant = "redundant-null-comparison"
)

// Checker implements checker.Checker for nullness.
type Checker struct {
	*checker.Base

	Nullable         qual.ID
	MonotonicNonNull qual.ID
	NonNull          qual.ID
	PolyNull         qual.ID

	UnknownInit qual.ID
	UnderInit   qual.ID
	Initialized qual.ID
	FBCBottom   qual.ID
}

var (
	_ checker.TreeAnnotator = (*Checker)(nil)
	_ checker.HeapKeeper    = (*Checker)(nil)
	_ checker.ClassChecker  = (*Checker)(nil)
	_ checker.Linter        = (*Checker)(nil)
)

// New builds the checker and its hierarchies.
func New() (*Checker, error) {
	b := qual.NewBuilder()
	c := &Checker{}
	c.Nullable = b.Add("Nullable")
	c.MonotonicNonNull = b.Add("MonotonicNonNull", c.Nullable)
	c.NonNull = b.Add("NonNull", c.MonotonicNonNull)
	c.PolyNull = b.AddPoly("PolyNull", c.Nullable)
	b.Alias("CheckForNull", c.Nullable)
	b.Alias("NotNull", c.NonNull)
	b.Alias("Nonnull", c.NonNull)

	c.UnknownInit = b.Add("UnknownInitialization")
	c.UnderInit = b.Add("UnderInitialization", c.UnknownInit)
	c.Initialized = b.Add("Initialized", c.UnknownInit)
	c.FBCBottom = b.Add("FBCBottom", c.UnderInit, c.Initialized)

	h, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("nullness hierarchy: %w", err)
	}
	defs := atype.NewDefaults(h).
		Set(atype.LocOther, c.NonNull, c.Initialized).
		Set(atype.LocLocal, c.Nullable, c.Initialized).
		Set(atype.LocUpperBound, c.Nullable, c.Initialized).
		Set(atype.LocLowerBound, c.NonNull, c.FBCBottom).
		Set(atype.LocReceiver, c.NonNull, c.Initialized)
	c.Base = checker.NewBase(Name, h, defs)
	return c, nil
}

// Register adds the checker to r.
func Register(r *checker.Registry) error {
	return r.Register(Name, "nullness and initialization of references", func() (checker.Checker, error) {
		return New()
	})
}

func (c *Checker) Lints() []string { return []string{LintRedundant} }

// AnnotateTree gives null the nullable qualifier and fresh values the
// non-null one.
func (c *Checker) AnnotateTree(n *node.Node, t *atype.AnnotatedType) {
	switch n.Kind {
	case node.KindNullLiteral:
		t.AddAnnotation(c.Nullable)
	case node.KindObjectCreation, node.KindLiteral:
		t.AddAnnotation(c.NonNull)
	}
}

// KeepOnCall keeps non-null facts about monotonic fields: once set they
// cannot become null again.
func (c *Checker) KeepOnCall(mt *checker.MethodTypes, e *flow.Expr, v flow.Value) bool {
	if e.Kind != flow.ExprField {
		return false
	}
	_, ft, ok := mt.Field(e.Owner, e.Name)
	if !ok || ft == nil {
		return false
	}
	declared, ok := ft.AnnotationIn(c.Nullable)
	if !ok || declared != c.MonotonicNonNull {
		return false
	}
	got, ok := v.In(c.Hierarchy(), c.Nullable)
	return ok && got == c.NonNull
}

// nonNull is the value refining only the nullness hierarchy.
func (c *Checker) nonNull() flow.Value {
	return flow.ValueOf(c.Hierarchy(), c.NonNull)
}

// isNonNull reports whether v is known to be non-null.
func (c *Checker) isNonNull(v flow.Value) bool {
	q, ok := v.In(c.Hierarchy(), c.Nullable)
	return ok && c.Hierarchy().IsSubtype(q, c.NonNull) && !c.Hierarchy().IsPoly(q)
}
