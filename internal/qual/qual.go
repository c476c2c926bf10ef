// Package qual implements qualifier hierarchies: the lattices of type
// qualifiers (Nullable, NonNull, Tainted, ...) that checkers layer on top of
// the host type system.
//
// A Hierarchy is built once per checking run with a Builder and is read-only
// afterwards, so it may be shared by concurrent method analyses. A single
// Hierarchy value may hold several independent lattices ("hierarchies" in the
// checker sense, e.g. nullness and initialization); every qualifier belongs to
// exactly one of them, identified by its top.
package qual

import (
	"fmt"
	"strings"
)

// ID identifies a qualifier inside its Hierarchy.
type ID uint16

// NoID marks the absence of a qualifier.
const NoID ID = 0

// Kind distinguishes ordinary qualifiers from polymorphic ones.
type Kind uint8

const (
	// KindPlain is an ordinary lattice element.
	KindPlain Kind = iota
	// KindPoly is a qualifier variable resolved per call site.
	KindPoly
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindPoly:
		return "poly"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Def describes one declared qualifier.
type Def struct {
	ID     ID
	Name   string
	Args   []string
	Kind   Kind
	Supers []ID // direct supertypes as declared
	Top    ID   // top of the hierarchy this qualifier belongs to
}

// Label renders the qualifier the way it is written in source: @Name or
// @Name(arg, ...).
func (d Def) Label() string {
	if len(d.Args) == 0 {
		return "@" + d.Name
	}
	return "@" + d.Name + "(" + strings.Join(d.Args, ", ") + ")"
}

func key(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + "(" + strings.Join(args, ",") + ")"
}
