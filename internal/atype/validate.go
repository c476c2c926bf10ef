package atype

import (
	"fmt"
	"strings"

	"qualflow/internal/qual"
	"qualflow/internal/types"
)

// ProblemKind classifies validity problems.
type ProblemKind uint8

const (
	// ProblemConflicting means several qualifiers of one hierarchy share a
	// position.
	ProblemConflicting ProblemKind = iota + 1
	// ProblemMissing means a position has no qualifier of some hierarchy.
	ProblemMissing
)

// Problem is one validity violation.
type Problem struct {
	Kind  ProblemKind
	Path  Path
	Top   qual.ID
	Quals []qual.ID // conflicting qualifiers, in insertion order
	Type  string    // rendering of the offending position
}

// Message renders the problem for a diagnostic.
func (p Problem) Message(h *qual.Hierarchy) string {
	switch p.Kind {
	case ProblemConflicting:
		names := make([]string, len(p.Quals))
		for i, q := range p.Quals {
			names[i] = h.String(q)
		}
		return fmt.Sprintf("invalid type %s: conflicting qualifiers %s at %s",
			p.Type, strings.Join(names, ", "), p.Path)
	case ProblemMissing:
		return fmt.Sprintf("invalid type %s: no %s qualifier at %s",
			p.Type, h.Name(p.Top), p.Path)
	}
	return "invalid type " + p.Type
}

// ValidateOptions tunes Validate.
type ValidateOptions struct {
	// RequireAll reports positions lacking a qualifier of some hierarchy.
	// Type variable and wildcard uses are exempt since their qualifier
	// comes from their bounds.
	RequireAll bool
}

// Validate reports every position holding more than one qualifier of the
// same hierarchy and, with RequireAll, positions missing one.
func Validate(t *AnnotatedType, opts ValidateOptions) []Problem {
	var out []Problem
	Walk(t, func(path Path, n *AnnotatedType) bool {
		h := n.fac.H
		for _, top := range h.Tops() {
			var found []qual.ID
			for _, q := range n.quals {
				if h.Top(q) == top {
					found = append(found, q)
				}
			}
			switch {
			case len(found) > 1:
				out = append(out, Problem{Kind: ProblemConflicting, Path: path, Top: top, Quals: found, Type: n.String()})
			case len(found) == 0 && opts.RequireAll && needsPrimary(n):
				out = append(out, Problem{Kind: ProblemMissing, Path: path, Top: top, Type: n.String()})
			}
		}
		return true
	})
	return out
}

func needsPrimary(n *AnnotatedType) bool {
	switch n.kind {
	case types.KindTypeVar, types.KindWildcard, types.KindIntersection, types.KindUnion, types.KindVoid, types.KindInvalid:
		return false
	}
	return true
}
