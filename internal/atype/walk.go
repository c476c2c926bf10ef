package atype

import (
	"strconv"
	"strings"
)

// Path locates a position inside a tree, root first.
type Path []string

func (p Path) String() string {
	if len(p) == 0 {
		return "<root>"
	}
	return strings.Join(p, " > ")
}

func (p Path) child(step string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, step)
}

// Walk visits t and its descendants depth-first, parents before children.
// Returning false from fn skips the node's children.
func Walk(t *AnnotatedType, fn func(path Path, n *AnnotatedType) bool) {
	walk(t, nil, fn)
}

func walk(t *AnnotatedType, path Path, fn func(Path, *AnnotatedType) bool) {
	if t == nil || !fn(path, t) {
		return
	}
	if t.component != nil {
		walk(t.component, path.child("component"), fn)
	}
	for i, a := range t.typeArgs {
		walk(a, path.child("type argument "+strconv.Itoa(i)), fn)
	}
	if t.upper != nil {
		walk(t.upper, path.child("upper bound"), fn)
	}
	if t.lower != nil {
		walk(t.lower, path.child("lower bound"), fn)
	}
	for i, m := range t.members {
		walk(m, path.child("member "+strconv.Itoa(i)), fn)
	}
}
