package qual

import (
	"qualflow/internal/bug"
)

// Hierarchy is a validated set of qualifier lattices. It is immutable after
// Builder.Build and safe for concurrent use.
type Hierarchy struct {
	defs     []Def
	index    map[string]ID
	aliases  map[string]ID // alias name to the qualifier it renames
	sub      [][]bool // sub[a][b] reports a <: b for plain qualifiers
	lub      [][]ID
	glb      [][]ID
	tops     []ID
	topIndex map[ID]int
	bottoms  map[ID]ID
	polys    map[ID]ID
	heights  map[ID]int
}

// Len returns the number of declared qualifiers.
func (h *Hierarchy) Len() int { return len(h.defs) - 1 }

// Valid reports whether q names a declared qualifier.
func (h *Hierarchy) Valid(q ID) bool { return q != NoID && int(q) < len(h.defs) }

// Def returns the declaration of q.
func (h *Hierarchy) Def(q ID) Def {
	h.mustValid(q)
	return h.defs[q]
}

// Name returns the bare qualifier name, without arguments.
func (h *Hierarchy) Name(q ID) string {
	if !h.Valid(q) {
		return "<none>"
	}
	return h.defs[q].Name
}

// String renders q the way it would be written in source.
func (h *Hierarchy) String(q ID) string {
	if !h.Valid(q) {
		return "<none>"
	}
	return h.defs[q].Label()
}

// Lookup resolves a qualifier by name and arguments. An alias resolves to
// its target, or with arguments to the target's family member carrying them.
func (h *Hierarchy) Lookup(name string, args ...string) (ID, bool) {
	if id, ok := h.index[key(name, args)]; ok {
		return id, true
	}
	target, ok := h.aliases[name]
	if !ok {
		return NoID, false
	}
	if len(args) == 0 {
		return target, true
	}
	id, ok := h.index[key(h.defs[target].Name, args)]
	return id, ok
}

// All returns every declared qualifier in declaration order.
func (h *Hierarchy) All() []ID {
	out := make([]ID, 0, h.Len())
	for i := 1; i < len(h.defs); i++ {
		out = append(out, h.defs[i].ID)
	}
	return out
}

// Tops returns the top of every hierarchy, in declaration order.
func (h *Hierarchy) Tops() []ID { return append([]ID(nil), h.tops...) }

// NumHierarchies returns the number of independent lattices.
func (h *Hierarchy) NumHierarchies() int { return len(h.tops) }

// Top returns the top of the hierarchy q belongs to.
func (h *Hierarchy) Top(q ID) ID {
	h.mustValid(q)
	return h.defs[q].Top
}

// Index returns the dense ordinal of the hierarchy containing q.
func (h *Hierarchy) Index(q ID) int {
	return h.topIndex[h.Top(q)]
}

// TopAt returns the top of the hierarchy with the given ordinal.
func (h *Hierarchy) TopAt(idx int) ID {
	if idx < 0 || idx >= len(h.tops) {
		bug.Throw("hierarchy index out of range", "index", idx, "hierarchies", len(h.tops))
	}
	return h.tops[idx]
}

// Bottom returns the bottom of the hierarchy rooted at top.
func (h *Hierarchy) Bottom(top ID) ID {
	b, ok := h.bottoms[h.Top(top)]
	if !ok {
		bug.Throw("bottom requested for unknown hierarchy", "qualifier", h.Name(top))
	}
	return b
}

// Poly returns the polymorphic qualifier of the hierarchy containing q, if
// one was declared.
func (h *Hierarchy) Poly(q ID) (ID, bool) {
	p, ok := h.polys[h.Top(q)]
	return p, ok
}

// IsPoly reports whether q is a polymorphic qualifier.
func (h *Hierarchy) IsPoly(q ID) bool {
	return h.Valid(q) && h.defs[q].Kind == KindPoly
}

// Height returns the length, in edges, of the longest chain from the bottom
// to the top of the hierarchy containing q.
func (h *Hierarchy) Height(q ID) int {
	return h.heights[h.Top(q)]
}

// MaxHeight returns the largest height over all hierarchies.
func (h *Hierarchy) MaxHeight() int {
	best := 0
	for _, v := range h.heights {
		if v > best {
			best = v
		}
	}
	return best
}

// SameHierarchy reports whether a and b belong to the same lattice.
func (h *Hierarchy) SameHierarchy(a, b ID) bool {
	return h.Valid(a) && h.Valid(b) && h.defs[a].Top == h.defs[b].Top
}

// IsSubtype reports whether a <: b. An unresolved polymorphic qualifier is
// both a subtype and a supertype of every qualifier in its hierarchy.
func (h *Hierarchy) IsSubtype(a, b ID) bool {
	h.checkPair("subtype", a, b)
	if h.IsPoly(a) || h.IsPoly(b) {
		return true
	}
	return h.sub[a][b]
}

// LUB returns the least upper bound of a and b.
func (h *Hierarchy) LUB(a, b ID) ID {
	h.checkPair("lub", a, b)
	switch {
	case h.IsPoly(a):
		return b
	case h.IsPoly(b):
		return a
	}
	return h.lub[a][b]
}

// GLB returns the greatest lower bound of a and b.
func (h *Hierarchy) GLB(a, b ID) ID {
	h.checkPair("glb", a, b)
	switch {
	case h.IsPoly(a):
		return b
	case h.IsPoly(b):
		return a
	}
	return h.glb[a][b]
}

// checkPair raises an internal consistency failure when a and b cannot be
// compared.
func (h *Hierarchy) checkPair(op string, a, b ID) {
	h.mustValid(a)
	h.mustValid(b)
	if h.defs[a].Top != h.defs[b].Top {
		bug.Throw("qualifiers from incompatible hierarchies",
			"operation", op,
			"left", h.defs[a].Label(),
			"right", h.defs[b].Label())
	}
}

func (h *Hierarchy) mustValid(q ID) {
	if !h.Valid(q) {
		bug.Throw("invalid qualifier id", "id", int(q), "declared", h.Len())
	}
}
