package qual

import (
	"errors"
	"fmt"

	"fortio.org/safecast"
)

// Builder collects qualifier declarations and validates them into a Hierarchy.
type Builder struct {
	defs    []Def
	index   map[string]ID
	aliases map[string]ID
	errs    []error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		defs:    []Def{{}}, // reserve 0 as NoID
		index:   make(map[string]ID, 16),
		aliases: make(map[string]ID),
	}
}

// Add declares a qualifier with the given direct supertypes. A qualifier
// without supertypes is the top of a new hierarchy.
func (b *Builder) Add(name string, supers ...ID) ID {
	return b.add(name, nil, KindPlain, supers)
}

// AddArgs declares a qualifier carrying arguments, e.g. @Unit("m").
func (b *Builder) AddArgs(name string, args []string, supers ...ID) ID {
	return b.add(name, append([]string(nil), args...), KindPlain, supers)
}

// AddPoly declares the polymorphic qualifier of the hierarchy rooted at top.
func (b *Builder) AddPoly(name string, top ID) ID {
	id := b.add(name, nil, KindPoly, nil)
	if id != NoID {
		b.defs[id].Top = top
	}
	return id
}

// Alias makes name resolve to target in Lookup. Aliases let checkers accept
// qualifiers from other annotation packages. An alias renames a qualifier
// family: when target carries arguments, Lookup(name, args...) resolves the
// member of target's family with those arguments, and Lookup(name) alone
// resolves target itself.
func (b *Builder) Alias(name string, target ID) {
	if b.declared(name) {
		b.errs = append(b.errs, fmt.Errorf("alias %q shadows a declared qualifier", name))
		return
	}
	if target == NoID || int(target) >= len(b.defs) {
		b.errs = append(b.errs, fmt.Errorf("alias %q: unknown target id %d", name, target))
		return
	}
	b.aliases[name] = target
}

func (b *Builder) declared(name string) bool {
	for _, d := range b.defs[1:] {
		if d.Name == name {
			return true
		}
	}
	return false
}

func (b *Builder) add(name string, args []string, kind Kind, supers []ID) ID {
	k := key(name, args)
	if id, dup := b.index[k]; dup {
		b.errs = append(b.errs, fmt.Errorf("qualifier %s declared twice", k))
		return id
	}
	n, err := safecast.Conv[uint16](len(b.defs))
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("too many qualifiers: %w", err))
		return NoID
	}
	id := ID(n)
	for _, s := range supers {
		if s == NoID || int(s) >= len(b.defs) {
			b.errs = append(b.errs, fmt.Errorf("qualifier %s: unknown supertype id %d", k, s))
		}
	}
	b.defs = append(b.defs, Def{
		ID:     id,
		Name:   name,
		Args:   args,
		Kind:   kind,
		Supers: append([]ID(nil), supers...),
	})
	b.index[k] = id
	return id
}

// Build validates the declarations and returns the read-only hierarchy.
//
// Every plain qualifier must reach exactly one top, each hierarchy needs a
// unique bottom, the subtype relation must be acyclic and every pair of
// qualifiers in one hierarchy must have a unique lub and glb.
func (b *Builder) Build() (*Hierarchy, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	n := len(b.defs)
	h := &Hierarchy{
		defs:     append([]Def(nil), b.defs...),
		index:    make(map[string]ID, len(b.index)),
		aliases:  make(map[string]ID, len(b.aliases)),
		sub:      make([][]bool, n),
		topIndex: make(map[ID]int),
		bottoms:  make(map[ID]ID),
		polys:    make(map[ID]ID),
		heights:  make(map[ID]int),
	}
	for k, id := range b.index {
		h.index[k] = id
	}
	for k, id := range b.aliases {
		h.aliases[k] = id
	}
	for i := range h.sub {
		h.sub[i] = make([]bool, n)
	}

	var errs []error

	// reflexive-transitive closure over declared supertypes
	for i := 1; i < n; i++ {
		if h.defs[i].Kind == KindPoly {
			continue
		}
		stack := []ID{ID(i)} //nolint:gosec // bounded by len(defs), checked in add
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if h.sub[i][cur] {
				continue
			}
			h.sub[i][cur] = true
			for _, s := range h.defs[cur].Supers {
				if h.defs[s].Kind == KindPoly {
					errs = append(errs, fmt.Errorf("qualifier %s: polymorphic qualifier %s used as supertype",
						h.defs[i].Name, h.defs[s].Name))
					continue
				}
				stack = append(stack, s)
			}
		}
	}
	for i := 1; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if h.sub[i][j] && h.sub[j][i] {
				errs = append(errs, fmt.Errorf("subtype cycle between %s and %s", h.defs[i].Name, h.defs[j].Name))
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	// tops and membership
	for i := 1; i < n; i++ {
		d := &h.defs[i]
		if d.Kind == KindPlain && len(d.Supers) == 0 {
			h.topIndex[d.ID] = len(h.tops)
			h.tops = append(h.tops, d.ID)
		}
	}
	for i := 1; i < n; i++ {
		d := &h.defs[i]
		if d.Kind == KindPoly {
			continue
		}
		var found []ID
		for _, top := range h.tops {
			if h.sub[i][top] {
				found = append(found, top)
			}
		}
		if len(found) != 1 {
			errs = append(errs, fmt.Errorf("qualifier %s must belong to exactly one hierarchy, reaches %d tops",
				d.Name, len(found)))
			continue
		}
		d.Top = found[0]
	}
	for i := 1; i < n; i++ {
		d := &h.defs[i]
		if d.Kind != KindPoly {
			continue
		}
		if _, ok := h.topIndex[d.Top]; !ok {
			errs = append(errs, fmt.Errorf("polymorphic qualifier %s: id %d is not a hierarchy top", d.Name, d.Top))
			continue
		}
		if prev, dup := h.polys[d.Top]; dup {
			errs = append(errs, fmt.Errorf("hierarchy %s has two polymorphic qualifiers: %s and %s",
				h.defs[d.Top].Name, h.defs[prev].Name, d.Name))
			continue
		}
		h.polys[d.Top] = d.ID
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	// bottoms
	for _, top := range h.tops {
		members := h.members(top)
		var bottoms []ID
		for _, c := range members {
			all := true
			for _, o := range members {
				if !h.sub[c][o] {
					all = false
					break
				}
			}
			if all {
				bottoms = append(bottoms, c)
			}
		}
		if len(bottoms) != 1 {
			errs = append(errs, fmt.Errorf("hierarchy %s has no unique bottom", h.defs[top].Name))
			continue
		}
		h.bottoms[top] = bottoms[0]
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	// lub/glb tables
	h.lub = make([][]ID, n)
	h.glb = make([][]ID, n)
	for i := range h.lub {
		h.lub[i] = make([]ID, n)
		h.glb[i] = make([]ID, n)
	}
	for _, top := range h.tops {
		members := h.members(top)
		for _, a := range members {
			for _, c := range members {
				if c < a {
					continue
				}
				l, ok := h.computeBound(members, a, c, true)
				if !ok {
					errs = append(errs, fmt.Errorf("hierarchy %s: %s and %s have no unique least upper bound",
						h.defs[top].Name, h.defs[a].Name, h.defs[c].Name))
				}
				g, ok := h.computeBound(members, a, c, false)
				if !ok {
					errs = append(errs, fmt.Errorf("hierarchy %s: %s and %s have no unique greatest lower bound",
						h.defs[top].Name, h.defs[a].Name, h.defs[c].Name))
				}
				h.lub[a][c], h.lub[c][a] = l, l
				h.glb[a][c], h.glb[c][a] = g, g
			}
		}
		h.heights[top] = h.longestChain(members, h.bottoms[top])
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return h, nil
}

// computeBound finds the least upper (upper=true) or greatest lower bound.
func (h *Hierarchy) computeBound(members []ID, a, b ID, upper bool) (ID, bool) {
	var cands []ID
	for _, c := range members {
		if upper && h.sub[a][c] && h.sub[b][c] {
			cands = append(cands, c)
		}
		if !upper && h.sub[c][a] && h.sub[c][b] {
			cands = append(cands, c)
		}
	}
	for _, c := range cands {
		best := true
		for _, o := range cands {
			if upper && !h.sub[c][o] {
				best = false
				break
			}
			if !upper && !h.sub[o][c] {
				best = false
				break
			}
		}
		if best {
			return c, true
		}
	}
	return NoID, false
}

// longestChain returns the number of strict steps on the longest chain from
// q up to its top.
func (h *Hierarchy) longestChain(members []ID, q ID) int {
	memo := make(map[ID]int, len(members))
	var walk func(ID) int
	walk = func(cur ID) int {
		if v, ok := memo[cur]; ok {
			return v
		}
		best := 0
		for _, s := range members {
			if s != cur && h.sub[cur][s] {
				if d := 1 + walk(s); d > best {
					best = d
				}
			}
		}
		memo[cur] = best
		return best
	}
	return walk(q)
}

func (h *Hierarchy) members(top ID) []ID {
	var out []ID
	for i := 1; i < len(h.defs); i++ {
		if h.defs[i].Kind == KindPlain && h.defs[i].Top == top {
			out = append(out, h.defs[i].ID)
		}
	}
	return out
}
