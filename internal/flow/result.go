package flow

import (
	"slices"

	"qualflow/internal/atype"
	"qualflow/internal/cfg"
	"qualflow/internal/node"
	"qualflow/internal/qual"
)

// Result holds the fixpoint of one analysis. Stores handed out are copies.
type Result struct {
	h      *qual.Hierarchy
	graph  *cfg.Graph
	oracle Oracle
	values map[node.ID]Value
	before map[node.ID]*Store
	after  map[node.ID]*Store
	inputs []*Store
	exit   *Store
	visits []int
}

func (r *Result) Graph() *cfg.Graph { return r.graph }

func (r *Result) Hierarchy() *qual.Hierarchy { return r.h }

// Reached reports whether the analysis reached id.
func (r *Result) Reached(id node.ID) bool {
	_, ok := r.before[id]
	return ok
}

// Value returns the refined value of id.
func (r *Result) Value(id node.ID) (Value, bool) {
	v, ok := r.values[id]
	if !ok {
		return nil, false
	}
	return slices.Clone(v), true
}

// StoreBefore returns the store flowing into id, nil when unreached.
func (r *Result) StoreBefore(id node.ID) *Store {
	return copyOrNil(r.before[id])
}

// StoreAfter returns the store flowing out of id. After a condition this is
// the lub of its then and else stores.
func (r *Result) StoreAfter(id node.ID) *Store {
	return copyOrNil(r.after[id])
}

// BlockInput returns the merged store entering b.
func (r *Result) BlockInput(b cfg.BlockID) *Store {
	if b < 0 || int(b) >= len(r.inputs) {
		return nil
	}
	return copyOrNil(r.inputs[b])
}

// ExitStore is the lub of the stores reaching every return, nil when no
// return is reachable.
func (r *Result) ExitStore() *Store { return copyOrNil(r.exit) }

// Visits reports how often b was analysed before the fixpoint.
func (r *Result) Visits(b cfg.BlockID) int {
	if b < 0 || int(b) >= len(r.visits) {
		return 0
	}
	return r.visits[b]
}

// AnnotatedTypeOf returns a copy of id's declared type with its primary
// qualifiers replaced by the refined ones. Nodes without a declared type
// give nil.
func (r *Result) AnnotatedTypeOf(id node.ID) *atype.AnnotatedType {
	n := r.graph.Nodes.Get(id)
	if n == nil || r.oracle == nil {
		return nil
	}
	t := r.oracle.DeclaredType(n)
	if t == nil {
		return nil
	}
	if v, ok := r.values[id]; ok {
		for _, q := range v.Qualifiers() {
			t.AddAnnotation(q)
		}
	}
	return t
}

func copyOrNil(s *Store) *Store {
	if s == nil {
		return nil
	}
	return s.Copy()
}
