package flow

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"qualflow/internal/qual"
)

type entry struct {
	expr *Expr
	val  Value
}

// Store maps flow expressions to refined values at one program point.
type Store struct {
	h       *qual.Hierarchy
	entries map[string]entry
}

// NewStore returns an empty store over h.
func NewStore(h *qual.Hierarchy) *Store {
	return &Store{h: h, entries: make(map[string]entry)}
}

func (s *Store) Hierarchy() *qual.Hierarchy { return s.h }

// Copy returns an independent store with the same entries.
func (s *Store) Copy() *Store {
	out := &Store{h: s.h, entries: make(map[string]entry, len(s.entries))}
	for k, e := range s.entries {
		out.entries[k] = entry{expr: e.expr, val: slices.Clone(e.val)}
	}
	return out
}

func (s *Store) Len() int { return len(s.entries) }

// Get returns the refined value of e.
func (s *Store) Get(e *Expr) (Value, bool) {
	en, ok := s.entries[e.key]
	if !ok {
		return nil, false
	}
	return slices.Clone(en.val), true
}

// Insert records v for e, replacing what was there. An empty value removes
// the entry.
func (s *Store) Insert(e *Expr, v Value) {
	if v.IsEmpty() {
		delete(s.entries, e.key)
		return
	}
	s.entries[e.key] = entry{expr: e, val: slices.Clone(v)}
}

// Refine meets v into e's current value, so refinements only ever narrow.
func (s *Store) Refine(e *Expr, v Value) {
	if cur, ok := s.entries[e.key]; ok {
		v = GLBValue(s.h, cur.val, v)
	}
	s.Insert(e, v)
}

func (s *Store) Remove(e *Expr) {
	delete(s.entries, e.key)
}

// Exprs returns the tracked expressions ordered by key.
func (s *Store) Exprs() []*Expr {
	keys := slices.Sorted(maps.Keys(s.entries))
	out := make([]*Expr, len(keys))
	for i, k := range keys {
		out[i] = s.entries[k].expr
	}
	return out
}

// AssignLocal updates the store for "name = value": entries whose receiver
// chain or arguments mention the local are dropped, then the local gets v.
func (s *Store) AssignLocal(name string, v Value) {
	for k, e := range s.entries {
		if e.expr.Mentions(name) {
			delete(s.entries, k)
		}
	}
	s.Insert(Local(name), v)
}

// AssignField updates the store for "target = value". Any entry reading a
// field of the same name may alias target and is dropped, as are pure call
// results, before v is recorded for target.
func (s *Store) AssignField(target *Expr, v Value) {
	s.ForgetField(target.Name)
	s.Insert(target, v)
}

// ForgetField drops every entry reading a field called name and every pure
// call result.
func (s *Store) ForgetField(name string) {
	for k, e := range s.entries {
		if e.expr.Kind == ExprCall || e.expr.DependsOnField(name) {
			delete(s.entries, k)
		}
	}
}

// InvalidateHeap forgets every field and method call entry, as a call with
// side effects or an object creation requires. keep, when non-nil, may
// retain entries whose value cannot be undone by a call.
func (s *Store) InvalidateHeap(keep func(*Expr, Value) bool) {
	for k, e := range s.entries {
		if e.expr.Kind != ExprField && e.expr.Kind != ExprCall {
			continue
		}
		if keep != nil && keep(e.expr, e.val) {
			continue
		}
		delete(s.entries, k)
	}
}

// LUB merges two stores. Expressions tracked on one side only, and
// hierarchies known on one side only, are dropped.
func (s *Store) LUB(o *Store) *Store {
	out := NewStore(s.h)
	for k, a := range s.entries {
		b, ok := o.entries[k]
		if !ok {
			continue
		}
		out.Insert(a.expr, LUBValue(s.h, a.val, b.val))
	}
	return out
}

// Equal reports pointwise equality.
func (s *Store) Equal(o *Store) bool {
	if s == nil || o == nil {
		return s == o
	}
	if len(s.entries) != len(o.entries) {
		return false
	}
	for k, a := range s.entries {
		b, ok := o.entries[k]
		if !ok || !a.val.Equal(b.val) {
			return false
		}
	}
	return true
}

// Diff describes how o differs from s, one line per changed expression:
// "+ key v" for entries only in o, "- key v" for entries only in s and
// "~ key a -> b" for changed values.
func (s *Store) Diff(o *Store) string {
	keys := make(map[string]bool)
	for k := range s.entries {
		keys[k] = true
	}
	for k := range o.entries {
		keys[k] = true
	}
	var lines []string
	for _, k := range slices.Sorted(maps.Keys(keys)) {
		a, inS := s.entries[k]
		b, inO := o.entries[k]
		switch {
		case !inS:
			lines = append(lines, fmt.Sprintf("+ %s %s", k, b.val.Format(s.h)))
		case !inO:
			lines = append(lines, fmt.Sprintf("- %s %s", k, a.val.Format(s.h)))
		case !a.val.Equal(b.val):
			lines = append(lines, fmt.Sprintf("~ %s %s -> %s", k, a.val.Format(s.h), b.val.Format(s.h)))
		}
	}
	if len(lines) == 0 {
		return "(no difference)"
	}
	return strings.Join(lines, "\n")
}

func (s *Store) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, e := range s.Exprs() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", e.key, s.entries[e.key].val.Format(s.h))
	}
	b.WriteByte(']')
	return b.String()
}
