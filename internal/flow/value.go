package flow

import (
	"slices"
	"strings"

	"qualflow/internal/atype"
	"qualflow/internal/qual"
)

// Value holds one refined qualifier per hierarchy, indexed by
// Hierarchy.Index. qual.NoID means nothing is known in that hierarchy.
type Value []qual.ID

// NewValue returns a value with no information for h.
func NewValue(h *qual.Hierarchy) Value {
	return make(Value, h.NumHierarchies())
}

// ValueOf collects qs into a value. Later qualifiers of one hierarchy win.
func ValueOf(h *qual.Hierarchy, qs ...qual.ID) Value {
	v := NewValue(h)
	for _, q := range qs {
		if h.Valid(q) {
			v[h.Index(q)] = q
		}
	}
	return v
}

// PrimaryValue is the effective primary qualifiers of t.
func PrimaryValue(h *qual.Hierarchy, t *atype.AnnotatedType) Value {
	if t == nil {
		return NewValue(h)
	}
	return ValueOf(h, t.EffectiveAnnotations()...)
}

// In returns the qualifier held for the hierarchy of top.
func (v Value) In(h *qual.Hierarchy, top qual.ID) (qual.ID, bool) {
	i := h.Index(top)
	if i >= len(v) || v[i] == qual.NoID {
		return qual.NoID, false
	}
	return v[i], true
}

// With returns a copy of v holding q in q's hierarchy.
func (v Value) With(h *qual.Hierarchy, q qual.ID) Value {
	out := slices.Clone(v)
	if len(out) < h.NumHierarchies() {
		out = append(out, make(Value, h.NumHierarchies()-len(out))...)
	}
	out[h.Index(q)] = q
	return out
}

// Overlay returns v with every hierarchy known in o replaced by o's
// qualifier.
func (v Value) Overlay(o Value) Value {
	out := slices.Clone(v)
	for i, q := range o {
		if q == qual.NoID {
			continue
		}
		if i >= len(out) {
			out = append(out, make(Value, i+1-len(out))...)
		}
		out[i] = q
	}
	return out
}

// IsEmpty reports whether v knows nothing.
func (v Value) IsEmpty() bool {
	for _, q := range v {
		if q != qual.NoID {
			return false
		}
	}
	return true
}

// Qualifiers lists the known qualifiers in hierarchy order.
func (v Value) Qualifiers() []qual.ID {
	out := make([]qual.ID, 0, len(v))
	for _, q := range v {
		if q != qual.NoID {
			out = append(out, q)
		}
	}
	return out
}

func (v Value) Equal(o Value) bool {
	n := max(len(v), len(o))
	for i := range n {
		if v.at(i) != o.at(i) {
			return false
		}
	}
	return true
}

func (v Value) at(i int) qual.ID {
	if i < len(v) {
		return v[i]
	}
	return qual.NoID
}

// LUBValue joins a and b per hierarchy. A hierarchy unknown on either side
// is unknown in the result.
func LUBValue(h *qual.Hierarchy, a, b Value) Value {
	out := NewValue(h)
	for i := range out {
		x, y := a.at(i), b.at(i)
		if x == qual.NoID || y == qual.NoID {
			continue
		}
		out[i] = h.LUB(x, y)
	}
	return out
}

// GLBValue meets a and b per hierarchy. A hierarchy known on one side only
// keeps that side's qualifier.
func GLBValue(h *qual.Hierarchy, a, b Value) Value {
	out := NewValue(h)
	for i := range out {
		x, y := a.at(i), b.at(i)
		switch {
		case x == qual.NoID:
			out[i] = y
		case y == qual.NoID:
			out[i] = x
		default:
			out[i] = h.GLB(x, y)
		}
	}
	return out
}

// Format renders v as "{@NonNull, @Initialized}".
func (v Value) Format(h *qual.Hierarchy) string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	for _, q := range v {
		if q == qual.NoID {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(h.String(q))
	}
	b.WriteByte('}')
	return b.String()
}
