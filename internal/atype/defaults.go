package atype

import (
	"qualflow/internal/qual"
	"qualflow/internal/types"
)

// Location classifies where a type occurs, for defaulting.
type Location uint8

const (
	// LocOther covers fields, parameters, returns, type arguments and
	// array components.
	LocOther Location = iota
	// LocLocal is the declared type of a local variable.
	LocLocal
	// LocUpperBound is the upper bound of a type variable or wildcard.
	LocUpperBound
	// LocLowerBound is the lower bound of a type variable or wildcard.
	LocLowerBound
	// LocReceiver is the type of "this".
	LocReceiver
	numLocations
)

func (l Location) String() string {
	switch l {
	case LocOther:
		return "other"
	case LocLocal:
		return "local"
	case LocUpperBound:
		return "upper_bound"
	case LocLowerBound:
		return "lower_bound"
	case LocReceiver:
		return "receiver"
	default:
		return "unknown"
	}
}

// ParseLocation resolves the names used in configuration files.
func ParseLocation(s string) (Location, bool) {
	for l := LocOther; l < numLocations; l++ {
		if l.String() == s {
			return l, true
		}
	}
	return LocOther, false
}

// Defaults fills positions lacking a qualifier. Each location holds at most
// one default per hierarchy; locations without a rule for some hierarchy
// fall back to LocOther, then to the hierarchy's top.
type Defaults struct {
	h     *qual.Hierarchy
	rules [numLocations][]qual.ID
}

// NewDefaults returns an empty rule set for h.
func NewDefaults(h *qual.Hierarchy) *Defaults {
	return &Defaults{h: h}
}

// Set makes qs the defaults at loc, replacing earlier rules of the same
// hierarchies.
func (d *Defaults) Set(loc Location, qs ...qual.ID) *Defaults {
	for _, q := range qs {
		top := d.h.Top(q)
		kept := d.rules[loc][:0]
		for _, e := range d.rules[loc] {
			if d.h.Top(e) != top {
				kept = append(kept, e)
			}
		}
		d.rules[loc] = append(kept, q)
	}
	return d
}

// For returns the default qualifier of the hierarchy of top at loc.
func (d *Defaults) For(loc Location, top qual.ID) qual.ID {
	want := d.h.Top(top)
	for _, l := range []Location{loc, LocOther} {
		for _, q := range d.rules[l] {
			if d.h.Top(q) == want {
				return q
			}
		}
	}
	return want
}

// Apply adds defaults to every position of t that has no qualifier of some
// hierarchy. Type variable and wildcard uses stay unannotated: their
// qualifier comes from their bounds.
func (d *Defaults) Apply(t *AnnotatedType, loc Location) {
	if t == nil {
		return
	}
	switch t.kind {
	case types.KindTypeVar, types.KindWildcard:
		d.Apply(t.upper, LocUpperBound)
		d.Apply(t.lower, LocLowerBound)
		return
	case types.KindNull:
		// the null type is bottom in every hierarchy
		for _, top := range d.h.Tops() {
			if _, ok := t.AnnotationIn(top); !ok {
				t.AddAnnotation(d.h.Bottom(top))
			}
		}
		return
	case types.KindIntersection, types.KindUnion:
		for _, m := range t.members {
			d.Apply(m, loc)
		}
		return
	}
	for _, top := range d.h.Tops() {
		if _, ok := t.AnnotationIn(top); !ok {
			t.AddAnnotation(d.For(loc, top))
		}
	}
	d.Apply(t.component, LocOther)
	for _, a := range t.typeArgs {
		d.Apply(a, LocOther)
	}
}
