package config

import (
	"errors"
	"fmt"
	"sort"

	"qualflow/internal/atype"
	"qualflow/internal/checker"
	"qualflow/internal/qual"
)

// Register adds every hierarchy of m to r as a checker without custom
// transfer rules or checks.
func (m *Manifest) Register(r *checker.Registry) error {
	for _, h := range m.Hierarchies {
		name := h.Name
		desc := h.Description
		if desc == "" {
			desc = "declared in " + m.Path
		}
		err := r.Register(name, desc, func() (checker.Checker, error) {
			return m.Checker(name)
		})
		if err != nil {
			return fmt.Errorf("%s: %w", m.Path, err)
		}
	}
	return nil
}

// Checker builds the checker declared by the hierarchy name.
func (m *Manifest) Checker(name string) (checker.Checker, error) {
	spec, ok := m.hierarchy(name)
	if !ok {
		return nil, fmt.Errorf("no hierarchy %q in %s", name, m.Path)
	}
	h, err := buildHierarchy(m.qualifiersOf(name))
	if err != nil {
		return nil, fmt.Errorf("hierarchy %q: %w", name, err)
	}
	defs, err := buildDefaults(h, spec.Defaults)
	if err != nil {
		return nil, fmt.Errorf("hierarchy %q: %w", name, err)
	}
	return checker.NewBase(name, h, defs), nil
}

// buildHierarchy adds qualifiers once their supertypes exist, so the
// manifest may list them in any order.
func buildHierarchy(specs []QualifierSpec) (*qual.Hierarchy, error) {
	b := qual.NewBuilder()
	ids := make(map[string]qual.ID, len(specs))
	pending := append([]QualifierSpec(nil), specs...)
	var polys []QualifierSpec
	for len(pending) > 0 {
		var next []QualifierSpec
		for _, q := range pending {
			if q.Poly != "" {
				polys = append(polys, q)
				continue
			}
			supers := make([]qual.ID, 0, len(q.Supers))
			for _, s := range q.Supers {
				id, ok := ids[s]
				if !ok {
					break
				}
				supers = append(supers, id)
			}
			if len(supers) != len(q.Supers) {
				next = append(next, q)
				continue
			}
			ids[q.Name] = b.Add(q.Name, supers...)
		}
		if len(next) == len(pending) {
			names := make([]string, len(next))
			for i, q := range next {
				names[i] = q.Name
			}
			sort.Strings(names)
			return nil, fmt.Errorf("qualifiers with unknown or cyclic supertypes: %v", names)
		}
		pending = next
	}
	for _, q := range polys {
		top, ok := ids[q.Poly]
		if !ok {
			return nil, fmt.Errorf("polymorphic qualifier %s: unknown top %q", q.Name, q.Poly)
		}
		ids[q.Name] = b.AddPoly(q.Name, top)
	}
	for _, q := range specs {
		for _, a := range q.Aliases {
			b.Alias(a, ids[q.Name])
		}
	}
	return b.Build()
}

func buildDefaults(h *qual.Hierarchy, rules map[string]string) (*atype.Defaults, error) {
	defs := atype.NewDefaults(h)
	locs := make([]string, 0, len(rules))
	for loc := range rules {
		locs = append(locs, loc)
	}
	sort.Strings(locs)
	var errs []error
	for _, name := range locs {
		loc, ok := atype.ParseLocation(name)
		if !ok {
			errs = append(errs, fmt.Errorf("unknown default location %q", name))
			continue
		}
		q, ok := h.Lookup(rules[name])
		if !ok {
			errs = append(errs, fmt.Errorf("default for %s: unknown qualifier %q", name, rules[name]))
			continue
		}
		if h.IsPoly(q) {
			errs = append(errs, fmt.Errorf("default for %s: %s is polymorphic", name, rules[name]))
			continue
		}
		defs.Set(loc, q)
	}
	return defs, errors.Join(errs...)
}
