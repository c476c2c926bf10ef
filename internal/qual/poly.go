package qual

// Binding maps polymorphic qualifiers to the concrete qualifiers chosen for
// one call site.
type Binding map[ID]ID

// Bind records that poly was instantiated with actual. Multiple bindings of
// the same polymorphic qualifier are joined, so the result is the lub of every
// argument that mentions it.
func (h *Hierarchy) Bind(b Binding, poly, actual ID) {
	if !h.IsPoly(poly) {
		return
	}
	if h.IsPoly(actual) {
		return
	}
	if prev, ok := b[poly]; ok {
		b[poly] = h.LUB(prev, actual)
		return
	}
	h.checkPair("bind", poly, actual)
	b[poly] = actual
}

// Resolve substitutes q when it is a bound polymorphic qualifier. Unbound
// polymorphic qualifiers and plain qualifiers are returned unchanged.
func (h *Hierarchy) Resolve(q ID, b Binding) ID {
	if !h.IsPoly(q) {
		return q
	}
	if v, ok := b[q]; ok {
		return v
	}
	return q
}
