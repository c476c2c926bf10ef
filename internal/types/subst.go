package types

// Subst replaces type variables in id according to m.
func (in *Interner) Subst(id TypeID, m map[TypeID]TypeID) TypeID {
	if len(m) == 0 || id == NoTypeID {
		return id
	}
	tt, ok := in.Lookup(id)
	if !ok {
		return id
	}
	switch tt.Kind {
	case KindTypeVar:
		if r, ok := m[id]; ok {
			return r
		}
		return id
	case KindArray:
		elem := in.Subst(tt.Elem, m)
		if elem == tt.Elem {
			return id
		}
		return in.Intern(MakeArray(elem))
	case KindWildcard:
		bound := in.Subst(tt.Elem, m)
		if bound == tt.Elem {
			return id
		}
		return in.Intern(MakeWildcard(bound, tt.Super))
	case KindDeclared, KindIntersection, KindUnion:
		args, changed := in.substList(tt.Args, m)
		if !changed {
			return id
		}
		nt := tt
		nt.Args = args
		return in.Intern(nt)
	}
	return id
}

func (in *Interner) substList(ids []TypeID, m map[TypeID]TypeID) ([]TypeID, bool) {
	changed := false
	out := make([]TypeID, len(ids))
	for i, a := range ids {
		out[i] = in.Subst(a, m)
		if out[i] != a {
			changed = true
		}
	}
	return out, changed
}

// Bindings maps the class type parameters of a declared type to its type
// arguments. Raw uses (no arguments) map to nothing.
func (in *Interner) Bindings(id TypeID) map[TypeID]TypeID {
	cls, ok := in.ClassOf(id)
	if !ok {
		return nil
	}
	info, _ := in.Class(cls)
	tt := in.MustLookup(id)
	if len(tt.Args) != len(info.TypeParams) || len(tt.Args) == 0 {
		return nil
	}
	m := make(map[TypeID]TypeID, len(tt.Args))
	for i, tp := range info.TypeParams {
		m[tp] = tt.Args[i]
	}
	return m
}

// DirectSupers returns the direct supertypes of id: declared supertypes with
// type arguments substituted for declared types, members for intersections
// and the upper bound for type variables.
func (in *Interner) DirectSupers(id TypeID) []TypeID {
	tt, ok := in.Lookup(id)
	if !ok {
		return nil
	}
	switch tt.Kind {
	case KindDeclared:
		cls := ClassID(tt.Payload)
		if cls == in.objectClass {
			return nil
		}
		info, _ := in.Class(cls)
		if len(info.Supers) == 0 {
			return []TypeID{in.builtins.Object}
		}
		m := in.Bindings(id)
		out := make([]TypeID, len(info.Supers))
		for i, s := range info.Supers {
			out[i] = in.Subst(s, m)
		}
		return out
	case KindIntersection, KindUnion:
		return cloneIDs(tt.Args)
	case KindTypeVar, KindWildcard:
		return []TypeID{in.UpperBound(id)}
	case KindArray:
		return []TypeID{in.builtins.Object}
	}
	return nil
}

// LookupField finds a field on recv or its supertypes. The returned type has
// recv's type arguments substituted.
func (in *Interner) LookupField(recv TypeID, name string) (Field, bool) {
	var found Field
	ok := in.walkSupers(recv, func(t TypeID, info ClassInfo) bool {
		for _, f := range info.Fields {
			if f.Name == name {
				found = f
				found.Type = in.Subst(f.Type, in.Bindings(t))
				return true
			}
		}
		return false
	})
	return found, ok
}

// LookupMethod finds the first method called name with arity params on recv
// or its supertypes, with recv's type arguments substituted.
func (in *Interner) LookupMethod(recv TypeID, name string, arity int) (Method, bool) {
	var found Method
	ok := in.walkSupers(recv, func(t TypeID, info ClassInfo) bool {
		for _, m := range info.Methods {
			if m.Name != name || len(m.Params) != arity {
				continue
			}
			b := in.Bindings(t)
			found = m
			found.Params, _ = in.substList(m.Params, b)
			found.Result = in.Subst(m.Result, b)
			return true
		}
		return false
	})
	return found, ok
}

func (in *Interner) walkSupers(start TypeID, visit func(TypeID, ClassInfo) bool) bool {
	seen := make(map[TypeID]bool)
	queue := []TypeID{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		switch in.Kind(cur) {
		case KindDeclared:
			cls, _ := in.ClassOf(cur)
			info, _ := in.Class(cls)
			if visit(cur, info) {
				return true
			}
		case KindTypeVar, KindWildcard, KindIntersection:
		default:
			continue
		}
		queue = append(queue, in.DirectSupers(cur)...)
	}
	return false
}
