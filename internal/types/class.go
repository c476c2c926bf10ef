package types

import (
	"fmt"

	"fortio.org/safecast"

	"qualflow/internal/source"
)

// ClassID identifies a declared class or interface.
type ClassID uint32

// NoClassID marks the absence of a class.
const NoClassID ClassID = 0

// Field describes a field member of a class.
type Field struct {
	Name   string
	Type   TypeID
	Static bool
}

// Method describes a method member of a class. Param and result types are
// expressed in terms of the class's and the method's own type variables.
type Method struct {
	Name       string
	TypeParams []TypeID
	Params     []TypeID
	Result     TypeID
	Static     bool
	// Pure marks methods without side effects; calls to them keep field
	// refinements alive and may themselves be refined.
	Pure bool
}

// ClassInfo stores metadata for a declared class.
type ClassInfo struct {
	Name       string
	Decl       source.Span
	Interface  bool
	TypeParams []TypeID // type variables, in declaration order
	Supers     []TypeID // declared supertypes, superclass first
	Fields     []Field
	Methods    []Method
}

// TypeVarInfo stores metadata for a type variable.
type TypeVarInfo struct {
	Name  string
	Owner string // declaring class or "Class.method"
	Index int    // position in the owner's type parameter list
	Decl  source.Span
	Upper TypeID // NoTypeID means Object
	Lower TypeID // NoTypeID means the null type
}

// RegisterClass allocates a class slot. Registering a name twice returns the
// existing class.
func (in *Interner) RegisterClass(name string, iface bool) ClassID {
	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.byName[name]; ok {
		return id
	}
	n, err := safecast.Conv[uint32](len(in.classes))
	if err != nil {
		panic(fmt.Errorf("class info overflow: %w", err))
	}
	id := ClassID(n)
	in.classes = append(in.classes, ClassInfo{Name: name, Interface: iface})
	in.byName[name] = id
	return id
}

// ClassByName resolves a registered class.
func (in *Interner) ClassByName(name string) (ClassID, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	id, ok := in.byName[name]
	return id, ok
}

// Object returns the root class.
func (in *Interner) Object() ClassID { return in.objectClass }

// UpdateClass edits a copy of the class metadata and stores it back. fn
// runs without the interner lock, so it may intern types.
func (in *Interner) UpdateClass(id ClassID, fn func(*ClassInfo)) {
	ci, ok := in.Class(id)
	if !ok {
		return
	}
	fn(&ci)
	in.mu.Lock()
	in.classes[id] = ci
	in.mu.Unlock()
}

// Class returns a copy of the class metadata.
func (in *Interner) Class(id ClassID) (ClassInfo, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if id == NoClassID || int(id) >= len(in.classes) {
		return ClassInfo{}, false
	}
	return in.classes[id], true
}

// ClassOf returns the class of a declared type.
func (in *Interner) ClassOf(id TypeID) (ClassID, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindDeclared {
		return NoClassID, false
	}
	return ClassID(tt.Payload), true
}

// IsInterface reports whether id is a declared type of an interface.
func (in *Interner) IsInterface(id TypeID) bool {
	cls, ok := in.ClassOf(id)
	if !ok {
		return false
	}
	info, _ := in.Class(cls)
	return info.Interface
}

// RegisterTypeVar allocates a new type variable. Bounds are set later with
// SetTypeVarBounds because they may mention the variable itself.
func (in *Interner) RegisterTypeVar(name, owner string, index int, decl source.Span) TypeID {
	in.mu.Lock()
	n, err := safecast.Conv[uint32](len(in.vars))
	if err != nil {
		in.mu.Unlock()
		panic(fmt.Errorf("type var overflow: %w", err))
	}
	in.vars = append(in.vars, TypeVarInfo{Name: name, Owner: owner, Index: index, Decl: decl})
	in.mu.Unlock()
	return in.internRaw(Type{Kind: KindTypeVar, Payload: n})
}

// SetTypeVarBounds records the declared bounds of a type variable.
func (in *Interner) SetTypeVarBounds(id, upper, lower TypeID) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindTypeVar {
		return
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	in.vars[tt.Payload].Upper = upper
	in.vars[tt.Payload].Lower = lower
}

// TypeVar returns metadata for a type variable.
func (in *Interner) TypeVar(id TypeID) (TypeVarInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindTypeVar {
		return TypeVarInfo{}, false
	}
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.vars[tt.Payload], true
}

// UpperBound returns the effective upper bound of a type variable or
// wildcard; Object when none was declared.
func (in *Interner) UpperBound(id TypeID) TypeID {
	tt, ok := in.Lookup(id)
	if !ok {
		return NoTypeID
	}
	switch tt.Kind {
	case KindTypeVar:
		info, _ := in.TypeVar(id)
		if info.Upper == NoTypeID {
			return in.builtins.Object
		}
		return info.Upper
	case KindWildcard:
		if tt.Super || tt.Elem == NoTypeID {
			return in.builtins.Object
		}
		return tt.Elem
	}
	return id
}
