package types

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for common types.
type Builtins struct {
	Invalid TypeID
	Void    TypeID
	Null    TypeID
	Boolean TypeID
	Byte    TypeID
	Short   TypeID
	Char    TypeID
	Int     TypeID
	Long    TypeID
	Float   TypeID
	Double  TypeID
	Object  TypeID
	String  TypeID
}

// Interner provides stable TypeIDs by hashing structural descriptors.
//
// Class and type variable registration happens while a program is loaded;
// afterwards the driver analyses methods in parallel and only interns derived
// types (substitutions, arrays), so all access goes through mu.
type Interner struct {
	mu       sync.RWMutex
	types    []Type
	index    map[typeKey]TypeID
	builtins Builtins
	classes  []ClassInfo
	byName   map[string]ClassID
	vars     []TypeVarInfo

	objectClass ClassID
	stringClass ClassID
}

// NewInterner constructs an interner seeded with primitives, Object and String.
func NewInterner() *Interner {
	in := &Interner{
		index:  make(map[typeKey]TypeID, 64),
		byName: make(map[string]ClassID, 16),
	}
	in.classes = append(in.classes, ClassInfo{}) // reserve 0 as invalid sentinel
	in.vars = append(in.vars, TypeVarInfo{})
	in.builtins.Invalid = in.internRaw(Type{Kind: KindInvalid})
	in.builtins.Void = in.Intern(Type{Kind: KindVoid})
	in.builtins.Null = in.Intern(Type{Kind: KindNull})
	in.builtins.Boolean = in.Intern(MakePrimitive(PrimBoolean))
	in.builtins.Byte = in.Intern(MakePrimitive(PrimByte))
	in.builtins.Short = in.Intern(MakePrimitive(PrimShort))
	in.builtins.Char = in.Intern(MakePrimitive(PrimChar))
	in.builtins.Int = in.Intern(MakePrimitive(PrimInt))
	in.builtins.Long = in.Intern(MakePrimitive(PrimLong))
	in.builtins.Float = in.Intern(MakePrimitive(PrimFloat))
	in.builtins.Double = in.Intern(MakePrimitive(PrimDouble))
	in.objectClass = in.RegisterClass("Object", false)
	in.stringClass = in.RegisterClass("String", false)
	in.builtins.Object = in.Intern(MakeDeclared(in.objectClass))
	in.builtins.String = in.Intern(MakeDeclared(in.stringClass))
	return in
}

// Builtins returns TypeIDs for built-in types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Intern ensures the provided descriptor has a stable TypeID.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	key := makeKey(t)
	in.mu.RLock()
	id, ok := in.index[key]
	in.mu.RUnlock()
	if ok {
		return id
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.index[key]; ok {
		return id
	}
	return in.internLocked(t, key)
}

// internRaw adds the descriptor to the storage without consulting the map.
func (in *Interner) internRaw(t Type) TypeID {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.internLocked(t, makeKey(t))
}

func (in *Interner) internLocked(t Type, key typeKey) TypeID {
	lenTypes, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(lenTypes)
	t.Args = cloneIDs(t.Args)
	in.types = append(in.types, t)
	in.index[key] = id
	return id
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("types: invalid TypeID")
	}
	return tt
}

// Kind returns the structural kind of id, KindInvalid for unknown ids.
func (in *Interner) Kind(id TypeID) Kind {
	tt, _ := in.Lookup(id)
	return tt.Kind
}

// IsReference reports whether values of id may hold null.
func (in *Interner) IsReference(id TypeID) bool {
	switch in.Kind(id) {
	case KindDeclared, KindArray, KindTypeVar, KindWildcard, KindIntersection, KindUnion, KindNull:
		return true
	default:
		return false
	}
}

type typeKey struct {
	Kind    Kind
	Prim    Prim
	Elem    TypeID
	Super   bool
	Payload uint32
	Args    string
}

func makeKey(t Type) typeKey {
	k := typeKey{Kind: t.Kind, Prim: t.Prim, Elem: t.Elem, Super: t.Super, Payload: t.Payload}
	if len(t.Args) > 0 {
		var b strings.Builder
		for i, a := range t.Args {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.FormatUint(uint64(a), 10))
		}
		k.Args = b.String()
	}
	return k
}
