package types

import "fmt"

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates the structural kinds of host language types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindVoid
	KindNull
	KindPrimitive
	KindDeclared
	KindArray
	KindTypeVar
	KindWildcard
	KindIntersection
	KindUnion
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindVoid:
		return "void"
	case KindNull:
		return "null"
	case KindPrimitive:
		return "primitive"
	case KindDeclared:
		return "declared"
	case KindArray:
		return "array"
	case KindTypeVar:
		return "typevar"
	case KindWildcard:
		return "wildcard"
	case KindIntersection:
		return "intersection"
	case KindUnion:
		return "union"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Prim enumerates primitive types.
type Prim uint8

const (
	PrimNone Prim = iota
	PrimBoolean
	PrimByte
	PrimShort
	PrimChar
	PrimInt
	PrimLong
	PrimFloat
	PrimDouble
)

var primNames = [...]string{
	PrimNone:    "?",
	PrimBoolean: "boolean",
	PrimByte:    "byte",
	PrimShort:   "short",
	PrimChar:    "char",
	PrimInt:     "int",
	PrimLong:    "long",
	PrimFloat:   "float",
	PrimDouble:  "double",
}

func (p Prim) String() string {
	if int(p) < len(primNames) {
		return primNames[p]
	}
	return fmt.Sprintf("Prim(%d)", p)
}

// PrimByName maps a keyword to its primitive.
func PrimByName(name string) (Prim, bool) {
	for i, n := range primNames {
		if i > 0 && n == name {
			return Prim(i), true
		}
	}
	return PrimNone, false
}

// Type is a compact descriptor for any supported type.
type Type struct {
	Kind    Kind
	Prim    Prim     // for primitives
	Elem    TypeID   // array component, wildcard bound
	Super   bool     // wildcard bound is a lower bound (? super T)
	Payload uint32   // class slot for declared types, variable slot for type variables
	Args    []TypeID // type arguments, intersection or union members
}

// Descriptor helpers ---------------------------------------------------------

// MakePrimitive describes a primitive type.
func MakePrimitive(p Prim) Type {
	return Type{Kind: KindPrimitive, Prim: p}
}

// MakeArray describes an array of elem.
func MakeArray(elem TypeID) Type {
	return Type{Kind: KindArray, Elem: elem}
}

// MakeDeclared describes a use of class with the given type arguments.
func MakeDeclared(class ClassID, args ...TypeID) Type {
	return Type{Kind: KindDeclared, Payload: uint32(class), Args: cloneIDs(args)}
}

// MakeWildcard describes "? extends bound" or, when super is set,
// "? super bound". An unbounded wildcard has bound NoTypeID.
func MakeWildcard(bound TypeID, super bool) Type {
	return Type{Kind: KindWildcard, Elem: bound, Super: super && bound != NoTypeID}
}

// MakeIntersection describes A & B & ...
func MakeIntersection(members ...TypeID) Type {
	return Type{Kind: KindIntersection, Args: cloneIDs(members)}
}

// MakeUnion describes A | B | ... as used by multi-catch.
func MakeUnion(members ...TypeID) Type {
	return Type{Kind: KindUnion, Args: cloneIDs(members)}
}

func cloneIDs(ids []TypeID) []TypeID {
	if len(ids) == 0 {
		return nil
	}
	out := make([]TypeID, len(ids))
	copy(out, ids)
	return out
}
