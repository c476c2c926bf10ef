package types

import (
	"strings"
)

// Label returns a Java-like rendering of a TypeID.
func Label(typesIn *Interner, id TypeID) string {
	return labelDepth(typesIn, id, 0)
}

func labelDepth(typesIn *Interner, id TypeID, depth int) string {
	if id == NoTypeID {
		return "?"
	}
	if depth > 8 {
		return "..."
	}
	if typesIn == nil {
		return "?"
	}
	tt, ok := typesIn.Lookup(id)
	if !ok {
		return "?"
	}
	switch tt.Kind {
	case KindVoid:
		return "void"
	case KindNull:
		return "null"
	case KindPrimitive:
		return tt.Prim.String()
	case KindArray:
		return labelDepth(typesIn, tt.Elem, depth+1) + "[]"
	case KindDeclared:
		info, _ := typesIn.Class(ClassID(tt.Payload))
		if len(tt.Args) == 0 {
			return info.Name
		}
		return info.Name + "<" + joinLabels(typesIn, tt.Args, ", ", depth) + ">"
	case KindTypeVar:
		info, _ := typesIn.TypeVar(id)
		return info.Name
	case KindWildcard:
		if tt.Elem == NoTypeID {
			return "?"
		}
		if tt.Super {
			return "? super " + labelDepth(typesIn, tt.Elem, depth+1)
		}
		return "? extends " + labelDepth(typesIn, tt.Elem, depth+1)
	case KindIntersection:
		return joinLabels(typesIn, tt.Args, " & ", depth)
	case KindUnion:
		return joinLabels(typesIn, tt.Args, " | ", depth)
	}
	return tt.Kind.String()
}

func joinLabels(typesIn *Interner, ids []TypeID, sep string, depth int) string {
	parts := make([]string, len(ids))
	for i, a := range ids {
		parts[i] = labelDepth(typesIn, a, depth+1)
	}
	return strings.Join(parts, sep)
}
