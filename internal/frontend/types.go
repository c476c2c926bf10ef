package frontend

import (
	"fmt"

	"qualflow/internal/ast"
	"qualflow/internal/diag"
	"qualflow/internal/types"
)

// typeScope resolves type variable names: method variables shadow class
// variables.
type typeScope struct {
	vars   map[string]types.TypeID
	parent *typeScope
}

func (s *typeScope) lookup(name string) (types.TypeID, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if id, ok := cur.vars[name]; ok {
			return id, true
		}
	}
	return types.NoTypeID, false
}

// placement says where the inline annotations of a type go.
type placement struct {
	target     ast.TargetType
	index      int
	boundIndex int
}

// typeIn resolves ts and records its inline annotations, at their type
// paths, into annos. Unknown names are reported and resolve to Object.
func (l *loader) typeIn(src text, ts *typeSyntax, sc *typeScope, at placement, annos *[]ast.RawAnnotation) types.TypeID {
	return l.resolveType(src, ts, sc, nil, func(a annoSyntax, path []ast.PathEntry) {
		if annos == nil {
			l.errorf(diag.FrontBadAnnotation, l.spanOf(src, a.Off, a.End), "annotations are not allowed here")
			return
		}
		*annos = append(*annos, ast.RawAnnotation{
			Name: a.Name,
			Args: a.Args,
			Pos:  ast.Position{Target: at.target, Index: at.index, BoundIndex: at.boundIndex, Path: path},
			Span: l.spanOf(src, a.Off, a.End),
		})
	})
}

func (l *loader) resolveType(src text, ts *typeSyntax, sc *typeScope, path []ast.PathEntry, emit func(annoSyntax, []ast.PathEntry)) types.TypeID {
	elemPath := path
	for k, dim := range ts.Dims {
		for _, a := range dim {
			emit(a, repeatArray(path, k))
		}
		elemPath = repeatArray(path, k+1)
	}
	for _, a := range ts.Annos {
		emit(a, elemPath)
	}
	elem := l.resolveElement(src, ts, sc, elemPath, emit)
	for range ts.Dims {
		elem = l.in.Intern(types.MakeArray(elem))
	}
	return elem
}

func (l *loader) resolveElement(src text, ts *typeSyntax, sc *typeScope, path []ast.PathEntry, emit func(annoSyntax, []ast.PathEntry)) types.TypeID {
	b := l.in.Builtins()
	if ts.Wildcard {
		if ts.Bound == nil {
			return l.in.Intern(types.MakeWildcard(types.NoTypeID, false))
		}
		bound := l.resolveType(src, ts.Bound, sc, appendPath(path, ast.PathEntry{Kind: ast.PathWildcard}), emit)
		return l.in.Intern(types.MakeWildcard(bound, ts.Super))
	}
	if len(ts.Args) == 0 {
		if ts.Name == "void" {
			return b.Void
		}
		if p, ok := types.PrimByName(ts.Name); ok {
			return l.in.Intern(types.MakePrimitive(p))
		}
		if id, ok := sc.lookup(ts.Name); ok {
			return id
		}
	}
	cls, ok := l.in.ClassByName(ts.Name)
	if !ok {
		l.errorf(diag.FrontUnknownType, l.spanOf(src, ts.Off, ts.End), "unknown type %s", ts.Name)
		return b.Object
	}
	info, _ := l.in.Class(cls)
	if len(ts.Args) != 0 && len(ts.Args) != len(info.TypeParams) {
		l.errorf(diag.FrontArityMismatch, l.spanOf(src, ts.Off, ts.End),
			"%s takes %d type arguments, found %d", ts.Name, len(info.TypeParams), len(ts.Args))
		return l.in.Intern(types.MakeDeclared(cls))
	}
	args := make([]types.TypeID, len(ts.Args))
	for i, a := range ts.Args {
		args[i] = l.resolveType(src, a, sc, appendPath(path, typeArgStep(i)), emit)
	}
	return l.in.Intern(types.MakeDeclared(cls, args...))
}

func typeArgStep(i int) ast.PathEntry {
	if i > 255 {
		panic(fmt.Sprintf("type argument index %d out of range", i))
	}
	return ast.PathEntry{Kind: ast.PathTypeArgument, Arg: uint8(i)} //nolint:gosec // bounded above
}

func appendPath(path []ast.PathEntry, e ast.PathEntry) []ast.PathEntry {
	out := make([]ast.PathEntry, len(path), len(path)+1)
	copy(out, path)
	return append(out, e)
}

func repeatArray(path []ast.PathEntry, n int) []ast.PathEntry {
	out := append([]ast.PathEntry(nil), path...)
	for range n {
		out = append(out, ast.PathEntry{Kind: ast.PathArray})
	}
	return out
}
