package annotapply_test

import (
	"errors"
	"strings"
	"testing"

	"qualflow/internal/annotapply"
	"qualflow/internal/ast"
	"qualflow/internal/atype"
	"qualflow/internal/bug"
	"qualflow/internal/qual"
	"qualflow/internal/source"
	"qualflow/internal/types"
)

type env struct {
	h                         *qual.Hierarchy
	in                        *types.Interner
	ap                        *annotapply.Applier
	nullable, nonNull, monoNN qual.ID
	classA, ifaceB, ifaceC    types.TypeID
	list                      types.ClassID
}

func newEnv(t *testing.T) *env {
	t.Helper()
	b := qual.NewBuilder()
	e := &env{}
	e.nullable = b.Add("Nullable")
	e.monoNN = b.Add("MonotonicNonNull", e.nullable)
	e.nonNull = b.Add("NonNull", e.monoNN)
	b.Alias("CheckForNull", e.nullable)
	h, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	e.h = h
	e.in = types.NewInterner()
	e.classA = e.in.Intern(types.MakeDeclared(e.in.RegisterClass("A", false)))
	e.ifaceB = e.in.Intern(types.MakeDeclared(e.in.RegisterClass("B", true)))
	e.ifaceC = e.in.Intern(types.MakeDeclared(e.in.RegisterClass("C", true)))
	e.list = e.in.RegisterClass("List", true)
	e.ap = annotapply.New(atype.NewFactory(h, e.in))
	return e
}

func (e *env) typeVar(name string, index int, upper types.TypeID) (*ast.TypeParam, *atype.AnnotatedType) {
	v := e.in.RegisterTypeVar(name, "Box", index, source.Span{})
	e.in.SetTypeVarBounds(v, upper, types.NoTypeID)
	return &ast.TypeParam{Name: name, Index: index, Var: v}, e.ap.Factory().FromType(v)
}

func bound(name string, index, boundIndex int, path ...ast.PathEntry) ast.RawAnnotation {
	return ast.RawAnnotation{Name: name, Pos: ast.Position{
		Target: ast.TargetClassTypeParameterBound, Index: index, BoundIndex: boundIndex, Path: path,
	}}
}

func onParam(name string, index int) ast.RawAnnotation {
	return ast.RawAnnotation{Name: name, Pos: ast.Position{Target: ast.TargetClassTypeParameter, Index: index}}
}

func TestIntersectionBoundIndex(t *testing.T) {
	cases := []struct {
		name       string
		members    func(e *env) []types.TypeID
		boundIndex int
		wantMember int // -1 means failure
	}{
		{"class first, index 0", func(e *env) []types.TypeID { return []types.TypeID{e.classA, e.ifaceB} }, 0, 0},
		{"class first, index 1", func(e *env) []types.TypeID { return []types.TypeID{e.classA, e.ifaceB} }, 1, 1},
		{"class first, index 5", func(e *env) []types.TypeID { return []types.TypeID{e.classA, e.ifaceB} }, 5, -1},
		{"class first, index 2", func(e *env) []types.TypeID { return []types.TypeID{e.classA, e.ifaceB} }, 2, -1},
		{"interface first, index 1", func(e *env) []types.TypeID { return []types.TypeID{e.ifaceB, e.ifaceC} }, 1, 0},
		{"interface first, index 2", func(e *env) []types.TypeID { return []types.TypeID{e.ifaceB, e.ifaceC} }, 2, 1},
		{"interface first, index 0", func(e *env) []types.TypeID { return []types.TypeID{e.ifaceB, e.ifaceC} }, 0, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t)
			inter := e.in.Intern(types.MakeIntersection(tc.members(e)...))
			tp, tv := e.typeVar("T", 0, inter)
			err := e.ap.TypeParameter(tv, tp, ast.TargetClassTypeParameter, []ast.RawAnnotation{bound("Nullable", 0, tc.boundIndex)})
			if tc.wantMember < 0 {
				be, ok := bug.As(err)
				if !ok {
					t.Fatalf("want internal error, got %v", err)
				}
				if _, ok := be.Get("upper bound"); !ok {
					t.Fatalf("error lacks upper bound context: %v", be)
				}
				if v, _ := be.Get("element"); v != "T" {
					t.Fatalf("element = %q", v)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			for i, m := range tv.UpperBound().Members() {
				if got := m.HasAnnotation(e.nullable); got != (i == tc.wantMember) {
					t.Fatalf("member %d annotated = %v in %s", i, got, tv.UpperBound())
				}
			}
			if len(tv.Annotations()) != 0 {
				t.Fatal("type parameter declaration must stay unannotated")
			}
		})
	}
}

func TestDuplicateLowerBoundKept(t *testing.T) {
	e := newEnv(t)
	tp, tv := e.typeVar("T", 0, types.NoTypeID)
	annos := []ast.RawAnnotation{onParam("Nullable", 0), onParam("NonNull", 0), onParam("NonNull", 1)}
	if err := e.ap.TypeParameter(tv, tp, ast.TargetClassTypeParameter, annos); err != nil {
		t.Fatal(err)
	}
	lb := tv.LowerBound()
	if got := lb.Annotations(); len(got) != 2 || got[0] != e.nullable || got[1] != e.nonNull {
		t.Fatalf("lower bound = %s", lb)
	}
	problems := atype.Validate(tv, atype.ValidateOptions{})
	if len(problems) != 1 || problems[0].Path.String() != "lower bound" {
		t.Fatalf("problems = %+v", problems)
	}
	if len(tv.UpperBound().Annotations()) != 0 {
		t.Fatal("upper bound must be untouched")
	}
}

func TestPlainUpperBoundAndFiltering(t *testing.T) {
	e := newEnv(t)
	var unknown []string
	e.ap.OnUnknown = func(raw ast.RawAnnotation) { unknown = append(unknown, raw.Name) }
	tp, tv := e.typeVar("U", 1, types.NoTypeID)
	annos := []ast.RawAnnotation{
		bound("org.example.CheckForNull", 1, 0),
		bound("NonNull", 0, 0),       // other parameter
		bound("Deprecated", 1, 0), // not a qualifier
		{Name: "NonNull", Pos: ast.Position{Target: ast.TargetField}},
	}
	if err := e.ap.TypeParameter(tv, tp, ast.TargetClassTypeParameter, annos); err != nil {
		t.Fatal(err)
	}
	if got := tv.UpperBound().Annotations(); len(got) != 1 || got[0] != e.nullable {
		t.Fatalf("upper bound = %s", tv.UpperBound())
	}
	if len(unknown) != 1 || unknown[0] != "Deprecated" {
		t.Fatalf("unknown = %v", unknown)
	}
}

func TestSupportedFilter(t *testing.T) {
	e := newEnv(t)
	e.ap.Supported = func(q qual.ID) bool { return q != e.monoNN }
	tp, tv := e.typeVar("T", 0, types.NoTypeID)
	if err := e.ap.TypeParameter(tv, tp, ast.TargetClassTypeParameter, []ast.RawAnnotation{bound("MonotonicNonNull", 0, 0)}); err != nil {
		t.Fatal(err)
	}
	if len(tv.UpperBound().Annotations()) != 0 {
		t.Fatalf("unsupported qualifier placed: %s", tv.UpperBound())
	}
}

func TestComponentAnnotationOnBound(t *testing.T) {
	e := newEnv(t)
	listOfString := e.in.Intern(types.MakeDeclared(e.list, e.in.Builtins().String))
	tp, tv := e.typeVar("T", 0, listOfString)
	annos := []ast.RawAnnotation{
		bound("Nullable", 0, 0, ast.PathEntry{Kind: ast.PathTypeArgument, Arg: 0}),
		bound("NonNull", 0, 0),
	}
	if err := e.ap.TypeParameter(tv, tp, ast.TargetClassTypeParameter, annos); err != nil {
		t.Fatal(err)
	}
	if got := tv.UpperBound().String(); got != "@NonNull List<@Nullable String>" {
		t.Fatalf("upper bound = %q", got)
	}

	bad := []ast.RawAnnotation{bound("Nullable", 0, 0, ast.PathEntry{Kind: ast.PathTypeArgument, Arg: 3})}
	_, tv2 := e.typeVar("T2", 0, listOfString)
	err := e.ap.TypeParameter(tv2, tp, ast.TargetClassTypeParameter, bad)
	var be *bug.Error
	if !errors.As(err, &be) || !strings.Contains(be.Msg, "type argument index out of range") {
		t.Fatalf("want path failure, got %v", err)
	}
}

func TestFieldPathsAndSeeding(t *testing.T) {
	e := newEnv(t)
	str := e.in.Builtins().String
	matrix := e.in.Intern(types.MakeArray(e.in.Intern(types.MakeArray(str))))
	field := &ast.Field{Name: "grid", Type: matrix, Annotations: []ast.RawAnnotation{
		{Name: "NonNull", Pos: ast.Position{Target: ast.TargetField}},
		{Name: "Nullable", Pos: ast.Position{Target: ast.TargetField, Path: []ast.PathEntry{{Kind: ast.PathArray}}}},
		{Name: "MonotonicNonNull", Pos: ast.Position{Target: ast.TargetField, Path: []ast.PathEntry{{Kind: ast.PathArray}, {Kind: ast.PathArray}}}},
	}}
	ft, err := e.ap.FieldType(field)
	if err != nil {
		t.Fatal(err)
	}
	if got := ft.String(); got != "@MonotonicNonNull String @NonNull [] @Nullable []" {
		t.Fatalf("field type = %q", got)
	}

	tp, tv := e.typeVar("T", 0, types.NoTypeID)
	if err := e.ap.TypeParameter(tv, tp, ast.TargetClassTypeParameter, []ast.RawAnnotation{bound("Nullable", 0, 0)}); err != nil {
		t.Fatal(err)
	}
	e.ap.Declare(tv)
	items := &ast.Field{Name: "items", Type: e.in.Intern(types.MakeDeclared(e.list, tp.Var))}
	it, err := e.ap.FieldType(items)
	if err != nil {
		t.Fatal(err)
	}
	if !it.TypeArgs()[0].UpperBound().HasAnnotation(e.nullable) {
		t.Fatalf("type variable use not seeded: %s", it.TypeArgs()[0].UpperBound())
	}

	wrong := &ast.Field{Name: "x", Type: str, Annotations: []ast.RawAnnotation{
		{Name: "Nullable", Pos: ast.Position{Target: ast.TargetField, Path: []ast.PathEntry{{Kind: ast.PathArray}}}},
	}}
	if _, err := e.ap.FieldType(wrong); err == nil {
		t.Fatal("array step on String must fail")
	}
}

func TestDuplicatePrimaryOnParameter(t *testing.T) {
	e := newEnv(t)
	p0 := &ast.Param{Name: "a", Index: 0, Type: e.in.Builtins().String}
	p1 := &ast.Param{Name: "b", Index: 1, Type: e.in.Builtins().String}
	m := &ast.Method{Name: "m", Params: []*ast.Param{p0, p1}, Annotations: []ast.RawAnnotation{
		{Name: "Nullable", Pos: ast.Position{Target: ast.TargetMethodFormalParameter, Index: 1}},
		{Name: "NonNull", Pos: ast.Position{Target: ast.TargetMethodFormalParameter, Index: 1}},
		{Name: "NonNull", Pos: ast.Position{Target: ast.TargetMethodFormalParameter, Index: 0}},
	}}
	a, err := e.ap.ParamType(m, p0)
	if err != nil || a.String() != "@NonNull String" {
		t.Fatalf("param a = %v, %v", a, err)
	}
	b, err := e.ap.ParamType(m, p1)
	if err != nil {
		t.Fatal(err)
	}
	if problems := atype.Validate(b, atype.ValidateOptions{}); len(problems) != 1 {
		t.Fatalf("duplicate primary must be kept, got %s", b)
	}
	if _, err := e.ap.ParamType(m, &ast.Param{Name: "c", Index: 2}); err == nil {
		t.Fatal("foreign parameter must fail")
	}
}
