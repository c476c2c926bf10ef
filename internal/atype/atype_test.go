package atype_test

import (
	"strings"
	"testing"

	"qualflow/internal/atype"
	"qualflow/internal/bug"
	"qualflow/internal/qual"
	"qualflow/internal/source"
	"qualflow/internal/types"
)

type fixture struct {
	h                            *qual.Hierarchy
	in                           *types.Interner
	f                            *atype.Factory
	nullable, nonNull, poly      qual.ID
	unknownInit, initialized, bt qual.ID
	list, comparable             types.ClassID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := qual.NewBuilder()
	fx := &fixture{}
	fx.nullable = b.Add("Nullable")
	fx.nonNull = b.Add("NonNull", fx.nullable)
	fx.poly = b.AddPoly("PolyNull", fx.nullable)
	fx.unknownInit = b.Add("UnknownInitialization")
	fx.initialized = b.Add("Initialized", fx.unknownInit)
	fx.bt = b.Add("FBCBottom", fx.initialized)
	h, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	fx.h = h
	fx.in = types.NewInterner()
	fx.f = atype.NewFactory(h, fx.in)

	coll := fx.in.RegisterClass("Collection", true)
	e := fx.in.RegisterTypeVar("E", "Collection", 0, source.Span{})
	fx.in.UpdateClass(coll, func(ci *types.ClassInfo) { ci.TypeParams = []types.TypeID{e} })
	fx.list = fx.in.RegisterClass("List", true)
	x := fx.in.RegisterTypeVar("X", "List", 0, source.Span{})
	fx.in.UpdateClass(fx.list, func(ci *types.ClassInfo) {
		ci.TypeParams = []types.TypeID{x}
		ci.Supers = []types.TypeID{fx.in.Intern(types.MakeDeclared(coll, x))}
	})
	fx.comparable = fx.in.RegisterClass("Comparable", true)
	return fx
}

func (fx *fixture) listOf(elem types.TypeID) types.TypeID {
	return fx.in.Intern(types.MakeDeclared(fx.list, elem))
}

func TestDeepCopyIsIndependent(t *testing.T) {
	fx := newFixture(t)
	arr := fx.in.Intern(types.MakeArray(fx.listOf(fx.in.Builtins().String)))
	orig := fx.f.FromType(arr)
	defaults := atype.NewDefaults(fx.h).Set(atype.LocOther, fx.nonNull, fx.initialized)
	defaults.Apply(orig, atype.LocOther)
	orig.Component().TypeArgs()[0].AddAnnotation(fx.nullable)

	cp := orig.DeepCopy()
	if !atype.Equal(orig, cp) {
		t.Fatalf("copy differs: %s vs %s", orig, cp)
	}
	cp.Component().TypeArgs()[0].AddAnnotation(fx.nonNull)
	cp.AddAnnotation(fx.nullable)
	if got := orig.String(); got != "@NonNull @Initialized List<@Initialized @Nullable String> @NonNull @Initialized []" {
		t.Fatalf("original mutated through copy: %s", got)
	}
	if atype.Equal(orig, cp) {
		t.Fatal("copies should now differ")
	}
	if !atype.SameStructure(orig, cp) || orig.Key() != cp.Key() {
		t.Fatal("structure must be unaffected by qualifiers")
	}
}

func TestAddReplacesAppendAccumulates(t *testing.T) {
	fx := newFixture(t)
	at := fx.f.FromType(fx.in.Builtins().String)
	at.AddAnnotation(fx.nullable)
	at.AddAnnotation(fx.initialized)
	at.AddAnnotation(fx.nonNull)
	if got := at.Annotations(); len(got) != 2 || !at.HasAnnotation(fx.nonNull) || at.HasAnnotation(fx.nullable) {
		t.Fatalf("AddAnnotation must replace within a hierarchy: %v", got)
	}
	at.AppendAnnotation(fx.nullable)
	if q, _ := at.AnnotationIn(fx.nullable); q != fx.nonNull {
		t.Fatalf("AnnotationIn = %s", fx.h.Name(q))
	}
	problems := atype.Validate(at, atype.ValidateOptions{})
	if len(problems) != 1 || problems[0].Kind != atype.ProblemConflicting || len(problems[0].Quals) != 2 {
		t.Fatalf("problems = %+v", problems)
	}
	if msg := problems[0].Message(fx.h); !strings.Contains(msg, "@NonNull, @Nullable") || !strings.Contains(msg, "<root>") {
		t.Fatalf("message = %q", msg)
	}
	if !at.RemoveAnnotation(fx.nullable) || at.RemoveAnnotation(fx.nullable) {
		t.Fatal("RemoveAnnotation must report presence")
	}
	at.ClearAnnotations()
	if len(at.Annotations()) != 0 {
		t.Fatal("ClearAnnotations left qualifiers")
	}
}

func TestIntersectionSupertypesAreLive(t *testing.T) {
	fx := newFixture(t)
	a := fx.in.Intern(types.MakeDeclared(fx.in.RegisterClass("A", false)))
	b := fx.in.Intern(types.MakeDeclared(fx.in.RegisterClass("B", true)))
	inter := fx.f.FromType(fx.in.Intern(types.MakeIntersection(a, b)))
	supers := inter.DirectSuperTypes()
	if len(supers) != 2 {
		t.Fatalf("supers = %d", len(supers))
	}
	supers[1].AddAnnotation(fx.nullable)
	if !inter.Members()[1].HasAnnotation(fx.nullable) || inter.Members()[0].HasAnnotation(fx.nullable) {
		t.Fatalf("annotation not placed on member B: %s", inter)
	}
	if inter.String() != "A & @Nullable B" {
		t.Fatalf("string = %q", inter.String())
	}
}

func TestDeclaredSupertypesCopyPrimaries(t *testing.T) {
	fx := newFixture(t)
	lt := fx.f.FromTypeWith(fx.listOf(fx.in.Builtins().String), fx.nonNull)
	supers := lt.DirectSuperTypes()
	if len(supers) != 1 {
		t.Fatalf("supers = %v", supers)
	}
	if got := supers[0].String(); got != "@NonNull Collection<String>" {
		t.Fatalf("super = %q", got)
	}
	supers[0].AddAnnotation(fx.nullable)
	if !lt.HasAnnotation(fx.nonNull) {
		t.Fatal("declared supertypes must be fresh trees")
	}
}

func TestRecursiveBoundIsCut(t *testing.T) {
	fx := newFixture(t)
	tv := fx.in.RegisterTypeVar("T", "Sorted", 0, source.Span{})
	fx.in.SetTypeVarBounds(tv, fx.in.Intern(types.MakeDeclared(fx.comparable, tv)), types.NoTypeID)
	at := fx.f.FromType(tv)
	upper := at.UpperBound()
	if upper == nil || upper.Kind() != types.KindDeclared {
		t.Fatalf("upper = %v", upper)
	}
	inner := upper.TypeArgs()[0]
	if !inner.IsCut() || inner.UpperBound() != nil {
		t.Fatalf("inner T must be cut: %+v", inner)
	}
	if at.LowerBound().Kind() != types.KindNull {
		t.Fatalf("lower bound kind = %s", at.LowerBound().Kind())
	}
}

func TestDefaultsAndEffectiveAnnotation(t *testing.T) {
	fx := newFixture(t)
	tv := fx.in.RegisterTypeVar("T", "Box", 0, source.Span{})
	at := fx.f.FromType(fx.listOf(tv))
	d := atype.NewDefaults(fx.h).
		Set(atype.LocOther, fx.nonNull, fx.initialized).
		Set(atype.LocUpperBound, fx.nullable)
	d.Apply(at, atype.LocOther)
	if problems := atype.Validate(at, atype.ValidateOptions{RequireAll: true}); len(problems) != 0 {
		t.Fatalf("defaulted type invalid: %+v", problems)
	}
	arg := at.TypeArgs()[0]
	if len(arg.Annotations()) != 0 {
		t.Fatalf("type variable use must stay unannotated: %s", arg)
	}
	if q, ok := arg.EffectiveAnnotationIn(fx.nullable); !ok || q != fx.nullable {
		t.Fatalf("effective = %s", fx.h.Name(q))
	}
	if q, _ := arg.LowerBound().AnnotationIn(fx.nullable); q != fx.nonNull {
		t.Fatalf("null lower bound must be bottom, got %s", fx.h.Name(q))
	}
	if d.For(atype.LocLocal, fx.initialized) != fx.initialized {
		t.Fatal("LocLocal must fall back to LocOther")
	}
}

func TestLUBAndSubtype(t *testing.T) {
	fx := newFixture(t)
	id := fx.in.Intern(types.MakeArray(fx.in.Builtins().String))
	mk := func(outer, inner qual.ID) *atype.AnnotatedType {
		at := fx.f.FromTypeWith(id, outer, fx.initialized)
		at.Component().AddAnnotations([]qual.ID{inner, fx.initialized})
		return at
	}
	a := mk(fx.nonNull, fx.nullable)
	b := mk(fx.nullable, fx.nonNull)
	l := atype.LUB(a, b)
	if q, _ := l.AnnotationIn(fx.nullable); q != fx.nullable {
		t.Fatalf("primary lub = %s", fx.h.Name(q))
	}
	if q, _ := l.Component().AnnotationIn(fx.nullable); q != fx.nullable {
		t.Fatalf("component lub = %s", fx.h.Name(q))
	}
	if !atype.IsSubtype(a, l) || !atype.IsSubtype(b, l) {
		t.Fatal("lub must be an upper bound")
	}
	if atype.IsSubtype(l, a) {
		t.Fatal("lub is not below its operand")
	}
	if err := bug.Catch(func() { atype.LUB(a, fx.f.FromType(fx.in.Builtins().String)) }); err == nil {
		t.Fatal("lub across structures must fail")
	}
	partial := fx.f.FromType(id)
	if err := bug.Catch(func() { atype.LUB(a, partial) }); err == nil {
		t.Fatal("lub of partially annotated trees must fail")
	}
}

func TestTypeArgumentsAreInvariant(t *testing.T) {
	fx := newFixture(t)
	id := fx.listOf(fx.in.Builtins().String)
	mk := func(arg qual.ID) *atype.AnnotatedType {
		at := fx.f.FromTypeWith(id, fx.nonNull, fx.initialized)
		at.TypeArgs()[0].AddAnnotations([]qual.ID{arg, fx.initialized})
		return at
	}
	if atype.IsSubtype(mk(fx.nonNull), mk(fx.nullable)) {
		t.Fatal("List<@NonNull String> must not be a subtype of List<@Nullable String>")
	}
	if !atype.IsSubtype(mk(fx.poly), mk(fx.nullable)) {
		t.Fatal("unresolved poly argument must match")
	}
}
