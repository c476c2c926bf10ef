package qual_test

import (
	"strings"
	"testing"

	"qualflow/internal/bug"
	"qualflow/internal/qual"
)

type lattice struct {
	h                                        *qual.Hierarchy
	nullable, monotonic, nonNull, polyNull   qual.ID
	unknownInit, underInit, initialized, fbc qual.ID
}

func buildLattice(t *testing.T) lattice {
	t.Helper()
	b := qual.NewBuilder()
	var l lattice
	l.nullable = b.Add("Nullable")
	l.monotonic = b.Add("MonotonicNonNull", l.nullable)
	l.nonNull = b.Add("NonNull", l.monotonic)
	l.polyNull = b.AddPoly("PolyNull", l.nullable)
	l.unknownInit = b.Add("UnknownInitialization")
	l.underInit = b.Add("UnderInitialization", l.unknownInit)
	l.initialized = b.Add("Initialized", l.unknownInit)
	l.fbc = b.Add("FBCBottom", l.underInit, l.initialized)
	b.Alias("CheckForNull", l.nullable)
	h, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	l.h = h
	return l
}

func TestLUBIsUpperBoundCommutativeIdempotent(t *testing.T) {
	l := buildLattice(t)
	h := l.h
	all := []qual.ID{l.nullable, l.monotonic, l.nonNull, l.unknownInit, l.underInit, l.initialized, l.fbc}
	for _, a := range all {
		for _, b := range all {
			if !h.SameHierarchy(a, b) {
				continue
			}
			lub := h.LUB(a, b)
			if !h.IsSubtype(a, lub) || !h.IsSubtype(b, lub) {
				t.Errorf("lub(%s, %s) = %s is not an upper bound", h.Name(a), h.Name(b), h.Name(lub))
			}
			if lub != h.LUB(b, a) {
				t.Errorf("lub(%s, %s) not commutative", h.Name(a), h.Name(b))
			}
			if h.LUB(lub, lub) != lub {
				t.Errorf("lub(%s, %s) not idempotent", h.Name(lub), h.Name(lub))
			}
			glb := h.GLB(a, b)
			if !h.IsSubtype(glb, a) || !h.IsSubtype(glb, b) {
				t.Errorf("glb(%s, %s) = %s is not a lower bound", h.Name(a), h.Name(b), h.Name(glb))
			}
		}
	}
	if got := h.LUB(l.underInit, l.initialized); got != l.unknownInit {
		t.Fatalf("lub(UnderInit, Initialized) = %s", h.Name(got))
	}
	if got := h.GLB(l.underInit, l.initialized); got != l.fbc {
		t.Fatalf("glb(UnderInit, Initialized) = %s", h.Name(got))
	}
}

func TestTopsBottomsHeights(t *testing.T) {
	l := buildLattice(t)
	h := l.h
	if got := h.Tops(); len(got) != 2 || got[0] != l.nullable || got[1] != l.unknownInit {
		t.Fatalf("tops = %v", got)
	}
	if h.Bottom(l.nullable) != l.nonNull {
		t.Fatalf("nullness bottom = %s", h.Name(h.Bottom(l.nullable)))
	}
	if h.Bottom(l.initialized) != l.fbc {
		t.Fatalf("init bottom = %s", h.Name(h.Bottom(l.initialized)))
	}
	if h.Height(l.nonNull) != 2 || h.Height(l.fbc) != 2 {
		t.Fatalf("heights = %d, %d", h.Height(l.nonNull), h.Height(l.fbc))
	}
	if h.Index(l.fbc) != 1 || h.Index(l.polyNull) != 0 {
		t.Fatalf("indices = %d, %d", h.Index(l.fbc), h.Index(l.polyNull))
	}
	if id, ok := h.Lookup("CheckForNull"); !ok || id != l.nullable {
		t.Fatalf("alias lookup = %v, %v", id, ok)
	}
}

func TestAliasCarriesArguments(t *testing.T) {
	b := qual.NewBuilder()
	top := b.Add("UnknownUnit")
	meters := b.AddArgs("Unit", []string{"m"}, top)
	seconds := b.AddArgs("Unit", []string{"s"}, top)
	b.Add("UnitBottom", meters, seconds)
	b.Alias("Measure", meters)
	h, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		args []string
		want qual.ID
		ok   bool
	}{
		{nil, meters, true},
		{[]string{"m"}, meters, true},
		{[]string{"s"}, seconds, true},
		{[]string{"kg"}, qual.NoID, false},
	}
	for _, tt := range tests {
		if got, ok := h.Lookup("Measure", tt.args...); got != tt.want || ok != tt.ok {
			t.Errorf("Lookup(Measure, %v) = %s, %v", tt.args, h.String(got), ok)
		}
	}
	if _, ok := h.Lookup("Unit"); ok {
		t.Error("bare family name must not resolve without arguments")
	}

	shadow := qual.NewBuilder()
	unit := shadow.AddArgs("Unit", []string{"m"})
	shadow.Alias("Unit", unit)
	if _, err := shadow.Build(); err == nil {
		t.Error("alias named like a declared family must be rejected")
	}
}

func TestCrossHierarchyIsInternalFailure(t *testing.T) {
	l := buildLattice(t)
	err := bug.Catch(func() { l.h.LUB(l.nonNull, l.initialized) })
	if err == nil {
		t.Fatal("expected consistency failure")
	}
	if v, _ := err.Get("operation"); v != "lub" {
		t.Fatalf("operation = %q", v)
	}
	if bug.Catch(func() { l.h.IsSubtype(l.fbc, l.nullable) }) == nil {
		t.Fatal("subtype across hierarchies must fail")
	}
}

func TestPolymorphicWildcardAndResolve(t *testing.T) {
	l := buildLattice(t)
	h := l.h
	if !h.IsSubtype(l.polyNull, l.nonNull) || !h.IsSubtype(l.nullable, l.polyNull) {
		t.Fatal("unresolved poly must be compatible with everything in its hierarchy")
	}
	if h.LUB(l.polyNull, l.nonNull) != l.nonNull || h.GLB(l.nullable, l.polyNull) != l.nullable {
		t.Fatal("poly must act as identity for lub/glb")
	}
	b := qual.Binding{}
	h.Bind(b, l.polyNull, l.nonNull)
	h.Bind(b, l.polyNull, l.monotonic)
	if got := h.Resolve(l.polyNull, b); got != l.monotonic {
		t.Fatalf("resolve = %s", h.Name(got))
	}
	if got := h.Resolve(l.nonNull, b); got != l.nonNull {
		t.Fatalf("plain resolve = %s", h.Name(got))
	}
	if p, ok := h.Poly(l.nonNull); !ok || p != l.polyNull {
		t.Fatalf("poly of nullness = %v, %v", p, ok)
	}
	if _, ok := h.Poly(l.fbc); ok {
		t.Fatal("init hierarchy has no poly")
	}
}

func TestBuildRejectsMalformedLattices(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *qual.Builder)
		want  string
	}{
		{
			name: "no unique bottom",
			build: func(b *qual.Builder) {
				top := b.Add("Top")
				b.Add("A", top)
				b.Add("B", top)
			},
			want: "no unique bottom",
		},
		{
			name: "no unique lub",
			build: func(b *qual.Builder) {
				top := b.Add("Top")
				c := b.Add("C", top)
				d := b.Add("D", top)
				x := b.Add("X", c, d)
				y := b.Add("Y", c, d)
				b.Add("Bot", x, y)
			},
			want: "least upper bound",
		},
		{
			name: "two tops reachable",
			build: func(b *qual.Builder) {
				t1 := b.Add("T1")
				t2 := b.Add("T2")
				b.Add("Both", t1, t2)
			},
			want: "exactly one hierarchy",
		},
		{
			name: "duplicate",
			build: func(b *qual.Builder) {
				b.Add("Top")
				b.Add("Top")
			},
			want: "declared twice",
		},
		{
			name: "poly on non-top",
			build: func(b *qual.Builder) {
				top := b.Add("Top")
				bot := b.Add("Bot", top)
				b.AddPoly("P", bot)
			},
			want: "not a hierarchy top",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := qual.NewBuilder()
			tt.build(b)
			_, err := b.Build()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestFormatListsMembers(t *testing.T) {
	l := buildLattice(t)
	var sb strings.Builder
	if err := l.h.Format(&sb); err != nil {
		t.Fatal(err)
	}
	out := sb.String()
	for _, want := range []string{"hierarchy @Nullable (height 2, bottom @NonNull)", "@MonotonicNonNull <: @Nullable", "poly @PolyNull"} {
		if !strings.Contains(out, want) {
			t.Errorf("format output missing %q:\n%s", want, out)
		}
	}
}
