package frontend_test

import (
	"os"
	"slices"
	"strings"
	"testing"

	"qualflow/internal/ast"
	"qualflow/internal/diag"
	"qualflow/internal/testkit"
	"qualflow/internal/types"
)

func loadFile(t *testing.T, name string) *testkit.Loaded {
	t.Helper()
	src, err := os.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatal(err)
	}
	return testkit.MustLoad(t, string(src))
}

func positions(annos []ast.RawAnnotation) []string {
	out := make([]string, len(annos))
	for i, a := range annos {
		out[i] = "@" + a.Name + " " + a.Pos.String()
	}
	return out
}

func TestLoadBox(t *testing.T) {
	l := loadFile(t, "box.yaml")
	if len(l.Prog.Classes) != 3 {
		t.Fatalf("got %d classes, want 3", len(l.Prog.Classes))
	}
	box, ok := l.Prog.Class("Box")
	if !ok {
		t.Fatal("Box not loaded")
	}
	if got := positions(box.Annotations); !slices.Equal(got, []string{"@Nullable class_type_parameter[param=0]"}) {
		t.Fatalf("Box annotations = %v", got)
	}
	label, _ := box.Field("label")
	if got := positions(label.Annotations); !slices.Equal(got, []string{"@Nullable field"}) {
		t.Fatalf("label annotations = %v", got)
	}
	items, _ := box.Field("items")
	if got := positions(items.Annotations); !slices.Equal(got, []string{"@Nullable field"}) {
		t.Fatalf("items annotations = %v", got)
	}
	if l.Types.Kind(items.Type) != types.KindArray {
		t.Fatalf("items has type %s", types.Label(l.Types, items.Type))
	}
	count, _ := box.Field("count")
	if !count.Static || !count.Init.IsValid() {
		t.Fatalf("count should be a static field with an initialiser")
	}

	describe := l.Method(t, "Box", "describe")
	if got := positions(describe.Annotations); !slices.Equal(got, []string{"@Nullable method_formal_parameter[param=0]"}) {
		t.Fatalf("describe annotations = %v", got)
	}
	if len(l.Prog.Methods()) != 4 {
		t.Fatalf("got %d methods with bodies, want 4", len(l.Prog.Methods()))
	}
}

func TestLoadRegistersMethods(t *testing.T) {
	l := loadFile(t, "box.yaml")
	var got []string
	for _, m := range l.Prog.Methods() {
		got = append(got, m.QualifiedName())
	}
	want := []string{"Box.<init>", "Box.get", "Box.describe", "Sorted.max"}
	if !slices.Equal(got, want) {
		t.Fatalf("methods with bodies = %v, want %v", got, want)
	}
	cmp, _ := l.Prog.Class("Comparable")
	if m, ok := cmp.Method("compareTo"); !ok || m.Body.IsValid() {
		t.Fatalf("compareTo should be declared without a body")
	}
	box, _ := l.Prog.Class("Box")
	if len(box.Methods) != 3 {
		t.Fatalf("Box declares %d methods, want 3", len(box.Methods))
	}
}

func TestInterfaceFirstBoundIsNumberedFromOne(t *testing.T) {
	l := loadFile(t, "box.yaml")
	sorted, _ := l.Prog.Class("Sorted")
	want := []string{"@NonNull class_type_parameter_bound[param=0, bound=1]"}
	if got := positions(sorted.Annotations); !slices.Equal(got, want) {
		t.Fatalf("Sorted annotations = %v, want %v", got, want)
	}
	max := l.Method(t, "Sorted", "max")
	if len(max.TypeParams) != 1 {
		t.Fatalf("max has %d type parameters", len(max.TypeParams))
	}
	upper := l.Types.UpperBound(max.TypeParams[0].Var)
	if l.Types.Kind(upper) != types.KindIntersection {
		t.Fatalf("U has upper bound %s, want an intersection", types.Label(l.Types, upper))
	}
}

func TestLoadResolvesMembers(t *testing.T) {
	l := loadFile(t, "box.yaml")
	exprs := l.Prog.Exprs
	var implicit, calls, statics int
	for i := uint32(1); i <= exprs.Arena.Len(); i++ {
		id := ast.ExprID(i)
		switch e := exprs.Get(id); e.Kind {
		case ast.ExprImplicitThis:
			implicit++
		case ast.ExprCall:
			d, _ := exprs.Call(id)
			if d.Name == "compareTo" {
				calls++
				if e.Type != l.Types.Builtins().Int {
					t.Errorf("compareTo has type %s", types.Label(l.Types, e.Type))
				}
			}
		case ast.ExprField:
			if d, _ := exprs.Field(id); d.Static && d.Name == "count" {
				statics++
				if d.Recv.IsValid() {
					t.Errorf("static field read has a receiver")
				}
			}
		}
	}
	// value once and label twice, through implicit this.
	if implicit != 3 {
		t.Errorf("got %d implicit receivers, want 3", implicit)
	}
	if calls != 1 {
		t.Errorf("got %d compareTo calls, want 1", calls)
	}
	if statics != 4 {
		t.Errorf("got %d static count reads, want 4", statics)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want diag.Code
		at   string
	}{
		{"yaml", "classes: [", diag.FrontSyntax, ""},
		{"unknown key", "classes:\n  - name: A\n    colour: red\n", diag.FrontSyntax, "colour: red"},
		{"unknown type", "classes:\n  - name: A\n    fields:\n      - name: f\n        type: Missing\n", diag.FrontUnknownType, "Missing"},
		{"duplicate class", "classes:\n  - name: A\n  - name: A\n", diag.FrontDuplicateDecl, "A"},
		{"arity", "classes:\n  - name: A\n    type_params: [T]\n  - name: B\n    fields:\n      - name: f\n        type: A<String, String>\n", diag.FrontArityMismatch, "A<String, String>"},
		{"unknown name", "classes:\n  - name: A\n    methods:\n      - name: m\n        body:\n          - x = 1\n", diag.FrontUnknownName, "x"},
		{"unknown member", "classes:\n  - name: A\n    methods:\n      - name: m\n        params: [A a]\n        body:\n          - a.nope()\n", diag.FrontUnknownMember, "a.nope()"},
		{"break outside", "classes:\n  - name: A\n    methods:\n      - name: m\n        body:\n          - break\n", diag.FrontBreakOutside, "break"},
		{"condition", "classes:\n  - name: A\n    methods:\n      - name: m\n        body:\n          - if: \"1\"\n            then: []\n", diag.FrontTypeMismatch, "1"},
		{"void return", "classes:\n  - name: A\n    methods:\n      - name: m\n        body:\n          - return 1\n", diag.FrontTypeMismatch, "return 1"},
		{"bad target", "classes:\n  - name: A\n    fields:\n      - name: f\n        type: String\n        annotations: [\"@N method_return\"]\n", diag.FrontBadAnnotation, "@N method_return"},
		{"syntax", "classes:\n  - name: A\n    methods:\n      - name: m\n        body:\n          - a +\n", diag.FrontSyntax, ""},
		{"static this", "classes:\n  - name: A\n    methods:\n      - name: m\n        static: true\n        body:\n          - this\n", diag.FrontBadExpression, "this"},
		{"duplicate local", "classes:\n  - name: A\n    methods:\n      - name: m\n        params: [int x]\n        body:\n          - int x = 1\n", diag.FrontDuplicateDecl, "int x = 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := testkit.LoadSource(t, tt.src)
			if l.OK {
				t.Fatalf("load succeeded, want %s", tt.want.ID())
			}
			codes := l.Codes()
			if !slices.Contains(codes, tt.want) {
				t.Fatalf("got codes %v, want %s", codes, tt.want.ID())
			}
			if tt.at == "" {
				return
			}
			for _, d := range l.Diags.Items() {
				if d.Code != tt.want {
					continue
				}
				got := string(l.File.Content[d.Primary.Start:d.Primary.End])
				if !strings.Contains(got, tt.at) && !strings.Contains(tt.at, got) {
					t.Fatalf("%s points at %q, want %q", d.Code.ID(), got, tt.at)
				}
				return
			}
		})
	}
}
