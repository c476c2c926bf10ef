package nullness_test

import (
	"context"
	"slices"
	"testing"

	"qualflow/internal/checker"
	"qualflow/internal/checkers/nullness"
	"qualflow/internal/diag"
	"qualflow/internal/driver"
	"qualflow/internal/source"
)

func check(t *testing.T, src string, lints ...string) *driver.Result {
	t.Helper()
	r := checker.NewRegistry()
	if err := nullness.Register(r); err != nil {
		t.Fatal(err)
	}
	res, err := driver.CheckBytes(context.Background(), source.NewFileSet(), t.Name()+".yaml", []byte(src), driver.Options{
		Checker:        nullness.Name,
		Registry:       r,
		Lints:          lints,
		MaxDiagnostics: 50,
	})
	if err != nil {
		t.Fatal(err)
	}
	return res
}

const boxHeader = `
classes:
  - name: Box
    fields:
      - name: value
        type: String
        init: '"v"'
      - name: maybe
        type: "@Nullable String"
      - name: cache
        type: "@MonotonicNonNull String"
    methods:
      - name: touch
        body: []
      - name: take
        params: [String s]
        body: []
      - name: id
        static: true
        params: ["@PolyNull String s"]
        returns: "@PolyNull String"
        body:
          - return s
`

func TestChecks(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		lints []string
		want  []diag.Code
	}{
		{
			name: "dereference of nullable parameter",
			body: `
      - name: m
        params: ["@Nullable Box b"]
        returns: String
        body:
          - return b.value
`,
			want: []diag.Code{diag.CheckDereferenceNullable},
		},
		{
			name: "dereference refines the receiver",
			body: `
      - name: m
        params: ["@Nullable Box b"]
        returns: String
        body:
          - String s = b.value
          - return b.value
`,
			want: []diag.Code{diag.CheckDereferenceNullable},
		},
		{
			name: "null test guards dereference",
			body: `
      - name: m
        params: ["@Nullable Box b"]
        returns: String
        body:
          - if: b == null
            then:
              - return "none"
          - return b.value
`,
		},
		{
			name: "null assigned to non-null field",
			body: `
      - name: m
        body:
          - value = null
`,
			want: []diag.Code{diag.CheckAssignmentIncompatible},
		},
		{
			name: "nullable argument",
			body: `
      - name: m
        body:
          - take(maybe)
`,
			want: []diag.Code{diag.CheckArgumentIncompatible},
		},
		{
			name: "null returned as non-null",
			body: `
      - name: m
        returns: String
        body:
          - return null
`,
			want: []diag.Code{diag.CheckReturnIncompatible},
		},
		{
			name: "null returned as nullable",
			body: `
      - name: m
        returns: "@Nullable String"
        body:
          - return null
`,
		},
		{
			name: "calls forget nullable fields",
			body: `
      - name: m
        returns: String
        body:
          - if: maybe == null
            then:
              - return "none"
          - touch()
          - return maybe
`,
			want: []diag.Code{diag.CheckReturnIncompatible},
		},
		{
			name: "calls keep monotonic fields",
			body: `
      - name: m
        returns: String
        body:
          - if: cache == null
            then:
              - cache = "c"
          - touch()
          - return cache
`,
		},
		{
			name: "polymorphic result follows the argument",
			body: `
      - name: m
        returns: String
        body:
          - String ok = id("a")
          - take(ok)
          - return id(maybe)
`,
			want: []diag.Code{diag.CheckReturnIncompatible},
		},
		{
			name: "redundant comparison without lint",
			body: `
      - name: m
        params: [Box b]
        returns: boolean
        body:
          - return b == null
`,
		},
		{
			name: "redundant comparison",
			body: `
      - name: m
        params: [Box b]
        returns: boolean
        body:
          - return b == null
`,
			lints: []string{nullness.LintRedundant},
			want:  []diag.Code{diag.CheckRedundantNullComparison},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := check(t, boxHeader+tt.body, tt.lints...)
			var got []diag.Code
			for _, d := range res.Bag.Items() {
				got = append(got, d.Code)
			}
			if !slices.Equal(got, tt.want) {
				for _, d := range res.Bag.Items() {
					t.Logf("%s %s: %s", d.Code.ID(), res.FileSet.Describe(d.Primary), d.Message)
				}
				t.Errorf("codes = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUninitializedFields(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want int
	}{
		{
			name: "no constructor",
			src: `
classes:
  - name: P
    fields:
      - name: name
        type: String
`,
			want: 1,
		},
		{
			name: "constructor leaves field unset",
			src: `
classes:
  - name: P
    fields:
      - name: name
        type: String
    methods:
      - name: <init>
        body: []
`,
			want: 1,
		},
		{
			name: "constructor assigns field",
			src: `
classes:
  - name: P
    fields:
      - name: name
        type: String
      - name: note
        type: "@Nullable String"
    methods:
      - name: <init>
        params: [String n]
        body:
          - name = n
`,
		},
		{
			name: "static and initialized fields",
			src: `
classes:
  - name: P
    fields:
      - name: shared
        type: String
        static: true
      - name: name
        type: String
        init: '"p"'
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := check(t, tt.src)
			var n int
			for _, d := range res.Bag.Items() {
				if d.Code != diag.CheckUninitializedField {
					t.Errorf("unexpected %s: %s", d.Code.ID(), d.Message)
					continue
				}
				n++
			}
			if n != tt.want {
				t.Errorf("uninitialized field errors = %d, want %d", n, tt.want)
			}
		})
	}
}

func TestHierarchies(t *testing.T) {
	c, err := nullness.New()
	if err != nil {
		t.Fatal(err)
	}
	h := c.Hierarchy()
	if len(h.Tops()) != 2 {
		t.Fatalf("tops = %d, want nullness and initialization", len(h.Tops()))
	}
	for _, tc := range []struct {
		sub, sup string
		want     bool
	}{
		{"NonNull", "MonotonicNonNull", true},
		{"MonotonicNonNull", "Nullable", true},
		{"Nullable", "NonNull", false},
		{"FBCBottom", "UnderInitialization", true},
		{"Initialized", "UnderInitialization", false},
		{"NotNull", "Nonnull", true},
	} {
		sub, ok1 := h.Lookup(tc.sub)
		sup, ok2 := h.Lookup(tc.sup)
		if !ok1 || !ok2 {
			t.Fatalf("lookup %s/%s failed", tc.sub, tc.sup)
		}
		if got := h.IsSubtype(sub, sup); got != tc.want {
			t.Errorf("IsSubtype(%s, %s) = %v, want %v", tc.sub, tc.sup, got, tc.want)
		}
	}
	if got := c.Lints(); !slices.Equal(got, []string{nullness.LintRedundant}) {
		t.Errorf("Lints = %v", got)
	}
	r := checker.NewRegistry()
	if err := nullness.Register(r); err != nil {
		t.Fatal(err)
	}
	if err := nullness.Register(r); err == nil {
		t.Error("second registration accepted")
	}
}
