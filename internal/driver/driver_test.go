package driver_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"qualflow/internal/atype"
	"qualflow/internal/checker"
	"qualflow/internal/checkers/nullness"
	"qualflow/internal/diag"
	"qualflow/internal/driver"
	"qualflow/internal/node"
	"qualflow/internal/source"
)

func registry(t *testing.T) *checker.Registry {
	t.Helper()
	r := checker.NewRegistry()
	if err := nullness.Register(r); err != nil {
		t.Fatal(err)
	}
	return r
}

func options(t *testing.T) driver.Options {
	return driver.Options{Checker: nullness.Name, Registry: registry(t), MaxDiagnostics: 100}
}

func codes(bag *diag.Bag) []diag.Code {
	var out []diag.Code
	for _, d := range bag.Items() {
		out = append(out, d.Code)
	}
	return out
}

func checkFile(t *testing.T, opts driver.Options) *driver.Result {
	t.Helper()
	res, err := driver.Check(context.Background(), source.NewFileSet(), filepath.Join("testdata", "list.yaml"), opts)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func checkSource(t *testing.T, src string, opts driver.Options) *driver.Result {
	t.Helper()
	res, err := driver.CheckBytes(context.Background(), source.NewFileSet(), t.Name()+".yaml", []byte(src), opts)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestCheckReportsNullableDereference(t *testing.T) {
	res := checkFile(t, options(t))
	got := codes(res.Bag)
	if !slices.Equal(got, []diag.Code{diag.CheckDereferenceNullable}) {
		for _, d := range res.Bag.Items() {
			t.Logf("%s %s: %s", d.Code.ID(), res.FileSet.Describe(d.Primary), d.Message)
		}
		t.Fatalf("codes = %v, want one dereference", got)
	}
	d := res.Bag.Items()[0]
	if !strings.Contains(d.Message, "next") {
		t.Errorf("message %q does not name the receiver", d.Message)
	}
	start, _ := res.FileSet.Resolve(d.Primary)
	line := res.File.GetLine(start.Line)
	if !strings.Contains(line, "return next.label") {
		t.Errorf("diagnostic points at %q", line)
	}
	if !res.HasErrors() {
		t.Error("HasErrors = false")
	}
}

func TestCheckLints(t *testing.T) {
	opts := options(t)
	opts.Lints = []string{nullness.LintRedundant}
	res := checkFile(t, opts)
	var warnings int
	for _, d := range res.Bag.Items() {
		if d.Code == diag.CheckRedundantNullComparison {
			warnings++
			if d.Severity != diag.SevWarning {
				t.Errorf("severity = %v, want warning", d.Severity)
			}
		}
	}
	if warnings != 1 {
		t.Errorf("redundant comparison warnings = %d, want 1: %v", warnings, codes(res.Bag))
	}
}

func TestCheckWarningOptions(t *testing.T) {
	opts := options(t)
	opts.Lints = []string{nullness.LintRedundant}
	opts.WarningsAsErrors = true
	res := checkFile(t, opts)
	for _, d := range res.Bag.Items() {
		if d.Code == diag.CheckRedundantNullComparison && d.Severity != diag.SevError {
			t.Errorf("warning not promoted: %v", d.Severity)
		}
	}

	opts.WarningsAsErrors = false
	opts.IgnoreWarnings = true
	res = checkFile(t, opts)
	for _, d := range res.Bag.Items() {
		if d.Severity != diag.SevError {
			t.Errorf("%s kept with severity %v", d.Code.ID(), d.Severity)
		}
	}

	opts.WarningsAsErrors = true
	if _, err := driver.Check(context.Background(), source.NewFileSet(), filepath.Join("testdata", "list.yaml"), opts); err == nil {
		t.Error("conflicting warning options accepted")
	}
}

func TestCheckDeclarationProblems(t *testing.T) {
	src := `
classes:
  - name: A
    methods:
      - name: both
        params: ["@Nullable @NonNull String s"]
      - name: tainted
        params: ["@Tainted String s"]
`
	res := checkSource(t, src, options(t))
	got := codes(res.Bag)
	want := []diag.Code{diag.ApplyUnsupportedQualifier, diag.TypeInvalidConflicting}
	slices.Sort(got)
	if !slices.Equal(got, want) {
		t.Fatalf("codes = %v, want %v", got, want)
	}
}

func TestCheckNonTermination(t *testing.T) {
	opts := options(t)
	opts.MaxBlockVisits = 1
	res := checkFile(t, opts)
	var found *diag.Diagnostic
	for _, d := range res.Bag.Items() {
		if d.Code == diag.FlowNonTermination {
			found = &d
			break
		}
	}
	if found == nil {
		t.Fatalf("no non-termination diagnostic: %v", codes(res.Bag))
	}
	if !strings.Contains(found.Message, "Node.count") {
		t.Errorf("message %q does not name the method", found.Message)
	}
	var keys []string
	for _, n := range found.Notes {
		k, _, _ := strings.Cut(n.Msg, ":")
		keys = append(keys, k)
	}
	for _, k := range []string{"method", "block", "location", "visits", "store diff"} {
		if !slices.Contains(keys, k) {
			t.Errorf("notes %v lack %q", keys, k)
		}
	}
}

func TestCheckKeepsResults(t *testing.T) {
	opts := options(t)
	opts.KeepResults = true
	res := checkFile(t, opts)
	if len(res.Methods) != 5 {
		t.Fatalf("kept %d methods, want 5", len(res.Methods))
	}
	mr, ok := res.Method("Node.unsafe")
	if !ok || mr.Flow == nil || mr.Graph == nil {
		t.Fatalf("Node.unsafe result = %+v", mr)
	}
	nc := res.Checker.(*nullness.Checker)
	var checked bool
	for _, n := range mr.Graph.Nodes.All() {
		if n.Kind != node.KindFieldAccess || n.Field.Name != "next" {
			continue
		}
		at := mr.TypeOf(n.Tree.Expr)
		if at == nil {
			t.Fatal("no refined type for next")
		}
		if q, ok := at.AnnotationIn(nc.Nullable); !ok || q != nc.Nullable {
			t.Errorf("next is %v, want Nullable", at)
		}
		checked = true
	}
	if !checked {
		t.Error("no field access to next")
	}
}

func TestDeclaredTypesAreCopies(t *testing.T) {
	opts := options(t)
	opts.KeepResults = true
	res := checkFile(t, opts)
	mr, ok := res.Method("Node.unsafe")
	if !ok {
		t.Fatal("no result for Node.unsafe")
	}
	nc := res.Checker.(*nullness.Checker)
	nullable := func(what string, got *atype.AnnotatedType) {
		t.Helper()
		if q, ok := got.AnnotationIn(nc.Nullable); !ok || q != nc.Nullable {
			t.Errorf("%s lost @Nullable after a caller mutated its copy: %v", what, got)
		}
	}
	var checked bool
	for _, n := range mr.Graph.Nodes.All() {
		if n.Kind != node.KindFieldAccess || n.Field.Name != "next" {
			continue
		}
		a := mr.Types.DeclaredType(n)
		if a == nil {
			t.Fatal("no declared type for next")
		}
		a.ClearAnnotations()
		a.AddAnnotation(nc.NonNull)
		nullable("DeclaredType", mr.Types.DeclaredType(n))

		_, ft, ok := res.Types.Field(n.Field.Owner, "next")
		if !ok {
			t.Fatal("Node.next not found")
		}
		ft.ClearAnnotations()
		_, ft, _ = res.Types.Field(n.Field.Owner, "next")
		nullable("Field", ft)
		checked = true
		break
	}
	if !checked {
		t.Error("no field access to next")
	}
}

func TestCheckParallelIsDeterministic(t *testing.T) {
	var mu sync.Mutex
	var names []string
	opts := options(t)
	opts.Jobs = 4
	opts.Lints = []string{"all"}
	opts.MethodObserver = func(ev driver.MethodEvent) {
		mu.Lock()
		defer mu.Unlock()
		names = append(names, ev.Name)
		if ev.Total != 5 {
			t.Errorf("Total = %d", ev.Total)
		}
	}
	first := checkFile(t, opts)
	if len(names) != 5 {
		t.Errorf("observed %d methods, want 5", len(names))
	}
	opts.Jobs = 1
	opts.MethodObserver = nil
	second := checkFile(t, opts)
	a := diag.FormatShortDiagnostics(first.Bag.Items(), first.FileSet, true)
	b := diag.FormatShortDiagnostics(second.Bag.Items(), second.FileSet, true)
	if a != b {
		t.Errorf("jobs=4:\n%s\njobs=1:\n%s", a, b)
	}
}

func TestCheckUsesDiskCache(t *testing.T) {
	cache, err := driver.OpenDiskCacheAt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	opts := options(t)
	opts.Cache = cache
	first := checkFile(t, opts)
	if first.CacheHit {
		t.Fatal("first run hit the cache")
	}
	second := checkFile(t, opts)
	if !second.CacheHit {
		t.Fatal("second run missed the cache")
	}
	a := diag.FormatShortDiagnostics(first.Bag.Items(), first.FileSet, true)
	b := diag.FormatShortDiagnostics(second.Bag.Items(), second.FileSet, true)
	if a != b {
		t.Errorf("cached diagnostics differ:\n%s\nvs\n%s", a, b)
	}

	opts.Lints = []string{nullness.LintRedundant}
	if checkFile(t, opts).CacheHit {
		t.Error("changing lints reused the cache entry")
	}
	if err := cache.DropAll(); err != nil {
		t.Fatal(err)
	}
	if checkFile(t, opts).CacheHit {
		t.Error("hit after DropAll")
	}
}

func TestCheckClasspathErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "Bad.class")
	if err := os.WriteFile(bad, []byte("not a class file"), 0o600); err != nil {
		t.Fatal(err)
	}
	opts := options(t)
	opts.Classpath = []string{bad, filepath.Join(dir, "Missing.class")}
	res := checkFile(t, opts)
	got := codes(res.Bag)
	for _, want := range []diag.Code{diag.FrontBadClassfile, diag.FrontLoadFile} {
		if !slices.Contains(got, want) {
			t.Errorf("codes %v lack %s", got, want.ID())
		}
	}
}

func TestCheckTimings(t *testing.T) {
	var mu sync.Mutex
	var phases []string
	opts := options(t)
	opts.EnableTimings = true
	opts.PhaseObserver = func(ev driver.PhaseEvent) {
		mu.Lock()
		defer mu.Unlock()
		if ev.Status == driver.PhaseEnd {
			phases = append(phases, ev.Name)
		}
	}
	res := checkFile(t, opts)
	items := res.Bag.Items()
	last := items[len(items)-1]
	if last.Code != diag.ObsTimings || len(last.Notes) != 1 || !strings.Contains(last.Notes[0].Msg, `"phases"`) {
		t.Fatalf("last diagnostic = %+v", last)
	}
	want := []string{"classpath", "load", "annotate", "validate", "analyze", "check classes"}
	if !slices.Equal(phases, want) {
		t.Errorf("phases = %v, want %v", phases, want)
	}
	if len(res.Timings.Phases) != len(want) {
		t.Errorf("report has %d phases", len(res.Timings.Phases))
	}
}

func TestCheckInputErrors(t *testing.T) {
	opts := options(t)
	res, err := driver.Check(context.Background(), source.NewFileSet(), filepath.Join("testdata", "missing.yaml"), opts)
	if err != nil {
		t.Fatal(err)
	}
	if got := codes(res.Bag); !slices.Equal(got, []diag.Code{diag.FrontLoadFile}) {
		t.Errorf("codes = %v", got)
	}

	opts.Checker = "units"
	if _, err := driver.Check(context.Background(), source.NewFileSet(), filepath.Join("testdata", "list.yaml"), opts); err == nil {
		t.Error("unknown checker accepted")
	}

	res = checkSource(t, "classes: [", options(t))
	if got := codes(res.Bag); !slices.Equal(got, []diag.Code{diag.FrontSyntax}) {
		t.Errorf("codes = %v", got)
	}
}
