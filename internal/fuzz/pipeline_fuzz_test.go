package fuzztests

import (
	"context"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"qualflow/internal/checker"
	"qualflow/internal/checkers/nullness"
	"qualflow/internal/diag"
	"qualflow/internal/driver"
	"qualflow/internal/frontend"
	"qualflow/internal/source"
	"qualflow/internal/types"
)

// checkTimeout bounds one pipeline run. Longer runs indicate a loop that
// ignores the visit bound.
const checkTimeout = 5 * time.Second

func FuzzLoadProgram(f *testing.F) {
	addProgramSeeds(f)
	f.Fuzz(func(t *testing.T, input []byte) {
		input = clampInput(input)
		fs := source.NewFileSet()
		bag := diag.NewBag(128)
		prog, ok := frontend.LoadBytes(context.Background(), fs, "fuzz.yaml", input, types.NewInterner(), diag.BagReporter{Bag: bag})
		if ok && prog == nil {
			t.Fatal("successful load without a program")
		}
		if !ok && !bag.HasErrors() {
			t.Fatal("failed load without an error diagnostic")
		}
	})
}

func FuzzCheckStatement(f *testing.F) {
	for _, s := range statementSeeds {
		f.Add(s)
	}
	reg := checker.NewRegistry()
	if err := nullness.Register(reg); err != nil {
		f.Fatal(err)
	}
	f.Fuzz(func(t *testing.T, stmt string) {
		if len(stmt) > maxFuzzInput {
			stmt = stmt[:maxFuzzInput]
		}
		content, err := yaml.Marshal(statementProgram(stmt))
		if err != nil {
			t.Skip()
		}
		runWithTimeout(t, reg, content)
	})
}

func FuzzCheckProgram(f *testing.F) {
	addProgramSeeds(f)
	reg := checker.NewRegistry()
	if err := nullness.Register(reg); err != nil {
		f.Fatal(err)
	}
	f.Fuzz(func(t *testing.T, input []byte) {
		runWithTimeout(t, reg, clampInput(input))
	})
}

// statementProgram places stmt in a method of a class with a nullable
// self-typed field, a method to call and an int array.
func statementProgram(stmt string) map[string]any {
	return map[string]any{
		"classes": []any{map[string]any{
			"name": "A",
			"fields": []any{
				map[string]any{"name": "f", "type": "@Nullable A"},
			},
			"methods": []any{
				map[string]any{"name": "m", "params": []string{"A a", "A b", "A c", "String s"}, "body": []any{}},
				map[string]any{"name": "run", "params": []string{"A x", "int[] xs"}, "body": []any{stmt}},
			},
		}},
	}
}

func runWithTimeout(t *testing.T, reg *checker.Registry, content []byte) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		opts := driver.Options{Checker: nullness.Name, Registry: reg, Jobs: 1, MaxDiagnostics: 128}
		if _, err := driver.CheckBytes(ctx, source.NewFileSet(), "fuzz.yaml", content, opts); err != nil {
			t.Errorf("check failed: %v", err)
		}
	}()
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatalf("check hang detected after %v\ninput (%d bytes): %q", checkTimeout, len(content), truncateForLog(content, 200))
	}
}

func truncateForLog(input []byte, maxLen int) []byte {
	if len(input) <= maxLen {
		return input
	}
	return append(input[:maxLen:maxLen], "..."...)
}
