package testkit

import (
	"context"
	"testing"

	"qualflow/internal/ast"
	"qualflow/internal/diag"
	"qualflow/internal/frontend"
	"qualflow/internal/source"
	"qualflow/internal/types"
)

// Loaded is a program loaded from an in-memory YAML source.
type Loaded struct {
	Prog  *ast.Program
	Types *types.Interner
	Files *source.FileSet
	File  *source.File
	Diags *diag.Bag
	OK    bool
}

// LoadSource loads src without failing on diagnostics.
func LoadSource(tb testing.TB, src string) *Loaded {
	tb.Helper()
	fs := source.NewFileSet()
	in := types.NewInterner()
	bag := diag.NewBag(100)
	id := fs.AddVirtual(tb.Name()+".yaml", []byte(src))
	prog, ok := frontend.Load(context.Background(), fs, id, in, diag.BagReporter{Bag: bag})
	return &Loaded{Prog: prog, Types: in, Files: fs, File: fs.Get(id), Diags: bag, OK: ok}
}

// MustLoad loads src and fails tb on any diagnostic or span invariant
// violation.
func MustLoad(tb testing.TB, src string) *Loaded {
	tb.Helper()
	l := LoadSource(tb, src)
	if !l.OK || l.Diags.Len() != 0 {
		for _, d := range l.Diags.Items() {
			tb.Errorf("%s %s: %s", d.Code.ID(), l.Files.Describe(d.Primary), d.Message)
		}
		tb.Fatalf("loading %s failed", tb.Name())
	}
	if err := CheckSpanInvariants(l.Prog, l.File); err != nil {
		tb.Fatalf("span invariants: %v", err)
	}
	return l
}

// Codes lists the codes of the collected diagnostics, in report order.
func (l *Loaded) Codes() []diag.Code {
	out := make([]diag.Code, 0, l.Diags.Len())
	for _, d := range l.Diags.Items() {
		out = append(out, d.Code)
	}
	return out
}

// Method finds "Class.method", failing tb when absent.
func (l *Loaded) Method(tb testing.TB, class, name string) *ast.Method {
	tb.Helper()
	c, ok := l.Prog.Class(class)
	if !ok {
		tb.Fatalf("no class %s", class)
	}
	m, ok := c.Method(name)
	if !ok {
		tb.Fatalf("no method %s.%s", class, name)
	}
	return m
}
