package driver

import (
	"qualflow/internal/ast"
	"qualflow/internal/atype"
	"qualflow/internal/cfg"
	"qualflow/internal/checker"
	"qualflow/internal/diag"
	"qualflow/internal/flow"
	"qualflow/internal/observ"
	"qualflow/internal/source"
	"qualflow/internal/types"
)

// Result is the outcome of one run. When CacheHit is set only the file set
// and diagnostics are filled in.
type Result struct {
	FileSet  *source.FileSet
	File     *source.File
	Bag      *diag.Bag
	CacheHit bool
	Timings  observ.Report

	Checker  checker.Checker
	Program  *ast.Program
	Interner *types.Interner
	Types    *checker.Types
	// Methods holds one entry per method body in declaration order, when
	// the run kept results.
	Methods []*MethodResult
}

// MethodResult is the analysis of one method body. Err is set when the
// graph could not be built or the analysis failed; Flow is nil then.
type MethodResult struct {
	Method *ast.Method
	Graph  *cfg.Graph
	Types  *checker.MethodTypes
	Flow   *flow.Result
	Err    error
}

// Method finds the result for "Class.method".
func (r *Result) Method(qualified string) (*MethodResult, bool) {
	for _, m := range r.Methods {
		if m.Method.QualifiedName() == qualified {
			return m, true
		}
	}
	return nil, false
}

// TypeOf returns the refined annotated type of the node lowered from expr,
// or nil when expr produced no analysed node.
func (m *MethodResult) TypeOf(expr ast.ExprID) *atype.AnnotatedType {
	if m.Flow == nil || m.Graph == nil {
		return nil
	}
	n := m.Graph.Nodes.ByExpr(expr)
	if n == nil || !m.Flow.Reached(n.ID) {
		return nil
	}
	return m.Flow.AnnotatedTypeOf(n.ID)
}

// HasErrors reports whether the run produced error diagnostics.
func (r *Result) HasErrors() bool {
	return r.Bag != nil && r.Bag.HasErrors()
}
