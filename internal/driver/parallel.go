package driver

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"qualflow/internal/ast"
	"qualflow/internal/checker"
	"qualflow/internal/diag"
)

// analyzeMethods analyses every method body concurrently. Diagnostics of
// each method go into their own bag and are merged into bag in declaration
// order so output does not depend on scheduling.
func (s *session) analyzeMethods(ctx context.Context, methods []*ast.Method, bag *diag.Bag) ([]*MethodResult, []*checker.Method, error) {
	results := make([]*MethodResult, len(methods))
	checked := make([]*checker.Method, len(methods))
	bags := make([]*diag.Bag, len(methods))
	if len(methods) == 0 {
		return results, checked, nil
	}

	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.jobs(len(methods)))
	for i, m := range methods {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			// no mutex needed: index i is owned by this goroutine
			bags[i] = diag.NewBag(s.opts.MaxDiagnostics)
			results[i], checked[i] = s.analyzeMethod(gctx, m, diag.BagReporter{Bag: bags[i]})
			s.timer.Add("methods", 1)
			if results[i].Flow != nil {
				for b := range results[i].Graph.Blocks {
					s.timer.Add("block visits", int64(results[i].Flow.Visits(results[i].Graph.Blocks[b].ID)))
				}
			}
			if obs := s.opts.MethodObserver; obs != nil {
				obs(MethodEvent{
					Name:        m.QualifiedName(),
					Done:        int(done.Add(1)),
					Total:       len(methods),
					Elapsed:     time.Since(start),
					Diagnostics: bags[i].Len(),
					Failed:      results[i].Err != nil,
				})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, checked, err
	}
	for _, b := range bags {
		bag.Merge(b)
	}
	return results, checked, nil
}
