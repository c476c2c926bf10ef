package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"qualflow/internal/ast"
	"qualflow/internal/atype"
	"qualflow/internal/bug"
	"qualflow/internal/cfg"
	"qualflow/internal/checker"
	"qualflow/internal/classfile"
	"qualflow/internal/diag"
	"qualflow/internal/flow"
	"qualflow/internal/frontend"
	"qualflow/internal/node"
	"qualflow/internal/observ"
	"qualflow/internal/source"
	"qualflow/internal/trace"
	"qualflow/internal/types"
)

const nonTerminationMsg = "dataflow analysis did not reach a fixpoint"

// session holds the state shared by the phases of one run.
type session struct {
	fs       *source.FileSet
	opts     *Options
	checker  checker.Checker
	types    *checker.Types
	transfer *flow.Transfer
	lints    map[string]bool
	timer    *observ.Timer
}

// Check loads the program at path and runs the configured checker over it.
// Problems with the input are diagnostics; the error is reserved for an
// unusable configuration or a cancelled context.
func Check(ctx context.Context, fs *source.FileSet, path string, opts Options) (*Result, error) {
	id, err := fs.Load(path)
	if err != nil {
		if _, cerr := opts.newChecker(); cerr != nil {
			return nil, cerr
		}
		bag := diag.NewBag(opts.MaxDiagnostics)
		diag.ReportError(diag.BagReporter{Bag: bag}, diag.FrontLoadFile, source.Span{},
			fmt.Sprintf("cannot read %s: %v", path, err)).Emit()
		return &Result{FileSet: fs, Bag: bag}, nil
	}
	return run(ctx, fs, id, &opts)
}

// CheckBytes checks content as a virtual file called name.
func CheckBytes(ctx context.Context, fs *source.FileSet, name string, content []byte, opts Options) (*Result, error) {
	return run(ctx, fs, fs.AddVirtual(name, content), &opts)
}

func run(ctx context.Context, fs *source.FileSet, id source.FileID, opts *Options) (*Result, error) {
	c, err := opts.newChecker()
	if err != nil {
		return nil, err
	}
	file := fs.Get(id)
	span := trace.Begin(trace.FromContext(ctx), trace.ScopeDriver, "check", trace.CurrentSpan(ctx))
	ctx = trace.WithSpan(ctx, span)
	defer span.End(file.Path)

	s := &session{fs: fs, opts: opts, checker: c, lints: opts.lintSet()}
	if opts.EnableTimings {
		s.timer = observ.NewTimer()
	}
	res := &Result{FileSet: fs, File: file, Bag: diag.NewBag(opts.MaxDiagnostics), Checker: c}

	end := s.begin("classpath")
	cpBag := diag.NewBag(opts.MaxDiagnostics)
	stubs, cpDigests := loadClasspath(fs, opts.Classpath, diag.BagReporter{Bag: cpBag})
	end(fmt.Sprintf("%d classes", len(stubs)))

	var key Digest
	useCache := opts.Cache != nil && !opts.KeepResults
	if useCache {
		key = runDigest(opts, Digest(file.Hash), cpDigests)
		if s.fromCache(key, res) {
			span.WithExtra("cache", "hit")
			s.adjust(res.Bag)
			s.finish(res, file)
			return res, nil
		}
	}
	res.Bag.Merge(cpBag)
	r := diag.BagReporter{Bag: res.Bag}

	in := types.NewInterner()
	res.Interner = in
	end = s.begin("load")
	stubClasses, _ := classfile.Declare(in, stubs, r)
	prog, ok := frontend.Load(ctx, fs, id, in, r)
	for _, sc := range stubClasses {
		prog.AddClass(sc)
	}
	res.Program = prog
	end(fmt.Sprintf("%d classes", len(prog.Classes)))
	if !ok {
		return s.done(res, file, key, useCache)
	}

	end = s.begin("annotate")
	ts := checker.NewTypes(c, prog, in)
	ts.Applier.OnUnknown = func(raw ast.RawAnnotation) {
		diag.ReportWarning(r, diag.ApplyUnsupportedQualifier, raw.Span,
			fmt.Sprintf("annotation @%s is not a qualifier of the %s checker; ignored", raw.Name, c.Name())).Emit()
	}
	s.types = ts
	res.Types = ts
	for _, e := range ts.Prepare() {
		reportElementError(r, e)
	}
	end("")

	end = s.begin("validate")
	ts.Declarations(func(element string, sp source.Span, at *atype.AnnotatedType) {
		reportProblems(r, ts, element, sp, at)
	})
	end("")

	s.transfer = flow.NewTransfer()
	c.Transfer(s.transfer)

	end = s.begin("analyze")
	methods := prog.Methods()
	results, checked, err := s.analyzeMethods(ctx, methods, res.Bag)
	end(fmt.Sprintf("%d methods", len(methods)))
	if err != nil {
		return nil, err
	}
	if opts.KeepResults {
		res.Methods = results
	}

	if cc, ok := c.(checker.ClassChecker); ok {
		end = s.begin("check classes")
		stub := make(map[*ast.Class]bool, len(stubClasses))
		for _, sc := range stubClasses {
			stub[sc] = true
		}
		byMethod := make(map[*ast.Method]*checker.Method, len(checked))
		for _, m := range checked {
			if m != nil {
				byMethod[m.Decl] = m
			}
		}
		for _, cls := range prog.Classes {
			if stub[cls] {
				continue
			}
			view := &checker.Class{Decl: cls, Types: ts}
			for _, m := range cls.Methods {
				if cm, ok := byMethod[m]; ok {
					view.Methods = append(view.Methods, cm)
				}
			}
			cc.CheckClass(view, r)
		}
		end("")
	}
	return s.done(res, file, key, useCache)
}

// done sorts diagnostics, stores them in the cache and appends timings.
func (s *session) done(res *Result, file *source.File, key Digest, useCache bool) (*Result, error) {
	res.Bag.Sort()
	res.Bag.Dedup()
	if useCache {
		payload := encodePayload(s.checker.Name(), s.fs, res.Bag.Items())
		if err := s.opts.Cache.Put(key, payload); err != nil {
			diag.ReportWarning(diag.BagReporter{Bag: res.Bag}, diag.ObsInfo, source.Span{},
				fmt.Sprintf("cannot write result cache: %v", err)).Emit()
		}
	}
	s.adjust(res.Bag)
	s.finish(res, file)
	return res, nil
}

// adjust applies the warning options to bag.
func (s *session) adjust(bag *diag.Bag) {
	if s.opts.IgnoreWarnings {
		bag.Filter(func(d *diag.Diagnostic) bool {
			return d.Severity != diag.SevWarning && d.Severity != diag.SevInfo
		})
	}
	if s.opts.WarningsAsErrors {
		bag.Transform(func(d *diag.Diagnostic) {
			if d.Severity == diag.SevWarning {
				d.Severity = diag.SevError
			}
		})
		bag.Sort()
	}
}

func (s *session) finish(res *Result, file *source.File) {
	if s.timer == nil {
		return
	}
	report := s.timer.Report()
	res.Timings = report
	appendTimingDiagnostic(res.Bag, timingPayload{
		Path:     file.Path,
		TotalMS:  report.TotalMS,
		Phases:   report.Phases,
		Counters: report.Counters,
	})
}

func (s *session) fromCache(key Digest, res *Result) bool {
	var p DiskPayload
	ok, err := s.opts.Cache.Get(key, &p)
	if err != nil || !ok || p.Checker != s.checker.Name() {
		return false
	}
	bag := diag.NewBag(s.opts.MaxDiagnostics)
	if !decodePayload(&p, s.fs, bag) {
		return false
	}
	res.Bag = bag
	res.CacheHit = true
	return true
}

// begin starts a phase; the returned func ends it with a note.
func (s *session) begin(name string) func(note string) {
	start := time.Now()
	if obs := s.opts.PhaseObserver; obs != nil {
		obs(PhaseEvent{Name: name, Status: PhaseStart})
	}
	idx := s.timer.Begin(name)
	return func(note string) {
		s.timer.End(idx, note)
		if obs := s.opts.PhaseObserver; obs != nil {
			obs(PhaseEvent{Name: name, Status: PhaseEnd, Elapsed: time.Since(start)})
		}
	}
}

// loadClasspath reads class files as stubs. Unreadable or malformed files
// are reported and skipped; every path contributes to the returned digests.
func loadClasspath(fs *source.FileSet, paths []string, r diag.Reporter) ([]classfile.Stub, []Digest) {
	var stubs []classfile.Stub
	digests := make([]Digest, 0, len(paths))
	for _, path := range paths {
		id, err := fs.LoadBinary(path)
		if err != nil {
			digests = append(digests, digestString("unreadable:"+path))
			diag.ReportError(r, diag.FrontLoadFile, source.Span{},
				fmt.Sprintf("cannot read class file %s: %v", path, err)).Emit()
			continue
		}
		f := fs.Get(id)
		digests = append(digests, Digest(f.Hash))
		cls, err := classfile.Parse(f.Content)
		if err != nil {
			diag.ReportError(r, diag.FrontBadClassfile, source.Span{File: id},
				fmt.Sprintf("%s: %v", path, err)).Emit()
			continue
		}
		stubs = append(stubs, classfile.Stub{File: id, Class: cls})
	}
	return stubs, digests
}

// analyzeMethod builds the graph of m, runs the dataflow analysis and the
// checker's method checks. It returns a nil Method when the analysis failed.
func (s *session) analyzeMethod(ctx context.Context, m *ast.Method, r diag.Reporter) (*MethodResult, *checker.Method) {
	span := trace.Begin(trace.FromContext(ctx), trace.ScopeMethod, m.QualifiedName(), trace.CurrentSpan(ctx))
	ctx = trace.WithSpan(ctx, span)
	defer span.End("")

	mr := &MethodResult{Method: m}
	g, err := cfg.Build(s.types.Program, m, s.types.Interner)
	if err != nil {
		mr.Err = err
		var ce *cfg.Error
		if errors.As(err, &ce) {
			diag.ReportError(r, diag.FrontBadStatement, ce.Span, ce.Msg).Emit()
		} else {
			diag.ReportError(r, diag.FlowInternal, m.Span, err.Error()).Emit()
		}
		return mr, nil
	}
	mr.Graph = g

	mt := s.types.ForMethod(m, g.Nodes)
	mr.Types = mt
	for _, e := range mt.Errors() {
		reportElementError(r, e)
	}
	for _, n := range g.Nodes.All() {
		if n.Kind != node.KindVariableDeclaration {
			continue
		}
		if lt, ok := mt.Local(n.Decl.Name); ok {
			reportProblems(r, s.types, m.QualifiedName()+"#"+n.Decl.Name, n.Span, lt)
		}
	}

	fr, err := flow.Analyze(ctx, flow.Analysis{
		H:        s.types.H,
		Graph:    g,
		Transfer: s.transfer.Clone(),
		Oracle:   mt,
		Entry:    mt.EntryStore(),
		Options: flow.Options{
			MaxBlockVisits: s.opts.MaxBlockVisits,
			KeepOnCall:     mt.KeepOnCall(),
			Describe:       s.fs.Describe,
		},
	})
	if err != nil {
		mr.Err = err
		reportFlowError(r, m, err)
		return mr, nil
	}
	mr.Flow = fr
	cm := checker.NewMethod(mt, g, fr, s.lints)
	s.checker.Check(cm, diag.NewDedupReporter(r))
	return mr, cm
}

// reportElementError maps annotation application failures: positions that
// do not exist on the element are misplaced annotations, anything else is
// an internal failure.
func reportElementError(r diag.Reporter, e checker.ElementError) {
	be, ok := bug.As(e.Err)
	if !ok {
		diag.ReportError(r, diag.ApplyInternal, e.Span,
			fmt.Sprintf("cannot apply annotations of %s: %v", e.Element, e.Err)).Emit()
		return
	}
	code := diag.ApplyInternal
	if strings.HasPrefix(be.Msg, "invalid ") {
		code = diag.ApplyMisplaced
	}
	b := diag.ReportError(r, code, e.Span, fmt.Sprintf("cannot apply annotations of %s: %s", e.Element, be.Msg))
	for _, kv := range be.Context {
		b.WithNote(e.Span, kv.Key+": "+kv.Value)
	}
	b.Emit()
}

func reportProblems(r diag.Reporter, ts *checker.Types, element string, sp source.Span, at *atype.AnnotatedType) {
	for _, p := range atype.Validate(at, atype.ValidateOptions{RequireAll: true}) {
		code := diag.TypeInvalidConflicting
		if p.Kind == atype.ProblemMissing {
			code = diag.TypeInvalidMissing
		}
		diag.ReportError(r, code, sp, fmt.Sprintf("invalid type of %s: %s", element, p.Message(ts.H))).Emit()
	}
}

func reportFlowError(r diag.Reporter, m *ast.Method, err error) {
	be, ok := bug.As(err)
	if !ok {
		diag.ReportError(r, diag.FlowInternal, m.Span, err.Error()).Emit()
		return
	}
	code := diag.FlowInternal
	if be.Msg == nonTerminationMsg {
		code = diag.FlowNonTermination
	}
	b := diag.ReportError(r, code, m.Span, fmt.Sprintf("%s: %s", m.QualifiedName(), be.Msg))
	for _, kv := range be.Context {
		b.WithNote(m.Span, kv.Key+": "+kv.Value)
	}
	b.Emit()
}
