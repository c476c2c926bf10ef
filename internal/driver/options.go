// Package driver runs a checker over one program: it loads the input and
// class file stubs, applies annotations, builds and analyses every method
// body in parallel and collects diagnostics.
package driver

import (
	"errors"
	"runtime"

	"qualflow/internal/checker"
)

// Options configures one run.
type Options struct {
	// Checker names the checker in Registry.
	Checker  string
	Registry *checker.Registry
	// Classpath lists class files loaded as annotated library stubs.
	Classpath []string
	// Lints enables optional checks; "all" enables every one.
	Lints []string
	// Jobs bounds parallel method analyses; zero uses GOMAXPROCS.
	Jobs int
	// MaxBlockVisits overrides the derived per-block visit bound.
	MaxBlockVisits int
	MaxDiagnostics int
	EnableTimings  bool
	// IgnoreWarnings drops warnings and infos; WarningsAsErrors promotes
	// warnings. Both apply to cached results too.
	IgnoreWarnings   bool
	WarningsAsErrors bool
	// Cache stores diagnostics of finished runs. Nil disables it; runs that
	// keep results never read it.
	Cache *DiskCache
	// CacheSalt is mixed into cache keys, typically the manifest content
	// declaring a custom checker.
	CacheSalt []byte
	// KeepResults retains graphs, flow results and declared types for
	// inspection.
	KeepResults bool

	PhaseObserver  PhaseObserver
	MethodObserver MethodObserver
}

func (o *Options) jobs(n int) int {
	jobs := o.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	return max(1, min(jobs, n))
}

func (o *Options) lintSet() map[string]bool {
	out := make(map[string]bool, len(o.Lints))
	for _, l := range o.Lints {
		out[l] = true
	}
	return out
}

func (o *Options) validate() error {
	if o.IgnoreWarnings && o.WarningsAsErrors {
		return errors.New("IgnoreWarnings and WarningsAsErrors cannot be used together")
	}
	return nil
}

func (o *Options) newChecker() (checker.Checker, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	if o.Registry == nil {
		return nil, errors.New("no checker registry")
	}
	return o.Registry.New(o.Checker)
}
