package diag

import (
	"sync"

	"qualflow/internal/source"
)

type reportKey struct {
	code Code
	sev  Severity
	at   source.Span
	msg  string
}

// DedupReporter forwards each distinct diagnostic to Next once. A checker
// can reach the same tree along several paths and report it from each.
type DedupReporter struct {
	next Reporter
	mu   sync.Mutex
	seen map[reportKey]bool
}

func NewDedupReporter(next Reporter) *DedupReporter {
	return &DedupReporter{next: next, seen: map[reportKey]bool{}}
}

func (r *DedupReporter) Report(code Code, sev Severity, primary source.Span, msg string, notes []Note) {
	if r == nil || r.next == nil {
		return
	}
	k := reportKey{code, sev, primary, msg}
	r.mu.Lock()
	dup := r.seen[k]
	r.seen[k] = true
	r.mu.Unlock()
	if !dup {
		r.next.Report(code, sev, primary, msg, notes)
	}
}
