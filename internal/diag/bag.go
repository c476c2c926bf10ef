package diag

import (
	"fmt"
	"sort"
	"sync"
)

// Bag is a bounded collection of diagnostics. It is safe for concurrent use.
type Bag struct {
	mu    sync.Mutex
	items []Diagnostic
	max   int
}

// NewBag returns a bag holding at most max diagnostics; max <= 0 means no limit.
func NewBag(max int) *Bag {
	if max < 0 {
		max = 0
	}
	return &Bag{max: max}
}

// Add appends d unless the limit was reached, in which case it reports false.
func (b *Bag) Add(d Diagnostic) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.max > 0 && len(b.items) >= b.max {
		return false
	}
	b.items = append(b.items, d)
	return true
}

func (b *Bag) Cap() int {
	return b.max
}

// HasErrors reports whether any diagnostic has error severity.
func (b *Bag) HasErrors() bool {
	return b.countAtLeast(SevError) > 0
}

// HasWarnings reports whether any diagnostic is a warning or worse.
func (b *Bag) HasWarnings() bool {
	return b.countAtLeast(SevWarning) > 0
}

// HasAtLeast reports whether any diagnostic is sev or worse.
func (b *Bag) HasAtLeast(sev Severity) bool {
	return b.countAtLeast(sev) > 0
}

func (b *Bag) countAtLeast(sev Severity) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for i := range b.items {
		if b.items[i].Severity >= sev {
			n++
		}
	}
	return n
}

func (b *Bag) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Items returns a copy of the collected diagnostics.
func (b *Bag) Items() []Diagnostic {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Diagnostic, len(b.items))
	copy(out, b.items)
	return out
}

// Merge appends diagnostics from other, respecting the limit.
func (b *Bag) Merge(other *Bag) {
	if other == nil || other == b {
		return
	}
	for _, d := range other.Items() {
		if !b.Add(d) {
			return
		}
	}
}

// Filter keeps the diagnostics keep accepts.
func (b *Bag) Filter(keep func(*Diagnostic) bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.items[:0]
	for i := range b.items {
		if keep(&b.items[i]) {
			kept = append(kept, b.items[i])
		}
	}
	b.items = kept
}

// Transform rewrites every diagnostic in place.
func (b *Bag) Transform(fn func(*Diagnostic)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.items {
		fn(&b.items[i])
	}
}

// Sort orders diagnostics by file, start, end, severity (desc) and code for
// stable output.
func (b *Bag) Sort() {
	b.mu.Lock()
	defer b.mu.Unlock()
	sort.SliceStable(b.items, func(i, j int) bool {
		di, dj := b.items[i], b.items[j]
		if di.Primary.File != dj.Primary.File {
			return di.Primary.File < dj.Primary.File
		}
		if di.Primary.Start != dj.Primary.Start {
			return di.Primary.Start < dj.Primary.Start
		}
		if di.Primary.End != dj.Primary.End {
			return di.Primary.End < dj.Primary.End
		}
		if di.Severity != dj.Severity {
			return di.Severity > dj.Severity
		}
		if di.Code != dj.Code {
			return di.Code < dj.Code
		}
		return di.Message < dj.Message
	})
}

// Dedup drops diagnostics repeating code, primary span and message.
func (b *Bag) Dedup() {
	b.mu.Lock()
	defer b.mu.Unlock()
	seen := make(map[string]bool, len(b.items))
	kept := b.items[:0]
	for _, d := range b.items {
		key := fmt.Sprintf("%s:%s:%s", d.Code.ID(), d.Primary.String(), d.Message)
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, d)
	}
	b.items = kept
}
