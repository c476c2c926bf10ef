package diag

import "qualflow/internal/source"

// Reporter receives diagnostics from the loader, the driver and checkers.
type Reporter interface {
	Report(code Code, sev Severity, primary source.Span, msg string, notes []Note)
}

// Pending is a diagnostic that has not been sent yet. Notes are attached
// with WithNote and Emit delivers it once.
type Pending struct {
	to   Reporter
	d    Diagnostic
	sent bool
}

func pending(r Reporter, sev Severity, code Code, primary source.Span, msg string) *Pending {
	return &Pending{to: r, d: New(sev, code, primary, msg)}
}

// ReportError starts an error diagnostic.
func ReportError(r Reporter, code Code, primary source.Span, msg string) *Pending {
	return pending(r, SevError, code, primary, msg)
}

// ReportWarning starts a warning diagnostic.
func ReportWarning(r Reporter, code Code, primary source.Span, msg string) *Pending {
	return pending(r, SevWarning, code, primary, msg)
}

func (p *Pending) WithNote(sp source.Span, msg string) *Pending {
	if p != nil {
		p.d = p.d.WithNote(sp, msg)
	}
	return p
}

// Emit is a no-op after the first call.
func (p *Pending) Emit() {
	if p == nil || p.sent || p.to == nil {
		return
	}
	p.sent = true
	p.to.Report(p.d.Code, p.d.Severity, p.d.Primary, p.d.Message, p.d.Notes)
}

// BagReporter adds to Bag, dropping everything when Bag is nil.
type BagReporter struct{ Bag *Bag }

func (r BagReporter) Report(code Code, sev Severity, primary source.Span, msg string, notes []Note) {
	if r.Bag != nil {
		r.Bag.Add(Diagnostic{Severity: sev, Code: code, Message: msg, Primary: primary, Notes: notes})
	}
}

// NopReporter drops everything.
type NopReporter struct{}

func (NopReporter) Report(Code, Severity, source.Span, string, []Note) {}
