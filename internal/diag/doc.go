// Package diag defines the diagnostic model shared by the front end, the
// annotation applier, the validity pass and checker plugins.
//
// Diagnostic is the central record: a Severity, a numeric Code with a stable
// string form (QF1xxx front end, QF2xxx annotation application, QF3xxx type
// validity, QF4xxx dataflow, QF5xxx plugin checks), a message, a primary span
// and optional notes.
//
// Producers emit through a Reporter, usually via a Pending diagnostic:
//
//	diag.ReportError(r, diag.TypeInvalidConflicting, span, msg).
//		WithNote(declSpan, "declared here").
//		Emit()
//
// BagReporter collects into a Bag, which supports sorting and deduplication.
// Rendering lives in internal/diagfmt; this package does no IO.
package diag
