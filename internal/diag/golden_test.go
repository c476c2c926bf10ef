package diag

import (
	"testing"

	"qualflow/internal/source"
)

func TestFormatShortDiagnostics(t *testing.T) {
	fs := source.NewFileSet()
	file := fs.AddVirtual("testdata/sample.yaml", []byte("a\nb\n"))

	diags := []Diagnostic{
		{
			Severity: SevWarning,
			Code:     CheckRedundantNullComparison,
			Message:  "another",
			Primary:  source.Span{File: file, Start: 2, End: 3},
		},
		{
			Severity: SevError,
			Code:     TypeInvalidConflicting,
			Message:  "first line\nsecond",
			Primary:  source.Span{File: file, Start: 0, End: 1},
			Notes: []Note{
				{Span: source.Span{File: file, Start: 2, End: 3}, Msg: "note line"},
				{Span: source.Span{File: 42}, Msg: "unknown file is skipped"},
			},
		},
	}

	expected := "error QF3001 testdata/sample.yaml:1:1 first line second\n" +
		"note QF3001 testdata/sample.yaml:2:1 note line\n" +
		"warning QF5005 testdata/sample.yaml:2:1 another"

	if got := FormatShortDiagnostics(diags, fs, true); got != expected {
		t.Fatalf("unexpected diagnostics:\nwant:\n%s\n\ngot:\n%s", expected, got)
	}
}

func TestBagLimitSortDedup(t *testing.T) {
	b := NewBag(3)
	r := BagReporter{Bag: b}
	ReportError(r, TypeInvalidConflicting, source.Span{Start: 9, End: 10}, "late").Emit()
	ReportWarning(r, CheckRedundantNullComparison, source.Span{Start: 1, End: 2}, "early").Emit()
	ReportWarning(r, CheckRedundantNullComparison, source.Span{Start: 1, End: 2}, "early").Emit()
	if b.Add(NewError(FlowInternal, source.Span{}, "over limit")) {
		t.Fatalf("bag should be full")
	}
	b.Dedup()
	b.Sort()
	items := b.Items()
	if len(items) != 2 || items[0].Message != "early" || items[1].Message != "late" {
		t.Fatalf("items = %+v", items)
	}
	if !b.HasErrors() {
		t.Fatalf("expected errors")
	}
}

func TestPendingEmitsOnce(t *testing.T) {
	b := NewBag(0)
	rb := ReportError(BagReporter{Bag: b}, CheckDereferenceNullable, source.Span{}, "deref").
		WithNote(source.Span{Start: 4}, "declared here")
	rb.Emit()
	rb.Emit()
	if b.Len() != 1 || len(b.Items()[0].Notes) != 1 {
		t.Fatalf("bag = %+v", b.Items())
	}
}

func TestDedupReporterAndCodes(t *testing.T) {
	b := NewBag(0)
	r := NewDedupReporter(BagReporter{Bag: b})
	for range 3 {
		r.Report(CheckReturnIncompatible, SevError, source.Span{Start: 1}, "m", nil)
	}
	if b.Len() != 1 {
		t.Fatalf("len = %d", b.Len())
	}
	if TypeInvalidConflicting.Key() != "type.invalid.conflicting.annos" || TypeInvalidConflicting.ID() != "QF3001" {
		t.Fatalf("code rendering: %s %s", TypeInvalidConflicting.ID(), TypeInvalidConflicting.Key())
	}
	if c, ok := CodeByKey("dereference.of.nullable"); !ok || c != CheckDereferenceNullable {
		t.Fatalf("CodeByKey = %v %v", c, ok)
	}
}

func TestBagFilterTransform(t *testing.T) {
	bag := NewBag(0)
	bag.Add(New(SevWarning, CheckRedundantNullComparison, source.Span{}, "w"))
	bag.Add(New(SevInfo, ObsInfo, source.Span{}, "i"))
	bag.Add(New(SevError, CheckDereferenceNullable, source.Span{}, "e"))

	if !bag.HasAtLeast(SevWarning) {
		t.Fatal("warning not seen")
	}
	bag.Filter(func(d *Diagnostic) bool { return d.Severity != SevInfo })
	if bag.Len() != 2 {
		t.Fatalf("Len = %d after filter", bag.Len())
	}
	bag.Transform(func(d *Diagnostic) {
		if d.Severity == SevWarning {
			d.Severity = SevError
		}
	})
	for _, d := range bag.Items() {
		if d.Severity != SevError {
			t.Errorf("%s not promoted", d.Code.ID())
		}
	}
}

func TestParseSeverity(t *testing.T) {
	for name, want := range map[string]Severity{"error": SevError, "Warning": SevWarning, " INFO ": SevInfo} {
		if got, ok := ParseSeverity(name); !ok || got != want {
			t.Errorf("ParseSeverity(%q) = %v, %v", name, got, ok)
		}
	}
	if _, ok := ParseSeverity("fatal"); ok {
		t.Error("unknown severity parsed")
	}
	if Severity(9).String() != "UNKNOWN" {
		t.Error("out of range severity")
	}
}
