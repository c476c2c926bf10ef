package diagfmt

import (
	"bytes"
	"encoding/json"
	"testing"

	"qualflow/internal/diag"
	"qualflow/internal/source"
)

func TestJSONBasic(t *testing.T) {
	fs := source.NewFileSet()
	fileID := fs.AddVirtual("test.yaml", []byte("body:\n  - return next.label\n"))
	bag := diag.NewBag(10)
	d := diag.New(diag.SevError, diag.CheckDereferenceNullable, source.Span{File: fileID, Start: 17, End: 21}, "dereference")
	bag.Add(d.WithNote(source.Span{File: fileID, Start: 17, End: 21}, "found @Nullable"))

	var buf bytes.Buffer
	if err := JSON(&buf, bag, fs, JSONOpts{IncludePositions: true, PathMode: PathModeBasename, IncludeNotes: true}); err != nil {
		t.Fatal(err)
	}
	var out DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, buf.String())
	}
	if out.Count != 1 || len(out.Diagnostics) != 1 {
		t.Fatalf("count = %d, diagnostics = %d", out.Count, len(out.Diagnostics))
	}
	got := out.Diagnostics[0]
	if got.Severity != "ERROR" || got.Code != "QF5001" || got.Key != "dereference.of.nullable" {
		t.Errorf("header = %+v", got)
	}
	want := LocationJSON{File: "test.yaml", StartByte: 17, EndByte: 21, StartLine: 2, StartCol: 12, EndLine: 2, EndCol: 16}
	if got.Location != want {
		t.Errorf("location = %+v, want %+v", got.Location, want)
	}
	if len(got.Notes) != 1 || got.Notes[0].Message != "found @Nullable" {
		t.Errorf("notes = %+v", got.Notes)
	}
}

func TestJSONOptions(t *testing.T) {
	fs := source.NewFileSet()
	fileID := fs.AddVirtual("test.yaml", []byte("a\n"))
	bag := diag.NewBag(10)
	for range 3 {
		bag.Add(diag.New(diag.SevWarning, diag.CheckInfo, source.Span{File: fileID}, "w").WithNote(source.Span{}, "n"))
	}
	bag.Add(diag.New(diag.SevInfo, diag.ObsTimings, source.Span{File: 7}, "timings").WithNote(source.Span{File: 7}, `{"kind":"check"}`))

	out := BuildDiagnosticsOutput(bag, fs, JSONOpts{Max: 2})
	if out.Count != 2 || !out.Truncated {
		t.Errorf("Max ignored: count = %d, truncated = %v", out.Count, out.Truncated)
	}
	if out.Warnings != 3 || out.Errors != 0 {
		t.Errorf("summary counts the whole bag: warnings = %d, errors = %d", out.Warnings, out.Errors)
	}
	if len(out.Diagnostics[0].Notes) != 0 {
		t.Error("notes included without IncludeNotes")
	}
	if out.Diagnostics[0].Location.StartLine != 0 {
		t.Error("positions included without IncludePositions")
	}

	out = BuildDiagnosticsOutput(bag, fs, JSONOpts{IncludePositions: true})
	timings := out.Diagnostics[3]
	if len(timings.Notes) != 1 {
		t.Errorf("timings notes dropped: %+v", timings)
	}
	if timings.Location.File != "" {
		t.Errorf("span without file has path %q", timings.Location.File)
	}
}
