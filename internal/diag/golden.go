package diag

import (
	"cmp"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"qualflow/internal/source"
)

// shortLine is one rendered row of FormatShortDiagnostics.
type shortLine struct {
	sev  string
	code string
	path string
	line uint32
	col  uint32
	msg  string
}

func compareShort(a, b shortLine) int {
	return cmp.Or(
		cmp.Compare(a.path, b.path),
		cmp.Compare(a.line, b.line),
		cmp.Compare(a.col, b.col),
		cmp.Compare(a.sev, b.sev),
		cmp.Compare(a.code, b.code),
		cmp.Compare(a.msg, b.msg),
	)
}

// FormatShortDiagnostics renders diagnostics one per line as
// "severity QFnnnn path:line:col message", sorted by location. Golden
// files under testdata use the same layout. Diagnostics without a resolvable
// span are left out.
func FormatShortDiagnostics(diags []Diagnostic, fs *source.FileSet, includeNotes bool) string {
	if fs == nil {
		return ""
	}
	var rows []shortLine
	for i := range diags {
		d := &diags[i]
		if row, ok := locate(fs, d.Primary); ok {
			row.sev, row.code, row.msg = SeverityLabel(d.Severity), d.Code.ID(), oneLine(d.Message)
			rows = append(rows, row)
		}
		if !includeNotes {
			continue
		}
		for _, note := range d.Notes {
			if row, ok := locate(fs, note.Span); ok {
				row.sev, row.code, row.msg = "note", d.Code.ID(), oneLine(note.Msg)
				rows = append(rows, row)
			}
		}
	}
	slices.SortStableFunc(rows, compareShort)

	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = fmt.Sprintf("%s %s %s:%d:%d %s", r.sev, r.code, r.path, r.line, r.col, r.msg)
	}
	return strings.Join(lines, "\n")
}

// locate fills the path and position of span. Real files print relative to
// the file set's base directory so golden output is machine independent.
func locate(fs *source.FileSet, span source.Span) (shortLine, bool) {
	file := fs.Get(span.File)
	if file == nil {
		return shortLine{}, false
	}
	start, _ := fs.Resolve(span)
	path := file.Path
	if file.Flags&source.FileVirtual == 0 {
		path = file.FormatPath("relative", fs.BaseDir())
	}
	path = filepath.ToSlash(path)
	for strings.HasPrefix(path, "./") {
		path = path[2:]
	}
	return shortLine{path: path, line: start.Line, col: start.Col}, true
}

// SeverityLabel returns the lower-case label used in short and JSON output.
func SeverityLabel(sev Severity) string {
	switch sev {
	case SevError:
		return "error"
	case SevWarning:
		return "warning"
	}
	return "info"
}

func oneLine(msg string) string {
	return strings.TrimSpace(strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(msg))
}
