package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"qualflow/internal/diag"
	"qualflow/internal/source"
)

const tabWidth = 4

type palette struct {
	sev   map[diag.Severity]*color.Color
	loc   *color.Color
	code  *color.Color
	note  *color.Color
	frame *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		sev: map[diag.Severity]*color.Color{
			diag.SevError:   color.New(color.FgRed, color.Bold),
			diag.SevWarning: color.New(color.FgYellow, color.Bold),
			diag.SevInfo:    color.New(color.FgCyan, color.Bold),
		},
		loc:   color.New(color.Bold),
		code:  color.New(color.FgMagenta),
		note:  color.New(color.FgGreen, color.Bold),
		frame: color.New(color.FgBlue),
	}
	all := []*color.Color{p.loc, p.code, p.note, p.frame}
	for _, c := range p.sev {
		all = append(all, c)
	}
	for _, c := range all {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Pretty writes diagnostics in human readable form, in bag order (sort the
// bag first). Each one is
//
//	<path>:<line>:<col>: <SEV> <CODE>: <message>
//
// followed by the source line with the span underlined ^~~~ and, with
// ShowNotes, its notes in the same layout.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	p := &prettyPrinter{w: w, fs: fs, opts: opts, pal: newPalette(opts.Color)}
	for i, d := range bag.Items() {
		if i > 0 {
			fmt.Fprintln(w)
		}
		p.diagnostic(&d)
	}
}

type prettyPrinter struct {
	w    io.Writer
	fs   *source.FileSet
	opts PrettyOpts
	pal  palette
}

func (p *prettyPrinter) diagnostic(d *diag.Diagnostic) {
	sev := p.pal.sev[d.Severity]
	if sev == nil {
		sev = p.pal.loc
	}
	if loc, ok := p.location(d.Primary); ok {
		fmt.Fprintf(p.w, "%s: ", p.pal.loc.Sprint(loc))
	}
	fmt.Fprintf(p.w, "%s %s: %s\n", sev.Sprint(d.Severity.String()), p.pal.code.Sprint(d.Code.ID()), d.Message)
	p.snippet(d.Primary, sev)
	if !p.opts.ShowNotes && d.Code != diag.ObsTimings {
		return
	}
	for _, n := range d.Notes {
		fmt.Fprintf(p.w, "  %s ", p.pal.note.Sprint("note:"))
		if loc, ok := p.location(n.Span); ok && !n.Span.Empty() {
			fmt.Fprintf(p.w, "%s: ", loc)
		}
		fmt.Fprintln(p.w, n.Msg)
	}
}

// location renders path:line:col, or the bare path for class files.
func (p *prettyPrinter) location(sp source.Span) (string, bool) {
	f := p.fs.Get(sp.File)
	if f == nil {
		return "", false
	}
	path := formatPath(p.opts.PathMode, p.fs.BaseDir(), f.FormatPath)
	if f.Flags&source.FileBinary != 0 {
		return path, true
	}
	start, _ := p.fs.Resolve(sp)
	return fmt.Sprintf("%s:%d:%d", path, start.Line, start.Col), true
}

// snippet prints the first line of sp with Context lines around it.
func (p *prettyPrinter) snippet(sp source.Span, sev *color.Color) {
	f := p.fs.Get(sp.File)
	if f == nil || f.Flags&source.FileBinary != 0 || len(f.Content) == 0 {
		return
	}
	start, end := p.fs.Resolve(sp)
	if start.Line == 0 {
		return
	}
	ctx := uint32(max(p.opts.Context, 0))
	first := max(start.Line, ctx+1) - ctx
	last := start.Line + ctx
	gutter := len(fmt.Sprint(last))
	for ln := first; ln <= last; ln++ {
		if ln != start.Line && ln > uint32(len(f.LineIdx)+1) {
			break
		}
		line := f.GetLine(ln)
		fmt.Fprintf(p.w, "%s %s\n", p.pal.frame.Sprintf("%*d |", gutter, ln), p.clip(expandTabs(line)))
		if ln != start.Line {
			continue
		}
		stop := len(line)
		if end.Line == start.Line {
			stop = min(int(end.Col-1), len(line))
		}
		from := min(int(start.Col-1), len(line))
		pad := runewidth.StringWidth(expandTabs(line[:from]))
		width := max(runewidth.StringWidth(expandTabs(line[from:max(stop, from)])), 1)
		marker := "^" + strings.Repeat("~", width-1)
		fmt.Fprintf(p.w, "%s %s%s\n", p.pal.frame.Sprintf("%*s |", gutter, ""), strings.Repeat(" ", pad), sev.Sprint(marker))
	}
}

func (p *prettyPrinter) clip(line string) string {
	if p.opts.Width == 0 {
		return line
	}
	return runewidth.Truncate(line, int(p.opts.Width), "…")
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", strings.Repeat(" ", tabWidth))
}
