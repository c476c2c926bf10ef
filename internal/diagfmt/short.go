package diagfmt

import (
	"fmt"
	"io"

	"qualflow/internal/diag"
	"qualflow/internal/source"
)

// Short writes one line per diagnostic: "<path>:<line>:<col>: <SEV> <CODE>:
// <message>", without source lines or notes.
func Short(w io.Writer, bag *diag.Bag, fs *source.FileSet, mode PathMode) error {
	p := &prettyPrinter{w: w, fs: fs, opts: PrettyOpts{PathMode: mode}}
	for _, d := range bag.Items() {
		loc, ok := p.location(d.Primary)
		if !ok {
			loc = "-"
		}
		if _, err := fmt.Fprintf(w, "%s: %s %s: %s\n", loc, d.Severity, d.Code.ID(), d.Message); err != nil {
			return err
		}
	}
	return nil
}
