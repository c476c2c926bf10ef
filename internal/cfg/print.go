package cfg

import (
	"fmt"
	"io"

	"qualflow/internal/types"
)

// Print writes a textual dump of g:
//
//	graph C.m (entry bb0):
//	  bb0:
//	    n0 marker: marker (start of C.m)
//	    if n2 ? bb1 : bb2
func Print(w io.Writer, g *Graph, in *types.Interner) error {
	if w == nil || g == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "graph %s (entry bb%d):\n", g.Name, g.Entry); err != nil {
		return err
	}
	for i := range g.Blocks {
		bb := &g.Blocks[i]
		fmt.Fprintf(w, "  bb%d:\n", bb.ID)
		for _, id := range bb.Nodes {
			n := g.Nodes.Get(id)
			if n == nil {
				fmt.Fprintf(w, "    n%d <missing>\n", id)
				continue
			}
			fmt.Fprintf(w, "    n%d %s: %s\n", id, n.Kind, g.Nodes.String(id, in))
		}
		if _, err := fmt.Fprintf(w, "    %s\n", formatTerm(&bb.Term)); err != nil {
			return err
		}
	}
	return nil
}

func formatTerm(t *Terminator) string {
	switch t.Kind {
	case TermGoto:
		return fmt.Sprintf("goto bb%d", t.Goto.Target)
	case TermIf:
		return fmt.Sprintf("if n%d ? bb%d : bb%d", t.If.Cond, t.If.Then, t.If.Else)
	case TermReturn:
		return "return"
	}
	return "<unterminated>"
}
