package qual

import (
	"fmt"
	"io"
	"strings"
)

// Format writes a human readable dump of every hierarchy: members from top to
// bottom with their direct supertypes.
func (h *Hierarchy) Format(w io.Writer) error {
	for i, top := range h.tops {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "hierarchy %s (height %d, bottom %s)\n",
			h.defs[top].Label(), h.heights[top], h.defs[h.bottoms[top]].Label()); err != nil {
			return err
		}
		members := h.members(top)
		depth := make(map[ID]int, len(members))
		for _, m := range members {
			depth[m] = h.longestChainDown(members, m)
		}
		for d := 0; d <= h.heights[top]; d++ {
			for _, m := range members {
				if depth[m] != d {
					continue
				}
				supers := make([]string, 0, len(h.defs[m].Supers))
				for _, s := range h.defs[m].Supers {
					supers = append(supers, h.defs[s].Label())
				}
				line := "  " + strings.Repeat("  ", d) + h.defs[m].Label()
				if len(supers) > 0 {
					line += " <: " + strings.Join(supers, ", ")
				}
				if _, err := fmt.Fprintln(w, line); err != nil {
					return err
				}
			}
		}
		if p, ok := h.polys[top]; ok {
			if _, err := fmt.Fprintf(w, "  poly %s\n", h.defs[p].Label()); err != nil {
				return err
			}
		}
	}
	return nil
}

// longestChainDown returns the distance from the hierarchy top to q along
// the longest chain.
func (h *Hierarchy) longestChainDown(members []ID, q ID) int {
	best := 0
	for _, s := range members {
		if s != q && h.sub[q][s] {
			if d := 1 + h.longestChainDown(members, s); d > best {
				best = d
			}
		}
	}
	return best
}
