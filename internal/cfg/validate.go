package cfg

import (
	"errors"
	"fmt"

	"qualflow/internal/node"
)

// Validate checks graph invariants: the entry exists, every block is
// terminated, every target exists, if conditions are nodes of their own
// block, no node sits in two blocks, and every operand is a node of some
// block.
func Validate(g *Graph) error {
	if g == nil {
		return nil
	}
	var errs []error
	blockExists := func(id BlockID) bool {
		return id >= 0 && int(id) < len(g.Blocks)
	}
	if !blockExists(g.Entry) {
		errs = append(errs, fmt.Errorf("entry bb%d does not exist", g.Entry))
	}

	owner := make(map[node.ID]BlockID)
	for i := range g.Blocks {
		bb := &g.Blocks[i]
		if bb.ID != BlockID(i) { //nolint:gosec // bounded by block count
			errs = append(errs, fmt.Errorf("bb%d: stored id bb%d", i, bb.ID))
		}
		for _, id := range bb.Nodes {
			if g.Nodes.Get(id) == nil {
				errs = append(errs, fmt.Errorf("bb%d: node n%d does not exist", i, id))
				continue
			}
			if prev, dup := owner[id]; dup {
				errs = append(errs, fmt.Errorf("bb%d: node n%d already owned by bb%d", i, id, prev))
				continue
			}
			owner[id] = bb.ID
		}
		switch bb.Term.Kind {
		case TermNone:
			errs = append(errs, fmt.Errorf("bb%d: unterminated block", i))
		case TermGoto:
			if !blockExists(bb.Term.Goto.Target) {
				errs = append(errs, fmt.Errorf("bb%d: goto target bb%d does not exist", i, bb.Term.Goto.Target))
			}
		case TermIf:
			if !blockExists(bb.Term.If.Then) {
				errs = append(errs, fmt.Errorf("bb%d: if then target bb%d does not exist", i, bb.Term.If.Then))
			}
			if !blockExists(bb.Term.If.Else) {
				errs = append(errs, fmt.Errorf("bb%d: if else target bb%d does not exist", i, bb.Term.If.Else))
			}
			if g.Nodes.Get(bb.Term.If.Cond) == nil {
				errs = append(errs, fmt.Errorf("bb%d: if condition n%d does not exist", i, bb.Term.If.Cond))
			}
		}
	}
	for i := range g.Blocks {
		bb := &g.Blocks[i]
		if bb.Term.Kind == TermIf {
			if b, ok := owner[bb.Term.If.Cond]; ok && b != bb.ID {
				errs = append(errs, fmt.Errorf("bb%d: if condition n%d lives in bb%d", i, bb.Term.If.Cond, b))
			}
		}
		for _, id := range bb.Nodes {
			n := g.Nodes.Get(id)
			if n == nil {
				continue
			}
			for _, op := range n.Operands {
				if _, ok := owner[op]; !ok {
					errs = append(errs, fmt.Errorf("bb%d: node n%d has operand n%d outside the graph", i, id, op))
				}
			}
		}
	}
	return errors.Join(errs...)
}
