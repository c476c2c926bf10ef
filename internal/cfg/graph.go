// Package cfg lowers method bodies into control flow graphs of nodes.
//
// Every block holds the nodes it evaluates in order and ends with one
// terminator: goto, a two-way if on a boolean node, or return. Short-circuit
// conditions in branch position are lowered into separate branches so each
// leaf comparison gets its own if terminator.
package cfg

import (
	"qualflow/internal/ast"
	"qualflow/internal/node"
)

type BlockID int32

const NoBlockID BlockID = -1

type TermKind uint8

const (
	TermNone TermKind = iota
	TermGoto
	TermIf
	TermReturn
)

func (k TermKind) String() string {
	switch k {
	case TermGoto:
		return "goto"
	case TermIf:
		return "if"
	case TermReturn:
		return "return"
	}
	return "none"
}

type GotoTerm struct {
	Target BlockID
}

// IfTerm branches on Cond, a boolean node of the same block.
type IfTerm struct {
	Cond node.ID
	Then BlockID
	Else BlockID
}

type Terminator struct {
	Kind TermKind
	Goto GotoTerm
	If   IfTerm
}

type Block struct {
	ID    BlockID
	Nodes []node.ID
	Term  Terminator
}

func (b *Block) Terminated() bool {
	if b == nil {
		return true
	}
	return b.Term.Kind != TermNone
}

// Succs returns the successor blocks in terminator order.
func (b *Block) Succs() []BlockID {
	switch b.Term.Kind {
	case TermGoto:
		return []BlockID{b.Term.Goto.Target}
	case TermIf:
		return []BlockID{b.Term.If.Then, b.Term.If.Else}
	}
	return nil
}

// Graph is the control flow graph of one method. It owns its nodes.
type Graph struct {
	Name   string
	Method *ast.Method
	Nodes  *node.Table
	Blocks []Block
	Entry  BlockID
}

// BlockOf returns the block holding id.
func (g *Graph) BlockOf(id node.ID) BlockID {
	for i := range g.Blocks {
		for _, n := range g.Blocks[i].Nodes {
			if n == id {
				return g.Blocks[i].ID
			}
		}
	}
	return NoBlockID
}

// Owners maps every node to its block.
func (g *Graph) Owners() map[node.ID]BlockID {
	out := make(map[node.ID]BlockID, g.Nodes.Len())
	for i := range g.Blocks {
		for _, n := range g.Blocks[i].Nodes {
			out[n] = g.Blocks[i].ID
		}
	}
	return out
}

// Preds returns the predecessors of every block, indexed by BlockID.
func (g *Graph) Preds() [][]BlockID {
	preds := make([][]BlockID, len(g.Blocks))
	for i := range g.Blocks {
		for _, s := range g.Blocks[i].Succs() {
			if s >= 0 && int(s) < len(g.Blocks) {
				preds[s] = append(preds[s], g.Blocks[i].ID)
			}
		}
	}
	return preds
}

// ReversePostorder returns the blocks reachable from Entry in reverse
// postorder of a depth-first walk that visits then-successors first.
func (g *Graph) ReversePostorder() []BlockID {
	seen := make([]bool, len(g.Blocks))
	post := make([]BlockID, 0, len(g.Blocks))
	var visit func(id BlockID)
	visit = func(id BlockID) {
		if id < 0 || int(id) >= len(g.Blocks) || seen[id] {
			return
		}
		seen[id] = true
		for _, s := range g.Blocks[id].Succs() {
			visit(s)
		}
		post = append(post, id)
	}
	visit(g.Entry)
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}

// Returns lists the blocks ending in a return terminator.
func (g *Graph) Returns() []BlockID {
	var out []BlockID
	for i := range g.Blocks {
		if g.Blocks[i].Term.Kind == TermReturn {
			out = append(out, g.Blocks[i].ID)
		}
	}
	return out
}
