package node

import (
	"fmt"

	"fortio.org/safecast"

	"qualflow/internal/ast"
)

// Table owns the nodes of one method body.
type Table struct {
	nodes  []*Node
	byExpr map[ast.ExprID]ID
}

func NewTable() *Table {
	return &Table{byExpr: make(map[ast.ExprID]ID)}
}

// Add stores n, assigns its ID and returns it.
func (t *Table) Add(n Node) *Node {
	id, err := safecast.Conv[int32](len(t.nodes))
	if err != nil {
		panic(fmt.Errorf("node table overflow: %w", err))
	}
	n.ID = ID(id)
	n.Operands = append([]ID(nil), n.Operands...)
	p := &n
	t.nodes = append(t.nodes, p)
	if n.Tree.Expr.IsValid() {
		t.byExpr[n.Tree.Expr] = n.ID
	}
	return p
}

// Get returns the node with the given ID, or nil.
func (t *Table) Get(id ID) *Node {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

func (t *Table) Len() int { return len(t.nodes) }

// All returns every node in creation order.
func (t *Table) All() []*Node {
	return append([]*Node(nil), t.nodes...)
}

// Operands resolves the operands of n.
func (t *Table) Operands(n *Node) []*Node {
	out := make([]*Node, 0, len(n.Operands))
	for _, id := range n.Operands {
		if op := t.Get(id); op != nil {
			out = append(out, op)
		}
	}
	return out
}

// ByExpr returns the last node created for expr. Conditions lowered into
// branches may produce several nodes for one tree; the last one carries the
// expression's value.
func (t *Table) ByExpr(expr ast.ExprID) *Node {
	id, ok := t.byExpr[expr]
	if !ok {
		return nil
	}
	return t.nodes[id]
}
