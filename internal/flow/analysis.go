package flow

import (
	"container/heap"
	"context"
	"fmt"
	"strconv"

	"qualflow/internal/bug"
	"qualflow/internal/cfg"
	"qualflow/internal/node"
	"qualflow/internal/qual"
	"qualflow/internal/source"
	"qualflow/internal/trace"
)

// Options tunes one analysis.
type Options struct {
	// MaxBlockVisits bounds how often a block is analysed. Zero derives the
	// bound from the lattice height and the number of trackable expressions.
	MaxBlockVisits int
	// KeepOnCall retains heap entries across calls with side effects and
	// object creations.
	KeepOnCall func(*Expr, Value) bool
	// Describe renders a span for error context. Defaults to Span.String.
	Describe func(source.Span) string
}

// Analysis is the input of one forward fixpoint computation.
type Analysis struct {
	H        *qual.Hierarchy
	Graph    *cfg.Graph
	Transfer *Transfer // NewTransfer() when nil
	Oracle   Oracle
	Entry    *Store // facts holding on entry, typically parameter qualifiers
	Options  Options
}

type edge struct {
	from, to cfg.BlockID
}

// VisitBound is the default per-block visit limit for g:
// (H + 1) * (E + 1) + 1 with H the maximum lattice height and E the number of
// distinct trackable expressions in g and entry.
func VisitBound(h *qual.Hierarchy, g *cfg.Graph, entry *Store) int {
	keys := make(map[string]bool)
	for _, n := range g.Nodes.All() {
		if e, ok := ExprOf(g.Nodes, n.ID); ok {
			keys[e.Key()] = true
		}
		if n.Kind == node.KindVariableDeclaration {
			keys[n.Decl.Name] = true
		}
	}
	if entry != nil {
		for _, e := range entry.Exprs() {
			keys[e.Key()] = true
		}
	}
	return (h.MaxHeight()+1)*(len(keys)+1) + 1
}

// Analyze runs the forward analysis to a fixpoint. Blocks are taken from the
// worklist in reverse postorder; a block is revisited when the store on one
// of its incoming edges changes. Internal failures, including a block
// exceeding the visit bound, are returned as *bug.Error.
func Analyze(ctx context.Context, a Analysis) (res *Result, err error) {
	defer bug.Guard(&err)

	g := a.Graph
	if g == nil || a.H == nil {
		return nil, bug.New("flow analysis without graph or hierarchy")
	}
	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopeMethod, "flow:"+g.Name, trace.CurrentSpan(ctx))
	defer func() {
		if res != nil {
			span.WithExtra("blocks", strconv.Itoa(len(g.Blocks)))
		}
		span.End("")
	}()

	transfer := a.Transfer
	if transfer == nil {
		transfer = NewTransfer()
	}
	entry := a.Entry
	if entry == nil {
		entry = NewStore(a.H)
	}
	bound := a.Options.MaxBlockVisits
	if bound <= 0 {
		bound = VisitBound(a.H, g, entry)
	}
	describe := a.Options.Describe
	if describe == nil {
		describe = source.Span.String
	}

	c := &Context{
		H:      a.H,
		Graph:  g,
		Oracle: a.Oracle,
		values: make(map[node.ID]Value),
		exprs:  make(map[node.ID]*Expr),
		keep:   a.Options.KeepOnCall,
		tracer: tracer,
		span:   span.ID(),
	}
	r := &Result{
		h:      a.H,
		graph:  g,
		oracle: a.Oracle,
		values: c.values,
		before: make(map[node.ID]*Store),
		after:  make(map[node.ID]*Store),
		inputs: make([]*Store, len(g.Blocks)),
		visits: make([]int, len(g.Blocks)),
	}

	rpo := g.ReversePostorder()
	order := make([]int, len(g.Blocks))
	for i := range order {
		order[i] = -1
	}
	for i, b := range rpo {
		order[b] = i
	}
	preds := g.Preds()
	edges := make(map[edge]*Store)
	prev := make([]*Store, len(g.Blocks))

	input := func(b cfg.BlockID) *Store {
		var acc *Store
		if b == g.Entry {
			acc = entry.Copy()
		}
		for _, p := range preds[b] {
			s, ok := edges[edge{p, b}]
			if !ok {
				continue
			}
			if acc == nil {
				acc = s.Copy()
			} else {
				acc = acc.LUB(s)
			}
		}
		return acc
	}

	wl := &worklist{order: order, queued: make([]bool, len(g.Blocks))}
	wl.add(g.Entry)
	for wl.Len() > 0 {
		b := wl.next()
		in := input(b)
		if in == nil {
			continue
		}
		r.visits[b]++
		prev[b], r.inputs[b] = r.inputs[b], in
		if r.visits[b] > bound {
			return nil, nonTermination(g, b, r.visits[b], prev[b], in, describe)
		}
		out := runBlock(c, transfer, &g.Blocks[b], in, nil)
		for to, s := range successors(&g.Blocks[b], out) {
			key := edge{b, to}
			if old, ok := edges[key]; ok && old.Equal(s) {
				continue
			}
			edges[key] = s
			wl.add(to)
		}
	}

	// record per-node stores from the fixpoint inputs
	c.tracer = trace.Nop
	var exit *Store
	for _, b := range rpo {
		if r.inputs[b] == nil {
			continue
		}
		blk := &g.Blocks[b]
		out := runBlock(c, transfer, blk, r.inputs[b], r)
		if blk.Term.Kind != cfg.TermReturn {
			continue
		}
		if exit == nil {
			exit = out.Regular()
		} else {
			exit = exit.LUB(out.Peek())
		}
	}
	r.exit = exit
	return r, nil
}

// runBlock evaluates blk's nodes from in and returns the state at the
// terminator. With rec set, per-node stores are recorded into it.
func runBlock(c *Context, t *Transfer, blk *cfg.Block, in *Store, rec *Result) Input {
	cur := RegularInput(in)
	for _, id := range blk.Nodes {
		n := c.Graph.Nodes.Get(id)
		if n == nil {
			bug.Throw("block references a missing node", "block", fmt.Sprintf("bb%d", blk.ID), "node", id)
		}
		if rec != nil {
			rec.before[id] = cur.Peek()
		}
		fn, ok := t.Lookup(n.Kind)
		if !ok {
			c.Note(n, "no transfer function for "+n.Kind.String()+", store passed through")
			fn = Identity
		}
		out := fn(c, n, cur)
		if out.Value != nil {
			c.values[id] = out.Value
		}
		switch {
		case out.split():
			cur = SplitInput(out.Then, out.Else)
		case out.Store != nil:
			cur = RegularInput(out.Store)
		}
		if rec != nil {
			rec.after[id] = cur.Peek()
		}
	}
	return cur
}

// successors maps each successor of blk to the store flowing along its
// edge. An if sends the then store and the else store to the respective
// targets; both targets being the same block receives their lub.
func successors(blk *cfg.Block, out Input) map[cfg.BlockID]*Store {
	res := make(map[cfg.BlockID]*Store, 2)
	switch blk.Term.Kind {
	case cfg.TermGoto:
		res[blk.Term.Goto.Target] = out.Peek()
	case cfg.TermIf:
		then, els := blk.Term.If.Then, blk.Term.If.Else
		if then == els {
			res[then] = out.Regular()
			break
		}
		res[then] = out.Then()
		res[els] = out.Else()
	}
	return res
}

func nonTermination(g *cfg.Graph, b cfg.BlockID, visits int, last, cur *Store, describe func(source.Span) string) *bug.Error {
	loc := "<empty block>"
	if nodes := g.Blocks[b].Nodes; len(nodes) > 0 {
		if n := g.Nodes.Get(nodes[0]); n != nil {
			loc = describe(n.Span)
		}
	}
	diff := "(first visit)"
	if last != nil {
		diff = last.Diff(cur)
	}
	return bug.New("dataflow analysis did not reach a fixpoint",
		"method", g.Name,
		"block", fmt.Sprintf("bb%d", b),
		"location", loc,
		"visits", visits,
		"store diff", diff,
	)
}

// worklist pops blocks in reverse postorder.
type worklist struct {
	order  []int
	queued []bool
	items  []cfg.BlockID
}

func (w *worklist) Len() int { return len(w.items) }

func (w *worklist) Less(i, j int) bool { return w.order[w.items[i]] < w.order[w.items[j]] }

func (w *worklist) Swap(i, j int) { w.items[i], w.items[j] = w.items[j], w.items[i] }

func (w *worklist) Push(x any) { w.items = append(w.items, x.(cfg.BlockID)) }

func (w *worklist) Pop() any {
	last := w.items[len(w.items)-1]
	w.items = w.items[:len(w.items)-1]
	return last
}

func (w *worklist) add(b cfg.BlockID) {
	if w.queued[b] {
		return
	}
	w.queued[b] = true
	heap.Push(w, b)
}

func (w *worklist) next() cfg.BlockID {
	b := heap.Pop(w).(cfg.BlockID)
	w.queued[b] = false
	return b
}
