package cfg

// Simplify cleans up a freshly lowered graph:
// 1. Remove trivial goto blocks (no nodes + goto terminator)
// 2. Collapse goto chains
// 3. Remove unreachable blocks
// 4. Renumber blocks deterministically
func Simplify(g *Graph) {
	if g == nil || len(g.Blocks) == 0 {
		return
	}
	redirects := buildRedirectMap(g)
	applyRedirects(g, redirects)
	reachable := computeReachability(g)
	compactBlocks(g, reachable)
}

func isTrivialGoto(g *Graph, id BlockID) bool {
	if id < 0 || int(id) >= len(g.Blocks) {
		return false
	}
	bb := &g.Blocks[id]
	return len(bb.Nodes) == 0 && bb.Term.Kind == TermGoto
}

// buildRedirectMap maps every trivial goto block to the final target of its
// chain. A chain that loops back on itself stays in place.
func buildRedirectMap(g *Graph) map[BlockID]BlockID {
	redirects := make(map[BlockID]BlockID)
	for i := range g.Blocks {
		bb := &g.Blocks[i]
		if !isTrivialGoto(g, bb.ID) {
			continue
		}
		target := bb.Term.Goto.Target
		visited := map[BlockID]bool{bb.ID: true}
		for !visited[target] && isTrivialGoto(g, target) {
			visited[target] = true
			target = g.Blocks[target].Term.Goto.Target
		}
		if isTrivialGoto(g, target) {
			// empty infinite loop
			continue
		}
		redirects[bb.ID] = target
	}
	return redirects
}

func applyRedirects(g *Graph, redirects map[BlockID]BlockID) {
	if len(redirects) == 0 {
		return
	}
	redirect := func(id BlockID) BlockID {
		if to, ok := redirects[id]; ok {
			return to
		}
		return id
	}
	for i := range g.Blocks {
		term := &g.Blocks[i].Term
		switch term.Kind {
		case TermGoto:
			term.Goto.Target = redirect(term.Goto.Target)
		case TermIf:
			term.If.Then = redirect(term.If.Then)
			term.If.Else = redirect(term.If.Else)
		}
	}
	g.Entry = redirect(g.Entry)
}

func computeReachability(g *Graph) []bool {
	reachable := make([]bool, len(g.Blocks))
	stack := []BlockID{g.Entry}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id < 0 || int(id) >= len(g.Blocks) || reachable[id] {
			continue
		}
		reachable[id] = true
		stack = append(stack, g.Blocks[id].Succs()...)
	}
	return reachable
}

// compactBlocks drops unreachable blocks and renumbers the rest in their
// original order.
func compactBlocks(g *Graph, reachable []bool) {
	oldToNew := make(map[BlockID]BlockID, len(g.Blocks))
	kept := make([]Block, 0, len(g.Blocks))
	for i, keep := range reachable {
		if keep {
			oldToNew[BlockID(i)] = BlockID(len(kept)) //nolint:gosec // bounded by block count
			kept = append(kept, g.Blocks[i])
		}
	}
	remap := func(id BlockID) BlockID {
		if to, ok := oldToNew[id]; ok {
			return to
		}
		return id
	}
	for i := range kept {
		kept[i].ID = BlockID(i) //nolint:gosec // bounded by block count
		term := &kept[i].Term
		switch term.Kind {
		case TermGoto:
			term.Goto.Target = remap(term.Goto.Target)
		case TermIf:
			term.If.Then = remap(term.If.Then)
			term.If.Else = remap(term.If.Else)
		}
	}
	g.Entry = remap(g.Entry)
	g.Blocks = kept
}
