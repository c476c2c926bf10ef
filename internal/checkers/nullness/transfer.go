package nullness

import (
	"qualflow/internal/flow"
	"qualflow/internal/node"
)

// Transfer installs null test refinement and dereference refinement.
func (c *Checker) Transfer(t *flow.Transfer) {
	t.Override(node.KindEqualTo, c.comparison(true))
	t.Override(node.KindNotEqual, c.comparison(false))
	t.Override(node.KindInstanceOf, c.instanceOf)
	t.Override(node.KindFieldAccess, c.dereference)
	t.Override(node.KindMethodInvocation, c.dereference)
	t.Override(node.KindArrayAccess, c.dereference)
}

// comparison refines "x == null" and "x != null", and equality with a
// non-null value. eq selects ==.
func (c *Checker) comparison(eq bool) func(flow.TransferFunc) flow.TransferFunc {
	return func(next flow.TransferFunc) flow.TransferFunc {
		return func(ctx *flow.Context, n *node.Node, in flow.Input) flow.TransferResult {
			res := next(ctx, n, in)
			if len(n.Operands) != 2 {
				return res
			}
			base := res.Store
			if base == nil {
				base = in.Regular()
			}
			equal, unequal := base.Copy(), base
			refined := false
			left, right := ctx.Node(n.Operands[0]), ctx.Node(n.Operands[1])
			for _, pair := range [2][2]*node.Node{{left, right}, {right, left}} {
				subject, other := pair[0], pair[1]
				e, ok := ctx.Expr(subject.ID)
				if !ok {
					continue
				}
				switch {
				case other.Kind == node.KindNullLiteral:
					unequal.Refine(e, c.nonNull())
					refined = true
				case c.isNonNull(ctx.ValueOf(other.ID)):
					equal.Refine(e, c.nonNull())
					refined = true
				}
			}
			if !refined {
				return res
			}
			if eq {
				return flow.TransferResult{Value: res.Value, Then: equal, Else: unequal}
			}
			return flow.TransferResult{Value: res.Value, Then: unequal, Else: equal}
		}
	}
}

// instanceOf refines the tested operand to non-null when the test holds.
func (c *Checker) instanceOf(next flow.TransferFunc) flow.TransferFunc {
	return func(ctx *flow.Context, n *node.Node, in flow.Input) flow.TransferResult {
		res := next(ctx, n, in)
		if len(n.Operands) != 1 {
			return res
		}
		e, ok := ctx.Expr(n.Operands[0])
		if !ok {
			return res
		}
		els := res.Store
		if els == nil {
			els = in.Regular()
		}
		then := els.Copy()
		then.Refine(e, c.nonNull())
		return flow.TransferResult{Value: res.Value, Then: then, Else: els}
	}
}

// dereference marks the receiver of a field access, call or array access
// non-null after it succeeded.
func (c *Checker) dereference(next flow.TransferFunc) flow.TransferFunc {
	return func(ctx *flow.Context, n *node.Node, in flow.Input) flow.TransferResult {
		res := next(ctx, n, in)
		recv, ok := n.Receiver()
		if n.Kind == node.KindArrayAccess && len(n.Operands) > 0 {
			recv, ok = n.Operands[0], true
		}
		if !ok {
			return res
		}
		e, ok := ctx.Expr(recv)
		if !ok || e.Kind == flow.ExprThis {
			return res
		}
		if res.Then != nil {
			return res
		}
		st := res.Store
		if st == nil {
			st = in.Regular()
		}
		st.Refine(e, c.nonNull())
		res.Store = st
		return res
	}
}
