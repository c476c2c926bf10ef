package checker

import (
	"qualflow/internal/ast"
	"qualflow/internal/atype"
	"qualflow/internal/cfg"
	"qualflow/internal/flow"
	"qualflow/internal/node"
	"qualflow/internal/qual"
)

// Method is one analysed method as seen by Check.
type Method struct {
	Decl  *ast.Method
	Graph *cfg.Graph
	Flow  *flow.Result
	Types *MethodTypes

	lints map[string]bool
}

// NewMethod bundles an analysis result for checks. lints holds the enabled
// optional checks.
func NewMethod(mt *MethodTypes, g *cfg.Graph, res *flow.Result, lints map[string]bool) *Method {
	return &Method{Decl: mt.Method, Graph: g, Flow: res, Types: mt, lints: lints}
}

func (m *Method) H() *qual.Hierarchy { return m.Types.H }

// Lint reports whether the optional check name is enabled.
func (m *Method) Lint(name string) bool { return m.lints[name] || m.lints["all"] }

func (m *Method) Node(id node.ID) *node.Node { return m.Graph.Nodes.Get(id) }

// Text renders the source form of id for messages.
func (m *Method) Text(id node.ID) string { return m.Graph.Nodes.String(id, m.Types.Interner) }

// Nodes returns the nodes the analysis reached, in block order.
func (m *Method) Nodes() []*node.Node {
	var out []*node.Node
	for i := range m.Graph.Blocks {
		for _, id := range m.Graph.Blocks[i].Nodes {
			if m.Flow.Reached(id) {
				out = append(out, m.Graph.Nodes.Get(id))
			}
		}
	}
	return out
}

// Value returns the refined value of id, or its declared value when the
// analysis did not compute one.
func (m *Method) Value(id node.ID) flow.Value {
	if v, ok := m.Flow.Value(id); ok {
		return v
	}
	return flow.PrimaryValue(m.H(), m.Types.DeclaredType(m.Node(id)))
}

// Mismatch describes a value that is not below its required type in one
// hierarchy.
type Mismatch struct {
	Got, Want qual.ID
}

// Incompatible returns the first hierarchy where got is not a subtype of
// want's effective primary qualifier. Unknown positions are compatible.
func Incompatible(h *qual.Hierarchy, got flow.Value, want *atype.AnnotatedType) (Mismatch, bool) {
	if want == nil {
		return Mismatch{}, false
	}
	for _, top := range h.Tops() {
		g, ok := got.In(h, top)
		if !ok {
			continue
		}
		w, ok := want.EffectiveAnnotationIn(top)
		if !ok {
			continue
		}
		if !h.IsSubtype(g, w) {
			return Mismatch{Got: g, Want: w}, true
		}
	}
	return Mismatch{}, false
}

// Class is one class with its analysed methods, as seen by CheckClass.
type Class struct {
	Decl    *ast.Class
	Types   *Types
	Methods []*Method
}

// Method finds the analysed method name.
func (c *Class) Method(name string) (*Method, bool) {
	for _, m := range c.Methods {
		if m.Decl.Name == name {
			return m, true
		}
	}
	return nil, false
}
