package node_test

import (
	"slices"
	"testing"

	"qualflow/internal/ast"
	"qualflow/internal/node"
	"qualflow/internal/types"
)

func TestTableStringAndOperands(t *testing.T) {
	in := types.NewInterner()
	tab := node.NewTable()
	this := tab.Add(node.Node{Kind: node.KindImplicitThis})
	next := tab.Add(node.Node{Kind: node.KindFieldAccess, Operands: []node.ID{this.ID}, Field: node.FieldData{Name: "next"}})
	null := tab.Add(node.Node{Kind: node.KindNullLiteral, Type: in.Builtins().Null})
	eq := tab.Add(node.Node{Kind: node.KindNotEqual, Operands: []node.ID{next.ID, null.ID}, Tree: node.Tree{Expr: ast.ExprID(7)}})
	x := tab.Add(node.Node{Kind: node.KindLocal, Local: node.LocalData{Name: "x"}})
	call := tab.Add(node.Node{
		Kind:     node.KindMethodInvocation,
		Operands: []node.ID{x.ID, next.ID},
		Call:     node.CallData{Name: "equals", HasRecv: true, Pure: true},
	})

	if got := tab.String(eq.ID, in); got != "(this.next != null)" {
		t.Fatalf("String(eq) = %q", got)
	}
	if got := tab.String(call.ID, in); got != "x.equals(this.next)" {
		t.Fatalf("String(call) = %q", got)
	}
	if recv, ok := call.Receiver(); !ok || recv != x.ID {
		t.Fatalf("Receiver = %v, %v", recv, ok)
	}
	if !slices.Equal(call.Args(), []node.ID{next.ID}) {
		t.Fatalf("Args = %v", call.Args())
	}
	if !eq.IsConditional() || call.IsConditional() {
		t.Fatal("IsConditional")
	}
	if tab.ByExpr(ast.ExprID(7)) != eq {
		t.Fatal("ByExpr")
	}
	if tab.Get(node.NoID) != nil || tab.Len() != 6 {
		t.Fatal("table bounds")
	}
	if ops := tab.Operands(eq); len(ops) != 2 || ops[0] != next {
		t.Fatalf("Operands = %v", ops)
	}
}

func TestKindNames(t *testing.T) {
	for _, k := range node.Kinds() {
		got, ok := node.ParseKind(k.String())
		if !ok || got != k {
			t.Fatalf("ParseKind(%q) = %v", k.String(), got)
		}
	}
	if _, ok := node.ParseKind("bogus"); ok {
		t.Fatal("bogus kind parsed")
	}
}
