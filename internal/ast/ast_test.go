package ast_test

import (
	"slices"
	"testing"

	"qualflow/internal/ast"
	"qualflow/internal/source"
	"qualflow/internal/types"
)

func TestParsePathRoundTrip(t *testing.T) {
	cases := []struct {
		in   string
		want []ast.PathEntry
		text string
	}{
		{"", nil, ""},
		{"array", []ast.PathEntry{{Kind: ast.PathArray}}, "array"},
		{"array*2, type_argument(1)", []ast.PathEntry{{Kind: ast.PathArray}, {Kind: ast.PathArray}, {Kind: ast.PathTypeArgument, Arg: 1}}, "array, array, type_argument(1)"},
		{"type_argument(0),wildcard", []ast.PathEntry{{Kind: ast.PathTypeArgument}, {Kind: ast.PathWildcard}}, "type_argument(0), wildcard"},
		{"nested", []ast.PathEntry{{Kind: ast.PathNested}}, "nested"},
	}
	for _, tc := range cases {
		got, err := ast.ParsePath(tc.in)
		if err != nil {
			t.Fatalf("ParsePath(%q): %v", tc.in, err)
		}
		if !slices.Equal(got, tc.want) {
			t.Fatalf("ParsePath(%q) = %v, want %v", tc.in, got, tc.want)
		}
		if s := ast.FormatPath(got); s != tc.text {
			t.Fatalf("FormatPath = %q, want %q", s, tc.text)
		}
	}
	for _, bad := range []string{"arrays", "type_argument(x)", "array*0", "type_argument(300)"} {
		if _, err := ast.ParsePath(bad); err == nil {
			t.Fatalf("ParsePath(%q) should fail", bad)
		}
	}
}

func TestTargetTypes(t *testing.T) {
	for _, tt := range []ast.TargetType{
		ast.TargetClassTypeParameter, ast.TargetMethodTypeParameterBound,
		ast.TargetField, ast.TargetLocalVariable, ast.TargetMethodFormalParameter,
	} {
		got, ok := ast.ParseTargetType(tt.String())
		if !ok || got != tt {
			t.Fatalf("ParseTargetType(%q) = %v, %v", tt.String(), got, ok)
		}
	}
	if ast.TargetMethodTypeParameter.BoundTarget() != ast.TargetMethodTypeParameterBound {
		t.Fatal("method type parameter bound target")
	}
	if ast.TargetClassTypeParameter.BoundTarget() != ast.TargetClassTypeParameterBound {
		t.Fatal("class type parameter bound target")
	}
	pos := ast.Position{Target: ast.TargetClassTypeParameterBound, Index: 0, BoundIndex: 1, Path: []ast.PathEntry{{Kind: ast.PathArray}}}
	if got := pos.String(); got != "class_type_parameter_bound[param=0, bound=1] path array" {
		t.Fatalf("Position.String() = %q", got)
	}
}

func TestExprsChildrenAndRender(t *testing.T) {
	in := types.NewInterner()
	str := in.Builtins().String
	prog := ast.NewProgram(source.FileID(1), ast.Hints{})
	e := prog.Exprs
	x := e.NewIdent(source.Span{}, str, "x")
	this := e.NewThis(source.Span{}, types.NoTypeID, true)
	f := e.NewField(source.Span{}, str, ast.ExprFieldData{Recv: this, Name: "name"})
	null := e.NewNull(source.Span{}, in.Builtins().Null)
	cmp := e.NewBinary(source.Span{}, in.Builtins().Boolean, ast.ExprBinaryNotEq, f, null)
	call := e.NewCall(source.Span{}, in.Builtins().Int, ast.ExprCallData{Recv: x, Name: "length", Pure: true})
	tern := e.NewTernary(source.Span{}, in.Builtins().Int, cmp, call, e.NewLiteral(source.Span{}, in.Builtins().Int, ast.ExprLitInt, "0"))

	if got := e.Children(tern); len(got) != 3 || got[0] != cmp || got[1] != call {
		t.Fatalf("Children(ternary) = %v", got)
	}
	if got := e.Children(call); !slices.Equal(got, []ast.ExprID{x}) {
		t.Fatalf("Children(call) = %v", got)
	}
	if got := e.Render(tern, in); got != "(name != null) ? x.length() : 0" {
		t.Fatalf("Render = %q", got)
	}
	if _, ok := e.Call(cmp); ok {
		t.Fatal("Call accessor must reject a binary expression")
	}
	if e.Get(ast.NoExprID) != nil {
		t.Fatal("NoExprID must resolve to nil")
	}
}

func TestStmtsAccessors(t *testing.T) {
	prog := ast.NewProgram(source.FileID(1), ast.Hints{Stmts: 4, Exprs: 4})
	s := prog.Stmts
	ret := s.NewReturn(source.Span{}, ast.NoExprID)
	brk := s.NewJump(source.Span{}, ast.StmtBreak)
	body := s.NewBlock(source.Span{}, []ast.StmtID{brk})
	loop := s.NewWhile(source.Span{}, ast.NoExprID, body)
	top := s.NewBlock(source.Span{}, []ast.StmtID{loop, ret})

	blk, ok := s.Block(top)
	if !ok || !slices.Equal(blk.Stmts, []ast.StmtID{loop, ret}) {
		t.Fatalf("Block(top) = %+v", blk)
	}
	w, ok := s.While(loop)
	if !ok || w.Body != body {
		t.Fatalf("While = %+v", w)
	}
	if s.Get(brk).Kind != ast.StmtBreak {
		t.Fatalf("kind = %s", s.Get(brk).Kind)
	}
	if _, ok := s.Return(loop); ok {
		t.Fatal("Return accessor must reject while")
	}
}
