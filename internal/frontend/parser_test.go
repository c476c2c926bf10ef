package frontend

import (
	"strings"
	"testing"

	"qualflow/internal/ast"
)

// render prints an expression tree fully parenthesised.
func render(x *exprSyntax) string {
	if x == nil {
		return "<nil>"
	}
	switch x.Kind {
	case sxIdent, sxLit:
		return x.Name
	case sxThis:
		return "this"
	case sxNull:
		return "null"
	case sxSelect:
		return render(x.X) + "." + x.Name
	case sxCall:
		args := make([]string, len(x.Args))
		for i, a := range x.Args {
			args[i] = render(a)
		}
		recv := ""
		if x.X != nil {
			recv = render(x.X) + "."
		}
		return recv + x.Name + "(" + strings.Join(args, ", ") + ")"
	case sxBinary:
		return "(" + render(x.X) + " " + x.Op.String() + " " + render(x.Y) + ")"
	case sxUnary:
		return "(" + x.Op.String() + render(x.X) + ")"
	case sxAssign:
		return "(" + render(x.X) + " = " + render(x.Y) + ")"
	case sxNew:
		return "new " + x.Type.Name + "(" + itoa(len(x.Args)) + ")"
	case sxCast:
		return "((" + x.Type.Name + ") " + render(x.X) + ")"
	case sxInstanceOf:
		return "(" + render(x.X) + " instanceof " + x.Type.Name + ")"
	case sxTernary:
		return "(" + render(x.X) + " ? " + render(x.Y) + " : " + render(x.Z) + ")"
	case sxIndex:
		return render(x.X) + "[" + render(x.Y) + "]"
	}
	return "?"
}

func itoa(n int) string {
	return string(rune('0' + n))
}

func TestParseExprPrecedence(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"a + b * c", "(a + (b * c))"},
		{"a - b - c", "((a - b) - c)"},
		{"a == null || b != null && c", "((a == null) || ((b != null) && c))"},
		{"!a && b", "((!a) && b)"},
		{"x = y = z", "(x = (y = z))"},
		{"a ? b : c ? d : e", "(a ? b : (c ? d : e))"},
		{"o instanceof String && o.length() > 0", "((o instanceof String) && (o.length() > 0))"},
		{"(String) o", "((String) o)"},
		{"(a + b) * c", "((a + b) * c)"},
		{"this.f.g(1, \"s\")[i]", "this.f.g(1, s)[i]"},
		{"new Box(x).get()", "new Box(1).get()"},
		{"-a + +b", "((-a) + (+b))"},
		{"f()", "f()"},
		{"10L < 2", "(10 < 2)"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			x, err := parseExprString(tt.src)
			if err != nil {
				t.Fatalf("parse %q: %v", tt.src, err)
			}
			if got := render(x); got != tt.want {
				t.Fatalf("parse %q = %s, want %s", tt.src, got, tt.want)
			}
		})
	}
}

func TestParseExprErrors(t *testing.T) {
	tests := []struct {
		src string
		off uint32
	}{
		{"a +", 3},
		{"a.(b)", 2},
		{"f(a,", 4},
		{"a b", 2},
		{"\"open", 0},
		{"a # b", 2},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := parseExprString(tt.src)
			le, ok := err.(*lexError)
			if !ok {
				t.Fatalf("parse %q: want a positioned error, got %v", tt.src, err)
			}
			if le.Off != tt.off {
				t.Fatalf("parse %q: error at %d (%s), want %d", tt.src, le.Off, le.Msg, tt.off)
			}
		})
	}
}

func TestParseType(t *testing.T) {
	ts, err := parseTypeString("@A Map<@B ? extends String, T> @C [] @D []")
	if err != nil {
		t.Fatal(err)
	}
	if ts.Name != "Map" || len(ts.Args) != 2 || len(ts.Annos) != 1 || ts.Annos[0].Name != "A" {
		t.Fatalf("unexpected type %+v", ts)
	}
	w := ts.Args[0]
	if !w.Wildcard || w.Super || w.Bound == nil || w.Bound.Name != "String" || w.Annos[0].Name != "B" {
		t.Fatalf("unexpected wildcard %+v", w)
	}
	if len(ts.Dims) != 2 || ts.Dims[0][0].Name != "C" || ts.Dims[1][0].Name != "D" {
		t.Fatalf("unexpected dims %+v", ts.Dims)
	}
}

func TestParseTypeParam(t *testing.T) {
	tp, err := parseTypeParamString("@N T extends Object & @I Comparable<T>")
	if err != nil {
		t.Fatal(err)
	}
	if tp.Name != "T" || len(tp.Annos) != 1 || len(tp.Bounds) != 2 {
		t.Fatalf("unexpected type parameter %+v", tp)
	}
	if tp.Bounds[1].Annos[0].Name != "I" {
		t.Fatalf("bound annotation lost: %+v", tp.Bounds[1])
	}
}

func TestParseStmt(t *testing.T) {
	tests := []struct {
		src  string
		kind stmtSyntaxKind
		name string
	}{
		{"String s = null", stVar, "s"},
		{"@Nullable Object o", stVar, "o"},
		{"List<String> xs = make()", stVar, "xs"},
		{"int[] a;", stVar, "a"},
		{"s = null", stExpr, ""},
		{"a < b", stExpr, ""},
		{"return", stReturn, ""},
		{"return x.y", stReturn, ""},
		{"break", stBreak, ""},
		{"continue;", stContinue, ""},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			s, err := parseStmtString(tt.src)
			if err != nil {
				t.Fatalf("parse %q: %v", tt.src, err)
			}
			if s.Kind != tt.kind || s.Name != tt.name {
				t.Fatalf("parse %q = kind %d name %q", tt.src, s.Kind, s.Name)
			}
		})
	}
}

func TestParsePositioned(t *testing.T) {
	def := ast.Position{Target: ast.TargetField, Index: -1}
	tests := []struct {
		src  string
		name string
		pos  string
	}{
		{"@Nullable", "Nullable", "field"},
		{"@Nullable path array", "Nullable", "field path array"},
		{"@a.B(\"x\", 1) method_formal_parameter[param=2]", "a.B", "method_formal_parameter[param=2]"},
		{"@N class_type_parameter_bound[param=0, bound=1] path type_argument(0), array*2",
			"N", "class_type_parameter_bound[param=0, bound=1] path type_argument(0), array, array"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			a, pos, err := parsePositioned(tt.src, def)
			if err != nil {
				t.Fatalf("parse %q: %v", tt.src, err)
			}
			if a.Name != tt.name || pos.String() != tt.pos {
				t.Fatalf("parse %q = %s %s, want %s %s", tt.src, a.Name, pos, tt.name, tt.pos)
			}
		})
	}
	for _, bad := range []string{"Nullable", "@N bogus_target", "@N field[param]", "@N field path sideways"} {
		if _, _, err := parsePositioned(bad, def); err == nil {
			t.Errorf("parse %q: want an error", bad)
		}
	}
}
