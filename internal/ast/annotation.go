package ast

import (
	"fmt"
	"strconv"
	"strings"

	"qualflow/internal/source"
)

// TargetType is the kind of program element a type annotation is written
// on. Values follow the JVM RuntimeVisibleTypeAnnotations target_type
// numbering.
type TargetType uint8

const (
	TargetClassTypeParameter       TargetType = 0x00
	TargetMethodTypeParameter      TargetType = 0x01
	TargetClassExtends             TargetType = 0x10
	TargetClassTypeParameterBound  TargetType = 0x11
	TargetMethodTypeParameterBound TargetType = 0x12
	TargetField                    TargetType = 0x13
	TargetMethodReturn             TargetType = 0x14
	TargetMethodReceiver           TargetType = 0x15
	TargetMethodFormalParameter    TargetType = 0x16
	TargetThrows                   TargetType = 0x17
	TargetLocalVariable            TargetType = 0x40
)

var targetNames = map[TargetType]string{
	TargetClassTypeParameter:       "class_type_parameter",
	TargetMethodTypeParameter:      "method_type_parameter",
	TargetClassExtends:             "class_extends",
	TargetClassTypeParameterBound:  "class_type_parameter_bound",
	TargetMethodTypeParameterBound: "method_type_parameter_bound",
	TargetField:                    "field",
	TargetMethodReturn:             "method_return",
	TargetMethodReceiver:           "method_receiver",
	TargetMethodFormalParameter:    "method_formal_parameter",
	TargetThrows:                   "throws",
	TargetLocalVariable:            "local_variable",
}

func (t TargetType) String() string {
	if name, ok := targetNames[t]; ok {
		return name
	}
	return fmt.Sprintf("target(0x%02x)", uint8(t))
}

// ParseTargetType resolves the names printed by TargetType.String.
func ParseTargetType(s string) (TargetType, bool) {
	for t, name := range targetNames {
		if name == s {
			return t, true
		}
	}
	return 0, false
}

// BoundTarget returns the bound target matching a type parameter target:
// class_type_parameter_bound for class type parameters and
// method_type_parameter_bound for method ones.
func (t TargetType) BoundTarget() TargetType {
	if t == TargetMethodTypeParameter || t == TargetMethodTypeParameterBound {
		return TargetMethodTypeParameterBound
	}
	return TargetClassTypeParameterBound
}

// IsTypeParameter reports whether t targets a type parameter or its bound.
func (t TargetType) IsTypeParameter() bool {
	switch t {
	case TargetClassTypeParameter, TargetMethodTypeParameter,
		TargetClassTypeParameterBound, TargetMethodTypeParameterBound:
		return true
	}
	return false
}

type PathKind uint8

const (
	PathArray        PathKind = 0
	PathNested       PathKind = 1
	PathWildcard     PathKind = 2
	PathTypeArgument PathKind = 3
)

// PathEntry is one step of a type path. Arg is the type argument index for
// PathTypeArgument and zero otherwise.
type PathEntry struct {
	Kind PathKind
	Arg  uint8
}

func (e PathEntry) String() string {
	switch e.Kind {
	case PathArray:
		return "array"
	case PathNested:
		return "nested"
	case PathWildcard:
		return "wildcard"
	case PathTypeArgument:
		return "type_argument(" + strconv.Itoa(int(e.Arg)) + ")"
	}
	return fmt.Sprintf("path(%d)", e.Kind)
}

// FormatPath renders a type path as comma separated steps.
func FormatPath(path []PathEntry) string {
	parts := make([]string, len(path))
	for i, e := range path {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

// ParsePath parses the output of FormatPath. "array*3" is accepted as a
// shorthand for three array steps.
func ParsePath(s string) ([]PathEntry, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []PathEntry
	for _, raw := range strings.Split(s, ",") {
		step := strings.TrimSpace(raw)
		repeat := 1
		if base, count, ok := strings.Cut(step, "*"); ok {
			n, err := strconv.Atoi(strings.TrimSpace(count))
			if err != nil || n < 1 {
				return nil, fmt.Errorf("bad repeat count in %q", step)
			}
			step, repeat = strings.TrimSpace(base), n
		}
		var e PathEntry
		switch {
		case step == "array":
			e = PathEntry{Kind: PathArray}
		case step == "nested":
			e = PathEntry{Kind: PathNested}
		case step == "wildcard":
			e = PathEntry{Kind: PathWildcard}
		case strings.HasPrefix(step, "type_argument(") && strings.HasSuffix(step, ")"):
			n, err := strconv.ParseUint(step[len("type_argument("):len(step)-1], 10, 8)
			if err != nil {
				return nil, fmt.Errorf("bad type argument index in %q: %w", step, err)
			}
			e = PathEntry{Kind: PathTypeArgument, Arg: uint8(n)}
		default:
			return nil, fmt.Errorf("unknown type path step %q", step)
		}
		for range repeat {
			out = append(out, e)
		}
	}
	return out, nil
}

// Position locates a type annotation within its element. Index is the type
// parameter index for type parameter targets and the parameter index for
// method_formal_parameter; BoundIndex is meaningful for bound targets only.
type Position struct {
	Target     TargetType
	Index      int
	BoundIndex int
	Path       []PathEntry
}

func (p Position) String() string {
	var b strings.Builder
	b.WriteString(p.Target.String())
	switch {
	case p.Target == TargetClassTypeParameterBound || p.Target == TargetMethodTypeParameterBound:
		fmt.Fprintf(&b, "[param=%d, bound=%d]", p.Index, p.BoundIndex)
	case p.Target.IsTypeParameter() || p.Target == TargetMethodFormalParameter:
		fmt.Fprintf(&b, "[param=%d]", p.Index)
	}
	if len(p.Path) > 0 {
		b.WriteString(" path ")
		b.WriteString(FormatPath(p.Path))
	}
	return b.String()
}

// RawAnnotation is an annotation as written, before it is resolved to a
// qualifier and placed on a type.
type RawAnnotation struct {
	Name string
	Args []string
	Pos  Position
	Span source.Span
}

func (a RawAnnotation) String() string {
	label := "@" + a.Name
	if len(a.Args) > 0 {
		label += "(" + strings.Join(a.Args, ", ") + ")"
	}
	return label + " on " + a.Pos.String()
}
