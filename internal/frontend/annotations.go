package frontend

import (
	"fmt"
	"strconv"
	"strings"

	"qualflow/internal/ast"
)

// parsePositioned reads an annotation with an explicit position, in the form
// Position.String prints:
//
//	@Nullable class_type_parameter_bound[param=0, bound=1] path array, type_argument(0)
//
// It lets programs address positions inline syntax cannot express, such as
// out of range bound indices. A bare annotation takes the position def.
func parsePositioned(src string, def ast.Position) (annoSyntax, ast.Position, error) {
	p, err := newParser(src)
	if err != nil {
		return annoSyntax{}, ast.Position{}, err
	}
	if !p.at(tokAt) {
		return annoSyntax{}, ast.Position{}, fmt.Errorf("expected an annotation")
	}
	a, ok := p.annotation()
	if !ok {
		return annoSyntax{}, ast.Position{}, p.err
	}
	rest := strings.TrimSpace(src[a.End:])
	end := strings.IndexFunc(rest, func(r rune) bool { return r != '_' && (r < 'a' || r > 'z') })
	if end < 0 {
		end = len(rest)
	}
	target, rest := rest[:end], rest[end:]
	if target == "path" {
		target, rest = "", "path"+rest
	}
	var bracket string
	if strings.HasPrefix(rest, "[") {
		i := strings.IndexByte(rest, ']')
		if i < 0 {
			return annoSyntax{}, ast.Position{}, fmt.Errorf("unterminated position indices in %q", src)
		}
		bracket, rest = rest[:i+1], rest[i+1:]
	}
	pos := def
	if target != "" {
		tt, ok := ast.ParseTargetType(target)
		if !ok {
			return annoSyntax{}, ast.Position{}, fmt.Errorf("unknown annotation target %q", target)
		}
		pos = ast.Position{Target: tt, Index: -1}
	}
	if bracket != "" {
		if err := parseIndices(bracket, &pos); err != nil {
			return annoSyntax{}, ast.Position{}, err
		}
	}
	rest = strings.TrimSpace(rest)
	if rest != "" {
		steps, ok := strings.CutPrefix(rest, "path ")
		if !ok {
			return annoSyntax{}, ast.Position{}, fmt.Errorf("unexpected %q after annotation target", rest)
		}
		if pos.Path, err = ast.ParsePath(steps); err != nil {
			return annoSyntax{}, ast.Position{}, err
		}
	}
	return a, pos, nil
}

// parseIndices reads "[param=N]" or "[param=N, bound=M]".
func parseIndices(s string, pos *ast.Position) error {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(s), "["), "]"))
	for _, part := range strings.Split(s, ",") {
		key, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return fmt.Errorf("bad position index %q", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return fmt.Errorf("bad position index %q: %w", part, err)
		}
		switch strings.TrimSpace(key) {
		case "param":
			pos.Index = n
		case "bound":
			pos.BoundIndex = n
		default:
			return fmt.Errorf("unknown position index %q", key)
		}
	}
	return nil
}
