package frontend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"unicode/utf8"

	"fortio.org/safecast"
	"gopkg.in/yaml.v3"

	"qualflow/internal/ast"
	"qualflow/internal/diag"
	"qualflow/internal/source"
	"qualflow/internal/trace"
	"qualflow/internal/types"
)

// ConstructorName is the method name constructors are declared with.
const ConstructorName = "<init>"

type loader struct {
	fs     *source.FileSet
	file   *source.File
	in     *types.Interner
	r      diag.Reporter
	prog   *ast.Program
	failed bool

	classes []*classState
}

type classState struct {
	model   *classModel
	decl    *ast.Class
	params  *paramList
	fields  []*fieldModel
	methods []*methodState
}

type methodState struct {
	model  *methodModel
	decl   *ast.Method
	params *paramList
}

// paramList is a declared type parameter list. syntax and src hold the
// parameters that parsed, parallel to decls.
type paramList struct {
	scope  *typeScope
	decls  []*ast.TypeParam
	syntax []*typeParamSyntax
	src    []text
	vars   []types.TypeID
}

// Load reads the YAML program in file id, registers its classes with in and
// lowers method bodies into a Program. Problems are reported to r; the
// boolean is false when any error was reported, in which case the program
// may be partial.
func Load(ctx context.Context, fs *source.FileSet, id source.FileID, in *types.Interner, r diag.Reporter) (*ast.Program, bool) {
	if r == nil {
		r = diag.NopReporter{}
	}
	l := &loader{
		fs:   fs,
		file: fs.Get(id),
		in:   in,
		r:    r,
		prog: ast.NewProgram(id, ast.Hints{}),
	}
	if l.file == nil {
		l.errorf(diag.FrontLoadFile, source.Span{File: id}, "unknown file %d", id)
		return l.prog, false
	}
	span := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "frontend.load", trace.CurrentSpan(ctx))
	defer span.End(l.file.Path)

	var fm fileModel
	dec := yaml.NewDecoder(bytes.NewReader(l.file.Content))
	dec.KnownFields(true)
	if err := dec.Decode(&fm); err != nil && !errors.Is(err, io.EOF) {
		l.errorf(diag.FrontSyntax, l.yamlErrorSpan(err), "%v", err)
		return l.prog, false
	}
	l.declareClasses(fm.Classes)
	l.declareHeaders()
	l.declareMembers()
	l.lowerBodies()
	return l.prog, !l.failed
}

// LoadBytes adds content to fs as a virtual file and loads it.
func LoadBytes(ctx context.Context, fs *source.FileSet, name string, content []byte, in *types.Interner, r diag.Reporter) (*ast.Program, bool) {
	return Load(ctx, fs, fs.AddVirtual(name, content), in, r)
}

func (l *loader) errorf(code diag.Code, span source.Span, format string, args ...any) {
	l.failed = true
	diag.ReportError(l.r, code, span, fmt.Sprintf(format, args...)).Emit()
}

// Spans ----------------------------------------------------------------------

var yamlLine = regexp.MustCompile(`line (\d+)`)

func (l *loader) yamlErrorSpan(err error) source.Span {
	m := yamlLine.FindStringSubmatch(err.Error())
	if m == nil {
		return source.Span{File: l.file.ID}
	}
	n, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return source.Span{File: l.file.ID}
	}
	return l.lineSpan(n)
}

func (l *loader) lineStart(line int) uint32 {
	if line <= 1 || len(l.file.LineIdx) == 0 {
		return 0
	}
	if line-2 >= len(l.file.LineIdx) {
		return l.fileLen()
	}
	return l.file.LineIdx[line-2] + 1
}

func (l *loader) fileLen() uint32 {
	n, err := safecast.Conv[uint32](len(l.file.Content))
	if err != nil {
		panic(fmt.Errorf("file too large: %w", err))
	}
	return n
}

// lineSpan covers line without its newline.
func (l *loader) lineSpan(line int) source.Span {
	start := l.lineStart(line)
	end := start
	for end < l.fileLen() && l.file.Content[end] != '\n' {
		end++
	}
	return source.Span{File: l.file.ID, Start: start, End: end}
}

// offsetOf converts a YAML line and 1-based rune column to a byte offset.
func (l *loader) offsetOf(line, col int) uint32 {
	off := l.lineStart(line)
	for range col - 1 {
		if off >= l.fileLen() || l.file.Content[off] == '\n' {
			break
		}
		_, size := utf8.DecodeRune(l.file.Content[off:])
		off += uint32(size) //nolint:gosec // rune size is at most 4
	}
	return off
}

// spanOf maps the byte range [off, end) of a scalar's value to the file.
// Offsets inside escaped or folded scalars are approximate and clamped to
// the file.
func (l *loader) spanOf(t text, off, end uint32) source.Span {
	if !t.Set {
		return source.Span{File: l.file.ID}
	}
	base := l.offsetOf(t.Line, t.Column)
	if t.Quoted {
		base++
	}
	limit := l.fileLen()
	clamp := func(v uint32) uint32 {
		if v > limit {
			return limit
		}
		return v
	}
	return source.Span{File: l.file.ID, Start: clamp(base + off), End: clamp(base + end)}
}

func (l *loader) textSpan(t text) source.Span {
	n, err := safecast.Conv[uint32](len(t.Value))
	if err != nil {
		panic(fmt.Errorf("scalar too large: %w", err))
	}
	return l.spanOf(t, 0, n)
}

// syntaxError reports a parse failure inside t.
func (l *loader) syntaxError(t text, err error) {
	var le *lexError
	if errors.As(err, &le) {
		l.errorf(diag.FrontSyntax, l.spanOf(t, le.Off, le.Off+1), "%s", le.Msg)
		return
	}
	l.errorf(diag.FrontSyntax, l.textSpan(t), "%v", err)
}

// Declarations ---------------------------------------------------------------

// declareClasses registers every class and its type variables, so headers
// and members may refer to any class of the file.
func (l *loader) declareClasses(models []classModel) {
	for i := range models {
		cm := &models[i]
		span := l.textSpan(cm.Name)
		if cm.Name.Value == "" {
			l.errorf(diag.FrontSyntax, span, "class without a name")
			continue
		}
		if _, dup := l.in.ClassByName(cm.Name.Value); dup {
			l.errorf(diag.FrontDuplicateDecl, span, "class %s is already declared", cm.Name.Value)
			continue
		}
		id := l.in.RegisterClass(cm.Name.Value, cm.Interface)
		cs := &classState{
			model: cm,
			decl:  &ast.Class{Name: cm.Name.Value, ID: id, Interface: cm.Interface, Span: span},
		}
		cs.params = l.declareTypeParams(cm.TypeParams, cm.Name.Value, nil)
		cs.decl.TypeParams = cs.params.decls
		cs.decl.Type = l.in.Intern(types.MakeDeclared(id, cs.params.vars...))
		l.in.UpdateClass(id, func(ci *types.ClassInfo) {
			ci.Decl = span
			ci.TypeParams = cs.params.vars
		})
		l.classes = append(l.classes, cs)
	}
}

// declareTypeParams registers the variables of a type parameter list.
// Bounds are resolved later, once every variable of the scope exists.
func (l *loader) declareTypeParams(src []text, owner string, parent *typeScope) *paramList {
	pl := &paramList{scope: &typeScope{vars: make(map[string]types.TypeID, len(src)), parent: parent}}
	for _, t := range src {
		tps, err := parseTypeParamString(t.Value)
		if err != nil {
			l.syntaxError(t, err)
			continue
		}
		span := l.spanOf(t, tps.Off, tps.End)
		if _, dup := pl.scope.vars[tps.Name]; dup {
			l.errorf(diag.FrontDuplicateDecl, span, "type parameter %s is already declared", tps.Name)
			continue
		}
		index := len(pl.decls)
		v := l.in.RegisterTypeVar(tps.Name, owner, index, span)
		pl.scope.vars[tps.Name] = v
		pl.decls = append(pl.decls, &ast.TypeParam{Name: tps.Name, Index: index, Var: v, Span: span})
		pl.syntax = append(pl.syntax, tps)
		pl.src = append(pl.src, t)
		pl.vars = append(pl.vars, v)
	}
	return pl
}

// typeParamBounds resolves the bounds of pl and records their annotations.
// Bound indices follow class file numbering: index 0 is the class bound, so
// an interface first bound is numbered 1.
func (l *loader) typeParamBounds(pl *paramList, kind ast.TargetType, annos *[]ast.RawAnnotation) {
	for i, tps := range pl.syntax {
		p, t := pl.decls[i], pl.src[i]
		for _, a := range tps.Annos {
			*annos = append(*annos, ast.RawAnnotation{
				Name: a.Name,
				Args: a.Args,
				Pos:  ast.Position{Target: kind, Index: p.Index},
				Span: l.spanOf(t, a.Off, a.End),
			})
		}
		if len(tps.Bounds) == 0 {
			continue
		}
		var boundAnnos []ast.RawAnnotation
		bounds := make([]types.TypeID, len(tps.Bounds))
		for j, b := range tps.Bounds {
			bounds[j] = l.typeIn(t, b, pl.scope, placement{target: kind.BoundTarget(), index: p.Index, boundIndex: j}, &boundAnnos)
		}
		if l.in.IsInterface(bounds[0]) {
			for k := range boundAnnos {
				boundAnnos[k].Pos.BoundIndex++
			}
		}
		*annos = append(*annos, boundAnnos...)
		upper := bounds[0]
		if len(bounds) > 1 {
			upper = l.in.Intern(types.MakeIntersection(bounds...))
		}
		l.in.SetTypeVarBounds(p.Var, upper, types.NoTypeID)
	}
}

// explicit parses annotations written with an explicit position. allowed
// filters the targets an element accepts.
func (l *loader) explicit(src []text, def ast.Position, allowed func(ast.TargetType) bool, into *[]ast.RawAnnotation) {
	for _, t := range src {
		a, pos, err := parsePositioned(t.Value, def)
		if err != nil {
			l.syntaxError(t, err)
			continue
		}
		span := l.textSpan(t)
		if !allowed(pos.Target) {
			l.errorf(diag.FrontBadAnnotation, span, "annotation target %s is not allowed here", pos.Target)
			continue
		}
		*into = append(*into, ast.RawAnnotation{Name: a.Name, Args: a.Args, Pos: pos, Span: span})
	}
}

func (l *loader) declareHeaders() {
	for _, cs := range l.classes {
		cm := cs.model
		l.typeParamBounds(cs.params, ast.TargetClassTypeParameter, &cs.decl.Annotations)

		var supers []types.TypeID
		for j, t := range cm.Extends {
			ts, err := parseTypeString(t.Value)
			if err != nil {
				l.syntaxError(t, err)
				continue
			}
			st := l.typeIn(t, ts, cs.params.scope, placement{target: ast.TargetClassExtends, index: j}, nil)
			if l.in.Kind(st) != types.KindDeclared {
				l.errorf(diag.FrontTypeMismatch, l.textSpan(t), "%s cannot extend %s", cs.decl.Name, t.Value)
				continue
			}
			supers = append(supers, st)
		}
		l.in.UpdateClass(cs.decl.ID, func(ci *types.ClassInfo) { ci.Supers = supers })

		l.explicit(cm.Annotations, ast.Position{Target: ast.TargetClassTypeParameter}, func(t ast.TargetType) bool {
			return t == ast.TargetClassTypeParameter || t == ast.TargetClassTypeParameterBound
		}, &cs.decl.Annotations)
	}
}

func (l *loader) declareMembers() {
	for _, cs := range l.classes {
		cm := cs.model
		var (
			fields  []types.Field
			methods []types.Method
		)
		for i := range cm.Fields {
			fm := &cm.Fields[i]
			f, ok := l.declareField(cs, fm)
			if !ok {
				continue
			}
			cs.decl.Fields = append(cs.decl.Fields, f)
			cs.fields = append(cs.fields, fm)
			fields = append(fields, types.Field{Name: f.Name, Type: f.Type, Static: f.Static})
		}
		for i := range cm.Methods {
			ms, ok := l.declareMethod(cs, &cm.Methods[i])
			if !ok {
				continue
			}
			cs.methods = append(cs.methods, ms)
			m := ms.decl
			cs.decl.Methods = append(cs.decl.Methods, m)
			params := make([]types.TypeID, len(m.Params))
			for j, p := range m.Params {
				params[j] = p.Type
			}
			vars := make([]types.TypeID, len(m.TypeParams))
			for j, tp := range m.TypeParams {
				vars[j] = tp.Var
			}
			methods = append(methods, types.Method{
				Name: m.Name, TypeParams: vars, Params: params,
				Result: m.Result, Static: m.Static, Pure: m.Pure,
			})
		}
		l.in.UpdateClass(cs.decl.ID, func(ci *types.ClassInfo) {
			ci.Fields = fields
			ci.Methods = methods
		})
		l.prog.AddClass(cs.decl)
	}
}

func (l *loader) declareField(cs *classState, fm *fieldModel) (*ast.Field, bool) {
	span := l.textSpan(fm.Name)
	if fm.Name.Value == "" {
		l.errorf(diag.FrontSyntax, span, "field without a name in class %s", cs.decl.Name)
		return nil, false
	}
	if _, dup := cs.decl.Field(fm.Name.Value); dup {
		l.errorf(diag.FrontDuplicateDecl, span, "field %s.%s is already declared", cs.decl.Name, fm.Name.Value)
		return nil, false
	}
	f := &ast.Field{Name: fm.Name.Value, Static: fm.Static, Span: span}
	if !fm.Type.Set {
		l.errorf(diag.FrontSyntax, span, "field %s.%s has no type", cs.decl.Name, f.Name)
		return nil, false
	}
	ts, err := parseTypeString(fm.Type.Value)
	if err != nil {
		l.syntaxError(fm.Type, err)
		return nil, false
	}
	f.Type = l.typeIn(fm.Type, ts, cs.params.scope, placement{target: ast.TargetField, index: -1}, &f.Annotations)
	l.explicit(fm.Annotations, ast.Position{Target: ast.TargetField, Index: -1}, func(t ast.TargetType) bool {
		return t == ast.TargetField
	}, &f.Annotations)
	return f, true
}

func (l *loader) declareMethod(cs *classState, mm *methodModel) (*methodState, bool) {
	span := l.textSpan(mm.Name)
	name := mm.Name.Value
	if name == "" {
		l.errorf(diag.FrontSyntax, span, "method without a name in class %s", cs.decl.Name)
		return nil, false
	}
	m := &ast.Method{Name: name, Owner: cs.decl, Static: mm.Static, Pure: mm.Pure, Span: span}
	ms := &methodState{model: mm, decl: m}
	ms.params = l.declareTypeParams(mm.TypeParams, cs.decl.Name+"."+name, cs.params.scope)
	m.TypeParams = ms.params.decls
	l.typeParamBounds(ms.params, ast.TargetMethodTypeParameter, &m.Annotations)

	for i, t := range mm.Params {
		ts, nameTok, err := parseParamString(t.Value)
		if err != nil {
			l.syntaxError(t, err)
			return nil, false
		}
		pspan := l.spanOf(t, nameTok.Off, nameTok.End)
		for _, prev := range m.Params {
			if prev.Name == nameTok.Text {
				l.errorf(diag.FrontDuplicateDecl, pspan, "parameter %s is already declared", nameTok.Text)
				return nil, false
			}
		}
		pt := l.typeIn(t, ts, ms.params.scope, placement{target: ast.TargetMethodFormalParameter, index: i}, &m.Annotations)
		m.Params = append(m.Params, &ast.Param{Name: nameTok.Text, Index: i, Type: pt, Span: pspan})
	}

	m.Result = l.in.Builtins().Void
	switch {
	case name == ConstructorName && mm.Returns.Set:
		l.errorf(diag.FrontBadStatement, l.textSpan(mm.Returns), "constructors do not declare a result")
	case name == ConstructorName && mm.Static:
		l.errorf(diag.FrontBadStatement, span, "constructors cannot be static")
	case mm.Returns.Set:
		ts, err := parseTypeString(mm.Returns.Value)
		if err != nil {
			l.syntaxError(mm.Returns, err)
			return nil, false
		}
		m.Result = l.typeIn(mm.Returns, ts, ms.params.scope, placement{target: ast.TargetMethodReturn, index: -1}, &m.Annotations)
	}

	if mm.Receiver.Set {
		l.receiver(m, mm.Receiver)
	}
	l.explicit(mm.Annotations, ast.Position{Target: ast.TargetMethodReturn, Index: -1}, func(t ast.TargetType) bool {
		switch t {
		case ast.TargetMethodTypeParameter, ast.TargetMethodTypeParameterBound, ast.TargetMethodReturn,
			ast.TargetMethodReceiver, ast.TargetMethodFormalParameter:
			return true
		}
		return false
	}, &m.Annotations)

	for _, prev := range cs.methods {
		if prev.decl.Name == name && len(prev.decl.Params) == len(m.Params) {
			l.errorf(diag.FrontDuplicateDecl, span, "method %s with %d parameters is already declared", m.QualifiedName(), len(m.Params))
			return nil, false
		}
	}
	return ms, true
}

// receiver records the annotations written on a method's receiver.
func (l *loader) receiver(m *ast.Method, t text) {
	if m.Static {
		l.errorf(diag.FrontBadAnnotation, l.textSpan(t), "static method %s has no receiver", m.QualifiedName())
		return
	}
	annos, err := parseAnnotationsString(t.Value)
	if err != nil {
		l.syntaxError(t, err)
		return
	}
	for _, a := range annos {
		m.Annotations = append(m.Annotations, ast.RawAnnotation{
			Name: a.Name,
			Args: a.Args,
			Pos:  ast.Position{Target: ast.TargetMethodReceiver, Index: -1},
			Span: l.spanOf(t, a.Off, a.End),
		})
	}
}
