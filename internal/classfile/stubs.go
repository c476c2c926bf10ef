package classfile

import (
	"fmt"
	"strings"

	"qualflow/internal/ast"
	"qualflow/internal/diag"
	"qualflow/internal/source"
	"qualflow/internal/types"
)

// Stub is a parsed class file and the file set entry it was read from.
type Stub struct {
	File  source.FileID
	Class *Class
}

// SimpleName maps a binary name to the name classes are registered under:
// the last package segment, innermost class.
func SimpleName(binary string) string {
	if i := strings.LastIndexByte(binary, '/'); i >= 0 {
		binary = binary[i+1:]
	}
	if i := strings.LastIndexByte(binary, '$'); i >= 0 {
		binary = binary[i+1:]
	}
	return binary
}

type stubDecl struct {
	stub  Stub
	decl  *ast.Class
	scope map[string]types.TypeID
	sig   *classSig
	span  source.Span
}

type declarer struct {
	in     *types.Interner
	r      diag.Reporter
	failed bool
}

// Declare registers the classes of stubs with in and builds their
// declarations from descriptors and generic signatures. The declarations
// carry the decoded type annotations and no bodies. References to classes
// neither built in nor among stubs erase to Object. Declare reports false
// when a stub could not be declared.
func Declare(in *types.Interner, stubs []Stub, r diag.Reporter) ([]*ast.Class, bool) {
	if r == nil {
		r = diag.NopReporter{}
	}
	d := &declarer{in: in, r: r}
	decls := make([]*stubDecl, 0, len(stubs))
	for _, s := range stubs {
		span := source.Span{File: s.File}
		name := SimpleName(s.Class.Name)
		if _, dup := in.ClassByName(name); dup {
			d.errorf(diag.FrontDuplicateDecl, span, "class %s is already declared", name)
			continue
		}
		id := in.RegisterClass(name, s.Class.IsInterface())
		decls = append(decls, &stubDecl{
			stub: s,
			decl: &ast.Class{Name: name, ID: id, Interface: s.Class.IsInterface(), Span: span},
			span: span,
		})
	}
	for _, sd := range decls {
		d.header(sd)
	}
	out := make([]*ast.Class, 0, len(decls))
	for _, sd := range decls {
		d.members(sd)
		out = append(out, sd.decl)
	}
	return out, !d.failed
}

func (d *declarer) errorf(code diag.Code, span source.Span, format string, args ...any) {
	d.failed = true
	diag.ReportError(d.r, code, span, fmt.Sprintf(format, args...)).Emit()
}

func (d *declarer) header(sd *stubDecl) {
	c := sd.stub.Class
	sig := &classSig{}
	if c.Signature != "" {
		var err error
		if sig, err = parseClassSig(c.Signature); err != nil {
			d.errorf(diag.FrontBadClassfile, sd.span, "class %s: %v", c.Name, err)
			sig = &classSig{}
		}
	}
	if len(sig.supers) == 0 {
		if c.Super != "" {
			sig.supers = append(sig.supers, &sigType{kind: 'L', name: c.Super})
		}
		for _, i := range c.Interfaces {
			sig.supers = append(sig.supers, &sigType{kind: 'L', name: i})
		}
	}
	sd.sig = sig
	sd.scope = make(map[string]types.TypeID, len(sig.params))
	var annos []ast.RawAnnotation
	sd.decl.TypeParams = d.typeParams(sig.params, sd.decl.Name, sd.scope, sd.span)
	d.bounds(sd.decl.TypeParams, sig.params, sd.scope, nil, sd.span)
	vars := make([]types.TypeID, len(sd.decl.TypeParams))
	for i, tp := range sd.decl.TypeParams {
		vars[i] = tp.Var
	}
	sd.decl.Type = d.in.Intern(types.MakeDeclared(sd.decl.ID, vars...))
	var supers []types.TypeID
	for _, s := range sig.supers {
		if t := d.resolve(s, sd.scope, nil); t != d.in.Builtins().Object {
			supers = append(supers, t)
		}
	}
	for _, a := range c.Annotations {
		if a.Target == ast.TargetClassTypeParameter || a.Target == ast.TargetClassTypeParameterBound {
			annos = append(annos, a.Raw(sd.span))
		}
	}
	sd.decl.Annotations = annos
	d.in.UpdateClass(sd.decl.ID, func(ci *types.ClassInfo) {
		ci.Decl = sd.span
		ci.TypeParams = vars
		ci.Supers = supers
	})
}

func (d *declarer) typeParams(params []sigParam, owner string, scope map[string]types.TypeID, span source.Span) []*ast.TypeParam {
	out := make([]*ast.TypeParam, len(params))
	for i, p := range params {
		v := d.in.RegisterTypeVar(p.name, owner, i, span)
		scope[p.name] = v
		out[i] = &ast.TypeParam{Name: p.name, Index: i, Var: v, Span: span}
	}
	return out
}

func (d *declarer) bounds(tps []*ast.TypeParam, params []sigParam, scope, outer map[string]types.TypeID, span source.Span) {
	for i, p := range params {
		var members []types.TypeID
		if p.class != nil {
			members = append(members, d.resolve(p.class, scope, outer))
		}
		for _, b := range p.ifaces {
			members = append(members, d.resolve(b, scope, outer))
		}
		switch len(members) {
		case 0:
		case 1:
			d.in.SetTypeVarBounds(tps[i].Var, members[0], types.NoTypeID)
		default:
			d.in.SetTypeVarBounds(tps[i].Var, d.in.Intern(types.MakeIntersection(members...)), types.NoTypeID)
		}
	}
}

// resolve interns a signature type. Type variables are looked up in scope,
// then outer.
func (d *declarer) resolve(t *sigType, scope, outer map[string]types.TypeID) types.TypeID {
	b := d.in.Builtins()
	switch t.kind {
	case 'V':
		return b.Void
	case 'Z':
		return b.Boolean
	case 'B':
		return b.Byte
	case 'S':
		return b.Short
	case 'C':
		return b.Char
	case 'I':
		return b.Int
	case 'J':
		return b.Long
	case 'F':
		return b.Float
	case 'D':
		return b.Double
	case '[':
		return d.in.Intern(types.MakeArray(d.resolve(t.elem, scope, outer)))
	case '*':
		return d.in.Intern(types.MakeWildcard(types.NoTypeID, false))
	case '+', '-':
		return d.in.Intern(types.MakeWildcard(d.resolve(t.elem, scope, outer), t.kind == '-'))
	case 'T':
		if v, ok := scope[t.name]; ok {
			return v
		}
		if v, ok := outer[t.name]; ok {
			return v
		}
		return b.Object
	}
	id, ok := d.in.ClassByName(SimpleName(t.name))
	if !ok {
		return b.Object
	}
	info, _ := d.in.Class(id)
	if len(t.args) != len(info.TypeParams) {
		return d.in.Intern(types.MakeDeclared(id))
	}
	args := make([]types.TypeID, len(t.args))
	for i, a := range t.args {
		args[i] = d.resolve(a, scope, outer)
	}
	return d.in.Intern(types.MakeDeclared(id, args...))
}

func (d *declarer) members(sd *stubDecl) {
	c := sd.stub.Class
	var (
		fields  []types.Field
		methods []types.Method
	)
	for i := range c.Fields {
		m := &c.Fields[i]
		if m.Is(AccSynthetic) {
			continue
		}
		sig := m.Signature
		if sig == "" {
			sig = m.Descriptor
		}
		st, err := parseFieldSig(sig)
		if err != nil {
			d.errorf(diag.FrontBadClassfile, sd.span, "field %s.%s: %v", sd.decl.Name, m.Name, err)
			continue
		}
		f := &ast.Field{
			Name:   m.Name,
			Type:   d.resolve(st, sd.scope, nil),
			Static: m.Is(AccStatic),
			Init:   ast.NoExprID,
			Span:   sd.span,
		}
		for _, a := range m.Annotations {
			f.Annotations = append(f.Annotations, a.Raw(sd.span))
		}
		sd.decl.Fields = append(sd.decl.Fields, f)
		fields = append(fields, types.Field{Name: f.Name, Type: f.Type, Static: f.Static})
	}
	for i := range c.Methods {
		m := &c.Methods[i]
		if m.Is(AccSynthetic) || m.Is(AccBridge) || m.Name == "<clinit>" {
			continue
		}
		md, ok := d.method(sd, m)
		if !ok {
			continue
		}
		sd.decl.Methods = append(sd.decl.Methods, md)
		params := make([]types.TypeID, len(md.Params))
		for j, p := range md.Params {
			params[j] = p.Type
		}
		vars := make([]types.TypeID, len(md.TypeParams))
		for j, tp := range md.TypeParams {
			vars[j] = tp.Var
		}
		methods = append(methods, types.Method{
			Name: md.Name, TypeParams: vars, Params: params,
			Result: md.Result, Static: md.Static,
		})
	}
	d.in.UpdateClass(sd.decl.ID, func(ci *types.ClassInfo) {
		ci.Fields = fields
		ci.Methods = methods
	})
}

func (d *declarer) method(sd *stubDecl, m *Member) (*ast.Method, bool) {
	sig := m.Signature
	if sig == "" {
		sig = m.Descriptor
	}
	ms, err := parseMethodSig(sig)
	if err != nil {
		d.errorf(diag.FrontBadClassfile, sd.span, "method %s.%s: %v", sd.decl.Name, m.Name, err)
		return nil, false
	}
	md := &ast.Method{
		Name:   m.Name,
		Owner:  sd.decl,
		Static: m.Is(AccStatic),
		Body:   ast.NoStmtID,
		Span:   sd.span,
	}
	scope := make(map[string]types.TypeID, len(ms.params))
	md.TypeParams = d.typeParams(ms.params, md.QualifiedName(), scope, sd.span)
	d.bounds(md.TypeParams, ms.params, scope, sd.scope, sd.span)
	for i, a := range ms.args {
		name := fmt.Sprintf("arg%d", i)
		if i < len(m.ParamNames) && m.ParamNames[i] != "" {
			name = m.ParamNames[i]
		}
		md.Params = append(md.Params, &ast.Param{
			Name:  name,
			Index: i,
			Type:  d.resolve(a, scope, sd.scope),
			Span:  sd.span,
		})
	}
	md.Result = d.resolve(ms.result, scope, sd.scope)
	for _, a := range m.Annotations {
		if a.Target == ast.TargetThrows {
			continue
		}
		if a.Target == ast.TargetMethodReceiver && md.Static {
			d.errorf(diag.FrontBadClassfile, sd.span, "method %s has a receiver annotation but is static", md.QualifiedName())
			continue
		}
		md.Annotations = append(md.Annotations, a.Raw(sd.span))
	}
	return md, true
}
