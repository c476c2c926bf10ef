package classfile

import (
	"encoding/binary"
	"strings"
	"testing"

	"qualflow/internal/ast"
	"qualflow/internal/diag"
	"qualflow/internal/source"
	"qualflow/internal/types"
)

// classBuilder assembles class files for tests.
type classBuilder struct {
	pool    [][]byte
	strs    map[string]uint16
	classes map[string]uint16
}

func newClassBuilder() *classBuilder {
	return &classBuilder{strs: map[string]uint16{}, classes: map[string]uint16{}}
}

func u2(v int) []byte { return binary.BigEndian.AppendUint16(nil, uint16(v)) }

func u4(v int) []byte { return binary.BigEndian.AppendUint32(nil, uint32(v)) }

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func (b *classBuilder) add(entry []byte) uint16 {
	b.pool = append(b.pool, entry)
	return uint16(len(b.pool))
}

func (b *classBuilder) utf8(s string) uint16 {
	if i, ok := b.strs[s]; ok {
		return i
	}
	i := b.add(cat([]byte{byte(tagUtf8)}, u2(len(s)), []byte(s)))
	b.strs[s] = i
	return i
}

func (b *classBuilder) class(name string) uint16 {
	if i, ok := b.classes[name]; ok {
		return i
	}
	n := b.utf8(name)
	i := b.add(cat([]byte{byte(tagClass)}, u2(int(n))))
	b.classes[name] = i
	return i
}

func (b *classBuilder) attr(name string, body []byte) []byte {
	return cat(u2(int(b.utf8(name))), u4(len(body)), body)
}

func (b *classBuilder) signature(sig string) []byte {
	return b.attr("Signature", u2(int(b.utf8(sig))))
}

// typeAnnos encodes a type annotations attribute from pre-encoded entries.
func (b *classBuilder) typeAnnos(visible bool, entries ...[]byte) []byte {
	name := "RuntimeInvisibleTypeAnnotations"
	if visible {
		name = "RuntimeVisibleTypeAnnotations"
	}
	return b.attr(name, cat(u2(len(entries)), cat(entries...)))
}

// anno encodes one type_annotation without element values.
func (b *classBuilder) anno(target byte, info []byte, path []byte, typ string) []byte {
	return cat([]byte{target}, info, []byte{byte(len(path) / 2)}, path, u2(int(b.utf8(typ))), u2(0))
}

func (b *classBuilder) member(access int, name, desc string, attrs ...[]byte) []byte {
	return cat(u2(access), u2(int(b.utf8(name))), u2(int(b.utf8(desc))), u2(len(attrs)), cat(attrs...))
}

func (b *classBuilder) build(access int, name, super string, fields, methods, attrs [][]byte) []byte {
	this, sup := b.class(name), b.class(super)
	var poolBytes []byte
	for _, e := range b.pool {
		poolBytes = append(poolBytes, e...)
	}
	return cat(
		u4(magic), u2(0), u2(52),
		u2(len(b.pool)+1), poolBytes,
		u2(access), u2(int(this)), u2(int(sup)), u2(0),
		u2(len(fields)), cat(fields...),
		u2(len(methods)), cat(methods...),
		u2(len(attrs)), cat(attrs...),
	)
}

// boxClass is org/example/Box<T> with annotated members:
//
//	class Box<T extends @Nullable Object> {
//	  @Nullable T value;
//	  Box() {}
//	  @Nullable T get();
//	  void put(@KeyFor({"a", "b"}) String key, String @NonNull [] values);
//	  static <U> U first(U[] us);
//	}
func boxClass() []byte {
	b := newClassBuilder()
	// Strings are interned before the pool is encoded by build.
	keyFor := cat([]byte{0x16, 0}, []byte{0}, u2(int(b.utf8("Lorg/example/KeyFor;"))), u2(1),
		u2(int(b.utf8("value"))), []byte{'['}, u2(2),
		[]byte{'s'}, u2(int(b.utf8("a"))), []byte{'s'}, u2(int(b.utf8("b"))))
	fields := [][]byte{
		b.member(0, "value", "Ljava/lang/Object;",
			b.signature("TT;"),
			b.typeAnnos(false, b.anno(0x13, nil, nil, "Lorg/example/Nullable;"))),
	}
	methods := [][]byte{
		b.member(0x0001, "<init>", "()V"),
		b.member(0x0001, "get", "()Ljava/lang/Object;",
			b.signature("()TT;"),
			b.typeAnnos(true, b.anno(0x14, nil, nil, "Lorg/example/Nullable;"))),
		b.member(0x0001, "put", "(Ljava/lang/String;[Ljava/lang/String;)V",
			b.attr("MethodParameters", cat([]byte{2}, u2(int(b.utf8("key"))), u2(0), u2(int(b.utf8("values"))), u2(0))),
			b.typeAnnos(true,
				keyFor,
				b.anno(0x16, []byte{1}, nil, "Lorg/example/NonNull;"))),
		b.member(0x0009, "first", "([Ljava/lang/Object;)Ljava/lang/Object;",
			b.signature("<U:Ljava/lang/Object;>([TU;)TU;")),
		b.member(0x1000, "access$000", "()V"),
		b.member(0x0008, "<clinit>", "()V"),
	}
	attrs := [][]byte{
		b.signature("<T:Ljava/lang/Object;>Ljava/lang/Object;"),
		b.typeAnnos(true, b.anno(0x11, []byte{0, 0}, nil, "Lorg/example/Nullable;")),
	}
	return b.build(0x0021, "org/example/Box", "java/lang/Object", fields, methods, attrs)
}

func TestParseTypeAnnotations(t *testing.T) {
	c, err := Parse(boxClass())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Name != "org/example/Box" || c.Super != "java/lang/Object" {
		t.Fatalf("names = %q extends %q", c.Name, c.Super)
	}
	if c.Signature != "<T:Ljava/lang/Object;>Ljava/lang/Object;" {
		t.Fatalf("signature = %q", c.Signature)
	}
	if len(c.Annotations) != 1 || c.Annotations[0].String() != "@org.example.Nullable on class_type_parameter_bound[param=0, bound=0]" {
		t.Fatalf("class annotations = %v", c.Annotations)
	}
	f := c.Fields[0]
	if f.Signature != "TT;" || len(f.Annotations) != 1 || f.Annotations[0].Visible {
		t.Fatalf("field = %+v", f)
	}
	var put *Member
	for i := range c.Methods {
		if c.Methods[i].Name == "put" {
			put = &c.Methods[i]
		}
	}
	if put == nil {
		t.Fatal("put not parsed")
	}
	if strings.Join(put.ParamNames, ",") != "key,values" {
		t.Fatalf("param names = %v", put.ParamNames)
	}
	got := make([]string, len(put.Annotations))
	for i, a := range put.Annotations {
		got[i] = a.String()
	}
	want := []string{
		"@org.example.KeyFor(a, b) on method_formal_parameter[param=0]",
		"@org.example.NonNull on method_formal_parameter[param=1]",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("put annotations:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestDecodeTypeAnnotationPaths(t *testing.T) {
	b := newClassBuilder()
	path := []byte{0, 0, 3, 1, 2, 0}
	body := cat(u2(1), b.anno(0x13, nil, path, "Lorg/example/Nullable$List;"))
	c := &Class{pool: make(pool, len(b.pool)+1)}
	for i, e := range b.pool {
		c.pool[i+1] = constant{tag: constTag(e[0]), text: string(e[3:])}
	}
	got, err := c.DecodeTypeAnnotations(body, true)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d annotations", len(got))
	}
	if s := got[0].String(); s != "@org.example.Nullable.List on field path array, type_argument(1), wildcard" {
		t.Fatalf("annotation = %s", s)
	}
}

func TestParseErrors(t *testing.T) {
	good := boxClass()
	badTarget := func() []byte {
		b := newClassBuilder()
		fields := [][]byte{b.member(0, "f", "I", b.typeAnnos(true, b.anno(0x40, u2(0), nil, "LA;")))}
		return b.build(0, "A", "java/lang/Object", fields, nil, nil)
	}
	badPath := func() []byte {
		b := newClassBuilder()
		fields := [][]byte{b.member(0, "f", "I", b.typeAnnos(true, b.anno(0x13, nil, []byte{7, 0}, "LA;")))}
		return b.build(0, "A", "java/lang/Object", fields, nil, nil)
	}
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"empty", nil, "unexpected end of data"},
		{"magic", append([]byte{0xCA, 0xFE, 0xBA, 0xBF}, good[4:]...), "bad magic"},
		{"truncated", good[:len(good)-3], "unexpected end of data"},
		{"trailing", append(append([]byte(nil), good...), 0), "trailing bytes"},
		{"code target", badTarget(), "not valid outside method code"},
		{"path kind", badPath(), "unknown type path kind 7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestParseSignatures(t *testing.T) {
	fields := []struct{ sig, want string }{
		{"I", "I"},
		{"[[Ljava/lang/String;", "java/lang/String[][]"},
		{"Ljava/util/Map<TK;+Ljava/util/List<*>;>;", "java/util/Map<K,? extends java/util/List<?>>"},
		{"Ljava/util/Comparator<-TT;>;", "java/util/Comparator<? super T>"},
		{"Lp/Outer<TT;>.Inner<TU;>;", "p/Outer$Inner<U>"},
	}
	for _, tt := range fields {
		got, err := parseFieldSig(tt.sig)
		if err != nil {
			t.Errorf("%s: %v", tt.sig, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("%s = %s, want %s", tt.sig, got, tt.want)
		}
	}

	ms, err := parseMethodSig("<T::Ljava/lang/Comparable<TT;>;>(TT;[TT;)TT;^Ljava/io/IOException;")
	if err != nil {
		t.Fatal(err)
	}
	if len(ms.params) != 1 || ms.params[0].class != nil || len(ms.params[0].ifaces) != 1 {
		t.Fatalf("type params = %+v", ms.params)
	}
	if len(ms.args) != 2 || ms.result.String() != "T" {
		t.Fatalf("method = %+v", ms)
	}

	cs, err := parseClassSig("<K:Ljava/lang/Object;V:Ljava/lang/Object;>Ljava/lang/Object;Ljava/util/Map<TK;TV;>;")
	if err != nil {
		t.Fatal(err)
	}
	if len(cs.params) != 2 || len(cs.supers) != 2 || cs.supers[1].String() != "java/util/Map<K,V>" {
		t.Fatalf("class = %+v", cs)
	}

	for _, bad := range []string{"Ljava/util/List", "V", "Q", "Ljava/util/List<TT;"} {
		if _, err := parseFieldSig(bad); err == nil {
			t.Errorf("%q: expected an error", bad)
		}
	}
	for _, bad := range []string{"(I", "<T>()V", "()"} {
		if _, err := parseMethodSig(bad); err == nil {
			t.Errorf("%q: expected an error", bad)
		}
	}
}

func TestDeclare(t *testing.T) {
	data := boxClass()
	c, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	fs := source.NewFileSet()
	file := fs.Add("Box.class", data, source.FileBinary)
	in := types.NewInterner()
	bag := diag.NewBag(10)
	decls, ok := Declare(in, []Stub{{File: file, Class: c}}, diag.BagReporter{Bag: bag})
	if !ok || bag.Len() != 0 {
		t.Fatalf("Declare failed: %v", bag.Items())
	}
	box := decls[0]
	if box.Name != "Box" || len(box.TypeParams) != 1 || box.TypeParams[0].Name != "T" {
		t.Fatalf("class = %+v", box)
	}
	tv := box.TypeParams[0].Var
	if len(box.Annotations) != 1 || box.Annotations[0].Pos.Target != ast.TargetClassTypeParameterBound {
		t.Fatalf("class annotations = %v", box.Annotations)
	}
	if f, ok := box.Field("value"); !ok || f.Type != tv || len(f.Annotations) != 1 || f.Init.IsValid() {
		t.Fatalf("field value = %+v", f)
	}
	names := make([]string, len(box.Methods))
	for i, m := range box.Methods {
		names[i] = m.Name
		if m.Body.IsValid() {
			t.Errorf("%s has a body", m.Name)
		}
	}
	if strings.Join(names, ",") != "<init>,get,put,first" {
		t.Fatalf("methods = %v", names)
	}
	get, _ := box.Method("get")
	if get.Result != tv || len(get.Annotations) != 1 {
		t.Fatalf("get = %+v", get)
	}
	put, _ := box.Method("put")
	b := in.Builtins()
	if put.Params[0].Name != "key" || put.Params[0].Type != b.String {
		t.Fatalf("put key = %+v", put.Params[0])
	}
	if put.Params[1].Type != in.Intern(types.MakeArray(b.String)) || put.Result != b.Void {
		t.Fatalf("put = %+v", put)
	}
	first, _ := box.Method("first")
	if !first.Static || len(first.TypeParams) != 1 || first.Result != first.TypeParams[0].Var {
		t.Fatalf("first = %+v", first)
	}
	if info, _ := in.TypeVar(first.TypeParams[0].Var); info.Owner != "Box.first" {
		t.Fatalf("first type var owner = %q", info.Owner)
	}
	info, _ := in.Class(box.ID)
	if len(info.Methods) != 4 || len(info.Fields) != 1 || len(info.TypeParams) != 1 {
		t.Fatalf("class info = %+v", info)
	}

	_, ok = Declare(in, []Stub{{File: file, Class: c}}, diag.BagReporter{Bag: bag})
	if ok || bag.Len() != 1 || bag.Items()[0].Code != diag.FrontDuplicateDecl {
		t.Fatalf("redeclaration: ok=%v diags=%v", ok, bag.Items())
	}
}

func TestSimpleName(t *testing.T) {
	for in, want := range map[string]string{
		"java/util/List":    "List",
		"p/Outer$Inner":     "Inner",
		"Top":               "Top",
		"java/lang/Object":  "Object",
		"a/b/c/Map$Entry$K": "K",
	} {
		if got := SimpleName(in); got != want {
			t.Errorf("SimpleName(%q) = %q, want %q", in, got, want)
		}
	}
}
