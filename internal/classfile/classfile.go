// Package classfile reads the declarations and type annotations of JVM class
// files so compiled libraries can serve as annotated stubs.
package classfile

import (
	"fmt"
	"os"
)

const magic = 0xCAFEBABE

// Access flags used by the stub loader.
const (
	AccStatic    uint16 = 0x0008
	AccBridge    uint16 = 0x0040
	AccInterface uint16 = 0x0200
	AccSynthetic uint16 = 0x1000
)

// Class is the part of a class file that describes its type signature.
type Class struct {
	Major, Minor uint16
	Access       uint16
	// Name, Super and Interfaces are binary names such as java/util/List.
	Name       string
	Super      string
	Interfaces []string
	// Signature is the generic class signature, empty when absent.
	Signature   string
	Fields      []Member
	Methods     []Member
	Annotations []TypeAnnotation

	pool pool
}

// Member is a field or method.
type Member struct {
	Access     uint16
	Name       string
	Descriptor string
	Signature  string
	// ParamNames comes from the MethodParameters attribute.
	ParamNames  []string
	Annotations []TypeAnnotation
}

func (m *Member) Is(flag uint16) bool { return m.Access&flag != 0 }

// IsInterface reports whether c declares an interface.
func (c *Class) IsInterface() bool { return c.Access&AccInterface != 0 }

// ParseFile reads and parses the class file at path.
func ParseFile(path string) (*Class, error) {
	// #nosec G304 -- path is provided by the caller
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a class file. Method code is skipped.
func Parse(data []byte) (*Class, error) {
	r := &reader{data: data}
	if m := r.u4(); r.err == nil && m != magic {
		r.off = 0
		r.fail("bad magic 0x%08X", m)
	}
	c := &Class{Minor: r.u2(), Major: r.u2()}
	c.pool = readPool(r)
	c.Access = r.u2()
	c.Name = c.classRef(r, r.u2())
	if super := r.u2(); super != 0 {
		c.Super = c.classRef(r, super)
	}
	n := int(r.u2())
	for range n {
		c.Interfaces = append(c.Interfaces, c.classRef(r, r.u2()))
	}
	c.Fields = c.readMembers(r, "field")
	c.Methods = c.readMembers(r, "method")
	var m Member
	c.readAttributes(r, &m, "class")
	c.Signature, c.Annotations = m.Signature, m.Annotations
	if r.err == nil && r.off != len(data) {
		r.fail("%d trailing bytes", len(data)-r.off)
	}
	if r.err != nil {
		return nil, r.err
	}
	return c, nil
}

func (c *Class) classRef(r *reader, i uint16) string {
	if r.err != nil {
		return ""
	}
	name, err := c.pool.className(i)
	if err != nil {
		r.fail("%v", err)
	}
	return name
}

func (c *Class) utf8(r *reader, i uint16) string {
	if r.err != nil {
		return ""
	}
	s, err := c.pool.utf8(i)
	if err != nil {
		r.fail("%v", err)
	}
	return s
}

func (c *Class) readMembers(r *reader, kind string) []Member {
	n := int(r.u2())
	out := make([]Member, 0, n)
	for range n {
		if r.err != nil {
			break
		}
		m := Member{Access: r.u2()}
		m.Name = c.utf8(r, r.u2())
		m.Descriptor = c.utf8(r, r.u2())
		c.readAttributes(r, &m, kind+" "+m.Name)
		out = append(out, m)
	}
	return out
}

func (c *Class) readAttributes(r *reader, m *Member, owner string) {
	n := int(r.u2())
	for range n {
		if r.err != nil {
			return
		}
		name := c.utf8(r, r.u2())
		length := int(r.u4())
		body := r.sub(length)
		switch name {
		case "Signature":
			m.Signature = c.utf8(body, body.u2())
		case "RuntimeVisibleTypeAnnotations", "RuntimeInvisibleTypeAnnotations":
			m.Annotations = append(m.Annotations, readTypeAnnotations(body, c.pool, name == "RuntimeVisibleTypeAnnotations")...)
		case "MethodParameters":
			count := int(body.u1())
			for range count {
				pn := body.u2()
				body.u2() // access flags
				if pn == 0 {
					m.ParamNames = append(m.ParamNames, "")
					continue
				}
				m.ParamNames = append(m.ParamNames, c.utf8(body, pn))
			}
		default:
			continue
		}
		if body.err == nil && body.off != len(body.data) {
			body.fail("%d trailing bytes", len(body.data)-body.off)
		}
		if body.err != nil {
			r.err = fmt.Errorf("%s attribute %s: %w", owner, name, body.err)
		}
	}
}
