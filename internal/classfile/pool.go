package classfile

import (
	"fmt"
	"math"
	"strconv"
)

type constTag uint8

const (
	tagUtf8               constTag = 1
	tagInteger            constTag = 3
	tagFloat              constTag = 4
	tagLong               constTag = 5
	tagDouble             constTag = 6
	tagClass              constTag = 7
	tagString             constTag = 8
	tagFieldref           constTag = 9
	tagMethodref          constTag = 10
	tagInterfaceMethodref constTag = 11
	tagNameAndType        constTag = 12
	tagMethodHandle       constTag = 15
	tagMethodType         constTag = 16
	tagDynamic            constTag = 17
	tagInvokeDynamic      constTag = 18
	tagModule             constTag = 19
	tagPackage            constTag = 20
)

// constant keeps the payload of the entries annotations and declarations
// refer to; other kinds are only sized.
type constant struct {
	tag  constTag
	text string // Utf8
	ref  uint16 // Class, String
	bits uint64 // Integer, Float, Long, Double
}

// pool is the constant pool; index 0 and the slot after a Long or Double
// hold zero entries.
type pool []constant

func readPool(r *reader) pool {
	count := int(r.u2())
	if r.err != nil {
		return nil
	}
	if count == 0 {
		r.fail("constant pool count is zero")
		return nil
	}
	p := make(pool, count)
	for i := 1; i < count; i++ {
		tag := constTag(r.u1())
		c := constant{tag: tag}
		switch tag {
		case tagUtf8:
			n := int(r.u2())
			raw := r.bytes(n)
			if r.err != nil {
				return nil
			}
			s, err := decodeModifiedUTF8(raw)
			if err != nil {
				r.fail("constant %d: %v", i, err)
				return nil
			}
			c.text = s
		case tagInteger, tagFloat:
			c.bits = uint64(r.u4())
		case tagLong, tagDouble:
			c.bits = uint64(r.u4())<<32 | uint64(r.u4())
		case tagClass, tagString, tagMethodType, tagModule, tagPackage:
			c.ref = r.u2()
		case tagFieldref, tagMethodref, tagInterfaceMethodref, tagNameAndType, tagDynamic, tagInvokeDynamic:
			r.skip(4)
		case tagMethodHandle:
			r.skip(3)
		default:
			r.fail("constant %d: unknown tag %d", i, tag)
			return nil
		}
		p[i] = c
		if tag == tagLong || tag == tagDouble {
			i++
		}
	}
	return p
}

func (p pool) get(i uint16, want ...constTag) (constant, error) {
	if i == 0 || int(i) >= len(p) || p[i].tag == 0 {
		return constant{}, fmt.Errorf("constant index %d out of range", i)
	}
	c := p[i]
	for _, t := range want {
		if c.tag == t {
			return c, nil
		}
	}
	return constant{}, fmt.Errorf("constant %d has tag %d", i, c.tag)
}

func (p pool) utf8(i uint16) (string, error) {
	c, err := p.get(i, tagUtf8)
	return c.text, err
}

func (p pool) className(i uint16) (string, error) {
	c, err := p.get(i, tagClass)
	if err != nil {
		return "", err
	}
	return p.utf8(c.ref)
}

// literal renders a numeric or string constant for an element value of
// kind tag.
func (p pool) literal(i uint16, tag byte) (string, error) {
	switch tag {
	case 's':
		return p.utf8(i)
	case 'J':
		c, err := p.get(i, tagLong)
		return strconv.FormatInt(int64(c.bits), 10), err //nolint:gosec // two's complement reinterpretation
	case 'D':
		c, err := p.get(i, tagDouble)
		return strconv.FormatFloat(math.Float64frombits(c.bits), 'g', -1, 64), err
	case 'F':
		c, err := p.get(i, tagFloat)
		return strconv.FormatFloat(float64(math.Float32frombits(uint32(c.bits))), 'g', -1, 32), err //nolint:gosec // low 32 bits hold the value
	case 'Z':
		c, err := p.get(i, tagInteger)
		return strconv.FormatBool(c.bits != 0), err
	case 'C':
		c, err := p.get(i, tagInteger)
		return string(rune(int32(uint32(c.bits)))), err //nolint:gosec // char constants fit in 16 bits
	default: // B I S
		c, err := p.get(i, tagInteger)
		return strconv.FormatInt(int64(int32(uint32(c.bits))), 10), err //nolint:gosec // sign extension of the stored int
	}
}
