// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf16"
)

// Magic is the first four bytes of every class file.
const Magic = 0xCAFEBABE

// ErrMalformedClass is returned (wrapped) for any structural error in a class file.
var ErrMalformedClass = errors.New("malformed class file")

// Read reads and parses a whole class file from r.
func Read(r io.Reader) (*File, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse parses the bytes of a class file.
func Parse(data []byte) (*File, error) {
	p := &parser{data: data}
	f := p.parseFile()
	if p.err != nil {
		return nil, p.err
	}
	return f, nil
}

// parser is a cursor over the class file bytes. The first error sticks and every read after it returns zero values.
type parser struct {
	data []byte
	pos  int
	err  error
	cp   ConstantPool
}

func (p *parser) fail(format string, args ...any) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s (offset %d)", ErrMalformedClass, fmt.Sprintf(format, args...), p.pos)
	}
}

func (p *parser) bytes(n int) []byte {
	if p.err != nil {
		return nil
	}
	if n < 0 || p.pos+n > len(p.data) {
		p.fail("unexpected end of data reading %d bytes", n)
		return nil
	}
	b := p.data[p.pos : p.pos+n]
	p.pos += n
	return b
}

func (p *parser) u1() uint8 {
	b := p.bytes(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (p *parser) u2() uint16 {
	b := p.bytes(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (p *parser) u4() uint32 {
	b := p.bytes(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (p *parser) u8() uint64 {
	b := p.bytes(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (p *parser) parseFile() *File {
	if magic := p.u4(); magic != Magic {
		p.fail("bad magic %#x", magic)
		return nil
	}
	f := &File{}
	f.MinorVersion = p.u2()
	f.MajorVersion = p.u2()
	f.ConstantPool = p.parseConstantPool()
	if p.err != nil {
		return nil
	}
	p.cp = f.ConstantPool
	f.AccessFlags = p.u2()
	f.ThisClass = p.className(p.u2())
	if super := p.u2(); super != 0 {
		f.SuperClass = p.className(super)
	}
	n := int(p.u2())
	for i := 0; i < n && p.err == nil; i++ {
		f.Interfaces = append(f.Interfaces, p.className(p.u2()))
	}
	n = int(p.u2())
	for i := 0; i < n && p.err == nil; i++ {
		f.Fields = append(f.Fields, p.parseField(f.ConstantPool))
	}
	n = int(p.u2())
	for i := 0; i < n && p.err == nil; i++ {
		f.Methods = append(f.Methods, p.parseMethod(f.ConstantPool))
	}
	// class attributes are not used
	p.skipAttributes()
	return f
}

func (p *parser) parseConstantPool() ConstantPool {
	count := int(p.u2())
	if count == 0 {
		p.fail("empty constant pool")
		return nil
	}
	cp := make(ConstantPool, count)
	for i := 1; i < count && p.err == nil; i++ {
		tag := p.u1()
		switch tag {
		case TagUtf8:
			l := int(p.u2())
			cp[i] = ConstantUtf8{Value: decodeModifiedUtf8(p.bytes(l))}
		case TagInteger:
			cp[i] = ConstantInteger{Value: int32(p.u4())}
		case TagFloat:
			cp[i] = ConstantFloat{Bits: p.u4()}
		case TagLong:
			cp[i] = ConstantLong{Value: int64(p.u8())}
			i++
		case TagDouble:
			cp[i] = ConstantDouble{Bits: p.u8()}
			i++
		case TagClass:
			cp[i] = ConstantClass{NameIndex: p.u2()}
		case TagString:
			cp[i] = ConstantString{StringIndex: p.u2()}
		case TagFieldref, TagMethodref, TagInterfaceMethodref:
			cp[i] = ConstantMemberRef{tag: tag, ClassIndex: p.u2(), NameAndTypeIndex: p.u2()}
		case TagNameAndType:
			cp[i] = ConstantNameAndType{NameIndex: p.u2(), DescriptorIndex: p.u2()}
		case TagMethodHandle:
			cp[i] = ConstantMethodHandle{ReferenceKind: p.u1(), ReferenceIndex: p.u2()}
		case TagMethodType:
			cp[i] = ConstantMethodType{DescriptorIndex: p.u2()}
		case TagDynamic, TagInvokeDynamic:
			cp[i] = ConstantDynamic{tag: tag, BootstrapMethodAttrIndex: p.u2(), NameAndTypeIndex: p.u2()}
		case TagModule, TagPackage:
			cp[i] = ConstantNamed{tag: tag, NameIndex: p.u2()}
		default:
			p.fail("unknown constant pool tag %d at index %d", tag, i)
		}
	}
	return cp
}

func (p *parser) className(index uint16) string {
	if p.err != nil {
		return ""
	}
	name, err := p.cp.ClassName(int(index))
	if err != nil {
		p.err = err
	}
	return name
}

func (p *parser) utf8(cp ConstantPool, index uint16) string {
	if p.err != nil {
		return ""
	}
	s, err := cp.Utf8(int(index))
	if err != nil {
		p.err = err
	}
	return s
}

func (p *parser) parseField(cp ConstantPool) Field {
	fd := Field{}
	fd.AccessFlags = p.u2()
	fd.Name = p.utf8(cp, p.u2())
	fd.Descriptor = p.utf8(cp, p.u2())
	p.skipAttributes()
	return fd
}

func (p *parser) parseMethod(cp ConstantPool) Method {
	m := Method{}
	m.AccessFlags = p.u2()
	m.Name = p.utf8(cp, p.u2())
	m.Descriptor = p.utf8(cp, p.u2())
	n := int(p.u2())
	for i := 0; i < n && p.err == nil; i++ {
		name := p.utf8(cp, p.u2())
		length := int(p.u4())
		body := p.bytes(length)
		if p.err != nil {
			break
		}
		if name == "Code" {
			m.Code = p.parseCode(cp, body)
		}
	}
	return m
}

func (p *parser) parseCode(cp ConstantPool, body []byte) *Code {
	sub := &parser{data: body, cp: cp}
	c := &Code{}
	c.MaxStack = sub.u2()
	c.MaxLocals = sub.u2()
	c.Bytecode = sub.bytes(int(sub.u4()))
	n := int(sub.u2())
	for i := 0; i < n && sub.err == nil; i++ {
		h := ExceptionHandler{
			StartPC:   int(sub.u2()),
			EndPC:     int(sub.u2()),
			HandlerPC: int(sub.u2()),
		}
		if catchType := sub.u2(); catchType != 0 {
			h.CatchType = sub.className(catchType)
		}
		c.ExceptionTable = append(c.ExceptionTable, h)
	}
	// nested attributes (line numbers, stack map frames) are not used
	sub.skipAttributes()
	if sub.err != nil && p.err == nil {
		p.err = sub.err
	}
	return c
}

func (p *parser) skipAttributes() {
	n := int(p.u2())
	for i := 0; i < n && p.err == nil; i++ {
		p.u2()
		p.bytes(int(p.u4()))
	}
}

// decodeModifiedUtf8 decodes the modified UTF-8 encoding of class files. Supplementary characters are encoded as
// surrogate pairs, which are recombined here.
func decodeModifiedUtf8(b []byte) string {
	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c&0x80 == 0:
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0 && i+1 < len(b):
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0 && i+2 < len(b):
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			units = append(units, 0xFFFD)
			i++
		}
	}
	return string(utf16.Decode(units))
}
