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

// Package analysistest contains utilities to build the class files used in tests. Classes are assembled in memory
// from a small builder API instead of being compiled from Java sources, so tests do not need a JDK.
package analysistest

import (
	"encoding/binary"
	"fmt"
	"math"

	cf "github.com/awslabs/ar-jvm-gadgets/analysis/classfile"
	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
)

// Access flags used by the builders.
const (
	Public    uint16 = 0x0001
	Private   uint16 = 0x0002
	Protected uint16 = 0x0004
	Static    uint16 = 0x0008
	Final     uint16 = 0x0010
	Transient uint16 = 0x0080
	Interface uint16 = 0x0200
	Abstract  uint16 = 0x0400
)

// ClassBuilder assembles a class file.
type ClassBuilder struct {
	name       string
	super      string
	interfaces []string
	access     uint16
	pool       *poolBuilder
	fields     []fieldDef
	methods    []*MethodBuilder
}

type fieldDef struct {
	access     uint16
	name, desc string
}

// NewClass returns a builder for a public class extending java/lang/Object.
func NewClass(name string) *ClassBuilder {
	return &ClassBuilder{
		name:   name,
		super:  "java/lang/Object",
		access: Public,
		pool:   newPoolBuilder(),
	}
}

// Name returns the internal name of the class being built.
func (c *ClassBuilder) Name() string { return c.name }

// Extends sets the superclass. An empty name produces a class without superclass.
func (c *ClassBuilder) Extends(super string) *ClassBuilder {
	c.super = super
	return c
}

// Implements adds interfaces to the class.
func (c *ClassBuilder) Implements(interfaces ...string) *ClassBuilder {
	c.interfaces = append(c.interfaces, interfaces...)
	return c
}

// AsInterface marks the class as an interface.
func (c *ClassBuilder) AsInterface() *ClassBuilder {
	c.access |= Interface | Abstract
	return c
}

// Field declares a field.
func (c *ClassBuilder) Field(access uint16, name string, desc string) *ClassBuilder {
	c.fields = append(c.fields, fieldDef{access, name, desc})
	return c
}

// Method starts a method. The method is added to the class when it is created, and its code is assembled when the
// class bytes are produced.
func (c *ClassBuilder) Method(access uint16, name string, desc string) *MethodBuilder {
	m := &MethodBuilder{
		class:  c,
		access: access,
		name:   name,
		desc:   desc,
		labels: map[string]int{},
	}
	c.methods = append(c.methods, m)
	return m
}

// AbstractMethod declares a method without code.
func (c *ClassBuilder) AbstractMethod(name string, desc string) *ClassBuilder {
	m := c.Method(Public|Abstract, name, desc)
	m.abstract = true
	return c
}

// DefaultConstructor adds a public no-argument constructor calling the superclass constructor.
func (c *ClassBuilder) DefaultConstructor() *ClassBuilder {
	m := c.Method(Public, "<init>", "()V").Var(cf.Aload, 0)
	if c.super != "" {
		m.Invoke(cf.Invokespecial, c.super, "<init>", "()V")
	}
	m.Op(cf.Return)
	return c
}

// Bytes assembles the class file. It panics on unresolved labels, which are programming errors in tests.
func (c *ClassBuilder) Bytes() []byte {
	thisIndex := c.pool.class(c.name)
	superIndex := uint16(0)
	if c.super != "" {
		superIndex = c.pool.class(c.super)
	}
	ifaceIndexes := make([]uint16, len(c.interfaces))
	for i, iface := range c.interfaces {
		ifaceIndexes[i] = c.pool.class(iface)
	}
	var fields, methods []byte
	for _, f := range c.fields {
		fields = u2(fields, f.access)
		fields = u2(fields, c.pool.utf8(f.name))
		fields = u2(fields, c.pool.utf8(f.desc))
		fields = u2(fields, 0)
	}
	for _, m := range c.methods {
		methods = append(methods, m.assemble()...)
	}

	var out []byte
	out = binary.BigEndian.AppendUint32(out, cf.Magic)
	out = u2(out, 0)
	out = u2(out, 52)
	out = append(out, c.pool.bytes()...)
	out = u2(out, c.access)
	out = u2(out, thisIndex)
	out = u2(out, superIndex)
	out = u2(out, uint16(len(ifaceIndexes)))
	for _, i := range ifaceIndexes {
		out = u2(out, i)
	}
	out = u2(out, uint16(len(c.fields)))
	out = append(out, fields...)
	out = u2(out, uint16(len(c.methods)))
	out = append(out, methods...)
	out = u2(out, 0)
	return out
}

// MethodBuilder assembles the code of a method.
type MethodBuilder struct {
	class    *ClassBuilder
	access   uint16
	name     string
	desc     string
	abstract bool
	code     []byte
	labels   map[string]int
	fixups   []fixup
	handlers []handlerDef
}

type fixup struct {
	// at is where the offset is written, from is the offset of the branching instruction
	at, from int
	label    string
	wide     bool
}

type handlerDef struct {
	start, end, handler string
	catchType           string
}

// End returns the class builder, to continue building the class.
func (m *MethodBuilder) End() *ClassBuilder { return m.class }

// Op emits an instruction without operands.
func (m *MethodBuilder) Op(ops ...cf.Opcode) *MethodBuilder {
	for _, op := range ops {
		m.code = append(m.code, byte(op))
	}
	return m
}

// Var emits a load, store or ret instruction on a local variable, using the wide form when needed.
func (m *MethodBuilder) Var(op cf.Opcode, index int) *MethodBuilder {
	if index > math.MaxUint8 {
		m.code = append(m.code, byte(cf.Wide), byte(op))
		m.code = u2(m.code, uint16(index))
		return m
	}
	m.code = append(m.code, byte(op), byte(index))
	return m
}

// Iinc emits an iinc instruction.
func (m *MethodBuilder) Iinc(index int, increment int) *MethodBuilder {
	m.code = append(m.code, byte(cf.Iinc), byte(index), byte(int8(increment)))
	return m
}

// Push emits bipush or sipush depending on the value.
func (m *MethodBuilder) Push(value int) *MethodBuilder {
	if value >= math.MinInt8 && value <= math.MaxInt8 {
		m.code = append(m.code, byte(cf.Bipush), byte(int8(value)))
		return m
	}
	m.code = append(m.code, byte(cf.Sipush))
	m.code = u2(m.code, uint16(int16(value)))
	return m
}

// Newarray emits a newarray instruction for a primitive array type code.
func (m *MethodBuilder) Newarray(atype int) *MethodBuilder {
	m.code = append(m.code, byte(cf.Newarray), byte(atype))
	return m
}

// LdcString emits an ldc of a string constant.
func (m *MethodBuilder) LdcString(s string) *MethodBuilder {
	return m.ldc(m.class.pool.str(s))
}

// LdcInt emits an ldc of an int constant.
func (m *MethodBuilder) LdcInt(v int32) *MethodBuilder {
	return m.ldc(m.class.pool.integer(v))
}

// LdcLong emits an ldc2_w of a long constant.
func (m *MethodBuilder) LdcLong(v int64) *MethodBuilder {
	m.code = append(m.code, byte(cf.Ldc2W))
	m.code = u2(m.code, m.class.pool.long(v))
	return m
}

func (m *MethodBuilder) ldc(index uint16) *MethodBuilder {
	if index > math.MaxUint8 {
		m.code = append(m.code, byte(cf.LdcW))
		m.code = u2(m.code, index)
		return m
	}
	m.code = append(m.code, byte(cf.Ldc), byte(index))
	return m
}

// FieldInsn emits getfield, putfield, getstatic or putstatic.
func (m *MethodBuilder) FieldInsn(op cf.Opcode, owner string, name string, desc string) *MethodBuilder {
	m.code = append(m.code, byte(op))
	m.code = u2(m.code, m.class.pool.memberRef(cf.TagFieldref, owner, name, desc))
	return m
}

// Invoke emits a method invocation. Invokeinterface uses an interface method reference.
func (m *MethodBuilder) Invoke(op cf.Opcode, owner string, name string, desc string) *MethodBuilder {
	tag := cf.TagMethodref
	if op == cf.Invokeinterface {
		tag = cf.TagInterfaceMethodref
	}
	m.code = append(m.code, byte(op))
	m.code = u2(m.code, m.class.pool.memberRef(tag, owner, name, desc))
	if op == cf.Invokeinterface {
		count := 1
		if md, err := lang.ParseMethodDescriptor(desc); err == nil {
			count += md.ArgsSize()
		}
		m.code = append(m.code, byte(count), 0)
	}
	return m
}

// Invokedynamic emits an invokedynamic with the given call site descriptor.
func (m *MethodBuilder) Invokedynamic(name string, desc string) *MethodBuilder {
	m.code = append(m.code, byte(cf.Invokedynamic))
	m.code = u2(m.code, m.class.pool.invokeDynamic(name, desc))
	m.code = append(m.code, 0, 0)
	return m
}

// TypeInsn emits new, anewarray, checkcast or instanceof.
func (m *MethodBuilder) TypeInsn(op cf.Opcode, class string) *MethodBuilder {
	m.code = append(m.code, byte(op))
	m.code = u2(m.code, m.class.pool.class(class))
	return m
}

// Multianewarray emits a multianewarray instruction.
func (m *MethodBuilder) Multianewarray(desc string, dims int) *MethodBuilder {
	m.code = append(m.code, byte(cf.Multianewarray))
	m.code = u2(m.code, m.class.pool.class(desc))
	m.code = append(m.code, byte(dims))
	return m
}

// Label marks the current position with a name.
func (m *MethodBuilder) Label(name string) *MethodBuilder {
	m.labels[name] = len(m.code)
	return m
}

// Jump emits a branch instruction to a label.
func (m *MethodBuilder) Jump(op cf.Opcode, label string) *MethodBuilder {
	from := len(m.code)
	m.code = append(m.code, byte(op))
	if op == cf.GotoW || op == cf.JsrW {
		m.fixups = append(m.fixups, fixup{at: len(m.code), from: from, label: label, wide: true})
		m.code = append(m.code, 0, 0, 0, 0)
		return m
	}
	m.fixups = append(m.fixups, fixup{at: len(m.code), from: from, label: label})
	m.code = append(m.code, 0, 0)
	return m
}

// TableSwitch emits a tableswitch with cases low, low+1, ... jumping to the labels.
func (m *MethodBuilder) TableSwitch(low int, dflt string, labels ...string) *MethodBuilder {
	from := len(m.code)
	m.code = append(m.code, byte(cf.Tableswitch))
	for len(m.code)%4 != 0 {
		m.code = append(m.code, 0)
	}
	m.switchTarget(from, dflt)
	m.code = binary.BigEndian.AppendUint32(m.code, uint32(int32(low)))
	m.code = binary.BigEndian.AppendUint32(m.code, uint32(int32(low+len(labels)-1)))
	for _, l := range labels {
		m.switchTarget(from, l)
	}
	return m
}

// LookupSwitch emits a lookupswitch matching keys[i] to labels[i].
func (m *MethodBuilder) LookupSwitch(dflt string, keys []int, labels []string) *MethodBuilder {
	from := len(m.code)
	m.code = append(m.code, byte(cf.Lookupswitch))
	for len(m.code)%4 != 0 {
		m.code = append(m.code, 0)
	}
	m.switchTarget(from, dflt)
	m.code = binary.BigEndian.AppendUint32(m.code, uint32(len(keys)))
	for i, k := range keys {
		m.code = binary.BigEndian.AppendUint32(m.code, uint32(int32(k)))
		m.switchTarget(from, labels[i])
	}
	return m
}

func (m *MethodBuilder) switchTarget(from int, label string) {
	m.fixups = append(m.fixups, fixup{at: len(m.code), from: from, label: label, wide: true})
	m.code = append(m.code, 0, 0, 0, 0)
}

// Try registers an exception handler for the code between labels start and end. An empty catchType catches
// everything.
func (m *MethodBuilder) Try(start string, end string, handler string, catchType string) *MethodBuilder {
	m.handlers = append(m.handlers, handlerDef{start, end, handler, catchType})
	return m
}

func (m *MethodBuilder) label(name string) int {
	pos, ok := m.labels[name]
	if !ok {
		panic(fmt.Sprintf("undefined label %q in %s.%s%s", name, m.class.name, m.name, m.desc))
	}
	return pos
}

func (m *MethodBuilder) assemble() []byte {
	pool := m.class.pool
	var out []byte
	out = u2(out, m.access)
	out = u2(out, pool.utf8(m.name))
	out = u2(out, pool.utf8(m.desc))
	if m.abstract {
		return u2(out, 0)
	}
	for _, f := range m.fixups {
		rel := m.label(f.label) - f.from
		if f.wide {
			binary.BigEndian.PutUint32(m.code[f.at:], uint32(int32(rel)))
		} else {
			binary.BigEndian.PutUint16(m.code[f.at:], uint16(int16(rel)))
		}
	}
	var attr []byte
	attr = u2(attr, 64)
	attr = u2(attr, 64)
	attr = binary.BigEndian.AppendUint32(attr, uint32(len(m.code)))
	attr = append(attr, m.code...)
	attr = u2(attr, uint16(len(m.handlers)))
	for _, h := range m.handlers {
		attr = u2(attr, uint16(m.label(h.start)))
		attr = u2(attr, uint16(m.label(h.end)))
		attr = u2(attr, uint16(m.label(h.handler)))
		if h.catchType == "" {
			attr = u2(attr, 0)
		} else {
			attr = u2(attr, pool.class(h.catchType))
		}
	}
	attr = u2(attr, 0)

	out = u2(out, 1)
	out = u2(out, pool.utf8("Code"))
	out = binary.BigEndian.AppendUint32(out, uint32(len(attr)))
	return append(out, attr...)
}

func u2(b []byte, v uint16) []byte {
	return binary.BigEndian.AppendUint16(b, v)
}
