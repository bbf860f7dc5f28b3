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

package analysistest

import (
	"encoding/binary"
	"fmt"

	cf "github.com/awslabs/ar-jvm-gadgets/analysis/classfile"
)

// poolBuilder builds a constant pool, reusing entries with the same content.
type poolBuilder struct {
	data  []byte
	next  uint16
	index map[string]uint16
}

func newPoolBuilder() *poolBuilder {
	return &poolBuilder{next: 1, index: map[string]uint16{}}
}

func (p *poolBuilder) add(key string, slots uint16, entry []byte) uint16 {
	if i, ok := p.index[key]; ok {
		return i
	}
	i := p.next
	p.index[key] = i
	p.next += slots
	p.data = append(p.data, entry...)
	return i
}

func (p *poolBuilder) utf8(s string) uint16 {
	entry := []byte{cf.TagUtf8}
	entry = binary.BigEndian.AppendUint16(entry, uint16(len(s)))
	entry = append(entry, s...)
	return p.add("utf8:"+s, 1, entry)
}

func (p *poolBuilder) ref(tag uint8, a uint16, b uint16) []byte {
	entry := []byte{tag}
	entry = binary.BigEndian.AppendUint16(entry, a)
	return binary.BigEndian.AppendUint16(entry, b)
}

func (p *poolBuilder) class(name string) uint16 {
	n := p.utf8(name)
	entry := binary.BigEndian.AppendUint16([]byte{cf.TagClass}, n)
	return p.add("class:"+name, 1, entry)
}

func (p *poolBuilder) str(s string) uint16 {
	n := p.utf8(s)
	entry := binary.BigEndian.AppendUint16([]byte{cf.TagString}, n)
	return p.add("string:"+s, 1, entry)
}

func (p *poolBuilder) integer(v int32) uint16 {
	entry := binary.BigEndian.AppendUint32([]byte{cf.TagInteger}, uint32(v))
	return p.add(fmt.Sprintf("int:%d", v), 1, entry)
}

func (p *poolBuilder) long(v int64) uint16 {
	entry := binary.BigEndian.AppendUint64([]byte{cf.TagLong}, uint64(v))
	return p.add(fmt.Sprintf("long:%d", v), 2, entry)
}

func (p *poolBuilder) nameAndType(name string, desc string) uint16 {
	n := p.utf8(name)
	d := p.utf8(desc)
	return p.add("nat:"+name+":"+desc, 1, p.ref(cf.TagNameAndType, n, d))
}

func (p *poolBuilder) memberRef(tag uint8, owner string, name string, desc string) uint16 {
	c := p.class(owner)
	nt := p.nameAndType(name, desc)
	return p.add(fmt.Sprintf("ref%d:%s.%s%s", tag, owner, name, desc), 1, p.ref(tag, c, nt))
}

func (p *poolBuilder) invokeDynamic(name string, desc string) uint16 {
	nt := p.nameAndType(name, desc)
	return p.add("indy:"+name+desc, 1, p.ref(cf.TagInvokeDynamic, 0, nt))
}

func (p *poolBuilder) bytes() []byte {
	out := binary.BigEndian.AppendUint16(nil, p.next)
	return append(out, p.data...)
}
