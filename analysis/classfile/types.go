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
	"fmt"
)

// Constant pool tags.
const (
	TagUtf8               uint8 = 1
	TagInteger            uint8 = 3
	TagFloat              uint8 = 4
	TagLong               uint8 = 5
	TagDouble             uint8 = 6
	TagClass              uint8 = 7
	TagString             uint8 = 8
	TagFieldref           uint8 = 9
	TagMethodref          uint8 = 10
	TagInterfaceMethodref uint8 = 11
	TagNameAndType        uint8 = 12
	TagMethodHandle       uint8 = 15
	TagMethodType         uint8 = 16
	TagDynamic            uint8 = 17
	TagInvokeDynamic      uint8 = 18
	TagModule             uint8 = 19
	TagPackage            uint8 = 20
)

// File is a parsed class file. Only the parts used by the analyses are kept.
type File struct {
	MinorVersion uint16
	MajorVersion uint16
	ConstantPool ConstantPool
	AccessFlags  uint16
	ThisClass    string
	// SuperClass is empty for java/lang/Object and module-info
	SuperClass string
	Interfaces []string
	Fields     []Field
	Methods    []Method
}

// Field is a field_info structure.
type Field struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
}

// Method is a method_info structure. Code is nil for abstract and native methods.
type Method struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	Code        *Code
}

// IsStatic returns true if the method has the static access flag.
func (m Method) IsStatic() bool {
	return m.AccessFlags&0x0008 != 0
}

func (m Method) String() string {
	return m.Name + m.Descriptor
}

// Code is the Code attribute of a method.
type Code struct {
	MaxStack       uint16
	MaxLocals      uint16
	Bytecode       []byte
	ExceptionTable []ExceptionHandler
}

// ExceptionHandler is an entry of the exception table of a Code attribute. Offsets are bytecode offsets, the range
// [StartPC, EndPC) is protected. CatchType is empty for handlers catching everything.
type ExceptionHandler struct {
	StartPC   int
	EndPC     int
	HandlerPC int
	CatchType string
}

// ConstantPoolEntry is an entry of the constant pool.
type ConstantPoolEntry interface {
	Tag() uint8
}

// ConstantUtf8 is a CONSTANT_Utf8 entry.
type ConstantUtf8 struct{ Value string }

// ConstantInteger is a CONSTANT_Integer entry.
type ConstantInteger struct{ Value int32 }

// ConstantFloat is a CONSTANT_Float entry.
type ConstantFloat struct{ Bits uint32 }

// ConstantLong is a CONSTANT_Long entry. It takes two pool slots.
type ConstantLong struct{ Value int64 }

// ConstantDouble is a CONSTANT_Double entry. It takes two pool slots.
type ConstantDouble struct{ Bits uint64 }

// ConstantClass is a CONSTANT_Class entry.
type ConstantClass struct{ NameIndex uint16 }

// ConstantString is a CONSTANT_String entry.
type ConstantString struct{ StringIndex uint16 }

// ConstantMemberRef is a CONSTANT_Fieldref, CONSTANT_Methodref or CONSTANT_InterfaceMethodref entry.
type ConstantMemberRef struct {
	tag              uint8
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

// ConstantNameAndType is a CONSTANT_NameAndType entry.
type ConstantNameAndType struct {
	NameIndex       uint16
	DescriptorIndex uint16
}

// ConstantMethodHandle is a CONSTANT_MethodHandle entry.
type ConstantMethodHandle struct {
	ReferenceKind  uint8
	ReferenceIndex uint16
}

// ConstantMethodType is a CONSTANT_MethodType entry.
type ConstantMethodType struct{ DescriptorIndex uint16 }

// ConstantDynamic is a CONSTANT_Dynamic or CONSTANT_InvokeDynamic entry.
type ConstantDynamic struct {
	tag                      uint8
	BootstrapMethodAttrIndex uint16
	NameAndTypeIndex         uint16
}

// ConstantNamed is a CONSTANT_Module or CONSTANT_Package entry.
type ConstantNamed struct {
	tag       uint8
	NameIndex uint16
}

func (ConstantUtf8) Tag() uint8          { return TagUtf8 }
func (ConstantInteger) Tag() uint8       { return TagInteger }
func (ConstantFloat) Tag() uint8         { return TagFloat }
func (ConstantLong) Tag() uint8          { return TagLong }
func (ConstantDouble) Tag() uint8        { return TagDouble }
func (ConstantClass) Tag() uint8         { return TagClass }
func (ConstantString) Tag() uint8        { return TagString }
func (c ConstantMemberRef) Tag() uint8   { return c.tag }
func (ConstantNameAndType) Tag() uint8   { return TagNameAndType }
func (ConstantMethodHandle) Tag() uint8  { return TagMethodHandle }
func (ConstantMethodType) Tag() uint8    { return TagMethodType }
func (c ConstantDynamic) Tag() uint8     { return c.tag }
func (c ConstantNamed) Tag() uint8       { return c.tag }

// ConstantPool is the constant pool of a class. Index 0 and the slot following a long or double are nil.
type ConstantPool []ConstantPoolEntry

func (cp ConstantPool) entry(index int) (ConstantPoolEntry, error) {
	if index <= 0 || index >= len(cp) || cp[index] == nil {
		return nil, fmt.Errorf("%w: constant pool index %d out of range", ErrMalformedClass, index)
	}
	return cp[index], nil
}

// Utf8 returns the string of the CONSTANT_Utf8 entry at index.
func (cp ConstantPool) Utf8(index int) (string, error) {
	e, err := cp.entry(index)
	if err != nil {
		return "", err
	}
	u, ok := e.(ConstantUtf8)
	if !ok {
		return "", fmt.Errorf("%w: constant %d is not a Utf8 (tag %d)", ErrMalformedClass, index, e.Tag())
	}
	return u.Value, nil
}

// ClassName returns the internal name referenced by the CONSTANT_Class entry at index.
func (cp ConstantPool) ClassName(index int) (string, error) {
	e, err := cp.entry(index)
	if err != nil {
		return "", err
	}
	c, ok := e.(ConstantClass)
	if !ok {
		return "", fmt.Errorf("%w: constant %d is not a Class (tag %d)", ErrMalformedClass, index, e.Tag())
	}
	return cp.Utf8(int(c.NameIndex))
}

// NameAndType returns the name and descriptor of the CONSTANT_NameAndType entry at index.
func (cp ConstantPool) NameAndType(index int) (string, string, error) {
	e, err := cp.entry(index)
	if err != nil {
		return "", "", err
	}
	nt, ok := e.(ConstantNameAndType)
	if !ok {
		return "", "", fmt.Errorf("%w: constant %d is not a NameAndType (tag %d)", ErrMalformedClass, index, e.Tag())
	}
	name, err := cp.Utf8(int(nt.NameIndex))
	if err != nil {
		return "", "", err
	}
	desc, err := cp.Utf8(int(nt.DescriptorIndex))
	if err != nil {
		return "", "", err
	}
	return name, desc, nil
}

// MemberRef is a resolved field or method reference.
type MemberRef struct {
	Owner       string
	Name        string
	Descriptor  string
	IsInterface bool
}

// MemberRef resolves the field, method or interface method reference at index.
func (cp ConstantPool) MemberRef(index int) (MemberRef, error) {
	e, err := cp.entry(index)
	if err != nil {
		return MemberRef{}, err
	}
	ref, ok := e.(ConstantMemberRef)
	if !ok {
		return MemberRef{}, fmt.Errorf("%w: constant %d is not a member reference (tag %d)",
			ErrMalformedClass, index, e.Tag())
	}
	owner, err := cp.ClassName(int(ref.ClassIndex))
	if err != nil {
		return MemberRef{}, err
	}
	name, desc, err := cp.NameAndType(int(ref.NameAndTypeIndex))
	if err != nil {
		return MemberRef{}, err
	}
	return MemberRef{Owner: owner, Name: name, Descriptor: desc, IsInterface: ref.tag == TagInterfaceMethodref}, nil
}

// InvokeDynamic returns the name and descriptor of the CONSTANT_InvokeDynamic entry at index.
func (cp ConstantPool) InvokeDynamic(index int) (string, string, error) {
	e, err := cp.entry(index)
	if err != nil {
		return "", "", err
	}
	d, ok := e.(ConstantDynamic)
	if !ok || d.tag != TagInvokeDynamic {
		return "", "", fmt.Errorf("%w: constant %d is not an InvokeDynamic (tag %d)", ErrMalformedClass, index,
			e.Tag())
	}
	return cp.NameAndType(int(d.NameAndTypeIndex))
}

// LoadableSize returns the number of stack slots pushed by an ldc of the constant at index.
func (cp ConstantPool) LoadableSize(index int) (int, error) {
	e, err := cp.entry(index)
	if err != nil {
		return 0, err
	}
	switch c := e.(type) {
	case ConstantLong, ConstantDouble:
		return 2, nil
	case ConstantDynamic:
		if c.tag != TagDynamic {
			return 0, fmt.Errorf("%w: constant %d is not loadable", ErrMalformedClass, index)
		}
		_, desc, err := cp.NameAndType(int(c.NameAndTypeIndex))
		if err != nil {
			return 0, err
		}
		if desc == "J" || desc == "D" {
			return 2, nil
		}
		return 1, nil
	case ConstantInteger, ConstantFloat, ConstantString, ConstantClass, ConstantMethodHandle, ConstantMethodType:
		return 1, nil
	default:
		return 0, fmt.Errorf("%w: constant %d is not loadable (tag %d)", ErrMalformedClass, index, e.Tag())
	}
}
