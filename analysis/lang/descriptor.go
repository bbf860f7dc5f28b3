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

package lang

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBadDescriptor is returned when a field or method descriptor cannot be parsed.
var ErrBadDescriptor = errors.New("malformed descriptor")

// Sort is the kind of a JVM type.
type Sort uint8

// The sorts of JVM types.
const (
	Void Sort = iota
	Boolean
	Char
	Byte
	Short
	Int
	Float
	Long
	Double
	Array
	Object
)

func (s Sort) String() string {
	switch s {
	case Void:
		return "void"
	case Boolean:
		return "boolean"
	case Char:
		return "char"
	case Byte:
		return "byte"
	case Short:
		return "short"
	case Int:
		return "int"
	case Float:
		return "float"
	case Long:
		return "long"
	case Double:
		return "double"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "unknown"
	}
}

// Type is a JVM field type, identified by its descriptor (e.g. "I", "Ljava/lang/String;", "[B").
type Type struct {
	desc string
}

// ParseType parses a single field descriptor. The whole string must be consumed.
func ParseType(desc string) (Type, error) {
	t, n, err := scanType(desc, 0, false)
	if err != nil {
		return Type{}, err
	}
	if n != len(desc) {
		return Type{}, fmt.Errorf("%w: trailing characters in %q", ErrBadDescriptor, desc)
	}
	return t, nil
}

// ObjectType returns the type for an internal name. Internal names of array classes are descriptors.
func ObjectType(internalName string) Type {
	if strings.HasPrefix(internalName, "[") {
		return Type{desc: internalName}
	}
	return Type{desc: "L" + internalName + ";"}
}

// Descriptor returns the field descriptor of the type.
func (t Type) Descriptor() string { return t.desc }

func (t Type) String() string { return t.desc }

// Sort returns the kind of the type.
func (t Type) Sort() Sort {
	if t.desc == "" {
		return Void
	}
	switch t.desc[0] {
	case 'V':
		return Void
	case 'Z':
		return Boolean
	case 'C':
		return Char
	case 'B':
		return Byte
	case 'S':
		return Short
	case 'I':
		return Int
	case 'F':
		return Float
	case 'J':
		return Long
	case 'D':
		return Double
	case '[':
		return Array
	default:
		return Object
	}
}

// Size returns the number of stack or local variable slots a value of the type occupies.
func (t Type) Size() int {
	switch t.Sort() {
	case Void:
		return 0
	case Long, Double:
		return 2
	default:
		return 1
	}
}

// InternalName returns the class name for object types, and the descriptor for array and primitive types.
func (t Type) InternalName() string {
	if t.Sort() == Object {
		return t.desc[1 : len(t.desc)-1]
	}
	return t.desc
}

// IsReference returns true for object and array types.
func (t Type) IsReference() bool {
	s := t.Sort()
	return s == Object || s == Array
}

// MethodDescriptor is a parsed method descriptor.
type MethodDescriptor struct {
	Args   []Type
	Return Type
}

// ParseMethodDescriptor parses a method descriptor such as "(ILjava/lang/String;)V".
func ParseMethodDescriptor(desc string) (MethodDescriptor, error) {
	if !strings.HasPrefix(desc, "(") {
		return MethodDescriptor{}, fmt.Errorf("%w: %q does not start with '('", ErrBadDescriptor, desc)
	}
	var md MethodDescriptor
	i := 1
	for i < len(desc) && desc[i] != ')' {
		t, n, err := scanType(desc, i, false)
		if err != nil {
			return MethodDescriptor{}, err
		}
		md.Args = append(md.Args, t)
		i = n
	}
	if i >= len(desc) {
		return MethodDescriptor{}, fmt.Errorf("%w: unterminated argument list in %q", ErrBadDescriptor, desc)
	}
	ret, n, err := scanType(desc, i+1, true)
	if err != nil {
		return MethodDescriptor{}, err
	}
	if n != len(desc) {
		return MethodDescriptor{}, fmt.Errorf("%w: trailing characters in %q", ErrBadDescriptor, desc)
	}
	md.Return = ret
	return md, nil
}

// ArgsSize returns the number of slots taken by the declared arguments.
func (md MethodDescriptor) ArgsSize() int {
	n := 0
	for _, a := range md.Args {
		n += a.Size()
	}
	return n
}

// scanType reads one type starting at position i and returns it with the position following it.
func scanType(desc string, i int, allowVoid bool) (Type, int, error) {
	if i >= len(desc) {
		return Type{}, i, fmt.Errorf("%w: unexpected end of %q", ErrBadDescriptor, desc)
	}
	start := i
	for i < len(desc) && desc[i] == '[' {
		i++
	}
	if i >= len(desc) {
		return Type{}, i, fmt.Errorf("%w: unexpected end of %q", ErrBadDescriptor, desc)
	}
	switch desc[i] {
	case 'Z', 'C', 'B', 'S', 'I', 'F', 'J', 'D':
		return Type{desc: desc[start : i+1]}, i + 1, nil
	case 'V':
		if !allowVoid || i != start {
			return Type{}, i, fmt.Errorf("%w: misplaced void in %q", ErrBadDescriptor, desc)
		}
		return Type{desc: "V"}, i + 1, nil
	case 'L':
		end := strings.IndexByte(desc[i:], ';')
		if end <= 1 {
			return Type{}, i, fmt.Errorf("%w: unterminated class name in %q", ErrBadDescriptor, desc)
		}
		return Type{desc: desc[start : i+end+1]}, i + end + 1, nil
	default:
		return Type{}, i, fmt.Errorf("%w: unexpected %q in %q", ErrBadDescriptor, desc[i], desc)
	}
}
