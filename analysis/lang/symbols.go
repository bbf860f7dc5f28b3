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
	"fmt"
	"strings"

	"github.com/awslabs/ar-jvm-gadgets/internal/funcutil"
)

// Access flags of classes, fields and methods that the analyses care about.
const (
	AccPublic    = 0x0001
	AccPrivate   = 0x0002
	AccProtected = 0x0004
	AccStatic    = 0x0008
	AccFinal     = 0x0010
	AccTransient = 0x0080
	AccInterface = 0x0200
	AccAbstract  = 0x0400
)

// ConstructorName and StaticInitializerName are the special method names of the JVM.
const (
	ConstructorName       = "<init>"
	StaticInitializerName = "<clinit>"
)

// ClassHandle identifies a class by its internal name, e.g. "java/lang/String".
type ClassHandle string

// Name returns the internal name of the class.
func (c ClassHandle) Name() string { return string(c) }

// DottedName returns the class name with '/' replaced by '.'
func (c ClassHandle) DottedName() string { return strings.ReplaceAll(string(c), "/", ".") }

// Member is a non-static field declared by a class.
type Member struct {
	Name      string
	Modifiers int
	// Type is the internal name of the field type for object and array types, and the primitive descriptor
	// otherwise.
	Type ClassHandle
}

// IsTransient returns true if the member carries the transient modifier.
func (m Member) IsTransient() bool {
	return m.Modifiers&AccTransient != 0
}

// ClassInfo holds the information the analyses need about a class.
type ClassInfo struct {
	Handle ClassHandle
	// Super is empty when the class has no superclass (java/lang/Object)
	Super       ClassHandle
	Interfaces  []ClassHandle
	IsInterface bool
	Members     []Member
}

// SuperClass returns the superclass of the class, if it has one.
func (c ClassInfo) SuperClass() funcutil.Optional[ClassHandle] {
	if c.Super == "" {
		return funcutil.None[ClassHandle]()
	}
	return funcutil.Some(c.Super)
}

// FindMember returns the member with the given name declared directly in c.
func (c ClassInfo) FindMember(name string) (Member, bool) {
	for _, m := range c.Members {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

// MethodHandle identifies a method by its owner class, name and descriptor.
type MethodHandle struct {
	Class ClassHandle
	Name  string
	Desc  string
}

// NewMethodHandle returns the handle for the method owner.name desc
func NewMethodHandle(owner string, name string, desc string) MethodHandle {
	return MethodHandle{Class: ClassHandle(owner), Name: name, Desc: desc}
}

func (m MethodHandle) String() string {
	return fmt.Sprintf("%s.%s%s", m.Class, m.Name, m.Desc)
}

// Less orders method handles by class, then name, then descriptor.
func (m MethodHandle) Less(o MethodHandle) bool {
	if m.Class != o.Class {
		return m.Class < o.Class
	}
	if m.Name != o.Name {
		return m.Name < o.Name
	}
	return m.Desc < o.Desc
}

// IsConstructor returns true if the method is an instance initializer.
func (m MethodHandle) IsConstructor() bool {
	return m.Name == ConstructorName
}

// MethodInfo is a method discovered in the classpath.
type MethodInfo struct {
	Handle   MethodHandle
	IsStatic bool
}

// ArgCount returns the number of argument positions of the method, counting the receiver of instance methods as
// argument 0.
func (m MethodInfo) ArgCount() (int, error) {
	d, err := ParseMethodDescriptor(m.Handle.Desc)
	if err != nil {
		return 0, err
	}
	if m.IsStatic {
		return len(d.Args), nil
	}
	return len(d.Args) + 1, nil
}
