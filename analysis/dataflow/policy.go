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

package dataflow

import (
	"github.com/awslabs/ar-jvm-gadgets/analysis/classfile"
	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
)

// FieldRef is a field accessed by a getfield or putfield instruction
type FieldRef struct {
	Owner lang.ClassHandle
	Name  string
	Type  lang.Type
}

// CallSite is a method invocation, with the taint of its arguments after they are popped from the stack.
type CallSite[T comparable] struct {
	Caller lang.MethodHandle
	Callee lang.MethodHandle
	Op     classfile.Opcode
	Offset int
	// ArgTypes are the types of the arguments, starting with the receiver for instance calls
	ArgTypes []lang.Type
	// Args is the taint of each argument. The taint of long and double arguments is in their lower slot.
	Args []*TaintSet[T]
}

// A Policy specializes the interpreter for an analysis: it chooses the labels of the parameters, the taint of field
// reads, and observes calls and returns.
type Policy[T comparable] interface {
	// SeedParameter returns the labels of argument position arg at the entry of the method. For instance methods,
	// position 0 is the receiver.
	SeedParameter(arg int) []T

	// FieldRead returns the taint of the value read by a getfield of a single-slot field, given the taint of the
	// receiver.
	FieldRead(field FieldRef, receiver *TaintSet[T]) *TaintSet[T]

	// BeforeCall is called at every method invocation, before its effect on the frame is computed
	BeforeCall(call CallSite[T])

	// Return is called at every return instruction with the taint of the returned value, nil for void returns
	Return(op classfile.Opcode, value *TaintSet[T])
}

// BasePolicy is a policy with no parameter labels, in which field reads carry no taint. Embed it to implement only
// some of the hooks.
type BasePolicy[T comparable] struct{}

// SeedParameter returns no labels
func (BasePolicy[T]) SeedParameter(int) []T { return nil }

// FieldRead returns a new empty set
func (BasePolicy[T]) FieldRead(FieldRef, *TaintSet[T]) *TaintSet[T] { return NewTaintSet[T]() }

// BeforeCall does nothing
func (BasePolicy[T]) BeforeCall(CallSite[T]) {}

// Return does nothing
func (BasePolicy[T]) Return(classfile.Opcode, *TaintSet[T]) {}
