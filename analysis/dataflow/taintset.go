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
	"fmt"
	"sort"
	"strings"
)

// TaintSet is a mutable set of taint labels. Sets are shared by reference between the slots of a frame: loading a
// reference local or duplicating a stack value makes both slots hold the same set, so adding labels to one adds them
// to the other.
type TaintSet[T comparable] struct {
	labels map[T]struct{}
}

// NewTaintSet returns a new set with the labels
func NewTaintSet[T comparable](labels ...T) *TaintSet[T] {
	s := &TaintSet[T]{labels: make(map[T]struct{}, len(labels))}
	for _, l := range labels {
		s.labels[l] = struct{}{}
	}
	return s
}

// Add adds a label to the set and returns true if it was not present
func (s *TaintSet[T]) Add(label T) bool {
	if _, ok := s.labels[label]; ok {
		return false
	}
	s.labels[label] = struct{}{}
	return true
}

// AddAll adds all the labels of o to s and returns true if s grew
func (s *TaintSet[T]) AddAll(o *TaintSet[T]) bool {
	if o == nil || o == s {
		return false
	}
	grew := false
	for l := range o.labels {
		if _, ok := s.labels[l]; !ok {
			s.labels[l] = struct{}{}
			grew = true
		}
	}
	return grew
}

// Contains returns true if the label is in the set
func (s *TaintSet[T]) Contains(label T) bool {
	if s == nil {
		return false
	}
	_, ok := s.labels[label]
	return ok
}

// Len returns the number of labels in the set
func (s *TaintSet[T]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.labels)
}

// IsEmpty returns true if the set has no labels
func (s *TaintSet[T]) IsEmpty() bool {
	return s.Len() == 0
}

// Each calls f on every label of the set, in unspecified order
func (s *TaintSet[T]) Each(f func(T)) {
	if s == nil {
		return
	}
	for l := range s.labels {
		f(l)
	}
}

// Labels returns the labels of the set, ordered by less
func (s *TaintSet[T]) Labels(less func(a, b T) bool) []T {
	labels := make([]T, 0, s.Len())
	s.Each(func(l T) { labels = append(labels, l) })
	sort.Slice(labels, func(i, j int) bool { return less(labels[i], labels[j]) })
	return labels
}

// Clone returns a new set with the same labels
func (s *TaintSet[T]) Clone() *TaintSet[T] {
	c := NewTaintSet[T]()
	c.AddAll(s)
	return c
}

// SubsetOf returns true if every label of s is in o
func (s *TaintSet[T]) SubsetOf(o *TaintSet[T]) bool {
	for l := range s.labels {
		if !o.Contains(l) {
			return false
		}
	}
	return true
}

func (s *TaintSet[T]) String() string {
	var parts []string
	s.Each(func(l T) { parts = append(parts, fmt.Sprint(l)) })
	sort.Strings(parts)
	return "{" + strings.Join(parts, ", ") + "}"
}

// Frame is the abstract state of a method at a program point: one taint set per local variable slot and per operand
// stack slot. Long and double values occupy two slots; their taint is in the lower slot.
type Frame[T comparable] struct {
	Locals []*TaintSet[T]
	Stack  []*TaintSet[T]
}

// Local returns the taint set of local variable i, extending the locals if needed
func (f *Frame[T]) Local(i int) *TaintSet[T] {
	for len(f.Locals) <= i {
		f.Locals = append(f.Locals, NewTaintSet[T]())
	}
	return f.Locals[i]
}

// SetLocal sets the taint set of local variable i, extending the locals if needed
func (f *Frame[T]) SetLocal(i int, s *TaintSet[T]) {
	f.Local(i)
	f.Locals[i] = s
}

// Push pushes the taint sets on the stack
func (f *Frame[T]) Push(sets ...*TaintSet[T]) {
	f.Stack = append(f.Stack, sets...)
}

// PushEmpty pushes n new empty sets on the stack
func (f *Frame[T]) PushEmpty(n int) {
	for i := 0; i < n; i++ {
		f.Stack = append(f.Stack, NewTaintSet[T]())
	}
}

// Pop pops the top of the stack. It panics with an error wrapping ErrMalformedCode if the stack is empty.
func (f *Frame[T]) Pop() *TaintSet[T] {
	if len(f.Stack) == 0 {
		panic(fmt.Errorf("%w: operand stack underflow", ErrMalformedCode))
	}
	top := f.Stack[len(f.Stack)-1]
	f.Stack = f.Stack[:len(f.Stack)-1]
	return top
}

// PopN pops n slots from the stack and drops them
func (f *Frame[T]) PopN(n int) {
	for i := 0; i < n; i++ {
		f.Pop()
	}
}

// Peek returns the taint of the stack slot at depth i, 0 being the top of the stack
func (f *Frame[T]) Peek(i int) *TaintSet[T] {
	if i < 0 || i >= len(f.Stack) {
		panic(fmt.Errorf("%w: operand stack access at depth %d of %d", ErrMalformedCode, i, len(f.Stack)))
	}
	return f.Stack[len(f.Stack)-1-i]
}

// Clone returns a deep copy of the frame. Slots sharing a set in f share a set in the copy, which shares nothing
// with f.
func (f *Frame[T]) Clone() *Frame[T] {
	copies := map[*TaintSet[T]]*TaintSet[T]{}
	clone := func(s *TaintSet[T]) *TaintSet[T] {
		if c, ok := copies[s]; ok {
			return c
		}
		c := s.Clone()
		copies[s] = c
		return c
	}
	c := &Frame[T]{
		Locals: make([]*TaintSet[T], len(f.Locals)),
		Stack:  make([]*TaintSet[T], len(f.Stack)),
	}
	for i, s := range f.Locals {
		c.Locals[i] = clone(s)
	}
	for i, s := range f.Stack {
		c.Stack[i] = clone(s)
	}
	return c
}

// Unshared returns a deep copy of the frame where every slot has its own set.
func (f *Frame[T]) Unshared() *Frame[T] {
	c := &Frame[T]{
		Locals: make([]*TaintSet[T], len(f.Locals)),
		Stack:  make([]*TaintSet[T], len(f.Stack)),
	}
	for i, s := range f.Locals {
		c.Locals[i] = s.Clone()
	}
	for i, s := range f.Stack {
		c.Stack[i] = s.Clone()
	}
	return c
}

// Merge adds the taint of every slot of o to the corresponding slot of f, and returns true if f grew. Both frames
// must have the same stack height.
func (f *Frame[T]) Merge(o *Frame[T]) (bool, error) {
	if len(f.Stack) != len(o.Stack) {
		return false, fmt.Errorf("%w: merging stacks of height %d and %d", ErrStackMismatch, len(f.Stack),
			len(o.Stack))
	}
	grew := false
	for i, s := range o.Locals {
		if f.Local(i).AddAll(s) {
			grew = true
		}
	}
	for i, s := range o.Stack {
		if f.Stack[i].AddAll(s) {
			grew = true
		}
	}
	return grew, nil
}

// SubsetOf returns true if every slot of f has a subset of the taint of the corresponding slot of o
func (f *Frame[T]) SubsetOf(o *Frame[T]) bool {
	if len(f.Stack) != len(o.Stack) {
		return false
	}
	for i, s := range f.Locals {
		if s.IsEmpty() {
			continue
		}
		if i >= len(o.Locals) || !s.SubsetOf(o.Locals[i]) {
			return false
		}
	}
	for i, s := range f.Stack {
		if !s.SubsetOf(o.Stack[i]) {
			return false
		}
	}
	return true
}
