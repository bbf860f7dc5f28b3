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

package passthrough

import (
	cf "github.com/awslabs/ar-jvm-gadgets/analysis/classfile"
	"github.com/awslabs/ar-jvm-gadgets/analysis/dataflow"
	"github.com/awslabs/ar-jvm-gadgets/analysis/inheritance"
	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
)

// CallMap maps each method with code to the set of methods its invoke instructions target. Targets are the
// methods named by the instructions, before any dispatch.
type CallMap map[lang.MethodHandle]inheritance.MethodSet

// MethodCalls collects the static call map of the methods. Instructions whose constant pool reference is invalid
// are ignored.
func MethodCalls(methods []*dataflow.Method) CallMap {
	calls := make(CallMap, len(methods))
	for _, m := range methods {
		called := inheritance.MethodSet{}
		for _, ins := range m.Body.Instrs {
			switch ins.Op {
			case cf.Invokevirtual, cf.Invokespecial, cf.Invokestatic, cf.Invokeinterface:
				ref, err := m.Pool.MemberRef(ins.Index)
				if err != nil {
					continue
				}
				called[lang.NewMethodHandle(ref.Owner, ref.Name, ref.Descriptor)] = true
			}
		}
		calls[m.Handle] = called
	}
	return calls
}

// Successors returns the callees of m that are keys of the call map, in a deterministic order.
func (c CallMap) Successors(m lang.MethodHandle) []lang.MethodHandle {
	var succs []lang.MethodHandle
	for _, callee := range c[m].Sorted() {
		if _, ok := c[callee]; ok {
			succs = append(succs, callee)
		}
	}
	return succs
}

// Methods returns the keys of the call map in a deterministic order.
func (c CallMap) Methods() []lang.MethodHandle {
	methods := make(inheritance.MethodSet, len(c))
	for m := range c {
		methods[m] = true
	}
	return methods.Sorted()
}

// TopologicalSort orders the methods of the call map so that callees come before their callers. The order is a
// depth-first post-order: edges to a method that is on the current depth-first path are ignored, which breaks
// recursion cycles, and callees that are not in the map are skipped.
func TopologicalSort(calls CallMap) []lang.MethodHandle {
	sorted := make([]lang.MethodHandle, 0, len(calls))
	visited := map[lang.MethodHandle]bool{}
	onStack := map[lang.MethodHandle]bool{}

	var visit func(m lang.MethodHandle)
	visit = func(m lang.MethodHandle) {
		if onStack[m] || visited[m] {
			return
		}
		if _, ok := calls[m]; !ok {
			return
		}
		onStack[m] = true
		for _, callee := range calls.Successors(m) {
			visit(callee)
		}
		delete(onStack, m)
		visited[m] = true
		sorted = append(sorted, m)
	}
	for _, m := range calls.Methods() {
		visit(m)
	}
	return sorted
}
