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

package inheritance

import (
	"sort"

	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
)

// MethodSet is a set of methods
type MethodSet map[lang.MethodHandle]bool

// Sorted returns the methods of the set ordered by class, name and descriptor
func (s MethodSet) Sorted() []lang.MethodHandle {
	methods := make([]lang.MethodHandle, 0, len(s))
	for m := range s {
		methods = append(methods, m)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i].Less(methods[j]) })
	return methods
}

// OverrideIndex maps a non-static method to the methods of its subclasses with the same name and descriptor, which
// are the candidate targets of a dynamic dispatch on that method. Methods without overrides have no entry.
type OverrideIndex map[lang.MethodHandle]MethodSet

type signature struct {
	name string
	desc string
}

// Overrides computes the override index of the methods.
func Overrides(idx *Index, methods map[lang.MethodHandle]lang.MethodInfo) OverrideIndex {
	byClass := map[lang.ClassHandle]map[signature]lang.MethodHandle{}
	for h := range methods {
		if byClass[h.Class] == nil {
			byClass[h.Class] = map[signature]lang.MethodHandle{}
		}
		byClass[h.Class][signature{h.Name, h.Desc}] = h
	}

	overrides := OverrideIndex{}
	for h, info := range methods {
		if info.IsStatic {
			continue
		}
		sig := signature{h.Name, h.Desc}
		for sub := range idx.SubClasses(h.Class) {
			impl, ok := byClass[sub][sig]
			if !ok {
				continue
			}
			if overrides[h] == nil {
				overrides[h] = MethodSet{}
			}
			overrides[h][impl] = true
		}
	}
	return overrides
}

// Methods returns the methods that have overrides, ordered
func (o OverrideIndex) Methods() []lang.MethodHandle {
	s := make(MethodSet, len(o))
	for m := range o {
		s[m] = true
	}
	return s.Sorted()
}
