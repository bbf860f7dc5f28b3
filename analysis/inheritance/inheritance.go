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

// Package inheritance computes the transitive ancestors of the classes of a classpath, the inverse subclass
// relation, and the methods that override each method.
package inheritance

import (
	"sort"
	"sync"

	"github.com/awslabs/ar-jvm-gadgets/analysis/config"
	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
	"github.com/awslabs/ar-jvm-gadgets/internal/funcutil"
	"github.com/awslabs/ar-jvm-gadgets/internal/graphutil"
	"golang.org/x/exp/maps"
)

// ClassSet is a set of classes
type ClassSet map[lang.ClassHandle]bool

// Sorted returns the classes of the set in lexicographic order
func (s ClassSet) Sorted() []lang.ClassHandle {
	return funcutil.SetToOrderedSlice(s)
}

// Index maps every class of a classpath to all its transitive superclasses and superinterfaces. A class is not its
// own ancestor.
type Index struct {
	ancestors map[lang.ClassHandle]ClassSet

	subclassesOnce sync.Once
	subclasses     map[lang.ClassHandle]ClassSet
}

// NewIndex returns an index from precomputed ancestor sets, e.g. loaded from a previous run.
func NewIndex(ancestors map[lang.ClassHandle]ClassSet) *Index {
	return &Index{ancestors: ancestors}
}

// Derive computes the inheritance index of the classes. Only ancestors defined in the classes are part of an ancestor
// set: a missing ancestor stops the closure on its branch and is logged at debug level.
func Derive(classes map[lang.ClassHandle]lang.ClassInfo, logger *config.LogGroup) *Index {
	logger.Debugf("Computing inheritance closure of %d classes", len(classes))
	handles := maps.Keys(classes)
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	direct := func(c lang.ClassHandle) []lang.ClassHandle {
		info, ok := classes[c]
		if !ok {
			return nil
		}
		parents := append([]lang.ClassHandle{}, info.Interfaces...)
		if sup := info.SuperClass(); sup.IsSome() {
			parents = append(parents, sup.Value())
		}
		return parents
	}

	for _, cycle := range graphutil.CyclicComponents(handles, direct) {
		logger.Warnf("Classes %v form an inheritance cycle", cycle)
	}

	missing := map[lang.ClassHandle]bool{}
	ancestors := make(map[lang.ClassHandle]ClassSet, len(classes))
	for _, c := range handles {
		set := ClassSet{}
		var visit func(c lang.ClassHandle)
		visit = func(c lang.ClassHandle) {
			for _, p := range direct(c) {
				if set[p] {
					continue
				}
				if _, ok := classes[p]; !ok {
					missing[p] = true
					continue
				}
				set[p] = true
				visit(p)
			}
		}
		visit(c)
		delete(set, c)
		ancestors[c] = set
	}
	for _, m := range funcutil.SetToOrderedSlice(missing) {
		logger.Debugf("Missing class %s in classpath, inheritance closure stops there", m)
	}
	return NewIndex(ancestors)
}

// SuperClasses returns the set of ancestors of c, and false if c is not in the index.
func (idx *Index) SuperClasses(c lang.ClassHandle) (ClassSet, bool) {
	s, ok := idx.ancestors[c]
	return s, ok
}

// IsSubclassOf returns true if super is an ancestor of c.
func (idx *Index) IsSubclassOf(c lang.ClassHandle, super lang.ClassHandle) bool {
	return idx.ancestors[c][super]
}

// SubClasses returns the set of classes that have c as ancestor. The inverse index is computed on the first call.
func (idx *Index) SubClasses(c lang.ClassHandle) ClassSet {
	idx.subclassesOnce.Do(func() {
		idx.subclasses = map[lang.ClassHandle]ClassSet{}
		for child, parents := range idx.ancestors {
			for parent := range parents {
				if idx.subclasses[parent] == nil {
					idx.subclasses[parent] = ClassSet{}
				}
				idx.subclasses[parent][child] = true
			}
		}
	})
	return idx.subclasses[c]
}

// Classes returns the classes of the index in lexicographic order
func (idx *Index) Classes() []lang.ClassHandle {
	classes := maps.Keys(idx.ancestors)
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })
	return classes
}

// Entry is a class with its ancestors, in lexicographic order
type Entry struct {
	Class     lang.ClassHandle
	Ancestors []lang.ClassHandle
}

// Entries returns the content of the index in a deterministic order
func (idx *Index) Entries() []Entry {
	return funcutil.Map(idx.Classes(), func(c lang.ClassHandle) Entry {
		return Entry{Class: c, Ancestors: idx.ancestors[c].Sorted()}
	})
}

// Len returns the number of classes in the index
func (idx *Index) Len() int {
	return len(idx.ancestors)
}
