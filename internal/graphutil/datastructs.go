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

package graphutil

// Tree is a tree whose nodes only know their parent, e.g. the search tree of a breadth-first search where each node
// is a path from the root.
type Tree[T any] struct {
	Parent *Tree[T]
	Label  T
	// Depth is zero for the root
	Depth int
}

// NewTree returns a new tree with the labels of the type provided
func NewTree[T any](rootLabel T) *Tree[T] {
	return &Tree[T]{Label: rootLabel}
}

// AddChild returns a new node with parent t
func (t *Tree[T]) AddChild(label T) *Tree[T] {
	return &Tree[T]{Parent: t, Label: label, Depth: t.Depth + 1}
}

// PathLabels returns the labels from the root to t
func (t *Tree[T]) PathLabels() []T {
	labels := make([]T, t.Depth+1)
	for cur := t; cur != nil; cur = cur.Parent {
		labels[cur.Depth] = cur.Label
	}
	return labels
}
