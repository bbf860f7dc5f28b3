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

import (
	"sort"

	"github.com/yourbasic/graph"
)

// CyclicComponents returns the strongly connected components of the graph that contain a cycle: components with
// more than one node, and single nodes that are their own successor. Within a component, nodes are in the order of
// nodes, and components are ordered by their first node. Successors that are not in nodes are ignored.
func CyclicComponents[T comparable](nodes []T, successors func(T) []T) [][]T {
	g, _ := NewCGraph(nodes, successors, func(T) string { return "" })
	var comps [][]int
	for _, comp := range graph.StrongComponents(g) {
		if len(comp) == 1 && !g.Edges[int64(comp[0])][int64(comp[0])] {
			continue
		}
		sort.Ints(comp)
		comps = append(comps, comp)
	}
	sort.Slice(comps, func(i, j int) bool { return comps[i][0] < comps[j][0] })

	cyclic := make([][]T, len(comps))
	for i, comp := range comps {
		cyclic[i] = make([]T, len(comp))
		for j, id := range comp {
			cyclic[i][j] = nodes[id]
		}
	}
	return cyclic
}
