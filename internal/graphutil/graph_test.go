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

package graphutil_test

import (
	"fmt"
	"testing"

	"github.com/awslabs/ar-jvm-gadgets/internal/graphutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourbasic/graph"
	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/traverse"
)

func diamond() (graphutil.CGraph, map[string]int64) {
	succs := map[string][]string{
		"a": {"b", "c"},
		"b": {"d"},
		"c": {"d", "missing"},
		"d": {"b"},
		"e": nil,
	}
	return graphutil.NewCGraph([]string{"a", "b", "c", "d", "e"},
		func(s string) []string { return succs[s] },
		func(s string) string { return "node " + s })
}

func TestNewCGraph(t *testing.T) {
	g, ids := diamond()
	assert.Equal(t, 5, g.Order())
	assert.Equal(t, int64(0), ids["a"])
	assert.True(t, g.Edges[ids["c"]][ids["d"]])
	assert.Len(t, g.Edges[ids["c"]], 1)
	assert.True(t, g.HasEdgeBetween(ids["d"], ids["c"]))
	assert.Nil(t, g.Edge(ids["d"], ids["c"]))
	e := g.Edge(ids["a"], ids["b"])
	require.NotNil(t, e)
	assert.Equal(t, "node b", fmt.Sprint(e.To()))
	assert.Equal(t, "node a", fmt.Sprint(e.ReversedEdge().To()))
}

func TestCGraphStrongComponents(t *testing.T) {
	g, ids := diamond()
	found := false
	for _, comp := range graph.StrongComponents(g) {
		if len(comp) == 2 {
			assert.ElementsMatch(t, []int{int(ids["b"]), int(ids["d"])}, comp)
			found = true
		}
	}
	assert.True(t, found)
}

func TestCGraphTraversal(t *testing.T) {
	g, ids := diamond()
	var visited []string
	bf := traverse.BreadthFirst{Visit: func(n gonum.Node) { visited = append(visited, fmt.Sprint(n)) }}
	bf.Walk(g, g.Node(ids["a"]), nil)
	assert.ElementsMatch(t, []string{"node a", "node b", "node c", "node d"}, visited)

	nodes := g.Nodes()
	assert.Equal(t, 5, nodes.Len())
	count := 0
	for nodes.Next() {
		count++
	}
	assert.Equal(t, 5, count)
	assert.Nil(t, nodes.Node())
	nodes.Reset()
	require.True(t, nodes.Next())
	assert.Equal(t, "node a", fmt.Sprint(nodes.Node()))
}

func TestTreePathLabels(t *testing.T) {
	root := graphutil.NewTree("source")
	relay := root.AddChild("relay")
	sink := relay.AddChild("sink")
	other := root.AddChild("other")
	assert.Equal(t, []string{"source", "relay", "sink"}, sink.PathLabels())
	assert.Equal(t, []string{"source", "other"}, other.PathLabels())
	assert.Equal(t, []string{"source"}, root.PathLabels())
	assert.Equal(t, 2, sink.Depth)
	assert.Same(t, relay, sink.Parent)
}
