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

package callgraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
)

// Label is the taint of a value inside a method: the value is reachable from argument Arg of the method by
// following the fields in Path, a dot-separated list of field names. An empty path is the argument itself.
type Label struct {
	Arg  int
	Path string
}

// Field returns the label of the field name read from a value labelled l
func (l Label) Field(name string) Label {
	if l.Path == "" {
		return Label{Arg: l.Arg, Path: name}
	}
	return Label{Arg: l.Arg, Path: l.Path + "." + name}
}

// Depth returns the number of fields in the path of the label
func (l Label) Depth() int {
	if l.Path == "" {
		return 0
	}
	return strings.Count(l.Path, ".") + 1
}

func (l Label) String() string {
	if l.Path == "" {
		return fmt.Sprintf("arg%d", l.Arg)
	}
	return fmt.Sprintf("arg%d.%s", l.Arg, l.Path)
}

// Edge is a call from Caller to Callee where argument CallerArg of the caller, or the value at CallerPath inside
// that argument, is passed as argument CalleeArg of the callee.
type Edge struct {
	Caller     lang.MethodHandle
	Callee     lang.MethodHandle
	CallerArg  int
	CallerPath string
	CalleeArg  int
}

// Less orders edges by caller, callee, then argument positions and path
func (e Edge) Less(o Edge) bool {
	if e.Caller != o.Caller {
		return e.Caller.Less(o.Caller)
	}
	if e.Callee != o.Callee {
		return e.Callee.Less(o.Callee)
	}
	if e.CallerArg != o.CallerArg {
		return e.CallerArg < o.CallerArg
	}
	if e.CallerPath != o.CallerPath {
		return e.CallerPath < o.CallerPath
	}
	return e.CalleeArg < o.CalleeArg
}

func (e Edge) String() string {
	return fmt.Sprintf("%s %s -> %s arg%d", e.Caller, Label{Arg: e.CallerArg, Path: e.CallerPath}, e.Callee,
		e.CalleeArg)
}

// Graph is a set of call edges indexed by caller. A Graph is not safe for concurrent use.
type Graph struct {
	edges map[Edge]bool
	from  map[lang.MethodHandle][]Edge
	// unsorted are the callers whose edges have been added since their edge list was last sorted
	unsorted map[lang.MethodHandle]bool
}

// NewGraph returns an empty graph
func NewGraph() *Graph {
	return &Graph{
		edges:    map[Edge]bool{},
		from:     map[lang.MethodHandle][]Edge{},
		unsorted: map[lang.MethodHandle]bool{},
	}
}

// Add adds an edge to the graph and returns true if the edge was not already in the graph.
func (g *Graph) Add(e Edge) bool {
	if g.edges[e] {
		return false
	}
	g.edges[e] = true
	g.from[e.Caller] = append(g.from[e.Caller], e)
	g.unsorted[e.Caller] = true
	return true
}

// Merge adds all the edges of o to g
func (g *Graph) Merge(o *Graph) {
	for e := range o.edges {
		g.Add(e)
	}
}

// Len returns the number of edges in the graph
func (g *Graph) Len() int {
	return len(g.edges)
}

// Has returns true if the edge is in the graph
func (g *Graph) Has(e Edge) bool {
	return g.edges[e]
}

// From returns the edges whose caller is m, ordered. The returned slice must not be modified.
func (g *Graph) From(m lang.MethodHandle) []Edge {
	edges := g.from[m]
	if g.unsorted[m] {
		sort.Slice(edges, func(i, j int) bool { return edges[i].Less(edges[j]) })
		delete(g.unsorted, m)
	}
	return edges
}

// Callers returns the methods that have outgoing edges, ordered
func (g *Graph) Callers() []lang.MethodHandle {
	callers := make([]lang.MethodHandle, 0, len(g.from))
	for m := range g.from {
		callers = append(callers, m)
	}
	sort.Slice(callers, func(i, j int) bool { return callers[i].Less(callers[j]) })
	return callers
}

// Edges returns all the edges of the graph, ordered
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, len(g.edges))
	for _, m := range g.Callers() {
		edges = append(edges, g.From(m)...)
	}
	return edges
}
