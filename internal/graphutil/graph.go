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

	"gonum.org/v1/gonum/graph"
)

// CGraph is an abstraction over a directed graph of arbitrary nodes to work with existing graph libraries. Node ids
// are the integers 0 to Order()-1. It implements the methods to satisfy graph.Iterator and Gonum's graph.Graph
type CGraph struct {
	// The order of the graph
	order int

	// IDMap maps from node IDs to CNodes
	IDMap map[int64]CNode

	// Keys are all the node IDs
	Keys []int64

	// Edges is an adjacency matrix: Edges[x][y] means there is a directed edge between IDMap[x] and IDMap[y]
	Edges map[int64]map[int64]bool
}

// NewCGraph returns a new graph over nodes. The id of each node is its index in nodes, and the returned map gives the
// id of each node. Successors that are not in nodes are ignored. The name of each node is used to print it.
func NewCGraph[T comparable](nodes []T, successors func(T) []T, name func(T) string) (CGraph, map[T]int64) {
	n := len(nodes)
	ids := make(map[T]int64, n)
	idmap := make(map[int64]CNode, n)
	keys := make([]int64, n)
	for i, node := range nodes {
		ids[node] = int64(i)
		keys[i] = int64(i)
		idmap[int64(i)] = CNode{id: int64(i), Name: name(node)}
	}
	edges := make(map[int64]map[int64]bool, n)
	for i, node := range nodes {
		out := map[int64]bool{}
		for _, succ := range successors(node) {
			if j, ok := ids[succ]; ok {
				out[j] = true
			}
		}
		edges[int64(i)] = out
	}
	return CGraph{
		order: n,
		IDMap: idmap,
		Edges: edges,
		Keys:  keys,
	}, ids
}

// Order implements the order of the graph.Iterator interface for the CGraph
func (c CGraph) Order() int {
	return c.order
}

// Visit implements the graph.Iterator interface for the CGraph
func (c CGraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	if _, ok := c.IDMap[int64(v)]; !ok {
		return false
	}
	for _, w := range sortedKeys(c.Edges[int64(v)]) {
		if do(int(w), 1) {
			return true
		}
	}
	return false
}

// *************** Graph interface implementation **********************

// Node implements the Graph interface
func (c CGraph) Node(id int64) graph.Node {
	n, ok := c.IDMap[id]
	if !ok {
		return nil
	}
	return n
}

// Nodes returns the set of nodes in the graph
func (c CGraph) Nodes() graph.Nodes {
	return newNodeSet(c.IDMap, sortedKeys(c.IDMap))
}

// From returns the set of nodes reachable from the id
func (c CGraph) From(id int64) graph.Nodes {
	return newNodeSet(c.IDMap, sortedKeys(c.Edges[id]))
}

// HasEdgeBetween returns a boolean indicating whether an edge exists between the two node identifiers
func (c CGraph) HasEdgeBetween(xid, yid int64) bool {
	xe := c.Edges[xid]
	ye := c.Edges[yid]
	return xe[yid] || ye[xid]
}

// Edge returns the edge between the two identifiers (nil if none exists)
func (c CGraph) Edge(uid, vid int64) graph.Edge {
	ue := c.Edges[uid]
	if ue != nil {
		if ue[vid] {
			return CEdge{from: c.IDMap[uid], to: c.IDMap[vid]}
		}
	}
	return nil
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// *************** Nodes implementation **********************

// CNode is a node of a CGraph, identified by its id and printed with its name
type CNode struct {
	id   int64
	Name string
}

// ID returns the id of the node
func (n CNode) ID() int64 {
	return n.id
}

func (n CNode) String() string {
	return n.Name
}

// NodeSet implements the graph.Nodes interface, an iterator over a set of nodes
type NodeSet struct {
	// nodes is the set of nodes in the iterator
	nodes map[int64]CNode

	// ids is the set of node ids in the iterator
	ids []int64

	// cur is the current index of the iterator. The current node is nodes[ids[cur]]
	// invariant: -1 <= cur <= len(ids); -1 before the first call to Next
	cur int
}

func newNodeSet(nodes map[int64]CNode, ids []int64) *NodeSet {
	return &NodeSet{nodes: nodes, ids: ids, cur: -1}
}

// Next moves the current node to the next, and returns true if such a node exists. Otherwise, returns false.
func (ns *NodeSet) Next() bool {
	if ns.cur < len(ns.ids) {
		ns.cur++
	}
	return ns.cur < len(ns.ids)
}

// Len returns the number of nodes remaining in the iterator
func (ns *NodeSet) Len() int {
	if ns.cur < 0 {
		return len(ns.ids)
	}
	return max(len(ns.ids)-ns.cur-1, 0)
}

// Reset resets the iterator to before its first node
func (ns *NodeSet) Reset() {
	ns.cur = -1
}

// Node return the current node in the set, or nil if the iterator is not positioned on a node
func (ns *NodeSet) Node() graph.Node {
	if ns.cur < 0 || ns.cur >= len(ns.ids) {
		return nil
	}
	return ns.nodes[ns.ids[ns.cur]]
}

// *************** Edge implementation **********************

// CEdge implements the graph.Edge interface
type CEdge struct {
	from CNode
	to   CNode
}

// From returns the origin of the edge
func (e CEdge) From() graph.Node {
	return e.from
}

// To returns the destination of the edge
func (e CEdge) To() graph.Node {
	return e.to
}

// ReversedEdge returns a new value representing the reversed edge
func (e CEdge) ReversedEdge() graph.Edge {
	return CEdge{from: e.to, to: e.from}
}
