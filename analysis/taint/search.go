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

// Package taint searches the call graph for gadget chains: sequences of calls that carry attacker data from the entry
// points of a deserialization to a sink.
//
// The search is breadth-first. Each link (a method and the index of its tainted argument) is expanded at most once
// over the whole search, so the shortest chain reaching a link hides the longer ones. Chains stop at the first
// sink they reach.
package taint

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/awslabs/ar-jvm-gadgets/analysis/callgraph"
	"github.com/awslabs/ar-jvm-gadgets/analysis/config"
	"github.com/awslabs/ar-jvm-gadgets/analysis/frameworks"
	"github.com/awslabs/ar-jvm-gadgets/analysis/inheritance"
	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
	"github.com/awslabs/ar-jvm-gadgets/internal/graphutil"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/traverse"
)

// ErrSearchBudgetExhausted is returned with the chains found so far when the search stops before its worklist is
// empty, because of the iteration bound or because the context is done.
var ErrSearchBudgetExhausted = errors.New("search budget exhausted")

// progressInterval is the number of iterations between two progress messages
const progressInterval = 1000

// Link is a step of a gadget chain: argument Arg of Method carries attacker data.
type Link struct {
	Method lang.MethodHandle
	Arg    int
}

func (l Link) String() string {
	return fmt.Sprintf("%s (%d)", l.Method, l.Arg)
}

// Chain is a gadget chain, from its source to its sink
type Chain []Link

// Source returns the first link of the chain
func (c Chain) Source() Link { return c[0] }

// Sink returns the last link of the chain
func (c Chain) Sink() Link { return c[len(c)-1] }

// Less orders chains by length, then by the text of their links
func (c Chain) Less(o Chain) bool {
	if len(c) != len(o) {
		return len(c) < len(o)
	}
	for i := range c {
		if c[i] != o[i] {
			return c[i].String() < o[i].String()
		}
	}
	return false
}

func (c Chain) String() string {
	links := make([]string, len(c))
	for i, l := range c {
		links[i] = l.String()
	}
	return strings.Join(links, " -> ")
}

// SortChains sorts chains in place in the order of Chain.Less
func SortChains(chains []Chain) {
	sort.Slice(chains, func(i, j int) bool { return chains[i].Less(chains[j]) })
}

// Searcher searches gadget chains in a call graph
type Searcher struct {
	Graph  *callgraph.Graph
	Finder frameworks.ImplementationFinder
	Sinks  SinkDecider

	// MaxIterations bounds the number of chains taken from the worklist. Zero or less means no bound.
	MaxIterations int

	Logger *config.LogGroup
}

// Stats are the statistics of a search
type Stats struct {
	Sources    int `json:"sources"`
	Iterations int `json:"iterations"`
	Explored   int `json:"explored"`
	Chains     int `json:"chains"`
}

// Search returns the gadget chains starting at the sources, sorted with SortChains. If the search stops early, the
// error wraps ErrSearchBudgetExhausted and the chains found until then are returned.
func (s *Searcher) Search(ctx context.Context, sources []frameworks.Source) ([]Chain, Stats, error) {
	var stats Stats
	explored := map[Link]bool{}
	var worklist []*graphutil.Tree[Link]
	for _, src := range sources {
		link := Link{Method: src.Method, Arg: src.Arg}
		if explored[link] {
			continue
		}
		explored[link] = true
		worklist = append(worklist, graphutil.NewTree(link))
	}
	stats.Sources = len(worklist)
	if s.Logger.Level() >= config.DebugLevel {
		s.Logger.Debugf("%d methods reachable from %d sources", s.ReachableMethods(sources), stats.Sources)
	}

	found := map[string]Chain{}
	var err error
	for len(worklist) > 0 {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ErrSearchBudgetExhausted, ctxErr)
			break
		}
		if s.MaxIterations > 0 && stats.Iterations >= s.MaxIterations {
			err = fmt.Errorf("%w: %d iterations", ErrSearchBudgetExhausted, stats.Iterations)
			break
		}
		if stats.Iterations%progressInterval == 0 {
			s.Logger.Infof("Iteration %d, search space: %d", stats.Iterations, len(worklist))
		}
		stats.Iterations++

		node := worklist[0]
		worklist[0] = nil
		worklist = worklist[1:]
		last := node.Label
		for _, e := range s.Graph.From(last.Method) {
			if e.CallerArg != last.Arg {
				continue
			}
			for _, impl := range s.Finder.Implementations(e.Callee) {
				link := Link{Method: impl, Arg: e.CalleeArg}
				if explored[link] {
					continue
				}
				if s.Sinks.IsSink(impl, e.CalleeArg) {
					chain := chainTo(node, link)
					found[chain.String()] = chain
					continue
				}
				explored[link] = true
				worklist = append(worklist, node.AddChild(link))
			}
		}
	}

	chains := make([]Chain, 0, len(found))
	for _, c := range found {
		chains = append(chains, c)
	}
	SortChains(chains)
	stats.Explored = len(explored)
	stats.Chains = len(chains)
	s.Logger.Infof("Found %d gadget chains in %d iterations", stats.Chains, stats.Iterations)
	return chains, stats, err
}

// chainTo returns the chain of links from the root of the search tree to node, followed by last
func chainTo(node *graphutil.Tree[Link], last Link) Chain {
	return append(Chain(node.PathLabels()), last)
}

// ReachableMethods returns the number of methods reachable from the sources in the call graph, following every
// implementation of every callee regardless of the tainted arguments. It bounds the number of methods the search can
// visit.
func (s *Searcher) ReachableMethods(sources []frameworks.Source) int {
	successors := func(m lang.MethodHandle) []lang.MethodHandle {
		next := inheritance.MethodSet{}
		for _, e := range s.Graph.From(m) {
			for _, impl := range s.Finder.Implementations(e.Callee) {
				next[impl] = true
			}
		}
		return next.Sorted()
	}
	nodes := inheritance.MethodSet{}
	for _, c := range s.Graph.Callers() {
		nodes[c] = true
		for _, n := range successors(c) {
			nodes[n] = true
		}
	}
	for _, src := range sources {
		nodes[src.Method] = true
	}
	g, ids := graphutil.NewCGraph(nodes.Sorted(), successors, lang.MethodHandle.String)

	reached := map[int64]bool{}
	bf := traverse.BreadthFirst{Visit: func(n graph.Node) { reached[n.ID()] = true }}
	for _, src := range sources {
		if id := ids[src.Method]; !reached[id] {
			bf.Walk(g, g.Node(id), nil)
		}
	}
	return len(reached)
}
