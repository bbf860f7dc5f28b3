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

// Package callgraph builds the taint call graph of a classpath. Every method is interpreted with its arguments
// labelled by position; at every call site, each label reaching an argument of the call becomes an edge from the
// labelled caller argument to the callee argument. Field reads extend labels with the name of the field, so that an
// edge records that a field of a caller argument, rather than the argument itself, is passed to the callee.
package callgraph

import (
	"context"

	cf "github.com/awslabs/ar-jvm-gadgets/analysis/classfile"
	"github.com/awslabs/ar-jvm-gadgets/analysis/config"
	"github.com/awslabs/ar-jvm-gadgets/analysis/dataflow"
	"github.com/awslabs/ar-jvm-gadgets/analysis/inheritance"
	"github.com/awslabs/ar-jvm-gadgets/analysis/summaries"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxPathDepth is the default bound on the number of fields in a label path.
const DefaultMaxPathDepth = 5

// Builder builds call graphs. A Builder can be used concurrently once configured.
type Builder struct {
	// Oracle decides which field reads carry the taint of their receiver. If nil, every field read does.
	Oracle *dataflow.FieldOracle

	// Inheritance enables the collection heuristic of the interpreter. It may be nil.
	Inheritance *inheritance.Index

	// Passthrough are the summaries used at call sites. They are only read.
	Passthrough summaries.Passthrough

	// NumWorkers is the maximum number of classes analyzed in parallel. Values below 1 mean 1.
	NumWorkers int

	// MaxPathDepth bounds the number of fields in the path of a label: reading a field from a value whose label
	// is at the bound leaves the label unchanged. Zero means DefaultMaxPathDepth.
	MaxPathDepth int

	Logger *config.LogGroup
}

// Stats are the statistics of a call graph construction
type Stats struct {
	Classes int
	Methods int
	Failed  int
	Edges   int
}

// edgePolicy labels arguments with Label values and records an edge for every label passed to a callee
type edgePolicy struct {
	dataflow.BasePolicy[Label]
	oracle   *dataflow.FieldOracle
	maxDepth int
	graph    *Graph
}

func (p *edgePolicy) SeedParameter(arg int) []Label {
	return []Label{{Arg: arg}}
}

func (p *edgePolicy) FieldRead(field dataflow.FieldRef, receiver *dataflow.TaintSet[Label]) *dataflow.TaintSet[Label] {
	res := dataflow.NewTaintSet[Label]()
	if p.oracle != nil && !p.oracle.Taintable(field) {
		return res
	}
	receiver.Each(func(l Label) {
		if l.Depth() >= p.maxDepth {
			res.Add(l)
		} else {
			res.Add(l.Field(field.Name))
		}
	})
	return res
}

func (p *edgePolicy) BeforeCall(call dataflow.CallSite[Label]) {
	for i, arg := range call.Args {
		arg.Each(func(l Label) {
			p.graph.Add(Edge{
				Caller:     call.Caller,
				Callee:     call.Callee,
				CallerArg:  l.Arg,
				CallerPath: l.Path,
				CalleeArg:  i,
			})
		})
	}
}

// classResult is what the analysis of one class produces; each class is analyzed by a single goroutine
type classResult struct {
	graph   *Graph
	methods int
	errs    []error
}

// Build builds the call graph of the methods of the classes. Classes are analyzed in parallel. Errors in a method
// are returned and the edges found in the method before the error are kept. Build stops early if the context is
// cancelled and returns the context error along with the edges found so far.
func (b *Builder) Build(ctx context.Context, classes []*cf.File) (*Graph, Stats, []error) {
	workers := b.NumWorkers
	if workers < 1 {
		workers = 1
	}
	results := make([]classResult, len(classes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, c := range classes {
		if gctx.Err() != nil {
			break
		}
		i, c := i, c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = b.buildClass(c)
			return nil
		})
	}
	waitErr := g.Wait()

	graph := NewGraph()
	stats := Stats{Classes: len(classes)}
	var errs []error
	for _, r := range results {
		if r.graph != nil {
			graph.Merge(r.graph)
		}
		stats.Methods += r.methods
		stats.Failed += len(r.errs)
		errs = append(errs, r.errs...)
	}
	if waitErr == nil {
		waitErr = ctx.Err()
	}
	if waitErr != nil {
		errs = append(errs, waitErr)
	}
	stats.Edges = graph.Len()
	b.Logger.Infof("Call graph: %d classes, %d methods, %d edges, %d failures", stats.Classes, stats.Methods,
		stats.Edges, stats.Failed)
	return graph, stats, errs
}

func (b *Builder) buildClass(c *cf.File) classResult {
	methods, errs := dataflow.ClassMethods(c)
	res := classResult{graph: NewGraph(), methods: len(methods) + len(errs), errs: errs}
	maxDepth := b.MaxPathDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxPathDepth
	}
	policy := &edgePolicy{oracle: b.Oracle, maxDepth: maxDepth, graph: res.graph}
	it := &dataflow.Interpreter[Label]{Policy: policy, Inheritance: b.Inheritance, Passthrough: b.Passthrough}
	for _, m := range methods {
		if err := it.Run(m); err != nil {
			b.Logger.Warnf("Call graph of %s is incomplete: %v", m.Handle, err)
			res.errs = append(res.errs, err)
		}
	}
	return res
}
