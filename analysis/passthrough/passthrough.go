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

// Package passthrough computes the passthrough summaries of the methods of a classpath: for each method, the
// argument positions whose taint can reach the value the method returns. Methods are summarized callees first, so
// that the summary of a callee is available when its callers are interpreted. Recursive calls are resolved with
// whatever summary the callee has at that point, which is none for the first method of a cycle.
package passthrough

import (
	"context"

	cf "github.com/awslabs/ar-jvm-gadgets/analysis/classfile"
	"github.com/awslabs/ar-jvm-gadgets/analysis/config"
	"github.com/awslabs/ar-jvm-gadgets/analysis/dataflow"
	"github.com/awslabs/ar-jvm-gadgets/analysis/inheritance"
	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
	"github.com/awslabs/ar-jvm-gadgets/analysis/summaries"
	"github.com/awslabs/ar-jvm-gadgets/internal/graphutil"
	"github.com/yourbasic/graph"
)

// Summarizer computes passthrough summaries.
type Summarizer struct {
	// Oracle decides which field reads carry the taint of their receiver. If nil, every field read does.
	Oracle *dataflow.FieldOracle

	// Inheritance enables the collection heuristic of the interpreter. It may be nil.
	Inheritance *inheritance.Index

	Logger *config.LogGroup
}

// Stats are the statistics of a summarization
type Stats struct {
	// Methods is the number of methods with code
	Methods int
	// Summarized is the number of methods with a non-empty summary
	Summarized int
	// Failed is the number of methods that could not be decoded or interpreted
	Failed int
	// RecursiveComponents is the number of strongly connected components of the call map that contain a cycle
	RecursiveComponents int
}

// returnPolicy labels each parameter with its position and collects the labels of returned values.
type returnPolicy struct {
	dataflow.BasePolicy[int]
	oracle   *dataflow.FieldOracle
	returned *summaries.ArgSet
}

func (p *returnPolicy) SeedParameter(arg int) []int {
	return []int{arg}
}

func (p *returnPolicy) FieldRead(field dataflow.FieldRef, receiver *dataflow.TaintSet[int]) *dataflow.TaintSet[int] {
	if p.oracle != nil && !p.oracle.Taintable(field) {
		return dataflow.NewTaintSet[int]()
	}
	return receiver
}

func (p *returnPolicy) Return(_ cf.Opcode, value *dataflow.TaintSet[int]) {
	if value == nil {
		return
	}
	value.Each(func(arg int) { p.returned.Add(arg) })
}

// Summarize computes the summaries of every method with code in the classes. Errors are per method and do not
// stop the summarization; a method whose interpretation fails has no summary. Summarize returns early with the
// summaries computed so far if the context is cancelled.
func (s *Summarizer) Summarize(ctx context.Context, classes []*cf.File) (summaries.Passthrough, Stats, []error) {
	var stats Stats
	var errs []error
	byHandle := map[lang.MethodHandle]*dataflow.Method{}
	var methods []*dataflow.Method
	for _, c := range classes {
		ms, merrs := dataflow.ClassMethods(c)
		errs = append(errs, merrs...)
		stats.Failed += len(merrs)
		for _, m := range ms {
			byHandle[m.Handle] = m
			methods = append(methods, m)
		}
	}
	stats.Methods = len(methods) + stats.Failed

	calls := MethodCalls(methods)
	order := TopologicalSort(calls)
	stats.RecursiveComponents = recursiveComponents(calls)
	s.Logger.Debugf("Call map: %d methods, %d recursive components", len(calls), stats.RecursiveComponents)

	result := summaries.Passthrough{}
	it := &dataflow.Interpreter[int]{Inheritance: s.Inheritance, Passthrough: result}
	for i, h := range order {
		if h.Name == lang.StaticInitializerName {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		policy := &returnPolicy{oracle: s.Oracle, returned: summaries.NewArgSet()}
		it.Policy = policy
		if err := it.Run(byHandle[h]); err != nil {
			stats.Failed++
			errs = append(errs, err)
			s.Logger.Warnf("Could not summarize %s: %v", h, err)
			continue
		}
		result.Set(h, policy.returned)
		if (i+1)%10000 == 0 {
			s.Logger.Debugf("Summarized %d/%d methods", i+1, len(order))
		}
	}
	stats.Summarized = len(result)
	s.Logger.Infof("Summarized %d methods, %d with passthrough, %d failures", stats.Methods, stats.Summarized,
		stats.Failed)
	return result, stats, errs
}

// recursiveComponents counts the strongly connected components of the call map that contain a cycle
func recursiveComponents(calls CallMap) int {
	methods := calls.Methods()
	g, _ := graphutil.NewCGraph(methods, calls.Successors, lang.MethodHandle.String)
	n := 0
	for _, comp := range graph.StrongComponents(g) {
		if len(comp) > 1 || calls[methods[comp[0]]][methods[comp[0]]] {
			n++
		}
	}
	return n
}
