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

package store

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/awslabs/ar-jvm-gadgets/analysis/callgraph"
	"github.com/awslabs/ar-jvm-gadgets/analysis/frameworks"
	"github.com/awslabs/ar-jvm-gadgets/analysis/inheritance"
	"github.com/awslabs/ar-jvm-gadgets/analysis/summaries"
	"github.com/awslabs/ar-jvm-gadgets/analysis/taint"
)

// WritePassthrough writes the passthrough artifact: the method, then its passthrough arguments, each followed by a
// comma. Methods with empty summaries are not written.
func (s Store) WritePassthrough(p summaries.Passthrough) error {
	return s.writeRecords(PassthroughFile, func(w *csv.Writer) error {
		for _, m := range p.Methods() {
			var args strings.Builder
			for _, a := range p.Args(m) {
				args.WriteString(strconv.Itoa(a))
				args.WriteByte(',')
			}
			if args.Len() == 0 {
				continue
			}
			if err := w.Write(append(methodFields(m), args.String())); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadPassthrough reads the passthrough artifact
func (s Store) ReadPassthrough() (summaries.Passthrough, error) {
	p := summaries.Passthrough{}
	err := s.readRecords(PassthroughFile, 4, func(fields []string) error {
		args := summaries.NewArgSet()
		for _, a := range splitList(fields[3], ",") {
			i, err := strconv.Atoi(a)
			if err != nil {
				return err
			}
			args.Add(i)
		}
		p.Set(parseMethod(fields), args)
		return nil
	})
	return p, err
}

// WriteCallGraph writes the call graph artifact: the caller, the callee, the caller argument, the path in the
// caller argument and the callee argument
func (s Store) WriteCallGraph(g *callgraph.Graph) error {
	return s.writeRecords(CallGraphFile, func(w *csv.Writer) error {
		for _, e := range g.Edges() {
			fields := make([]string, 0, 9)
			fields = append(fields, methodFields(e.Caller)...)
			fields = append(fields, methodFields(e.Callee)...)
			fields = append(fields, strconv.Itoa(e.CallerArg), e.CallerPath, strconv.Itoa(e.CalleeArg))
			if err := w.Write(fields); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadCallGraph reads the call graph artifact
func (s Store) ReadCallGraph() (*callgraph.Graph, error) {
	g := callgraph.NewGraph()
	err := s.readRecords(CallGraphFile, 9, func(fields []string) error {
		callerArg, err := strconv.Atoi(fields[6])
		if err != nil {
			return err
		}
		calleeArg, err := strconv.Atoi(fields[8])
		if err != nil {
			return err
		}
		g.Add(callgraph.Edge{
			Caller:     parseMethod(fields[0:3]),
			Callee:     parseMethod(fields[3:6]),
			CallerArg:  callerArg,
			CallerPath: fields[7],
			CalleeArg:  calleeArg,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// WriteSources writes the sources artifact: the method and the index of its tainted argument
func (s Store) WriteSources(sources []frameworks.Source) error {
	return s.writeRecords(SourcesFile, func(w *csv.Writer) error {
		for _, src := range sources {
			if err := w.Write(append(methodFields(src.Method), strconv.Itoa(src.Arg))); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadSources reads the sources artifact, in the order they were written
func (s Store) ReadSources() ([]frameworks.Source, error) {
	var sources []frameworks.Source
	err := s.readRecords(SourcesFile, 4, func(fields []string) error {
		arg, err := strconv.Atoi(fields[3])
		if err != nil {
			return err
		}
		sources = append(sources, frameworks.Source{Method: parseMethod(fields), Arg: arg})
		return nil
	})
	return sources, err
}

// WriteMethodImpls writes the overrides of every method: a record with the method, followed by one record per
// override starting with an empty field.
func (s Store) WriteMethodImpls(overrides inheritance.OverrideIndex) error {
	return s.writeRecords(MethodImplFile, func(w *csv.Writer) error {
		for _, m := range overrides.Methods() {
			if err := w.Write(methodFields(m)); err != nil {
				return err
			}
			for _, impl := range overrides[m].Sorted() {
				if err := w.Write(append([]string{""}, methodFields(impl)...)); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// WriteChains writes the gadget chains report
func (s Store) WriteChains(chains []taint.Chain) error {
	return s.create(ChainsFile, func(w io.Writer) error {
		return taint.WriteChains(w, chains)
	})
}

// WriteReport writes the JSON report of a search in the file name
func (s Store) WriteReport(name string, r taint.Report) error {
	return s.create(name, r.WriteJSON)
}
