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

// Package analysis runs the phases of a gadget chain analysis: class discovery, inheritance resolution, passthrough
// summaries, call graph construction, source discovery and chain search. Every phase writes its results in the
// output directory, and in resume mode a phase whose results exist loads them instead of running.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/awslabs/ar-jvm-gadgets/analysis/callgraph"
	"github.com/awslabs/ar-jvm-gadgets/analysis/inheritance"
	"github.com/awslabs/ar-jvm-gadgets/analysis/loader"
	"github.com/awslabs/ar-jvm-gadgets/analysis/passthrough"
	"github.com/awslabs/ar-jvm-gadgets/analysis/store"
	"github.com/awslabs/ar-jvm-gadgets/analysis/summaries"
	"github.com/awslabs/ar-jvm-gadgets/analysis/taint"
)

// Names of the phases, used in logs and errors
const (
	DiscoveryPhase   = "discovery"
	InheritancePhase = "inheritance"
	PassthroughPhase = "passthrough"
	CallGraphPhase   = "callgraph"
	SourcesPhase     = "sources"
	SearchPhase      = "search"
)

// Stats are the statistics of the phases of an analysis. The statistics of a phase whose results were loaded are
// zero.
type Stats struct {
	Discovery   loader.Stats
	Passthrough passthrough.Stats
	CallGraph   callgraph.Stats
	Sources     int
	Search      taint.Stats
}

// Result is the result of an analysis
type Result struct {
	Chains []taint.Chain
	Stats  Stats
	// Errors are the errors that did not stop the analysis: class files or methods that could not be analyzed, or a
	// search that stopped early
	Errors []error
}

// Run runs all the phases of the analysis. Unless the configuration resumes a previous run, the artifacts of previous
// runs in the output directory are deleted first.
func Run(ctx context.Context, s *State) (Result, error) {
	if !s.Config.Resume {
		if err := s.Store.Remove(store.Artifacts...); err != nil {
			return Result{}, fmt.Errorf("could not delete previous results: %w", err)
		}
	}
	for _, phase := range []func(context.Context) error{
		s.DiscoverClasses,
		s.DeriveInheritance,
		s.SummarizePassthrough,
		s.BuildCallGraph,
		s.DiscoverSources,
	} {
		if err := phase(ctx); err != nil {
			return Result{Stats: s.Stats, Errors: s.Errors()}, err
		}
	}
	chains, err := s.SearchChains(ctx)
	return Result{Chains: chains, Stats: s.Stats, Errors: s.Errors()}, err
}

// phase runs compute, or load if the artifacts of the phase can be resumed. A phase runs at most once per state.
func (s *State) phase(name string, artifacts []string, load func() error, compute func() error) error {
	if s.done[name] {
		return nil
	}
	start := time.Now()
	logger := s.Logger.With("phase", name)
	if s.resumes(artifacts...) {
		if err := load(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		logger.Infof("Loaded %s results from %s", name, s.Store.Dir)
	} else {
		logger.Infof("Starting %s ...", name)
		if err := compute(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		logger.Infof("%s done (%.2f s).", name, time.Since(start).Seconds())
	}
	s.done[name] = true
	return nil
}

// LoadClassFiles enumerates and parses the class files of the classpath. The classes and methods of the state are
// set from the class files unless they were already loaded.
func (s *State) LoadClassFiles(ctx context.Context) error {
	if s.files != nil {
		return nil
	}
	if len(s.Classpath) == 0 {
		return ErrMissingClasspath
	}
	cp, err := loader.Enumerate(s.Classpath)
	if err != nil {
		return err
	}
	defer cp.Close()
	d := &loader.Discoverer{Exclude: s.Config.IsExcluded, NumWorkers: s.Config.NumWorkers, Logger: s.Logger}
	discovery, stats, errs := d.Discover(ctx, cp.Resources)
	s.AddError(errs...)
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Stats.Discovery = stats
	s.files = discovery.Files
	if s.Classes == nil {
		s.Classes = discovery.Classes
		s.Methods = discovery.Methods
	}
	return nil
}

// DiscoverClasses finds the classes and methods of the classpath
func (s *State) DiscoverClasses(ctx context.Context) error {
	return s.phase(DiscoveryPhase, []string{store.ClassesFile, store.MethodsFile},
		func() (err error) {
			if s.Classes, err = s.Store.ReadClasses(); err != nil {
				return err
			}
			s.Methods, err = s.Store.ReadMethods()
			return err
		},
		func() error {
			if err := s.LoadClassFiles(ctx); err != nil {
				return err
			}
			if err := s.Store.WriteClasses(s.Classes); err != nil {
				return err
			}
			return s.Store.WriteMethods(s.Methods)
		})
}

// DeriveInheritance computes the ancestors of every class and the overrides of every method
func (s *State) DeriveInheritance(ctx context.Context) error {
	if err := s.DiscoverClasses(ctx); err != nil {
		return err
	}
	return s.phase(InheritancePhase, []string{store.InheritanceFile, store.MethodImplFile},
		func() (err error) {
			if s.Inheritance, err = s.Store.ReadInheritance(); err != nil {
				return err
			}
			s.Overrides = inheritance.Overrides(s.Inheritance, s.Methods)
			return nil
		},
		func() error {
			s.Inheritance = inheritance.Derive(s.Classes, s.Logger)
			s.Overrides = inheritance.Overrides(s.Inheritance, s.Methods)
			if err := s.Store.WriteInheritance(s.Inheritance); err != nil {
				return err
			}
			return s.Store.WriteMethodImpls(s.Overrides)
		})
}

// SummarizePassthrough computes which arguments of each method flow to its return value
func (s *State) SummarizePassthrough(ctx context.Context) error {
	if err := s.DeriveInheritance(ctx); err != nil {
		return err
	}
	return s.phase(PassthroughPhase, []string{store.PassthroughFile},
		func() (err error) {
			s.Passthrough, err = s.Store.ReadPassthrough()
			return err
		},
		func() error {
			if err := s.LoadClassFiles(ctx); err != nil {
				return err
			}
			summarizer := &passthrough.Summarizer{
				Oracle:      s.fieldOracle(),
				Inheritance: s.Inheritance,
				Logger:      s.Logger,
			}
			p, stats, errs := summarizer.Summarize(ctx, s.files)
			s.AddError(errs...)
			if err := ctx.Err(); err != nil {
				return err
			}
			if p == nil {
				p = summaries.Passthrough{}
			}
			s.Passthrough = p
			s.Stats.Passthrough = stats
			return s.Store.WritePassthrough(p)
		})
}

// BuildCallGraph records, for every call site, which arguments of the caller flow to which arguments of the callee
func (s *State) BuildCallGraph(ctx context.Context) error {
	if s.resumes(store.CallGraphFile) {
		if err := s.DeriveInheritance(ctx); err != nil {
			return err
		}
	} else if err := s.SummarizePassthrough(ctx); err != nil {
		return err
	}
	return s.phase(CallGraphPhase, []string{store.CallGraphFile},
		func() (err error) {
			s.CallGraph, err = s.Store.ReadCallGraph()
			return err
		},
		func() error {
			if err := s.LoadClassFiles(ctx); err != nil {
				return err
			}
			builder := &callgraph.Builder{
				Oracle:      s.fieldOracle(),
				Inheritance: s.Inheritance,
				Passthrough: s.Passthrough,
				NumWorkers:  s.Config.NumWorkers,
				Logger:      s.Logger,
			}
			g, stats, errs := builder.Build(ctx, s.files)
			s.AddError(errs...)
			if err := ctx.Err(); err != nil {
				return err
			}
			s.CallGraph = g
			s.Stats.CallGraph = stats
			return s.Store.WriteCallGraph(g)
		})
}

// DiscoverSources finds the entry points of the framework's deserialization
func (s *State) DiscoverSources(ctx context.Context) error {
	if err := s.DeriveInheritance(ctx); err != nil {
		return err
	}
	return s.phase(SourcesPhase, []string{store.SourcesFile},
		func() (err error) {
			s.Sources, err = s.Store.ReadSources()
			s.Stats.Sources = len(s.Sources)
			return err
		},
		func() error {
			s.Sources = s.Framework.SourceDiscovery(s.env())
			s.Stats.Sources = len(s.Sources)
			s.Logger.Infof("Found %d sources for %s", len(s.Sources), s.Framework.Name())
			return s.Store.WriteSources(s.Sources)
		})
}

// SearchChains searches the gadget chains from the sources and writes them in the output directory. If the search
// budget of the configuration is exhausted, the chains found so far are written and returned, and the error is
// recorded in the state.
func (s *State) SearchChains(ctx context.Context) ([]taint.Chain, error) {
	if err := s.BuildCallGraph(ctx); err != nil {
		return nil, err
	}
	if err := s.DiscoverSources(ctx); err != nil {
		return nil, err
	}
	searchCtx := ctx
	if d := s.Config.SearchTimeoutDuration(); d > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	s.Logger.Infof("Starting %s ...", SearchPhase)
	start := time.Now()
	searcher := &taint.Searcher{
		Graph:         s.CallGraph,
		Finder:        s.Framework.ImplementationFinder(s.env()),
		Sinks:         taint.SinkTable{Inheritance: s.Inheritance, Config: s.Config},
		MaxIterations: s.Config.MaxSearchIterations,
		Logger:        s.Logger,
	}
	chains, stats, err := searcher.Search(searchCtx, s.Sources)
	s.Stats.Search = stats
	if err != nil {
		if !errors.Is(err, taint.ErrSearchBudgetExhausted) {
			return nil, fmt.Errorf("%s: %w", SearchPhase, err)
		}
		s.Logger.Warnf("Search stopped early, the chains are incomplete: %v", err)
		s.AddError(err)
	}
	if err := s.Store.WriteChains(chains); err != nil {
		return chains, fmt.Errorf("%s: %w", SearchPhase, err)
	}
	if s.Config.ReportJSON != "" {
		report := taint.NewReport(s.Framework.Name(), chains, stats)
		if err := s.Store.WriteReport(s.Config.ReportJSON, report); err != nil {
			return chains, fmt.Errorf("%s: %w", SearchPhase, err)
		}
	}
	s.Logger.Infof("%s done (%.2f s), chains written to %s", SearchPhase, time.Since(start).Seconds(),
		s.Store.Path(store.ChainsFile))
	return chains, nil
}
