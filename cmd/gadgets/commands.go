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

package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/awslabs/ar-jvm-gadgets/analysis"
	"github.com/awslabs/ar-jvm-gadgets/analysis/store"
	"github.com/awslabs/ar-jvm-gadgets/analysis/taint"
	"github.com/awslabs/ar-jvm-gadgets/internal/formatutil"
	"github.com/spf13/cobra"
)

// phase is a command running a single phase of the analysis. The results of the phases it depends on are loaded
// from the output directory when they exist.
type phase struct {
	name     string
	short    string
	artifact string
	run      phaseFunc
}

type phaseFunc func(s *analysis.State, ctx context.Context) ([]taint.Chain, error)

// noChains adapts a phase that finds no chains
func noChains(run func(s *analysis.State, ctx context.Context) error) phaseFunc {
	return func(s *analysis.State, ctx context.Context) ([]taint.Chain, error) {
		return nil, run(s, ctx)
	}
}

var phases = []phase{
	{
		name:     "summarize",
		short:    "Compute which arguments of each method flow to its return value",
		artifact: store.PassthroughFile,
		run:      noChains((*analysis.State).SummarizePassthrough),
	},
	{
		name:     "callgraph",
		short:    "Build the call graph of the tainted arguments",
		artifact: store.CallGraphFile,
		run:      noChains((*analysis.State).BuildCallGraph),
	},
	{
		name:     "sources",
		short:    "Find the methods the deserialization calls on attacker controlled data",
		artifact: store.SourcesFile,
		run:      noChains((*analysis.State).DiscoverSources),
	},
	{
		name:     "search",
		short:    "Search the gadget chains from the sources",
		artifact: store.ChainsFile,
		run:      (*analysis.State).SearchChains,
	},
}

func (a *app) runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [flags] <classpath>...",
		Short: "Run all the phases of the analysis on a classpath of jars, wars, jmods and class directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := analysis.NewState(a.cfg, a.logger, args)
			if err != nil {
				return err
			}
			res, err := analysis.Run(cmd.Context(), s)
			if err != nil {
				return err
			}
			a.printResult(cmd.OutOrStdout(), s, res.Chains, res.Errors)
			return nil
		},
	}
}

func (a *app) phaseCmd(p phase) *cobra.Command {
	return &cobra.Command{
		Use:   p.name + " [flags] [classpath...]",
		Short: p.short,
		Long: p.short + ".\nThe results of the previous phases are loaded from the output directory when they " +
			"exist, otherwise they are computed from the classpath.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.cfg.Resume = true
			s, err := analysis.NewState(a.cfg, a.logger, args)
			if err != nil {
				return err
			}
			if err := s.Store.Remove(p.artifact); err != nil {
				return err
			}
			chains, err := p.run(s, cmd.Context())
			if err != nil {
				return err
			}
			if p.artifact == store.ChainsFile {
				a.printResult(cmd.OutOrStdout(), s, chains, s.Errors())
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", s.Store.Path(p.artifact))
			return nil
		},
	}
}

func (a *app) printResult(w io.Writer, s *analysis.State, chains []taint.Chain, errs []error) {
	if len(chains) == 0 {
		fmt.Fprintf(w, "%s from %d sources\n", formatutil.Green("No gadget chains found"), s.Stats.Sources)
	} else {
		fmt.Fprintf(w, "Found %s gadget chains from %d sources, written to %s\n",
			formatutil.Bold(len(chains)), s.Stats.Sources, s.Store.Path(store.ChainsFile))
	}
	for _, c := range chains {
		fmt.Fprintf(w, "  %s -> %s (%d links)\n", c.Source().Method, formatutil.Red(c.Sink().Method), len(c))
	}
	if len(errs) > 0 {
		fmt.Fprintf(w, "%s %d errors during the analysis, run with --verbose for details\n",
			formatutil.Yellow("warning:"), len(errs))
		for _, err := range errs {
			a.logger.Debugf("%v", err)
		}
	}
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats [flags] <classpath>...",
		Short: "Print statistics about the class files of a classpath",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := analysis.NewState(a.cfg, a.logger, args)
			if err != nil {
				return err
			}
			stats, err := s.ClassFileStatistics(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, row := range []struct {
				label string
				value uint
			}{
				{"classes", stats.NumberOfClasses},
				{"interfaces", stats.NumberOfInterfaces},
				{"methods", stats.NumberOfMethods},
				{"methods with code", stats.NumberOfMethodsWithCode},
				{"basic blocks", stats.NumberOfBlocks},
				{"instructions", stats.NumberOfInstructions},
				{"exception handlers", stats.NumberOfExceptionHandlers},
				{"undecodable methods", stats.NumberOfUndecodableMethods},
				{"methods with subroutines", stats.NumberOfMethodsWithSubroutines},
			} {
				fmt.Fprintf(tw, "%s\t%d\n", row.label, row.value)
			}
			fmt.Fprintf(tw, "class files not loaded\t%d\n", s.Stats.Discovery.Failed)
			return tw.Flush()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of gadgets",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), analysis.Version)
		},
	}
}
