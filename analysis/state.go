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

package analysis

import (
	"errors"
	"fmt"
	"sync"

	"github.com/awslabs/ar-jvm-gadgets/analysis/callgraph"
	"github.com/awslabs/ar-jvm-gadgets/analysis/classfile"
	"github.com/awslabs/ar-jvm-gadgets/analysis/config"
	"github.com/awslabs/ar-jvm-gadgets/analysis/dataflow"
	"github.com/awslabs/ar-jvm-gadgets/analysis/frameworks"
	"github.com/awslabs/ar-jvm-gadgets/analysis/inheritance"
	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
	"github.com/awslabs/ar-jvm-gadgets/analysis/store"
	"github.com/awslabs/ar-jvm-gadgets/analysis/summaries"
)

// ErrMissingClasspath is returned when a phase needs the class files but no classpath was given
var ErrMissingClasspath = errors.New("no classpath to analyze")

// State holds the results of the phases of a gadget chain analysis. Each phase fills its part of the state, either by
// computing it or, in resume mode, by loading the artifact of a previous run.
type State struct {
	// The logger used during the analysis
	Logger *config.LogGroup

	// The configuration of the analysis
	Config *config.Config

	// Framework is the deserialization framework whose policies are used
	Framework frameworks.Framework

	// Store is where the artifacts are written and read
	Store store.Store

	// Classpath lists the directories and archives of the classes to analyze
	Classpath []string

	Classes     map[lang.ClassHandle]lang.ClassInfo
	Methods     map[lang.MethodHandle]lang.MethodInfo
	Inheritance *inheritance.Index
	Overrides   inheritance.OverrideIndex
	Passthrough summaries.Passthrough
	CallGraph   *callgraph.Graph
	Sources     []frameworks.Source

	// files are the parsed class files, loaded only by the phases that interpret bytecode
	files []*classfile.File

	// Stats of the phases that ran
	Stats Stats

	// done records the phases whose results are in the state
	done map[string]bool

	// Stored errors
	errors     []error
	errorMutex sync.Mutex
}

// NewState returns a state for the configuration, with the framework and the output directory of the configuration
func NewState(cfg *config.Config, logger *config.LogGroup, classpath []string) (*State, error) {
	fw, err := frameworks.Lookup(cfg.Framework)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	s, err := store.New(cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	return &State{
		Logger:    logger,
		Config:    cfg,
		Framework: fw,
		Store:     s,
		Classpath: classpath,
		done:      map[string]bool{},
	}, nil
}

// AddError records errors that do not stop the analysis
func (s *State) AddError(errs ...error) {
	s.errorMutex.Lock()
	defer s.errorMutex.Unlock()
	for _, e := range errs {
		if e != nil {
			s.errors = append(s.errors, e)
		}
	}
}

// Errors returns the errors recorded so far
func (s *State) Errors() []error {
	s.errorMutex.Lock()
	defer s.errorMutex.Unlock()
	return append([]error(nil), s.errors...)
}

// env returns the classpath information the framework policies need
func (s *State) env() *frameworks.Env {
	return &frameworks.Env{
		Classes:     s.Classes,
		Methods:     s.Methods,
		Inheritance: s.Inheritance,
		Overrides:   s.Overrides,
	}
}

// fieldOracle returns the field oracle of the framework's serializability rules
func (s *State) fieldOracle() *dataflow.FieldOracle {
	return dataflow.NewFieldOracle(s.Classes, s.Inheritance, s.Framework.SerializableDecider(s.env()))
}

// resumes returns true if the artifacts can be loaded instead of computed
func (s *State) resumes(artifacts ...string) bool {
	return s.Config.Resume && s.Store.Exists(artifacts...)
}
