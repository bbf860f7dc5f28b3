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

// Package frameworks defines the deserialization frameworks the gadget chain search supports. A framework decides
// which classes an attacker can instantiate, which implementations a virtual call can dispatch to, and which
// methods are the entry points of a deserialization.
package frameworks

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/awslabs/ar-jvm-gadgets/analysis/dataflow"
	"github.com/awslabs/ar-jvm-gadgets/analysis/inheritance"
	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
)

// ErrUnknownFramework is returned by Lookup for names that are not registered frameworks.
var ErrUnknownFramework = errors.New("unknown framework")

// Env is the information about the classpath the framework policies work on.
type Env struct {
	Classes     map[lang.ClassHandle]lang.ClassInfo
	Methods     map[lang.MethodHandle]lang.MethodInfo
	Inheritance *inheritance.Index
	Overrides   inheritance.OverrideIndex
}

// Source is an entry point of a gadget chain: argument Arg of Method is controlled by the attacker.
type Source struct {
	Method lang.MethodHandle
	Arg    int
}

// Less orders sources by method then argument
func (s Source) Less(o Source) bool {
	if s.Method != o.Method {
		return s.Method.Less(o.Method)
	}
	return s.Arg < o.Arg
}

func (s Source) String() string {
	return fmt.Sprintf("%s (%d)", s.Method, s.Arg)
}

// An ImplementationFinder returns the methods a call to target can dispatch to when the receiver was produced by the
// deserialization.
type ImplementationFinder interface {
	Implementations(target lang.MethodHandle) []lang.MethodHandle
}

// Framework is a deserialization framework
type Framework interface {
	Name() string
	SerializableDecider(env *Env) dataflow.Decider
	ImplementationFinder(env *Env) ImplementationFinder
	SourceDiscovery(env *Env) []Source
}

var registry = map[string]Framework{
	javaSerialization{}.Name(): javaSerialization{},
	jackson{}.Name():           jackson{},
	xstream{}.Name():           xstream{},
	customXstream{}.Name():     customXstream{},
}

// Lookup returns the framework with the given name
func Lookup(name string) (Framework, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFramework, name)
	}
	return f, nil
}

// Names returns the names of the registered frameworks, sorted
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DeciderFunc adapts a function to the dataflow.Decider interface
type DeciderFunc func(lang.ClassHandle) bool

// IsSerializable returns f(c)
func (f DeciderFunc) IsSerializable(c lang.ClassHandle) bool { return f(c) }

// cachedDecider memoizes a decider. It is safe for concurrent use if the underlying decider is.
type cachedDecider struct {
	decide func(lang.ClassHandle) bool
	cache  sync.Map // lang.ClassHandle -> bool
}

func (d *cachedDecider) IsSerializable(c lang.ClassHandle) bool {
	if v, ok := d.cache.Load(c); ok {
		return v.(bool)
	}
	res := d.decide(c)
	d.cache.Store(c, res)
	return res
}

// sourceSet accumulates sources without duplicates
type sourceSet map[Source]bool

func (s sourceSet) add(m lang.MethodHandle, args ...int) {
	for _, a := range args {
		s[Source{Method: m, Arg: a}] = true
	}
}

func (s sourceSet) sorted() []Source {
	sources := make([]Source, 0, len(s))
	for src := range s {
		sources = append(sources, src)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Less(sources[j]) })
	return sources
}

func sortedMethods(methods map[lang.MethodHandle]bool) []lang.MethodHandle {
	return inheritance.MethodSet(methods).Sorted()
}
