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

package taint

import (
	"github.com/awslabs/ar-jvm-gadgets/analysis/config"
	"github.com/awslabs/ar-jvm-gadgets/analysis/inheritance"
	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
)

// A SinkDecider decides whether passing attacker data as argument arg of method m completes a gadget chain.
type SinkDecider interface {
	IsSink(m lang.MethodHandle, arg int) bool
}

// sinkRule matches the methods of one class. A nil arg predicate matches every argument.
type sinkRule struct {
	names []string
	arg   func(int) bool
}

func (r sinkRule) matches(m lang.MethodHandle, arg int) bool {
	if r.arg != nil && !r.arg(arg) {
		return false
	}
	for _, n := range r.names {
		if n == m.Name {
			return true
		}
	}
	return false
}

func argIs(n int) func(int) bool { return func(a int) bool { return a == n } }

// builtinSinks are the sinks of the classes of the standard library and of the scripting languages whose runtime
// turns data into code.
var builtinSinks = map[lang.ClassHandle][]sinkRule{
	"java/io/FileInputStream":  {{names: []string{"<init>"}}},
	"java/io/FileOutputStream": {{names: []string{"<init>"}}},
	"java/nio/file/Files": {
		{names: []string{"newInputStream", "newOutputStream", "newBufferedReader", "newBufferedWriter"}},
	},
	"java/lang/Runtime":                         {{names: []string{"exec", "exit"}}},
	"java/lang/reflect/Method":                  {{names: []string{"invoke"}, arg: argIs(0)}},
	"java/net/URLClassLoader":                   {{names: []string{"newInstance"}}},
	"java/lang/System":                          {{names: []string{"exit"}}},
	"java/lang/Shutdown":                        {{names: []string{"exit"}}},
	"java/lang/ProcessBuilder":                  {{names: []string{"<init>"}, arg: func(a int) bool { return a > 0 }}},
	"java/net/URL":                              {{names: []string{"openStream"}}},
	"org/codehaus/groovy/runtime/InvokerHelper": {{names: []string{"invokeMethod"}, arg: argIs(1)}},
	"org/python/core/PyCode":                    {{names: []string{"call"}}},
}

// builtinSubclassSinks are the sinks of every subclass of a class
var builtinSubclassSinks = map[lang.ClassHandle][]sinkRule{
	"java/lang/ClassLoader": {{names: []string{"<init>"}}},
	"groovy/lang/MetaClass": {{names: []string{"invokeMethod", "invokeConstructor", "invokeStaticMethod"}}},
}

// SinkTable is the table of built-in sinks, extended with the extra sinks of a configuration.
type SinkTable struct {
	// Inheritance resolves the sinks that apply to all subclasses of a class. Nil disables those sinks.
	Inheritance *inheritance.Index

	// Config provides the extra sinks. It may be nil.
	Config *config.Config
}

// IsSink returns true if passing attacker data as argument arg of m is dangerous.
func (t SinkTable) IsSink(m lang.MethodHandle, arg int) bool {
	for _, r := range builtinSinks[m.Class] {
		if r.matches(m, arg) {
			return true
		}
	}
	if t.Inheritance != nil {
		for super, rules := range builtinSubclassSinks {
			if !t.Inheritance.IsSubclassOf(m.Class, super) {
				continue
			}
			for _, r := range rules {
				if r.matches(m, arg) {
					return true
				}
			}
		}
	}
	return t.Config != nil && t.Config.IsExtraSink(m.Class.Name(), m.Name, m.Desc, arg)
}

// SinkFunc adapts a function to the SinkDecider interface
type SinkFunc func(m lang.MethodHandle, arg int) bool

// IsSink returns f(m, arg)
func (f SinkFunc) IsSink(m lang.MethodHandle, arg int) bool { return f(m, arg) }
