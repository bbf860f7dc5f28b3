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

package frameworks

import (
	"strings"

	"github.com/awslabs/ar-jvm-gadgets/analysis/dataflow"
	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
)

const (
	serializableInterface = lang.ClassHandle("java/io/Serializable")
	invocationHandler     = lang.ClassHandle("java/lang/reflect/InvocationHandler")
	groovyClosure         = lang.ClassHandle("groovy/lang/Closure")

	invokeDesc = "(Ljava/lang/Object;Ljava/lang/reflect/Method;[Ljava/lang/Object;)Ljava/lang/Object;"
)

// blacklistedClasses cannot be deserialized by recent versions of their library
var blacklistedClasses = map[lang.ClassHandle]bool{
	"clojure/core/proxy$clojure/lang/APersistentMap$ff19274a":               true,
	"clojure/inspector/proxy$javax/swing/table/AbstractTableModel$ff19274a": true,
}

// javaSerialization is the native Java serialization, through ObjectInputStream.readObject
type javaSerialization struct{}

func (javaSerialization) Name() string { return "jserial" }

// SerializableDecider returns a decider accepting the subclasses of java.io.Serializable that are not blacklisted.
func (javaSerialization) SerializableDecider(env *Env) dataflow.Decider {
	return &cachedDecider{decide: func(c lang.ClassHandle) bool {
		if strings.HasPrefix(string(c), "com/google/common/collect/") || blacklistedClasses[c] {
			return false
		}
		return env.Inheritance.IsSubclassOf(c, serializableInterface)
	}}
}

func (j javaSerialization) ImplementationFinder(env *Env) ImplementationFinder {
	return &overrideFinder{env: env, decider: j.SerializableDecider(env)}
}

func (j javaSerialization) SourceDiscovery(env *Env) []Source {
	return serializableSources(env, j.SerializableDecider(env))
}

// serializableSources are the entry points of a deserialization of the classes accepted by the decider: finalize,
// readObject, the invoke method of invocation handlers, hashCode and equals (reachable through a hash map), and
// the call methods of groovy closures.
func serializableSources(env *Env, decider dataflow.Decider) []Source {
	sources := sourceSet{}
	for m := range env.Methods {
		if !decider.IsSerializable(m.Class) {
			continue
		}
		switch {
		case m.Name == "finalize" && m.Desc == "()V":
			sources.add(m, 0)
		case m.Name == "readObject" && m.Desc == "(Ljava/io/ObjectInputStream;)V":
			sources.add(m, 1)
		case m.Name == "hashCode" && m.Desc == "()I":
			sources.add(m, 0)
		case m.Name == "equals" && m.Desc == "(Ljava/lang/Object;)Z":
			sources.add(m, 0, 1)
		}
		if (m.Name == "call" || m.Name == "doCall") && env.Inheritance.IsSubclassOf(m.Class, groovyClosure) {
			md, err := lang.ParseMethodDescriptor(m.Desc)
			if err != nil {
				continue
			}
			for i := 0; i <= len(md.Args); i++ {
				sources.add(m, i)
			}
		}
	}
	for c := range env.Classes {
		if decider.IsSerializable(c) && env.Inheritance.IsSubclassOf(c, invocationHandler) {
			sources.add(lang.MethodHandle{Class: c, Name: "invoke", Desc: invokeDesc}, 0)
		}
	}
	return sources.sorted()
}

// overrideFinder dispatches to the target and to the overrides of the target in serializable classes. The target
// itself is always included: the receiver may be a local instance rather than a deserialized one.
type overrideFinder struct {
	env     *Env
	decider dataflow.Decider
}

func (f *overrideFinder) Implementations(target lang.MethodHandle) []lang.MethodHandle {
	impls := map[lang.MethodHandle]bool{target: true}
	for impl := range f.env.Overrides[target] {
		if f.decider.IsSerializable(impl.Class) {
			impls[impl] = true
		}
	}
	return sortedMethods(impls)
}
