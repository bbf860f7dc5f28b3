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
	"regexp"
	"strings"

	"github.com/awslabs/ar-jvm-gadgets/analysis/dataflow"
	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
)

var setterDesc = regexp.MustCompile(`^\(L[^;]*;\)V$`)

// jackson is the Jackson JSON data binding with polymorphic typing: any class with a no-argument constructor can be
// instantiated, and its setters and getters are called.
type jackson struct{}

func (jackson) Name() string { return "jackson" }

// SerializableDecider accepts the classes declaring a no-argument constructor.
func (jackson) SerializableDecider(env *Env) dataflow.Decider {
	withDefaultConstructor := map[lang.ClassHandle]bool{}
	for m := range env.Methods {
		if m.Name == lang.ConstructorName && m.Desc == "()V" {
			withDefaultConstructor[m.Class] = true
		}
	}
	return DeciderFunc(func(c lang.ClassHandle) bool { return withDefaultConstructor[c] })
}

// ImplementationFinder returns the target only when its class can be instantiated: Jackson picks the class itself,
// so no other override is reachable.
func (j jackson) ImplementationFinder(env *Env) ImplementationFinder {
	return &targetFinder{decider: j.SerializableDecider(env)}
}

func (j jackson) SourceDiscovery(env *Env) []Source {
	decider := j.SerializableDecider(env)
	sources := sourceSet{}
	for m := range env.Methods {
		if !decider.IsSerializable(m.Class) {
			continue
		}
		if (m.Name == lang.ConstructorName && m.Desc == "()V") ||
			(strings.HasPrefix(m.Name, "get") && strings.HasPrefix(m.Desc, "()")) ||
			(strings.HasPrefix(m.Name, "set") && setterDesc.MatchString(m.Desc)) {
			sources.add(m, 0)
		}
	}
	return sources.sorted()
}

type targetFinder struct {
	decider dataflow.Decider
}

func (f *targetFinder) Implementations(target lang.MethodHandle) []lang.MethodHandle {
	if f.decider.IsSerializable(target.Class) {
		return []lang.MethodHandle{target}
	}
	return nil
}
