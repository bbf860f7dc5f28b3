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
	"sync"

	"github.com/awslabs/ar-jvm-gadgets/analysis/dataflow"
	"github.com/awslabs/ar-jvm-gadgets/analysis/inheritance"
	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
)

// xstream is XStream with its default configuration, where XML tags name arbitrary classes.
type xstream struct{}

func (xstream) Name() string { return "xstream" }

// SerializableDecider accepts the classes whose dotted name is a valid XML tag name.
func (xstream) SerializableDecider(*Env) dataflow.Decider {
	return DeciderFunc(func(c lang.ClassHandle) bool { return IsValidXMLName(c.DottedName()) })
}

func (x xstream) ImplementationFinder(env *Env) ImplementationFinder {
	return &overrideFinder{env: env, decider: x.SerializableDecider(env)}
}

// SourceDiscovery returns the entry points of the native Java serialization.
func (xstream) SourceDiscovery(env *Env) []Source {
	return javaSerialization{}.SourceDiscovery(env)
}

// customXstream is XStream restricted by a CustomXstreamDecider, with the sources of the default configuration.
type customXstream struct{ xstream }

func (customXstream) Name() string { return "xstream-custom" }

func (customXstream) SerializableDecider(env *Env) dataflow.Decider {
	return NewCustomXstreamDecider(env)
}

func (x customXstream) ImplementationFinder(env *Env) ImplementationFinder {
	return &overrideFinder{env: env, decider: x.SerializableDecider(env)}
}

// IsValidXMLName returns true if name matches the Name production of the XML specification.
func IsValidXMLName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if i == 0 && !isNameStartChar(r) {
			return false
		}
		if !isNameChar(r) {
			return false
		}
	}
	return true
}

func isNameStartChar(r rune) bool {
	return r == ':' || ('A' <= r && r <= 'Z') || r == '_' || ('a' <= r && r <= 'z') ||
		(0xC0 <= r && r <= 0xD6) || (0xD8 <= r && r <= 0xF6) || (0xF8 <= r && r <= 0x2FF) ||
		(0x370 <= r && r <= 0x37D) || (0x37F <= r && r <= 0x1FFF) || (0x200C <= r && r <= 0x200D) ||
		(0x2070 <= r && r <= 0x218F) || (0x2C00 <= r && r <= 0x2FEF) || (0x3001 <= r && r <= 0xD7FF) ||
		(0xF900 <= r && r <= 0xFDCF) || (0xFDF0 <= r && r <= 0xFFFD) || (0x10000 <= r && r <= 0xEFFFF)
}

func isNameChar(r rune) bool {
	return isNameStartChar(r) || r == '-' || r == '.' || ('0' <= r && r <= '9') || r == 0xB7 ||
		(0x300 <= r && r <= 0x36F) || (0x203F <= r && r <= 0x2040)
}

// CustomXstreamDecider is a stricter XStream policy, modelled on an application that only accepts classes whose
// fields are all themselves acceptable: strings and classes outside the classpath are accepted; arrays,
// java.lang.Class, and classes with a synthetic field (a field whose name contains '$') are rejected; a class is
// accepted if the types of its fields and its ancestors are. Classes that reference themselves are rejected.
// It is safe for concurrent use.
type CustomXstreamDecider struct {
	classes     map[lang.ClassHandle]lang.ClassInfo
	inheritance *inheritance.Index

	mu    sync.Mutex
	cache map[lang.ClassHandle]bool
}

// NewCustomXstreamDecider returns a decider for the classes of the environment
func NewCustomXstreamDecider(env *Env) *CustomXstreamDecider {
	return &CustomXstreamDecider{
		classes:     env.Classes,
		inheritance: env.Inheritance,
		cache:       map[lang.ClassHandle]bool{},
	}
}

// IsSerializable implements dataflow.Decider
func (d *CustomXstreamDecider) IsSerializable(c lang.ClassHandle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.decide(c, map[lang.ClassHandle]bool{})
}

func (d *CustomXstreamDecider) decide(c lang.ClassHandle, visiting map[lang.ClassHandle]bool) (res bool) {
	if v, ok := d.cache[c]; ok {
		return v
	}
	if visiting[c] {
		d.cache[c] = false
		return false
	}
	defer func() { d.cache[c] = res }()

	if c == "java/lang/String" {
		return true
	}
	if c == "java/lang/Class" || (len(c) > 0 && c[0] == '[') {
		return false
	}
	info, ok := d.classes[c]
	if !ok {
		return true
	}
	visiting[c] = true
	defer delete(visiting, c)
	for _, m := range info.Members {
		if strings.ContainsRune(m.Name, '$') || !d.decide(m.Type, visiting) {
			return false
		}
	}
	ancestors, _ := d.inheritance.SuperClasses(c)
	for _, a := range ancestors.Sorted() {
		if !d.decide(a, visiting) {
			return false
		}
	}
	return true
}
