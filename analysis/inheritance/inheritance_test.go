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

package inheritance

import (
	"bytes"
	"testing"

	"github.com/awslabs/ar-jvm-gadgets/analysis/config"
	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func testLogger() (*config.LogGroup, *bytes.Buffer) {
	c := config.NewDefault()
	c.LogLevel = int(config.DebugLevel)
	l := config.NewLogGroup(c)
	buf := &bytes.Buffer{}
	l.SetAllOutput(buf)
	return l, buf
}

func class(name string, super string, ifaces ...string) lang.ClassInfo {
	c := lang.ClassInfo{Handle: lang.ClassHandle(name), Super: lang.ClassHandle(super)}
	for _, i := range ifaces {
		c.Interfaces = append(c.Interfaces, lang.ClassHandle(i))
	}
	return c
}

func classMap(classes ...lang.ClassInfo) map[lang.ClassHandle]lang.ClassInfo {
	m := map[lang.ClassHandle]lang.ClassInfo{}
	for _, c := range classes {
		m[c.Handle] = c
	}
	return m
}

func sampleClasses() map[lang.ClassHandle]lang.ClassInfo {
	obj := class("java/lang/Object", "")
	ser := class("java/io/Serializable", "java/lang/Object")
	ser.IsInterface = true
	coll := class("java/util/Collection", "java/lang/Object")
	coll.IsInterface = true
	return classMap(obj, ser, coll,
		class("java/util/AbstractList", "java/lang/Object", "java/util/List"),
		class("java/util/List", "java/lang/Object", "java/util/Collection"),
		class("com/example/MyList", "java/util/AbstractList", "java/io/Serializable"),
		class("com/example/Sub", "com/example/MyList"),
		class("com/example/Orphan", "org/missing/Base"))
}

func TestDeriveClosure(t *testing.T) {
	logger, buf := testLogger()
	idx := Derive(sampleClasses(), logger)

	anc, ok := idx.SuperClasses("com/example/Sub")
	assert.True(t, ok)
	assert.Equal(t, []lang.ClassHandle{
		"com/example/MyList",
		"java/io/Serializable",
		"java/lang/Object",
		"java/util/AbstractList",
		"java/util/Collection",
		"java/util/List",
	}, anc.Sorted())
	assert.True(t, idx.IsSubclassOf("com/example/Sub", "java/util/Collection"))
	assert.False(t, idx.IsSubclassOf("com/example/Sub", "com/example/Sub"))
	assert.False(t, idx.IsSubclassOf("java/lang/Object", "com/example/Sub"))

	obj, ok := idx.SuperClasses("java/lang/Object")
	assert.True(t, ok)
	assert.Empty(t, obj)

	_, ok = idx.SuperClasses("org/missing/Base")
	assert.False(t, ok)
	orphan, ok := idx.SuperClasses("com/example/Orphan")
	assert.True(t, ok)
	assert.Empty(t, orphan)
	assert.Contains(t, buf.String(), "org/missing/Base")
}

func TestDeriveSkipsUnresolvableAncestors(t *testing.T) {
	logger, buf := testLogger()
	idx := Derive(classMap(
		class("com/example/Gadget", "java/lang/Object", "java/io/Serializable"),
		class("com/example/Child", "com/example/Gadget", "java/lang/Runnable")), logger)

	anc, ok := idx.SuperClasses("com/example/Gadget")
	assert.True(t, ok)
	assert.Empty(t, anc)
	assert.False(t, idx.IsSubclassOf("com/example/Gadget", "java/io/Serializable"))

	anc, _ = idx.SuperClasses("com/example/Child")
	assert.Equal(t, []lang.ClassHandle{"com/example/Gadget"}, anc.Sorted())
	assert.Empty(t, idx.SubClasses("java/io/Serializable"))
	for _, name := range []string{"java/io/Serializable", "java/lang/Object", "java/lang/Runnable"} {
		assert.Contains(t, buf.String(), name)
	}
}

func TestDeriveIsIdempotent(t *testing.T) {
	logger, _ := testLogger()
	classes := sampleClasses()
	first := Derive(classes, logger).Entries()
	second := Derive(classes, logger).Entries()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("closure differs between runs (-first +second):\n%s", diff)
	}
}

func TestDeriveTerminatesOnCycles(t *testing.T) {
	logger, buf := testLogger()
	idx := Derive(classMap(class("a/A", "a/B"), class("a/B", "a/A")), logger)
	anc, _ := idx.SuperClasses("a/A")
	assert.Equal(t, []lang.ClassHandle{"a/B"}, anc.Sorted())
	assert.Contains(t, buf.String(), "inheritance cycle")
}

func TestSubClasses(t *testing.T) {
	logger, _ := testLogger()
	idx := Derive(sampleClasses(), logger)
	assert.Equal(t, []lang.ClassHandle{"com/example/MyList", "com/example/Sub"},
		idx.SubClasses("java/io/Serializable").Sorted())
	assert.Empty(t, idx.SubClasses("com/example/Sub"))
	assert.Empty(t, idx.SubClasses("org/missing/Base"))
}

func TestNewIndexFromEntries(t *testing.T) {
	logger, _ := testLogger()
	idx := Derive(sampleClasses(), logger)
	ancestors := map[lang.ClassHandle]ClassSet{}
	for _, e := range idx.Entries() {
		s := ClassSet{}
		for _, a := range e.Ancestors {
			s[a] = true
		}
		ancestors[e.Class] = s
	}
	loaded := NewIndex(ancestors)
	assert.Equal(t, idx.Len(), loaded.Len())
	assert.Equal(t, idx.Classes(), loaded.Classes())
	assert.True(t, loaded.IsSubclassOf("com/example/Sub", "java/util/List"))
}

func method(class, name, desc string, static bool) lang.MethodInfo {
	return lang.MethodInfo{Handle: lang.NewMethodHandle(class, name, desc), IsStatic: static}
}

func TestOverrides(t *testing.T) {
	logger, _ := testLogger()
	idx := Derive(classMap(
		class("a/I", "java/lang/Object"),
		class("a/B", "java/lang/Object", "a/I"),
		class("a/C", "java/lang/Object", "a/I"),
		class("a/D", "a/B"),
	), logger)
	methods := map[lang.MethodHandle]lang.MethodInfo{}
	for _, m := range []lang.MethodInfo{
		method("a/I", "m", "(Ljava/lang/Object;)V", false),
		method("a/B", "m", "(Ljava/lang/Object;)V", false),
		method("a/C", "m", "(Ljava/lang/Object;)V", false),
		method("a/D", "m", "(Ljava/lang/Object;)V", false),
		method("a/C", "m", "(I)V", false),
		method("a/B", "s", "()V", true),
		method("a/D", "s", "()V", true),
	} {
		methods[m.Handle] = m
	}
	overrides := Overrides(idx, methods)

	im := lang.NewMethodHandle("a/I", "m", "(Ljava/lang/Object;)V")
	assert.Equal(t, []lang.MethodHandle{
		lang.NewMethodHandle("a/B", "m", "(Ljava/lang/Object;)V"),
		lang.NewMethodHandle("a/C", "m", "(Ljava/lang/Object;)V"),
		lang.NewMethodHandle("a/D", "m", "(Ljava/lang/Object;)V"),
	}, overrides[im].Sorted())
	assert.Equal(t, []lang.MethodHandle{lang.NewMethodHandle("a/D", "m", "(Ljava/lang/Object;)V")},
		overrides[lang.NewMethodHandle("a/B", "m", "(Ljava/lang/Object;)V")].Sorted())
	_, ok := overrides[lang.NewMethodHandle("a/B", "s", "()V")]
	assert.False(t, ok, "static methods have no overrides")
	_, ok = overrides[lang.NewMethodHandle("a/C", "m", "(I)V")]
	assert.False(t, ok)
	assert.Equal(t, []lang.MethodHandle{lang.NewMethodHandle("a/B", "m", "(Ljava/lang/Object;)V"), im},
		overrides.Methods())
}
