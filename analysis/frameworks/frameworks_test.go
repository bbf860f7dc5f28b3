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

package frameworks_test

import (
	"bytes"
	"testing"

	"github.com/awslabs/ar-jvm-gadgets/analysis/config"
	"github.com/awslabs/ar-jvm-gadgets/analysis/frameworks"
	"github.com/awslabs/ar-jvm-gadgets/analysis/inheritance"
	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	obj        = "Ljava/lang/Object;"
	invokeDesc = "(Ljava/lang/Object;Ljava/lang/reflect/Method;[Ljava/lang/Object;)Ljava/lang/Object;"
)

func class(name, super string, ifaces ...lang.ClassHandle) lang.ClassInfo {
	return lang.ClassInfo{Handle: lang.ClassHandle(name), Super: lang.ClassHandle(super), Interfaces: ifaces}
}

func m(class, name, desc string) lang.MethodHandle {
	return lang.NewMethodHandle(class, name, desc)
}

func testEnv(t *testing.T) *frameworks.Env {
	t.Helper()
	classes := map[lang.ClassHandle]lang.ClassInfo{}
	for _, c := range []lang.ClassInfo{
		{Handle: "java/lang/Object"},
		{Handle: "java/io/Serializable", Super: "java/lang/Object", IsInterface: true},
		{Handle: "java/lang/reflect/InvocationHandler", Super: "java/lang/Object", IsInterface: true},
		class("groovy/lang/Closure", "java/lang/Object"),
		class("a/Ser", "java/lang/Object", "java/io/Serializable"),
		class("a/SubSer", "a/Ser"),
		class("a/Plain", "java/lang/Object"),
		class("a/Handler", "java/lang/Object", "java/io/Serializable", "java/lang/reflect/InvocationHandler"),
		class("a/Clos", "groovy/lang/Closure", "java/io/Serializable"),
		class("com/google/common/collect/Bad", "a/Ser"),
		{Handle: "a/Inner", Super: "java/lang/Object", Members: []lang.Member{{Name: "this$0", Type: "a/Plain"}}},
	} {
		classes[c.Handle] = c
	}
	methods := map[lang.MethodHandle]lang.MethodInfo{}
	for _, h := range []lang.MethodHandle{
		m("a/Ser", "readObject", "(Ljava/io/ObjectInputStream;)V"),
		m("a/Ser", "hashCode", "()I"),
		m("a/Ser", "equals", "("+obj+")Z"),
		m("a/Ser", "finalize", "()V"),
		m("a/Ser", "m", "()V"),
		m("a/SubSer", "m", "()V"),
		m("com/google/common/collect/Bad", "m", "()V"),
		m("com/google/common/collect/Bad", "hashCode", "()I"),
		m("a/Plain", "hashCode", "()I"),
		m("a/Plain", "<init>", "()V"),
		m("a/Plain", "getName", "()Ljava/lang/String;"),
		m("a/Plain", "setName", "(Ljava/lang/String;)V"),
		m("a/Plain", "setAge", "(I)V"),
		m("a/Clos", "doCall", "("+obj+obj+")"+obj),
	} {
		methods[h] = lang.MethodInfo{Handle: h}
	}
	logger := config.NewLogGroup(config.NewDefault())
	logger.SetAllOutput(&bytes.Buffer{})
	idx := inheritance.Derive(classes, logger)
	return &frameworks.Env{
		Classes:     classes,
		Methods:     methods,
		Inheritance: idx,
		Overrides:   inheritance.Overrides(idx, methods),
	}
}

func lookup(t *testing.T, name string) frameworks.Framework {
	t.Helper()
	f, err := frameworks.Lookup(name)
	require.NoError(t, err)
	assert.Equal(t, name, f.Name())
	return f
}

func TestLookup(t *testing.T) {
	assert.ElementsMatch(t, config.Frameworks, frameworks.Names())
	for _, name := range config.Frameworks {
		lookup(t, name)
	}
	_, err := frameworks.Lookup("kryo")
	assert.ErrorIs(t, err, frameworks.ErrUnknownFramework)
}

func TestJavaSerialization(t *testing.T) {
	env := testEnv(t)
	jserial := lookup(t, "jserial")

	decider := jserial.SerializableDecider(env)
	assert.True(t, decider.IsSerializable("a/Ser"))
	assert.True(t, decider.IsSerializable("a/SubSer"))
	assert.False(t, decider.IsSerializable("a/Plain"))
	assert.False(t, decider.IsSerializable("com/google/common/collect/Bad"))
	assert.False(t, decider.IsSerializable("a/Unknown"))

	want := []frameworks.Source{
		{Method: m("a/Clos", "doCall", "("+obj+obj+")"+obj), Arg: 0},
		{Method: m("a/Clos", "doCall", "("+obj+obj+")"+obj), Arg: 1},
		{Method: m("a/Clos", "doCall", "("+obj+obj+")"+obj), Arg: 2},
		{Method: m("a/Handler", "invoke", invokeDesc), Arg: 0},
		{Method: m("a/Ser", "equals", "("+obj+")Z"), Arg: 0},
		{Method: m("a/Ser", "equals", "("+obj+")Z"), Arg: 1},
		{Method: m("a/Ser", "finalize", "()V"), Arg: 0},
		{Method: m("a/Ser", "hashCode", "()I"), Arg: 0},
		{Method: m("a/Ser", "readObject", "(Ljava/io/ObjectInputStream;)V"), Arg: 1},
	}
	if diff := cmp.Diff(want, jserial.SourceDiscovery(env)); diff != "" {
		t.Errorf("sources (-want +got):\n%s", diff)
	}

	finder := jserial.ImplementationFinder(env)
	assert.Equal(t, []lang.MethodHandle{m("a/Ser", "m", "()V"), m("a/SubSer", "m", "()V")},
		finder.Implementations(m("a/Ser", "m", "()V")))
	assert.Equal(t, []lang.MethodHandle{m("a/Plain", "hashCode", "()I")},
		finder.Implementations(m("a/Plain", "hashCode", "()I")), "the target is always an implementation")
}

func TestJavaSerializationNeedsSerializableOnClasspath(t *testing.T) {
	gadget := class("com/example/Gadget", "java/lang/Object", "java/io/Serializable")
	classes := map[lang.ClassHandle]lang.ClassInfo{gadget.Handle: gadget}
	readObject := m("com/example/Gadget", "readObject", "(Ljava/io/ObjectInputStream;)V")
	methods := map[lang.MethodHandle]lang.MethodInfo{readObject: {Handle: readObject}}
	logger := config.NewLogGroup(config.NewDefault())
	logger.SetAllOutput(&bytes.Buffer{})
	idx := inheritance.Derive(classes, logger)
	env := &frameworks.Env{
		Classes:     classes,
		Methods:     methods,
		Inheritance: idx,
		Overrides:   inheritance.Overrides(idx, methods),
	}

	jserial := lookup(t, "jserial")
	assert.False(t, jserial.SerializableDecider(env).IsSerializable("com/example/Gadget"))
	assert.Empty(t, jserial.SourceDiscovery(env))
}

func TestJackson(t *testing.T) {
	env := testEnv(t)
	jackson := lookup(t, "jackson")

	decider := jackson.SerializableDecider(env)
	assert.True(t, decider.IsSerializable("a/Plain"))
	assert.False(t, decider.IsSerializable("a/Ser"))

	assert.Equal(t, []frameworks.Source{
		{Method: m("a/Plain", "<init>", "()V")},
		{Method: m("a/Plain", "getName", "()Ljava/lang/String;")},
		{Method: m("a/Plain", "setName", "(Ljava/lang/String;)V")},
	}, jackson.SourceDiscovery(env))

	finder := jackson.ImplementationFinder(env)
	assert.Equal(t, []lang.MethodHandle{m("a/Plain", "hashCode", "()I")},
		finder.Implementations(m("a/Plain", "hashCode", "()I")))
	assert.Empty(t, finder.Implementations(m("a/Ser", "m", "()V")))
}

func TestXstream(t *testing.T) {
	env := testEnv(t)
	xstream := lookup(t, "xstream")

	decider := xstream.SerializableDecider(env)
	assert.True(t, decider.IsSerializable("a/Plain"))
	assert.False(t, decider.IsSerializable("a/Outer$1"))

	finder := xstream.ImplementationFinder(env)
	assert.Equal(t, []lang.MethodHandle{
		m("a/Ser", "m", "()V"),
		m("a/SubSer", "m", "()V"),
		m("com/google/common/collect/Bad", "m", "()V"),
	}, finder.Implementations(m("a/Ser", "m", "()V")))

	assert.Equal(t, lookup(t, "jserial").SourceDiscovery(env), xstream.SourceDiscovery(env))
}

func TestCustomXstream(t *testing.T) {
	env := testEnv(t)
	custom := lookup(t, "xstream-custom")

	decider := custom.SerializableDecider(env)
	assert.True(t, decider.IsSerializable("a/Plain"))
	assert.False(t, decider.IsSerializable("a/Inner"))

	finder := custom.ImplementationFinder(env)
	assert.Equal(t, []lang.MethodHandle{
		m("a/Ser", "m", "()V"),
		m("a/SubSer", "m", "()V"),
		m("com/google/common/collect/Bad", "m", "()V"),
	}, finder.Implementations(m("a/Ser", "m", "()V")))

	assert.Equal(t, lookup(t, "xstream").SourceDiscovery(env), custom.SourceDiscovery(env))
}

func TestIsValidXMLName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"java.util.HashMap", true},
		{"_x:y-z.0", true},
		{"org.example.\u00dcber", true},
		{"com.example.Foo$1", false},
		{"1abc", false},
		{"-abc", false},
		{"", false},
		{"a b", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, frameworks.IsValidXMLName(tt.name), tt.name)
	}
}

func TestCustomXstreamDecider(t *testing.T) {
	classes := map[lang.ClassHandle]lang.ClassInfo{
		"x/Good": {Handle: "x/Good", Super: "java/lang/Object", Members: []lang.Member{
			{Name: "name", Type: "java/lang/String"},
			{Name: "count", Type: "I"},
			{Name: "other", Type: "x/Outside"},
		}},
		"x/Inner": {Handle: "x/Inner", Super: "java/lang/Object", Members: []lang.Member{{Name: "this$0", Type: "x/Good"}}},
		"x/Arr":   {Handle: "x/Arr", Super: "java/lang/Object", Members: []lang.Member{{Name: "values", Type: "[I"}}},
		"x/Klass": {
			Handle: "x/Klass", Super: "java/lang/Object",
			Members: []lang.Member{{Name: "c", Type: "java/lang/Class"}},
		},
		"x/Self":   {Handle: "x/Self", Super: "java/lang/Object", Members: []lang.Member{{Name: "next", Type: "x/Self"}}},
		"x/Holder": {Handle: "x/Holder", Super: "java/lang/Object", Members: []lang.Member{{Name: "g", Type: "x/Good"}}},
		"x/Ext":    {Handle: "x/Ext", Super: "x/Inner"},
	}
	idx := inheritance.NewIndex(map[lang.ClassHandle]inheritance.ClassSet{
		"x/Good":   {"java/lang/Object": true},
		"x/Inner": {"java/lang/Object": true},
		"x/Arr":   {"java/lang/Object": true},
		"x/Klass":  {"java/lang/Object": true},
		"x/Self":   {"java/lang/Object": true},
		"x/Holder": {"java/lang/Object": true},
		"x/Ext":    {"x/Inner": true, "java/lang/Object": true},
	})
	d := frameworks.NewCustomXstreamDecider(&frameworks.Env{Classes: classes, Inheritance: idx})
	for c, want := range map[lang.ClassHandle]bool{
		"x/Good":    true,
		"x/Holder":  true,
		"x/Inner":   false,
		"x/Arr":     false,
		"x/Klass":   false,
		"x/Self":    false,
		"x/Ext":     false,
		"x/Outside": true,
	} {
		assert.Equal(t, want, d.IsSerializable(c), string(c))
	}
}
