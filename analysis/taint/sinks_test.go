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

package taint_test

import (
	"testing"

	"github.com/awslabs/ar-jvm-gadgets/analysis/config"
	"github.com/awslabs/ar-jvm-gadgets/analysis/inheritance"
	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
	"github.com/awslabs/ar-jvm-gadgets/analysis/taint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkTable(t *testing.T) {
	idx := inheritance.NewIndex(map[lang.ClassHandle]inheritance.ClassSet{
		"a/Loader":          {"java/lang/ClassLoader": true, "java/lang/Object": true},
		"a/Meta":            {"groovy/lang/MetaClass": true},
		"java/lang/Runtime": {"java/lang/Object": true},
	})
	one := 1
	cfg := config.NewDefault()
	cfg.ExtraSinks = []config.CodeIdentifier{
		{Class: "javax/naming/Context", Method: "lookup"},
		{Class: "org/apache/.*/Eval", Method: "me|x", Arg: &one},
	}
	require.NoError(t, cfg.Validate())
	sinks := taint.SinkTable{Inheritance: idx, Config: cfg}

	tests := []struct {
		method lang.MethodHandle
		arg    int
		want   bool
	}{
		{exec, 1, true},
		{exec, 0, true},
		{m("java/lang/Runtime", "exit", "(I)V"), 1, true},
		{m("java/lang/Runtime", "getRuntime", "()Ljava/lang/Runtime;"), 0, false},
		{m("java/io/FileInputStream", "<init>", "(Ljava/lang/String;)V"), 1, true},
		{m("java/io/FileOutputStream", "<init>", "(Ljava/io/File;)V"), 1, true},
		{m("java/io/FileOutputStream", "write", "([B)V"), 1, false},
		{m("java/nio/file/Files", "newBufferedWriter", "(Ljava/nio/file/Path;)Ljava/io/BufferedWriter;"), 0, true},
		{m("java/nio/file/Files", "readAllBytes", "(Ljava/nio/file/Path;)[B"), 0, false},
		{m("java/lang/reflect/Method", "invoke", invokeDesc), 0, true},
		{m("java/lang/reflect/Method", "invoke", invokeDesc), 1, false},
		{m("java/net/URLClassLoader", "newInstance", "([Ljava/net/URL;)Ljava/net/URLClassLoader;"), 0, true},
		{m("java/lang/System", "exit", "(I)V"), 0, true},
		{m("java/lang/Shutdown", "exit", "(I)V"), 0, true},
		{m("java/lang/ProcessBuilder", "<init>", "([Ljava/lang/String;)V"), 0, false},
		{m("java/lang/ProcessBuilder", "<init>", "([Ljava/lang/String;)V"), 1, true},
		{m("java/net/URL", "openStream", "()Ljava/io/InputStream;"), 0, true},
		{m("org/codehaus/groovy/runtime/InvokerHelper", "invokeMethod", invokeDesc), 1, true},
		{m("org/codehaus/groovy/runtime/InvokerHelper", "invokeMethod", invokeDesc), 2, false},
		{m("org/python/core/PyCode", "call", "()Lorg/python/core/PyObject;"), 0, true},
		{m("a/Loader", "<init>", "()V"), 0, true},
		{m("a/Loader", "loadClass", "(Ljava/lang/String;)Ljava/lang/Class;"), 1, false},
		{m("java/lang/ClassLoader", "<init>", "()V"), 0, false},
		{m("a/Meta", "invokeStaticMethod", invokeDesc), 2, true},
		{m("a/Meta", "getProperty", invokeDesc), 1, false},
		{m("javax/naming/Context", "lookup", "(Ljava/lang/String;)Ljava/lang/Object;"), 1, true},
		{m("org/apache/commons/Eval", "me", "(Ljava/lang/String;)V"), 1, true},
		{m("org/apache/commons/Eval", "me", "(Ljava/lang/String;)V"), 0, false},
		{m("org/apache/commons/Eval", "xy", "(Ljava/lang/String;)V"), 1, false},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, sinks.IsSink(test.method, test.arg), "%s arg %d", test.method, test.arg)
	}
}

func TestSinkTableWithoutInheritance(t *testing.T) {
	sinks := taint.SinkTable{}
	assert.True(t, sinks.IsSink(exec, 1))
	assert.False(t, sinks.IsSink(m("a/Loader", "<init>", "()V"), 0))
}

func TestSinkFunc(t *testing.T) {
	var d taint.SinkDecider = taint.SinkFunc(func(m lang.MethodHandle, arg int) bool { return arg == 2 })
	assert.True(t, d.IsSink(exec, 2))
	assert.False(t, d.IsSink(exec, 1))
}
