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

package passthrough_test

import (
	"bytes"
	"context"
	"testing"

	cf "github.com/awslabs/ar-jvm-gadgets/analysis/classfile"
	"github.com/awslabs/ar-jvm-gadgets/analysis/config"
	"github.com/awslabs/ar-jvm-gadgets/analysis/dataflow"
	"github.com/awslabs/ar-jvm-gadgets/analysis/inheritance"
	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
	"github.com/awslabs/ar-jvm-gadgets/analysis/passthrough"
	at "github.com/awslabs/ar-jvm-gadgets/internal/analysistest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const obj = "Ljava/lang/Object;"

func testLogger() *config.LogGroup {
	l := config.NewLogGroup(config.NewDefault())
	l.SetAllOutput(&bytes.Buffer{})
	return l
}

func handle(class, name, desc string) lang.MethodHandle {
	return lang.NewMethodHandle(class, name, desc)
}

func TestTopologicalSort(t *testing.T) {
	a := handle("a/A", "a", "()V")
	b := handle("a/A", "b", "()V")
	c := handle("a/A", "c", "()V")
	d := handle("a/A", "d", "()V")
	external := handle("java/lang/Object", "hashCode", "()I")
	calls := passthrough.CallMap{
		a: {b: true},
		b: {c: true},
		c: {a: true, c: true},
		d: {external: true, b: true},
	}
	assert.Equal(t, []lang.MethodHandle{c, b, a, d}, passthrough.TopologicalSort(calls))
}

func TestTopologicalSortCalleesFirst(t *testing.T) {
	methods := make([]lang.MethodHandle, 6)
	calls := passthrough.CallMap{}
	for i := range methods {
		methods[i] = handle("a/Chain", string(rune('f'-i)), "()V")
	}
	for i := range methods {
		calls[methods[i]] = inheritance.MethodSet{}
		if i+1 < len(methods) {
			calls[methods[i]][methods[i+1]] = true
		}
	}
	order := passthrough.TopologicalSort(calls)
	require.Len(t, order, len(methods))
	position := map[lang.MethodHandle]int{}
	for i, m := range order {
		position[m] = i
	}
	for i := 0; i+1 < len(methods); i++ {
		assert.Less(t, position[methods[i+1]], position[methods[i]])
	}
}

func sampleClass() *at.ClassBuilder {
	c := at.NewClass("a/P").DefaultConstructor().
		Field(at.Private, "next", obj).
		Field(at.Private|at.Transient, "cache", obj)
	c.Method(at.Public|at.Static, "id", "("+obj+")"+obj).Var(cf.Aload, 0).Op(cf.Areturn)
	c.Method(at.Public, "self", "("+obj+")"+obj).Var(cf.Aload, 1).Op(cf.Areturn)
	c.Method(at.Public|at.Static, "wrap", "("+obj+obj+")"+obj).
		Var(cf.Aload, 1).
		Invoke(cf.Invokestatic, "a/P", "id", "("+obj+")"+obj).
		Op(cf.Areturn)
	c.Method(at.Public|at.Static, "rec", "("+obj+"I)"+obj).
		Var(cf.Iload, 1).
		Jump(cf.Ifeq, "base").
		Var(cf.Aload, 0).Var(cf.Iload, 1).
		Invoke(cf.Invokestatic, "a/P", "rec", "("+obj+"I)"+obj).
		Op(cf.Areturn).
		Label("base").
		Var(cf.Aload, 0).Op(cf.Areturn)
	c.Method(at.Public, "next", "()"+obj).
		Var(cf.Aload, 0).FieldInsn(cf.Getfield, "a/P", "next", obj).Op(cf.Areturn)
	c.Method(at.Public, "cached", "()"+obj).
		Var(cf.Aload, 0).FieldInsn(cf.Getfield, "a/P", "cache", obj).Op(cf.Areturn)
	c.Method(at.Public, "count", "(J)J").Var(cf.Lload, 1).Op(cf.Lreturn)
	c.Method(at.Static, "<clinit>", "()V").Op(cf.Return)
	c.Method(at.Public|at.Static, "broken", "()V").Op(cf.Pop, cf.Return)
	return c
}

type everything struct{}

func (everything) IsSerializable(lang.ClassHandle) bool { return true }

func TestSummarize(t *testing.T) {
	files := at.ParseClasses(t, sampleClass())
	classes := map[lang.ClassHandle]lang.ClassInfo{
		"a/P": {Handle: "a/P", Super: "java/lang/Object", Members: []lang.Member{
			{Name: "next", Type: "java/lang/Object"},
			{Name: "cache", Type: "java/lang/Object", Modifiers: lang.AccTransient},
		}},
	}
	idx := inheritance.NewIndex(map[lang.ClassHandle]inheritance.ClassSet{"a/P": {"java/lang/Object": true}})
	s := &passthrough.Summarizer{
		Oracle:      dataflow.NewFieldOracle(classes, idx, everything{}),
		Inheritance: idx,
		Logger:      testLogger(),
	}
	summaries, stats, errs := s.Summarize(context.Background(), files)

	require.Len(t, errs, 1, "the method popping an empty stack fails")
	assert.ErrorIs(t, errs[0], cf.ErrMalformedClass)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.RecursiveComponents)

	expected := map[string][]int{
		"id(" + obj + ")" + obj:        {0},
		"self(" + obj + ")" + obj:      {1},
		"wrap(" + obj + obj + ")" + obj: {1},
		"rec(" + obj + "I)" + obj:      {0},
		"next()" + obj:                 {0},
	}
	for m, args := range expected {
		h := summariesKey(t, m)
		assert.Equal(t, args, summaries.Args(h), m)
	}
	assert.Empty(t, summaries.Args(summariesKey(t, "cached()"+obj)))
	assert.Empty(t, summaries.Args(summariesKey(t, "count(J)J")))
	assert.Empty(t, summaries.Args(summariesKey(t, "<init>()V")))
	assert.Len(t, summaries, len(expected))
	assert.Equal(t, len(expected), stats.Summarized)
}

func summariesKey(t *testing.T, nameDesc string) lang.MethodHandle {
	t.Helper()
	for i := range nameDesc {
		if nameDesc[i] == '(' {
			return handle("a/P", nameDesc[:i], nameDesc[i:])
		}
	}
	t.Fatalf("bad method %s", nameDesc)
	return lang.MethodHandle{}
}

func TestSummarizeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &passthrough.Summarizer{Logger: testLogger()}
	summaries, _, errs := s.Summarize(ctx, at.ParseClasses(t, sampleClass()))
	assert.Empty(t, summaries)
	require.NotEmpty(t, errs)
	assert.ErrorIs(t, errs[len(errs)-1], context.Canceled)
}
