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

package callgraph

import (
	"testing"

	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
	"github.com/stretchr/testify/assert"
)

func TestLabel(t *testing.T) {
	l := Label{Arg: 2}
	assert.Equal(t, "arg2", l.String())
	assert.Equal(t, 0, l.Depth())
	l = l.Field("a").Field("b")
	assert.Equal(t, Label{Arg: 2, Path: "a.b"}, l)
	assert.Equal(t, "arg2.a.b", l.String())
	assert.Equal(t, 2, l.Depth())
}

func TestGraphMerge(t *testing.T) {
	m1 := lang.NewMethodHandle("a/A", "m", "()V")
	m2 := lang.NewMethodHandle("a/B", "m", "()V")
	e1 := Edge{Caller: m1, Callee: m2, CallerArg: 1, CalleeArg: 0}
	e2 := Edge{Caller: m1, Callee: m2, CallerArg: 0, CalleeArg: 0}
	e3 := Edge{Caller: m2, Callee: m1, CallerArg: 0, CallerPath: "f", CalleeArg: 0}

	g := NewGraph()
	assert.True(t, g.Add(e1))
	assert.False(t, g.Add(e1))
	o := NewGraph()
	o.Add(e3)
	o.Add(e2)
	o.Add(e1)
	g.Merge(o)

	assert.Equal(t, 3, g.Len())
	assert.Equal(t, []Edge{e2, e1}, g.From(m1))
	assert.Equal(t, []Edge{e2, e1, e3}, g.Edges())
	assert.Equal(t, []lang.MethodHandle{m1, m2}, g.Callers())
	assert.Empty(t, g.From(lang.NewMethodHandle("a/C", "m", "()V")))
	assert.Equal(t, "a/B.m()V arg0.f -> a/A.m()V arg0", e3.String())
}
