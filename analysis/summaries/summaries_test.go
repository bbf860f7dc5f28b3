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

package summaries

import (
	"testing"

	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
	"github.com/stretchr/testify/assert"
)

func TestArgSet(t *testing.T) {
	a := NewArgSet(2, 0)
	assert.True(t, a.Add(1))
	assert.False(t, a.Add(2))
	assert.Equal(t, []int{0, 1, 2}, a.Args())
	assert.True(t, a.Has(1))
	assert.False(t, a.Has(3))
	assert.Equal(t, "[0 1 2]", a.String())

	var nilSet *ArgSet
	assert.Equal(t, 0, nilSet.Len())
	assert.False(t, nilSet.Has(0))
	assert.Nil(t, nilSet.Args())
}

func TestPassthrough(t *testing.T) {
	p := Passthrough{}
	id := lang.NewMethodHandle("a/B", "id", "(Ljava/lang/Object;)Ljava/lang/Object;")
	none := lang.NewMethodHandle("a/B", "none", "()Ljava/lang/Object;")
	p.Set(id, NewArgSet(0))
	p.Set(none, NewArgSet())
	assert.Equal(t, []int{0}, p.Args(id))
	assert.Nil(t, p.Args(none))
	_, ok := p[none]
	assert.False(t, ok)
	assert.Equal(t, []lang.MethodHandle{id}, p.Methods())
	assert.Equal(t, "a/B.id(Ljava/lang/Object;)Ljava/lang/Object; -> [0]\n", p.String())
}

func TestStandardLibrary(t *testing.T) {
	args, ok := StandardLibrary(lang.NewMethodHandle("java/lang/StringBuilder", "append",
		"(Ljava/lang/String;)Ljava/lang/StringBuilder;"))
	assert.True(t, ok)
	assert.Equal(t, []int{0, 1}, args)

	args, ok = StandardLibrary(lang.NewMethodHandle("java/io/File", "<init>", "(Ljava/lang/String;)V"))
	assert.True(t, ok)
	assert.Equal(t, []int{1}, args)

	_, ok = StandardLibrary(lang.NewMethodHandle("java/lang/StringBuilder", "append", "(I)Ljava/lang/StringBuilder;"))
	assert.False(t, ok)
	_, ok = StandardLibrary(lang.NewMethodHandle("a/B", "toString", "()Ljava/lang/String;"))
	assert.False(t, ok)
	assert.True(t, IsStandardLibraryClass("java/net/URL"))
}
