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

package lang

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMethodDescriptor(t *testing.T) {
	md, err := ParseMethodDescriptor("(IJLjava/lang/String;[[DZ)Ljava/lang/Object;")
	require.NoError(t, err)
	require.Len(t, md.Args, 5)
	assert.Equal(t, Int, md.Args[0].Sort())
	assert.Equal(t, Long, md.Args[1].Sort())
	assert.Equal(t, 2, md.Args[1].Size())
	assert.Equal(t, "java/lang/String", md.Args[2].InternalName())
	assert.Equal(t, Array, md.Args[3].Sort())
	assert.Equal(t, "[[D", md.Args[3].InternalName())
	assert.Equal(t, Boolean, md.Args[4].Sort())
	assert.Equal(t, Object, md.Return.Sort())
	assert.Equal(t, 6, md.ArgsSize())
}

func TestParseMethodDescriptorVoid(t *testing.T) {
	md, err := ParseMethodDescriptor("()V")
	require.NoError(t, err)
	assert.Empty(t, md.Args)
	assert.Equal(t, 0, md.Return.Size())
	assert.Equal(t, Void, md.Return.Sort())
}

func TestParseMethodDescriptorErrors(t *testing.T) {
	for _, desc := range []string{"", "V", "(V)V", "(I", "(Ljava/lang/String)V", "(I)", "(I)VV", "(Q)V"} {
		_, err := ParseMethodDescriptor(desc)
		assert.Truef(t, errors.Is(err, ErrBadDescriptor), "expected error for %q", desc)
	}
}

func TestObjectType(t *testing.T) {
	assert.Equal(t, "Ljava/util/Map;", ObjectType("java/util/Map").Descriptor())
	assert.Equal(t, Object, ObjectType("java/util/Map").Sort())
	assert.Equal(t, Array, ObjectType("[Ljava/lang/Object;").Sort())
	assert.Equal(t, "I", mustType(t, "I").InternalName())
}

func TestMethodInfoArgCount(t *testing.T) {
	m := MethodInfo{Handle: NewMethodHandle("a/B", "f", "(JI)V")}
	n, err := m.ArgCount()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	m.IsStatic = true
	n, err = m.ArgCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestClassInfoSuperClass(t *testing.T) {
	c := ClassInfo{Handle: "java/lang/Object"}
	assert.False(t, c.SuperClass().IsSome())
	c = ClassInfo{Handle: "a/B", Super: "java/lang/Object"}
	assert.Equal(t, ClassHandle("java/lang/Object"), c.SuperClass().Value())
}

func mustType(t *testing.T, desc string) Type {
	typ, err := ParseType(desc)
	require.NoError(t, err)
	return typ
}
