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

package funcutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMapParallelKeepsOrder(t *testing.T) {
	defer goleak.VerifyNone(t)
	in := make([]int, 1000)
	for i := range in {
		in[i] = i
	}
	for _, workers := range []int{0, 1, 7} {
		out := MapParallel(in, func(x int) int { return 2 * x }, workers)
		assert.Equal(t, Map(in, func(x int) int { return 2 * x }), out)
	}
	assert.Empty(t, MapParallel([]int{}, func(x int) int { return x }, 3))
}

func TestSetToOrderedSlice(t *testing.T) {
	set := map[string]bool{"b": true, "a": true, "c": false}
	assert.Equal(t, []string{"a", "b"}, SetToOrderedSlice(set))
}

func TestOptional(t *testing.T) {
	assert.True(t, Some(3).IsSome())
	assert.Equal(t, 3, Some(3).Value())
	assert.False(t, None[int]().IsSome())
	assert.Panics(t, func() { None[int]().Value() })
	var zero Optional[string]
	assert.False(t, zero.IsSome())
	assert.Equal(t, "none", zero.String())
}
