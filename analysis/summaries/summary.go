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

// Package summaries defines the passthrough summaries of methods: for each method, the set of argument positions
// whose taint reaches the value returned by the method. Summaries are computed for the methods of the classpath,
// and a small table summarizes well-known methods of the Java standard library.
package summaries

import (
	"fmt"
	"sort"
	"strings"

	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
	"golang.org/x/tools/container/intsets"
)

// ArgSet is a set of argument positions. For instance methods, position 0 is the receiver.
type ArgSet struct {
	set intsets.Sparse
}

// NewArgSet returns a set containing args
func NewArgSet(args ...int) *ArgSet {
	a := &ArgSet{}
	for _, i := range args {
		a.set.Insert(i)
	}
	return a
}

// Add adds an argument position to the set and returns true if it was not present.
func (a *ArgSet) Add(arg int) bool {
	return a.set.Insert(arg)
}

// Has returns true if the argument position is in the set
func (a *ArgSet) Has(arg int) bool {
	return a != nil && a.set.Has(arg)
}

// Args returns the argument positions in increasing order
func (a *ArgSet) Args() []int {
	if a == nil {
		return nil
	}
	return a.set.AppendTo(nil)
}

// Len returns the number of positions in the set
func (a *ArgSet) Len() int {
	if a == nil {
		return 0
	}
	return a.set.Len()
}

func (a *ArgSet) String() string {
	return fmt.Sprint(a.Args())
}

// Passthrough maps methods to the argument positions whose taint flows to the returned value. A method without
// entry returns a value that carries none of its arguments' taint.
type Passthrough map[lang.MethodHandle]*ArgSet

// Set records the summary of a method. Empty summaries are not recorded.
func (p Passthrough) Set(m lang.MethodHandle, args *ArgSet) {
	if args.Len() == 0 {
		delete(p, m)
		return
	}
	p[m] = args
}

// Args returns the argument positions that flow to the return value of m, in increasing order
func (p Passthrough) Args(m lang.MethodHandle) []int {
	return p[m].Args()
}

// Methods returns the summarized methods in order
func (p Passthrough) Methods() []lang.MethodHandle {
	methods := make([]lang.MethodHandle, 0, len(p))
	for m := range p {
		methods = append(methods, m)
	}
	sort.Slice(methods, func(i, j int) bool { return methods[i].Less(methods[j]) })
	return methods
}

func (p Passthrough) String() string {
	var b strings.Builder
	for _, m := range p.Methods() {
		fmt.Fprintf(&b, "%s -> %s\n", m, p[m])
	}
	return b.String()
}
