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

package classfile

import (
	"fmt"
	"sort"
)

// A Block is a maximal sequence of instructions with a single entry and a single exit, not counting exceptional
// edges.
type Block struct {
	Index int
	// First and Last are the indices of the first and last instructions of the block in Body.Instrs
	First int
	Last  int
	// Succs are the indices of the normal successors of the block
	Succs []int
}

// A Handler is an exception handler expressed over instruction indices: instructions in [Start, End) are
// protected and the handler code starts at block Target.
type Handler struct {
	Start     int
	End       int
	Target    int
	CatchType string
}

// Body is the decoded code of a method with its control flow.
type Body struct {
	Instrs   []Instruction
	Blocks   []*Block
	Handlers []Handler
	// BlockOf maps instruction indices to the index of the block containing the instruction
	BlockOf []int
	// IndexAt maps bytecode offsets to instruction indices
	IndexAt map[int]int
}

// IsTerminal returns true if control never falls through to the next instruction after op.
func IsTerminal(op Opcode) bool {
	switch op {
	case Goto, Tableswitch, Lookupswitch, Ireturn, Lreturn, Freturn, Dreturn, Areturn, Return, Athrow, Ret, Jsr:
		return true
	default:
		return false
	}
}

// NewBody decodes the code of a method and splits it into basic blocks.
func NewBody(code *Code) (*Body, error) {
	instrs, err := Decode(code.Bytecode)
	if err != nil {
		return nil, err
	}
	if len(instrs) == 0 {
		return nil, fmt.Errorf("%w: empty code", ErrMalformedClass)
	}
	b := &Body{Instrs: instrs, IndexAt: make(map[int]int, len(instrs))}
	for i, ins := range instrs {
		b.IndexAt[ins.Offset] = i
	}
	indexOf := func(offset int) (int, error) {
		if offset == len(code.Bytecode) {
			return len(instrs), nil
		}
		i, ok := b.IndexAt[offset]
		if !ok {
			return 0, fmt.Errorf("%w: offset %d is not an instruction boundary", ErrMalformedClass, offset)
		}
		return i, nil
	}

	leaders := map[int]bool{0: true}
	for i, ins := range instrs {
		for _, t := range ins.Targets {
			ti, err := indexOf(t)
			if err != nil {
				return nil, err
			}
			if ti >= len(instrs) {
				return nil, fmt.Errorf("%w: branch to end of code at %d", ErrMalformedClass, ins.Offset)
			}
			leaders[ti] = true
		}
		if (len(ins.Targets) > 0 || IsTerminal(ins.Op)) && i+1 < len(instrs) {
			leaders[i+1] = true
		}
	}

	type rawHandler struct{ start, end, target int }
	var raws []rawHandler
	for _, h := range code.ExceptionTable {
		s, err := indexOf(h.StartPC)
		if err != nil {
			return nil, err
		}
		e, err := indexOf(h.EndPC)
		if err != nil {
			return nil, err
		}
		t, err := indexOf(h.HandlerPC)
		if err != nil || t >= len(instrs) {
			return nil, fmt.Errorf("%w: bad handler offset %d", ErrMalformedClass, h.HandlerPC)
		}
		leaders[t] = true
		raws = append(raws, rawHandler{s, e, t})
	}

	starts := make([]int, 0, len(leaders))
	for l := range leaders {
		starts = append(starts, l)
	}
	sort.Ints(starts)
	b.BlockOf = make([]int, len(instrs))
	for bi, s := range starts {
		end := len(instrs) - 1
		if bi+1 < len(starts) {
			end = starts[bi+1] - 1
		}
		b.Blocks = append(b.Blocks, &Block{Index: bi, First: s, Last: end})
		for i := s; i <= end; i++ {
			b.BlockOf[i] = bi
		}
	}

	for _, blk := range b.Blocks {
		last := instrs[blk.Last]
		for _, t := range last.Targets {
			blk.Succs = appendUnique(blk.Succs, b.BlockOf[b.IndexAt[t]])
		}
		if !IsTerminal(last.Op) && blk.Last+1 < len(instrs) {
			blk.Succs = appendUnique(blk.Succs, b.BlockOf[blk.Last+1])
		}
	}

	for i, r := range raws {
		b.Handlers = append(b.Handlers, Handler{
			Start:     r.start,
			End:       r.end,
			Target:    b.BlockOf[r.target],
			CatchType: code.ExceptionTable[i].CatchType,
		})
	}
	return b, nil
}

// NextIndex returns the index of the instruction following instruction i in straight-line execution, or -1.
func (b *Body) NextIndex(i int) int {
	if IsTerminal(b.Instrs[i].Op) || i+1 >= len(b.Instrs) {
		return -1
	}
	return i + 1
}

func appendUnique(a []int, x int) []int {
	for _, y := range a {
		if y == x {
			return a
		}
	}
	return append(a, x)
}
