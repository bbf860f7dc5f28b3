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
	"encoding/binary"
	"fmt"
)

// An Instruction is a decoded bytecode instruction.
//
// Decoding normalizes the short forms of the instruction set so that consumers handle fewer opcodes:
//   - xload_n and xstore_n become xload and xstore with Index n
//   - wide prefixed instructions become their base instruction with a 16-bit Index
//   - ldc_w and ldc2_w become ldc
//   - goto_w and jsr_w become goto and jsr
type Instruction struct {
	// Offset is the bytecode offset of the instruction
	Offset int
	Op     Opcode
	// Index is the local variable index for loads, stores, iinc and ret, and the constant pool index for ldc,
	// field, method, type and invokedynamic instructions
	Index int
	// Value is the pushed value of bipush and sipush, the increment of iinc, the array type of newarray and the
	// dimensions of multianewarray
	Value int
	// Targets are the branch target offsets. For switches, the default target comes first.
	Targets []int
}

func (ins Instruction) String() string {
	switch {
	case len(ins.Targets) > 0:
		return fmt.Sprintf("%d: %s %v", ins.Offset, ins.Op, ins.Targets)
	case ins.Index != 0 || ins.Value != 0:
		return fmt.Sprintf("%d: %s %d %d", ins.Offset, ins.Op, ins.Index, ins.Value)
	default:
		return fmt.Sprintf("%d: %s", ins.Offset, ins.Op)
	}
}

// Decode decodes the bytecode of a method into a list of instructions in offset order.
func Decode(code []byte) ([]Instruction, error) {
	var instrs []Instruction
	d := decoder{code: code}
	for d.pos < len(code) {
		ins, err := d.next()
		if err != nil {
			return nil, err
		}
		instrs = append(instrs, ins)
	}
	return instrs, nil
}

type decoder struct {
	code []byte
	pos  int
}

func (d *decoder) need(n int) error {
	if d.pos+n > len(d.code) {
		return fmt.Errorf("%w: truncated instruction at offset %d", ErrMalformedClass, d.pos)
	}
	return nil
}

func (d *decoder) u1() int {
	v := d.code[d.pos]
	d.pos++
	return int(v)
}

func (d *decoder) s1() int {
	v := int8(d.code[d.pos])
	d.pos++
	return int(v)
}

func (d *decoder) u2() int {
	v := binary.BigEndian.Uint16(d.code[d.pos:])
	d.pos += 2
	return int(v)
}

func (d *decoder) s2() int {
	v := int16(binary.BigEndian.Uint16(d.code[d.pos:]))
	d.pos += 2
	return int(v)
}

func (d *decoder) s4() int {
	v := int32(binary.BigEndian.Uint32(d.code[d.pos:]))
	d.pos += 4
	return int(v)
}

// operandSizes is the size of the fixed operands of each opcode; -1 marks variable length instructions and opcodes
// that are handled separately.
var operandSizes = func() [256]int {
	var s [256]int
	for i := range s {
		s[i] = -1
	}
	for op := Nop; op <= JsrW; op++ {
		s[op] = 0
	}
	for _, op := range []Opcode{Bipush, Ldc, Iload, Lload, Fload, Dload, Aload, Istore, Lstore, Fstore, Dstore,
		Astore, Ret, Newarray} {
		s[op] = 1
	}
	for _, op := range []Opcode{Sipush, LdcW, Ldc2W, Iinc, Getstatic, Putstatic, Getfield, Putfield,
		Invokevirtual, Invokespecial, Invokestatic, New, Anewarray, Checkcast, Instanceof} {
		s[op] = 2
	}
	for op := Ifeq; op <= Jsr; op++ {
		s[op] = 2
	}
	s[Ifnull], s[Ifnonnull] = 2, 2
	s[Multianewarray] = 3
	s[Invokeinterface], s[Invokedynamic], s[GotoW], s[JsrW] = 4, 4, 4, 4
	s[Tableswitch], s[Lookupswitch], s[Wide] = -1, -1, -1
	return s
}()

//gocyclo:ignore
func (d *decoder) next() (Instruction, error) {
	start := d.pos
	op := Opcode(d.u1())
	ins := Instruction{Offset: start, Op: op}
	size := operandSizes[op]
	if size < 0 && op != Tableswitch && op != Lookupswitch && op != Wide {
		return ins, fmt.Errorf("%w: invalid opcode %d at offset %d", ErrMalformedClass, op, start)
	}
	if size > 0 {
		if err := d.need(size); err != nil {
			return ins, err
		}
	}

	switch {
	case op >= Iload0 && op <= Aload3:
		n := int(op - Iload0)
		ins.Op = Iload + Opcode(n/4)
		ins.Index = n % 4
	case op >= Istore0 && op <= Astore3:
		n := int(op - Istore0)
		ins.Op = Istore + Opcode(n/4)
		ins.Index = n % 4
	}

	switch op {
	case Bipush:
		ins.Value = d.s1()
	case Sipush:
		ins.Value = d.s2()
	case Ldc:
		ins.Index = d.u1()
	case LdcW, Ldc2W:
		ins.Op = Ldc
		ins.Index = d.u2()
	case Iload, Lload, Fload, Dload, Aload, Istore, Lstore, Fstore, Dstore, Astore, Ret:
		ins.Index = d.u1()
	case Iinc:
		ins.Index = d.u1()
		ins.Value = d.s1()
	case Newarray:
		ins.Value = d.u1()
	case Getstatic, Putstatic, Getfield, Putfield, Invokevirtual, Invokespecial, Invokestatic, New, Anewarray,
		Checkcast, Instanceof:
		ins.Index = d.u2()
	case Invokeinterface, Invokedynamic:
		ins.Index = d.u2()
		d.pos += 2
	case Multianewarray:
		ins.Index = d.u2()
		ins.Value = d.u1()
	case Ifeq, Ifne, Iflt, Ifge, Ifgt, Ifle, IfIcmpeq, IfIcmpne, IfIcmplt, IfIcmpge, IfIcmpgt, IfIcmple, IfAcmpeq,
		IfAcmpne, Goto, Jsr, Ifnull, Ifnonnull:
		ins.Targets = []int{start + d.s2()}
	case GotoW, JsrW:
		ins.Op = Goto
		if op == JsrW {
			ins.Op = Jsr
		}
		ins.Targets = []int{start + d.s4()}
	case Tableswitch:
		if err := d.switchPadding(start); err != nil {
			return ins, err
		}
		if err := d.need(12); err != nil {
			return ins, err
		}
		dflt := d.s4()
		low := d.s4()
		high := d.s4()
		if high < low {
			return ins, fmt.Errorf("%w: tableswitch with low %d > high %d at %d", ErrMalformedClass, low, high, start)
		}
		n := high - low + 1
		if err := d.need(4 * n); err != nil {
			return ins, err
		}
		ins.Targets = append(ins.Targets, start+dflt)
		for i := 0; i < n; i++ {
			ins.Targets = append(ins.Targets, start+d.s4())
		}
	case Lookupswitch:
		if err := d.switchPadding(start); err != nil {
			return ins, err
		}
		if err := d.need(8); err != nil {
			return ins, err
		}
		dflt := d.s4()
		n := d.s4()
		if n < 0 {
			return ins, fmt.Errorf("%w: lookupswitch with %d pairs at %d", ErrMalformedClass, n, start)
		}
		if err := d.need(8 * n); err != nil {
			return ins, err
		}
		ins.Targets = append(ins.Targets, start+dflt)
		for i := 0; i < n; i++ {
			d.s4() // match key
			ins.Targets = append(ins.Targets, start+d.s4())
		}
	case Wide:
		if err := d.need(3); err != nil {
			return ins, err
		}
		ins.Op = Opcode(d.u1())
		ins.Index = d.u2()
		switch ins.Op {
		case Iload, Lload, Fload, Dload, Aload, Istore, Lstore, Fstore, Dstore, Astore, Ret:
		case Iinc:
			if err := d.need(2); err != nil {
				return ins, err
			}
			ins.Value = d.s2()
		default:
			return ins, fmt.Errorf("%w: wide %s at offset %d", ErrMalformedClass, ins.Op, start)
		}
	}
	return ins, nil
}

func (d *decoder) switchPadding(start int) error {
	pad := (4 - (start+1)%4) % 4
	if err := d.need(pad); err != nil {
		return err
	}
	d.pos += pad
	return nil
}
