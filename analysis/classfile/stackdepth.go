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
	"errors"
	"fmt"

	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
)

// ErrUnsupportedInstruction is returned for instructions the analyses do not model (jsr and ret).
var ErrUnsupportedInstruction = errors.New("unsupported instruction")

// Unreachable is the depth reported for instructions that cannot be reached from the method entry.
const Unreachable = -1

// StackDepths computes the operand stack depth, in slots, before each instruction of the body, the way the
// bytecode verifier does. Exception handlers start with a depth of one. The depths are computed from the
// instruction set semantics only, independently of any abstract interpretation of the method.
func StackDepths(body *Body, cp ConstantPool) ([]int, error) {
	depths := make([]int, len(body.Instrs))
	for i := range depths {
		depths[i] = Unreachable
	}
	var worklist []int
	enter := func(i int, depth int) error {
		switch depths[i] {
		case Unreachable:
			depths[i] = depth
			worklist = append(worklist, i)
		case depth:
		default:
			return fmt.Errorf("%w: inconsistent stack depth at offset %d: %d and %d", ErrMalformedClass,
				body.Instrs[i].Offset, depths[i], depth)
		}
		return nil
	}
	if err := enter(0, 0); err != nil {
		return nil, err
	}
	for _, h := range body.Handlers {
		if err := enter(body.Blocks[h.Target].First, 1); err != nil {
			return nil, err
		}
	}

	for len(worklist) > 0 {
		i := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		ins := body.Instrs[i]
		pop, push, err := StackEffect(ins, cp)
		if err != nil {
			return nil, err
		}
		if depths[i] < pop {
			return nil, fmt.Errorf("%w: stack underflow at offset %d (%s)", ErrMalformedClass, ins.Offset, ins.Op)
		}
		after := depths[i] - pop + push
		for _, t := range ins.Targets {
			if err := enter(body.IndexAt[t], after); err != nil {
				return nil, err
			}
		}
		if next := body.NextIndex(i); next >= 0 {
			if err := enter(next, after); err != nil {
				return nil, err
			}
		}
	}
	return depths, nil
}

// StackEffect returns the number of slots popped and pushed by an instruction.
//
//gocyclo:ignore
func StackEffect(ins Instruction, cp ConstantPool) (pop int, push int, err error) {
	switch ins.Op {
	case Nop, Iinc, Goto, Return:
		return 0, 0, nil
	case AconstNull, IconstM1, Iconst0, Iconst1, Iconst2, Iconst3, Iconst4, Iconst5, Fconst0, Fconst1, Fconst2,
		Bipush, Sipush, Iload, Fload, Aload, New:
		return 0, 1, nil
	case Lconst0, Lconst1, Dconst0, Dconst1, Lload, Dload:
		return 0, 2, nil
	case Ldc:
		n, err := cp.LoadableSize(ins.Index)
		return 0, n, err
	case Iaload, Faload, Aaload, Baload, Caload, Saload:
		return 2, 1, nil
	case Laload, Daload:
		return 2, 2, nil
	case Istore, Fstore, Astore, Pop, Ifeq, Ifne, Iflt, Ifge, Ifgt, Ifle, Ifnull, Ifnonnull, Tableswitch,
		Lookupswitch, Ireturn, Freturn, Areturn, Athrow, Monitorenter, Monitorexit:
		return 1, 0, nil
	case Lstore, Dstore, Pop2, IfIcmpeq, IfIcmpne, IfIcmplt, IfIcmpge, IfIcmpgt, IfIcmple, IfAcmpeq, IfAcmpne,
		Lreturn, Dreturn:
		return 2, 0, nil
	case Iastore, Fastore, Aastore, Bastore, Castore, Sastore:
		return 3, 0, nil
	case Lastore, Dastore:
		return 4, 0, nil
	case Dup:
		return 1, 2, nil
	case DupX1:
		return 2, 3, nil
	case DupX2:
		return 3, 4, nil
	case Dup2:
		return 2, 4, nil
	case Dup2X1:
		return 3, 5, nil
	case Dup2X2:
		return 4, 6, nil
	case Swap:
		return 2, 2, nil
	case Iadd, Fadd, Isub, Fsub, Imul, Fmul, Idiv, Fdiv, Irem, Frem, Ishl, Ishr, Iushr, Iand, Ior, Ixor, Fcmpl,
		Fcmpg, L2i, L2f, D2i, D2f:
		return 2, 1, nil
	case Ladd, Dadd, Lsub, Dsub, Lmul, Dmul, Ldiv, Ddiv, Lrem, Drem, Land, Lor, Lxor:
		return 4, 2, nil
	case Lcmp, Dcmpl, Dcmpg:
		return 4, 1, nil
	case Ineg, Fneg, I2f, I2b, I2c, I2s, F2i, Arraylength, Newarray, Anewarray, Checkcast, Instanceof:
		return 1, 1, nil
	case Lneg, Dneg, L2d, D2l:
		return 2, 2, nil
	case Lshl, Lshr, Lushr:
		return 3, 2, nil
	case I2l, I2d, F2l, F2d:
		return 1, 2, nil
	case Getstatic, Putstatic, Getfield, Putfield:
		ref, err := cp.MemberRef(ins.Index)
		if err != nil {
			return 0, 0, err
		}
		t, err := lang.ParseType(ref.Descriptor)
		if err != nil {
			return 0, 0, err
		}
		switch ins.Op {
		case Getstatic:
			return 0, t.Size(), nil
		case Putstatic:
			return t.Size(), 0, nil
		case Getfield:
			return 1, t.Size(), nil
		default:
			return 1 + t.Size(), 0, nil
		}
	case Invokevirtual, Invokespecial, Invokestatic, Invokeinterface:
		ref, err := cp.MemberRef(ins.Index)
		if err != nil {
			return 0, 0, err
		}
		md, err := lang.ParseMethodDescriptor(ref.Descriptor)
		if err != nil {
			return 0, 0, err
		}
		pop = md.ArgsSize()
		if ins.Op != Invokestatic {
			pop++
		}
		return pop, md.Return.Size(), nil
	case Invokedynamic:
		_, desc, err := cp.InvokeDynamic(ins.Index)
		if err != nil {
			return 0, 0, err
		}
		md, err := lang.ParseMethodDescriptor(desc)
		if err != nil {
			return 0, 0, err
		}
		return md.ArgsSize(), md.Return.Size(), nil
	case Multianewarray:
		return ins.Value, 1, nil
	case Jsr, Ret:
		return 0, 0, fmt.Errorf("%w: %s at offset %d", ErrUnsupportedInstruction, ins.Op, ins.Offset)
	default:
		return 0, 0, fmt.Errorf("%w: unexpected opcode %s at offset %d", ErrMalformedClass, ins.Op, ins.Offset)
	}
}
