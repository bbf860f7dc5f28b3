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

package dataflow

import (
	"fmt"

	cf "github.com/awslabs/ar-jvm-gadgets/analysis/classfile"
	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
	"github.com/awslabs/ar-jvm-gadgets/analysis/summaries"
)

const (
	objectInputStream = "java/io/ObjectInputStream"
	collectionClass   = lang.ClassHandle("java/util/Collection")
	mapClass          = lang.ClassHandle("java/util/Map")
)

// exec applies the effect of one instruction to the frame. Only reference values carry taint: primitive loads,
// arithmetic and array element loads push empty sets.
//
//gocyclo:ignore
func (r *run[T]) exec(f *Frame[T], ins cf.Instruction) error {
	switch ins.Op {
	case cf.Nop, cf.Iinc, cf.Checkcast, cf.Goto:

	case cf.AconstNull, cf.IconstM1, cf.Iconst0, cf.Iconst1, cf.Iconst2, cf.Iconst3, cf.Iconst4, cf.Iconst5,
		cf.Fconst0, cf.Fconst1, cf.Fconst2, cf.Bipush, cf.Sipush, cf.New:
		f.PushEmpty(1)
	case cf.Lconst0, cf.Lconst1, cf.Dconst0, cf.Dconst1:
		f.PushEmpty(2)
	case cf.Ldc:
		n, err := r.method.Pool.LoadableSize(ins.Index)
		if err != nil {
			return err
		}
		f.PushEmpty(n)

	case cf.Iload, cf.Fload:
		f.Local(ins.Index)
		f.PushEmpty(1)
	case cf.Lload, cf.Dload:
		f.Local(ins.Index)
		f.PushEmpty(2)
	case cf.Aload:
		f.Push(f.Local(ins.Index))
	case cf.Istore, cf.Fstore:
		f.Pop()
		f.SetLocal(ins.Index, NewTaintSet[T]())
	case cf.Lstore, cf.Dstore:
		f.PopN(2)
		f.SetLocal(ins.Index, NewTaintSet[T]())
	case cf.Astore:
		f.SetLocal(ins.Index, f.Pop())

	case cf.Iaload, cf.Faload, cf.Aaload, cf.Baload, cf.Caload, cf.Saload:
		f.PopN(2)
		f.PushEmpty(1)
	case cf.Laload, cf.Daload:
		f.PopN(2)
		f.PushEmpty(2)
	case cf.Iastore, cf.Fastore, cf.Aastore, cf.Bastore, cf.Castore, cf.Sastore:
		f.PopN(3)
	case cf.Lastore, cf.Dastore:
		f.PopN(4)

	case cf.Pop, cf.Monitorenter, cf.Monitorexit, cf.Athrow, cf.Ifeq, cf.Ifne, cf.Iflt, cf.Ifge, cf.Ifgt, cf.Ifle,
		cf.Ifnull, cf.Ifnonnull, cf.Tableswitch, cf.Lookupswitch:
		f.Pop()
	case cf.Pop2, cf.IfIcmpeq, cf.IfIcmpne, cf.IfIcmplt, cf.IfIcmpge, cf.IfIcmpgt, cf.IfIcmple, cf.IfAcmpeq,
		cf.IfAcmpne:
		f.PopN(2)

	case cf.Dup:
		f.Push(f.Peek(0))
	case cf.DupX1:
		a, b := f.Pop(), f.Pop()
		f.Push(a, b, a)
	case cf.DupX2:
		a, b, c := f.Pop(), f.Pop(), f.Pop()
		f.Push(a, c, b, a)
	case cf.Dup2:
		a, b := f.Peek(1), f.Peek(0)
		f.Push(a, b)
	case cf.Dup2X1:
		c, b, a := f.Pop(), f.Pop(), f.Pop()
		f.Push(b, c, a, b, c)
	case cf.Dup2X2:
		d, c, b, a := f.Pop(), f.Pop(), f.Pop(), f.Pop()
		f.Push(c, d, a, b, c, d)
	case cf.Swap:
		a, b := f.Pop(), f.Pop()
		f.Push(a, b)

	case cf.Iadd, cf.Fadd, cf.Isub, cf.Fsub, cf.Imul, cf.Fmul, cf.Idiv, cf.Fdiv, cf.Irem, cf.Frem, cf.Ishl, cf.Ishr,
		cf.Iushr, cf.Iand, cf.Ior, cf.Ixor, cf.Fcmpl, cf.Fcmpg, cf.L2i, cf.L2f, cf.D2i, cf.D2f:
		f.PopN(2)
		f.PushEmpty(1)
	case cf.Ladd, cf.Dadd, cf.Lsub, cf.Dsub, cf.Lmul, cf.Dmul, cf.Ldiv, cf.Ddiv, cf.Lrem, cf.Drem, cf.Land, cf.Lor,
		cf.Lxor:
		f.PopN(4)
		f.PushEmpty(2)
	case cf.Lcmp, cf.Dcmpl, cf.Dcmpg:
		f.PopN(4)
		f.PushEmpty(1)
	case cf.Ineg, cf.Fneg, cf.I2f, cf.I2b, cf.I2c, cf.I2s, cf.F2i, cf.Arraylength, cf.Newarray, cf.Anewarray,
		cf.Instanceof:
		f.Pop()
		f.PushEmpty(1)
	case cf.Lneg, cf.Dneg, cf.L2d, cf.D2l:
		f.PopN(2)
		f.PushEmpty(2)
	case cf.Lshl, cf.Lshr, cf.Lushr:
		f.PopN(3)
		f.PushEmpty(2)
	case cf.I2l, cf.I2d, cf.F2l, cf.F2d:
		f.Pop()
		f.PushEmpty(2)
	case cf.Multianewarray:
		f.PopN(ins.Value)
		f.PushEmpty(1)

	case cf.Ireturn, cf.Freturn, cf.Areturn:
		r.it.Policy.Return(ins.Op, f.Peek(0))
		f.Pop()
	case cf.Lreturn, cf.Dreturn:
		r.it.Policy.Return(ins.Op, f.Peek(1))
		f.PopN(2)
	case cf.Return:
		r.it.Policy.Return(ins.Op, nil)

	case cf.Getstatic, cf.Putstatic, cf.Getfield, cf.Putfield:
		return r.field(f, ins)
	case cf.Invokevirtual, cf.Invokespecial, cf.Invokestatic, cf.Invokeinterface:
		return r.invoke(f, ins)
	case cf.Invokedynamic:
		_, desc, err := r.method.Pool.InvokeDynamic(ins.Index)
		if err != nil {
			return err
		}
		md, err := lang.ParseMethodDescriptor(desc)
		if err != nil {
			return err
		}
		f.PopN(md.ArgsSize())
		f.PushEmpty(md.Return.Size())

	case cf.Jsr, cf.Ret:
		return fmt.Errorf("%w: %s", ErrUnsupportedInstruction, ins.Op)

	case cf.Iload0, cf.Iload1, cf.Iload2, cf.Iload3, cf.Lload0, cf.Lload1, cf.Lload2, cf.Lload3, cf.Fload0,
		cf.Fload1, cf.Fload2, cf.Fload3, cf.Dload0, cf.Dload1, cf.Dload2, cf.Dload3, cf.Aload0, cf.Aload1, cf.Aload2,
		cf.Aload3, cf.Istore0, cf.Istore1, cf.Istore2, cf.Istore3, cf.Lstore0, cf.Lstore1, cf.Lstore2, cf.Lstore3,
		cf.Fstore0, cf.Fstore1, cf.Fstore2, cf.Fstore3, cf.Dstore0, cf.Dstore1, cf.Dstore2, cf.Dstore3, cf.Astore0,
		cf.Astore1, cf.Astore2, cf.Astore3, cf.LdcW, cf.Ldc2W, cf.Wide, cf.GotoW, cf.JsrW:
		return fmt.Errorf("%w: %s was not normalized by the decoder", ErrMalformedCode, ins.Op)
	default:
		return fmt.Errorf("%w: unknown opcode %d", ErrMalformedCode, ins.Op)
	}
	return nil
}

func (r *run[T]) field(f *Frame[T], ins cf.Instruction) error {
	ref, err := r.method.Pool.MemberRef(ins.Index)
	if err != nil {
		return err
	}
	t, err := lang.ParseType(ref.Descriptor)
	if err != nil {
		return err
	}
	switch ins.Op {
	case cf.Getstatic:
		f.PushEmpty(t.Size())
	case cf.Putstatic:
		f.PopN(t.Size())
	case cf.Getfield:
		receiver := f.Pop()
		if t.Size() == 1 {
			field := FieldRef{Owner: lang.ClassHandle(ref.Owner), Name: ref.Name, Type: t}
			f.Push(r.it.Policy.FieldRead(field, receiver))
		} else {
			f.PushEmpty(t.Size())
		}
	case cf.Putfield:
		f.PopN(t.Size())
		f.Pop()
	}
	return nil
}

func (r *run[T]) invoke(f *Frame[T], ins cf.Instruction) error {
	ref, err := r.method.Pool.MemberRef(ins.Index)
	if err != nil {
		return err
	}
	md, err := lang.ParseMethodDescriptor(ref.Descriptor)
	if err != nil {
		return err
	}
	argTypes := md.Args
	if ins.Op != cf.Invokestatic {
		argTypes = append([]lang.Type{lang.ObjectType(ref.Owner)}, md.Args...)
	}

	args := make([]*TaintSet[T], len(argTypes))
	for i := len(argTypes) - 1; i >= 0; i-- {
		f.PopN(argTypes[i].Size() - 1)
		args[i] = f.Pop()
	}

	callee := lang.NewMethodHandle(ref.Owner, ref.Name, ref.Descriptor)
	r.it.Policy.BeforeCall(CallSite[T]{
		Caller:   r.method.Handle,
		Callee:   callee,
		Op:       ins.Op,
		Offset:   ins.Offset,
		ArgTypes: argTypes,
		Args:     args,
	})

	// the initialized object is tainted by the arguments flowing through the constructor
	var result *TaintSet[T]
	if callee.IsConstructor() && len(args) > 0 {
		result = args[0]
	} else {
		result = NewTaintSet[T]()
	}

	if ref.Owner == objectInputStream && ref.Name == "defaultReadObject" && ref.Descriptor == "()V" {
		f.Local(0).AddAll(args[0])
	}

	passthrough := func(positions []int) {
		for _, p := range positions {
			if p >= 0 && p < len(args) {
				result.AddAll(args[p])
			}
		}
	}
	if positions, ok := summaries.StandardLibrary(callee); ok {
		passthrough(positions)
	}
	if r.it.Passthrough != nil {
		passthrough(r.it.Passthrough.Args(callee))
	}

	if ins.Op != cf.Invokestatic && argTypes[0].Sort() == lang.Object && r.it.Inheritance != nil {
		parents, ok := r.it.Inheritance.SuperClasses(lang.ClassHandle(argTypes[0].InternalName()))
		if ok && (parents[collectionClass] || parents[mapClass]) {
			for _, a := range args[1:] {
				args[0].AddAll(a)
			}
			if s := md.Return.Sort(); s == lang.Object || s == lang.Array {
				result.AddAll(args[0])
			}
		}
	}

	if size := md.Return.Size(); size > 0 {
		f.Push(result)
		f.PushEmpty(size - 1)
	}
	return nil
}
