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

// Package dataflow implements an abstract interpreter of JVM bytecode that tracks sets of taint labels through the
// local variables and the operand stack of a method. The type of the labels and the treatment of parameters, field
// reads, calls and returns are chosen by a Policy.
//
// The interpreter computes a fixpoint over the basic blocks of the method: the entry frame of a block is the union of
// the frames flowing into it from its predecessors, and a block is interpreted again whenever its entry frame grows.
// A block with a single predecessor keeps the sharing of sets between the slots of the frame flowing into it; the
// slots of the entry frame of a join have their own sets.
// The entry frame of an exception handler is the union of the locals at every protected instruction, with a single
// stack slot for the exception.
package dataflow

import (
	"errors"
	"fmt"

	"github.com/awslabs/ar-jvm-gadgets/analysis/classfile"
	"github.com/awslabs/ar-jvm-gadgets/analysis/inheritance"
	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
	"github.com/awslabs/ar-jvm-gadgets/analysis/summaries"
)

// DefaultVisitsPerBlock bounds the number of times each block of a method is interpreted.
const DefaultVisitsPerBlock = 256

// Method is a method body ready to be interpreted
type Method struct {
	Handle   lang.MethodHandle
	IsStatic bool
	Body     *classfile.Body
	Pool     classfile.ConstantPool
	// depths are the verifier stack depths before each instruction
	depths []int
}

// NewMethod decodes the code of method m of class c.
func NewMethod(c *classfile.File, m classfile.Method) (*Method, error) {
	h := lang.NewMethodHandle(c.ThisClass, m.Name, m.Descriptor)
	if m.Code == nil {
		return nil, &MethodError{Method: h, Offset: -1, Err: ErrNoCode}
	}
	body, err := classfile.NewBody(m.Code)
	if err != nil {
		return nil, &MethodError{Method: h, Offset: -1, Err: err}
	}
	depths, err := classfile.StackDepths(body, c.ConstantPool)
	if err != nil {
		return nil, &MethodError{Method: h, Offset: -1, Err: err}
	}
	return &Method{Handle: h, IsStatic: m.IsStatic(), Body: body, Pool: c.ConstantPool, depths: depths}, nil
}

// ClassMethods decodes every method of c that has code. Methods without code (abstract and native methods) are
// skipped, the other decoding failures are returned as *MethodError values.
func ClassMethods(c *classfile.File) ([]*Method, []error) {
	var methods []*Method
	var errs []error
	for _, m := range c.Methods {
		if m.Code == nil {
			continue
		}
		dm, err := NewMethod(c, m)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		methods = append(methods, dm)
	}
	return methods, errs
}

// Interpreter interprets methods with the labels of type T.
type Interpreter[T comparable] struct {
	Policy Policy[T]

	// Inheritance is used by the collection heuristic: calls on receivers that implement java/util/Collection or
	// java/util/Map propagate the taint of all arguments to the receiver. Nil disables the heuristic.
	Inheritance *inheritance.Index

	// Passthrough summarizes the methods of the classpath. It may be nil.
	Passthrough summaries.Passthrough

	// VisitsPerBlock bounds the number of times each block is interpreted. Zero means DefaultVisitsPerBlock.
	VisitsPerBlock int

	// Trace, if not nil, is called with the entry frame of every block before the block is interpreted. The frame
	// must not be modified.
	Trace func(block int, entry *Frame[T])
}

// run is the state of the interpretation of one method
type run[T comparable] struct {
	it      *Interpreter[T]
	method  *Method
	entries []*Frame[T]
	preds   []int
	queued  []bool
	queue   []int
	offset  int
}

// Run interprets the method with the interpreter's policy. Errors are *MethodError values wrapping one of the
// package's sentinel errors or a classfile error. Panics during the interpretation are returned as errors.
func (it *Interpreter[T]) Run(m *Method) (err error) {
	r := &run[T]{
		it:      it,
		method:  m,
		entries: make([]*Frame[T], len(m.Body.Blocks)),
		preds:   predecessors(m.Body),
		queued:  make([]bool, len(m.Body.Blocks)),
		offset:  -1,
	}
	defer func() {
		if x := recover(); x != nil {
			cause, ok := x.(error)
			if !ok || !errors.Is(cause, ErrMalformedCode) {
				cause = fmt.Errorf("%w: %v", ErrMalformedCode, x)
			}
			err = &MethodError{Method: m.Handle, Offset: r.offset, Err: cause}
		}
	}()
	if m.depths == nil {
		if m.depths, err = classfile.StackDepths(m.Body, m.Pool); err != nil {
			return &MethodError{Method: m.Handle, Offset: -1, Err: err}
		}
	}
	entry, err := r.entryFrame()
	if err != nil {
		return &MethodError{Method: m.Handle, Offset: -1, Err: err}
	}
	if err := r.flow(0, entry); err != nil {
		return &MethodError{Method: m.Handle, Offset: 0, Err: err}
	}
	if err := r.fixpoint(); err != nil {
		return &MethodError{Method: m.Handle, Offset: r.offset, Err: err}
	}
	return nil
}

// entryFrame returns the frame at the entry of the method, with the labels of the parameters in their locals
func (r *run[T]) entryFrame() (*Frame[T], error) {
	md, err := lang.ParseMethodDescriptor(r.method.Handle.Desc)
	if err != nil {
		return nil, err
	}
	f := &Frame[T]{}
	local, arg := 0, 0
	if !r.method.IsStatic {
		f.SetLocal(local, NewTaintSet(r.it.Policy.SeedParameter(arg)...))
		local++
		arg++
	}
	for _, t := range md.Args {
		f.SetLocal(local, NewTaintSet(r.it.Policy.SeedParameter(arg)...))
		local += t.Size()
		arg++
	}
	return f, nil
}

// predecessors counts the edges entering each block. The method entry is an edge into the first block, and each
// exception handler counts as two edges into its target.
func predecessors(body *classfile.Body) []int {
	preds := make([]int, len(body.Blocks))
	if len(preds) > 0 {
		preds[0]++
	}
	for _, blk := range body.Blocks {
		for _, s := range blk.Succs {
			preds[s]++
		}
	}
	for _, h := range body.Handlers {
		preds[h.Target] += 2
	}
	return preds
}

// flow merges the frame into the entry frame of block b, and queues b if its entry frame changed
func (r *run[T]) flow(b int, f *Frame[T]) error {
	if r.entries[b] == nil {
		if r.preds[b] == 1 {
			r.entries[b] = f.Clone()
		} else {
			r.entries[b] = f.Unshared()
		}
	} else {
		grew, err := r.entries[b].Merge(f)
		if err != nil || !grew {
			return err
		}
	}
	if !r.queued[b] {
		r.queued[b] = true
		r.queue = append(r.queue, b)
	}
	return nil
}

func (r *run[T]) fixpoint() error {
	body := r.method.Body
	budget := r.it.VisitsPerBlock
	if budget <= 0 {
		budget = DefaultVisitsPerBlock
	}
	budget *= len(body.Blocks)
	for len(r.queue) > 0 {
		if budget == 0 {
			return ErrNoFixpoint
		}
		budget--
		b := r.queue[0]
		r.queue = r.queue[1:]
		r.queued[b] = false

		blk := body.Blocks[b]
		if r.it.Trace != nil {
			r.it.Trace(b, r.entries[b])
		}
		frame := r.entries[b].Clone()
		for i := blk.First; i <= blk.Last; i++ {
			ins := body.Instrs[i]
			r.offset = ins.Offset
			if len(frame.Stack) != r.method.depths[i] {
				return fmt.Errorf("%w: %d slots before %s, verifier computed %d", ErrStackMismatch,
					len(frame.Stack), ins.Op, r.method.depths[i])
			}
			if err := r.flowToHandlers(i, frame); err != nil {
				return err
			}
			if err := r.exec(frame, ins); err != nil {
				return err
			}
		}
		for _, s := range blk.Succs {
			if err := r.flow(s, frame); err != nil {
				return err
			}
		}
	}
	return nil
}

// flowToHandlers merges the locals of the frame before instruction i into the handlers protecting i
func (r *run[T]) flowToHandlers(i int, f *Frame[T]) error {
	for _, h := range r.method.Body.Handlers {
		if i < h.Start || i >= h.End {
			continue
		}
		hf := &Frame[T]{Locals: f.Locals, Stack: []*TaintSet[T]{NewTaintSet[T]()}}
		if err := r.flow(h.Target, hf); err != nil {
			return err
		}
	}
	return nil
}
