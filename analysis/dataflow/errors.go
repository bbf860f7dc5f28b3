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
	"errors"
	"fmt"

	"github.com/awslabs/ar-jvm-gadgets/analysis/classfile"
	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
)

var (
	// ErrUnsupportedInstruction is returned for methods using instructions that are not modelled (jsr and ret)
	ErrUnsupportedInstruction = classfile.ErrUnsupportedInstruction

	// ErrStackMismatch is returned when the abstract operand stack does not have the height computed by the
	// verifier, which means an instruction is not modelled correctly
	ErrStackMismatch = errors.New("abstract stack does not match verifier stack")

	// ErrMalformedCode is returned when the code of a method cannot be interpreted
	ErrMalformedCode = errors.New("malformed code")

	// ErrNoFixpoint is returned when the interpretation of a method does not converge within its iteration budget
	ErrNoFixpoint = errors.New("no fixpoint reached")

	// ErrNoCode is returned when interpreting a method without code (abstract or native)
	ErrNoCode = errors.New("method has no code")
)

// MethodError is the error returned when the interpretation of a method fails. Only that method is affected.
type MethodError struct {
	Method lang.MethodHandle
	// Offset is the bytecode offset of the instruction being interpreted, -1 if the failure is not at an instruction
	Offset int
	Err    error
}

func (e *MethodError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("error interpreting %s: %v", e.Method, e.Err)
	}
	return fmt.Sprintf("error interpreting %s at offset %d: %v", e.Method, e.Offset, e.Err)
}

func (e *MethodError) Unwrap() error {
	return e.Err
}
