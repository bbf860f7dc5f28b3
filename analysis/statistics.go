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

package analysis

import (
	"context"
	"sort"

	"github.com/awslabs/ar-jvm-gadgets/analysis/classfile"
	"github.com/awslabs/ar-jvm-gadgets/analysis/config"
	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
)

// BytecodeStats are general statistics about the class files of a classpath
type BytecodeStats struct {
	NumberOfClasses                uint
	NumberOfInterfaces             uint
	NumberOfMethods                uint
	NumberOfMethodsWithCode        uint
	NumberOfBlocks                 uint
	NumberOfInstructions           uint
	NumberOfUndecodableMethods     uint
	NumberOfExceptionHandlers      uint
	NumberOfMethodsWithSubroutines uint
}

// BytecodeStatistics returns general statistics about the class files. Methods whose code cannot be decoded are
// counted but contribute no blocks or instructions.
func BytecodeStatistics(files []*classfile.File) BytecodeStats {
	var result BytecodeStats
	for _, f := range files {
		result.NumberOfClasses++
		if f.AccessFlags&lang.AccInterface != 0 {
			result.NumberOfInterfaces++
		}
		for _, m := range f.Methods {
			result.NumberOfMethods++
			if m.Code == nil {
				continue
			}
			result.NumberOfMethodsWithCode++
			body, err := classfile.NewBody(m.Code)
			if err != nil {
				result.NumberOfUndecodableMethods++
				continue
			}
			result.NumberOfBlocks += uint(len(body.Blocks))
			result.NumberOfInstructions += uint(len(body.Instrs))
			result.NumberOfExceptionHandlers += uint(len(body.Handlers))
			for _, ins := range body.Instrs {
				if ins.Op == classfile.Jsr || ins.Op == classfile.Ret {
					result.NumberOfMethodsWithSubroutines++
					break
				}
			}
		}
	}
	return result
}

// InvokeStats logs the number of call sites of each invoke instruction, and the classes that are the most called.
// At most top classes are logged.
func InvokeStats(logger *config.LogGroup, files []*classfile.File, top int) {
	byOp := map[classfile.Opcode]int{}
	byOwner := map[string]int{}
	for _, f := range files {
		for _, m := range f.Methods {
			if m.Code == nil {
				continue
			}
			instrs, err := classfile.Decode(m.Code.Bytecode)
			if err != nil {
				continue
			}
			for _, ins := range instrs {
				switch ins.Op {
				case classfile.Invokevirtual, classfile.Invokespecial, classfile.Invokestatic,
					classfile.Invokeinterface:
					byOp[ins.Op]++
					if ref, err := f.ConstantPool.MemberRef(ins.Index); err == nil {
						byOwner[ref.Owner]++
					}
				case classfile.Invokedynamic:
					byOp[ins.Op]++
				}
			}
		}
	}
	for _, op := range []classfile.Opcode{classfile.Invokevirtual, classfile.Invokespecial, classfile.Invokestatic,
		classfile.Invokeinterface, classfile.Invokedynamic} {
		logger.Infof("%-16s %d call sites", op, byOp[op])
	}
	owners := make([]string, 0, len(byOwner))
	for owner := range byOwner {
		owners = append(owners, owner)
	}
	sort.Slice(owners, func(i, j int) bool {
		if byOwner[owners[i]] != byOwner[owners[j]] {
			return byOwner[owners[i]] > byOwner[owners[j]]
		}
		return owners[i] < owners[j]
	})
	if len(owners) > top {
		owners = owners[:top]
	}
	for _, owner := range owners {
		logger.Infof("%6d calls to %s", byOwner[owner], owner)
	}
}

// ClassFileStatistics loads the class files of the classpath and returns their statistics. Call sites are logged at
// the debug level.
func (s *State) ClassFileStatistics(ctx context.Context) (BytecodeStats, error) {
	if err := s.LoadClassFiles(ctx); err != nil {
		return BytecodeStats{}, err
	}
	if s.Logger.Level() >= config.DebugLevel {
		InvokeStats(s.Logger, s.files, 20)
	}
	return BytecodeStatistics(s.files), nil
}
