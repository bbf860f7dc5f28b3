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
	"sync"

	"github.com/awslabs/ar-jvm-gadgets/analysis/inheritance"
	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
)

// A Decider decides whether instances of a class can be produced by a deserialization framework.
type Decider interface {
	IsSerializable(c lang.ClassHandle) bool
}

// FieldOracle decides whether the value read from a field can carry the taint of the object it is read from. It is
// safe for concurrent use.
type FieldOracle struct {
	classes     map[lang.ClassHandle]lang.ClassInfo
	inheritance *inheritance.Index
	decider     Decider

	serializable sync.Map // lang.ClassHandle -> bool
}

// NewFieldOracle returns a field oracle for the classes of the classpath.
func NewFieldOracle(classes map[lang.ClassHandle]lang.ClassInfo, idx *inheritance.Index, d Decider) *FieldOracle {
	return &FieldOracle{classes: classes, inheritance: idx, decider: d}
}

// CouldBeSerialized returns true if the class or one of its subclasses is serializable.
func (o *FieldOracle) CouldBeSerialized(c lang.ClassHandle) bool {
	if v, ok := o.serializable.Load(c); ok {
		return v.(bool)
	}
	res := o.decider.IsSerializable(c)
	if !res {
		for sub := range o.inheritance.SubClasses(c) {
			if o.decider.IsSerializable(sub) {
				res = true
				break
			}
		}
	}
	o.serializable.Store(c, res)
	return res
}

// Taintable returns false if the field is effectively transient: its type cannot be serialized, or the first
// declaration of the field found walking up from its owner class is transient.
func (o *FieldOracle) Taintable(field FieldRef) bool {
	if !o.CouldBeSerialized(lang.ClassHandle(field.Type.InternalName())) {
		return false
	}
	// bounded by the number of classes in case of cyclic inheritance
	steps := 0
	for clazz, ok := o.classes[field.Owner]; ok && steps <= len(o.classes); clazz, ok = o.classes[clazz.Super] {
		steps++
		if member, found := clazz.FindMember(field.Name); found {
			return !member.IsTransient()
		}
		if clazz.Super == "" {
			break
		}
	}
	return true
}
