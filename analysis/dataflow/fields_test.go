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

package dataflow_test

import (
	"testing"

	"github.com/awslabs/ar-jvm-gadgets/analysis/dataflow"
	"github.com/awslabs/ar-jvm-gadgets/analysis/inheritance"
	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
	"github.com/stretchr/testify/assert"
)

type classList map[lang.ClassHandle]bool

func (c classList) IsSerializable(h lang.ClassHandle) bool { return c[h] }

func mustType(t *testing.T, desc string) lang.Type {
	t.Helper()
	ty, err := lang.ParseType(desc)
	if err != nil {
		t.Fatal(err)
	}
	return ty
}

func TestFieldOracle(t *testing.T) {
	classes := map[lang.ClassHandle]lang.ClassInfo{
		"a/Base": {Handle: "a/Base", Super: "java/lang/Object", Members: []lang.Member{
			{Name: "inherited", Type: "a/Payload"},
			{Name: "hidden", Type: "a/Payload", Modifiers: lang.AccTransient},
		}},
		"a/Holder": {Handle: "a/Holder", Super: "a/Base", Members: []lang.Member{
			{Name: "payload", Type: "a/Payload"},
			{Name: "cache", Type: "a/Payload", Modifiers: lang.AccPrivate | lang.AccTransient},
			{Name: "hidden", Type: "a/Payload"},
		}},
		"a/Payload":    {Handle: "a/Payload", Super: "java/lang/Object"},
		"a/SubPayload": {Handle: "a/SubPayload", Super: "a/Payload"},
		"a/Opaque":     {Handle: "a/Opaque", Super: "java/lang/Object"},
	}
	idx := inheritance.NewIndex(map[lang.ClassHandle]inheritance.ClassSet{
		"a/Holder":     {"a/Base": true, "java/lang/Object": true},
		"a/Base":       {"java/lang/Object": true},
		"a/Payload":    {"java/lang/Object": true},
		"a/SubPayload": {"a/Payload": true, "java/lang/Object": true},
		"a/Opaque":     {"java/lang/Object": true},
	})
	oracle := dataflow.NewFieldOracle(classes, idx, classList{"a/SubPayload": true})
	payload := mustType(t, "La/Payload;")

	assert.True(t, oracle.CouldBeSerialized("a/Payload"), "a subclass is serializable")
	assert.False(t, oracle.CouldBeSerialized("a/Opaque"))

	tests := []struct {
		name  string
		field dataflow.FieldRef
		want  bool
	}{
		{"plain", dataflow.FieldRef{Owner: "a/Holder", Name: "payload", Type: payload}, true},
		{"transient", dataflow.FieldRef{Owner: "a/Holder", Name: "cache", Type: payload}, false},
		{"inherited", dataflow.FieldRef{Owner: "a/Holder", Name: "inherited", Type: payload}, true},
		{"shadowed transient", dataflow.FieldRef{Owner: "a/Holder", Name: "hidden", Type: payload}, true},
		{"inherited transient", dataflow.FieldRef{Owner: "a/Base", Name: "hidden", Type: payload}, false},
		{"unknown owner", dataflow.FieldRef{Owner: "a/Missing", Name: "x", Type: payload}, true},
		{"not serializable", dataflow.FieldRef{Owner: "a/Holder", Name: "payload", Type: mustType(t, "La/Opaque;")}, false},
		{"primitive", dataflow.FieldRef{Owner: "a/Holder", Name: "n", Type: mustType(t, "I")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, oracle.Taintable(tt.field))
		})
	}
}
