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

package taint_test

import (
	"bytes"
	"testing"

	"github.com/awslabs/ar-jvm-gadgets/analysis/taint"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleChains() []taint.Chain {
	src := m("a/Entry", "readObject", "(Ljava/io/ObjectInputStream;)V")
	relay := m("a/Relay", "run", "("+obj+")V")
	return []taint.Chain{
		{{Method: src, Arg: 1}, {Method: relay, Arg: 0}, {Method: exec, Arg: 1}},
		{{Method: m("a/Other", "hashCode", "()I"), Arg: 0}, {Method: exec, Arg: 1}},
	}
}

func TestWriteChains(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, taint.WriteChains(&buf, sampleChains()))
	want := "a/Entry.readObject(Ljava/io/ObjectInputStream;)V (1)\n" +
		"  a/Relay.run(Ljava/lang/Object;)V (0)\n" +
		"  java/lang/Runtime.exec(Ljava/lang/String;)Ljava/lang/Process; (1)\n" +
		"\n" +
		"a/Other.hashCode()I (0)\n" +
		"  java/lang/Runtime.exec(Ljava/lang/String;)Ljava/lang/Process; (1)\n" +
		"\n"
	assert.Equal(t, want, buf.String())

	buf.Reset()
	require.NoError(t, taint.WriteChains(&buf, nil))
	assert.Empty(t, buf.String())
}

func TestJSONReport(t *testing.T) {
	r := taint.NewReport("jserial", sampleChains(), taint.Stats{Sources: 2, Iterations: 3, Explored: 3, Chains: 2})
	_, err := uuid.Parse(r.RunID)
	require.NoError(t, err)
	assert.NotEqual(t, r.RunID, taint.NewReport("jserial", nil, taint.Stats{}).RunID)

	var buf bytes.Buffer
	require.NoError(t, r.WriteJSON(&buf))
	var decoded map[string]any
	require.NoError(t, jsoniter.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "jserial", decoded["framework"])
	assert.Equal(t, r.RunID, decoded["run_id"])
	assert.Equal(t, float64(2), decoded["stats"].(map[string]any)["chains"])
	chains := decoded["chains"].([]any)
	require.Len(t, chains, 2)
	first := chains[0].([]any)
	require.Len(t, first, 3)
	assert.Equal(t, map[string]any{
		"class":  "java/lang/Runtime",
		"method": "exec",
		"desc":   "(Ljava/lang/String;)Ljava/lang/Process;",
		"arg":    float64(1),
	}, first[2])
}

func TestJSONReportWithoutChains(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, taint.NewReport("xstream", nil, taint.Stats{}).WriteJSON(&buf))
	assert.Contains(t, buf.String(), `"chains": []`)
}
