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

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogGroupLevels(t *testing.T) {
	c := NewDefault()
	c.LogLevel = int(InfoLevel)
	l := NewLogGroup(c)
	var buf bytes.Buffer
	l.SetAllOutput(&buf)

	l.Debugf("hidden %d", 1)
	l.Tracef("hidden %d", 2)
	l.Infof("shown %d", 3)
	l.Warnf("warning %s", "w")
	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown 3")
	assert.Contains(t, out, "warning w")

	buf.Reset()
	l.SetLevel(TraceLevel)
	assert.Equal(t, TraceLevel, l.Level())
	l.Tracef("trace %d", 4)
	l.Debugf("debug %d", 5)
	assert.Contains(t, buf.String(), "[TRACE]")
	assert.Contains(t, buf.String(), "debug 5")
}

func TestLogGroupWithFields(t *testing.T) {
	l := NewLogGroup(NewDefault())
	var buf bytes.Buffer
	l.SetAllOutput(&buf)
	l.With("phase", "search").Infof("iteration %d", 10)
	line := strings.TrimSpace(buf.String())
	assert.Contains(t, line, "iteration 10")
	assert.Contains(t, line, "search")
}

func TestLogGroupFile(t *testing.T) {
	c := NewDefault()
	c.LogFile = filepath.Join(t.TempDir(), "gadgets.log")
	l := NewLogGroup(c)
	l.SetAllOutput(&bytes.Buffer{})
	l.Errorf("something failed: %v", "oops")
	require.NoError(t, l.Sync())
	b, err := os.ReadFile(c.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(b), "something failed: oops")
}
