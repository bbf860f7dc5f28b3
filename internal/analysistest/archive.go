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

package analysistest

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/awslabs/ar-jvm-gadgets/analysis/classfile"
)

// Archive builds the bytes of a zip archive from a map of entry names to contents.
func Archive(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range entries {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("could not create archive entry %s: %v", name, err)
		}
		if _, err := f.Write(content); err != nil {
			t.Fatalf("could not write archive entry %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("could not close archive: %v", err)
	}
	return buf.Bytes()
}

// ClassEntries maps the path of each class inside an archive (or a classes directory) to its bytes. The prefix
// is prepended to every path.
func ClassEntries(prefix string, classes ...*ClassBuilder) map[string][]byte {
	entries := make(map[string][]byte, len(classes))
	for _, c := range classes {
		entries[prefix+c.Name()+".class"] = c.Bytes()
	}
	return entries
}

// WriteJar writes a jar containing the classes in dir and returns its path.
func WriteJar(t *testing.T, dir string, name string, classes ...*ClassBuilder) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, Archive(t, ClassEntries("", classes...)), 0o600); err != nil {
		t.Fatalf("could not write %s: %v", path, err)
	}
	return path
}

// WriteClassDir writes the class files of the classes under dir, following the package structure.
func WriteClassDir(t *testing.T, dir string, classes ...*ClassBuilder) {
	t.Helper()
	for name, content := range ClassEntries("", classes...) {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatalf("could not create %s: %v", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, content, 0o600); err != nil {
			t.Fatalf("could not write %s: %v", path, err)
		}
	}
}

// ParseClasses assembles and parses the classes, failing the test on any error.
func ParseClasses(t *testing.T, classes ...*ClassBuilder) []*classfile.File {
	t.Helper()
	var files []*classfile.File
	for _, c := range classes {
		f, err := classfile.Parse(c.Bytes())
		if err != nil {
			t.Fatalf("could not parse assembled class %s: %v", c.Name(), err)
		}
		files = append(files, f)
	}
	return files
}
