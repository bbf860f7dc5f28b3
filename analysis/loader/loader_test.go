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

package loader_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/awslabs/ar-jvm-gadgets/analysis/classfile"
	"github.com/awslabs/ar-jvm-gadgets/analysis/config"
	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
	"github.com/awslabs/ar-jvm-gadgets/analysis/loader"
	at "github.com/awslabs/ar-jvm-gadgets/internal/analysistest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *config.LogGroup {
	l := config.NewLogGroup(config.NewDefault())
	l.SetAllOutput(&bytes.Buffer{})
	return l
}

func enumerate(t *testing.T, entries ...string) []string {
	t.Helper()
	cp, err := loader.Enumerate(entries)
	require.NoError(t, err)
	defer cp.Close()
	var names []string
	for _, r := range cp.Resources {
		b, err := r.Read()
		require.NoError(t, err)
		f, err := classfile.Parse(b)
		require.NoError(t, err, r.Name)
		names = append(names, f.ThisClass)
	}
	return names
}

func TestEnumerateDirectory(t *testing.T) {
	dir := t.TempDir()
	at.WriteClassDir(t, dir, at.NewClass("a/B").DefaultConstructor(), at.NewClass("a/c/D").DefaultConstructor())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "README"), []byte("not a class"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "module-info.class"), []byte{0}, 0o600))
	assert.ElementsMatch(t, []string{"a/B", "a/c/D"}, enumerate(t, dir))
}

func TestEnumerateJar(t *testing.T) {
	dir := t.TempDir()
	jar := at.WriteJar(t, dir, "lib.jar", at.NewClass("a/B"), at.NewClass("a/C"))
	assert.Equal(t, []string{"a/B", "a/C"}, enumerate(t, jar))

	cp, err := loader.Enumerate([]string{jar})
	require.NoError(t, err)
	require.Len(t, cp.Resources, 2)
	assert.Equal(t, jar+"!/a/B.class", cp.Resources[0].Name)
	require.NoError(t, cp.Close())
}

func TestEnumerateWar(t *testing.T) {
	dir := t.TempDir()
	entries := at.ClassEntries("WEB-INF/classes/", at.NewClass("app/Servlet"))
	entries["WEB-INF/lib/dep.jar"] = at.Archive(t, at.ClassEntries("", at.NewClass("dep/Util")))
	entries["WEB-INF/web.xml"] = []byte("<web-app/>")
	entries["static/Ignored.class"] = at.NewClass("static/Ignored").Bytes()
	war := filepath.Join(dir, "app.war")
	require.NoError(t, os.WriteFile(war, at.Archive(t, entries), 0o600))
	assert.ElementsMatch(t, []string{"app/Servlet", "dep/Util"}, enumerate(t, war))
}

func TestEnumerateJmod(t *testing.T) {
	dir := t.TempDir()
	content := at.Archive(t, at.ClassEntries("classes/", at.NewClass("java/lang/Thing")))
	jmod := filepath.Join(dir, "java.base.jmod")
	require.NoError(t, os.WriteFile(jmod, append([]byte{'J', 'M', 1, 0}, content...), 0o600))
	assert.Equal(t, []string{"java/lang/Thing"}, enumerate(t, jmod))

	bad := filepath.Join(dir, "bad.jmod")
	require.NoError(t, os.WriteFile(bad, content, 0o600))
	_, err := loader.Enumerate([]string{bad})
	assert.ErrorIs(t, err, loader.ErrUnsupportedEntry)
}

func TestEnumerateErrors(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, nil, 0o600))
	_, err := loader.Enumerate([]string{txt})
	assert.ErrorIs(t, err, loader.ErrUnsupportedEntry)
	_, err = loader.Enumerate([]string{filepath.Join(dir, "missing.jar")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	base := at.NewClass("a/Base").Implements("java/io/Serializable").
		Field(at.Private, "name", "Ljava/lang/String;").
		Field(at.Private|at.Transient, "cache", "[Ljava/lang/Object;").
		Field(at.Static, "COUNT", "I").
		Field(at.Protected, "size", "J").
		DefaultConstructor().
		AbstractMethod("run", "()V")
	base.Method(at.Public|at.Static, "of", "()La/Base;").Op(classfile.AconstNull, classfile.Areturn)
	iface := at.NewClass("a/Iface").AsInterface().AbstractMethod("call", "()V")
	excluded := at.NewClass("b/Excluded").DefaultConstructor()
	first := at.WriteJar(t, dir, "first.jar", base, iface, excluded)
	second := at.WriteJar(t, dir, "second.jar", at.NewClass("a/Base").Extends("a/Other"))
	broken := filepath.Join(dir, "classes")
	require.NoError(t, os.MkdirAll(broken, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(broken, "Broken.class"), []byte{0xCA, 0xFE}, 0o600))

	cp, err := loader.Enumerate([]string{first, second, broken})
	require.NoError(t, err)
	defer cp.Close()
	d := &loader.Discoverer{
		Exclude:    func(c string) bool { return strings.HasPrefix(c, "b/") },
		NumWorkers: 3,
		Logger:     testLogger(),
	}
	disc, stats, errs := d.Discover(context.Background(), cp.Resources)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], classfile.ErrMalformedClass)
	var resErr *loader.ResourceError
	require.ErrorAs(t, errs[0], &resErr)
	assert.True(t, strings.HasSuffix(resErr.Resource, "Broken.class"))

	assert.Equal(t, loader.Stats{Resources: 5, Classes: 2, Methods: 4, Failed: 1, Excluded: 1, Duplicates: 1}, stats)
	assert.Equal(t, lang.ClassInfo{
		Handle:     "a/Base",
		Super:      "java/lang/Object",
		Interfaces: []lang.ClassHandle{"java/io/Serializable"},
		Members: []lang.Member{
			{Name: "name", Modifiers: lang.AccPrivate, Type: "java/lang/String"},
			{Name: "cache", Modifiers: lang.AccPrivate | lang.AccTransient, Type: "[Ljava/lang/Object;"},
			{Name: "size", Modifiers: lang.AccProtected, Type: "J"},
		},
	}, disc.Classes["a/Base"])
	assert.True(t, disc.Classes["a/Iface"].IsInterface)
	assert.Equal(t, lang.MethodInfo{Handle: lang.NewMethodHandle("a/Base", "of", "()La/Base;"), IsStatic: true},
		disc.Methods[lang.NewMethodHandle("a/Base", "of", "()La/Base;")])
	assert.Contains(t, disc.Methods, lang.NewMethodHandle("a/Base", "run", "()V"))
	require.Len(t, disc.Files, 2)
	assert.Equal(t, "a/Base", disc.Files[0].ThisClass)
	assert.Equal(t, "a/Iface", disc.Files[1].ThisClass)
}
