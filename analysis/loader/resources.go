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

// Package loader finds the class files of a classpath and discovers the classes and methods they define.
package loader

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// ErrUnsupportedEntry is returned for classpath entries that are neither directories nor archives of class files
var ErrUnsupportedEntry = errors.New("unsupported classpath entry")

// jmodHeader is the header that precedes the zip content of a jmod file
var jmodHeader = []byte{'J', 'M', 0x01, 0x00}

// Locations of the classes and the libraries inside war and jmod archives
const (
	warClassesPrefix  = "WEB-INF/classes/"
	warLibPrefix      = "WEB-INF/lib/"
	jmodClassesPrefix = "classes/"
)

// Resource is a class file of the classpath
type Resource struct {
	// Name locates the class file, e.g. lib/a.jar!/a/B.class
	Name string
	open func() (io.ReadCloser, error)
}

// Open returns the content of the class file
func (r Resource) Open() (io.ReadCloser, error) {
	return r.open()
}

// Read returns the content of the class file
func (r Resource) Read() ([]byte, error) {
	rc, err := r.open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Classpath is the set of class files of a list of classpath entries. It must be closed after the resources have
// been read.
type Classpath struct {
	Resources []Resource
	closers   []io.Closer
}

// Close releases the archives of the classpath
func (cp *Classpath) Close() error {
	var errs []error
	for _, c := range cp.closers {
		errs = append(errs, c.Close())
	}
	cp.closers = nil
	return errors.Join(errs...)
}

// Enumerate returns the class files of the classpath entries, in order. An entry can be a directory of class files,
// a jar or zip archive, a war archive (its WEB-INF/classes directory and the jars of WEB-INF/lib) or a jmod file. A
// leading ~ in entries is expanded to the home directory.
func Enumerate(entries []string) (*Classpath, error) {
	cp := &Classpath{}
	for _, entry := range entries {
		path, err := homedir.Expand(entry)
		if err != nil {
			cp.Close()
			return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedEntry, entry, err)
		}
		if err := cp.add(path); err != nil {
			cp.Close()
			return nil, err
		}
	}
	return cp, nil
}

func (cp *Classpath) add(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return cp.addDir(path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jar", ".zip":
		return cp.addArchive(path, "", false)
	case ".war":
		return cp.addArchive(path, warClassesPrefix, true)
	case ".jmod":
		return cp.addJmod(path, info.Size())
	case ".class":
		cp.Resources = append(cp.Resources, fileResource(path))
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedEntry, path)
	}
}

func fileResource(path string) Resource {
	return Resource{Name: path, open: func() (io.ReadCloser, error) { return os.Open(path) }}
}

func (cp *Classpath) addDir(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isClassFile(path) {
			cp.Resources = append(cp.Resources, fileResource(path))
		}
		return nil
	})
}

func (cp *Classpath) addArchive(path string, prefix string, isWar bool) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", path, err)
	}
	cp.closers = append(cp.closers, r)
	return cp.addZipEntries(path, &r.Reader, prefix, isWar)
}

func (cp *Classpath) addJmod(path string, size int64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	cp.closers = append(cp.closers, f)
	header := make([]byte, len(jmodHeader))
	if _, err := io.ReadFull(f, header); err != nil || !bytes.Equal(header, jmodHeader) {
		return fmt.Errorf("%w: %s is not a jmod file", ErrUnsupportedEntry, path)
	}
	n := int64(len(jmodHeader))
	r, err := zip.NewReader(io.NewSectionReader(f, n, size-n), size-n)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", path, err)
	}
	return cp.addZipEntries(path, r, jmodClassesPrefix, false)
}

// addZipEntries adds the class files of the archive whose name starts with prefix. The jars under WEB-INF/lib of a
// war are read in memory and added too.
func (cp *Classpath) addZipEntries(path string, r *zip.Reader, prefix string, isWar bool) error {
	files := make([]*zip.File, 0, len(r.File))
	files = append(files, r.File...)
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	for _, f := range files {
		if f.FileInfo().IsDir() {
			continue
		}
		if isWar && strings.HasPrefix(f.Name, warLibPrefix) && strings.EqualFold(filepath.Ext(f.Name), ".jar") {
			if err := cp.addNestedJar(path+"!/"+f.Name, f); err != nil {
				return err
			}
			continue
		}
		if !strings.HasPrefix(f.Name, prefix) || !isClassFile(f.Name) {
			continue
		}
		cp.Resources = append(cp.Resources, Resource{Name: path + "!/" + f.Name, open: f.Open})
	}
	return nil
}

func (cp *Classpath) addNestedJar(name string, f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("could not open %s: %w", name, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("could not read %s: %w", name, err)
	}
	r, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return fmt.Errorf("could not open %s: %w", name, err)
	}
	return cp.addZipEntries(name, r, "", false)
}

// isClassFile returns true for class files, except the descriptors of modules and packages
func isClassFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, ".class") && base != "module-info.class" && base != "package-info.class"
}
