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

// Package store reads and writes the artifacts of the phases of the analysis. Each artifact is a tab-separated file
// with one record per line, written once by the phase that computes it and read back entirely by the phases that
// need it. A run can be resumed from the artifacts of a previous run.
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/awslabs/ar-jvm-gadgets/analysis/inheritance"
	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
)

// Names of the artifacts in the output directory
const (
	ClassesFile     = "classes.dat"
	MethodsFile     = "methods.dat"
	InheritanceFile = "inheritanceMap.dat"
	PassthroughFile = "passthrough.dat"
	CallGraphFile   = "callgraph.dat"
	SourcesFile     = "sources.dat"
	MethodImplFile  = "methodimpl.dat"
	ChainsFile      = "gadget-chains.txt"
)

// Artifacts lists the artifacts in the order the phases produce them
var Artifacts = []string{
	ClassesFile, MethodsFile, InheritanceFile, PassthroughFile, CallGraphFile, SourcesFile, MethodImplFile, ChainsFile,
}

// ErrMalformedRecord is returned (wrapped) when a line of an artifact cannot be parsed
var ErrMalformedRecord = errors.New("malformed record")

// Store is a directory of artifacts
type Store struct {
	Dir string
}

// New returns the store of directory dir, creating the directory if needed
func New(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return Store{}, fmt.Errorf("could not create output directory: %w", err)
	}
	return Store{Dir: dir}, nil
}

// Path returns the path of an artifact
func (s Store) Path(name string) string {
	return filepath.Join(s.Dir, name)
}

// Exists returns true if all the artifacts exist
func (s Store) Exists(names ...string) bool {
	for _, name := range names {
		if _, err := os.Stat(s.Path(name)); err != nil {
			return false
		}
	}
	return true
}

// Remove deletes the artifacts. Missing artifacts are ignored.
func (s Store) Remove(names ...string) error {
	for _, name := range names {
		if err := os.Remove(s.Path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// create writes the artifact name with write
func (s Store) create(name string, write func(w io.Writer) error) (err error) {
	f, err := os.Create(s.Path(name))
	if err != nil {
		return fmt.Errorf("could not create %s: %w", name, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("could not write %s: %w", name, cerr)
		}
	}()
	if err := write(f); err != nil {
		return fmt.Errorf("could not write %s: %w", name, err)
	}
	return nil
}

// writeRecords writes the artifact name as tab-separated records
func (s Store) writeRecords(name string, records func(w *csv.Writer) error) error {
	return s.create(name, func(f io.Writer) error {
		w := csv.NewWriter(f)
		w.Comma = '\t'
		if err := records(w); err != nil {
			return err
		}
		w.Flush()
		return w.Error()
	})
}

// readRecords calls parse on every record of the artifact name. Records with fewer than minFields fields are
// rejected.
func (s Store) readRecords(name string, minFields int, parse func(fields []string) error) error {
	f, err := os.Open(s.Path(name))
	if err != nil {
		return fmt.Errorf("could not read %s: %w", name, err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true
	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not read %s: %w", name, err)
		}
		line, _ := r.FieldPos(0)
		if len(fields) < minFields {
			return fmt.Errorf("%w: %s:%d: %d fields, expected at least %d", ErrMalformedRecord, name, line,
				len(fields), minFields)
		}
		if err := parse(fields); err != nil {
			return fmt.Errorf("%w: %s:%d: %w", ErrMalformedRecord, name, line, err)
		}
	}
}

func methodFields(m lang.MethodHandle) []string {
	return []string{m.Class.Name(), m.Name, m.Desc}
}

func parseMethod(fields []string) lang.MethodHandle {
	return lang.NewMethodHandle(fields[0], fields[1], fields[2])
}

// splitList splits a comma-separated list, ignoring empty elements
func splitList(s string, sep string) []string {
	var elems []string
	for _, e := range strings.Split(s, sep) {
		if e != "" {
			elems = append(elems, e)
		}
	}
	return elems
}

// WriteClasses writes the classes artifact. Each record is the class name, the superclass, the comma-separated
// interfaces, whether the class is an interface and the members as name!modifiers!type groups joined by '!'.
func (s Store) WriteClasses(classes map[lang.ClassHandle]lang.ClassInfo) error {
	names := make([]lang.ClassHandle, 0, len(classes))
	for c := range classes {
		names = append(names, c)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return s.writeRecords(ClassesFile, func(w *csv.Writer) error {
		for _, name := range names {
			c := classes[name]
			ifaces := make([]string, len(c.Interfaces))
			for i, iface := range c.Interfaces {
				ifaces[i] = iface.Name()
			}
			members := make([]string, 0, 3*len(c.Members))
			for _, m := range c.Members {
				members = append(members, m.Name, strconv.Itoa(m.Modifiers), m.Type.Name())
			}
			err := w.Write([]string{
				c.Handle.Name(),
				c.Super.Name(),
				strings.Join(ifaces, ","),
				strconv.FormatBool(c.IsInterface),
				strings.Join(members, "!"),
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadClasses reads the classes artifact
func (s Store) ReadClasses() (map[lang.ClassHandle]lang.ClassInfo, error) {
	classes := map[lang.ClassHandle]lang.ClassInfo{}
	err := s.readRecords(ClassesFile, 4, func(fields []string) error {
		c := lang.ClassInfo{Handle: lang.ClassHandle(fields[0]), Super: lang.ClassHandle(fields[1])}
		for _, iface := range splitList(fields[2], ",") {
			c.Interfaces = append(c.Interfaces, lang.ClassHandle(iface))
		}
		isInterface, err := strconv.ParseBool(fields[3])
		if err != nil {
			return err
		}
		c.IsInterface = isInterface
		if len(fields) > 4 {
			parts := splitList(fields[4], "!")
			if len(parts)%3 != 0 {
				return fmt.Errorf("members of %s: %d elements is not a multiple of 3", c.Handle, len(parts))
			}
			for i := 0; i < len(parts); i += 3 {
				mods, err := strconv.Atoi(parts[i+1])
				if err != nil {
					return err
				}
				c.Members = append(c.Members, lang.Member{
					Name:      parts[i],
					Modifiers: mods,
					Type:      lang.ClassHandle(parts[i+2]),
				})
			}
		}
		classes[c.Handle] = c
		return nil
	})
	return classes, err
}

// WriteMethods writes the methods artifact: class, name, descriptor and whether the method is static
func (s Store) WriteMethods(methods map[lang.MethodHandle]lang.MethodInfo) error {
	handles := make(inheritance.MethodSet, len(methods))
	for h := range methods {
		handles[h] = true
	}
	return s.writeRecords(MethodsFile, func(w *csv.Writer) error {
		for _, h := range handles.Sorted() {
			if err := w.Write(append(methodFields(h), strconv.FormatBool(methods[h].IsStatic))); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadMethods reads the methods artifact
func (s Store) ReadMethods() (map[lang.MethodHandle]lang.MethodInfo, error) {
	methods := map[lang.MethodHandle]lang.MethodInfo{}
	err := s.readRecords(MethodsFile, 4, func(fields []string) error {
		isStatic, err := strconv.ParseBool(fields[3])
		if err != nil {
			return err
		}
		h := parseMethod(fields)
		methods[h] = lang.MethodInfo{Handle: h, IsStatic: isStatic}
		return nil
	})
	return methods, err
}

// WriteInheritance writes the inheritance artifact: each record is a class followed by all its ancestors
func (s Store) WriteInheritance(idx *inheritance.Index) error {
	return s.writeRecords(InheritanceFile, func(w *csv.Writer) error {
		for _, e := range idx.Entries() {
			fields := make([]string, 0, len(e.Ancestors)+1)
			fields = append(fields, e.Class.Name())
			for _, a := range e.Ancestors {
				fields = append(fields, a.Name())
			}
			if err := w.Write(fields); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReadInheritance reads the inheritance artifact
func (s Store) ReadInheritance() (*inheritance.Index, error) {
	ancestors := map[lang.ClassHandle]inheritance.ClassSet{}
	err := s.readRecords(InheritanceFile, 1, func(fields []string) error {
		set := inheritance.ClassSet{}
		for _, a := range fields[1:] {
			set[lang.ClassHandle(a)] = true
		}
		ancestors[lang.ClassHandle(fields[0])] = set
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inheritance.NewIndex(ancestors), nil
}
