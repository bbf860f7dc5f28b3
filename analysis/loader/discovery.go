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

package loader

import (
	"context"
	"fmt"
	"sort"

	"github.com/awslabs/ar-jvm-gadgets/analysis/classfile"
	"github.com/awslabs/ar-jvm-gadgets/analysis/config"
	"github.com/awslabs/ar-jvm-gadgets/analysis/lang"
	"github.com/awslabs/ar-jvm-gadgets/internal/funcutil"
)

// Discovery is the content of a classpath
type Discovery struct {
	Classes map[lang.ClassHandle]lang.ClassInfo
	Methods map[lang.MethodHandle]lang.MethodInfo
	// Files are the parsed class files, ordered by class name
	Files []*classfile.File
}

// Stats are the statistics of a discovery
type Stats struct {
	Resources  int
	Classes    int
	Methods    int
	Failed     int
	Excluded   int
	Duplicates int
}

// ResourceError is the error of a class file that could not be read or parsed
type ResourceError struct {
	Resource string
	Err      error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Resource, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// Discoverer parses the class files of a classpath
type Discoverer struct {
	// Exclude returns true for the classes that must be ignored. It may be nil.
	Exclude func(className string) bool

	// NumWorkers is the number of class files parsed in parallel. Values below 1 mean 1.
	NumWorkers int

	Logger *config.LogGroup
}

type parsed struct {
	name string
	file *classfile.File
	info lang.ClassInfo
	err  error
}

// Discover parses the resources and returns the classes and methods they define. A class that appears in several
// resources is taken from the first one. Resources that cannot be parsed are skipped and their errors returned.
func (d *Discoverer) Discover(ctx context.Context, resources []Resource) (*Discovery, Stats, []error) {
	stats := Stats{Resources: len(resources)}
	results := funcutil.MapParallel(resources, func(r Resource) parsed {
		if ctx.Err() != nil {
			return parsed{name: r.Name, err: ctx.Err()}
		}
		return parse(r)
	}, d.NumWorkers)

	discovery := &Discovery{
		Classes: map[lang.ClassHandle]lang.ClassInfo{},
		Methods: map[lang.MethodHandle]lang.MethodInfo{},
	}
	var errs []error
	for _, res := range results {
		if res.err != nil {
			stats.Failed++
			d.Logger.Warnf("Could not load %s: %v", res.name, res.err)
			errs = append(errs, &ResourceError{Resource: res.name, Err: res.err})
			continue
		}
		if d.Exclude != nil && d.Exclude(res.file.ThisClass) {
			stats.Excluded++
			continue
		}
		if _, dup := discovery.Classes[res.info.Handle]; dup {
			stats.Duplicates++
			d.Logger.Debugf("Class %s in %s is already defined", res.info.Handle, res.name)
			continue
		}
		discovery.Classes[res.info.Handle] = res.info
		discovery.Files = append(discovery.Files, res.file)
		for _, m := range res.file.Methods {
			h := lang.NewMethodHandle(res.file.ThisClass, m.Name, m.Descriptor)
			discovery.Methods[h] = lang.MethodInfo{Handle: h, IsStatic: m.IsStatic()}
		}
	}
	sort.Slice(discovery.Files, func(i, j int) bool { return discovery.Files[i].ThisClass < discovery.Files[j].ThisClass })
	stats.Classes = len(discovery.Classes)
	stats.Methods = len(discovery.Methods)
	d.Logger.Infof("Discovered %d classes and %d methods in %d class files (%d failed, %d excluded, %d duplicates)",
		stats.Classes, stats.Methods, stats.Resources, stats.Failed, stats.Excluded, stats.Duplicates)
	return discovery, stats, errs
}

func parse(r Resource) parsed {
	b, err := r.Read()
	if err != nil {
		return parsed{name: r.Name, err: err}
	}
	f, err := classfile.Parse(b)
	if err != nil {
		return parsed{name: r.Name, err: err}
	}
	info, err := ClassInfo(f)
	return parsed{name: r.Name, file: f, info: info, err: err}
}

// ClassInfo returns the information about the class defined by f. The members of the class are its non-static
// fields.
func ClassInfo(f *classfile.File) (lang.ClassInfo, error) {
	info := lang.ClassInfo{
		Handle:      lang.ClassHandle(f.ThisClass),
		Super:       lang.ClassHandle(f.SuperClass),
		IsInterface: f.AccessFlags&lang.AccInterface != 0,
	}
	for _, i := range f.Interfaces {
		info.Interfaces = append(info.Interfaces, lang.ClassHandle(i))
	}
	for _, field := range f.Fields {
		if field.AccessFlags&lang.AccStatic != 0 {
			continue
		}
		t, err := lang.ParseType(field.Descriptor)
		if err != nil {
			return info, fmt.Errorf("field %s of %s: %w", field.Name, f.ThisClass, err)
		}
		info.Members = append(info.Members, lang.Member{
			Name:      field.Name,
			Modifiers: int(field.AccessFlags),
			Type:      lang.ClassHandle(t.InternalName()),
		})
	}
	return info, nil
}
