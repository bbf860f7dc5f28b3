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
	"regexp"
)

// CodeIdentifier identifies a method in the classpath. Class and method names are regexes anchored at both ends.
// An empty Desc matches any descriptor, and a nil Arg matches any tainted argument.
type CodeIdentifier struct {
	Class  string `yaml:"class"`
	Method string `yaml:"method"`
	Desc   string `yaml:"desc"`
	Arg    *int   `yaml:"arg"`
	// This will not be part of the yaml config
	computedRegexs *CodeIdentifierRegex
}

// CodeIdentifierRegex holds the compiled regexes of a code identifier
type CodeIdentifierRegex struct {
	classRegex  *regexp.Regexp
	methodRegex *regexp.Regexp
}

// CompileRegexes compiles the class and method patterns of the code identifier.
func CompileRegexes(cid CodeIdentifier) (CodeIdentifier, error) {
	classRegex, err := regexp.Compile("^(?:" + cid.Class + ")$")
	if err != nil {
		return cid, err
	}
	methodRegex, err := regexp.Compile("^(?:" + cid.Method + ")$")
	if err != nil {
		return cid, err
	}
	cid.computedRegexs = &CodeIdentifierRegex{classRegex, methodRegex}
	return cid, nil
}

// Matches returns true if the method class.method desc, with tainted argument arg, is identified by cid. Before
// its regexes are compiled, the code identifier matches on plain string equality.
func (cid CodeIdentifier) Matches(class string, method string, desc string, arg int) bool {
	if cid.Desc != "" && cid.Desc != desc {
		return false
	}
	if cid.Arg != nil && *cid.Arg != arg {
		return false
	}
	if cid.computedRegexs != nil {
		return cid.computedRegexs.classRegex.MatchString(class) && cid.computedRegexs.methodRegex.MatchString(method)
	}
	return cid.Class == class && cid.Method == method
}
