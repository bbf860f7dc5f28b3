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

package summaries

import "github.com/awslabs/ar-jvm-gadgets/analysis/lang"

// methodSummaries maps the signatures (name and descriptor) of the methods of a class to the argument positions
// that flow to the returned value.
type methodSummaries map[string][]int

// standardLibrary summarizes methods of the Java standard library whose code may not be part of the analyzed
// classpath, or whose summary would not be precise enough. Entries are keyed by class, then by name+descriptor.
var standardLibrary = map[lang.ClassHandle]methodSummaries{
	"java/lang/Object": {
		"toString()Ljava/lang/String;": {0},
		"getClass()Ljava/lang/Class;":  {0},
	},

	// ObjectInputStream.defaultReadObject is handled by the interpreter
	"java/io/ObjectInputStream": {
		"readObject()Ljava/lang/Object;":                   {0},
		"readFields()Ljava/io/ObjectInputStream$GetField;": {0},
		"<init>(Ljava/io/InputStream;)V":                   {1},
	},
	"java/io/ObjectInputStream$GetField": {
		"get(Ljava/lang/String;Ljava/lang/Object;)Ljava/lang/Object;": {0},
	},

	// A class name taints the class, a class or method name taints the method
	"java/lang/Class": {
		"forName(Ljava/lang/String;)Ljava/lang/Class;":                              {0},
		"getMethod(Ljava/lang/String;[Ljava/lang/Class;)Ljava/lang/reflect/Method;": {0, 1},
		"getMethods()[Ljava/lang/reflect/Method;":                                   {0},
	},

	"java/lang/StringBuilder": {
		"<init>(Ljava/lang/String;)V":                                 {0, 1},
		"<init>(Ljava/lang/CharSequence;)V":                           {0, 1},
		"append(Ljava/lang/Object;)Ljava/lang/StringBuilder;":         {0, 1},
		"append(Ljava/lang/String;)Ljava/lang/StringBuilder;":         {0, 1},
		"append(Ljava/lang/StringBuffer;)Ljava/lang/StringBuilder;":   {0, 1},
		"append(Ljava/lang/CharSequence;)Ljava/lang/StringBuilder;":   {0, 1},
		"append(Ljava/lang/CharSequence;II)Ljava/lang/StringBuilder;": {0, 1},
		"toString()Ljava/lang/String;":                                {0},
	},

	"java/io/ByteArrayInputStream": {
		"<init>([B)V":   {1},
		"<init>([BII)V": {1},
	},
	"java/io/File": {
		"<init>(Ljava/lang/String;I)V":                  {1},
		"<init>(Ljava/lang/String;Ljava/io/File;)V":     {1},
		"<init>(Ljava/lang/String;)V":                   {1},
		"<init>(Ljava/lang/String;Ljava/lang/String;)V": {1},
	},
	"java/nio/file/Paths": {
		"get(Ljava/lang/String;[Ljava/lang/String;)Ljava/nio/file/Path;": {0},
	},
	"java/net/URL": {
		"<init>(Ljava/lang/String;)V": {1},
	},
}

// StandardLibrary returns the argument positions of the built-in summary of m, and false if m has none.
func StandardLibrary(m lang.MethodHandle) ([]int, bool) {
	methods, ok := standardLibrary[m.Class]
	if !ok {
		return nil, false
	}
	args, ok := methods[m.Name+m.Desc]
	return args, ok
}

// IsStandardLibraryClass returns true if some methods of the class have a built-in summary
func IsStandardLibraryClass(c lang.ClassHandle) bool {
	_, ok := standardLibrary[c]
	return ok
}
