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

// JDKClasses returns stubs of java/lang/Object and java/io/Serializable. Inheritance only resolves ancestors that are
// on the classpath, so a class implementing java/io/Serializable is serializable only next to these stubs.
func JDKClasses() []*ClassBuilder {
	return []*ClassBuilder{
		NewClass("java/lang/Object").Extends(""),
		NewClass("java/io/Serializable").AsInterface(),
	}
}
