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

const (
	// DefaultFramework is the deserialization framework analyzed when none is configured
	DefaultFramework = "jserial"
	// DefaultOutputDir is the directory where artifacts are written when none is configured
	DefaultOutputDir = "."
	// EnvPrefix is the prefix of the environment variables that override configuration options
	EnvPrefix = "GADGETS"
)

// Frameworks lists the names of the supported deserialization frameworks
var Frameworks = []string{"jserial", "jackson", "xstream", "xstream-custom"}
