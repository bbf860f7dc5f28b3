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

/*
Package config provides a simple way to manage the configuration of a gadget chain analysis, and the logging of the
tools.

Use [Load](filename) to load a configuration from a specific filename.

A relative log-file in a config file is resolved against the directory of the config file.

A config file should be in yaml format. The top-level fields can be any of the fields defined in the Config
struct type, and the fields of [Options] are inlined. For example, a valid config file is as follows:

	framework: jserial
	output-dir: ~/gadgets
	num-workers: 4
	search-timeout: 10m
	log-level: 4
	extra-sinks:
	  - class: com/example/Template
	    method: render
	    arg: 1
	exclude-classes:
	  - ^sun/.*

# Identifying code elements

The config uses [CodeIdentifier] to identify methods in the classpath, for example the extra sinks. The class and
method fields are regexes matching whole internal names, e.g. "java/lang/Runtime". The descriptor and the argument
are matched exactly when they are specified.

# Logging

[NewLogGroup] returns a [LogGroup] whose verbosity is the log-level of the config. Messages are written to the
console, and also as JSON to the optional log-file, which is rotated when it grows too large.
*/
package config
