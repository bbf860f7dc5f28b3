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

// Package formatutil manipulates string colors for terminal output.
package formatutil

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

var (
	Bold   = Color("\033[1m%s\033[0m")
	Red    = Color("\033[1;31m%s\033[0m")
	Green  = Color("\033[1;32m%s\033[0m")
	Yellow = Color("\033[1;33m%s\033[0m")
)

// Color returns a function that prints its arguments with the escape sequence format when colors are enabled, and
// prints them unchanged otherwise.
func Color(format string) func(...any) string {
	return func(args ...any) string {
		s := fmt.Sprint(args...)
		if !Enabled() {
			return s
		}
		return fmt.Sprintf(format, s)
	}
}

// Enabled returns true when the standard output is a terminal and the NO_COLOR environment variable is not set
func Enabled() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}
