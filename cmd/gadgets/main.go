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

// Gadgets finds deserialization gadget chains in the classpath of a JVM application: chains of method calls that
// start in a method the deserialization of a framework invokes on attacker controlled data, and end in a method
// that is dangerous to call with that data (command execution, file access, reflection, ...).
//
// Usage:
//
//	gadgets run [flags] <jar, war, jmod or directory>...
//	gadgets summarize|callgraph|sources|search [flags] [classpath...]
//	gadgets stats [flags] <classpath>...
//	gadgets version
//
// Every phase of the analysis writes its results in the output directory. With --resume, the phases whose results
// are already in the output directory are not run again.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/awslabs/ar-jvm-gadgets/internal/formatutil"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", formatutil.Red("error:"), err)
		os.Exit(1)
	}
}
