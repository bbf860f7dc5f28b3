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

package main

import (
	"strings"

	"github.com/awslabs/ar-jvm-gadgets/analysis"
	"github.com/awslabs/ar-jvm-gadgets/analysis/config"
	"github.com/awslabs/ar-jvm-gadgets/analysis/frameworks"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// envPrefix is the prefix of the environment variables that set flags, e.g. GADGETS_OUTPUT_DIR
const envPrefix = "GADGETS"

var envKeyReplacer = strings.NewReplacer("-", "_")

// app holds the configuration shared by the commands. It is initialized before any command runs.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	logger *config.LogGroup
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:           "gadgets",
		Short:         "Find deserialization gadget chains in JVM classpaths",
		Version:       analysis.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			// stderr cannot always be synced
			_ = a.logger.Sync()
		},
	}
	root.SetVersionTemplate("{{printf \"%s\n\" .Version}}")

	flags := root.PersistentFlags()
	flags.StringP("config", "c", "", "config file path for analysis")
	flags.String("framework", config.DefaultFramework,
		"deserialization framework, one of "+strings.Join(frameworks.Names(), ", "))
	flags.StringP("output-dir", "o", config.DefaultOutputDir, "directory where the results are written")
	flags.BoolP("verbose", "v", false, "verbose logging")
	flags.Int("workers", 0, "number of parallel workers (default: number of CPUs minus one)")
	flags.Bool("resume", false, "reuse the results of a previous run found in the output directory")
	flags.Int("max-iterations", 0, "maximum number of chains expanded by the search (default: unbounded)")
	flags.String("search-timeout", "", "maximum duration of the search, e.g. 10m (default: none)")
	flags.String("report-json", "", "file name of a JSON report of the chains, in the output directory")

	root.AddCommand(a.runCmd(), a.statsCmd(), versionCmd())
	for _, p := range phases {
		root.AddCommand(a.phaseCmd(p))
	}
	return root
}

// init binds the flags and the environment, and loads the configuration
func (a *app) init(cmd *cobra.Command) error {
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(envKeyReplacer)
	a.v.AutomaticEnv()
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	cfg, err := loadConfig(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = config.NewLogGroup(cfg)
	a.logger.SetAllOutput(cmd.ErrOrStderr())
	return nil
}

// loadConfig loads the config file if one is given, and overrides its options with the flags and environment
// variables that are set
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg := config.NewDefault()
	if path := v.GetString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if v.IsSet("framework") {
		cfg.Framework = v.GetString("framework")
	}
	if v.IsSet("output-dir") {
		cfg.OutputDir = v.GetString("output-dir")
	}
	if v.IsSet("workers") {
		cfg.NumWorkers = v.GetInt("workers")
	}
	if v.IsSet("resume") {
		cfg.Resume = v.GetBool("resume")
	}
	if v.IsSet("max-iterations") {
		cfg.MaxSearchIterations = v.GetInt("max-iterations")
	}
	if v.IsSet("search-timeout") {
		cfg.SearchTimeout = v.GetString("search-timeout")
	}
	if v.IsSet("report-json") {
		cfg.ReportJSON = v.GetString("report-json")
	}
	if v.GetBool("verbose") {
		cfg.LogLevel = int(config.DebugLevel)
	}
	return cfg, cfg.Validate()
}
