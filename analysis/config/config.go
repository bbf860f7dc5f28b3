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
	"errors"
	"fmt"
	"os"
	"path"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/awslabs/ar-jvm-gadgets/internal/funcutil"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned (wrapped) when a configuration value cannot be used.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config contains the options of a gadget chain analysis.
// To add elements to a config file, add fields to this struct.
// If some field is not defined in the config file, it will be empty/zero in the struct.
// private fields are not populated from a yaml file, but computed after initialization
type Config struct {
	Options `yaml:",inline"`

	sourceFile string

	// ExtraSinks lists additional sink methods, on top of the built-in sinks
	ExtraSinks []CodeIdentifier `yaml:"extra-sinks"`

	// ExcludeClasses is a list of regexes. Classes whose internal name matches one of them are ignored when the
	// classpath is discovered.
	ExcludeClasses []string `yaml:"exclude-classes"`

	excludeRegexes []*regexp.Regexp

	searchTimeout time.Duration
}

// Options are the scalar options of the configuration
type Options struct {
	// Framework names the deserialization framework whose sources, serializability rules and dispatch resolution
	// are used. One of jserial, jackson, xstream or xstream-custom.
	Framework string `yaml:"framework"`

	// OutputDir is the directory where the artifacts of each phase and the final report are written
	OutputDir string `yaml:"output-dir"`

	// Resume keeps the artifacts of a previous run in OutputDir, and skips the phases whose artifacts exist
	Resume bool `yaml:"resume"`

	// NumWorkers is the number of goroutines used by the parallel phases. If <= 0, it is set to the number of CPUs
	// minus one.
	NumWorkers int `yaml:"num-workers"`

	// MaxSearchIterations bounds the number of chains expanded by the search. If <= 0, the search is not bounded.
	MaxSearchIterations int `yaml:"max-search-iterations"`

	// SearchTimeout bounds the duration of the search, e.g. "10m". Empty means no timeout.
	SearchTimeout string `yaml:"search-timeout"`

	// ReportJSON is a file name, relative to OutputDir, where a JSON report of the chains is written. Empty means no
	// JSON report.
	ReportJSON string `yaml:"report-json"`

	// Loglevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`

	// LogFile is a file where all log messages are written as JSON, in addition to the console
	LogFile string `yaml:"log-file"`
}

// NewDefault returns the default config.
func NewDefault() *Config {
	return &Config{
		sourceFile:     "",
		ExtraSinks:     nil,
		ExcludeClasses: nil,
		Options: Options{
			Framework:           DefaultFramework,
			OutputDir:           DefaultOutputDir,
			Resume:              false,
			NumWorkers:          defaultNumWorkers(),
			MaxSearchIterations: 0,
			SearchTimeout:       "",
			ReportJSON:          "",
			LogLevel:            int(InfoLevel),
			LogFile:             "",
		},
	}
}

func defaultNumWorkers() int {
	return max(runtime.NumCPU()-1, 1)
}

// Load reads a configuration from a file
func Load(filename string) (*Config, error) {
	cfg := NewDefault()
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file as yaml: %w", err)
	}
	cfg.sourceFile = filename
	if cfg.LogFile != "" && !path.IsAbs(cfg.LogFile) && !strings.HasPrefix(cfg.LogFile, "~") {
		cfg.LogFile = cfg.RelPath(cfg.LogFile)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate sets the defaults of unset options, checks the options and computes the private fields. It must be called
// again after options are modified, e.g. from command line flags.
func (c *Config) Validate() error {
	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if c.LogLevel == 0 {
		c.LogLevel = int(InfoLevel)
	}
	if c.LogLevel < int(ErrLevel) || c.LogLevel > int(TraceLevel) {
		return fmt.Errorf("%w: log-level must be between %d and %d, got %d", ErrInvalidConfig, ErrLevel,
			TraceLevel, c.LogLevel)
	}
	if c.NumWorkers <= 0 {
		c.NumWorkers = defaultNumWorkers()
	}
	if c.Framework == "" {
		c.Framework = DefaultFramework
	}
	if !funcutil.Contains(Frameworks, c.Framework) {
		return fmt.Errorf("%w: unknown framework %q, expected one of %v", ErrInvalidConfig, c.Framework, Frameworks)
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	dir, err := homedir.Expand(c.OutputDir)
	if err != nil {
		return fmt.Errorf("%w: output-dir: %v", ErrInvalidConfig, err)
	}
	c.OutputDir = dir
	if c.LogFile != "" {
		if c.LogFile, err = homedir.Expand(c.LogFile); err != nil {
			return fmt.Errorf("%w: log-file: %v", ErrInvalidConfig, err)
		}
	}

	c.searchTimeout = 0
	if c.SearchTimeout != "" {
		d, err := time.ParseDuration(c.SearchTimeout)
		if err != nil || d < 0 {
			return fmt.Errorf("%w: search-timeout %q is not a positive duration", ErrInvalidConfig, c.SearchTimeout)
		}
		c.searchTimeout = d
	}

	c.excludeRegexes = nil
	for _, e := range c.ExcludeClasses {
		r, err := regexp.Compile(e)
		if err != nil {
			return fmt.Errorf("%w: exclude-classes entry %q: %v", ErrInvalidConfig, e, err)
		}
		c.excludeRegexes = append(c.excludeRegexes, r)
	}

	for i, sink := range c.ExtraSinks {
		if sink.Class == "" || sink.Method == "" {
			return fmt.Errorf("%w: extra sink %d must specify a class and a method", ErrInvalidConfig, i)
		}
		compiled, err := CompileRegexes(sink)
		if err != nil {
			return fmt.Errorf("%w: extra sink %d: %v", ErrInvalidConfig, i, err)
		}
		c.ExtraSinks[i] = compiled
	}
	return nil
}

// SearchTimeoutDuration returns the parsed search timeout, zero if there is none
func (c Config) SearchTimeoutDuration() time.Duration {
	return c.searchTimeout
}

// IsExcluded returns true if the class name matches one of the exclude-classes regexes
func (c Config) IsExcluded(className string) bool {
	return funcutil.Exists(c.excludeRegexes, func(r *regexp.Regexp) bool { return r.MatchString(className) })
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// OutputPath returns the path of an artifact in the output directory
func (c Config) OutputPath(name string) string {
	return path.Join(c.OutputDir, name)
}

// IsExtraSink returns true if the method matches one of the extra sinks of the config, for the tainted argument arg
func (c Config) IsExtraSink(class string, method string, desc string, arg int) bool {
	return funcutil.Exists(c.ExtraSinks, func(cid CodeIdentifier) bool {
		return cid.Matches(class, method, desc, arg)
	})
}
