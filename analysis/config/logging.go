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
	"fmt"
	"io"
	"os"

	"github.com/awslabs/ar-jvm-gadgets/internal/formatutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogLevel int

const (
	// ErrLevel=1 - the minimum level of logging.
	ErrLevel LogLevel = iota + 1

	// WarnLevel=2 - the level for logging warnings, and errors
	WarnLevel

	// InfoLevel=3 - the level for logging high-level information, results
	InfoLevel

	// DebugLevel=4 - the level for debugging information. The tool will run properly on large classpaths with
	// that level of debug information.
	DebugLevel

	// TraceLevel=5 - the level for tracing. Every analyzed method is logged, which is only usable on small
	// classpaths.
	TraceLevel
)

// zapTraceLevel is below zap's debug level; zap levels are plain integers so the enabler handles it.
const zapTraceLevel = zapcore.DebugLevel - 1

func (l LogLevel) zapLevel() zapcore.Level {
	switch {
	case l <= ErrLevel:
		return zapcore.ErrorLevel
	case l == WarnLevel:
		return zapcore.WarnLevel
	case l == InfoLevel:
		return zapcore.InfoLevel
	case l == DebugLevel:
		return zapcore.DebugLevel
	default:
		return zapTraceLevel
	}
}

// LogGroup is the logger used by all the analyses. Messages below the configured level are dropped.
// Console output goes to stderr unless redirected with SetAllOutput; when a log file is configured, every message
// is also written there as JSON, with rotation.
type LogGroup struct {
	level  LogLevel
	atom   zap.AtomicLevel
	file   *lumberjack.Logger
	logger *zap.Logger
	sugar  *zap.SugaredLogger
}

// NewLogGroup returns a log group that is configured to the logging settings stored inside the config
func NewLogGroup(config *Config) *LogGroup {
	l := &LogGroup{
		level: LogLevel(config.LogLevel),
		atom:  zap.NewAtomicLevelAt(LogLevel(config.LogLevel).zapLevel()),
	}
	if config.LogFile != "" {
		l.file = &lumberjack.Logger{
			Filename:   config.LogFile,
			MaxSize:    100,
			MaxBackups: 3,
		}
	}
	l.build(zapcore.Lock(os.Stderr))
	return l
}

func (l *LogGroup) build(console zapcore.WriteSyncer) {
	cores := []zapcore.Core{zapcore.NewCore(consoleEncoder(), console, l.atom)}
	if l.file != nil {
		fileConfig := zap.NewProductionEncoderConfig()
		fileConfig.EncodeLevel = levelEncoder(false)
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileConfig), zapcore.AddSync(l.file), l.atom))
	}
	l.logger = zap.New(zapcore.NewTee(cores...))
	l.sugar = l.logger.Sugar()
}

func consoleEncoder() zapcore.Encoder {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	encoderConfig.EncodeLevel = levelEncoder(true)
	encoderConfig.CallerKey = ""
	return zapcore.NewConsoleEncoder(encoderConfig)
}

func levelEncoder(color bool) zapcore.LevelEncoder {
	return func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		var s string
		switch level {
		case zapTraceLevel:
			s = "[TRACE]"
		case zapcore.DebugLevel:
			s = "[DEBUG]"
		case zapcore.InfoLevel:
			s = "[INFO] "
		case zapcore.WarnLevel:
			s = "[WARN] "
			if color {
				s = formatutil.Yellow(s)
			}
		default:
			s = "[ERROR]"
			if color {
				s = formatutil.Red(s)
			}
		}
		enc.AppendString(s)
	}
}

// SetAllOutput sets the console output of the log group to the writer provided
func (l *LogGroup) SetAllOutput(w io.Writer) {
	l.build(zapcore.AddSync(w))
}

// SetLevel changes the level of the log group
func (l *LogGroup) SetLevel(level LogLevel) {
	l.level = level
	l.atom.SetLevel(level.zapLevel())
}

// Level returns the level of the log group
func (l *LogGroup) Level() LogLevel {
	return l.level
}

// Tracef prints to the trace level. Arguments are handled in the manner of Printf
func (l *LogGroup) Tracef(format string, v ...any) {
	if l.level >= TraceLevel {
		l.logger.Log(zapTraceLevel, fmt.Sprintf(format, v...))
	}
}

// Debugf prints to the debug level. Arguments are handled in the manner of Printf
func (l *LogGroup) Debugf(format string, v ...any) {
	l.sugar.Debugf(format, v...)
}

// Infof prints to the info level. Arguments are handled in the manner of Printf
func (l *LogGroup) Infof(format string, v ...any) {
	l.sugar.Infof(format, v...)
}

// Warnf prints to the warning level. Arguments are handled in the manner of Printf
func (l *LogGroup) Warnf(format string, v ...any) {
	l.sugar.Warnf(format, v...)
}

// Errorf prints to the error level. Arguments are handled in the manner of Printf
func (l *LogGroup) Errorf(format string, v ...any) {
	l.sugar.Errorf(format, v...)
}

// With returns a log group whose messages carry the additional key-value pairs, e.g. the current phase.
func (l *LogGroup) With(keysAndValues ...any) *LogGroup {
	c := *l
	c.sugar = l.sugar.With(keysAndValues...)
	c.logger = c.sugar.Desugar()
	return &c
}

// Sync flushes the buffered messages and closes the log file, if any.
func (l *LogGroup) Sync() error {
	_ = l.logger.Sync()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
