// +gocover:ignore:file logging package
// Copyright (c) 2024, F5 Networks, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vlogger

import (
	"fmt"
	"log/syslog"
	"os"
	"strings"
	"sync"
)

// LogLevel filters messages at package level before any backend sees them.
type LogLevel int

const (
	// Ascending priority; the values index vlog.
	LL_DEBUG = iota
	LL_INFO
	LL_WARNING
	LL_ERROR
	LL_CRITICAL
	LL_LOGLEVEL_SIZE

	LL_MIN_LEVEL = LL_DEBUG
	LL_MAX_LEVEL = LL_LOGLEVEL_SIZE - 1
)

var levelNames = [LL_LOGLEVEL_SIZE]string{"debug", "info", "warning", "error", "critical"}

// String converts a LogLevel to its flag spelling.
func (ll LogLevel) String() string {
	if ll < LL_MIN_LEVEL || ll > LL_MAX_LEVEL {
		return "invalid"
	}
	return levelNames[ll]
}

// NewLogLevel parses a level name case-insensitively, nil when unknown.
func NewLogLevel(s string) *LogLevel {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range levelNames {
		if name == s {
			r := LogLevel(i)
			return &r
		}
	}
	return nil
}

// MarshalJSON converts a LogLevel to a quoted string for JSON output.
func (ll LogLevel) MarshalJSON() ([]byte, error) {
	return []byte("\"" + ll.String() + "\""), nil
}

func (ll *LogLevel) UnmarshalJSON(data []byte) error {
	newll := NewLogLevel(strings.Trim(string(data), "\""))
	if newll == nil {
		return fmt.Errorf("unable to unmarshal %s to log level", string(data))
	}
	*ll = *newll
	return nil
}

// Logger is implemented by every backend.
type Logger interface {
	Debug(string)
	Debugf(string, ...interface{})
	Info(string)
	Infof(string, ...interface{})
	Warning(string)
	Warningf(string, ...interface{})
	Error(string)
	Errorf(string, ...interface{})
	Critical(string)
	Criticalf(string, ...interface{})
	GetLogLevel() syslog.Priority
	SetLogLevel(syslog.Priority)
	Close()
}

var (
	mu sync.RWMutex

	// vlog holds the backend for each level; entries may share a backend.
	vlog [LL_LOGLEVEL_SIZE]Logger

	logLevel LogLevel = LL_DEBUG

	// Backends filter on syslog priorities.
	logLevelToSyslogLevel = [LL_LOGLEVEL_SIZE]syslog.Priority{
		syslog.LOG_DEBUG,
		syslog.LOG_INFO,
		syslog.LOG_WARNING,
		syslog.LOG_ERR,
		syslog.LOG_CRIT,
	}
)

// RegisterLogger installs log as the backend for every level in
// [minLogLevel, maxLogLevel].
func RegisterLogger(minLogLevel, maxLogLevel LogLevel, log Logger) {
	mu.Lock()
	defer mu.Unlock()
	for level := minLogLevel; level <= maxLogLevel; level++ {
		vlog[level] = log
	}
	log.SetLogLevel(logLevelToSyslogLevel[logLevel])
}

func backend(level LogLevel) Logger {
	mu.RLock()
	defer mu.RUnlock()
	return vlog[level]
}

// Debug records debug/trace statements.
func Debug(msg string) {
	backend(LL_DEBUG).Debug(msg)
}

// Debugf formats and records debug/trace statements.
func Debugf(format string, params ...interface{}) {
	backend(LL_DEBUG).Debugf(format, params...)
}

// Info records statements that are cheap enough to log on every run.
func Info(msg string) {
	backend(LL_INFO).Info(msg)
}

// Infof is the formatting variant of Info.
func Infof(format string, params ...interface{}) {
	backend(LL_INFO).Infof(format, params...)
}

// Warning records unexpected conditions that do not stop a reconciliation.
func Warning(msg string) {
	backend(LL_WARNING).Warning(msg)
}

// Warningf is the formatting variant of Warning.
func Warningf(format string, params ...interface{}) {
	backend(LL_WARNING).Warningf(format, params...)
}

// Error records failures of a requested action.
func Error(msg string) {
	backend(LL_ERROR).Error(msg)
}

// Errorf is the formatting variant of Error.
func Errorf(format string, params ...interface{}) {
	backend(LL_ERROR).Errorf(format, params...)
}

// Critical records conditions the process should not survive.
func Critical(msg string) {
	backend(LL_CRITICAL).Critical(msg)
}

// Criticalf is the formatting variant of Critical.
func Criticalf(format string, params ...interface{}) {
	backend(LL_CRITICAL).Criticalf(format, params...)
}

// Fatal logs at critical level and exits.
// NOTE: only the main package should call this.
func Fatal(msg string) {
	backend(LL_CRITICAL).Critical(msg)
	Close()
	os.Exit(1)
}

// Fatalf logs a formatted message at critical level and exits.
// NOTE: only the main package should call this.
func Fatalf(format string, params ...interface{}) {
	backend(LL_CRITICAL).Criticalf(format, params...)
	Close()
	os.Exit(1)
}

// SetLogLevel sets the package-level filter and pushes it to every backend.
func SetLogLevel(level LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	logLevel = level
	slLogLevel := logLevelToSyslogLevel[logLevel]
	for i := range vlog {
		if vlog[i] != nil {
			vlog[i].SetLogLevel(slLogLevel)
		}
	}
}

// GetLogLevel returns the package-level filter.
func GetLogLevel() LogLevel {
	mu.RLock()
	defer mu.RUnlock()
	return logLevel
}

// Close flushes and releases every registered backend.
func Close() {
	mu.RLock()
	defer mu.RUnlock()
	seen := map[Logger]bool{}
	for i := range vlog {
		if vlog[i] != nil && !seen[vlog[i]] {
			seen[vlog[i]] = true
			vlog[i].Close()
		}
	}
}
