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

// logger.go:
//
//	Console and file backends built on the standard log package.
package vlogger

import (
	"fmt"
	"io"
	"log"
	"log/syslog"
	"os"
)

type (
	consoleLogger struct {
		// syslog priorities: lower value is higher priority
		slLogLevel syslog.Priority
		infoOut    *log.Logger
		errOut     *log.Logger
	}

	// FileLogger appends console formatted lines to FileName.
	FileLogger struct {
		FileName string
		consoleLogger
		fileHandler *os.File
	}
)

// NewConsoleLogger sends INFO to stdout and every other level to stderr.
func NewConsoleLogger() *consoleLogger {
	return newConsoleLogger(os.Stdout, os.Stderr)
}

// NewWriterLogger sends every level to w; used by tests and pipes.
func NewWriterLogger(w io.Writer) *consoleLogger {
	return newConsoleLogger(w, w)
}

func newConsoleLogger(info, rest io.Writer) *consoleLogger {
	return &consoleLogger{
		slLogLevel: syslog.LOG_DEBUG,
		infoOut:    log.New(info, "", log.LstdFlags),
		errOut:     log.New(rest, "", log.LstdFlags),
	}
}

func (cl *consoleLogger) emit(p syslog.Priority, tag string, out *log.Logger, msg string) {
	if cl.slLogLevel >= p {
		out.Println(tag, msg)
	}
}

func (cl *consoleLogger) Debug(msg string) {
	cl.emit(syslog.LOG_DEBUG, "[DEBUG]", cl.errOut, msg)
}

func (cl *consoleLogger) Debugf(format string, params ...interface{}) {
	if cl.slLogLevel >= syslog.LOG_DEBUG {
		cl.Debug(fmt.Sprintf(format, params...))
	}
}

func (cl *consoleLogger) Info(msg string) {
	cl.emit(syslog.LOG_INFO, "[INFO]", cl.infoOut, msg)
}

func (cl *consoleLogger) Infof(format string, params ...interface{}) {
	if cl.slLogLevel >= syslog.LOG_INFO {
		cl.Info(fmt.Sprintf(format, params...))
	}
}

func (cl *consoleLogger) Warning(msg string) {
	cl.emit(syslog.LOG_WARNING, "[WARNING]", cl.errOut, msg)
}

func (cl *consoleLogger) Warningf(format string, params ...interface{}) {
	if cl.slLogLevel >= syslog.LOG_WARNING {
		cl.Warning(fmt.Sprintf(format, params...))
	}
}

func (cl *consoleLogger) Error(msg string) {
	cl.emit(syslog.LOG_ERR, "[ERROR]", cl.errOut, msg)
}

func (cl *consoleLogger) Errorf(format string, params ...interface{}) {
	if cl.slLogLevel >= syslog.LOG_ERR {
		cl.Error(fmt.Sprintf(format, params...))
	}
}

func (cl *consoleLogger) Critical(msg string) {
	cl.emit(syslog.LOG_CRIT, "[CRITICAL]", cl.errOut, msg)
}

func (cl *consoleLogger) Criticalf(format string, params ...interface{}) {
	if cl.slLogLevel >= syslog.LOG_CRIT {
		cl.Critical(fmt.Sprintf(format, params...))
	}
}

func (cl *consoleLogger) SetLogLevel(slLogLevel syslog.Priority) {
	cl.slLogLevel = slLogLevel
}

func (cl *consoleLogger) GetLogLevel() syslog.Priority {
	return cl.slLogLevel
}

func (cl *consoleLogger) Close() {
}

// NewFileLogger opens (or creates) fn for appending. Unlike the console
// backend it never touches os.Stdout, which carries the JSON result.
func NewFileLogger(fn string) (*FileLogger, error) {
	f, err := os.OpenFile(fn, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("unable to open log file %s: %v", fn, err)
	}
	return &FileLogger{
		FileName:      fn,
		consoleLogger: *newConsoleLogger(f, f),
		fileHandler:   f,
	}, nil
}

// Close file
func (fl *FileLogger) Close() {
	fl.fileHandler.Close()
}
