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

import "log/syslog"

// nullLogger drops everything; it is the backend until main registers one.
type nullLogger struct {
	slLogLevel syslog.Priority
}

func init() {
	RegisterLogger(LL_MIN_LEVEL, LL_MAX_LEVEL, &nullLogger{slLogLevel: syslog.LOG_DEBUG})
}

func (nl *nullLogger) Debug(string)                       {}
func (nl *nullLogger) Debugf(string, ...interface{})      {}
func (nl *nullLogger) Info(string)                        {}
func (nl *nullLogger) Infof(string, ...interface{})       {}
func (nl *nullLogger) Warning(string)                     {}
func (nl *nullLogger) Warningf(string, ...interface{})    {}
func (nl *nullLogger) Error(string)                       {}
func (nl *nullLogger) Errorf(string, ...interface{})      {}
func (nl *nullLogger) Critical(string)                    {}
func (nl *nullLogger) Criticalf(string, ...interface{})   {}
func (nl *nullLogger) Close()                             {}
func (nl *nullLogger) SetLogLevel(slLogLevel syslog.Priority) { nl.slLogLevel = slLogLevel }
func (nl *nullLogger) GetLogLevel() syslog.Priority       { return nl.slLogLevel }
