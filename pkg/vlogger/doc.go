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

/*
Package vlogger is the logging facade used by every package of the
reconciler. Libraries call the package-level functions and never care
which concrete backend is installed:

	log.Debugf("[Reconciler] %s: state %s", id, state)
	log.Warningf("[Params] %s is deprecated, use %s", old, new)

The binary picks a backend once at start-up and registers it for a
range of levels:

	log.RegisterLogger(log.LL_MIN_LEVEL, log.LL_MAX_LEVEL, log.NewConsoleLogger())
	log.SetLogLevel(log.LL_INFO)
	defer log.Close()

Backends shipped with the module:

	NewConsoleLogger()      // stdlib log, INFO to stdout, the rest to stderr
	NewFileLogger(path)     // console format appended to a file
	zaplog.NewZapLogger()   // structured JSON lines through go.uber.org/zap

Until a backend is registered every message is dropped by a null
logger, so packages can be unit tested without any logging setup.

Levels, lowest priority first: LL_DEBUG, LL_INFO, LL_WARNING, LL_ERROR,
LL_CRITICAL. The package-level level is applied to every registered
backend; backends may filter further on their own.
*/
package vlogger
