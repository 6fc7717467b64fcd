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

// Package zaplog is a vlogger backend writing JSON lines through zap.
package zaplog

import (
	"log/syslog"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type zapLogger struct {
	level zap.AtomicLevel
	sugar *zap.SugaredLogger
}

// NewZapLogger logs JSON to stderr.
func NewZapLogger() *zapLogger {
	return NewZapLoggerExt(zapcore.Lock(zapcore.AddSync(os.Stderr)))
}

// NewZapLoggerExt logs JSON to ws.
func NewZapLoggerExt(ws zapcore.WriteSyncer) *zapLogger {
	level := zap.NewAtomicLevelAt(zapcore.DebugLevel)
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), ws, level)
	return &zapLogger{
		level: level,
		sugar: zap.New(core).Sugar(),
	}
}

func (zl *zapLogger) Debug(msg string)                               { zl.sugar.Debug(msg) }
func (zl *zapLogger) Debugf(format string, params ...interface{})    { zl.sugar.Debugf(format, params...) }
func (zl *zapLogger) Info(msg string)                                { zl.sugar.Info(msg) }
func (zl *zapLogger) Infof(format string, params ...interface{})     { zl.sugar.Infof(format, params...) }
func (zl *zapLogger) Warning(msg string)                             { zl.sugar.Warn(msg) }
func (zl *zapLogger) Warningf(format string, params ...interface{})  { zl.sugar.Warnf(format, params...) }
func (zl *zapLogger) Error(msg string)                               { zl.sugar.Error(msg) }
func (zl *zapLogger) Errorf(format string, params ...interface{})    { zl.sugar.Errorf(format, params...) }
func (zl *zapLogger) Critical(msg string)                            { zl.sugar.DPanic(msg) }
func (zl *zapLogger) Criticalf(format string, params ...interface{}) { zl.sugar.DPanicf(format, params...) }

// zap has no critical level; DPanic only panics in development mode.
func (zl *zapLogger) SetLogLevel(p syslog.Priority) {
	switch {
	case p >= syslog.LOG_DEBUG:
		zl.level.SetLevel(zapcore.DebugLevel)
	case p >= syslog.LOG_INFO:
		zl.level.SetLevel(zapcore.InfoLevel)
	case p >= syslog.LOG_WARNING:
		zl.level.SetLevel(zapcore.WarnLevel)
	case p >= syslog.LOG_ERR:
		zl.level.SetLevel(zapcore.ErrorLevel)
	default:
		zl.level.SetLevel(zapcore.DPanicLevel)
	}
}

func (zl *zapLogger) GetLogLevel() syslog.Priority {
	switch zl.level.Level() {
	case zapcore.DebugLevel:
		return syslog.LOG_DEBUG
	case zapcore.InfoLevel:
		return syslog.LOG_INFO
	case zapcore.WarnLevel:
		return syslog.LOG_WARNING
	case zapcore.ErrorLevel:
		return syslog.LOG_ERR
	default:
		return syslog.LOG_CRIT
	}
}

func (zl *zapLogger) Close() {
	_ = zl.sugar.Sync()
}
