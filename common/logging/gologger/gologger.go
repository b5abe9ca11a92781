// Copyright 2026 The LUCI Authors.
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

// Package gologger is a logging.Logger implementation on top of the
// github.com/op/go-logging library.
package gologger

import (
	"context"
	"io"
	"os"
	"sync"

	gol "github.com/op/go-logging"

	"go.chromium.org/gcpdata/common/logging"
)

// StandardFormat first prints process ID, time, filename, logging level
// and sequence number, all colored. Then the message.
const StandardFormat = `%{color}[P%{pid} %{time:15:04:05.000} %{shortfile} %{level:.4s} %{id:03x}]` +
	`%{color:reset} %{message}`

// StdConfig writes messages of any level to stderr.
var StdConfig = LoggerConfig{
	Format: StandardFormat,
	Out:    os.Stderr,
	Level:  gol.DEBUG,
}

// LoggerConfig owns a go-logging logger configured by its fields.
//
// Fields must not be changed after the first logger has been created.
type LoggerConfig struct {
	Format string    // go-logging format string, StandardFormat if empty
	Out    io.Writer // output writer, os.Stderr if nil
	Level  gol.Level // minimum level passed to the backend

	once sync.Once
	l    *gol.Logger
}

// New creates a logging.Logger writing messages of a given level or above.
func New(w io.Writer, level gol.Level) logging.Logger {
	lc := &LoggerConfig{Format: StandardFormat, Out: w, Level: level}
	return lc.NewLogger(context.Background())
}

// Use adds a default go-logging logger to the context.
func Use(ctx context.Context) context.Context {
	return StdConfig.Use(ctx)
}

// Use installs a logger factory bound to this config into the context.
func (lc *LoggerConfig) Use(ctx context.Context) context.Context {
	return logging.SetFactory(ctx, lc.NewLogger)
}

// NewLogger returns a logger that honors the level and fields of ctx.
//
// ctx may be nil, in which case every message is passed to the backend.
func (lc *LoggerConfig) NewLogger(ctx context.Context) logging.Logger {
	return &loggerImpl{l: lc.goLogger(), ctx: ctx}
}

func (lc *LoggerConfig) goLogger() *gol.Logger {
	lc.once.Do(func() {
		format, out := lc.Format, lc.Out
		if format == "" {
			format = StandardFormat
		}
		if out == nil {
			out = os.Stderr
		}
		backend := gol.NewBackendFormatter(gol.NewLogBackend(out, "", 0), gol.MustStringFormatter(format))
		leveled := gol.AddModuleLevel(backend)
		leveled.SetLevel(lc.Level, "")

		lc.l = &gol.Logger{Module: "gcpdata", ExtraCalldepth: 2}
		lc.l.SetBackend(leveled)
	})
	return lc.l
}

type loggerImpl struct {
	l   *gol.Logger
	ctx context.Context
}

func (li *loggerImpl) Debugf(format string, args ...any) {
	li.LogCall(logging.Debug, 1, format, args)
}

func (li *loggerImpl) Infof(format string, args ...any) {
	li.LogCall(logging.Info, 1, format, args)
}

func (li *loggerImpl) Warningf(format string, args ...any) {
	li.LogCall(logging.Warning, 1, format, args)
}

func (li *loggerImpl) Errorf(format string, args ...any) {
	li.LogCall(logging.Error, 1, format, args)
}

// LogCall ignores calldepth: every entry point is exactly one frame above it,
// which ExtraCalldepth accounts for.
func (li *loggerImpl) LogCall(lvl logging.Level, calldepth int, format string, args []any) {
	if li.ctx != nil {
		if !logging.IsLogging(li.ctx, lvl) {
			return
		}
		if fields := logging.GetFields(li.ctx); len(fields) > 0 {
			format += " %s"
			args = append(args[:len(args):len(args)], fields)
		}
	}

	switch lvl {
	case logging.Debug:
		li.l.Debugf(format, args...)
	case logging.Info:
		li.l.Infof(format, args...)
	case logging.Warning:
		li.l.Warningf(format, args...)
	default:
		li.l.Errorf(format, args...)
	}
}
