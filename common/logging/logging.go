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

// Package logging defines a context-carried logging API.
//
// A logger implementation is installed into the context with SetFactory (see
// the gologger subpackage); without one, log calls are dropped.
//
//	logging.Infof(ctx, "loaded %d entities", n)
//	logging.Fields{"kind": "Book"}.Debugf(ctx, "running query")
//	logging.WithError(err).Warningf(ctx, "rollback failed")
package logging

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Level is a logging level.
type Level int

// Logging levels, from the most verbose.
const (
	Debug Level = iota
	Info
	Warning
	Error
)

// DefaultLevel is used when the context doesn't specify a level.
const DefaultLevel = Info

var levelNames = map[Level]string{
	Debug:   "debug",
	Info:    "info",
	Warning: "warning",
	Error:   "error",
}

var _ flag.Value = (*Level)(nil)

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// Set implements flag.Value.
func (l *Level) Set(v string) error {
	for lvl, name := range levelNames {
		if strings.EqualFold(v, name) {
			*l = lvl
			return nil
		}
	}
	return errors.Newf("unknown logging level %q", v)
}

// Logger is implemented by logging backends.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warningf(format string, args ...any)
	Errorf(format string, args ...any)

	// LogCall logs a message at the given level. calldepth is the number of
	// frames between the caller of interest and LogCall.
	LogCall(l Level, calldepth int, format string, args []any)
}

// Factory returns a Logger bound to the context.
type Factory func(context.Context) Logger

type ctxKey int

const (
	factoryKey ctxKey = iota
	levelKey
	fieldsKey
)

// SetFactory installs a logger factory into the context.
func SetFactory(ctx context.Context, f Factory) context.Context {
	return context.WithValue(ctx, factoryKey, f)
}

// GetFactory returns the installed factory or nil.
func GetFactory(ctx context.Context) Factory {
	f, _ := ctx.Value(factoryKey).(Factory)
	return f
}

// Get returns the logger for the context.
//
// It never returns nil: without a factory a null logger is returned.
func Get(ctx context.Context) Logger {
	if f := GetFactory(ctx); f != nil {
		if l := f(ctx); l != nil {
			return l
		}
	}
	return Null
}

// SetLevel sets the minimum level of messages logged through the context.
func SetLevel(ctx context.Context, l Level) context.Context {
	return context.WithValue(ctx, levelKey, l)
}

// GetLevel returns the logging level of the context.
func GetLevel(ctx context.Context) Level {
	if l, ok := ctx.Value(levelKey).(Level); ok {
		return l
	}
	return DefaultLevel
}

// Null is a Logger that drops everything.
var Null Logger = nullLogger{}

type nullLogger struct{}

func (nullLogger) Debugf(string, ...any)             {}
func (nullLogger) Infof(string, ...any)              {}
func (nullLogger) Warningf(string, ...any)           {}
func (nullLogger) Errorf(string, ...any)             {}
func (nullLogger) LogCall(Level, int, string, []any) {}
