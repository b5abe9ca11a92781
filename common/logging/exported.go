// Copyright 2015 The LUCI Authors.
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

package logging

import (
	"context"
	"flag"
)

// SetError returns a context with its error field set.
func SetError(ctx context.Context, err error) context.Context {
	return SetField(ctx, ErrorKey, err)
}

// IsLogging tests whether the context is configured to log at the specified
// level.
//
// Individual Logger implementations are supposed to call this function when
// deciding whether to log the message.
func IsLogging(ctx context.Context, l Level) bool {
	return l >= GetLevel(ctx)
}

// Debugf logs at Debug level through the current logger's LogCall, attributing
// the message to the caller.
func Debugf(ctx context.Context, fmt string, args ...any) {
	Get(ctx).LogCall(Debug, 1, fmt, args)
}

// Infof logs at Info level through the current logger's LogCall, attributing
// the message to the caller.
func Infof(ctx context.Context, fmt string, args ...any) {
	Get(ctx).LogCall(Info, 1, fmt, args)
}

// Warningf logs at Warning level through the current logger's LogCall, attributing
// the message to the caller.
func Warningf(ctx context.Context, fmt string, args ...any) {
	Get(ctx).LogCall(Warning, 1, fmt, args)
}

// Errorf logs at Error level through the current logger's LogCall, attributing
// the message to the caller.
func Errorf(ctx context.Context, fmt string, args ...any) {
	Get(ctx).LogCall(Error, 1, fmt, args)
}

// Logf logs at the supplied level through the current logger's LogCall.
func Logf(ctx context.Context, l Level, fmt string, args ...any) {
	Get(ctx).LogCall(l, 1, fmt, args)
}

// Config is a logging configuration settable through command line flags.
type Config struct {
	Level Level
}

// AddFlags registers the configuration flags.
func (c *Config) AddFlags(fs *flag.FlagSet) {
	fs.Var(&c.Level, "log-level", "The logging level: debug, info, warning or error.")
}

// Set applies the configuration to the context.
func (c *Config) Set(ctx context.Context) context.Context {
	return SetLevel(ctx, c.Level)
}
