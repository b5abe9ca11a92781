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

package logging

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// ErrorKey is the field key used by WithError and SetError.
const ErrorKey = "error"

// Fields are key/value pairs attached to log messages.
type Fields map[string]any

// WithError returns Fields holding the error.
func WithError(err error) Fields {
	return Fields{ErrorKey: err}
}

// Copy returns a new Fields with f's entries overridden by other's.
func (f Fields) Copy(other Fields) Fields {
	ret := make(Fields, len(f)+len(other))
	for k, v := range f {
		ret[k] = v
	}
	for k, v := range other {
		ret[k] = v
	}
	return ret
}

// String renders fields as a sorted `{k=v, ...}` list.
func (f Fields) String() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, f[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Debugf logs at Debug level with the fields attached.
func (f Fields) Debugf(ctx context.Context, format string, args ...any) {
	Get(SetFields(ctx, f)).LogCall(Debug, 1, format, args)
}

// Infof logs at Info level with the fields attached.
func (f Fields) Infof(ctx context.Context, format string, args ...any) {
	Get(SetFields(ctx, f)).LogCall(Info, 1, format, args)
}

// Warningf logs at Warning level with the fields attached.
func (f Fields) Warningf(ctx context.Context, format string, args ...any) {
	Get(SetFields(ctx, f)).LogCall(Warning, 1, format, args)
}

// Errorf logs at Error level with the fields attached.
func (f Fields) Errorf(ctx context.Context, format string, args ...any) {
	Get(SetFields(ctx, f)).LogCall(Error, 1, format, args)
}

// SetFields returns a context with fields merged into the existing ones.
func SetFields(ctx context.Context, fields Fields) context.Context {
	return context.WithValue(ctx, fieldsKey, GetFields(ctx).Copy(fields))
}

// SetField is SetFields with a single field.
func SetField(ctx context.Context, key string, value any) context.Context {
	return SetFields(ctx, Fields{key: value})
}

// GetFields returns the fields attached to the context.
func GetFields(ctx context.Context) Fields {
	f, _ := ctx.Value(fieldsKey).(Fields)
	return f
}
