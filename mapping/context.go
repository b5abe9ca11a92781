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

package mapping

import (
	"reflect"

	"github.com/puzpuzpuz/xsync/v3"

	"go.chromium.org/gcpdata"
)

// Context caches EntityInfo per struct type.
//
// Entries are computed lazily on first use and never change afterwards, so
// lookups of known types don't take locks.
type Context struct {
	infos *xsync.MapOf[reflect.Type, cached]
}

type cached struct {
	info *EntityInfo
	err  error
}

// Default is the process-wide mapping context.
var Default = NewContext()

// NewContext returns an empty Context.
func NewContext() *Context {
	return &Context{infos: xsync.NewMapOf[reflect.Type, cached]()}
}

// Info returns metadata of the entity type.
//
// entity may be a struct, a pointer to a struct (possibly a typed nil) or a
// reflect.Type of either.
func (c *Context) Info(entity any) (*EntityInfo, error) {
	var t reflect.Type
	switch v := entity.(type) {
	case nil:
		return nil, gcpdata.IllegalArgumentErrorf("nil entity")
	case reflect.Type:
		t = v
	default:
		t = reflect.TypeOf(entity)
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return c.TypeInfo(t)
}

// TypeInfo returns metadata of the given struct type.
func (c *Context) TypeInfo(t reflect.Type) (*EntityInfo, error) {
	res, _ := c.infos.LoadOrCompute(t, func() cached {
		info, err := newEntityInfo(t)
		return cached{info, err}
	})
	return res.info, res.err
}

// Len is the number of cached types.
func (c *Context) Len() int {
	return c.infos.Size()
}
