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

	"go.chromium.org/gcpdata"
)

// Sink is a slice that entities are read into.
type Sink struct {
	Info *EntityInfo

	slice reflect.Value
	ptrs  bool
}

// NewSink wraps dst, which must be *[]S or *[]*S for a struct type S.
//
// The slice is truncated to zero length.
func (c *Context) NewSink(dst any) (*Sink, error) {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Slice {
		return nil, gcpdata.IllegalArgumentErrorf("expecting a non-nil pointer to a slice, got %T", dst)
	}
	slice := v.Elem()

	elem := slice.Type().Elem()
	ptrs := false
	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
		ptrs = true
	}
	info, err := c.TypeInfo(elem)
	if err != nil {
		return nil, err
	}

	slice.SetLen(0)
	return &Sink{Info: info, slice: slice, ptrs: ptrs}, nil
}

// NewSinkFor returns a sink backed by a fresh []*S for the entity type.
func (c *Context) NewSinkFor(entity any) (*Sink, error) {
	info, err := c.Info(entity)
	if err != nil {
		return nil, err
	}
	slice := reflect.New(reflect.SliceOf(reflect.PointerTo(info.Type))).Elem()
	return &Sink{Info: info, slice: slice, ptrs: true}, nil
}

// New allocates a new zero entity to be appended later.
func (s *Sink) New() any {
	return s.Info.New()
}

// Append adds an entity allocated by New.
func (s *Sink) Append(ent any) {
	v := reflect.ValueOf(ent)
	if !s.ptrs {
		v = v.Elem()
	}
	s.slice.Set(reflect.Append(s.slice, v))
}

// Len is the number of entities in the sink.
func (s *Sink) Len() int {
	return s.slice.Len()
}

// Each calls cb with a pointer to every entity in the sink.
func (s *Sink) Each(cb func(ent any) error) error {
	for i := 0; i < s.slice.Len(); i++ {
		v := s.slice.Index(i)
		if !s.ptrs {
			v = v.Addr()
		}
		if err := cb(v.Interface()); err != nil {
			return err
		}
	}
	return nil
}
