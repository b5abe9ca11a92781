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
	"strings"

	"go.chromium.org/gcpdata"
)

// TagName is the struct tag key holding entity metadata.
const TagName = "gcpdata"

const (
	metaID     = "$id"
	metaKind   = "$kind"
	metaParent = "$parent"
)

// EntityInfo is the mapping metadata of a single struct type.
//
// It is immutable once built.
type EntityInfo struct {
	// Type is the struct type.
	Type reflect.Type
	// Kind is the name of the collection (Datastore kind, Spanner table).
	Kind string

	id     []int
	parent []int
	fields []reflect.StructField
}

func newEntityInfo(t reflect.Type) (*EntityInfo, error) {
	if t.Kind() != reflect.Struct {
		return nil, gcpdata.DataMappingErrorf("%s is not a struct type", t)
	}
	info := &EntityInfo{Type: t, Kind: t.Name()}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag, ok := f.Tag.Lookup(TagName)
		if !ok || tag == "" {
			if f.IsExported() && !f.Anonymous {
				info.fields = append(info.fields, f)
			}
			continue
		}

		meta, val, _ := strings.Cut(tag, ",")
		switch meta {
		case metaID:
			if info.id != nil {
				return nil, gcpdata.DataMappingErrorf("%s: more than one %s field", t, metaID)
			}
			if !f.IsExported() {
				return nil, gcpdata.DataMappingErrorf("%s: %s field %q must be exported", t, metaID, f.Name)
			}
			info.id = f.Index
			info.fields = append(info.fields, f)

		case metaKind:
			if val == "" {
				return nil, gcpdata.DataMappingErrorf("%s: %s tag on %q needs a name, e.g. `%s:\"%s,Name\"`", t, metaKind, f.Name, TagName, metaKind)
			}
			info.Kind = val

		case metaParent:
			if f.Type.Kind() != reflect.Ptr {
				return nil, gcpdata.DataMappingErrorf("%s: %s field %q must be a key pointer, not %s", t, metaParent, f.Name, f.Type)
			}
			if !f.IsExported() {
				return nil, gcpdata.DataMappingErrorf("%s: %s field %q must be exported", t, metaParent, f.Name)
			}
			info.parent = f.Index

		default:
			return nil, gcpdata.DataMappingErrorf("%s: unknown %s tag %q on %q", t, TagName, tag, f.Name)
		}
	}

	if info.Kind == "" {
		return nil, gcpdata.DataMappingErrorf("%s: anonymous struct types need a %s tag", t, metaKind)
	}
	return info, nil
}

// HasID is true if the type declares an identifier field.
func (e *EntityInfo) HasID() bool {
	return e.id != nil
}

// IDField returns the identifier field, if any.
func (e *EntityInfo) IDField() (reflect.StructField, bool) {
	if e.id == nil {
		return reflect.StructField{}, false
	}
	return e.Type.FieldByIndex(e.id), true
}

// ParentField returns the parent key field, if any.
func (e *EntityInfo) ParentField() (reflect.StructField, bool) {
	if e.parent == nil {
		return reflect.StructField{}, false
	}
	return e.Type.FieldByIndex(e.parent), true
}

// Fields returns the exported, non-meta fields of the struct, including the
// identifier field.
func (e *EntityInfo) Fields() []reflect.StructField {
	return e.fields
}

// New allocates a zero entity and returns a pointer to it.
func (e *EntityInfo) New() any {
	return reflect.New(e.Type).Interface()
}

// Prototype returns a typed nil pointer to the entity type.
func (e *EntityInfo) Prototype() any {
	return reflect.Zero(reflect.PointerTo(e.Type)).Interface()
}

// ID returns the value of the identifier field of the entity.
//
// Fails with gcpdata.ErrDataMapping if the type has no identifier field, and
// with gcpdata.ErrIllegalArgument if the identifier is nil or a zero value.
func (e *EntityInfo) ID(entity any) (any, error) {
	if e.id == nil {
		return nil, gcpdata.DataMappingErrorf("%s declares no %s field", e.Type, metaID)
	}
	v, err := e.structValue(entity)
	if err != nil {
		return nil, err
	}
	fv := v.FieldByIndex(e.id)
	if fv.IsZero() {
		return nil, gcpdata.IllegalArgumentErrorf("%s: %s field %q is unset", e.Type, metaID, e.Type.FieldByIndex(e.id).Name)
	}
	return fv.Interface(), nil
}

// SetID stores id into the identifier field of the entity pointed to by dst.
//
// Integer ids are accepted by all integer fields, string ids by string fields,
// anything else must be assignable to the field.
func (e *EntityInfo) SetID(dst, id any) error {
	if e.id == nil {
		return gcpdata.DataMappingErrorf("%s declares no %s field", e.Type, metaID)
	}
	v, err := e.settable(dst)
	if err != nil {
		return err
	}
	return assign(e.Type, v.FieldByIndex(e.id), id)
}

// Parent returns the value of the parent field, or nil if the type has none
// or it is unset.
func (e *EntityInfo) Parent(entity any) any {
	if e.parent == nil {
		return nil
	}
	v, err := e.structValue(entity)
	if err != nil {
		return nil
	}
	fv := v.FieldByIndex(e.parent)
	if fv.IsNil() {
		return nil
	}
	return fv.Interface()
}

// SetParent stores parent into the parent field of the entity pointed to by
// dst. It is a noop for types without a parent field.
func (e *EntityInfo) SetParent(dst, parent any) error {
	if e.parent == nil {
		return nil
	}
	v, err := e.settable(dst)
	if err != nil {
		return err
	}
	fv := v.FieldByIndex(e.parent)
	if parent == nil || reflect.ValueOf(parent).IsNil() {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}
	return assign(e.Type, fv, parent)
}

func (e *EntityInfo) structValue(entity any) (reflect.Value, error) {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return reflect.Value{}, gcpdata.IllegalArgumentErrorf("nil %s entity", e.Type)
		}
		v = v.Elem()
	}
	if v.Type() != e.Type {
		return reflect.Value{}, gcpdata.DataMappingErrorf("expecting %s, got %T", e.Type, entity)
	}
	return v, nil
}

func (e *EntityInfo) settable(dst any) (reflect.Value, error) {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return reflect.Value{}, gcpdata.IllegalArgumentErrorf("expecting a non-nil *%s, got %T", e.Type, dst)
	}
	return e.structValue(dst)
}

func assign(t reflect.Type, fv reflect.Value, val any) error {
	rv := reflect.ValueOf(val)
	switch {
	case isInt(fv.Kind()) && isInt(rv.Kind()):
		fv.SetInt(rv.Int())
	case isUint(fv.Kind()) && isInt(rv.Kind()) && rv.Int() >= 0:
		fv.SetUint(uint64(rv.Int()))
	case fv.Kind() == reflect.String && rv.Kind() == reflect.String:
		fv.SetString(rv.String())
	case rv.Type().AssignableTo(fv.Type()):
		fv.Set(rv)
	default:
		return gcpdata.DataMappingErrorf("%s: can't store %T into a field of type %s", t, val, fv.Type())
	}
	return nil
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}
