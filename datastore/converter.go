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

package datastore

import (
	"reflect"
	"strings"

	"cloud.google.com/go/datastore"
	"github.com/cockroachdb/errors"

	"go.chromium.org/gcpdata"
	"go.chromium.org/gcpdata/mapping"
)

// EntityConverter converts between structs and Datastore entities.
type EntityConverter interface {
	// Read populates the struct pointed to by dst from e.
	Read(dst any, e *datastore.Entity) error
	// Write stores src into e, whose key is already set.
	Write(src any, e *datastore.Entity) error
}

// DefaultConverter uses datastore.LoadStruct and datastore.SaveStruct.
//
// The identifier and parent fields are carried by the entity key, not stored
// as properties.
type DefaultConverter struct {
	Mapping *mapping.Context
}

var keyType = reflect.TypeOf((*datastore.Key)(nil))

func (c DefaultConverter) info(entity any) (*mapping.EntityInfo, error) {
	m := c.Mapping
	if m == nil {
		m = mapping.Default
	}
	return m.Info(entity)
}

// Read implements EntityConverter.
func (c DefaultConverter) Read(dst any, e *datastore.Entity) error {
	info, err := c.info(dst)
	if err != nil {
		return err
	}
	if err := datastore.LoadStruct(dst, e.Properties); err != nil {
		return errors.Mark(errors.Wrapf(err, "loading %s", e.Key), gcpdata.ErrDataMapping)
	}
	if e.Key == nil {
		return nil
	}

	if f, ok := info.IDField(); ok {
		var id any
		switch {
		case f.Type == keyType:
			id = e.Key
		case e.Key.Name != "":
			id = e.Key.Name
		default:
			id = e.Key.ID
		}
		if err := info.SetID(dst, id); err != nil {
			return err
		}
	}
	return info.SetParent(dst, e.Key.Parent)
}

// Write implements EntityConverter.
func (c DefaultConverter) Write(src any, e *datastore.Entity) error {
	info, err := c.info(src)
	if err != nil {
		return err
	}
	props, err := datastore.SaveStruct(src)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "saving %s", info.Type), gcpdata.ErrDataMapping)
	}

	skip := map[string]bool{}
	if f, ok := info.IDField(); ok {
		skip[propertyName(f)] = true
	}
	if f, ok := info.ParentField(); ok {
		skip[propertyName(f)] = true
	}
	e.Properties = props[:0]
	for _, p := range props {
		if !skip[p.Name] {
			e.Properties = append(e.Properties, p)
		}
	}
	return nil
}

// propertyName is the name datastore.SaveStruct gives to the field.
func propertyName(f reflect.StructField) string {
	if name, _, _ := strings.Cut(f.Tag.Get("datastore"), ","); name != "" && name != "-" {
		return name
	}
	return f.Name
}
