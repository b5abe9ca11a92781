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

package spanner

import (
	"reflect"
	"strings"

	"cloud.google.com/go/spanner"
	"github.com/cockroachdb/errors"

	"go.chromium.org/gcpdata"
	"go.chromium.org/gcpdata/mapping"
)

// EntityProcessor converts rows into structs.
type EntityProcessor interface {
	// Read populates the struct pointed to by dst from row.
	Read(dst any, row *spanner.Row) error
}

// MutationFactory builds mutations.
type MutationFactory interface {
	// Upsert returns a mutation inserting or replacing src in table.
	Upsert(table string, src any) (*spanner.Mutation, error)
	// Delete returns a single mutation deleting all keys from table.
	Delete(table string, keys ...spanner.Key) *spanner.Mutation
}

// DefaultProcessor uses spanner.Row.ToStruct.
type DefaultProcessor struct{}

// Read implements EntityProcessor.
func (DefaultProcessor) Read(dst any, row *spanner.Row) error {
	if err := row.ToStruct(dst); err != nil {
		return errors.Mark(errors.Wrapf(err, "decoding %T", dst), gcpdata.ErrDataMapping)
	}
	return nil
}

// DefaultMutationFactory uses spanner.InsertOrUpdateStruct and spanner.Delete.
type DefaultMutationFactory struct{}

// Upsert implements MutationFactory.
func (DefaultMutationFactory) Upsert(table string, src any) (*spanner.Mutation, error) {
	m, err := spanner.InsertOrUpdateStruct(table, src)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "encoding %T", src), gcpdata.ErrDataMapping)
	}
	return m, nil
}

// Delete implements MutationFactory.
func (DefaultMutationFactory) Delete(table string, keys ...spanner.Key) *spanner.Mutation {
	return spanner.Delete(table, spanner.KeySetFromKeys(keys...))
}

// Columns returns the column names of the entity type, in field order.
//
// They match the names spanner.InsertOrUpdateStruct and Row.ToStruct use: the
// `spanner` tag if present, the field name otherwise.
func Columns(info *mapping.EntityInfo) []string {
	fields := info.Fields()
	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		if name := columnName(f); name != "" {
			cols = append(cols, name)
		}
	}
	return cols
}

func columnName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("spanner"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}
