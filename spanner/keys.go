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
	"cloud.google.com/go/spanner"

	"go.chromium.org/gcpdata"
	"go.chromium.org/gcpdata/mapping"
)

// KeyResolver derives Spanner primary keys from entities and raw identifiers.
type KeyResolver struct {
	// Mapping is the metadata registry, mapping.Default if nil.
	Mapping *mapping.Context
}

func (r *KeyResolver) mapping() *mapping.Context {
	if r.Mapping == nil {
		return mapping.Default
	}
	return r.Mapping
}

// KeyFor returns the primary key of the entity.
func (r *KeyResolver) KeyFor(entity any) (spanner.Key, error) {
	info, err := r.mapping().Info(entity)
	if err != nil {
		return nil, err
	}
	id, err := info.ID(entity)
	if err != nil {
		return nil, err
	}
	return keyFromID(id)
}

// KeyFromID returns the primary key of an entity of the given type with the
// given id.
//
// A spanner.Key id is returned as is.
func (r *KeyResolver) KeyFromID(id, entity any) (spanner.Key, error) {
	if k, ok := id.(spanner.Key); ok {
		if len(k) == 0 {
			return nil, gcpdata.IllegalArgumentErrorf("empty key")
		}
		return k, nil
	}
	if _, err := r.mapping().Info(entity); err != nil {
		return nil, err
	}
	return keyFromID(id)
}

func keyFromID(id any) (spanner.Key, error) {
	if k, ok := id.(spanner.Key); ok {
		return k, nil
	}
	raw, err := mapping.ConvertID(id)
	if err != nil {
		return nil, err
	}
	return spanner.Key{raw}, nil
}
