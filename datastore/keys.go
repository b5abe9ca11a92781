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
	"cloud.google.com/go/datastore"

	"go.chromium.org/gcpdata"
	"go.chromium.org/gcpdata/mapping"
)

// KeyResolver derives Datastore keys from entities and raw identifiers.
type KeyResolver struct {
	// Mapping is the metadata registry, mapping.Default if nil.
	Mapping *mapping.Context
	// Namespace is stamped on every key built by the resolver.
	Namespace string
}

func (r *KeyResolver) mapping() *mapping.Context {
	if r.Mapping == nil {
		return mapping.Default
	}
	return r.Mapping
}

// KeyFor returns the key of the entity, built from its identifier and parent
// fields.
func (r *KeyResolver) KeyFor(entity any) (*datastore.Key, error) {
	info, err := r.mapping().Info(entity)
	if err != nil {
		return nil, err
	}
	id, err := info.ID(entity)
	if err != nil {
		return nil, err
	}
	var parent *datastore.Key
	if p := info.Parent(entity); p != nil {
		var ok bool
		if parent, ok = p.(*datastore.Key); !ok {
			return nil, gcpdata.DataMappingErrorf("%s: parent must be a *datastore.Key, got %T", info.Type, p)
		}
	}
	return r.key(info, id, parent)
}

// KeyFromID returns the key of an entity of the given type with the given id.
//
// A *datastore.Key id is returned as is.
func (r *KeyResolver) KeyFromID(id, entity any) (*datastore.Key, error) {
	if k, ok := id.(*datastore.Key); ok {
		if k == nil {
			return nil, gcpdata.IllegalArgumentErrorf("nil key")
		}
		return k, nil
	}
	info, err := r.mapping().Info(entity)
	if err != nil {
		return nil, err
	}
	return r.key(info, id, nil)
}

func (r *KeyResolver) key(info *mapping.EntityInfo, id any, parent *datastore.Key) (*datastore.Key, error) {
	if k, ok := id.(*datastore.Key); ok {
		return k, nil
	}
	raw, err := mapping.ConvertID(id)
	if err != nil {
		return nil, err
	}

	var k *datastore.Key
	switch v := raw.(type) {
	case int64:
		if v == 0 {
			return nil, gcpdata.IllegalArgumentErrorf("%s: zero id", info.Type)
		}
		k = datastore.IDKey(info.Kind, v, parent)
	case string:
		if v == "" {
			return nil, gcpdata.IllegalArgumentErrorf("%s: empty id", info.Type)
		}
		k = datastore.NameKey(info.Kind, v, parent)
	}
	k.Namespace = r.Namespace
	return k, nil
}
