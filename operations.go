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

package gcpdata

import (
	"context"
)

// Operations is the store-independent contract of a template.
//
// Entity arguments (`dst`, `src`, `entity`) are structs or pointers to structs
// carrying `gcpdata` metadata. Where only the type matters (`entity`), a typed
// nil pointer such as (*Book)(nil) is enough.
//
// Identifiers (`id`) are either native store keys, which are used as is, or
// values convertible to an integer or a string.
type Operations interface {
	// FindByID loads the entity with the given id into dst, which must be a
	// pointer to a struct.
	//
	// Returns false and no error if there's no such entity.
	FindByID(ctx context.Context, id, dst any) (bool, error)

	// FindAllByID loads entities with the given ids with a single batched read.
	//
	// dst must be a pointer to a slice of structs or of struct pointers. It is
	// overwritten with the found entities in the order the store returned them.
	// Missing entities are skipped.
	FindAllByID(ctx context.Context, ids []any, dst any) error

	// FindAll loads all entities of dst's element type.
	FindAll(ctx context.Context, dst any) error

	// Save upserts the entity.
	Save(ctx context.Context, src any) error

	// DeleteByID deletes the entity of the given type with the given id.
	//
	// Deleting a missing entity is not an error.
	DeleteByID(ctx context.Context, id, entity any) error

	// Delete deletes the given entity.
	Delete(ctx context.Context, src any) error

	// DeleteAll deletes all entities of the given type with a single batched
	// delete and returns how many there were.
	DeleteAll(ctx context.Context, entity any) (int, error)

	// Count returns the number of entities of the given type.
	//
	// It is the length of FindAll: all the entities are read and converted.
	Count(ctx context.Context, entity any) (int64, error)

	// ExistsByID is true if FindByID finds the entity.
	ExistsByID(ctx context.Context, id, entity any) (bool, error)
}

// FindByID loads an entity of type T.
//
// Returns nil and no error if it doesn't exist.
func FindByID[T any](ctx context.Context, ops Operations, id any) (*T, error) {
	ent := new(T)
	switch found, err := ops.FindByID(ctx, id, ent); {
	case err != nil:
		return nil, err
	case !found:
		return nil, nil
	}
	return ent, nil
}

// FindAllByID loads entities of type T with a single batched read.
func FindAllByID[T any](ctx context.Context, ops Operations, ids ...any) ([]*T, error) {
	var out []*T
	if err := ops.FindAllByID(ctx, ids, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindAll loads all entities of type T.
func FindAll[T any](ctx context.Context, ops Operations) ([]*T, error) {
	var out []*T
	if err := ops.FindAll(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Count counts entities of type T.
func Count[T any](ctx context.Context, ops Operations) (int64, error) {
	return ops.Count(ctx, (*T)(nil))
}

// ExistsByID checks whether an entity of type T with the given id exists.
func ExistsByID[T any](ctx context.Context, ops Operations, id any) (bool, error) {
	return ops.ExistsByID(ctx, id, (*T)(nil))
}

// DeleteByID deletes an entity of type T.
func DeleteByID[T any](ctx context.Context, ops Operations, id any) error {
	return ops.DeleteByID(ctx, id, (*T)(nil))
}

// DeleteAll deletes all entities of type T.
func DeleteAll[T any](ctx context.Context, ops Operations) (int, error) {
	return ops.DeleteAll(ctx, (*T)(nil))
}
