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

// Package mapping resolves entity metadata declared through `gcpdata` struct
// tags.
//
// Recognized tags:
//
//	type Book struct {
//	  _kind  string         `gcpdata:"$kind,Book"` // collection (kind/table) name
//	  ISBN   string         `gcpdata:"$id"`        // identifier
//	  Shelf  *datastore.Key `gcpdata:"$parent"`    // parent key, Datastore only
//	  Title  string
//	}
//
// Without `$kind` the collection name is the Go type name. `$id` and `$parent`
// fields must be exported. Embedded structs are not flattened.
//
// Metadata is computed once per type and cached in a Context. The Default
// context is shared by the whole process; it is safe for concurrent use.
package mapping
