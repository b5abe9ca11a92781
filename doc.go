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

// Package gcpdata maps Go structs onto Cloud Datastore entities and Cloud
// Spanner rows and runs reads and writes against them through templates.
//
// A template executes every operation either standalone, where each call is
// its own auto-committing unit of work, or bound to a transaction handed out
// by PerformReadWriteTransaction / PerformReadOnlyTransaction:
//
//	err := tmpl.PerformReadWriteTransaction(ctx, func(ctx context.Context, tx *datastore.Template) error {
//	  book, err := gcpdata.FindByID[Book](ctx, tx, "123")
//	  if err != nil || book == nil {
//	    return err
//	  }
//	  book.Copies++
//	  return tx.Save(ctx, book)
//	})
//
// Both store packages (go.chromium.org/gcpdata/datastore and
// go.chromium.org/gcpdata/spanner) implement the Operations interface, so code
// written against it behaves the same in either mode and against either
// store.
//
// Entity metadata is declared with the `gcpdata` struct tag, see package
// go.chromium.org/gcpdata/mapping.
package gcpdata
