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

package datastore_test

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/cockroachdb/errors"
	. "github.com/smartystreets/goconvey/convey"

	"go.chromium.org/gcpdata"
	ds "go.chromium.org/gcpdata/datastore"
	"go.chromium.org/gcpdata/filter/count"
)

func TestTransactions(t *testing.T) {
	t.Parallel()

	Convey(`With a template`, t, func() {
		ctx := context.Background()
		store := newFakeStore()
		client, cnt := count.FilterDatastore(store)
		tmpl := ds.NewTemplate(client)
		So(tmpl.Save(ctx, &Book{ISBN: "1", Title: "one"}), ShouldBeNil)
		So(tmpl.Save(ctx, &Book{ISBN: "2", Title: "two"}), ShouldBeNil)

		Convey(`a read-write transaction`, func() {
			Convey(`buffers writes until commit`, func() {
				err := tmpl.PerformReadWriteTransaction(ctx, func(ctx context.Context, tx *ds.Template) error {
					So(tx.Mode(), ShouldEqual, gcpdata.ReadWrite)
					So(tx.InTransaction(), ShouldBeTrue)

					So(tx.Save(ctx, &Book{ISBN: "3", Title: "three"}), ShouldBeNil)
					So(tx.DeleteByID(ctx, "1", Book{}), ShouldBeNil)

					// Not visible until commit.
					exists, err := tmpl.ExistsByID(ctx, "3", Book{})
					So(err, ShouldBeNil)
					So(exists, ShouldBeFalse)
					exists, err = tx.ExistsByID(ctx, "1", Book{})
					So(err, ShouldBeNil)
					So(exists, ShouldBeTrue)
					return nil
				})
				So(err, ShouldBeNil)

				So(store.txns, ShouldHaveLength, 1)
				So(store.txns[0].committed, ShouldBeTrue)
				So(store.txns[0].rolledBack, ShouldBeFalse)
				So(store.puts, ShouldHaveLength, 2)

				var books []Book
				So(tmpl.FindAll(ctx, &books), ShouldBeNil)
				So(books, ShouldResemble, []Book{
					{ISBN: "2", Title: "two"},
					{ISBN: "3", Title: "three"},
				})
			})

			Convey(`rolls back when the closure fails`, func() {
				boom := errors.New("boom")
				err := tmpl.PerformReadWriteTransaction(ctx, func(ctx context.Context, tx *ds.Template) error {
					So(tx.Save(ctx, &Book{ISBN: "3"}), ShouldBeNil)
					return boom
				})
				So(err, ShouldEqual, boom)
				So(store.txns[0].committed, ShouldBeFalse)
				So(store.txns[0].rolledBack, ShouldBeTrue)
				So(cnt.Commit.Total(), ShouldEqual, int64(0))

				exists, err := tmpl.ExistsByID(ctx, "3", Book{})
				So(err, ShouldBeNil)
				So(exists, ShouldBeFalse)
			})

			Convey(`rolls back when the closure panics`, func() {
				So(func() {
					tmpl.PerformReadWriteTransaction(ctx, func(ctx context.Context, tx *ds.Template) error {
						panic("boom")
					})
				}, ShouldPanicWith, "boom")
				So(store.txns[0].rolledBack, ShouldBeTrue)
			})

			Convey(`passes commit errors through`, func() {
				store.commitErr = datastore.ErrConcurrentTransaction
				err := tmpl.PerformReadWriteTransaction(ctx, func(ctx context.Context, tx *ds.Template) error {
					return tx.Save(ctx, &Book{ISBN: "3"})
				})
				So(errors.Is(err, datastore.ErrConcurrentTransaction), ShouldBeTrue)
				So(cnt.Commit.Errors(), ShouldEqual, 1)
				So(cnt.Rollback.Total(), ShouldEqual, int64(0))
			})

			Convey(`batches DeleteAll into the transaction`, func() {
				err := tmpl.PerformReadWriteTransaction(ctx, func(ctx context.Context, tx *ds.Template) error {
					n, err := tx.DeleteAll(ctx, (*Book)(nil))
					So(n, ShouldEqual, 2)
					return err
				})
				So(err, ShouldBeNil)
				So(store.txns[0].deletes, ShouldHaveLength, 1)
				So(store.txns[0].deletes[0], ShouldHaveLength, 2)

				n, err := tmpl.Count(ctx, Book{})
				So(err, ShouldBeNil)
				So(n, ShouldEqual, int64(0))
			})
		})

		Convey(`a read-only transaction`, func() {
			Convey(`reads and is released`, func() {
				err := tmpl.PerformReadOnlyTransaction(ctx, func(ctx context.Context, tx *ds.Template) error {
					So(tx.Mode(), ShouldEqual, gcpdata.ReadOnly)

					got := &Book{}
					found, err := tx.FindByID(ctx, "2", got)
					So(err, ShouldBeNil)
					So(found, ShouldBeTrue)
					So(got.Title, ShouldEqual, "two")

					n, err := tx.Count(ctx, Book{})
					So(err, ShouldBeNil)
					So(n, ShouldEqual, int64(2))
					return nil
				}, nil)
				So(err, ShouldBeNil)
				So(store.txns, ShouldHaveLength, 1)
				So(store.txns[0].readOnly, ShouldBeTrue)
				So(store.txns[0].opts, ShouldResemble, ds.TransactionOptions{ReadOnly: true})
				So(store.txns[0].rolledBack, ShouldBeTrue)
			})

			Convey(`can be pinned to a read time`, func() {
				at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
				err := tmpl.PerformReadOnlyTransaction(ctx, func(ctx context.Context, tx *ds.Template) error {
					_, err := tx.ExistsByID(ctx, "1", Book{})
					return err
				}, &ds.ReadOptions{Timestamp: at})
				So(err, ShouldBeNil)
				So(store.txns, ShouldHaveLength, 1)
				So(store.txns[0].opts, ShouldResemble, ds.TransactionOptions{ReadOnly: true, ReadTime: at})
				So(store.txns[0].gets, ShouldHaveLength, 1)
			})

			Convey(`refuses every mutation without touching the store`, func() {
				writes := cnt.Writes()
				err := tmpl.PerformReadOnlyTransaction(ctx, func(ctx context.Context, tx *ds.Template) error {
					for _, err := range []error{
						tx.Save(ctx, &Book{ISBN: "3"}),
						tx.Delete(ctx, &Book{ISBN: "1"}),
						tx.DeleteByID(ctx, "1", Book{}),
						func() error { _, err := tx.DeleteAll(ctx, Book{}); return err }(),
					} {
						So(errors.Is(err, gcpdata.ErrTransactionSemantics), ShouldBeTrue)
						So(err, ShouldErrLike, "read-only transactions do not support mutations")
					}
					return nil
				}, nil)
				So(err, ShouldBeNil)
				So(cnt.Writes(), ShouldEqual, writes)
				So(cnt.Run.Total(), ShouldEqual, int64(0))
				So(store.txns[0].puts, ShouldBeEmpty)
				So(store.txns[0].deletes, ShouldBeEmpty)
			})
		})

		Convey(`scoped templates`, func() {
			var scoped *ds.Template

			type performer struct {
				name    string
				perform func(*ds.Template, ds.TxnFunc) error
			}
			kinds := []performer{
				{"read-write", func(t *ds.Template, f ds.TxnFunc) error { return t.PerformReadWriteTransaction(ctx, f) }},
				{"read-only", func(t *ds.Template, f ds.TxnFunc) error { return t.PerformReadOnlyTransaction(ctx, f, nil) }},
			}
			for _, kind := range kinds {
				Convey(kind.name+" reads go through the transaction", func() {
					gets, getMultis, queries := len(store.gets), len(store.getMultis), len(store.queries)
					err := kind.perform(tmpl, func(ctx context.Context, tx *ds.Template) error {
						found, err := tx.FindByID(ctx, "1", &Book{})
						So(err, ShouldBeNil)
						So(found, ShouldBeTrue)

						books, err := gcpdata.FindAllByID[Book](ctx, tx, "1", "2")
						So(err, ShouldBeNil)
						So(books, ShouldHaveLength, 2)

						n, err := tx.Count(ctx, Book{})
						So(err, ShouldBeNil)
						So(n, ShouldEqual, int64(2))
						return nil
					})
					So(err, ShouldBeNil)

					So(store.txns, ShouldHaveLength, 1)
					txn := store.txns[0]
					So(txn.gets, ShouldHaveLength, 1)
					So(txn.getMultis, ShouldHaveLength, 1)
					So(txn.queries, ShouldHaveLength, 1)
					So(store.gets, ShouldHaveLength, gets)
					So(store.getMultis, ShouldHaveLength, getMultis)
					So(store.queries, ShouldHaveLength, queries)
				})
			}

			for _, outer := range kinds {
				for _, inner := range kinds {
					Convey(outer.name+" can't nest "+inner.name, func() {
						called := false
						err := outer.perform(tmpl, func(ctx context.Context, tx *ds.Template) error {
							scoped = tx
							return inner.perform(tx, func(context.Context, *ds.Template) error {
								called = true
								return nil
							})
						})
						So(errors.Is(err, gcpdata.ErrTransactionSemantics), ShouldBeTrue)
						So(err, ShouldErrLike, "sub-transactions are not supported")
						So(called, ShouldBeFalse)
						So(store.txns, ShouldHaveLength, 1)

						Convey(`and can't be used after the closure returns`, func() {
							_, err := scoped.FindByID(ctx, "1", &Book{})
							So(errors.Is(err, gcpdata.ErrTransactionSemantics), ShouldBeTrue)
							So(err, ShouldErrLike, "transaction is finished")
						})
					})
				}
			}
		})
	})
}

// ShouldErrLike checks the error message contains the substring.
func ShouldErrLike(actual any, expected ...any) string {
	err, ok := actual.(error)
	if !ok || err == nil {
		return "expected an error"
	}
	return ShouldContainSubstring(err.Error(), expected...)
}
