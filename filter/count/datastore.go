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

package count

import (
	"context"

	"cloud.google.com/go/datastore"

	ds "go.chromium.org/gcpdata/datastore"
)

// DatastoreCounter is the counter object for the Datastore client.
//
// Calls made through transactions are counted in the same entries as
// standalone calls.
type DatastoreCounter struct {
	Get            Entry
	GetMulti       Entry
	Run            Entry
	Put            Entry
	Delete         Entry
	NewTransaction Entry
	Commit         Entry
	Rollback       Entry
}

// Writes is the number of Put and Delete calls.
func (c *DatastoreCounter) Writes() int64 {
	return c.Put.Total() + c.Delete.Total()
}

type dsReader struct {
	c *DatastoreCounter
	r ds.Reader
}

func (r dsReader) Get(ctx context.Context, key *datastore.Key) (*datastore.Entity, error) {
	ret, err := r.r.Get(ctx, key)
	return ret, r.c.Get.up(err)
}

func (r dsReader) GetMulti(ctx context.Context, keys []*datastore.Key) ([]*datastore.Entity, error) {
	ret, err := r.r.GetMulti(ctx, keys)
	return ret, r.c.GetMulti.up(err)
}

func (r dsReader) Run(ctx context.Context, q ds.Query) ds.EntityIterator {
	r.c.Run.up()
	return r.r.Run(ctx, q)
}

type dsWriter struct {
	c *DatastoreCounter
	w ds.Writer
}

func (w dsWriter) Put(ctx context.Context, e *datastore.Entity) error {
	return w.c.Put.up(w.w.Put(ctx, e))
}

func (w dsWriter) Delete(ctx context.Context, keys ...*datastore.Key) error {
	return w.c.Delete.up(w.w.Delete(ctx, keys...))
}

type dsCounter struct {
	dsReader
	dsWriter

	client ds.Client
}

var _ ds.Client = (*dsCounter)(nil)

func (d *dsCounter) NewTransaction(ctx context.Context, opts ds.TransactionOptions) (ds.Transaction, error) {
	txn, err := d.client.NewTransaction(ctx, opts)
	if d.dsReader.c.NewTransaction.up(err) != nil {
		return nil, err
	}
	return &dsTxnCounter{dsReader{d.dsReader.c, txn}, dsWriter{d.dsReader.c, txn}, txn}, nil
}

type dsTxnCounter struct {
	dsReader
	dsWriter

	txn ds.Transaction
}

var _ ds.Transaction = (*dsTxnCounter)(nil)

func (t *dsTxnCounter) Commit(ctx context.Context) error {
	return t.dsReader.c.Commit.up(t.txn.Commit(ctx))
}

func (t *dsTxnCounter) Rollback(ctx context.Context) error {
	return t.dsReader.c.Rollback.up(t.txn.Rollback(ctx))
}

// FilterDatastore wraps the client with a counter.
func FilterDatastore(client ds.Client) (ds.Client, *DatastoreCounter) {
	state := &DatastoreCounter{}
	return &dsCounter{dsReader{state, client}, dsWriter{state, client}, client}, state
}
