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

// Package spanner maps Go structs onto Cloud Spanner rows.
//
// Template implements gcpdata.Operations either directly against a
// DatabaseClient or inside a transaction opened with
// PerformReadWriteTransaction or PerformReadOnlyTransaction. Each entity type
// maps to a table named after its kind, keyed by a single primary key column
// holding the identifier.
package spanner

import (
	"context"
	"time"

	"cloud.google.com/go/spanner"
	"google.golang.org/grpc/codes"
)

// RowIterator iterates over rows.
//
// Next returns iterator.Done after the last row. Stop must be called once the
// iterator is no longer needed.
type RowIterator interface {
	Next() (*spanner.Row, error)
	Stop()
}

// ReadContext reads rows at a fixed consistency.
type ReadContext interface {
	// ReadRow reads a single row or returns (nil, nil) if it doesn't exist.
	ReadRow(ctx context.Context, table string, key spanner.Key, columns []string) (*spanner.Row, error)
	// ReadRows reads the rows with the given keys in a single call.
	ReadRows(ctx context.Context, table string, keys []spanner.Key, columns []string) RowIterator
	// ReadTable reads all rows of the table.
	ReadTable(ctx context.Context, table string, columns []string) RowIterator
}

// ReadOnlyTransaction is a multi-use snapshot.
type ReadOnlyTransaction interface {
	ReadContext
	Close()
}

// TransactionContext is a running read-write transaction.
type TransactionContext interface {
	ReadContext
	// BufferWrite buffers mutations until the transaction commits.
	BufferWrite(ms []*spanner.Mutation) error
}

// DatabaseClient is the subset of the Spanner client used by Template.
type DatabaseClient interface {
	// Single returns a single-use read context.
	Single(bound spanner.TimestampBound) ReadContext
	// ReadOnlyTransaction starts a multi-use snapshot.
	ReadOnlyTransaction(bound spanner.TimestampBound) ReadOnlyTransaction
	// ReadWriteTransaction runs f in a read-write transaction, retrying it on
	// aborts, and returns the commit timestamp.
	ReadWriteTransaction(ctx context.Context, f func(context.Context, TransactionContext) error) (time.Time, error)
	// Apply applies mutations atomically outside of any transaction.
	Apply(ctx context.Context, ms []*spanner.Mutation) (time.Time, error)
}

// NewDatabaseClient adapts the Cloud Spanner client.
func NewDatabaseClient(c *spanner.Client) DatabaseClient {
	return &cloudClient{c}
}

type cloudClient struct {
	c *spanner.Client
}

func (c *cloudClient) Single(bound spanner.TimestampBound) ReadContext {
	return cloudReadContext{c.c.Single().WithTimestampBound(bound)}
}

func (c *cloudClient) ReadOnlyTransaction(bound spanner.TimestampBound) ReadOnlyTransaction {
	tx := c.c.ReadOnlyTransaction().WithTimestampBound(bound)
	return cloudSnapshot{cloudReadContext{tx}, tx}
}

func (c *cloudClient) ReadWriteTransaction(ctx context.Context, f func(context.Context, TransactionContext) error) (time.Time, error) {
	return c.c.ReadWriteTransaction(ctx, func(ctx context.Context, tx *spanner.ReadWriteTransaction) error {
		return f(ctx, cloudTransaction{cloudReadContext{tx}, tx})
	})
}

func (c *cloudClient) Apply(ctx context.Context, ms []*spanner.Mutation) (time.Time, error) {
	return c.c.Apply(ctx, ms)
}

// cloudReader is implemented by all Cloud Spanner transaction types.
type cloudReader interface {
	ReadRow(ctx context.Context, table string, key spanner.Key, columns []string) (*spanner.Row, error)
	Read(ctx context.Context, table string, keys spanner.KeySet, columns []string) *spanner.RowIterator
}

type cloudReadContext struct {
	r cloudReader
}

func (rc cloudReadContext) ReadRow(ctx context.Context, table string, key spanner.Key, columns []string) (*spanner.Row, error) {
	row, err := rc.r.ReadRow(ctx, table, key, columns)
	if spanner.ErrCode(err) == codes.NotFound {
		return nil, nil
	}
	return row, err
}

func (rc cloudReadContext) ReadRows(ctx context.Context, table string, keys []spanner.Key, columns []string) RowIterator {
	return rc.r.Read(ctx, table, spanner.KeySetFromKeys(keys...), columns)
}

func (rc cloudReadContext) ReadTable(ctx context.Context, table string, columns []string) RowIterator {
	return rc.r.Read(ctx, table, spanner.AllKeys(), columns)
}

type cloudSnapshot struct {
	cloudReadContext
	tx *spanner.ReadOnlyTransaction
}

func (s cloudSnapshot) Close() {
	s.tx.Close()
}

type cloudTransaction struct {
	cloudReadContext
	tx *spanner.ReadWriteTransaction
}

func (t cloudTransaction) BufferWrite(ms []*spanner.Mutation) error {
	return t.tx.BufferWrite(ms)
}
