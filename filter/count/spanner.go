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
	"time"

	"cloud.google.com/go/spanner"

	sp "go.chromium.org/gcpdata/spanner"
)

// SpannerCounter is the counter object for the Spanner client.
//
// Reads are counted in the same entries regardless of the read context they
// go through.
type SpannerCounter struct {
	Single               Entry
	ReadOnlyTransaction  Entry
	ReadWriteTransaction Entry
	Apply                Entry
	ReadRow              Entry
	ReadRows             Entry
	ReadTable            Entry
	BufferWrite          Entry
}

// Writes is the number of Apply and BufferWrite calls.
func (c *SpannerCounter) Writes() int64 {
	return c.Apply.Total() + c.BufferWrite.Total()
}

type spReader struct {
	c  *SpannerCounter
	rc sp.ReadContext
}

func (r spReader) ReadRow(ctx context.Context, table string, key spanner.Key, columns []string) (*spanner.Row, error) {
	row, err := r.rc.ReadRow(ctx, table, key, columns)
	return row, r.c.ReadRow.up(err)
}

func (r spReader) ReadRows(ctx context.Context, table string, keys []spanner.Key, columns []string) sp.RowIterator {
	r.c.ReadRows.up()
	return r.rc.ReadRows(ctx, table, keys, columns)
}

func (r spReader) ReadTable(ctx context.Context, table string, columns []string) sp.RowIterator {
	r.c.ReadTable.up()
	return r.rc.ReadTable(ctx, table, columns)
}

type spSnapshot struct {
	spReader
	txn sp.ReadOnlyTransaction
}

func (s spSnapshot) Close() {
	s.txn.Close()
}

type spTxn struct {
	spReader
	txn sp.TransactionContext
}

func (t spTxn) BufferWrite(ms []*spanner.Mutation) error {
	return t.c.BufferWrite.up(t.txn.BufferWrite(ms))
}

type spCounter struct {
	c      *SpannerCounter
	client sp.DatabaseClient
}

var _ sp.DatabaseClient = (*spCounter)(nil)

func (s *spCounter) Single(bound spanner.TimestampBound) sp.ReadContext {
	s.c.Single.up()
	return spReader{s.c, s.client.Single(bound)}
}

func (s *spCounter) ReadOnlyTransaction(bound spanner.TimestampBound) sp.ReadOnlyTransaction {
	s.c.ReadOnlyTransaction.up()
	txn := s.client.ReadOnlyTransaction(bound)
	return spSnapshot{spReader{s.c, txn}, txn}
}

func (s *spCounter) ReadWriteTransaction(ctx context.Context, f func(context.Context, sp.TransactionContext) error) (time.Time, error) {
	ts, err := s.client.ReadWriteTransaction(ctx, func(ctx context.Context, txn sp.TransactionContext) error {
		return f(ctx, spTxn{spReader{s.c, txn}, txn})
	})
	return ts, s.c.ReadWriteTransaction.up(err)
}

func (s *spCounter) Apply(ctx context.Context, ms []*spanner.Mutation) (time.Time, error) {
	ts, err := s.client.Apply(ctx, ms)
	return ts, s.c.Apply.up(err)
}

// FilterSpanner wraps the client with a counter.
func FilterSpanner(client sp.DatabaseClient) (sp.DatabaseClient, *SpannerCounter) {
	state := &SpannerCounter{}
	return &spCounter{state, client}, state
}
