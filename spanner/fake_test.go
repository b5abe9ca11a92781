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

package spanner_test

import (
	"context"
	"reflect"
	"sync"
	"time"

	"cloud.google.com/go/spanner"
	"github.com/cockroachdb/errors"
	"google.golang.org/api/iterator"

	"go.chromium.org/gcpdata/mapping"
	sp "go.chromium.org/gcpdata/spanner"
)

// fakeMutation is what a mutation built by fakeMutations does.
type fakeMutation struct {
	op     string // "upsert" or "delete"
	table  string
	entity any
	keys   []spanner.Key
}

type table struct {
	rows  map[string]any
	order []string
}

// fakeDB is an in-memory sp.DatabaseClient recording every call.
//
// It understands mutations built by its own MutationFactory only.
type fakeDB struct {
	mu sync.Mutex

	tables    map[string]*table
	mutations map[*spanner.Mutation]fakeMutation

	singles   []spanner.TimestampBound
	snapshots []*fakeSnapshot
	applies   [][]*spanner.Mutation
	commits   [][]*spanner.Mutation
	attempts  int

	// abortFirst makes the first read-write attempt abort after f returns.
	abortFirst bool
}

var _ sp.DatabaseClient = (*fakeDB)(nil)

func newFakeDB() *fakeDB {
	return &fakeDB{
		tables:    map[string]*table{},
		mutations: map[*spanner.Mutation]fakeMutation{},
	}
}

// MutationFactory returns a factory whose mutations the fake can apply.
func (db *fakeDB) MutationFactory() sp.MutationFactory {
	return fakeMutations{db}
}

func (db *fakeDB) describe(ms []*spanner.Mutation) []fakeMutation {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]fakeMutation, len(ms))
	for i, m := range ms {
		out[i] = db.mutations[m]
	}
	return out
}

func (db *fakeDB) apply(ms []*spanner.Mutation) {
	for _, m := range db.describe(ms) {
		db.mu.Lock()
		t := db.tables[m.table]
		if t == nil {
			t = &table{rows: map[string]any{}}
			db.tables[m.table] = t
		}
		switch m.op {
		case "upsert":
			key, err := (&sp.KeyResolver{}).KeyFor(m.entity)
			if err != nil {
				panic(err)
			}
			if _, ok := t.rows[key.String()]; !ok {
				t.order = append(t.order, key.String())
			}
			t.rows[key.String()] = m.entity
		case "delete":
			for _, k := range m.keys {
				delete(t.rows, k.String())
			}
		}
		db.mu.Unlock()
	}
}

func (db *fakeDB) row(tbl, key string, columns []string) *spanner.Row {
	db.mu.Lock()
	defer db.mu.Unlock()
	t := db.tables[tbl]
	if t == nil {
		return nil
	}
	ent, ok := t.rows[key]
	if !ok {
		return nil
	}
	v := reflect.ValueOf(ent).Elem()
	vals := make([]any, len(columns))
	for i, col := range columns {
		vals[i] = v.FieldByName(col).Interface()
	}
	row, err := spanner.NewRow(columns, vals)
	if err != nil {
		panic(err)
	}
	return row
}

func (db *fakeDB) keys(tbl string) []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	t := db.tables[tbl]
	if t == nil {
		return nil
	}
	var out []string
	for _, k := range t.order {
		if _, ok := t.rows[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

func (db *fakeDB) Single(bound spanner.TimestampBound) sp.ReadContext {
	db.singles = append(db.singles, bound)
	return fakeReader{db}
}

func (db *fakeDB) ReadOnlyTransaction(bound spanner.TimestampBound) sp.ReadOnlyTransaction {
	s := &fakeSnapshot{fakeReader: fakeReader{db}, bound: bound}
	db.snapshots = append(db.snapshots, s)
	return s
}

func (db *fakeDB) ReadWriteTransaction(ctx context.Context, f func(context.Context, sp.TransactionContext) error) (time.Time, error) {
	for {
		db.attempts++
		txn := &fakeTxn{fakeReader: fakeReader{db}}
		if err := f(ctx, txn); err != nil {
			return time.Time{}, err
		}
		if db.abortFirst && db.attempts == 1 {
			continue
		}
		db.commits = append(db.commits, txn.buffered)
		db.apply(txn.buffered)
		return time.Now(), nil
	}
}

func (db *fakeDB) Apply(ctx context.Context, ms []*spanner.Mutation) (time.Time, error) {
	db.applies = append(db.applies, ms)
	db.apply(ms)
	return time.Now(), nil
}

type fakeReader struct {
	db *fakeDB
}

func (r fakeReader) ReadRow(ctx context.Context, table string, key spanner.Key, columns []string) (*spanner.Row, error) {
	return r.db.row(table, key.String(), columns), nil
}

func (r fakeReader) ReadRows(ctx context.Context, table string, keys []spanner.Key, columns []string) sp.RowIterator {
	it := &fakeRowIterator{}
	for _, k := range keys {
		if row := r.db.row(table, k.String(), columns); row != nil {
			it.rows = append(it.rows, row)
		}
	}
	return it
}

func (r fakeReader) ReadTable(ctx context.Context, table string, columns []string) sp.RowIterator {
	it := &fakeRowIterator{}
	for _, k := range r.db.keys(table) {
		it.rows = append(it.rows, r.db.row(table, k, columns))
	}
	return it
}

type fakeSnapshot struct {
	fakeReader
	bound  spanner.TimestampBound
	closed bool
}

func (s *fakeSnapshot) Close() {
	s.closed = true
}

type fakeTxn struct {
	fakeReader
	buffered []*spanner.Mutation
}

func (t *fakeTxn) BufferWrite(ms []*spanner.Mutation) error {
	t.buffered = append(t.buffered, ms...)
	return nil
}

type fakeRowIterator struct {
	rows    []*spanner.Row
	stopped bool
}

func (it *fakeRowIterator) Next() (*spanner.Row, error) {
	if it.stopped {
		return nil, errors.New("iterator is stopped")
	}
	if len(it.rows) == 0 {
		return nil, iterator.Done
	}
	row := it.rows[0]
	it.rows = it.rows[1:]
	return row, nil
}

func (it *fakeRowIterator) Stop() {
	it.stopped = true
}

type fakeMutations struct {
	db *fakeDB
}

func (f fakeMutations) record(m fakeMutation) *spanner.Mutation {
	ret := &spanner.Mutation{}
	f.db.mu.Lock()
	f.db.mutations[ret] = m
	f.db.mu.Unlock()
	return ret
}

func (f fakeMutations) Upsert(table string, src any) (*spanner.Mutation, error) {
	info, err := mapping.Default.Info(src)
	if err != nil {
		return nil, err
	}
	cp := info.New()
	reflect.ValueOf(cp).Elem().Set(reflect.Indirect(reflect.ValueOf(src)))
	return f.record(fakeMutation{op: "upsert", table: table, entity: cp}), nil
}

func (f fakeMutations) Delete(table string, keys ...spanner.Key) *spanner.Mutation {
	return f.record(fakeMutation{op: "delete", table: table, keys: keys})
}
