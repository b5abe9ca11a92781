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
	"sync"

	"cloud.google.com/go/datastore"
	"github.com/cockroachdb/errors"
	"google.golang.org/api/iterator"

	ds "go.chromium.org/gcpdata/datastore"
)

// fakeStore is an in-memory ds.Client recording every call.
type fakeStore struct {
	mu sync.Mutex

	ents  map[string]*datastore.Entity
	order []string

	gets      []*datastore.Key
	getMultis [][]*datastore.Key
	queries   []ds.Query
	puts      []*datastore.Entity
	deletes   [][]*datastore.Key
	txns      []*fakeTxn

	// commitErr is returned by the Commit of every transaction.
	commitErr error
}

var _ ds.Client = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{ents: map[string]*datastore.Entity{}}
}

func (s *fakeStore) get(key *datastore.Key) *datastore.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ents[key.Encode()]
}

func (s *fakeStore) getMulti(keys []*datastore.Key) []*datastore.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*datastore.Entity
	for _, k := range keys {
		if e := s.ents[k.Encode()]; e != nil {
			out = append(out, e)
		}
	}
	return out
}

func (s *fakeStore) query(q ds.Query) ds.EntityIterator {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := &fakeIterator{}
	for _, id := range s.order {
		e := s.ents[id]
		if e.Key.Kind == q.Kind && e.Key.Namespace == q.Namespace {
			it.ents = append(it.ents, e)
		}
	}
	return it
}

func (s *fakeStore) put(e *datastore.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := e.Key.Encode()
	if _, ok := s.ents[id]; !ok {
		s.order = append(s.order, id)
	}
	s.ents[id] = e
}

func (s *fakeStore) delete(keys []*datastore.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		id := k.Encode()
		if _, ok := s.ents[id]; !ok {
			continue
		}
		delete(s.ents, id)
		for i, o := range s.order {
			if o == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

func (s *fakeStore) Get(ctx context.Context, key *datastore.Key) (*datastore.Entity, error) {
	s.gets = append(s.gets, key)
	return s.get(key), nil
}

func (s *fakeStore) GetMulti(ctx context.Context, keys []*datastore.Key) ([]*datastore.Entity, error) {
	s.getMultis = append(s.getMultis, keys)
	return s.getMulti(keys), nil
}

func (s *fakeStore) Run(ctx context.Context, q ds.Query) ds.EntityIterator {
	s.queries = append(s.queries, q)
	return s.query(q)
}

func (s *fakeStore) Put(ctx context.Context, e *datastore.Entity) error {
	s.puts = append(s.puts, e)
	s.put(e)
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, keys ...*datastore.Key) error {
	s.deletes = append(s.deletes, keys)
	s.delete(keys)
	return nil
}

func (s *fakeStore) NewTransaction(ctx context.Context, opts ds.TransactionOptions) (ds.Transaction, error) {
	txn := &fakeTxn{store: s, readOnly: opts.ReadOnly, opts: opts}
	s.txns = append(s.txns, txn)
	return txn, nil
}

// fakeTxn buffers writes until Commit. Reads see committed data only.
type fakeTxn struct {
	store    *fakeStore
	readOnly bool
	opts     ds.TransactionOptions

	gets      []*datastore.Key
	getMultis [][]*datastore.Key
	queries   []ds.Query

	puts    []*datastore.Entity
	deletes [][]*datastore.Key

	committed  bool
	rolledBack bool
}

func (t *fakeTxn) Get(ctx context.Context, key *datastore.Key) (*datastore.Entity, error) {
	t.gets = append(t.gets, key)
	return t.store.get(key), nil
}

func (t *fakeTxn) GetMulti(ctx context.Context, keys []*datastore.Key) ([]*datastore.Entity, error) {
	t.getMultis = append(t.getMultis, keys)
	return t.store.getMulti(keys), nil
}

func (t *fakeTxn) Run(ctx context.Context, q ds.Query) ds.EntityIterator {
	t.queries = append(t.queries, q)
	return t.store.query(q)
}

func (t *fakeTxn) Put(ctx context.Context, e *datastore.Entity) error {
	if t.readOnly {
		return errors.New("put in a read-only transaction")
	}
	t.puts = append(t.puts, e)
	return nil
}

func (t *fakeTxn) Delete(ctx context.Context, keys ...*datastore.Key) error {
	if t.readOnly {
		return errors.New("delete in a read-only transaction")
	}
	t.deletes = append(t.deletes, keys)
	return nil
}

func (t *fakeTxn) Commit(ctx context.Context) error {
	if t.committed || t.rolledBack {
		return errors.New("transaction is done")
	}
	if err := t.store.commitErr; err != nil {
		return err
	}
	t.committed = true
	for _, e := range t.puts {
		t.store.put(e)
	}
	for _, keys := range t.deletes {
		t.store.delete(keys)
	}
	return nil
}

func (t *fakeTxn) Rollback(ctx context.Context) error {
	if t.committed || t.rolledBack {
		return errors.New("transaction is done")
	}
	t.rolledBack = true
	return nil
}

type fakeIterator struct {
	ents []*datastore.Entity
}

func (i *fakeIterator) Next() (*datastore.Entity, error) {
	if len(i.ents) == 0 {
		return nil, iterator.Done
	}
	e := i.ents[0]
	i.ents = i.ents[1:]
	return e, nil
}
