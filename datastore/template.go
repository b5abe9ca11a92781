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
	"context"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/cockroachdb/errors"
	"google.golang.org/api/iterator"

	"go.chromium.org/gcpdata"
	"go.chromium.org/gcpdata/common/logging"
	"go.chromium.org/gcpdata/mapping"
	"go.chromium.org/gcpdata/metrics"
)

const storeName = "datastore"

// Template implements gcpdata.Operations on top of Datastore.
//
// A template created by NewTemplate is standalone: every operation is its own
// unit of work and may be used concurrently. Templates passed to transaction
// closures are scoped to that transaction; they must only be used by the
// goroutine running the closure and only until the closure returns.
type Template struct {
	client    Client
	converter EntityConverter
	keys      KeyResolver
	metrics   *metrics.Recorder

	mode     gcpdata.Mode
	txn      Transaction
	finished bool
}

var _ gcpdata.Operations = (*Template)(nil)

// Option configures a Template.
type Option func(*Template)

// WithConverter replaces DefaultConverter.
func WithConverter(c EntityConverter) Option {
	return func(t *Template) { t.converter = c }
}

// WithNamespace makes the template build keys and queries in the namespace.
func WithNamespace(ns string) Option {
	return func(t *Template) { t.keys.Namespace = ns }
}

// WithMapping replaces mapping.Default.
func WithMapping(m *mapping.Context) Option {
	return func(t *Template) { t.keys.Mapping = m }
}

// WithMetrics reports every operation to the recorder.
func WithMetrics(r *metrics.Recorder) Option {
	return func(t *Template) { t.metrics = r }
}

// NewTemplate returns a standalone template.
func NewTemplate(client Client, opts ...Option) *Template {
	t := &Template{client: client}
	for _, o := range opts {
		o(t)
	}
	if t.converter == nil {
		t.converter = DefaultConverter{Mapping: t.keys.Mapping}
	}
	return t
}

// Mode is the execution mode of the template.
func (t *Template) Mode() gcpdata.Mode { return t.mode }

// InTransaction is true for templates scoped to a transaction.
func (t *Template) InTransaction() bool { return t.mode.Scoped() }

// KeyFor returns the key of the entity.
func (t *Template) KeyFor(entity any) (*datastore.Key, error) {
	return t.keys.KeyFor(entity)
}

// KeyFromID returns the key of the entity type with the given id.
func (t *Template) KeyFromID(id, entity any) (*datastore.Key, error) {
	return t.keys.KeyFromID(id, entity)
}

func (t *Template) mapping() *mapping.Context {
	return t.keys.mapping()
}

func (t *Template) observe(op string, start time.Time, err error) {
	t.metrics.Observe(storeName, op, t.mode.String(), start, err)
}

// reader routes reads through the transaction of a scoped template.
func (t *Template) reader() (Reader, error) {
	if t.finished {
		return nil, gcpdata.TransactionSemanticsErrorf("transaction is finished")
	}
	if t.mode.Scoped() {
		return t.txn, nil
	}
	return t.client, nil
}

// writer routes writes into the transaction buffer of a read-write template.
func (t *Template) writer() (Writer, error) {
	if t.finished {
		return nil, gcpdata.TransactionSemanticsErrorf("transaction is finished")
	}
	switch t.mode {
	case gcpdata.ReadOnly:
		return nil, gcpdata.TransactionSemanticsErrorf("read-only transactions do not support mutations")
	case gcpdata.ReadWrite:
		return t.txn, nil
	default:
		return t.client, nil
	}
}

// FindByID implements gcpdata.Operations.
func (t *Template) FindByID(ctx context.Context, id, dst any) (found bool, err error) {
	defer func(start time.Time) { t.observe("find_by_id", start, err) }(time.Now())
	return t.findByID(ctx, id, dst)
}

func (t *Template) findByID(ctx context.Context, id, dst any) (bool, error) {
	r, err := t.reader()
	if err != nil {
		return false, err
	}
	key, err := t.keys.KeyFromID(id, dst)
	if err != nil {
		return false, err
	}
	e, err := r.Get(ctx, key)
	if err != nil {
		return false, errors.Wrapf(err, "getting %s", key)
	}
	if e == nil {
		return false, nil
	}
	if err := t.converter.Read(dst, e); err != nil {
		return false, err
	}
	return true, nil
}

// FindAllByID implements gcpdata.Operations.
func (t *Template) FindAllByID(ctx context.Context, ids []any, dst any) (err error) {
	defer func(start time.Time) { t.observe("find_all_by_id", start, err) }(time.Now())

	r, err := t.reader()
	if err != nil {
		return err
	}
	sink, err := t.mapping().NewSink(dst)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	keys := make([]*datastore.Key, len(ids))
	for i, id := range ids {
		if keys[i], err = t.keys.KeyFromID(id, sink.Info.Type); err != nil {
			return err
		}
	}
	ents, err := r.GetMulti(ctx, keys)
	if err != nil {
		return errors.Wrapf(err, "getting %d %s entities", len(keys), sink.Info.Kind)
	}
	for _, e := range ents {
		ent := sink.New()
		if err := t.converter.Read(ent, e); err != nil {
			return err
		}
		sink.Append(ent)
	}
	return nil
}

// FindAll implements gcpdata.Operations.
func (t *Template) FindAll(ctx context.Context, dst any) (err error) {
	defer func(start time.Time) { t.observe("find_all", start, err) }(time.Now())

	sink, err := t.mapping().NewSink(dst)
	if err != nil {
		return err
	}
	return t.findAll(ctx, sink)
}

func (t *Template) findAll(ctx context.Context, sink *mapping.Sink) error {
	r, err := t.reader()
	if err != nil {
		return err
	}
	q := Query{Kind: sink.Info.Kind, Namespace: t.keys.Namespace}
	logging.Fields{"kind": q.Kind, "mode": t.mode}.Debugf(ctx, "running kind query")

	it := r.Run(ctx, q)
	for {
		e, err := it.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "querying %s", q.Kind)
		}
		ent := sink.New()
		if err := t.converter.Read(ent, e); err != nil {
			return err
		}
		sink.Append(ent)
	}
}

// Save implements gcpdata.Operations.
func (t *Template) Save(ctx context.Context, src any) (err error) {
	defer func(start time.Time) { t.observe("save", start, err) }(time.Now())

	w, err := t.writer()
	if err != nil {
		return err
	}
	key, err := t.keys.KeyFor(src)
	if err != nil {
		return err
	}
	e := &datastore.Entity{Key: key}
	if err := t.converter.Write(src, e); err != nil {
		return err
	}
	if err := w.Put(ctx, e); err != nil {
		return errors.Wrapf(err, "putting %s", key)
	}
	return nil
}

// DeleteByID implements gcpdata.Operations.
func (t *Template) DeleteByID(ctx context.Context, id, entity any) (err error) {
	defer func(start time.Time) { t.observe("delete_by_id", start, err) }(time.Now())

	w, err := t.writer()
	if err != nil {
		return err
	}
	key, err := t.keys.KeyFromID(id, entity)
	if err != nil {
		return err
	}
	return t.delete(ctx, w, key)
}

// Delete implements gcpdata.Operations.
func (t *Template) Delete(ctx context.Context, src any) (err error) {
	defer func(start time.Time) { t.observe("delete", start, err) }(time.Now())

	w, err := t.writer()
	if err != nil {
		return err
	}
	key, err := t.keys.KeyFor(src)
	if err != nil {
		return err
	}
	return t.delete(ctx, w, key)
}

func (t *Template) delete(ctx context.Context, w Writer, keys ...*datastore.Key) error {
	if err := w.Delete(ctx, keys...); err != nil {
		return errors.Wrapf(err, "deleting %d keys", len(keys))
	}
	return nil
}

// DeleteAll implements gcpdata.Operations.
func (t *Template) DeleteAll(ctx context.Context, entity any) (n int, err error) {
	defer func(start time.Time) { t.observe("delete_all", start, err) }(time.Now())

	w, err := t.writer()
	if err != nil {
		return 0, err
	}
	sink, err := t.mapping().NewSinkFor(entity)
	if err != nil {
		return 0, err
	}
	if err := t.findAll(ctx, sink); err != nil {
		return 0, err
	}

	keys := make([]*datastore.Key, 0, sink.Len())
	err = sink.Each(func(ent any) error {
		key, err := t.keys.KeyFor(ent)
		keys = append(keys, key)
		return err
	})
	if err != nil || len(keys) == 0 {
		return 0, err
	}
	if err := t.delete(ctx, w, keys...); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Count implements gcpdata.Operations.
//
// It loads every entity of the type.
func (t *Template) Count(ctx context.Context, entity any) (n int64, err error) {
	defer func(start time.Time) { t.observe("count", start, err) }(time.Now())

	sink, err := t.mapping().NewSinkFor(entity)
	if err != nil {
		return 0, err
	}
	if err := t.findAll(ctx, sink); err != nil {
		return 0, err
	}
	return int64(sink.Len()), nil
}

// ExistsByID implements gcpdata.Operations.
//
// It loads the whole entity.
func (t *Template) ExistsByID(ctx context.Context, id, entity any) (found bool, err error) {
	defer func(start time.Time) { t.observe("exists_by_id", start, err) }(time.Now())

	info, err := t.mapping().Info(entity)
	if err != nil {
		return false, err
	}
	return t.findByID(ctx, id, info.New())
}
