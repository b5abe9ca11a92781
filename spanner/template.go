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

package spanner

import (
	"context"
	"time"

	"cloud.google.com/go/spanner"
	"github.com/cockroachdb/errors"
	"google.golang.org/api/iterator"

	"go.chromium.org/gcpdata"
	"go.chromium.org/gcpdata/common/logging"
	"go.chromium.org/gcpdata/mapping"
	"go.chromium.org/gcpdata/metrics"
)

const storeName = "spanner"

// Template implements gcpdata.Operations on top of Spanner.
//
// A template created by NewTemplate is standalone: reads are strong
// single-use reads and every mutation is applied on its own. Templates passed
// to transaction closures are scoped to that transaction; they must only be
// used by the goroutine running the closure and only until the closure
// returns.
type Template struct {
	client    DatabaseClient
	processor EntityProcessor
	mutations MutationFactory
	keys      KeyResolver
	metrics   *metrics.Recorder

	mode     gcpdata.Mode
	rw       TransactionContext
	ro       ReadOnlyTransaction
	finished bool
}

var _ gcpdata.Operations = (*Template)(nil)

// Option configures a Template.
type Option func(*Template)

// WithEntityProcessor replaces DefaultProcessor.
func WithEntityProcessor(p EntityProcessor) Option {
	return func(t *Template) { t.processor = p }
}

// WithMutationFactory replaces DefaultMutationFactory.
func WithMutationFactory(f MutationFactory) Option {
	return func(t *Template) { t.mutations = f }
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
func NewTemplate(client DatabaseClient, opts ...Option) *Template {
	t := &Template{
		client:    client,
		processor: DefaultProcessor{},
		mutations: DefaultMutationFactory{},
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Mode is the execution mode of the template.
func (t *Template) Mode() gcpdata.Mode { return t.mode }

// InTransaction is true for templates scoped to a transaction.
func (t *Template) InTransaction() bool { return t.mode.Scoped() }

// KeyFor returns the primary key of the entity.
func (t *Template) KeyFor(entity any) (spanner.Key, error) {
	return t.keys.KeyFor(entity)
}

// KeyFromID returns the primary key of the entity type with the given id.
func (t *Template) KeyFromID(id, entity any) (spanner.Key, error) {
	return t.keys.KeyFromID(id, entity)
}

func (t *Template) observe(op string, start time.Time, err error) {
	t.metrics.Observe(storeName, op, t.mode.String(), start, err)
}

func (t *Template) checkLive() error {
	if t.finished {
		return gcpdata.TransactionSemanticsErrorf("transaction is finished")
	}
	return nil
}

// readContext routes reads through the transaction of a scoped template.
func (t *Template) readContext() (ReadContext, error) {
	if err := t.checkLive(); err != nil {
		return nil, err
	}
	switch t.mode {
	case gcpdata.ReadWrite:
		return t.rw, nil
	case gcpdata.ReadOnly:
		return t.ro, nil
	default:
		return t.client.Single(spanner.StrongRead()), nil
	}
}

// ReadContextAt returns a single-use read context reading as of ts.
//
// Only standalone templates support it: a read-write transaction always reads
// current data and a read-only transaction has its timestamp fixed when it
// starts.
func (t *Template) ReadContextAt(ts time.Time) (ReadContext, error) {
	if err := t.checkLive(); err != nil {
		return nil, err
	}
	switch t.mode {
	case gcpdata.ReadWrite:
		return nil, gcpdata.TransactionSemanticsErrorf("read-write transactions can't read at a timestamp")
	case gcpdata.ReadOnly:
		return nil, gcpdata.TransactionSemanticsErrorf("read-only transactions read at the timestamp given when they start")
	}
	return t.client.Single(spanner.ReadTimestamp(ts)), nil
}

// checkWritable fails for templates that can't apply mutations.
func (t *Template) checkWritable() error {
	if err := t.checkLive(); err != nil {
		return err
	}
	if t.mode == gcpdata.ReadOnly {
		return gcpdata.TransactionSemanticsErrorf("read-only transactions do not support mutations")
	}
	return nil
}

// apply buffers mutations into the transaction of a read-write template or
// applies them right away.
func (t *Template) apply(ctx context.Context, ms ...*spanner.Mutation) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	if t.mode == gcpdata.ReadWrite {
		return errors.Wrap(t.rw.BufferWrite(ms), "buffering mutations")
	}
	_, err := t.client.Apply(ctx, ms)
	return errors.Wrap(err, "applying mutations")
}

func (t *Template) info(entity any) (*mapping.EntityInfo, error) {
	return t.keys.mapping().Info(entity)
}

// FindByID implements gcpdata.Operations.
func (t *Template) FindByID(ctx context.Context, id, dst any) (found bool, err error) {
	defer func(start time.Time) { t.observe("find_by_id", start, err) }(time.Now())

	rc, err := t.readContext()
	if err != nil {
		return false, err
	}
	return t.findByID(ctx, rc, id, dst)
}

// FindByIDAt is FindByID reading as of ts.
//
// Only standalone templates support it, see ReadContextAt.
func (t *Template) FindByIDAt(ctx context.Context, ts time.Time, id, dst any) (found bool, err error) {
	defer func(start time.Time) { t.observe("find_by_id_at", start, err) }(time.Now())

	rc, err := t.ReadContextAt(ts)
	if err != nil {
		return false, err
	}
	return t.findByID(ctx, rc, id, dst)
}

func (t *Template) findByID(ctx context.Context, rc ReadContext, id, dst any) (bool, error) {
	info, err := t.info(dst)
	if err != nil {
		return false, err
	}
	key, err := t.keys.KeyFromID(id, dst)
	if err != nil {
		return false, err
	}
	row, err := rc.ReadRow(ctx, info.Kind, key, Columns(info))
	if err != nil {
		return false, errors.Wrapf(err, "reading %s%s", info.Kind, key)
	}
	if row == nil {
		return false, nil
	}
	if err := t.processor.Read(dst, row); err != nil {
		return false, err
	}
	return true, nil
}

// FindAllByID implements gcpdata.Operations.
func (t *Template) FindAllByID(ctx context.Context, ids []any, dst any) (err error) {
	defer func(start time.Time) { t.observe("find_all_by_id", start, err) }(time.Now())

	rc, err := t.readContext()
	if err != nil {
		return err
	}
	sink, err := t.keys.mapping().NewSink(dst)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	keys := make([]spanner.Key, len(ids))
	for i, id := range ids {
		if keys[i], err = t.keys.KeyFromID(id, sink.Info.Type); err != nil {
			return err
		}
	}
	it := rc.ReadRows(ctx, sink.Info.Kind, keys, Columns(sink.Info))
	return t.drain(it, sink)
}

// FindAll implements gcpdata.Operations.
func (t *Template) FindAll(ctx context.Context, dst any) (err error) {
	defer func(start time.Time) { t.observe("find_all", start, err) }(time.Now())

	sink, err := t.keys.mapping().NewSink(dst)
	if err != nil {
		return err
	}
	return t.findAll(ctx, sink)
}

func (t *Template) findAll(ctx context.Context, sink *mapping.Sink) error {
	rc, err := t.readContext()
	if err != nil {
		return err
	}
	logging.Fields{"table": sink.Info.Kind, "mode": t.mode}.Debugf(ctx, "reading table")
	return t.drain(rc.ReadTable(ctx, sink.Info.Kind, Columns(sink.Info)), sink)
}

// drain reads all rows of it into sink and stops it.
func (t *Template) drain(it RowIterator, sink *mapping.Sink) error {
	defer it.Stop()
	for {
		row, err := it.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "reading %s", sink.Info.Kind)
		}
		ent := sink.New()
		if err := t.processor.Read(ent, row); err != nil {
			return err
		}
		sink.Append(ent)
	}
}

// Save implements gcpdata.Operations.
func (t *Template) Save(ctx context.Context, src any) (err error) {
	defer func(start time.Time) { t.observe("save", start, err) }(time.Now())

	if err := t.checkWritable(); err != nil {
		return err
	}
	info, err := t.info(src)
	if err != nil {
		return err
	}
	// Fails on unset ids; the mutation itself reads the key columns from src.
	if _, err := t.keys.KeyFor(src); err != nil {
		return err
	}
	m, err := t.mutations.Upsert(info.Kind, src)
	if err != nil {
		return err
	}
	return t.apply(ctx, m)
}

// DeleteByID implements gcpdata.Operations.
func (t *Template) DeleteByID(ctx context.Context, id, entity any) (err error) {
	defer func(start time.Time) { t.observe("delete_by_id", start, err) }(time.Now())

	if err := t.checkWritable(); err != nil {
		return err
	}
	info, err := t.info(entity)
	if err != nil {
		return err
	}
	key, err := t.keys.KeyFromID(id, entity)
	if err != nil {
		return err
	}
	return t.apply(ctx, t.mutations.Delete(info.Kind, key))
}

// Delete implements gcpdata.Operations.
func (t *Template) Delete(ctx context.Context, src any) (err error) {
	defer func(start time.Time) { t.observe("delete", start, err) }(time.Now())

	if err := t.checkWritable(); err != nil {
		return err
	}
	info, err := t.info(src)
	if err != nil {
		return err
	}
	key, err := t.keys.KeyFor(src)
	if err != nil {
		return err
	}
	return t.apply(ctx, t.mutations.Delete(info.Kind, key))
}

// DeleteAll implements gcpdata.Operations.
func (t *Template) DeleteAll(ctx context.Context, entity any) (n int, err error) {
	defer func(start time.Time) { t.observe("delete_all", start, err) }(time.Now())

	if err := t.checkWritable(); err != nil {
		return 0, err
	}
	sink, err := t.keys.mapping().NewSinkFor(entity)
	if err != nil {
		return 0, err
	}
	if err := t.findAll(ctx, sink); err != nil {
		return 0, err
	}

	keys := make([]spanner.Key, 0, sink.Len())
	err = sink.Each(func(ent any) error {
		key, err := t.keys.KeyFor(ent)
		keys = append(keys, key)
		return err
	})
	if err != nil || len(keys) == 0 {
		return 0, err
	}
	if err := t.apply(ctx, t.mutations.Delete(sink.Info.Kind, keys...)); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Count implements gcpdata.Operations.
//
// It reads the whole table.
func (t *Template) Count(ctx context.Context, entity any) (n int64, err error) {
	defer func(start time.Time) { t.observe("count", start, err) }(time.Now())

	sink, err := t.keys.mapping().NewSinkFor(entity)
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
// It reads the whole row.
func (t *Template) ExistsByID(ctx context.Context, id, entity any) (found bool, err error) {
	defer func(start time.Time) { t.observe("exists_by_id", start, err) }(time.Now())

	info, err := t.info(entity)
	if err != nil {
		return false, err
	}
	rc, err := t.readContext()
	if err != nil {
		return false, err
	}
	return t.findByID(ctx, rc, id, info.New())
}
