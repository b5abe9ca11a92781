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

	"github.com/cockroachdb/errors"

	"go.chromium.org/gcpdata"
	"go.chromium.org/gcpdata/common/logging"
)

// ReadOptions select the snapshot of a read-only transaction.
//
// The zero value, like nil, reads the latest committed data.
type ReadOptions struct {
	// Timestamp, if set, pins every read of the transaction to this time.
	Timestamp time.Time
}

func (o *ReadOptions) txnOptions() TransactionOptions {
	opts := TransactionOptions{ReadOnly: true}
	if o != nil {
		opts.ReadTime = o.Timestamp
	}
	return opts
}

// TxnFunc is the body of a transaction.
//
// The template it receives is scoped to the transaction.
type TxnFunc func(ctx context.Context, t *Template) error

// PerformReadWriteTransaction runs f inside a new read-write transaction.
//
// Writes made through the scoped template are buffered and committed if f
// returns nil. Otherwise the transaction is rolled back and f's error is
// returned. Conflicts surface as datastore.ErrConcurrentTransaction; they are
// not retried.
func (t *Template) PerformReadWriteTransaction(ctx context.Context, f TxnFunc) error {
	if err := t.checkNesting(); err != nil {
		return err
	}
	txn, err := t.client.NewTransaction(ctx, TransactionOptions{})
	if err != nil {
		return errors.Wrap(err, "beginning read-write transaction")
	}
	logging.Debugf(ctx, "began read-write transaction")

	scoped := t.scoped(gcpdata.ReadWrite, txn)
	defer scoped.finish()

	done := false
	defer func() {
		if !done {
			rollback(ctx, txn)
		}
	}()

	if err := f(ctx, scoped); err != nil {
		return err
	}

	done = true
	if err := txn.Commit(ctx); err != nil {
		logging.WithError(err).Warningf(ctx, "commit failed")
		return errors.Wrap(err, "committing transaction")
	}
	logging.Debugf(ctx, "committed read-write transaction")
	return nil
}

// PerformReadOnlyTransaction runs f inside a new read-only transaction whose
// snapshot is selected by opts, which may be nil.
//
// All reads made through the scoped template observe one consistent snapshot.
// Mutations fail with gcpdata.ErrTransactionSemantics.
func (t *Template) PerformReadOnlyTransaction(ctx context.Context, f TxnFunc, opts *ReadOptions) error {
	if err := t.checkNesting(); err != nil {
		return err
	}
	txnOpts := opts.txnOptions()
	txn, err := t.client.NewTransaction(ctx, txnOpts)
	if err != nil {
		return errors.Wrap(err, "beginning read-only transaction")
	}
	if txnOpts.ReadTime.IsZero() {
		logging.Debugf(ctx, "began read-only transaction")
	} else {
		logging.Debugf(ctx, "began read-only transaction at %s", txnOpts.ReadTime)
	}

	scoped := t.scoped(gcpdata.ReadOnly, txn)
	defer scoped.finish()
	defer rollback(ctx, txn)

	return f(ctx, scoped)
}

func (t *Template) checkNesting() error {
	if t.mode.Scoped() {
		return gcpdata.TransactionSemanticsErrorf("%s transaction already under execution, sub-transactions are not supported", t.mode)
	}
	return nil
}

func (t *Template) scoped(mode gcpdata.Mode, txn Transaction) *Template {
	return &Template{
		client:    t.client,
		converter: t.converter,
		keys:      t.keys,
		metrics:   t.metrics,
		mode:      mode,
		txn:       txn,
	}
}

func (t *Template) finish() {
	t.finished = true
}

func rollback(ctx context.Context, txn Transaction) {
	if err := txn.Rollback(ctx); err != nil {
		logging.WithError(err).Warningf(ctx, "rollback failed")
		return
	}
	logging.Debugf(ctx, "rolled back transaction")
}
