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

	"go.chromium.org/gcpdata"
	"go.chromium.org/gcpdata/common/logging"
)

// TxnFunc is the body of a transaction.
//
// The template it receives is scoped to the transaction.
type TxnFunc func(ctx context.Context, t *Template) error

// ReadOptions select the snapshot of a read-only transaction.
//
// The zero value selects a strong read.
type ReadOptions struct {
	// Timestamp, if set, pins the snapshot to this commit timestamp.
	Timestamp time.Time
	// Staleness, if set and Timestamp is not, reads data this old.
	Staleness time.Duration
}

func (o *ReadOptions) bound() spanner.TimestampBound {
	switch {
	case o == nil:
		return spanner.StrongRead()
	case !o.Timestamp.IsZero():
		return spanner.ReadTimestamp(o.Timestamp)
	case o.Staleness > 0:
		return spanner.ExactStaleness(o.Staleness)
	default:
		return spanner.StrongRead()
	}
}

// PerformReadWriteTransaction runs f inside a read-write transaction.
//
// Mutations made through the scoped template are buffered and committed if
// f returns nil. Spanner may run f more than once if the transaction aborts;
// every attempt gets a fresh scoped template.
func (t *Template) PerformReadWriteTransaction(ctx context.Context, f TxnFunc) error {
	if err := t.checkNesting(); err != nil {
		return err
	}
	attempt := 0
	ts, err := t.client.ReadWriteTransaction(ctx, func(ctx context.Context, txn TransactionContext) error {
		attempt++
		logging.Debugf(ctx, "read-write transaction attempt %d", attempt)

		scoped := t.scoped(gcpdata.ReadWrite)
		scoped.rw = txn
		defer scoped.finish()
		return f(ctx, scoped)
	})
	if err != nil {
		logging.WithError(err).Warningf(ctx, "read-write transaction failed")
		return err
	}
	logging.Debugf(ctx, "committed read-write transaction at %s", ts)
	return nil
}

// PerformReadOnlyTransaction runs f inside a read-only snapshot selected by
// opts, which may be nil.
//
// Mutations made through the scoped template fail with
// gcpdata.ErrTransactionSemantics.
func (t *Template) PerformReadOnlyTransaction(ctx context.Context, f TxnFunc, opts *ReadOptions) error {
	if err := t.checkNesting(); err != nil {
		return err
	}
	bound := opts.bound()
	txn := t.client.ReadOnlyTransaction(bound)
	defer txn.Close()
	logging.Debugf(ctx, "began read-only transaction %s", bound)

	scoped := t.scoped(gcpdata.ReadOnly)
	scoped.ro = txn
	defer scoped.finish()
	return f(ctx, scoped)
}

func (t *Template) checkNesting() error {
	if t.mode.Scoped() {
		return gcpdata.TransactionSemanticsErrorf("%s transaction already under execution, sub-transactions are not supported", t.mode)
	}
	return nil
}

func (t *Template) scoped(mode gcpdata.Mode) *Template {
	return &Template{
		client:    t.client,
		processor: t.processor,
		mutations: t.mutations,
		keys:      t.keys,
		metrics:   t.metrics,
		mode:      mode,
	}
}

func (t *Template) finish() {
	t.finished = true
}
