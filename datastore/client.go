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

// Package datastore maps Go structs onto Cloud Datastore entities.
//
// Template implements gcpdata.Operations either directly against a Client or
// inside a transaction opened with PerformReadWriteTransaction or
// PerformReadOnlyTransaction:
//
//	tmpl := datastore.NewTemplate(datastore.NewClient(cloudClient))
//	err := tmpl.PerformReadWriteTransaction(ctx, func(ctx context.Context, tx *datastore.Template) error {
//		return tx.Save(ctx, &Book{ISBN: "123"})
//	})
package datastore

import (
	"context"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/cockroachdb/errors"
)

// Query selects all entities of a kind.
type Query struct {
	Kind      string
	Namespace string
}

// EntityIterator iterates over query results.
//
// Next returns iterator.Done after the last entity.
type EntityIterator interface {
	Next() (*datastore.Entity, error)
}

// Reader reads entities.
type Reader interface {
	// Get returns the entity or (nil, nil) if it doesn't exist.
	Get(ctx context.Context, key *datastore.Key) (*datastore.Entity, error)
	// GetMulti fetches entities in a single call and returns those that exist,
	// in the order of keys.
	GetMulti(ctx context.Context, keys []*datastore.Key) ([]*datastore.Entity, error)
	// Run executes a kind query.
	Run(ctx context.Context, q Query) EntityIterator
}

// Writer writes entities.
type Writer interface {
	// Put upserts the entity under its key.
	Put(ctx context.Context, e *datastore.Entity) error
	// Delete removes all keys in a single call. Missing keys are ignored.
	Delete(ctx context.Context, keys ...*datastore.Key) error
}

// Transaction is an open Datastore transaction.
//
// Writes are buffered until Commit.
type Transaction interface {
	Reader
	Writer

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionOptions configure a new transaction.
type TransactionOptions struct {
	// ReadOnly rejects writes in the transaction.
	ReadOnly bool
	// ReadTime, if set, pins the reads of a read-only transaction to this
	// time.
	ReadTime time.Time
}

// Client is the subset of the Datastore client used by Template.
type Client interface {
	Reader
	Writer

	NewTransaction(ctx context.Context, opts TransactionOptions) (Transaction, error)
}

// NewClient adapts the Cloud Datastore client.
func NewClient(c *datastore.Client) Client {
	return &cloudClient{c}
}

type cloudClient struct {
	c *datastore.Client
}

func (c *cloudClient) Get(ctx context.Context, key *datastore.Key) (*datastore.Entity, error) {
	var pl datastore.PropertyList
	switch err := c.c.Get(ctx, key, &pl); {
	case errors.Is(err, datastore.ErrNoSuchEntity):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return &datastore.Entity{Key: key, Properties: pl}, nil
}

func (c *cloudClient) GetMulti(ctx context.Context, keys []*datastore.Key) ([]*datastore.Entity, error) {
	pls := make([]datastore.PropertyList, len(keys))
	return present(keys, pls, c.c.GetMulti(ctx, keys, pls))
}

func (c *cloudClient) Run(ctx context.Context, q Query) EntityIterator {
	return &cloudIterator{c.c.Run(ctx, datastore.NewQuery(q.Kind).Namespace(q.Namespace))}
}

func (c *cloudClient) Put(ctx context.Context, e *datastore.Entity) error {
	pl := datastore.PropertyList(e.Properties)
	_, err := c.c.Put(ctx, e.Key, &pl)
	return err
}

func (c *cloudClient) Delete(ctx context.Context, keys ...*datastore.Key) error {
	return c.c.DeleteMulti(ctx, keys)
}

func (c *cloudClient) NewTransaction(ctx context.Context, o TransactionOptions) (Transaction, error) {
	var opts []datastore.TransactionOption
	if o.ReadOnly {
		opts = append(opts, datastore.ReadOnly)
	}
	if !o.ReadTime.IsZero() {
		opts = append(opts, datastore.WithReadTime(o.ReadTime))
	}
	tx, err := c.c.NewTransaction(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &cloudTransaction{c.c, tx}, nil
}

type cloudTransaction struct {
	c  *datastore.Client
	tx *datastore.Transaction
}

func (t *cloudTransaction) Get(ctx context.Context, key *datastore.Key) (*datastore.Entity, error) {
	var pl datastore.PropertyList
	switch err := t.tx.Get(key, &pl); {
	case errors.Is(err, datastore.ErrNoSuchEntity):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return &datastore.Entity{Key: key, Properties: pl}, nil
}

func (t *cloudTransaction) GetMulti(ctx context.Context, keys []*datastore.Key) ([]*datastore.Entity, error) {
	pls := make([]datastore.PropertyList, len(keys))
	return present(keys, pls, t.tx.GetMulti(keys, pls))
}

func (t *cloudTransaction) Run(ctx context.Context, q Query) EntityIterator {
	dq := datastore.NewQuery(q.Kind).Namespace(q.Namespace).Transaction(t.tx)
	return &cloudIterator{t.c.Run(ctx, dq)}
}

func (t *cloudTransaction) Put(ctx context.Context, e *datastore.Entity) error {
	pl := datastore.PropertyList(e.Properties)
	_, err := t.tx.Put(e.Key, &pl)
	return err
}

func (t *cloudTransaction) Delete(ctx context.Context, keys ...*datastore.Key) error {
	return t.tx.DeleteMulti(keys)
}

func (t *cloudTransaction) Commit(ctx context.Context) error {
	_, err := t.tx.Commit()
	return err
}

func (t *cloudTransaction) Rollback(ctx context.Context) error {
	return t.tx.Rollback()
}

type cloudIterator struct {
	it *datastore.Iterator
}

func (i *cloudIterator) Next() (*datastore.Entity, error) {
	var pl datastore.PropertyList
	key, err := i.it.Next(&pl)
	if err != nil {
		return nil, err
	}
	return &datastore.Entity{Key: key, Properties: pl}, nil
}

// present drops entities reported as missing by a GetMulti call.
func present(keys []*datastore.Key, pls []datastore.PropertyList, err error) ([]*datastore.Entity, error) {
	var merr datastore.MultiError
	switch {
	case err == nil:
	case errors.As(err, &merr):
		for _, e := range merr {
			if e != nil && !errors.Is(e, datastore.ErrNoSuchEntity) {
				return nil, e
			}
		}
	default:
		return nil, err
	}

	out := make([]*datastore.Entity, 0, len(keys))
	for i, key := range keys {
		if merr != nil && merr[i] != nil {
			continue
		}
		out = append(out, &datastore.Entity{Key: key, Properties: pls[i]})
	}
	return out, nil
}
