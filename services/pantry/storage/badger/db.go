// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

// =============================================================================
// BadgerDB Wrapper
// =============================================================================
//
// Thin lifecycle and transaction wrapper around dgraph-io/badger. Session
// archives are service infrastructure, not user-searchable data, so an
// embedded KV store is the right shape: no network hop, no availability
// dependency, native TTL enforced by Badger's GC.

import (
	"context"
	"fmt"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// Config controls how the BadgerDB instance is opened.
type Config struct {
	// Path is the on-disk directory. Ignored when InMemory is true.
	Path string

	// InMemory runs Badger without any files. Used by tests.
	InMemory bool

	// GCInterval is how often value-log garbage collection runs.
	// Zero disables the GC loop (in-memory databases never need it).
	GCInterval time.Duration
}

// DefaultConfig returns the production configuration. The caller sets Path.
func DefaultConfig() Config {
	return Config{GCInterval: 10 * time.Minute}
}

// InMemoryConfig returns a configuration for an ephemeral in-memory database.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// DB wraps a BadgerDB instance with context-aware transaction helpers.
//
// Thread Safety: Safe for concurrent use. Badger transactions are
// per-goroutine.
type DB struct {
	inner  *dgbadger.DB
	gcStop chan struct{}
}

// OpenDB opens a BadgerDB instance per cfg. The caller owns the lifecycle
// and must call Close.
func OpenDB(cfg Config) (*DB, error) {
	opts := dgbadger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithLogger(nil)

	inner, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open %q: %w", cfg.Path, err)
	}

	db := &DB{inner: inner, gcStop: make(chan struct{})}
	if !cfg.InMemory && cfg.GCInterval > 0 {
		go db.runGC(cfg.GCInterval)
	}
	return db, nil
}

// Close stops the GC loop and closes the underlying database.
func (d *DB) Close() error {
	close(d.gcStop)
	return d.inner.Close()
}

// WithTxn runs fn inside a read-write transaction. The transaction commits
// when fn returns nil and discards otherwise. Returns ctx.Err() without
// starting the transaction when ctx is already done.
func (d *DB) WithTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.inner.Update(fn)
}

// WithReadTxn runs fn inside a read-only transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.inner.View(fn)
}

// runGC drives Badger's value-log GC until Close. A single rewrite per tick
// is enough at archive write rates; ErrNoRewrite just means nothing to do.
func (d *DB) runGC(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-d.gcStop:
			return
		case <-ticker.C:
			_ = d.inner.RunValueLogGC(0.5)
		}
	}
}
