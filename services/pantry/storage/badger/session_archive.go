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
// SessionArchive — Snapshot Persistence
// =============================================================================
//
// Evicted-but-unconfirmed sessions are archived so a returning user finds
// their cart where they left it, even across service restarts.
//
// Storage layout:
//
//	session/v1/{sessionID}  →  gob-encoded session.Snapshot
//	                            TTL: 24 hours
//
// TTL is BadgerDB-native: expired keys return ErrKeyNotFound, which Load
// reports as a miss. No application-level expiry bookkeeping is needed.

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/PantryFOSS/services/pantry/session"
)

// sessionArchiveDefaultTTL is how long an archived snapshot stays
// restorable. A day covers "I'll finish the order tonight" without keeping
// abandoned carts forever.
const sessionArchiveDefaultTTL = 24 * time.Hour

// sessionKeyPrefix versions the storage layout so a future snapshot schema
// change cannot collide with old entries.
const sessionKeyPrefix = "session/v1/"

// errArchiveMiss distinguishes "key not found" from a real storage error.
var errArchiveMiss = errors.New("archive miss")

// SessionArchive implements session.Archive backed by a BadgerDB instance.
// The DB is opened by the caller at startup and must outlive the archive;
// the archive does not own the DB lifecycle.
//
// Thread Safety: Safe for concurrent use.
type SessionArchive struct {
	db     *DB
	ttl    time.Duration
	logger *slog.Logger
}

// NewSessionArchive creates a SessionArchive.
//
// Inputs:
//
//	db     - Opened BadgerDB wrapper. Must not be nil.
//	ttl    - Snapshot lifetime. Zero uses the default (24 hours).
//	logger - Logger instance. May be nil.
func NewSessionArchive(db *DB, ttl time.Duration, logger *slog.Logger) *SessionArchive {
	if db == nil {
		panic("NewSessionArchive: db must not be nil")
	}
	if ttl <= 0 {
		ttl = sessionArchiveDefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionArchive{db: db, ttl: ttl, logger: logger}
}

// Save persists the snapshot under session/v1/{id}, replacing any earlier
// snapshot for the same session.
func (a *SessionArchive) Save(ctx context.Context, snap *session.Snapshot) error {
	if snap == nil || snap.ID == "" {
		return fmt.Errorf("session archive: snapshot must have an ID")
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return fmt.Errorf("session archive encode: %w", err)
	}

	err := a.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		entry := dgbadger.NewEntry(sessionKey(snap.ID), buf.Bytes()).WithTTL(a.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("session archive save: %w", err)
	}

	a.logger.Debug("session archive: saved",
		slog.String("session_id", snap.ID),
		slog.Int("cart_lines", len(snap.CartLines)),
		slog.Duration("ttl", a.ttl),
	)
	return nil
}

// Load retrieves the snapshot for id. Returns (nil, nil) when the key is
// absent or its TTL has expired.
func (a *SessionArchive) Load(ctx context.Context, id string) (*session.Snapshot, error) {
	var raw []byte
	err := a.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(sessionKey(id))
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return errArchiveMiss
		}
		if err != nil {
			return fmt.Errorf("get session key: %w", err)
		}
		raw, err = item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("copy value: %w", err)
		}
		return nil
	})

	if errors.Is(err, errArchiveMiss) {
		a.logger.Debug("session archive: miss", slog.String("session_id", id))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session archive load: %w", err)
	}

	var snap session.Snapshot
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("session archive decode: %w", err)
	}

	a.logger.Debug("session archive: hit",
		slog.String("session_id", id),
		slog.Int("cart_lines", len(snap.CartLines)),
	)
	return &snap, nil
}

// Delete removes the snapshot for id. Absent keys are a no-op.
func (a *SessionArchive) Delete(ctx context.Context, id string) error {
	err := a.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return txn.Delete(sessionKey(id))
	})
	if err != nil {
		return fmt.Errorf("session archive delete: %w", err)
	}
	return nil
}

// sessionKey builds the BadgerDB key for the given session ID.
func sessionKey(id string) []byte {
	return []byte(sessionKeyPrefix + id)
}
