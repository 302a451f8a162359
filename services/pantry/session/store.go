// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/PantryFOSS/services/pantry/datatypes"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	sessionActiveGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pantry",
		Subsystem: "session",
		Name:      "active",
		Help:      "Number of live sessions held in memory",
	})

	sessionEvictedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pantry",
		Subsystem: "session",
		Name:      "evicted_total",
		Help:      "Session evictions by reason: idle, confirmed",
	}, []string{"reason"})

	sessionArchiveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pantry",
		Subsystem: "session",
		Name:      "archive_total",
		Help:      "Archive operations by outcome: save, restore, error",
	}, []string{"outcome"})
)

// defaultIdleTTL is how long a session may sit idle before the sweeper
// evicts it. 30 minutes comfortably outlasts a normal shopping conversation.
const defaultIdleTTL = 30 * time.Minute

// =============================================================================
// Archive
// =============================================================================

// Archive persists session snapshots outside process memory so sessions
// survive restarts. Implementations must be safe for concurrent use.
//
// All three methods are nil-receiver-tolerant at the Store level: a Store
// constructed with a nil Archive operates purely in memory.
type Archive interface {
	// Save persists the snapshot, replacing any earlier snapshot for the
	// same session ID.
	Save(ctx context.Context, snap *Snapshot) error

	// Load retrieves the snapshot for id. Returns (nil, nil) when no
	// snapshot exists — a miss, not an error.
	Load(ctx context.Context, id string) (*Snapshot, error)

	// Delete removes the snapshot for id. Deleting an absent snapshot is
	// a no-op.
	Delete(ctx context.Context, id string) error
}

// =============================================================================
// Store
// =============================================================================

// Store is the keyed session store with a defined concurrency discipline:
// every operation on a session runs under that session's own lock, so
// operations on the same session ID are serialized while different sessions
// proceed fully in parallel. The idle sweeper acquires the same per-session
// lock before evicting, so eviction can never race an in-flight operation.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	ttl     time.Duration
	archive Archive
	logger  *slog.Logger

	// now is the clock, swappable in tests.
	now func() time.Time
}

// entry pairs a session with its serialization lock.
type entry struct {
	mu   sync.Mutex
	sess *Session
}

// NewStore creates a session store.
//
// Inputs:
//
//	ttl     - Idle TTL before eviction. Zero uses the default (30 minutes).
//	archive - Optional snapshot persistence. May be nil (in-memory only).
//	logger  - Logger instance. May be nil (slog.Default).
func NewStore(ttl time.Duration, archive Archive, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = defaultIdleTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*entry),
		ttl:      ttl,
		archive:  archive,
		logger:   logger,
		now:      time.Now,
	}
}

// WithSession runs fn with exclusive access to the session for id, creating
// the session (or restoring it from the archive) if it does not exist.
// LastActivity is touched before fn runs.
//
// fn must not retain the *Session beyond its own return.
func (s *Store) WithSession(ctx context.Context, id, userID string, fn func(*Session) error) error {
	e := s.lockLive(ctx, id, userID)
	defer e.mu.Unlock()
	e.sess.LastActivity = s.now()
	if userID != "" && e.sess.UserID == "" {
		e.sess.UserID = userID
	}
	return fn(e.sess)
}

// lockLive returns the entry for id with its lock held, guaranteed to still
// be the live entry in the map.
//
// The guarantee matters for a goroutine that fetched an entry and then
// parked on its lock while the sweeper evicted that same entry: the sweeper
// archives the pre-op snapshot, deletes the map entry, and only then
// releases the lock. Without the re-check the waiter would mutate the
// detached session and the write would be silently lost — the next turn
// restores the stale archive snapshot. Instead the waiter detects the
// eviction and starts over against a fresh entry, which restores the
// archived snapshot before the operation applies.
func (s *Store) lockLive(ctx context.Context, id, userID string) *entry {
	for {
		e := s.getOrCreate(ctx, id, userID)
		e.mu.Lock()
		s.mu.RLock()
		current, ok := s.sessions[id]
		s.mu.RUnlock()
		if ok && current == e {
			return e
		}
		// Evicted while waiting on the entry lock; retry.
		e.mu.Unlock()
	}
}

// RecordTurn appends a turn to the session's history.
func (s *Store) RecordTurn(ctx context.Context, id string, turn datatypes.Turn) error {
	return s.WithSession(ctx, id, "", func(sess *Session) error {
		sess.RecordTurn(turn)
		return nil
	})
}

// SetLastResults replaces the session's cached search results.
func (s *Store) SetLastResults(ctx context.Context, id string, products []datatypes.Product) error {
	return s.WithSession(ctx, id, "", func(sess *Session) error {
		sess.SetLastResults(products)
		return nil
	})
}

// RecentContext returns a copy of the session's last n turns, oldest first.
func (s *Store) RecentContext(ctx context.Context, id string, n int) ([]datatypes.Turn, error) {
	var turns []datatypes.Turn
	err := s.WithSession(ctx, id, "", func(sess *Session) error {
		turns = sess.RecentTurns(n)
		return nil
	})
	return turns, err
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// getOrCreate returns the entry for id, restoring from the archive on a
// memory miss and creating a fresh session when the archive misses too.
func (s *Store) getOrCreate(ctx context.Context, id, userID string) *entry {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return e
	}

	// Restore outside the map lock; archive reads may touch disk.
	var restored *Session
	if s.archive != nil {
		snap, err := s.archive.Load(ctx, id)
		switch {
		case err != nil:
			sessionArchiveTotal.WithLabelValues("error").Inc()
			s.logger.Warn("session archive load failed, starting fresh",
				slog.String("session_id", id),
				slog.String("error", err.Error()),
			)
		case snap != nil:
			restored = restore(snap)
			sessionArchiveTotal.WithLabelValues("restore").Inc()
			s.logger.Info("session restored from archive",
				slog.String("session_id", id),
				slog.Int("cart_lines", restored.Cart.Len()),
			)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[id]; ok {
		// Lost the race to another goroutine; its entry wins.
		return e
	}
	sess := restored
	if sess == nil {
		sess = newSession(id, userID, s.now())
	}
	e = &entry{sess: sess}
	s.sessions[id] = e
	sessionActiveGauge.Set(float64(len(s.sessions)))
	return e
}

// Evict removes the session for id, archiving it first when an archive is
// configured. Used after confirm_order; the sweeper handles idle eviction.
func (s *Store) Evict(ctx context.Context, id, reason string) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// The sweeper may have evicted this entry while we waited on its lock;
	// evicting it again would archive a detached snapshot twice.
	s.mu.RLock()
	current, live := s.sessions[id]
	s.mu.RUnlock()
	if !live || current != e {
		return
	}
	s.evictLocked(ctx, id, e, reason)
}

// evictLocked removes the entry from the map. Caller holds e.mu.
//
// A confirmed session's archive entry is deleted (the order is placed, the
// context is finished); an idle session is archived so a returning user can
// resume.
func (s *Store) evictLocked(ctx context.Context, id string, e *entry, reason string) {
	if s.archive != nil {
		var err error
		if reason == "confirmed" {
			err = s.archive.Delete(ctx, id)
		} else {
			err = s.archive.Save(ctx, e.sess.snapshot())
			if err == nil {
				sessionArchiveTotal.WithLabelValues("save").Inc()
			}
		}
		if err != nil {
			sessionArchiveTotal.WithLabelValues("error").Inc()
			s.logger.Warn("session archive write failed",
				slog.String("session_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	s.mu.Lock()
	if current, ok := s.sessions[id]; ok && current == e {
		delete(s.sessions, id)
	}
	sessionActiveGauge.Set(float64(len(s.sessions)))
	s.mu.Unlock()

	sessionEvictedTotal.WithLabelValues(reason).Inc()
	s.logger.Info("session evicted",
		slog.String("session_id", id),
		slog.String("reason", reason),
	)
}
