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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var sessionSweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "pantry",
	Subsystem: "session",
	Name:      "sweep_duration_seconds",
	Help:      "Duration of idle-session sweeps",
	Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1.0},
})

// Sweep evicts every session idle longer than the store TTL and returns the
// number evicted.
//
// The sweep snapshots eviction candidates under the map read lock, then takes
// each candidate's own session lock before re-checking idleness and evicting.
// Two guards keep eviction from racing an in-flight operation: an operation
// that acquired the session lock first bumps LastActivity, so the idleness
// re-check here spares the session; an operation that was still waiting on
// the session lock when the eviction completed finds the entry gone from the
// map (Store.lockLive) and starts over against the restored session, so its
// write is never applied to a detached session.
func (s *Store) Sweep(ctx context.Context) int {
	start := s.now()
	cutoff := start.Add(-s.ttl)

	type candidate struct {
		id string
		e  *entry
	}

	s.mu.RLock()
	var candidates []candidate
	for id, e := range s.sessions {
		candidates = append(candidates, candidate{id: id, e: e})
	}
	s.mu.RUnlock()

	evicted := 0
	for _, c := range candidates {
		c.e.mu.Lock()
		// A confirm eviction may have removed this entry while the sweep
		// waited on its lock; archiving the detached session would resurrect
		// an order that was just placed.
		s.mu.RLock()
		current, live := s.sessions[c.id]
		s.mu.RUnlock()
		if live && current == c.e && c.e.sess.LastActivity.Before(cutoff) {
			s.evictLocked(ctx, c.id, c.e, "idle")
			evicted++
		}
		c.e.mu.Unlock()
	}

	sessionSweepDuration.Observe(time.Since(start).Seconds())
	if evicted > 0 {
		s.logger.Info("idle session sweep",
			slog.Int("evicted", evicted),
			slog.Int("remaining", s.Len()),
		)
	}
	return evicted
}

// RunSweeper runs Sweep on the given interval until ctx is cancelled.
// Intended to run on its own goroutine (errgroup in main).
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}
