// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session implements the per-session conversation context store:
// recent turns, the last search results shown to the user, the cart, and
// accumulated user preferences. It is pure bookkeeping — no business logic.
package session

import (
	"strings"
	"time"

	"github.com/AleutianAI/PantryFOSS/services/pantry/cart"
	"github.com/AleutianAI/PantryFOSS/services/pantry/datatypes"
)

// maxRetainedTurns bounds the turn history kept per session. Prompts use a
// smaller window (typically 3), but a few extra turns are retained so the
// resolver can look slightly further back than the classifier does.
const maxRetainedTurns = 10

// maxLastResults bounds the cached search results. Ordinal references
// ("the ninth one") beyond this bound fail resolution rather than indexing
// into results the user was never shown.
const maxLastResults = 10

// Session is one user's ongoing conversational context.
//
// A Session must only be accessed while holding its store lock (see
// Store.WithSession); none of its methods are safe for unserialized use.
type Session struct {
	// ID is the opaque session identifier.
	ID string

	// UserID is the optional user identifier from the inbound request.
	UserID string

	// Turns is the append-only ordered turn history, most-recent-N retained.
	Turns []datatypes.Turn

	// Cart is the session's current order.
	Cart *cart.Cart

	// LastResults is the ordered product list from the most recent search.
	// Most recent search wins; bounded to maxLastResults.
	LastResults []datatypes.Product

	// Preferences accumulates user preference evidence ("organic",
	// "gluten free"). Later evidence merges with earlier, never overwrites.
	Preferences map[string]string

	// LastActivity is the timestamp of the most recent operation, used by
	// the idle-TTL sweeper.
	LastActivity time.Time
}

func newSession(id, userID string, now time.Time) *Session {
	return &Session{
		ID:           id,
		UserID:       userID,
		Cart:         cart.New(),
		Preferences:  make(map[string]string),
		LastActivity: now,
	}
}

// RecordTurn appends a turn and trims the history to the retained bound.
// Turns are immutable once appended.
func (s *Session) RecordTurn(turn datatypes.Turn) {
	s.Turns = append(s.Turns, turn)
	if len(s.Turns) > maxRetainedTurns {
		s.Turns = s.Turns[len(s.Turns)-maxRetainedTurns:]
	}
}

// SetLastResults replaces the cached search results with a bounded copy.
func (s *Session) SetLastResults(products []datatypes.Product) {
	if len(products) > maxLastResults {
		products = products[:maxLastResults]
	}
	s.LastResults = make([]datatypes.Product, len(products))
	copy(s.LastResults, products)
}

// RecentTurns returns a copy of the last n turns, oldest first.
func (s *Session) RecentTurns(n int) []datatypes.Turn {
	if n <= 0 || len(s.Turns) == 0 {
		return nil
	}
	if n > len(s.Turns) {
		n = len(s.Turns)
	}
	out := make([]datatypes.Turn, n)
	copy(out, s.Turns[len(s.Turns)-n:])
	return out
}

// MergePreference records preference evidence under key. If the key already
// holds a different value, the new value is appended rather than replacing
// the earlier evidence — preferences are never silently overwritten.
func (s *Session) MergePreference(key, value string) {
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		return
	}
	existing, ok := s.Preferences[key]
	if !ok {
		s.Preferences[key] = value
		return
	}
	for _, part := range strings.Split(existing, ",") {
		if strings.EqualFold(strings.TrimSpace(part), value) {
			return
		}
	}
	s.Preferences[key] = existing + "," + value
}

// snapshot converts the session into its serializable archive form.
func (s *Session) snapshot() *Snapshot {
	snap := &Snapshot{
		ID:           s.ID,
		UserID:       s.UserID,
		Turns:        append([]datatypes.Turn(nil), s.Turns...),
		LastResults:  append([]datatypes.Product(nil), s.LastResults...),
		Preferences:  make(map[string]string, len(s.Preferences)),
		LastActivity: s.LastActivity,
	}
	for k, v := range s.Preferences {
		snap.Preferences[k] = v
	}
	snap.CartLines = s.Cart.List().Lines
	return snap
}

// restore rebuilds a live session from its archive form.
func restore(snap *Snapshot) *Session {
	s := newSession(snap.ID, snap.UserID, snap.LastActivity)
	s.Turns = append([]datatypes.Turn(nil), snap.Turns...)
	s.LastResults = append([]datatypes.Product(nil), snap.LastResults...)
	for k, v := range snap.Preferences {
		s.Preferences[k] = v
	}
	for _, line := range snap.CartLines {
		s.Cart.Add(datatypes.Product{
			SKU:       line.SKU,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Category:  line.Category,
		}, line.Quantity)
	}
	return s
}

// Snapshot is the flat, gob-encodable form of a session used by Archive
// implementations. It is the schema contract an external session store must
// honor.
type Snapshot struct {
	ID           string
	UserID       string
	Turns        []datatypes.Turn
	CartLines    []cart.Line
	LastResults  []datatypes.Product
	Preferences  map[string]string
	LastActivity time.Time
}
