// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cart implements the per-session cart state machine.
//
// A Cart is a mapping from SKU to line, with quantity arithmetic and the
// following guarantees:
//
//   - quantity is always >= 1; a line whose quantity reaches 0 is removed,
//     never retained at 0
//   - the total is always recomputed from the current lines, never cached
//   - removing an absent SKU is a benign no-op, not an error
//   - Confirm empties the cart; the next Add starts a fresh one
//
// Cart is NOT safe for concurrent use. The session store serializes all
// operations on a session, and the cart is only reachable through its
// session, so no internal locking is needed.
package cart

import (
	"strings"

	"github.com/AleutianAI/PantryFOSS/services/pantry/datatypes"
)

// =============================================================================
// Types
// =============================================================================

// Line is a single cart line: a SKU with a product snapshot and a quantity.
type Line struct {
	// SKU is the unique product identifier (the map key of the cart).
	SKU string `json:"sku"`

	// Name is the product display name, snapshotted at add time.
	Name string `json:"name"`

	// Quantity is the number of units. Invariant: >= 1.
	Quantity int `json:"quantity"`

	// UnitPrice is the per-unit price, snapshotted at add time.
	UnitPrice float64 `json:"unit_price"`

	// Category is the product category, snapshotted at add time.
	Category string `json:"category,omitempty"`
}

// Subtotal is quantity × unit price, computed on demand.
func (l Line) Subtotal() float64 {
	return float64(l.Quantity) * l.UnitPrice
}

// Snapshot is an immutable copy of the cart contents plus the derived total.
type Snapshot struct {
	Lines []Line  `json:"lines"`
	Total float64 `json:"total"`
}

// Outcome describes what a cart mutation actually did.
type Outcome string

const (
	// OutcomeAdded means a new line was created.
	OutcomeAdded Outcome = "added"

	// OutcomeUpdated means an existing line's quantity changed.
	OutcomeUpdated Outcome = "updated"

	// OutcomeRemoved means one or more lines were deleted.
	OutcomeRemoved Outcome = "removed"

	// OutcomeNoChange means the operation referenced no existing line.
	// This is the benign "nothing to modify" result, not an error.
	OutcomeNoChange Outcome = "no_change"
)

// Mutation reports the effect of a single cart operation.
type Mutation struct {
	// Outcome is what happened.
	Outcome Outcome

	// SKUs lists the lines the operation touched, in cart order.
	SKUs []string
}

// Changed reports whether the mutation altered cart state.
func (m Mutation) Changed() bool {
	return m.Outcome != OutcomeNoChange
}

// Cart holds the lines of a single session's order.
type Cart struct {
	lines map[string]*Line

	// order preserves SKU insertion order so snapshots are deterministic.
	order []string

	// lastTouched is the SKU most recently added or updated. Quantity-delta
	// references ("add 2 more", "double it") resolve against this line.
	lastTouched string
}

// New creates an empty cart.
func New() *Cart {
	return &Cart{lines: make(map[string]*Line)}
}

// =============================================================================
// Transitions
// =============================================================================

// Add creates a line for the product, or increments the existing line's
// quantity by qty if the SKU is already present. Repeated adds intentionally
// accumulate quantity; this mirrors natural "add more" semantics.
//
// A qty <= 0 is treated as 1, so a bare "add spinach" adds a single unit.
func (c *Cart) Add(p datatypes.Product, qty int) Mutation {
	if qty <= 0 {
		qty = 1
	}
	if line, ok := c.lines[p.SKU]; ok {
		line.Quantity += qty
		c.lastTouched = p.SKU
		return Mutation{Outcome: OutcomeUpdated, SKUs: []string{p.SKU}}
	}
	c.lines[p.SKU] = &Line{
		SKU:       p.SKU,
		Name:      p.Name,
		Quantity:  qty,
		UnitPrice: p.UnitPrice,
		Category:  p.Category,
	}
	c.order = append(c.order, p.SKU)
	c.lastTouched = p.SKU
	return Mutation{Outcome: OutcomeAdded, SKUs: []string{p.SKU}}
}

// Update sets the line's quantity to qty. A qty of 0 removes the line —
// Update(sku, 0) is equivalent to Remove(sku) for all subsequent List calls.
// Negative quantities are treated as 0.
//
// Relative updates ("add 2 more", "double it") must be resolved to an
// absolute quantity by the caller before invoking Update; the state machine
// never interprets relative language.
func (c *Cart) Update(sku string, qty int) Mutation {
	line, ok := c.lines[sku]
	if !ok {
		return Mutation{Outcome: OutcomeNoChange}
	}
	if qty <= 0 {
		c.delete(sku)
		return Mutation{Outcome: OutcomeRemoved, SKUs: []string{sku}}
	}
	line.Quantity = qty
	c.lastTouched = sku
	return Mutation{Outcome: OutcomeUpdated, SKUs: []string{sku}}
}

// Remove deletes the line if present. Removing an absent SKU is a no-op.
func (c *Cart) Remove(sku string) Mutation {
	if _, ok := c.lines[sku]; !ok {
		return Mutation{Outcome: OutcomeNoChange}
	}
	c.delete(sku)
	return Mutation{Outcome: OutcomeRemoved, SKUs: []string{sku}}
}

// RemoveAll deletes every listed SKU that is present. Used for ambiguous
// references that matched several lines ("remove the milk" with two milk
// SKUs): the documented policy is to operate on ALL matches.
func (c *Cart) RemoveAll(skus []string) Mutation {
	var removed []string
	for _, sku := range skus {
		if _, ok := c.lines[sku]; ok {
			c.delete(sku)
			removed = append(removed, sku)
		}
	}
	if len(removed) == 0 {
		return Mutation{Outcome: OutcomeNoChange}
	}
	return Mutation{Outcome: OutcomeRemoved, SKUs: removed}
}

// List returns an immutable snapshot of all lines plus the recomputed total.
// It never mutates state.
func (c *Cart) List() Snapshot {
	snap := Snapshot{Lines: make([]Line, 0, len(c.order))}
	for _, sku := range c.order {
		line, ok := c.lines[sku]
		if !ok {
			continue
		}
		snap.Lines = append(snap.Lines, *line)
		snap.Total += line.Subtotal()
	}
	return snap
}

// Confirm returns the final snapshot for downstream order placement and
// empties the cart. A subsequent Add starts a fresh order.
func (c *Cart) Confirm() Snapshot {
	snap := c.List()
	c.lines = make(map[string]*Line)
	c.order = nil
	c.lastTouched = ""
	return snap
}

// =============================================================================
// Queries
// =============================================================================

// Len returns the number of lines.
func (c *Cart) Len() int {
	return len(c.lines)
}

// Get returns a copy of the line for sku, if present.
func (c *Cart) Get(sku string) (Line, bool) {
	line, ok := c.lines[sku]
	if !ok {
		return Line{}, false
	}
	return *line, true
}

// LastTouched returns a copy of the line most recently added or updated.
// Returns false if the cart is empty or the last-touched line was removed.
func (c *Cart) LastTouched() (Line, bool) {
	if c.lastTouched == "" {
		return Line{}, false
	}
	return c.Get(c.lastTouched)
}

// MatchByName returns copies of all lines whose name contains the given
// term, case-insensitively, in cart order. An empty term matches nothing.
func (c *Cart) MatchByName(term string) []Line {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil
	}
	var matches []Line
	for _, sku := range c.order {
		line, ok := c.lines[sku]
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(line.Name), term) {
			matches = append(matches, *line)
		}
	}
	return matches
}

// delete removes a SKU from the map and the insertion-order slice.
func (c *Cart) delete(sku string) {
	delete(c.lines, sku)
	for i, s := range c.order {
		if s == sku {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	if c.lastTouched == sku {
		c.lastTouched = ""
	}
}
