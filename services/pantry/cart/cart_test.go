// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cart

import (
	"math"
	"testing"

	"github.com/AleutianAI/PantryFOSS/services/pantry/datatypes"
)

// =============================================================================
// Fixtures
// =============================================================================

var (
	spinachOrganic = datatypes.Product{
		SKU: "SKU-A", Name: "Organic Baby Spinach", UnitPrice: 3.99, Category: "Produce",
	}
	spinachConventional = datatypes.Product{
		SKU: "SKU-B", Name: "Conventional Spinach", UnitPrice: 2.49, Category: "Produce",
	}
	wholeMilk = datatypes.Product{
		SKU: "SKU-C", Name: "Whole Milk 1 Gallon", UnitPrice: 4.29, Category: "Dairy",
	}
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// =============================================================================
// Add Tests
// =============================================================================

func TestCart_Add_CreatesLine(t *testing.T) {
	c := New()
	mut := c.Add(spinachOrganic, 1)

	if mut.Outcome != OutcomeAdded {
		t.Errorf("expected added, got %s", mut.Outcome)
	}
	snap := c.List()
	if len(snap.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(snap.Lines))
	}
	if snap.Lines[0].Quantity != 1 {
		t.Errorf("expected qty 1, got %d", snap.Lines[0].Quantity)
	}
	if !almostEqual(snap.Total, 3.99) {
		t.Errorf("expected total 3.99, got %f", snap.Total)
	}
}

func TestCart_Add_Accumulates(t *testing.T) {
	// Repeated add(sku, qty=1) N times must equal a single add(sku, qty=N).
	repeated := New()
	for i := 0; i < 3; i++ {
		repeated.Add(spinachOrganic, 1)
	}

	single := New()
	single.Add(spinachOrganic, 3)

	rSnap, sSnap := repeated.List(), single.List()
	if len(rSnap.Lines) != 1 || len(sSnap.Lines) != 1 {
		t.Fatalf("expected 1 line in each cart")
	}
	if rSnap.Lines[0].Quantity != sSnap.Lines[0].Quantity {
		t.Errorf("repeated adds gave qty %d, single add gave %d",
			rSnap.Lines[0].Quantity, sSnap.Lines[0].Quantity)
	}
	if !almostEqual(rSnap.Total, sSnap.Total) {
		t.Errorf("totals differ: %f vs %f", rSnap.Total, sSnap.Total)
	}
}

func TestCart_Add_ZeroQtyDefaultsToOne(t *testing.T) {
	c := New()
	c.Add(wholeMilk, 0)
	line, ok := c.Get(wholeMilk.SKU)
	if !ok || line.Quantity != 1 {
		t.Errorf("expected qty 1 for zero-qty add, got %+v (ok=%v)", line, ok)
	}
}

// =============================================================================
// Update Tests
// =============================================================================

func TestCart_Update_SetsAbsoluteQuantity(t *testing.T) {
	c := New()
	c.Add(spinachOrganic, 1)

	mut := c.Update(spinachOrganic.SKU, 5)
	if mut.Outcome != OutcomeUpdated {
		t.Errorf("expected updated, got %s", mut.Outcome)
	}
	snap := c.List()
	if snap.Lines[0].Quantity != 5 {
		t.Errorf("expected qty 5, got %d", snap.Lines[0].Quantity)
	}
	if !almostEqual(snap.Total, 5*3.99) {
		t.Errorf("expected total %f, got %f", 5*3.99, snap.Total)
	}
}

func TestCart_Update_ZeroEquivalentToRemove(t *testing.T) {
	viaUpdate := New()
	viaUpdate.Add(spinachOrganic, 2)
	mutU := viaUpdate.Update(spinachOrganic.SKU, 0)

	viaRemove := New()
	viaRemove.Add(spinachOrganic, 2)
	mutR := viaRemove.Remove(spinachOrganic.SKU)

	if mutU.Outcome != OutcomeRemoved || mutR.Outcome != OutcomeRemoved {
		t.Errorf("expected removed outcomes, got %s and %s", mutU.Outcome, mutR.Outcome)
	}
	uSnap, rSnap := viaUpdate.List(), viaRemove.List()
	if len(uSnap.Lines) != 0 || len(rSnap.Lines) != 0 {
		t.Errorf("expected both carts empty, got %d and %d lines",
			len(uSnap.Lines), len(rSnap.Lines))
	}
	if uSnap.Total != 0 || rSnap.Total != 0 {
		t.Errorf("expected zero totals, got %f and %f", uSnap.Total, rSnap.Total)
	}
}

func TestCart_Update_AbsentSKUIsNoChange(t *testing.T) {
	c := New()
	mut := c.Update("SKU-MISSING", 3)
	if mut.Outcome != OutcomeNoChange {
		t.Errorf("expected no_change, got %s", mut.Outcome)
	}
}

// =============================================================================
// Remove Tests
// =============================================================================

func TestCart_Remove_AbsentSKUIsNoOp(t *testing.T) {
	c := New()
	c.Add(wholeMilk, 1)
	mut := c.Remove("SKU-MISSING")
	if mut.Outcome != OutcomeNoChange {
		t.Errorf("expected no_change, got %s", mut.Outcome)
	}
	if c.Len() != 1 {
		t.Errorf("remove of absent SKU must not touch other lines")
	}
}

func TestCart_RemoveAll_MultipleMatches(t *testing.T) {
	c := New()
	c.Add(spinachOrganic, 1)
	c.Add(spinachConventional, 2)
	c.Add(wholeMilk, 1)

	mut := c.RemoveAll([]string{spinachOrganic.SKU, spinachConventional.SKU, "SKU-MISSING"})
	if mut.Outcome != OutcomeRemoved {
		t.Errorf("expected removed, got %s", mut.Outcome)
	}
	if len(mut.SKUs) != 2 {
		t.Errorf("expected 2 removed SKUs, got %v", mut.SKUs)
	}
	if c.Len() != 1 {
		t.Errorf("expected only milk left, got %d lines", c.Len())
	}
}

// =============================================================================
// Total Invariant
// =============================================================================

func TestCart_TotalAlwaysRecomputed(t *testing.T) {
	c := New()
	c.Add(spinachOrganic, 1)
	c.Add(wholeMilk, 2)
	c.Update(spinachOrganic.SKU, 3)
	c.Remove(wholeMilk.SKU)

	snap := c.List()
	var want float64
	for _, line := range snap.Lines {
		want += float64(line.Quantity) * line.UnitPrice
	}
	if !almostEqual(snap.Total, want) {
		t.Errorf("total %f out of sync with recomputed sum %f", snap.Total, want)
	}
}

// =============================================================================
// Confirm Tests
// =============================================================================

func TestCart_Confirm_EmptiesAndReturnsFinalSnapshot(t *testing.T) {
	c := New()
	c.Add(spinachOrganic, 3)

	final := c.Confirm()
	if len(final.Lines) != 1 || !almostEqual(final.Total, 3*3.99) {
		t.Errorf("unexpected final snapshot: %+v", final)
	}
	if c.Len() != 0 {
		t.Errorf("cart must be empty after confirm")
	}

	// A new add after confirm starts a fresh cart.
	c.Add(wholeMilk, 1)
	snap := c.List()
	if len(snap.Lines) != 1 || snap.Lines[0].SKU != wholeMilk.SKU {
		t.Errorf("expected fresh cart with milk only, got %+v", snap)
	}
}

// =============================================================================
// Spec Scenario: spinach session
// =============================================================================

func TestCart_SpinachScenario(t *testing.T) {
	c := New()

	// "add the first one" -> SKU-A qty 1
	c.Add(spinachOrganic, 1)
	snap := c.List()
	if !almostEqual(snap.Total, 3.99) {
		t.Fatalf("after first add, total = %f, want 3.99", snap.Total)
	}

	// "add 2 more" -> qty 3, subtotal 11.97
	c.Add(spinachOrganic, 2)
	snap = c.List()
	if snap.Lines[0].Quantity != 3 {
		t.Errorf("expected qty 3, got %d", snap.Lines[0].Quantity)
	}
	if !almostEqual(snap.Lines[0].Subtotal(), 11.97) {
		t.Errorf("expected subtotal 11.97, got %f", snap.Lines[0].Subtotal())
	}

	// "remove spinach" -> both spinach SKUs matched, only A in cart; cart empties.
	matches := c.MatchByName("spinach")
	skus := make([]string, len(matches))
	for i, m := range matches {
		skus[i] = m.SKU
	}
	c.RemoveAll(skus)
	snap = c.List()
	if len(snap.Lines) != 0 || snap.Total != 0 {
		t.Errorf("expected empty cart, got %+v", snap)
	}
}

// =============================================================================
// LastTouched Tests
// =============================================================================

func TestCart_LastTouched(t *testing.T) {
	c := New()
	if _, ok := c.LastTouched(); ok {
		t.Errorf("empty cart must have no last-touched line")
	}

	c.Add(spinachOrganic, 1)
	c.Add(wholeMilk, 1)
	line, ok := c.LastTouched()
	if !ok || line.SKU != wholeMilk.SKU {
		t.Errorf("expected milk as last touched, got %+v (ok=%v)", line, ok)
	}

	c.Update(spinachOrganic.SKU, 4)
	line, ok = c.LastTouched()
	if !ok || line.SKU != spinachOrganic.SKU {
		t.Errorf("expected spinach after update, got %+v (ok=%v)", line, ok)
	}

	c.Remove(spinachOrganic.SKU)
	if _, ok := c.LastTouched(); ok {
		t.Errorf("last-touched must clear when its line is removed")
	}
}

func TestCart_MatchByName(t *testing.T) {
	c := New()
	c.Add(spinachOrganic, 1)
	c.Add(spinachConventional, 1)
	c.Add(wholeMilk, 1)

	tests := []struct {
		term string
		want int
	}{
		{"spinach", 2},
		{"SPINACH", 2},
		{"milk", 1},
		{"organic", 1},
		{"kale", 0},
		{"", 0},
		{"   ", 0},
	}
	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			got := c.MatchByName(tt.term)
			if len(got) != tt.want {
				t.Errorf("MatchByName(%q) = %d matches, want %d", tt.term, len(got), tt.want)
			}
		})
	}
}
