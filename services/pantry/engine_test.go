// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pantry

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/AleutianAI/PantryFOSS/services/pantry/datatypes"
	"github.com/AleutianAI/PantryFOSS/services/pantry/intent"
	"github.com/AleutianAI/PantryFOSS/services/pantry/search"
	"github.com/AleutianAI/PantryFOSS/services/pantry/session"
)

var (
	spinachOrganic      = datatypes.Product{SKU: "SKU-A", Name: "Organic Baby Spinach", UnitPrice: 3.99, Category: "Produce"}
	spinachConventional = datatypes.Product{SKU: "SKU-B", Name: "Conventional Spinach Bunch", UnitPrice: 2.49, Category: "Produce"}
)

// fakeSearcher serves a fixed catalog regardless of query.
type fakeSearcher struct {
	results []datatypes.Product
	calls   int
}

func (f *fakeSearcher) HybridSearch(context.Context, string, float64, []string, int) ([]datatypes.Product, error) {
	f.calls++
	return f.results, nil
}

// newTestEngine builds an engine on the deterministic fallback classifier
// (nil chat client) and a scripted searcher.
func newTestEngine(results []datatypes.Product) (*Engine, *session.Store, *fakeSearcher) {
	store := session.NewStore(time.Hour, nil, nil)
	classifier := intent.NewClassifier(nil, intent.DefaultConfig(), nil)
	searcher := &fakeSearcher{results: results}
	fusion := search.NewFusion(searcher, nil, 10, nil)
	engine := NewEngine(store, classifier, fusion, nil, nil)
	return engine, store, searcher
}

func turn(t *testing.T, e *Engine, sessionID, text string) UtteranceResponse {
	t.Helper()
	resp, err := e.Process(context.Background(), "req-"+text, UtteranceRequest{
		SessionID: sessionID,
		Text:      text,
	})
	if err != nil {
		t.Fatalf("Process(%q): %v", text, err)
	}
	return resp
}

func TestProcessConversationScenario(t *testing.T) {
	e, store, _ := newTestEngine([]datatypes.Product{spinachOrganic, spinachConventional})

	resp := turn(t, e, "s1", "do you have organic spinach?")
	if resp.Intent != datatypes.IntentProductSearch {
		t.Fatalf("intent = %s, want product_search", resp.Intent)
	}
	if resp.Alpha == nil {
		t.Fatalf("product_search response missing alpha")
	}
	if len(resp.Products) != 2 {
		t.Fatalf("products = %d, want 2", len(resp.Products))
	}

	resp = turn(t, e, "s1", "add the first one")
	if resp.Intent != datatypes.IntentAddToOrder {
		t.Fatalf("intent = %s, want add_to_order", resp.Intent)
	}
	if resp.Alpha != nil {
		t.Errorf("non-search response carries alpha")
	}
	if len(resp.Cart.Lines) != 1 || resp.Cart.Lines[0].SKU != "SKU-A" || resp.Cart.Lines[0].Quantity != 1 {
		t.Fatalf("cart after add = %+v", resp.Cart.Lines)
	}

	resp = turn(t, e, "s1", "add 2 more")
	if resp.Cart.Lines[0].Quantity != 3 {
		t.Fatalf("quantity after delta = %d, want 3", resp.Cart.Lines[0].Quantity)
	}
	if math.Abs(resp.Cart.Total-11.97) > 1e-9 {
		t.Fatalf("total = %v, want 11.97", resp.Cart.Total)
	}

	resp = turn(t, e, "s1", "remove the spinach")
	if resp.Intent != datatypes.IntentRemoveFromOrder {
		t.Fatalf("intent = %s", resp.Intent)
	}
	if len(resp.Cart.Lines) != 0 {
		t.Fatalf("cart after remove = %+v", resp.Cart.Lines)
	}

	resp = turn(t, e, "s1", "what's in my cart?")
	if resp.Intent != datatypes.IntentListOrder {
		t.Fatalf("intent = %s", resp.Intent)
	}
	if resp.Reply != "Your order is empty." {
		t.Errorf("reply = %q", resp.Reply)
	}

	if store.Len() != 1 {
		t.Fatalf("sessions = %d, want 1", store.Len())
	}
}

func TestProcessConfirmEvictsSession(t *testing.T) {
	e, store, _ := newTestEngine([]datatypes.Product{spinachOrganic})

	turn(t, e, "s1", "spinach")
	turn(t, e, "s1", "add the first one")

	resp := turn(t, e, "s1", "that's everything, checkout")
	if resp.Intent != datatypes.IntentConfirmOrder {
		t.Fatalf("intent = %s, want confirm_order", resp.Intent)
	}
	if len(resp.Cart.Lines) != 1 {
		t.Fatalf("confirmation should carry the final snapshot, got %+v", resp.Cart.Lines)
	}
	if store.Len() != 0 {
		t.Fatalf("session not evicted after confirm, len = %d", store.Len())
	}

	// A new turn on the same ID starts a fresh cart.
	resp = turn(t, e, "s1", "what's in my cart?")
	if len(resp.Cart.Lines) != 0 {
		t.Fatalf("fresh session cart = %+v", resp.Cart.Lines)
	}
}

func TestProcessAmbiguousRemoveRemovesAll(t *testing.T) {
	e, _, _ := newTestEngine([]datatypes.Product{spinachOrganic, spinachConventional})

	turn(t, e, "s1", "spinach")
	turn(t, e, "s1", "add the first one")
	turn(t, e, "s1", "add the second one")

	resp := turn(t, e, "s1", "remove the spinach")
	if resp.Clarification != "" {
		t.Fatalf("remove should act on all matches, not clarify: %q", resp.Clarification)
	}
	if len(resp.Cart.Lines) != 0 {
		t.Fatalf("cart after ambiguous remove = %+v", resp.Cart.Lines)
	}
}

func TestProcessAmbiguousUpdateRequestsClarification(t *testing.T) {
	e, _, _ := newTestEngine([]datatypes.Product{spinachOrganic, spinachConventional})

	turn(t, e, "s1", "spinach")
	turn(t, e, "s1", "add the first one")
	turn(t, e, "s1", "add the second one")

	resp := turn(t, e, "s1", "change the spinach to 5")
	if resp.Intent != datatypes.IntentUpdateOrder {
		t.Fatalf("intent = %s, want update_order", resp.Intent)
	}
	if resp.Clarification == "" {
		t.Fatalf("ambiguous update must request clarification")
	}
	// No mutation happened.
	for _, line := range resp.Cart.Lines {
		if line.Quantity != 1 {
			t.Fatalf("ambiguous update mutated the cart: %+v", resp.Cart.Lines)
		}
	}
}

func TestProcessAmbiguousAddRequestsClarification(t *testing.T) {
	e, store, _ := newTestEngine([]datatypes.Product{spinachOrganic, spinachConventional})

	turn(t, e, "s1", "spinach")
	turn(t, e, "s1", "add the first one")
	turn(t, e, "s1", "add the second one")

	// Clear the result window so the reference can only resolve against the
	// two spinach cart lines.
	_ = store.WithSession(context.Background(), "s1", "", func(sess *session.Session) error {
		sess.SetLastResults(nil)
		return nil
	})

	resp := turn(t, e, "s1", "add more spinach")
	if resp.Intent != datatypes.IntentAddToOrder {
		t.Fatalf("intent = %s, want add_to_order", resp.Intent)
	}
	if resp.Clarification == "" {
		t.Fatalf("ambiguous add must request clarification, not pick a line")
	}
	for _, line := range resp.Cart.Lines {
		if line.Quantity != 1 {
			t.Fatalf("ambiguous add mutated the cart: %+v", resp.Cart.Lines)
		}
	}
}

func TestProcessUpdateNamedLineToZeroRemoves(t *testing.T) {
	e, _, _ := newTestEngine([]datatypes.Product{spinachOrganic})

	turn(t, e, "s1", "spinach")
	turn(t, e, "s1", "add the first one")

	resp := turn(t, e, "s1", "change the spinach to 0")
	if resp.Intent != datatypes.IntentUpdateOrder {
		t.Fatalf("intent = %s, want update_order", resp.Intent)
	}
	if len(resp.Cart.Lines) != 0 {
		t.Fatalf("cart = %+v, want empty after named set-to-zero", resp.Cart.Lines)
	}
}

func TestProcessUpdateAbsoluteAndMultiply(t *testing.T) {
	e, _, _ := newTestEngine([]datatypes.Product{spinachOrganic})

	turn(t, e, "s1", "spinach")
	turn(t, e, "s1", "add the first one")

	resp := turn(t, e, "s1", "make it 5")
	if resp.Cart.Lines[0].Quantity != 5 {
		t.Fatalf("quantity = %d, want 5", resp.Cart.Lines[0].Quantity)
	}

	resp = turn(t, e, "s1", "double it")
	if resp.Cart.Lines[0].Quantity != 10 {
		t.Fatalf("quantity = %d, want 10", resp.Cart.Lines[0].Quantity)
	}

	// Setting to zero removes the line.
	resp = turn(t, e, "s1", "change it to 0")
	if len(resp.Cart.Lines) != 0 {
		t.Fatalf("cart = %+v, want empty after set-to-zero", resp.Cart.Lines)
	}
}

func TestProcessBareReferenceFailsExplicitly(t *testing.T) {
	e, _, _ := newTestEngine(nil)

	resp := turn(t, e, "s1", "add that")
	if resp.Clarification == "" {
		t.Fatalf("bare reference with no context must request clarification")
	}
	if len(resp.Cart.Lines) != 0 {
		t.Fatalf("clarification turn mutated the cart: %+v", resp.Cart.Lines)
	}
}

func TestProcessAddWithoutContextSearches(t *testing.T) {
	e, _, searcher := newTestEngine([]datatypes.Product{spinachOrganic})

	resp := turn(t, e, "s1", "add granola bars")
	if searcher.calls != 1 {
		t.Fatalf("engine should search the catalog for an unresolvable add, calls = %d", searcher.calls)
	}
	if resp.Clarification == "" {
		t.Fatalf("unresolvable add should ask the user to pick")
	}
	if len(resp.Products) != 1 {
		t.Fatalf("products = %d", len(resp.Products))
	}

	// The offered results are now referenceable.
	resp = turn(t, e, "s1", "add the first one")
	if len(resp.Cart.Lines) != 1 || resp.Cart.Lines[0].SKU != "SKU-A" {
		t.Fatalf("cart = %+v", resp.Cart.Lines)
	}
}

func TestProcessPromotionQuery(t *testing.T) {
	e, _, _ := newTestEngine(nil)

	resp := turn(t, e, "s1", "any deals on milk today?")
	if resp.Intent != datatypes.IntentPromotionQuery {
		t.Fatalf("intent = %s, want promotion_query", resp.Intent)
	}
	if len(resp.Promotions) != 1 || resp.Promotions[0].Code != "DAIRYBOGO" {
		t.Fatalf("promotions = %+v, want the dairy offer", resp.Promotions)
	}
}

func TestProcessRecordsPreferences(t *testing.T) {
	e, store, _ := newTestEngine([]datatypes.Product{spinachOrganic})

	turn(t, e, "s1", "do you have organic spinach?")

	err := store.WithSession(context.Background(), "s1", "", func(sess *session.Session) error {
		if sess.Preferences["diet"] != "organic" {
			t.Errorf("preferences = %v, want diet=organic", sess.Preferences)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithSession: %v", err)
	}
}

func TestProcessSessionsAreIsolated(t *testing.T) {
	e, _, _ := newTestEngine([]datatypes.Product{spinachOrganic})

	turn(t, e, "s1", "spinach")
	turn(t, e, "s1", "add the first one")

	resp := turn(t, e, "s2", "what's in my cart?")
	if len(resp.Cart.Lines) != 0 {
		t.Fatalf("s2 sees s1's cart: %+v", resp.Cart.Lines)
	}
}

func TestCartSnapshot(t *testing.T) {
	e, _, _ := newTestEngine([]datatypes.Product{spinachOrganic})

	turn(t, e, "s1", "spinach")
	turn(t, e, "s1", "add the first one")

	snap, err := e.CartSnapshot(context.Background(), "s1")
	if err != nil {
		t.Fatalf("CartSnapshot: %v", err)
	}
	if len(snap.Lines) != 1 || snap.Lines[0].SKU != "SKU-A" {
		t.Fatalf("snapshot = %+v", snap.Lines)
	}
}
