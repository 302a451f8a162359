// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolver

import (
	"testing"

	"github.com/AleutianAI/PantryFOSS/services/pantry/cart"
	"github.com/AleutianAI/PantryFOSS/services/pantry/datatypes"
	"github.com/AleutianAI/PantryFOSS/services/pantry/session"
)

var (
	spinachOrganic      = datatypes.Product{SKU: "SKU-A", Name: "Organic Baby Spinach", UnitPrice: 3.99, Category: "Produce"}
	spinachConventional = datatypes.Product{SKU: "SKU-B", Name: "Conventional Spinach Bunch", UnitPrice: 2.49, Category: "Produce"}
	wholeMilk           = datatypes.Product{SKU: "SKU-C", Name: "Whole Milk Gallon", UnitPrice: 4.29, Category: "Dairy"}
)

func emptySession() *session.Session {
	return &session.Session{
		ID:          "test",
		Cart:        cart.New(),
		Preferences: make(map[string]string),
	}
}

func sessionWithResults(products ...datatypes.Product) *session.Session {
	s := emptySession()
	s.SetLastResults(products)
	return s
}

func TestResolveOrdinal(t *testing.T) {
	sess := sessionWithResults(spinachOrganic, spinachConventional)

	res := Resolve("add the first one", sess)
	if res.Failed {
		t.Fatalf("unexpected failure: %s", res.Reason)
	}
	if len(res.Products) != 1 || res.Products[0].SKU != "SKU-A" {
		t.Fatalf("products = %+v, want [SKU-A]", res.Products)
	}

	res = Resolve("the 2nd one", sess)
	if len(res.Products) != 1 || res.Products[0].SKU != "SKU-B" {
		t.Fatalf("products = %+v, want [SKU-B]", res.Products)
	}
}

func TestResolveOrdinalWithQualifier(t *testing.T) {
	// The qualifier filters the result list before indexing: "the first
	// milk" skips both spinach rows.
	sess := sessionWithResults(spinachOrganic, spinachConventional, wholeMilk)

	res := Resolve("add the first milk", sess)
	if res.Failed {
		t.Fatalf("unexpected failure: %s", res.Reason)
	}
	if len(res.Products) != 1 || res.Products[0].SKU != "SKU-C" {
		t.Fatalf("products = %+v, want [SKU-C]", res.Products)
	}
}

func TestResolveOrdinalOutOfRange(t *testing.T) {
	sess := sessionWithResults(spinachOrganic, spinachConventional)

	res := Resolve("add the fifth one", sess)
	if !res.Failed {
		t.Fatalf("expected explicit failure for out-of-range ordinal")
	}
	if res.Reason == "" {
		t.Errorf("failure carries no clarification text")
	}
}

func TestResolveOrdinalWithoutResults(t *testing.T) {
	res := Resolve("add the first one", emptySession())
	if !res.Failed {
		t.Fatalf("expected failure with no search results")
	}
}

func TestResolveQuantityDelta(t *testing.T) {
	sess := emptySession()
	sess.Cart.Add(spinachOrganic, 1)

	res := Resolve("add 2 more", sess)
	if res.QtyOp != QtyDelta || res.QtyValue != 2 {
		t.Fatalf("qty = %v/%d, want delta/2", res.QtyOp, res.QtyValue)
	}
	if len(res.CartMatches) != 1 || res.CartMatches[0].SKU != "SKU-A" {
		t.Fatalf("cart matches = %+v, want last-touched spinach", res.CartMatches)
	}

	res = Resolve("one more", sess)
	if res.QtyOp != QtyDelta || res.QtyValue != 1 {
		t.Fatalf("qty = %v/%d, want delta/1", res.QtyOp, res.QtyValue)
	}
}

func TestResolveQuantityDeltaWithoutTarget(t *testing.T) {
	res := Resolve("add 2 more", emptySession())
	if !res.Failed {
		t.Fatalf("delta with no last-touched line must fail explicitly")
	}
}

func TestResolveMultiply(t *testing.T) {
	sess := emptySession()
	sess.Cart.Add(spinachOrganic, 2)

	res := Resolve("double it", sess)
	if res.QtyOp != QtyMultiply || res.QtyValue != 2 {
		t.Fatalf("qty = %v/%d, want multiply/2", res.QtyOp, res.QtyValue)
	}
	if len(res.CartMatches) != 1 {
		t.Fatalf("cart matches = %+v", res.CartMatches)
	}

	res = Resolve("triple that", sess)
	if res.QtyOp != QtyMultiply || res.QtyValue != 3 {
		t.Fatalf("qty = %v/%d, want multiply/3", res.QtyOp, res.QtyValue)
	}
}

func TestResolveAbsoluteQuantity(t *testing.T) {
	sess := emptySession()
	sess.Cart.Add(wholeMilk, 1)

	res := Resolve("make it 5", sess)
	if res.QtyOp != QtyExplicit || res.QtyValue != 5 {
		t.Fatalf("qty = %v/%d, want explicit/5", res.QtyOp, res.QtyValue)
	}
	if len(res.CartMatches) != 1 || res.CartMatches[0].SKU != "SKU-C" {
		t.Fatalf("cart matches = %+v, want the milk line", res.CartMatches)
	}
}

func TestResolveAbsoluteQuantityWithNoun(t *testing.T) {
	sess := emptySession()
	sess.Cart.Add(spinachOrganic, 3)

	// A noun phrase between the verb and "to" is accepted; the noun resolves
	// through the name matcher.
	res := Resolve("change the spinach to 5", sess)
	if res.QtyOp != QtyExplicit || res.QtyValue != 5 {
		t.Fatalf("qty = %v/%d, want explicit/5", res.QtyOp, res.QtyValue)
	}
	if len(res.CartMatches) != 1 || res.CartMatches[0].SKU != "SKU-A" {
		t.Fatalf("cart matches = %+v, want the spinach line", res.CartMatches)
	}

	// Zero is a valid absolute target (set-to-zero removes), unlike a bare
	// zero count, which is discarded.
	res = Resolve("change the spinach to 0", sess)
	if res.QtyOp != QtyExplicit || res.QtyValue != 0 {
		t.Fatalf("qty = %v/%d, want explicit/0", res.QtyOp, res.QtyValue)
	}
	if len(res.CartMatches) != 1 {
		t.Fatalf("cart matches = %+v", res.CartMatches)
	}

	res = Resolve("set spinach to 2", sess)
	if res.QtyOp != QtyExplicit || res.QtyValue != 2 {
		t.Fatalf("qty = %v/%d, want explicit/2", res.QtyOp, res.QtyValue)
	}
}

func TestResolveByNameAgainstCart(t *testing.T) {
	sess := emptySession()
	sess.Cart.Add(spinachOrganic, 3)
	sess.Cart.Add(wholeMilk, 1)

	res := Resolve("remove the spinach", sess)
	if len(res.CartMatches) != 1 || res.CartMatches[0].SKU != "SKU-A" {
		t.Fatalf("cart matches = %+v, want the spinach line", res.CartMatches)
	}
	if res.Ambiguous {
		t.Errorf("single match flagged ambiguous")
	}
}

func TestResolveByNameAmbiguous(t *testing.T) {
	sess := emptySession()
	sess.Cart.Add(spinachOrganic, 1)
	sess.Cart.Add(spinachConventional, 1)

	res := Resolve("remove the spinach", sess)
	if !res.Ambiguous {
		t.Fatalf("two spinach lines should be ambiguous")
	}
	if len(res.CartMatches) != 2 {
		t.Fatalf("cart matches = %d, want both spinach lines", len(res.CartMatches))
	}
	if res.Reason == "" {
		t.Errorf("ambiguity carries no clarification text")
	}
}

func TestResolveByNameAgainstResults(t *testing.T) {
	sess := sessionWithResults(spinachOrganic, spinachConventional, wholeMilk)

	res := Resolve("add spinach", sess)
	if len(res.Products) != 2 {
		t.Fatalf("products = %+v, want both spinach results", res.Products)
	}
	if res.Products[0].SKU != "SKU-A" {
		t.Errorf("result order not preserved: %+v", res.Products)
	}
}

func TestResolveExplicitQuantityWithName(t *testing.T) {
	sess := sessionWithResults(spinachOrganic)

	res := Resolve("add 2 spinach", sess)
	if res.QtyOp != QtyExplicit || res.QtyValue != 2 {
		t.Fatalf("qty = %v/%d, want explicit/2", res.QtyOp, res.QtyValue)
	}
	if len(res.Products) != 1 {
		t.Fatalf("products = %+v", res.Products)
	}
}

func TestResolveDemonstrative(t *testing.T) {
	// Cart-flavored utterance: last-touched cart line wins.
	sess := sessionWithResults(wholeMilk)
	sess.Cart.Add(spinachOrganic, 1)
	res := Resolve("remove that", sess)
	if len(res.CartMatches) != 1 || res.CartMatches[0].SKU != "SKU-A" {
		t.Fatalf("cart matches = %+v, want last-touched line", res.CartMatches)
	}

	// No cart context: top-ranked search result wins.
	sess = sessionWithResults(spinachOrganic, spinachConventional)
	res = Resolve("that looks good", sess)
	if len(res.Products) != 1 || res.Products[0].SKU != "SKU-A" {
		t.Fatalf("products = %+v, want top result", res.Products)
	}
}

func TestResolveBareReferenceWithNoContext(t *testing.T) {
	res := Resolve("add that", emptySession())
	if !res.Failed {
		t.Fatalf("bare reference with no context must fail, never guess")
	}
	if res.Reason == "" {
		t.Errorf("failure carries no clarification text")
	}
}

func TestResolveNothing(t *testing.T) {
	res := Resolve("good morning", emptySession())
	if !res.Empty() {
		t.Fatalf("small talk should resolve to nothing: %+v", res)
	}
}

func TestDetectPreferences(t *testing.T) {
	got := DetectPreferences("I prefer organic gluten-free products")
	if got["diet"] != "organic,gluten free" {
		t.Fatalf("diet = %q, want %q", got["diet"], "organic,gluten free")
	}

	got = DetectPreferences("something low sodium please")
	if got["health"] != "low sodium" {
		t.Fatalf("health = %q", got["health"])
	}

	if got := DetectPreferences("add spinach"); len(got) != 0 {
		t.Fatalf("unexpected preferences: %v", got)
	}
}
