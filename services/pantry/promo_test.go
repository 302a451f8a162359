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
	"testing"
)

func TestPromotionLookup(t *testing.T) {
	table := NewPromotionTable(nil)

	got := table.Lookup("any deals on milk?")
	if len(got) != 1 || got[0].Code != "DAIRYBOGO" {
		t.Fatalf("Lookup(milk) = %+v", got)
	}

	got = table.Lookup("discounts on produce and cheese")
	if len(got) != 2 {
		t.Fatalf("Lookup(produce+cheese) = %+v", got)
	}

	// A generic question lists every offer.
	got = table.Lookup("any specials today?")
	if len(got) != len(defaultPromotions) {
		t.Fatalf("generic lookup = %d offers, want %d", len(got), len(defaultPromotions))
	}
}
