// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

import (
	"sort"
	"strings"
)

// =============================================================================
// Category Relevance Table
// =============================================================================
//
// High-alpha fusion pulls in semantically-near but categorically-wrong
// matches ("milk" surfacing coconut body lotion). The table maps query
// keywords to the catalog categories they may legitimately come from; when
// any keyword matches, results are restricted to the union of the allowed
// categories. Queries with no table hit are left unfiltered — the table
// suppresses known off-topic drift, it does not try to taxonomize every
// query.

var categoryKeywords = map[string][]string{
	"milk":      {"Dairy", "Beverages"},
	"cheese":    {"Dairy"},
	"yogurt":    {"Dairy"},
	"butter":    {"Dairy"},
	"cream":     {"Dairy"},
	"egg":       {"Dairy"},
	"eggs":      {"Dairy"},
	"spinach":   {"Produce"},
	"lettuce":   {"Produce"},
	"kale":      {"Produce"},
	"apple":     {"Produce"},
	"apples":    {"Produce"},
	"banana":    {"Produce"},
	"bananas":   {"Produce"},
	"tomato":    {"Produce"},
	"tomatoes":  {"Produce"},
	"onion":     {"Produce"},
	"onions":    {"Produce"},
	"carrot":    {"Produce"},
	"carrots":   {"Produce"},
	"chicken":   {"Meat"},
	"beef":      {"Meat"},
	"pork":      {"Meat"},
	"turkey":    {"Meat", "Deli"},
	"bacon":     {"Meat"},
	"salmon":    {"Seafood"},
	"shrimp":    {"Seafood"},
	"tuna":      {"Seafood", "Pantry"},
	"fish":      {"Seafood"},
	"bread":     {"Bakery"},
	"bagel":     {"Bakery"},
	"bagels":    {"Bakery"},
	"muffin":    {"Bakery"},
	"muffins":   {"Bakery"},
	"cereal":    {"Pantry"},
	"pasta":     {"Pantry"},
	"rice":      {"Pantry"},
	"flour":     {"Pantry"},
	"sugar":     {"Pantry"},
	"coffee":    {"Beverages"},
	"tea":       {"Beverages"},
	"juice":     {"Beverages"},
	"soda":      {"Beverages"},
	"water":     {"Beverages"},
	"chips":     {"Snacks"},
	"crackers":  {"Snacks"},
	"cookies":   {"Snacks", "Bakery"},
	"chocolate": {"Snacks"},
	"ice":       {"Frozen"},
	"frozen":    {"Frozen"},
	"pizza":     {"Frozen", "Deli"},
	"detergent": {"Household"},
	"soap":      {"Household", "Personal Care"},
	"shampoo":   {"Personal Care"},
	"lotion":    {"Personal Care"},
}

// AllowedCategories returns the deduplicated union of categories allowed
// for the query's keywords, sorted for determinism. Returns nil when no
// keyword matched (no filter).
func AllowedCategories(query string) []string {
	seen := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		for _, cat := range categoryKeywords[tok] {
			seen[cat] = true
		}
	}
	if len(seen) == 0 {
		return nil
	}
	cats := make([]string, 0, len(seen))
	for cat := range seen {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	return cats
}
