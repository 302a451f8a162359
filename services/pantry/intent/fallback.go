// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package intent

import (
	"regexp"
	"strings"

	"github.com/AleutianAI/PantryFOSS/services/pantry/datatypes"
)

// =============================================================================
// Deterministic Fallback Classifier
// =============================================================================
//
// Keyword-trigger rules run whenever the model is disabled, unavailable,
// times out, or returns output the parser cannot salvage. The rules are
// ordered: the first matching rule wins, and anything unmatched defaults to
// product_search (the safest intent — it never mutates state).

// fallbackConfidence is the fixed confidence for rule-based classifications.
// Deliberately lower than minModelConfidence so a model-sourced result
// always outranks a fallback one.
const fallbackConfidence = 0.30

// fallbackRule maps trigger phrases to an intent. A rule fires when any
// trigger is a substring of the normalized utterance.
type fallbackRule struct {
	intent   datatypes.Intent
	triggers []string
}

// fallbackRules in priority order. Confirm and list come before add/remove
// so "that's everything, check out my order" does not trip the cart-noun
// rules first.
var fallbackRules = []fallbackRule{
	{datatypes.IntentConfirmOrder, []string{
		"checkout", "check out", "that's everything", "thats everything",
		"place the order", "place my order", "confirm", "i'm done", "im done",
	}},
	{datatypes.IntentListOrder, []string{
		"what's in my cart", "whats in my cart", "what's in the cart",
		"whats in the cart", "show my cart", "show the cart", "show cart",
		"view my cart", "view cart", "list my order", "list order",
		"show my order", "what's in my order", "whats in my order",
	}},
	{datatypes.IntentRemoveFromOrder, []string{
		"remove", "delete", "drop the", "drop that", "drop it",
		"take out", "take off", "get rid of", "don't want", "dont want",
	}},
	{datatypes.IntentUpdateOrder, []string{
		"change", "update", "make it", "make that", "make them",
		"instead of", "double", "triple", "set it to", "change to",
	}},
	{datatypes.IntentAddToOrder, []string{
		"add", "throw in", "toss in", "grab", "put in", "i'll take",
		"ill take", "more of", "another",
	}},
	{datatypes.IntentPromotionQuery, []string{
		"deal", "deals", "discount", "promo", "promotion", "coupon",
		"on sale", "special offer", "any offers",
	}},
}

// skuLikeRe matches literal catalog identifiers and packaging codes:
// a token of length >= 4 mixing letters and digits, e.g. "SP6BW1".
var skuLikeRe = regexp.MustCompile(`\b(?:[A-Za-z]+\d|\d+[A-Za-z])[A-Za-z0-9-]{2,}\b`)

// conceptualMarkers are words that signal exploratory, concept-level queries
// ("breakfast ideas", "healthy snacks") where semantic matching dominates.
var conceptualMarkers = []string{
	"ideas", "idea", "healthy", "snacks", "options", "suggestions",
	"something", "recommend", "breakfast", "dinner", "lunch", "meal",
	"recipes", "recipe", "easy", "quick",
}

// fallbackClassify applies the keyword-trigger table. It never fails and
// always returns a valid ClassificationResult.
func fallbackClassify(utterance string, entities []string) datatypes.ClassificationResult {
	norm := strings.ToLower(strings.TrimSpace(utterance))

	result := datatypes.ClassificationResult{
		Intent:     datatypes.IntentProductSearch,
		Confidence: fallbackConfidence,
		Entities:   entities,
		Source:     datatypes.SourceFallback,
	}

	for _, rule := range fallbackRules {
		for _, trigger := range rule.triggers {
			if strings.Contains(norm, trigger) {
				result.Intent = rule.intent
				return result
			}
		}
	}

	// No rule fired: product_search, with alpha chosen by query shape.
	result.Alpha = defaultAlpha(utterance)
	return result
}

// defaultAlpha picks a fusion weight from the shape of the query alone:
//
//   - literal catalog identifiers / packaging codes: near 0 (keyword-dominant
//     — "SP6BW1" must match the SKU field, not a semantic neighborhood)
//   - multi-word conceptual/exploratory phrasing: near 0.8 (semantic-dominant)
//   - short generic nouns: 0.5 (balanced)
func defaultAlpha(query string) float64 {
	if skuLikeRe.MatchString(query) {
		return 0.05
	}

	norm := strings.ToLower(query)
	words := strings.Fields(norm)

	for _, marker := range conceptualMarkers {
		for _, w := range words {
			if w == marker {
				return 0.8
			}
		}
	}
	if len(words) >= 4 {
		return 0.8
	}
	return 0.5
}
