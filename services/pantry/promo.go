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
	"strings"
)

// =============================================================================
// Promotions
// =============================================================================

// Promotion is one active promotional offer.
type Promotion struct {
	// Code is the promotion identifier.
	Code string `json:"code"`

	// Description is the customer-facing offer text.
	Description string `json:"description"`

	// Category restricts the offer to one catalog category. Empty means
	// storewide.
	Category string `json:"category,omitempty"`

	// Keywords trigger this promotion when present in the utterance.
	Keywords []string `json:"-"`
}

// PromotionTable answers promotion_query turns from a static offer list.
// Offers ship with the deployment; a live promotions backend replaces this
// table behind the same Lookup signature.
type PromotionTable struct {
	offers []Promotion
}

// NewPromotionTable creates a table with the given offers. Nil uses the
// built-in demo offers.
func NewPromotionTable(offers []Promotion) *PromotionTable {
	if offers == nil {
		offers = defaultPromotions
	}
	return &PromotionTable{offers: offers}
}

// Lookup returns the offers whose keywords or category appear in the
// utterance. An utterance with no specific match returns every offer, so
// "any deals today?" lists the whole table.
func (t *PromotionTable) Lookup(utterance string) []Promotion {
	lower := strings.ToLower(utterance)
	var matched []Promotion
	for _, offer := range t.offers {
		if promotionMatches(offer, lower) {
			matched = append(matched, offer)
		}
	}
	if matched == nil {
		matched = append(matched, t.offers...)
	}
	return matched
}

func promotionMatches(offer Promotion, lower string) bool {
	if offer.Category != "" && strings.Contains(lower, strings.ToLower(offer.Category)) {
		return true
	}
	for _, kw := range offer.Keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

var defaultPromotions = []Promotion{
	{
		Code:        "PRODUCE10",
		Description: "10% off all fresh produce this week",
		Category:    "Produce",
		Keywords:    []string{"produce", "vegetable", "vegetables", "fruit", "fruits", "spinach", "salad"},
	},
	{
		Code:        "DAIRYBOGO",
		Description: "Buy one get one free on select dairy items",
		Category:    "Dairy",
		Keywords:    []string{"dairy", "milk", "cheese", "yogurt"},
	},
	{
		Code:        "FREESHIP50",
		Description: "Free delivery on orders over $50",
		Keywords:    []string{"delivery", "shipping"},
	},
}
