// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the wire and domain types shared across the Pantry
// services. It has no dependencies beyond the standard library so that every
// other package (session store, classifier, cart, search, LLM clients) can
// import it without cycles.
package datatypes

import (
	"time"
)

// =============================================================================
// Chat Messages
// =============================================================================

// Message is a single chat message exchanged with an LLM provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// =============================================================================
// Products
// =============================================================================

// Product is a read-only snapshot of a catalog entry owned by the search
// collaborator. The core never fabricates these; they enter the system only
// through search results and are cached inside session state and cart lines.
type Product struct {
	// SKU is the unique catalog identifier, used as the cart line key.
	SKU string `json:"sku"`

	// Name is the display name, e.g. "Organic Baby Spinach".
	Name string `json:"name"`

	// UnitPrice is the price of a single unit in the store currency.
	UnitPrice float64 `json:"unit_price"`

	// Category is the catalog category, e.g. "Produce" or "Dairy".
	Category string `json:"category"`

	// PackSize describes the unit/packaging, e.g. "5 oz bag".
	PackSize string `json:"pack_size,omitempty"`
}

// =============================================================================
// Intents
// =============================================================================

// Intent is the discrete classification of an utterance's purpose.
type Intent string

const (
	IntentProductSearch   Intent = "product_search"
	IntentAddToOrder      Intent = "add_to_order"
	IntentUpdateOrder     Intent = "update_order"
	IntentRemoveFromOrder Intent = "remove_from_order"
	IntentListOrder       Intent = "list_order"
	IntentConfirmOrder    Intent = "confirm_order"
	IntentPromotionQuery  Intent = "promotion_query"
)

// AllIntents lists every recognized intent, in prompt presentation order.
var AllIntents = []Intent{
	IntentProductSearch,
	IntentAddToOrder,
	IntentUpdateOrder,
	IntentRemoveFromOrder,
	IntentListOrder,
	IntentConfirmOrder,
	IntentPromotionQuery,
}

// Valid reports whether i is one of the recognized intents.
func (i Intent) Valid() bool {
	for _, known := range AllIntents {
		if i == known {
			return true
		}
	}
	return false
}

// IsCartOp reports whether the intent mutates or reads the cart (as opposed
// to searching the catalog or asking about promotions).
func (i Intent) IsCartOp() bool {
	switch i {
	case IntentAddToOrder, IntentUpdateOrder, IntentRemoveFromOrder,
		IntentListOrder, IntentConfirmOrder:
		return true
	}
	return false
}

// =============================================================================
// Classification
// =============================================================================

// ExtractionSource records which path produced a ClassificationResult.
type ExtractionSource string

const (
	// SourceModel means the LLM collaborator produced a well-formed response.
	SourceModel ExtractionSource = "model"

	// SourceFallback means the deterministic keyword classifier was used
	// (model disabled, unavailable, timed out, or returned malformed output).
	SourceFallback ExtractionSource = "fallback"
)

// ClassificationResult is the classifier's output for a single utterance.
//
// Alpha and Intent are deliberately separate fields: alpha is meaningful only
// for product_search and is zero for every other intent. Callers must branch
// on Intent before reading Alpha.
type ClassificationResult struct {
	// Intent is the resolved discrete intent. Always a member of AllIntents.
	Intent Intent `json:"intent"`

	// Confidence is the classifier's self-reported confidence in [0,1].
	// Fallback results carry a fixed confidence strictly lower than any
	// model-sourced confidence.
	Confidence float64 `json:"confidence"`

	// Alpha is the hybrid-search fusion weight in [0,1]. 0 = pure keyword
	// matching, 1 = pure semantic matching. Only set for product_search.
	Alpha float64 `json:"alpha"`

	// Entities are the resolved product references (SKUs or free-text
	// product mentions) the classification was made against.
	Entities []string `json:"entities,omitempty"`

	// Source records whether the model or the fallback produced this result.
	Source ExtractionSource `json:"source"`
}

// =============================================================================
// Conversation Turns
// =============================================================================

// Turn is a single conversation turn. Immutable once appended to a session.
type Turn struct {
	// ID is a unique turn identifier.
	ID string `json:"id"`

	// Role is "user" or "assistant".
	Role string `json:"role"`

	// Text is the raw utterance or reply text.
	Text string `json:"text"`

	// Timestamp is when the turn was recorded.
	Timestamp time.Time `json:"timestamp"`

	// Intent is the intent resolved for this turn (user turns only).
	Intent Intent `json:"intent,omitempty"`

	// Entities are the product references detected in this turn.
	Entities []string `json:"entities,omitempty"`
}

// ClampUnit clamps v into [0,1]. Used for alpha and confidence values so
// that malformed model output can never leak an out-of-range weight.
func ClampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
