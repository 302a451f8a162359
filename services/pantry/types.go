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
	"github.com/AleutianAI/PantryFOSS/services/pantry/cart"
	"github.com/AleutianAI/PantryFOSS/services/pantry/datatypes"
)

// =============================================================================
// Request Types
// =============================================================================

// UtteranceRequest is the payload for POST /v1/pantry/utterance.
type UtteranceRequest struct {
	// SessionID identifies the conversation. The session is created on
	// first use.
	SessionID string `json:"session_id" binding:"required"`

	// UserID optionally identifies the user behind the session.
	UserID string `json:"user_id,omitempty"`

	// Text is the raw utterance.
	Text string `json:"text" binding:"required"`
}

// =============================================================================
// Response Types
// =============================================================================

// UtteranceResponse is the engine's answer to one utterance.
type UtteranceResponse struct {
	// RequestID echoes the request correlation ID.
	RequestID string `json:"request_id"`

	// Intent is the classified intent for the utterance.
	Intent datatypes.Intent `json:"intent"`

	// Confidence is the classifier's confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// Source is "model" or "fallback".
	Source datatypes.ExtractionSource `json:"source"`

	// Alpha is the fusion weight used, present only for product_search.
	Alpha *float64 `json:"alpha,omitempty"`

	// Reply is the assistant's natural-language answer.
	Reply string `json:"reply"`

	// Clarification is set when the engine needs the user to disambiguate
	// before it will act. When set, no cart mutation happened this turn.
	Clarification string `json:"clarification,omitempty"`

	// ResolvedReferences names the products the utterance was resolved to.
	ResolvedReferences []string `json:"resolved_references,omitempty"`

	// Products carries search results for product_search turns.
	Products []datatypes.Product `json:"products,omitempty"`

	// Promotions carries matches for promotion_query turns.
	Promotions []Promotion `json:"promotions,omitempty"`

	// Cart is the session's cart after this turn.
	Cart cart.Snapshot `json:"cart"`

	// Degraded is true when the search collaborator was unavailable and
	// the result list is an empty degradation, not a true zero-match.
	Degraded bool `json:"degraded,omitempty"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
