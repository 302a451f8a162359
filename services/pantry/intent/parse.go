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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AleutianAI/PantryFOSS/services/pantry/datatypes"
)

// =============================================================================
// Defensive Model-Response Parsing
// =============================================================================
//
// The contract with the model collaborator is a structured JSON object, but
// models wrap JSON in markdown fences, prepend prose, or truncate output.
// The parser extracts the FIRST well-formed JSON object from the response;
// anything it cannot salvage is a parse failure, and the caller falls back
// to the deterministic classifier. Parsing never panics and never surfaces
// an error to the end user.

// modelResponse is the JSON shape the prompt asks the model to emit.
type modelResponse struct {
	Intent     string   `json:"intent"`
	Confidence *float64 `json:"confidence"`
	Alpha      *float64 `json:"alpha"`
}

// minModelConfidence floors model-sourced confidence so that any model
// result outranks the fixed fallback confidence, even when the model
// reports an implausibly low number.
const minModelConfidence = 0.35

// parseModelResponse turns raw model output into a ClassificationResult.
// Returns an error when no usable JSON object is present or required fields
// are missing/invalid; the caller treats any error as "use the fallback".
func parseModelResponse(raw string, entities []string) (datatypes.ClassificationResult, error) {
	var zero datatypes.ClassificationResult

	obj, ok := extractFirstJSON(raw)
	if !ok {
		return zero, fmt.Errorf("no JSON object in model response")
	}

	var mr modelResponse
	if err := json.Unmarshal([]byte(obj), &mr); err != nil {
		return zero, fmt.Errorf("unmarshal model response: %w", err)
	}

	parsed := datatypes.Intent(strings.ToLower(strings.TrimSpace(mr.Intent)))
	if !parsed.Valid() {
		return zero, fmt.Errorf("model returned unknown intent %q", mr.Intent)
	}

	result := datatypes.ClassificationResult{
		Intent:   parsed,
		Entities: entities,
		Source:   datatypes.SourceModel,
	}

	if mr.Confidence == nil {
		return zero, fmt.Errorf("model response missing confidence")
	}
	result.Confidence = datatypes.ClampUnit(*mr.Confidence)
	if result.Confidence < minModelConfidence {
		result.Confidence = minModelConfidence
	}

	// Alpha is meaningful only for product_search; for every other intent
	// it stays zero regardless of what the model emitted.
	if parsed == datatypes.IntentProductSearch {
		if mr.Alpha != nil {
			result.Alpha = datatypes.ClampUnit(*mr.Alpha)
		} else {
			// Model chose the intent but not the weight; query-shape
			// default fills the gap.
			result.Alpha = -1 // caller substitutes defaultAlpha
		}
	}

	return result, nil
}

// extractFirstJSON returns the first balanced top-level JSON object in s,
// brace-matching outside of string literals. Markdown code fences are
// stripped first. Returns ok=false when no balanced object exists (e.g.
// truncated output or plain prose).
func extractFirstJSON(s string) (string, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
