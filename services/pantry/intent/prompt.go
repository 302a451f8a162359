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
	"bytes"
	"fmt"
	"text/template"

	"github.com/AleutianAI/PantryFOSS/services/pantry/datatypes"
)

// =============================================================================
// Prompt Builder
// =============================================================================

// maxPromptTurns bounds how much conversation history the prompt carries.
const maxPromptTurns = 3

// systemPromptTemplate instructs the model to classify the utterance and
// pick a fusion weight, responding with a single JSON object. The JSON
// contract replaces free-text substring scanning of the model's reasoning;
// the keyword table in fallback.go is the only non-JSON path.
const systemPromptTemplate = `You are the intent classifier for a grocery shopping assistant.

Classify the user's utterance into exactly one intent:
{{range .Intents}}  - {{.}}
{{end}}
Intent meanings:
  - product_search: the user wants to find products in the catalog
  - add_to_order: add a product to the cart
  - update_order: change the quantity of a cart line
  - remove_from_order: remove a cart line
  - list_order: show the current cart
  - confirm_order: finish and place the order
  - promotion_query: ask about deals, discounts, or promotions

For product_search ONLY, also choose "alpha", the hybrid search fusion
weight in [0,1]: 0 means pure keyword matching, 1 means pure semantic
matching. Literal product codes or SKUs want alpha near 0; short generic
product nouns want alpha near 0.5; exploratory or conceptual phrasing
("healthy breakfast ideas") wants alpha near 0.8.
{{if .Turns}}
Recent conversation:
{{range .Turns}}  {{.Role}}: {{.Text}}
{{end}}{{end}}{{if .Entities}}
The following product references were already resolved from context:
{{range .Entities}}  - {{.}}
{{end}}{{end}}
Respond with ONLY a single JSON object, no explanation and no markdown:
{"intent": "<intent>", "confidence": <0..1>, "alpha": <0..1, product_search only>}
`

// promptData feeds the system prompt template.
type promptData struct {
	Intents  []datatypes.Intent
	Turns    []datatypes.Turn
	Entities []string
}

var promptTmpl = template.Must(template.New("classify").Parse(systemPromptTemplate))

// buildPrompt renders the classification messages for the model: a system
// prompt with the intent contract plus up to maxPromptTurns of history, and
// the utterance as the user message.
func buildPrompt(utterance string, recent []datatypes.Turn, entities []string) ([]datatypes.Message, error) {
	if len(recent) > maxPromptTurns {
		recent = recent[len(recent)-maxPromptTurns:]
	}

	var buf bytes.Buffer
	err := promptTmpl.Execute(&buf, promptData{
		Intents:  datatypes.AllIntents,
		Turns:    recent,
		Entities: entities,
	})
	if err != nil {
		return nil, fmt.Errorf("render classification prompt: %w", err)
	}

	return []datatypes.Message{
		{Role: "system", Content: buf.String()},
		{Role: "user", Content: utterance},
	}, nil
}
