// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the language-model collaborator clients used by the
// intent classifier. The core only needs simple bounded-timeout chat — no
// tool calls, no streaming — so the interface is deliberately minimal.
package llm

import (
	"context"

	"github.com/AleutianAI/PantryFOSS/services/pantry/datatypes"
)

// ChatClient is the minimal interface the classifier needs.
//
// Description:
//
//	Sends a message list and returns the assistant's response text. Any
//	non-2xx status, timeout, or transport failure is returned as an error;
//	the classifier treats all of them identically (fallback path).
//
// Thread Safety: Implementations must be safe for concurrent use.
type ChatClient interface {
	// Chat sends messages and returns the assistant's response text.
	Chat(ctx context.Context, messages []datatypes.Message, opts ChatOptions) (string, error)
}

// ChatOptions holds provider-agnostic options for a chat request.
type ChatOptions struct {
	// Model specifies the model for this request. If empty, the client's
	// configured default is used.
	Model string

	// Temperature controls randomness (0.0-1.0). Classification calls
	// want near-deterministic output.
	Temperature float64

	// MaxTokens limits the response length.
	MaxTokens int
}
