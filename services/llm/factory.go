// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"fmt"
	"log/slog"
)

// =============================================================================
// Provider Factory
// =============================================================================

// NewChatClient creates a ChatClient for the named provider.
//
// Providers:
//
//	"openai"    - Raw net/http OpenAI-compatible client.
//	"anthropic" - Anthropic Messages API client.
//	"gemini"    - Gemini generateContent REST client.
//	"langchain" - langchaingo OpenAI binding (same wire protocol; used for
//	              deployments standardized on langchaingo options).
//	"none", ""  - No model. Returns (nil, nil); the classifier runs its
//	              deterministic fallback for every utterance.
func NewChatClient(provider, apiKey, model, baseURL string, logger *slog.Logger) (ChatClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch provider {
	case "openai":
		if apiKey == "" {
			return nil, fmt.Errorf("provider %q requires an API key", provider)
		}
		return NewOpenAIClientWithConfig(apiKey, model, baseURL), nil
	case "anthropic":
		if apiKey == "" {
			return nil, fmt.Errorf("provider %q requires an API key", provider)
		}
		return NewAnthropicClientWithConfig(apiKey, model, baseURL), nil
	case "gemini":
		if apiKey == "" {
			return nil, fmt.Errorf("provider %q requires an API key", provider)
		}
		return NewGeminiClientWithConfig(apiKey, model, baseURL), nil
	case "langchain":
		return NewLangChainClient(apiKey, model, baseURL)
	case "none", "":
		logger.Warn("no LLM provider configured; classification uses the keyword fallback only")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", provider)
	}
}
