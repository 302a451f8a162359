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
	"context"
	"fmt"

	lcllms "github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"

	"github.com/AleutianAI/PantryFOSS/services/pantry/datatypes"
)

// =============================================================================
// LangChain-Backed Client
// =============================================================================

// LangChainClient implements ChatClient on top of langchaingo's OpenAI
// binding. Compared to the raw OpenAIClient it picks up langchaingo's
// retry/token accounting behavior for free; it exists mainly for
// deployments that already standardize on langchaingo option wiring
// (base URL rewriting for local OpenAI-compatible servers).
//
// Thread Safety: Safe for concurrent use.
type LangChainClient struct {
	model *lcopenai.LLM
}

// NewLangChainClient creates a LangChainClient.
//
// Inputs:
//
//	apiKey  - API token. Local OpenAI-compatible servers accept any value.
//	model   - Default model identifier.
//	baseURL - Optional endpoint override for local servers. Empty uses
//	          the provider default.
func NewLangChainClient(apiKey, model, baseURL string) (*LangChainClient, error) {
	opts := []lcopenai.Option{
		lcopenai.WithToken(apiKey),
		lcopenai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, lcopenai.WithBaseURL(baseURL))
	}
	m, err := lcopenai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("langchain: create client: %w", err)
	}
	return &LangChainClient{model: m}, nil
}

// Chat sends messages and returns the assistant's response text.
func (c *LangChainClient) Chat(ctx context.Context, messages []datatypes.Message, opts ChatOptions) (string, error) {
	content := make([]lcllms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, lcllms.TextParts(roleToMessageType(m.Role), m.Content))
	}

	callOpts := []lcllms.CallOption{
		lcllms.WithTemperature(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		callOpts = append(callOpts, lcllms.WithMaxTokens(opts.MaxTokens))
	}
	if opts.Model != "" {
		callOpts = append(callOpts, lcllms.WithModel(opts.Model))
	}

	resp, err := c.model.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		return "", fmt.Errorf("langchain: generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("langchain: response contained no choices")
	}
	return resp.Choices[0].Content, nil
}

// roleToMessageType maps wire roles to langchaingo message types.
func roleToMessageType(role string) lcllms.ChatMessageType {
	switch role {
	case "system":
		return lcllms.ChatMessageTypeSystem
	case "assistant":
		return lcllms.ChatMessageTypeAI
	default:
		return lcllms.ChatMessageTypeHuman
	}
}
