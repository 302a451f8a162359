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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/AleutianAI/PantryFOSS/services/pantry/datatypes"
)

// =============================================================================
// OpenAI Wire Types
// =============================================================================

const defaultOpenAIBaseURL = "https://api.openai.com/v1/chat/completions"

type openaiRequest struct {
	Model               string              `json:"model"`
	Messages            []datatypes.Message `json:"messages"`
	Temperature         *float32            `json:"temperature,omitempty"`
	MaxCompletionTokens *int                `json:"max_completion_tokens,omitempty"`
}

type openaiResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Choices []openaiChoice `json:"choices"`
	Error   *openaiError   `json:"error,omitempty"`
}

type openaiChoice struct {
	Index        int               `json:"index"`
	Message      datatypes.Message `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

type openaiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// =============================================================================
// Client Implementation
// =============================================================================

// OpenAIClient implements ChatClient for OpenAI-compatible endpoints using
// raw net/http. Works against api.openai.com and against local
// OpenAI-compatible servers (vLLM, llama.cpp, Ollama's /v1).
//
// Thread Safety: OpenAIClient is safe for concurrent use.
type OpenAIClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// NewOpenAIClientWithConfig creates an OpenAIClient with explicit
// configuration. Useful for testing against mock servers or when
// configuration comes from a source other than environment variables.
func NewOpenAIClientWithConfig(apiKey, model, baseURL string) *OpenAIClient {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
	}
}

// NewOpenAIClient creates a client from OPENAI_API_KEY, OPENAI_MODEL, and
// OPENAI_BASE_URL. Defaults to "gpt-4o-mini" if OPENAI_MODEL is not set.
func NewOpenAIClient() (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("openai: API key is missing (OPENAI_API_KEY)")
	}
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}
	return NewOpenAIClientWithConfig(apiKey, model, os.Getenv("OPENAI_BASE_URL")), nil
}

// Chat sends messages and returns the assistant's response text.
//
// The per-request context carries the caller's timeout; a context deadline
// is returned as-is so the caller can distinguish timeout from transport
// failure if it cares (the classifier does not — both mean fallback).
func (c *OpenAIClient) Chat(ctx context.Context, messages []datatypes.Message, opts ChatOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}

	reqBody := openaiRequest{
		Model:    model,
		Messages: messages,
	}
	if opts.Temperature >= 0 {
		t := float32(opts.Temperature)
		reqBody.Temperature = &t
	}
	if opts.MaxTokens > 0 {
		reqBody.MaxCompletionTokens = &opts.MaxTokens
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("openai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("openai: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai: status %d: %s", resp.StatusCode, SafeLogString(truncate(string(body), 200)))
	}

	var parsed openaiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("openai: unmarshal response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("openai: API error %s: %s", parsed.Error.Type, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai: response contained no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// truncate shortens s for error messages.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
