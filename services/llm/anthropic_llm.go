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
	"strings"
	"time"

	"github.com/AleutianAI/PantryFOSS/services/pantry/datatypes"
)

// =============================================================================
// Anthropic Wire Types
// =============================================================================

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion     = "2023-06-01"

	// The Messages API requires max_tokens; classification replies are a
	// small JSON object so this ceiling is generous.
	anthropicDefaultMaxTokens = 1024
)

// anthropicRequest is the Messages API request body. System prompts are a
// top-level field, not a message role.
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature *float32           `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Type       string                  `json:"type"`
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Error      *anthropicError         `json:"error,omitempty"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// =============================================================================
// Client Implementation
// =============================================================================

// AnthropicClient implements ChatClient against the Anthropic Messages API.
//
// Thread Safety: AnthropicClient is safe for concurrent use.
type AnthropicClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// NewAnthropicClientWithConfig creates an AnthropicClient with explicit
// configuration. baseURL is overridable for tests against mock servers.
func NewAnthropicClientWithConfig(apiKey, model, baseURL string) *AnthropicClient {
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	return &AnthropicClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
	}
}

// NewAnthropicClient creates a client from ANTHROPIC_API_KEY and
// ANTHROPIC_MODEL. Defaults to "claude-3-5-haiku-20241022" if the model is
// not set.
func NewAnthropicClient() (*AnthropicClient, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: API key is missing (ANTHROPIC_API_KEY)")
	}
	model := os.Getenv("ANTHROPIC_MODEL")
	if model == "" {
		model = "claude-3-5-haiku-20241022"
	}
	return NewAnthropicClientWithConfig(apiKey, model, ""), nil
}

// Chat sends messages and returns the assistant's response text.
//
// System-role messages are lifted into the request's top-level system field,
// concatenated in order if there are several. Upstream error bodies pass
// through SafeLogString before wrapping, since Anthropic echoes request
// details on 4xx.
func (c *AnthropicClient) Chat(ctx context.Context, messages []datatypes.Message, opts ChatOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	var systemParts []string
	wireMessages := make([]anthropicMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			systemParts = append(systemParts, m.Content)
			continue
		}
		wireMessages = append(wireMessages, anthropicMessage{Role: m.Role, Content: m.Content})
	}

	reqBody := anthropicRequest{
		Model:     model,
		MaxTokens: maxTokens,
		System:    strings.Join(systemParts, "\n\n"),
		Messages:  wireMessages,
	}
	if opts.Temperature >= 0 {
		t := float32(opts.Temperature)
		reqBody.Temperature = &t
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("anthropic: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("anthropic: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("anthropic: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic: status %d: %s", resp.StatusCode, SafeLogString(truncate(string(body), 200)))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("anthropic: unmarshal response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("anthropic: API error %s: %s", parsed.Error.Type, SafeLogString(parsed.Error.Message))
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("anthropic: response contained no text content")
	}
	return text.String(), nil
}
