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
// Gemini Wire Types
// =============================================================================

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// geminiRequest is the generateContent request body. Gemini has no
// "assistant" role; prior model turns use role "model", and the system
// prompt rides in systemInstruction.
type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     *float32 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
	Error      *geminiError      `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// =============================================================================
// Client Implementation
// =============================================================================

// GeminiClient implements ChatClient against the Gemini generateContent REST
// API. The API key travels as a query parameter, so any URL that leaks into
// an error message must be redacted.
//
// Thread Safety: GeminiClient is safe for concurrent use.
type GeminiClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// NewGeminiClientWithConfig creates a GeminiClient with explicit
// configuration. baseURL is overridable for tests against mock servers.
func NewGeminiClientWithConfig(apiKey, model, baseURL string) *GeminiClient {
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &GeminiClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
	}
}

// NewGeminiClient creates a client from GEMINI_API_KEY and GEMINI_MODEL.
// Defaults to "gemini-2.0-flash" if the model is not set.
func NewGeminiClient() (*GeminiClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is missing (GEMINI_API_KEY)")
	}
	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return NewGeminiClientWithConfig(apiKey, model, ""), nil
}

// Chat sends messages and returns the model's response text.
func (c *GeminiClient) Chat(ctx context.Context, messages []datatypes.Message, opts ChatOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = c.model
	}

	var system *geminiContent
	contents := make([]geminiContent, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			if system == nil {
				system = &geminiContent{Parts: []geminiPart{{Text: m.Content}}}
			} else {
				system.Parts = append(system.Parts, geminiPart{Text: m.Content})
			}
		case "assistant":
			contents = append(contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}

	reqBody := geminiRequest{
		Contents:          contents,
		SystemInstruction: system,
	}
	genCfg := &geminiGenerationConfig{}
	if opts.Temperature >= 0 {
		t := float32(opts.Temperature)
		genCfg.Temperature = &t
	}
	if opts.MaxTokens > 0 {
		genCfg.MaxOutputTokens = &opts.MaxTokens
	}
	if genCfg.Temperature != nil || genCfg.MaxOutputTokens != nil {
		reqBody.GenerationConfig = genCfg
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("gemini: build request: %s", SafeLogString(err.Error()))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The transport error string can contain the full URL with the key.
		return "", fmt.Errorf("gemini: request failed: %s", SafeLogString(err.Error()))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("gemini: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini: status %d: %s", resp.StatusCode, SafeLogString(truncate(string(body), 200)))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("gemini: unmarshal response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("gemini: API error %s: %s", parsed.Error.Status, SafeLogString(parsed.Error.Message))
	}
	if len(parsed.Candidates) == 0 {
		return "", fmt.Errorf("gemini: response contained no candidates")
	}

	var text strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("gemini: candidate contained no text")
	}
	return text.String(), nil
}
