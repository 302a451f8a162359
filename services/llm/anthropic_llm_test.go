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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AleutianAI/PantryFOSS/services/pantry/datatypes"
)

func TestAnthropicChat(t *testing.T) {
	var gotReq anthropicRequest
	var gotHeaders http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(anthropicResponse{
			Type: "message",
			Content: []anthropicContentBlock{
				{Type: "text", Text: `{"intent": "product_search"`},
				{Type: "text", Text: `, "confidence": 0.9}`},
			},
		})
	}))
	defer server.Close()

	client := NewAnthropicClientWithConfig("sk-ant-api03-test", "claude-3-5-haiku-20241022", server.URL)
	got, err := client.Chat(context.Background(), []datatypes.Message{
		{Role: "system", Content: "You classify grocery utterances."},
		{Role: "user", Content: "add spinach"},
	}, ChatOptions{Temperature: 0, MaxTokens: 256})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	// Text blocks concatenate in order.
	if got != `{"intent": "product_search", "confidence": 0.9}` {
		t.Errorf("response text = %q", got)
	}
	if gotHeaders.Get("x-api-key") != "sk-ant-api03-test" {
		t.Errorf("x-api-key = %q", gotHeaders.Get("x-api-key"))
	}
	if gotHeaders.Get("anthropic-version") != anthropicAPIVersion {
		t.Errorf("anthropic-version = %q", gotHeaders.Get("anthropic-version"))
	}

	// System role lifts into the top-level field, leaving only the user turn.
	if gotReq.System != "You classify grocery utterances." {
		t.Errorf("system = %q", gotReq.System)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
	if gotReq.MaxTokens != 256 {
		t.Errorf("max_tokens = %d", gotReq.MaxTokens)
	}
}

func TestAnthropicChatErrorRedactsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"type": "authentication_error", "message": "invalid key sk-ant-REDACTED"}}`))
	}))
	defer server.Close()

	client := NewAnthropicClientWithConfig("bad", "m", server.URL)
	_, err := client.Chat(context.Background(), []datatypes.Message{{Role: "user", Content: "hi"}}, ChatOptions{})
	if err == nil {
		t.Fatal("expected error on 401")
	}
	if strings.Contains(err.Error(), "sk-ant-api03-aaaa") {
		t.Errorf("error leaks the key: %v", err)
	}
	if !strings.Contains(err.Error(), "[REDACTED:anthropic_key]") {
		t.Errorf("error not redacted: %v", err)
	}
}

func TestAnthropicChatEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(anthropicResponse{Type: "message"})
	}))
	defer server.Close()

	client := NewAnthropicClientWithConfig("k", "m", server.URL)
	_, err := client.Chat(context.Background(), []datatypes.Message{{Role: "user", Content: "hi"}}, ChatOptions{})
	if err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestAnthropicChatContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewAnthropicClientWithConfig("k", "m", server.URL)
	_, err := client.Chat(ctx, []datatypes.Message{{Role: "user", Content: "hi"}}, ChatOptions{})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
