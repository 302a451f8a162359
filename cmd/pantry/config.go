// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

// Config is the service configuration, populated from the environment.
type Config struct {
	// Port is the HTTP listen port.
	Port int `env:"PANTRY_PORT" envDefault:"8080"`

	// Debug enables Gin debug mode and request logging.
	Debug bool `env:"PANTRY_DEBUG" envDefault:"false"`

	// SessionTTL is the idle window before a session is evicted.
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"30m"`

	// SweepInterval is how often the idle sweeper runs.
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1m"`

	// ArchiveDir is the BadgerDB directory for session archives. Empty
	// disables archiving (sessions live in memory only).
	ArchiveDir string `env:"SESSION_ARCHIVE_DIR"`

	// WeaviateHost is the host:port of the Weaviate instance.
	WeaviateHost string `env:"WEAVIATE_HOST" envDefault:"localhost:8080"`

	// WeaviateScheme is "http" or "https".
	WeaviateScheme string `env:"WEAVIATE_SCHEME" envDefault:"http"`

	// WeaviateClass is the product class name.
	WeaviateClass string `env:"WEAVIATE_CLASS" envDefault:"Product"`

	// SearchLimit is the result page size.
	SearchLimit int `env:"SEARCH_LIMIT" envDefault:"10"`

	// SearchCacheTTL is the result cache lifetime.
	SearchCacheTTL time.Duration `env:"SEARCH_CACHE_TTL" envDefault:"5m"`

	// SearchCacheSize is the result cache capacity in entries.
	SearchCacheSize int `env:"SEARCH_CACHE_SIZE" envDefault:"100"`

	// LLMProvider selects the chat client: "openai", "anthropic", "gemini",
	// "langchain", "none".
	LLMProvider string `env:"LLM_PROVIDER" envDefault:"none"`

	// LLMAPIKey is the provider API key.
	LLMAPIKey string `env:"LLM_API_KEY"`

	// LLMModel is the classification model identifier.
	LLMModel string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`

	// LLMBaseURL overrides the provider endpoint, for local
	// OpenAI-compatible servers.
	LLMBaseURL string `env:"LLM_BASE_URL"`

	// ClassifyTimeout bounds one classification model call.
	ClassifyTimeout time.Duration `env:"CLASSIFY_TIMEOUT" envDefault:"3s"`

	// TraceStdout enables the stdout span exporter.
	TraceStdout bool `env:"TRACE_STDOUT" envDefault:"false"`
}

// loadConfig parses the environment into a Config.
func loadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
