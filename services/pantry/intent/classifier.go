// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package intent implements the intent & fusion classifier: a structured
// JSON contract with the LLM collaborator, defensive response parsing, and
// a deterministic keyword fallback that guarantees classification never
// fails and never blocks past its timeout.
package intent

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/PantryFOSS/services/llm"
	"github.com/AleutianAI/PantryFOSS/services/pantry/datatypes"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	classifyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pantry",
		Subsystem: "classifier",
		Name:      "requests_total",
		Help:      "Classifications by source and intent",
	}, []string{"source", "intent"})

	classifyFallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pantry",
		Subsystem: "classifier",
		Name:      "fallback_total",
		Help:      "Fallback activations by reason: disabled, timeout, error, parse_error",
	}, []string{"reason"})

	classifyModelLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pantry",
		Subsystem: "classifier",
		Name:      "model_latency_seconds",
		Help:      "Latency of classification model calls",
		Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.0, 3.0, 5.0},
	})
)

// =============================================================================
// OTel Tracer
// =============================================================================

var classifierTracer = otel.Tracer("pantry.intent.classifier")

// =============================================================================
// Classifier
// =============================================================================

// Config configures the model-backed classification path.
type Config struct {
	// Model is the model identifier sent to the chat client.
	Model string

	// Timeout bounds the model call. A timeout is treated as "model
	// unavailable", never as an error to propagate. Default: 3s.
	Timeout time.Duration

	// Temperature for the classification call. Classification wants
	// near-deterministic output. Default: 0.1.
	Temperature float64

	// MaxTokens limits the response; the contract is one small JSON
	// object. Default: 128.
	MaxTokens int

	// Enabled gates the model path entirely. When false every call takes
	// the deterministic fallback.
	Enabled bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:     3 * time.Second,
		Temperature: 0.1,
		MaxTokens:   128,
		Enabled:     true,
	}
}

// Classifier determines the discrete intent and the continuous fusion
// weight for an utterance. Stateless per call and safe for concurrent use.
//
// The classifier owns prompt construction, response parsing, confidence
// scoring, and the deterministic fallback; the chat client is only the
// transport to the model collaborator.
type Classifier struct {
	chat   llm.ChatClient
	cfg    Config
	logger *slog.Logger
}

// NewClassifier creates a classifier. A nil chat client is allowed and
// forces the fallback path (useful for tests and model-less deployments).
func NewClassifier(chat llm.ChatClient, cfg Config, logger *slog.Logger) *Classifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 128
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{chat: chat, cfg: cfg, logger: logger}
}

// Classify determines intent, confidence, and (for product_search) alpha.
//
// The model path applies a bounded timeout; any timeout, transport error,
// or malformed response silently degrades to the deterministic fallback.
// Classify never returns an error and never panics — every input yields a
// well-formed ClassificationResult with alpha clamped to [0,1].
func (c *Classifier) Classify(ctx context.Context, utterance string, recent []datatypes.Turn, entities []string) datatypes.ClassificationResult {
	ctx, span := classifierTracer.Start(ctx, "intent.Classifier.Classify",
		trace.WithAttributes(
			attribute.String("utterance_preview", truncateForLog(utterance, 80)),
			attribute.Int("recent_turns", len(recent)),
			attribute.Int("resolved_entities", len(entities)),
		),
	)
	defer span.End()

	result := c.classifyWithModel(ctx, utterance, recent, entities)

	span.SetAttributes(
		attribute.String("intent", string(result.Intent)),
		attribute.Float64("confidence", result.Confidence),
		attribute.Float64("alpha", result.Alpha),
		attribute.String("source", string(result.Source)),
	)
	classifyTotal.WithLabelValues(string(result.Source), string(result.Intent)).Inc()
	return result
}

// classifyWithModel runs the model path, degrading to the fallback on any
// failure.
func (c *Classifier) classifyWithModel(ctx context.Context, utterance string, recent []datatypes.Turn, entities []string) datatypes.ClassificationResult {
	if !c.cfg.Enabled || c.chat == nil {
		classifyFallbackTotal.WithLabelValues("disabled").Inc()
		return fallbackClassify(utterance, entities)
	}

	messages, err := buildPrompt(utterance, recent, entities)
	if err != nil {
		// Template failures are programming errors, but classification
		// still must not fail.
		c.logger.Error("classification prompt build failed",
			slog.String("error", err.Error()),
		)
		classifyFallbackTotal.WithLabelValues("error").Inc()
		return fallbackClassify(utterance, entities)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := c.chat.Chat(callCtx, messages, llm.ChatOptions{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	classifyModelLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		reason := "error"
		if callCtx.Err() == context.DeadlineExceeded {
			reason = "timeout"
		}
		c.logger.Warn("classification model unavailable, using fallback",
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
		classifyFallbackTotal.WithLabelValues(reason).Inc()
		return fallbackClassify(utterance, entities)
	}

	result, err := parseModelResponse(raw, entities)
	if err != nil {
		c.logger.Warn("malformed model response, using fallback",
			slog.String("error", err.Error()),
			slog.String("response_preview", truncateForLog(raw, 120)),
		)
		classifyFallbackTotal.WithLabelValues("parse_error").Inc()
		return fallbackClassify(utterance, entities)
	}

	// Model picked product_search without a weight: fill from query shape.
	if result.Intent == datatypes.IntentProductSearch && result.Alpha < 0 {
		result.Alpha = defaultAlpha(utterance)
	}
	return result
}

// truncateForLog shortens s for span attributes and log lines.
func truncateForLog(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
