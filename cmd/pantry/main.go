// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command pantry starts the Pantry conversational shopping API server.
//
// Pantry turns free-form grocery utterances into catalog searches and cart
// operations:
//   - Intent & fusion-weight classification (LLM with deterministic fallback)
//   - Anaphora and ordinal reference resolution against session context
//   - Per-session cart state machine with idle-TTL eviction
//   - Hybrid search via Weaviate with a bounded result cache
//
// Usage:
//
//	go run ./cmd/pantry serve
//	PANTRY_PORT=9090 go run ./cmd/pantry serve
//
// With a classification model:
//
//	LLM_PROVIDER=openai LLM_API_KEY=sk-... go run ./cmd/pantry serve
//
// With a local OpenAI-compatible server:
//
//	LLM_PROVIDER=langchain LLM_BASE_URL=http://localhost:11434/v1 LLM_MODEL=llama3 go run ./cmd/pantry serve
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/pantry/health
//
//	# One conversational turn
//	curl -X POST http://localhost:8080/v1/pantry/utterance \
//	  -H "Content-Type: application/json" \
//	  -d '{"session_id": "s1", "text": "do you have organic spinach?"}'
//
//	# Current cart
//	curl http://localhost:8080/v1/pantry/orders/s1
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/PantryFOSS/services/llm"
	"github.com/AleutianAI/PantryFOSS/services/pantry"
	"github.com/AleutianAI/PantryFOSS/services/pantry/intent"
	"github.com/AleutianAI/PantryFOSS/services/pantry/search"
	"github.com/AleutianAI/PantryFOSS/services/pantry/session"
	badgerstore "github.com/AleutianAI/PantryFOSS/services/pantry/storage/badger"
)

func main() {
	root := &cobra.Command{
		Use:   "pantry",
		Short: "Pantry conversational shopping API",
	}
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation so inbound traceparent headers flow
	// through handlers and spans.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if cfg.TraceStdout {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("create stdout trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		otel.SetTracerProvider(tp)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	// Session archive: graceful degradation when the directory is not
	// configured or BadgerDB cannot open.
	var archive session.Archive
	if cfg.ArchiveDir != "" {
		dbCfg := badgerstore.DefaultConfig()
		dbCfg.Path = cfg.ArchiveDir
		db, err := badgerstore.OpenDB(dbCfg)
		if err != nil {
			slog.Warn("Session archive BadgerDB unavailable, sessions are in-memory only",
				slog.String("path", cfg.ArchiveDir),
				slog.String("error", err.Error()),
			)
		} else {
			defer func() { _ = db.Close() }()
			archive = badgerstore.NewSessionArchive(db, 0, logger)
			slog.Info("Session archive BadgerDB opened", slog.String("path", cfg.ArchiveDir))
		}
	}
	store := session.NewStore(cfg.SessionTTL, archive, logger)

	// Search backend.
	searcher, err := search.NewWeaviateSearcher(cfg.WeaviateHost, cfg.WeaviateScheme, cfg.WeaviateClass, logger)
	if err != nil {
		return fmt.Errorf("create weaviate searcher: %w", err)
	}
	cache := search.NewCache(cfg.SearchCacheTTL, cfg.SearchCacheSize)
	fusion := search.NewFusion(searcher, cache, cfg.SearchLimit, logger)

	// Classification model. A "none" provider yields a nil client and the
	// classifier runs its deterministic fallback for every utterance.
	chat, err := llm.NewChatClient(cfg.LLMProvider, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMBaseURL, logger)
	if err != nil {
		return fmt.Errorf("create chat client: %w", err)
	}
	clsCfg := intent.DefaultConfig()
	clsCfg.Model = cfg.LLMModel
	clsCfg.Timeout = cfg.ClassifyTimeout
	clsCfg.Enabled = chat != nil
	classifier := intent.NewClassifier(chat, clsCfg, logger)

	engine := pantry.NewEngine(store, classifier, fusion, nil, logger)
	handlers := pantry.NewHandlers(engine, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("pantry"))
	if cfg.Debug {
		router.Use(gin.Logger())
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	pantry.RegisterRoutes(v1, handlers)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server listening",
			slog.String("addr", srv.Addr),
			slog.String("llm_provider", cfg.LLMProvider),
			slog.Duration("session_ttl", cfg.SessionTTL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := store.RunSweeper(gctx, cfg.SweepInterval); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("Server stopped")
	return nil
}
