// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/PantryFOSS/services/pantry/datatypes"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	searchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pantry",
		Subsystem: "search",
		Name:      "requests_total",
		Help:      "Search fusion requests by outcome: cached, live, retried, degraded",
	}, []string{"outcome"})

	searchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pantry",
		Subsystem: "search",
		Name:      "latency_seconds",
		Help:      "End-to-end latency of live search requests",
		Buckets:   prometheus.DefBuckets,
	})
)

var searchTracer = otel.Tracer("pantry/search")

// =============================================================================
// Fusion Request Builder
// =============================================================================

const (
	// defaultResultLimit bounds a single result page.
	defaultResultLimit = 10

	// retryBackoff is the pause before the single retry on a transient
	// collaborator failure.
	retryBackoff = 250 * time.Millisecond
)

// Searcher executes one hybrid query against the product catalog.
// Implementations must treat categories == nil as "no filter".
type Searcher interface {
	HybridSearch(ctx context.Context, query string, alpha float64, categories []string, limit int) ([]datatypes.Product, error)
}

// Fusion builds and executes search fusion requests: it clamps the alpha
// weight, consults the shared result cache, derives the category filter
// from the query text, and calls the Searcher with one retry. A search
// that still fails degrades to an empty result list rather than failing
// the conversational turn.
//
// Thread Safety: Safe for concurrent use.
type Fusion struct {
	searcher Searcher
	cache    *Cache
	limit    int
	logger   *slog.Logger

	// sleep is swappable in tests so the retry path runs instantly.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFusion creates a Fusion builder. A nil cache disables memoization;
// limit <= 0 uses the default page size.
func NewFusion(searcher Searcher, cache *Cache, limit int, logger *slog.Logger) *Fusion {
	if limit <= 0 {
		limit = defaultResultLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fusion{
		searcher: searcher,
		cache:    cache,
		limit:    limit,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

// Search runs the fusion pipeline for one query.
//
// Description:
//
//	The alpha weight is clamped to [0, 1] before anything else, so every
//	downstream consumer (cache key included) sees the same sanitized
//	value. Cache hits return immediately. Misses derive the category
//	allow-list from the query, call the Searcher, and retry once after a
//	short backoff on failure. If both attempts fail the method returns an
//	empty slice and degraded=true; it never returns an error, because a
//	broken search backend should read as "no results" to the user, not a
//	failed turn.
//
// Outputs:
//
//	products - Result page, possibly empty. Never nil.
//	degraded - True when both search attempts failed.
func (f *Fusion) Search(ctx context.Context, query string, alpha float64) (products []datatypes.Product, degraded bool) {
	alpha = datatypes.ClampUnit(alpha)

	ctx, span := searchTracer.Start(ctx, "search.Fusion.Search",
		trace.WithAttributes(
			attribute.Float64("search.alpha", alpha),
			attribute.Int("search.limit", f.limit),
		))
	defer span.End()

	key := CacheKey(query, alpha)
	if f.cache != nil {
		if cached, ok := f.cache.Get(key); ok {
			searchRequestsTotal.WithLabelValues("cached").Inc()
			span.SetAttributes(attribute.Bool("search.cache_hit", true))
			return cached, false
		}
	}

	categories := AllowedCategories(query)
	span.SetAttributes(attribute.StringSlice("search.categories", categories))

	start := time.Now()
	results, err := f.searcher.HybridSearch(ctx, query, alpha, categories, f.limit)
	if err != nil {
		f.logger.Warn("search attempt failed, retrying once",
			slog.Float64("alpha", alpha),
			slog.Any("error", err),
		)
		if serr := f.sleep(ctx, retryBackoff); serr != nil {
			span.SetStatus(codes.Error, serr.Error())
			searchRequestsTotal.WithLabelValues("degraded").Inc()
			return []datatypes.Product{}, true
		}
		searchRequestsTotal.WithLabelValues("retried").Inc()
		results, err = f.searcher.HybridSearch(ctx, query, alpha, categories, f.limit)
	}
	if err != nil {
		f.logger.Warn("search degraded to empty results",
			slog.Float64("alpha", alpha),
			slog.Any("error", err),
		)
		span.SetStatus(codes.Error, err.Error())
		searchRequestsTotal.WithLabelValues("degraded").Inc()
		return []datatypes.Product{}, true
	}
	searchLatency.Observe(time.Since(start).Seconds())
	searchRequestsTotal.WithLabelValues("live").Inc()

	if results == nil {
		results = []datatypes.Product{}
	}
	if f.cache != nil {
		f.cache.Put(key, results)
	}
	span.SetAttributes(attribute.Int("search.result_count", len(results)))
	return results, false
}

// sleepCtx pauses for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
