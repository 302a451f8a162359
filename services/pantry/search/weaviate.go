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
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/AleutianAI/PantryFOSS/services/pantry/datatypes"
)

// =============================================================================
// Weaviate Hybrid Searcher
// =============================================================================

// defaultProductClass is the Weaviate class holding the product catalog.
const defaultProductClass = "Product"

// WeaviateSearcher implements Searcher against a Weaviate instance using
// GraphQL hybrid queries. The alpha fusion weight passes straight through
// to Weaviate; the core does no re-ranking — result order is the
// collaborator's own ranking.
//
// Thread Safety: Safe for concurrent use (the underlying client is).
type WeaviateSearcher struct {
	client *weaviate.Client
	class  string
	logger *slog.Logger
}

// NewWeaviateSearcher creates a searcher for the given Weaviate host.
//
// Inputs:
//
//	host   - Host:port of the Weaviate instance, e.g. "localhost:8080".
//	scheme - "http" or "https".
//	class  - Product class name. Empty uses "Product".
//	logger - Logger instance. May be nil.
func NewWeaviateSearcher(host, scheme, class string, logger *slog.Logger) (*WeaviateSearcher, error) {
	if class == "" {
		class = defaultProductClass
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := weaviate.NewClient(weaviate.Config{Host: host, Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("weaviate: create client: %w", err)
	}
	return &WeaviateSearcher{client: client, class: class, logger: logger}, nil
}

// HybridSearch runs a hybrid (BM25 + vector) query with the given fusion
// weight and optional category restriction.
func (w *WeaviateSearcher) HybridSearch(ctx context.Context, query string, alpha float64, categories []string, limit int) ([]datatypes.Product, error) {
	hybrid := w.client.GraphQL().HybridArgumentBuilder().
		WithQuery(query).
		WithAlpha(float32(alpha))

	get := w.client.GraphQL().Get().
		WithClassName(w.class).
		WithFields(
			graphql.Field{Name: "sku"},
			graphql.Field{Name: "name"},
			graphql.Field{Name: "price"},
			graphql.Field{Name: "category"},
			graphql.Field{Name: "packSize"},
		).
		WithHybrid(hybrid).
		WithLimit(limit)

	if len(categories) > 0 {
		get = get.WithWhere(filters.Where().
			WithPath([]string{"category"}).
			WithOperator(filters.ContainsAny).
			WithValueText(categories...))
	}

	resp, err := get.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate: hybrid query: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("weaviate: graphql error: %s", resp.Errors[0].Message)
	}

	return w.parseProducts(resp.Data)
}

// parseProducts walks the GraphQL response shape Get -> {class} -> [props].
func (w *WeaviateSearcher) parseProducts(data map[string]models.JSONObject) ([]datatypes.Product, error) {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("weaviate: response missing Get block")
	}
	rows, ok := get[w.class].([]interface{})
	if !ok {
		// Class key absent means zero results, not a malformed response.
		return nil, nil
	}

	products := make([]datatypes.Product, 0, len(rows))
	for _, row := range rows {
		props, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		p := datatypes.Product{
			SKU:      stringProp(props, "sku"),
			Name:     stringProp(props, "name"),
			Category: stringProp(props, "category"),
			PackSize: stringProp(props, "packSize"),
		}
		if price, ok := props["price"].(float64); ok {
			p.UnitPrice = price
		}
		if p.SKU == "" {
			w.logger.Warn("weaviate: dropping result without sku",
				slog.String("name", p.Name),
			)
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

func stringProp(props map[string]interface{}, key string) string {
	s, _ := props[key].(string)
	return s
}
