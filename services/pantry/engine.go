// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pantry wires the conversational pieces together: each utterance is
// resolved against session context, classified, and dispatched to the cart
// state machine, the search fusion builder, or the promotions table. The
// engine is the only place that coordinates across those collaborators.
package pantry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/PantryFOSS/services/pantry/cart"
	"github.com/AleutianAI/PantryFOSS/services/pantry/datatypes"
	"github.com/AleutianAI/PantryFOSS/services/pantry/intent"
	"github.com/AleutianAI/PantryFOSS/services/pantry/resolver"
	"github.com/AleutianAI/PantryFOSS/services/pantry/search"
	"github.com/AleutianAI/PantryFOSS/services/pantry/session"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	engineTurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pantry",
		Subsystem: "engine",
		Name:      "turns_total",
		Help:      "Processed turns by intent and outcome: ok, clarification",
	}, []string{"intent", "outcome"})

	engineTurnLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pantry",
		Subsystem: "engine",
		Name:      "turn_latency_seconds",
		Help:      "End-to-end latency of one conversational turn",
		Buckets:   prometheus.DefBuckets,
	})
)

var engineTracer = otel.Tracer("pantry.engine")

// promptTurns is how many recent turns the classifier prompt sees.
const promptTurns = 3

// fallbackSearchAlpha is the fusion weight for engine-initiated searches
// (an add with nothing to resolve triggers a catalog search so the user can
// pick). Balanced weight; the classifier was never asked for one.
const fallbackSearchAlpha = 0.5

// =============================================================================
// Engine
// =============================================================================

// Engine processes conversational turns.
//
// Thread Safety: Safe for concurrent use. Per-session serialization is the
// session store's job; everything else the engine touches is stateless or
// internally synchronized.
type Engine struct {
	store      *session.Store
	classifier *intent.Classifier
	fusion     *search.Fusion
	promos     *PromotionTable
	logger     *slog.Logger

	// now is the clock, swappable in tests.
	now func() time.Time
}

// NewEngine creates an engine. promos may be nil (built-in demo offers);
// logger may be nil.
func NewEngine(store *session.Store, classifier *intent.Classifier, fusion *search.Fusion, promos *PromotionTable, logger *slog.Logger) *Engine {
	if promos == nil {
		promos = NewPromotionTable(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:      store,
		classifier: classifier,
		fusion:     fusion,
		promos:     promos,
		logger:     logger,
		now:        time.Now,
	}
}

// Process handles one utterance end to end.
//
// Description:
//
//	Under the session's lock: resolve references against session context,
//	merge any preference evidence, classify the utterance, then dispatch
//	on the intent. Ambiguity policy: remove operates on ALL matching cart
//	lines; update and add-to-existing-line request clarification (one
//	quantity cannot apply to several lines); a bare reference with no
//	context requests clarification rather than guessing. A confirm_order turn evicts the
//	session after the closure releases the lock.
//
//	Process returns an error only for transport-level failures (none
//	today); conversational trouble is expressed in the response itself.
func (e *Engine) Process(ctx context.Context, requestID string, req UtteranceRequest) (UtteranceResponse, error) {
	ctx, span := engineTracer.Start(ctx, "pantry.Engine.Process",
		trace.WithAttributes(
			attribute.String("session_id", req.SessionID),
			attribute.String("request_id", requestID),
		))
	defer span.End()

	start := e.now()
	resp := UtteranceResponse{RequestID: requestID}
	confirmed := false

	err := e.store.WithSession(ctx, req.SessionID, req.UserID, func(sess *session.Session) error {
		res := resolver.Resolve(req.Text, sess)
		for key, value := range resolver.DetectPreferences(req.Text) {
			sess.MergePreference(key, value)
		}

		cls := e.classifier.Classify(ctx, req.Text, sess.RecentTurns(promptTurns), res.EntityNames())
		resp.Intent = cls.Intent
		resp.Confidence = cls.Confidence
		resp.Source = cls.Source
		resp.ResolvedReferences = res.EntityNames()

		switch cls.Intent {
		case datatypes.IntentProductSearch:
			e.handleSearch(ctx, sess, req.Text, cls.Alpha, &resp)
		case datatypes.IntentAddToOrder:
			e.handleAdd(ctx, sess, req.Text, res, &resp)
		case datatypes.IntentUpdateOrder:
			e.handleUpdate(sess, res, &resp)
		case datatypes.IntentRemoveFromOrder:
			e.handleRemove(sess, res, &resp)
		case datatypes.IntentListOrder:
			resp.Cart = sess.Cart.List()
			resp.Reply = describeCart(resp.Cart)
		case datatypes.IntentConfirmOrder:
			snap := sess.Cart.Confirm()
			resp.Cart = snap
			resp.Reply = fmt.Sprintf("Order confirmed: %d item(s), total $%.2f. Thanks for shopping!",
				len(snap.Lines), snap.Total)
			confirmed = true
		case datatypes.IntentPromotionQuery:
			resp.Promotions = e.promos.Lookup(req.Text)
			resp.Reply = describePromotions(resp.Promotions)
		}

		if !confirmed {
			resp.Cart = sess.Cart.List()
		}

		e.recordTurns(sess, req.Text, cls, res, resp.Reply, resp.Clarification)
		return nil
	})
	if err != nil {
		span.SetAttributes(attribute.String("error", err.Error()))
		return resp, err
	}

	if confirmed {
		e.store.Evict(ctx, req.SessionID, "confirmed")
	}

	outcome := "ok"
	if resp.Clarification != "" {
		outcome = "clarification"
	}
	engineTurnsTotal.WithLabelValues(string(resp.Intent), outcome).Inc()
	engineTurnLatency.Observe(e.now().Sub(start).Seconds())
	span.SetAttributes(
		attribute.String("intent", string(resp.Intent)),
		attribute.String("outcome", outcome),
	)
	return resp, nil
}

// CartSnapshot returns the current cart for a session without consuming a
// conversational turn.
func (e *Engine) CartSnapshot(ctx context.Context, sessionID string) (cart.Snapshot, error) {
	var snap cart.Snapshot
	err := e.store.WithSession(ctx, sessionID, "", func(sess *session.Session) error {
		snap = sess.Cart.List()
		return nil
	})
	return snap, err
}

// =============================================================================
// Intent Handlers
// =============================================================================

// handleSearch runs the fusion pipeline and refreshes the session's
// last-results window.
func (e *Engine) handleSearch(ctx context.Context, sess *session.Session, query string, alpha float64, resp *UtteranceResponse) {
	products, degraded := e.fusion.Search(ctx, query, alpha)
	sess.SetLastResults(products)

	a := datatypes.ClampUnit(alpha)
	resp.Alpha = &a
	resp.Products = products
	resp.Degraded = degraded
	switch {
	case degraded:
		resp.Reply = "Search is temporarily unavailable — please try again in a moment."
	case len(products) == 0:
		resp.Reply = "I couldn't find anything matching that. Could you try different words?"
	default:
		resp.Reply = fmt.Sprintf("I found %d match(es). Say \"add the first one\" or name the product to add it.", len(products))
	}
}

// handleAdd applies an add_to_order turn.
//
// Quantity language that is relative ("2 more", "double it") reached the
// resolver as a cart-line reference and is applied as an update; fresh
// products resolve from search results. An add with nothing to resolve
// triggers a catalog search so the user can pick, instead of failing.
func (e *Engine) handleAdd(ctx context.Context, sess *session.Session, text string, res resolver.Resolution, resp *UtteranceResponse) {
	if res.Failed {
		resp.Clarification = res.Reason
		resp.Reply = res.Reason
		return
	}

	if applied := applyRelativeQuantity(sess, res, resp); applied {
		return
	}

	qty := 1
	if res.QtyOp == resolver.QtyExplicit && res.QtyValue > 0 {
		qty = res.QtyValue
	}

	if len(res.Products) > 0 {
		// Several name matches add the top-ranked result; ordinals resolve
		// to exactly one.
		p := res.Products[0]
		sess.Cart.Add(p, qty)
		resp.Reply = fmt.Sprintf("Added %d × %s ($%.2f each).", qty, p.Name, p.UnitPrice)
		return
	}

	if len(res.CartMatches) > 0 {
		// Ambiguous cart references clarify, same policy as update: one add
		// cannot meaningfully target several lines.
		if res.Ambiguous {
			resp.Clarification = res.Reason + " Which one should I add more of?"
			resp.Reply = resp.Clarification
			return
		}
		line := res.CartMatches[0]
		sess.Cart.Update(line.SKU, line.Quantity+qty)
		resp.Reply = fmt.Sprintf("Added %d more %s (now %d).", qty, line.Name, line.Quantity+qty)
		return
	}

	// Nothing to resolve: search the catalog so the user can pick.
	products, degraded := e.fusion.Search(ctx, text, fallbackSearchAlpha)
	sess.SetLastResults(products)
	resp.Products = products
	resp.Degraded = degraded
	if degraded || len(products) == 0 {
		resp.Clarification = "I couldn't find that product — could you describe it differently?"
	} else {
		resp.Clarification = "Which of these would you like to add?"
	}
	resp.Reply = resp.Clarification
}

// handleUpdate applies an update_order turn. Ambiguous references request
// clarification: one quantity cannot apply to several lines.
func (e *Engine) handleUpdate(sess *session.Session, res resolver.Resolution, resp *UtteranceResponse) {
	if res.Failed {
		resp.Clarification = res.Reason
		resp.Reply = res.Reason
		return
	}
	if res.Ambiguous {
		resp.Clarification = res.Reason + " Which one should I update?"
		resp.Reply = resp.Clarification
		return
	}

	line, ok := updateTarget(sess, res)
	if !ok {
		resp.Reply = "That item isn't in your cart, so there's nothing to update."
		return
	}

	switch res.QtyOp {
	case resolver.QtyExplicit:
		mut := sess.Cart.Update(line.SKU, res.QtyValue)
		if mut.Outcome == cart.OutcomeRemoved {
			resp.Reply = fmt.Sprintf("Removed %s from your order.", line.Name)
		} else {
			resp.Reply = fmt.Sprintf("Set %s to %d.", line.Name, res.QtyValue)
		}
	case resolver.QtyDelta:
		sess.Cart.Update(line.SKU, line.Quantity+res.QtyValue)
		resp.Reply = fmt.Sprintf("Added %d more %s (now %d).", res.QtyValue, line.Name, line.Quantity+res.QtyValue)
	case resolver.QtyMultiply:
		sess.Cart.Update(line.SKU, line.Quantity*res.QtyValue)
		resp.Reply = fmt.Sprintf("Set %s to %d.", line.Name, line.Quantity*res.QtyValue)
	default:
		resp.Clarification = fmt.Sprintf("What quantity of %s would you like?", line.Name)
		resp.Reply = resp.Clarification
	}
}

// handleRemove applies a remove_from_order turn. An ambiguous reference
// removes ALL matching lines.
func (e *Engine) handleRemove(sess *session.Session, res resolver.Resolution, resp *UtteranceResponse) {
	if res.Failed {
		resp.Clarification = res.Reason
		resp.Reply = res.Reason
		return
	}

	skus := removalSKUs(sess, res)
	if len(skus) == 0 {
		resp.Reply = "I didn't find that in your order — nothing was removed."
		return
	}

	mut := sess.Cart.RemoveAll(skus)
	if mut.Outcome == cart.OutcomeNoChange {
		resp.Reply = "I didn't find that in your order — nothing was removed."
		return
	}
	resp.Reply = fmt.Sprintf("Removed %d item(s) from your order.", len(mut.SKUs))
}

// =============================================================================
// Helpers
// =============================================================================

// applyRelativeQuantity handles "add 2 more" / "double it" style turns that
// the resolver bound to an existing cart line. Returns true when applied.
func applyRelativeQuantity(sess *session.Session, res resolver.Resolution, resp *UtteranceResponse) bool {
	if len(res.CartMatches) == 0 {
		return false
	}
	line := res.CartMatches[0]
	switch res.QtyOp {
	case resolver.QtyDelta:
		sess.Cart.Update(line.SKU, line.Quantity+res.QtyValue)
		resp.Reply = fmt.Sprintf("Added %d more %s (now %d).", res.QtyValue, line.Name, line.Quantity+res.QtyValue)
		return true
	case resolver.QtyMultiply:
		sess.Cart.Update(line.SKU, line.Quantity*res.QtyValue)
		resp.Reply = fmt.Sprintf("Set %s to %d.", line.Name, line.Quantity*res.QtyValue)
		return true
	}
	return false
}

// updateTarget picks the cart line an update applies to: a direct cart
// match first, then a resolved product already present in the cart.
func updateTarget(sess *session.Session, res resolver.Resolution) (cart.Line, bool) {
	if len(res.CartMatches) > 0 {
		return res.CartMatches[0], true
	}
	for _, p := range res.Products {
		if line, ok := sess.Cart.Get(p.SKU); ok {
			return line, true
		}
	}
	return cart.Line{}, false
}

// removalSKUs collects every cart SKU the resolution touched.
func removalSKUs(sess *session.Session, res resolver.Resolution) []string {
	var skus []string
	seen := make(map[string]bool)
	for _, line := range res.CartMatches {
		if !seen[line.SKU] {
			seen[line.SKU] = true
			skus = append(skus, line.SKU)
		}
	}
	for _, p := range res.Products {
		if _, ok := sess.Cart.Get(p.SKU); ok && !seen[p.SKU] {
			seen[p.SKU] = true
			skus = append(skus, p.SKU)
		}
	}
	return skus
}

// recordTurns appends the user turn and the assistant reply to the session
// history, so later anaphora and classifier prompts see both sides.
func (e *Engine) recordTurns(sess *session.Session, text string, cls datatypes.ClassificationResult, res resolver.Resolution, reply, clarification string) {
	sess.RecordTurn(datatypes.Turn{
		ID:        uuid.NewString(),
		Role:      "user",
		Text:      text,
		Timestamp: e.now(),
		Intent:    cls.Intent,
		Entities:  res.EntityNames(),
	})
	assistantText := reply
	if assistantText == "" {
		assistantText = clarification
	}
	if assistantText != "" {
		sess.RecordTurn(datatypes.Turn{
			ID:        uuid.NewString(),
			Role:      "assistant",
			Text:      assistantText,
			Timestamp: e.now(),
		})
	}
}

func describeCart(snap cart.Snapshot) string {
	if len(snap.Lines) == 0 {
		return "Your order is empty."
	}
	return fmt.Sprintf("Your order has %d item(s), total $%.2f.", len(snap.Lines), snap.Total)
}

func describePromotions(promos []Promotion) string {
	if len(promos) == 0 {
		return "There are no active promotions right now."
	}
	return fmt.Sprintf("There are %d active promotion(s).", len(promos))
}
