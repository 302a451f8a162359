// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolver rewrites ambiguous phrases ("that", "the first one",
// "2 more of those") into concrete product references using session context.
// It is entirely deterministic — cheap rules only, never the language model.
package resolver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/AleutianAI/PantryFOSS/services/pantry/cart"
	"github.com/AleutianAI/PantryFOSS/services/pantry/datatypes"
	"github.com/AleutianAI/PantryFOSS/services/pantry/session"
)

// =============================================================================
// Resolution Types
// =============================================================================

// QuantityOp classifies the quantity language found in an utterance.
type QuantityOp int

const (
	// QtyNone means no quantity language was found; adds default to 1.
	QtyNone QuantityOp = iota

	// QtyExplicit is a direct count: "add 2 spinach", "make it 5".
	// For adds the value is the add quantity; for updates it is the new
	// absolute quantity.
	QtyExplicit

	// QtyDelta is a relative increase: "add 2 more", "one more".
	QtyDelta

	// QtyMultiply is a multiplier: "double it" (2), "triple it" (3).
	QtyMultiply
)

// Resolution is the resolver's output: concrete references plus any quantity
// arithmetic the utterance implies. Zero or more references may resolve; the
// caller (engine + cart state machine) applies policy to multi-matches.
type Resolution struct {
	// Products are references resolved against LastSearchResults.
	Products []datatypes.Product

	// CartMatches are references resolved against current cart lines.
	CartMatches []cart.Line

	// QtyOp and QtyValue describe the quantity language, if any.
	QtyOp    QuantityOp
	QtyValue int

	// Ambiguous is set when a reference matched several cart lines. The
	// documented policy: remove operates on all matches; update and
	// add-to-existing-line request clarification (a single quantity cannot
	// apply to several lines).
	Ambiguous bool

	// Failed is set when the utterance is a bare reference and no context
	// exists to resolve it. The caller must surface a clarification
	// request rather than guessing.
	Failed bool

	// Reason carries the clarification text for Failed/Ambiguous results.
	Reason string
}

// EntityNames returns the display names of everything that resolved, for
// classifier prompts and response payloads.
func (r Resolution) EntityNames() []string {
	var names []string
	for _, p := range r.Products {
		names = append(names, p.Name)
	}
	for _, l := range r.CartMatches {
		names = append(names, l.Name)
	}
	return names
}

// Empty reports whether nothing resolved and no quantity language was found.
func (r Resolution) Empty() bool {
	return len(r.Products) == 0 && len(r.CartMatches) == 0 &&
		r.QtyOp == QtyNone && !r.Failed
}

// =============================================================================
// Pattern Tables
// =============================================================================

var ordinalWords = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
}

var (
	ordinalRe       = regexp.MustCompile(`\b(first|second|third|fourth|fifth|sixth|seventh|eighth|ninth|tenth|(\d+)(?:st|nd|rd|th))\b(?:\s+([a-z]+))?`)
	deltaRe         = regexp.MustCompile(`\b(\d+|one|two|three|four|five)\s+more\b`)
	multiplyRe      = regexp.MustCompile(`\b(double|triple)\b`)
	absoluteRe      = regexp.MustCompile(`\b(?:make\s+(?:it|that|them)|(?:change|set)\s+(?:it|that|them|[a-z][a-z ]*?)?\s*to)\s+(\d+)\b`)
	explicitQtyRe   = regexp.MustCompile(`\b(\d+)\b`)
	demonstrativeRe = regexp.MustCompile(`\b(that|those|these|it|them)\b`)
	punctRe         = regexp.MustCompile(`[^a-z0-9\s]+`)
)

var smallNumbers = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
}

// stopwords are tokens that never name a product. Includes operation verbs
// (shared vocabulary with the intent fallback table) and filler.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "to": true, "my": true,
	"me": true, "please": true, "some": true, "for": true, "from": true,
	"in": true, "on": true, "and": true, "more": true, "cart": true,
	"order": true, "basket": true, "list": true, "one": true, "ones": true,
	"that": true, "those": true, "these": true, "it": true, "them": true,
	"add": true, "remove": true, "delete": true, "drop": true, "take": true,
	"out": true, "show": true, "what": true, "whats": true, "view": true,
	"change": true, "update": true, "make": true, "set": true,
	"double": true, "triple": true, "checkout": true, "confirm": true,
	"buy": true, "get": true, "grab": true, "throw": true, "put": true,
	"can": true, "you": true, "i": true, "want": true, "need": true,
	"would": true, "like": true, "all": true, "is": true, "do": true,
	"have": true, "with": true, "first": true, "second": true, "third": true,
	"fourth": true, "fifth": true, "sixth": true, "seventh": true,
	"eighth": true, "ninth": true, "tenth": true,
}

// cartOpHints is the cheap vocabulary used to decide whether a bare
// demonstrative points at the cart (last-added line) or at search results.
var cartOpHints = []string{
	"add", "remove", "delete", "drop", "take out", "update", "change",
	"make it", "cart", "order", "basket", "checkout", "confirm", "more",
	"double", "triple",
}

// =============================================================================
// Resolve
// =============================================================================

// Resolve maps the utterance to concrete product references using only the
// session's context. It never calls the language model.
//
// Resolution order:
//  1. Quantity language (deltas, multipliers, absolutes) — these target the
//     most recently touched cart line, not search results.
//  2. Ordinal phrases against LastSearchResults, optionally filtered by a
//     qualifying noun ("the first spinach").
//  3. Name terms against cart lines, then against LastSearchResults.
//  4. Bare demonstratives: last-added cart line for cart-flavored
//     utterances, else the top-ranked search result.
//
// A bare reference with no context at all fails explicitly (Failed=true);
// guessing is never allowed.
func Resolve(utterance string, sess *session.Session) Resolution {
	norm := normalize(utterance)
	var res Resolution

	resolveQuantity(norm, &res)

	// Quantity deltas/multipliers resolve against the last-touched cart
	// line; they are complete references by themselves ("add 2 more").
	if res.QtyOp == QtyDelta || res.QtyOp == QtyMultiply {
		if line, ok := sess.Cart.LastTouched(); ok {
			res.CartMatches = append(res.CartMatches, line)
			return res
		}
		res.Failed = true
		res.Reason = "I'm not sure which item you mean — your cart has no recent item to apply that to."
		return res
	}

	if resolveOrdinal(norm, sess, &res) {
		return res
	}

	if resolveByName(norm, sess, &res) {
		return res
	}

	if resolveDemonstrative(norm, sess, &res) {
		return res
	}

	return res
}

// resolveQuantity detects quantity language and records it on res.
//
// Absolute targets accept a noun phrase between the verb and "to" ("change
// the spinach to 0"), not just it/that/them; the noun itself still resolves
// through the name matcher. Zero is a valid absolute target — the cart
// treats set-to-zero as removal — whereas a bare zero count is discarded.
func resolveQuantity(norm string, res *Resolution) {
	if m := absoluteRe.FindStringSubmatch(norm); m != nil {
		n, _ := strconv.Atoi(m[1])
		res.QtyOp = QtyExplicit
		res.QtyValue = n
		return
	}
	if m := deltaRe.FindStringSubmatch(norm); m != nil {
		n, ok := smallNumbers[m[1]]
		if !ok {
			n, _ = strconv.Atoi(m[1])
		}
		res.QtyOp = QtyDelta
		res.QtyValue = n
		return
	}
	if m := multiplyRe.FindStringSubmatch(norm); m != nil {
		res.QtyOp = QtyMultiply
		if m[1] == "triple" {
			res.QtyValue = 3
		} else {
			res.QtyValue = 2
		}
		return
	}
	// A plain count ("add 2 spinach") only counts as quantity language
	// when it is not part of an ordinal ("2nd").
	if m := explicitQtyRe.FindStringSubmatch(norm); m != nil && !ordinalRe.MatchString(norm) {
		n, _ := strconv.Atoi(m[1])
		if n > 0 {
			res.QtyOp = QtyExplicit
			res.QtyValue = n
		}
	}
}

// resolveOrdinal handles "the first one" / "the second spinach" / "the 3rd".
// Returns true when an ordinal phrase was present (whether or not it
// resolved; out-of-range ordinals fail explicitly).
func resolveOrdinal(norm string, sess *session.Session, res *Resolution) bool {
	m := ordinalRe.FindStringSubmatch(norm)
	if m == nil {
		return false
	}

	k, ok := ordinalWords[m[1]]
	if !ok {
		k, _ = strconv.Atoi(m[2])
	}

	// The qualifying noun filters LastSearchResults before indexing:
	// "the first spinach" indexes into the spinach-named subset.
	qualifier := m[3]
	if qualifier == "one" || qualifier == "ones" || stopwords[qualifier] {
		qualifier = ""
	}

	candidates := sess.LastResults
	if qualifier != "" {
		var filtered []datatypes.Product
		for _, p := range candidates {
			if strings.Contains(strings.ToLower(p.Name), qualifier) {
				filtered = append(filtered, p)
			}
		}
		candidates = filtered
	}

	if len(candidates) == 0 {
		res.Failed = true
		res.Reason = "I don't have any recent search results to pick from — could you search for the product first?"
		return true
	}
	if k < 1 || k > len(candidates) {
		res.Failed = true
		res.Reason = fmt.Sprintf("I only showed %d matching result(s) — which one did you mean?", len(candidates))
		return true
	}
	res.Products = append(res.Products, candidates[k-1])
	return true
}

// resolveByName matches remaining noun terms against cart lines first, then
// against LastSearchResults. Returns true when any term matched.
func resolveByName(norm string, sess *session.Session, res *Resolution) bool {
	terms := nameTerms(norm)
	if len(terms) == 0 {
		return false
	}

	seenLines := make(map[string]bool)
	for _, term := range terms {
		for _, line := range sess.Cart.MatchByName(term) {
			if !seenLines[line.SKU] {
				seenLines[line.SKU] = true
				res.CartMatches = append(res.CartMatches, line)
			}
		}
	}

	seenProducts := make(map[string]bool)
	for _, term := range terms {
		for _, p := range sess.LastResults {
			if strings.Contains(strings.ToLower(p.Name), term) && !seenProducts[p.SKU] {
				seenProducts[p.SKU] = true
				res.Products = append(res.Products, p)
			}
		}
	}

	if len(res.CartMatches) > 1 {
		res.Ambiguous = true
		res.Reason = fmt.Sprintf("%d items in your cart match — %s.",
			len(res.CartMatches), joinLineNames(res.CartMatches))
	}
	return len(res.CartMatches) > 0 || len(res.Products) > 0
}

// resolveDemonstrative handles bare "that"/"those"/"it" with no qualifier.
// Cart-flavored utterances resolve to the most recently touched cart line;
// otherwise the top-ranked search result wins. With no context at all the
// resolution fails explicitly.
func resolveDemonstrative(norm string, sess *session.Session, res *Resolution) bool {
	if !demonstrativeRe.MatchString(norm) {
		return false
	}

	if looksLikeCartOp(norm) {
		if line, ok := sess.Cart.LastTouched(); ok {
			res.CartMatches = append(res.CartMatches, line)
			return true
		}
	}
	if len(sess.LastResults) > 0 {
		res.Products = append(res.Products, sess.LastResults[0])
		return true
	}
	if line, ok := sess.Cart.LastTouched(); ok {
		res.CartMatches = append(res.CartMatches, line)
		return true
	}

	res.Failed = true
	res.Reason = "I'm not sure what you're referring to — could you name the product?"
	return true
}

// =============================================================================
// Preference Detection
// =============================================================================

// preferencePhrases maps utterance phrases to (preference key, value)
// evidence. Scanned on every utterance; matches merge into the session's
// accumulated preferences.
var preferencePhrases = []struct {
	phrase string
	key    string
	value  string
}{
	{"organic", "diet", "organic"},
	{"gluten free", "diet", "gluten free"},
	{"gluten-free", "diet", "gluten free"},
	{"vegan", "diet", "vegan"},
	{"vegetarian", "diet", "vegetarian"},
	{"dairy free", "diet", "dairy free"},
	{"dairy-free", "diet", "dairy free"},
	{"kosher", "diet", "kosher"},
	{"halal", "diet", "halal"},
	{"low sodium", "health", "low sodium"},
	{"sugar free", "health", "sugar free"},
	{"sugar-free", "health", "sugar free"},
	{"low fat", "health", "low fat"},
	{"keto", "diet", "keto"},
}

// DetectPreferences scans the utterance for dietary/health qualifiers and
// returns the evidence found, keyed by preference key.
func DetectPreferences(utterance string) map[string]string {
	lower := strings.ToLower(utterance)
	found := make(map[string]string)
	for _, p := range preferencePhrases {
		if strings.Contains(lower, p.phrase) {
			if existing, ok := found[p.key]; ok {
				if !strings.Contains(existing, p.value) {
					found[p.key] = existing + "," + p.value
				}
			} else {
				found[p.key] = p.value
			}
		}
	}
	return found
}

// =============================================================================
// Helpers
// =============================================================================

// normalize lowercases and strips punctuation, collapsing whitespace.
func normalize(s string) string {
	s = strings.ToLower(s)
	s = punctRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// nameTerms extracts candidate product-name tokens from a normalized
// utterance: everything that is not a stopword, a number, or an ordinal.
func nameTerms(norm string) []string {
	var terms []string
	for _, tok := range strings.Fields(norm) {
		if stopwords[tok] {
			continue
		}
		if _, err := strconv.Atoi(tok); err == nil {
			continue
		}
		terms = append(terms, tok)
	}
	return terms
}

// looksLikeCartOp reports whether the utterance carries cart-operation
// vocabulary. Used only to steer bare demonstratives.
func looksLikeCartOp(norm string) bool {
	for _, hint := range cartOpHints {
		if strings.Contains(norm, hint) {
			return true
		}
	}
	return false
}

func joinLineNames(lines []cart.Line) string {
	names := make([]string, len(lines))
	for i, l := range lines {
		names[i] = l.Name
	}
	return strings.Join(names, ", ")
}
