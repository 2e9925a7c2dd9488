// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dedup filters merged search results down to the genuinely new
// ones. Two stages: exact matching on normalized URLs, then near-duplicate
// suppression against a caller-supplied text-similarity function.
//
// See docs/ARCHITECTURE § Deduplication.
package dedup

import (
	"net/url"
	"strings"

	"github.com/meshintel/scout/pkg/types"
)

// SimilarityFunc scores the textual similarity of two strings in [0,1].
// Pure function, no state; an embedding-backed implementation can be
// injected in place of the default token-overlap measure.
type SimilarityFunc func(a, b string) float64

// Filter removes exact and near-duplicate results.
type Filter struct {
	similarity SimilarityFunc
	threshold  float64
}

// NewFilter builds a Filter with the given similarity function and
// inclusive near-duplicate threshold. A nil similarity falls back to
// TokenOverlap; a non-positive threshold falls back to 0.85.
func NewFilter(similarity SimilarityFunc, threshold float64) *Filter {
	if similarity == nil {
		similarity = TokenOverlap
	}
	if threshold <= 0 {
		threshold = 0.85
	}
	return &Filter{similarity: similarity, threshold: threshold}
}

// Dedupe returns the subset of incoming that is genuinely new with
// respect to existing and to earlier entries in the same batch. Incoming
// order is preserved, so within a batch the earlier (better-ranked)
// member of a near-duplicate pair survives.
func (f *Filter) Dedupe(existing []types.ScoredResult, incoming []types.RawResult) []types.RawResult {
	seenURLs := make(map[string]bool, len(existing))
	var existingTexts []string
	for _, r := range existing {
		seenURLs[NormalizeURL(r.URL)] = true
		existingTexts = append(existingTexts, resultText(r.Title, r.Snippet))
	}

	var survivors []types.RawResult
	for _, r := range incoming {
		key := NormalizeURL(r.URL)
		if key == "" || seenURLs[key] {
			continue
		}

		text := resultText(r.Title, r.Snippet)
		if f.nearDuplicate(text, existingTexts) {
			continue
		}

		seenURLs[key] = true
		existingTexts = append(existingTexts, text)
		survivors = append(survivors, r)
	}
	return survivors
}

// DedupeScored is Dedupe for already-scored batches. The controller uses
// it at the merge step, where concurrent query results arrive scored and
// must be checked against the live accumulated set one writer at a time.
func (f *Filter) DedupeScored(existing, incoming []types.ScoredResult) []types.ScoredResult {
	seenURLs := make(map[string]bool, len(existing))
	var existingTexts []string
	for _, r := range existing {
		seenURLs[NormalizeURL(r.URL)] = true
		existingTexts = append(existingTexts, resultText(r.Title, r.Snippet))
	}

	var survivors []types.ScoredResult
	for _, r := range incoming {
		key := NormalizeURL(r.URL)
		if key == "" || seenURLs[key] {
			continue
		}
		text := resultText(r.Title, r.Snippet)
		if f.nearDuplicate(text, existingTexts) {
			continue
		}
		seenURLs[key] = true
		existingTexts = append(existingTexts, text)
		survivors = append(survivors, r)
	}
	return survivors
}

// nearDuplicate reports whether text is at or above the threshold against
// any prior text. Threshold is inclusive: similarity == threshold counts
// as a duplicate.
func (f *Filter) nearDuplicate(text string, priors []string) bool {
	for _, p := range priors {
		if f.similarity(text, p) >= f.threshold {
			return true
		}
	}
	return false
}

func resultText(title, snippet string) string {
	return strings.TrimSpace(title + " " + snippet)
}

// trackingParams are query parameters that vary per click without changing
// the destination content.
var trackingParams = map[string]bool{
	"fbclid":  true,
	"gclid":   true,
	"msclkid": true,
	"ref":     true,
	"ref_src": true,
	"mc_cid":  true,
	"mc_eid":  true,
	"igshid":  true,
}

// NormalizeURL reduces a URL to its identity: scheme and www. prefix
// stripped, host lowercased, trailing slash and fragment dropped, and
// tracking parameters (utm_*, click IDs) removed. Two URLs that normalize
// equal are treated as the same document.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimSuffix(raw, "/"))
	}

	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")

	path := strings.TrimSuffix(u.Path, "/")

	query := u.Query()
	for param := range query {
		if trackingParams[param] || strings.HasPrefix(param, "utm_") {
			query.Del(param)
		}
	}

	normalized := host + path
	if encoded := query.Encode(); encoded != "" {
		normalized += "?" + encoded
	}
	return normalized
}

// TokenOverlap is the default similarity measure: Jaccard overlap of the
// lowercased token sets of a and b. Cheap and deterministic; good enough
// to catch the same article syndicated across outlets, which is the
// dominant near-duplicate case in provider responses.
func TokenOverlap(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	intersection := 0
	for tok := range ta {
		if tb[tok] {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.Trim(tok, ".,;:!?\"'()[]")
		if tok != "" {
			set[tok] = true
		}
	}
	return set
}
