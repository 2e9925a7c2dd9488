// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dedup

import (
	"testing"

	"github.com/meshintel/scout/pkg/types"
)

func raw(url, title, snippet string, rank int) types.RawResult {
	return types.RawResult{URL: url, Title: title, Snippet: snippet, Provider: "test", Rank: rank}
}

func scored(url, title, snippet string) types.ScoredResult {
	return types.ScoredResult{RawResult: raw(url, title, snippet, 0)}
}

// --- URL normalization ---

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips scheme", "https://example.com/page", "example.com/page"},
		{"http and https equal", "http://example.com/page", "example.com/page"},
		{"strips www", "https://www.example.com/page", "example.com/page"},
		{"strips trailing slash", "https://example.com/page/", "example.com/page"},
		{"lowercases host", "https://Example.COM/Page", "example.com/Page"},
		{"strips utm params", "https://example.com/page?utm_source=x&utm_medium=y", "example.com/page"},
		{"strips click ids", "https://example.com/page?fbclid=abc&gclid=def", "example.com/page"},
		{"keeps real params", "https://example.com/page?id=42", "example.com/page?id=42"},
		{"drops fragment", "https://example.com/page#section", "example.com/page"},
		{"bare domain", "example.com", "example.com"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeURL(tt.in); got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// --- exact dedup ---

func TestDedupeExactAgainstExisting(t *testing.T) {
	f := NewFilter(nil, 0.85)
	existing := []types.ScoredResult{
		scored("https://example.com/about", "About Acme", "Acme Corp was founded in 2010."),
	}
	incoming := []types.RawResult{
		raw("http://www.example.com/about/", "About Acme", "Acme Corp was founded in 2010.", 0),
		raw("https://other.com/acme-profile", "Acme profile", "Independent profile of the industrial firm.", 1),
	}

	got := f.Dedupe(existing, incoming)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].URL != "https://other.com/acme-profile" {
		t.Errorf("survivor = %q", got[0].URL)
	}
}

func TestDedupeExactWithinBatch(t *testing.T) {
	f := NewFilter(nil, 0.85)
	incoming := []types.RawResult{
		raw("https://example.com/news?utm_source=feed", "Acme raises funding", "Series B round announced today.", 0),
		raw("https://example.com/news", "Acme raises funding", "Series B round announced today.", 1),
	}

	got := f.Dedupe(nil, incoming)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	// The earlier-ranked member of the pair survives.
	if got[0].Rank != 0 {
		t.Errorf("surviving rank = %d, want 0", got[0].Rank)
	}
}

// --- near-duplicate threshold ---

// fixedSimilarity always returns the same score.
func fixedSimilarity(score float64) SimilarityFunc {
	return func(a, b string) float64 { return score }
}

func TestNearDuplicateThresholdIsInclusive(t *testing.T) {
	existing := []types.ScoredResult{
		scored("https://a.com/1", "Acme overview", "Everything about Acme."),
	}
	incoming := []types.RawResult{
		raw("https://b.com/2", "Acme overview syndicated", "Everything about Acme, republished.", 0),
	}

	tests := []struct {
		name       string
		similarity float64
		survivors  int
	}{
		{"exactly at threshold is duplicate", 0.85, 0},
		{"just below threshold is kept", 0.8499, 1},
		{"above threshold is duplicate", 0.99, 0},
		{"well below threshold is kept", 0.2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFilter(fixedSimilarity(tt.similarity), 0.85)
			got := f.Dedupe(existing, incoming)
			if len(got) != tt.survivors {
				t.Errorf("len = %d, want %d", len(got), tt.survivors)
			}
		})
	}
}

func TestNearDuplicateWithinBatchKeepsEarlierRank(t *testing.T) {
	f := NewFilter(fixedSimilarity(0.9), 0.85)
	incoming := []types.RawResult{
		raw("https://a.com/1", "Acme quarterly results", "Q3 revenue up 8%.", 0),
		raw("https://b.com/2", "Acme posts quarterly results", "Third quarter revenue rose 8%.", 1),
	}

	got := f.Dedupe(nil, incoming)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Rank != 0 {
		t.Errorf("surviving rank = %d, want 0", got[0].Rank)
	}
}

func TestDedupeScoredMatchesRawBehavior(t *testing.T) {
	f := NewFilter(fixedSimilarity(0.1), 0.85)
	existing := []types.ScoredResult{
		scored("https://a.com/1", "Acme overview", "About the company."),
	}
	incoming := []types.ScoredResult{
		scored("https://a.com/1", "Acme overview", "About the company."),
		scored("https://b.com/2", "Acme factory tour", "Inside the production line."),
	}

	got := f.DedupeScored(existing, incoming)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].URL != "https://b.com/2" {
		t.Errorf("survivor = %q", got[0].URL)
	}
}

// --- default similarity ---

func TestTokenOverlap(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{"identical", "acme corp revenue report", "acme corp revenue report", 1.0, 1.0},
		{"disjoint", "alpha beta", "gamma delta", 0.0, 0.0},
		{"partial", "acme corp revenue", "acme corp profits", 0.3, 0.7},
		{"empty", "", "acme", 0.0, 0.0},
		{"punctuation ignored", "acme, corp.", "acme corp", 1.0, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TokenOverlap(tt.a, tt.b)
			if got < tt.min || got > tt.max {
				t.Errorf("TokenOverlap(%q, %q) = %f, want in [%f, %f]", tt.a, tt.b, got, tt.min, tt.max)
			}
		})
	}
}
