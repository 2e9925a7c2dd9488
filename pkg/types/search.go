// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the scout research engine.
// See docs/ARCHITECTURE § Data Structures.
package types

import "time"

// QueryCategory classifies what a search query is trying to surface about
// the entity under research.
type QueryCategory string

const (
	CategoryOfficialFilings   QueryCategory = "official_filings"
	CategoryInvestorRelations QueryCategory = "investor_relations"
	CategoryNews              QueryCategory = "news"
	CategoryOverview          QueryCategory = "overview"
	CategoryCompetitive       QueryCategory = "competitive"
	CategoryProduct           QueryCategory = "product"
	CategoryLeadership        QueryCategory = "leadership"
	CategoryOther             QueryCategory = "other"
)

// SearchQuery holds the parameters of one logical search. Queries are
// immutable once issued; the router and controller pass them by value.
type SearchQuery struct {
	// Text is the literal query string sent to providers.
	Text string `json:"text" yaml:"text"`

	// MaxResults is the number of results requested from each provider.
	MaxResults int `json:"max_results" yaml:"max_results"`

	// MinResults is the smallest result count that satisfies this query;
	// a provider returning fewer triggers fallback to the next provider.
	MinResults int `json:"min_results" yaml:"min_results"`

	// Category classifies the query for gap generation and reporting.
	Category QueryCategory `json:"category" yaml:"category"`
}

// RawResult is a single result as returned by a search provider. Never
// mutated after creation.
type RawResult struct {
	// URL is the result link as the provider returned it.
	URL string `json:"url" yaml:"url"`

	// Title is the page title from the provider.
	Title string `json:"title" yaml:"title"`

	// Snippet is the provider's text excerpt for the result.
	Snippet string `json:"snippet" yaml:"snippet"`

	// Provider identifies which backend produced this result (e.g. "brave").
	Provider string `json:"provider" yaml:"provider"`

	// Rank is the zero-based position of the result in the provider's
	// response, before any local re-ranking.
	Rank int `json:"rank" yaml:"rank"`
}

// ScoredResult is a RawResult with ranking signals attached. Derived,
// immutable.
type ScoredResult struct {
	RawResult `yaml:",inline"`

	// AuthorityScore reflects the trustworthiness tier of the result's
	// domain, in [0,1].
	AuthorityScore float64 `json:"authority_score" yaml:"authority_score"`

	// RelevanceScore is the weighted term overlap between the query and
	// the result's title and snippet, in [0,1].
	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`

	// RankDecay boosts results near the top of the provider response,
	// in [0,1].
	RankDecay float64 `json:"rank_decay" yaml:"rank_decay"`

	// CombinedScore is the weighted blend used for final ordering.
	CombinedScore float64 `json:"combined_score" yaml:"combined_score"`
}

// CacheEntry is one persisted search response, keyed by the content hash
// of the query. Owned by the cache store.
type CacheEntry struct {
	// Key is hash(normalized query text, max results).
	Key string `json:"key" yaml:"key"`

	// Results is the scored provider response as stored.
	Results []ScoredResult `json:"results" yaml:"results"`

	// Provider is the backend that produced the stored response.
	Provider string `json:"provider" yaml:"provider"`

	// CostUnits is what the live call cost when the entry was created.
	CostUnits float64 `json:"cost_units" yaml:"cost_units"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	ExpiresAt time.Time `json:"expires_at" yaml:"expires_at"`
}

// Expired reports whether the entry is logically absent at the given time.
func (e CacheEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// ProviderHealth is the rolling failure/success record for one provider.
// Process-local: reset to healthy at startup, never persisted.
type ProviderHealth struct {
	Provider            string     `json:"provider" yaml:"provider"`
	ConsecutiveFailures int        `json:"consecutive_failures" yaml:"consecutive_failures"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty" yaml:"last_failure_at,omitempty"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty" yaml:"last_success_at,omitempty"`
	TotalRequests       int        `json:"total_requests" yaml:"total_requests"`
	TotalSuccesses      int        `json:"total_successes" yaml:"total_successes"`
}

// ResearchState accumulates across iterations of the research loop. Owned
// by the iteration controller and mutated only at iteration boundaries.
type ResearchState struct {
	// SessionID identifies one research run across logs and reports.
	SessionID string `json:"session_id" yaml:"session_id"`

	// Entity is the name being researched.
	Entity string `json:"entity" yaml:"entity"`

	// IterationCount is the number of completed searching phases.
	IterationCount int `json:"iteration_count" yaml:"iteration_count"`

	// AllResults is the append-only, deduplicated result set.
	AllResults []ScoredResult `json:"all_results" yaml:"all_results"`

	// FieldPresence records which required fields have been observed.
	FieldPresence map[string]bool `json:"field_presence" yaml:"field_presence"`

	// Fields holds structured facts merged in by the extraction collaborator.
	Fields map[string]string `json:"fields" yaml:"fields"`

	// QualityScore is the composite score from the latest assessment.
	QualityScore float64 `json:"quality_score" yaml:"quality_score"`

	// MissingFields lists required fields still absent after the latest
	// assessment.
	MissingFields []string `json:"missing_fields" yaml:"missing_fields"`

	// TotalCost is the accumulated cost units of all live provider calls.
	TotalCost float64 `json:"total_cost" yaml:"total_cost"`

	// Incomplete marks a run cut short by cancellation rather than by the
	// quality gate or the iteration bound.
	Incomplete bool `json:"incomplete" yaml:"incomplete"`
}

// QualityReport is the outcome of one quality assessment. Read-only after
// creation.
type QualityReport struct {
	// FieldScore is the deterministic field-presence score, 0-100, after
	// the critical-field penalty.
	FieldScore float64 `json:"field_score" yaml:"field_score"`

	// SemanticScore is the optional holistic judgment, 0-100. Nil when
	// the semantic collaborator was unavailable.
	SemanticScore *float64 `json:"semantic_score,omitempty" yaml:"semantic_score,omitempty"`

	// CompositeScore blends the semantic and field scores, 0-100.
	CompositeScore float64 `json:"composite_score" yaml:"composite_score"`

	// CriticalMissing lists absent fields flagged critical.
	CriticalMissing []string `json:"critical_missing" yaml:"critical_missing"`

	// ImportantMissing lists the remaining absent fields.
	ImportantMissing []string `json:"important_missing" yaml:"important_missing"`

	// RecommendedQueries are the gap queries suggested for the next round.
	RecommendedQueries []SearchQuery `json:"recommended_queries" yaml:"recommended_queries"`
}
