// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the per-provider HTTP request timeout (default 15s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "scout/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// ProviderSpec names one search provider in the fallback chain together
// with its per-call cost. The chain is tried in slice order, so the
// configured order should be cost-ascending.
type ProviderSpec struct {
	// Name is the provider identifier ("duckduckgo", "brave", "tavily").
	Name string `json:"name" yaml:"name"`

	// CostUnits is the accounting cost of one live call to this provider.
	CostUnits float64 `json:"cost_units" yaml:"cost_units"`
}

// SearchConfig holds settings for the search router and providers.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// Providers is the fallback chain in priority (cost-ascending) order.
	Providers []ProviderSpec `json:"providers" yaml:"providers"`

	// MaxResults is the default result count requested per query (default 10).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// MinResults is the default smallest acceptable result count (default 3).
	MinResults int `json:"min_results" yaml:"min_results"`

	// BraveAPIKey authenticates against the Brave Search API.
	BraveAPIKey string `json:"brave_api_key,omitempty" yaml:"brave_api_key,omitempty"`

	// TavilyAPIKey authenticates against the Tavily API.
	TavilyAPIKey string `json:"tavily_api_key,omitempty" yaml:"tavily_api_key,omitempty"`
}

// DefaultProviders is the stock fallback chain: free backend first, paid
// backends in ascending cost order.
func DefaultProviders() []ProviderSpec {
	return []ProviderSpec{
		{Name: "duckduckgo", CostUnits: 0},
		{Name: "brave", CostUnits: 0.005},
		{Name: "tavily", CostUnits: 0.01},
	}
}

// CacheConfig holds settings for the persistent query cache.
type CacheConfig struct {
	// Dir is the directory holding the cache database (default "cache").
	Dir string `json:"dir" yaml:"dir"`

	// TTLDays is how long a stored entry stays valid (default 30).
	TTLDays int `json:"ttl_days" yaml:"ttl_days"`
}

// TTL returns the entry lifetime as a duration, falling back to 30 days.
func (c CacheConfig) TTL() time.Duration {
	days := c.TTLDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

// DedupConfig holds settings for duplicate suppression.
type DedupConfig struct {
	// SimilarityThreshold is the inclusive near-duplicate cutoff (default 0.85).
	SimilarityThreshold float64 `json:"similarity_threshold" yaml:"similarity_threshold"`
}

// ScoreConfig holds settings for result scoring.
type ScoreConfig struct {
	// AuthorityTableFile optionally overrides the built-in domain
	// authority tiers with a YAML file.
	AuthorityTableFile string `json:"authority_table_file,omitempty" yaml:"authority_table_file,omitempty"`

	// AuthorityWeight, RelevanceWeight, and RankWeight blend the three
	// signals into the combined score (defaults 0.4, 0.4, 0.2).
	AuthorityWeight float64 `json:"authority_weight" yaml:"authority_weight"`
	RelevanceWeight float64 `json:"relevance_weight" yaml:"relevance_weight"`
	RankWeight      float64 `json:"rank_weight" yaml:"rank_weight"`
}

// QualityConfig holds the quality-gate tunables. The composite weights and
// the critical-field penalty are empirical constants carried over from
// field testing, exposed here rather than hard-coded.
type QualityConfig struct {
	// Threshold is the composite score at which research stops (default 85).
	Threshold float64 `json:"threshold" yaml:"threshold"`

	// SemanticWeight and FieldWeight blend the semantic and field scores
	// when a semantic judgment is available (defaults 0.6, 0.4).
	SemanticWeight float64 `json:"semantic_weight" yaml:"semantic_weight"`
	FieldWeight    float64 `json:"field_weight" yaml:"field_weight"`

	// CriticalPenalty is subtracted per missing critical field (default 5).
	CriticalPenalty float64 `json:"critical_penalty" yaml:"critical_penalty"`

	// CriticalPenaltyCap bounds the total critical penalty (default 20).
	CriticalPenaltyCap float64 `json:"critical_penalty_cap" yaml:"critical_penalty_cap"`

	// RequiredFieldsFile optionally overrides the built-in field synonym
	// table with a YAML file.
	RequiredFieldsFile string `json:"required_fields_file,omitempty" yaml:"required_fields_file,omitempty"`

	// MaxGapQueries bounds the query set generated per iteration (default 10).
	MaxGapQueries int `json:"max_gap_queries" yaml:"max_gap_queries"`
}

// EngineConfig holds settings for the iteration controller.
type EngineConfig struct {
	// MaxIterations bounds the number of searching phases (default 2).
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`

	// MaxConcurrentQueries bounds the searching-phase worker pool (default 4).
	MaxConcurrentQueries int `json:"max_concurrent_queries" yaml:"max_concurrent_queries"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Search  SearchConfig  `json:"search" yaml:"search"`
	Cache   CacheConfig   `json:"cache" yaml:"cache"`
	Dedup   DedupConfig   `json:"dedup" yaml:"dedup"`
	Score   ScoreConfig   `json:"score" yaml:"score"`
	Quality QualityConfig `json:"quality" yaml:"quality"`
	Engine  EngineConfig  `json:"engine" yaml:"engine"`
}

// WithDefaults returns a copy of the config with zero values replaced by
// the documented defaults.
func (c PipelineConfig) WithDefaults() PipelineConfig {
	if c.Search.Timeout <= 0 {
		c.Search.Timeout = 15 * time.Second
	}
	if c.Search.UserAgent == "" {
		c.Search.UserAgent = "scout/0.1"
	}
	if len(c.Search.Providers) == 0 {
		c.Search.Providers = DefaultProviders()
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = 10
	}
	if c.Search.MinResults <= 0 {
		c.Search.MinResults = 3
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = "cache"
	}
	if c.Cache.TTLDays <= 0 {
		c.Cache.TTLDays = 30
	}
	if c.Dedup.SimilarityThreshold <= 0 {
		c.Dedup.SimilarityThreshold = 0.85
	}
	if c.Score.AuthorityWeight <= 0 {
		c.Score.AuthorityWeight = 0.4
	}
	if c.Score.RelevanceWeight <= 0 {
		c.Score.RelevanceWeight = 0.4
	}
	if c.Score.RankWeight <= 0 {
		c.Score.RankWeight = 0.2
	}
	if c.Quality.Threshold <= 0 {
		c.Quality.Threshold = 85
	}
	if c.Quality.SemanticWeight <= 0 {
		c.Quality.SemanticWeight = 0.6
	}
	if c.Quality.FieldWeight <= 0 {
		c.Quality.FieldWeight = 0.4
	}
	if c.Quality.CriticalPenalty <= 0 {
		c.Quality.CriticalPenalty = 5
	}
	if c.Quality.CriticalPenaltyCap <= 0 {
		c.Quality.CriticalPenaltyCap = 20
	}
	if c.Quality.MaxGapQueries <= 0 {
		c.Quality.MaxGapQueries = 10
	}
	if c.Engine.MaxIterations <= 0 {
		c.Engine.MaxIterations = 2
	}
	if c.Engine.MaxConcurrentQueries <= 0 {
		c.Engine.MaxConcurrentQueries = 4
	}
	return c
}
