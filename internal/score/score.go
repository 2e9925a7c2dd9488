// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package score ranks search results by blending domain authority, query
// relevance, and provider rank position. The authority tiers are data,
// not code: the built-in table can be replaced wholesale from a YAML file.
//
// See docs/ARCHITECTURE § Scoring.
package score

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/meshintel/scout/internal/dedup"
	"github.com/meshintel/scout/pkg/types"
)

// Authority tier values. Regulatory sources outrank major outlets, which
// outrank trade press, which outrank generic domains.
const (
	tierOfficial = 1.0
	tierMajor    = 0.85
	tierTrade    = 0.70
	tierGeneric  = 0.55
	tierUnknown  = 0.40
)

// AuthorityTable maps domain suffixes to authority scores in [0,1]. The
// longest matching suffix wins, so "sec.gov" can outrank a generic ".gov"
// entry if both are present.
type AuthorityTable map[string]float64

// DefaultAuthorityTable returns the built-in tier assignments for company
// research.
func DefaultAuthorityTable() AuthorityTable {
	return AuthorityTable{
		// Regulatory and official sources.
		"sec.gov":   tierOfficial,
		"ftc.gov":   tierOfficial,
		"europa.eu": tierOfficial,
		".gov":      tierOfficial,
		// Major financial and news outlets.
		"bloomberg.com": tierMajor,
		"reuters.com":   tierMajor,
		"wsj.com":       tierMajor,
		"ft.com":        tierMajor,
		"nytimes.com":   tierMajor,
		"forbes.com":    tierMajor,
		"cnbc.com":      tierMajor,
		// Reputable trade press.
		"techcrunch.com":      tierTrade,
		"theinformation.com":  tierTrade,
		"businessinsider.com": tierTrade,
		"crunchbase.com":      tierTrade,
		"pitchbook.com":       tierTrade,
		// Generic but structured top-level domains.
		".org": tierGeneric,
		".edu": tierGeneric,
	}
}

// LoadAuthorityTable reads a YAML domain→score mapping from path.
func LoadAuthorityTable(path string) (AuthorityTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading authority table %s: %w", path, err)
	}
	var table AuthorityTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parsing authority table %s: %w", path, err)
	}
	return table, nil
}

// Scorer assigns ranking scores to raw results.
type Scorer struct {
	table AuthorityTable
	cfg   types.ScoreConfig
}

// NewScorer builds a Scorer. When cfg.AuthorityTableFile is set the file
// replaces the built-in table entirely.
func NewScorer(cfg types.ScoreConfig) (*Scorer, error) {
	table := DefaultAuthorityTable()
	if cfg.AuthorityTableFile != "" {
		loaded, err := LoadAuthorityTable(cfg.AuthorityTableFile)
		if err != nil {
			return nil, err
		}
		table = loaded
	}
	return &Scorer{table: table, cfg: cfg}, nil
}

// Score derives the ranking signals for one result against its query.
func (s *Scorer) Score(result types.RawResult, query types.SearchQuery) types.ScoredResult {
	authority := s.authorityScore(result.URL)
	relevance := relevanceScore(query.Text, result.Title, result.Snippet)
	decay := rankDecay(result.Rank)

	combined := s.cfg.AuthorityWeight*authority +
		s.cfg.RelevanceWeight*relevance +
		s.cfg.RankWeight*decay

	return types.ScoredResult{
		RawResult:      result,
		AuthorityScore: authority,
		RelevanceScore: relevance,
		RankDecay:      decay,
		CombinedScore:  combined,
	}
}

// ScoreAll scores a batch and returns it in presentation order.
func (s *Scorer) ScoreAll(results []types.RawResult, query types.SearchQuery) []types.ScoredResult {
	scored := make([]types.ScoredResult, 0, len(results))
	for _, r := range results {
		scored = append(scored, s.Score(r, query))
	}
	SortResults(scored)
	return scored
}

// SortResults orders by combined score descending; ties break by provider
// rank ascending so the ordering is stable and deterministic.
func SortResults(results []types.ScoredResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].CombinedScore != results[j].CombinedScore {
			return results[i].CombinedScore > results[j].CombinedScore
		}
		return results[i].Rank < results[j].Rank
	})
}

// authorityScore looks the result's domain up in the tier table. The
// longest matching suffix wins; unknown domains get the floor score.
func (s *Scorer) authorityScore(rawURL string) float64 {
	host := dedup.NormalizeURL(rawURL)
	if idx := strings.IndexAny(host, "/?"); idx >= 0 {
		host = host[:idx]
	}
	if host == "" {
		return tierUnknown
	}

	bestLen := 0
	best := tierUnknown
	for suffix, tier := range s.table {
		if strings.HasSuffix(host, suffix) && len(suffix) > bestLen {
			bestLen = len(suffix)
			best = tier
		}
	}
	return best
}

// relevanceScore is the weighted fraction of query terms found in the
// title (weight 0.6) and snippet (weight 0.4), normalized to [0,1].
func relevanceScore(queryText, title, snippet string) float64 {
	terms := queryTerms(queryText)
	if len(terms) == 0 {
		return 0
	}

	titleTokens := tokenSet(title)
	snippetTokens := tokenSet(snippet)

	titleHits, snippetHits := 0, 0
	for _, term := range terms {
		if titleTokens[term] {
			titleHits++
		}
		if snippetTokens[term] {
			snippetHits++
		}
	}

	n := float64(len(terms))
	return 0.6*float64(titleHits)/n + 0.4*float64(snippetHits)/n
}

// rankDecay gives results near the top of a provider response a mild
// boost independent of content: 1/(1+0.1*rank).
func rankDecay(rank int) float64 {
	if rank < 0 {
		rank = 0
	}
	return 1.0 / (1.0 + 0.1*float64(rank))
}

func queryTerms(text string) []string {
	var terms []string
	for tok := range tokenSet(text) {
		terms = append(terms, tok)
	}
	sort.Strings(terms)
	return terms
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
