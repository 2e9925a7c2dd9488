// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package quality

import (
	"fmt"
	"sort"

	"github.com/meshintel/scout/internal/cache"
	"github.com/meshintel/scout/pkg/types"
)

// gapTemplates maps field name to a query template; %s is the entity name.
// Unlisted fields fall back to a generic "<entity> <field>" query.
var gapTemplates = map[string]string{
	"revenue":        "%s annual revenue financial results",
	"leadership":     "%s CEO founders leadership team",
	"products":       "%s products services platform",
	"competitors":    "%s competitors market share comparison",
	"funding":        "%s funding rounds investors valuation",
	"founding":       "%s company history founded",
	"headquarters":   "%s headquarters location offices",
	"headcount":      "%s number of employees company size",
	"business_model": "%s business model pricing revenue streams",
}

// GapGenerator turns missing fields into targeted follow-up queries. It
// remembers every query issued in the session so a field that stays
// missing does not regenerate the same query round after round.
type GapGenerator struct {
	fields     RequiredFields
	maxQueries int
	maxResults int
	minResults int
	issued     map[string]bool
}

// NewGapGenerator builds a generator. maxQueries bounds one generation
// round; maxResults/minResults are copied onto every generated query.
func NewGapGenerator(fields RequiredFields, maxQueries, maxResults, minResults int) *GapGenerator {
	if maxQueries <= 0 {
		maxQueries = 10
	}
	return &GapGenerator{
		fields:     fields,
		maxQueries: maxQueries,
		maxResults: maxResults,
		minResults: minResults,
		issued:     make(map[string]bool),
	}
}

// MarkIssued records queries issued outside generation (the seed set) so
// later rounds do not repeat them.
func (g *GapGenerator) MarkIssued(queries []types.SearchQuery) {
	for _, q := range queries {
		g.issued[cache.NormalizeQueryText(q.Text)] = true
	}
}

// Generate returns a bounded, deterministic set of queries targeting the
// missing fields. Fields are processed in sorted order and no randomness
// is involved, so the same inputs always produce the same queries.
func (g *GapGenerator) Generate(missingFields []string, entityName string) []types.SearchQuery {
	sorted := append([]string(nil), missingFields...)
	sort.Strings(sorted)

	var queries []types.SearchQuery
	for _, field := range sorted {
		if len(queries) >= g.maxQueries {
			break
		}

		template, ok := gapTemplates[field]
		if !ok {
			template = "%s " + field
		}
		text := fmt.Sprintf(template, entityName)

		normalized := cache.NormalizeQueryText(text)
		if g.issued[normalized] {
			continue
		}
		g.issued[normalized] = true

		category := types.CategoryOther
		if spec, ok := g.fields[field]; ok && spec.Category != "" {
			category = spec.Category
		}
		queries = append(queries, types.SearchQuery{
			Text:       text,
			MaxResults: g.maxResults,
			MinResults: g.minResults,
			Category:   category,
		})
	}
	return queries
}
