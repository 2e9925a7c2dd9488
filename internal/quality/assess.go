// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package quality decides whether accumulated research is good enough to
// stop. The assessment is two-tier: a cheap deterministic field-presence
// check that always runs, and an optional semantic judgment from an
// external collaborator. The iteration loop can therefore make a go/no-go
// decision even when the semantic collaborator is down or over budget.
//
// Field detection is a data-driven synonym table, not inline conditionals,
// so it can be swapped for a smarter detector without touching the
// assessment control flow.
//
// See docs/ARCHITECTURE § Quality Gate.
package quality

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/meshintel/scout/pkg/types"
)

// FieldSpec describes one required research field.
type FieldSpec struct {
	// Synonyms are the keyword variants whose presence in accumulated
	// text marks the field as covered.
	Synonyms []string `yaml:"synonyms"`

	// Critical fields carry a score penalty while missing.
	Critical bool `yaml:"critical,omitempty"`

	// Category steers gap-query generation for this field.
	Category types.QueryCategory `yaml:"category,omitempty"`
}

// RequiredFields maps field name to its spec.
type RequiredFields map[string]FieldSpec

// DefaultRequiredFields returns the built-in field table for company
// research.
func DefaultRequiredFields() RequiredFields {
	return RequiredFields{
		"revenue": {
			Synonyms: []string{"revenue", "annual revenue", "turnover", "sales figures"},
			Critical: true,
			Category: types.CategoryOfficialFilings,
		},
		"leadership": {
			Synonyms: []string{"ceo", "chief executive", "founder", "leadership team", "executives"},
			Critical: true,
			Category: types.CategoryLeadership,
		},
		"products": {
			Synonyms: []string{"product", "platform", "service offering", "solution"},
			Critical: true,
			Category: types.CategoryProduct,
		},
		"competitors": {
			Synonyms: []string{"competitor", "rival", "market share", "competes with"},
			Category: types.CategoryCompetitive,
		},
		"funding": {
			Synonyms: []string{"funding", "raised", "series a", "series b", "investment round", "investors"},
			Category: types.CategoryInvestorRelations,
		},
		"founding": {
			Synonyms: []string{"founded", "established", "incorporated"},
			Category: types.CategoryOverview,
		},
		"headquarters": {
			Synonyms: []string{"headquarters", "headquartered", "based in"},
			Category: types.CategoryOverview,
		},
		"headcount": {
			Synonyms: []string{"employees", "headcount", "workforce", "staff size"},
			Category: types.CategoryOverview,
		},
		"business_model": {
			Synonyms: []string{"business model", "monetization", "pricing", "subscription"},
			Category: types.CategoryProduct,
		},
	}
}

// LoadRequiredFields reads a YAML field table from path.
func LoadRequiredFields(path string) (RequiredFields, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading required fields %s: %w", path, err)
	}
	var fields RequiredFields
	if err := yaml.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("parsing required fields %s: %w", path, err)
	}
	return fields, nil
}

// SemanticScorer is the optional external collaborator that judges the
// completeness and depth of accumulated research holistically, 0-100.
type SemanticScorer interface {
	AssessQuality(ctx context.Context, entityName, accumulatedText string) (score float64, missing []string, err error)
}

// Assessor computes quality reports over research state.
type Assessor struct {
	fields   RequiredFields
	semantic SemanticScorer
	cfg      types.QualityConfig
}

// NewAssessor builds an Assessor. semantic may be nil; assessment then
// falls back to field-only scoring. When cfg.RequiredFieldsFile is set the
// file replaces the built-in table.
func NewAssessor(semantic SemanticScorer, cfg types.QualityConfig) (*Assessor, error) {
	fields := DefaultRequiredFields()
	if cfg.RequiredFieldsFile != "" {
		loaded, err := LoadRequiredFields(cfg.RequiredFieldsFile)
		if err != nil {
			return nil, err
		}
		fields = loaded
	}
	return &Assessor{fields: fields, semantic: semantic, cfg: cfg}, nil
}

// Fields exposes the active field table for gap generation.
func (a *Assessor) Fields() RequiredFields { return a.fields }

// Threshold returns the configured stop threshold.
func (a *Assessor) Threshold() float64 { return a.cfg.Threshold }

// Assess computes the composite quality report for the accumulated state.
// A semantic collaborator error degrades to field-only scoring; the
// research run completes rather than aborting.
func (a *Assessor) Assess(ctx context.Context, state *types.ResearchState) types.QualityReport {
	text := AccumulatedText(state)

	var criticalMissing, importantMissing []string
	present := 0
	for _, name := range sortedFieldNames(a.fields) {
		spec := a.fields[name]
		found := state.FieldPresence[name] || anySynonymPresent(text, spec.Synonyms)
		if found {
			present++
			continue
		}
		if spec.Critical {
			criticalMissing = append(criticalMissing, name)
		} else {
			importantMissing = append(importantMissing, name)
		}
	}

	fieldScore := 0.0
	if len(a.fields) > 0 {
		fieldScore = 100 * float64(present) / float64(len(a.fields))
	}

	penalty := a.cfg.CriticalPenalty * float64(len(criticalMissing))
	if penalty > a.cfg.CriticalPenaltyCap {
		penalty = a.cfg.CriticalPenaltyCap
	}
	adjusted := clamp(fieldScore - penalty)

	report := types.QualityReport{
		FieldScore:       adjusted,
		CriticalMissing:  criticalMissing,
		ImportantMissing: importantMissing,
	}

	if a.semantic != nil {
		semScore, semMissing, err := a.semantic.AssessQuality(ctx, state.Entity, text)
		if err == nil {
			clamped := clamp(semScore)
			report.SemanticScore = &clamped
			report.ImportantMissing = mergeMissing(report.ImportantMissing, semMissing, criticalMissing)
		}
	}

	if report.SemanticScore != nil {
		report.CompositeScore = clamp(a.cfg.SemanticWeight**report.SemanticScore + a.cfg.FieldWeight*adjusted)
	} else {
		report.CompositeScore = adjusted
	}
	return report
}

// AccumulatedText concatenates every piece of text the run has gathered:
// result titles and snippets plus extracted field values.
func AccumulatedText(state *types.ResearchState) string {
	var b strings.Builder
	for _, r := range state.AllResults {
		b.WriteString(r.Title)
		b.WriteByte(' ')
		b.WriteString(r.Snippet)
		b.WriteByte(' ')
	}
	for _, name := range sortedKeys(state.Fields) {
		b.WriteString(name)
		b.WriteByte(' ')
		b.WriteString(state.Fields[name])
		b.WriteByte(' ')
	}
	return strings.ToLower(b.String())
}

func anySynonymPresent(lowerText string, synonyms []string) bool {
	for _, syn := range synonyms {
		if strings.Contains(lowerText, strings.ToLower(syn)) {
			return true
		}
	}
	return false
}

// mergeMissing appends collaborator-reported missing fields that are not
// already listed, preserving deterministic order.
func mergeMissing(important, fromSemantic, critical []string) []string {
	seen := make(map[string]bool, len(important)+len(critical))
	for _, f := range important {
		seen[f] = true
	}
	for _, f := range critical {
		seen[f] = true
	}
	for _, f := range fromSemantic {
		if !seen[f] {
			important = append(important, f)
			seen[f] = true
		}
	}
	return important
}

func sortedFieldNames(fields RequiredFields) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
