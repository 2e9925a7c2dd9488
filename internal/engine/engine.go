// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine runs the bounded research loop: rounds of searching,
// extraction, and assessment until the quality gate passes or the
// iteration budget runs out. The loop is intentionally simple — finite
// iterations, monotonic cost, no convergence detection.
//
// Queries within one searching phase run concurrently on a bounded worker
// pool; the merge into the accumulated result set is the single
// synchronization point per phase and happens under a mutex, one writer
// at a time, because dedup correctness depends on seeing prior entries.
//
// See docs/ARCHITECTURE § Iteration Controller.
package engine

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/meshintel/scout/internal/dedup"
	"github.com/meshintel/scout/internal/quality"
	"github.com/meshintel/scout/internal/router"
	"github.com/meshintel/scout/pkg/types"
)

// Extractor is the external collaborator that turns scored results into
// structured facts. Consumed once per extracting phase.
type Extractor interface {
	Extract(ctx context.Context, results []types.ScoredResult, entityName string) (map[string]string, error)
}

// Controller drives the research state machine:
// Init → Searching → Extracting → Assessing → {Searching | Done}.
type Controller struct {
	router    *router.Router
	filter    *dedup.Filter
	assessor  *quality.Assessor
	gaps      *quality.GapGenerator
	extractor Extractor
	cfg       types.EngineConfig
	w         io.Writer
}

// New builds a Controller. extractor may be nil; the extracting phase is
// then skipped and field presence comes from keyword matching alone. w
// receives progress lines (io.Discard when nil).
func New(r *router.Router, filter *dedup.Filter, assessor *quality.Assessor,
	gaps *quality.GapGenerator, extractor Extractor, cfg types.EngineConfig, w io.Writer) *Controller {
	if w == nil {
		w = io.Discard
	}
	return &Controller{
		router:    r,
		filter:    filter,
		assessor:  assessor,
		gaps:      gaps,
		extractor: extractor,
		cfg:       cfg,
		w:         w,
	}
}

// DefaultSeedQueries builds the deterministic starting query set for an
// entity, one query per broad research angle.
func DefaultSeedQueries(entityName string, maxResults, minResults int) []types.SearchQuery {
	mk := func(text string, cat types.QueryCategory) types.SearchQuery {
		return types.SearchQuery{Text: text, MaxResults: maxResults, MinResults: minResults, Category: cat}
	}
	return []types.SearchQuery{
		mk(entityName+" company overview", types.CategoryOverview),
		mk(entityName+" annual revenue financial results", types.CategoryOfficialFilings),
		mk(entityName+" products services", types.CategoryProduct),
		mk(entityName+" leadership executives", types.CategoryLeadership),
		mk(entityName+" news", types.CategoryNews),
	}
}

// Run executes the research loop for entityName starting from the seed
// queries, which come from an external planning collaborator (or
// DefaultSeedQueries). It returns the accumulated state and the latest
// quality report.
//
// Malformed input errors before any I/O. Cancellation stops the loop at
// the next checkpoint and returns what has accumulated so far with the
// state tagged incomplete, alongside the context's error.
func (c *Controller) Run(ctx context.Context, entityName string, seed []types.SearchQuery) (types.ResearchState, types.QualityReport, error) {
	state := types.ResearchState{
		SessionID:     uuid.NewString(),
		Entity:        entityName,
		FieldPresence: make(map[string]bool),
		Fields:        make(map[string]string),
	}

	if strings.TrimSpace(entityName) == "" {
		return state, types.QualityReport{}, fmt.Errorf("entity name is empty")
	}
	if len(seed) == 0 {
		return state, types.QualityReport{}, fmt.Errorf("no seed queries provided")
	}
	for _, q := range seed {
		if strings.TrimSpace(q.Text) == "" {
			return state, types.QualityReport{}, fmt.Errorf("seed query text is empty")
		}
		if q.MaxResults <= 0 {
			return state, types.QualityReport{}, fmt.Errorf("seed query %q: max_results must be positive", q.Text)
		}
	}

	c.gaps.MarkIssued(seed)

	var report types.QualityReport
	pending := seed

	for {
		if err := ctx.Err(); err != nil {
			state.Incomplete = true
			return state, report, err
		}

		fmt.Fprintf(c.w, "iteration %d: searching %d queries\n", state.IterationCount+1, len(pending))
		c.searchPhase(ctx, &state, pending)

		if err := ctx.Err(); err != nil {
			state.Incomplete = true
			return state, report, err
		}

		c.extractPhase(ctx, &state)

		report = c.assessor.Assess(ctx, &state)
		state.IterationCount++
		state.QualityScore = report.CompositeScore
		state.MissingFields = missingFields(report)
		fmt.Fprintf(c.w, "iteration %d: quality %.1f (%d results, cost %.4f)\n",
			state.IterationCount, report.CompositeScore, len(state.AllResults), state.TotalCost)

		// Transition rule, evaluated in order: quality gate, then
		// iteration bound, then another round of gap queries.
		if report.CompositeScore >= c.assessor.Threshold() {
			break
		}
		// Generate gaps before the bound check so a budget-stopped report
		// still tells the caller what to ask next.
		pending = c.gaps.Generate(state.MissingFields, entityName)
		report.RecommendedQueries = pending
		if state.IterationCount >= c.cfg.MaxIterations {
			break
		}
		if len(pending) == 0 {
			// Every missing field has already been queried this session;
			// another round would repeat work.
			break
		}
	}

	return state, report, nil
}

// searchPhase dispatches pending queries through the router on a bounded
// worker pool and merges the outcomes into state one at a time.
func (c *Controller) searchPhase(ctx context.Context, state *types.ResearchState, pending []types.SearchQuery) {
	workers := c.cfg.MaxConcurrentQueries
	if workers <= 0 {
		workers = 1
	}
	if workers > len(pending) {
		workers = len(pending)
	}

	// Queries dedupe against the phase-start snapshot while in flight;
	// the merge re-checks against the live set under the lock.
	snapshot := append([]types.ScoredResult(nil), state.AllResults...)

	var mu sync.Mutex
	var wg sync.WaitGroup
	queries := make(chan types.SearchQuery)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for q := range queries {
				outcome, err := c.router.Execute(ctx, q, snapshot)
				if err != nil {
					fmt.Fprintf(c.w, "warning: query %q rejected: %v\n", q.Text, err)
					continue
				}

				mu.Lock()
				state.TotalCost += outcome.Cost
				merged := c.filter.DedupeScored(state.AllResults, outcome.Results)
				state.AllResults = append(state.AllResults, merged...)
				mu.Unlock()

				if outcome.Provider == "" && !outcome.FromCache && len(outcome.Results) == 0 {
					// No provider could serve this query; that is "no new
					// facts", not a failure.
					fmt.Fprintf(c.w, "warning: no results for %q\n", q.Text)
				}
			}
		}()
	}

	for _, q := range pending {
		select {
		case <-ctx.Done():
			close(queries)
			wg.Wait()
			return
		case queries <- q:
		}
	}
	close(queries)
	wg.Wait()
}

// extractPhase hands the accumulated results to the extraction
// collaborator and merges the structured facts into field presence. An
// extraction failure is absorbed; keyword matching still covers presence.
func (c *Controller) extractPhase(ctx context.Context, state *types.ResearchState) {
	if c.extractor == nil || len(state.AllResults) == 0 {
		return
	}

	fields, err := c.extractor.Extract(ctx, state.AllResults, state.Entity)
	if err != nil {
		fmt.Fprintf(c.w, "warning: extraction failed: %v\n", err)
		return
	}
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			continue
		}
		state.Fields[name] = value
		state.FieldPresence[name] = true
	}
}

func missingFields(report types.QualityReport) []string {
	missing := make([]string, 0, len(report.CriticalMissing)+len(report.ImportantMissing))
	missing = append(missing, report.CriticalMissing...)
	missing = append(missing, report.ImportantMissing...)
	return missing
}
