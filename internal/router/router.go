// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package router orchestrates one logical search query: cache lookup,
// health-gated provider fallback, deduplication, scoring, and cache
// write-back. A single provider's failure is never surfaced to the
// caller; the router prefers a partial result set over no result set.
//
// See docs/ARCHITECTURE § Search Router.
package router

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/meshintel/scout/internal/cache"
	"github.com/meshintel/scout/internal/dedup"
	"github.com/meshintel/scout/internal/health"
	"github.com/meshintel/scout/internal/provider"
	"github.com/meshintel/scout/internal/score"
	"github.com/meshintel/scout/pkg/types"
)

// Outcome is the result of executing one query.
type Outcome struct {
	// Results is the scored result set, deduplicated against the caller's
	// accumulated results for live searches. May be empty.
	Results []types.ScoredResult

	// Provider is the backend that served the query; empty when every
	// provider was exhausted without an acceptable response.
	Provider string

	// Cost is the cost units spent on live provider calls for this query.
	// Zero on a cache hit.
	Cost float64

	// FromCache reports whether the response came from the cache.
	FromCache bool
}

// Router executes queries against the fallback chain.
type Router struct {
	clients []provider.Client
	specs   []types.ProviderSpec
	tracker *health.Tracker
	store   *cache.Store
	filter  *dedup.Filter
	scorer  *score.Scorer
	cfg     types.SearchConfig
	w       io.Writer
	now     func() time.Time
}

// New builds a Router. The clients slice must be parallel to the specs
// slice (same provider in the same position); store may be nil to run
// without a cache, and w receives warning lines (io.Discard when nil).
func New(clients []provider.Client, specs []types.ProviderSpec, tracker *health.Tracker,
	store *cache.Store, filter *dedup.Filter, scorer *score.Scorer,
	cfg types.SearchConfig, w io.Writer) *Router {
	if w == nil {
		w = io.Discard
	}
	return &Router{
		clients: clients,
		specs:   specs,
		tracker: tracker,
		store:   store,
		filter:  filter,
		scorer:  scorer,
		cfg:     cfg,
		w:       w,
		now:     time.Now,
	}
}

// SetClock overrides the router's clock for tests.
func (r *Router) SetClock(now func() time.Time) { r.now = now }

// Execute runs one query. existing is the caller's accumulated result set;
// live responses are deduplicated against it before scoring. The cache
// stores the full scored provider response, not the deduplicated view, so
// future distinct queries can still use the whole set.
//
// Only a malformed query produces an error; provider failures fall through
// the chain and exhaustion returns the best partial outcome instead.
func (r *Router) Execute(ctx context.Context, query types.SearchQuery, existing []types.ScoredResult) (Outcome, error) {
	if strings.TrimSpace(query.Text) == "" {
		return Outcome{}, fmt.Errorf("query text is empty")
	}
	if query.MaxResults <= 0 {
		return Outcome{}, fmt.Errorf("query max_results must be positive, got %d", query.MaxResults)
	}

	key := cache.Key(query.Text, query.MaxResults)

	if r.store != nil {
		entry, err := r.store.Lookup(key)
		if err != nil {
			// Storage trouble degrades to a cache miss.
			fmt.Fprintf(r.w, "warning: cache lookup failed: %v\n", err)
		}
		if entry != nil {
			return Outcome{Results: entry.Results, Provider: entry.Provider, FromCache: true}, nil
		}
	}

	raw, used, cost := r.searchChain(ctx, query)
	if len(raw) == 0 {
		return Outcome{Cost: cost}, nil
	}

	// Full scored response for the cache; the caller's view is deduped.
	fullScored := r.scorer.ScoreAll(raw, query)

	if r.store != nil && used != "" && ctx.Err() == nil {
		if _, err := r.store.Store(key, fullScored, used, cost); err != nil {
			// A failed store never blocks the search itself.
			fmt.Fprintf(r.w, "warning: cache store failed: %v\n", err)
		}
	}

	survivors := r.filter.Dedupe(existing, raw)
	results := r.scorer.ScoreAll(survivors, query)

	return Outcome{Results: results, Provider: used, Cost: cost}, nil
}

// searchChain walks the cost-ascending provider list and returns the first
// acceptable response. When every provider fails or comes up short it
// returns the largest partial response seen with an empty provider name,
// which also keeps partials out of the cache.
func (r *Router) searchChain(ctx context.Context, query types.SearchQuery) (raw []types.RawResult, used string, cost float64) {
	var bestPartial []types.RawResult

	for i, client := range r.clients {
		if ctx.Err() != nil {
			break
		}
		name := client.Name()
		if !r.tracker.IsEligible(name, r.now()) {
			fmt.Fprintf(r.w, "warning: provider %s in cooldown, skipping\n", name)
			continue
		}

		callCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		started := r.now()
		results, err := client.Search(callCtx, query.Text, query.MaxResults, r.cfg)
		cancel()

		cost += r.specs[i].CostUnits

		if err != nil {
			r.tracker.RecordFailure(name)
			if provider.IsPermanent(err) {
				// Backoff alone will not fix a bad key; make it loud.
				fmt.Fprintf(r.w, "warning: provider %s permanent failure (check configuration): %v\n", name, err)
			} else {
				fmt.Fprintf(r.w, "warning: provider %s failed: %v\n", name, err)
			}
			continue
		}

		if len(results) < query.MinResults {
			// Insufficient counts against provider health too, so a
			// backend that consistently returns thin responses loses
			// its place in the chain for a while.
			r.tracker.RecordFailure(name)
			fmt.Fprintf(r.w, "warning: provider %s returned %d results, need %d\n", name, len(results), query.MinResults)
			if len(results) > len(bestPartial) {
				bestPartial = results
			}
			continue
		}

		r.tracker.RecordSuccess(name, r.now().Sub(started))
		return results, name, cost
	}

	return bestPartial, "", cost
}
