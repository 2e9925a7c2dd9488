// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package router

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshintel/scout/internal/cache"
	"github.com/meshintel/scout/internal/dedup"
	"github.com/meshintel/scout/internal/health"
	"github.com/meshintel/scout/internal/provider"
	"github.com/meshintel/scout/internal/score"
	"github.com/meshintel/scout/pkg/types"
)

// mockClient scripts one provider's behavior and records invocations.
type mockClient struct {
	name    string
	results []types.RawResult
	err     error
	calls   int
}

func (m *mockClient) Name() string { return m.name }

func (m *mockClient) Search(_ context.Context, _ string, _ int, _ types.SearchConfig) ([]types.RawResult, error) {
	m.calls++
	return m.results, m.err
}

// rawResults builds n fixture results with distinct text per rank so the
// near-duplicate filter keeps them all.
func rawResults(providerName string, n int) []types.RawResult {
	titles := []string{
		"Acme Corp quarterly earnings beat estimates",
		"Acme Corp opens new distribution hub",
		"Acme Corp partners with logistics startup",
		"Acme Corp faces regulatory scrutiny in Europe",
		"Acme Corp hires head of engineering",
	}
	snippets := []string{
		"Earnings rose on strong demand across all regions.",
		"The hub will serve customers throughout the midwest.",
		"The partnership covers last-mile delivery routes.",
		"Regulators opened an inquiry into billing practices.",
		"The hire signals a push into developer tooling.",
	}
	results := make([]types.RawResult, 0, n)
	for i := range n {
		results = append(results, types.RawResult{
			URL:      "https://example.com/" + providerName + "/" + string(rune('a'+i)),
			Title:    titles[i%len(titles)],
			Snippet:  snippets[i%len(snippets)],
			Provider: providerName,
			Rank:     i,
		})
	}
	return results
}

func testQuery() types.SearchQuery {
	return types.SearchQuery{Text: "Acme Corp market share", MaxResults: 10, MinResults: 2, Category: types.CategoryCompetitive}
}

func testSearchCfg() types.SearchConfig {
	return types.SearchConfig{
		HTTPConfig: types.HTTPConfig{Timeout: time.Second, UserAgent: "scout-test/0.1"},
		MaxResults: 10,
		MinResults: 2,
	}
}

// newTestRouter wires a router with mock clients and an optional cache.
func newTestRouter(t *testing.T, store *cache.Store, clients ...*mockClient) *Router {
	t.Helper()
	generic := make([]provider.Client, len(clients))
	specs := make([]types.ProviderSpec, len(clients))
	for i, c := range clients {
		generic[i] = c
		specs[i] = types.ProviderSpec{Name: c.name, CostUnits: 0.01}
	}

	scorer, err := score.NewScorer(types.ScoreConfig{AuthorityWeight: 0.4, RelevanceWeight: 0.4, RankWeight: 0.2})
	require.NoError(t, err)

	filter := dedup.NewFilter(nil, 0.85)
	return New(generic, specs, health.NewTracker(), store, filter, scorer, testSearchCfg(), &bytes.Buffer{})
}

func newTestStore(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.NewStore(types.CacheConfig{Dir: t.TempDir(), TTLDays: 30})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// --- malformed input ---

func TestExecuteRejectsMalformedQuery(t *testing.T) {
	r := newTestRouter(t, nil, &mockClient{name: "p1", results: rawResults("p1", 3)})

	_, err := r.Execute(context.Background(), types.SearchQuery{Text: "  ", MaxResults: 10}, nil)
	assert.ErrorContains(t, err, "query text is empty")

	_, err = r.Execute(context.Background(), types.SearchQuery{Text: "acme", MaxResults: 0}, nil)
	assert.ErrorContains(t, err, "max_results must be positive")
}

// --- fallback ordering ---

func TestFallbackSkipsFailedProviderAndStops(t *testing.T) {
	p1 := &mockClient{name: "p1", err: errors.New("connection refused")}
	p2 := &mockClient{name: "p2", results: rawResults("p2", 3)}
	p3 := &mockClient{name: "p3", results: rawResults("p3", 3)}
	r := newTestRouter(t, nil, p1, p2, p3)

	outcome, err := r.Execute(context.Background(), testQuery(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, p1.calls)
	assert.Equal(t, 1, p2.calls)
	assert.Equal(t, 0, p3.calls, "p3 must not be invoked once p2 satisfies the query")
	assert.Equal(t, "p2", outcome.Provider)
	assert.False(t, outcome.FromCache)
	assert.Len(t, outcome.Results, 3)
	assert.InDelta(t, 0.02, outcome.Cost, 1e-9, "cost covers the failed and the successful call")
}

func TestFallbackSkipsIneligibleProvider(t *testing.T) {
	p1 := &mockClient{name: "p1", err: errors.New("down")}
	p2 := &mockClient{name: "p2", results: rawResults("p2", 3)}
	r := newTestRouter(t, nil, p1, p2)

	// Push p1 past the failure threshold; the next execute must not try it.
	for range 3 {
		_, err := r.Execute(context.Background(), testQuery(), nil)
		require.NoError(t, err)
	}
	require.Equal(t, 3, p1.calls)

	_, err := r.Execute(context.Background(), testQuery(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, p1.calls, "p1 is in cooldown and must be skipped")
	assert.Equal(t, 4, p2.calls)
}

func TestInsufficientResultsTriggerFallback(t *testing.T) {
	p1 := &mockClient{name: "p1", results: rawResults("p1", 1)} // below MinResults
	p2 := &mockClient{name: "p2", results: rawResults("p2", 2)}
	r := newTestRouter(t, nil, p1, p2)

	outcome, err := r.Execute(context.Background(), testQuery(), nil)
	require.NoError(t, err)
	assert.Equal(t, "p2", outcome.Provider)
	assert.Len(t, outcome.Results, 2)
}

// --- exhaustion ---

func TestAllProvidersFailReturnsEmptyOutcome(t *testing.T) {
	p1 := &mockClient{name: "p1", err: errors.New("down")}
	p2 := &mockClient{name: "p2", err: errors.New("down")}
	p3 := &mockClient{name: "p3", err: errors.New("down")}
	r := newTestRouter(t, nil, p1, p2, p3)

	outcome, err := r.Execute(context.Background(), testQuery(), nil)
	require.NoError(t, err, "provider exhaustion is not an error")
	assert.Empty(t, outcome.Results)
	assert.Equal(t, "", outcome.Provider)
	assert.False(t, outcome.FromCache)
}

func TestExhaustionReturnsBestPartial(t *testing.T) {
	p1 := &mockClient{name: "p1", results: rawResults("p1", 1)}
	p2 := &mockClient{name: "p2", err: errors.New("down")}
	r := newTestRouter(t, nil, p1, p2)

	outcome, err := r.Execute(context.Background(), testQuery(), nil)
	require.NoError(t, err)
	assert.Len(t, outcome.Results, 1, "partial success beats total failure")
	assert.Equal(t, "", outcome.Provider, "no provider fully served the query")
}

// --- caching ---

func TestCacheHitShortCircuitsProviders(t *testing.T) {
	store := newTestStore(t)
	p1 := &mockClient{name: "p1", results: rawResults("p1", 5)}
	r := newTestRouter(t, store, p1)

	query := types.SearchQuery{Text: "Acme Corp revenue 2024", MaxResults: 10, MinResults: 2}

	first, err := r.Execute(context.Background(), query, nil)
	require.NoError(t, err)
	require.Len(t, first.Results, 5)
	require.False(t, first.FromCache)
	require.Equal(t, 1, p1.calls)

	second, err := r.Execute(context.Background(), query, nil)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, 0.0, second.Cost)
	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, 1, p1.calls, "cache hit must not touch providers")
}

func TestCacheKeyNormalization(t *testing.T) {
	store := newTestStore(t)
	p1 := &mockClient{name: "p1", results: rawResults("p1", 3)}
	r := newTestRouter(t, store, p1)

	_, err := r.Execute(context.Background(), types.SearchQuery{Text: "Acme Corp Revenue", MaxResults: 10, MinResults: 2}, nil)
	require.NoError(t, err)

	outcome, err := r.Execute(context.Background(), types.SearchQuery{Text: "  acme   corp revenue ", MaxResults: 10, MinResults: 2}, nil)
	require.NoError(t, err)
	assert.True(t, outcome.FromCache, "functionally identical queries share a slot")
	assert.Equal(t, 1, p1.calls)
}

func TestCacheStoresFullResponseNotDedupedView(t *testing.T) {
	store := newTestStore(t)
	p1 := &mockClient{name: "p1", results: rawResults("p1", 4)}
	r := newTestRouter(t, store, p1)

	// Existing results overlap two of the four incoming URLs.
	existing := []types.ScoredResult{
		{RawResult: rawResults("p1", 4)[0]},
		{RawResult: rawResults("p1", 4)[1]},
	}

	query := testQuery()
	outcome, err := r.Execute(context.Background(), query, existing)
	require.NoError(t, err)
	assert.Len(t, outcome.Results, 2, "caller sees only genuinely new results")

	entry, err := store.Lookup(cache.Key(query.Text, query.MaxResults))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Len(t, entry.Results, 4, "cache keeps the full provider response")
}

func TestExhaustedQueryIsNotCached(t *testing.T) {
	store := newTestStore(t)
	p1 := &mockClient{name: "p1", err: errors.New("down")}
	r := newTestRouter(t, store, p1)

	query := testQuery()
	_, err := r.Execute(context.Background(), query, nil)
	require.NoError(t, err)

	entry, err := store.Lookup(cache.Key(query.Text, query.MaxResults))
	require.NoError(t, err)
	assert.Nil(t, entry)
}

// --- health accounting ---

func TestHealthRecordsSuccessAndFailure(t *testing.T) {
	p1 := &mockClient{name: "p1", err: errors.New("down")}
	p2 := &mockClient{name: "p2", results: rawResults("p2", 3)}

	generic := []provider.Client{p1, p2}
	specs := []types.ProviderSpec{{Name: "p1", CostUnits: 0}, {Name: "p2", CostUnits: 0}}
	tracker := health.NewTracker()
	scorer, err := score.NewScorer(types.ScoreConfig{AuthorityWeight: 0.4, RelevanceWeight: 0.4, RankWeight: 0.2})
	require.NoError(t, err)
	r := New(generic, specs, tracker, nil, dedup.NewFilter(nil, 0.85), scorer, testSearchCfg(), nil)

	_, err = r.Execute(context.Background(), testQuery(), nil)
	require.NoError(t, err)

	snap := tracker.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, 1, snap[0].ConsecutiveFailures) // p1
	assert.Equal(t, 0, snap[1].ConsecutiveFailures) // p2
	assert.Equal(t, 1, snap[1].TotalSuccesses)
}
