// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshintel/scout/internal/dedup"
	"github.com/meshintel/scout/internal/health"
	"github.com/meshintel/scout/internal/provider"
	"github.com/meshintel/scout/internal/quality"
	"github.com/meshintel/scout/internal/router"
	"github.com/meshintel/scout/internal/score"
	"github.com/meshintel/scout/pkg/types"
)

// mockClient serves every query from a fixed result set. Safe for the
// concurrent worker pool.
type mockClient struct {
	mu      sync.Mutex
	name    string
	results []types.RawResult
	err     error
	calls   int
}

func (m *mockClient) Name() string { return m.name }

func (m *mockClient) Search(_ context.Context, _ string, _ int, _ types.SearchConfig) ([]types.RawResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.results, m.err
}

func (m *mockClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// seqSemantic replays a scripted sequence of scores, one per assessment,
// holding the last one once the script runs out.
type seqSemantic struct {
	scores  []float64
	missing []string
	calls   int
}

func (s *seqSemantic) AssessQuality(_ context.Context, _, _ string) (float64, []string, error) {
	i := s.calls
	s.calls++
	if i >= len(s.scores) {
		i = len(s.scores) - 1
	}
	return s.scores[i], s.missing, nil
}

type stubExtractor struct {
	fields map[string]string
	err    error
	calls  int
}

func (e *stubExtractor) Extract(_ context.Context, _ []types.ScoredResult, _ string) (map[string]string, error) {
	e.calls++
	return e.fields, e.err
}

// fullCoverage builds n distinct results that together mention a synonym
// for every built-in required field. Texts differ enough per result that
// the near-duplicate filter keeps them all.
func fullCoverage(n int) []types.RawResult {
	titles := []string{
		"Acme Corp annual revenue climbs again",
		"Acme Corp leadership profile",
		"Acme Corp product platform deep dive",
		"Acme Corp company history",
	}
	snippets := []string{
		"Revenue grew twenty percent over the prior fiscal year.",
		"The CEO and executives oversee roughly 500 employees worldwide.",
		"Its product line competes with every major competitor on a subscription business model.",
		"Founded in 2010 and headquartered in Austin after a funding round from early investors.",
	}
	results := make([]types.RawResult, 0, n)
	for i := range n {
		results = append(results, types.RawResult{
			URL:      "https://news.example/acme/" + string(rune('a'+i)),
			Title:    titles[i%len(titles)],
			Snippet:  snippets[i%len(snippets)],
			Provider: "p1",
			Rank:     i,
		})
	}
	return results
}

// noCoverage builds distinct results that avoid every field synonym.
func noCoverage(n int) []types.RawResult {
	titles := []string{
		"Weekend weather outlook",
		"Local sports recap",
		"Gardening notes for spring",
	}
	snippets := []string{
		"Expect scattered showers and a cool breeze on Saturday.",
		"The home side won a close match in extra time.",
		"Start seedlings indoors before the last frost date.",
	}
	results := make([]types.RawResult, 0, n)
	for i := range n {
		results = append(results, types.RawResult{
			URL:      "https://blog.example/post/" + string(rune('a'+i)),
			Title:    titles[i%len(titles)],
			Snippet:  snippets[i%len(snippets)],
			Provider: "p1",
			Rank:     i,
		})
	}
	return results
}

type testPipeline struct {
	controller *Controller
	client     *mockClient
	out        *bytes.Buffer
}

func newTestPipeline(t *testing.T, client *mockClient, semantic quality.SemanticScorer,
	extractor Extractor, engineCfg types.EngineConfig, costUnits float64) *testPipeline {
	t.Helper()

	scorer, err := score.NewScorer(types.ScoreConfig{AuthorityWeight: 0.4, RelevanceWeight: 0.4, RankWeight: 0.2})
	require.NoError(t, err)

	filter := dedup.NewFilter(nil, 0.85)
	searchCfg := types.SearchConfig{
		HTTPConfig: types.HTTPConfig{Timeout: time.Second, UserAgent: "scout-test/0.1"},
		MaxResults: 10,
		MinResults: 1,
	}
	out := &bytes.Buffer{}
	r := router.New(
		[]provider.Client{client},
		[]types.ProviderSpec{{Name: client.name, CostUnits: costUnits}},
		health.NewTracker(), nil, filter, scorer, searchCfg, out,
	)

	qualityCfg := types.QualityConfig{
		Threshold:          85,
		SemanticWeight:     0.6,
		FieldWeight:        0.4,
		CriticalPenalty:    5,
		CriticalPenaltyCap: 20,
		MaxGapQueries:      10,
	}
	assessor, err := quality.NewAssessor(semantic, qualityCfg)
	require.NoError(t, err)
	gaps := quality.NewGapGenerator(assessor.Fields(), qualityCfg.MaxGapQueries, 10, 1)

	return &testPipeline{
		controller: New(r, filter, assessor, gaps, extractor, engineCfg, out),
		client:     client,
		out:        out,
	}
}

func seedQueries(entity string) []types.SearchQuery {
	return DefaultSeedQueries(entity, 10, 1)
}

func TestRunRejectsMalformedInput(t *testing.T) {
	client := &mockClient{name: "p1", results: fullCoverage(3)}
	p := newTestPipeline(t, client, nil, nil, types.EngineConfig{MaxIterations: 2, MaxConcurrentQueries: 2}, 0)

	_, _, err := p.controller.Run(context.Background(), "  ", seedQueries("Acme Corp"))
	assert.ErrorContains(t, err, "entity name is empty")

	_, _, err = p.controller.Run(context.Background(), "Acme Corp", nil)
	assert.ErrorContains(t, err, "no seed queries")

	_, _, err = p.controller.Run(context.Background(), "Acme Corp", []types.SearchQuery{{Text: " ", MaxResults: 10}})
	assert.ErrorContains(t, err, "query text is empty")

	_, _, err = p.controller.Run(context.Background(), "Acme Corp", []types.SearchQuery{{Text: "acme"}})
	assert.ErrorContains(t, err, "max_results must be positive")

	assert.Equal(t, 0, client.callCount(), "validation happens before any provider call")
}

func TestRunStopsWhenQualityCrossesThreshold(t *testing.T) {
	// Round one scores below the gate, round two above it; the loop must
	// stop after exactly two searching phases even with budget to spare.
	sem := &seqSemantic{scores: []float64{70, 90}, missing: []string{"recent acquisitions"}}
	client := &mockClient{name: "p1", results: fullCoverage(4)}
	p := newTestPipeline(t, client, sem, nil, types.EngineConfig{MaxIterations: 5, MaxConcurrentQueries: 2}, 0)

	state, report, err := p.controller.Run(context.Background(), "Acme Corp", seedQueries("Acme Corp"))
	require.NoError(t, err)

	assert.Equal(t, 2, state.IterationCount)
	assert.Equal(t, 2, sem.calls)
	assert.False(t, state.Incomplete)
	require.NotNil(t, report.SemanticScore)
	assert.InDelta(t, 90, *report.SemanticScore, 1e-9)
	// Full field coverage: composite is 0.6*90 + 0.4*100.
	assert.InDelta(t, 94, report.CompositeScore, 1e-9)
	assert.Equal(t, report.CompositeScore, state.QualityScore)
	assert.Empty(t, report.RecommendedQueries, "nothing left to ask once the gate passes")
	assert.NotEmpty(t, state.SessionID)
}

func TestRunHonorsIterationBudget(t *testing.T) {
	client := &mockClient{name: "p1", results: noCoverage(3)}
	p := newTestPipeline(t, client, nil, nil, types.EngineConfig{MaxIterations: 1, MaxConcurrentQueries: 2}, 0)

	state, report, err := p.controller.Run(context.Background(), "Acme Corp", seedQueries("Acme Corp"))
	require.NoError(t, err)

	assert.Equal(t, 1, state.IterationCount, "budget of one round despite poor quality")
	assert.Less(t, report.CompositeScore, 85.0)
	assert.NotEmpty(t, state.MissingFields)
	assert.NotEmpty(t, report.RecommendedQueries,
		"a budget-stopped report carries the follow-up queries")
	for _, q := range report.RecommendedQueries {
		assert.Contains(t, q.Text, "Acme Corp")
	}
}

func TestRunStopsWhenGapsExhausted(t *testing.T) {
	// Quality never improves and every field's gap query gets issued in
	// round two, so round three has nothing new to ask and the loop ends
	// well under the iteration budget.
	client := &mockClient{name: "p1", results: noCoverage(3)}
	p := newTestPipeline(t, client, nil, nil, types.EngineConfig{MaxIterations: 10, MaxConcurrentQueries: 2}, 0)

	state, _, err := p.controller.Run(context.Background(), "Acme Corp", seedQueries("Acme Corp"))
	require.NoError(t, err)

	assert.Equal(t, 2, state.IterationCount)
	assert.False(t, state.Incomplete)
}

func TestRunCancellationReturnsPartialState(t *testing.T) {
	client := &mockClient{name: "p1", results: fullCoverage(3)}
	p := newTestPipeline(t, client, nil, nil, types.EngineConfig{MaxIterations: 2, MaxConcurrentQueries: 2}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	state, _, err := p.controller.Run(ctx, "Acme Corp", seedQueries("Acme Corp"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, state.Incomplete)
	assert.NotEmpty(t, state.SessionID)
}

func TestRunAccumulatesCost(t *testing.T) {
	client := &mockClient{name: "p1", results: fullCoverage(3)}
	p := newTestPipeline(t, client, nil, nil, types.EngineConfig{MaxIterations: 1, MaxConcurrentQueries: 2}, 0.01)

	seed := seedQueries("Acme Corp")
	state, _, err := p.controller.Run(context.Background(), "Acme Corp", seed)
	require.NoError(t, err)

	assert.InDelta(t, 0.01*float64(len(seed)), state.TotalCost, 1e-9)
	assert.Equal(t, len(seed), p.client.callCount())
}

func TestRunMergesWithoutDuplicates(t *testing.T) {
	// Every query returns the same four results; the accumulated set must
	// contain each URL once regardless of worker interleaving.
	client := &mockClient{name: "p1", results: fullCoverage(4)}
	p := newTestPipeline(t, client, nil, nil, types.EngineConfig{MaxIterations: 1, MaxConcurrentQueries: 3}, 0)

	state, _, err := p.controller.Run(context.Background(), "Acme Corp", seedQueries("Acme Corp"))
	require.NoError(t, err)

	assert.Len(t, state.AllResults, 4)
	seen := make(map[string]bool)
	for _, r := range state.AllResults {
		assert.False(t, seen[r.URL], "duplicate URL %s", r.URL)
		seen[r.URL] = true
	}
}

func TestRunMergesExtractedFields(t *testing.T) {
	extractor := &stubExtractor{fields: map[string]string{
		"revenue":      "$120M (2025)",
		"headquarters": "Austin, TX",
		"empty":        "  ",
	}}
	client := &mockClient{name: "p1", results: noCoverage(3)}
	p := newTestPipeline(t, client, nil, extractor, types.EngineConfig{MaxIterations: 1, MaxConcurrentQueries: 2}, 0)

	state, report, err := p.controller.Run(context.Background(), "Acme Corp", seedQueries("Acme Corp"))
	require.NoError(t, err)

	assert.Equal(t, 1, extractor.calls)
	assert.Equal(t, "$120M (2025)", state.Fields["revenue"])
	assert.True(t, state.FieldPresence["headquarters"])
	assert.NotContains(t, state.Fields, "empty", "blank extractions are dropped")
	assert.NotContains(t, report.CriticalMissing, "revenue")
}

func TestRunAbsorbsExtractorFailure(t *testing.T) {
	extractor := &stubExtractor{err: errors.New("collaborator unavailable")}
	client := &mockClient{name: "p1", results: noCoverage(3)}
	p := newTestPipeline(t, client, nil, extractor, types.EngineConfig{MaxIterations: 1, MaxConcurrentQueries: 2}, 0)

	state, _, err := p.controller.Run(context.Background(), "Acme Corp", seedQueries("Acme Corp"))
	require.NoError(t, err, "extraction failure must not abort the run")
	assert.False(t, state.Incomplete)
	assert.Contains(t, p.out.String(), "extraction failed")
}
