// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/meshintel/scout/internal/httputil"
	"github.com/meshintel/scout/pkg/types"
)

// tavilyAPIBase is the Tavily search endpoint. Declared as a var so tests
// can substitute an httptest server.
var tavilyAPIBase = "https://api.tavily.com/search"

// TavilyClient queries the Tavily search API via JSON POST.
type TavilyClient struct {
	Client *http.Client
	APIKey string
}

// Name returns the backend identifier.
func (t *TavilyClient) Name() string { return "tavily" }

// Search posts the query to Tavily and returns raw results.
func (t *TavilyClient) Search(ctx context.Context, queryText string, maxResults int, cfg types.SearchConfig) ([]types.RawResult, error) {
	if t.APIKey == "" {
		return nil, newError(t.Name(), Permanent, errors.New("API key is missing"))
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	body := tavilyRequest{
		Query:       queryText,
		APIKey:      t.APIKey,
		MaxResults:  maxResults,
		SearchDepth: "basic",
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, newError(t.Name(), Transient, fmt.Errorf("marshaling request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tavilyAPIBase, bytes.NewReader(payload))
	if err != nil {
		return nil, newError(t.Name(), Transient, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, t.httpClient(), req, 0)
	if err != nil {
		return nil, newError(t.Name(), Transient, fmt.Errorf("Tavily API request: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, newError(t.Name(), RateLimited, fmt.Errorf("Tavily API returned HTTP %d", resp.StatusCode))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, newError(t.Name(), Permanent, fmt.Errorf("Tavily API returned HTTP %d: check tavily-api-key", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, newError(t.Name(), Transient, fmt.Errorf("Tavily API returned HTTP %d", resp.StatusCode))
	}

	var tr tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, newError(t.Name(), Transient, fmt.Errorf("parsing Tavily response: %w", err))
	}

	var results []types.RawResult
	for i, item := range tr.Results {
		if item.URL == "" {
			continue
		}
		results = append(results, types.RawResult{
			URL:      item.URL,
			Title:    item.Title,
			Snippet:  item.Content,
			Provider: t.Name(),
			Rank:     i,
		})
		if len(results) >= maxResults {
			break
		}
	}
	return results, nil
}

func (t *TavilyClient) httpClient() *http.Client {
	if t.Client != nil {
		return t.Client
	}
	return http.DefaultClient
}

// Tavily API JSON structures.
type tavilyRequest struct {
	Query       string `json:"query"`
	APIKey      string `json:"api_key"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type tavilyResponse struct {
	Results []tavilyResult `json:"results"`
}

type tavilyResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}
