// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/meshintel/scout/internal/httputil"
	"github.com/meshintel/scout/pkg/types"
)

// braveAPIBase is the Brave web search endpoint. Declared as a var so
// tests can substitute an httptest server.
var braveAPIBase = "https://api.search.brave.com/res/v1/web/search"

// BraveClient queries the Brave Search API. An API key is required via
// the X-Subscription-Token header.
type BraveClient struct {
	Client *http.Client
	APIKey string
}

// Name returns the backend identifier.
func (b *BraveClient) Name() string { return "brave" }

// Search queries the Brave Search API and returns raw results.
func (b *BraveClient) Search(ctx context.Context, queryText string, maxResults int, cfg types.SearchConfig) ([]types.RawResult, error) {
	if b.APIKey == "" {
		return nil, newError(b.Name(), Permanent, errors.New("API key is missing"))
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	params := url.Values{
		"q":     {queryText},
		"count": {strconv.Itoa(maxResults)},
	}
	reqURL := braveAPIBase + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, newError(b.Name(), Transient, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.APIKey)

	resp, err := httputil.DoWithRetry(ctx, b.httpClient(), req, 0)
	if err != nil {
		return nil, newError(b.Name(), Transient, fmt.Errorf("Brave API request: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, newError(b.Name(), RateLimited, fmt.Errorf("Brave API returned HTTP %d", resp.StatusCode))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, newError(b.Name(), Permanent, fmt.Errorf("Brave API returned HTTP %d: check brave-api-key", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, newError(b.Name(), Transient, fmt.Errorf("Brave API returned HTTP %d", resp.StatusCode))
	}

	var br braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return nil, newError(b.Name(), Transient, fmt.Errorf("parsing Brave response: %w", err))
	}

	var results []types.RawResult
	for i, item := range br.Web.Results {
		if item.URL == "" {
			continue
		}
		results = append(results, types.RawResult{
			URL:      item.URL,
			Title:    item.Title,
			Snippet:  item.Description,
			Provider: b.Name(),
			Rank:     i,
		})
		if len(results) >= maxResults {
			break
		}
	}
	return results, nil
}

func (b *BraveClient) httpClient() *http.Client {
	if b.Client != nil {
		return b.Client
	}
	return http.DefaultClient
}

// Brave API JSON structures.
type braveResponse struct {
	Web braveWeb `json:"web"`
}

type braveWeb struct {
	Results []braveResult `json:"results"`
}

type braveResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}
