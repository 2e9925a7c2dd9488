// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/meshintel/scout/internal/httputil"
	"github.com/meshintel/scout/pkg/types"
)

// duckduckgoAPIBase is the DuckDuckGo lite HTML endpoint. Declared as a
// var so tests can substitute an httptest server. The lite page has a
// stable, simple structure that survives scraping better than the full
// site, and it needs no API key.
var duckduckgoAPIBase = "https://lite.duckduckgo.com/lite/"

// DuckDuckGoClient scrapes the DuckDuckGo lite interface. Free, so it
// sits first in the default fallback chain.
type DuckDuckGoClient struct {
	Client *http.Client
}

// Name returns the backend identifier.
func (d *DuckDuckGoClient) Name() string { return "duckduckgo" }

// Search posts the query to the lite endpoint and parses the result links.
func (d *DuckDuckGoClient) Search(ctx context.Context, queryText string, maxResults int, cfg types.SearchConfig) ([]types.RawResult, error) {
	if maxResults <= 0 {
		maxResults = 10
	}

	form := url.Values{}
	form.Set("q", queryText)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, duckduckgoAPIBase, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, newError(d.Name(), Transient, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", cfg.UserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httputil.DoWithRetry(ctx, d.httpClient(), req, 0)
	if err != nil {
		return nil, newError(d.Name(), Transient, fmt.Errorf("DuckDuckGo request: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, newError(d.Name(), RateLimited, fmt.Errorf("DuckDuckGo returned HTTP %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, newError(d.Name(), Transient, fmt.Errorf("DuckDuckGo returned HTTP %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(d.Name(), Transient, fmt.Errorf("reading response: %w", err))
	}

	results := parseLiteResults(string(body), maxResults)
	return results, nil
}

func (d *DuckDuckGoClient) httpClient() *http.Client {
	if d.Client != nil {
		return d.Client
	}
	return http.DefaultClient
}

// Lite page patterns: result links carry class "result-link", snippets
// class "result-snippet". Attribute order varies between the two link
// forms, so both are tried.
var (
	liteLinkPattern  = regexp.MustCompile(`<a[^>]*class=['"]result-link['"][^>]*href=['"]([^'"]+)['"][^>]*>(.*?)</a>`)
	liteLinkPattern2 = regexp.MustCompile(`<a[^>]*href=['"]([^'"]+)['"][^>]*class=['"]result-link['"][^>]*>(.*?)</a>`)
	liteSnipPattern  = regexp.MustCompile(`(?s)<td[^>]*class=['"]result-snippet['"][^>]*>(.*?)</td>`)
	liteTagPattern   = regexp.MustCompile(`<[^>]+>`)
)

// parseLiteResults extracts results from the DuckDuckGo lite HTML. Links
// and snippets appear in the same document order, so they are zipped by
// index; a missing snippet leaves the field empty rather than dropping
// the result.
func parseLiteResults(page string, maxResults int) []types.RawResult {
	links := liteLinkPattern.FindAllStringSubmatch(page, -1)
	if len(links) == 0 {
		links = liteLinkPattern2.FindAllStringSubmatch(page, -1)
	}
	snippets := liteSnipPattern.FindAllStringSubmatch(page, -1)

	var results []types.RawResult
	for i, m := range links {
		if len(results) >= maxResults {
			break
		}
		link := html.UnescapeString(m[1])
		if strings.HasPrefix(link, "//duckduckgo.com/l/?uddg=") {
			// Redirect wrapper: the real URL is in the uddg parameter.
			if u, err := url.Parse("https:" + link); err == nil {
				if target := u.Query().Get("uddg"); target != "" {
					link = target
				}
			}
		}
		if !strings.HasPrefix(link, "http") {
			continue
		}

		snippet := ""
		if i < len(snippets) {
			snippet = cleanLiteText(snippets[i][1])
		}
		results = append(results, types.RawResult{
			URL:      link,
			Title:    cleanLiteText(m[2]),
			Snippet:  snippet,
			Provider: "duckduckgo",
			Rank:     len(results),
		})
	}
	return results
}

// cleanLiteText strips tags and collapses whitespace in scraped HTML.
func cleanLiteText(s string) string {
	s = liteTagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}
