// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meshintel/scout/internal/cache"
	"github.com/meshintel/scout/internal/dedup"
	"github.com/meshintel/scout/internal/health"
	"github.com/meshintel/scout/internal/provider"
	"github.com/meshintel/scout/internal/router"
	"github.com/meshintel/scout/internal/score"
	"github.com/meshintel/scout/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Execute a single query through the provider fallback chain",
	Long: `Search runs one query through the cache and the cost-ascending provider
chain, then prints the scored results. Useful for probing what a research
run would see for a given query, and for warming the cache.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		maxResults, _ := cmd.Flags().GetInt("max-results")
		minResults, _ := cmd.Flags().GetInt("min-results")
		asJSON, _ := cmd.Flags().GetBool("json")
		noCache, _ := cmd.Flags().GetBool("no-cache")

		cfg, err := loadPipelineConfig()
		if err != nil {
			return err
		}
		if maxResults <= 0 {
			maxResults = cfg.Search.MaxResults
		}
		if minResults <= 0 {
			minResults = cfg.Search.MinResults
		}

		var store *cache.Store
		if !noCache {
			store, err = cache.NewStore(cfg.Cache)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: cache unavailable: %v\n", err)
				store = nil
			} else {
				defer store.Close()
			}
		}

		clients, err := provider.FromChain(cfg.Search.Providers, cfg.Search)
		if err != nil {
			return err
		}
		scorer, err := score.NewScorer(cfg.Score)
		if err != nil {
			return err
		}

		rt := router.New(clients, cfg.Search.Providers, health.NewTracker(), store,
			dedup.NewFilter(nil, cfg.Dedup.SimilarityThreshold), scorer, cfg.Search, os.Stderr)

		query := types.SearchQuery{
			Text:       args[0],
			MaxResults: maxResults,
			MinResults: minResults,
			Category:   types.CategoryOther,
		}
		outcome, err := rt.Execute(cmd.Context(), query, nil)
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(outcome.Results)
		}
		formatTable(outcome, os.Stdout)
		return nil
	},
}

// formatTable writes an outcome as a human-readable table.
func formatTable(outcome router.Outcome, w io.Writer) {
	if len(outcome.Results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-55s  %-6s  %-6s  %s\n", "Rank", "Title", "Score", "Auth", "URL")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for i, r := range outcome.Results {
		title := r.Title
		if len(title) > 55 {
			title = title[:52] + "..."
		}
		url := r.URL
		if len(url) > 40 {
			url = url[:37] + "..."
		}
		fmt.Fprintf(w, "%-4d  %-55s  %-6.2f  %-6.2f  %s\n", i+1, title, r.CombinedScore, r.AuthorityScore, url)
	}

	fmt.Fprintf(w, "\n%d results", len(outcome.Results))
	if outcome.FromCache {
		fmt.Fprint(w, " (cached)")
	} else if outcome.Provider != "" {
		fmt.Fprintf(w, " via %s (cost %.4f)", outcome.Provider, outcome.Cost)
	} else {
		fmt.Fprint(w, " (partial: all providers exhausted)")
	}
	fmt.Fprintln(w)
}

func init() {
	searchCmd.Flags().Int("max-results", 0, "maximum number of results to request (default from config)")
	searchCmd.Flags().Int("min-results", 0, "minimum acceptable result count before fallback (default from config)")
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	searchCmd.Flags().Bool("no-cache", false, "bypass the persistent cache")

	rootCmd.AddCommand(searchCmd)
}
