// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/meshintel/scout/internal/cache"
	"github.com/meshintel/scout/internal/dedup"
	"github.com/meshintel/scout/internal/engine"
	"github.com/meshintel/scout/internal/health"
	"github.com/meshintel/scout/internal/provider"
	"github.com/meshintel/scout/internal/quality"
	"github.com/meshintel/scout/internal/router"
	"github.com/meshintel/scout/internal/score"
	"github.com/meshintel/scout/pkg/types"
)

// researchReport is the final output document of a research run.
type researchReport struct {
	State   types.ResearchState    `json:"state" yaml:"state"`
	Quality types.QualityReport    `json:"quality" yaml:"quality"`
	Health  []types.ProviderHealth `json:"provider_health" yaml:"provider_health"`
}

var researchCmd = &cobra.Command{
	Use:   "research <entity>",
	Short: "Run the full quality-gated research loop for an entity",
	Long: `Research runs bounded rounds of multi-provider search, deduplication,
scoring, and quality assessment for the named entity. The loop stops when
the composite quality score reaches the configured threshold or the
iteration budget is spent. Progress goes to stderr; the final report goes
to stdout as YAML (or JSON with --json).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entity := args[0]
		asJSON, _ := cmd.Flags().GetBool("json")

		cfg, err := loadPipelineConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := cache.NewStore(cfg.Cache)
		if err != nil {
			// Run uncached rather than not at all.
			fmt.Fprintf(os.Stderr, "warning: cache unavailable: %v\n", err)
			store = nil
		} else {
			defer store.Close()
		}

		clients, err := provider.FromChain(cfg.Search.Providers, cfg.Search)
		if err != nil {
			return err
		}
		scorer, err := score.NewScorer(cfg.Score)
		if err != nil {
			return err
		}
		assessor, err := quality.NewAssessor(nil, cfg.Quality)
		if err != nil {
			return err
		}

		tracker := health.NewTracker()
		filter := dedup.NewFilter(nil, cfg.Dedup.SimilarityThreshold)
		rt := router.New(clients, cfg.Search.Providers, tracker, store, filter, scorer, cfg.Search, os.Stderr)
		gaps := quality.NewGapGenerator(assessor.Fields(), cfg.Quality.MaxGapQueries,
			cfg.Search.MaxResults, cfg.Search.MinResults)

		ctrl := engine.New(rt, filter, assessor, gaps, nil, cfg.Engine, os.Stderr)
		seed := engine.DefaultSeedQueries(entity, cfg.Search.MaxResults, cfg.Search.MinResults)

		state, report, runErr := ctrl.Run(ctx, entity, seed)
		if runErr != nil && !state.Incomplete {
			return runErr
		}
		if state.Incomplete {
			fmt.Fprintln(os.Stderr, "warning: research interrupted; reporting partial state")
		}

		out := researchReport{State: state, Quality: report, Health: tracker.Snapshot()}
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}
		data, err := yaml.Marshal(out)
		if err != nil {
			return fmt.Errorf("marshaling report: %w", err)
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

func init() {
	researchCmd.Flags().Bool("json", false, "output the report as JSON instead of YAML")

	rootCmd.AddCommand(researchCmd)
}
