// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the scout CLI.
// See docs/ARCHITECTURE § CLI Surface.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meshintel/scout/internal/secrets"
	"github.com/meshintel/scout/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns fallback if set, otherwise the secret value for key.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the scout CLI.
var rootCmd = &cobra.Command{
	Use:   "scout",
	Short: "Automated multi-source research on a named entity",
	Long: `scout researches a named entity (typically a company) across competing
web-search providers and produces a structured, quality-scored result set.

Searches fall back across providers in cost order with failure isolation,
responses are cached durably and deduplicated, and a composite quality
metric decides whether to stop or run another bounded round of targeted
queries. Fact extraction and semantic judgment are pluggable external
collaborators; the engine degrades gracefully when they are absent.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./scout.yaml or ~/.config/scout/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("scout")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "scout"))
		}
	}

	viper.SetEnvPrefix("SCOUT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadPipelineConfig resolves the full configuration: file/env values via
// viper, defaults for everything unset, API keys from .secrets/ when not
// configured explicitly.
func loadPipelineConfig() (types.PipelineConfig, error) {
	var cfg types.PipelineConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing configuration: %w", err)
	}
	cfg = cfg.WithDefaults()
	cfg.Search.BraveAPIKey = secretDefault("brave-api-key", cfg.Search.BraveAPIKey)
	cfg.Search.TavilyAPIKey = secretDefault("tavily-api-key", cfg.Search.TavilyAPIKey)
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
