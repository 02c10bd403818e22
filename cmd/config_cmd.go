// Package cmd implements the salesdash CLI commands.
package cmd

import (
	"fmt"

	"github.com/theirongolddev/salesdash/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	path := configPath()
	fmt.Printf("  Config file: %s\n", path)
	if config.Exists(path) {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [source]")
	fmt.Printf("    Backend:     %s\n", cfg.Source.Backend)
	fmt.Printf("    Collection:  %s\n", cfg.Source.Collection)
	fmt.Printf("    Fields:      %s, %s\n", cfg.Source.DateField, cfg.Source.ValueField)
	if cfg.Source.File != "" {
		fmt.Printf("    File:        %s\n", cfg.Source.File)
	}
	fmt.Printf("    Strict:      %v\n", cfg.Source.StrictValues)
	fmt.Printf("    Duplicates:  %s\n", cfg.Source.Duplicates)
	fmt.Printf("    Cache fallback: %v\n", cfg.Source.FallbackToCache)
	fmt.Println()

	fmt.Println("  [firestore]")
	fmt.Printf("    Project:  %s\n", orUnset(cfg.Firestore.ProjectID))
	fmt.Printf("    Database: %s\n", cfg.Firestore.Database)
	if cfg.Firestore.APIKey != "" {
		fmt.Printf("    API key:  %s\n", maskAPIKey(cfg.Firestore.APIKey))
	} else {
		fmt.Println("    API key:  not configured")
	}
	if cfg.Firestore.Endpoint != "" {
		fmt.Printf("    Endpoint: %s\n", cfg.Firestore.Endpoint)
	}
	fmt.Println()

	fmt.Println("  [forecast]")
	fmt.Printf("    Enabled: %v\n", cfg.Forecast.Enabled)
	fmt.Printf("    URL:     %s\n", orUnset(cfg.Forecast.URL))
	fmt.Printf("    Timeout: %s\n", forecastTimeout(cmd, cfg))
	fmt.Printf("    Keys:    %s, %s in %q\n", cfg.Forecast.DateKey, cfg.Forecast.ValueKey, cfg.Forecast.PredictionsKey)
	fmt.Println()

	fmt.Println("  [daemon]")
	fmt.Printf("    Addr:     %s\n", cfg.Daemon.Addr)
	fmt.Printf("    Interval: %s\n", cfg.Daemon.Interval())
	fmt.Println()

	fmt.Println("  [appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	fmt.Println("  Run `salesdash setup` to reconfigure.")
	return nil
}

func orUnset(s string) string {
	if s == "" {
		return "not set"
	}
	return s
}

func maskAPIKey(key string) string {
	if len(key) > 16 {
		return key[:8] + "..." + key[len(key)-4:]
	}
	if len(key) > 4 {
		return key[:4] + "..."
	}
	return "****"
}
