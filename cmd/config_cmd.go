package cmd

import (
	"fmt"

	"github.com/theirongolddev/cclog/internal/catalog"
	"github.com/theirongolddev/cclog/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	fmt.Printf("  Config file: %s\n", config.Path())
	if config.Exists() {
		fmt.Println("  Status: loaded")
	} else {
		fmt.Println("  Status: using defaults (no config file)")
	}
	fmt.Println()

	fmt.Println("  [General]")
	fmt.Printf("    Projects directory: %s\n", config.ProjectsDir(cfg))
	fmt.Printf("    Workers:            %d\n", config.Workers(cfg))
	fmt.Println()

	fmt.Println("  [Cache]")
	fmt.Printf("    Enabled: %v\n", cfg.Cache.Enabled)
	catalogPath := cfg.Cache.CatalogPath
	if catalogPath == "" {
		catalogPath = catalog.DefaultPath()
	}
	fmt.Printf("    Catalog: %s\n", catalogPath)
	fmt.Printf("    Version: %s\n", version)
	fmt.Println()

	fmt.Println("  [Filter]")
	if cfg.Filter.FromDate == "" && cfg.Filter.ToDate == "" {
		fmt.Println("    Date range: all time")
	} else {
		fmt.Printf("    From: %s\n", orDash(cfg.Filter.FromDate))
		fmt.Printf("    To:   %s\n", orDash(cfg.Filter.ToDate))
	}
	fmt.Println()

	fmt.Println("  [Daemon]")
	fmt.Printf("    Address:  %s\n", cfg.Daemon.Addr)
	fmt.Printf("    Interval: %ds\n", cfg.Daemon.IntervalSeconds)
	fmt.Println()

	fmt.Println("  [Appearance]")
	fmt.Printf("    Theme: %s\n", cfg.Appearance.Theme)
	fmt.Println()

	fmt.Println("  Run `cclog setup` to reconfigure.")
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
