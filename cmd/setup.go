package cmd

import (
	"errors"
	"fmt"

	"github.com/theirongolddev/cclog/internal/config"
	"github.com/theirongolddev/cclog/internal/source"
	"github.com/theirongolddev/cclog/internal/tui"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	Args:  cobra.NoArgs,
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	vals := tui.SetupValuesFrom(cfg)
	projects, _ := source.DiscoverProjects(vals.ProjectsDir)

	if err := tui.NewSetupForm(&vals, len(projects)).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Println("  Setup cancelled; nothing saved.")
			return nil
		}
		return err
	}

	if _, err := tui.SaveSetup(vals); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", config.Path())
	fmt.Println("  Run `cclog setup` anytime to reconfigure.")
	fmt.Println()
	return nil
}
