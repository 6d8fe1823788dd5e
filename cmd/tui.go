package cmd

import (
	"fmt"
	"log/slog"

	"github.com/theirongolddev/cclog/internal/config"
	"github.com/theirongolddev/cclog/internal/tui"
	"github.com/theirongolddev/cclog/internal/tui/theme"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse sessions interactively",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(_ *cobra.Command, _ []string) error {
	theme.SetActive(cfg.Appearance.Theme)

	// Force TrueColor so background styling always emits ANSI codes.
	lipgloss.SetColorProfile(termenv.TrueColor)

	// Log lines on stderr would tear the alt screen.
	tuiLogger := logger
	if !flagVerbose {
		tuiLogger = slog.New(slog.DiscardHandler)
	}
	storeOpts := storeOptions()
	storeOpts.Logger = tuiLogger

	app := tui.NewApp(tui.Options{
		ProjectsDir: flagDataDir,
		Range:       rng,
		UseCache:    useCache(),
		Store:       storeOpts,
		Workers:     config.Workers(cfg),
		Logger:      tuiLogger,
		FirstRun:    !config.Exists(),
	})
	p := tea.NewProgram(app, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
