package tui

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/theirongolddev/cclog/internal/config"
	"github.com/theirongolddev/cclog/internal/tui/theme"

	"github.com/charmbracelet/huh"
)

// SetupValues backs the setup form fields.
type SetupValues struct {
	ProjectsDir string
	Workers     string
	UseCache    bool
	Theme       string
}

// SetupValuesFrom seeds the form from an existing configuration.
func SetupValuesFrom(cfg config.Config) SetupValues {
	workers := ""
	if cfg.General.Workers > 0 {
		workers = strconv.Itoa(cfg.General.Workers)
	}
	return SetupValues{
		ProjectsDir: config.ProjectsDir(cfg),
		Workers:     workers,
		UseCache:    cfg.Cache.Enabled,
		Theme:       theme.ByName(cfg.Appearance.Theme).Name,
	}
}

// NewSetupForm builds the configuration form over v. projectCount is shown
// in the welcome note when positive.
func NewSetupForm(v *SetupValues, projectCount int) *huh.Form {
	welcome := "Configure where transcripts live and how they are cached."
	if projectCount > 0 {
		welcome = fmt.Sprintf("Found %d projects in %s.\n%s", projectCount, v.ProjectsDir, welcome)
	}

	themes := make([]huh.Option[string], 0, len(theme.All))
	for _, t := range theme.All {
		themes = append(themes, huh.NewOption(t.Name, t.Name))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Welcome to cclog").
				Description(welcome),
			huh.NewInput().
				Title("Projects directory").
				Description("Each child directory holds one project's *.jsonl transcripts.").
				Value(&v.ProjectsDir).
				Validate(validateDir),
			huh.NewInput().
				Title("Parallel refreshes").
				Description("Projects refreshed at once. Blank uses one per CPU.").
				Value(&v.Workers).
				Validate(validateWorkers),
			huh.NewConfirm().
				Title("Cache parsed transcripts?").
				Affirmative("Yes").
				Negative("No").
				Value(&v.UseCache),
			huh.NewSelect[string]().
				Title("Color theme").
				Options(themes...).
				Value(&v.Theme),
		),
	).WithShowHelp(true)
}

// Apply copies the form values into cfg.
func (v SetupValues) Apply(cfg *config.Config) {
	cfg.General.ProjectsDir = strings.TrimSpace(v.ProjectsDir)
	cfg.General.Workers, _ = strconv.Atoi(strings.TrimSpace(v.Workers))
	cfg.Cache.Enabled = v.UseCache
	cfg.Appearance.Theme = v.Theme
}

// SaveSetup applies v to the stored configuration, saves it and activates
// the chosen theme.
func SaveSetup(v SetupValues) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		cfg = config.DefaultConfig()
	}
	v.Apply(&cfg)
	theme.SetActive(cfg.Appearance.Theme)
	return cfg, config.Save(cfg)
}

func validateDir(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("a directory is required")
	}
	info, err := os.Stat(s)
	if err != nil {
		return fmt.Errorf("cannot read %s", s)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s)
	}
	return nil
}

func validateWorkers(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return errors.New("enter a positive number or leave blank")
	}
	return nil
}
