// Package config loads and saves the cclog TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// ProjectsDirEnv overrides general.projects_dir when set.
const ProjectsDirEnv = "CCLOG_PROJECTS_DIR"

// Config holds all cclog configuration.
type Config struct {
	General    GeneralConfig    `toml:"general"`
	Cache      CacheConfig      `toml:"cache"`
	Filter     FilterConfig     `toml:"filter"`
	Daemon     DaemonConfig     `toml:"daemon"`
	Appearance AppearanceConfig `toml:"appearance"`
}

// GeneralConfig holds general preferences.
type GeneralConfig struct {
	ProjectsDir string `toml:"projects_dir,omitempty"`
	// Workers bounds parallel project refreshes. Zero means one per CPU.
	Workers int `toml:"workers,omitempty"`
}

// CacheConfig controls the per-project transcript cache and the catalog.
type CacheConfig struct {
	Enabled     bool   `toml:"enabled"`
	CatalogPath string `toml:"catalog_path,omitempty"`
}

// FilterConfig holds default date bounds, in any format the date flags accept.
type FilterConfig struct {
	FromDate string `toml:"from_date,omitempty"`
	ToDate   string `toml:"to_date,omitempty"`
}

// DaemonConfig holds watch daemon settings.
type DaemonConfig struct {
	Addr            string `toml:"addr"`
	IntervalSeconds int    `toml:"interval_seconds"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Cache: CacheConfig{
			Enabled: true,
		},
		Daemon: DaemonConfig{
			Addr:            "127.0.0.1:8787",
			IntervalSeconds: 30,
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
	}
}

// Dir returns the XDG-compliant config directory.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cclog")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "cclog")
}

// Path returns the full path to the config file.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load reads the config file, returning defaults if it doesn't exist.
func Load() (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(Path())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(Path(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(Path())
	return err == nil
}

// ProjectsDir returns the transcript projects root: the env var, then the
// config file, then ~/.claude/projects.
func ProjectsDir(cfg Config) string {
	if dir := os.Getenv(ProjectsDirEnv); dir != "" {
		return dir
	}
	if cfg.General.ProjectsDir != "" {
		return expandHome(cfg.General.ProjectsDir)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".claude", "projects")
}

// Workers returns the configured refresh parallelism, at least one.
func Workers(cfg Config) int {
	if cfg.General.Workers > 0 {
		return cfg.General.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func expandHome(path string) string {
	if path == "~" || (len(path) > 1 && path[:2] == "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
