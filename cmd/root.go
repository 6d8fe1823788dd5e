// Package cmd implements the cclog CLI commands.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/theirongolddev/cclog/internal/catalog"
	"github.com/theirongolddev/cclog/internal/cli"
	"github.com/theirongolddev/cclog/internal/config"
	"github.com/theirongolddev/cclog/internal/daterange"
	"github.com/theirongolddev/cclog/internal/pipeline"
	"github.com/theirongolddev/cclog/internal/source"
	"github.com/theirongolddev/cclog/internal/store"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// version is stamped into every project index. Override at build time with
// -ldflags "-X github.com/theirongolddev/cclog/cmd.version=1.2.3".
var version = "0.4.0"

var (
	flagDataDir  string
	flagFromDate string
	flagToDate   string
	flagNoCache  bool
	flagQuiet    bool
	flagVerbose  bool
)

// Set by the root PersistentPreRunE for every subcommand.
var (
	cfg    config.Config
	rng    daterange.Range
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cclog",
	Short: "Claude Code transcript cache",
	Long:  "Index, cache and browse Claude Code transcript logs.",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger = newLogger()
		slog.SetDefault(logger)

		var err error
		cfg, err = config.Load()
		if err != nil {
			logger.Warn("using default config", "error", err)
			cfg = config.DefaultConfig()
		}
		if !cmd.Flags().Changed("data-dir") {
			flagDataDir = config.ProjectsDir(cfg)
		}

		from, to := flagFromDate, flagToDate
		if from == "" {
			from = cfg.Filter.FromDate
		}
		if to == "" {
			to = cfg.Filter.ToDate
		}
		rng, err = daterange.Parse(from, to, time.Now())
		if err != nil {
			return fmt.Errorf("parsing date range: %w", err)
		}
		return nil
	},
	SilenceUsage: true,
	RunE:         runSessions,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagDataDir, "data-dir", "d", config.ProjectsDir(config.DefaultConfig()), "Claude projects directory")
	rootCmd.PersistentFlags().StringVar(&flagFromDate, "from-date", "", `Only entries at or after this date (e.g. 2025-06-01, "3 days ago")`)
	rootCmd.PersistentFlags().StringVar(&flagToDate, "to-date", "", "Only entries at or before this date")
	rootCmd.PersistentFlags().BoolVar(&flagNoCache, "no-cache", false, "Parse transcripts directly, never reading or writing the cache")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output and warnings")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging")
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	switch {
	case flagVerbose:
		level = slog.LevelDebug
	case flagQuiet:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func useCache() bool {
	return !flagNoCache && cfg.Cache.Enabled
}

func storeOptions() store.Options {
	return store.Options{
		Version:         version,
		BreakingChanges: store.DefaultBreakingChanges(),
		Logger:          logger,
	}
}

func refreshOptions() pipeline.RefreshOptions {
	return pipeline.RefreshOptions{
		Store:   storeOptions(),
		Logger:  logger,
		Workers: config.Workers(cfg),
		Range:   rng,
	}
}

// showProgress reports whether progress lines should be drawn on stderr.
func showProgress() bool {
	if flagQuiet {
		return false
	}
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// progressFn returns a ProgressFunc that redraws one stderr line, or nil
// when stderr is not a terminal.
func progressFn(label string) pipeline.ProgressFunc {
	if !showProgress() {
		return nil
	}
	return func(current, total int) {
		fmt.Fprintf(os.Stderr, "\r  %s %s", label, cli.RenderProgressBar(current, total, 24))
		if current == total {
			fmt.Fprint(os.Stderr, "\r\033[K")
		}
	}
}

// resolveProject finds the project named by arg: a directory name, a decoded
// label, or a filesystem path (either the project directory itself or a
// working directory whose transcripts live in it). An empty arg means the
// current directory.
func resolveProject(arg string) (source.Project, error) {
	projects, err := source.DiscoverProjects(flagDataDir)
	if err != nil {
		return source.Project{}, fmt.Errorf("discovering projects: %w", err)
	}

	if arg != "" {
		var byLabel []source.Project
		abs, _ := filepath.Abs(arg)
		for _, p := range projects {
			switch {
			case p.Name == arg, p.Dir == abs:
				return p, nil
			case p.Label == arg:
				byLabel = append(byLabel, p)
			}
		}
		if len(byLabel) == 1 {
			return byLabel[0], nil
		}
		if len(byLabel) > 1 {
			return source.Project{}, fmt.Errorf("%q matches %d projects; use the directory name", arg, len(byLabel))
		}
		if _, err := os.Stat(arg); err != nil {
			return source.Project{}, fmt.Errorf("no project named %q", arg)
		}
	}

	dir := arg
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return source.Project{}, err
		}
	}
	matches, err := pipeline.FindProjects(flagDataDir, dir, refreshOptions())
	if err != nil {
		return source.Project{}, err
	}
	switch len(matches) {
	case 0:
		return source.Project{}, fmt.Errorf("no project found for %s", dir)
	case 1:
		return matches[0], nil
	default:
		return source.Project{}, fmt.Errorf("%s matches %d projects; name one explicitly", dir, len(matches))
	}
}

func projectArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func openCache(p source.Project) (*store.Cache, error) {
	cache, err := store.Open(p.Dir, storeOptions())
	if err != nil {
		return nil, fmt.Errorf("opening cache for %s: %w", p.Label, err)
	}
	return cache, nil
}

func openCatalog() (*catalog.Catalog, error) {
	path := cfg.Cache.CatalogPath
	if path == "" {
		path = catalog.DefaultPath()
	}
	return catalog.Open(path)
}

// upsertCatalog records refreshed projects. Failures only warn: the catalog
// is a convenience index over the per-project caches.
func upsertCatalog(results []pipeline.ProjectResult) {
	cat, err := openCatalog()
	if err != nil {
		logger.Warn("catalog unavailable", "error", err)
		return
	}
	defer func() { _ = cat.Close() }()

	now := time.Now()
	for _, pr := range results {
		if pr.Err != nil {
			continue
		}
		row := catalog.FromIndex(pr.Project, pr.Index, now)
		if err := cat.Upsert(row, pr.Index.Sessions); err != nil {
			logger.Warn("catalog upsert failed", "project", pr.Project.Name, "error", err)
		}
	}
}

var errCacheDisabled = errors.New("the cache is disabled (--no-cache or [cache] enabled = false)")
