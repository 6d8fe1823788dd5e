package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/theirongolddev/cclog/internal/cli"
	"github.com/theirongolddev/cclog/internal/config"
	"github.com/theirongolddev/cclog/internal/pipeline"
	"github.com/theirongolddev/cclog/internal/source"

	"github.com/spf13/cobra"
)

var refreshAll bool

var refreshCmd = &cobra.Command{
	Use:   "refresh [project]",
	Short: "Bring project caches up to date",
	Long: "Refresh the cache of one project (default: the project for the current\n" +
		"directory) or, with --all, every project under the data directory.",
	Args: cobra.MaximumNArgs(1),
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().BoolVarP(&refreshAll, "all", "a", false, "Refresh every project")
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(_ *cobra.Command, args []string) error {
	if !useCache() {
		return errCacheDisabled
	}
	if refreshAll {
		if len(args) > 0 {
			return fmt.Errorf("--all does not take a project argument")
		}
		return refreshEverything()
	}

	p, err := resolveProject(projectArg(args))
	if err != nil {
		return err
	}
	cache, err := openCache(p)
	if err != nil {
		return err
	}

	start := time.Now()
	rec := pipeline.NewReconciler(cache, source.Parser{Logger: logger}, pipeline.Options{
		Logger:   logger,
		Workers:  config.Workers(cfg),
		Progress: progressFn("Parsing"),
	})
	res, err := rec.EnsureFresh(p.Dir, rng)
	if err != nil {
		return err
	}
	idx, _ := cache.ProjectData()
	upsertCatalog([]pipeline.ProjectResult{{Project: p, Result: res, Index: idx}})

	printResult(p.Label, res, time.Since(start))
	return nil
}

func refreshEverything() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	projects, err := source.DiscoverProjects(flagDataDir)
	if err != nil {
		return err
	}
	report := progressFn("Refreshing")
	done := 0

	opts := refreshOptions()
	opts.OnProject = func(pipeline.ProjectResult) {
		done++
		if report != nil {
			report(done, len(projects))
		}
	}

	start := time.Now()
	results, err := pipeline.RefreshAll(ctx, flagDataDir, opts)
	upsertCatalog(results)
	if err != nil {
		return err
	}

	var updated, failed, reparsed int
	for _, pr := range results {
		switch {
		case pr.Err != nil:
			failed++
		case pr.Result.Status == pipeline.Updated:
			updated++
		}
		reparsed += pr.Result.Reparsed
	}

	if flagQuiet {
		return nil
	}
	fmt.Printf("  %s projects checked, %d updated, %s files reparsed in %s\n",
		cli.FormatNumber(int64(len(results))), updated,
		cli.FormatNumber(int64(reparsed)), time.Since(start).Round(time.Millisecond))
	if failed > 0 {
		fmt.Println(cli.RenderWarn(fmt.Sprintf("  %d projects failed; rerun with -v for details", failed)))
	}
	return nil
}

func printResult(label string, res pipeline.Result, elapsed time.Duration) {
	if flagQuiet {
		return
	}
	status := cli.RenderMuted(res.Status.String())
	if res.Status == pipeline.Updated {
		status = cli.RenderOK(res.Status.String())
	}
	fmt.Printf("  %s: %s (%d files, %d cached, %d reparsed) in %s\n",
		label, status, res.Files, res.CacheHits, res.Reparsed, elapsed.Round(time.Millisecond))
	if res.Failed > 0 {
		fmt.Println(cli.RenderWarn(fmt.Sprintf("  %d files could not be parsed", res.Failed)))
	}
}
