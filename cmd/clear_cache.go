package cmd

import (
	"errors"
	"fmt"

	"github.com/theirongolddev/cclog/internal/source"

	"github.com/spf13/cobra"
)

var clearAll bool

var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache [project]",
	Short: "Delete cached segments and indexes",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runClearCache,
}

func init() {
	clearCacheCmd.Flags().BoolVarP(&clearAll, "all", "a", false, "Clear the cache of every project")
	rootCmd.AddCommand(clearCacheCmd)
}

func runClearCache(_ *cobra.Command, args []string) error {
	var projects []source.Project
	if clearAll {
		if len(args) > 0 {
			return errors.New("--all does not take a project argument")
		}
		var err error
		if projects, err = source.DiscoverProjects(flagDataDir); err != nil {
			return err
		}
	} else {
		p, err := resolveProject(projectArg(args))
		if err != nil {
			return err
		}
		projects = []source.Project{p}
	}

	cat, err := openCatalog()
	if err != nil {
		logger.Warn("catalog unavailable", "error", err)
	} else {
		defer func() { _ = cat.Close() }()
	}

	var errs []error
	for _, p := range projects {
		cache, err := openCache(p)
		if err == nil {
			err = cache.Clear()
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if cat != nil {
			if err := cat.Delete(p.Dir); err != nil {
				logger.Warn("removing catalog row", "project", p.Name, "error", err)
			}
		}
		if !flagQuiet {
			fmt.Printf("  Cleared %s\n", p.Label)
		}
	}
	return errors.Join(errs...)
}
