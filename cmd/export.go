package cmd

import (
	"bufio"
	"fmt"
	"os"

	"github.com/theirongolddev/cclog/internal/config"
	"github.com/theirongolddev/cclog/internal/pipeline"
	"github.com/theirongolddev/cclog/internal/source"
	"github.com/theirongolddev/cclog/internal/transcript"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [project]",
	Short: "Write a project's transcript entries as JSONL",
	Long: "Write every entry of a project inside the date range to stdout, one JSON\n" +
		"object per line in chronological order. Cached segments are reused.",
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(_ *cobra.Command, args []string) error {
	p, err := resolveProject(projectArg(args))
	if err != nil {
		return err
	}

	var entries []transcript.Entry
	parser := source.Parser{Logger: logger}
	if useCache() {
		cache, err := openCache(p)
		if err != nil {
			return err
		}
		rec := pipeline.NewReconciler(cache, parser, pipeline.Options{
			Logger:   logger,
			Workers:  config.Workers(cfg),
			Progress: progressFn("Loading"),
		})
		if entries, _, err = rec.LoadEntries(p.Dir, rng); err != nil {
			return err
		}
	} else {
		res, err := pipeline.Load(p.Dir, rng, parser, config.Workers(cfg), progressFn("Parsing"))
		if err != nil {
			return err
		}
		entries = res.Entries
	}

	w := bufio.NewWriter(os.Stdout)
	for _, e := range entries {
		raw, err := transcript.Encode(e)
		if err != nil {
			logger.Warn("skipping entry that failed to encode", "project", p.Name, "error", err)
			continue
		}
		if _, err := w.Write(raw); err != nil {
			return fmt.Errorf("writing export: %w", err)
		}
		_ = w.WriteByte('\n')
	}
	return w.Flush()
}
