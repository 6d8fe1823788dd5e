package cmd

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/theirongolddev/cclog/internal/cli"
	"github.com/theirongolddev/cclog/internal/source"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats [project]",
	Short: "Show cache statistics for a project",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(_ *cobra.Command, args []string) error {
	p, err := resolveProject(projectArg(args))
	if err != nil {
		return err
	}
	cache, err := openCache(p)
	if err != nil {
		return err
	}
	st := cache.Stats()
	idx, hasIndex := cache.ProjectData()

	fmt.Println()
	fmt.Println(cli.RenderTitle("CACHE  " + p.Label))
	fmt.Println()

	rows := [][]string{
		{"Project directory", p.Dir},
		{"Cache directory", cache.Dir()},
		{"Transcripts", cli.FormatNumber(int64(len(p.Files)))},
		{"Cached files", cli.FormatNumber(int64(st.CachedFiles))},
		{"Cached messages", cli.FormatNumber(int64(st.TotalMessages))},
		{"Sessions", cli.FormatNumber(int64(st.TotalSessions))},
		{"Size on disk", cli.FormatBytes(dirSize(cache.Dir()))},
		{"---"},
		{"Created", cli.FormatTimestamp(st.CacheCreated)},
		{"Last updated", cli.FormatTimestamp(st.LastUpdated)},
	}
	if hasIndex {
		rows = append(rows,
			[]string{"Index version", idx.Version},
			[]string{"Stale files", cli.FormatNumber(int64(len(cache.ModifiedFiles(source.Paths(p.Files)))))},
		)
	} else {
		rows = append(rows, []string{"Index", cli.RenderWarn("none; run `cclog refresh`")})
	}

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"", "Value"},
		Rows:    rows,
	}))
	return nil
}

func dirSize(dir string) int64 {
	var total int64
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
