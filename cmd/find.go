package cmd

import (
	"fmt"
	"os"

	"github.com/theirongolddev/cclog/internal/cli"
	"github.com/theirongolddev/cclog/internal/pipeline"

	"github.com/spf13/cobra"
)

var findCmd = &cobra.Command{
	Use:   "find [path]",
	Short: "Find the projects holding transcripts for a directory",
	Long: "Match a working directory (default: the current one) to its projects: by the\n" +
		"encoded directory name, then by the enclosing git root, then by any recorded\n" +
		"working directory that contains it.",
	Args: cobra.MaximumNArgs(1),
	RunE: runFind,
}

func init() {
	rootCmd.AddCommand(findCmd)
}

func runFind(_ *cobra.Command, args []string) error {
	dir := projectArg(args)
	if dir == "" {
		var err error
		if dir, err = os.Getwd(); err != nil {
			return err
		}
	}

	matches, err := pipeline.FindProjects(flagDataDir, dir, refreshOptions())
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Printf("\n  No projects found for %s\n", dir)
		return nil
	}

	rows := make([][]string, 0, len(matches))
	for _, p := range matches {
		rows = append(rows, []string{
			p.Label,
			p.Name,
			cli.FormatNumber(int64(len(p.Files))),
			cli.FormatAge(p.LastModified()),
		})
	}
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:      "Projects for " + dir,
		Headers:    []string{"Project", "Directory", "Files", "Last Active"},
		Rows:       rows,
		RightAlign: map[int]bool{2: true},
	}))
	return nil
}
