package cmd

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/cclog/internal/cli"

	"github.com/spf13/cobra"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Search cataloged sessions by title or directory",
	Long: "Search the session catalog built by refresh, projects and the daemon.\n" +
		"Run `cclog refresh --all` first to catalog every project.",
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "l", 30, "Maximum results")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(_ *cobra.Command, args []string) error {
	cat, err := openCatalog()
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer func() { _ = cat.Close() }()

	query := strings.Join(args, " ")
	hits, err := cat.Search(query, searchLimit)
	if err != nil {
		return fmt.Errorf("searching catalog: %w", err)
	}
	if len(hits) == 0 {
		fmt.Printf("\n  No sessions match %q.\n", query)
		return nil
	}

	rows := make([][]string, 0, len(hits))
	for _, h := range hits {
		rows = append(rows, []string{
			cli.FormatTimestamp(h.LastTimestamp),
			cli.Truncate(h.ProjectLabel, 16),
			h.SessionID,
			cli.FormatNumber(int64(h.MessageCount)),
			cli.Truncate(h.Title, 48),
		})
	}
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:      fmt.Sprintf("Sessions matching %q", query),
		Headers:    []string{"Last Active", "Project", "Session", "Msgs", "Title"},
		Rows:       rows,
		RightAlign: map[int]bool{3: true},
	}))
	return nil
}
