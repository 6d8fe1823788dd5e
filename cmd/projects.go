package cmd

import (
	"context"
	"fmt"

	"github.com/theirongolddev/cclog/internal/cli"
	"github.com/theirongolddev/cclog/internal/daterange"
	"github.com/theirongolddev/cclog/internal/pipeline"

	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List cataloged projects",
	Long: "Refresh every project cache, then list the catalog of projects with their\n" +
		"session, message and token totals.",
	Args: cobra.NoArgs,
	RunE: runProjects,
}

func init() {
	rootCmd.AddCommand(projectsCmd)
}

func runProjects(_ *cobra.Command, _ []string) error {
	if !useCache() {
		return errCacheDisabled
	}

	// Project totals ignore the date range, so never force a full pass.
	opts := refreshOptions()
	opts.Range = daterange.Range{}
	results, err := pipeline.RefreshAll(context.Background(), flagDataDir, opts)
	upsertCatalog(results)
	if err != nil {
		return err
	}

	cat, err := openCatalog()
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	defer func() { _ = cat.Close() }()

	projects, err := cat.List()
	if err != nil {
		return fmt.Errorf("listing catalog: %w", err)
	}
	if len(projects) == 0 {
		fmt.Println("\n  No projects found.")
		return nil
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("PROJECTS  %s", flagDataDir)))
	fmt.Println()

	rows := make([][]string, 0, len(projects)+2)
	var sessions, messages int
	var tokens int64
	for _, p := range projects {
		rows = append(rows, []string{
			cli.Truncate(p.Label, 24),
			cli.FormatNumber(int64(p.JSONLCount)),
			cli.FormatNumber(int64(p.SessionCount)),
			cli.FormatNumber(int64(p.MessageCount)),
			cli.FormatTokens(p.Tokens.Total()),
			cli.FormatAge(p.LastModified),
		})
		sessions += p.SessionCount
		messages += p.MessageCount
		tokens += p.Tokens.Total()
	}
	rows = append(rows, []string{"---"}, []string{
		fmt.Sprintf("%d projects", len(projects)),
		"",
		cli.FormatNumber(int64(sessions)),
		cli.FormatNumber(int64(messages)),
		cli.FormatTokens(tokens),
		"",
	})

	fmt.Print(cli.RenderTable(cli.Table{
		Headers:    []string{"Project", "Files", "Sessions", "Messages", "Tokens", "Last Active"},
		Rows:       rows,
		RightAlign: map[int]bool{1: true, 2: true, 3: true, 4: true},
	}))
	return nil
}
