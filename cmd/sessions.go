package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/theirongolddev/cclog/internal/cli"
	"github.com/theirongolddev/cclog/internal/config"
	"github.com/theirongolddev/cclog/internal/model"
	"github.com/theirongolddev/cclog/internal/pipeline"
	"github.com/theirongolddev/cclog/internal/source"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions [project]",
	Short: "Session list with details",
	Long: "List session summaries for a project. Without an argument the project for\n" +
		"the current directory is used, falling back to every project.",
	Args: cobra.MaximumNArgs(1),
	RunE: runSessions,
}

var (
	sessionsLimit int
	sessionsQuery string
	sessionsAll   bool
)

func init() {
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "l", 20, "Number of sessions to show (0 for all)")
	sessionsCmd.Flags().StringVarP(&sessionsQuery, "search", "s", "", "Only sessions whose title, id or directory contains this text")
	sessionsCmd.Flags().BoolVarP(&sessionsAll, "all", "a", false, "List sessions from every project")
	rootCmd.AddCommand(sessionsCmd)
}

type sessionRow struct {
	project string
	session model.SessionSummary
}

func runSessions(_ *cobra.Command, args []string) error {
	var (
		rows  []sessionRow
		scope string
		err   error
	)
	if !sessionsAll {
		p, rerr := resolveProject(projectArg(args))
		switch {
		case rerr == nil:
			scope = p.Label
			var sessions map[string]model.SessionSummary
			if sessions, err = projectSessions(p); err != nil {
				return err
			}
			for _, s := range sessions {
				rows = append(rows, sessionRow{project: p.Label, session: s})
			}
		case len(args) > 0:
			return rerr
		default:
			logger.Debug("no project for current directory, listing all", "error", rerr)
			sessionsAll = true
		}
	}
	if sessionsAll {
		scope = "all projects"
		if rows, err = allSessions(); err != nil {
			return err
		}
	}

	rows = filterRows(rows)
	if len(rows) == 0 {
		fmt.Println("\n  No sessions found.")
		return nil
	}
	total := len(rows)
	if sessionsLimit > 0 && len(rows) > sessionsLimit {
		rows = rows[:sessionsLimit]
	}

	title := fmt.Sprintf("SESSIONS  %s (showing %d of %d)", scope, len(rows), total)
	if !rng.IsZero() {
		title += "  " + rng.String()
	}
	fmt.Println()
	fmt.Println(cli.RenderTitle(title))
	fmt.Println()

	table := make([][]string, 0, len(rows))
	for _, r := range rows {
		s := r.session
		id := s.SessionID
		if len(id) > 8 {
			id = id[:8]
		}
		table = append(table, []string{
			cli.FormatTimestamp(s.LastTimestamp),
			cli.Truncate(r.project, 16),
			id,
			cli.FormatNumber(int64(s.MessageCount)),
			cli.FormatTokens(s.Total()),
			cli.Truncate(s.Title(), 48),
		})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Headers:    []string{"Last Active", "Project", "Session", "Msgs", "Tokens", "Title"},
		Rows:       table,
		RightAlign: map[int]bool{3: true, 4: true},
	}))
	return nil
}

// projectSessions returns the session summaries of one project, from its
// refreshed cache or, with the cache disabled, from a direct parse.
func projectSessions(p source.Project) (map[string]model.SessionSummary, error) {
	if !useCache() {
		res, err := pipeline.Load(p.Dir, rng, source.Parser{Logger: logger}, config.Workers(cfg), progressFn("Parsing"))
		if err != nil {
			return nil, err
		}
		return pipeline.Summarize(res.Entries).Sessions, nil
	}

	cache, err := openCache(p)
	if err != nil {
		return nil, err
	}
	rec := pipeline.NewReconciler(cache, source.Parser{Logger: logger}, pipeline.Options{
		Logger:   logger,
		Workers:  config.Workers(cfg),
		Progress: progressFn("Parsing"),
	})
	res, err := rec.EnsureFresh(p.Dir, rng)
	if err != nil {
		return nil, err
	}
	idx, _ := cache.ProjectData()
	upsertCatalog([]pipeline.ProjectResult{{Project: p, Result: res, Index: idx}})
	return idx.Sessions, nil
}

func allSessions() ([]sessionRow, error) {
	var rows []sessionRow
	if !useCache() {
		projects, err := source.DiscoverProjects(flagDataDir)
		if err != nil {
			return nil, err
		}
		for _, p := range projects {
			sessions, err := projectSessions(p)
			if err != nil {
				logger.Warn("skipping project", "project", p.Name, "error", err)
				continue
			}
			for _, s := range sessions {
				rows = append(rows, sessionRow{project: p.Label, session: s})
			}
		}
		return rows, nil
	}

	results, err := pipeline.RefreshAll(context.Background(), flagDataDir, refreshOptions())
	upsertCatalog(results)
	if err != nil {
		return nil, err
	}
	for _, pr := range results {
		for _, s := range pr.Index.Sessions {
			rows = append(rows, sessionRow{project: pr.Project.Label, session: s})
		}
	}
	return rows, nil
}

// filterRows applies the date range and search text and sorts newest first.
func filterRows(rows []sessionRow) []sessionRow {
	out := rows[:0]
	for _, r := range rows {
		if len(pipeline.SessionsInRange([]model.SessionSummary{r.session}, rng)) == 0 {
			continue
		}
		if sessionsQuery != "" && len(pipeline.FilterSessions([]model.SessionSummary{r.session}, sessionsQuery)) == 0 {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].session.LastTimestamp > out[j].session.LastTimestamp
	})
	return out
}
