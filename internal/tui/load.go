package tui

import (
	"context"
	"sort"
	"time"

	"github.com/theirongolddev/cclog/internal/model"
	"github.com/theirongolddev/cclog/internal/pipeline"
	"github.com/theirongolddev/cclog/internal/source"

	tea "github.com/charmbracelet/bubbletea"
)

// Row is one session in the browser, tagged with its project.
type Row struct {
	ProjectLabel string
	ProjectDir   string
	Session      model.SessionSummary
}

// ProgressMsg reports how many projects have been checked.
type ProgressMsg struct {
	Current int
	Total   int
}

// DataLoadedMsg is sent when every project has been checked.
type DataLoadedMsg struct {
	Rows     []Row
	Projects int
	Failed   int
	LoadTime time.Duration
	Err      error
}

// loadDataCmd refreshes every project in a background goroutine, streaming
// ProgressMsg updates and a final DataLoadedMsg through sub.
func loadDataCmd(opts Options, sub chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		go func() {
			sub <- collectRows(opts, func(current, total int) {
				// Non-blocking so refresh workers are never stalled; the next
				// update catches up.
				select {
				case sub <- ProgressMsg{Current: current, Total: total}:
				default:
				}
			})
		}()
		return <-sub
	}
}

// waitForLoadMsg blocks until the next message arrives from the loader goroutine.
func waitForLoadMsg(sub chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-sub
	}
}

func collectRows(opts Options, progress func(current, total int)) DataLoadedMsg {
	start := time.Now()
	projects, err := source.DiscoverProjects(opts.ProjectsDir)
	if err != nil {
		return DataLoadedMsg{Err: err, LoadTime: time.Since(start)}
	}
	progress(0, len(projects))

	msg := DataLoadedMsg{Projects: len(projects)}
	add := func(p source.Project, sessions map[string]model.SessionSummary) {
		list := pipeline.SessionsInRange(pipeline.SortSessions(sessions), opts.Range)
		for _, s := range list {
			msg.Rows = append(msg.Rows, Row{ProjectLabel: p.Label, ProjectDir: p.Dir, Session: s})
		}
	}

	if opts.UseCache {
		done := 0
		_, err = pipeline.RefreshAll(context.Background(), opts.ProjectsDir, pipeline.RefreshOptions{
			Store:   opts.Store,
			Logger:  opts.Logger,
			Workers: opts.Workers,
			OnProject: func(pr pipeline.ProjectResult) {
				done++
				progress(done, len(projects))
				if pr.Err != nil {
					msg.Failed++
					return
				}
				add(pr.Project, pr.Index.Sessions)
			},
		})
		msg.Err = err
	} else {
		parser := source.Parser{Logger: opts.Logger}
		for i, p := range projects {
			res, err := pipeline.Load(p.Dir, opts.Range, parser, opts.Workers, nil)
			progress(i+1, len(projects))
			if err != nil {
				msg.Failed++
				continue
			}
			add(p, pipeline.Summarize(res.Entries).Sessions)
		}
	}

	sort.SliceStable(msg.Rows, func(i, j int) bool {
		return msg.Rows[i].Session.LastTimestamp > msg.Rows[j].Session.LastTimestamp
	})
	msg.LoadTime = time.Since(start)
	return msg
}
