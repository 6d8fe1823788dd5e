package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/theirongolddev/cclog/internal/daterange"
	"github.com/theirongolddev/cclog/internal/model"
	"github.com/theirongolddev/cclog/internal/source"
	"github.com/theirongolddev/cclog/internal/store"
)

// ProjectResult is the outcome of refreshing one project.
type ProjectResult struct {
	Project source.Project
	Result  Result
	Index   model.ProjectIndex
	Err     error
}

// RefreshOptions configures RefreshAll.
type RefreshOptions struct {
	Store  store.Options
	Parser Parser
	Logger *slog.Logger
	// Workers bounds how many projects refresh at once. Zero means GOMAXPROCS.
	Workers int
	Range   daterange.Range
	// OnProject is called after each project finishes, from the worker that
	// refreshed it. Calls are serialized.
	OnProject func(ProjectResult)
}

// RefreshAll runs EnsureFresh over every project under projectsDir. Each
// project gets its own cache, so projects refresh in parallel while every
// cache is still driven by a single goroutine. A failing project is logged
// and reported in its result; it does not stop the others. Projects skipped
// because ctx was cancelled carry ctx's error.
func RefreshAll(ctx context.Context, projectsDir string, opts RefreshOptions) ([]ProjectResult, error) {
	projects, err := source.DiscoverProjects(projectsDir)
	if err != nil {
		return nil, fmt.Errorf("discovering projects in %s: %w", projectsDir, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := opts.Workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]ProjectResult, len(projects))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range projects {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = ProjectResult{Project: p, Err: err}
				return err
			}
			pr := refreshProject(p, opts, logger)
			results[i] = pr

			mu.Lock()
			defer mu.Unlock()
			if pr.Err != nil {
				prev := ""
				if i > 0 {
					prev = projects[i-1].Name
				}
				logger.Warn("skipping project that failed to refresh",
					"project", p.Name, "previous", prev, "error", pr.Err)
			}
			if opts.OnProject != nil {
				opts.OnProject(pr)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func refreshProject(p source.Project, opts RefreshOptions, logger *slog.Logger) ProjectResult {
	pr := ProjectResult{Project: p}

	storeOpts := opts.Store
	if storeOpts.Logger == nil {
		storeOpts.Logger = logger
	}
	cache, err := store.Open(p.Dir, storeOpts)
	if err != nil {
		pr.Err = err
		return pr
	}

	parser := opts.Parser
	if parser == nil {
		parser = source.Parser{Logger: logger}
	}
	rec := NewReconciler(cache, parser, Options{Logger: logger, Workers: 1})
	pr.Result, pr.Err = rec.EnsureFresh(p.Dir, opts.Range)
	pr.Index, _ = cache.ProjectData()
	return pr
}
