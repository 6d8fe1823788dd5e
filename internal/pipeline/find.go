package pipeline

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/theirongolddev/cclog/internal/daterange"
	"github.com/theirongolddev/cclog/internal/source"
	"github.com/theirongolddev/cclog/internal/store"
)

// FindProjects returns the projects under projectsDir that belong to the
// working directory cwd, trying in turn:
//
//  1. the project whose directory name encodes cwd exactly,
//  2. the project encoding the enclosing git repository root,
//  3. every project with a recorded working directory containing cwd.
//
// The third tier refreshes project caches that have no working directories yet.
func FindProjects(projectsDir, cwd string, opts RefreshOptions) ([]source.Project, error) {
	projects, err := source.DiscoverProjects(projectsDir)
	if err != nil {
		return nil, err
	}
	if abs, err := filepath.Abs(cwd); err == nil {
		cwd = abs
	}
	if resolved, err := filepath.EvalSymlinks(cwd); err == nil {
		cwd = resolved
	}

	if p, ok := matchEncoded(projects, cwd); ok {
		return []source.Project{p}, nil
	}
	if root, ok := gitRoot(cwd); ok {
		if p, ok := matchEncoded(projects, root); ok {
			return []source.Project{p}, nil
		}
	}

	var matches []source.Project
	for _, p := range projects {
		if projectContains(p, cwd, opts) {
			matches = append(matches, p)
		}
	}
	return matches, nil
}

func matchEncoded(projects []source.Project, dir string) (source.Project, bool) {
	want := source.EncodeProjectDir(dir)
	for _, p := range projects {
		if p.Name == want {
			return p, true
		}
	}
	return source.Project{}, false
}

// gitRoot walks up from dir looking for a .git entry.
func gitRoot(dir string) (string, bool) {
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func projectContains(p source.Project, cwd string, opts RefreshOptions) bool {
	storeOpts := opts.Store
	if storeOpts.Logger == nil {
		storeOpts.Logger = opts.Logger
	}
	cache, err := store.Open(p.Dir, storeOpts)
	if err != nil {
		return false
	}
	data, _ := cache.ProjectData()
	if len(data.WorkingDirectories) == 0 {
		parser := opts.Parser
		if parser == nil {
			parser = source.Parser{Logger: opts.Logger}
		}
		rec := NewReconciler(cache, parser, Options{Logger: opts.Logger, Workers: 1})
		if _, err := rec.EnsureFresh(p.Dir, daterange.Range{}); err != nil {
			return false
		}
		data, _ = cache.ProjectData()
	}
	for _, wd := range data.WorkingDirectories {
		if isWithin(cwd, filepath.Clean(wd)) {
			return true
		}
	}
	return false
}

func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
