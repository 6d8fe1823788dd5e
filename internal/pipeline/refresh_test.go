package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/cclog/internal/source"
	"github.com/theirongolddev/cclog/internal/store"
)

func newProjectsDir(t *testing.T, projects map[string][]string) string {
	t.Helper()
	root := t.TempDir()
	for name, lines := range projects {
		dir := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		writeLines(t, filepath.Join(dir, "session.jsonl"), lines)
	}
	return root
}

func TestRefreshAll(t *testing.T) {
	root := newProjectsDir(t, map[string][]string{
		"-home-dev-alpha": pairs("alpha", 2, 0),
		"-home-dev-beta":  pairs("beta", 1, 10),
	})

	var (
		mu   sync.Mutex
		seen []string
	)
	opts := RefreshOptions{
		Store:   store.Options{Version: "1.0.0"},
		Workers: 2,
		OnProject: func(pr ProjectResult) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, pr.Project.Name)
		},
	}

	results, err := RefreshAll(context.Background(), root, opts)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.ElementsMatch(t, []string{"-home-dev-alpha", "-home-dev-beta"}, seen)
	for _, pr := range results {
		require.NoError(t, pr.Err)
		assert.Equal(t, Updated, pr.Result.Status)
		assert.Len(t, pr.Index.Sessions, 1)
	}

	results, err = RefreshAll(context.Background(), root, opts)
	require.NoError(t, err)
	for _, pr := range results {
		assert.Equal(t, Unchanged, pr.Result.Status, pr.Project.Name)
	}
}

func TestRefreshAll_Canceled(t *testing.T) {
	root := newProjectsDir(t, map[string][]string{
		"-home-dev-alpha": pairs("alpha", 1, 0),
		"-home-dev-beta":  pairs("beta", 1, 0),
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := RefreshAll(ctx, root, RefreshOptions{Store: store.Options{Version: "1.0.0"}, Workers: 1})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 2)
	for i, pr := range results {
		assert.NotEmpty(t, pr.Project.Name, "result %d has no project", i)
		assert.NotEmpty(t, pr.Project.Dir, "result %d has no project dir", i)
		assert.ErrorIs(t, pr.Err, context.Canceled, pr.Project.Name)
	}
}

func TestRefreshAll_MissingRoot(t *testing.T) {
	_, err := RefreshAll(context.Background(), filepath.Join(t.TempDir(), "nope"), RefreshOptions{})
	assert.Error(t, err)
}

func TestFindProjects(t *testing.T) {
	work := t.TempDir()
	work, err := filepath.EvalSymlinks(work)
	require.NoError(t, err)

	repo := filepath.Join(work, "repo")
	nested := filepath.Join(repo, "pkg", "sub")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(repo, ".git"), 0o755))
	other := filepath.Join(work, "other")
	require.NoError(t, os.MkdirAll(filepath.Join(other, "deep"), 0o755))

	root := t.TempDir()
	mkProject := func(name, cwd string) {
		dir := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		line := `{"type":"user","uuid":"u","sessionId":"s","timestamp":"2025-06-01T10:00:00Z","cwd":"` +
			cwd + `","message":{"role":"user","content":"hi"}}`
		writeLines(t, filepath.Join(dir, "s.jsonl"), []string{line})
	}
	mkProject(source.EncodeProjectDir(repo), repo)
	mkProject("renamed-project", other)

	opts := RefreshOptions{Store: store.Options{Version: "1.0.0"}}

	t.Run("exact encoded directory", func(t *testing.T) {
		got, err := FindProjects(root, repo, opts)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, source.EncodeProjectDir(repo), got[0].Name)
	})

	t.Run("git root", func(t *testing.T) {
		got, err := FindProjects(root, nested, opts)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, source.EncodeProjectDir(repo), got[0].Name)
	})

	t.Run("recorded working directory", func(t *testing.T) {
		got, err := FindProjects(root, filepath.Join(other, "deep"), opts)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "renamed-project", got[0].Name)
	})

	t.Run("no match", func(t *testing.T) {
		got, err := FindProjects(root, work, opts)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestIsWithin(t *testing.T) {
	assert.True(t, isWithin("/a/b", "/a/b"))
	assert.True(t, isWithin("/a/b/c", "/a/b"))
	assert.False(t, isWithin("/a/bc", "/a/b"))
	assert.False(t, isWithin("/a", "/a/b"))
}
