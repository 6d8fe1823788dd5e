package catalog

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/cclog/internal/model"
	"github.com/theirongolddev/cclog/internal/source"
)

func openTemp(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "nested", "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func summary(id, title, cwd, last string) model.SessionSummary {
	return model.SessionSummary{
		SessionID:        id,
		FirstUserMessage: title,
		Cwd:              cwd,
		FirstTimestamp:   last,
		LastTimestamp:    last,
		MessageCount:     2,
		TokenUsage:       model.TokenUsage{InputTokens: 10, OutputTokens: 5},
	}
}

func TestUpsertAndList(t *testing.T) {
	c := openTemp(t)

	modified := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	older := Project{Dir: "/p/a", Name: "-home-a", Label: "a", JSONLCount: 1, Latest: "2025-05-01T00:00:00Z", LastModified: modified}
	newer := Project{Dir: "/p/b", Name: "-home-b", Label: "b", JSONLCount: 3, MessageCount: 9, Latest: "2025-06-01T00:00:00Z", LastModified: modified}

	require.NoError(t, c.Upsert(older, nil))
	require.NoError(t, c.Upsert(newer, map[string]model.SessionSummary{
		"s1": summary("s1", "fix flaky test", "/home/b", "2025-06-01T00:00:00Z"),
	}))

	list, err := c.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "/p/b", list[0].Dir, "newest first")
	assert.Equal(t, 9, list[0].MessageCount)
	assert.True(t, list[0].LastModified.Equal(modified))

	n, err := c.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Replacing a project replaces its row rather than adding one.
	newer.MessageCount = 11
	require.NoError(t, c.Upsert(newer, nil))
	got, err := c.Get("/p/b")
	require.NoError(t, err)
	assert.Equal(t, 11, got.MessageCount)
}

func TestGet_NotFound(t *testing.T) {
	c := openTemp(t)
	_, err := c.Get("/nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSearch(t *testing.T) {
	c := openTemp(t)
	p := Project{Dir: "/p/a", Name: "-a", Label: "a"}
	require.NoError(t, c.Upsert(p, map[string]model.SessionSummary{
		"s1": summary("s1", "Fix 100% CPU in watcher", "/home/a", "2025-06-01T00:00:00Z"),
		"s2": summary("s2", "write docs", "/home/a/docs", "2025-06-02T00:00:00Z"),
	}))

	hits, err := c.Search("cpu", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "s1", hits[0].SessionID)
	assert.Equal(t, "a", hits[0].ProjectLabel)
	assert.EqualValues(t, 15, hits[0].TotalTokens)

	hits, err = c.Search("100%", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1, "percent is matched literally")

	hits, err = c.Search("docs", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "s2", hits[0].SessionID)
}

func TestDelete_CascadesSessions(t *testing.T) {
	c := openTemp(t)
	p := Project{Dir: "/p/a", Name: "-a", Label: "a"}
	require.NoError(t, c.Upsert(p, map[string]model.SessionSummary{
		"s1": summary("s1", "hello", "/home/a", "2025-06-01T00:00:00Z"),
	}))
	require.NoError(t, c.Delete("/p/a"))

	hits, err := c.Search("hello", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestFromIndex(t *testing.T) {
	mod := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	p := source.Project{
		Dir:   "/p/-home-dev-app",
		Name:  "-home-dev-app",
		Label: "app",
		Files: []source.DiscoveredFile{{Name: "a.jsonl", ModTime: mod}, {Name: "b.jsonl", ModTime: mod.Add(-time.Hour)}},
	}
	idx := model.NewProjectIndex("1.0.0", p.Dir, mod)
	idx.TotalMessageCount = 12
	idx.Sessions["s1"] = summary("s1", "hi", "/home/dev/app", "2025-06-01T00:00:00Z")
	idx.TokenUsage = model.TokenUsage{InputTokens: 7}
	idx.LatestTimestamp = "2025-06-01T00:00:00Z"

	refreshed := mod.Add(time.Minute)
	got := FromIndex(p, idx, refreshed)
	assert.Equal(t, 2, got.JSONLCount)
	assert.Equal(t, 12, got.MessageCount)
	assert.Equal(t, 1, got.SessionCount)
	assert.Equal(t, int64(7), got.Tokens.InputTokens)
	assert.Equal(t, "2025-06-01T00:00:00Z", got.Latest)
	assert.True(t, got.LastModified.Equal(mod))
	assert.Equal(t, refreshed, got.RefreshedAt)
}
