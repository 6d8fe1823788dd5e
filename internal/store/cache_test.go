package store

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/cclog/internal/daterange"
	"github.com/theirongolddev/cclog/internal/model"
	"github.com/theirongolddev/cclog/internal/transcript"
)

const (
	t1 = "2025-06-01T10:00:00.000Z"
	t2 = "2025-06-01T11:00:00.000Z"
	t3 = "2025-06-01T12:00:00.000Z"
)

func userLine(uuid, session, ts string) string {
	return `{"type":"user","uuid":"` + uuid + `","sessionId":"` + session + `","timestamp":"` + ts +
		`","cwd":"/home/dev/app","message":{"role":"user","content":"hello ` + uuid + `"}}`
}

func assistantLine(uuid, session, ts string) string {
	return `{"type":"assistant","uuid":"` + uuid + `","sessionId":"` + session + `","timestamp":"` + ts +
		`","requestId":"req-` + uuid + `","message":{"id":"msg-` + uuid + `","type":"message","role":"assistant","model":"claude-sonnet-4","content":[{"type":"text","text":"ok"}],"usage":{"input_tokens":1,"output_tokens":2}}}`
}

func summaryLine(text, leaf string) string {
	return `{"type":"summary","summary":"` + text + `","leafUuid":"` + leaf + `"}`
}

// writeTranscript writes lines to <dir>/<name> and returns the path and the
// decoded entries.
func writeTranscript(t *testing.T, dir, name string, lines ...string) (string, []transcript.Entry) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))

	entries := make([]transcript.Entry, 0, len(lines))
	for _, l := range lines {
		e, err := transcript.Decode([]byte(l))
		require.NoError(t, err)
		entries = append(entries, e)
	}
	return path, entries
}

func openCache(t *testing.T, dir string, version string) *Cache {
	t.Helper()
	c, err := Open(dir, Options{Version: version})
	require.NoError(t, err)
	return c
}

func bump(t *testing.T, path string, d time.Duration) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	mt := info.ModTime().Add(d)
	require.NoError(t, os.Chtimes(path, mt, mt))
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path, entries := writeTranscript(t, dir, "a.jsonl",
		summaryLine("Title", "a2"),
		userLine("u1", "s1", t1),
		assistantLine("a1", "s1", t2),
		userLine("u2", "s1", t2),
		userLine("u3", "s2", t3),
	)

	c := openCache(t, dir, "1.0.0")
	assert.False(t, c.IsCached(path))

	require.NoError(t, c.Save(path, entries))
	require.True(t, c.IsCached(path))

	got, ok := c.Load(path)
	require.True(t, ok)
	assert.Equal(t, entries, got)

	data, ok := c.ProjectData()
	require.True(t, ok)
	desc := data.CachedFiles["a.jsonl"]
	assert.Equal(t, 5, desc.MessageCount)
	assert.Equal(t, []string{"s1", "s2"}, desc.SessionIDs)
	assert.Equal(t, path, desc.FilePath)

	_, err := os.Stat(filepath.Join(dir, "cache", "a.json"))
	assert.NoError(t, err, "segment file is named after the source stem")
}

func TestSave_EmptyTranscript(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeTranscript(t, dir, "empty.jsonl")
	c := openCache(t, dir, "1.0.0")

	require.NoError(t, c.Save(path, nil))
	got, ok := c.Load(path)
	require.True(t, ok)
	assert.Empty(t, got)
}

func TestIsCached_Idempotent(t *testing.T) {
	dir := t.TempDir()
	path, entries := writeTranscript(t, dir, "a.jsonl", userLine("u1", "s1", t1))
	c := openCache(t, dir, "1.0.0")
	require.NoError(t, c.Save(path, entries))

	for range 3 {
		assert.True(t, c.IsCached(path))
	}
	missing := filepath.Join(dir, "b.jsonl")
	for range 3 {
		assert.False(t, c.IsCached(missing))
	}
}

func TestIsCached_MtimeEpsilon(t *testing.T) {
	dir := t.TempDir()
	path, entries := writeTranscript(t, dir, "a.jsonl", userLine("u1", "s1", t1))
	c := openCache(t, dir, "1.0.0")
	require.NoError(t, c.Save(path, entries))

	bump(t, path, 500*time.Millisecond)
	assert.True(t, c.IsCached(path), "changes inside the epsilon are not detected")

	bump(t, path, 2*time.Second)
	assert.False(t, c.IsCached(path))
	assert.Equal(t, []string{path}, c.ModifiedFiles([]string{path}))

	require.NoError(t, c.Save(path, entries))
	assert.True(t, c.IsCached(path))
	assert.Empty(t, c.ModifiedFiles([]string{path}))
}

func TestIsCached_MissingSourceOrSegment(t *testing.T) {
	dir := t.TempDir()
	a, ea := writeTranscript(t, dir, "a.jsonl", userLine("u1", "s1", t1))
	b, eb := writeTranscript(t, dir, "b.jsonl", userLine("u2", "s2", t1))
	c := openCache(t, dir, "1.0.0")
	require.NoError(t, c.Save(a, ea))
	require.NoError(t, c.Save(b, eb))

	require.NoError(t, os.Remove(a))
	assert.False(t, c.IsCached(a), "deleted source is never cached")
	_, ok := c.Load(a)
	assert.False(t, ok)

	require.NoError(t, os.Remove(filepath.Join(dir, "cache", "b.json")))
	assert.False(t, c.IsCached(b), "missing segment is a miss")
}

func TestLoad_CorruptSegmentIsMiss(t *testing.T) {
	dir := t.TempDir()
	path, entries := writeTranscript(t, dir, "a.jsonl", userLine("u1", "s1", t1))
	c := openCache(t, dir, "1.0.0")
	require.NoError(t, c.Save(path, entries))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "cache", "a.json"), []byte("{not json"), 0o600))
	_, ok := c.Load(path)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "cache", "a.json"), []byte(`{"x":[{"type":"system"}]}`), 0o600))
	_, ok = c.Load(path)
	assert.False(t, ok, "undecodable record is a miss")
}

func TestLoadFiltered_Buckets(t *testing.T) {
	dir := t.TempDir()
	path, entries := writeTranscript(t, dir, "a.jsonl",
		summaryLine("Title", "u2"),
		userLine("u1", "s1", t1),
		userLine("u2", "s1", t2),
		assistantLine("a2", "s1", t2),
		userLine("u3", "s1", t3),
	)
	c := openCache(t, dir, "1.0.0")
	require.NoError(t, c.Save(path, entries))

	at := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)
	got, ok := c.LoadFiltered(path, daterange.Range{From: at, To: at})
	require.True(t, ok)
	assert.Equal(t, []transcript.Entry{entries[0], entries[2], entries[3]}, got)

	all, ok := c.LoadFiltered(path, daterange.Range{})
	require.True(t, ok)
	assert.Len(t, all, 5)

	none, ok := c.LoadFiltered(path, daterange.Range{From: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)})
	require.True(t, ok)
	assert.Equal(t, []transcript.Entry{entries[0]}, none, "sentinel bucket always returned")
}

func TestOpen_CorruptIndexStartsFresh(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "cache"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cache", "index.json"), []byte("]]"), 0o600))

	c := openCache(t, dir, "1.0.0")
	data, ok := c.ProjectData()
	assert.False(t, ok)
	assert.Equal(t, "1.0.0", data.Version)
	assert.Empty(t, data.CachedFiles)
}

func TestOpen_ReloadsIndex(t *testing.T) {
	dir := t.TempDir()
	path, entries := writeTranscript(t, dir, "a.jsonl", userLine("u1", "s1", t1))
	c := openCache(t, dir, "1.0.0")
	require.NoError(t, c.Save(path, entries))

	title := "Build fix"
	require.NoError(t, c.UpdateSessionSummaries(map[string]model.SessionSummary{
		"s1": {SessionID: "s1", Summary: &title, MessageCount: 1},
	}))
	require.NoError(t, c.UpdateProjectAggregates(model.ProjectAggregates{
		MessageCount:      1,
		EarliestTimestamp: t1,
		LatestTimestamp:   t1,
		TokenUsage:        model.TokenUsage{InputTokens: 3, CacheReadTokens: 7},
	}))
	require.NoError(t, c.UpdateWorkingDirectories([]string{"/home/dev/app"}))

	// A newer running version reads the index without restamping it.
	reopened := openCache(t, dir, "1.1.0")
	data, ok := reopened.ProjectData()
	require.True(t, ok)
	assert.Equal(t, "1.0.0", data.Version)
	assert.True(t, reopened.IsCached(path))
	require.Contains(t, data.Sessions, "s1")
	assert.Equal(t, "Build fix", *data.Sessions["s1"].Summary)
	assert.Equal(t, 1, data.TotalMessageCount)
	assert.EqualValues(t, 7, data.CacheReadTokens)
	assert.Equal(t, t1, data.EarliestTimestamp)
	assert.Equal(t, []string{"/home/dev/app"}, data.WorkingDirectories)
}

func TestUpdateSessionSummaries_MergesByKey(t *testing.T) {
	c := openCache(t, t.TempDir(), "1.0.0")
	require.NoError(t, c.UpdateSessionSummaries(map[string]model.SessionSummary{
		"s1": {SessionID: "s1", MessageCount: 1},
		"s2": {SessionID: "s2", MessageCount: 2},
	}))
	require.NoError(t, c.UpdateSessionSummaries(map[string]model.SessionSummary{
		"s2": {SessionID: "s2", MessageCount: 5},
	}))

	data, _ := c.ProjectData()
	assert.Equal(t, 1, data.Sessions["s1"].MessageCount)
	assert.Equal(t, 5, data.Sessions["s2"].MessageCount)
}

func TestProjectData_IsSnapshot(t *testing.T) {
	c := openCache(t, t.TempDir(), "1.0.0")
	require.NoError(t, c.UpdateWorkingDirectories([]string{"/a"}))

	data, _ := c.ProjectData()
	data.WorkingDirectories[0] = "/mutated"
	data.Sessions["x"] = model.SessionSummary{}

	again, _ := c.ProjectData()
	assert.Equal(t, []string{"/a"}, again.WorkingDirectories)
	assert.NotContains(t, again.Sessions, "x")
}

func TestOpen_IncompatibleVersionWipesEverything(t *testing.T) {
	dir := t.TempDir()
	a, ea := writeTranscript(t, dir, "a.jsonl", userLine("u1", "s1", t1))
	b, eb := writeTranscript(t, dir, "b.jsonl", userLine("u2", "s2", t2))

	old := openCache(t, dir, "0.2.7")
	require.NoError(t, old.Save(a, ea))
	require.NoError(t, old.Save(b, eb))

	rules := map[string]string{"0.2.x": "0.3.0"}

	compatible, err := Open(dir, Options{Version: "0.2.9", BreakingChanges: rules})
	require.NoError(t, err)
	assert.True(t, compatible.IsCached(a))

	c, err := Open(dir, Options{Version: "0.3.0", BreakingChanges: rules})
	require.NoError(t, err)

	data, ok := c.ProjectData()
	assert.False(t, ok)
	assert.Equal(t, "0.3.0", data.Version)
	assert.False(t, c.IsCached(a))
	assert.False(t, c.IsCached(b))

	left, err := filepath.Glob(filepath.Join(dir, "cache", "*.json"))
	require.NoError(t, err)
	assert.Empty(t, left, "index and every segment are removed together")
}

func TestClear(t *testing.T) {
	dir := t.TempDir()
	path, entries := writeTranscript(t, dir, "a.jsonl", userLine("u1", "s1", t1))
	c := openCache(t, dir, "1.0.0")
	require.NoError(t, c.Save(path, entries))
	require.Equal(t, 1, c.Stats().CachedFiles)

	require.NoError(t, c.Clear())

	assert.False(t, c.IsCached(path))
	stats := c.Stats()
	assert.Zero(t, stats.CachedFiles)
	assert.Zero(t, stats.TotalMessages)
	_, ok := c.ProjectData()
	assert.False(t, ok)

	_, err := os.Stat(filepath.Join(dir, "cache", "index.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestStats(t *testing.T) {
	dir := t.TempDir()
	a, ea := writeTranscript(t, dir, "a.jsonl", userLine("u1", "s1", t1), userLine("u2", "s1", t2))
	b, eb := writeTranscript(t, dir, "b.jsonl", userLine("u3", "s2", t3))

	now := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	c, err := Open(dir, Options{Version: "1.0.0", Now: func() time.Time { return now }})
	require.NoError(t, err)
	require.NoError(t, c.Save(a, ea))
	require.NoError(t, c.Save(b, eb))
	require.NoError(t, c.UpdateSessionSummaries(map[string]model.SessionSummary{"s1": {}, "s2": {}}))

	stats := c.Stats()
	assert.Equal(t, 2, stats.CachedFiles)
	assert.Equal(t, 3, stats.TotalMessages)
	assert.Equal(t, 2, stats.TotalSessions)
	assert.Equal(t, now.Format(model.TimeLayout), stats.LastUpdated)
}

func TestSegmentPath_IndexStem(t *testing.T) {
	dir := t.TempDir()
	path, entries := writeTranscript(t, dir, "index.jsonl", userLine("u1", "s1", t1))
	c := openCache(t, dir, "1.0.0")
	require.NoError(t, c.Save(path, entries))

	reopened := openCache(t, dir, "1.0.0")
	_, ok := reopened.ProjectData()
	assert.True(t, ok, "segment did not clobber the index")
	got, ok := reopened.Load(path)
	require.True(t, ok)
	assert.Len(t, got, 1)
}

// blockWithDir replaces the file at path with a non-empty directory so that
// renaming a temp file over it fails.
func blockWithDir(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.RemoveAll(path))
	require.NoError(t, os.Mkdir(path, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(path, "keep"), []byte("x"), 0o600))
}

func tempFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp*"))
	require.NoError(t, err)
	return matches
}

func TestSave_SegmentWriteFailureKeepsPreviousState(t *testing.T) {
	dir := t.TempDir()
	path, entries := writeTranscript(t, dir, "a.jsonl",
		userLine("u1", "s1", t1),
		userLine("u2", "s1", t2),
	)
	var logs bytes.Buffer
	c, err := Open(dir, Options{Version: "1.0.0", Logger: slog.New(slog.NewTextHandler(&logs, nil))})
	require.NoError(t, err)
	require.NoError(t, c.Save(path, entries[:1]))

	indexPath := filepath.Join(dir, "cache", "index.json")
	before, err := os.ReadFile(indexPath)
	require.NoError(t, err)
	prev, _ := c.ProjectData()

	blockWithDir(t, filepath.Join(dir, "cache", "a.json"))
	err = c.Save(path, entries)
	require.Error(t, err)
	assert.Contains(t, logs.String(), "failed to save cache segment")

	after, err := os.ReadFile(indexPath)
	require.NoError(t, err)
	assert.Equal(t, before, after, "index on disk must not change")

	data, _ := c.ProjectData()
	assert.Equal(t, prev.CachedFiles["a.jsonl"], data.CachedFiles["a.jsonl"])
	assert.Equal(t, 1, data.CachedFiles["a.jsonl"].MessageCount)
	assert.True(t, c.IsCached(path), "old descriptor still describes the unchanged source")
	assert.Empty(t, tempFiles(t, filepath.Join(dir, "cache")))

	reopened := openCache(t, dir, "1.0.0")
	reloaded, _ := reopened.ProjectData()
	assert.Equal(t, prev.CachedFiles, reloaded.CachedFiles)
}

func TestSave_IndexWriteFailure(t *testing.T) {
	dir := t.TempDir()
	a, ea := writeTranscript(t, dir, "a.jsonl", userLine("u1", "s1", t1))
	b, eb := writeTranscript(t, dir, "b.jsonl", userLine("u2", "s2", t2))
	var logs bytes.Buffer
	c, err := Open(dir, Options{Version: "1.0.0", Logger: slog.New(slog.NewTextHandler(&logs, nil))})
	require.NoError(t, err)
	require.NoError(t, c.Save(a, ea))

	cacheDir := filepath.Join(dir, "cache")
	blockWithDir(t, filepath.Join(cacheDir, "index.json"))

	err = c.Save(b, eb)
	require.Error(t, err)
	assert.Contains(t, logs.String(), "failed to write cache index")
	assert.Empty(t, tempFiles(t, cacheDir))

	keep, err := os.ReadFile(filepath.Join(cacheDir, "index.json", "keep"))
	require.NoError(t, err)
	assert.Equal(t, "x", string(keep), "blocked index path left untouched")

	// The in-memory index moves on; the next successful write persists it.
	data, _ := c.ProjectData()
	assert.Contains(t, data.CachedFiles, "a.jsonl")
	assert.Contains(t, data.CachedFiles, "b.jsonl")

	err = c.UpdateWorkingDirectories([]string{"/home/dev/app"})
	require.Error(t, err)

	require.NoError(t, os.RemoveAll(filepath.Join(cacheDir, "index.json")))
	require.NoError(t, c.UpdateWorkingDirectories([]string{"/home/dev/app"}))
	reopened := openCache(t, dir, "1.0.0")
	assert.True(t, reopened.IsCached(a))
	assert.True(t, reopened.IsCached(b))
}

func TestLoad_InterleavedTimestampsGroupByBucket(t *testing.T) {
	dir := t.TempDir()
	path, entries := writeTranscript(t, dir, "a.jsonl",
		userLine("u1", "s1", t1),
		userLine("u2", "s1", t2),
		userLine("u3", "s1", t1),
	)
	c := openCache(t, dir, "1.0.0")
	require.NoError(t, c.Save(path, entries))

	got, ok := c.Load(path)
	require.True(t, ok)
	assert.Equal(t, []transcript.Entry{entries[0], entries[2], entries[1]}, got)
}
