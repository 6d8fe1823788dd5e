// Package store persists parsed transcripts for one project directory.
//
// Each transcript gets a segment file under <project>/cache/ holding its
// records bucketed by timestamp, and a single index.json tracks every segment
// together with the project's session and token rollups. Reads never fail: a
// missing, stale or undecodable segment is reported as a cache miss and the
// caller re-parses the source.
//
// A Cache is not safe for concurrent use, and two processes must not share one
// project's cache directory.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/theirongolddev/cclog/internal/model"
)

const (
	dirName   = "cache"
	indexName = "index.json"

	// mtimeEpsilon is the tolerance, in seconds, when comparing a source's
	// modification time against the one recorded at save time. Two writes to
	// the same file within this window are indistinguishable.
	mtimeEpsilon = 1.0
)

// Options configures a Cache.
type Options struct {
	// Version is the running program version stamped into new indexes and
	// checked against the version of an existing one.
	Version string
	// BreakingChanges maps a cached-version pattern to the first program
	// version that can no longer read it. See Compatible.
	BreakingChanges map[string]string
	Logger          *slog.Logger
	// Now overrides the clock used for index timestamps.
	Now func() time.Time
}

// Cache is the file cache and project index for one project directory.
type Cache struct {
	projectDir string
	dir        string
	version    string
	rules      map[string]string
	logger     *slog.Logger
	now        func() time.Time

	index model.ProjectIndex
	// onDisk is set once the index has been read from or written to disk.
	onDisk bool
}

// Open loads the cache for projectDir, creating the cache directory if needed.
// A corrupt index is discarded with a warning; an index written by an
// incompatible version is discarded together with every segment.
func Open(projectDir string, opts Options) (*Cache, error) {
	c := &Cache{
		projectDir: projectDir,
		dir:        filepath.Join(projectDir, dirName),
		version:    opts.Version,
		rules:      opts.BreakingChanges,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.rules == nil {
		c.rules = DefaultBreakingChanges()
	}

	if err := os.MkdirAll(c.dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	c.index = model.NewProjectIndex(c.version, projectDir, c.now())
	c.loadIndex()
	return c, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// Version returns the running version the cache was opened with.
func (c *Cache) Version() string { return c.version }

func (c *Cache) indexPath() string { return filepath.Join(c.dir, indexName) }

func (c *Cache) loadIndex() {
	data, err := os.ReadFile(c.indexPath())
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("reading cache index, starting fresh", "project", c.projectDir, "error", err)
		}
		return
	}

	var idx model.ProjectIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		c.logger.Warn("corrupt cache index, starting fresh", "project", c.projectDir, "error", err)
		return
	}

	if !Compatible(idx.Version, c.version, c.rules) {
		c.logger.Info("cache version incompatible, rebuilding",
			"project", c.projectDir, "cached", idx.Version, "running", c.version)
		if err := c.Clear(); err != nil {
			c.logger.Warn("clearing incompatible cache", "project", c.projectDir, "error", err)
		}
		return
	}

	idx.Normalize()
	c.index = idx
	c.onDisk = true
}

// IsCached reports whether path has a valid segment: a descriptor exists for
// its file name, the source still exists with a modification time within one
// second of the recorded one, and the segment file exists.
func (c *Cache) IsCached(path string) bool {
	desc, ok := c.index.CachedFiles[filepath.Base(path)]
	if !ok {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if math.Abs(mtimeSeconds(info.ModTime())-desc.SourceMtime) >= mtimeEpsilon {
		return false
	}
	_, err = os.Stat(c.segmentPath(path))
	return err == nil
}

// ModifiedFiles returns the candidates that are not cached, in input order.
func (c *Cache) ModifiedFiles(paths []string) []string {
	var out []string
	for _, p := range paths {
		if !c.IsCached(p) {
			out = append(out, p)
		}
	}
	return out
}

// ProjectData returns the current index snapshot. ok is false when no index
// has been loaded from or written to disk yet.
func (c *Cache) ProjectData() (model.ProjectIndex, bool) {
	return c.index.Clone(), c.onDisk
}

// Stats summarizes the cache contents.
func (c *Cache) Stats() model.CacheStats {
	s := model.CacheStats{
		CachedFiles:   len(c.index.CachedFiles),
		TotalSessions: len(c.index.Sessions),
		CacheCreated:  c.index.CacheCreated,
		LastUpdated:   c.index.LastUpdated,
	}
	for _, f := range c.index.CachedFiles {
		s.TotalMessages += f.MessageCount
	}
	return s
}

// Clear deletes every segment and the index, and resets the in-memory index
// to an empty one stamped with the running version.
func (c *Cache) Clear() error {
	matches, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return fmt.Errorf("listing cache files: %w", err)
	}
	var errs []error
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	c.index = model.NewProjectIndex(c.version, c.projectDir, c.now())
	c.onDisk = false
	if len(errs) > 0 {
		return fmt.Errorf("clearing cache: %w", errors.Join(errs...))
	}
	return nil
}

func mtimeSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
