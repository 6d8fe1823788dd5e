package store

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/theirongolddev/cclog/internal/model"
)

// update applies fn to a copy of the index, installs the copy and persists it.
// When the write fails the new snapshot is kept in memory and the previous
// document stays on disk.
func (c *Cache) update(fn func(*model.ProjectIndex)) error {
	next := c.index.Clone()
	fn(&next)
	next.LastUpdated = c.now().Format(model.TimeLayout)
	c.index = next
	return c.persist()
}

func (c *Cache) persist() error {
	data, err := json.MarshalIndent(c.index, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache index: %w", err)
	}
	if err := writeFileAtomic(c.indexPath(), data, 0o600); err != nil {
		c.logger.Warn("failed to write cache index", "project", c.projectDir, "error", err)
		return fmt.Errorf("writing cache index: %w", err)
	}
	c.onDisk = true
	return nil
}

// UpdateSessionSummaries merges sessions into the index, replacing any
// existing summary with the same id.
func (c *Cache) UpdateSessionSummaries(sessions map[string]model.SessionSummary) error {
	return c.update(func(idx *model.ProjectIndex) {
		maps.Copy(idx.Sessions, sessions)
	})
}

// UpdateProjectAggregates replaces the project-wide totals.
func (c *Cache) UpdateProjectAggregates(a model.ProjectAggregates) error {
	return c.update(func(idx *model.ProjectIndex) {
		idx.TotalMessageCount = a.MessageCount
		idx.TokenUsage = a.TokenUsage
		idx.EarliestTimestamp = a.EarliestTimestamp
		idx.LatestTimestamp = a.LatestTimestamp
	})
}

// UpdateWorkingDirectories replaces the list of known working directories.
func (c *Cache) UpdateWorkingDirectories(dirs []string) error {
	return c.update(func(idx *model.ProjectIndex) {
		idx.WorkingDirectories = slices.Clone(dirs)
		if idx.WorkingDirectories == nil {
			idx.WorkingDirectories = []string{}
		}
	})
}
