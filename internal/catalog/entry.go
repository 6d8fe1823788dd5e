package catalog

import (
	"time"

	"github.com/theirongolddev/cclog/internal/model"
	"github.com/theirongolddev/cclog/internal/source"
)

// FromIndex builds the catalog row for a project from its cache index.
func FromIndex(p source.Project, idx model.ProjectIndex, refreshedAt time.Time) Project {
	return Project{
		Dir:          p.Dir,
		Name:         p.Name,
		Label:        p.Label,
		JSONLCount:   len(p.Files),
		MessageCount: idx.TotalMessageCount,
		SessionCount: len(idx.Sessions),
		Tokens:       idx.TokenUsage,
		Earliest:     idx.EarliestTimestamp,
		Latest:       idx.LatestTimestamp,
		LastModified: p.LastModified(),
		RefreshedAt:  refreshedAt,
	}
}
