package model

import (
	"maps"
	"slices"
	"time"
)

// TimeLayout is the format of the index's created/updated stamps.
const TimeLayout = time.RFC3339Nano

// CachedFile describes the cached segment of one transcript. It is rewritten
// wholesale each time the transcript is saved and is only used to test staleness.
type CachedFile struct {
	FilePath     string   `json:"file_path"`
	SourceMtime  float64  `json:"source_mtime"`
	CachedMtime  float64  `json:"cached_mtime"`
	MessageCount int      `json:"message_count"`
	SessionIDs   []string `json:"session_ids"`
}

// ProjectAggregates is the project-wide rollup recomputed on every refresh.
type ProjectAggregates struct {
	MessageCount      int
	EarliestTimestamp string
	LatestTimestamp   string
	TokenUsage
}

// ProjectIndex is the root document of a project's cache directory.
// Treat values as immutable: copy with Clone before changing anything.
type ProjectIndex struct {
	Version            string                    `json:"version"`
	CacheCreated       string                    `json:"cache_created"`
	LastUpdated        string                    `json:"last_updated"`
	ProjectPath        string                    `json:"project_path"`
	CachedFiles        map[string]CachedFile     `json:"cached_files"`
	TotalMessageCount  int                       `json:"total_message_count"`
	Sessions           map[string]SessionSummary `json:"sessions"`
	EarliestTimestamp  string                    `json:"earliest_timestamp"`
	LatestTimestamp    string                    `json:"latest_timestamp"`
	WorkingDirectories []string                  `json:"working_directories"`
	TokenUsage
}

// NewProjectIndex returns an empty index stamped with version.
func NewProjectIndex(version, projectPath string, now time.Time) ProjectIndex {
	stamp := now.Format(TimeLayout)
	return ProjectIndex{
		Version:            version,
		CacheCreated:       stamp,
		LastUpdated:        stamp,
		ProjectPath:        projectPath,
		CachedFiles:        map[string]CachedFile{},
		Sessions:           map[string]SessionSummary{},
		WorkingDirectories: []string{},
	}
}

// Clone returns a deep copy of p.
func (p ProjectIndex) Clone() ProjectIndex {
	c := p
	c.CachedFiles = make(map[string]CachedFile, len(p.CachedFiles))
	for k, f := range p.CachedFiles {
		f.SessionIDs = slices.Clone(f.SessionIDs)
		c.CachedFiles[k] = f
	}
	c.Sessions = maps.Clone(p.Sessions)
	if c.Sessions == nil {
		c.Sessions = map[string]SessionSummary{}
	}
	c.WorkingDirectories = slices.Clone(p.WorkingDirectories)
	if c.WorkingDirectories == nil {
		c.WorkingDirectories = []string{}
	}
	return c
}

// Normalize fills nil collections left by a sparse JSON document.
func (p *ProjectIndex) Normalize() {
	if p.CachedFiles == nil {
		p.CachedFiles = map[string]CachedFile{}
	}
	if p.Sessions == nil {
		p.Sessions = map[string]SessionSummary{}
	}
	if p.WorkingDirectories == nil {
		p.WorkingDirectories = []string{}
	}
}

// CacheStats summarizes a project cache for display.
type CacheStats struct {
	CachedFiles   int    `json:"cached_files_count"`
	TotalMessages int    `json:"total_cached_messages"`
	TotalSessions int    `json:"total_sessions"`
	CacheCreated  string `json:"cache_created"`
	LastUpdated   string `json:"last_updated"`
}
