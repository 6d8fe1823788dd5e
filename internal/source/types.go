package source

import "time"

// DiscoveredFile is a JSONL transcript found in a project directory.
type DiscoveredFile struct {
	Path    string
	Name    string // base name, e.g. "5f1c2d.jsonl"
	ModTime time.Time
	Size    int64
}

// Project is a directory under the projects root holding at least one transcript.
type Project struct {
	Dir   string // absolute path
	Name  string // raw directory name, e.g. "-home-dev-gitlore"
	Label string // decoded display name, e.g. "gitlore"
	Files []DiscoveredFile
}

// LastModified is the newest transcript modification time in the project.
func (p Project) LastModified() time.Time {
	var latest time.Time
	for _, f := range p.Files {
		if f.ModTime.After(latest) {
			latest = f.ModTime
		}
	}
	return latest
}

// Paths returns the transcript paths in scan order.
func Paths(files []DiscoveredFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}
