package source

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ScanDir lists the JSONL transcripts directly inside projectDir, sorted by
// name. Subdirectories (subagent transcripts) are not descended into.
// A missing directory yields no files and no error.
func ScanDir(projectDir string) ([]DiscoveredFile, error) {
	entries, err := os.ReadDir(projectDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []DiscoveredFile
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".jsonl" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed between ReadDir and Info
		}
		files = append(files, DiscoveredFile{
			Path:    filepath.Join(projectDir, e.Name()),
			Name:    e.Name(),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// DiscoverProjects returns every child of projectsDir that holds at least one
// transcript, sorted by directory name.
func DiscoverProjects(projectsDir string) ([]Project, error) {
	entries, err := os.ReadDir(projectsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var projects []Project
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(projectsDir, e.Name())
		files, err := ScanDir(dir)
		if err != nil || len(files) == 0 {
			continue
		}
		projects = append(projects, Project{
			Dir:   dir,
			Name:  e.Name(),
			Label: DecodeProjectName(e.Name()),
			Files: files,
		})
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })
	return projects, nil
}

// DecodeProjectName extracts a human-readable project name from the encoded directory name.
// Claude Code encodes absolute paths by replacing "/" with "-", so:
//
//	"-Users-tayloreernisse-projects-gitlore" -> "gitlore"
//	"-Users-tayloreernisse-projects-my-cool-project" -> "my-cool-project"
//
// We find the last known path component ("projects", "repos", "src", "code", "home")
// and take everything after it. Falls back to the last non-empty segment.
func DecodeProjectName(dirName string) string {
	parts := strings.Split(dirName, "-")

	knownParents := map[string]bool{
		"projects": true, "repos": true, "src": true,
		"code": true, "workspace": true, "dev": true,
	}

	for i := len(parts) - 2; i >= 0; i-- {
		if knownParents[strings.ToLower(parts[i])] {
			name := strings.Join(parts[i+1:], "-")
			if name != "" {
				return name
			}
		}
	}

	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}

	return dirName
}

var unsafeDirChars = regexp.MustCompile(`[^A-Za-z0-9-]`)

// EncodeProjectDir maps an absolute working directory to the directory name
// Claude Code stores its transcripts under: "/home/dev/app" -> "-home-dev-app".
func EncodeProjectDir(path string) string {
	path = filepath.ToSlash(filepath.Clean(path))
	return unsafeDirChars.ReplaceAllString(path, "-")
}
