package pipeline

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/theirongolddev/cclog/internal/daterange"
	"github.com/theirongolddev/cclog/internal/source"
	"github.com/theirongolddev/cclog/internal/transcript"
)

// Parser turns one transcript file into entries. Implementations must be
// safe for concurrent use.
type Parser interface {
	ParseFile(path string) ([]transcript.Entry, error)
}

// ProgressFunc is called during loading to report progress.
// current is the number of files processed so far, total is the total count.
type ProgressFunc func(current, total int)

type parsed struct {
	entries []transcript.Entry
	err     error
	stack   []byte // set when the parser panicked
}

// parseOne runs the parser, converting a panic into an error carrying the
// goroutine stack.
func parseOne(p Parser, path string) (out parsed) {
	defer func() {
		if v := recover(); v != nil {
			out = parsed{err: fmt.Errorf("panic parsing %s: %v", path, v), stack: debug.Stack()}
		}
	}()
	entries, err := p.ParseFile(path)
	return parsed{entries: entries, err: err}
}

// parseAll parses paths with a bounded worker pool. Results are indexed like
// paths. progress is called once per finished file.
func parseAll(p Parser, paths []string, workers int, progress func()) []parsed {
	results := make([]parsed, len(paths))
	if len(paths) == 0 {
		return results
	}

	numWorkers := workers
	if numWorkers < 1 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	if numWorkers > len(paths) {
		numWorkers = len(paths)
	}

	work := make(chan int, len(paths))
	for i := range paths {
		work <- i
	}
	close(work)

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for idx := range work {
				results[idx] = parseOne(p, paths[idx])
				if progress != nil {
					progress()
				}
			}
		}()
	}
	wg.Wait()
	return results
}

// LoadResult holds the output of an uncached directory load.
type LoadResult struct {
	Entries    []transcript.Entry
	TotalFiles int
	FileErrors int
}

// Load parses every transcript in projectDir without consulting a cache and
// returns the entries inside r in chronological order. Files that fail to
// parse are counted and skipped.
func Load(projectDir string, r daterange.Range, p Parser, workers int, progressFn ProgressFunc) (*LoadResult, error) {
	files, err := source.ScanDir(projectDir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", projectDir, err)
	}
	paths := source.Paths(files)
	result := &LoadResult{TotalFiles: len(paths)}

	var processed atomic.Int64
	results := parseAll(p, paths, workers, func() {
		n := processed.Add(1)
		if progressFn != nil {
			progressFn(int(n), len(paths))
		}
	})

	for _, pr := range results {
		if pr.err != nil {
			result.FileErrors++
			continue
		}
		result.Entries = append(result.Entries, source.FilterByDate(pr.entries, r)...)
	}
	source.SortChronological(result.Entries)
	return result, nil
}
