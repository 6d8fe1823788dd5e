package pipeline

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/theirongolddev/cclog/internal/daterange"
	"github.com/theirongolddev/cclog/internal/model"
	"github.com/theirongolddev/cclog/internal/source"
	"github.com/theirongolddev/cclog/internal/transcript"
)

// Store is the subset of *store.Cache the reconciler drives.
type Store interface {
	LoadFiltered(path string, r daterange.Range) ([]transcript.Entry, bool)
	Save(path string, entries []transcript.Entry) error
	ModifiedFiles(paths []string) []string
	ProjectData() (model.ProjectIndex, bool)
	UpdateSessionSummaries(map[string]model.SessionSummary) error
	UpdateProjectAggregates(model.ProjectAggregates) error
	UpdateWorkingDirectories([]string) error
}

// Status is the outcome of EnsureFresh.
type Status int

const (
	Unchanged Status = iota
	Updated
)

func (s Status) String() string {
	if s == Updated {
		return "updated"
	}
	return "unchanged"
}

// Result reports what a reconcile or load pass did.
type Result struct {
	Status    Status
	Files     int
	CacheHits int
	Reparsed  int
	Failed    int
}

// Options configures a Reconciler.
type Options struct {
	Logger *slog.Logger
	// Workers bounds concurrent parsing of cache misses. Zero means GOMAXPROCS.
	Workers  int
	Progress ProgressFunc
}

// Reconciler keeps one project's cache in step with its transcripts.
// Calls must not overlap: the underlying Store is single-threaded.
type Reconciler struct {
	store  Store
	parser Parser
	opts   Options
	logger *slog.Logger
}

// NewReconciler returns a reconciler over store that parses misses with parser.
func NewReconciler(store Store, parser Parser, opts Options) *Reconciler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: store, parser: parser, opts: opts, logger: logger}
}

// EnsureFresh brings the project index up to date with the transcripts in
// projectDir.
//
// Nothing is done when there are no transcripts, or when an index exists, no
// transcript changed, no date range is given and the index holds messages.
// Otherwise every transcript is loaded (from cache where valid, parsing and
// caching the rest) and the session summaries, project aggregates and working
// directories are recomputed from scratch and written back.
func (r *Reconciler) EnsureFresh(projectDir string, rng daterange.Range) (Result, error) {
	files, err := source.ScanDir(projectDir)
	if err != nil {
		return Result{}, fmt.Errorf("scanning %s: %w", projectDir, err)
	}
	paths := source.Paths(files)
	res := Result{Files: len(paths)}
	if len(paths) == 0 {
		return res, nil
	}

	data, hasIndex := r.store.ProjectData()
	modified := r.store.ModifiedFiles(paths)
	needsUpdate := !hasIndex ||
		!rng.IsZero() ||
		len(modified) > 0 ||
		data.TotalMessageCount == 0
	if !needsUpdate {
		res.CacheHits = len(paths)
		return res, nil
	}

	// Rollups always cover the whole project; the range only forces the pass.
	entries, res := r.load(paths, daterange.Range{})
	rollup := Summarize(entries)

	// Write failures are logged by the store; the in-memory index stays
	// current and the next successful write catches the disk up.
	_ = r.store.UpdateSessionSummaries(rollup.Sessions)
	_ = r.store.UpdateProjectAggregates(rollup.Aggregates)
	_ = r.store.UpdateWorkingDirectories(rollup.WorkingDirectories)

	res.Status = Updated
	r.logger.Debug("project cache updated", "project", projectDir,
		"files", res.Files, "cache_hits", res.CacheHits, "reparsed", res.Reparsed, "failed", res.Failed)
	return res, nil
}

// LoadEntries returns the entries of projectDir inside rng in chronological
// order, serving valid segments from the cache and parsing and caching the
// rest. It does not touch the rollups; call EnsureFresh for that.
func (r *Reconciler) LoadEntries(projectDir string, rng daterange.Range) ([]transcript.Entry, Result, error) {
	files, err := source.ScanDir(projectDir)
	if err != nil {
		return nil, Result{}, fmt.Errorf("scanning %s: %w", projectDir, err)
	}
	entries, res := r.load(source.Paths(files), rng)
	return entries, res, nil
}

func (r *Reconciler) load(paths []string, rng daterange.Range) ([]transcript.Entry, Result) {
	res := Result{Files: len(paths)}
	perFile := make([][]transcript.Entry, len(paths))

	var misses []int
	for i, p := range paths {
		if entries, ok := r.store.LoadFiltered(p, rng); ok {
			perFile[i] = entries
			res.CacheHits++
			continue
		}
		misses = append(misses, i)
	}
	r.report(res.CacheHits, len(paths))

	missPaths := make([]string, len(misses))
	for k, i := range misses {
		missPaths[k] = paths[i]
	}
	var processed atomic.Int64
	results := parseAll(r.parser, missPaths, r.opts.Workers, func() {
		r.report(res.CacheHits+int(processed.Add(1)), len(paths))
	})
	byIndex := make(map[int]parsed, len(misses))
	for k, i := range misses {
		byIndex[i] = results[k]
	}

	// Walk in path order so a failure can name the last file that loaded.
	previous := ""
	for i, p := range paths {
		pr, miss := byIndex[i]
		if !miss {
			previous = p
			continue
		}
		if pr.err != nil {
			res.Failed++
			attrs := []any{"file", p, "previous", previous, "error", pr.err}
			if pr.stack != nil {
				attrs = append(attrs, "stack", string(pr.stack))
			}
			r.logger.Warn("skipping transcript that failed to parse", attrs...)
			continue
		}
		_ = r.store.Save(p, pr.entries)
		perFile[i] = source.FilterByDate(pr.entries, rng)
		res.Reparsed++
		previous = p
	}

	var all []transcript.Entry
	for _, es := range perFile {
		all = append(all, es...)
	}
	source.SortChronological(all)
	return all, res
}

func (r *Reconciler) report(current, total int) {
	if r.opts.Progress != nil {
		r.opts.Progress(current, total)
	}
}
