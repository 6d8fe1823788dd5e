package daemon

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	debounceDelay = 100 * time.Millisecond
	cacheDirName  = "cache"
)

// Watch reports which projects under root had transcript activity. Each value
// on the returned channel is the sorted set of project directories touched
// since the previous value; bursts of writes are coalesced for delay. Cache
// directories are ignored so refresh writes never trigger another refresh.
// The channel closes when ctx is done.
func Watch(ctx context.Context, root string, delay time.Duration, logger *slog.Logger) (<-chan []string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if delay <= 0 {
		delay = debounceDelay
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := addWatchTree(watcher, root); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	out := make(chan []string, 4)

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		done    bool
	)
	flush := func() {
		mu.Lock()
		defer mu.Unlock()
		if done || len(pending) == 0 {
			return
		}
		dirs := make([]string, 0, len(pending))
		for d := range pending {
			dirs = append(dirs, d)
		}
		pending = make(map[string]struct{})
		sort.Strings(dirs)
		select {
		case out <- dirs:
		default:
			logger.Debug("dropping watch batch, consumer busy", "projects", len(dirs))
		}
	}
	stop := func() {
		mu.Lock()
		defer mu.Unlock()
		done = true
		if timer != nil {
			timer.Stop()
		}
		close(out)
	}

	go func() {
		defer stop()
		defer func() { _ = watcher.Close() }()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Create != 0 {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						if filepath.Base(event.Name) != cacheDirName {
							_ = addWatchTree(watcher, event.Name)
						}
						continue
					}
				}
				if !strings.HasSuffix(event.Name, ".jsonl") {
					continue
				}
				project, ok := projectOf(root, event.Name)
				if !ok {
					continue
				}

				mu.Lock()
				pending[project] = struct{}{}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(delay, flush)
				mu.Unlock()

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("watch error", "error", err)
			}
		}
	}()

	return out, nil
}

// projectOf maps a path below root to its project directory, the first path
// element under root.
func projectOf(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	first, _, nested := strings.Cut(filepath.ToSlash(rel), "/")
	if !nested {
		// a file directly under root is not a project transcript
		return "", false
	}
	return filepath.Join(root, first), true
}

func addWatchTree(watcher *fsnotify.Watcher, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}

	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == cacheDirName && path != root {
			return filepath.SkipDir
		}
		_ = watcher.Add(path)
		return nil
	})
}
