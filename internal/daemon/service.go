// Package daemon keeps every project cache fresh in the background and
// serves the resulting totals over HTTP.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/theirongolddev/cclog/internal/catalog"
	"github.com/theirongolddev/cclog/internal/daterange"
	"github.com/theirongolddev/cclog/internal/pipeline"
	"github.com/theirongolddev/cclog/internal/source"
	"github.com/theirongolddev/cclog/internal/store"
)

// Config controls the daemon runtime behavior.
type Config struct {
	ProjectsDir string
	Range       daterange.Range
	// UseCache selects cached refreshes; without it every poll reparses
	// every transcript and writes nothing.
	UseCache     bool
	Store        store.Options
	Workers      int
	Interval     time.Duration
	Addr         string
	EventsBuffer int
	// Watch enables filesystem notifications in addition to polling.
	Watch bool
	// Catalog, when set, receives a row per refreshed project.
	Catalog *catalog.Catalog
	Logger  *slog.Logger
}

// Snapshot is a compact usage state for status/event payloads.
type Snapshot struct {
	At          time.Time `json:"at"`
	Projects    int       `json:"projects"`
	Sessions    int       `json:"sessions"`
	Messages    int       `json:"messages"`
	Tokens      int64     `json:"tokens"`
	CachedFiles int       `json:"cached_files"`
	Failed      int       `json:"failed_projects"`
}

// Delta captures snapshot deltas between polls.
type Delta struct {
	Projects int   `json:"projects"`
	Sessions int   `json:"sessions"`
	Messages int   `json:"messages"`
	Tokens   int64 `json:"tokens"`
}

func (d Delta) isZero() bool {
	return d == Delta{}
}

// Event is emitted whenever the snapshot changes.
type Event struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Snapshot  Snapshot  `json:"snapshot"`
	Delta     Delta     `json:"delta"`
	// Changed lists the projects that triggered a watch refresh.
	Changed []string `json:"changed,omitempty"`
}

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time `json:"started_at"`
	LastPollAt      time.Time `json:"last_poll_at"`
	PollIntervalSec int       `json:"poll_interval_sec"`
	PollCount       int64     `json:"poll_count"`
	ProjectsDir     string    `json:"projects_dir"`
	Range           string    `json:"range,omitempty"`
	UseCache        bool      `json:"use_cache"`
	Watching        bool      `json:"watching"`
	Summary         Snapshot  `json:"summary"`
	LastDurationMs  int64     `json:"last_duration_ms"`
	LastError       string    `json:"last_error,omitempty"`
	EventCount      int       `json:"event_count"`
	SubscriberCount int       `json:"subscriber_count"`
}

// Service provides the daemon runtime and HTTP API.
type Service struct {
	cfg    Config
	logger *slog.Logger

	// refreshMu serializes polls; each project cache is single-writer.
	refreshMu sync.Mutex

	mu           sync.RWMutex
	startedAt    time.Time
	lastPollAt   time.Time
	lastDuration time.Duration
	pollCount    int64
	lastError    string
	watching     bool
	hasSnapshot  bool
	snapshot     Snapshot
	nextEventID  int64
	events       []Event

	nextSubID int
	subs      map[int]chan Event
}

// New returns a new daemon service with the provided config.
func New(cfg Config) *Service {
	if cfg.Interval < 2*time.Second {
		cfg.Interval = 30 * time.Second
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8787"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		cfg:       cfg,
		logger:    logger,
		startedAt: time.Now(),
		subs:      make(map[int]chan Event),
	}
}

// Handler returns the daemon's HTTP routes.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/events", s.handleEvents)
	mux.HandleFunc("/v1/stream", s.handleStream)
	return mux
}

// Run starts HTTP endpoints, polling and (optionally) watching until ctx is
// canceled.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var changes <-chan []string
	if s.cfg.Watch {
		ch, err := Watch(ctx, s.cfg.ProjectsDir, debounceDelay, s.logger)
		if err != nil {
			s.logger.Warn("file watching unavailable, polling only", "dir", s.cfg.ProjectsDir, "error", err)
		} else {
			changes = ch
			s.mu.Lock()
			s.watching = true
			s.mu.Unlock()
		}
	}

	// Seed initial snapshot so status is useful immediately.
	s.pollOnce(ctx, nil)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case <-ticker.C:
			s.pollOnce(ctx, nil)
		case dirs, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			s.logger.Debug("transcripts changed", "projects", len(dirs))
			s.pollOnce(ctx, dirs)
		case err := <-errCh:
			return fmt.Errorf("daemon http server: %w", err)
		}
	}
}

// pollOnce refreshes every project and publishes an event when totals moved
// or when changed is non-empty.
func (s *Service) pollOnce(ctx context.Context, changed []string) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	start := time.Now()
	snap, err := s.collect(ctx)
	now := time.Now()
	if err != nil {
		s.mu.Lock()
		s.lastError = err.Error()
		s.lastPollAt = now
		s.lastDuration = now.Sub(start)
		s.pollCount++
		s.mu.Unlock()
		s.logger.Error("daemon poll failed", "error", err)
		return
	}
	snap.At = now

	var (
		ev      Event
		publish bool
	)

	s.mu.Lock()
	prev := s.snapshot
	prevExists := s.hasSnapshot

	s.hasSnapshot = true
	s.snapshot = snap
	s.lastPollAt = now
	s.lastDuration = now.Sub(start)
	s.pollCount++
	s.lastError = ""

	switch delta := diffSnapshots(prev, snap); {
	case !prevExists:
		s.nextEventID++
		ev = Event{ID: s.nextEventID, Type: "snapshot", Timestamp: now, Snapshot: snap}
		publish = true
	case !delta.isZero() || len(changed) > 0:
		s.nextEventID++
		ev = Event{ID: s.nextEventID, Type: "cache_delta", Timestamp: now, Snapshot: snap, Delta: delta, Changed: changed}
		publish = true
	}
	s.mu.Unlock()

	if publish {
		s.publishEvent(ev)
	}
}

// collect brings every project up to date and totals the result.
func (s *Service) collect(ctx context.Context) (Snapshot, error) {
	if !s.cfg.UseCache {
		return s.collectUncached()
	}

	var snap Snapshot
	_, err := pipeline.RefreshAll(ctx, s.cfg.ProjectsDir, pipeline.RefreshOptions{
		Store:   s.cfg.Store,
		Logger:  s.logger,
		Workers: s.cfg.Workers,
		Range:   s.cfg.Range,
		OnProject: func(pr pipeline.ProjectResult) {
			snap.Projects++
			if pr.Err != nil {
				snap.Failed++
				return
			}
			addIndex(&snap, pr)
			if s.cfg.Catalog != nil {
				row := catalog.FromIndex(pr.Project, pr.Index, time.Now())
				if err := s.cfg.Catalog.Upsert(row, pr.Index.Sessions); err != nil {
					s.logger.Warn("catalog upsert failed", "project", pr.Project.Name, "error", err)
				}
			}
		},
	})
	return snap, err
}

func addIndex(snap *Snapshot, pr pipeline.ProjectResult) {
	snap.Sessions += len(pr.Index.Sessions)
	snap.Messages += pr.Index.TotalMessageCount
	snap.Tokens += pr.Index.Total()
	snap.CachedFiles += len(pr.Index.CachedFiles)
}

func (s *Service) collectUncached() (Snapshot, error) {
	projects, err := source.DiscoverProjects(s.cfg.ProjectsDir)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	for _, p := range projects {
		snap.Projects++
		res, err := pipeline.Load(p.Dir, s.cfg.Range, source.Parser{Logger: s.logger}, s.cfg.Workers, nil)
		if err != nil {
			snap.Failed++
			s.logger.Warn("skipping project that failed to load", "project", p.Name, "error", err)
			continue
		}
		rollup := pipeline.Summarize(res.Entries)
		snap.Sessions += len(rollup.Sessions)
		snap.Messages += rollup.Aggregates.MessageCount
		snap.Tokens += rollup.Aggregates.Total()
	}
	return snap, nil
}

func diffSnapshots(prev, curr Snapshot) Delta {
	return Delta{
		Projects: curr.Projects - prev.Projects,
		Sessions: curr.Sessions - prev.Sessions,
		Messages: curr.Messages - prev.Messages,
		Tokens:   curr.Tokens - prev.Tokens,
	}
}

func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		StartedAt:       s.startedAt,
		LastPollAt:      s.lastPollAt,
		PollIntervalSec: int(s.cfg.Interval.Seconds()),
		PollCount:       s.pollCount,
		ProjectsDir:     s.cfg.ProjectsDir,
		UseCache:        s.cfg.UseCache,
		Watching:        s.watching,
		Summary:         s.snapshot,
		LastDurationMs:  s.lastDuration.Milliseconds(),
		LastError:       s.lastError,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
	}
	if !s.cfg.Range.IsZero() {
		st.Range = s.cfg.Range.String()
	}
	return st
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.snapshotStatus())
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events)
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	writeSSE(w, Event{
		Type:      "snapshot",
		Timestamp: time.Now(),
		Snapshot:  s.snapshotStatus().Summary,
	})
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
