// Package catalog keeps a SQLite registry of every refreshed project so the
// CLI can list and search projects without opening each project's cache.
package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/theirongolddev/cclog/internal/model"

	_ "modernc.org/sqlite" // register sqlite driver
)

// ErrNotFound is returned by Get when no row exists for the directory.
var ErrNotFound = errors.New("project not in catalog")

// Project is one catalog row.
type Project struct {
	Dir          string
	Name         string
	Label        string
	JSONLCount   int
	MessageCount int
	SessionCount int
	Tokens       model.TokenUsage
	Earliest     string
	Latest       string
	LastModified time.Time
	RefreshedAt  time.Time
}

// SessionHit is a session row returned by Search.
type SessionHit struct {
	ProjectDir    string
	ProjectLabel  string
	SessionID     string
	Title         string
	Cwd           string
	LastTimestamp string
	MessageCount  int
	TotalTokens   int64
}

// Catalog provides SQLite-backed project bookkeeping.
type Catalog struct {
	db *sql.DB
}

// Open opens or creates the catalog database at the given path.
func Open(dbPath string) (*Catalog, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating catalog dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening catalog db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Catalog{db: db}, nil
}

// Close closes the catalog database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Upsert stores a project row and replaces its session rows.
func (c *Catalog) Upsert(p Project, sessions map[string]model.SessionSummary) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	refreshed := p.RefreshedAt
	if refreshed.IsZero() {
		refreshed = time.Now()
	}

	_, err = tx.Exec(`INSERT OR REPLACE INTO projects
		(dir, name, label, jsonl_count, message_count, session_count,
		 input_tokens, output_tokens, cache_creation, cache_read,
		 earliest, latest, last_modified_ns, refreshed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Dir, p.Name, p.Label, p.JSONLCount, p.MessageCount, p.SessionCount,
		p.Tokens.InputTokens, p.Tokens.OutputTokens, p.Tokens.CacheCreationTokens, p.Tokens.CacheReadTokens,
		p.Earliest, p.Latest, p.LastModified.UnixNano(), refreshed.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting project %s: %w", p.Dir, err)
	}

	if _, err := tx.Exec("DELETE FROM project_sessions WHERE project_dir = ?", p.Dir); err != nil {
		return err
	}

	for id, s := range sessions {
		_, err = tx.Exec(`INSERT INTO project_sessions
			(project_dir, session_id, title, cwd, first_timestamp, last_timestamp,
			 message_count, total_tokens)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.Dir, id, s.Title(), s.Cwd, s.FirstTimestamp, s.LastTimestamp,
			s.MessageCount, s.Total(),
		)
		if err != nil {
			return fmt.Errorf("inserting session %s: %w", id, err)
		}
	}

	return tx.Commit()
}

const projectColumns = `dir, name, label, jsonl_count, message_count, session_count,
	input_tokens, output_tokens, cache_creation, cache_read,
	earliest, latest, last_modified_ns, refreshed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (Project, error) {
	var (
		p                Project
		earliest, latest sql.NullString
		modNs            int64
		refreshed        string
	)
	err := row.Scan(&p.Dir, &p.Name, &p.Label, &p.JSONLCount, &p.MessageCount, &p.SessionCount,
		&p.Tokens.InputTokens, &p.Tokens.OutputTokens, &p.Tokens.CacheCreationTokens, &p.Tokens.CacheReadTokens,
		&earliest, &latest, &modNs, &refreshed)
	if err != nil {
		return Project{}, err
	}
	p.Earliest = earliest.String
	p.Latest = latest.String
	p.LastModified = time.Unix(0, modNs)
	p.RefreshedAt, _ = time.Parse(time.RFC3339, refreshed)
	return p, nil
}

// List returns every project, most recently active first.
func (c *Catalog) List() ([]Project, error) {
	rows, err := c.db.Query(`SELECT ` + projectColumns + ` FROM projects ORDER BY latest DESC, dir`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Get returns the row for dir, or ErrNotFound.
func (c *Catalog) Get(dir string) (Project, error) {
	p, err := scanProject(c.db.QueryRow(`SELECT `+projectColumns+` FROM projects WHERE dir = ?`, dir))
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, ErrNotFound
	}
	return p, err
}

// Delete removes a project and its sessions.
func (c *Catalog) Delete(dir string) error {
	_, err := c.db.Exec("DELETE FROM projects WHERE dir = ?", dir)
	return err
}

// Count returns the number of cataloged projects.
func (c *Catalog) Count() (int, error) {
	var count int
	err := c.db.QueryRow("SELECT COUNT(*) FROM projects").Scan(&count)
	return count, err
}

// Search finds sessions whose title or working directory contains query,
// case-insensitively, newest first.
func (c *Catalog) Search(query string, limit int) ([]SessionHit, error) {
	if limit <= 0 {
		limit = 50
	}
	like := "%" + escapeLike(strings.ToLower(query)) + "%"
	rows, err := c.db.Query(`SELECT s.project_dir, p.label, s.session_id, s.title, s.cwd,
			s.last_timestamp, s.message_count, s.total_tokens
		FROM project_sessions s JOIN projects p ON p.dir = s.project_dir
		WHERE lower(s.title) LIKE ? ESCAPE '\' OR lower(s.cwd) LIKE ? ESCAPE '\'
		ORDER BY s.last_timestamp DESC
		LIMIT ?`, like, like, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []SessionHit
	for rows.Next() {
		var (
			h                SessionHit
			title, cwd, last sql.NullString
			msgs, tokens     sql.NullInt64
		)
		if err := rows.Scan(&h.ProjectDir, &h.ProjectLabel, &h.SessionID, &title, &cwd, &last, &msgs, &tokens); err != nil {
			return nil, err
		}
		h.Title, h.Cwd, h.LastTimestamp = title.String, cwd.String, last.String
		h.MessageCount, h.TotalTokens = int(msgs.Int64), tokens.Int64
		out = append(out, h)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
