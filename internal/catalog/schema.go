package catalog

const schemaSQL = `
CREATE TABLE IF NOT EXISTS projects (
    dir                  TEXT PRIMARY KEY,
    name                 TEXT NOT NULL,
    label                TEXT NOT NULL,
    jsonl_count          INTEGER NOT NULL DEFAULT 0,
    message_count        INTEGER NOT NULL DEFAULT 0,
    session_count        INTEGER NOT NULL DEFAULT 0,
    input_tokens         INTEGER NOT NULL DEFAULT 0,
    output_tokens        INTEGER NOT NULL DEFAULT 0,
    cache_creation       INTEGER NOT NULL DEFAULT 0,
    cache_read           INTEGER NOT NULL DEFAULT 0,
    earliest             TEXT,
    latest               TEXT,
    last_modified_ns     INTEGER NOT NULL,
    refreshed_at         TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS project_sessions (
    project_dir          TEXT NOT NULL REFERENCES projects(dir) ON DELETE CASCADE,
    session_id           TEXT NOT NULL,
    title                TEXT,
    cwd                  TEXT,
    first_timestamp      TEXT,
    last_timestamp       TEXT,
    message_count        INTEGER,
    total_tokens         INTEGER,
    PRIMARY KEY (project_dir, session_id)
);

CREATE INDEX IF NOT EXISTS idx_projects_latest ON projects(latest);
CREATE INDEX IF NOT EXISTS idx_sessions_last ON project_sessions(last_timestamp);
`
