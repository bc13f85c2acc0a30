package store

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    pid INTEGER NOT NULL,
    command TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    dropped INTEGER NOT NULL DEFAULT 0,
    ingested_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS strings (
    session_id TEXT NOT NULL,
    idx INTEGER NOT NULL,
    content TEXT NOT NULL,
    PRIMARY KEY (session_id, idx),
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS fs_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    kind TEXT NOT NULL,
    start_ms INTEGER NOT NULL,
    is_error BOOLEAN NOT NULL,
    error_code INTEGER NOT NULL,
    fd INTEGER,
    path_index INTEGER,
    has_path BOOLEAN NOT NULL,
    dirfd INTEGER,
    options INTEGER,
    mode INTEGER,
    buffer_ptr INTEGER,
    size INTEGER,
    file_offset INTEGER,
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS ingested_files (
    path TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    ingested_at TIMESTAMP NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_events_session_seq ON fs_events(session_id, seq);
CREATE INDEX IF NOT EXISTS idx_events_kind ON fs_events(session_id, kind);
CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
`
