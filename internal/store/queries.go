package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/blackwell-systems/fsprof/internal/perf"
)

// timeLayout is fixed-width so that stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Session operations

// InsertProfile stores a drained profile as a new session in one
// transaction: the session row, its string table and every event in order.
func (s *Store) InsertProfile(p *perf.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO sessions (id, pid, command, started_at, dropped, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		p.SessionID.String(),
		p.PID,
		p.Command,
		formatTime(p.Started),
		int64(p.Dropped),
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session %s: %w", p.SessionID, schemaErr(err))
	}

	stringStmt, err := tx.Prepare(`INSERT INTO strings (session_id, idx, content) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare string insert: %w", err)
	}
	defer stringStmt.Close()

	for idx, content := range p.Strings {
		if _, err := stringStmt.Exec(p.SessionID.String(), idx, content); err != nil {
			return fmt.Errorf("failed to insert string %d: %w", idx, err)
		}
	}

	eventStmt, err := tx.Prepare(`
		INSERT INTO fs_events
		(session_id, seq, kind, start_ms, is_error, error_code, fd, path_index, has_path,
		 dirfd, options, mode, buffer_ptr, size, file_offset)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare event insert: %w", err)
	}
	defer eventStmt.Close()

	for seq, e := range p.Events {
		args := append([]any{p.SessionID.String(), seq}, eventColumns(e)...)
		if _, err := eventStmt.Exec(args...); err != nil {
			return fmt.Errorf("failed to insert %s event %d: %w", e.Kind, seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session %s: %w", p.SessionID, err)
	}
	return nil
}

const sessionColumns = `
	s.id, s.pid, s.command, s.started_at, s.dropped, s.ingested_at,
	(SELECT COUNT(*) FROM fs_events e WHERE e.session_id = s.id)
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	var id, startedAt, ingestedAt string
	var dropped int64

	err := row.Scan(
		&id,
		&sess.PID,
		&sess.Command,
		&startedAt,
		&dropped,
		&ingestedAt,
		&sess.EventCount,
	)
	if err != nil {
		return nil, err
	}

	sess.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("failed to parse session id %q: %w", id, err)
	}
	sess.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at for %s: %w", id, err)
	}
	sess.IngestedAt, err = time.Parse(time.RFC3339Nano, ingestedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ingested_at for %s: %w", id, err)
	}
	sess.Dropped = uint64(dropped)
	return &sess, nil
}

// GetSession retrieves a session by ID.
func (s *Store) GetSession(id uuid.UUID) (*Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions s WHERE s.id = ?`, id.String())
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", id, schemaErr(err))
	}
	return sess, nil
}

// FindSession resolves a full session ID or a unique prefix of one.
func (s *Store) FindSession(prefix string) (*Session, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return nil, fmt.Errorf("%w: empty session id", ErrSessionNotFound)
	}

	// substr rather than LIKE, so "_" and "%" match only themselves
	rows, err := s.db.Query(`SELECT `+sessionColumns+` FROM sessions s WHERE substr(s.id, 1, length(?)) = ? LIMIT 2`, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to find session %s: %w", prefix, schemaErr(err))
	}
	defer rows.Close()

	var matches []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		matches = append(matches, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, prefix)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("session prefix %q is ambiguous", prefix)
	}
}

// ListSessions returns all sessions ordered by start time (newest first).
func (s *Store) ListSessions() ([]*Session, error) {
	rows, err := s.db.Query(`SELECT ` + sessionColumns + ` FROM sessions s ORDER BY s.started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", schemaErr(err))
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// DeleteSession removes a session with its strings and events.
func (s *Store) DeleteSession(id uuid.UUID) error {
	result, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, schemaErr(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	return nil
}

// Event operations

const eventColumnsSQL = `
	e.seq, e.kind, e.start_ms, e.is_error, e.error_code, e.fd, e.path_index, e.has_path,
	e.dirfd, e.options, e.mode, e.buffer_ptr, e.size, e.file_offset, str.content
`

// eventColumns flattens e into the column order of the fs_events insert,
// starting at kind. Columns that do not apply to the kind are NULL.
func eventColumns(e perf.Event) []any {
	var (
		fd, pathIndex, dirfd, options, mode any
		bufferPtr, size, offset             any
		hasPath                             bool
	)

	switch {
	case e.Open != nil:
		pathIndex, hasPath = int64(e.Open.PathIndex), e.Open.HasPath
		dirfd, options, mode = e.Open.Dirfd, e.Open.Options, int64(e.Open.Mode)
	case e.Pread != nil:
		fd = e.Pread.FD
		pathIndex, hasPath = int64(e.Pread.PathIndex), e.Pread.HasPath
		// the driver rejects uint64 values with the high bit set
		bufferPtr, size, offset = int64(e.Pread.BufferPtr), int64(e.Pread.Size), e.Pread.Offset
	case e.Descriptor != nil:
		fd = e.Descriptor.FD
		pathIndex, hasPath = int64(e.Descriptor.PathIndex), e.Descriptor.HasPath
	}
	if !hasPath {
		pathIndex = nil
	}

	return []any{
		e.Kind.String(),
		int64(e.StartMS),
		e.Result.IsError,
		e.Result.Code,
		fd,
		pathIndex,
		hasPath,
		dirfd,
		options,
		mode,
		bufferPtr,
		size,
		offset,
	}
}

func scanEvent(row rowScanner) (*EventRecord, error) {
	var (
		rec                                  EventRecord
		kind                                 string
		startMS                              int64
		fd, pathIndex, dirfd, options, mode  sql.NullInt64
		bufferPtr, size, offset              sql.NullInt64
		path                                 sql.NullString
	)

	err := row.Scan(
		&rec.Seq,
		&kind,
		&startMS,
		&rec.Event.Result.IsError,
		&rec.Event.Result.Code,
		&fd,
		&pathIndex,
		&rec.HasPath,
		&dirfd,
		&options,
		&mode,
		&bufferPtr,
		&size,
		&offset,
		&path,
	)
	if err != nil {
		return nil, err
	}

	e := &rec.Event
	if e.Kind, err = perf.ParseKind(kind); err != nil {
		return nil, err
	}
	e.StartMS = uint64(startMS)

	idx := perf.Index(pathIndex.Int64)
	desc := perf.DescriptorData{FD: int32(fd.Int64), PathIndex: idx, HasPath: rec.HasPath}
	switch e.Kind {
	case perf.KindOpen:
		e.Open = &perf.OpenData{
			PathIndex: idx,
			HasPath:   rec.HasPath,
			Dirfd:     int32(dirfd.Int64),
			Options:   int32(options.Int64),
			Mode:      uint32(mode.Int64),
		}
	case perf.KindPread:
		e.Pread = &perf.PreadData{
			DescriptorData: desc,
			BufferPtr:      uint64(bufferPtr.Int64),
			Size:           uint64(size.Int64),
			Offset:         offset.Int64,
		}
	default:
		e.Descriptor = &desc
	}

	if rec.HasPath && path.Valid {
		rec.Path = path.String
	} else {
		rec.HasPath = false
	}
	return &rec, nil
}

// GetEvents returns the events of a session in recording order.
func (s *Store) GetEvents(id uuid.UUID, filter EventFilter) ([]*EventRecord, error) {
	query := `
		SELECT ` + eventColumnsSQL + `
		FROM fs_events e
		LEFT JOIN strings str ON str.session_id = e.session_id AND str.idx = e.path_index
		WHERE e.session_id = ?
	`
	args := []any{id.String()}

	if len(filter.Kinds) > 0 {
		placeholders := make([]string, len(filter.Kinds))
		for i, k := range filter.Kinds {
			placeholders[i] = "?"
			args = append(args, k.String())
		}
		query += ` AND e.kind IN (` + strings.Join(placeholders, ", ") + `)`
	}
	if filter.FailedOnly {
		query += ` AND e.is_error`
	}
	query += ` ORDER BY e.seq`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get events for %s: %w", id, schemaErr(err))
	}
	defer rows.Close()

	var events []*EventRecord
	for rows.Next() {
		rec, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		events = append(events, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// GetKindCounts returns how many events of each kind a session holds.
// Kinds without events are absent from the map.
func (s *Store) GetKindCounts(id uuid.UUID) (map[perf.Kind]int, error) {
	rows, err := s.db.Query(`
		SELECT kind, COUNT(*)
		FROM fs_events
		WHERE session_id = ?
		GROUP BY kind
	`, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to count events for %s: %w", id, schemaErr(err))
	}
	defer rows.Close()

	counts := make(map[perf.Kind]int)
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("failed to scan kind count row: %w", err)
		}
		kind, err := perf.ParseKind(name)
		if err != nil {
			return nil, err
		}
		counts[kind] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating kind counts: %w", err)
	}

	return counts, nil
}

// GetEventCount returns the total number of events stored.
func (s *Store) GetEventCount() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM fs_events").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get event count: %w", schemaErr(err))
	}
	return count, nil
}

// LoadProfile reassembles the stored session into the profile it was
// ingested from.
func (s *Store) LoadProfile(id uuid.UUID) (*perf.Profile, error) {
	sess, err := s.GetSession(id)
	if err != nil {
		return nil, err
	}

	p := &perf.Profile{
		SessionID: sess.ID,
		PID:       sess.PID,
		Command:   sess.Command,
		Started:   sess.StartedAt,
		Dropped:   sess.Dropped,
	}

	rows, err := s.db.Query(`SELECT content FROM strings WHERE session_id = ? ORDER BY idx`, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load strings for %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("failed to scan string row: %w", err)
		}
		p.Strings = append(p.Strings, content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating strings: %w", err)
	}

	records, err := s.GetEvents(id, EventFilter{})
	if err != nil {
		return nil, err
	}
	p.Events = make([]perf.Event, len(records))
	for i, rec := range records {
		p.Events[i] = rec.Event
	}

	return p, nil
}

// Ingest bookkeeping

// MarkIngested records that the profile file at path was stored as session
// id, so later sweeps skip it.
func (s *Store) MarkIngested(path string, id uuid.UUID) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO ingested_files (path, session_id, ingested_at)
		VALUES (?, ?, ?)
	`, path, id.String(), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to mark %s ingested: %w", path, schemaErr(err))
	}
	return nil
}

// IsIngested reports whether the file at path was already ingested.
func (s *Store) IsIngested(path string) (bool, error) {
	var sessionID string
	err := s.db.QueryRow(`SELECT session_id FROM ingested_files WHERE path = ?`, path).Scan(&sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", path, schemaErr(err))
	}
	return true, nil
}
