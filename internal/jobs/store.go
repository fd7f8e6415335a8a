package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists job history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
    id          TEXT PRIMARY KEY,
    kind        TEXT NOT NULL,
    target      TEXT NOT NULL,
    output      TEXT NOT NULL DEFAULT '',
    state       TEXT NOT NULL,
    title       TEXT NOT NULL DEFAULT '',
    final_path  TEXT NOT NULL DEFAULT '',
    code        TEXT NOT NULL DEFAULT '',
    detail      TEXT NOT NULL DEFAULT '',
    created_at  TEXT NOT NULL,
    finished_at TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_jobs_state ON jobs(state);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
`

// OpenStore initializes or connects to the job history database.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// RecordStart inserts a running history entry for the job. A retried job id
// replaces its previous row.
func (s *Store) RecordStart(ctx context.Context, rec Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO jobs (id, kind, target, output, state, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    kind = excluded.kind,
    target = excluded.target,
    output = excluded.output,
    state = excluded.state,
    title = '',
    final_path = '',
    code = '',
    detail = '',
    created_at = excluded.created_at,
    finished_at = ''`,
		rec.ID, string(rec.Kind), rec.Target, rec.Output, string(StateRunning), formatTime(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("record job start: %w", err)
	}
	return nil
}

// RecordFinish stores the terminal outcome for the job.
func (s *Store) RecordFinish(ctx context.Context, id string, out Outcome) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE jobs
SET state = ?, title = ?, final_path = ?, code = ?, detail = ?, finished_at = ?
WHERE id = ?`,
		string(out.State), out.Title, out.FinalPath, out.Code, out.Detail, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("record job finish: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record job finish: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("record job finish: unknown job %q", id)
	}
	return nil
}

// Get loads a single history entry.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, kind, target, output, state, title, final_path, code, detail, created_at, finished_at
FROM jobs WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("job %q not found", id)
	}
	return rec, err
}

// List returns history entries, newest first, up to limit (0 means all).
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	query := `
SELECT id, kind, target, output, state, title, final_path, code, detail, created_at, finished_at
FROM jobs ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountByState returns job counts grouped by lifecycle state.
func (s *Store) CountByState(ctx context.Context) (map[State]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM jobs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[State]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("scan job count: %w", err)
		}
		counts[State(state)] = count
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var kind, state, createdAt, finishedAt string
	if err := row.Scan(&rec.ID, &kind, &rec.Target, &rec.Output, &state, &rec.Title,
		&rec.FinalPath, &rec.Code, &rec.Detail, &createdAt, &finishedAt); err != nil {
		return Record{}, err
	}
	rec.Kind = Kind(kind)
	rec.State = State(state)
	rec.CreatedAt = parseTime(createdAt)
	rec.FinishedAt = parseTime(finishedAt)
	return rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
