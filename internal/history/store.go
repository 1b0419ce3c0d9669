package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DefaultLimit caps Recent when no positive limit is given.
const DefaultLimit = 20

// Store persists runs in a SQLite database file.
type Store struct {
	conn   *sql.DB
	logger *slog.Logger
	dbPath string
}

// OpenStore opens or creates the history database at dbPath.
func OpenStore(dbPath string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	dbExists := fileExists(dbPath)

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	store := &Store{conn: conn, logger: logger, dbPath: dbPath}

	if !dbExists {
		logger.Info("Creating history database", "path", dbPath)
	}
	if err := store.initializeSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	return store, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (s *Store) initializeSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT,
			status TEXT NOT NULL,
			input_path TEXT NOT NULL,
			output_path TEXT,
			snapshot TEXT,
			citations INTEGER NOT NULL DEFAULT 0,
			entries INTEGER NOT NULL DEFAULT 0,
			matched INTEGER NOT NULL DEFAULT 0,
			missing_keys TEXT,
			orphan_keys TEXT,
			input_digest TEXT,
			output_digest TEXT,
			error_code TEXT,
			error TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
		CREATE INDEX IF NOT EXISTS idx_runs_input ON runs(input_path);

		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);
		INSERT OR REPLACE INTO schema_version (version) VALUES (1);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Record inserts run, or replaces the row with the same ID.
func (s *Store) Record(run *Run) error {
	missing, err := encodeKeys(run.MissingKeys)
	if err != nil {
		return err
	}
	orphans, err := encodeKeys(run.OrphanKeys)
	if err != nil {
		return err
	}

	_, err = s.conn.Exec(`
		INSERT OR REPLACE INTO runs (
			id, started_at, finished_at, status, input_path, output_path, snapshot,
			citations, entries, matched, missing_keys, orphan_keys,
			input_digest, output_digest, error_code, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.UTC().Format(timeLayout),
		nullTime(run.FinishedAt),
		string(run.Status),
		run.InputPath,
		nullString(run.OutputPath),
		nullString(run.Snapshot),
		run.Citations,
		run.Entries,
		run.Matched,
		missing,
		orphans,
		nullString(run.InputDigest),
		nullString(run.OutputDigest),
		nullString(run.ErrorCode),
		nullString(run.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	s.logger.Debug("Recorded run", "runId", run.ID, "status", run.Status)
	return nil
}

const selectRuns = `
	SELECT id, started_at, finished_at, status, input_path, output_path, snapshot,
		citations, entries, matched, missing_keys, orphan_keys,
		input_digest, output_digest, error_code, error
	FROM runs`

// ErrAmbiguousID is returned by Get when a prefix matches several runs.
var ErrAmbiguousID = errors.New("run ID prefix matches more than one run")

// Get returns the run whose ID is id or starts with id, or nil when there
// is none.
func (s *Store) Get(id string) (*Run, error) {
	if id == "" {
		return nil, nil
	}
	run, err := scanRun(s.conn.QueryRow(selectRuns+` WHERE id = ?`, id))
	if err == nil {
		return run, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	rows, err := s.conn.Query(selectRuns+` WHERE substr(id, 1, ?) = ? LIMIT 2`, len(id), id)
	if err != nil {
		return nil, fmt.Errorf("failed to look up run %s: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	var found []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousID, id)
	}
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.conn.Query(selectRuns+` ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// Prune deletes all but the newest keep runs and returns how many went.
func (s *Store) Prune(keep int) (int64, error) {
	result, err := s.conn.Exec(`
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var status, startedAt string
	var finishedAt, output, snapshot, missing, orphans, inDigest, outDigest, code, errMsg sql.NullString

	err := row.Scan(
		&run.ID, &startedAt, &finishedAt, &status, &run.InputPath, &output, &snapshot,
		&run.Citations, &run.Entries, &run.Matched, &missing, &orphans,
		&inDigest, &outDigest, &code, &errMsg,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Status = Status(status)
	run.OutputPath = output.String
	run.Snapshot = snapshot.String
	run.InputDigest = inDigest.String
	run.OutputDigest = outDigest.String
	run.ErrorCode = code.String
	run.Error = errMsg.String

	if t, err := time.Parse(timeLayout, startedAt); err == nil {
		run.StartedAt = t
	}
	if finishedAt.Valid {
		if t, err := time.Parse(timeLayout, finishedAt.String); err == nil {
			run.FinishedAt = &t
		}
	}
	if run.MissingKeys, err = decodeKeys(missing); err != nil {
		return nil, err
	}
	if run.OrphanKeys, err = decodeKeys(orphans); err != nil {
		return nil, err
	}
	return &run, nil
}

func encodeKeys(keys []string) (sql.NullString, error) {
	if len(keys) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(keys)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode keys: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeKeys(s sql.NullString) ([]string, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var keys []string
	if err := json.Unmarshal([]byte(s.String), &keys); err != nil {
		return nil, fmt.Errorf("failed to decode keys: %w", err)
	}
	return keys, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}
