package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yourorg/specsync/pkg/types"
)

type SQLiteStore struct {
	db *sql.DB
	// mu serializes run id allocation with the insert that uses it.
	mu sync.Mutex
}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", withBusyTimeout(dsn))
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.Init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func withBusyTimeout(dsn string) string {
	if strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)"
}

func (s *SQLiteStore) Init() error {
	if _, err := s.db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return err
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			target TEXT NOT NULL,
			existing_path TEXT NOT NULL,
			output_path TEXT NOT NULL,
			input_hash TEXT NOT NULL,
			output_hash TEXT NOT NULL,
			status TEXT NOT NULL,
			error_msg TEXT NOT NULL,
			paths_added INTEGER NOT NULL DEFAULT 0,
			paths_removed INTEGER NOT NULL DEFAULT 0,
			extensions_preserved INTEGER NOT NULL DEFAULT 0,
			bytes_written INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_output ON runs(output_path, created_at);`,
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

const runColumns = `id,target,existing_path,output_path,input_hash,output_hash,status,error_msg,paths_added,paths_removed,extensions_preserved,bytes_written,duration_ms,created_at`

// CreateRun assigns run an id and creation time when they are unset and
// stores it.
func (s *SQLiteStore) CreateRun(run *types.Run) error {
	if run == nil {
		return fmt.Errorf("%w: run is nil", ErrBadRequest)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.ID == "" {
		id, err := s.nextRunID(run.CreatedAt)
		if err != nil {
			return err
		}
		run.ID = id
	}
	_, err := s.db.Exec(`INSERT INTO runs(`+runColumns+`) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		run.ID, run.Target, run.ExistingPath, run.OutputPath, run.InputHash, run.OutputHash, run.Status, run.ErrorMsg,
		run.PathsAdded, run.PathsRemoved, run.ExtensionsPreserved, run.BytesWritten, run.Duration.Milliseconds(), run.CreatedAt)
	return err
}

func (s *SQLiteStore) nextRunID(now time.Time) (string, error) {
	prefix := fmt.Sprintf("run_%s_", now.Format("20060102"))
	rows, err := s.db.Query(`SELECT id FROM runs WHERE id LIKE ?`, prefix+"%")
	if err != nil {
		return "", err
	}
	defer rows.Close()
	maxN := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		var n int
		_, _ = fmt.Sscanf(id, prefix+"%04d", &n)
		if n > maxN {
			maxN = n
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, maxN+1), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*types.Run, error) {
	var out types.Run
	var durationMs int64
	if err := row.Scan(&out.ID, &out.Target, &out.ExistingPath, &out.OutputPath, &out.InputHash, &out.OutputHash, &out.Status, &out.ErrorMsg,
		&out.PathsAdded, &out.PathsRemoved, &out.ExtensionsPreserved, &out.BytesWritten, &durationMs, &out.CreatedAt); err != nil {
		return nil, err
	}
	out.Duration = time.Duration(durationMs) * time.Millisecond
	return &out, nil
}

func (s *SQLiteStore) GetRun(id string) (*types.Run, error) {
	run, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return run, err
}

// ListRuns returns the newest runs first. A limit of zero or less lists all.
func (s *SQLiteStore) ListRuns(limit int) ([]types.Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteRun(id string) error {
	res, err := s.db.Exec(`DELETE FROM runs WHERE id=?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) LastSuccessfulRun(outputPath string) (*types.Run, error) {
	run, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE output_path=? AND status IN (?,?) ORDER BY created_at DESC, id DESC LIMIT 1`,
		outputPath, types.RunOK, types.RunUnchanged))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no successful run for %s: %w", outputPath, ErrNotFound)
	}
	return run, err
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return errors.New("store is nil")
	}
	return s.db.Close()
}
