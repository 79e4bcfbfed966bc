package runlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ObiAU/pinyinfeed/internal/models"
)

// Store keeps a history of refresh runs in SQLite.
type Store struct {
	readDB  *sql.DB
	writeDB *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating run log dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}

	s := &Store{readDB: readDB, writeDB: writeDB}
	if err := s.init(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			trigger     TEXT NOT NULL,
			started_at  DATETIME NOT NULL,
			finished_at DATETIME NOT NULL,
			processed   INTEGER NOT NULL DEFAULT 0,
			skipped     INTEGER NOT NULL DEFAULT 0,
			failed      INTEGER NOT NULL DEFAULT 0,
			deleted     INTEGER NOT NULL DEFAULT 0,
			total       INTEGER NOT NULL DEFAULT 0,
			errors      TEXT NOT NULL DEFAULT '[]'
		);
		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	var errs []error
	if s.readDB != nil {
		errs = append(errs, s.readDB.Close())
	}
	if s.writeDB != nil {
		errs = append(errs, s.writeDB.Close())
	}
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

func (s *Store) Record(r models.RefreshReport) error {
	errs := r.Errors
	if errs == nil {
		errs = []string{}
	}
	encoded, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("encoding errors: %w", err)
	}

	_, err = s.writeDB.Exec(`
		INSERT INTO runs (id, trigger, started_at, finished_at, processed, skipped, failed, deleted, total, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, r.RunID, r.Trigger, r.StartedAt.UTC(), r.FinishedAt.UTC(),
		r.Processed, r.Skipped, r.Failed, r.Deleted, r.Total, string(encoded))
	if err != nil {
		return fmt.Errorf("recording run %s: %w", r.RunID, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(limit int) ([]models.RefreshReport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.readDB.Query(`
		SELECT id, trigger, started_at, finished_at, processed, skipped, failed, deleted, total, errors
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RefreshReport
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Last returns the most recent run, or nil when nothing has been recorded.
func (s *Store) Last() (*models.RefreshReport, error) {
	runs, err := s.Recent(1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// Prune removes runs that started before the cutoff.
func (s *Store) Prune(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UTC()
	res, err := s.writeDB.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning runs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (models.RefreshReport, error) {
	var (
		r       models.RefreshReport
		encoded string
	)
	if err := row.Scan(&r.RunID, &r.Trigger, &r.StartedAt, &r.FinishedAt,
		&r.Processed, &r.Skipped, &r.Failed, &r.Deleted, &r.Total, &encoded); err != nil {
		return r, fmt.Errorf("scanning run: %w", err)
	}
	if err := json.Unmarshal([]byte(encoded), &r.Errors); err != nil {
		return r, fmt.Errorf("decoding run errors: %w", err)
	}
	return r, nil
}
