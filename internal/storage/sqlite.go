package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Storage keeps the history of mirror runs
type Storage struct {
	db *sql.DB
}

// NewStorage creates a new Storage instance, opening/creating the DB and initializing schema
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storage := &Storage{db: db}

	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// initSchema creates tables and indices if they don't exist
func (s *Storage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		pages_fetched INTEGER DEFAULT 0,
		pages_failed INTEGER DEFAULT 0,
		pages_written INTEGER DEFAULT 0,
		pages_unchanged INTEGER DEFAULT 0,
		pages_skipped INTEGER DEFAULT 0,
		assets_downloaded INTEGER DEFAULT 0,
		assets_skipped INTEGER DEFAULT 0,
		assets_failed INTEGER DEFAULT 0,
		links_discovered INTEGER DEFAULT 0,
		termination_reason TEXT DEFAULT '',
		sync_status TEXT DEFAULT '',
		commit_hash TEXT DEFAULT '',
		error TEXT DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS pages (
		page_id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		url TEXT NOT NULL,
		path TEXT DEFAULT '',
		outcome TEXT NOT NULL,
		error TEXT DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (run_id) REFERENCES runs(run_id)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_pages_run ON pages(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// StartRun inserts the record of a run that has just begun
func (s *Storage) StartRun(runID string, startedAt time.Time) error {
	_, err := s.db.Exec("INSERT INTO runs (run_id, started_at) VALUES (?, ?)", runID, startedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	return nil
}

// FinishRun stores the final counters and sync result of a run
func (s *Storage) FinishRun(run Run) error {
	m := run.Metrics
	res, err := s.db.Exec(`
		UPDATE runs SET
			finished_at = ?,
			pages_fetched = ?, pages_failed = ?, pages_written = ?, pages_unchanged = ?, pages_skipped = ?,
			assets_downloaded = ?, assets_skipped = ?, assets_failed = ?,
			links_discovered = ?, termination_reason = ?,
			sync_status = ?, commit_hash = ?, error = ?
		WHERE run_id = ?
	`, run.FinishedAt.UTC(),
		m.PagesFetched, m.PagesFailed, m.PagesWritten, m.PagesUnchanged, m.PagesSkipped,
		m.AssetsDownloaded, m.AssetsSkipped, m.AssetsFailed,
		m.LinksDiscovered, m.TerminationReason,
		run.SyncStatus, run.CommitHash, run.Error,
		run.RunID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("failed to finish run: unknown run %s", run.RunID)
	}
	return nil
}

// RecordPage appends the outcome of one page to a run
func (s *Storage) RecordPage(rec PageRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO pages (run_id, url, path, outcome, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.RunID, rec.URL, rec.Path, rec.Outcome, rec.Error, createdAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record page: %w", err)
	}
	return nil
}

// LastRuns returns up to limit runs, newest first
func (s *Storage) LastRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT run_id, started_at, finished_at,
			pages_fetched, pages_failed, pages_written, pages_unchanged, pages_skipped,
			assets_downloaded, assets_skipped, assets_failed,
			links_discovered, termination_reason,
			sync_status, commit_hash, error
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var finished sql.NullTime
		m := &run.Metrics
		if err := rows.Scan(&run.RunID, &run.StartedAt, &finished,
			&m.PagesFetched, &m.PagesFailed, &m.PagesWritten, &m.PagesUnchanged, &m.PagesSkipped,
			&m.AssetsDownloaded, &m.AssetsSkipped, &m.AssetsFailed,
			&m.LinksDiscovered, &m.TerminationReason,
			&run.SyncStatus, &run.CommitHash, &run.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if finished.Valid {
			run.FinishedAt = finished.Time
		}
		m.StartTime = run.StartedAt
		m.EndTime = run.FinishedAt
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// PagesForRun returns the page outcomes recorded for a run in insertion order
func (s *Storage) PagesForRun(runID string) ([]PageRecord, error) {
	rows, err := s.db.Query(`
		SELECT run_id, url, path, outcome, error, created_at
		FROM pages
		WHERE run_id = ?
		ORDER BY page_id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pages: %w", err)
	}
	defer rows.Close()

	var pages []PageRecord
	for rows.Next() {
		var rec PageRecord
		if err := rows.Scan(&rec.RunID, &rec.URL, &rec.Path, &rec.Outcome, &rec.Error, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pages: %w", err)
	}
	return pages, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}
