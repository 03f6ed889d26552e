/*
Package sqlite provides a SQLite-backed implementation of workload.Store.

PURPOSE:
  Persists the roster data source (workers and their work records) so the
  server can reload the orchestrator after a restart. The engine itself is
  stateless; this package is the only place records outlive a process.

KEY TABLES:
  workers:       Roster rows
  work_records:  Work orders and absences, one row per record

INDEXES:
  - idx_records_worker_start: Per-worker listing (free-slot endpoint)
  - idx_records_start:        Full listing ordered by start (reload path)

INTEGRITY:
  - work_records.worker_id references workers(id) ON DELETE CASCADE
  - work_records.id is the primary key; a repeated ID is ErrDuplicateRecord
  - SaveRecords runs in one SQL transaction (all-or-nothing)

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of SQLite's own locking.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/workload.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  roster, err := orchestrator.LoadFrom(ctx, store)

SEE ALSO:
  - workload/store.go: Interface definition
  - store/memory/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/workload-engine/generic"
	"github.com/warp/workload-engine/workload"
)

// startLayout is fixed-width so that start_at sorts lexically.
const startLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements workload.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ workload.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each :memory: connection is its own database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection (used by the health endpoint).
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS workers (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS work_records (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL REFERENCES workers(id) ON DELETE CASCADE,
		start_at TEXT NOT NULL,
		duration TEXT NOT NULL,
		category TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_worker_start
		ON work_records(worker_id, start_at);
	CREATE INDEX IF NOT EXISTS idx_records_start
		ON work_records(start_at, id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// WORKERS
// =============================================================================

// SaveWorker inserts a worker or renames an existing one.
func (s *Store) SaveWorker(ctx context.Context, w workload.Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO workers (id, display_name, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name
	`

	_, err := s.db.ExecContext(ctx, query,
		string(w.ID), w.DisplayName,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save worker: %w", err)
	}
	return nil
}

// GetWorker retrieves a worker by ID.
func (s *Store) GetWorker(ctx context.Context, id workload.WorkerID) (*workload.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var w workload.Worker
	var wid string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, display_name FROM workers WHERE id = ?",
		string(id),
	).Scan(&wid, &w.DisplayName)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, generic.ErrWorkerNotFound
	}
	if err != nil {
		return nil, err
	}
	w.ID = workload.WorkerID(wid)
	return &w, nil
}

// ListWorkers returns all workers ordered by display name.
func (s *Store) ListWorkers(ctx context.Context) ([]workload.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, display_name FROM workers ORDER BY display_name, id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	workers := []workload.Worker{}
	for rows.Next() {
		var w workload.Worker
		var wid string
		if err := rows.Scan(&wid, &w.DisplayName); err != nil {
			return nil, err
		}
		w.ID = workload.WorkerID(wid)
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

// DeleteWorker removes a worker; its records go with it.
func (s *Store) DeleteWorker(ctx context.Context, id workload.WorkerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM workers WHERE id = ?", string(id))
	if err != nil {
		return fmt.Errorf("failed to delete worker: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.ErrWorkerNotFound
	}
	return nil
}

// =============================================================================
// WORK RECORDS
// =============================================================================

// SaveRecords adds records atomically.
func (s *Store) SaveRecords(ctx context.Context, records []workload.WorkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check for duplicate IDs within the batch first
	ids := make(map[string]bool, len(records))
	for _, r := range records {
		if ids[r.ID] {
			return generic.ErrDuplicateRecord
		}
		ids[r.ID] = true
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO work_records (id, worker_id, start_at, duration, category, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range records {
		_, err := stmt.ExecContext(ctx,
			r.ID,
			string(r.WorkerID),
			r.Start.UTC().Format(startLayout),
			r.Duration,
			string(r.Category),
			now,
		)
		if err != nil {
			return translateConstraint(err)
		}
	}

	return tx.Commit()
}

// ListRecords returns every record ordered by start.
func (s *Store) ListRecords(ctx context.Context) ([]workload.WorkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryRecords(ctx, `
		SELECT id, worker_id, start_at, duration, category
		FROM work_records
		ORDER BY start_at, id
	`)
}

// ListRecordsByWorker returns one worker's records ordered by start.
func (s *Store) ListRecordsByWorker(ctx context.Context, id workload.WorkerID) ([]workload.WorkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryRecords(ctx, `
		SELECT id, worker_id, start_at, duration, category
		FROM work_records
		WHERE worker_id = ?
		ORDER BY start_at, id
	`, string(id))
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]workload.WorkRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []workload.WorkRecord{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func scanRecord(rows *sql.Rows) (workload.WorkRecord, error) {
	var r workload.WorkRecord
	var workerID, startAt, category string
	if err := rows.Scan(&r.ID, &workerID, &startAt, &r.Duration, &category); err != nil {
		return r, err
	}

	start, err := time.Parse(startLayout, startAt)
	if err != nil {
		return r, fmt.Errorf("record %s: %w", r.ID, generic.ErrInvalidTime)
	}
	r.WorkerID = workload.WorkerID(workerID)
	r.Start = start
	r.Category = workload.Category(category)
	return r, nil
}

// DeleteRecord removes one record.
func (s *Store) DeleteRecord(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM work_records WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return generic.ErrRecordNotFound
	}
	return nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"work_records", "workers"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// translateConstraint maps SQLite constraint failures to domain errors.
func translateConstraint(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintUnique:
			return generic.ErrDuplicateRecord
		case sqlite3.ErrConstraintForeignKey:
			return generic.ErrWorkerNotFound
		}
	}
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return generic.ErrDuplicateRecord
	}
	return fmt.Errorf("failed to save record: %w", err)
}
