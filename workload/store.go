/*
store.go - Persistence interface for the roster data source

PURPOSE:
  The engine never owns records; it reads whatever the surrounding
  application hands it. Store is that application-side source: workers and
  their work records, persisted somewhere, reloaded into the orchestrator
  after every change.

CONTRACT:
  - SaveRecords is all-or-nothing: either every record is written or none
  - A record ID may be stored once; a repeat is ErrDuplicateRecord
  - Records must reference an existing worker (ErrWorkerNotFound)
  - Deleting a worker deletes its records
  - Lists are ordered: workers by display name, records by start then ID

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite, used by the server
  - store/memory/memory.go: In-memory for tests and demos

SEE ALSO:
  - orchestrator.go: LoadFrom pushes stored data into a recompute
*/
package workload

import (
	"context"
	"fmt"
)

// Store persists workers and work records.
type Store interface {
	SaveWorker(ctx context.Context, w Worker) error
	GetWorker(ctx context.Context, id WorkerID) (*Worker, error)
	ListWorkers(ctx context.Context) ([]Worker, error)
	DeleteWorker(ctx context.Context, id WorkerID) error

	SaveRecords(ctx context.Context, records []WorkRecord) error
	ListRecords(ctx context.Context) ([]WorkRecord, error)
	ListRecordsByWorker(ctx context.Context, id WorkerID) ([]WorkRecord, error)
	DeleteRecord(ctx context.Context, id string) error
}

// LoadFrom reads the full roster from s and recomputes. The previous roster
// stays published if reading fails. Concurrent calls run one at a time, read
// included, so a roster read before a store write never replaces one read
// after it.
func (o *Orchestrator) LoadFrom(ctx context.Context, s Store) (*Roster, error) {
	o.loadMu.Lock()
	defer o.loadMu.Unlock()

	workers, err := s.ListWorkers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load workers: %w", err)
	}
	records, err := s.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	return o.Load(ctx, workers, records), nil
}
