// Package memory provides an in-memory workload.Store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/workload-engine/generic"
	"github.com/warp/workload-engine/workload"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	workers map[workload.WorkerID]workload.Worker
	records []workload.WorkRecord // sorted by (Start, ID)
	ids     map[string]bool
}

var _ workload.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		workers: make(map[workload.WorkerID]workload.Worker),
		ids:     make(map[string]bool),
	}
}

// SaveWorker inserts or renames a worker.
func (m *Memory) SaveWorker(_ context.Context, w workload.Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workers[w.ID] = w
	return nil
}

func (m *Memory) GetWorker(_ context.Context, id workload.WorkerID) (*workload.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.workers[id]
	if !ok {
		return nil, generic.ErrWorkerNotFound
	}
	return &w, nil
}

func (m *Memory) ListWorkers(_ context.Context) ([]workload.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]workload.Worker, 0, len(m.workers))
	for _, w := range m.workers {
		result = append(result, w)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].DisplayName != result[j].DisplayName {
			return result[i].DisplayName < result[j].DisplayName
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// DeleteWorker removes a worker and all of its records.
func (m *Memory) DeleteWorker(_ context.Context, id workload.WorkerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.workers[id]; !ok {
		return generic.ErrWorkerNotFound
	}
	delete(m.workers, id)

	kept := m.records[:0]
	for _, r := range m.records {
		if r.WorkerID == id {
			delete(m.ids, r.ID)
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return nil
}

// SaveRecords adds records atomically.
func (m *Memory) SaveRecords(_ context.Context, records []workload.WorkRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check everything first (atomic check)
	batch := make(map[string]bool, len(records))
	for _, r := range records {
		if m.ids[r.ID] || batch[r.ID] {
			return generic.ErrDuplicateRecord
		}
		if _, ok := m.workers[r.WorkerID]; !ok {
			return generic.ErrWorkerNotFound
		}
		batch[r.ID] = true
	}

	// Insert all (atomic write)
	for _, r := range records {
		m.insertLocked(r)
	}
	return nil
}

func (m *Memory) insertLocked(r workload.WorkRecord) {
	i := sort.Search(len(m.records), func(i int) bool {
		other := m.records[i]
		if !other.Start.Equal(r.Start) {
			return other.Start.After(r.Start)
		}
		return other.ID > r.ID
	})

	m.records = append(m.records, workload.WorkRecord{})
	copy(m.records[i+1:], m.records[i:])
	m.records[i] = r
	m.ids[r.ID] = true
}

func (m *Memory) ListRecords(_ context.Context) ([]workload.WorkRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]workload.WorkRecord, len(m.records))
	copy(result, m.records)
	return result, nil
}

func (m *Memory) ListRecordsByWorker(_ context.Context, id workload.WorkerID) ([]workload.WorkRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return workload.RecordsFor(id, m.records), nil
}

func (m *Memory) DeleteRecord(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.ids[id] {
		return generic.ErrRecordNotFound
	}
	for i, r := range m.records {
		if r.ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			break
		}
	}
	delete(m.ids, id)
	return nil
}
