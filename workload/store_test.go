package workload_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workload-engine/store/memory"
	"github.com/warp/workload-engine/workload"
)

// slowStore snapshots the records on the first ListRecords call, then holds
// the result until released, like a query that was answered before a write
// but delivered after it.
type slowStore struct {
	*memory.Memory

	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *slowStore) ListRecords(ctx context.Context) ([]workload.WorkRecord, error) {
	records, err := s.Memory.ListRecords(ctx)
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		<-s.release
	}
	return records, err
}

func TestLoadFrom_SlowReadNeverOverwritesNewerRoster(t *testing.T) {
	// GIVEN: A background reload stuck on a read taken before any record exists
	ctx := context.Background()
	store := &slowStore{Memory: memory.NewMemory(), entered: make(chan struct{}), release: make(chan struct{})}
	for _, w := range roster {
		require.NoError(t, store.SaveWorker(ctx, w))
	}
	o := newOrchestrator(monday, workload.OrchestratorConfig{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := o.LoadFrom(ctx, store)
		assert.NoError(t, err)
	}()
	<-store.entered

	// WHEN: A record is written and its own reload starts before the stale one finishes
	require.NoError(t, store.SaveRecords(ctx, []workload.WorkRecord{
		rec("r-1", "w-1", hour(tuesday, 7, 0), "5 hours", workload.CategoryRepair),
	}))
	go func() {
		defer wg.Done()
		_, err := o.LoadFrom(ctx, store)
		assert.NoError(t, err)
	}()
	time.Sleep(20 * time.Millisecond)
	close(store.release)
	wg.Wait()

	// THEN: The published roster carries the written record
	m, ok := o.Snapshot().Metrics("w-1")
	require.True(t, ok)
	assert.Equal(t, 5.0, m.TotalHours)
	assert.Equal(t, uint64(2), o.Snapshot().Version)
}
