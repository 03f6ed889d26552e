package workload

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/workload-engine/generic"
)

type fakeRedis struct {
	sets      map[string][]byte
	ttls      map[string]time.Duration
	published map[string][]interface{}
	setErr    error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		sets:      map[string][]byte{},
		ttls:      map[string]time.Duration{},
		published: map[string][]interface{}{},
	}
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.sets[key] = value.([]byte)
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.published[channel] = append(f.published[channel], message)
	return redis.NewIntResult(1, nil)
}

func sampleRoster() *Roster {
	start := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	slot := start.Add(7 * time.Hour)
	return &Roster{
		Horizon:  generic.Window{Start: start, End: start.AddDate(0, 0, 6)},
		Viewport: generic.Window{Start: start, End: start.AddDate(0, 0, 6)},
		Zoom:     generic.ZoomDay,
		Context:  generic.ContextFuture,
		Version:  7,
		Workers: map[WorkerID]WorkerMetrics{
			"w-1": {
				WorkerID:             "w-1",
				TotalHours:           12,
				WorkTypeDistribution: WorkTypeDistribution{CategoryRepair: 100},
				TopCategory:          CategoryRepair,
				TemporalContext:      generic.ContextFuture,
				NextFreeSlot:         &slot,
				UpcomingAbsences:     []AbsencePeriod{},
			},
		},
	}
}

func TestRedisPublisher_WritesWholeRosterAndAnnouncesVersion(t *testing.T) {
	fake := newFakeRedis()
	p := NewRedisPublisher(fake, "roster:current", time.Hour)

	require.NoError(t, p.Publish(context.Background(), sampleRoster()))

	raw, ok := fake.sets["roster:current"]
	require.True(t, ok)
	assert.Equal(t, time.Hour, fake.ttls["roster:current"])
	assert.Equal(t, []interface{}{uint64(7)}, fake.published["roster:current:updates"])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "day", decoded["zoom"])
	assert.Equal(t, "future", decoded["context"])

	workers := decoded["workers"].(map[string]any)
	w1 := workers["w-1"].(map[string]any)
	assert.Equal(t, "repair", w1["top_category"])
	assert.Equal(t, "2025-03-10T07:00:00Z", w1["next_free_slot"])
}

func TestRedisPublisher_StoreFailure(t *testing.T) {
	fake := newFakeRedis()
	fake.setErr = errors.New("connection refused")
	p := NewRedisPublisher(fake, "roster:current", 0)

	err := p.Publish(context.Background(), sampleRoster())

	assert.ErrorContains(t, err, "failed to store roster")
	assert.Empty(t, fake.published)
}
