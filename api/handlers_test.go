/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Worker and record CRUD through the router
- Recompute after every change (metrics reflect stored records)
- Viewport notification, free-slot and context queries
- Error mapping (400 / 404 / 409)
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/workload-engine/generic"
	"github.com/warp/workload-engine/store/sqlite"
	"github.com/warp/workload-engine/workload"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	monday = time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	// Friday before the horizon week, so the horizon lies in the future.
	testNow = time.Date(2025, time.March, 7, 12, 0, 0, 0, time.UTC)
)

type testEnv struct {
	router http.Handler
	store  *sqlite.Store
	orch   *workload.Orchestrator
	inst   *workload.Instrumentation
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	inst := workload.NewInstrumentation()
	orch := workload.NewOrchestrator(workload.OrchestratorConfig{
		Horizon:         generic.Window{Start: monday, End: monday.AddDate(0, 0, 7).Add(-time.Nanosecond)},
		Clock:           func() time.Time { return testNow },
		Instrumentation: inst,
	})

	h := NewHandler(store, orch, zap.NewNop())
	env := &testEnv{
		router: NewRouter(h, RouterOptions{Metrics: inst.Handler()}),
		store:  store,
		orch:   orch,
		inst:   inst,
	}

	env.mustDo(t, http.MethodPost, "/api/workers", `{"id": "w-1", "display_name": "Ada"}`, http.StatusCreated)
	env.mustDo(t, http.MethodPost, "/api/workers", `{"id": "w-2", "display_name": "Brook"}`, http.StatusCreated)
	return env
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) mustDo(t *testing.T, method, path, body string, status int) *httptest.ResponseRecorder {
	t.Helper()
	rec := e.do(method, path, body)
	require.Equal(t, status, rec.Code, "%s %s: %s", method, path, rec.Body.String())
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// WORKER TESTS
// =============================================================================

func TestWorkers_CreateListGet(t *testing.T) {
	env := newTestEnv(t)

	workers := decode[[]WorkerDTO](t, env.mustDo(t, http.MethodGet, "/api/workers", "", http.StatusOK))
	assert.Equal(t, []WorkerDTO{{ID: "w-1", DisplayName: "Ada"}, {ID: "w-2", DisplayName: "Brook"}}, workers)

	detail := decode[WorkerDetailDTO](t, env.mustDo(t, http.MethodGet, "/api/workers/w-1", "", http.StatusOK))
	assert.Equal(t, "Ada", detail.DisplayName)
	require.NotNil(t, detail.Metrics, "workers join the roster as soon as they are created")
	assert.Equal(t, 0.0, detail.Metrics.TotalHours)

	env.mustDo(t, http.MethodGet, "/api/workers/ghost", "", http.StatusNotFound)
	env.mustDo(t, http.MethodPost, "/api/workers", `{"id": "w-3"}`, http.StatusBadRequest)
	env.mustDo(t, http.MethodPost, "/api/workers", `not json`, http.StatusBadRequest)
}

func TestDeleteWorker_LeavesRoster(t *testing.T) {
	env := newTestEnv(t)
	env.mustDo(t, http.MethodPost, "/api/records",
		`{"worker_id": "w-2", "start": "2025-03-10T07:00", "duration": "2 hours", "category": "repair"}`, http.StatusCreated)

	env.mustDo(t, http.MethodDelete, "/api/workers/w-2", "", http.StatusNoContent)

	env.mustDo(t, http.MethodGet, "/api/metrics/w-2", "", http.StatusNotFound)
	records := decode[[]RecordDTO](t, env.mustDo(t, http.MethodGet, "/api/records", "", http.StatusOK))
	assert.Empty(t, records)
	env.mustDo(t, http.MethodDelete, "/api/workers/w-2", "", http.StatusNotFound)
}

// =============================================================================
// RECORD TESTS
// =============================================================================

func TestCreateRecords_SingleObjectRecomputesRoster(t *testing.T) {
	// GIVEN: An empty roster for the week
	env := newTestEnv(t)

	// WHEN: A 4-hour installation is posted without an ID
	rec := env.mustDo(t, http.MethodPost, "/api/records",
		`{"worker_id": "w-1", "start": "2025-03-10T07:00:00Z", "duration": "4 hours", "category": "installation"}`,
		http.StatusCreated)

	// THEN: The record is stored with a generated ID and the roster is recomputed
	created := decode[CreateRecordsResponse](t, rec)
	require.Len(t, created.Records, 1)
	assert.NotEmpty(t, created.Records[0].ID)
	assert.Equal(t, "2025-03-10T07:00:00Z", created.Records[0].Start)

	m := decode[workload.WorkerMetrics](t, env.mustDo(t, http.MethodGet, "/api/metrics/w-1", "", http.StatusOK))
	assert.Equal(t, 4.0, m.TotalHours)
	assert.Equal(t, 8.0, m.UtilizationPercent) // 4 of 50 business hours
	assert.Equal(t, workload.CategoryInstallation, m.TopCategory)
	assert.Equal(t, generic.ContextFuture, m.TemporalContext)
	require.NotNil(t, m.NextFreeSlot)
	assert.Equal(t, monday.Add(11*time.Hour), m.NextFreeSlot.UTC())
}

func TestCreateRecords_BatchIsAllOrNothing(t *testing.T) {
	env := newTestEnv(t)

	rec := env.mustDo(t, http.MethodPost, "/api/records", `[
		{"id": "ok", "worker_id": "w-1", "start": "2025-03-10T07:00", "duration": "1 hour", "category": "repair"},
		{"id": "bad-1", "worker_id": "w-1", "start": "2025-03-10T07:00", "duration": "soon", "category": "repair"},
		{"id": "bad-2", "worker_id": "w-1", "start": "2025-03-10T07:00", "duration": "1 hour", "category": "lunch"}
	]`, http.StatusBadRequest)

	resp := decode[ErrorResponse](t, rec)
	details, ok := resp.Details.([]any)
	require.True(t, ok, "details: %#v", resp.Details)
	assert.Len(t, details, 2)

	records := decode[[]RecordDTO](t, env.mustDo(t, http.MethodGet, "/api/records", "", http.StatusOK))
	assert.Empty(t, records)
}

func TestCreateRecords_Conflicts(t *testing.T) {
	env := newTestEnv(t)
	body := `{"id": "wo-1", "worker_id": "w-1", "start": "2025-03-10", "duration": "1 day", "category": "sick"}`

	env.mustDo(t, http.MethodPost, "/api/records", body, http.StatusCreated)
	env.mustDo(t, http.MethodPost, "/api/records", body, http.StatusConflict)

	env.mustDo(t, http.MethodPost, "/api/records",
		`{"worker_id": "ghost", "start": "2025-03-10", "duration": "1 day", "category": "sick"}`, http.StatusBadRequest)
	env.mustDo(t, http.MethodPost, "/api/records", `[]`, http.StatusBadRequest)
}

func TestListAndDeleteRecords(t *testing.T) {
	env := newTestEnv(t)
	env.mustDo(t, http.MethodPost, "/api/records", `[
		{"id": "a", "worker_id": "w-1", "start": "2025-03-11T07:00", "duration": "1 hour", "category": "repair"},
		{"id": "b", "worker_id": "w-2", "start": "2025-03-10T07:00", "duration": "1 hour", "category": "repair"}
	]`, http.StatusCreated)

	all := decode[[]RecordDTO](t, env.mustDo(t, http.MethodGet, "/api/records", "", http.StatusOK))
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].ID, "ordered by start")

	mine := decode[[]RecordDTO](t, env.mustDo(t, http.MethodGet, "/api/records?worker_id=w-1", "", http.StatusOK))
	require.Len(t, mine, 1)
	assert.Equal(t, "a", mine[0].ID)

	env.mustDo(t, http.MethodDelete, "/api/records/a", "", http.StatusNoContent)
	env.mustDo(t, http.MethodDelete, "/api/records/a", "", http.StatusNotFound)

	m := decode[workload.WorkerMetrics](t, env.mustDo(t, http.MethodGet, "/api/metrics/w-1", "", http.StatusOK))
	assert.Equal(t, 0.0, m.TotalHours)
}

// =============================================================================
// ANALYTICS TESTS
// =============================================================================

func TestSetViewport_PublishesRoster(t *testing.T) {
	env := newTestEnv(t)
	env.mustDo(t, http.MethodPost, "/api/records",
		`{"worker_id": "w-1", "start": "2025-03-11T07:00", "duration": "12 hours", "category": "emergency"}`, http.StatusCreated)

	roster := decode[workload.Roster](t, env.mustDo(t, http.MethodPut, "/api/viewport",
		`{"start": "2025-03-11T00:00:00Z", "end": "2025-03-11T23:00:00Z"}`, http.StatusOK))

	assert.Equal(t, generic.ZoomDay, roster.Zoom)
	assert.Equal(t, generic.ContextFuture, roster.Context)
	w1 := roster.Workers["w-1"]
	assert.Equal(t, 120.0, w1.ViewportUtilizationPercent)
	assert.True(t, w1.IsOverloaded)
	assert.False(t, roster.Workers["w-2"].IsOverloaded)

	snapshot := decode[workload.Roster](t, env.mustDo(t, http.MethodGet, "/api/metrics", "", http.StatusOK))
	assert.Equal(t, roster.Version, snapshot.Version)
}

func TestSetViewport_Invalid(t *testing.T) {
	env := newTestEnv(t)

	env.mustDo(t, http.MethodPut, "/api/viewport", `{"start": "2025-03-12T00:00:00Z", "end": "2025-03-11T00:00:00Z"}`, http.StatusBadRequest)
	env.mustDo(t, http.MethodPut, "/api/viewport", `{"start": "2025-03-12T00:00:00Z"}`, http.StatusBadRequest)
	env.mustDo(t, http.MethodPut, "/api/viewport", `{`, http.StatusBadRequest)
}

func TestGetFreeSlot(t *testing.T) {
	env := newTestEnv(t)
	env.mustDo(t, http.MethodPost, "/api/records",
		`{"worker_id": "w-1", "start": "2025-03-10T07:00", "duration": "4 hours", "category": "repair"}`, http.StatusCreated)

	// Defaults to the viewport (the horizon week) and the 2h minimum.
	slot := decode[FreeSlotResponse](t, env.mustDo(t, http.MethodGet, "/api/workers/w-1/free-slot", "", http.StatusOK))
	require.NotNil(t, slot.Slot)
	assert.Equal(t, monday.Add(11*time.Hour), slot.Slot.UTC())
	assert.Equal(t, "2h0m0s", slot.MinDuration)

	// A 7-hour job no longer fits on Monday.
	slot = decode[FreeSlotResponse](t, env.mustDo(t, http.MethodGet, "/api/workers/w-1/free-slot?min=7%20hours", "", http.StatusOK))
	require.NotNil(t, slot.Slot)
	assert.Equal(t, monday.AddDate(0, 0, 1).Add(7*time.Hour), slot.Slot.UTC())

	// Nothing fits in a one-hour window.
	slot = decode[FreeSlotResponse](t, env.mustDo(t, http.MethodGet,
		"/api/workers/w-1/free-slot?from=2025-03-10T11:00:00Z&to=2025-03-10T12:00:00Z", "", http.StatusOK))
	assert.Nil(t, slot.Slot)

	env.mustDo(t, http.MethodGet, "/api/workers/w-1/free-slot?min=forever", "", http.StatusBadRequest)
	env.mustDo(t, http.MethodGet, "/api/workers/w-1/free-slot?from=2025-03-12&to=2025-03-11", "", http.StatusBadRequest)
	env.mustDo(t, http.MethodGet, "/api/workers/ghost/free-slot", "", http.StatusNotFound)
}

func TestGetContext(t *testing.T) {
	env := newTestEnv(t)

	ctx := decode[ContextResponse](t, env.mustDo(t, http.MethodGet,
		"/api/context?start=2025-03-03&end=2025-03-04T17:00", "", http.StatusOK))

	assert.Equal(t, generic.ContextPast, ctx.Context)
	assert.Equal(t, generic.ZoomDay, ctx.Zoom)
	assert.Equal(t, 2, ctx.SpanDays)
	assert.Equal(t, 20.0, ctx.BusinessHours)

	ctx = decode[ContextResponse](t, env.mustDo(t, http.MethodGet,
		"/api/context?start=2025-03-01&end=2025-06-30", "", http.StatusOK))
	assert.Equal(t, generic.ContextMixed, ctx.Context)
	assert.Equal(t, generic.ZoomMonth, ctx.Zoom)

	env.mustDo(t, http.MethodGet, "/api/context?start=2025-03-01", "", http.StatusBadRequest)
	env.mustDo(t, http.MethodGet, "/api/context?start=yesterday&end=2025-03-01", "", http.StatusBadRequest)
}

// =============================================================================
// OPERATIONAL TESTS
// =============================================================================

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	health := decode[HealthResponse](t, env.mustDo(t, http.MethodGet, "/healthz", "", http.StatusOK))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 2, health.Workers)
	assert.Equal(t, uint64(2), health.Version)

	rec := env.mustDo(t, http.MethodGet, "/metrics", "", http.StatusOK)
	assert.Contains(t, rec.Body.String(), `roster_recomputes_total{trigger="records"} 2`)
}

func TestRefreshScheduler_RunNowReloadsFromStore(t *testing.T) {
	// GIVEN: A record written straight to the store, bypassing the API
	env := newTestEnv(t)
	h := NewHandler(env.store, env.orch, zap.NewNop())
	require.NoError(t, env.store.SaveRecords(context.Background(), []workload.WorkRecord{{
		ID: "direct", WorkerID: "w-1", Start: monday.Add(8 * time.Hour), Duration: "3 hours", Category: workload.CategoryMaintenance,
	}}))
	before := env.orch.Snapshot().Version

	// WHEN: The refresher runs
	rs := NewRefreshScheduler(h)
	rs.RunNow()

	// THEN: The roster picks up the record
	after := env.orch.Snapshot()
	assert.Equal(t, before+1, after.Version)
	m, ok := after.Metrics("w-1")
	require.True(t, ok)
	assert.Equal(t, 3.0, m.TotalHours)
	assert.WithinDuration(t, time.Now().Add(rs.Interval), rs.GetNextRunTime(), time.Minute)
}

func TestRefreshScheduler_DisabledDoesNotStart(t *testing.T) {
	env := newTestEnv(t)
	rs := NewRefreshScheduler(NewHandler(env.store, env.orch, zap.NewNop()))
	rs.Enabled = false

	rs.Start()
	rs.Stop()

	assert.Nil(t, rs.ticker)
}

func TestRefreshScheduler_StartStop(t *testing.T) {
	env := newTestEnv(t)
	rs := NewRefreshScheduler(NewHandler(env.store, env.orch, zap.NewNop()))
	rs.Interval = time.Hour

	rs.Start()
	rs.Start() // second start is a no-op
	rs.Stop()
	rs.Stop()

	assert.Nil(t, rs.ticker)
}

func TestRefreshScheduler_RollsHorizonForward(t *testing.T) {
	// GIVEN: A rolling horizon that now resolves to the following week
	env := newTestEnv(t)
	next := generic.Window{Start: monday.AddDate(0, 0, 7), End: monday.AddDate(0, 0, 14).Add(-time.Nanosecond)}
	rs := NewRefreshScheduler(NewHandler(env.store, env.orch, zap.NewNop()))
	var asked time.Time
	rs.Horizon = func(now time.Time) generic.Window {
		asked = now
		return next
	}

	// WHEN: The refresher runs
	rs.RunNow()

	// THEN: The roster is recomputed over the new horizon
	assert.Equal(t, testNow, asked)
	snap := env.orch.Snapshot()
	assert.True(t, next.Start.Equal(snap.Horizon.Start))
	assert.True(t, next.End.Equal(snap.Horizon.End))
	assert.True(t, next.Start.Equal(snap.Viewport.Start), "viewport follows the horizon until one is set")

	// AND: An unchanged horizon is left alone
	version := snap.Version
	rs.RunNow()
	assert.Equal(t, version+1, env.orch.Snapshot().Version, "only the reload recomputes")
}
