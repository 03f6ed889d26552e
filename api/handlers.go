/*
handlers.go - HTTP API handlers for the workload engine

PURPOSE:
  Exposes the roster analytics via REST. Handles HTTP request/response and
  JSON serialization, persists workers and records through the Store, and
  hands every change to the orchestrator, which recomputes and republishes
  the whole roster.

ENDPOINTS:
  Workers:
    GET    /api/workers                  List workers
    POST   /api/workers                  Create or rename a worker
    GET    /api/workers/{id}             Worker with current metrics
    DELETE /api/workers/{id}             Remove a worker and its records
    GET    /api/workers/{id}/free-slot   Ad-hoc free-slot search

  Records:
    GET    /api/records?worker_id=       List records
    POST   /api/records                  Add one record or a batch
    DELETE /api/records/{id}             Remove a record

  Analytics:
    PUT    /api/viewport                 Viewport-change notification
    GET    /api/metrics                  Current roster
    GET    /api/metrics/{workerID}       One worker's metrics
    GET    /api/context?start=&end=      Classify a window

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (factory for records, validator for the rest)
  3. Persist through the Store
  4. Reload the orchestrator from the Store (full recompute)
  5. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Worker or record not found
  - 409: Duplicate record ID
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/warp/workload-engine/factory"
	"github.com/warp/workload-engine/generic"
	"github.com/warp/workload-engine/workload"
)

const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store        workload.Store
	Orchestrator *workload.Orchestrator
	Factory      *factory.RecordFactory
	Logger       *zap.Logger

	validate *validator.Validate
}

// NewHandler creates a new handler. Record start times without a zone are
// read in the orchestrator's calendar.
func NewHandler(store workload.Store, orch *workload.Orchestrator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:        store,
		Orchestrator: orch,
		Factory:      factory.NewRecordFactory(orch.Calendar()),
		Logger:       logger,
		validate:     validator.New(),
	}
}

// Reload pushes the stored workers and records into the orchestrator.
func (h *Handler) Reload(ctx context.Context) (*workload.Roster, error) {
	roster, err := h.Orchestrator.LoadFrom(ctx, h.Store)
	if err != nil {
		h.Logger.Error("roster reload failed", zap.Error(err))
		return nil, err
	}
	return roster, nil
}

// =============================================================================
// WORKER HANDLERS
// =============================================================================

// ListWorkers returns all workers.
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.Store.ListWorkers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list workers", err)
		return
	}

	dtos := make([]WorkerDTO, len(workers))
	for i, wk := range workers {
		dtos[i] = toWorkerDTO(wk)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetWorker returns a worker with its metrics from the current roster.
func (h *Handler) GetWorker(w http.ResponseWriter, r *http.Request) {
	id := workload.WorkerID(chi.URLParam(r, "id"))

	wk, err := h.Store.GetWorker(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get worker", err)
		return
	}

	resp := WorkerDetailDTO{WorkerDTO: toWorkerDTO(*wk)}
	if m, ok := h.Orchestrator.Snapshot().Metrics(id); ok {
		resp.Metrics = &m
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateWorker adds a worker, or renames one with the same ID.
func (h *Handler) CreateWorker(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	wk, err := h.Factory.WorkerFromJSON(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid worker", err)
		return
	}

	if err := h.Store.SaveWorker(r.Context(), wk); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save worker", err)
		return
	}
	if _, err := h.Reload(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to recompute roster", err)
		return
	}

	writeJSON(w, http.StatusCreated, toWorkerDTO(wk))
}

// DeleteWorker removes a worker together with its records.
func (h *Handler) DeleteWorker(w http.ResponseWriter, r *http.Request) {
	id := workload.WorkerID(chi.URLParam(r, "id"))

	if err := h.Store.DeleteWorker(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete worker", err)
		return
	}
	if _, err := h.Reload(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to recompute roster", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetFreeSlot runs the free-slot locator for one worker. from and to default
// to the current viewport; min accepts "90m" or "2 hours" and defaults to the
// configured minimum.
func (h *Handler) GetFreeSlot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := workload.WorkerID(chi.URLParam(r, "id"))

	if _, err := h.Store.GetWorker(ctx, id); err != nil {
		writeDomainError(w, "Failed to get worker", err)
		return
	}

	viewport := h.Orchestrator.Snapshot().Viewport
	q := r.URL.Query()

	from, err := h.timeParam(q.Get("from"), viewport.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from", err)
		return
	}
	to, err := h.timeParam(q.Get("to"), viewport.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to", err)
		return
	}
	if err := (generic.Window{Start: from, End: to}).Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid search window", err)
		return
	}

	minDur, err := parseMinDuration(q.Get("min"), h.Orchestrator.MinSlot())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid min", err)
		return
	}

	records, err := h.Store.ListRecordsByWorker(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load records", err)
		return
	}

	slot := workload.FindFreeSlot(workload.SlotQuery{
		WorkerID:    id,
		Records:     records,
		From:        from,
		To:          to,
		MinDuration: minDur,
		Now:         h.Orchestrator.Now(),
		Calendar:    h.Orchestrator.Calendar(),
	})

	writeJSON(w, http.StatusOK, FreeSlotResponse{
		WorkerID:    string(id),
		From:        from,
		To:          to,
		MinDuration: minDur.String(),
		Slot:        slot,
	})
}

// =============================================================================
// RECORD HANDLERS
// =============================================================================

// ListRecords returns all records, or one worker's with ?worker_id=.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	var (
		records []workload.WorkRecord
		err     error
	)
	if id := r.URL.Query().Get("worker_id"); id != "" {
		records, err = h.Store.ListRecordsByWorker(r.Context(), workload.WorkerID(id))
	} else {
		records, err = h.Store.ListRecords(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list records", err)
		return
	}

	dtos := make([]RecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = h.Factory.ToJSON(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRecords accepts a single record object or an array of them. The
// batch is stored all-or-nothing.
func (h *Handler) CreateRecords(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '{' {
		body = append(append([]byte{'['}, body...), ']')
	}

	records, err := h.Factory.ParseRecords(body)
	if err != nil {
		if generic.IsClientError(err) {
			writeError(w, http.StatusBadRequest, "Invalid records", errorList(err))
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusBadRequest, "No records submitted", nil)
		return
	}

	if err := h.Store.SaveRecords(r.Context(), records); err != nil {
		if errors.Is(err, generic.ErrWorkerNotFound) {
			writeError(w, http.StatusBadRequest, "Records reference an unknown worker", err)
			return
		}
		writeDomainError(w, "Failed to save records", err)
		return
	}
	roster, err := h.Reload(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to recompute roster", err)
		return
	}

	resp := CreateRecordsResponse{Records: make([]RecordDTO, len(records)), Version: roster.Version}
	for i, rec := range records {
		resp.Records[i] = h.Factory.ToJSON(rec)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// DeleteRecord removes one record.
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteRecord(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete record", err)
		return
	}
	if _, err := h.Reload(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to recompute roster", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ANALYTICS HANDLERS
// =============================================================================

// SetViewport is the viewport-change notification. The response is the
// freshly published roster.
func (h *Handler) SetViewport(w http.ResponseWriter, r *http.Request) {
	var req ViewportRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid viewport", err)
		return
	}
	if err := (generic.Window{Start: req.Start, End: req.End}).Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid viewport", err)
		return
	}

	writeJSON(w, http.StatusOK, h.Orchestrator.OnViewportChange(r.Context(), req.Start, req.End))
}

// GetMetrics returns the current roster.
func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Orchestrator.Snapshot())
}

// GetWorkerMetrics returns one worker's entry from the current roster.
func (h *Handler) GetWorkerMetrics(w http.ResponseWriter, r *http.Request) {
	m, ok := h.Orchestrator.Snapshot().Metrics(workload.WorkerID(chi.URLParam(r, "workerID")))
	if !ok {
		writeError(w, http.StatusNotFound, "Worker not in roster", generic.ErrWorkerNotFound)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// GetContext classifies an arbitrary window against the current time.
func (h *Handler) GetContext(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("start") == "" || q.Get("end") == "" {
		writeError(w, http.StatusBadRequest, "start and end are required", generic.ErrMissingField)
		return
	}
	start, err := h.Factory.ParseStart(q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start", err)
		return
	}
	end, err := h.Factory.ParseStart(q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end", err)
		return
	}
	window := generic.Window{Start: start, End: end}
	if err := window.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid window", err)
		return
	}

	cal := h.Orchestrator.Calendar()
	writeJSON(w, http.StatusOK, ContextResponse{
		Window:        window,
		Context:       generic.ClassifyTemporal(window, h.Orchestrator.Now()),
		Zoom:          cal.ClassifyZoom(window),
		SpanDays:      window.SpanDays(cal),
		BusinessHours: cal.BusinessHoursIn(window).Float64(),
	})
}

// Health reports liveness. The store is pinged when it supports it.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
			return
		}
	}
	snap := h.Orchestrator.Snapshot()
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: snap.Version, Workers: len(snap.Workers)})
}

// =============================================================================
// HELPERS
// =============================================================================

func toWorkerDTO(wk workload.Worker) WorkerDTO {
	return WorkerDTO{ID: string(wk.ID), DisplayName: wk.DisplayName}
}

func (h *Handler) timeParam(raw string, fallback time.Time) (time.Time, error) {
	if raw == "" {
		return fallback, nil
	}
	return h.Factory.ParseStart(raw)
}

func parseMinDuration(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d, nil
	}
	if p := generic.ParseDuration(raw); p.Valid && p.Millis > 0 {
		return p.Duration(), nil
	}
	return 0, fmt.Errorf("%w: %q", generic.ErrInvalidDuration, raw)
}

// errorList splits a joined error into one message per record.
func errorList(err error) []string {
	return strings.Split(err.Error(), "\n")
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, details any) {
	resp := ErrorResponse{Error: message}
	switch d := details.(type) {
	case nil:
	case error:
		resp.Details = d.Error()
	default:
		resp.Details = d
	}
	writeJSON(w, status, resp)
}

// writeDomainError picks the status from the error's kind.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, generic.ErrDuplicateRecord):
		writeError(w, http.StatusConflict, message, err)
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
