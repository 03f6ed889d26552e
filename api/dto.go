/*
dto.go - Data Transfer Objects for the HTTP API

PURPOSE:
  Request and response shapes for the REST endpoints. Record and worker
  payloads reuse the factory's JSON types so ingestion and listing share one
  schema; computed metrics are served as workload.Roster / WorkerMetrics,
  which already carry JSON tags.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/records.go: RecordJSON, WorkerJSON
  - workload/types.go: WorkerMetrics
*/
package api

import (
	"time"

	"github.com/warp/workload-engine/factory"
	"github.com/warp/workload-engine/generic"
	"github.com/warp/workload-engine/workload"
)

// =============================================================================
// WORKER DTOs
// =============================================================================

// WorkerDTO is a roster row in API responses.
type WorkerDTO struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// WorkerDetailDTO adds the worker's current metrics, when computed.
type WorkerDetailDTO struct {
	WorkerDTO
	Metrics *workload.WorkerMetrics `json:"metrics,omitempty"`
}

// CreateWorkerRequest is the request to add or rename a worker.
type CreateWorkerRequest = factory.WorkerJSON

// =============================================================================
// RECORD DTOs
// =============================================================================

// RecordDTO is a work record as submitted and listed.
type RecordDTO = factory.RecordJSON

// CreateRecordsResponse echoes what was stored, with generated IDs.
type CreateRecordsResponse struct {
	Records []RecordDTO `json:"records"`
	Version uint64      `json:"roster_version"`
}

// =============================================================================
// VIEWPORT & CONTEXT DTOs
// =============================================================================

// ViewportRequest is the viewport-change notification.
type ViewportRequest struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required"`
}

// ContextResponse classifies an arbitrary window.
type ContextResponse struct {
	Window        generic.Window          `json:"window"`
	Context       generic.TemporalContext `json:"context"`
	Zoom          generic.ZoomTier        `json:"zoom"`
	SpanDays      int                     `json:"span_days"`
	BusinessHours float64                 `json:"business_hours"`
}

// FreeSlotResponse answers an ad-hoc free-slot query. Slot is null when the
// window holds no gap long enough.
type FreeSlotResponse struct {
	WorkerID    string     `json:"worker_id"`
	From        time.Time  `json:"from"`
	To          time.Time  `json:"to"`
	MinDuration string     `json:"min_duration"`
	Slot        *time.Time `json:"slot"`
}

// =============================================================================
// COMMON DTOs
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// HealthResponse reports liveness and the published roster version.
type HealthResponse struct {
	Status  string `json:"status"`
	Version uint64 `json:"roster_version"`
	Workers int    `json:"workers"`
}
