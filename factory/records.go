/*
Package factory provides JSON to Go record conversion.

PURPOSE:
  Converts JSON work records and workers, as submitted by clients or read
  from import files, into workload.WorkRecord and workload.Worker values.
  The engine is lenient (a malformed duration simply counts as zero), so
  the factory is the place where strict validation happens: bad input is
  rejected with a precise *generic.RecordError before it ever reaches the
  orchestrator.

JSON SCHEMA:
  [
    {
      "id": "wo-1042",              // optional, generated when omitted
      "worker_id": "w-7",
      "start": "2025-03-10T07:00:00Z",
      "duration": "4 hours",
      "category": "installation"
    }
  ]

  Accepted start formats, tried in order:
    2006-01-02T15:04:05Z07:00   (RFC 3339)
    2006-01-02T15:04:05         (calendar-local)
    2006-01-02T15:04            (calendar-local)
    2006-01-02                  (calendar-local midnight)

KEY FEATURES:
  - Every record in a batch is checked; all failures are reported together
  - Duration strings must parse ("<number> <unit>")
  - Category tags must belong to the closed set
  - Missing IDs get a UUID

USAGE:
  f := factory.NewRecordFactory(generic.Calendar{})
  records, err := f.ParseRecords(body)
  var recErr *generic.RecordError
  if errors.As(err, &recErr) {
      // 400 with recErr.Field
  }

SEE ALSO:
  - generic/duration.go: Duration grammar
  - workload/types.go: WorkRecord, Category
  - api/handlers.go: HTTP ingestion
*/
package factory

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/warp/workload-engine/generic"
	"github.com/warp/workload-engine/workload"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RecordJSON is the JSON representation of a work record.
type RecordJSON struct {
	ID       string `json:"id,omitempty"`
	WorkerID string `json:"worker_id" validate:"required"`
	Start    string `json:"start" validate:"required"`
	Duration string `json:"duration" validate:"required"`
	Category string `json:"category" validate:"required"`
}

// WorkerJSON is the JSON representation of a roster row.
type WorkerJSON struct {
	ID          string `json:"id" validate:"required"`
	DisplayName string `json:"display_name" validate:"required"`
}

var startLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// =============================================================================
// RECORD FACTORY
// =============================================================================

// RecordFactory converts JSON records to Go structs.
type RecordFactory struct {
	calendar generic.Calendar
	validate *validator.Validate
	newID    func() string
}

// NewRecordFactory creates a factory that resolves zone-less start times in
// the calendar's location.
func NewRecordFactory(cal generic.Calendar) *RecordFactory {
	v := validator.New()
	// Report JSON names rather than Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &RecordFactory{calendar: cal, validate: v, newID: uuid.NewString}
}

// ParseRecords parses a JSON array of records. It returns every record or
// none: when any record is invalid the joined *generic.RecordError values are
// returned instead.
func (f *RecordFactory) ParseRecords(data []byte) ([]workload.WorkRecord, error) {
	var raw []RecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse records JSON: %w", err)
	}

	records := make([]workload.WorkRecord, 0, len(raw))
	var errs []error
	for i, rj := range raw {
		r, err := f.FromJSON(i, rj)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		records = append(records, r)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return records, nil
}

// FromJSON converts one RecordJSON; index is its position in the batch.
func (f *RecordFactory) FromJSON(index int, rj RecordJSON) (workload.WorkRecord, error) {
	fail := func(field string, err error) (workload.WorkRecord, error) {
		return workload.WorkRecord{}, &generic.RecordError{Index: index, RecordID: rj.ID, Field: field, Err: err}
	}

	rj.WorkerID = strings.TrimSpace(rj.WorkerID)
	rj.Duration = strings.TrimSpace(rj.Duration)
	if err := f.validate.Struct(rj); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fail(verrs[0].Field(), generic.ErrMissingField)
		}
		return fail("", err)
	}

	start, err := f.ParseStart(rj.Start)
	if err != nil {
		return fail("start", err)
	}

	if !generic.ParseDuration(rj.Duration).Valid {
		return fail("duration", fmt.Errorf("%w: %q", generic.ErrInvalidDuration, rj.Duration))
	}

	category, err := workload.ParseCategory(rj.Category)
	if err != nil {
		return fail("category", err)
	}

	id := strings.TrimSpace(rj.ID)
	if id == "" {
		id = f.newID()
	}

	return workload.WorkRecord{
		ID:       id,
		WorkerID: workload.WorkerID(rj.WorkerID),
		Start:    start,
		Duration: rj.Duration,
		Category: category,
	}, nil
}

// ToJSON converts a WorkRecord to RecordJSON.
func (f *RecordFactory) ToJSON(r workload.WorkRecord) RecordJSON {
	return RecordJSON{
		ID:       r.ID,
		WorkerID: string(r.WorkerID),
		Start:    r.Start.Format(time.RFC3339),
		Duration: r.Duration,
		Category: string(r.Category),
	}
}

// ParseStart accepts any of the supported start layouts.
func (f *RecordFactory) ParseStart(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	loc := f.calendar.Location
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range startLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", generic.ErrInvalidTime, s)
}

// =============================================================================
// WORKERS
// =============================================================================

// ParseWorkers parses a JSON array of workers. Duplicate IDs are rejected.
func (f *RecordFactory) ParseWorkers(data []byte) ([]workload.Worker, error) {
	var raw []WorkerJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse workers JSON: %w", err)
	}

	seen := make(map[string]bool, len(raw))
	workers := make([]workload.Worker, 0, len(raw))
	for i, wj := range raw {
		w, err := f.WorkerFromJSON(wj)
		if err != nil {
			return nil, fmt.Errorf("worker %d: %w", i, err)
		}
		if seen[string(w.ID)] {
			return nil, fmt.Errorf("worker %d: duplicate id %q", i, w.ID)
		}
		seen[string(w.ID)] = true
		workers = append(workers, w)
	}
	return workers, nil
}

// WorkerFromJSON validates and converts one WorkerJSON.
func (f *RecordFactory) WorkerFromJSON(wj WorkerJSON) (workload.Worker, error) {
	wj.ID = strings.TrimSpace(wj.ID)
	wj.DisplayName = strings.TrimSpace(wj.DisplayName)
	if err := f.validate.Struct(wj); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return workload.Worker{}, fmt.Errorf("%s: %w", verrs[0].Field(), generic.ErrMissingField)
		}
		return workload.Worker{}, err
	}
	return workload.Worker{ID: workload.WorkerID(wj.ID), DisplayName: wj.DisplayName}, nil
}
