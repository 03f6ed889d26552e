/*
errors.go - Centralized error types for the workload engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The engine itself never fails: metrics are best-effort display aids and
  degrade to zero values. These errors belong to the boundary around it:
  record parsing, storage and the HTTP API.

ERROR CATEGORIES:
  1. Input errors - Malformed windows, durations, categories
  2. Lookup errors - Missing workers or records
  3. Store errors - Database-level failures

USAGE:
  if errors.Is(err, generic.ErrUnknownCategory) {
      // reject the record, keep the rest of the batch
  }

SEE ALSO:
  - factory/records.go: Wraps these errors with record context
  - store/sqlite/sqlite.go: Returns lookup errors
  - api/handlers.go: Maps errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidWindow is returned when a window ends before it starts.
	ErrInvalidWindow = errors.New("invalid window: end before start")

	// ErrInvalidDuration is returned by strict parsers when a duration string
	// cannot be parsed. The engine itself treats such records as zero-length.
	ErrInvalidDuration = errors.New("invalid duration")

	// ErrUnknownCategory is returned for a category tag outside the closed set.
	ErrUnknownCategory = errors.New("unknown work category")

	// ErrMissingField is returned when a required input field is empty.
	ErrMissingField = errors.New("missing required field")

	// ErrInvalidTime is returned when a start time is not ISO-8601 parseable.
	ErrInvalidTime = errors.New("invalid start time")

	// ErrWorkerNotFound is returned when a referenced worker doesn't exist.
	ErrWorkerNotFound = errors.New("worker not found")

	// ErrRecordNotFound is returned when a referenced work record doesn't exist.
	ErrRecordNotFound = errors.New("work record not found")

	// ErrDuplicateRecord is returned when a record ID is already stored.
	ErrDuplicateRecord = errors.New("duplicate work record")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// RecordError describes why one input record was rejected.
type RecordError struct {
	Index    int    // position in the submitted batch
	RecordID string // may be empty when the client omitted it
	Field    string
	Err      error
}

func (e *RecordError) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf("record %d (%s): %s: %v", e.Index, e.RecordID, e.Field, e.Err)
	}
	return fmt.Sprintf("record %d: %s: %v", e.Index, e.Field, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidWindow) ||
		errors.Is(err, ErrInvalidDuration) ||
		errors.Is(err, ErrUnknownCategory) ||
		errors.Is(err, ErrInvalidTime) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrDuplicateRecord)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkerNotFound) ||
		errors.Is(err, ErrRecordNotFound)
}
