// Package workload implements the roster analytics on top of the generic
// calendar engine: per-worker workload metrics, free-slot search and the
// orchestrator that recomputes both whenever the viewport or records change.
package workload

import (
	"fmt"
	"strings"
	"time"

	"github.com/warp/workload-engine/generic"
)

// =============================================================================
// WORK CATEGORY - Closed set of record tags
// =============================================================================

type Category string

const (
	CategoryInstallation Category = "installation"
	CategoryRepair       Category = "repair"
	CategoryMaintenance  Category = "maintenance"
	CategoryEmergency    Category = "emergency"
	CategoryVacation     Category = "vacation"
	CategorySick         Category = "sick"
)

// WorkCategories lists the non-absence categories in tie-break order.
var WorkCategories = []Category{
	CategoryInstallation,
	CategoryRepair,
	CategoryMaintenance,
	CategoryEmergency,
}

// AbsenceCategories consume availability but never count as workload.
var AbsenceCategories = []Category{
	CategoryVacation,
	CategorySick,
}

// IsAbsence reports whether records of this category mark the worker unavailable.
func (c Category) IsAbsence() bool {
	for _, k := range AbsenceCategories {
		if c == k {
			return true
		}
	}
	return false
}

// Valid reports whether c belongs to the closed set.
func (c Category) Valid() bool {
	for _, k := range WorkCategories {
		if c == k {
			return true
		}
	}
	return c.IsAbsence()
}

// ParseCategory maps a tag to a Category, case-insensitive.
// Unknown tags are rejected rather than silently bucketed.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", generic.ErrUnknownCategory, s)
	}
	return c, nil
}

// =============================================================================
// WORKER & WORK RECORD
// =============================================================================

type WorkerID string

// Worker is one row of the roster.
type Worker struct {
	ID          WorkerID
	DisplayName string
}

// WorkRecord is an assigned work order or absence. Records are owned by the
// surrounding application; the engine only reads them.
type WorkRecord struct {
	ID       string
	WorkerID WorkerID
	Start    time.Time
	Duration string // free text, e.g. "2 weeks"
	Category Category
}

// Millis is the parsed duration; unparseable durations contribute 0.
func (r WorkRecord) Millis() int64 {
	return generic.DurationMillis(r.Duration)
}

// End is Start plus the parsed duration.
func (r WorkRecord) End() time.Time {
	return r.Start.Add(time.Duration(r.Millis()) * time.Millisecond)
}

// Hours is the parsed duration in hours.
func (r WorkRecord) Hours() generic.Hours {
	return generic.HoursFromMillis(r.Millis())
}

// RecordsFor filters records down to one worker, preserving order.
func RecordsFor(workerID WorkerID, records []WorkRecord) []WorkRecord {
	var out []WorkRecord
	for _, r := range records {
		if r.WorkerID == workerID {
			out = append(out, r)
		}
	}
	return out
}

// =============================================================================
// COMPUTED ARTIFACTS
// =============================================================================

// AbsencePeriod is an absence record as seen by the display layer.
type AbsencePeriod struct {
	RecordID     string    `json:"record_id"`
	Category     Category  `json:"category"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	LengthInDays float64   `json:"length_in_days"`
}

// WorkTypeDistribution maps each non-absence category to its share of total
// workload hours, in percent.
type WorkTypeDistribution map[Category]float64

// WorkerMetrics is recomputed in full on every viewport or record change.
type WorkerMetrics struct {
	WorkerID WorkerID `json:"worker_id"`

	// Full horizon
	TotalHours           float64              `json:"total_hours"`
	UtilizationPercent   float64              `json:"utilization_percent"`
	WorkTypeDistribution WorkTypeDistribution `json:"work_type_distribution"`
	PastHours            float64              `json:"past_hours"`
	FutureHours          float64              `json:"future_hours"`
	TopCategory          Category             `json:"top_category,omitempty"`

	// Viewport
	TemporalContext            generic.TemporalContext `json:"temporal_context"`
	ViewportHours              float64                 `json:"viewport_hours"`
	ViewportFreeHours          float64                 `json:"viewport_free_hours"`
	ViewportUtilizationPercent float64                 `json:"viewport_utilization_percent"`
	IsOverloaded               bool                    `json:"is_overloaded"`
	NextFreeSlot               *time.Time              `json:"next_free_slot"`
	UpcomingAbsences           []AbsencePeriod         `json:"upcoming_absences"`
}
