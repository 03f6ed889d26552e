package generic

import "time"

// =============================================================================
// WINDOW - The core concept for viewport and horizon computation
// =============================================================================

// Window is a span of time. It represents either the full schedule horizon or
// the currently visible viewport.
//
// Invariant: Start <= End. The engine does not check it; Validate exists for
// callers that accept windows from outside.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate returns ErrInvalidWindow when End is before Start.
func (w Window) Validate() error {
	if w.End.Before(w.Start) {
		return ErrInvalidWindow
	}
	return nil
}

// Overlaps reports whether [start, end) intersects the window with half-open
// semantics: a span that only touches a boundary does not overlap.
func (w Window) Overlaps(start, end time.Time) bool {
	return start.Before(w.End) && end.After(w.Start)
}

// Covers reports whether [start, end] fully contains the window.
func (w Window) Covers(start, end time.Time) bool {
	return !start.After(w.Start) && !end.Before(w.End)
}

// Duration returns End - Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Dates returns midnight of every calendar date the window touches.
func (w Window) Dates(cal Calendar) []time.Time {
	var days []time.Time
	end := cal.StartOfDay(w.End)
	for d := cal.StartOfDay(w.Start); !d.After(end); d = cal.NextDay(d) {
		days = append(days, d)
	}
	return days
}

// SpanDays is the inclusive calendar-day span of the window.
func (w Window) SpanDays(cal Calendar) int {
	return cal.DaysInclusive(w.Start, w.End)
}

// String returns a string representation of the window.
func (w Window) String() string {
	return "[" + w.Start.Format(time.RFC3339) + ", " + w.End.Format(time.RFC3339) + "]"
}
