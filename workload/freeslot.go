package workload

import (
	"sort"
	"time"

	"github.com/warp/workload-engine/generic"
)

// DefaultMinSlot is the slot length searched for when none is given.
const DefaultMinSlot = 2 * time.Hour

// SlotQuery describes one free-slot search.
type SlotQuery struct {
	WorkerID    WorkerID
	Records     []WorkRecord // all workers; filtered here
	From        time.Time
	To          time.Time
	MinDuration time.Duration // DefaultMinSlot when <= 0
	Now         time.Time
	Calendar    generic.Calendar
}

type span struct {
	start, end time.Time
}

// FindFreeSlot returns the earliest instant in [max(From, Now), To] at which
// the worker has MinDuration of uninterrupted business time, or nil.
//
// Days are walked in order and each weekday's records are swept in start
// order, so the first hit is the earliest. Weekends are skipped, as are days
// where one absence covers the whole 07:00-17:00 window. The returned slot
// never starts before max(From, Now), never falls on a weekend and never
// overlaps a workload or absence record.
func FindFreeSlot(q SlotQuery) *time.Time {
	minDur := q.MinDuration
	if minDur <= 0 {
		minDur = DefaultMinSlot
	}

	cal := q.Calendar
	from := generic.MaxTime(q.From, q.Now)
	if from.After(q.To) {
		return nil
	}

	mine := RecordsFor(q.WorkerID, q.Records)
	spans := make([]span, 0, len(mine))
	var absences []span
	for _, r := range mine {
		s := span{start: r.Start, end: r.End()}
		spans = append(spans, s)
		if r.Category.IsAbsence() {
			absences = append(absences, s)
		}
	}
	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].start.Before(spans[j].start)
	})

	last := cal.StartOfDay(q.To)
	for d := cal.StartOfDay(from); !d.After(last); d = cal.NextDay(d) {
		if cal.IsWeekend(d) {
			continue
		}

		business := cal.BusinessWindow(d)
		if absentAllDay(business, absences) {
			continue
		}

		window := generic.Window{
			Start: generic.MaxTime(business.Start, from),
			End:   generic.MinTime(business.End, q.To),
		}
		if window.Duration() < minDur {
			continue
		}

		if slot, ok := sweep(window, dayRecords(d, cal, spans), minDur); ok {
			return &slot
		}
	}
	return nil
}

func absentAllDay(business generic.Window, absences []span) bool {
	for _, a := range absences {
		if business.Covers(a.start, a.end) {
			return true
		}
	}
	return false
}

// dayRecords selects the spans overlapping day's date, still sorted by start.
// Records that began on an earlier day are kept so multi-day work blocks the
// days it runs into.
func dayRecords(day time.Time, cal generic.Calendar, sorted []span) []span {
	date := generic.Window{Start: day, End: cal.NextDay(day)}
	var out []span
	for _, s := range sorted {
		if !s.start.Before(date.End) {
			break
		}
		if date.Overlaps(s.start, s.end) {
			out = append(out, s)
		}
	}
	return out
}

// sweep walks a cursor through the window, returning the first gap of at
// least minDur. Record starts beyond the window are clipped to its end.
func sweep(window generic.Window, records []span, minDur time.Duration) (time.Time, bool) {
	cursor := window.Start
	for _, r := range records {
		next := generic.MinTime(r.start, window.End)
		if next.Sub(cursor) >= minDur {
			return cursor, true
		}
		cursor = generic.MaxTime(cursor, r.end)
		if !cursor.Before(window.End) {
			return time.Time{}, false
		}
	}
	if window.End.Sub(cursor) >= minDur {
		return cursor, true
	}
	return time.Time{}, false
}
