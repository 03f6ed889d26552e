package workload

import (
	"time"

	"github.com/warp/workload-engine/generic"
)

// =============================================================================
// METRICS AGGREGATOR - Full-horizon and viewport statistics for one worker
// =============================================================================

// AggregateInput is everything one worker's metrics depend on.
type AggregateInput struct {
	WorkerID WorkerID
	Records  []WorkRecord // all workers; filtered here
	Horizon  generic.Window
	Viewport *generic.Window // nil means the full horizon
	Now      time.Time
	Calendar generic.Calendar
}

// Aggregate computes a worker's metrics. It never fails: missing records or
// zero availability produce zero-valued fields. NextFreeSlot is always nil
// here; the orchestrator fills it in.
func Aggregate(in AggregateInput) WorkerMetrics {
	viewport := in.Horizon
	if in.Viewport != nil {
		viewport = *in.Viewport
	}

	// 1. Partition
	var work, absences []WorkRecord
	for _, r := range RecordsFor(in.WorkerID, in.Records) {
		if r.Category.IsAbsence() {
			absences = append(absences, r)
		} else {
			work = append(work, r)
		}
	}

	// 2. Totals, split past/future on record start vs now
	total := generic.ZeroHours()
	past := generic.ZeroHours()
	future := generic.ZeroHours()
	perCategory := make(map[Category]generic.Hours, len(WorkCategories))
	for _, r := range work {
		h := r.Hours()
		total = total.Add(h)
		if r.Start.Before(in.Now) {
			past = past.Add(h)
		} else {
			future = future.Add(h)
		}
		if acc, ok := perCategory[r.Category]; ok {
			perCategory[r.Category] = acc.Add(h)
		} else {
			perCategory[r.Category] = h
		}
	}

	// 3. Distribution and top category
	distribution, top := distribute(perCategory, total)

	// 4. Horizon utilization
	available := in.Calendar.BusinessHoursIn(in.Horizon)

	// 5. Viewport load
	viewportHours := generic.ZeroHours()
	for _, r := range work {
		if viewport.Overlaps(r.Start, r.End()) {
			viewportHours = viewportHours.Add(r.Hours())
		}
	}
	viewportAvailable := in.Calendar.BusinessHoursIn(viewport)
	viewportUtil := generic.Percent(viewportHours, viewportAvailable)

	// 6. Absences in view
	upcoming := make([]AbsencePeriod, 0)
	for _, r := range absences {
		end := r.End()
		if !viewport.Overlaps(r.Start, end) {
			continue
		}
		upcoming = append(upcoming, AbsencePeriod{
			RecordID:     r.ID,
			Category:     r.Category,
			Start:        r.Start,
			End:          end,
			LengthInDays: generic.DaysFromMillis(r.Millis()),
		})
	}

	return WorkerMetrics{
		WorkerID:             in.WorkerID,
		TotalHours:           total.Float64(),
		UtilizationPercent:   generic.RoundedPercent(total, available),
		WorkTypeDistribution: distribution,
		PastHours:            past.Float64(),
		FutureHours:          future.Float64(),
		TopCategory:          top,

		// 7. Context
		TemporalContext:            generic.ClassifyTemporal(viewport, in.Now),
		ViewportHours:              viewportHours.Float64(),
		ViewportFreeHours:          viewportAvailable.Sub(viewportHours).NonNegative().Float64(),
		ViewportUtilizationPercent: viewportUtil,
		IsOverloaded:               viewportUtil > 100,
		UpcomingAbsences:           upcoming,
	}
}

// distribute converts per-category hours into percentages of total. The top
// category must be strictly larger than every earlier one in WorkCategories
// order, so ties go to the first listed. No hours means no top category.
func distribute(perCategory map[Category]generic.Hours, total generic.Hours) (WorkTypeDistribution, Category) {
	dist := make(WorkTypeDistribution, len(WorkCategories))
	var top Category
	best := 0.0
	for _, c := range WorkCategories {
		pct := 0.0
		if h, ok := perCategory[c]; ok {
			pct = generic.Percent(h, total)
		}
		dist[c] = pct
		if pct > best {
			best = pct
			top = c
		}
	}
	return dist, top
}
