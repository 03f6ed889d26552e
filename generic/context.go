package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// TEMPORAL CONTEXT - Where a window sits relative to "now"
// =============================================================================

type TemporalContext int

const (
	ContextPast TemporalContext = iota
	ContextFuture
	ContextMixed
)

var temporalNames = map[TemporalContext]string{
	ContextPast:   "past",
	ContextFuture: "future",
	ContextMixed:  "mixed",
}

func (c TemporalContext) String() string { return temporalNames[c] }

func (c TemporalContext) MarshalText() ([]byte, error) {
	name, ok := temporalNames[c]
	if !ok {
		return nil, fmt.Errorf("unknown temporal context %d", int(c))
	}
	return []byte(name), nil
}

func (c *TemporalContext) UnmarshalText(b []byte) error {
	for k, v := range temporalNames {
		if v == string(b) {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("unknown temporal context %q", string(b))
}

// LooksAhead reports whether a free-slot search makes sense for the context.
func (c TemporalContext) LooksAhead() bool {
	return c == ContextFuture || c == ContextMixed
}

// ClassifyTemporal returns Past if the window ended before now, Future if it
// starts after now, Mixed otherwise (including windows that touch now).
func ClassifyTemporal(w Window, now time.Time) TemporalContext {
	switch {
	case w.End.Before(now):
		return ContextPast
	case w.Start.After(now):
		return ContextFuture
	default:
		return ContextMixed
	}
}

// =============================================================================
// ZOOM TIER - Display density derived from a window's span
// =============================================================================

type ZoomTier int

const (
	ZoomDay ZoomTier = iota
	ZoomWeek
	ZoomMonth
	ZoomYear
)

// Tier thresholds in inclusive calendar days. Consumed by the display layer;
// the boundaries are part of its contract.
const (
	yearTierAbove  = 180
	monthTierAbove = 45
	weekTierAbove  = 10
)

var zoomNames = map[ZoomTier]string{
	ZoomDay:   "day",
	ZoomWeek:  "week",
	ZoomMonth: "month",
	ZoomYear:  "year",
}

func (z ZoomTier) String() string { return zoomNames[z] }

func (z ZoomTier) MarshalText() ([]byte, error) {
	name, ok := zoomNames[z]
	if !ok {
		return nil, fmt.Errorf("unknown zoom tier %d", int(z))
	}
	return []byte(name), nil
}

func (z *ZoomTier) UnmarshalText(b []byte) error {
	for k, v := range zoomNames {
		if v == string(b) {
			*z = k
			return nil
		}
	}
	return fmt.Errorf("unknown zoom tier %q", string(b))
}

// ZoomForDays maps an inclusive day span to its tier:
// d > 180 Year, 45 < d <= 180 Month, 10 < d <= 45 Week, d <= 10 Day.
func ZoomForDays(d int) ZoomTier {
	switch {
	case d > yearTierAbove:
		return ZoomYear
	case d > monthTierAbove:
		return ZoomMonth
	case d > weekTierAbove:
		return ZoomWeek
	default:
		return ZoomDay
	}
}

// ClassifyZoom returns the tier for the window's inclusive calendar-day span.
func (c Calendar) ClassifyZoom(w Window) ZoomTier {
	return ZoomForDays(w.SpanDays(c))
}

// ClassifyZoom is Calendar.ClassifyZoom on the UTC calendar.
func ClassifyZoom(w Window) ZoomTier {
	return Calendar{}.ClassifyZoom(w)
}
