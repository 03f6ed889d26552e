package workload

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/warp/workload-engine/generic"
)

// =============================================================================
// ROSTER - The published artifact
// =============================================================================

// Roster is one complete recomputation. It is never mutated after publish;
// consumers may hold on to it for as long as they like.
type Roster struct {
	Horizon    generic.Window             `json:"horizon"`
	Viewport   generic.Window             `json:"viewport"`
	Zoom       generic.ZoomTier           `json:"zoom"`
	Context    generic.TemporalContext    `json:"context"`
	ComputedAt time.Time                  `json:"computed_at"`
	Version    uint64                     `json:"version"`
	Workers    map[WorkerID]WorkerMetrics `json:"workers"`
}

// Metrics returns one worker's metrics from the roster.
func (r *Roster) Metrics(id WorkerID) (WorkerMetrics, bool) {
	if r == nil {
		return WorkerMetrics{}, false
	}
	m, ok := r.Workers[id]
	return m, ok
}

// =============================================================================
// ORCHESTRATOR - Full recompute on every change
// =============================================================================

// Trigger names the event that caused a recompute.
type Trigger string

const (
	TriggerRecords  Trigger = "records"
	TriggerWorkers  Trigger = "workers"
	TriggerHorizon  Trigger = "horizon"
	TriggerViewport Trigger = "viewport"
)

// OrchestratorConfig wires the orchestrator's collaborators. Only Horizon is
// required.
type OrchestratorConfig struct {
	Horizon         generic.Window
	Calendar        generic.Calendar
	MinSlot         time.Duration    // DefaultMinSlot when zero
	Clock           func() time.Time // time.Now when nil
	Logger          *zap.Logger
	Instrumentation *Instrumentation
	Publishers      []Publisher
}

// publishTimeout bounds one fan-out to the publishers.
const publishTimeout = 10 * time.Second

// Orchestrator owns the engine inputs and publishes a fresh Roster each time
// one of them changes. Every event recomputes every worker; the last event
// wins. Events are serialized, and readers go through Snapshot which never
// blocks on a recompute.
//
// Publishers run on a background goroutine outside the event lock. Only the
// newest pending roster is handed over; a roster superseded before its turn
// is skipped, and versions reach publishers in increasing order.
type Orchestrator struct {
	cfg OrchestratorConfig
	log *zap.Logger

	mu       sync.Mutex
	workers  []Worker
	records  []WorkRecord
	horizon  generic.Window
	viewport *generic.Window
	version  uint64

	// loadMu serializes LoadFrom so a slow store read cannot publish an
	// older record set over a newer one.
	loadMu sync.Mutex

	current atomic.Pointer[Roster]

	pubMu         sync.Mutex
	pending       *Roster
	pendingCtx    context.Context
	publishing    bool
	lastPublished uint64
	pubWG         sync.WaitGroup
}

// NewOrchestrator returns an orchestrator with an empty published roster.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.MinSlot <= 0 {
		cfg.MinSlot = DefaultMinSlot
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	o := &Orchestrator{cfg: cfg, log: log, horizon: cfg.Horizon}
	o.current.Store(&Roster{
		Horizon:  cfg.Horizon,
		Viewport: cfg.Horizon,
		Zoom:     cfg.Calendar.ClassifyZoom(cfg.Horizon),
		Context:  generic.ClassifyTemporal(cfg.Horizon, cfg.Clock()),
		Workers:  map[WorkerID]WorkerMetrics{},
	})
	return o
}

// Snapshot returns the last published roster.
func (o *Orchestrator) Snapshot() *Roster {
	return o.current.Load()
}

// Now reads the orchestrator's clock.
func (o *Orchestrator) Now() time.Time { return o.cfg.Clock() }

// Calendar is the business calendar every recompute uses.
func (o *Orchestrator) Calendar() generic.Calendar { return o.cfg.Calendar }

// MinSlot is the minimum free-slot length used for NextFreeSlot.
func (o *Orchestrator) MinSlot() time.Duration { return o.cfg.MinSlot }

// SetWorkers replaces the roster of workers.
func (o *Orchestrator) SetWorkers(ctx context.Context, workers []Worker) *Roster {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.workers = append([]Worker(nil), workers...)
	return o.recomputeLocked(ctx, TriggerWorkers)
}

// SetRecords replaces the work-record set.
func (o *Orchestrator) SetRecords(ctx context.Context, records []WorkRecord) *Roster {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append([]WorkRecord(nil), records...)
	return o.recomputeLocked(ctx, TriggerRecords)
}

// Load replaces workers and records in one step, recomputing once.
func (o *Orchestrator) Load(ctx context.Context, workers []Worker, records []WorkRecord) *Roster {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.workers = append([]Worker(nil), workers...)
	o.records = append([]WorkRecord(nil), records...)
	return o.recomputeLocked(ctx, TriggerRecords)
}

// SetHorizon replaces the full schedule horizon.
func (o *Orchestrator) SetHorizon(ctx context.Context, horizon generic.Window) *Roster {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.horizon = horizon
	return o.recomputeLocked(ctx, TriggerHorizon)
}

// OnViewportChange is the viewport-change notification. start must not be
// after end.
func (o *Orchestrator) OnViewportChange(ctx context.Context, start, end time.Time) *Roster {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.viewport = &generic.Window{Start: start, End: end}
	return o.recomputeLocked(ctx, TriggerViewport)
}

func (o *Orchestrator) recomputeLocked(ctx context.Context, trigger Trigger) *Roster {
	began := time.Now()
	now := o.cfg.Clock()

	viewport := o.horizon
	if o.viewport != nil {
		viewport = *o.viewport
	}
	o.version++

	roster := &Roster{
		Horizon:    o.horizon,
		Viewport:   viewport,
		Zoom:       o.cfg.Calendar.ClassifyZoom(viewport),
		Context:    generic.ClassifyTemporal(viewport, now),
		ComputedAt: now,
		Version:    o.version,
		Workers:    make(map[WorkerID]WorkerMetrics, len(o.workers)),
	}

	overloaded := 0
	for _, w := range o.workers {
		m := Aggregate(AggregateInput{
			WorkerID: w.ID,
			Records:  o.records,
			Horizon:  o.horizon,
			Viewport: &viewport,
			Now:      now,
			Calendar: o.cfg.Calendar,
		})
		if m.TemporalContext.LooksAhead() {
			m.NextFreeSlot = FindFreeSlot(SlotQuery{
				WorkerID:    w.ID,
				Records:     o.records,
				From:        viewport.Start,
				To:          viewport.End,
				MinDuration: o.cfg.MinSlot,
				Now:         now,
				Calendar:    o.cfg.Calendar,
			})
		}
		if m.IsOverloaded {
			overloaded++
		}
		roster.Workers[w.ID] = m
	}

	o.current.Store(roster)

	elapsed := time.Since(began)
	o.cfg.Instrumentation.ObserveRecompute(trigger, len(o.workers), overloaded, elapsed)
	o.log.Debug("roster recomputed",
		zap.String("trigger", string(trigger)),
		zap.Uint64("version", roster.Version),
		zap.Int("workers", len(o.workers)),
		zap.Int("records", len(o.records)),
		zap.Stringer("context", roster.Context),
		zap.Stringer("zoom", roster.Zoom),
		zap.Int("overloaded", overloaded),
		zap.Duration("elapsed", elapsed),
	)

	o.schedulePublish(ctx, roster)
	return roster
}

// =============================================================================
// PUBLISHING - Last value wins, off the event lock
// =============================================================================

// schedulePublish hands roster to the publish goroutine, replacing any roster
// still waiting. Called with o.mu held, so pending versions only grow.
func (o *Orchestrator) schedulePublish(ctx context.Context, roster *Roster) {
	if len(o.cfg.Publishers) == 0 {
		return
	}
	o.pubMu.Lock()
	defer o.pubMu.Unlock()

	o.pending = roster
	o.pendingCtx = context.WithoutCancel(ctx)
	if o.publishing {
		return
	}
	o.publishing = true
	o.pubWG.Add(1)
	go o.drainPublishes()
}

func (o *Orchestrator) drainPublishes() {
	defer o.pubWG.Done()

	for {
		o.pubMu.Lock()
		roster, ctx := o.pending, o.pendingCtx
		o.pending, o.pendingCtx = nil, nil
		if roster == nil {
			o.publishing = false
			o.pubMu.Unlock()
			return
		}
		o.pubMu.Unlock()

		if roster.Version <= o.lastPublished {
			continue
		}
		o.lastPublished = roster.Version
		o.publish(ctx, roster)
	}
}

func (o *Orchestrator) publish(ctx context.Context, roster *Roster) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	for _, p := range o.cfg.Publishers {
		if err := p.Publish(ctx, roster); err != nil {
			o.log.Warn("roster publish failed", zap.Uint64("version", roster.Version), zap.Error(err))
		}
	}
}

// Flush waits until every roster handed to the publishers so far has been
// published or skipped as superseded.
func (o *Orchestrator) Flush() {
	o.pubWG.Wait()
}
