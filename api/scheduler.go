/*
scheduler.go - Periodic roster refresh

PURPOSE:
  Past and future hours, the temporal context and the next free slot all
  depend on the current time, and the store may be written by other
  processes. The refresher reloads from the store on a fixed interval so
  the published roster does not go stale between client events.

DESIGN:
  - Runs a background goroutine with configurable interval
  - Each tick is a full reload (same path as any data change)
  - With Horizon set, the horizon is re-derived from the clock first, so a
    rolling "current weeks" horizon moves forward with time
  - Failures are logged; the last roster stays published

CONFIGURATION:
  - Interval: How often to refresh (default: 5 minutes)
  - Enabled: Whether the refresher is active (default: true)

USAGE:
  refresher := NewRefreshScheduler(handler)
  refresher.Start()
  // ... later
  refresher.Stop()

SEE ALSO:
  - handlers.go: Reload
  - workload/orchestrator.go: Full recompute
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/workload-engine/generic"
)

// RefreshScheduler reloads the roster periodically.
type RefreshScheduler struct {
	Handler  *Handler
	Interval time.Duration
	Enabled  bool
	// Horizon derives the horizon for the current time. nil keeps the
	// orchestrator's horizon as is.
	Horizon func(now time.Time) generic.Window

	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun time.Time
}

// NewRefreshScheduler creates a new scheduler.
func NewRefreshScheduler(handler *Handler) *RefreshScheduler {
	return &RefreshScheduler{
		Handler:  handler,
		Interval: 5 * time.Minute,
		Enabled:  true,
	}
}

// Start begins the scheduler.
func (rs *RefreshScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	log := rs.Handler.Logger
	if !rs.Enabled || rs.Interval <= 0 {
		log.Info("roster refresher disabled")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.Interval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run(rs.ticker, rs.stop)

	log.Info("roster refresher started", zap.Duration("interval", rs.Interval))
}

// Stop stops the scheduler and waits for an in-flight refresh.
func (rs *RefreshScheduler) Stop() {
	rs.mu.Lock()
	ticker, stop := rs.ticker, rs.stop
	rs.ticker = nil
	rs.mu.Unlock()

	if ticker == nil {
		return
	}
	ticker.Stop()
	close(stop)
	rs.wg.Wait()
	rs.Handler.Logger.Info("roster refresher stopped")
}

func (rs *RefreshScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()

	for {
		select {
		case <-ticker.C:
			rs.RunNow()
		case <-stop:
			return
		}
	}
}

// RunNow refreshes immediately.
func (rs *RefreshScheduler) RunNow() {
	ctx, cancel := context.WithTimeout(context.Background(), rs.timeout())
	defer cancel()

	rs.rollHorizon(ctx)

	// Reload logs its own failure.
	if roster, err := rs.Handler.Reload(ctx); err == nil {
		rs.Handler.Logger.Debug("roster refreshed", zap.Uint64("version", roster.Version))
	}

	rs.mu.Lock()
	rs.lastRun = time.Now()
	rs.mu.Unlock()
}

// rollHorizon moves the horizon when the clock has crossed into a new one.
func (rs *RefreshScheduler) rollHorizon(ctx context.Context) {
	if rs.Horizon == nil {
		return
	}
	orch := rs.Handler.Orchestrator
	next := rs.Horizon(orch.Now())
	current := orch.Snapshot().Horizon
	if next.Start.Equal(current.Start) && next.End.Equal(current.End) {
		return
	}
	orch.SetHorizon(ctx, next)
	rs.Handler.Logger.Info("horizon moved", zap.Stringer("horizon", next))
}

// GetNextRunTime returns when the next refresh is due.
func (rs *RefreshScheduler) GetNextRunTime() time.Time {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.lastRun.IsZero() {
		return time.Now().Add(rs.Interval)
	}
	return rs.lastRun.Add(rs.Interval)
}

func (rs *RefreshScheduler) timeout() time.Duration {
	if rs.Interval > 0 && rs.Interval < 30*time.Second {
		return rs.Interval
	}
	return 30 * time.Second
}
