package workload

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Instrumentation records recompute activity as Prometheus metrics.
// A nil *Instrumentation is valid and records nothing.
type Instrumentation struct {
	registry   *prometheus.Registry
	handler    http.Handler
	recomputes *prometheus.CounterVec
	duration   prometheus.Histogram
	workers    prometheus.Gauge
	overloaded prometheus.Gauge
}

// NewInstrumentation registers the engine collectors on a private registry.
func NewInstrumentation() *Instrumentation {
	registry := prometheus.NewRegistry()

	recomputes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roster_recomputes_total",
		Help: "Full roster recomputations by triggering event",
	}, []string{"trigger"})

	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "roster_recompute_duration_seconds",
		Help:    "Time spent recomputing all worker metrics",
		Buckets: prometheus.DefBuckets,
	})

	workers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roster_workers",
		Help: "Workers in the last published roster",
	})

	overloaded := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roster_overloaded_workers",
		Help: "Workers above 100% viewport utilization in the last published roster",
	})

	registry.MustRegister(recomputes, duration, workers, overloaded)

	return &Instrumentation{
		registry:   registry,
		handler:    promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		recomputes: recomputes,
		duration:   duration,
		workers:    workers,
		overloaded: overloaded,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (i *Instrumentation) Handler() http.Handler {
	if i == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return i.handler
}

// Registry returns the underlying registry.
func (i *Instrumentation) Registry() *prometheus.Registry {
	if i == nil {
		return nil
	}
	return i.registry
}

// ObserveRecompute records one published roster.
func (i *Instrumentation) ObserveRecompute(trigger Trigger, workers, overloaded int, elapsed time.Duration) {
	if i == nil {
		return
	}
	i.recomputes.WithLabelValues(string(trigger)).Inc()
	i.duration.Observe(elapsed.Seconds())
	i.workers.Set(float64(workers))
	i.overloaded.Set(float64(overloaded))
}
