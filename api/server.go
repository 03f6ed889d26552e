/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     zap request logging (carries the request ID)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the timeline frontend

ROUTE GROUPS:
  /api/workers/*   Roster rows and free-slot queries
  /api/records/*   Work records and absences
  /api/viewport    Viewport-change notification
  /api/metrics/*   Published roster
  /api/context     Window classification
  /metrics         Prometheus (when enabled)
  /healthz         Liveness

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/workload-engine/logging"
)

// RouterOptions configures the outer surface.
type RouterOptions struct {
	AllowedOrigins []string
	Metrics        http.Handler // nil disables /metrics
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(logging.Middleware(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Worker routes
		r.Route("/workers", func(r chi.Router) {
			r.Get("/", h.ListWorkers)
			r.Post("/", h.CreateWorker)
			r.Get("/{id}", h.GetWorker)
			r.Delete("/{id}", h.DeleteWorker)
			r.Get("/{id}/free-slot", h.GetFreeSlot)
		})

		// Record routes
		r.Route("/records", func(r chi.Router) {
			r.Get("/", h.ListRecords)
			r.Post("/", h.CreateRecords)
			r.Delete("/{id}", h.DeleteRecord)
		})

		// Analytics routes
		r.Put("/viewport", h.SetViewport)
		r.Route("/metrics", func(r chi.Router) {
			r.Get("/", h.GetMetrics)
			r.Get("/{workerID}", h.GetWorkerMetrics)
		})
		r.Get("/context", h.GetContext)
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	r.Get("/healthz", h.Health)

	return r
}
