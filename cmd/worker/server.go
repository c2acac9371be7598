package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"estate-analytics/internal/dispatcher"
	"estate-analytics/internal/observability"
	"estate-analytics/internal/scheduler"
)

// pinger is a dependency checked by /healthz.
type pinger func(ctx context.Context) error

// opsServer exposes metrics, health and status of the worker.
type opsServer struct {
	router  *chi.Mux
	server  *http.Server
	log     zerolog.Logger
	started time.Time

	checks     map[string]pinger
	dispatcher *dispatcher.Dispatcher
	scheduler  *scheduler.Scheduler
}

func newOpsServer(
	addr string,
	gatherer prometheus.Gatherer,
	checks map[string]pinger,
	d *dispatcher.Dispatcher,
	s *scheduler.Scheduler,
	log zerolog.Logger,
) *opsServer {
	o := &opsServer{
		router:     chi.NewRouter(),
		log:        log.With().Str("component", "ops").Logger(),
		started:    time.Now(),
		checks:     checks,
		dispatcher: d,
		scheduler:  s,
	}

	o.router.Use(middleware.Recoverer)
	o.router.Use(middleware.RequestID)
	o.router.Use(o.loggingMiddleware)

	o.router.Handle("/metrics", observability.Handler(gatherer))
	o.router.Get("/healthz", o.handleHealth)
	o.router.Get("/status", o.handleStatus)

	o.server = &http.Server{
		Addr:         addr,
		Handler:      o.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return o
}

// Start serves until Shutdown is called.
func (o *opsServer) Start() error {
	o.log.Info().Str("addr", o.server.Addr).Msg("starting ops server")
	if err := o.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (o *opsServer) Shutdown(ctx context.Context) error {
	return o.server.Shutdown(ctx)
}

func (o *opsServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	result := make(map[string]string, len(o.checks))
	for name, ping := range o.checks {
		if err := ping(ctx); err != nil {
			result[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		result[name] = "ok"
	}
	writeJSON(w, status, result)
}

func (o *opsServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"uptime_seconds": int64(time.Since(o.started).Seconds()),
		"tasks":          o.dispatcher.Stats(),
		"jobs":           o.scheduler.Status(),
	})
}

// loggingMiddleware logs HTTP requests
func (o *opsServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		o.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
