// Package server exposes a read-only HTTP view of a running dispatcher.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/me/dispatch/internal/journal"
	"github.com/me/dispatch/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxEventLimit caps a single /events page.
const maxEventLimit = 1000

// SnapshotSource provides the state published at the last tick boundary.
type SnapshotSource interface {
	Snapshot() *model.Snapshot
}

// Server is the dispatcher status server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	startTime time.Time
	source    SnapshotSource
	gatherer  prometheus.Gatherer
	journal   journal.Journal // optional; nil disables /events
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithJournal enables /events backed by j.
func WithJournal(j journal.Journal) Option {
	return func(s *Server) {
		s.journal = j
	}
}

// New creates a new Server with all routes registered.
// gatherer may be nil, in which case /metrics serves the default registry.
func New(src SnapshotSource, gatherer prometheus.Gatherer, logger *slog.Logger, opts ...Option) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		startTime: time.Now(),
		source:    src,
		gatherer:  gatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown status server: %w", err)
	}
	s.logger.Info("status server stopped")
	return nil
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Get("/", s.handleDiscovery)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/jobs/{id}", s.handleGetJob)
	r.Get("/events", s.handleEvents)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	snap := s.source.Snapshot()
	if snap == nil {
		respondError(w, reqID, http.StatusServiceUnavailable, &model.APIError{
			Code:    model.ErrInternal,
			Message: "dispatcher has not completed a tick yet",
		})
		return
	}
	respondOK(w, reqID, snap)
}

// handleGetJob looks a job up by ID or by its 1-based position in the job file.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if snap := s.source.Snapshot(); snap != nil {
		if job, ok := findJob(snap, id); ok {
			respondOK(w, reqID, job)
			return
		}
	}
	respondError(w, reqID, http.StatusNotFound, &model.APIError{
		Code:    model.ErrNotFound,
		Message: fmt.Sprintf("job %s not found", id),
	})
}

func findJob(snap *model.Snapshot, id string) (model.Job, bool) {
	seq, _ := strconv.Atoi(id)
	match := func(j model.Job) bool {
		return j.ID == id || (seq > 0 && j.Seq == seq)
	}

	if snap.Running != nil && match(*snap.Running) {
		return *snap.Running, true
	}
	for _, q := range snap.Queues {
		for _, j := range q {
			if match(j) {
				return j, true
			}
		}
	}
	for _, j := range snap.Finished {
		if match(j) {
			return j, true
		}
	}
	return model.Job{}, false
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if s.journal == nil {
		respondError(w, reqID, http.StatusNotFound, &model.APIError{
			Code:    model.ErrNotFound,
			Message: "journal is disabled",
		})
		return
	}

	q := r.URL.Query()
	f := journal.Filter{
		RunID: q.Get("run_id"),
		JobID: q.Get("job_id"),
		Kind:  model.EventKind(q.Get("kind")),
		Limit: 100,
	}
	if f.Kind != "" && !f.Kind.Valid() {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: fmt.Sprintf("unknown event kind %q", f.Kind),
		})
		return
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxEventLimit {
			respondError(w, reqID, http.StatusBadRequest, &model.APIError{
				Code:    model.ErrValidation,
				Message: fmt.Sprintf("limit must be between 1 and %d", maxEventLimit),
			})
			return
		}
		f.Limit = n
	}

	events, err := s.journal.Events(r.Context(), f)
	if err != nil {
		s.logger.Error("query events", "error", err)
		respondError(w, reqID, http.StatusInternalServerError, &model.APIError{
			Code:    model.ErrInternal,
			Message: "failed to read journal",
		})
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	respondOK(w, reqID, events)
}
