// Package ops exposes the worker's operational HTTP surface: health,
// metrics, job submission and the analytics read contract.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/cryptique-io-codehub/cryptique-sub000/internal/application/aggregation"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/application/queries"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/config"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/domain/analytics"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/infrastructure/cache"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/infrastructure/observability"
	"github.com/cryptique-io-codehub/cryptique-sub000/internal/scheduler"
	appErrors "github.com/cryptique-io-codehub/cryptique-sub000/pkg/errors"
)

// Server is the ops HTTP server.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger

	sched      *scheduler.Scheduler
	aggregator *aggregation.Aggregator
	cacheStore *cache.Store
	optimizer  *queries.Optimizer
	metrics    *observability.Collector
}

// NewServer builds the ops server and its routes.
func NewServer(cfg config.Server, sched *scheduler.Scheduler, aggregator *aggregation.Aggregator, cacheStore *cache.Store, optimizer *queries.Optimizer, metrics *observability.Collector, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		logger:     logger,
		sched:      sched,
		aggregator: aggregator,
		cacheStore: cacheStore,
		optimizer:  optimizer,
		metrics:    metrics,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.WriteTimeout))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/jobs", s.handleQueueJob)
		r.Get("/jobs/{jobID}", s.handleGetJob)
		r.Delete("/jobs/{jobID}", s.handleCancelJob)
		r.Get("/queue", s.handleQueueStatus)
		r.Get("/queue/stats", s.handleSchedulerStats)
		r.Get("/cache/stats", s.handleCacheStats)
		r.Post("/cache/invalidate", s.handleInvalidate)
		r.Get("/queries/stats", s.handleQueryStats)
		r.Get("/analytics/{siteID}", s.handleGetAnalytics)
	})

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler exposes the router, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("Ops server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.sched.QueueStatus()
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"scheduler": status,
		"time":      time.Now().UTC(),
	})
}

func (s *Server) handleQueueJob(w http.ResponseWriter, r *http.Request) {
	var spec scheduler.JobSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		s.respondError(w, appErrors.NewValidation("invalid request body: "+err.Error()))
		return
	}

	jobID, err := s.sched.QueueJob(spec)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, ok := s.sched.GetJob(jobID)
	if !ok {
		s.respondError(w, appErrors.NewNotFound(fmt.Sprintf("job %s not found", jobID)))
		return
	}
	s.respondJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if !s.sched.CancelJob(jobID) {
		s.respondError(w, appErrors.NewConflict(fmt.Sprintf("job %s is not queued", jobID)))
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"jobId": jobID, "status": "cancelled"})
}

func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.sched.QueueStatus())
}

func (s *Server) handleSchedulerStats(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.sched.Stats())
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.cacheStore.Stats())
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Pattern string `json:"pattern"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Pattern == "" {
		s.respondError(w, appErrors.NewValidation("pattern is required"))
		return
	}
	count := s.cacheStore.Invalidate(body.Pattern)
	s.respondJSON(w, http.StatusOK, map[string]any{"invalidated": count})
}

func (s *Server) handleQueryStats(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.optimizer.Stats())
}

// handleGetAnalytics serves the window read contract: the finalized window
// containing ts for the (site, timeframe) pair, or 404 when none exists.
func (s *Server) handleGetAnalytics(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "siteID")

	timeframe, err := analytics.ParseTimeframe(r.URL.Query().Get("timeframe"))
	if err != nil {
		s.respondError(w, appErrors.NewValidation(err.Error()))
		return
	}

	ts := time.Now()
	if raw := r.URL.Query().Get("ts"); raw != "" {
		unix, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.respondError(w, appErrors.NewValidation("ts must be a unix timestamp"))
			return
		}
		ts = time.Unix(unix, 0).UTC()
	}

	window, err := s.aggregator.GetWindow(r.Context(), siteID, timeframe, ts)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if window == nil {
		s.respondError(w, appErrors.NewNotFound("no window computed for the requested bucket"))
		return
	}
	s.respondJSON(w, http.StatusOK, window)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	errType := appErrors.ErrorTypeInternal

	var appErr *appErrors.AppError
	if errors.As(err, &appErr) {
		errType = appErr.Type
		switch appErr.Type {
		case appErrors.ErrorTypeValidation:
			status = http.StatusBadRequest
		case appErrors.ErrorTypeNotFound:
			status = http.StatusNotFound
		case appErrors.ErrorTypeCapacity:
			status = http.StatusTooManyRequests
		case appErrors.ErrorTypeConflict:
			status = http.StatusConflict
		case appErrors.ErrorTypeTimeout:
			status = http.StatusGatewayTimeout
		case appErrors.ErrorTypeTransient:
			status = http.StatusServiceUnavailable
		}
	}

	s.respondJSON(w, status, map[string]string{
		"error": err.Error(),
		"type":  string(errType),
	})
}
