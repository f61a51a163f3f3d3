// Package api exposes the job pipeline over HTTP: submit, inspect and stop
// jobs, plus cache introspection and health.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/anl331/vid-clipper/internal/config"
	"github.com/anl331/vid-clipper/internal/job"
	"github.com/anl331/vid-clipper/internal/logging"
	"github.com/anl331/vid-clipper/internal/store"
)

// JobManager is what the handlers need from the job manager.
type JobManager interface {
	Submit(url string, opts config.JobOptions) (*job.Job, error)
	Stop(id string) error
	StopAll() int
	RunningCount() int
}

// SnapshotReader serves persisted job state.
type SnapshotReader interface {
	GetSnapshot(ctx context.Context, id string) (*job.Snapshot, error)
	ListSnapshots(ctx context.Context, limit int) ([]job.Snapshot, error)
	ListHistory(ctx context.Context, limit int) ([]store.HistoryEntry, error)
}

// CacheReader reports what the analysis cache holds for a video.
type CacheReader interface {
	Introspect(videoID string) (store.Introspection, error)
}

// Server wires the HTTP surface to the manager and stores.
type Server struct {
	manager  JobManager
	reader   SnapshotReader
	cache    CacheReader
	defaults config.JobOptions
	logger   *slog.Logger
}

func NewServer(manager JobManager, reader SnapshotReader, cache CacheReader, defaults config.JobOptions, logger *slog.Logger) *Server {
	return &Server{
		manager:  manager,
		reader:   reader,
		cache:    cache,
		defaults: defaults,
		logger:   logging.WithComponent(logger, "api"),
	}
}

// Router builds the chi router with all routes and middleware mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/run", s.handleRun)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Post("/jobs/{id}/stop", s.handleStopJob)
		r.Post("/stop-all", s.handleStopAll)
		r.Get("/history", s.handleHistory)
		r.Get("/cache/{videoID}", s.handleCache)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	j, err := s.manager.Submit(req.URL, req.Options(s.defaults))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, RunResponse{
		Ok:      true,
		JobID:   j.ID(),
		VideoID: j.Snapshot().VideoID,
		Status:  string(job.StatusQueued),
	})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.reader.ListSnapshots(r.Context(), queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snaps == nil {
		snaps = []job.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	snap, err := s.reader.GetSnapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snap == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleStopJob(w http.ResponseWriter, r *http.Request) {
	err := s.manager.Stop(chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, job.ErrJobNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, job.ErrJobNotRunning):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "stopping"})
	}
}

func (s *Server) handleStopAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StopAllResponse{Stopped: s.manager.StopAll()})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.reader.ListHistory(r.Context(), queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []store.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	info, err := s.cache.Introspect(chi.URLParam(r, "videoID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:      "ok",
		RunningJobs: s.manager.RunningCount(),
	})
}

func queryLimit(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
