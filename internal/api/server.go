// Package api provides the REST API for uploading bugreports and
// querying analysis results.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/nordlys/bugsight/internal/config"
	"github.com/nordlys/bugsight/internal/enrich"
	"github.com/nordlys/bugsight/internal/pipeline"
	"github.com/nordlys/bugsight/internal/storage"
)

// Server is the REST API server.
type Server struct {
	store    storage.Storage
	pipeline *pipeline.Pipeline
	enricher *enrich.Enricher
	log      *logrus.Logger

	maxUploadBytes int64

	hub    *progressHub
	router *chi.Mux
	server *http.Server
}

// NewServer wires the API server. enricher may be nil, which disables
// the enrich endpoint.
func NewServer(cfg config.ServerConfig, store storage.Storage, p *pipeline.Pipeline, enricher *enrich.Enricher, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		store:          store,
		pipeline:       p,
		enricher:       enricher,
		log:            log,
		maxUploadBytes: cfg.MaxUploadBytes,
		hub:            newProgressHub(),
		router:         chi.NewRouter(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/bugreports", s.uploadBugreport)
		r.Get("/bugreports", s.listRuns)

		r.Route("/bugreports/{id}", func(r chi.Router) {
			r.Get("/", s.getRun)
			r.Delete("/", s.deleteRun)
			r.Get("/insights", s.getInsights)
			r.Get("/timeline", s.getTimeline)
			r.Get("/health", s.getHealthScore)
			r.Post("/enrich", s.enrichRun)
			r.Get("/progress", s.streamProgress)
		})
	})

	s.router.Get("/health", s.handleHealth)

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// Start starts the API server.
func (s *Server) Start() error {
	s.log.WithField("addr", s.server.Addr).Info("API server listening")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleHealth is the liveness endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, map[string]string{"error": msg})
}
