package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nordlys/bugsight/pkg/models"
)

// uploadBugreport accepts a multipart zip upload, starts the analysis in
// the background and returns the run id immediately. Progress is
// available on the run's websocket; the result becomes retrievable once
// the run finishes.
func (s *Server) uploadBugreport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	file, header, err := r.FormFile("bugreport")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "missing multipart field 'bugreport'")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusRequestEntityTooLarge, "reading upload: "+err.Error())
		return
	}

	runID := uuid.NewString()
	filename := header.Filename
	s.log.WithFields(logrus.Fields{
		"run_id":   runID,
		"filename": filename,
		"bytes":    len(data),
	}).Info("bugreport upload accepted")

	go s.runAnalysis(runID, filename, data)

	s.respondJSON(w, http.StatusAccepted, map[string]string{"id": runID})
}

// runAnalysis executes one pipeline run in the background and stores the
// result. The upload request is long gone, so errors surface only through
// the progress stream and the log.
func (s *Server) runAnalysis(runID, filename string, data []byte) {
	ctx := context.Background()

	res, err := s.pipeline.Run(ctx, bytes.NewReader(data), int64(len(data)), s.hub.publisher(runID))
	if err != nil {
		s.log.WithField("run_id", runID).WithError(err).Error("analysis failed")
		s.hub.finish(runID, err)
		return
	}

	summary := summarize(runID, filename, res)
	if err := s.store.PutRun(ctx, summary, res); err != nil {
		s.log.WithField("run_id", runID).WithError(err).Error("storing run failed")
		s.hub.finish(runID, err)
		return
	}
	s.hub.finish(runID, nil)
}

func summarize(runID, filename string, res *models.AnalysisResult) models.RunSummary {
	sum := models.RunSummary{
		ID:           runID,
		Filename:     filename,
		CreatedAt:    time.Now().UTC(),
		OverallScore: res.HealthScore.Overall,
		InsightCount: len(res.Insights),
	}
	for _, card := range res.Insights {
		switch card.Severity {
		case models.SeverityCritical:
			sum.CriticalCount++
		case models.SeverityWarning:
			sum.WarningCount++
		}
	}
	return sum
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []models.RunSummary{}
	}
	s.respondJSON(w, http.StatusOK, runs)
}

// loadRun fetches a run by URL id, writing the error response itself
// when the run cannot be served.
func (s *Server) loadRun(w http.ResponseWriter, r *http.Request) (*models.AnalysisResult, string, bool) {
	id := chi.URLParam(r, "id")
	res, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "run not found")
		} else {
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return nil, id, false
	}
	return res, id, true
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	res, _, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) deleteRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteRun(r.Context(), id); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getInsights(w http.ResponseWriter, r *http.Request) {
	res, _, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, res.Insights)
}

func (s *Server) getTimeline(w http.ResponseWriter, r *http.Request) {
	res, _, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, res.Timeline)
}

func (s *Server) getHealthScore(w http.ResponseWriter, r *http.Request) {
	res, _, ok := s.loadRun(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, res.HealthScore)
}

// enrichRun runs LLM enrichment over a stored result and persists the
// enriched version.
func (s *Server) enrichRun(w http.ResponseWriter, r *http.Request) {
	if s.enricher == nil {
		s.respondError(w, http.StatusServiceUnavailable, "enrichment is not configured")
		return
	}

	res, id, ok := s.loadRun(w, r)
	if !ok {
		return
	}

	if err := s.enricher.Enrich(r.Context(), res); err != nil {
		s.log.WithField("run_id", id).WithError(err).Warn("enrichment failed")
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	runs, err := s.store.ListRuns(r.Context())
	if err == nil {
		for _, sum := range runs {
			if sum.ID == id {
				if err := s.store.PutRun(r.Context(), sum, res); err != nil {
					s.log.WithField("run_id", id).WithError(err).Warn("storing enriched run failed")
				}
				break
			}
		}
	}

	s.respondJSON(w, http.StatusOK, res)
}
