package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/RosterImport/internal/roster"
	"github.com/JonMunkholm/RosterImport/internal/store"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

type healthResponse struct {
	Status   string                     `json:"status"`
	Sessions int                        `json:"sessions"`
	Limiter  roster.UploadLimiterStatus `json:"limiter"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Sessions: s.service.SessionCount(),
		Limiter:  s.service.LimiterStatus(),
	})
}

type referenceResponse struct {
	Version  string `json:"version"`
	Campuses int    `json:"campuses"`
	Courses  int    `json:"courses"`
}

// handleRefreshReference refetches campuses and courses. Sessions opened
// earlier keep resolving against the data they were opened with.
func (s *Server) handleRefreshReference(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Backend.Timeout+5*time.Second)
	defer cancel()

	rs, err := s.service.RefreshReference(ctx)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, referenceResponse{
		Version:  rs.Version,
		Campuses: len(rs.Campuses),
		Courses:  len(rs.Courses),
	})
}

// handleHistory lists recently settled submissions, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := min(parseIntParam(r, "limit", defaultHistoryLimit), maxHistoryLimit)

	batches, err := s.history.ListRecent(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if batches == nil {
		batches = []store.Batch{}
	}
	writeJSON(w, http.StatusOK, batches)
}

func (s *Server) handleHistoryFailures(w http.ResponseWriter, r *http.Request) {
	failures, err := s.history.Failures(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if failures == nil {
		failures = []roster.FailedRow{}
	}
	writeJSON(w, http.StatusOK, failures)
}

// handleHistorySummary aggregates the most recent submissions.
func (s *Server) handleHistorySummary(w http.ResponseWriter, r *http.Request) {
	limit := min(parseIntParam(r, "limit", maxHistoryLimit), maxHistoryLimit)

	batches, err := s.history.ListRecent(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	sum, err := store.Summarize(batches)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
