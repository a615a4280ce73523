package handler

import (
	"net/http"

	"github.com/edusphere-api/internal/application/stats"
	"github.com/edusphere-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
)

// StatsHandler serves the dashboard aggregates.
type StatsHandler struct {
	svc stats.Service
}

func NewStatsHandler(svc stats.Service) *StatsHandler { return &StatsHandler{svc: svc} }

func (h *StatsHandler) StudentPerformance(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No autenticado.")
		return
	}
	perf, err := h.svc.StudentPerformance(r.Context(), p, chi.URLParam(r, "studentId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, perf)
}

func (h *StatsHandler) Courses(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No autenticado.")
		return
	}
	rows, err := h.svc.CourseStats(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *StatsHandler) Site(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No autenticado.")
		return
	}
	s, err := h.svc.SiteStats(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
