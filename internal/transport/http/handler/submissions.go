package handler

import (
	"net/http"

	"github.com/edusphere-api/internal/application/attempt"
	"github.com/edusphere-api/internal/domain"
	"github.com/edusphere-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
)

// SubmissionHandler serves exam attempts.
type SubmissionHandler struct {
	svc attempt.Service
}

func NewSubmissionHandler(svc attempt.Service) *SubmissionHandler {
	return &SubmissionHandler{svc: svc}
}

func (h *SubmissionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No autenticado.")
		return
	}
	var req domain.SubmitRequest
	if !decode(w, r, &req) {
		return
	}
	a, err := h.svc.Submit(r.Context(), p, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, SubmissionEnvelope{
		Message:      "Examen entregado exitosamente. Esperando calificación.",
		SubmissionID: a.SubmissionID,
	})
}

func (h *SubmissionHandler) Grade(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No autenticado.")
		return
	}
	var req domain.GradeRequest
	if !decode(w, r, &req) {
		return
	}
	a, err := h.svc.Grade(r.Context(), p, chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *SubmissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No autenticado.")
		return
	}
	a, err := h.svc.Get(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *SubmissionHandler) MyResults(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No autenticado.")
		return
	}
	rows, err := h.svc.ListForStudent(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *SubmissionHandler) ForExam(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No autenticado.")
		return
	}
	rows, err := h.svc.ListForExam(r.Context(), p, chi.URLParam(r, "examId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
