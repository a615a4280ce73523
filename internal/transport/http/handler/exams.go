package handler

import (
	"net/http"

	"github.com/edusphere-api/internal/application/exam"
	"github.com/edusphere-api/internal/domain"
	"github.com/edusphere-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
)

// ExamHandler serves exam definitions.
type ExamHandler struct {
	svc exam.Service
}

func NewExamHandler(svc exam.Service) *ExamHandler { return &ExamHandler{svc: svc} }

func (h *ExamHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No autenticado.")
		return
	}
	var in domain.ExamInput
	if !decode(w, r, &in) {
		return
	}
	e, err := h.svc.Create(r.Context(), p, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *ExamHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No autenticado.")
		return
	}
	exams, err := h.svc.List(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, exams)
}

func (h *ExamHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No autenticado.")
		return
	}
	e, err := h.svc.Get(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *ExamHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No autenticado.")
		return
	}
	var in domain.ExamInput
	if !decode(w, r, &in) {
		return
	}
	e, err := h.svc.Update(r.Context(), p, chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *ExamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No autenticado.")
		return
	}
	if err := h.svc.Delete(r.Context(), p, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
