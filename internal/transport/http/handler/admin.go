package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/edusphere-api/internal/application/audit"
	"github.com/edusphere-api/internal/application/user"
	"github.com/edusphere-api/internal/domain"
	"github.com/edusphere-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
)

// AdminHandler serves user management and the audit history.
type AdminHandler struct {
	users user.Service
	audit audit.Service
}

func NewAdminHandler(users user.Service, auditSvc audit.Service) *AdminHandler {
	return &AdminHandler{users: users, audit: auditSvc}
}

// ListUsers hides the caller unless ?includeSelf=true.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No autenticado.")
		return
	}
	includeSelf, _ := strconv.ParseBool(r.URL.Query().Get("includeSelf"))
	users, err := h.users.List(r.Context(), p, includeSelf)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No autenticado.")
		return
	}
	var req domain.CreateUserRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.users.Create(r.Context(), p, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *AdminHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No autenticado.")
		return
	}
	var req domain.UpdateRoleRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.users.UpdateRole(r.Context(), p, chi.URLParam(r, "id"), req.Role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *AdminHandler) SetActivation(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No autenticado.")
		return
	}
	var req domain.ActivationRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.users.SetActive(r.Context(), p, chi.URLParam(r, "id"), *req.Active)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "No autenticado.")
		return
	}
	userID := chi.URLParam(r, "id")
	if err := h.users.Delete(r.Context(), p, userID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: fmt.Sprintf("Usuario %s eliminado.", userID)})
}

func (h *AdminHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.audit.List(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
