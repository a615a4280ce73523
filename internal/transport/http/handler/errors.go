package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/edusphere-api/internal/domain"
)

const retryHint = "No se pudo enviar el correo. Solicita un nuevo código en unos minutos."

// httpError maps a service error to a status code and a message safe to show the caller.
func httpError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotificationDelivery):
		return http.StatusInternalServerError, retryHint
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Credenciales inválidas."
	case errors.Is(err, domain.ErrInvalidOrExpiredCode):
		return http.StatusBadRequest, "Código inválido o expirado."
	case errors.Is(err, domain.ErrDuplicateSubmission):
		return http.StatusConflict, "Ya has entregado este examen."
	case errors.Is(err, domain.ErrBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "No autenticado."
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "No tienes permisos para realizar esta acción."
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, err.Error()
	}
	return http.StatusInternalServerError, "Error interno del servidor."
}

// writeServiceError logs unexpected failures and writes the mapped response.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := httpError(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeError(w, status, msg)
}
