package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/edusphere-api/internal/domain"
	"github.com/edusphere-api/internal/pkg/validate"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// SessionEnvelope wraps a successful OTP verification.
type SessionEnvelope struct {
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    *domain.User `json:"user"`
}

// SubmissionEnvelope answers a successful submit.
type SubmissionEnvelope struct {
	Message      string `json:"message"`
	SubmissionID string `json:"submissionId"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Message: msg, Error: http.StatusText(status), ErrorCode: status})
}

// decode reads a JSON body into dst and runs its validate tags.
// On failure it has already written the 400 response.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "El cuerpo de la solicitud está vacío.")
			return false
		}
		writeError(w, http.StatusBadRequest, "Cuerpo de la solicitud inválido.")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}
