package middleware

import (
	"encoding/json"
	"net/http"
)

// errorBody mirrors the handler package's MessageEnvelope so every error on
// the wire has one shape.
type errorBody struct {
	Message   string `json:"message"`
	Error     string `json:"error"`
	ErrorCode int    `json:"error_code"`
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Message: msg, Error: http.StatusText(status), ErrorCode: status})
}
