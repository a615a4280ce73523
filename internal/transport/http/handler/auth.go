package handler

import (
	"net/http"

	"github.com/edusphere-api/internal/application/auth"
	"github.com/edusphere-api/internal/domain"
)

// AuthHandler serves registration, the OTP login flow and password reset.
type AuthHandler struct {
	svc auth.Service
}

func NewAuthHandler(svc auth.Service) *AuthHandler { return &AuthHandler{svc: svc} }

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	msg, err := h.svc.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, MessageEnvelope{Message: msg})
}

// Login checks the password and sends a code. It never returns a token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	challenge, err := h.svc.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, challenge)
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyOTPRequest
	if !decode(w, r, &req) {
		return
	}
	sess, err := h.svc.VerifyOTP(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionEnvelope{
		Message: "Bienvenido a EduSphere",
		Token:   sess.Token,
		User:    sess.User,
	})
}

func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.EmailRequest
	if !decode(w, r, &req) {
		return
	}
	msg, err := h.svc.ResendOTP(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: msg})
}

// RequestPasswordReset answers 200 with the same message whether or not the account exists.
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req domain.EmailRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: h.svc.RequestPasswordReset(r.Context(), req.Email)})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ResetPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	msg, err := h.svc.ResetPassword(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: msg})
}
