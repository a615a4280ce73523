package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/edusphere-api/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestHTTPError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", fmt.Errorf("title is required: %w", domain.ErrBadRequest), http.StatusBadRequest},
		{"conflict", fmt.Errorf("email taken: %w", domain.ErrConflict), http.StatusConflict},
		{"duplicate submission", fmt.Errorf("submit: %w", domain.ErrDuplicateSubmission), http.StatusConflict},
		{"credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{"code", domain.ErrInvalidOrExpiredCode, http.StatusBadRequest},
		{"unauthorized", domain.ErrUnauthorized, http.StatusUnauthorized},
		{"forbidden", fmt.Errorf("not the owner: %w", domain.ErrForbidden), http.StatusForbidden},
		{"not found", fmt.Errorf("exam not found: %w", domain.ErrNotFound), http.StatusNotFound},
		{"delivery", errors.Join(domain.ErrNotificationDelivery, errors.New("dial tcp")), http.StatusInternalServerError},
		{"unknown", errors.New("dynamo: throttled"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, msg := httpError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.NotEmpty(t, msg)
		})
	}
}

func TestHTTPError_InternalDetailsHidden(t *testing.T) {
	_, msg := httpError(errors.New("dynamo: table users not found in us-east-1"))
	assert.NotContains(t, msg, "dynamo")
}
