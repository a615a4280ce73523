package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// Auth failures collapse to these two so callers cannot tell which input was wrong.
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")

	// ErrNotificationDelivery means the code was stored but could not be sent; a resend may succeed.
	ErrNotificationDelivery = errors.New("notification delivery failed")

	ErrDuplicateSubmission = fmt.Errorf("exam already submitted: %w", ErrConflict)
)
