package domain

import (
	"strings"
	"time"
)

type User struct {
	UserID       string    `json:"id" dynamodbav:"user_id"`
	Name         string    `json:"name" dynamodbav:"name"`
	Email        string    `json:"email" dynamodbav:"email"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`
	Role         string    `json:"role" dynamodbav:"role"`
	Verified     bool      `json:"isVerified" dynamodbav:"verified"`
	Active       bool      `json:"isActive" dynamodbav:"active"`
	CreatedAt    time.Time `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" dynamodbav:"updated_at"`
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=ESTUDIANTE DOCENTE"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" validate:"required,min=6,max=72"`
}

// CreateUserRequest is the admin path; such users start verified.
type CreateUserRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Role     string `json:"role" validate:"required,oneof=ESTUDIANTE DOCENTE"`
}

type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=ESTUDIANTE DOCENTE ADMIN"`
}

type ActivationRequest struct {
	Active *bool `json:"isActive" validate:"required"`
}

// NormalizeEmail is the canonical form used as a lookup key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
