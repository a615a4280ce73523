package http

import (
	"github.com/edusphere-api/internal/application/attempt"
	"github.com/edusphere-api/internal/application/audit"
	"github.com/edusphere-api/internal/application/auth"
	"github.com/edusphere-api/internal/application/exam"
	"github.com/edusphere-api/internal/application/material"
	"github.com/edusphere-api/internal/application/stats"
	"github.com/edusphere-api/internal/application/user"
	"github.com/edusphere-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/edusphere-api/internal/infrastructure/jwt"
	s3infra "github.com/edusphere-api/internal/infrastructure/s3"
	"github.com/edusphere-api/internal/infrastructure/smtp"
	"github.com/edusphere-api/internal/infrastructure/sns"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo     *dynamo.UserRepo
	OTPRepo      *dynamo.OTPRepo
	ExamRepo     *dynamo.ExamRepo
	AttemptRepo  *dynamo.AttemptRepo
	AuditRepo    *dynamo.AuditRepo
	MaterialRepo *dynamo.MaterialRepo
	S3Store      *s3infra.Store
	Mailer       smtp.Mailer
	// AuditPublisher is nil when no SNS topic is configured.
	AuditPublisher sns.Publisher
	JWTProvider    *jwtinfra.Provider
}

// Services are the application services the handlers call.
type Services struct {
	Auth       auth.Service
	Exams      exam.Service
	Attempts   attempt.Service
	Materials  material.Service
	Users      user.Service
	Audit      audit.Service
	Statistics stats.Service
}
