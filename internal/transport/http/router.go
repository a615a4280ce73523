package http

import (
	"net/http"
	"time"

	"github.com/edusphere-api/internal/application/attempt"
	"github.com/edusphere-api/internal/application/audit"
	"github.com/edusphere-api/internal/application/auth"
	"github.com/edusphere-api/internal/application/exam"
	"github.com/edusphere-api/internal/application/material"
	"github.com/edusphere-api/internal/application/otp"
	"github.com/edusphere-api/internal/application/stats"
	"github.com/edusphere-api/internal/application/user"
	"github.com/edusphere-api/internal/config"
	"github.com/edusphere-api/internal/domain"
	"github.com/edusphere-api/internal/transport/http/handler"
	appmiddleware "github.com/edusphere-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"golang.org/x/time/rate"
)

// NewServices wires the application services over the infrastructure in deps.
func NewServices(cfg *config.Config, deps *Deps) *Services {
	auditSvc := audit.NewService(audit.ServiceDeps{
		Repo:      deps.AuditRepo,
		Users:     deps.UserRepo,
		Publisher: deps.AuditPublisher,
	})
	codes := otp.NewService(otp.ServiceDeps{Store: deps.OTPRepo, TTL: cfg.OTPTTL})
	materialSvc := material.NewService(material.ServiceDeps{
		MaterialRepo: deps.MaterialRepo,
		Objects:      deps.S3Store,
		Audit:        auditSvc,
	})
	return &Services{
		Auth: auth.NewService(auth.ServiceDeps{
			UserRepo:    deps.UserRepo,
			Codes:       codes,
			Mailer:      deps.Mailer,
			JWTProvider: deps.JWTProvider,
			Audit:       auditSvc,
		}),
		Exams: exam.NewService(exam.ServiceDeps{
			ExamRepo:    deps.ExamRepo,
			AttemptRepo: deps.AttemptRepo,
			UserRepo:    deps.UserRepo,
		}),
		Attempts: attempt.NewService(attempt.ServiceDeps{
			AttemptRepo: deps.AttemptRepo,
			ExamRepo:    deps.ExamRepo,
			UserRepo:    deps.UserRepo,
			Audit:       auditSvc,
		}),
		Materials: materialSvc,
		Users: user.NewService(user.ServiceDeps{
			UserRepo:    deps.UserRepo,
			AttemptRepo: deps.AttemptRepo,
			ExamRepo:    deps.ExamRepo,
			Materials:   materialSvc,
			AuditRepo:   deps.AuditRepo,
			Audit:       auditSvc,
		}),
		Audit: auditSvc,
		Statistics: stats.NewService(stats.ServiceDeps{
			AttemptRepo:  deps.AttemptRepo,
			ExamRepo:     deps.ExamRepo,
			UserRepo:     deps.UserRepo,
			MaterialRepo: deps.MaterialRepo,
		}),
	}
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	return newRouter(cfg, NewServices(cfg, deps), appmiddleware.Auth(deps.JWTProvider))
}

func newRouter(cfg *config.Config, svcs *Services, authMw func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(httprate.LimitByRealIP(300, time.Minute))
	r.Use(appmiddleware.ClientIP)

	// 5 requests/second, burst of 10, on the unauthenticated auth endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(svcs.Auth)
	examH := handler.NewExamHandler(svcs.Exams)
	subH := handler.NewSubmissionHandler(svcs.Attempts)
	matH := handler.NewMaterialHandler(svcs.Materials)
	adminH := handler.NewAdminHandler(svcs.Users, svcs.Audit)
	statsH := handler.NewStatsHandler(svcs.Statistics)

	staff := appmiddleware.RequireRole(domain.RoleTeacher, domain.RoleAdmin)

	// ── Public routes (no auth) ──────────────────────────────────────────
	r.Get("/health", healthH.Health)
	r.Get("/health-check/{action}", healthH.Ping)
	r.Route("/auth", func(r chi.Router) {
		r.Use(sensitiveRL.Limit)
		r.Post("/register", authH.Register)
		r.Post("/login", authH.Login)
		r.Post("/verify-otp", authH.VerifyOTP)
		r.Post("/resend-otp", authH.ResendOTP)
		r.Post("/request-password-reset", authH.RequestPasswordReset)
		r.Post("/reset-password", authH.ResetPassword)
	})

	// ── Authenticated routes ─────────────────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(authMw)

		r.Route("/exams", func(r chi.Router) {
			r.Get("/", examH.List)
			r.Get("/{id}", examH.Get)
			r.With(staff).Post("/", examH.Create)
			r.With(staff).Put("/{id}", examH.Update)
			r.With(staff).Delete("/{id}", examH.Delete)
		})

		r.Route("/submissions", func(r chi.Router) {
			r.With(appmiddleware.RequireRole(domain.RoleStudent)).Post("/", subH.Submit)
			r.With(appmiddleware.RequireRole(domain.RoleStudent)).Get("/my-results", subH.MyResults)
			r.With(staff).Get("/exam/{examId}", subH.ForExam)
			r.With(staff).Get("/{id}", subH.Get)
			r.With(staff).Put("/{id}/grade", subH.Grade)
		})

		r.Route("/materials", func(r chi.Router) {
			r.Get("/", matH.List)
			r.Get("/{id}", matH.Get)
			r.Get("/{id}/attachments/{index}", matH.Download)
			r.With(staff).Post("/", matH.Create)
			r.With(staff).Delete("/{id}", matH.Delete)
		})

		r.With(staff).Get("/dashboard/students/{studentId}/performance", statsH.StudentPerformance)

		// Admin-only routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

			r.Get("/users", adminH.ListUsers)
			r.Post("/users", adminH.CreateUser)
			r.Patch("/users/{id}/role", adminH.UpdateRole)
			r.Patch("/users/{id}/activation", adminH.SetActivation)
			r.Delete("/users/{id}", adminH.DeleteUser)

			r.Get("/audit-logs", adminH.AuditLogs)
			r.Get("/stats", statsH.Site)
			r.Get("/stats/site", statsH.Site)
			r.Get("/stats/courses", statsH.Courses)
		})
	})

	return r
}
