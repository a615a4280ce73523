package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/edusphere-api/internal/domain"
	"github.com/edusphere-api/internal/pkg/id"
	"github.com/edusphere-api/internal/pkg/sanitize"
	"golang.org/x/crypto/bcrypt"
)

const (
	msgRegistered    = "Registro exitoso. Revisa tu correo para verificar tu cuenta."
	msgCodeSent      = "Se envió un código de verificación a tu correo."
	msgResetNotice   = "Si el correo está registrado, recibirás un código para restablecer tu contraseña."
	msgPasswordReset = "Contraseña actualizada correctamente."
)

type userStore interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type codeIssuer interface {
	Issue(ctx context.Context, email, purpose string) (string, error)
	RedeemVerification(ctx context.Context, email, code, userID string) error
	RedeemPasswordReset(ctx context.Context, email, code, userID, passwordHash string) error
	TTL() time.Duration
}

type codeSender interface {
	SendVerificationCode(ctx context.Context, to, code string, ttl time.Duration) error
	SendPasswordResetCode(ctx context.Context, to, code string, ttl time.Duration) error
}

type tokenSigner interface {
	Sign(userID, role, email string) (string, error)
}

type auditRecorder interface {
	Record(ctx context.Context, entry domain.AuditLog) error
}

// Service drives register, login, OTP verification and password reset.
// No call returns a session token except VerifyOTP.
type Service interface {
	Register(ctx context.Context, req domain.RegisterRequest) (string, error)
	Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginChallenge, error)
	VerifyOTP(ctx context.Context, req domain.VerifyOTPRequest) (*domain.Session, error)
	ResendOTP(ctx context.Context, email string) (string, error)
	RequestPasswordReset(ctx context.Context, email string) string
	ResetPassword(ctx context.Context, req domain.ResetPasswordRequest) (string, error)
}

type ServiceDeps struct {
	UserRepo    userStore
	Codes       codeIssuer
	Mailer      codeSender
	JWTProvider tokenSigner
	Audit       auditRecorder
	Now         func() time.Time
	// HashCost defaults to bcrypt.DefaultCost.
	HashCost int
}

type service struct {
	users    userStore
	codes    codeIssuer
	mailer   codeSender
	signer   tokenSigner
	audit    auditRecorder
	now      func() time.Time
	hashCost int
	dummy    func() []byte
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		users:    deps.UserRepo,
		codes:    deps.Codes,
		mailer:   deps.Mailer,
		signer:   deps.JWTProvider,
		audit:    deps.Audit,
		now:      deps.Now,
		hashCost: deps.HashCost,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.hashCost == 0 {
		s.hashCost = bcrypt.DefaultCost
	}
	// Compared against when the email is unknown so both failure paths cost
	// one bcrypt comparison.
	s.dummy = sync.OnceValue(func() []byte {
		h, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.hashCost)
		return h
	})
	return s
}

func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (string, error) {
	role := req.Role
	if role == "" {
		role = domain.RoleStudent
	}
	if role != domain.RoleStudent && role != domain.RoleTeacher {
		return "", fmt.Errorf("role %q cannot self-register: %w", role, domain.ErrBadRequest)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Name:         sanitize.Text(req.Name),
		Email:        domain.NormalizeEmail(req.Email),
		PasswordHash: string(hash),
		Role:         role,
		Verified:     false,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return "", err
	}
	// The user row stays when delivery fails; the caller retries via resend.
	if err := s.sendCode(ctx, u.Email, domain.PurposeVerification); err != nil {
		return "", err
	}
	return msgRegistered, nil
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginChallenge, error) {
	email := domain.NormalizeEmail(req.Email)
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(req.Password))
		return nil, fmt.Errorf("login %s: %w", email, domain.ErrInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		s.record(ctx, domain.AuditLog{
			ActorID:  u.UserID,
			Action:   domain.AuditLoginFailed,
			TargetID: u.UserID,
			Details:  map[string]string{"reason": "bad_password"},
		})
		return nil, fmt.Errorf("login %s: %w", email, domain.ErrInvalidCredentials)
	}
	if !u.Active {
		s.record(ctx, domain.AuditLog{
			ActorID:  u.UserID,
			Action:   domain.AuditLoginFailed,
			TargetID: u.UserID,
			Details:  map[string]string{"reason": "inactive"},
		})
		return nil, fmt.Errorf("login %s: %w", email, domain.ErrInvalidCredentials)
	}
	if err := s.sendCode(ctx, u.Email, domain.PurposeVerification); err != nil {
		return nil, err
	}
	return &domain.LoginChallenge{Message: msgCodeSent, RequireOTP: true, Email: u.Email}, nil
}

// VerifyOTP signs the token before redeeming, so a used code always yields
// a session. If the redeem loses, the token is discarded unsent.
func (s *service) VerifyOTP(ctx context.Context, req domain.VerifyOTPRequest) (*domain.Session, error) {
	email := domain.NormalizeEmail(req.Email)
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("verify %s: %w", email, domain.ErrInvalidOrExpiredCode)
		}
		return nil, err
	}
	if !u.Active {
		return nil, fmt.Errorf("verify %s: %w", email, domain.ErrInvalidOrExpiredCode)
	}
	tok, err := s.signer.Sign(u.UserID, u.Role, u.Email)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}
	if err := s.codes.RedeemVerification(ctx, u.Email, req.Code, u.UserID); err != nil {
		return nil, err
	}
	u.Verified = true
	s.record(ctx, domain.AuditLog{
		ActorID:  u.UserID,
		Action:   domain.AuditLoginSuccess,
		TargetID: u.UserID,
		Details:  map[string]string{"method": "otp"},
	})
	return &domain.Session{Token: tok, User: u}, nil
}

func (s *service) ResendOTP(ctx context.Context, email string) (string, error) {
	email = domain.NormalizeEmail(email)
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if err := s.sendCode(ctx, u.Email, domain.PurposeVerification); err != nil {
		return "", err
	}
	return msgCodeSent, nil
}

// RequestPasswordReset answers the same way whether or not the email is
// registered. Failures are logged only.
func (s *service) RequestPasswordReset(ctx context.Context, email string) string {
	email = domain.NormalizeEmail(email)
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Error("password reset lookup failed", "err", err)
		}
		return msgResetNotice
	}
	if err := s.sendCode(ctx, u.Email, domain.PurposePasswordReset); err != nil {
		slog.Error("password reset code not delivered", "user_id", u.UserID, "err", err)
	}
	s.record(ctx, domain.AuditLog{ActorID: u.UserID, Action: domain.AuditPasswordResetRequest, TargetID: u.UserID})
	return msgResetNotice
}

func (s *service) ResetPassword(ctx context.Context, req domain.ResetPasswordRequest) (string, error) {
	email := domain.NormalizeEmail(req.Email)
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("reset %s: %w", email, domain.ErrInvalidOrExpiredCode)
		}
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.hashCost)
	if err != nil {
		return "", err
	}
	if err := s.codes.RedeemPasswordReset(ctx, u.Email, req.Code, u.UserID, string(hash)); err != nil {
		return "", err
	}
	s.record(ctx, domain.AuditLog{ActorID: u.UserID, Action: domain.AuditPasswordResetSuccess, TargetID: u.UserID})
	return msgPasswordReset, nil
}

func (s *service) sendCode(ctx context.Context, email, purpose string) error {
	code, err := s.codes.Issue(ctx, email, purpose)
	if err != nil {
		return err
	}
	send := s.mailer.SendVerificationCode
	if purpose == domain.PurposePasswordReset {
		send = s.mailer.SendPasswordResetCode
	}
	if err := send(ctx, email, code, s.codes.TTL()); err != nil {
		slog.Error("otp delivery failed", "purpose", purpose, "err", err)
		return fmt.Errorf("deliver %s code: %w", strings.ToLower(purpose), errors.Join(domain.ErrNotificationDelivery, err))
	}
	return nil
}

func (s *service) record(ctx context.Context, entry domain.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		slog.Warn("audit record failed", "action", entry.Action, "err", err)
	}
}
